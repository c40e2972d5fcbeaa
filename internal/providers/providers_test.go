package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/kelvins/geocoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/infrastructure-risk/internal/geo"
	"github.com/i474232898/infrastructure-risk/internal/infrastructure"
)

func serveJSON(t *testing.T, status int, body string, inspect func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inspect != nil {
			inspect(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenWeatherProvider(t *testing.T) {
	var query url.Values
	srv := serveJSON(t, http.StatusOK,
		`{"main":{"temp":18.2,"humidity":64},"weather":[{"main":"Rain","description":"light rain"}]}`,
		func(r *http.Request) { query = r.URL.Query() })

	p := NewOpenWeatherProvider(srv.Client(), "secret")
	p.baseURL = srv.URL

	snap, err := p.FetchWeather(context.Background(), geo.DefaultCenter)
	require.NoError(t, err)
	assert.Equal(t, 18.2, snap.Temperature)
	assert.Equal(t, 64.0, snap.Humidity)
	assert.Equal(t, "Rain", snap.Condition)

	assert.Equal(t, "secret", query.Get("appid"))
	assert.Equal(t, "metric", query.Get("units"))
	assert.Equal(t, "38.8977", query.Get("lat"))
	assert.Equal(t, "-77.0365", query.Get("lon"))
}

func TestOpenWeatherProvider_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"cod":401}`},
		{"missing temperature", http.StatusOK, `{"main":{"humidity":40},"weather":[{"main":"Clear"}]}`},
		{"no conditions", http.StatusOK, `{"main":{"temp":1,"humidity":40},"weather":[]}`},
		{"malformed", http.StatusOK, `{"main":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serveJSON(t, tt.status, tt.body, nil)
			p := NewOpenWeatherProvider(srv.Client(), "secret")
			p.baseURL = srv.URL

			_, err := p.FetchWeather(context.Background(), geo.DefaultCenter)
			assert.Error(t, err)
		})
	}
}

func TestOpenWeatherProvider_MissingKey(t *testing.T) {
	p := NewOpenWeatherProvider(http.DefaultClient, "")
	_, err := p.FetchWeather(context.Background(), geo.DefaultCenter)
	assert.ErrorIs(t, err, errMissingAPIKey)
}

func TestTomTomProvider(t *testing.T) {
	var query url.Values
	srv := serveJSON(t, http.StatusOK,
		`{"flowSegmentData":{"currentSpeed":20,"freeFlowSpeed":50,"confidence":0.9}}`,
		func(r *http.Request) { query = r.URL.Query() })

	p := NewTomTomProvider(srv.Client(), "tt-key")
	p.baseURL = srv.URL

	snap, err := p.FetchTraffic(context.Background(), geo.DefaultCenter)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, snap.CongestionRatio, 1e-12)
	assert.Equal(t, 0.9, snap.Confidence)
	assert.Equal(t, "tt-key", query.Get("key"))
	assert.Equal(t, "38.897700,-77.036500", query.Get("point"))
	assert.Equal(t, "MPH", query.Get("unit"))
}

func TestTomTomProvider_FreeFlow(t *testing.T) {
	t.Run("missing free flow divides by one", func(t *testing.T) {
		srv := serveJSON(t, http.StatusOK, `{"flowSegmentData":{"currentSpeed":0.7}}`, nil)
		p := NewTomTomProvider(srv.Client(), "k")
		p.baseURL = srv.URL

		snap, err := p.FetchTraffic(context.Background(), geo.DefaultCenter)
		require.NoError(t, err)
		assert.InDelta(t, 0.7, snap.CongestionRatio, 1e-12)
	})

	t.Run("zero free flow is an error", func(t *testing.T) {
		srv := serveJSON(t, http.StatusOK, `{"flowSegmentData":{"currentSpeed":10,"freeFlowSpeed":0}}`, nil)
		p := NewTomTomProvider(srv.Client(), "k")
		p.baseURL = srv.URL

		_, err := p.FetchTraffic(context.Background(), geo.DefaultCenter)
		assert.Error(t, err)
	})

	t.Run("ratio above one is kept", func(t *testing.T) {
		srv := serveJSON(t, http.StatusOK, `{"flowSegmentData":{"currentSpeed":60,"freeFlowSpeed":40}}`, nil)
		p := NewTomTomProvider(srv.Client(), "k")
		p.baseURL = srv.URL

		snap, err := p.FetchTraffic(context.Background(), geo.DefaultCenter)
		require.NoError(t, err)
		assert.InDelta(t, 1.5, snap.CongestionRatio, 1e-12)
	})
}

func TestTomTomProvider_PointErrorsDoNotOpenBreaker(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if calls <= 6 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"detailedError":{"message":"Point too far from nearest existing segment."}}`)
			return
		}
		_, _ = io.WriteString(w, `{"flowSegmentData":{"currentSpeed":30,"freeFlowSpeed":40,"confidence":1}}`)
	}))
	defer srv.Close()

	p := NewTomTomProvider(srv.Client(), "k")
	p.baseURL = srv.URL

	for i := 0; i < 6; i++ {
		_, err := p.FetchTraffic(context.Background(), geo.DefaultCenter)
		require.ErrorIs(t, err, errUnexpected)
	}

	snap, err := p.FetchTraffic(context.Background(), geo.DefaultCenter)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, snap.CongestionRatio, 1e-12)
	assert.Equal(t, 7, calls)
}

func TestCircuitBreaker_OpensOnServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewTomTomProvider(srv.Client(), "k")
	p.baseURL = srv.URL

	for i := 0; i < 6; i++ {
		_, err := p.FetchTraffic(context.Background(), geo.DefaultCenter)
		require.ErrorIs(t, err, errServerError)
	}

	_, err := p.FetchTraffic(context.Background(), geo.DefaultCenter)
	assert.ErrorIs(t, err, errCircuitOpen)
	assert.Equal(t, 6, calls)
}

func TestNominatimGeocoder(t *testing.T) {
	var query url.Values
	var agent string
	srv := serveJSON(t, http.StatusOK, `[{"lat":"38.8950368","lon":"-77.0365427","display_name":"Washington"}]`,
		func(r *http.Request) {
			query = r.URL.Query()
			agent = r.Header.Get("User-Agent")
		})

	g := NewNominatimGeocoder(srv.Client(), srv.URL)
	c, err := g.Geocode(context.Background(), "Washington, DC")
	require.NoError(t, err)
	assert.InDelta(t, 38.8950368, c.Lat, 1e-9)
	assert.InDelta(t, -77.0365427, c.Lon, 1e-9)

	assert.Equal(t, "Washington, DC", query.Get("q"))
	assert.Equal(t, "json", query.Get("format"))
	assert.Equal(t, "1", query.Get("limit"))
	assert.Equal(t, "city", query.Get("featuretype"))
	assert.Equal(t, userAgent, agent)
}

func TestNominatimGeocoder_Errors(t *testing.T) {
	t.Run("no results", func(t *testing.T) {
		srv := serveJSON(t, http.StatusOK, `[]`, nil)
		_, err := NewNominatimGeocoder(srv.Client(), srv.URL).Geocode(context.Background(), "Nowhere")
		assert.ErrorIs(t, err, geo.ErrNoResults)
	})

	t.Run("missing lon", func(t *testing.T) {
		srv := serveJSON(t, http.StatusOK, `[{"lat":"1.5"}]`, nil)
		_, err := NewNominatimGeocoder(srv.Client(), srv.URL).Geocode(context.Background(), "Half")
		assert.Error(t, err)
	})

	t.Run("numeric coordinates", func(t *testing.T) {
		srv := serveJSON(t, http.StatusOK, `[{"lat":51.5,"lon":-0.12}]`, nil)
		c, err := NewNominatimGeocoder(srv.Client(), srv.URL).Geocode(context.Background(), "London")
		require.NoError(t, err)
		assert.Equal(t, geo.Coordinate{Lat: 51.5, Lon: -0.12}, c)
	})

	t.Run("server error", func(t *testing.T) {
		srv := serveJSON(t, http.StatusInternalServerError, `oops`, nil)
		_, err := NewNominatimGeocoder(srv.Client(), srv.URL).Geocode(context.Background(), "Paris")
		assert.ErrorIs(t, err, errServerError)
	})
}

func TestGoogleGeocoder(t *testing.T) {
	g := NewGoogleGeocoder("g-key")
	var got geocoder.Address
	g.geocode = func(a geocoder.Address) (geocoder.Location, error) {
		got = a
		return geocoder.Location{Latitude: 40.7128, Longitude: -74.006}, nil
	}

	c, err := g.Geocode(context.Background(), "New York")
	require.NoError(t, err)
	assert.Equal(t, geo.Coordinate{Lat: 40.7128, Lon: -74.006}, c)
	assert.Equal(t, "New York", got.City)

	g.geocode = func(geocoder.Address) (geocoder.Location, error) {
		return geocoder.Location{}, nil
	}
	_, err = g.Geocode(context.Background(), "Null Island")
	assert.ErrorIs(t, err, geo.ErrNoResults)

	g.geocode = func(geocoder.Address) (geocoder.Location, error) {
		return geocoder.Location{}, errors.New("REQUEST_DENIED")
	}
	_, err = g.Geocode(context.Background(), "Paris")
	assert.Error(t, err)

	_, err = NewGoogleGeocoder("").Geocode(context.Background(), "Paris")
	assert.ErrorIs(t, err, errMissingAPIKey)
}

const overpassBody = `{
  "elements": [
    {"type":"way","id":100,"nodes":[1,2],"tags":{"highway":"primary","name":"K Street"}},
    {"type":"node","id":1,"lat":38.90,"lon":-77.03},
    {"type":"node","id":2,"lat":38.91,"lon":-77.04},
    {"type":"node","id":3,"lat":38.89,"lon":-77.00,"tags":{"railway":"station","name":"Union Station"}},
    {"type":"way","id":100,"nodes":[1,2]},
    {"type":"node","id":3,"lat":38.89,"lon":-77.00}
  ]
}`

func TestOverpassClient_Query(t *testing.T) {
	var gotQuery, contentType string
	srv := serveJSON(t, http.StatusOK, overpassBody, func(r *http.Request) {
		assert.NoError(t, r.ParseForm())
		gotQuery = r.PostForm.Get("data")
		contentType = r.Header.Get("Content-Type")
		assert.Equal(t, http.MethodPost, r.Method)
	})

	c := NewOverpassClient(srv.Client(), srv.URL)
	q := infrastructure.AroundQuery(geo.DefaultCenter, 5000)
	elems, err := c.Query(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, q, gotQuery)
	assert.Equal(t, "application/x-www-form-urlencoded", contentType)
	require.Len(t, elems.Ways, 1)
	assert.Equal(t, "K Street", elems.Ways[0].Tags["name"])
	require.Len(t, elems.Nodes, 3)
	assert.Equal(t, "Union Station", elems.Nodes[2].Tags["name"])

	records, skipped := infrastructure.Build(elems)
	assert.Zero(t, skipped)
	require.Len(t, records, 2)
	assert.Equal(t, infrastructure.TypeRoad, records[0].Type)
	assert.Equal(t, infrastructure.TypeRailwayStation, records[1].Type)
}

func TestOverpassClient_RateLimits(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			srv := serveJSON(t, status, `rate_limited`, nil)
			_, err := NewOverpassClient(srv.Client(), srv.URL).Query(context.Background(), "[out:json];")
			assert.ErrorIs(t, err, infrastructure.ErrRateLimited)
		})
	}

	t.Run("busy remark", func(t *testing.T) {
		srv := serveJSON(t, http.StatusOK, `{"remark":"runtime error: open64: 0 Success /osm3s_v0.7.61_osm_base Dispatcher_Client::request_read_and_idx::rate_limited. Please check /api/status for the quota of your IP address.","elements":[]}`, nil)
		_, err := NewOverpassClient(srv.Client(), srv.URL).Query(context.Background(), "[out:json];")
		assert.ErrorIs(t, err, infrastructure.ErrRateLimited)
	})
}

func TestOverpassClient_StructuralErrors(t *testing.T) {
	t.Run("bad request", func(t *testing.T) {
		srv := serveJSON(t, http.StatusBadRequest, `parse error`, nil)
		_, err := NewOverpassClient(srv.Client(), srv.URL).Query(context.Background(), "bogus")
		require.Error(t, err)
		assert.NotErrorIs(t, err, infrastructure.ErrRateLimited)
	})

	t.Run("timeout remark", func(t *testing.T) {
		srv := serveJSON(t, http.StatusOK, `{"remark":"runtime error: Query timed out in \"query\" at line 3 after 91 seconds.","elements":[]}`, nil)
		_, err := NewOverpassClient(srv.Client(), srv.URL).Query(context.Background(), "[out:json];")
		require.Error(t, err)
		assert.NotErrorIs(t, err, infrastructure.ErrRateLimited)
	})

	t.Run("not json", func(t *testing.T) {
		srv := serveJSON(t, http.StatusOK, `<html>`, nil)
		_, err := NewOverpassClient(srv.Client(), srv.URL).Query(context.Background(), "[out:json];")
		assert.Error(t, err)
	})
}

func TestOpenMeteoProvider(t *testing.T) {
	var query url.Values
	srv := serveJSON(t, http.StatusOK,
		`{"current":{"temperature_2m":3.4,"relative_humidity_2m":81,"weather_code":73}}`,
		func(r *http.Request) { query = r.URL.Query() })

	p := NewOpenMeteoProvider(srv.Client())
	p.baseURL = srv.URL

	snap, err := p.FetchWeather(context.Background(), geo.DefaultCenter)
	require.NoError(t, err)
	assert.Equal(t, 3.4, snap.Temperature)
	assert.Equal(t, 81.0, snap.Humidity)
	assert.Equal(t, "Snow", snap.Condition)
	assert.Equal(t, "temperature_2m,relative_humidity_2m,weather_code", query.Get("current"))
}

func TestMapOpenMeteoCondition(t *testing.T) {
	cases := map[int]string{0: "Clear", 2: "Clouds", 45: "Fog", 53: "Drizzle", 63: "Rain", 81: "Rain", 75: "Snow", 95: "Thunderstorm", 20: "Unknown"}
	for code, want := range cases {
		assert.Equal(t, want, mapOpenMeteoCondition(code), "code %d", code)
	}
}

func TestWeatherAPIProvider(t *testing.T) {
	var query url.Values
	srv := serveJSON(t, http.StatusOK,
		`{"current":{"temp_c":25.1,"humidity":40,"condition":{"text":"Sunny"}}}`,
		func(r *http.Request) { query = r.URL.Query() })

	p := NewWeatherAPIProvider(srv.Client(), "wa-key")
	p.baseURL = srv.URL

	snap, err := p.FetchWeather(context.Background(), geo.DefaultCenter)
	require.NoError(t, err)
	assert.Equal(t, "Clear", snap.Condition)
	assert.Equal(t, 25.1, snap.Temperature)
	assert.Equal(t, "wa-key", query.Get("key"))
	assert.Equal(t, "38.897700,-77.036500", query.Get("q"))
}

func TestMapWeatherAPICondition(t *testing.T) {
	cases := map[string]string{
		"Patchy light drizzle":        "Drizzle",
		"Moderate rain":               "Rain",
		"Thundery outbreaks possible": "Thunderstorm",
		"Light sleet":                 "Snow",
		"Mist":                        "Mist",
		"Partly cloudy":               "Clouds",
		"Clear":                       "Clear",
		"":                            "Unknown",
		"Something the API invents":   "Unknown",
	}
	for text, want := range cases {
		assert.Equal(t, want, mapWeatherAPICondition(text), "text %q", text)
	}
}

func TestDoRequestWithResilience_Retries(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := HTTPClientConfig{
		Client:  srv.Client(),
		Backoff: BackoffConfig{MaxRetries: 3, InitialInterval: 1},
	}
	resp, err := doRequestWithResilience(context.Background(), cfg, newCircuitBreaker("test"), func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 3, calls)
}

func TestDoRequestWithResilience_InvalidConfig(t *testing.T) {
	build := func() (*http.Request, error) { return http.NewRequest(http.MethodGet, "http://example.invalid", nil) }

	_, err := doRequestWithResilience(context.Background(), HTTPClientConfig{}, newCircuitBreaker("x"), build)
	assert.ErrorIs(t, err, errNoHTTPClient)

	_, err = doRequestWithResilience(context.Background(), HTTPClientConfig{Client: http.DefaultClient}, newCircuitBreaker("x"), build)
	assert.ErrorIs(t, err, errInvalidConfig)
}
