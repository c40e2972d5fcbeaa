package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sony/gobreaker"

	"github.com/i474232898/infrastructure-risk/internal/geo"
)

const DefaultNominatimURL = "https://nominatim.openstreetmap.org/search"

// NominatimGeocoder implements geo.Geocoder against an OpenStreetMap
// Nominatim search endpoint.
type NominatimGeocoder struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewNominatimGeocoder(client *http.Client, baseURL string) *NominatimGeocoder {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	return &NominatimGeocoder{
		name:    "nominatim",
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: noRetry,
		},
		circuit: newCircuitBreaker("nominatim"),
	}
}

func (g *NominatimGeocoder) Name() string {
	return g.name
}

// Geocode returns the coordinate of the first search result for place.
func (g *NominatimGeocoder) Geocode(ctx context.Context, place string) (geo.Coordinate, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("q", place)
		values.Set("format", "json")
		values.Set("limit", "1")
		values.Set("featuretype", "city")

		req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", g.baseURL, values.Encode()), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, g.httpCfg, g.circuit, buildRequest)
	if err != nil {
		return geo.Coordinate{}, err
	}
	defer resp.Body.Close()

	var results []struct {
		Lat *flexFloat `json:"lat"`
		Lon *flexFloat `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return geo.Coordinate{}, fmt.Errorf("decode geocode: %w", err)
	}
	if len(results) == 0 {
		return geo.Coordinate{}, geo.ErrNoResults
	}

	first := results[0]
	if first.Lat == nil || first.Lon == nil {
		return geo.Coordinate{}, errors.New("geocode result missing lat/lon")
	}
	return geo.Coordinate{Lat: float64(*first.Lat), Lon: float64(*first.Lon)}, nil
}

// flexFloat decodes a number that may be encoded as a JSON string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("invalid coordinate %q: %w", b, err)
	}
	*f = flexFloat(v)
	return nil
}
