package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/infrastructure-risk/internal/common"
	"github.com/i474232898/infrastructure-risk/internal/geo"
	"github.com/i474232898/infrastructure-risk/internal/signals"
)

// WeatherAPIProvider implements signals.WeatherSource for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1/current.json",
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: noRetry,
		},
		circuit: newCircuitBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) FetchWeather(ctx context.Context, c geo.Coordinate) (signals.WeatherSnapshot, error) {
	if p.apiKey == "" {
		return signals.WeatherSnapshot{}, fmt.Errorf("weatherapi: %w", errMissingAPIKey)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		// WeatherAPI accepts "lat,lon" in q.
		values.Set("q", fmt.Sprintf("%f,%f", c.Lat, c.Lon))

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return signals.WeatherSnapshot{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Current *struct {
			TempC     float64 `json:"temp_c"`
			Humidity  float64 `json:"humidity"`
			Condition struct {
				Text string `json:"text"`
			} `json:"condition"`
		} `json:"current"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return signals.WeatherSnapshot{}, fmt.Errorf("decode weather: %w", err)
	}
	if payload.Current == nil {
		return signals.WeatherSnapshot{}, errors.New("weatherapi payload missing current block")
	}

	return signals.WeatherSnapshot{
		Temperature: payload.Current.TempC,
		Humidity:    payload.Current.Humidity,
		Condition:   mapWeatherAPICondition(payload.Current.Condition.Text),
	}, nil
}

// mapWeatherAPICondition maps WeatherAPI's free-text condition onto
// OpenWeatherMap's main condition groups.
func mapWeatherAPICondition(text string) string {
	t := strings.ToLower(text)
	switch {
	case t == "":
		return "Unknown"
	case common.HasAny(t, "thunder", "storm"):
		return "Thunderstorm"
	case common.HasAny(t, "snow", "sleet", "blizzard", "ice pellets"):
		return "Snow"
	case common.HasAny(t, "drizzle"):
		return "Drizzle"
	case common.HasAny(t, "rain", "shower"):
		return "Rain"
	case common.HasAny(t, "fog", "mist"):
		return "Mist"
	case common.HasAny(t, "cloud", "overcast"):
		return "Clouds"
	case common.HasAny(t, "sunny", "clear"):
		return "Clear"
	default:
		return "Unknown"
	}
}
