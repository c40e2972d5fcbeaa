package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sony/gobreaker"

	"github.com/i474232898/infrastructure-risk/internal/geo"
	"github.com/i474232898/infrastructure-risk/internal/signals"
)

// OpenMeteoProvider implements signals.WeatherSource for Open-Meteo.
// It needs no API key.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: noRetry,
		},
		circuit: newCircuitBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) FetchWeather(ctx context.Context, c geo.Coordinate) (signals.WeatherSnapshot, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(c.Lat, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(c.Lon, 'f', -1, 64))
		values.Set("current", "temperature_2m,relative_humidity_2m,weather_code")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return signals.WeatherSnapshot{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Current struct {
			Temperature *float64 `json:"temperature_2m"`
			Humidity    *float64 `json:"relative_humidity_2m"`
			WeatherCode *int     `json:"weather_code"`
		} `json:"current"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return signals.WeatherSnapshot{}, fmt.Errorf("decode weather: %w", err)
	}
	cur := payload.Current
	if cur.Temperature == nil || cur.Humidity == nil || cur.WeatherCode == nil {
		return signals.WeatherSnapshot{}, errors.New("open-meteo payload missing current fields")
	}

	return signals.WeatherSnapshot{
		Temperature: *cur.Temperature,
		Humidity:    *cur.Humidity,
		Condition:   mapOpenMeteoCondition(*cur.WeatherCode),
	}, nil
}

// mapOpenMeteoCondition maps WMO weather codes onto OpenWeatherMap's main
// condition groups.
func mapOpenMeteoCondition(code int) string {
	switch {
	case code == 0:
		return "Clear"
	case code >= 1 && code <= 3:
		return "Clouds"
	case code == 45 || code == 48:
		return "Fog"
	case code >= 51 && code <= 57:
		return "Drizzle"
	case (code >= 61 && code <= 67) || (code >= 80 && code <= 82):
		return "Rain"
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return "Snow"
	case code >= 95:
		return "Thunderstorm"
	default:
		return "Unknown"
	}
}
