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

// OpenWeatherProvider implements signals.WeatherSource for OpenWeatherMap.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/2.5/weather",
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: noRetry,
		},
		circuit: newCircuitBreaker("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

func (p *OpenWeatherProvider) FetchWeather(ctx context.Context, c geo.Coordinate) (signals.WeatherSnapshot, error) {
	if p.apiKey == "" {
		return signals.WeatherSnapshot{}, fmt.Errorf("openweather: %w", errMissingAPIKey)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("lat", strconv.FormatFloat(c.Lat, 'f', -1, 64))
		values.Set("lon", strconv.FormatFloat(c.Lon, 'f', -1, 64))
		values.Set("appid", p.apiKey)
		values.Set("units", "metric")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return signals.WeatherSnapshot{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Main struct {
			Temp     *float64 `json:"temp"`
			Humidity *float64 `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Main string `json:"main"`
		} `json:"weather"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return signals.WeatherSnapshot{}, fmt.Errorf("decode weather: %w", err)
	}
	if payload.Main.Temp == nil || payload.Main.Humidity == nil {
		return signals.WeatherSnapshot{}, errors.New("weather payload missing main.temp or main.humidity")
	}
	if len(payload.Weather) == 0 {
		return signals.WeatherSnapshot{}, errors.New("weather payload has no conditions")
	}

	return signals.WeatherSnapshot{
		Temperature: *payload.Main.Temp,
		Humidity:    *payload.Main.Humidity,
		Condition:   payload.Weather[0].Main,
	}, nil
}
