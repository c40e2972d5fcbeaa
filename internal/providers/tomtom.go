package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker"

	"github.com/i474232898/infrastructure-risk/internal/geo"
	"github.com/i474232898/infrastructure-risk/internal/signals"
)

// TomTomProvider implements signals.TrafficSource using the TomTom Traffic
// Flow Segment Data API.
type TomTomProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewTomTomProvider(client *http.Client, apiKey string) *TomTomProvider {
	return &TomTomProvider{
		name:    "tomtom",
		apiKey:  apiKey,
		baseURL: "https://api.tomtom.com/traffic/services/4/flowSegmentData/absolute/10/json",
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: noRetry,
		},
		circuit: newCircuitBreaker("tomtom"),
	}
}

func (p *TomTomProvider) Name() string {
	return p.name
}

func (p *TomTomProvider) FetchTraffic(ctx context.Context, c geo.Coordinate) (signals.TrafficSnapshot, error) {
	if p.apiKey == "" {
		return signals.TrafficSnapshot{}, fmt.Errorf("tomtom: %w", errMissingAPIKey)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		values.Set("point", fmt.Sprintf("%f,%f", c.Lat, c.Lon))
		values.Set("unit", "MPH")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return signals.TrafficSnapshot{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		FlowSegmentData struct {
			CurrentSpeed  float64  `json:"currentSpeed"`
			FreeFlowSpeed *float64 `json:"freeFlowSpeed"`
			Confidence    float64  `json:"confidence"`
		} `json:"flowSegmentData"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return signals.TrafficSnapshot{}, fmt.Errorf("decode traffic: %w", err)
	}

	flow := payload.FlowSegmentData
	// A missing free-flow speed divides by one, as upstream clients do.
	freeFlow := 1.0
	if flow.FreeFlowSpeed != nil {
		freeFlow = *flow.FreeFlowSpeed
	}
	if freeFlow <= 0 {
		return signals.TrafficSnapshot{}, errors.New("traffic payload has non-positive free-flow speed")
	}

	return signals.TrafficSnapshot{
		CongestionRatio: flow.CurrentSpeed / freeFlow,
		Confidence:      flow.Confidence,
	}, nil
}
