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
	"github.com/i474232898/infrastructure-risk/internal/infrastructure"
)

const DefaultOverpassURL = "https://overpass-api.de/api/interpreter"

// OverpassClient implements infrastructure.MapQuerier against an Overpass API
// interpreter. Retrying is left to the caller.
type OverpassClient struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOverpassClient(client *http.Client, baseURL string) *OverpassClient {
	if baseURL == "" {
		baseURL = DefaultOverpassURL
	}
	return &OverpassClient{
		name:    "overpass",
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: noRetry,
		},
		circuit: newCircuitBreaker("overpass"),
	}
}

func (c *OverpassClient) Name() string {
	return c.name
}

// Query posts an Overpass QL query and splits the JSON response into ways
// and nodes. Busy or rate-limited responses wrap infrastructure.ErrRateLimited.
func (c *OverpassClient) Query(ctx context.Context, query string) (infrastructure.Elements, error) {
	buildRequest := func() (*http.Request, error) {
		form := url.Values{}
		form.Set("data", query)
		req, err := http.NewRequest(http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		if errors.Is(err, errRateLimited) || errors.Is(err, errServerBusy) {
			return infrastructure.Elements{}, fmt.Errorf("%w: %v", infrastructure.ErrRateLimited, err)
		}
		return infrastructure.Elements{}, err
	}
	defer resp.Body.Close()

	var payload overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return infrastructure.Elements{}, fmt.Errorf("decode overpass response: %w", err)
	}

	if remark := payload.Remark; remark != "" && common.HasAny(strings.ToLower(remark), "error", "timed out", "too busy") {
		if common.HasAny(strings.ToLower(remark), "too busy", "rate_limited", "dispatcher_client") {
			return infrastructure.Elements{}, fmt.Errorf("%w: %s", infrastructure.ErrRateLimited, remark)
		}
		return infrastructure.Elements{}, fmt.Errorf("overpass: %s", remark)
	}

	return payload.elements(), nil
}

// Overpass API response types.

type overpassResponse struct {
	Remark   string            `json:"remark"`
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type  string            `json:"type"`
	ID    int64             `json:"id"`
	Lat   *float64          `json:"lat"`
	Lon   *float64          `json:"lon"`
	Nodes []int64           `json:"nodes"`
	Tags  map[string]string `json:"tags"`
}

// elements keeps the first occurrence of each (type, id); "out skel" repeats
// elements without their tags.
func (r overpassResponse) elements() infrastructure.Elements {
	var out infrastructure.Elements
	seen := make(map[string]struct{}, len(r.Elements))

	for _, e := range r.Elements {
		key := fmt.Sprintf("%s/%d", e.Type, e.ID)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		switch e.Type {
		case "way":
			out.Ways = append(out.Ways, infrastructure.Way{ID: e.ID, NodeIDs: e.Nodes, Tags: e.Tags})
		case "node":
			n := infrastructure.Node{ID: e.ID, Tags: e.Tags}
			if e.Lat != nil && e.Lon != nil {
				n.Location = &geo.Coordinate{Lat: *e.Lat, Lon: *e.Lon}
			}
			out.Nodes = append(out.Nodes, n)
		}
	}
	return out
}
