package signals

import (
	"context"
	"log"

	"github.com/i474232898/infrastructure-risk/internal/geo"
	"github.com/i474232898/infrastructure-risk/internal/observability"
)

// WeatherSnapshot is the current weather at a coordinate.
type WeatherSnapshot struct {
	Temperature float64 `json:"temperature"` // °C
	Humidity    float64 `json:"humidity"`    // %
	Condition   string  `json:"condition"`   // provider's main group, e.g. "Clear", "Rain"
}

// TrafficSnapshot is the current traffic flow at a coordinate.
type TrafficSnapshot struct {
	// CongestionRatio is current speed over free-flow speed; it may exceed 1.
	CongestionRatio float64 `json:"congestion_ratio"`
	Confidence      float64 `json:"confidence"`
}

// Neutral values used whenever a provider cannot answer.
var (
	DefaultWeather = WeatherSnapshot{Temperature: 20, Humidity: 50, Condition: "Clear"}
	DefaultTraffic = TrafficSnapshot{CongestionRatio: 0.5, Confidence: 0.5}
)

// WeatherSource fetches weather from a single upstream API.
type WeatherSource interface {
	Name() string
	FetchWeather(ctx context.Context, c geo.Coordinate) (WeatherSnapshot, error)
}

// TrafficSource fetches traffic flow from a single upstream API.
type TrafficSource interface {
	Name() string
	FetchTraffic(ctx context.Context, c geo.Coordinate) (TrafficSnapshot, error)
}

// Weather wraps one or more WeatherSources so callers always receive a
// snapshot. Sources are tried in order; the first answer wins.
type Weather struct {
	sources []WeatherSource
	metrics *observability.Metrics
}

// NewWeather creates a Weather signal. With no sources it always yields
// DefaultWeather.
func NewWeather(metrics *observability.Metrics, sources ...WeatherSource) *Weather {
	return &Weather{sources: sources, metrics: metrics}
}

// Current returns the weather at c, or DefaultWeather when every source fails.
func (w *Weather) Current(ctx context.Context, c geo.Coordinate) WeatherSnapshot {
	for _, src := range w.sources {
		snap, err := src.FetchWeather(ctx, c)
		if err == nil {
			return snap
		}
		log.Printf("weather: %s failed for %s: %v", src.Name(), c, err)
	}
	if len(w.sources) > 0 {
		w.metrics.ObserveSignalFallback("weather")
	}
	return DefaultWeather
}

// Traffic wraps a TrafficSource so callers always receive a snapshot.
type Traffic struct {
	source  TrafficSource
	metrics *observability.Metrics
}

// NewTraffic creates a Traffic signal. A nil source always yields DefaultTraffic.
func NewTraffic(source TrafficSource, metrics *observability.Metrics) *Traffic {
	return &Traffic{source: source, metrics: metrics}
}

// Current returns the traffic flow at c, or DefaultTraffic on any failure.
func (t *Traffic) Current(ctx context.Context, c geo.Coordinate) TrafficSnapshot {
	if t.source == nil {
		return DefaultTraffic
	}
	snap, err := t.source.FetchTraffic(ctx, c)
	if err != nil {
		log.Printf("traffic: %s failed for %s: %v", t.source.Name(), c, err)
		t.metrics.ObserveSignalFallback("traffic")
		return DefaultTraffic
	}
	return snap
}
