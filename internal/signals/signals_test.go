package signals

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/i474232898/infrastructure-risk/internal/geo"
	"github.com/i474232898/infrastructure-risk/internal/observability"
)

type stubWeather struct {
	name  string
	snap  WeatherSnapshot
	err   error
	calls int
}

func (s *stubWeather) Name() string { return s.name }

func (s *stubWeather) FetchWeather(context.Context, geo.Coordinate) (WeatherSnapshot, error) {
	s.calls++
	return s.snap, s.err
}

type stubTraffic struct {
	snap TrafficSnapshot
	err  error
}

func (s *stubTraffic) Name() string { return "stub" }

func (s *stubTraffic) FetchTraffic(context.Context, geo.Coordinate) (TrafficSnapshot, error) {
	return s.snap, s.err
}

func TestWeatherCurrent(t *testing.T) {
	ctx := context.Background()
	metrics := observability.NewMetricsForTesting()
	rain := WeatherSnapshot{Temperature: 12.5, Humidity: 90, Condition: "Rain"}

	t.Run("first source answers", func(t *testing.T) {
		first := &stubWeather{name: "a", snap: rain}
		second := &stubWeather{name: "b"}
		w := NewWeather(metrics, first, second)
		assert.Equal(t, rain, w.Current(ctx, geo.DefaultCenter))
		assert.Zero(t, second.calls)
	})

	t.Run("falls through to next source", func(t *testing.T) {
		first := &stubWeather{name: "a", err: errors.New("401")}
		second := &stubWeather{name: "b", snap: rain}
		w := NewWeather(metrics, first, second)
		assert.Equal(t, rain, w.Current(ctx, geo.DefaultCenter))
		assert.Equal(t, 1, first.calls)
	})

	t.Run("all sources fail", func(t *testing.T) {
		w := NewWeather(metrics, &stubWeather{name: "a", err: errors.New("timeout")})
		assert.Equal(t, DefaultWeather, w.Current(ctx, geo.DefaultCenter))
	})

	t.Run("no sources", func(t *testing.T) {
		assert.Equal(t, DefaultWeather, NewWeather(nil).Current(ctx, geo.DefaultCenter))
	})
}

func TestTrafficCurrent(t *testing.T) {
	ctx := context.Background()
	flow := TrafficSnapshot{CongestionRatio: 0.72, Confidence: 0.95}

	assert.Equal(t, flow, NewTraffic(&stubTraffic{snap: flow}, nil).Current(ctx, geo.DefaultCenter))
	assert.Equal(t, DefaultTraffic, NewTraffic(&stubTraffic{err: errors.New("403")}, nil).Current(ctx, geo.DefaultCenter))
	assert.Equal(t, DefaultTraffic, NewTraffic(nil, nil).Current(ctx, geo.DefaultCenter))
}

func TestDefaults(t *testing.T) {
	assert.Equal(t, WeatherSnapshot{Temperature: 20, Humidity: 50, Condition: "Clear"}, DefaultWeather)
	assert.Equal(t, TrafficSnapshot{CongestionRatio: 0.5, Confidence: 0.5}, DefaultTraffic)
}
