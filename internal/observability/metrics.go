package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the risk monitor.
type Metrics struct {
	// Discovery metrics.
	DiscoveryAttempts *prometheus.CounterVec // labels: outcome={success,rate_limited,error}
	DiscoveryFallback prometheus.Counter
	RecordsDiscovered prometheus.Histogram
	ElementsSkipped   prometheus.Counter

	// Upstream degradation metrics.
	GeocodeFallbacks prometheus.Counter
	SignalFallbacks  *prometheus.CounterVec // labels: signal={weather,traffic}

	// Request metrics.
	SearchDuration prometheus.Histogram
	PersistErrors  prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.DiscoveryAttempts,
		m.DiscoveryFallback,
		m.RecordsDiscovered,
		m.ElementsSkipped,
		m.GeocodeFallbacks,
		m.SignalFallbacks,
		m.SearchDuration,
		m.PersistErrors,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as many
// as they like without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		DiscoveryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "infra_risk",
			Name:      "discovery_attempts_total",
			Help:      "Overpass discovery attempts by outcome.",
		}, []string{"outcome"}),
		DiscoveryFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "infra_risk",
			Name:      "discovery_fallback_queries_total",
			Help:      "Times the area-scoped query failed and the radius-only query was used.",
		}),
		RecordsDiscovered: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "infra_risk",
			Name:      "records_discovered",
			Help:      "Number of infrastructure records produced per discovery run.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}),
		ElementsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "infra_risk",
			Name:      "elements_skipped_total",
			Help:      "Map elements dropped because they could not be processed.",
		}),
		GeocodeFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "infra_risk",
			Name:      "geocode_fallbacks_total",
			Help:      "Geocoding failures answered with the default center.",
		}),
		SignalFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "infra_risk",
			Name:      "signal_fallbacks_total",
			Help:      "Signal provider failures answered with the neutral default.",
		}, []string{"signal"}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "infra_risk",
			Name:      "search_duration_seconds",
			Help:      "Duration of a complete search: resolve, discover and score.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		PersistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "infra_risk",
			Name:      "persist_errors_total",
			Help:      "Failed upserts into the persistence gateway.",
		}),
	}
}

// The helpers below tolerate a nil receiver so components can run without metrics.

func (m *Metrics) ObserveDiscoveryAttempt(outcome string) {
	if m == nil {
		return
	}
	m.DiscoveryAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveDiscoveryFallback() {
	if m == nil {
		return
	}
	m.DiscoveryFallback.Inc()
}

func (m *Metrics) ObserveRecords(n int) {
	if m == nil {
		return
	}
	m.RecordsDiscovered.Observe(float64(n))
}

func (m *Metrics) ObserveSkippedElement() {
	if m == nil {
		return
	}
	m.ElementsSkipped.Inc()
}

func (m *Metrics) ObserveGeocodeFallback() {
	if m == nil {
		return
	}
	m.GeocodeFallbacks.Inc()
}

func (m *Metrics) ObserveSignalFallback(signal string) {
	if m == nil {
		return
	}
	m.SignalFallbacks.WithLabelValues(signal).Inc()
}

func (m *Metrics) ObserveSearch(d time.Duration) {
	if m == nil {
		return
	}
	m.SearchDuration.Observe(d.Seconds())
}

func (m *Metrics) ObservePersistError() {
	if m == nil {
		return
	}
	m.PersistErrors.Inc()
}
