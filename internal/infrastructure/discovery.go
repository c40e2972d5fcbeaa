package infrastructure

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/infrastructure-risk/internal/geo"
	"github.com/i474232898/infrastructure-risk/internal/observability"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 5 * time.Second
)

// DelayFunc blocks for d or until ctx is done.
type DelayFunc func(ctx context.Context, d time.Duration) error

// ClockDelay returns a DelayFunc driven by clock.
func ClockDelay(clock clockwork.Clock) DelayFunc {
	return func(ctx context.Context, d time.Duration) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(d):
			return nil
		}
	}
}

// Discoverer pulls roads, bridges and railway stations around a point from a
// map backend.
type Discoverer struct {
	querier     MapQuerier
	maxAttempts int
	baseDelay   time.Duration
	delay       DelayFunc
	metrics     *observability.Metrics
}

// Option customizes a Discoverer.
type Option func(*Discoverer)

// WithMaxAttempts sets the total number of attempts (values < 1 mean 1).
func WithMaxAttempts(n int) Option {
	return func(d *Discoverer) {
		if n < 1 {
			n = 1
		}
		d.maxAttempts = n
	}
}

// WithBaseDelay sets the delay unit; attempt n waits BaseDelay*n first.
func WithBaseDelay(delay time.Duration) Option {
	return func(d *Discoverer) { d.baseDelay = delay }
}

// WithDelayFunc replaces the wall-clock wait between attempts.
func WithDelayFunc(fn DelayFunc) Option {
	return func(d *Discoverer) { d.delay = fn }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Discoverer) { d.metrics = m }
}

// NewDiscoverer creates a Discoverer with three attempts and a 5s base delay.
func NewDiscoverer(querier MapQuerier, opts ...Option) *Discoverer {
	d := &Discoverer{
		querier:     querier,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		delay:       ClockDelay(clockwork.NewRealClock()),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover returns the infrastructure within radiusKM of center, scoped to
// area when the backend knows it. It never fails: once attempts are
// exhausted the result is empty.
func (d *Discoverer) Discover(ctx context.Context, center geo.Coordinate, radiusKM float64, area string) []Record {
	radius := radiusKM * 1000

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if attempt > 1 {
			wait := d.baseDelay * time.Duration(attempt)
			if err := d.delay(ctx, wait); err != nil {
				log.Printf("discovery: giving up while waiting to retry: %v", err)
				break
			}
		}

		elems, err := d.query(ctx, center, radius, area)
		if err == nil {
			d.metrics.ObserveDiscoveryAttempt("success")
			records, skipped := Build(elems)
			for i := 0; i < skipped; i++ {
				d.metrics.ObserveSkippedElement()
			}
			d.metrics.ObserveRecords(len(records))
			if len(records) == 0 {
				log.Printf("INFO: discovery: no infrastructure found around %s", center)
			} else {
				log.Printf("INFO: discovery: found %d infrastructure points", len(records))
			}
			return records
		}

		if errors.Is(err, ErrRateLimited) {
			d.metrics.ObserveDiscoveryAttempt("rate_limited")
			if attempt < d.maxAttempts {
				log.Printf("discovery: server busy, retrying in %s", d.baseDelay*time.Duration(attempt+1))
			}
			continue
		}

		d.metrics.ObserveDiscoveryAttempt("error")
		log.Printf("ERROR: discovery: attempt %d/%d failed: %v", attempt, d.maxAttempts, err)
	}

	d.metrics.ObserveRecords(0)
	return make([]Record, 0)
}

// query runs the area-scoped query and falls back to the radius-only query
// when the area variant fails for any reason other than rate limiting or
// comes back empty.
func (d *Discoverer) query(ctx context.Context, center geo.Coordinate, radius float64, area string) (Elements, error) {
	if area != "" {
		elems, err := d.querier.Query(ctx, AreaQuery(area, center, radius))
		switch {
		case err == nil && elems.Len() > 0:
			return elems, nil
		case errors.Is(err, ErrRateLimited):
			return Elements{}, err
		case err != nil:
			log.Printf("discovery: area query for %q failed, falling back to radius query: %v", area, err)
		default:
			log.Printf("discovery: area %q matched nothing, falling back to radius query", area)
		}
		d.metrics.ObserveDiscoveryFallback()
	}
	return d.querier.Query(ctx, AroundQuery(center, radius))
}
