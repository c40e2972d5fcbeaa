package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/i474232898/infrastructure-risk/internal/geo"
	"github.com/i474232898/infrastructure-risk/internal/infrastructure"
	"github.com/i474232898/infrastructure-risk/internal/observability"
	"github.com/i474232898/infrastructure-risk/internal/risk"
)

const (
	DefaultCity        = "Washington, DC"
	DefaultRadiusKM    = 5.0
	DefaultMaxRadiusKM = 50.0
)

var (
	// ErrInvalidRequest is the only error a search surfaces to its caller.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNoStore is returned by store-backed calls when no store is configured.
	ErrNoStore = errors.New("no assessment store configured")
)

var validate = validator.New()

// Service orchestrates resolving, discovery, persistence and scoring.
type Service struct {
	resolver    Resolver
	discoverer  Discoverer
	scorer      *risk.Scorer
	persister   Persister
	store       Store
	clock       clockwork.Clock
	maxRadiusKM float64
	metrics     *observability.Metrics
}

// Option customizes a Service.
type Option func(*Service)

// WithPersister upserts discovered records before scoring.
func WithPersister(p Persister) Option {
	return func(s *Service) { s.persister = p }
}

// WithStore keeps refreshed results for later reads.
func WithStore(st Store) Option {
	return func(s *Service) { s.store = st }
}

// WithClock replaces the time source used for result timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithMaxRadius caps the accepted search radius in kilometers.
func WithMaxRadius(km float64) Option {
	return func(s *Service) { s.maxRadiusKM = km }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a new Service.
func NewService(resolver Resolver, discoverer Discoverer, scorer *risk.Scorer, opts ...Option) *Service {
	s := &Service{
		resolver:    resolver,
		discoverer:  discoverer,
		scorer:      scorer,
		clock:       clockwork.NewRealClock(),
		maxRadiusKM: DefaultMaxRadiusKM,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search resolves req.City, discovers infrastructure within req.RadiusKM and
// scores every record. Upstream failures degrade to neutral data; only an
// invalid request returns an error.
func (s *Service) Search(ctx context.Context, req Request) (Result, error) {
	req, err := s.normalize(req)
	if err != nil {
		return Result{}, err
	}

	start := s.clock.Now()
	center := s.resolver.Resolve(ctx, req.City)
	records := s.discover(ctx, req, center)

	assessments := make([]Assessment, 0, len(records))
	for _, r := range records {
		score, factors := s.scorer.Score(ctx, r.ID, records)
		assessments = append(assessments, Assessment{
			ID:          r.ID,
			Name:        r.Name,
			Type:        r.Type,
			Latitude:    r.Location.Lat,
			Longitude:   r.Location.Lon,
			RiskScore:   score,
			RiskFactors: factors,
		})
	}
	s.metrics.ObserveSearch(s.clock.Since(start))

	return Result{
		RunID:          uuid.NewString(),
		City:           req.City,
		RadiusKM:       req.RadiusKM,
		Center:         center,
		Infrastructure: assessments,
		GeneratedAt:    s.clock.Now().UTC(),
	}, nil
}

// BatchUpdate rediscovers infrastructure for req and rescores all of it.
func (s *Service) BatchUpdate(ctx context.Context, req Request) ([]risk.Update, error) {
	req, err := s.normalize(req)
	if err != nil {
		return nil, err
	}
	center := s.resolver.Resolve(ctx, req.City)
	records := s.discover(ctx, req, center)
	return s.scorer.UpdateAll(ctx, records), nil
}

// Refresh runs a search and saves the result in the store.
func (s *Service) Refresh(ctx context.Context, req Request) error {
	if s.store == nil {
		return ErrNoStore
	}
	result, err := s.Search(ctx, req)
	if err != nil {
		return err
	}
	s.store.Save(result)
	log.Printf("INFO: refreshed %d assessments for %s", len(result.Infrastructure), result.City)
	return nil
}

// Latest delegates to the underlying store.
func (s *Service) Latest(city string) (Result, error) {
	if s.store == nil {
		return Result{}, ErrNoStore
	}
	return s.store.Latest(city)
}

// History delegates to the underlying store.
func (s *Service) History(city string, from, to time.Time) ([]Result, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.Range(city, from, to)
}

func (s *Service) discover(ctx context.Context, req Request, center geo.Coordinate) []infrastructure.Record {
	records := s.discoverer.Discover(ctx, center, req.RadiusKM, req.City)
	if s.persister == nil || len(records) == 0 {
		return records
	}

	stored, err := s.persister.Upsert(ctx, records)
	if err != nil {
		log.Printf("ERROR: persisting %d records for %s failed, keeping local ids: %v", len(records), req.City, err)
		s.metrics.ObservePersistError()
		return records
	}
	return stored
}

// normalize fills defaults and validates the request.
func (s *Service) normalize(req Request) (Request, error) {
	req.City = strings.TrimSpace(req.City)
	if req.City == "" {
		req.City = DefaultCity
	}
	if err := validate.Struct(req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if s.maxRadiusKM > 0 && req.RadiusKM > s.maxRadiusKM {
		return req, fmt.Errorf("%w: radius must be at most %g km", ErrInvalidRequest, s.maxRadiusKM)
	}
	return req, nil
}
