package monitor

import (
	"context"
	"strings"
	"time"

	"github.com/i474232898/infrastructure-risk/internal/geo"
	"github.com/i474232898/infrastructure-risk/internal/infrastructure"
	"github.com/i474232898/infrastructure-risk/internal/risk"
)

// Request scopes one search: which place, and how far around it to look.
type Request struct {
	City     string  `json:"city" validate:"max=200"`
	RadiusKM float64 `json:"radius" validate:"gt=0"`
}

// Key returns a canonical string key for indexing results by city.
func (r Request) Key() string {
	return CityKey(r.City)
}

// CityKey normalizes a city name for store lookups.
func CityKey(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

// Assessment is one scored infrastructure record.
type Assessment struct {
	ID          int                 `json:"id"`
	Name        string              `json:"name"`
	Type        infrastructure.Type `json:"type"`
	Latitude    float64             `json:"latitude"`
	Longitude   float64             `json:"longitude"`
	RiskScore   float64             `json:"risk_score"`
	RiskFactors risk.Factors        `json:"risk_factors"`
}

// Result is the outcome of a search.
type Result struct {
	RunID          string         `json:"run_id"`
	City           string         `json:"city"`
	RadiusKM       float64        `json:"radius_km"`
	Center         geo.Coordinate `json:"center"`
	Infrastructure []Assessment   `json:"infrastructure"`
	GeneratedAt    time.Time      `json:"generated_at"` // always UTC
}

// Resolver maps a place name to a coordinate and always succeeds.
type Resolver interface {
	Resolve(ctx context.Context, place string) geo.Coordinate
}

// Discoverer finds infrastructure around a point and always succeeds.
type Discoverer interface {
	Discover(ctx context.Context, center geo.Coordinate, radiusKM float64, area string) []infrastructure.Record
}

// Persister stores discovered records and returns them with stable IDs.
type Persister interface {
	Upsert(ctx context.Context, records []infrastructure.Record) ([]infrastructure.Record, error)
}

// Store is the contract the in-memory result store must satisfy.
type Store interface {
	Save(result Result)
	Latest(city string) (Result, error)
	Range(city string, from, to time.Time) ([]Result, error)
}
