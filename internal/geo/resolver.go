package geo

import (
	"context"
	"errors"
	"log"

	"github.com/i474232898/infrastructure-risk/internal/observability"
)

// ErrNoResults is returned by geocoders when the backend found nothing.
var ErrNoResults = errors.New("geocoder returned no results")

// Geocoder abstracts a forward geocoding backend (Nominatim, Google).
type Geocoder interface {
	Name() string
	Geocode(ctx context.Context, place string) (Coordinate, error)
}

// Resolver turns place names into coordinates and never fails: any backend
// problem yields DefaultCenter.
type Resolver struct {
	geocoder Geocoder
	metrics  *observability.Metrics
}

// NewResolver creates a Resolver. A nil geocoder always resolves to DefaultCenter.
func NewResolver(geocoder Geocoder, metrics *observability.Metrics) *Resolver {
	return &Resolver{geocoder: geocoder, metrics: metrics}
}

// Resolve returns the coordinate of the first geocoding match for place.
func (r *Resolver) Resolve(ctx context.Context, place string) Coordinate {
	if r.geocoder == nil {
		return DefaultCenter
	}

	c, err := r.geocoder.Geocode(ctx, place)
	if err == nil && !c.Valid() {
		err = errors.New("geocoder returned an invalid coordinate")
	}
	if err != nil {
		log.Printf("geocode: %s lookup for %q failed, using default center: %v", r.geocoder.Name(), place, err)
		r.metrics.ObserveGeocodeFallback()
		return DefaultCenter
	}

	log.Printf("INFO: found coordinates for %s: %s", place, c)
	return c
}
