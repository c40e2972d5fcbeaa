package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/infrastructure-risk/internal/geo"
)

// geocoderMu serializes access to the geocoder package's global API key.
var geocoderMu sync.Mutex

// GoogleGeocoder implements geo.Geocoder with the Google Geocoding API.
type GoogleGeocoder struct {
	name    string
	apiKey  string
	geocode func(geocoder.Address) (geocoder.Location, error)
}

func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	return &GoogleGeocoder{
		name:    "google",
		apiKey:  apiKey,
		geocode: geocoder.Geocoding,
	}
}

func (g *GoogleGeocoder) Name() string {
	return g.name
}

// Geocode resolves a free-text place; the whole string is sent as the city.
func (g *GoogleGeocoder) Geocode(ctx context.Context, place string) (geo.Coordinate, error) {
	if g.apiKey == "" {
		return geo.Coordinate{}, fmt.Errorf("google geocoder: %w", errMissingAPIKey)
	}
	if err := ctx.Err(); err != nil {
		return geo.Coordinate{}, err
	}

	geocoderMu.Lock()
	geocoder.ApiKey = g.apiKey
	loc, err := g.geocode(geocoder.Address{City: place})
	geocoderMu.Unlock()
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("google geocode: %w", err)
	}
	if loc.Latitude == 0 && loc.Longitude == 0 {
		return geo.Coordinate{}, geo.ErrNoResults
	}
	return geo.Coordinate{Lat: loc.Latitude, Lon: loc.Longitude}, nil
}
