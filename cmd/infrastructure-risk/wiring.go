package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/i474232898/infrastructure-risk/internal/config"
	"github.com/i474232898/infrastructure-risk/internal/geo"
	"github.com/i474232898/infrastructure-risk/internal/infrastructure"
	"github.com/i474232898/infrastructure-risk/internal/monitor"
	"github.com/i474232898/infrastructure-risk/internal/observability"
	"github.com/i474232898/infrastructure-risk/internal/providers"
	"github.com/i474232898/infrastructure-risk/internal/risk"
	"github.com/i474232898/infrastructure-risk/internal/signals"
	"github.com/i474232898/infrastructure-risk/internal/store"
)

// dependencies owns the service and everything that needs closing.
type dependencies struct {
	Service *monitor.Service
	db      *store.PostGIS
}

func (d *dependencies) Close() {
	if d.db != nil {
		d.db.Close()
	}
}

func buildService(ctx context.Context, cfg *config.AppConfig, metrics *observability.Metrics) (*dependencies, error) {
	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	var geocoder geo.Geocoder
	if cfg.GoogleGeocoderAPIKey != "" {
		geocoder = providers.NewGoogleGeocoder(cfg.GoogleGeocoderAPIKey)
	} else {
		geocoder = providers.NewNominatimGeocoder(httpClient, cfg.NominatimURL)
	}
	log.Printf("INFO: geocoding with %s", geocoder.Name())

	resolver := geo.NewResolver(geocoder, metrics)

	discoverer := infrastructure.NewDiscoverer(
		providers.NewOverpassClient(httpClient, cfg.OverpassURL),
		infrastructure.WithMaxAttempts(cfg.DiscoveryMaxAttempts),
		infrastructure.WithBaseDelay(cfg.DiscoveryBaseDelay),
		infrastructure.WithMetrics(metrics),
	)

	var weatherSources []signals.WeatherSource
	for _, name := range cfg.WeatherProviders {
		switch name {
		case "openweather":
			weatherSources = append(weatherSources, providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey))
		case "weatherapi":
			weatherSources = append(weatherSources, providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey))
		case "openmeteo":
			weatherSources = append(weatherSources, providers.NewOpenMeteoProvider(httpClient))
		}
	}

	scorer := risk.NewScorer(
		signals.NewWeather(metrics, weatherSources...),
		signals.NewTraffic(providers.NewTomTomProvider(httpClient, cfg.TomTomAPIKey), metrics),
		nil,
	)

	opts := []monitor.Option{
		monitor.WithStore(store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)),
		monitor.WithMaxRadius(cfg.MaxRadiusKM),
		monitor.WithMetrics(metrics),
	}

	deps := &dependencies{}
	if cfg.DatabaseURL != "" {
		db, err := store.NewPostGIS(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		deps.db = db
		opts = append(opts, monitor.WithPersister(db))
		log.Println("INFO: persisting infrastructure to PostGIS")
	}

	deps.Service = monitor.NewService(resolver, discoverer, scorer, opts...)
	return deps, nil
}
