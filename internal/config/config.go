package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/infrastructure-risk/internal/common"
	"github.com/i474232898/infrastructure-risk/internal/monitor"
)

type AppConfig struct {
	OpenWeatherAPIKey string
	WeatherAPIKey     string
	TomTomAPIKey      string

	// WeatherProviders lists weather sources in the order they are tried.
	WeatherProviders []string

	// GoogleGeocoderAPIKey switches geocoding from Nominatim to Google.
	GoogleGeocoderAPIKey string
	NominatimURL         string
	OverpassURL          string

	// HTTPTimeout bounds every outbound provider call.
	HTTPTimeout time.Duration

	// Discovery retry policy.
	DiscoveryMaxAttempts int
	DiscoveryBaseDelay   time.Duration

	MaxRadiusKM float64

	// DatabaseURL enables the PostGIS persistence gateway when set.
	DatabaseURL string

	// Cities refreshed by the scheduler, every RefreshInterval.
	WatchRequests   []monitor.Request
	RefreshInterval time.Duration

	// In-memory store retention.
	StoreMaxHistory int           // max number of results per city (0 = unlimited)
	StoreMaxAge     time.Duration // max age of results (0 = unlimited)

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}
	var err error

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")
	cfg.TomTomAPIKey = os.Getenv("TOMTOM_API_KEY")
	cfg.GoogleGeocoderAPIKey = os.Getenv("GOOGLE_GEOCODER_API_KEY")
	cfg.NominatimURL = os.Getenv("NOMINATIM_URL")
	cfg.OverpassURL = os.Getenv("OVERPASS_URL")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.Port = getenvDefault("PORT", "8080")

	cfg.WeatherProviders = common.SplitList(getenvDefault("WEATHER_PROVIDERS", "openweather"), ",")
	for _, name := range cfg.WeatherProviders {
		if !knownWeatherProviders[name] {
			return nil, fmt.Errorf("unknown weather provider %q in WEATHER_PROVIDERS", name)
		}
	}

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.DiscoveryBaseDelay, err = getenvDuration("DISCOVERY_BASE_DELAY", "5s"); err != nil {
		return nil, err
	}
	if cfg.DiscoveryMaxAttempts, err = getenvInt("DISCOVERY_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.DiscoveryMaxAttempts < 1 {
		return nil, fmt.Errorf("invalid DISCOVERY_MAX_ATTEMPTS: %d", cfg.DiscoveryMaxAttempts)
	}

	if cfg.MaxRadiusKM, err = getenvFloat("MAX_RADIUS_KM", monitor.DefaultMaxRadiusKM); err != nil {
		return nil, err
	}

	// Scheduler interval: default 15 minutes.
	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", "15m"); err != nil {
		return nil, err
	}

	// Store retention; 96 is roughly 24h at 15-minute intervals.
	if cfg.StoreMaxHistory, err = getenvInt("STORE_MAX_HISTORY", 96); err != nil {
		return nil, err
	}
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "24h"); err != nil {
		return nil, err
	}

	reqs, err := loadWatchRequests()
	if err != nil {
		return nil, err
	}
	cfg.WatchRequests = reqs

	return cfg, nil
}

var knownWeatherProviders = map[string]bool{
	"openweather": true,
	"weatherapi":  true,
	"openmeteo":   true,
}

// loadWatchRequests reads WATCH_CITIES as a ';'-separated list, since city
// names commonly contain commas ("Washington, DC").
func loadWatchRequests() ([]monitor.Request, error) {
	radius, err := getenvFloat("WATCH_RADIUS_KM", monitor.DefaultRadiusKM)
	if err != nil {
		return nil, err
	}
	if radius <= 0 {
		return nil, fmt.Errorf("WATCH_RADIUS_KM must be positive")
	}

	var reqs []monitor.Request
	for _, city := range common.SplitList(os.Getenv("WATCH_CITIES"), ";") {
		reqs = append(reqs, monitor.Request{City: city, RadiusKM: radius})
	}
	return reqs, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
