// Package config loads runtime configuration from the environment, with an
// optional .env file for local development. Every optional value has a
// default; only the API key is required to talk to the real upstream.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingAPIKey is returned by Validate when no OpenAQ key is configured.
var ErrMissingAPIKey = errors.New("config: OPENAQ_API_KEY is not set")

// Config is the configuration surface consumed by the exploration pipeline.
type Config struct {
	// APIKey authenticates against the OpenAQ API (OPENAQ_API_KEY).
	APIKey string

	// BaseURL overrides the OpenAQ endpoint, mainly for tests.
	BaseURL string

	// CountryISO filters the traversal. Default: "SN".
	CountryISO string

	// OutputDir receives exported artifacts. Default: data/exploration.
	OutputDir string

	// RequestTimeout applies per upstream request. Default: 10s.
	RequestTimeout time.Duration

	// MaxRetries bounds retries for transient failures. Default: 3.
	MaxRetries uint64

	// Concurrency bounds parallel station fetches. Default: 3; kept small
	// because of the upstream request quota.
	Concurrency int

	// RunTimeout is the wall-clock ceiling for a whole traversal.
	// Default: 15m.
	RunTimeout time.Duration

	// PageLimit is the page size for paginated endpoints. Default: 100.
	PageLimit int

	// WatchInterval is the pause between scheduled runs in watch mode.
	// Default: 6h.
	WatchInterval time.Duration

	// TelemetryEnabled turns on OTLP trace/metric export (OTEL_ENABLED).
	TelemetryEnabled bool

	// OTLPEndpoint is the OTLP gRPC collector endpoint.
	OTLPEndpoint string
}

// Load reads configuration from a .env file (when present) and the
// environment. Missing optional values fall back to defaults and never
// prevent a run.
func Load() (*Config, error) {
	// Best effort; a missing .env file is the normal case outside dev.
	_ = godotenv.Load()

	cfg := &Config{
		APIKey:       os.Getenv("OPENAQ_API_KEY"),
		BaseURL:      getenvDefault("OPENAQ_BASE_URL", ""),
		CountryISO:   getenvDefault("AIRWATCH_COUNTRY", "SN"),
		OutputDir:    getenvDefault("AIRWATCH_OUTPUT_DIR", "data/exploration"),
		Concurrency:  getenvInt("AIRWATCH_CONCURRENCY", 3),
		PageLimit:    getenvInt("AIRWATCH_PAGE_LIMIT", 100),
		OTLPEndpoint: getenvDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	cfg.TelemetryEnabled = os.Getenv("OTEL_ENABLED") == "true"

	var err error
	if cfg.RequestTimeout, err = getenvDuration("AIRWATCH_REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RunTimeout, err = getenvDuration("AIRWATCH_RUN_TIMEOUT", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.WatchInterval, err = getenvDuration("AIRWATCH_WATCH_INTERVAL", 6*time.Hour); err != nil {
		return nil, err
	}

	retries := getenvInt("AIRWATCH_MAX_RETRIES", 3)
	if retries < 0 {
		retries = 0
	}
	cfg.MaxRetries = uint64(retries)

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 100
	}

	return cfg, nil
}

// Validate checks the values a real run cannot work without.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
