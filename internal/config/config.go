// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Metrics backends.
const (
	MetricsPrometheus = "prometheus"
	MetricsInMemory   = "inmemory"
	MetricsNoop       = "noop"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Snapshot store (PostgreSQL). Empty keeps the ledger in memory only.
	DatabaseURL string `env:"DATABASE_URL"`

	// Cache (Redis). Empty falls back to in-process rate limiting and
	// geolocation caching.
	RedisURL string `env:"REDIS_URL"`

	// Admission policy YAML. Empty uses the built-in default policy.
	PolicyFile string `env:"POLICY_FILE"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Geolocation. The HTTP providers can be switched off for mmdb-only
	// deployments.
	GeoPrimaryEnabled   bool          `env:"GEO_PRIMARY_ENABLED" envDefault:"true"`
	GeoSecondaryEnabled bool          `env:"GEO_SECONDARY_ENABLED" envDefault:"true"`
	GeoPrimaryURL       string        `env:"GEO_PRIMARY_URL" envDefault:"http://ip-api.com"`
	GeoSecondaryURL     string        `env:"GEO_SECONDARY_URL" envDefault:"https://ipinfo.io"`
	GeoSecondaryToken   string        `env:"GEO_SECONDARY_TOKEN"`
	GeoMMDBPath         string        `env:"GEO_MMDB_PATH"`
	GeoAnonMMDBPath     string        `env:"GEO_ANON_MMDB_PATH"`
	GeoTimeout          time.Duration `env:"GEO_TIMEOUT" envDefault:"3s"`
	GeoRateLimit        float64       `env:"GEO_RATE_LIMIT" envDefault:"0.75"` // requests/s against the primary
	GeoCacheSize        int           `env:"GEO_CACHE_SIZE" envDefault:"10000"`
	GeoCacheTTL         time.Duration `env:"GEO_CACHE_TTL" envDefault:"6h"`

	// Rate limiting for POST /api/clicks, per client IP
	RateLimitClicksEnabled bool `env:"RATE_LIMIT_CLICKS_ENABLED" envDefault:"true"`
	RateLimitClicksRPS     int  `env:"RATE_LIMIT_CLICKS_RPS" envDefault:"20"`
	RateLimitClicksBurst   int  `env:"RATE_LIMIT_CLICKS_BURST" envDefault:"40"`

	// Snapshot flush interval, only used with DATABASE_URL
	SnapshotInterval time.Duration `env:"SNAPSHOT_INTERVAL" envDefault:"10s"`

	// Number of leaderboard entries pushed to WebSocket subscribers
	LeaderboardBroadcastSize int `env:"LEADERBOARD_BROADCAST_SIZE" envDefault:"10"`

	// Metrics backend: prometheus, inmemory or noop
	MetricsBackend string `env:"METRICS_BACKEND" envDefault:"prometheus"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes. Click batches are tiny.
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"16384"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate rejects values env parsing accepts but the server cannot use.
func (c *Config) Validate() error {
	var errs []error

	if c.AppPort <= 0 || c.AppPort > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT out of range: %d", c.AppPort))
	}
	switch c.MetricsBackend {
	case MetricsPrometheus, MetricsInMemory, MetricsNoop:
	default:
		errs = append(errs, fmt.Errorf("unknown METRICS_BACKEND %q", c.MetricsBackend))
	}
	if c.RateLimitClicksEnabled && (c.RateLimitClicksRPS <= 0 || c.RateLimitClicksBurst <= 0) {
		errs = append(errs, errors.New("RATE_LIMIT_CLICKS_RPS and RATE_LIMIT_CLICKS_BURST must be positive"))
	}
	if c.GeoRateLimit < 0 {
		errs = append(errs, errors.New("GEO_RATE_LIMIT must not be negative"))
	}
	if c.SnapshotInterval <= 0 {
		errs = append(errs, errors.New("SNAPSHOT_INTERVAL must be positive"))
	}
	if c.MaxRequestBodySize <= 0 {
		errs = append(errs, errors.New("MAX_REQUEST_BODY_SIZE must be positive"))
	}
	if c.GeoAnonMMDBPath != "" && c.GeoMMDBPath == "" {
		errs = append(errs, errors.New("GEO_ANON_MMDB_PATH requires GEO_MMDB_PATH"))
	}

	return errors.Join(errs...)
}

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
