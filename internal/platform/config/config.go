// Package config loads service configuration from the environment once at
// startup. There is no hot reload: every component receives its settings at
// construction time.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds every tunable the service reads. Variables use the ECPLACAS_
// prefix, e.g. ECPLACAS_HTTP_ADDR.
type Config struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	// Upstream registry endpoints.
	RegistryBaseURL string `envconfig:"REGISTRY_BASE_URL" default:"https://srienlinea.sri.gob.ec/sri-matriculacion-vehicular-recaudacion-servicio-internet/rest"`
	OwnerAPIURL     string `envconfig:"OWNER_API_URL" default:""`

	// Per-fetch timeout and retry budget for upstream calls.
	QueryTimeout time.Duration `envconfig:"QUERY_TIMEOUT" default:"30s"`
	MaxRetries   int           `envconfig:"MAX_RETRIES" default:"3"`
	RetryBackoff time.Duration `envconfig:"RETRY_BACKOFF" default:"500ms"`

	// Caller-side rate limit per origin.
	MaxQueriesPerHour int `envconfig:"MAX_QUERIES_PER_HOUR" default:"50"`

	// Cache policy.
	CacheTTL           time.Duration `envconfig:"CACHE_TTL" default:"24h"`
	CacheMaxEntries    int           `envconfig:"CACHE_MAX_ENTRIES" default:"1000"`
	CacheSweepInterval time.Duration `envconfig:"CACHE_SWEEP_INTERVAL" default:"1h"`

	// Optional backends. Empty values select the in-memory implementations.
	RedisURL    string `envconfig:"REDIS_URL" default:""`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load parses the environment into a Config and validates the values that
// would otherwise fail deep inside a component.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("ecplacas", &cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that components assume away.
func (c *Config) Validate() error {
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("query timeout must be positive, got %s", c.QueryTimeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.MaxQueriesPerHour <= 0 {
		return fmt.Errorf("max queries per hour must be positive, got %d", c.MaxQueriesPerHour)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %s", c.CacheTTL)
	}
	if c.CacheMaxEntries <= 0 {
		return fmt.Errorf("cache max entries must be positive, got %d", c.CacheMaxEntries)
	}
	return nil
}

// QueryBudget is the overall wall-clock bound for one orchestrated query:
// every attempt may consume the full timeout, plus the worst-case backoff
// spent between attempts.
func (c *Config) QueryBudget() time.Duration {
	budget := c.QueryTimeout * time.Duration(c.MaxRetries+1)
	backoff := c.RetryBackoff
	for i := 0; i < c.MaxRetries; i++ {
		budget += backoff
		backoff *= 2
	}
	return budget
}
