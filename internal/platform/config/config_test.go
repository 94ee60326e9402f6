package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 50, cfg.MaxQueriesPerHour)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 1000, cfg.CacheMaxEntries)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ECPLACAS_QUERY_TIMEOUT", "5s")
	t.Setenv("ECPLACAS_MAX_QUERIES_PER_HOUR", "10")
	t.Setenv("ECPLACAS_CACHE_TTL", "1h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 10, cfg.MaxQueriesPerHour)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
}

func TestValidate(t *testing.T) {
	t.Run("zero timeout rejected", func(t *testing.T) {
		cfg := Config{QueryTimeout: 0, MaxQueriesPerHour: 1, CacheTTL: time.Hour, CacheMaxEntries: 1}
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative retries rejected", func(t *testing.T) {
		cfg := Config{QueryTimeout: time.Second, MaxRetries: -1, MaxQueriesPerHour: 1, CacheTTL: time.Hour, CacheMaxEntries: 1}
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero cache capacity rejected", func(t *testing.T) {
		cfg := Config{QueryTimeout: time.Second, MaxQueriesPerHour: 1, CacheTTL: time.Hour, CacheMaxEntries: 0}
		assert.Error(t, cfg.Validate())
	})
}

func TestQueryBudget(t *testing.T) {
	cfg := Config{QueryTimeout: 10 * time.Second, MaxRetries: 2, RetryBackoff: time.Second}
	// 3 attempts x 10s, plus backoffs of 1s and 2s between attempts.
	assert.Equal(t, 33*time.Second, cfg.QueryBudget())
}
