package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"LEITSTAND_ADDR", EnvDataDir, "LEITSTAND_TOKEN", "LEITSTAND_MAX_BODY",
		"LEITSTAND_LOCK_TIMEOUT", "LEITSTAND_RATE_LIMIT", "LEITSTAND_VERSION",
		"LOG_LEVEL", "LOG_FORMAT", "LEITSTAND_REDIS_URL", "LEITSTAND_TRUST_PROXY",
	} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, int64(1024*1024), cfg.MaxBody)
	assert.Equal(t, 30*time.Second, cfg.LockTimeout)
	assert.Equal(t, "60/minute", cfg.RateLimit)
	assert.Equal(t, "dev", cfg.Version)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Redis.URL)
	assert.False(t, cfg.TrustProxy)
	assert.ErrorIs(t, cfg.Validate(), ErrMissingToken)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("LEITSTAND_ADDR", "127.0.0.1:9000")
	t.Setenv(EnvDataDir, "/srv/leitstand")
	t.Setenv("LEITSTAND_TOKEN", "secret")
	t.Setenv("LEITSTAND_MAX_BODY", "2048")
	t.Setenv("LEITSTAND_LOCK_TIMEOUT", "5")
	t.Setenv("LEITSTAND_RATE_LIMIT", "10/second")
	t.Setenv("LEITSTAND_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("LEITSTAND_REDIS_DIAL_TIMEOUT", "250ms")
	t.Setenv("LEITSTAND_TRUST_PROXY", "true")

	cfg := FromEnv()
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, "/srv/leitstand", cfg.DataDir)
	assert.Equal(t, int64(2048), cfg.MaxBody)
	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	assert.Equal(t, "10/second", cfg.RateLimit)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, 250*time.Millisecond, cfg.Redis.DialTimeout)
	assert.True(t, cfg.TrustProxy)
	require.NoError(t, cfg.Validate())
}

func TestFromEnv_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("LEITSTAND_MAX_BODY", "lots")
	t.Setenv("LEITSTAND_LOCK_TIMEOUT", "-3")
	t.Setenv("LEITSTAND_REDIS_POOL_SIZE", "0")

	cfg := FromEnv()
	assert.Equal(t, int64(1024*1024), cfg.MaxBody)
	assert.Equal(t, 30*time.Second, cfg.LockTimeout)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
}
