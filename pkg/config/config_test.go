package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SCHEDULING_LOCK_BACKEND", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, LockBackendMemory, cfg.Scheduling.LockBackend)
	assert.Equal(t, 10*time.Second, cfg.Scheduling.LockTTL)
	assert.Equal(t, "@daily", cfg.Scheduling.PeriodSweep)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SCHEDULING_LOCK_BACKEND", "REDIS")
	t.Setenv("SCHEDULING_LOCK_TTL", "2s")
	t.Setenv("STATS_CACHE_TTL", "not-a-duration")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, LockBackendRedis, cfg.Scheduling.LockBackend)
	assert.Equal(t, 2*time.Second, cfg.Scheduling.LockTTL)
	assert.Equal(t, 5*time.Minute, cfg.Stats.CacheTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestUnknownLockBackendFallsBackToMemory(t *testing.T) {
	t.Setenv("SCHEDULING_LOCK_BACKEND", "etcd")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, LockBackendMemory, cfg.Scheduling.LockBackend)
}
