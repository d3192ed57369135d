package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BACKEND", "redis")
	t.Setenv("INTERVAL", "")
	t.Setenv("NODE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Backend)
	assert.Equal(t, "USMLibrary/Desk01", cfg.LivePath)
	assert.Equal(t, "USMLibrary/Desk01Logs", cfg.LogPath)
	assert.Equal(t, 2*time.Second, cfg.Interval)
	assert.Equal(t, 30*time.Second, cfg.MinInterval)
	assert.False(t, cfg.RunOnce)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/study")
	t.Setenv("INTERVAL", "5s")
	t.Setenv("MIN_INTERVAL", "1m")
	t.Setenv("RUN_ONCE", "true")
	t.Setenv("REDIS_DB", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Interval)
	assert.Equal(t, time.Minute, cfg.MinInterval)
	assert.True(t, cfg.RunOnce)
	assert.Equal(t, 2, cfg.RedisDB)
}

func TestLoadErrors(t *testing.T) {
	t.Setenv("DRY_RUN", "")
	t.Setenv("BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")
	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL is required")

	t.Setenv("BACKEND", "sqlite")
	_, err = Load()
	assert.ErrorContains(t, err, "invalid BACKEND")

	t.Setenv("BACKEND", "redis")
	t.Setenv("INTERVAL", "often")
	_, err = Load()
	assert.ErrorContains(t, err, "invalid INTERVAL")
}
