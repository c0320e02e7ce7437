package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "memory", cfg.Queue.Type)
	assert.Equal(t, 72*time.Hour, cfg.Auth.ActivationTTL)
	assert.Equal(t, "log", cfg.Mail.Transport)
	assert.Equal(t, "starttls", cfg.Mail.Security)
	assert.Equal(t, cfg.Log.Level, cfg.Database.LogLevel)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GATHERLY_SERVER_PORT", "9090")
	t.Setenv("GATHERLY_QUEUE_TYPE", "valkey")
	t.Setenv("GATHERLY_NOTIFY_MAX_RETRIES", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "valkey", cfg.Queue.Type)
	assert.Equal(t, uint64(5), cfg.Notify.MaxRetries)
}
