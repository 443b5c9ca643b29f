package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Setenv("CLUSTERDASH_API_URL", "https://dash.example.com")
	t.Setenv("CLUSTERDASH_PROVIDER_URL", "https://id.example.com")
	t.Setenv("CLUSTERDASH_TOKEN_KEY", "secret")
}

func TestFromEnvDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "https://dash.example.com", cfg.APIBaseURL)
	assert.False(t, cfg.DemoMode)
	assert.Equal(t, "clusterdash.db", cfg.DBPath)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, time.Minute, cfg.KeepAliveInterval)
	assert.Equal(t, 5*time.Minute, cfg.KeepAliveLeeway)
}

func TestFromEnvMissingRequired(t *testing.T) {
	t.Setenv("CLUSTERDASH_API_URL", "")
	_, err := FromEnv()
	assert.ErrorContains(t, err, "CLUSTERDASH_API_URL")

	t.Setenv("CLUSTERDASH_API_URL", "https://dash.example.com")
	t.Setenv("CLUSTERDASH_PROVIDER_URL", "")
	_, err = FromEnv()
	assert.ErrorContains(t, err, "CLUSTERDASH_PROVIDER_URL")

	t.Setenv("CLUSTERDASH_PROVIDER_URL", "https://id.example.com")
	t.Setenv("CLUSTERDASH_TOKEN_KEY", "")
	_, err = FromEnv()
	assert.ErrorContains(t, err, "CLUSTERDASH_TOKEN_KEY")
}

func TestFromEnvDemoModeSkipsProviderURL(t *testing.T) {
	t.Setenv("CLUSTERDASH_API_URL", "https://dash.example.com")
	t.Setenv("CLUSTERDASH_DEMO_MODE", "true")
	t.Setenv("CLUSTERDASH_TOKEN_KEY", "secret")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.DemoMode)
	assert.Empty(t, cfg.ProviderURL)
}

func TestFromEnvOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("CLUSTERDASH_MAX_RETRIES", "5")
	t.Setenv("CLUSTERDASH_KEEPALIVE_INTERVAL", "30s")
	t.Setenv("CLUSTERDASH_KEEPALIVE_LEEWAY", "2m")
	t.Setenv("CLUSTERDASH_DB_PATH", "/tmp/dash.db")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.KeepAliveInterval)
	assert.Equal(t, 2*time.Minute, cfg.KeepAliveLeeway)
	assert.Equal(t, "/tmp/dash.db", cfg.DBPath)
}

func TestFromEnvInvalidValues(t *testing.T) {
	setBaseEnv(t)

	t.Setenv("CLUSTERDASH_MAX_RETRIES", "-1")
	_, err := FromEnv()
	assert.ErrorContains(t, err, "CLUSTERDASH_MAX_RETRIES")

	t.Setenv("CLUSTERDASH_MAX_RETRIES", "")
	t.Setenv("CLUSTERDASH_KEEPALIVE_INTERVAL", "soon")
	_, err = FromEnv()
	assert.ErrorContains(t, err, "CLUSTERDASH_KEEPALIVE_INTERVAL")
}
