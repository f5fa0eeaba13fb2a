package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DevelopmentDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("API_BASE_URL", "https://api.example.com/api/")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/api", cfg.APIBaseURL)
	assert.Equal(t, "https://api.example.com/api/broadcasting/auth", cfg.BroadcastAuthURL)
	assert.Equal(t, 30*time.Second, cfg.ActivePollInterval)
	assert.Equal(t, int64(10), cfg.MaxUploadSizeMB)
	assert.NotEmpty(t, cfg.AllowedOrigins)
	assert.False(t, cfg.RealtimeEnabled())
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_ProductionRequiresToken(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("API_TOKEN", "")
	t.Setenv("API_BASE_URL", "https://api.example.com")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://desk.example.com")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_TrimsOrigins(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("API_TOKEN", "token")
	t.Setenv("API_BASE_URL", "https://api.example.com")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com , https://b.example.com")
	t.Setenv("REALTIME_URL", "wss://ws.example.com/app/key")
	t.Setenv("REALTIME_APP_KEY", "key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	assert.True(t, cfg.RealtimeEnabled())
}
