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

	assert.Equal(t, "http://localhost:8787", cfg.BaseURL)
	assert.Equal(t, "en", cfg.Language)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "8787", cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.Equal(t, 1.0, cfg.TracingSampleRate)
	assert.False(t, cfg.LoggingEnabled)
	assert.False(t, cfg.RateLimitEnabled)
	assert.Equal(t, 50, cfg.RateLimitCapacity)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ADSDK_BASE_URL", "https://ads.example.com")
	t.Setenv("ADSDK_API_KEY", "k1")
	t.Setenv("ADSDK_LOGGING", "true")
	t.Setenv("ADSDK_READ_TIMEOUT", "2s")
	t.Setenv("TRACING_SAMPLE_RATE", "0.25")

	cfg, err := Load()
	require.NoError(t, err)

	sdk := cfg.SDKConfig()
	assert.Equal(t, "https://ads.example.com", sdk.BaseURL)
	assert.Equal(t, "k1", sdk.APIKey)
	assert.True(t, sdk.LoggingEnabled)
	assert.Equal(t, 2*time.Second, sdk.ReadTimeout)
	assert.Equal(t, 0.25, cfg.TracingSampleRate)
	assert.NoError(t, sdk.Validate())
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv("ADSDK_CONNECT_TIMEOUT", "soon")
	_, err := Load()
	assert.Error(t, err)
}
