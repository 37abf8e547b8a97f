// Package config loads SDK and companion-binary settings from environment
// variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/patrickwarner/openadserve-sdk/adsdk"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	// SDK client settings
	BaseURL        string        `env:"ADSDK_BASE_URL" envDefault:"http://localhost:8787"`
	APIVersion     string        `env:"ADSDK_API_VERSION" envDefault:"1"`
	APIKey         string        `env:"ADSDK_API_KEY"`
	PublisherID    int           `env:"ADSDK_PUBLISHER_ID"`
	Language       string        `env:"ADSDK_LANGUAGE" envDefault:"en"`
	LoggingEnabled bool          `env:"ADSDK_LOGGING" envDefault:"false"`
	ConnectTimeout time.Duration `env:"ADSDK_CONNECT_TIMEOUT" envDefault:"10s"`
	ReadTimeout    time.Duration `env:"ADSDK_READ_TIMEOUT" envDefault:"10s"`
	RequestTimeout time.Duration `env:"ADSDK_REQUEST_TIMEOUT" envDefault:"30s"`

	ServiceName string `env:"SERVICE_NAME" envDefault:"openadserve-sdk"`

	// Tracing configuration
	TracingEnabled    bool    `env:"TRACING_ENABLED" envDefault:"false"`
	TempoEndpoint     string  `env:"TEMPO_ENDPOINT" envDefault:"tempo:4317"`
	TracingSampleRate float64 `env:"TRACING_SAMPLE_RATE" envDefault:"1.0"`

	// Mock decision server
	Port          string        `env:"PORT" envDefault:"8787"`
	TokenSecret   string        `env:"TOKEN_SECRET" envDefault:"dev-secret"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" envDefault:"30m"`
	GeoIPDB       string        `env:"GEOIP_DB"`
	InventoryFile string        `env:"INVENTORY_FILE"`
	// RequireAPIKey makes the mock server reject requests whose X-API-Key
	// differs from APIKey.
	RequireAPIKey bool `env:"REQUIRE_API_KEY" envDefault:"false"`

	// Per-client rate limiting on the mock server
	RateLimitEnabled  bool `env:"RATE_LIMIT_ENABLED" envDefault:"false"`
	RateLimitCapacity int  `env:"RATE_LIMIT_CAPACITY" envDefault:"50"`
	RateLimitRefill   int  `env:"RATE_LIMIT_REFILL" envDefault:"10"`
}

// Load parses environment variables and returns a Config populated with
// defaults when variables are absent.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// SDKConfig returns the client configuration.
func (c Config) SDKConfig() adsdk.Config {
	return adsdk.Config{
		BaseURL:        c.BaseURL,
		APIVersion:     c.APIVersion,
		APIKey:         c.APIKey,
		Language:       c.Language,
		LoggingEnabled: c.LoggingEnabled,
		ConnectTimeout: c.ConnectTimeout,
		ReadTimeout:    c.ReadTimeout,
		RequestTimeout: c.RequestTimeout,
	}
}
