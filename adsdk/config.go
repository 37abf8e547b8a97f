package adsdk

import (
	"net/url"
	"strings"
	"time"
)

// DecisionPath is the fixed path of the decision endpoint, appended to Config.BaseURL.
const DecisionPath = "/v1/decisions"

// HealthPath is the liveness endpoint used by Client.HealthCheck.
const HealthPath = "/health"

// Headers sent by the client.
const (
	HeaderAPIVersion = "X-API-Version"
	HeaderAPIKey     = "X-API-Key"
)

// Default timeouts, matching what a mobile client can tolerate on a slow network.
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 10 * time.Second
	DefaultRequestTimeout = 30 * time.Second
)

// Config holds the client configuration.
type Config struct {
	// BaseURL of the ad-decision service, e.g. "https://ads.example.com". Required.
	BaseURL string
	// APIVersion, when set, is sent as the X-API-Version header.
	APIVersion string
	// APIKey, when set, is sent as the X-API-Key header.
	APIKey string
	// Language is the default request language and Accept-Language header.
	Language string
	// LoggingEnabled logs every HTTP exchange through the client logger.
	LoggingEnabled bool
	// ConnectTimeout bounds dialing and the TLS handshake.
	ConnectTimeout time.Duration
	// ReadTimeout bounds the wait for response headers once the request is sent.
	ReadTimeout time.Duration
	// RequestTimeout bounds a whole exchange, body included. Zero disables it.
	RequestTimeout time.Duration
	// UserAgent overrides the default User-Agent header.
	UserAgent string
}

// DefaultConfig returns a Config for baseURL with default timeouts.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		ConnectTimeout: DefaultConnectTimeout,
		ReadTimeout:    DefaultReadTimeout,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// Validate checks required fields. It returns a *ConfigurationError.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return configError("base_url", "required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return configError("base_url", "invalid url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return configError("base_url", "scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return configError("base_url", "missing host")
	}
	if c.ConnectTimeout < 0 {
		return configError("connect_timeout", "must not be negative")
	}
	if c.ReadTimeout < 0 {
		return configError("read_timeout", "must not be negative")
	}
	if c.RequestTimeout < 0 {
		return configError("request_timeout", "must not be negative")
	}
	return nil
}

// withDefaults fills zero timeouts that have a default. RequestTimeout stays
// as given so callers can rely on context deadlines alone.
func (c Config) withDefaults() Config {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	return c
}
