package adsdk

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/patrickwarner/openadserve-sdk/internal/macros"
	"github.com/patrickwarner/openadserve-sdk/internal/observability"
)

// MetricsRegistry receives client metrics. Pass a Prometheus-backed registry
// from the hosting service, or leave unset for no metrics.
type MetricsRegistry = observability.MetricsRegistry

// MacroContext is the data available to tracking URL macros.
type MacroContext = macros.ExpansionContext

// MacroFunc expands one tracking URL macro.
type MacroFunc = macros.ExpansionFunc

// Option customizes a Client.
type Option func(*options)

type options struct {
	logger     *zap.Logger
	httpClient *http.Client
	metrics    MetricsRegistry
	macros     map[string]MacroFunc
	strict     bool
}

// WithLogger sets the logger used for client diagnostics and, when
// Config.LoggingEnabled is set, HTTP traffic.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithHTTPClient supplies the HTTP client. Its transport is wrapped with the
// SDK headers, tracing and logging; its timeout is used as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(m MetricsRegistry) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithMacro registers an additional tracking URL macro, used as {name}.
func WithMacro(name string, fn MacroFunc) Option {
	return func(o *options) {
		if o.macros == nil {
			o.macros = make(map[string]MacroFunc)
		}
		o.macros[name] = fn
	}
}

// WithStrictMacros makes the tracking call fail with a *ConfigurationError,
// before any request is sent, when a URL holds an unknown macro, a
// {CUSTOM.key} without a value or a macro that cannot be expanded. By default
// such placeholders are left in the URL.
func WithStrictMacros(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}
