package observability

import "time"

// MetricsRegistry provides an interface for recording SDK and mock-service metrics.
// Components receive it by injection instead of touching the Prometheus globals.
type MetricsRegistry interface {
	// HTTP request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Decision metrics
	IncrementNoBids()
	IncrementAdsServed(format string)

	// Tracking metrics
	IncrementTrackingFires(kind, outcome string)
	IncrementEvent(eventType string)
}

// PrometheusRegistry implements MetricsRegistry using the global Prometheus metrics
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementNoBids() {
	NoBidCount.Inc()
}

func (r *PrometheusRegistry) IncrementAdsServed(format string) {
	AdsServedCount.WithLabelValues(format).Inc()
}

func (r *PrometheusRegistry) IncrementTrackingFires(kind, outcome string) {
	TrackingFireCount.WithLabelValues(kind, outcome).Inc()
}

func (r *PrometheusRegistry) IncrementEvent(eventType string) {
	EventCount.WithLabelValues(eventType).Inc()
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (r *NoOpRegistry) IncrementNoBids()                                                     {}
func (r *NoOpRegistry) IncrementAdsServed(format string)                                     {}
func (r *NoOpRegistry) IncrementTrackingFires(kind, outcome string)                          {}
func (r *NoOpRegistry) IncrementEvent(eventType string)                                      {}
