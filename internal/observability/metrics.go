package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ad-decision API calls per endpoint, method and status code ("error" for transport failures)
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsdk_requests_total",
			Help: "Total ad-decision API requests",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adsdk_request_duration_seconds",
			Help:    "Histogram of ad-decision API request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// decision responses that contained no ads
	NoBidCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "adsdk_nobid_total",
			Help: "Total decision responses without any ad",
		},
	)

	// tracking URLs fired by the client, labelled by kind and outcome
	TrackingFireCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsdk_tracking_fires_total",
			Help: "Total tracking URLs fired",
		},
		[]string{"kind", "outcome"},
	)

	// tracking callbacks received by the mock decision service, labelled by type
	EventCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsdk_events_total",
			Help: "Total tracking events recorded",
		},
		[]string{"type"},
	)

	// ads served by the mock decision service, labelled by creative format
	AdsServedCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsdk_ads_served_total",
			Help: "Total ads served",
		},
		[]string{"format"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		NoBidCount,
		TrackingFireCount,
		EventCount,
		AdsServedCount,
	)
}
