// Package mockserver is a local ad-decision service speaking the same HTTP
// contract as the production service. The sample app and integration tests
// run against it.
package mockserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/patrickwarner/openadserve-sdk/internal/geoip"
	"github.com/patrickwarner/openadserve-sdk/internal/middleware"
	"github.com/patrickwarner/openadserve-sdk/internal/observability"
	"github.com/patrickwarner/openadserve-sdk/internal/ratelimit"
)

var tracer = otel.Tracer("openadserve-sdk/mockserver")

// maxBodyBytes caps decision request bodies.
const maxBodyBytes = 1 << 20

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger      *zap.Logger
	Inventory   *Inventory
	GeoIP       *geoip.Resolver
	Metrics     observability.MetricsRegistry
	TokenSecret []byte
	TokenTTL    time.Duration
	// APIKey, when non-empty, must match the X-API-Key header of decision requests.
	APIKey string
	// Limiter throttles decision requests per client. Nil disables it.
	Limiter *ratelimit.ClientLimiter

	mu     sync.Mutex
	events eventLog
}

// TrackedEvent is one accepted tracking hit.
type TrackedEvent struct {
	Kind       string
	EventType  string
	RequestID  string
	AdID       string
	CreativeID string
	// Custom is the request's custom targeting carried in the signed token.
	Custom map[string]string
	At     time.Time
}

// DefaultMaxEvents bounds the in-memory tracking log.
const DefaultMaxEvents = 10000

// NewServer constructs a Server. Nil logger and metrics fall back to no-ops.
func NewServer(logger *zap.Logger, inv *Inventory, geo *geoip.Resolver, metrics observability.MetricsRegistry, secret []byte, ttl time.Duration) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	if inv == nil {
		inv = &Inventory{}
	}
	return &Server{
		events:      eventLog{max: DefaultMaxEvents},
		Logger:      logger,
		Inventory:   inv,
		GeoIP:       geo,
		Metrics:     metrics,
		TokenSecret: secret,
		TokenTTL:    ttl,
	}
}

// Routes returns the instrumented router.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.WithTraceLogger(s.Logger))
	r.HandleFunc("/v1/decisions", s.DecisionHandler).Methods("POST")
	r.HandleFunc("/track/{kind}", s.TrackHandler).Methods("GET")
	r.HandleFunc("/health", s.HealthHandler).Methods("GET")
	r.HandleFunc("/debug/ratelimit", s.RateLimitHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler())
	return otelhttp.NewHandler(r, "mock-server")
}

// Events returns a copy of the most recent tracking hits, oldest first. At
// most DefaultMaxEvents are kept.
func (s *Server) Events() []TrackedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.snapshot()
}

func (s *Server) recordEvent(ev TrackedEvent) {
	s.mu.Lock()
	s.events.add(ev)
	s.mu.Unlock()
}

// eventLog is a fixed-size ring of tracking hits.
type eventLog struct {
	max   int
	buf   []TrackedEvent
	next  int
	count int
}

func (l *eventLog) add(ev TrackedEvent) {
	if l.max <= 0 {
		return
	}
	if len(l.buf) < l.max {
		l.buf = append(l.buf, ev)
	} else {
		l.buf[l.next] = ev
	}
	l.next = (l.next + 1) % l.max
	l.count = min(l.count+1, l.max)
}

func (l *eventLog) snapshot() []TrackedEvent {
	out := make([]TrackedEvent, 0, l.count)
	if len(l.buf) < l.max {
		return append(out, l.buf...)
	}
	out = append(out, l.buf[l.next:]...)
	return append(out, l.buf[:l.next]...)
}
