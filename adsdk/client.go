package adsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/patrickwarner/openadserve-sdk/internal/macros"
	"github.com/patrickwarner/openadserve-sdk/internal/middleware"
	"github.com/patrickwarner/openadserve-sdk/internal/observability"
	"github.com/patrickwarner/openadserve-sdk/models"
)

const defaultUserAgent = "openadserve-sdk-go/1.0"

// maxErrorBody caps how much of a failed response body is kept in a NetworkError.
const maxErrorBody = 512

// Operation names used in NetworkError.Op and metric labels.
const (
	opRequestAds = "request_ads"
	opTrack      = "track"
	opHealth     = "health"
)

var tracer = otel.Tracer("github.com/patrickwarner/openadserve-sdk/adsdk")

// Client talks to the ad-decision service. It is safe for concurrent use.
type Client struct {
	cfg         Config
	baseURL     *url.URL
	httpClient  *http.Client
	trackClient *http.Client
	logger      *zap.Logger
	metrics     MetricsRegistry
	macros      *macros.MacroExpander
	strict      bool
}

// NewClient validates cfg and returns a Client. It fails with a
// *ConfigurationError when the configuration is incomplete.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
		if cfg.LoggingEnabled {
			if l, err := observability.NewLogger(zapcore.DebugLevel, "adsdk"); err == nil {
				logger = l
			}
		}
	}
	metrics := o.metrics
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}

	expander := macros.NewMacroExpander(logger)
	expander.SetStrictMode(o.strict)
	for name, fn := range o.macros {
		if err := expander.RegisterMacro(name, fn); err != nil {
			return nil, configError("macros", "%v", err)
		}
	}

	baseURL, _ := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))

	c := &Client{
		cfg:     cfg,
		baseURL: baseURL,
		logger:  logger,
		metrics: metrics,
		macros:  expander,
		strict:  o.strict,
	}

	var baseTransport http.RoundTripper
	timeout := cfg.RequestTimeout
	if o.httpClient != nil {
		baseTransport = o.httpClient.Transport
		timeout = o.httpClient.Timeout
	} else {
		baseTransport = newTransport(cfg)
	}
	transport := c.wrapTransport(baseTransport)

	c.httpClient = &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
	if o.httpClient != nil {
		c.httpClient.Jar = o.httpClient.Jar
	}
	// tracking calls report delivery; a redirect is the tracker's answer, not something to follow
	c.trackClient = &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return c, nil
}

// newTransport builds the default transport with the configured connect and read timeouts.
func newTransport(cfg Config) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}
}

// wrapTransport layers tracing, static headers and optional logging around rt.
// Tracing is outermost so the logging transport sees the span.
func (c *Client) wrapTransport(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	if c.cfg.LoggingEnabled {
		rt = &middleware.LoggingTransport{Base: rt, Logger: c.logger}
	}
	headers := http.Header{}
	headers.Set("User-Agent", c.cfg.UserAgent)
	if c.cfg.APIVersion != "" {
		headers.Set(HeaderAPIVersion, c.cfg.APIVersion)
	}
	if c.cfg.APIKey != "" {
		headers.Set(HeaderAPIKey, c.cfg.APIKey)
	}
	rt = &middleware.HeaderTransport{Base: rt, Headers: headers}
	return otelhttp.NewTransport(rt)
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// RequestAds sends req to the decision endpoint and returns the parsed
// response. A nil request or one without placements fails with a
// *ConfigurationError before any I/O; HTTP, transport and decoding failures
// are returned as *NetworkError. A 204 response yields an empty response.
func (c *Client) RequestAds(ctx context.Context, req *models.DecisionRequest) (*models.DecisionResponse, error) {
	if req == nil {
		return nil, configError("request", "required")
	}
	if len(req.Placements) == 0 {
		return nil, configError("placements", "at least one placement is required")
	}

	ctx, span := tracer.Start(ctx, "adsdk.RequestAds",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("request_id", req.RequestID),
			attribute.Int("placements", len(req.Placements)),
		))
	defer span.End()

	logger := middleware.LoggerFromContext(ctx, c.logger)
	endpoint := c.baseURL.JoinPath(DecisionPath).String()

	start := time.Now()
	status := "error"
	defer func() {
		c.metrics.IncrementRequests(opRequestAds, http.MethodPost, status)
		c.metrics.RecordRequestLatency(opRequestAds, http.MethodPost, time.Since(start))
	}()

	body := *req
	if body.Language == "" {
		body.Language = c.cfg.Language
	}
	blob, err := json.Marshal(&body)
	if err != nil {
		return nil, c.fail(span, logger, &NetworkError{Op: opRequestAds, URL: endpoint, Err: fmt.Errorf("marshal request: %w", err)})
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(blob))
	if err != nil {
		return nil, c.fail(span, logger, &NetworkError{Op: opRequestAds, URL: endpoint, Err: fmt.Errorf("create request: %w", err)})
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if body.Language != "" {
		httpReq.Header.Set("Accept-Language", body.Language)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.fail(span, logger, &NetworkError{Op: opRequestAds, URL: endpoint, Err: err})
	}
	defer c.closeBody(resp)
	status = strconv.Itoa(resp.StatusCode)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode == http.StatusNoContent {
		c.metrics.IncrementNoBids()
		span.SetAttributes(attribute.String("ad.result", "no_bid"))
		return &models.DecisionResponse{RequestID: req.RequestID}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.fail(span, logger, statusError(opRequestAds, endpoint, resp))
	}

	var out models.DecisionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, c.fail(span, logger, &NetworkError{
			Op:  opRequestAds,
			URL: endpoint,
			Err: fmt.Errorf("decode response: %w", err),
		})
	}
	attachCustomParams(&out, req.Targeting)

	ads := len(out.Ads())
	if ads == 0 {
		c.metrics.IncrementNoBids()
		span.SetAttributes(attribute.String("ad.result", "no_bid"))
	} else {
		span.SetAttributes(attribute.String("ad.result", "bid"), attribute.Int("ad.count", ads))
	}
	logger.Debug("ads received",
		zap.String("request_id", out.RequestID),
		zap.Int("decisions", len(out.Decisions)),
		zap.Int("ads", ads),
		zap.Duration("duration", time.Since(start)))
	return &out, nil
}

// HealthCheck checks if the ad-decision service is reachable. Any status
// other than 200 is reported as a *NetworkError.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "adsdk.HealthCheck", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	logger := middleware.LoggerFromContext(ctx, c.logger)
	endpoint := c.baseURL.JoinPath(HealthPath).String()

	start := time.Now()
	status := "error"
	defer func() {
		c.metrics.IncrementRequests(opHealth, http.MethodGet, status)
		c.metrics.RecordRequestLatency(opHealth, http.MethodGet, time.Since(start))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return c.fail(span, logger, &NetworkError{Op: opHealth, URL: endpoint, Err: fmt.Errorf("create health check request: %w", err)})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail(span, logger, &NetworkError{Op: opHealth, URL: endpoint, Err: err})
	}
	defer c.closeBody(resp)
	status = strconv.Itoa(resp.StatusCode)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		return c.fail(span, logger, statusError(opHealth, endpoint, resp))
	}
	return nil
}

// attachCustomParams copies the request's custom targeting onto every ad so
// {CUSTOM.key} tracking macros can be expanded when the ad is tracked.
func attachCustomParams(resp *models.DecisionResponse, t *models.Targeting) {
	if t == nil || len(t.Custom) == 0 {
		return
	}
	params := t.Custom.Map()
	for i := range resp.Decisions {
		for j := range resp.Decisions[i].Ads {
			resp.Decisions[i].Ads[j].CustomParams = params
		}
	}
}

// fail records err on the span and logs it.
func (c *Client) fail(span trace.Span, logger *zap.Logger, err *NetworkError) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Op+" failed")
	logger.Warn("ad-decision call failed",
		zap.String("op", err.Op),
		zap.String("url", err.URL),
		zap.Int("status", err.StatusCode),
		zap.Error(err))
	return err
}

func (c *Client) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		c.logger.Warn("failed to close response body", zap.Error(err))
	}
}

// readSnippet returns the start of r as a trimmed string.
func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(b))
}
