package mockserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/patrickwarner/openadserve-sdk/internal/middleware"
	"github.com/patrickwarner/openadserve-sdk/internal/observability"
	"github.com/patrickwarner/openadserve-sdk/internal/ratelimit"
	"github.com/patrickwarner/openadserve-sdk/internal/token"
	"github.com/patrickwarner/openadserve-sdk/models"
)

// NoBidNoInventory is the no-bid reason sent when no placement filled.
const NoBidNoInventory = 1

// DecisionHandler handles POST /v1/decisions.
func (s *Server) DecisionHandler(w http.ResponseWriter, r *http.Request) {
	_, span := tracer.Start(r.Context(), "DecisionHandler",
		trace.WithAttributes(
			attribute.String("http.method", "POST"),
			attribute.String("http.route", "/v1/decisions"),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "decisions"
	const method = "POST"
	finish := func(status int) {
		s.Metrics.IncrementRequests(endpoint, method, strconv.Itoa(status))
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
	}

	if s.APIKey != "" && r.Header.Get("X-API-Key") != s.APIKey {
		logger.Warn("invalid api key", zap.String("api_version", r.Header.Get("X-API-Version")))
		finish(http.StatusUnauthorized)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if ok, wait := s.Limiter.Allow(clientKey(r)); !ok {
		logger.Warn("rate limited", zap.String("client", clientKey(r)))
		finish(http.StatusTooManyRequests)
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	var req models.DecisionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		logger.Warn("decode request", zap.Error(err), zap.String("event_type", "ad_request"))
		finish(http.StatusBadRequest)
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if len(req.Placements) == 0 {
		logger.Warn("missing placements", zap.String("request_id", req.RequestID))
		finish(http.StatusBadRequest)
		http.Error(w, "placements required", http.StatusBadRequest)
		return
	}

	tc := ResolveTargeting(r, &req, s.GeoIP)
	span.SetAttributes(
		attribute.String("request_id", req.RequestID),
		attribute.Int("placements", len(req.Placements)),
		attribute.String("device_type", tc.DeviceType),
		attribute.StringSlice("countries", tc.Countries),
	)
	if observability.ShouldSample(observability.GetSamplingRate()) {
		logger.Info("ad request",
			zap.String("request_id", req.RequestID),
			zap.String("language", req.Language),
			zap.String("event_type", "ad_request"))
	}
	s.Metrics.IncrementEvent("ad_request")

	params := tokenParams(req.Targeting)
	resp := models.DecisionResponse{RequestID: req.RequestID, Decisions: make([]models.Decision, 0, len(req.Placements))}
	filled := 0
	for _, p := range req.Placements {
		dec := models.Decision{PlacementID: p.ID, Ads: []models.Ad{}}
		for _, item := range s.Inventory.Select(p, tc) {
			ad, err := s.buildAd(req, p, item, params)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "build ad")
				logger.Error("build ad", zap.Error(err), zap.String("ad_id", item.ID))
				finish(http.StatusInternalServerError)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			dec.Ads = append(dec.Ads, ad)
			s.Metrics.IncrementAdsServed(ad.Creative.Format)
		}
		filled += len(dec.Ads)
		resp.Decisions = append(resp.Decisions, dec)
	}

	if filled == 0 {
		span.SetAttributes(attribute.String("ad.result", "no_bid"))
		resp.NoBidReason = NoBidNoInventory
		s.Metrics.IncrementNoBids()
		s.Metrics.IncrementEvent("no_ad")
	} else {
		span.SetAttributes(attribute.String("ad.result", "bid"), attribute.Int("ad.count", filled))
		s.Metrics.IncrementEvent("ad_served")
	}

	finish(http.StatusOK)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("encode response", zap.Error(err))
	}
}

func (s *Server) buildAd(req models.DecisionRequest, p models.Placement, item InventoryItem, params map[string]string) (models.Ad, error) {
	creative, err := item.Creative.Model()
	if err != nil {
		return models.Ad{}, err
	}
	tok, err := token.Generate(token.Claims{
		RequestID:    req.RequestID,
		AdID:         item.ID,
		CreativeID:   item.Creative.ID,
		CampaignID:   item.CampaignID,
		PlacementID:  p.ID,
		PublisherID:  req.PublisherID,
		Price:        item.Price,
		CustomParams: params,
	}, s.TokenSecret)
	if err != nil {
		return models.Ad{}, fmt.Errorf("generate token: %w", err)
	}
	t := url.QueryEscape(tok)
	return models.Ad{
		ID:         item.ID,
		CampaignID: item.CampaignID,
		Price:      item.Price,
		Creative:   creative,
		Tracking: models.TrackingURLs{
			Impressions: append([]string{"/track/impression?t=" + t}, item.ImpressionURLs...),
			Clicks:      append([]string{"/track/click?t=" + t}, item.ClickURLs...),
			Viewable:    []string{"/track/viewable?t=" + t},
			Events: map[string][]string{
				"*": {"/track/event?t=" + t + "&type={EVENT_TYPE}"},
			},
		},
	}, nil
}

// clientKey identifies the caller for rate limiting: the API key when one is
// sent, else the client IP.
func clientKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return "key:" + key
	}
	if ip := ClientIP(r); ip != nil {
		return "ip:" + ip.String()
	}
	return "ip:unknown"
}

// tokenParams copies custom targeting into token parameters, skipping pairs
// that would exceed token limits.
func tokenParams(t *models.Targeting) map[string]string {
	if t == nil || t.Custom.Len() == 0 {
		return nil
	}
	out := make(map[string]string)
	for _, kv := range t.Custom {
		if len(out) == token.MaxCustomParamsCount {
			break
		}
		if kv.Key == "" || len(kv.Key) > token.MaxCustomParamKeyLength || len(kv.Value) > token.MaxCustomParamValueLength {
			continue
		}
		out[kv.Key] = kv.Value
	}
	return out
}

// TrackHandler handles GET /track/{kind} pixel requests.
func (s *Server) TrackHandler(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]
	_, span := tracer.Start(r.Context(), "TrackHandler",
		trace.WithAttributes(
			attribute.String("http.method", "GET"),
			attribute.String("http.route", "/track/{kind}"),
			attribute.String("tracking.kind", kind),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	endpoint := "track_" + kind
	const method = "GET"
	finish := func(status int) {
		s.Metrics.IncrementRequests(endpoint, method, strconv.Itoa(status))
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
	}

	switch kind {
	case models.TrackImpression, models.TrackClick, models.TrackViewable, models.TrackEvent:
	default:
		finish(http.StatusNotFound)
		http.NotFound(w, r)
		return
	}

	tok := r.URL.Query().Get("t")
	if tok == "" {
		logger.Warn("missing token", zap.String("kind", kind))
		s.Metrics.IncrementEvent("bad_event")
		finish(http.StatusUnauthorized)
		http.Error(w, "token required", http.StatusUnauthorized)
		return
	}
	claims, err := token.Verify(tok, s.TokenSecret, s.TokenTTL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid token")
		logger.Warn("token verify", zap.Error(err), zap.String("kind", kind))
		s.Metrics.IncrementEvent("bad_event")
		status := http.StatusUnauthorized
		if errors.Is(err, token.ErrExpired) {
			status = http.StatusGone
		}
		finish(status)
		http.Error(w, err.Error(), status)
		return
	}

	eventType := ""
	if kind == models.TrackEvent {
		eventType = strings.TrimSpace(r.URL.Query().Get("type"))
		if eventType == "" || strings.Contains(eventType, "{") {
			logger.Warn("missing event type", zap.String("request_id", claims.RequestID))
			s.Metrics.IncrementEvent("bad_event")
			finish(http.StatusBadRequest)
			http.Error(w, "type required", http.StatusBadRequest)
			return
		}
	}

	span.SetAttributes(
		attribute.String("request_id", claims.RequestID),
		attribute.String("ad_id", claims.AdID),
		attribute.String("creative_id", claims.CreativeID),
		attribute.String("placement_id", claims.PlacementID),
	)

	s.recordEvent(TrackedEvent{
		Kind:       kind,
		EventType:  eventType,
		RequestID:  claims.RequestID,
		AdID:       claims.AdID,
		CreativeID: claims.CreativeID,
		Custom:     claims.CustomParams,
		At:         time.Now(),
	})
	if eventType != "" {
		s.Metrics.IncrementEvent(eventType)
	} else {
		s.Metrics.IncrementEvent(kind)
	}
	if observability.ShouldSample(observability.GetSamplingRate()) {
		logger.Info(kind,
			zap.String("request_id", claims.RequestID),
			zap.String("ad_id", claims.AdID),
			zap.String("event_type", eventType),
			zap.Any("custom", claims.CustomParams))
	}

	if kind == models.TrackClick {
		if ad, ok := s.Inventory.FindAd(claims.AdID); ok && ad.Creative.DestinationURL != "" {
			finish(http.StatusFound)
			http.Redirect(w, r, ad.Creative.DestinationURL, http.StatusFound)
			return
		}
	}
	finish(http.StatusNoContent)
	w.WriteHeader(http.StatusNoContent)
}

// HealthHandler responds with a simple status check.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "health"
	const method = "GET"

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))

	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}

// RateLimitHandler reports per-client rate limiting statistics as JSON.
func (s *Server) RateLimitHandler(w http.ResponseWriter, r *http.Request) {
	stats := map[string]ratelimit.Stats{}
	if s.Limiter != nil {
		stats = s.Limiter.Stats()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(struct {
		Enabled bool                       `json:"enabled"`
		Clients map[string]ratelimit.Stats `json:"clients"`
	}{s.Limiter.Enabled(), stats}); err != nil {
		s.Logger.Warn("encode rate limit stats", zap.Error(err))
	}
}
