package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/patrickwarner/openadserve-sdk/adsdk"
	"github.com/patrickwarner/openadserve-sdk/internal/config"
	"github.com/patrickwarner/openadserve-sdk/internal/observability"
	"github.com/patrickwarner/openadserve-sdk/models"
)

type RequestAdsInput struct {
	Placements []string          `json:"placements"`
	Count      int               `json:"count,omitempty"`
	Countries  []string          `json:"countries,omitempty"`
	Custom     map[string]string `json:"custom,omitempty"`
	Keywords   []string          `json:"keywords,omitempty"`
	UserID     string            `json:"user_id,omitempty"`
	Language   string            `json:"language,omitempty"`
}

type AdSummary struct {
	PlacementID    string  `json:"placement_id"`
	AdID           string  `json:"ad_id"`
	CampaignID     string  `json:"campaign_id,omitempty"`
	Format         string  `json:"format"`
	Title          string  `json:"title,omitempty"`
	ImageURL       string  `json:"image_url,omitempty"`
	DestinationURL string  `json:"destination_url,omitempty"`
	Price          float64 `json:"price,omitempty"`
}

type RequestAdsOutput struct {
	RequestID   string      `json:"request_id"`
	Ads         []AdSummary `json:"ads"`
	NoBidReason int         `json:"no_bid_reason,omitempty"`
}

type FireTrackingInput struct {
	AdID      string `json:"ad_id,omitempty"`
	Kind      string `json:"kind,omitempty"`
	EventType string `json:"event_type,omitempty"`
	URL       string `json:"url,omitempty"`
}

type FireTrackingOutput struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// AdServer exposes the SDK client as MCP tools. Ads returned by request_ads
// are remembered so fire_tracking can refer to them by ID.
type AdServer struct {
	client      *adsdk.Client
	publisherID int
	logger      *zap.Logger

	mu     sync.Mutex
	ads    map[string]models.Ad
	order  []string // ad IDs, oldest first
	maxAds int
}

// defaultMaxAds bounds how many returned ads are remembered for fire_tracking.
const defaultMaxAds = 1000

func NewAdServer(client *adsdk.Client, publisherID int, logger *zap.Logger) *AdServer {
	return &AdServer{
		client:      client,
		publisherID: publisherID,
		logger:      logger,
		ads:         make(map[string]models.Ad),
		maxAds:      defaultMaxAds,
	}
}

// remember stores ad for later tracking, forgetting the oldest ads beyond
// maxAds. Callers hold s.mu.
func (s *AdServer) remember(ad models.Ad) {
	if _, ok := s.ads[ad.ID]; !ok {
		s.order = append(s.order, ad.ID)
	}
	s.ads[ad.ID] = ad
	for len(s.order) > s.maxAds {
		delete(s.ads, s.order[0])
		s.order = s.order[1:]
	}
}

// RequestAds implements the request_ads tool.
func (s *AdServer) RequestAds(ctx context.Context, req *mcp.CallToolRequest, input RequestAdsInput) (*mcp.CallToolResult, RequestAdsOutput, error) {
	b := adsdk.NewRequestBuilder().
		PublisherID(s.publisherID).
		Language(input.Language).
		Keywords(input.Keywords...).
		UserID(input.UserID)
	for _, raw := range input.Placements {
		id, formats, _ := strings.Cut(raw, ":")
		p := models.Placement{ID: strings.TrimSpace(id), Count: input.Count}
		if formats != "" {
			p.Formats = strings.Split(formats, ",")
		}
		b.AddPlacement(p)
	}
	for _, c := range input.Countries {
		b.Country(c)
	}
	keys := make([]string, 0, len(input.Custom))
	for k := range input.Custom {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.CustomTargeting(k, input.Custom[k])
	}

	decisionReq, err := b.Build()
	if err != nil {
		return nil, RequestAdsOutput{}, err
	}
	resp, err := s.client.RequestAds(ctx, decisionReq)
	if err != nil {
		s.logger.Error("request ads failed", zap.String("request_id", decisionReq.RequestID), zap.Error(err))
		return nil, RequestAdsOutput{}, err
	}

	out := RequestAdsOutput{RequestID: resp.RequestID, Ads: []AdSummary{}, NoBidReason: resp.NoBidReason}
	s.mu.Lock()
	for _, dec := range resp.Decisions {
		for _, ad := range dec.Ads {
			s.remember(ad)
			out.Ads = append(out.Ads, AdSummary{
				PlacementID:    dec.PlacementID,
				AdID:           ad.ID,
				CampaignID:     ad.CampaignID,
				Format:         ad.Creative.Format,
				Title:          ad.Creative.Title,
				ImageURL:       ad.Creative.ImageURL,
				DestinationURL: ad.Creative.DestinationURL,
				Price:          ad.Price,
			})
		}
	}
	s.mu.Unlock()

	s.logger.Info("ads requested",
		zap.String("request_id", resp.RequestID),
		zap.Int("ads", len(out.Ads)))
	return nil, out, nil
}

// FireTracking implements the fire_tracking tool.
func (s *AdServer) FireTracking(ctx context.Context, req *mcp.CallToolRequest, input FireTrackingInput) (*mcp.CallToolResult, FireTrackingOutput, error) {
	if input.URL != "" {
		if err := s.client.FireTrackingURL(ctx, input.URL); err != nil {
			return nil, FireTrackingOutput{}, err
		}
		return nil, FireTrackingOutput{Status: "delivered", Message: fmt.Sprintf("fired %s", input.URL)}, nil
	}

	s.mu.Lock()
	ad, ok := s.ads[input.AdID]
	s.mu.Unlock()
	if !ok {
		return nil, FireTrackingOutput{}, fmt.Errorf("unknown ad %q: call request_ads first", input.AdID)
	}

	var err error
	switch input.Kind {
	case models.TrackImpression, "":
		err = s.client.FireImpression(ctx, ad)
	case models.TrackClick:
		err = s.client.FireClick(ctx, ad)
	case models.TrackViewable:
		err = s.client.FireViewable(ctx, ad)
	case models.TrackEvent:
		err = s.client.FireEvent(ctx, ad, input.EventType)
	default:
		return nil, FireTrackingOutput{}, fmt.Errorf("unknown tracking kind %q", input.Kind)
	}
	if err != nil {
		return nil, FireTrackingOutput{}, err
	}
	kind := input.Kind
	if kind == "" {
		kind = models.TrackImpression
	}
	return nil, FireTrackingOutput{
		Status:  "delivered",
		Message: fmt.Sprintf("reported %s for ad %s", kind, ad.ID),
	}, nil
}

func newMCPServer(s *AdServer) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "openadserve-sdk",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "request_ads",
		Description: "Request ads for one or more placements from the ad-decision service",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"placements": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Placement IDs, optionally with allowed formats as id:format,format",
				},
				"count": map[string]interface{}{
					"type":        "integer",
					"minimum":     0,
					"description": "Ads wanted per placement (optional, defaults to 1)",
				},
				"countries": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "ISO country codes to target (optional)",
				},
				"custom": map[string]interface{}{
					"type":                 "object",
					"additionalProperties": map[string]interface{}{"type": "string"},
					"description":          "Custom key-value targeting (optional)",
				},
				"keywords": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Contextual keywords (optional)",
				},
				"user_id": map[string]interface{}{
					"type":        "string",
					"description": "App-scoped user ID (optional)",
				},
				"language": map[string]interface{}{
					"type":        "string",
					"description": "Request language (optional)",
				},
			},
			"required": []string{"placements"},
		},
	}, s.RequestAds)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "fire_tracking",
		Description: "Report an impression, click, viewable or custom event for an ad returned by request_ads, or fire a raw tracking URL",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"ad_id": map[string]interface{}{
					"type":        "string",
					"description": "Ad ID from a previous request_ads result",
				},
				"kind": map[string]interface{}{
					"type":        "string",
					"enum":        []string{models.TrackImpression, models.TrackClick, models.TrackViewable, models.TrackEvent},
					"description": "Tracking kind (optional, defaults to impression)",
				},
				"event_type": map[string]interface{}{
					"type":        "string",
					"description": "Custom event name, required when kind is event",
				},
				"url": map[string]interface{}{
					"type":        "string",
					"description": "Raw tracking URL; when set, ad_id and kind are ignored",
				},
			},
		},
	}, s.FireTracking)

	return server
}

func main() {
	_ = godotenv.Load()

	// Log to stderr; stdout carries the MCP stream.
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.MessageKey = "msg"

	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("openadserve-sdk-mcp").With(zap.String("service", "openadserve-sdk-mcp"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	client, err := adsdk.NewClient(cfg.SDKConfig(),
		adsdk.WithLogger(logger),
		adsdk.WithMetrics(observability.NewNoOpRegistry()))
	if err != nil {
		logger.Fatal("Failed to create SDK client", zap.Error(err))
	}

	server := newMCPServer(NewAdServer(client, cfg.PublisherID, logger))

	var logBuffer bytes.Buffer
	transport := &mcp.LoggingTransport{
		Transport: &mcp.StdioTransport{},
		Writer:    &logBuffer,
	}

	logger.Info("MCP server running via stdio", zap.String("base_url", cfg.BaseURL))
	if err := server.Run(context.Background(), transport); err != nil {
		logger.Fatal("Server error", zap.Error(err), zap.String("mcp_logs", logBuffer.String()))
	}
}
