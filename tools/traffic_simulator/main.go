// Command traffic_simulator drives concurrent SDK traffic against an ad
// service, usually the local mock server.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/patrickwarner/openadserve-sdk/adsdk"
	"github.com/patrickwarner/openadserve-sdk/internal/config"
	"github.com/patrickwarner/openadserve-sdk/internal/observability"
	"github.com/patrickwarner/openadserve-sdk/models"
)

var userAgents = []string{
	// Mobile
	"Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 12; Pixel 6 Pro) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.5735.196 Mobile Safari/537.36",
	"Mozilla/5.0 (iPad; CPU OS 15_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.2 Mobile/15E148 Safari/604.1",

	// Desktop
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_3_1) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Safari/605.1.15",
}

var countries = []string{"US", "CA", "GB", "DE"}

const statsInterval = 5 * time.Second

// Options controls a simulation run.
type Options struct {
	BaseURL     string            `name:"server" help:"Ad service base URL (overrides ADSDK_BASE_URL)"`
	Users       int               `help:"Number of unique users" default:"100"`
	Placements  []string          `help:"Placement IDs to request" default:"home-banner,feed-native"`
	Requests    int               `help:"Total requests to send (0 for no limit)" default:"1000"`
	Concurrency int               `help:"Concurrent requests" default:"20"`
	Duration    time.Duration     `help:"How long to run traffic (0 to disable)"`
	Rate        float64           `help:"Requests per second (0 for unlimited)"`
	ClickRate   float64           `name:"click-rate" help:"Probability of a click per impression" default:"0.05"`
	KeyValues   map[string]string `name:"kv" help:"Custom targeting key=value (repeatable)"`
	Stats       bool              `help:"Print aggregated stats periodically"`
	Debug       bool              `help:"Enable verbose debug logs"`
	Label       string            `help:"Label to identify this run"`
}

// Stats counts simulation outcomes.
type Stats struct {
	Sent    atomic.Uint64
	Filled  atomic.Uint64
	NoBid   atomic.Uint64
	Errors  atomic.Uint64
	Clicks  atomic.Uint64
	Tracked atomic.Uint64
}

func (s *Stats) log(logger *zap.Logger, label string) {
	filled := s.Filled.Load()
	clicks := s.Clicks.Load()
	var ctr float64
	if filled > 0 {
		ctr = float64(clicks) / float64(filled)
	}
	logger.Info("stats",
		zap.String("run", label),
		zap.Uint64("sent", s.Sent.Load()),
		zap.Uint64("filled", filled),
		zap.Uint64("no_bid", s.NoBid.Load()),
		zap.Uint64("errors", s.Errors.Load()),
		zap.Uint64("clicks", clicks),
		zap.Uint64("tracking_calls", s.Tracked.Load()),
		zap.Float64("ctr", ctr))
}

// Simulator sends decision requests through one shared client.
type Simulator struct {
	Client *adsdk.Client
	Logger *zap.Logger
	Opts   Options
	Stats  Stats
}

// Run sends traffic until the request budget, the duration or ctx runs out.
func (s *Simulator) Run(ctx context.Context) {
	if s.Opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Opts.Duration)
		defer cancel()
	}
	conc := s.Opts.Concurrency
	if conc <= 0 {
		conc = 1
	}

	var interval time.Duration
	if s.Opts.Rate > 0 {
		interval = time.Duration(float64(time.Second) / s.Opts.Rate)
	}

	done := make(chan struct{})
	if s.Opts.Stats {
		go func() {
			ticker := time.NewTicker(statsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					s.Stats.log(s.Logger, s.Opts.Label)
				case <-done:
					return
				}
			}
		}()
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, conc)
	next := time.Now()
loop:
	for i := 0; s.Opts.Requests <= 0 || i < s.Opts.Requests; i++ {
		if interval > 0 {
			if wait := time.Until(next); wait > 0 {
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					break loop
				}
			}
			next = next.Add(interval)
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break loop
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			s.one(ctx)
		}()
	}
	wg.Wait()
	close(done)
}

func (s *Simulator) one(ctx context.Context) {
	s.Stats.Sent.Add(1)

	b := adsdk.NewRequestBuilder().
		Placement(s.Opts.Placements[rand.IntN(len(s.Opts.Placements))]).
		UserID(fmt.Sprintf("user%d", rand.IntN(max(s.Opts.Users, 1)))).
		Country(countries[rand.IntN(len(countries))]).
		Device(models.Device{UA: userAgents[rand.IntN(len(userAgents))]})
	for k, v := range s.Opts.KeyValues {
		b.CustomTargeting(k, v)
	}
	req, err := b.Build()
	if err != nil {
		s.Stats.Errors.Add(1)
		s.Logger.Error("build request", zap.Error(err))
		return
	}

	resp, err := s.Client.RequestAds(ctx, req)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.Stats.Errors.Add(1)
			s.Logger.Error("ad request error", zap.Error(err))
		}
		return
	}
	ads := resp.Ads()
	if len(ads) == 0 {
		s.Stats.NoBid.Add(1)
		s.Logger.Debug("no bid", zap.String("request_id", req.RequestID))
		return
	}
	s.Stats.Filled.Add(1)

	ad := ads[0]
	if err := s.Client.FireImpression(ctx, ad); err != nil {
		s.Stats.Errors.Add(1)
		s.Logger.Error("impression error", zap.Error(err))
		return
	}
	s.Stats.Tracked.Add(uint64(len(ad.Tracking.Impressions)))
	if rand.Float64() < s.Opts.ClickRate {
		if err := s.Client.FireClick(ctx, ad); err != nil {
			s.Stats.Errors.Add(1)
			s.Logger.Error("click error", zap.Error(err))
			return
		}
		s.Stats.Clicks.Add(1)
		s.Stats.Tracked.Add(uint64(len(ad.Tracking.Clicks)))
	}
	s.Logger.Debug("request",
		zap.String("request_id", req.RequestID),
		zap.String("ad_id", ad.ID),
		zap.String("creative_id", ad.Creative.ID))
}

func main() {
	_ = godotenv.Load()

	var opts Options
	kong.Parse(&opts, kong.Name("traffic_simulator"), kong.Description("Send simulated SDK traffic to an ad service."))

	level := zapcore.InfoLevel
	if opts.Debug {
		level = zapcore.DebugLevel
	}
	logger, err := observability.InitLoggerWithLevel(level, "traffic-simulator")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	sdkCfg := cfg.SDKConfig()
	if opts.BaseURL != "" {
		sdkCfg.BaseURL = opts.BaseURL
	}
	sdkCfg.LoggingEnabled = opts.Debug
	client, err := adsdk.NewClient(sdkCfg,
		adsdk.WithLogger(logger),
		adsdk.WithMetrics(observability.NewPrometheusRegistry()))
	if err != nil {
		logger.Fatal("create client", zap.Error(err))
	}

	if opts.Label == "" {
		opts.Label = time.Now().Format(time.RFC3339)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim := &Simulator{Client: client, Logger: logger, Opts: opts}
	sim.Run(ctx)
	sim.Stats.log(logger, opts.Label)
}
