// Command mock-server runs a local ad-decision service for SDK development.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/patrickwarner/openadserve-sdk/internal/config"
	"github.com/patrickwarner/openadserve-sdk/internal/geoip"
	"github.com/patrickwarner/openadserve-sdk/internal/mockserver"
	"github.com/patrickwarner/openadserve-sdk/internal/observability"
	"github.com/patrickwarner/openadserve-sdk/internal/ratelimit"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.InitLoggerWithService(cfg.ServiceName + "-mock")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(ctx, logger, cfg.ServiceName+"-mock", cfg.TempoEndpoint, cfg.TracingSampleRate)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdown()
	}

	inv, err := mockserver.LoadInventory(cfg.InventoryFile)
	if err != nil {
		return err
	}

	var geo *geoip.Resolver
	if cfg.GeoIPDB != "" {
		geo, err = geoip.Open(cfg.GeoIPDB)
		if err != nil {
			return fmt.Errorf("failed to load geoip db: %w", err)
		}
		defer func() { _ = geo.Close() }()
	}

	srvDeps := mockserver.NewServer(logger, inv, geo, observability.NewPrometheusRegistry(), []byte(cfg.TokenSecret), cfg.TokenTTL)
	if cfg.RequireAPIKey {
		srvDeps.APIKey = cfg.APIKey
	}
	srvDeps.Limiter = ratelimit.NewClientLimiter(ratelimit.Config{
		Capacity:   cfg.RateLimitCapacity,
		RefillRate: cfg.RateLimitRefill,
		Enabled:    cfg.RateLimitEnabled,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      srvDeps.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Info("Mock ad server running",
		zap.String("addr", addr),
		zap.Int("placements", len(inv.Placements)),
		zap.Bool("api_key_required", srvDeps.APIKey != ""),
		zap.Bool("rate_limit", srvDeps.Limiter.Enabled()))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	for _, st := range srvDeps.Limiter.Stats() {
		if st.Hits > 0 {
			logger.Info("rate limit summary", zap.Stringer("stats", st))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
