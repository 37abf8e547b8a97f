// Command sample-app shows how an app integrates the ad SDK: it builds a
// decision request, prints the selected ads and fires their tracking URLs.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/patrickwarner/openadserve-sdk/adsdk"
	"github.com/patrickwarner/openadserve-sdk/internal/config"
	"github.com/patrickwarner/openadserve-sdk/internal/observability"
)

// Global is bound into every command's Run method.
type Global struct {
	Client      *adsdk.Client
	Logger      *zap.Logger
	Out         io.Writer
	PublisherID int
}

// CLI definition & global flags. Flags override ADSDK_* environment settings.
type CLI struct {
	BaseURL string           `name:"base-url" help:"Ad service base URL (overrides ADSDK_BASE_URL)"`
	APIKey  string           `name:"api-key" help:"API key (overrides ADSDK_API_KEY)"`
	Timeout time.Duration    `help:"Request timeout (overrides ADSDK_REQUEST_TIMEOUT)"`
	Verbose bool             `short:"v" help:"Log HTTP traffic at debug level"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Request RequestCmd `cmd:"" help:"Request ads and print the decisions as JSON"`
	Demo    DemoCmd    `cmd:"" help:"Request ads, then report impressions and interactions"`
	Track   TrackCmd   `cmd:"" help:"Fire a single tracking URL"`
	Health  HealthCmd  `cmd:"" help:"Check that the ad service is reachable"`
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "sample-app: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, options ...kong.Option) error {
	var cli CLI
	options = append([]kong.Option{
		kong.Name("sample-app"),
		kong.Description("Sample integration of the openadserve SDK."),
		kong.UsageOnError(),
		kong.Vars{"version": "1.0.0"},
		kong.BindTo(ctx, (*context.Context)(nil)),
	}, options...)
	parser, err := kong.New(&cli, options...)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	sdkCfg := cfg.SDKConfig()
	if cli.BaseURL != "" {
		sdkCfg.BaseURL = cli.BaseURL
	}
	if cli.APIKey != "" {
		sdkCfg.APIKey = cli.APIKey
	}
	if cli.Timeout > 0 {
		sdkCfg.RequestTimeout = cli.Timeout
	}
	if cli.Verbose {
		sdkCfg.LoggingEnabled = true
	}

	level := zap.InfoLevel
	if cli.Verbose {
		level = zap.DebugLevel
	}
	logger, err := observability.NewLogger(level, "sample-app")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(ctx, logger, cfg.ServiceName, cfg.TempoEndpoint, cfg.TracingSampleRate)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdown()
	}

	client, err := adsdk.NewClient(sdkCfg, adsdk.WithLogger(logger))
	if err != nil {
		return err
	}

	return kctx.Run(&Global{
		Client:      client,
		Logger:      logger,
		Out:         out,
		PublisherID: cfg.PublisherID,
	})
}
