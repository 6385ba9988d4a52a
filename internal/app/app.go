// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/webintel/internal/clock/system"
	"github.com/JakeFAU/webintel/internal/config"
	"github.com/JakeFAU/webintel/internal/crawler"
	collyfetcher "github.com/JakeFAU/webintel/internal/fetcher/colly"
	"github.com/JakeFAU/webintel/internal/gather"
	"github.com/JakeFAU/webintel/internal/httpclient"
	"github.com/JakeFAU/webintel/internal/id/uuid"
	"github.com/JakeFAU/webintel/internal/metrics"
	"github.com/JakeFAU/webintel/internal/policy/ratelimit"
	"github.com/JakeFAU/webintel/internal/sources"
	"github.com/JakeFAU/webintel/internal/telemetry"
)

// Version is stamped into telemetry resources.
var Version = "dev"

// App holds the shared services. The fetcher and every source run over one
// pooled transport.
type App struct {
	cfg          config.Config
	logger       *zap.Logger
	transport    *http.Transport
	client       *http.Client
	engine       *crawler.Engine
	orchestrator *gather.Orchestrator
	telemetry    *telemetry.Providers
	metricsSrv   *http.Server
}

// New builds every service from cfg. It fails fast when any of them cannot
// be constructed.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	a := &App{cfg: cfg, logger: logger}
	if cfg.Telemetry.Enabled {
		providers, err := telemetry.Init(ctx, telemetry.Config{ServiceName: cfg.Telemetry.ServiceName, Version: Version})
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
		a.telemetry = providers
	}

	pool := cfg.HTTPClientConfig()
	a.transport = httpclient.NewTransport(pool)
	a.client = httpclient.NewWithTransport(pool, a.transport)

	fetcher := collyfetcher.New(
		collyfetcher.Config{
			UserAgent:    cfg.HTTP.UserAgent,
			Timeout:      cfg.HTTP.Timeout,
			MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		},
		a.transport,
		collyfetcher.WithLimiter(ratelimit.New(cfg.RateLimitConfig())),
		collyfetcher.WithLogger(logger.Named("fetcher")),
	)
	engine, err := crawler.NewEngine(fetcher, cfg.CrawlerConfig(), logger.Named("crawler"))
	if err != nil {
		return nil, fmt.Errorf("build crawl engine: %w", err)
	}
	a.engine = engine

	orchestrator, err := gather.New(cfg.GatherConfig(), sources.NewCrawl(engine), a.gatherOptions()...)
	if err != nil {
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}
	a.orchestrator = orchestrator

	logger.Info("application services initialized",
		zap.Int("max_pages", cfg.Crawler.MaxPages),
		zap.Int("max_concurrent", cfg.Crawler.MaxConcurrent),
		zap.Any("sources", orchestrator.Sources()),
		zap.Bool("telemetry", a.telemetry != nil),
	)
	return a, nil
}

func (a *App) gatherOptions() []gather.Option {
	client := sources.NewClient(a.client, int64(a.cfg.HTTP.MaxBodyBytes))
	logger := a.logger.Named("sources")
	opts := []gather.Option{
		gather.WithHomepage(sources.NewHomepage(client)),
		gather.WithIDGenerator(uuid.New()),
		gather.WithClock(system.New()),
		gather.WithLogger(a.logger.Named("gather")),
	}
	for _, name := range a.cfg.EnabledSources() {
		switch name {
		case sources.NameBlog:
			opts = append(opts, gather.WithSource(sources.NewBlog(client, a.cfg.Sources.BlogMaxPosts, logger)))
		case sources.NameSocial:
			opts = append(opts, gather.WithSource(sources.NewSocial(client)))
		case sources.NameVideo:
			opts = append(opts, gather.WithSource(sources.NewVideo(client, logger)))
		case sources.NameJobs:
			opts = append(opts, gather.WithSource(sources.NewJobs(client, logger)))
			if a.cfg.Sources.EnableFallbackJobSearch {
				opts = append(opts, gather.WithJobsFallback(
					sources.NewJobSearch(client, a.cfg.Sources.SearchEndpoint, a.cfg.Sources.SearchResultSelector)))
			}
		}
	}
	return opts
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// HTTPClient returns the pooled client shared by the sources.
func (a *App) HTTPClient() *http.Client {
	return a.client
}

// Engine returns the crawl engine.
func (a *App) Engine() *crawler.Engine {
	return a.engine
}

// Orchestrator returns the multi-source orchestrator.
func (a *App) Orchestrator() *gather.Orchestrator {
	return a.orchestrator
}

// Crawl runs a single site crawl.
func (a *App) Crawl(ctx context.Context, seedURL string) (crawler.CrawlResult, error) {
	return a.engine.Run(ctx, seedURL)
}

// Gather runs every enabled source for company.
func (a *App) Gather(ctx context.Context, company, seedURL string) gather.Bundle {
	return a.orchestrator.Gather(ctx, gather.Request{Company: company, SeedURL: seedURL})
}

// ServeMetrics exposes /metrics on addr in the background and returns the
// bound address. Close stops the server.
func (a *App) ServeMetrics(addr string) (string, error) {
	if a.metricsSrv != nil {
		return "", errors.New("metrics server already running")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("listen metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	a.metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := a.metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	a.logger.Info("metrics server listening", zap.String("addr", ln.Addr().String()))
	return ln.Addr().String(), nil
}

// Close shuts down the metrics server, flushes telemetry and releases idle
// connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.metricsSrv != nil {
		if err := a.metricsSrv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
		}
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
	}
	a.transport.CloseIdleConnections()
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
