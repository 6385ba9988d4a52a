// Package cmd defines and implements the CLI commands for the webintel
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/webintel/internal/app"
	"github.com/JakeFAU/webintel/internal/config"
	"github.com/JakeFAU/webintel/internal/crawler"
	"github.com/JakeFAU/webintel/internal/gather"
	"github.com/JakeFAU/webintel/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is what the commands need from the service container. Tests inject a
// fake through newApp.
type App interface {
	Logger() *zap.Logger
	Crawl(ctx context.Context, seedURL string) (crawler.CrawlResult, error)
	Gather(ctx context.Context, company, seedURL string) gather.Bundle
	ServeMetrics(addr string) (string, error)
	Close(ctx context.Context) error
}

type rootOptions struct {
	configFile  string
	metricsAddr string
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, opts rootOptions) (App, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.metricsAddr != "" {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Metrics.Addr != "" {
		if _, err := a.ServeMetrics(cfg.Metrics.Addr); err != nil {
			_ = a.Close(ctx)
			return nil, err
		}
	}
	return a, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var opts rootOptions
	cmd := &cobra.Command{
		Use:   "webintel",
		Short: "Gather public web intelligence about a company.",
		Long: `webintel crawls a company's website with a bounded number of concurrent
fetches and, alongside the crawl, collects its blog posts, social profiles,
video channel and job postings. Results are printed as JSON.`,
		SilenceUsage: true,

		// Build the application once flags are parsed and hand it to the
		// subcommand through the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return nil
			}
			return appInstance.Close(context.WithoutCancel(cmd.Context()))
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (YAML); WEBINTEL_* env vars override it")
	cmd.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")

	cmd.AddCommand(newCrawlCmd(), newGatherCmd())
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the running
// command, which still prints whatever it gathered.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "webintel:", err)
		stop()
		os.Exit(1)
	}
}
