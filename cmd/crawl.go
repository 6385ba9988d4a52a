package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newCrawlCmd creates the 'crawl' subcommand, which crawls one site and
// prints the CrawlResult.
func newCrawlCmd() *cobra.Command {
	var (
		seedURL string
		output  string
	)
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl a single site",
		Long: `Crawls the site rooted at --url, starting from its sitemap and navigation
links and following the highest-priority links until the page budget, the
depth limit or the coverage goal is reached.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			result, err := appInstance.Crawl(cmd.Context(), seedURL)
			switch {
			case err == nil:
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				appInstance.Logger().Warn("crawl interrupted; writing partial result", zap.Int("pages", len(result.Pages)))
			default:
				return fmt.Errorf("run crawl: %w", err)
			}
			return writeJSON(cmd, output, result)
		},
	}
	cmd.Flags().StringVar(&seedURL, "url", "", "seed URL of the site to crawl")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write JSON to this file instead of stdout")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}
