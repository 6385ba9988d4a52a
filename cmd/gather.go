package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newGatherCmd creates the 'gather' subcommand, which runs the crawl and
// every enabled source and prints the bundle.
func newGatherCmd() *cobra.Command {
	var (
		company string
		seedURL string
		output  string
	)
	cmd := &cobra.Command{
		Use:   "gather",
		Short: "Gather intelligence about a company",
		Long: `Runs the site crawl together with the blog, social, video and jobs
sources over one connection pool. Sources that fail are reported in the
bundle without affecting the others; when the careers page lists no roles,
a web search for the company's job postings is tried instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			bundle := appInstance.Gather(cmd.Context(), company, seedURL)
			if failed := bundle.Failed(); len(failed) > 0 {
				appInstance.Logger().Info("some sources failed", zap.Any("sources", failed))
			}
			return writeJSON(cmd, output, bundle)
		},
	}
	cmd.Flags().StringVar(&company, "company", "", "company name used for search queries")
	cmd.Flags().StringVar(&seedURL, "url", "", "company website")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write JSON to this file instead of stdout")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}
