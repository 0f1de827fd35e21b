package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/JakeFAU/docs-mirror/internal/scheduler"
	"github.com/JakeFAU/docs-mirror/internal/urlmap"
)

func newCrawlCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl a site from a start URL, following in-scope links",
		Long: `Crawl seeds the frontier with the start URL. The crawl scope is the
URL's origin plus its pathname prefix; discovered links outside the
scope are never fetched, and links to other origins are marked external
in the written Markdown.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, v, args[0])
		},
	}
}

func runCrawl(cmd *cobra.Command, v *viper.Viper, rawURL string) error {
	scope, err := urlmap.ScopeFromURL(rawURL)
	if err != nil {
		return fmt.Errorf("invalid start url: %w", err)
	}
	return runSeeds(cmd, v, []scheduler.Seed{{URL: rawURL, Scope: scope}})
}
