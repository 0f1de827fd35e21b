// Package cmd defines the docs-mirror CLI.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// receivedSignal records the terminating signal so Execute can map it to
// the conventional exit code (130 for SIGINT, 143 for SIGTERM).
var receivedSignal atomic.Int32

func newRootCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs-mirror [url]",
		Short: "Mirror documentation sites into cross-linked local Markdown",
		Long: `docs-mirror crawls a documentation site and writes a local Markdown
mirror: one directory per page with the main content, optional clutter,
and LLM-ingestion variants, with in-scope links rewritten to relative
on-disk paths.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// A bare URL positional is shorthand for the crawl command.
			if len(args) == 1 && looksLikeURL(args[0]) {
				return runCrawl(cmd, v, args[0])
			}
			return cmd.Help()
		},
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.String("outDir", ".docs", "output directory for the mirror")
	flags.Int("concurrency", 8, "maximum number of workers")
	flags.Int("timeout", 15, "per-fetch timeout in seconds")
	flags.Int("retries", 2, "transport-level retry budget per fetch")
	flags.String("userAgent", "", "User-Agent header sent verbatim")
	flags.Int("maxDepth", 3, "maximum link depth from the seed")
	flags.Int("maxPages", 100, "maximum number of pages to save")
	flags.Int("delay", 0, "minimum per-origin request spacing in milliseconds")
	flags.Bool("robots", true, "honor robots.txt rules and crawl delays")
	flags.Bool("render", true, "escalate thin pages to a headless render")
	flags.Bool("overwrite-llms", false, "rewrite existing .llms.md and llms-full.md files")
	flags.Bool("clutter", false, "also write clutter.md with stripped boilerplate")
	flags.Bool("verbose", false, "debug logging")
	flags.String("status-addr", "", "optional listen address for /status and /metrics")

	bind := map[string]string{
		"output.dir":             "outDir",
		"crawler.concurrency":    "concurrency",
		"http.timeout_seconds":   "timeout",
		"http.retries":           "retries",
		"crawler.user_agent":     "userAgent",
		"crawler.max_depth":      "maxDepth",
		"crawler.max_pages":      "maxPages",
		"crawler.delay_ms":       "delay",
		"crawler.respect_robots": "robots",
		"render.enabled":         "render",
		"output.overwrite_llms":  "overwrite-llms",
		"output.clutter":         "clutter",
		"verbose":                "verbose",
		"status_addr":            "status-addr",
	}
	for key, flag := range bind {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}

	cmd.AddCommand(newCrawlCmd(v), newURLCmd(v), newURLsCmd(v))
	return cmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	v := viper.New()
	root := newRootCmd(v)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if sig, ok := <-sigCh; ok {
			if s, isSyscall := sig.(syscall.Signal); isSyscall {
				receivedSignal.Store(int32(s))
			}
		}
	}()
	defer signal.Stop(sigCh)

	err := root.ExecuteContext(ctx)
	if sig := receivedSignal.Load(); sig != 0 {
		return 128 + int(sig)
	}
	if err != nil {
		return 1
	}
	return 0
}

func looksLikeURL(arg string) bool {
	return strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://")
}
