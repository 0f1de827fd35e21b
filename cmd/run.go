package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/docs-mirror/internal/api"
	"github.com/JakeFAU/docs-mirror/internal/clock/system"
	"github.com/JakeFAU/docs-mirror/internal/config"
	"github.com/JakeFAU/docs-mirror/internal/crawler"
	"github.com/JakeFAU/docs-mirror/internal/dedup"
	"github.com/JakeFAU/docs-mirror/internal/fetch"
	"github.com/JakeFAU/docs-mirror/internal/logging"
	"github.com/JakeFAU/docs-mirror/internal/progress"
	"github.com/JakeFAU/docs-mirror/internal/progress/sinks"
	"github.com/JakeFAU/docs-mirror/internal/render"
	"github.com/JakeFAU/docs-mirror/internal/scheduler"
	"github.com/JakeFAU/docs-mirror/internal/sink"
	"github.com/JakeFAU/docs-mirror/internal/worker"
)

// runSeeds wires the full pipeline and drives one crawl or scrape run.
func runSeeds(cmd *cobra.Command, v *viper.Viper, seeds []scheduler.Seed) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store := sinks.NewStore()
	hub := progress.NewHub(logger, sinks.NewLog(logger), sinks.NewPrometheus(), store)

	client, err := fetch.NewClient(fetch.Config{
		UserAgent:   cfg.Crawler.UserAgent,
		Timeout:     cfg.Timeout(),
		Retries:     cfg.HTTP.Retries,
		Concurrency: cfg.Crawler.Concurrency,
	}, logger)
	if err != nil {
		return err
	}

	renderer, closeRenderer := buildRenderer(cfg, logger)
	defer closeRenderer()

	bloom := dedup.NewBloom()
	clk := system.New()
	deps := worker.Deps{
		Client:   client,
		Renderer: renderer,
		Writer: sink.NewWriter(sink.Options{
			WriteClutter:  cfg.Output.Clutter,
			OverwriteLLMS: cfg.Output.OverwriteLLMS,
		}, logger),
		Hints:  bloom,
		Clock:  clk,
		Logger: logger,
		OutDir: cfg.Output.Dir,
	}

	sched := scheduler.New(scheduler.Config{
		OutDir:        cfg.Output.Dir,
		MaxDepth:      cfg.Crawler.MaxDepth,
		MaxPages:      cfg.Crawler.MaxPages,
		Concurrency:   cfg.Crawler.Concurrency,
		Delay:         cfg.Delay(),
		UserAgent:     cfg.Crawler.UserAgent,
		RespectRobots: cfg.Crawler.RespectRobots,
	}, deps, client, clk, bloom, hub, logger)

	if cfg.StatusAddr != "" {
		statusSrv := api.NewServer(cfg.StatusAddr, store, logger)
		statusSrv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if serr := statusSrv.Shutdown(shutdownCtx); serr != nil {
				logger.Debug("status server shutdown", zap.Error(serr))
			}
		}()
	}

	summary, runErr := sched.Run(cmd.Context(), seeds)

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if cerr := hub.Close(closeCtx); cerr != nil {
		logger.Debug("progress hub close", zap.Error(cerr))
	}

	printSummary(cmd, summary)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// buildRenderer starts chromedp when rendering is enabled, degrading to
// the no-op renderer when the browser cannot be launched.
func buildRenderer(cfg config.Config, logger *zap.Logger) (crawler.Renderer, func()) {
	if !cfg.Render.Enabled {
		return render.Noop{}, func() {}
	}
	r, err := render.New(render.Config{
		UserAgent:      cfg.Crawler.UserAgent,
		Timeout:        cfg.RenderTimeout(),
		MaxConcurrency: cfg.Render.MaxParallel,
		DomainQPS:      cfg.Render.DomainQPS,
	}, logger)
	if err != nil {
		logger.Warn("headless renderer unavailable; thin pages will fail instead of rendering",
			zap.Error(err))
		return render.Noop{}, func() {}
	}
	return r, r.Close
}

func printSummary(cmd *cobra.Command, summary scheduler.Summary) {
	out := cmd.OutOrStdout()
	elapsed := summary.Elapsed.Round(time.Millisecond)
	if len(summary.Failures) > 0 {
		fmt.Fprintf(out, "Completed in %s (%d saved, %d failed)\n", elapsed, summary.Saved, len(summary.Failures))
		fmt.Fprintf(out, "Failures (%d):\n", len(summary.Failures))
		for i, failure := range summary.Failures {
			fmt.Fprintf(out, "  %d. %s\n", i+1, failure)
		}
		return
	}
	fmt.Fprintf(out, "Completed in %s (%d saved)\n", elapsed, summary.Saved)
}
