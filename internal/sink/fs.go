// Package sink persists scrape results into the deterministic on-disk
// mirror layout.
package sink

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/JakeFAU/docs-mirror/internal/crawler"
	"github.com/JakeFAU/docs-mirror/internal/urlmap"
)

// Options control which variants are written.
type Options struct {
	// WriteClutter enables clutter.md when the page produced clutter.
	WriteClutter bool
	// OverwriteLLMS rewrites .llms.md and llms-full.md even when they
	// already exist.
	OverwriteLLMS bool
}

// Writer saves Markdown variants to disk.
type Writer struct {
	opts   Options
	logger *zap.Logger
}

// NewWriter returns a Writer.
func NewWriter(opts Options, logger *zap.Logger) *Writer {
	return &Writer{opts: opts, logger: logger}
}

// Write persists the result under paths. page.md is always written; the
// other variants follow the configured policy.
func (w *Writer) Write(res *crawler.ScrapeResult, paths urlmap.OutputPaths) error {
	if err := os.MkdirAll(paths.Dir, 0o750); err != nil {
		return fmt.Errorf("create page dir %s: %w", paths.Dir, err)
	}
	if err := os.WriteFile(paths.PagePath, []byte(res.Page), 0o600); err != nil {
		return fmt.Errorf("write page %s: %w", paths.PagePath, err)
	}

	if w.opts.WriteClutter && res.Clutter != "" {
		if err := os.WriteFile(paths.ClutterPath, []byte(res.Clutter), 0o600); err != nil {
			return fmt.Errorf("write clutter %s: %w", paths.ClutterPath, err)
		}
	}

	if err := w.writeGuarded(paths.LLMSPath, res.LLMS); err != nil {
		return err
	}
	if err := w.writeGuarded(paths.LLMSFullPath, res.LLMSFull); err != nil {
		return err
	}
	return nil
}

// writeGuarded writes the llms variants, skipping existing files unless
// overwriting was requested.
func (w *Writer) writeGuarded(path, content string) error {
	if content == "" {
		return nil
	}
	if !w.opts.OverwriteLLMS {
		if _, err := os.Stat(path); err == nil {
			w.logger.Debug("keeping existing file", zap.String("path", path))
			return nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// PageExists reports whether the page file for a normalized URL is
// already on disk; the link rewriter uses it as its exact fallback.
func PageExists(normalized, outDir string) bool {
	paths, err := urlmap.BuildOutputPaths(normalized, outDir)
	if err != nil {
		return false
	}
	_, err = os.Stat(paths.PagePath)
	return err == nil
}
