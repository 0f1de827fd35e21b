// Package sinks provides the progress sink implementations.
package sinks

import (
	"go.uber.org/zap"

	"github.com/JakeFAU/docs-mirror/internal/progress"
)

// Log writes one line per milestone, matching the CLI's user-facing
// vocabulary ("saved", "blocked", "failed").
type Log struct {
	logger *zap.Logger
}

// NewLog returns a logging sink.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

// Handle implements progress.Sink.
func (l *Log) Handle(evt progress.Event) {
	switch evt.Kind {
	case progress.KindPageSaved:
		l.logger.Info("saved", zap.String("url", evt.URL))
	case progress.KindPageFailed:
		l.logger.Warn("failed", zap.String("url", evt.URL), zap.String("reason", evt.Reason))
	case progress.KindRobotsBlocked:
		l.logger.Info("Blocked by robots.txt", zap.String("url", evt.URL))
	case progress.KindMarkdownFallback:
		l.logger.Debug("markdown unavailable; falling back to HTML", zap.String("url", evt.URL))
	case progress.KindRenderEscalated:
		l.logger.Debug("escalating to headless render", zap.String("url", evt.URL))
	case progress.KindWorkerScaled:
		l.logger.Debug("worker pool retargeted",
			zap.String("kind", evt.WorkerKind),
			zap.Int("delta", evt.Delta))
	}
}
