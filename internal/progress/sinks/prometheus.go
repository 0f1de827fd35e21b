package sinks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/JakeFAU/docs-mirror/internal/progress"
)

var (
	pagesSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docsmirror_pages_saved_total",
		Help: "The total number of pages saved to the mirror.",
	})
	pagesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docsmirror_pages_failed_total",
		Help: "The total number of pages that terminally failed.",
	})
	robotsBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docsmirror_robots_blocked_total",
		Help: "The total number of URLs dropped by robots.txt.",
	})
	markdownFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docsmirror_markdown_fallbacks_total",
		Help: "The total number of jobs escalated from the markdown tier to hybrid HTML.",
	})
	renderEscalations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docsmirror_render_escalations_total",
		Help: "The total number of pages escalated to the headless renderer.",
	})
	workerScaleOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docsmirror_worker_scale_ops_total",
		Help: "Worker spawn/stop operations performed by the autoscaler.",
	}, []string{"kind", "direction"})
)

// Prometheus feeds the promauto counters from progress events.
type Prometheus struct{}

// NewPrometheus returns the metrics sink.
func NewPrometheus() *Prometheus {
	return &Prometheus{}
}

// Handle implements progress.Sink.
func (*Prometheus) Handle(evt progress.Event) {
	switch evt.Kind {
	case progress.KindPageSaved:
		pagesSaved.Inc()
	case progress.KindPageFailed:
		pagesFailed.Inc()
	case progress.KindRobotsBlocked:
		robotsBlocked.Inc()
	case progress.KindMarkdownFallback:
		markdownFallbacks.Inc()
	case progress.KindRenderEscalated:
		renderEscalations.Inc()
	case progress.KindWorkerScaled:
		direction := "up"
		if evt.Delta < 0 {
			direction = "down"
		}
		workerScaleOps.WithLabelValues(evt.WorkerKind, direction).Inc()
	}
}
