// Package progress defines the crawl progress events and the hub that
// fans them out to sinks.
package progress

import "time"

// Kind denotes the milestone an Event represents.
type Kind string

// Supported progress event kinds.
const (
	KindPageSaved        Kind = "PAGE_SAVED"
	KindPageFailed       Kind = "PAGE_FAILED"
	KindRobotsBlocked    Kind = "ROBOTS_BLOCKED"
	KindMarkdownFallback Kind = "MARKDOWN_FALLBACK"
	KindRenderEscalated  Kind = "RENDER_ESCALATED"
	KindWorkerScaled     Kind = "WORKER_SCALED"
)

// Event captures a single milestone of crawl progress.
type Event struct {
	Kind Kind
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// URL is the page involved, when the event concerns one.
	URL string
	// Reason carries failure text or the scaling summary.
	Reason string
	// WorkerKind labels scaling events ("markdown" or "hybrid").
	WorkerKind string
	// Delta is the worker-count change on KindWorkerScaled.
	Delta int
}
