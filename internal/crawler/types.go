package crawler

import (
	"time"

	"github.com/JakeFAU/docs-mirror/internal/urlmap"
)

// WorkerKind distinguishes the two worker tiers.
type WorkerKind string

// Worker kinds. Markdown workers probe for a companion Markdown URL;
// hybrid workers fetch HTML and may escalate to a headless render.
const (
	KindMarkdown WorkerKind = "markdown"
	KindHybrid   WorkerKind = "hybrid"
)

// Job is a single unit of crawl work. Exactly one owner at a time: the
// scheduler while queued, a worker while in flight.
type Job struct {
	ID          string
	URL         string
	Depth       int
	CanGoDeeper bool
	Scope       *urlmap.Scope
	// WaitUntil is the per-origin politeness deadline computed by the
	// scheduler at dispatch. Workers must not start fetching before it.
	WaitUntil time.Time
}

// ScrapeResult carries the Markdown variants produced for one page.
type ScrapeResult struct {
	Source  string
	Fetched time.Time
	Title   string

	// Page is the rewritten main Markdown, always written.
	Page string
	// Clutter holds the stripped-away navigation/boilerplate Markdown;
	// empty when the page had none.
	Clutter string
	// LLMS and LLMSFull are the ingestion-oriented variants.
	LLMS     string
	LLMSFull string

	// Links are the in-scope absolute URLs discovered on the page,
	// deduplicated and in document order.
	Links []string

	UsedRenderer bool
}

// Variants returns pointers to every non-empty Markdown text so the link
// rewriter can transform them in place.
func (r *ScrapeResult) Variants() []*string {
	out := make([]*string, 0, 4)
	for _, v := range []*string{&r.Page, &r.Clutter, &r.LLMS, &r.LLMSFull} {
		if *v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Clock returns the current time; injected so tests control timestamps.
type Clock interface {
	Now() time.Time
}
