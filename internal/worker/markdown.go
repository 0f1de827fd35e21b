package worker

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/docs-mirror/internal/crawler"
	"github.com/JakeFAU/docs-mirror/internal/markdown"
	"github.com/JakeFAU/docs-mirror/internal/urlmap"
)

// markdownAccept asks the origin for a Markdown or plain-text rendition.
const markdownAccept = "text/markdown,text/plain;q=0.9,*/*;q=0.8"

// runMarkdown probes the companion Markdown URL for the job and either
// produces a result from raw Markdown or reports the job unavailable for
// this tier.
func (w *Worker) runMarkdown(ctx context.Context, job *crawler.Job) {
	companion, err := urlmap.CompanionMarkdownURL(job.URL)
	if err != nil {
		w.emit(crawler.WorkerEvent{Type: crawler.EventFailed, JobID: job.ID, Reason: err.Error()})
		return
	}
	if refusedAsset(job.URL) {
		// Stylesheets and scripts are never probed; skip straight to the
		// hybrid tier.
		w.emit(crawler.WorkerEvent{Type: crawler.EventMarkdownUnavailable, JobID: job.ID})
		return
	}

	started := w.deps.Clock.Now()
	resp, err := w.deps.Client.Fetch(ctx, companion, map[string]string{"Accept": markdownAccept})
	if err != nil {
		w.emit(crawler.WorkerEvent{
			Type:   crawler.EventFailed,
			JobID:  job.ID,
			Reason: err.Error(),
			Active: w.deps.Clock.Now().Sub(started),
		})
		return
	}
	if !resp.OK() {
		if resp.Status != 404 && resp.Status != 410 {
			w.deps.Logger.Debug("companion markdown fetch declined",
				zap.String("url", companion),
				zap.Int("status", resp.Status))
		}
		w.emit(crawler.WorkerEvent{
			Type:   crawler.EventMarkdownUnavailable,
			JobID:  job.ID,
			Active: w.deps.Clock.Now().Sub(started),
		})
		return
	}

	body := resp.Body
	title := markdown.FirstHeading(body)
	if title == "" {
		title = titleFromURL(job.URL)
	}
	doc := markdown.Compose(body, job.URL, title, w.deps.Clock.Now())

	res := &crawler.ScrapeResult{
		Source:   job.URL,
		Fetched:  w.deps.Clock.Now(),
		Title:    title,
		Page:     doc,
		LLMS:     doc,
		LLMSFull: doc,
	}
	var links []string
	if job.CanGoDeeper {
		links = markdown.Links(body, job.URL, job.Scope)
	}
	w.finish(job, res, links, started)
}

// finish runs the shared tail of both tiers: seed the hint filter with
// the page and its discovered links, rewrite, and write to disk.
func (w *Worker) finish(job *crawler.Job, res *crawler.ScrapeResult, links []string, started time.Time) {
	paths, err := w.pagePaths(job)
	if err != nil {
		w.emit(crawler.WorkerEvent{Type: crawler.EventFailed, JobID: job.ID, Reason: err.Error()})
		return
	}
	if w.deps.Hints != nil {
		w.deps.Hints.Add(job.URL)
		for _, link := range links {
			w.deps.Hints.Add(link)
		}
	}
	markdown.RewriteResult(res, markdown.RewriteOptions{
		PageURL:  job.URL,
		PagePath: paths.PagePath,
		OutDir:   w.deps.OutDir,
		Known:    w.known,
	})
	res.Links = links

	if err := w.deps.Writer.Write(res, paths); err != nil {
		w.emit(crawler.WorkerEvent{
			Type:   crawler.EventFailed,
			JobID:  job.ID,
			Reason: fmt.Sprintf("write: %v", err),
			Active: w.deps.Clock.Now().Sub(started),
		})
		return
	}
	w.emit(crawler.WorkerEvent{
		Type:   crawler.EventCompleted,
		JobID:  job.ID,
		Links:  links,
		Active: w.deps.Clock.Now().Sub(started),
	})
}

func refusedAsset(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path)
	return strings.HasSuffix(p, ".css") || strings.HasSuffix(p, ".js")
}

// titleFromURL falls back to the last path segment, or the host for the
// site root.
func titleFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	trimmed := strings.Trim(u.Path, "/")
	if trimmed == "" {
		return u.Hostname()
	}
	segments := strings.Split(trimmed, "/")
	return segments[len(segments)-1]
}
