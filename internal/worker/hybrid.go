package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/docs-mirror/internal/crawler"
	"github.com/JakeFAU/docs-mirror/internal/extract"
	"github.com/JakeFAU/docs-mirror/internal/markdown"
)

// runHybrid fetches the page HTML, prefers a main-content extraction,
// and escalates to the headless renderer when the static fetch lacks
// sufficient content. Returns false when the worker consumed a stop
// while suspended and must exit.
func (w *Worker) runHybrid(ctx context.Context, job *crawler.Job) bool {
	started := w.deps.Clock.Now()
	resp, err := w.deps.Client.Fetch(ctx, job.URL, nil)
	if err != nil {
		w.fail(job, started, err.Error())
		return true
	}
	if !resp.OK() {
		w.fail(job, started, fmt.Sprintf("HTTP %d %s", resp.Status, resp.Reason))
		return true
	}
	return w.produceFromHTML(ctx, job, resp.Body, started, false)
}

// produceFromHTML extracts, gates, and writes. rendered marks the second
// pass after a headless fetch; a second insufficiency is terminal.
func (w *Worker) produceFromHTML(ctx context.Context, job *crawler.Job, html string, started time.Time, rendered bool) bool {
	ex, err := extract.Extract(html, job.URL)
	if err != nil {
		w.fail(job, started, err.Error())
		return true
	}

	if !ex.Sufficient {
		if rendered {
			w.fail(job, started, "insufficient content after render")
			return true
		}
		w.emit(crawler.WorkerEvent{Type: crawler.EventHTMLInsufficient, JobID: job.ID})
		cont, proceed := w.awaitRender(ctx, job, started)
		if !proceed {
			return cont
		}
		renderedHTML, rerr := w.deps.Renderer.Render(ctx, job.URL)
		if rerr != nil {
			w.fail(job, started, fmt.Sprintf("render: %v", rerr))
			return true
		}
		return w.produceFromHTML(ctx, job, renderedHTML, started, true)
	}

	res, err := w.buildResult(job, ex, rendered)
	if err != nil {
		w.fail(job, started, err.Error())
		return true
	}
	var links []string
	if job.CanGoDeeper {
		links = extract.Links(html, job.URL, job.Scope)
	}
	w.finish(job, res, links, started)
	return true
}

// awaitRender suspends the worker until the scheduler answers the
// insufficiency report. The job stays pinned to this worker; no other
// assignment is accepted meanwhile. The first return value is the
// keep-running flag, the second reports whether a render was granted.
func (w *Worker) awaitRender(ctx context.Context, job *crawler.Job, started time.Time) (bool, bool) {
	for {
		select {
		case <-ctx.Done():
			w.fail(job, started, "canceled during render wait")
			w.emit(crawler.WorkerEvent{Type: crawler.EventStopped, Reason: "stop"})
			return false, false
		case cmd := <-w.commands:
			switch cmd.Type {
			case crawler.CommandRender:
				return true, true
			case crawler.CommandStop:
				w.fail(job, started, "worker stopped during render wait")
				w.emit(crawler.WorkerEvent{Type: crawler.EventStopped, Reason: "stop"})
				return false, false
			default:
				w.deps.Logger.Warn("unexpected command while suspended",
					zap.Int("worker", w.id), zap.String("type", string(cmd.Type)))
			}
		}
	}
}

func (w *Worker) buildResult(job *crawler.Job, ex extract.Result, rendered bool) (*crawler.ScrapeResult, error) {
	pageMD, err := markdown.Convert(ex.MainHTML)
	if err != nil {
		return nil, err
	}
	fullMD, err := markdown.Convert(ex.FullHTML)
	if err != nil {
		return nil, err
	}
	clutterMD := ""
	if ex.ClutterHTML != "" {
		if clutterMD, err = markdown.Convert(ex.ClutterHTML); err != nil {
			return nil, err
		}
	}

	title := ex.Title
	if title == "" {
		title = titleFromURL(job.URL)
	}
	now := w.deps.Clock.Now()
	page := markdown.Compose(pageMD, job.URL, title, now)

	res := &crawler.ScrapeResult{
		Source:       job.URL,
		Fetched:      now,
		Title:        title,
		Page:         page,
		LLMS:         page,
		LLMSFull:     markdown.Compose(fullMD, job.URL, title, now),
		UsedRenderer: rendered,
	}
	if clutterMD != "" {
		res.Clutter = markdown.Compose(clutterMD, job.URL, title, now)
	}
	return res, nil
}

func (w *Worker) fail(job *crawler.Job, started time.Time, reason string) {
	w.emit(crawler.WorkerEvent{
		Type:   crawler.EventFailed,
		JobID:  job.ID,
		Reason: reason,
		Active: w.deps.Clock.Now().Sub(started),
	})
}
