// Package worker implements the two crawl worker tiers and the pool that
// manages their lifecycles.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/docs-mirror/internal/crawler"
	"github.com/JakeFAU/docs-mirror/internal/sink"
	"github.com/JakeFAU/docs-mirror/internal/urlmap"
)

// DefaultInactivityTimeout stops a worker that has been idle without an
// assignment; the autoscaler respawns capacity when work returns.
const DefaultInactivityTimeout = 30 * time.Second

const commandBuffer = 8

// Deps are the collaborators injected into every worker.
type Deps struct {
	Client   crawler.HTTPClient
	Renderer crawler.Renderer
	Writer   *sink.Writer
	// Hints is the shared link-existence filter; workers add every page
	// they are about to save and consult it while rewriting links.
	Hints crawler.LinkFilter
	Clock  crawler.Clock
	Logger *zap.Logger
	OutDir string
	// InactivityTimeout falls back to DefaultInactivityTimeout when zero.
	InactivityTimeout time.Duration
}

// Worker runs the cooperative job loop for one tier. It owns no shared
// state: jobs arrive on its mailbox and outcomes leave as events.
type Worker struct {
	id       int
	kind     crawler.WorkerKind
	commands chan crawler.Command
	events   chan<- crawler.WorkerEvent
	deps     Deps
}

// New constructs a Worker posting events to the scheduler channel.
func New(id int, kind crawler.WorkerKind, events chan<- crawler.WorkerEvent, deps Deps) *Worker {
	if deps.InactivityTimeout <= 0 {
		deps.InactivityTimeout = DefaultInactivityTimeout
	}
	return &Worker{
		id:       id,
		kind:     kind,
		commands: make(chan crawler.Command, commandBuffer),
		events:   events,
		deps:     deps,
	}
}

// ID returns the worker's pool id.
func (w *Worker) ID() int {
	return w.id
}

// Kind returns the worker's tier.
func (w *Worker) Kind() crawler.WorkerKind {
	return w.kind
}

// Post delivers a scheduler command to the worker's mailbox.
func (w *Worker) Post(cmd crawler.Command) {
	w.commands <- cmd
}

// Run executes the worker state machine until stopped: announce ready,
// process assignments, and exit on stop or prolonged idleness.
func (w *Worker) Run(ctx context.Context) {
	w.emit(crawler.WorkerEvent{Type: crawler.EventReady})

	idle := time.NewTimer(w.deps.InactivityTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			w.emit(crawler.WorkerEvent{Type: crawler.EventStopped, Reason: "stop"})
			return
		case <-idle.C:
			// A command racing the inactivity timer wins; an assignment
			// parked in the mailbox must not be lost.
			select {
			case cmd := <-w.commands:
				if !w.handleCommand(ctx, cmd, idle) {
					return
				}
			default:
				w.emit(crawler.WorkerEvent{Type: crawler.EventStopped, Reason: "idle"})
				return
			}
		case cmd := <-w.commands:
			if !w.handleCommand(ctx, cmd, idle) {
				return
			}
		}
	}
}

// handleCommand processes one scheduler command; false means the worker
// announced its stop and the loop must exit.
func (w *Worker) handleCommand(ctx context.Context, cmd crawler.Command, idle *time.Timer) bool {
	switch cmd.Type {
	case crawler.CommandStop:
		w.emit(crawler.WorkerEvent{Type: crawler.EventStopped, Reason: "stop"})
		return false
	case crawler.CommandAssign:
		if !w.handleJob(ctx, cmd.Job) {
			return false
		}
		w.emit(crawler.WorkerEvent{Type: crawler.EventReady})
		resetTimer(idle, w.deps.InactivityTimeout)
		return true
	default:
		w.deps.Logger.Warn("unexpected command while idle",
			zap.Int("worker", w.id), zap.String("type", string(cmd.Type)))
		return true
	}
}

// handleJob executes one assignment; false means the worker already
// announced its stop and the loop must exit.
func (w *Worker) handleJob(ctx context.Context, job *crawler.Job) bool {
	if job == nil {
		return true
	}
	if !w.waitUntil(ctx, job.WaitUntil) {
		w.emit(crawler.WorkerEvent{Type: crawler.EventFailed, JobID: job.ID, Reason: "canceled"})
		w.emit(crawler.WorkerEvent{Type: crawler.EventStopped, Reason: "stop"})
		return false
	}
	switch w.kind {
	case crawler.KindMarkdown:
		w.runMarkdown(ctx, job)
		return true
	case crawler.KindHybrid:
		return w.runHybrid(ctx, job)
	}
	return true
}

// waitUntil parks the worker until the job's politeness deadline. False
// means the context ended first.
func (w *Worker) waitUntil(ctx context.Context, deadline time.Time) bool {
	delay := time.Until(deadline)
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (w *Worker) emit(evt crawler.WorkerEvent) {
	evt.WorkerID = w.id
	evt.Kind = w.kind
	w.events <- evt
}

// known is the link-rewriter predicate: the shared hint filter first,
// then the exact on-disk check.
func (w *Worker) known(normalized string) bool {
	if w.deps.Hints != nil && w.deps.Hints.MayContain(normalized) {
		return true
	}
	return sink.PageExists(normalized, w.deps.OutDir)
}

// pagePaths maps the job URL to its output layout.
func (w *Worker) pagePaths(job *crawler.Job) (urlmap.OutputPaths, error) {
	return urlmap.BuildOutputPaths(job.URL, w.deps.OutDir)
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
