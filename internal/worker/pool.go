package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/docs-mirror/internal/crawler"
)

// Pool lifecycle constants. The pool keeps at least MinPerKind workers of
// each tier while work remains and never exceeds the scheduler's
// maxTotalWorkers budget.
const (
	MinPerKind = 1
	MinTotal   = 2
)

// Pool owns the worker registry. All methods except Wait are called only
// from the scheduler goroutine.
type Pool struct {
	events chan<- crawler.WorkerEvent
	deps   Deps
	logger *zap.Logger

	workers map[int]*Worker
	nextID  int
	wg      sync.WaitGroup
}

// NewPool returns an empty pool posting worker events to events.
func NewPool(events chan<- crawler.WorkerEvent, deps Deps, logger *zap.Logger) *Pool {
	return &Pool{
		events:  events,
		deps:    deps,
		logger:  logger,
		workers: make(map[int]*Worker),
	}
}

// Spawn creates and starts a worker of the given kind, returning its id.
func (p *Pool) Spawn(ctx context.Context, kind crawler.WorkerKind) int {
	p.nextID++
	id := p.nextID
	w := New(id, kind, p.events, p.deps)
	p.workers[id] = w
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		w.Run(ctx)
	}()
	p.logger.Debug("worker spawned", zap.Int("worker", id), zap.String("kind", string(kind)))
	return id
}

// Post delivers a command to a live worker; false when the worker is
// already gone.
func (p *Pool) Post(id int, cmd crawler.Command) bool {
	w, ok := p.workers[id]
	if !ok {
		return false
	}
	w.Post(cmd)
	return true
}

// Remove drops a stopped worker from the registry.
func (p *Pool) Remove(id int) {
	delete(p.workers, id)
}

// Kind returns the tier of a live worker.
func (p *Pool) Kind(id int) (crawler.WorkerKind, bool) {
	w, ok := p.workers[id]
	if !ok {
		return "", false
	}
	return w.kind, true
}

// Size returns the number of live workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// CountByKind returns the number of live workers of one tier.
func (p *Pool) CountByKind(kind crawler.WorkerKind) int {
	n := 0
	for _, w := range p.workers {
		if w.kind == kind {
			n++
		}
	}
	return n
}

// StopAll posts a stop command to every live worker.
func (p *Pool) StopAll() {
	for id := range p.workers {
		p.Post(id, crawler.Command{Type: crawler.CommandStop})
	}
}

// Wait blocks until every spawned worker goroutine has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}
