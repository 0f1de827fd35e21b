package scheduler

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/docs-mirror/internal/crawler"
	"github.com/JakeFAU/docs-mirror/internal/progress"
	"github.com/JakeFAU/docs-mirror/internal/worker"
)

// Autoscaling constants. The drain target is how quickly the pool should
// be able to clear the modeled backlog; spawn and stop budgets are capped
// per tick so the pool composition changes gradually instead of
// thrashing.
const (
	autoscaleTargetDrain = 2 * time.Second
	maxSpawnPerTick      = 5
	maxStopPerTick       = 5

	ewmaAlpha              = 0.3
	initialMarkdownActive  = 200.0 // ms
	initialHybridActive    = 600.0 // ms
	initialUnavailableRate = 0.25
)

// ewma smooths service-time and rate samples.
type ewma struct {
	value float64
	alpha float64
}

func (e *ewma) update(sample float64) {
	if math.IsNaN(sample) || math.IsInf(sample, 0) {
		return
	}
	e.value = e.alpha*sample + (1-e.alpha)*e.value
}

// autoscaler keeps the measured work-mix model between ticks.
type autoscaler struct {
	maxTotal         int
	markdownActiveMs ewma
	hybridActiveMs   ewma
	unavailableRate  ewma
	logger           *zap.Logger
}

func newAutoscaler(maxTotal int, logger *zap.Logger) *autoscaler {
	return &autoscaler{
		maxTotal:         maxTotal,
		markdownActiveMs: ewma{value: initialMarkdownActive, alpha: ewmaAlpha},
		hybridActiveMs:   ewma{value: initialHybridActive, alpha: ewmaAlpha},
		unavailableRate:  ewma{value: initialUnavailableRate, alpha: ewmaAlpha},
		logger:           logger,
	}
}

// observeOutcome folds a terminal worker event into the EWMA state. Only
// jobs that reached fetch carry an active-time sample.
func (a *autoscaler) observeOutcome(evt crawler.WorkerEvent) {
	if evt.Active > 0 {
		ms := float64(evt.Active) / float64(time.Millisecond)
		switch evt.Kind {
		case crawler.KindMarkdown:
			a.markdownActiveMs.update(ms)
		case crawler.KindHybrid:
			a.hybridActiveMs.update(ms)
		}
	}
	if evt.Kind == crawler.KindMarkdown {
		switch evt.Type {
		case crawler.EventMarkdownUnavailable:
			a.unavailableRate.update(1)
		case crawler.EventCompleted:
			a.unavailableRate.update(0)
		}
	}
}

// poolTargets is the desired per-kind worker count for one tick.
type poolTargets struct {
	markdown int
	hybrid   int
}

func (t poolTargets) total() int {
	return t.markdown + t.hybrid
}

// targets models the expected remaining work per tier and sizes the pool
// to drain it within the target window, splitting proportionally.
func (a *autoscaler) targets(pendingMD, pendingHY, inFlightMD, inFlightHY int) poolTargets {
	mdDemand := float64(pendingMD + inFlightMD)
	hyDemand := float64(pendingHY+inFlightHY) + mdDemand*a.unavailableRate.value
	if mdDemand+hyDemand <= 0 {
		return poolTargets{markdown: worker.MinPerKind, hybrid: worker.MinTotal - worker.MinPerKind}
	}

	mdWork := mdDemand * a.markdownActiveMs.value
	hyWork := hyDemand * a.hybridActiveMs.value
	drainMs := float64(autoscaleTargetDrain) / float64(time.Millisecond)

	total := int(math.Ceil((mdWork + hyWork) / drainMs))
	if total < worker.MinTotal {
		total = worker.MinTotal
	}
	if total > a.maxTotal {
		total = a.maxTotal
	}

	md := total / 2
	if mdWork+hyWork > 0 {
		md = int(math.Round(float64(total) * mdWork / (mdWork + hyWork)))
	}
	if md < worker.MinPerKind {
		md = worker.MinPerKind
	}
	hy := total - md
	if hy < worker.MinPerKind {
		hy = worker.MinPerKind
		if md > total-hy {
			md = total - hy
		}
		if md < worker.MinPerKind {
			md = worker.MinPerKind
		}
	}
	return poolTargets{markdown: md, hybrid: hy}
}

// autoscaleTick retargets the pool: rebalance idle workers across kinds
// first, then scale up toward the larger deficit, then retire idle
// workers of an over-provisioned kind.
func (s *Scheduler) autoscaleTick(ctx context.Context) {
	inMD, inHY := s.inFlightByKind()
	t := s.scaler.targets(s.markdownQueue.Len(), s.hybridQueue.Len(), inMD, inHY)

	curMD := s.pool.CountByKind(crawler.KindMarkdown)
	curHY := s.pool.CountByKind(crawler.KindHybrid)
	spawnBudget := maxSpawnPerTick
	stopBudget := maxStopPerTick

	// Rebalance one-for-one while one kind is over target and the other
	// under.
	rebalanced := true
	for rebalanced && spawnBudget > 0 && stopBudget > 0 {
		rebalanced = false
		if curMD > t.markdown && curHY < t.hybrid && s.stopIdleWorker(crawler.KindMarkdown) {
			curMD--
			stopBudget--
			s.spawnWorker(ctx, crawler.KindHybrid)
			curHY++
			spawnBudget--
			rebalanced = true
		} else if curHY > t.hybrid && curMD < t.markdown && s.stopIdleWorker(crawler.KindHybrid) {
			curHY--
			stopBudget--
			s.spawnWorker(ctx, crawler.KindMarkdown)
			curMD++
			spawnBudget--
			rebalanced = true
		}
	}

	for spawnBudget > 0 && curMD+curHY < t.total() && curMD+curHY < s.scaler.maxTotal {
		if t.markdown-curMD >= t.hybrid-curHY {
			s.spawnWorker(ctx, crawler.KindMarkdown)
			curMD++
		} else {
			s.spawnWorker(ctx, crawler.KindHybrid)
			curHY++
		}
		spawnBudget--
	}

	for stopBudget > 0 && curMD > t.markdown && s.stopIdleWorker(crawler.KindMarkdown) {
		curMD--
		stopBudget--
	}
	for stopBudget > 0 && curHY > t.hybrid && s.stopIdleWorker(crawler.KindHybrid) {
		curHY--
		stopBudget--
	}
}

func (s *Scheduler) inFlightByKind() (int, int) {
	md, hy := 0, 0
	for workerID := range s.workerJob {
		kind, ok := s.pool.Kind(workerID)
		if !ok {
			continue
		}
		if kind == crawler.KindMarkdown {
			md++
		} else {
			hy++
		}
	}
	return md, hy
}

func (s *Scheduler) spawnWorker(ctx context.Context, kind crawler.WorkerKind) {
	s.pool.Spawn(ctx, kind)
	s.hub.Emit(progress.Event{Kind: progress.KindWorkerScaled, WorkerKind: string(kind), Delta: 1})
}

// stopIdleWorker retires one idle worker of the kind; false when none is
// idle (busy workers are never interrupted).
func (s *Scheduler) stopIdleWorker(kind crawler.WorkerKind) bool {
	for id, k := range s.idle {
		if k != kind {
			continue
		}
		delete(s.idle, id)
		s.pool.Post(id, crawler.Command{Type: crawler.CommandStop})
		s.hub.Emit(progress.Event{Kind: progress.KindWorkerScaled, WorkerKind: string(kind), Delta: -1})
		return true
	}
	return false
}
