// Package scheduler owns the crawl frontier, dispatch policy, and the
// worker pool lifecycle.
package scheduler

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/docs-mirror/internal/crawler"
	"github.com/JakeFAU/docs-mirror/internal/dedup"
	"github.com/JakeFAU/docs-mirror/internal/frontier"
	"github.com/JakeFAU/docs-mirror/internal/id/uuid"
	"github.com/JakeFAU/docs-mirror/internal/progress"
	"github.com/JakeFAU/docs-mirror/internal/ratelimit"
	"github.com/JakeFAU/docs-mirror/internal/robots"
	"github.com/JakeFAU/docs-mirror/internal/urlmap"
	"github.com/JakeFAU/docs-mirror/internal/worker"
)

const (
	defaultAutoscaleInterval = time.Second
	eventBuffer              = 256
)

// Config captures the crawl knobs the scheduler enforces.
type Config struct {
	OutDir        string
	MaxDepth      int
	MaxPages      int
	Concurrency   int
	Delay         time.Duration
	UserAgent     string
	RespectRobots bool
	// AutoscaleInterval defaults to one second.
	AutoscaleInterval time.Duration
}

// Seed is one crawl entry point. A nil Scope disables link discovery
// (scrape mode).
type Seed struct {
	URL   string
	Scope *urlmap.Scope
}

// Summary is returned when the run terminates.
type Summary struct {
	Saved    int
	Failures []string
	Elapsed  time.Duration
}

// Scheduler is the single-goroutine coordinator: it owns both queues,
// the visited and known sets, the rate limiter, and the robots policies.
// Workers communicate with it exclusively through typed messages.
type Scheduler struct {
	cfg    Config
	logger *zap.Logger
	hub    *progress.Hub
	clock  crawler.Clock
	client crawler.HTTPClient
	bloom  *dedup.Bloom
	idGen  *uuid.Generator

	events chan crawler.WorkerEvent
	pool   *worker.Pool

	markdownQueue *frontier.Queue
	hybridQueue   *frontier.Queue
	visited       *dedup.Set
	known         *dedup.Set
	limiter       *ratelimit.Limiter
	robotsByHost  map[string]*robots.Policy

	inFlight  map[string]*crawler.Job
	workerJob map[int]string
	idle      map[int]crawler.WorkerKind

	savedCount int
	failures   []string
	scaler     *autoscaler
	stopping   bool
}

// New wires a Scheduler. The worker deps are shared by every worker the
// pool spawns.
func New(cfg Config, deps worker.Deps, client crawler.HTTPClient, clock crawler.Clock, bloom *dedup.Bloom, hub *progress.Hub, logger *zap.Logger) *Scheduler {
	if cfg.AutoscaleInterval <= 0 {
		cfg.AutoscaleInterval = defaultAutoscaleInterval
	}
	maxTotal := cfg.Concurrency
	if maxTotal < worker.MinTotal {
		maxTotal = worker.MinTotal
	}
	s := &Scheduler{
		cfg:           cfg,
		logger:        logger,
		hub:           hub,
		clock:         clock,
		client:        client,
		bloom:         bloom,
		idGen:         uuid.NewGenerator(),
		events:        make(chan crawler.WorkerEvent, eventBuffer),
		markdownQueue: frontier.NewQueue(),
		hybridQueue:   frontier.NewQueue(),
		visited:       dedup.NewSet(),
		known:         dedup.NewSet(),
		limiter:       ratelimit.New(clock),
		robotsByHost:  make(map[string]*robots.Policy),
		inFlight:      make(map[string]*crawler.Job),
		workerJob:     make(map[int]string),
		idle:          make(map[int]crawler.WorkerKind),
		scaler:        newAutoscaler(maxTotal, logger),
	}
	s.pool = worker.NewPool(s.events, deps, logger)
	return s
}

// Run seeds the frontier and drives the dispatch loop until termination:
// the page budget is reached, or no work remains in flight or queued.
func (s *Scheduler) Run(ctx context.Context, seeds []Seed) (Summary, error) {
	start := time.Now()
	s.enqueueInitial(ctx, seeds)

	if s.markdownQueue.Len() == 0 {
		// Every seed was blocked or invalid; nothing to do.
		return s.summary(start), nil
	}

	s.pool.Spawn(ctx, crawler.KindMarkdown)
	s.pool.Spawn(ctx, crawler.KindHybrid)

	ticker := time.NewTicker(s.cfg.AutoscaleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if !s.stopping {
				s.beginShutdown()
			}
			// Workers observe the context themselves; keep draining
			// events until each one reports stopped.
			if s.drainUntilStopped(ctx) {
				s.pool.Wait()
				return s.summary(start), ctx.Err()
			}
		case evt := <-s.events:
			s.handleEvent(ctx, evt)
			if s.stopping && s.pool.Size() == 0 {
				s.pool.Wait()
				return s.summary(start), nil
			}
			if !s.stopping && s.isDone() {
				s.beginShutdown()
				if s.pool.Size() == 0 {
					s.pool.Wait()
					return s.summary(start), nil
				}
			}
		case <-ticker.C:
			if !s.stopping {
				s.autoscaleTick(ctx)
			}
		}
	}
}

// enqueueInitial normalizes and enqueues the seed URLs onto the markdown
// queue, loading each origin's robots policy on first sight.
func (s *Scheduler) enqueueInitial(ctx context.Context, seeds []Seed) {
	for _, seed := range seeds {
		normalized, err := urlmap.NormalizeForQueue(seed.URL)
		if err != nil {
			s.recordFailure(seed.URL, fmt.Sprintf("invalid url: %v", err))
			continue
		}
		if !s.known.Add(normalized) {
			continue
		}
		s.bloom.Add(normalized)
		s.loadRobots(ctx, normalized)
		s.markdownQueue.Push(&crawler.Job{
			ID:          s.newJobID(),
			URL:         normalized,
			Depth:       0,
			CanGoDeeper: seed.Scope != nil && s.cfg.MaxDepth > 0,
			Scope:       seed.Scope,
		})
	}
}

func (s *Scheduler) handleEvent(ctx context.Context, evt crawler.WorkerEvent) {
	switch evt.Type {
	case crawler.EventReady:
		s.idle[evt.WorkerID] = evt.Kind
		s.assignNext(evt.WorkerID, evt.Kind)
	case crawler.EventCompleted:
		s.onCompleted(evt)
	case crawler.EventFailed:
		s.onFailed(evt)
	case crawler.EventMarkdownUnavailable:
		s.onMarkdownUnavailable(evt)
	case crawler.EventHTMLInsufficient:
		s.onHTMLInsufficient(evt)
	case crawler.EventStopped:
		s.onStopped(evt)
	}
}

// assignNext dispatches the head of the worker's kind queue. Markdown
// dispatch filters out visited and robots-disallowed jobs; hybrid jobs
// already passed both gates before their fallback.
func (s *Scheduler) assignNext(workerID int, kind crawler.WorkerKind) {
	if s.stopping {
		return
	}
	var job *crawler.Job
	if kind == crawler.KindMarkdown {
		job = s.nextMarkdownJob()
	} else {
		job = s.hybridQueue.Pop()
	}
	if job == nil {
		return
	}
	s.commit(workerID, job)
}

func (s *Scheduler) nextMarkdownJob() *crawler.Job {
	for {
		job := s.markdownQueue.Pop()
		if job == nil {
			return nil
		}
		if s.visited.Contains(job.URL) {
			continue
		}
		if !s.robotsAllow(job.URL) {
			s.logger.Info("Blocked by robots.txt", zap.String("url", job.URL))
			s.hub.Emit(progress.Event{Kind: progress.KindRobotsBlocked, URL: job.URL})
			continue
		}
		s.visited.Add(job.URL)
		return job
	}
}

// commit hands the job to the worker with its politeness deadline.
func (s *Scheduler) commit(workerID int, job *crawler.Job) {
	origin := originOf(job.URL)
	job.WaitUntil = s.limiter.ComputeWait(origin, s.effectiveDelay(origin))
	s.inFlight[job.ID] = job
	s.workerJob[workerID] = job.ID
	delete(s.idle, workerID)
	s.pool.Post(workerID, crawler.Command{Type: crawler.CommandAssign, Job: job})
}

func (s *Scheduler) onCompleted(evt crawler.WorkerEvent) {
	job := s.finishJob(evt)
	if job == nil {
		return
	}
	s.savedCount++
	s.hub.Emit(progress.Event{Kind: progress.KindPageSaved, URL: job.URL})
	s.scaler.observeOutcome(evt)
	if job.CanGoDeeper {
		s.enqueueLinks(evt.Links, job)
	}
	s.dispatchIdle()
}

func (s *Scheduler) onFailed(evt crawler.WorkerEvent) {
	job := s.finishJob(evt)
	if job == nil {
		return
	}
	s.recordFailure(job.URL, evt.Reason)
	s.hub.Emit(progress.Event{Kind: progress.KindPageFailed, URL: job.URL, Reason: evt.Reason})
	s.scaler.observeOutcome(evt)
	s.dispatchIdle()
}

// onMarkdownUnavailable re-enqueues the same job at the tail of the
// hybrid queue.
func (s *Scheduler) onMarkdownUnavailable(evt crawler.WorkerEvent) {
	job := s.finishJob(evt)
	if job == nil {
		return
	}
	s.hub.Emit(progress.Event{Kind: progress.KindMarkdownFallback, URL: job.URL})
	s.scaler.observeOutcome(evt)
	s.hybridQueue.Push(job)
	s.dispatchIdle()
}

// onHTMLInsufficient answers the suspended worker with a render grant;
// the job stays pinned to that worker and in flight.
func (s *Scheduler) onHTMLInsufficient(evt crawler.WorkerEvent) {
	jobID := s.workerJob[evt.WorkerID]
	if jobID == "" || jobID != evt.JobID {
		s.logger.Warn("insufficiency report for unknown job",
			zap.Int("worker", evt.WorkerID), zap.String("job", evt.JobID))
		return
	}
	if job := s.inFlight[jobID]; job != nil {
		s.hub.Emit(progress.Event{Kind: progress.KindRenderEscalated, URL: job.URL})
	}
	s.pool.Post(evt.WorkerID, crawler.Command{Type: crawler.CommandRender, JobID: evt.JobID})
}

func (s *Scheduler) onStopped(evt crawler.WorkerEvent) {
	// A worker normally reports its job failed before stopping; a job
	// still attributed to it here is lost and never re-dispatched.
	if jobID, ok := s.workerJob[evt.WorkerID]; ok {
		if job, inFlight := s.inFlight[jobID]; inFlight {
			delete(s.inFlight, jobID)
			s.recordFailure(job.URL, "worker stopped before completing job")
			s.hub.Emit(progress.Event{
				Kind:   progress.KindPageFailed,
				URL:    job.URL,
				Reason: "worker stopped before completing job",
			})
		}
		delete(s.workerJob, evt.WorkerID)
	}
	delete(s.idle, evt.WorkerID)
	s.pool.Remove(evt.WorkerID)
	if evt.Reason == "idle" {
		s.logger.Debug("worker retired after inactivity", zap.Int("worker", evt.WorkerID))
	}
}

// finishJob clears the in-flight bookkeeping for a terminal outcome and
// returns the job, or nil for an outcome the scheduler no longer tracks.
func (s *Scheduler) finishJob(evt crawler.WorkerEvent) *crawler.Job {
	job, ok := s.inFlight[evt.JobID]
	if !ok {
		return nil
	}
	delete(s.inFlight, evt.JobID)
	if s.workerJob[evt.WorkerID] == evt.JobID {
		delete(s.workerJob, evt.WorkerID)
	}
	return job
}

// enqueueLinks expands the frontier with the completed job's discovered
// links, bounded by the page budget.
func (s *Scheduler) enqueueLinks(links []string, parent *crawler.Job) {
	for _, link := range links {
		if s.cfg.MaxPages > 0 && s.savedCount+s.pendingCount() >= s.cfg.MaxPages {
			return
		}
		if s.visited.Contains(link) || !s.known.Add(link) {
			continue
		}
		s.bloom.Add(link)
		depth := parent.Depth + 1
		s.markdownQueue.Push(&crawler.Job{
			ID:          s.newJobID(),
			URL:         link,
			Depth:       depth,
			CanGoDeeper: depth < s.cfg.MaxDepth,
			Scope:       parent.Scope,
		})
	}
}

func (s *Scheduler) pendingCount() int {
	return s.markdownQueue.Len() + s.hybridQueue.Len() + len(s.inFlight)
}

func (s *Scheduler) dispatchIdle() {
	for id, kind := range s.idle {
		s.assignNext(id, kind)
	}
}

// isDone implements the termination predicate: the page budget is met,
// or nothing is queued or in flight.
func (s *Scheduler) isDone() bool {
	if s.cfg.MaxPages > 0 && s.savedCount >= s.cfg.MaxPages {
		return true
	}
	return len(s.inFlight) == 0 && s.markdownQueue.Len() == 0 && s.hybridQueue.Len() == 0
}

func (s *Scheduler) beginShutdown() {
	s.stopping = true
	s.pool.StopAll()
}

// drainUntilStopped consumes remaining worker events after cancellation.
// It returns true once the pool is empty, and also when no event arrives
// for five seconds while workers remain.
func (s *Scheduler) drainUntilStopped(ctx context.Context) bool {
	for s.pool.Size() > 0 {
		select {
		case evt := <-s.events:
			s.handleEvent(ctx, evt)
		case <-time.After(5 * time.Second):
			s.logger.Warn("timed out waiting for workers to stop",
				zap.Int("remaining", s.pool.Size()))
			return true
		}
	}
	return true
}

func (s *Scheduler) recordFailure(url, reason string) {
	s.failures = append(s.failures, fmt.Sprintf("%s: %s", url, reason))
}

func (s *Scheduler) summary(start time.Time) Summary {
	return Summary{
		Saved:    s.savedCount,
		Failures: append([]string(nil), s.failures...),
		Elapsed:  time.Since(start),
	}
}

func (s *Scheduler) newJobID() string {
	jobID, err := s.idGen.NewID()
	if err != nil {
		// UUID generation only fails when the entropy source does;
		// fall back to a counter-free timestamp id.
		jobID = fmt.Sprintf("job-%d", s.clock.Now().UnixNano())
	}
	return jobID
}

// loadRobots fetches and caches the robots policy for the URL's host.
func (s *Scheduler) loadRobots(ctx context.Context, rawURL string) {
	host := hostOf(rawURL)
	if host == "" {
		return
	}
	if _, ok := s.robotsByHost[host]; ok {
		return
	}
	if !s.cfg.RespectRobots {
		s.robotsByHost[host] = robots.AllowAll("robots disabled")
		return
	}
	s.robotsByHost[host] = robots.Fetch(ctx, s.client, originOf(rawURL), s.cfg.UserAgent, s.logger)
}

func (s *Scheduler) robotsAllow(rawURL string) bool {
	policy := s.robotsByHost[hostOf(rawURL)]
	if policy == nil {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return policy.IsAllowed(u.EscapedPath())
}

// effectiveDelay is the larger of the user delay and the origin's robots
// crawl delay.
func (s *Scheduler) effectiveDelay(origin string) time.Duration {
	delay := s.cfg.Delay
	if policy := s.robotsByHost[hostOf(origin)]; policy != nil {
		if robotsDelay, ok := policy.CrawlDelay(); ok && robotsDelay > delay {
			delay = robotsDelay
		}
	}
	return delay
}

func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
