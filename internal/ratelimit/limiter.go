// Package ratelimit spaces requests per origin by handing out
// monotonically nondecreasing deadlines.
package ratelimit

import (
	"time"

	"github.com/JakeFAU/docs-mirror/internal/crawler"
)

// Limiter tracks the next allowed request time per origin. It is owned by
// the scheduler goroutine; workers receive the computed deadline inside
// their job and never touch the limiter.
type Limiter struct {
	clock       crawler.Clock
	nextAllowed map[string]time.Time
}

// New creates a Limiter against the given clock.
func New(clock crawler.Clock) *Limiter {
	return &Limiter{
		clock:       clock,
		nextAllowed: make(map[string]time.Time),
	}
}

// ComputeWait returns the earliest time a request to origin may start and
// advances the origin's slot by delay. With delay zero the limiter is a
// no-op: it returns now and records nothing, so origins without politeness
// requirements stay fully parallel.
func (l *Limiter) ComputeWait(origin string, delay time.Duration) time.Time {
	now := l.clock.Now()
	if delay <= 0 {
		return now
	}
	wait := now
	if next, ok := l.nextAllowed[origin]; ok && next.After(now) {
		wait = next
	}
	l.nextAllowed[origin] = wait.Add(delay)
	return wait
}
