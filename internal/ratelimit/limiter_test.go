package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func TestComputeWaitSpacesSameOrigin(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	l := New(clock)
	delay := 500 * time.Millisecond

	first := l.ComputeWait("https://example.com", delay)
	second := l.ComputeWait("https://example.com", delay)
	third := l.ComputeWait("https://example.com", delay)

	assert.Equal(t, clock.now, first, "first request starts immediately")
	assert.Equal(t, delay, second.Sub(first))
	assert.Equal(t, delay, third.Sub(second))
}

func TestComputeWaitDeadlinesNondecreasing(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	l := New(clock)
	delay := 200 * time.Millisecond

	prev := l.ComputeWait("https://example.com", delay)
	for i := 0; i < 10; i++ {
		clock.now = clock.now.Add(37 * time.Millisecond)
		next := l.ComputeWait("https://example.com", delay)
		assert.False(t, next.Before(prev), "deadlines must be nondecreasing")
		assert.GreaterOrEqual(t, next.Sub(prev), delay)
		prev = next
	}
}

func TestComputeWaitOriginsIndependent(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	l := New(clock)
	delay := time.Second

	a := l.ComputeWait("https://a.com", delay)
	b := l.ComputeWait("https://b.com", delay)
	assert.Equal(t, clock.now, a)
	assert.Equal(t, clock.now, b, "different origins are not spaced against each other")
}

func TestComputeWaitZeroDelayIsNoOp(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	l := New(clock)

	first := l.ComputeWait("https://example.com", 0)
	second := l.ComputeWait("https://example.com", 0)
	assert.Equal(t, clock.now, first)
	assert.Equal(t, clock.now, second)
	assert.Empty(t, l.nextAllowed, "zero delay must not record state")
}

func TestComputeWaitCatchesUpAfterIdle(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	l := New(clock)
	delay := 100 * time.Millisecond

	l.ComputeWait("https://example.com", delay)
	clock.now = clock.now.Add(10 * time.Second)
	late := l.ComputeWait("https://example.com", delay)
	assert.Equal(t, clock.now, late, "an idle origin starts immediately once its slot has passed")
}
