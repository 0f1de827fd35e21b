package progress

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Sink consumes progress events. Implementations must be fast; the hub
// delivers sequentially from a single goroutine.
type Sink interface {
	Handle(evt Event)
}

const defaultBufferSize = 1024

// Hub fans Event streams out to registered sinks. Emit never blocks; the
// buffer absorbs bursts and overflow is dropped with a counter.
type Hub struct {
	sinks   []Sink
	events  chan Event
	stopCh  chan struct{}
	doneCh  chan struct{}
	logger  *zap.Logger
	dropped atomic.Int64
	closed  atomic.Bool
}

// NewHub starts the dispatch goroutine over the supplied sinks.
func NewHub(logger *zap.Logger, sinks ...Sink) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		sinks:  append([]Sink(nil), sinks...),
		events: make(chan Event, defaultBufferSize),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		logger: logger,
	}
	go h.run()
	return h
}

// Emit enqueues an event without blocking the caller.
func (h *Hub) Emit(evt Event) {
	if h == nil || h.closed.Load() {
		return
	}
	if evt.TS.IsZero() {
		evt.TS = time.Now().UTC()
	}
	select {
	case h.events <- evt:
	default:
		h.dropped.Add(1)
	}
}

// Close drains remaining events and blocks until dispatch finishes.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if h.closed.CompareAndSwap(false, true) {
		close(h.stopCh)
	}
	select {
	case <-h.doneCh:
		if n := h.dropped.Load(); n > 0 {
			h.logger.Warn("progress events dropped due to backpressure", zap.Int64("dropped", n))
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("progress hub close wait: %w", ctx.Err())
	}
}

func (h *Hub) run() {
	defer close(h.doneCh)
	for {
		select {
		case evt := <-h.events:
			h.dispatch(evt)
		case <-h.stopCh:
			for {
				select {
				case evt := <-h.events:
					h.dispatch(evt)
				default:
					return
				}
			}
		}
	}
}

func (h *Hub) dispatch(evt Event) {
	for _, s := range h.sinks {
		s.Handle(evt)
	}
}
