package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureSink) Handle(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *captureSink) kinds() []Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Kind, len(c.events))
	for i, e := range c.events {
		out[i] = e.Kind
	}
	return out
}

func TestHubDeliversInOrder(t *testing.T) {
	sink := &captureSink{}
	h := NewHub(zap.NewNop(), sink)
	h.Emit(Event{Kind: KindPageSaved, URL: "https://example.com/a"})
	h.Emit(Event{Kind: KindPageFailed, URL: "https://example.com/b", Reason: "HTTP 500"})
	h.Emit(Event{Kind: KindRobotsBlocked, URL: "https://example.com/c"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.Close(ctx))

	assert.Equal(t, []Kind{KindPageSaved, KindPageFailed, KindRobotsBlocked}, sink.kinds())
}

func TestHubStampsTimestamp(t *testing.T) {
	sink := &captureSink{}
	h := NewHub(zap.NewNop(), sink)
	h.Emit(Event{Kind: KindPageSaved})
	require.NoError(t, h.Close(context.Background()))
	require.Len(t, sink.events, 1)
	assert.False(t, sink.events[0].TS.IsZero())
}

func TestHubEmitAfterCloseIsNoop(t *testing.T) {
	sink := &captureSink{}
	h := NewHub(zap.NewNop(), sink)
	require.NoError(t, h.Close(context.Background()))
	h.Emit(Event{Kind: KindPageSaved})
	assert.Empty(t, sink.kinds())
}

func TestNilHubIsSafe(t *testing.T) {
	var h *Hub
	h.Emit(Event{Kind: KindPageSaved})
	assert.NoError(t, h.Close(context.Background()))
}
