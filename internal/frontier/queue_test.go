package frontier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/docs-mirror/internal/crawler"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	q.Push(&crawler.Job{ID: "a"})
	q.Push(&crawler.Job{ID: "b"})
	q.Push(&crawler.Job{ID: "c"})
	require.Equal(t, 3, q.Len())

	assert.Equal(t, "a", q.Pop().ID)
	assert.Equal(t, "b", q.Pop().ID)

	q.Push(&crawler.Job{ID: "d"})
	assert.Equal(t, "c", q.Pop().ID)
	assert.Equal(t, "d", q.Pop().ID)
	assert.Nil(t, q.Pop())
	assert.Zero(t, q.Len())
}
