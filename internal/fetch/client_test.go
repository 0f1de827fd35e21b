package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, retries int) *Client {
	t.Helper()
	c, err := NewClient(Config{
		UserAgent: "mirror-test/1.0",
		Timeout:   5 * time.Second,
		Retries:   retries,
	}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "mirror-test/1.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	resp, err := newTestClient(t, 0).Fetch(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "hello", resp.Body)
}

func TestFetchSendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/markdown,text/plain;q=0.9,*/*;q=0.8", r.Header.Get("Accept"))
		_, _ = w.Write([]byte("# md"))
	}))
	defer srv.Close()

	resp, err := newTestClient(t, 0).Fetch(context.Background(), srv.URL, map[string]string{
		"Accept": "text/markdown,text/plain;q=0.9,*/*;q=0.8",
	})
	require.NoError(t, err)
	assert.Equal(t, "# md", resp.Body)
}

func TestFetchHTTPErrorIsResponseNotError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := newTestClient(t, 3).Fetch(context.Background(), srv.URL, nil)
	require.NoError(t, err, "HTTP statuses are responses, not errors")
	assert.Equal(t, 404, resp.Status)
	assert.Equal(t, "Not Found", resp.Reason)
	assert.Equal(t, int32(1), hits.Load(), "HTTP errors must never be retried")
}

func TestFetchRetriesTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	addr := srv.URL
	srv.Close() // connection refused from here on

	start := time.Now()
	_, err := newTestClient(t, 2).Fetch(context.Background(), addr, nil)
	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond, "retries imply backoff sleeps")
}

func TestFetchHonorsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient(t, 5).Fetch(ctx, "http://127.0.0.1:1/none", nil)
	require.Error(t, err)
}

func TestRetryPolicy(t *testing.T) {
	p := newRetryPolicy(2)
	assert.True(t, p.shouldRetry(assert.AnError, 0))
	assert.True(t, p.shouldRetry(assert.AnError, 1))
	assert.False(t, p.shouldRetry(assert.AnError, 2), "budget exhausted")
	assert.False(t, p.shouldRetry(nil, 0))
	assert.False(t, p.shouldRetry(context.Canceled, 0))
	assert.False(t, p.shouldRetry(context.DeadlineExceeded, 0))

	for attempt := 0; attempt < 5; attempt++ {
		b := p.backoff(attempt)
		assert.Greater(t, b, time.Duration(0))
		assert.LessOrEqual(t, b, p.maxDelay)
	}
}
