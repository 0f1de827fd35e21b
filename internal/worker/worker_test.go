package worker

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/docs-mirror/internal/clock/system"
	"github.com/JakeFAU/docs-mirror/internal/crawler"
	"github.com/JakeFAU/docs-mirror/internal/dedup"
	"github.com/JakeFAU/docs-mirror/internal/sink"
	"github.com/JakeFAU/docs-mirror/internal/urlmap"
)

type fakeClient struct {
	mu        sync.Mutex
	responses map[string]crawler.FetchResponse
	errs      map[string]error
	calls     []string
	callTimes []time.Time
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		responses: make(map[string]crawler.FetchResponse),
		errs:      make(map[string]error),
	}
}

func (f *fakeClient) Fetch(_ context.Context, url string, _ map[string]string) (crawler.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	f.callTimes = append(f.callTimes, time.Now())
	if err, ok := f.errs[url]; ok {
		return crawler.FetchResponse{}, err
	}
	if resp, ok := f.responses[url]; ok {
		return resp, nil
	}
	return crawler.FetchResponse{Status: 404, Reason: "Not Found"}, nil
}

func (f *fakeClient) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeRenderer struct {
	html string
	err  error
}

func (f *fakeRenderer) Render(context.Context, string) (string, error) {
	return f.html, f.err
}

type workerHarness struct {
	worker *Worker
	events chan crawler.WorkerEvent
	client *fakeClient
	outDir string
	cancel context.CancelFunc
}

func startWorker(t *testing.T, kind crawler.WorkerKind, client *fakeClient, renderer crawler.Renderer, timeout time.Duration) *workerHarness {
	t.Helper()
	outDir := t.TempDir()
	events := make(chan crawler.WorkerEvent, 32)
	deps := Deps{
		Client:            client,
		Renderer:          renderer,
		Writer:            sink.NewWriter(sink.Options{WriteClutter: true}, zap.NewNop()),
		Hints:             dedup.NewBloom(),
		Clock:             system.New(),
		Logger:            zap.NewNop(),
		OutDir:            outDir,
		InactivityTimeout: timeout,
	}
	w := New(1, kind, events, deps)
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	t.Cleanup(cancel)
	return &workerHarness{worker: w, events: events, client: client, outDir: outDir, cancel: cancel}
}

func (h *workerHarness) next(t *testing.T) crawler.WorkerEvent {
	t.Helper()
	select {
	case evt := <-h.events:
		return evt
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for worker event")
		return crawler.WorkerEvent{}
	}
}

func (h *workerHarness) assign(job *crawler.Job) {
	h.worker.Post(crawler.Command{Type: crawler.CommandAssign, Job: job})
}

func docsJob(canGoDeeper bool) *crawler.Job {
	scope := &urlmap.Scope{Origin: "https://example.com", PathPrefix: "/docs"}
	return &crawler.Job{
		ID:          "job-1",
		URL:         "https://example.com/docs",
		Depth:       0,
		CanGoDeeper: canGoDeeper,
		Scope:       scope,
	}
}

func TestMarkdownWorkerSavesCompanionPage(t *testing.T) {
	client := newFakeClient()
	client.responses["https://example.com/docs.md"] = crawler.FetchResponse{
		Status: 200,
		Body:   "# Title\nBody",
	}
	h := startWorker(t, crawler.KindMarkdown, client, nil, time.Minute)

	require.Equal(t, crawler.EventReady, h.next(t).Type)
	h.assign(docsJob(false))

	evt := h.next(t)
	require.Equal(t, crawler.EventCompleted, evt.Type)
	assert.Equal(t, "job-1", evt.JobID)
	assert.Greater(t, evt.Active, time.Duration(0))
	require.Equal(t, crawler.EventReady, h.next(t).Type)

	paths, err := urlmap.BuildOutputPaths("https://example.com/docs", h.outDir)
	require.NoError(t, err)
	content, err := os.ReadFile(paths.PagePath)
	require.NoError(t, err)
	text := string(content)
	assert.True(t, strings.HasPrefix(text, "---\nSource: https://example.com/docs\nFetched: "))
	assert.Equal(t, 1, strings.Count(text, "# Title"))
	assert.Contains(t, text, "Body")
}

func TestMarkdownWorkerReportsUnavailableOn404(t *testing.T) {
	h := startWorker(t, crawler.KindMarkdown, newFakeClient(), nil, time.Minute)
	require.Equal(t, crawler.EventReady, h.next(t).Type)

	h.assign(docsJob(false))
	evt := h.next(t)
	assert.Equal(t, crawler.EventMarkdownUnavailable, evt.Type)
	assert.Equal(t, "job-1", evt.JobID)
}

func TestMarkdownWorkerReportsUnavailableOnServerError(t *testing.T) {
	client := newFakeClient()
	client.responses["https://example.com/docs.md"] = crawler.FetchResponse{Status: 500, Reason: "Internal Server Error"}
	h := startWorker(t, crawler.KindMarkdown, client, nil, time.Minute)
	require.Equal(t, crawler.EventReady, h.next(t).Type)

	h.assign(docsJob(false))
	assert.Equal(t, crawler.EventMarkdownUnavailable, h.next(t).Type)
}

func TestMarkdownWorkerFailsOnTransportError(t *testing.T) {
	client := newFakeClient()
	client.errs["https://example.com/docs.md"] = errors.New("connection refused")
	h := startWorker(t, crawler.KindMarkdown, client, nil, time.Minute)
	require.Equal(t, crawler.EventReady, h.next(t).Type)

	h.assign(docsJob(false))
	evt := h.next(t)
	assert.Equal(t, crawler.EventFailed, evt.Type)
	assert.Contains(t, evt.Reason, "connection refused")
}

func TestMarkdownWorkerDiscoversLinks(t *testing.T) {
	client := newFakeClient()
	client.responses["https://example.com/docs.md"] = crawler.FetchResponse{
		Status: 200,
		Body:   "# Title\nSee [a](/docs/a) and [b](/docs/b) and [out](https://other.com/x).",
	}
	h := startWorker(t, crawler.KindMarkdown, client, nil, time.Minute)
	require.Equal(t, crawler.EventReady, h.next(t).Type)

	h.assign(docsJob(true))
	evt := h.next(t)
	require.Equal(t, crawler.EventCompleted, evt.Type)
	assert.Equal(t, []string{
		"https://example.com/docs/a",
		"https://example.com/docs/b",
	}, evt.Links)
}

func sufficientHTML(links string) string {
	return "<html><head><title>Guide</title></head><body><main><h1>Guide</h1><p>" +
		strings.Repeat("plenty of real documentation content here. ", 10) +
		"</p>" + links + "</main></body></html>"
}

func TestHybridWorkerSavesPage(t *testing.T) {
	client := newFakeClient()
	client.responses["https://example.com/docs"] = crawler.FetchResponse{
		Status: 200,
		Body:   sufficientHTML(`<a href="/docs/a">A</a><a href="https://other.com/x">X</a>`),
	}
	h := startWorker(t, crawler.KindHybrid, client, &fakeRenderer{}, time.Minute)
	require.Equal(t, crawler.EventReady, h.next(t).Type)

	h.assign(docsJob(true))
	evt := h.next(t)
	require.Equal(t, crawler.EventCompleted, evt.Type)
	assert.Equal(t, []string{"https://example.com/docs/a"}, evt.Links,
		"links must stay same-origin and in scope")

	paths, err := urlmap.BuildOutputPaths("https://example.com/docs", h.outDir)
	require.NoError(t, err)
	content, err := os.ReadFile(paths.PagePath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Source: https://example.com/docs")
	_, err = os.Stat(paths.LLMSFullPath)
	assert.NoError(t, err)
}

func TestHybridWorkerFailsOnHTTPError(t *testing.T) {
	client := newFakeClient()
	client.responses["https://example.com/docs"] = crawler.FetchResponse{Status: 503, Reason: "Service Unavailable"}
	h := startWorker(t, crawler.KindHybrid, client, &fakeRenderer{}, time.Minute)
	require.Equal(t, crawler.EventReady, h.next(t).Type)

	h.assign(docsJob(false))
	evt := h.next(t)
	require.Equal(t, crawler.EventFailed, evt.Type)
	assert.Equal(t, "HTTP 503 Service Unavailable", evt.Reason)
}

func TestHybridWorkerEscalatesToRender(t *testing.T) {
	client := newFakeClient()
	client.responses["https://example.com/docs"] = crawler.FetchResponse{
		Status: 200,
		Body:   "<html><body><div id=\"app\"></div></body></html>",
	}
	renderer := &fakeRenderer{html: sufficientHTML("")}
	h := startWorker(t, crawler.KindHybrid, client, renderer, time.Minute)
	require.Equal(t, crawler.EventReady, h.next(t).Type)

	h.assign(docsJob(false))
	evt := h.next(t)
	require.Equal(t, crawler.EventHTMLInsufficient, evt.Type)
	require.Equal(t, "job-1", evt.JobID)

	h.worker.Post(crawler.Command{Type: crawler.CommandRender, JobID: "job-1"})
	done := h.next(t)
	require.Equal(t, crawler.EventCompleted, done.Type)

	paths, err := urlmap.BuildOutputPaths("https://example.com/docs", h.outDir)
	require.NoError(t, err)
	_, err = os.Stat(paths.PagePath)
	assert.NoError(t, err)
}

func TestHybridWorkerFailsWhenRenderFails(t *testing.T) {
	client := newFakeClient()
	client.responses["https://example.com/docs"] = crawler.FetchResponse{
		Status: 200,
		Body:   "<html><body>thin</body></html>",
	}
	h := startWorker(t, crawler.KindHybrid, client, &fakeRenderer{err: errors.New("browser crashed")}, time.Minute)
	require.Equal(t, crawler.EventReady, h.next(t).Type)

	h.assign(docsJob(false))
	require.Equal(t, crawler.EventHTMLInsufficient, h.next(t).Type)
	h.worker.Post(crawler.Command{Type: crawler.CommandRender, JobID: "job-1"})

	evt := h.next(t)
	require.Equal(t, crawler.EventFailed, evt.Type)
	assert.Contains(t, evt.Reason, "browser crashed")
}

func TestHybridWorkerFailsWhenRenderStillInsufficient(t *testing.T) {
	client := newFakeClient()
	client.responses["https://example.com/docs"] = crawler.FetchResponse{
		Status: 200,
		Body:   "<html><body>thin</body></html>",
	}
	h := startWorker(t, crawler.KindHybrid, client, &fakeRenderer{html: "<html><body>still thin</body></html>"}, time.Minute)
	require.Equal(t, crawler.EventReady, h.next(t).Type)

	h.assign(docsJob(false))
	require.Equal(t, crawler.EventHTMLInsufficient, h.next(t).Type)
	h.worker.Post(crawler.Command{Type: crawler.CommandRender, JobID: "job-1"})

	evt := h.next(t)
	require.Equal(t, crawler.EventFailed, evt.Type)
	assert.Equal(t, "insufficient content after render", evt.Reason)
}

func TestWorkerHonorsWaitUntil(t *testing.T) {
	client := newFakeClient()
	client.responses["https://example.com/docs.md"] = crawler.FetchResponse{Status: 200, Body: "# T\nB"}
	h := startWorker(t, crawler.KindMarkdown, client, nil, time.Minute)
	require.Equal(t, crawler.EventReady, h.next(t).Type)

	job := docsJob(false)
	job.WaitUntil = time.Now().Add(150 * time.Millisecond)
	assignedAt := time.Now()
	h.assign(job)

	require.Equal(t, crawler.EventCompleted, h.next(t).Type)
	client.mu.Lock()
	fetchedAt := client.callTimes[0]
	client.mu.Unlock()
	assert.GreaterOrEqual(t, fetchedAt.Sub(assignedAt), 140*time.Millisecond,
		"fetch must not start before the politeness deadline")
}

func TestWorkerStopsWhenIdle(t *testing.T) {
	h := startWorker(t, crawler.KindMarkdown, newFakeClient(), nil, 50*time.Millisecond)
	require.Equal(t, crawler.EventReady, h.next(t).Type)

	evt := h.next(t)
	assert.Equal(t, crawler.EventStopped, evt.Type)
	assert.Equal(t, "idle", evt.Reason)
}

func TestWorkerStopsOnCommand(t *testing.T) {
	h := startWorker(t, crawler.KindMarkdown, newFakeClient(), nil, time.Minute)
	require.Equal(t, crawler.EventReady, h.next(t).Type)

	h.worker.Post(crawler.Command{Type: crawler.CommandStop})
	evt := h.next(t)
	assert.Equal(t, crawler.EventStopped, evt.Type)
	assert.Equal(t, "stop", evt.Reason)
}

func TestRefusedAsset(t *testing.T) {
	assert.True(t, refusedAsset("https://example.com/style.css"))
	assert.True(t, refusedAsset("https://example.com/app.js"))
	assert.False(t, refusedAsset("https://example.com/docs.md"))
}

func TestTitleFromURL(t *testing.T) {
	assert.Equal(t, "intro", titleFromURL("https://example.com/docs/intro"))
	assert.Equal(t, "example.com", titleFromURL("https://example.com/"))
}

func TestPoolLifecycle(t *testing.T) {
	events := make(chan crawler.WorkerEvent, 64)
	deps := Deps{
		Client: newFakeClient(),
		Writer: sink.NewWriter(sink.Options{}, zap.NewNop()),
		Clock:  system.New(),
		Logger: zap.NewNop(),
		OutDir: t.TempDir(),
	}
	pool := NewPool(events, deps, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mdID := pool.Spawn(ctx, crawler.KindMarkdown)
	hyID := pool.Spawn(ctx, crawler.KindHybrid)
	assert.Equal(t, 2, pool.Size())
	assert.Equal(t, 1, pool.CountByKind(crawler.KindMarkdown))
	assert.Equal(t, 1, pool.CountByKind(crawler.KindHybrid))

	kind, ok := pool.Kind(mdID)
	require.True(t, ok)
	assert.Equal(t, crawler.KindMarkdown, kind)

	pool.StopAll()
	stopped := 0
	timeout := time.After(5 * time.Second)
	for stopped < 2 {
		select {
		case evt := <-events:
			if evt.Type == crawler.EventStopped {
				pool.Remove(evt.WorkerID)
				stopped++
			}
		case <-timeout:
			t.Fatal("workers did not stop")
		}
	}
	pool.Wait()
	assert.Equal(t, 0, pool.Size())
	assert.False(t, pool.Post(hyID, crawler.Command{Type: crawler.CommandStop}))
}

func TestMarkdownCompanionRequestShape(t *testing.T) {
	client := newFakeClient()
	client.responses["https://example.com/docs.md"] = crawler.FetchResponse{Status: 200, Body: "# T\nB"}
	h := startWorker(t, crawler.KindMarkdown, client, nil, time.Minute)
	require.Equal(t, crawler.EventReady, h.next(t).Type)

	h.assign(docsJob(false))
	require.Equal(t, crawler.EventCompleted, h.next(t).Type)
	assert.Equal(t, []string{"https://example.com/docs.md"}, h.client.called(),
		"markdown tier fetches only the companion URL")
}

func TestWorkerEventCarriesIdentity(t *testing.T) {
	h := startWorker(t, crawler.KindHybrid, newFakeClient(), &fakeRenderer{}, time.Minute)
	evt := h.next(t)
	assert.Equal(t, 1, evt.WorkerID)
	assert.Equal(t, crawler.KindHybrid, evt.Kind)
}
