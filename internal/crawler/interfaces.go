package crawler

import "context"

// FetchResponse is the result of one HTTP fetch. Reason carries the status
// text (or transport error text) for failure reporting.
type FetchResponse struct {
	Status int
	Body   string
	Reason string
}

// OK reports whether the response carries a 2xx status.
func (r FetchResponse) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// HTTPClient fetches a URL with the configured timeout and retry budget.
// Implementations retry only transport-level errors; HTTP error statuses
// are returned as a FetchResponse, never retried.
type HTTPClient interface {
	Fetch(ctx context.Context, url string, headers map[string]string) (FetchResponse, error)
}

// Renderer produces a DOM snapshot of a page with JavaScript executed.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// LinkFilter is the shared link-existence hint consulted and extended by
// workers while rewriting links. False positives only cost a dangling
// relative link, so probabilistic backings are acceptable; entries are
// never removed.
type LinkFilter interface {
	Add(normalized string)
	MayContain(normalized string) bool
}
