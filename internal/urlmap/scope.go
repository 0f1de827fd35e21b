package urlmap

import (
	"fmt"
	"net/url"
	"strings"
)

// Scope is the (origin, pathname-prefix) pair bounding a crawl. Only
// http(s) URLs under the same origin and path prefix are reachable.
type Scope struct {
	Origin     string
	PathPrefix string
}

// ScopeFromURL derives the crawl scope from a start URL: its origin plus
// its pathname prefix, with any trailing slash preserved.
func ScopeFromURL(raw string) (*Scope, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse scope url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("scope url %q has no host", raw)
	}
	prefix := u.EscapedPath()
	if prefix == "" {
		prefix = "/"
	}
	return &Scope{
		Origin:     strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host),
		PathPrefix: prefix,
	}, nil
}

// Contains reports whether the URL is inside the scope: same http(s)
// origin and a path under the prefix.
func (s *Scope) Contains(u *url.URL) bool {
	if s == nil || u == nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if strings.ToLower(u.Scheme)+"://"+strings.ToLower(u.Host) != s.Origin {
		return false
	}
	return IsPathInScope(u.EscapedPath(), s.PathPrefix)
}

// ContainsRaw parses raw and applies Contains.
func (s *Scope) ContainsRaw(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return s.Contains(u)
}
