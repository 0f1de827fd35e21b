// Package urlmap implements URL normalization, crawl-scope checks, and the
// deterministic URL to filesystem mapping used for the local mirror.
package urlmap

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

// Fixed output filenames written under each page directory.
const (
	PageFile     = "page.md"
	ClutterFile  = "clutter.md"
	LLMSFile     = ".llms.md"
	LLMSFullFile = "llms-full.md"
)

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]+`)

	// blockedExtensions matches asset pathnames that are never HTML
	// candidates: images, fonts, media, archives, styles, and scripts.
	blockedExtensions = regexp.MustCompile(`(?i)\.(css|js|mjs|map|png|jpe?g|gif|svg|ico|webp|avif|bmp|woff2?|ttf|otf|eot|pdf|zip|tar|gz|tgz|bz2|7z|rar|mp3|wav|mp4|webm|avi|mov|exe|dmg|iso|wasm)$`)
)

// OutputPaths holds the on-disk layout for a single page.
type OutputPaths struct {
	Dir          string
	PagePath     string
	ClutterPath  string
	LLMSPath     string
	LLMSFullPath string
}

// NormalizeForQueue strips the fragment and query and lowercases the
// scheme and host so URLs that differ only in those parts collapse to one
// frontier entry. The result is idempotent.
func NormalizeForQueue(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = ""
	return u.String(), nil
}

// BuildOutputPaths maps a URL to its page directory under outDir. The host
// and every path segment are snake-cased; the layout is stable under
// NormalizeForQueue, so hash/query variants share one directory.
func BuildOutputPaths(raw string, outDir string) (OutputPaths, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return OutputPaths{}, fmt.Errorf("parse url: %w", err)
	}
	segments := []string{snakeSegment(u.Hostname(), "index")}
	trimmed := strings.Trim(u.EscapedPath(), "/")
	if trimmed == "" {
		segments = append(segments, "root")
	} else {
		for _, seg := range strings.Split(trimmed, "/") {
			segments = append(segments, snakeSegment(seg, "root"))
		}
	}
	dir := filepath.Join(append([]string{outDir}, segments...)...)
	return OutputPaths{
		Dir:          dir,
		PagePath:     filepath.Join(dir, PageFile),
		ClutterPath:  filepath.Join(dir, ClutterFile),
		LLMSPath:     filepath.Join(dir, LLMSFile),
		LLMSFullPath: filepath.Join(dir, LLMSFullFile),
	}, nil
}

func snakeSegment(raw, empty string) string {
	s := nonAlphanumeric.ReplaceAllString(raw, "_")
	s = strings.Trim(s, "_")
	s = strings.ToLower(s)
	if s == "" {
		return empty
	}
	return s
}

// IsPathInScope reports whether pathname falls under the scope path
// prefix. Scope "/" (or "") matches everything.
func IsPathInScope(pathname, scope string) bool {
	scope = strings.TrimSuffix(scope, "/")
	if scope == "" {
		return true
	}
	return pathname == scope || pathname == scope+"/" || strings.HasPrefix(pathname, scope+"/")
}

// IsHTMLCandidate reports whether the URL's pathname could serve an HTML
// page, i.e. does not end in a blocked asset extension.
func IsHTMLCandidate(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return !blockedExtensions.MatchString(u.Path)
}

// RelativePath computes the POSIX-style relative path from the directory
// containing fromPage to toPage. Both arguments are pagePath values
// produced by BuildOutputPaths against the same outDir.
func RelativePath(fromPage, toPage string) string {
	fromDir := strings.Split(slashed(filepath.Dir(fromPage)), "/")
	to := strings.Split(slashed(toPage), "/")
	common := 0
	for common < len(fromDir) && common < len(to)-1 && fromDir[common] == to[common] {
		common++
	}
	parts := make([]string, 0, len(fromDir)-common+len(to)-common)
	for i := common; i < len(fromDir); i++ {
		parts = append(parts, "..")
	}
	parts = append(parts, to[common:]...)
	return strings.Join(parts, "/")
}

func slashed(p string) string {
	return strings.ReplaceAll(p, string(filepath.Separator), "/")
}
