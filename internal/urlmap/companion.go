package urlmap

import (
	"fmt"
	"net/url"
	"strings"
)

// CompanionMarkdownURL derives the URL that might serve a Markdown
// representation of the page: `/llms.txt` for the site root, the URL
// itself when it already points at Markdown or plain text, and the page
// path with `.md` appended otherwise.
func CompanionMarkdownURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	u.Fragment = ""
	u.RawFragment = ""

	path := u.EscapedPath()
	switch {
	case path == "" || path == "/":
		u.Path = "/llms.txt"
	case strings.HasSuffix(path, ".md") || strings.HasSuffix(path, ".txt"):
		// Already a Markdown-ish resource.
	case strings.HasSuffix(path, "/"):
		trimmed := strings.TrimSuffix(path, "/")
		if trimmed == "" {
			u.Path = "/llms.txt"
		} else if strings.HasSuffix(trimmed, ".md") {
			u.Path = trimmed
		} else {
			u.Path = trimmed + ".md"
		}
	default:
		u.Path = path + ".md"
	}
	return u.String(), nil
}
