package markdown

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/JakeFAU/docs-mirror/internal/urlmap"
)

var (
	refDefinitionRe = regexp.MustCompile(`^\s*\[[^\]]+\]:\s*(\S+)`)
	jsxHrefRe       = regexp.MustCompile(`href=(?:"([^"]+)"|'([^']+)'|\{"([^"]+)"\})`)
	bareURLRe       = regexp.MustCompile(`https?://[^\s<>()"'\x60]+`)
	fenceRe         = regexp.MustCompile("^\\s*(```|~~~)")
)

// Links collects in-scope frontier candidates from Markdown text: inline
// links and autolinks (via the goldmark AST, which also keeps code spans
// and fences out), reference definitions, JSX-style href attributes, and
// bare URLs outside code fences and reference lines.
func Links(md string, pageURL string, scope *urlmap.Scope) []string {
	if scope == nil {
		return nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string
	add := func(href string) {
		normalized, ok := resolveMarkdownHref(href, base, scope)
		if !ok {
			return
		}
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}
		links = append(links, normalized)
	}

	source := []byte(md)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Link:
			add(string(node.Destination))
		case *ast.AutoLink:
			add(string(node.URL(source)))
		}
		return ast.WalkContinue, nil
	})

	inFence := false
	for _, line := range strings.Split(md, "\n") {
		if fenceRe.MatchString(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if m := refDefinitionRe.FindStringSubmatch(line); m != nil {
			add(m[1])
			continue
		}
		for _, m := range jsxHrefRe.FindAllStringSubmatch(line, -1) {
			add(firstGroup(m))
		}
		for _, raw := range bareURLRe.FindAllString(line, -1) {
			add(strings.TrimRight(raw, ".,;:!?"))
		}
	}
	return links
}

func firstGroup(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

// resolveMarkdownHref resolves href against the page URL and applies the
// scope and candidacy filters. A root-absolute href that lands outside
// the scope is retried with the scope path prefixed, repairing docs that
// link as if served from the site root.
func resolveMarkdownHref(href string, base *url.URL, scope *urlmap.Scope) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	target, err := base.Parse(href)
	if err != nil {
		return "", false
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return "", false
	}
	if !scope.Contains(target) {
		if strings.HasPrefix(href, "/") && !strings.HasPrefix(href, "//") {
			repaired := strings.TrimSuffix(scope.PathPrefix, "/") + href
			if retry, rerr := base.Parse(repaired); rerr == nil && scope.Contains(retry) {
				target = retry
			} else {
				return "", false
			}
		} else {
			return "", false
		}
	}
	target.Fragment = ""
	target.RawFragment = ""
	target.RawQuery = ""
	if !urlmap.IsHTMLCandidate(target.String()) {
		return "", false
	}
	normalized, err := urlmap.NormalizeForQueue(target.String())
	if err != nil {
		return "", false
	}
	return normalized, true
}
