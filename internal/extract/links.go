package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/docs-mirror/internal/urlmap"
)

// Links collects the in-scope frontier candidates from a fetched DOM:
// anchor hrefs resolved against the document base (honoring <base href>),
// filtered to same-origin, in-scope, HTML-candidate targets, with hash
// and query stripped. The result is deduplicated in document order.
func Links(html, baseURL string, scope *urlmap.Scope) []string {
	if scope == nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	if tag, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if resolved, berr := base.Parse(tag); berr == nil {
			base = resolved
		}
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		normalized, ok := ResolveCandidate(href, base, scope)
		if !ok {
			return
		}
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}
		links = append(links, normalized)
	})
	return links
}

// ResolveCandidate resolves href against base and applies the scope and
// candidacy filters, returning the normalized frontier form.
func ResolveCandidate(href string, base *url.URL, scope *urlmap.Scope) (string, bool) {
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
		return "", false
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
