package markdown

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/JakeFAU/docs-mirror/internal/crawler"
	"github.com/JakeFAU/docs-mirror/internal/urlmap"
)

// externalMarker is appended once to the display text of links that stay
// pointed outside the document's origin.
const externalMarker = "↗"

var inlineLinkRe = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)(\s+"[^"]*")?\)`)

// RewriteOptions configures one rewriting pass.
type RewriteOptions struct {
	// PageURL is the document's canonical URL; relative and
	// root-absolute hrefs resolve against it.
	PageURL string
	// PagePath is the document's own on-disk page file; relative link
	// targets are computed from its directory.
	PagePath string
	// OutDir roots the target page paths.
	OutDir string
	// Known reports whether a normalized URL maps to a mirrored page.
	// Callers compose it from the shared link-hint filter and an
	// on-disk existence check; false positives merely produce a
	// dangling relative link.
	Known func(normalized string) bool
}

// RewriteResult rewrites every Markdown variant of the result in place
// and normalizes their frontmatter Source lines.
func RewriteResult(res *crawler.ScrapeResult, opts RewriteOptions) {
	for _, variant := range res.Variants() {
		*variant = NormalizeFrontmatterSource(Rewrite(*variant, opts))
	}
}

// Rewrite transforms the Markdown text: in-scope known links become
// POSIX-relative on-disk paths (anchors preserved), other cross-origin
// links gain the external marker, and bare URLs are linkified only when
// they rewrite. Code fences, the frontmatter block, and autolink
// interiors are left untouched. The operation is idempotent.
func Rewrite(md string, opts RewriteOptions) string {
	base, err := url.Parse(opts.PageURL)
	if err != nil {
		return md
	}
	rw := rewriter{opts: opts, base: base}

	lines := strings.Split(md, "\n")
	start := 0
	if end := frontmatterEnd(md); end >= 0 {
		// Skip the frontmatter block; Source is handled separately.
		start = strings.Count(md[:end], "\n") + 1
		if start > len(lines) {
			start = len(lines)
		}
	}
	inFence := false
	for i := start; i < len(lines); i++ {
		if fenceRe.MatchString(lines[i]) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if refDefinitionRe.MatchString(lines[i]) {
			lines[i] = rw.rewriteRefDefinition(lines[i])
			continue
		}
		lines[i] = rw.rewriteLine(lines[i])
	}
	return strings.Join(lines, "\n")
}

type rewriter struct {
	opts RewriteOptions
	base *url.URL
}

// target is the disposition of one href.
type target struct {
	rewrite  bool
	relPath  string
	external bool
}

func (rw *rewriter) classify(href string) target {
	raw, anchor, _ := strings.Cut(href, "#")
	if raw == "" {
		return target{}
	}
	resolved, err := rw.base.Parse(raw)
	if err != nil {
		return target{}
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return target{}
	}
	normalized, err := urlmap.NormalizeForQueue(resolved.String())
	if err != nil {
		return target{}
	}
	if urlmap.IsHTMLCandidate(normalized) && rw.opts.Known != nil && rw.opts.Known(normalized) {
		paths, perr := urlmap.BuildOutputPaths(normalized, rw.opts.OutDir)
		if perr == nil {
			rel := urlmap.RelativePath(rw.opts.PagePath, paths.PagePath)
			if anchor != "" {
				rel += "#" + anchor
			}
			return target{rewrite: true, relPath: rel}
		}
	}
	external := !strings.EqualFold(resolved.Scheme+"://"+resolved.Host, rw.base.Scheme+"://"+rw.base.Host)
	return target{external: external}
}

func (rw *rewriter) rewriteRefDefinition(line string) string {
	m := refDefinitionRe.FindStringSubmatchIndex(line)
	if m == nil {
		return line
	}
	href := line[m[2]:m[3]]
	t := rw.classify(href)
	if !t.rewrite {
		return line
	}
	return line[:m[2]] + t.relPath + line[m[3]:]
}

func (rw *rewriter) rewriteLine(line string) string {
	line = rw.rewriteInlineLinks(line)
	line = rw.rewriteJSXHrefs(line)
	line = rw.linkifyBareURLs(line)
	return line
}

func (rw *rewriter) rewriteInlineLinks(line string) string {
	matches := inlineLinkRe.FindAllStringSubmatchIndex(line, -1)
	if matches == nil {
		return line
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		// Leave image syntax alone; images never map to pages.
		if m[0] > 0 && line[m[0]-1] == '!' {
			continue
		}
		display := line[m[2]:m[3]]
		href := line[m[4]:m[5]]
		title := ""
		if m[6] >= 0 {
			title = line[m[6]:m[7]]
		}
		t := rw.classify(href)
		var repl string
		switch {
		case t.rewrite:
			repl = "[" + stripMarker(display) + "](" + t.relPath + title + ")"
		case t.external:
			repl = "[" + ensureMarker(display) + "](" + href + title + ")"
		default:
			continue
		}
		b.WriteString(line[last:m[0]])
		b.WriteString(repl)
		last = m[1]
	}
	if last == 0 {
		return line
	}
	b.WriteString(line[last:])
	return b.String()
}

func (rw *rewriter) rewriteJSXHrefs(line string) string {
	matches := jsxHrefRe.FindAllStringSubmatchIndex(line, -1)
	if matches == nil {
		return line
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		href, start, end := jsxGroup(line, m)
		if href == "" {
			continue
		}
		t := rw.classify(href)
		if !t.rewrite {
			continue
		}
		b.WriteString(line[last:start])
		b.WriteString(t.relPath)
		last = end
	}
	if last == 0 {
		return line
	}
	b.WriteString(line[last:])
	return b.String()
}

func jsxGroup(line string, m []int) (string, int, int) {
	for g := 1; g <= 3; g++ {
		if m[2*g] >= 0 {
			return line[m[2*g]:m[2*g+1]], m[2*g], m[2*g+1]
		}
	}
	return "", 0, 0
}

// linkifyBareURLs turns a bare URL into a relative Markdown link, but
// only when the target rewrites; other bare URLs stay plain text. URLs
// inside an inline link, in its text or its destination, are left alone.
func (rw *rewriter) linkifyBareURLs(line string) string {
	matches := bareURLRe.FindAllStringIndex(line, -1)
	if matches == nil {
		return line
	}
	links := inlineLinkRe.FindAllStringIndex(line, -1)
	var b strings.Builder
	last := 0
	for _, m := range matches {
		inLink := false
		for _, l := range links {
			if m[0] >= l[0] && m[0] < l[1] {
				inLink = true
			}
		}
		if inLink || insideLinkContext(line, m[0]) {
			continue
		}
		raw := strings.TrimRight(line[m[0]:m[1]], ".,;:!?")
		end := m[0] + len(raw)
		t := rw.classify(raw)
		if !t.rewrite {
			continue
		}
		b.WriteString(line[last:m[0]])
		b.WriteString("[" + raw + "](" + t.relPath + ")")
		last = end
	}
	if last == 0 {
		return line
	}
	b.WriteString(line[last:])
	return b.String()
}

// insideLinkContext reports whether the position sits in a `](…)`
// destination, an autolink `<…>`, or a quoted attribute value, none of
// which may be linkified again.
func insideLinkContext(line string, pos int) bool {
	if pos == 0 {
		return false
	}
	switch line[pos-1] {
	case '<', '"', '\'', '=':
		return true
	case '(':
		return pos >= 2 && line[pos-2] == ']'
	}
	return false
}

func stripMarker(display string) string {
	trimmed := strings.TrimRight(display, " ")
	if strings.HasSuffix(trimmed, externalMarker) {
		return strings.TrimRight(strings.TrimSuffix(trimmed, externalMarker), " ")
	}
	return display
}

func ensureMarker(display string) string {
	if strings.HasSuffix(strings.TrimRight(display, " "), externalMarker) {
		return display
	}
	if display == "" {
		return externalMarker
	}
	return display + " " + externalMarker
}
