package markdown

import (
	"regexp"
	"strings"
	"time"
)

var (
	sourceLinkForm    = regexp.MustCompile(`^\[[^\]]*\]\(([^)\s]+)\)$`)
	sourceAngleForm   = regexp.MustCompile(`^<([^>\s]+)>$`)
	leadingHeadingRe  = regexp.MustCompile(`(?m)^#{1,6}\s+\S`)
	frontmatterSource = regexp.MustCompile(`(?m)^Source:\s*(.+)$`)
)

// Compose builds the final document: the frontmatter header, a single
// title heading, and the body. A body that already opens with a heading
// keeps it instead of gaining a duplicate.
func Compose(body, source, title string, fetched time.Time) string {
	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("Source: ")
	b.WriteString(source)
	b.WriteString("\nFetched: ")
	b.WriteString(fetched.UTC().Format(time.RFC3339))
	b.WriteString("\n---\n\n")

	body = strings.TrimLeft(body, "\n")
	if !startsWithHeading(body) {
		b.WriteString("# ")
		b.WriteString(title)
		b.WriteString("\n\n")
	}
	b.WriteString(strings.TrimRight(body, "\n"))
	b.WriteString("\n")
	return b.String()
}

func startsWithHeading(body string) bool {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		return leadingHeadingRe.MatchString(trimmed)
	}
	return false
}

// FirstHeading returns the text of the document's first ATX heading, or
// "" when none exists.
func FirstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(trimmed, "#"); ok {
			return strings.TrimSpace(strings.TrimLeft(after, "#"))
		}
	}
	return ""
}

// NormalizeFrontmatterSource flattens the Source line of the frontmatter
// to a plain URL string, undoing link wrapping ([label](href), <href>)
// and stray external markers that upstream Markdown may carry.
func NormalizeFrontmatterSource(text string) string {
	end := frontmatterEnd(text)
	if end < 0 {
		return text
	}
	head := text[:end]
	head = frontmatterSource.ReplaceAllStringFunc(head, func(line string) string {
		value := strings.TrimSpace(strings.TrimPrefix(line, "Source:"))
		value = strings.TrimSuffix(value, externalMarker)
		value = strings.TrimSpace(value)
		if m := sourceLinkForm.FindStringSubmatch(value); m != nil {
			value = m[1]
		} else if m := sourceAngleForm.FindStringSubmatch(value); m != nil {
			value = m[1]
		}
		return "Source: " + value
	})
	return head + text[end:]
}

// frontmatterEnd returns the offset just past the closing delimiter of a
// leading frontmatter block, or -1 when the text has none.
func frontmatterEnd(text string) int {
	if !strings.HasPrefix(text, "---\n") {
		return -1
	}
	idx := strings.Index(text[4:], "\n---")
	if idx < 0 {
		return -1
	}
	return 4 + idx + len("\n---")
}
