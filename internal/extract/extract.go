// Package extract turns fetched HTML into main content and clutter
// fragments ready for Markdown conversion.
package extract

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// SufficientContentChars is the minimum body-text size (non-whitespace,
// script/style excluded) below which a page is escalated to the renderer.
const SufficientContentChars = 200

// clutterSelector lists the elements stripped from every page before
// conversion. nav/header/footer/aside survive into the clutter variant;
// the rest is discarded outright.
const (
	clutterSelector = "nav, header, footer, aside"
	discardSelector = "script, style, iframe, svg, noscript, template, form, button, input, " +
		`[class*="skip-to-content"], [class*="skip-link"]`
)

// Result is the cleaned content for one page.
type Result struct {
	Title string
	// MainHTML is the preferred content: the readability extraction when
	// it produces anything, otherwise the cleaned body.
	MainHTML string
	// ClutterHTML holds the stripped nav/header/footer markup; empty
	// when the page had none.
	ClutterHTML string
	// FullHTML is the cleaned body regardless of the readability outcome.
	FullHTML string
	// Sufficient reports whether MainHTML passes the body-text gate.
	Sufficient bool
}

// Extract cleans the document and attempts a readability main-content
// pass, falling back to the cleaned body.
func Extract(html, baseURL string) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Result{}, fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	doc.Find(discardSelector).Remove()

	var clutter strings.Builder
	doc.Find(clutterSelector).Each(func(_ int, s *goquery.Selection) {
		if frag, herr := goquery.OuterHtml(s); herr == nil {
			clutter.WriteString(frag)
			clutter.WriteString("\n")
		}
	})
	doc.Find(clutterSelector).Remove()

	body := doc.Find("body")
	full, err := body.Html()
	if err != nil || strings.TrimSpace(full) == "" {
		// Fragments without a body element keep the whole cleaned tree.
		full, _ = doc.Html()
	}

	main := readabilityContent(html, baseURL)
	if main == "" {
		main = full
	}

	clutterHTML := clutter.String()
	if strings.TrimSpace(textOf(clutterHTML)) == "" {
		clutterHTML = ""
	}

	return Result{
		Title:       title,
		MainHTML:    main,
		ClutterHTML: clutterHTML,
		FullHTML:    full,
		Sufficient:  BodyTextLen(main) > SufficientContentChars,
	}, nil
}

// readabilityContent runs the readability pass over the original
// document; its own cleaning is independent of ours.
func readabilityContent(html, baseURL string) string {
	pageURL, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err != nil {
		return ""
	}
	if strings.TrimSpace(textOf(article.Content)) == "" {
		return ""
	}
	return article.Content
}

// BodyTextLen counts the non-whitespace text characters of an HTML
// fragment, with script and style content excluded.
func BodyTextLen(html string) int {
	return len([]rune(strings.Map(dropSpace, textOf(html))))
}

func dropSpace(r rune) rune {
	if unicode.IsSpace(r) {
		return -1
	}
	return r
}

func textOf(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style").Remove()
	return doc.Text()
}
