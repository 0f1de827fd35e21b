// Package markdown hosts the HTML to Markdown engine, frontmatter
// handling, Markdown link extraction, and the on-disk link rewriter.
package markdown

import (
	"fmt"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/strikethrough"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

var (
	engineOnce sync.Once
	engine     *converter.Converter
)

// Engine returns the process-wide HTML to Markdown converter. It is
// constructed once with CommonMark output plus table and strikethrough
// support and is immutable afterwards.
func Engine() *converter.Converter {
	engineOnce.Do(func() {
		engine = converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
				strikethrough.NewStrikethroughPlugin(),
			),
		)
	})
	return engine
}

// Convert renders the HTML fragment as CommonMark. Relative URLs inside
// the fragment stay relative; the link rewriter resolves them against the
// page URL later.
func Convert(html string) (string, error) {
	md, err := Engine().ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert html: %w", err)
	}
	return md, nil
}
