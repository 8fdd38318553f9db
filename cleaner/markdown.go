package cleaner

import (
	"bytes"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// newMarkdownConverter creates a reusable, goroutine-safe Converter:
//
//   - base plugin: drops head, meta, link, form inputs and comments.
//   - commonmark plugin: headings, lists, links, code blocks, emphasis.
//   - table plugin: keeps tables, with minimal cell padding.
func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}

// strippedElements are removed from the document before detailed conversion.
var strippedElements = cascadia.MustCompile("script, style, iframe, noscript")

// Sanitize parses rawHTML into a fresh tree, removes every script, style,
// iframe and noscript element, and renders the result.
func Sanitize(rawHTML string) (string, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}

	for _, n := range cascadia.QueryAll(doc, strippedElements) {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}
