// Package cleaner turns rendered HTML into markdown.
package cleaner

import (
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/use-agent/markdowner/models"
)

// Cleaner converts rendered pages in one of two modes:
//
//	detailed:     sanitized full document → Markdown
//	non-detailed: readability main article → Markdown
//
// The converter is created once and reused across all requests (goroutine-safe).
// Readability parsers carry per-document state, so each call builds its own.
type Cleaner struct {
	mdConverter *converter.Converter
}

// NewCleaner initialises the Cleaner.
func NewCleaner() *Cleaner {
	return &Cleaner{
		mdConverter: newMarkdownConverter(),
	}
}

// Markdown converts rawHTML fetched from pageURL.
//
// In non-detailed mode a page without an identifiable article converts to
// the empty string rather than failing.
func (c *Cleaner) Markdown(rawHTML, pageURL string, detailed bool) (string, error) {
	var content string
	if detailed {
		sanitized, err := Sanitize(rawHTML)
		if err != nil {
			return "", models.NewScrapeError(models.ErrCodeExtraction, "failed to sanitize document", err)
		}
		content = sanitized
	} else {
		content = c.articleHTML(rawHTML, pageURL)
	}

	if content == "" {
		return "", nil
	}
	md, err := c.mdConverter.ConvertString(content, converter.WithDomain(pageURL))
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeExtraction, "markdown conversion failed", err)
	}
	return md, nil
}
