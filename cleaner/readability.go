package cleaner

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// newArticleParser returns a parser tuned to keep as much of the page as
// readability will allow: no minimum article length, a wide candidate pool,
// and class attributes preserved for the converter.
func newArticleParser() readability.Parser {
	p := readability.NewParser()
	p.CharThresholds = 0
	p.NTopCandidates = 500
	p.KeepClasses = true
	return p
}

// articleHTML returns the main-article HTML readability finds in rawHTML,
// or "" when it finds none.
func (c *Cleaner) articleHTML(rawHTML, pageURL string) string {
	parsedURL, err := nurl.Parse(pageURL)
	if err != nil {
		slog.Warn("readability: invalid page URL", "url", pageURL, "error", err)
		return ""
	}

	parser := newArticleParser()
	article, err := parser.Parse(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Debug("readability: no article found", "url", pageURL, "error", err)
		return ""
	}
	return article.Content
}
