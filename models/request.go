package models

import "regexp"

// ContentType selects the response shape.
type ContentType string

const (
	ContentTypeText ContentType = "text"
	ContentTypeJSON ContentType = "json"
)

// ParseContentType picks the response shape from the request's Content-Type
// header. Only the exact value "application/json" selects JSON.
func ParseContentType(header string) ContentType {
	if header == "application/json" {
		return ContentTypeJSON
	}
	return ContentTypeText
}

// ConvertQuery is the query string of GET /.
// Boolean flags are enabled only by the literal string "true".
type ConvertQuery struct {
	// URL is the target page. Required.
	URL string `form:"url"`

	// EnableDetailedResponse converts the full sanitized document instead of
	// the extracted article.
	EnableDetailedResponse string `form:"enableDetailedResponse"`

	// CrawlSubpages converts up to 10 same-prefix links found on URL.
	// Only valid with JSON content type.
	CrawlSubpages string `form:"crawlSubpages"`

	// LLMFilter post-processes the markdown through a language model.
	LLMFilter string `form:"llmFilter"`
}

func (q ConvertQuery) Detailed() bool { return q.EnableDetailedResponse == "true" }
func (q ConvertQuery) Crawl() bool    { return q.CrawlSubpages == "true" }
func (q ConvertQuery) Filter() bool   { return q.LLMFilter == "true" }

var validURLRe = regexp.MustCompile(`^(http|https)://[^ "]+$`)

// IsValidURL reports whether raw is a full http(s) URL without spaces or quotes.
func IsValidURL(raw string) bool {
	return validURLRe.MatchString(raw)
}
