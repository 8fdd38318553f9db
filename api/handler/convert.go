package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/markdowner/api/middleware"
	"github.com/use-agent/markdowner/engine"
	"github.com/use-agent/markdowner/models"
)

// Converter runs one conversion request. *engine.Engine implements it.
type Converter interface {
	Run(ctx context.Context, req engine.Request) ([]models.PageResult, error)
}

const usage = `Usage: GET /?url=<http(s) URL>

Query parameters:
  url                     page to convert (required)
  enableDetailedResponse  "true" converts the whole page instead of the main article
  crawlSubpages           "true" also converts up to 10 links under url (JSON responses only)
  llmFilter               "true" strips boilerplate with a language model

Send "Content-Type: application/json" to receive [{"url": ..., "md": ...}];
any other content type returns the markdown of url as text/plain.
`

const (
	msgCrawlNeedsJSON = "Error: Crawl subpages can only be enabled with JSON content type"
	msgInvalidURL     = "Invalid URL provided, should be a full URL starting with http:// or https://"
)

// Convert returns a handler for GET /.
//
// Input errors are rejected before any browser work. Per-URL failures come
// back as sentinel markdown; only an unavailable browser or a failed crawl
// base page fail the whole request.
func Convert(conv Converter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q models.ConvertQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.String(http.StatusBadRequest, usage)
			return
		}

		contentType := models.ParseContentType(c.GetHeader("Content-Type"))
		if q.Crawl() && contentType != models.ContentTypeJSON {
			c.String(http.StatusBadRequest, msgCrawlNeedsJSON)
			return
		}
		if q.URL == "" {
			c.String(http.StatusBadRequest, usage)
			return
		}
		if !models.IsValidURL(q.URL) {
			c.String(http.StatusBadRequest, msgInvalidURL)
			return
		}

		results, err := conv.Run(c.Request.Context(), engine.Request{
			URL:           q.URL,
			Detailed:      q.Detailed(),
			CrawlSubpages: q.Crawl(),
			LLMFilter:     q.Filter(),
			Token:         middleware.Token(c),
			ClientIP:      middleware.ClientIP(c),
		})
		if err != nil {
			respondError(c, err)
			return
		}

		if contentType == models.ContentTypeJSON {
			c.JSON(models.BatchStatus(results), results)
			return
		}

		var md string
		if len(results) > 0 {
			md = results[0].Markdown
		}
		status := http.StatusOK
		if md == models.SentinelRateLimited {
			status = http.StatusTooManyRequests
		}
		c.Data(status, "text/plain; charset=utf-8", []byte(md))
	}
}

// respondError maps a request-level failure to a status and a plain-text body.
func respondError(c *gin.Context, err error) {
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}

	msg := scrapeErr.Message
	if scrapeErr.Code == models.ErrCodeBrowserUnavailable {
		msg = models.SentinelBrowserUnavailable
	}
	c.String(mapErrorToStatus(scrapeErr), msg)
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	default:
		return http.StatusInternalServerError // 500
	}
}
