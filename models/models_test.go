package models

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://example.com", true},
		{"http://example.com/path?q=1", true},
		{"ftp://example.com", false},
		{"example.com", false},
		{"https://exa mple.com", false},
		{`https://example.com/"x"`, false},
		{"https://", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValidURL(tt.in), tt.in)
	}
}

func TestBatchStatus(t *testing.T) {
	ok := []PageResult{{URL: "a", Markdown: "# A"}, {URL: "b", Markdown: SentinelTweetNotFound}}
	assert.Equal(t, http.StatusOK, BatchStatus(ok))

	limited := append(ok, PageResult{URL: "c", Markdown: SentinelRateLimited})
	assert.Equal(t, http.StatusTooManyRequests, BatchStatus(limited))

	assert.Equal(t, http.StatusOK, BatchStatus(nil))
}

func TestPageResult_OK(t *testing.T) {
	assert.True(t, PageResult{Markdown: "hello"}.OK())
	assert.True(t, PageResult{Markdown: ""}.OK())
	assert.False(t, PageResult{Markdown: SentinelFetchFailed}.OK())
	assert.False(t, PageResult{Markdown: SentinelInvalidTweetURL}.OK())
}

func TestConvertQuery_Flags(t *testing.T) {
	q := ConvertQuery{EnableDetailedResponse: "true", CrawlSubpages: "1", LLMFilter: "TRUE"}
	assert.True(t, q.Detailed())
	assert.False(t, q.Crawl())
	assert.False(t, q.Filter())
}

func TestParseContentType(t *testing.T) {
	assert.Equal(t, ContentTypeJSON, ParseContentType("application/json"))
	assert.Equal(t, ContentTypeText, ParseContentType("application/json; charset=utf-8"))
	assert.Equal(t, ContentTypeText, ParseContentType("text/plain"))
	assert.Equal(t, ContentTypeText, ParseContentType(""))
}

func TestScrapeError_Unwrap(t *testing.T) {
	root := errors.New("boom")
	err := NewScrapeError(ErrCodeBrowserUnavailable, "could not start", root)

	assert.ErrorIs(t, err, root)
	assert.Equal(t, "BROWSER_UNAVAILABLE: could not start: boom", err.Error())
	assert.Equal(t, "INVALID_INPUT: bad", NewScrapeError(ErrCodeInvalidInput, "bad", nil).Error())
}
