package models

import "net/http"

// Sentinel markdown values. Each stands in for the markdown of one URL whose
// processing failed, so one bad URL never aborts its siblings.
const (
	SentinelRateLimited        = "Rate limit exceeded"
	SentinelTweetNotFound      = "Tweet not found"
	SentinelInvalidTweetURL    = "Invalid tweet URL"
	SentinelBrowserUnavailable = "Could not start browser instance"
	SentinelFetchFailed        = "Failed to fetch page"
	SentinelLLMFailed          = "LLM filter failed"
)

var sentinels = map[string]struct{}{
	SentinelRateLimited:        {},
	SentinelTweetNotFound:      {},
	SentinelInvalidTweetURL:    {},
	SentinelBrowserUnavailable: {},
	SentinelFetchFailed:        {},
	SentinelLLMFailed:          {},
}

// IsSentinel reports whether md is one of the reserved failure values.
func IsSentinel(md string) bool {
	_, ok := sentinels[md]
	return ok
}

// PageResult is the per-URL output of a batch.
type PageResult struct {
	URL      string `json:"url"`
	Markdown string `json:"md"`
}

// OK reports whether the result carries real markdown.
func (r PageResult) OK() bool {
	return !IsSentinel(r.Markdown)
}

// BatchStatus returns 429 if any result was denied admission, 200 otherwise.
func BatchStatus(results []PageResult) int {
	for _, r := range results {
		if r.Markdown == SentinelRateLimited {
			return http.StatusTooManyRequests
		}
	}
	return http.StatusOK
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status  string       `json:"status"` // "healthy" or "idle"
	Uptime  string       `json:"uptime"`
	Browser BrowserStats `json:"browser"`
	Version string       `json:"version"`
}

// BrowserStats reports the state of the shared browser session.
type BrowserStats struct {
	Connected   bool   `json:"connected"`
	SessionID   string `json:"session_id,omitempty"`
	IdleSeconds int    `json:"idle_seconds"`
	Launches    int64  `json:"launches"`
}
