// Package engine orchestrates one conversion request: it holds the shared
// browser session for the duration of the request, fans out per-URL work
// through the cache and admission gate, and assembles ordered results.
package engine

import (
	"context"
	"time"

	"github.com/use-agent/markdowner/browser"
	"github.com/use-agent/markdowner/cache"
	"github.com/use-agent/markdowner/ratelimit"
	"github.com/use-agent/markdowner/scraper"
	"golang.org/x/sync/singleflight"
)

// Request is one inbound conversion. It is threaded through every stage and
// never stored on the Engine.
type Request struct {
	URL           string
	Detailed      bool
	CrawlSubpages bool
	LLMFilter     bool

	// Token is the caller's bearer token, "" if none.
	Token string
	// ClientIP keys the rate limiter.
	ClientIP string
}

// Browser hands out the shared session. *browser.Manager implements it.
type Browser interface {
	Acquire(ctx context.Context) (browser.Session, func(), error)
}

// PageFetcher renders one URL on a session. *scraper.Scraper implements it.
type PageFetcher interface {
	Fetch(ctx context.Context, sess browser.Session, url string) (*scraper.Result, error)
}

// Converter turns rendered HTML into markdown. *cleaner.Cleaner implements it.
type Converter interface {
	Markdown(rawHTML, pageURL string, detailed bool) (string, error)
}

// TweetResolver renders a tweet by id. *tweet.Resolver implements it.
type TweetResolver interface {
	Resolve(ctx context.Context, id string) string
}

// Filter post-processes markdown. *llm.Client implements it.
type Filter interface {
	Filter(ctx context.Context, markdown string) (string, error)
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Browser   Browser
	Pages     PageFetcher
	Converter Converter
	Tweets    TweetResolver
	LLM       Filter
	Cache     cache.Store
	Limiter   ratelimit.Limiter
}

// Options are the policy knobs of an Engine.
type Options struct {
	// TrustedToken bypasses admission and the LLM surcharge.
	TrustedToken string
	// CacheTTL is the expiry of page entries.
	CacheTTL time.Duration
	// LLMCost is the number of extra limiter units charged per filtered page.
	LLMCost int
	// MaxTabs caps concurrently processed URLs per request.
	MaxTabs int
	// MaxSubpages caps crawl mode fan-out.
	MaxSubpages int
}

// DefaultOptions mirrors the service defaults.
func DefaultOptions() Options {
	return Options{
		CacheTTL:    time.Hour,
		LLMCost:     60,
		MaxTabs:     10,
		MaxSubpages: 10,
	}
}

// Engine is safe for concurrent use; all per-request state lives in Request.
type Engine struct {
	deps Deps
	opts Options

	// flight collapses concurrent misses on the same page cache key.
	flight singleflight.Group
}

// New creates an Engine. Zero CacheTTL, MaxTabs and MaxSubpages fall back
// to DefaultOptions; a zero LLMCost disables the surcharge.
func New(deps Deps, opts Options) *Engine {
	def := DefaultOptions()
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = def.CacheTTL
	}
	if opts.LLMCost < 0 {
		opts.LLMCost = 0
	}
	if opts.MaxTabs <= 0 {
		opts.MaxTabs = def.MaxTabs
	}
	if opts.MaxSubpages <= 0 {
		opts.MaxSubpages = def.MaxSubpages
	}
	return &Engine{deps: deps, opts: opts}
}
