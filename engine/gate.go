package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/markdowner/browser"
	"github.com/use-agent/markdowner/cache"
	"github.com/use-agent/markdowner/metrics"
	"github.com/use-agent/markdowner/models"
	"github.com/use-agent/markdowner/ratelimit"
	"github.com/use-agent/markdowner/tweet"
)

// process runs the per-URL pipeline and always yields a result: failures
// become sentinel markdown so siblings in the batch are unaffected.
func (e *Engine) process(ctx context.Context, sess browser.Session, req Request, u string) models.PageResult {
	if tweet.IsTweetURL(u) {
		return models.PageResult{URL: u, Markdown: e.processTweet(ctx, req, u)}
	}
	return models.PageResult{URL: u, Markdown: e.processPage(ctx, sess, req, u)}
}

// processTweet: parse id → cache(id) → admission → resolve. The resolver
// writes the cache itself, without expiry.
func (e *Engine) processTweet(ctx context.Context, req Request, u string) string {
	id, ok := tweet.ParseID(u)
	if !ok {
		return models.SentinelInvalidTweetURL
	}
	if md, hit := e.lookup(ctx, id); hit {
		return md
	}
	if !e.admit(ctx, req) {
		return models.SentinelRateLimited
	}

	start := time.Now()
	md := e.deps.Tweets.Resolve(ctx, id)
	metrics.ObserveExtraction("tweet", !models.IsSentinel(md), time.Since(start))
	return md
}

// processPage: cache(key) → admission → [LLM surcharge] → extract → [LLM]
// → cache write. Concurrent misses on one key share a single extraction.
func (e *Engine) processPage(ctx context.Context, sess browser.Session, req Request, u string) string {
	key := cache.Key(u, req.Detailed, req.LLMFilter)
	if md, hit := e.lookup(ctx, key); hit {
		return md
	}
	if !e.admit(ctx, req) {
		return models.SentinelRateLimited
	}
	if req.LLMFilter {
		e.chargeLLM(ctx, req)
	}

	// The shared extraction outlives any single caller's cancellation; the
	// scraper and LLM client bound it with their own timeouts.
	flightCtx := context.WithoutCancel(ctx)
	v, _, _ := e.flight.Do(key, func() (any, error) {
		md := e.extract(flightCtx, sess, u, req.Detailed)
		if req.LLMFilter && !models.IsSentinel(md) {
			md = e.filter(flightCtx, u, md)
		}
		if !models.IsSentinel(md) {
			if err := e.deps.Cache.Put(flightCtx, key, md, e.opts.CacheTTL); err != nil {
				slog.Warn("cache write failed", "key", key, "error", err)
			}
		}
		return md, nil
	})
	return v.(string)
}

// extract renders and converts one page.
func (e *Engine) extract(ctx context.Context, sess browser.Session, u string, detailed bool) string {
	start := time.Now()
	md, err := e.fetchMarkdown(ctx, sess, u, detailed)
	metrics.ObserveExtraction("page", err == nil, time.Since(start))
	if err != nil {
		slog.Warn("page extraction failed", "url", u, "error", err)
		return models.SentinelFetchFailed
	}
	return md
}

func (e *Engine) fetchMarkdown(ctx context.Context, sess browser.Session, u string, detailed bool) (string, error) {
	res, err := e.deps.Pages.Fetch(ctx, sess, u)
	if err != nil {
		return "", err
	}
	return e.deps.Converter.Markdown(res.HTML, res.FinalURL, detailed)
}

// lookup reads the cache. Backend errors count as misses.
func (e *Engine) lookup(ctx context.Context, key string) (string, bool) {
	md, ok, err := e.deps.Cache.Get(ctx, key)
	switch {
	case err != nil:
		slog.Warn("cache read failed", "key", key, "error", err)
		metrics.ObserveCacheLookup("error")
		return "", false
	case ok:
		metrics.ObserveCacheLookup("hit")
		return md, true
	default:
		metrics.ObserveCacheLookup("miss")
		return "", false
	}
}

func (e *Engine) trusted(req Request) bool {
	return ratelimit.Trusted(req.Token, e.opts.TrustedToken)
}

// admit consumes one limiter unit for the caller's IP. Trusted callers are
// never limited; a failing limiter admits.
func (e *Engine) admit(ctx context.Context, req Request) bool {
	if e.trusted(req) {
		metrics.ObserveAdmission("trusted")
		return true
	}
	ok, err := e.deps.Limiter.Limit(ctx, req.ClientIP)
	if err != nil {
		slog.Warn("rate limiter failed, admitting request", "ip", req.ClientIP, "error", err)
		metrics.ObserveAdmission("error")
		return true
	}
	if !ok {
		metrics.ObserveAdmission("denied")
		return false
	}
	metrics.ObserveAdmission("allowed")
	return true
}
