// Package scraper acquires rendered HTML from the shared browser session.
package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/markdowner/browser"
	"github.com/use-agent/markdowner/config"
	"github.com/use-agent/markdowner/models"
	"github.com/ysmood/gson"
)

// Result is the rendered document of one page.
type Result struct {
	// HTML is the serialized DOM after the load event.
	HTML string

	// FinalURL is window.location.href after redirects. Falls back to the
	// requested URL when it cannot be read.
	FinalURL string
}

// Scraper opens one tab per call on a caller-supplied session.
// It holds no per-request state and is safe for concurrent use.
type Scraper struct {
	cfg     config.ScraperConfig
	blocker *blocker
}

// New creates a Scraper.
func New(cfg config.ScraperConfig) *Scraper {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 15 * time.Second
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 30 * time.Second
	}
	return &Scraper{cfg: cfg, blocker: newBlocker(cfg.BlockedResourceTypes, cfg.BlockAds)}
}

// Fetch renders targetURL in a new tab of sess and returns its HTML.
//
// Lifecycle:
//
//  1. Timeout guard     – PageTimeout bounds the whole call
//  2. Open tab          – closed on return using the context-free reference
//  3. Stealth           – before navigation, or it has no effect
//  4. Headers + hijack  – before navigation for the same reason
//  5. Navigate + load   – bounded by NavigationTimeout
//  6. Extract           – page.HTML() + location.href
func (s *Scraper) Fetch(ctx context.Context, sess browser.Session, targetURL string) (*Result, error) {
	// ── 1. Timeout guard ──────────────────────────────────────────────
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PageTimeout)
	defer cancel()

	// ── 2. Open tab ───────────────────────────────────────────────────
	page, err := sess.NewPage()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserUnavailable, "failed to open page", err)
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			slog.Debug("closing page failed", "url", targetURL, "error", closeErr)
		}
	}()

	// ── 3. Stealth injection ──────────────────────────────────────────
	if s.cfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}

	// ── 4. Extra headers + hijack router ──────────────────────────────
	if headers := navigationHeaders(targetURL); len(headers) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{Headers: headers}.Call(page)
	}
	if router := s.blocker.mount(page); router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)

	// ── 5. Navigate ───────────────────────────────────────────────────
	nav := p.Timeout(s.cfg.NavigationTimeout)
	if err := nav.Navigate(targetURL); err != nil {
		return nil, categorizeError(err, "navigation to target URL failed")
	}
	if err := nav.WaitLoad(); err != nil {
		return nil, categorizeError(err, "page did not finish loading")
	}

	// ── 6. Extract ────────────────────────────────────────────────────
	html, err := p.HTML()
	if err != nil {
		return nil, categorizeError(err, "failed to extract page HTML")
	}

	finalURL := targetURL
	if res, evalErr := p.Eval(`() => window.location.href`); evalErr == nil {
		if href := res.Value.Str(); href != "" {
			finalURL = href
		}
	}

	return &Result{HTML: html, FinalURL: finalURL}, nil
}

// navigationHeaders returns the extra headers sent with every navigation:
// a search-engine Referer for the target host.
func navigationHeaders(targetURL string) proto.NetworkHeaders {
	u, err := url.Parse(targetURL)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	return proto.NetworkHeaders{
		"Referer": gson.New("https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())),
	}
}

// categorizeError wraps raw errors into typed ScrapeErrors.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
