package engine

import (
	"context"
	"log/slog"

	"github.com/use-agent/markdowner/browser"
	"github.com/use-agent/markdowner/cleaner"
	"github.com/use-agent/markdowner/models"
	"golang.org/x/sync/errgroup"
)

// Run converts req and returns one result per processed URL, in input order.
//
// The only request-level failures are an unavailable browser and, in crawl
// mode, a base page that cannot be fetched. Everything else is reported per
// URL as sentinel markdown.
func (e *Engine) Run(ctx context.Context, req Request) ([]models.PageResult, error) {
	sess, release, err := e.deps.Browser.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	urls := []string{req.URL}
	if req.CrawlSubpages {
		urls, err = e.subpages(ctx, sess, req.URL)
		if err != nil {
			return nil, err
		}
		slog.Info("crawling subpages", "url", req.URL, "count", len(urls))
	}

	return e.batch(ctx, sess, req, urls), nil
}

// subpages renders base and returns the distinct links that start with it,
// in first-seen order, capped at MaxSubpages. base itself is only included
// if it links to itself.
func (e *Engine) subpages(ctx context.Context, sess browser.Session, base string) ([]string, error) {
	res, err := e.deps.Pages.Fetch(ctx, sess, base)
	if err != nil {
		return nil, err
	}
	return dedupeLinks(cleaner.Links(res.HTML, res.FinalURL, base), e.opts.MaxSubpages), nil
}

func dedupeLinks(links []string, max int) []string {
	seen := make(map[string]struct{}, len(links))
	out := make([]string, 0, min(len(links), max))
	for _, l := range links {
		if len(out) == max {
			break
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// batch processes urls concurrently, at most MaxTabs at a time. Each task
// writes only its own slot, so completion order never affects output order.
func (e *Engine) batch(ctx context.Context, sess browser.Session, req Request, urls []string) []models.PageResult {
	results := make([]models.PageResult, len(urls))

	var g errgroup.Group
	g.SetLimit(e.opts.MaxTabs)
	for i, u := range urls {
		g.Go(func() error {
			results[i] = e.process(ctx, sess, req, u)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
