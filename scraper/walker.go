package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/Quintui/car-details-web-scraper/config"
	"github.com/Quintui/car-details-web-scraper/models"
)

// filterKeys are the query parameters that encode the active catalog filter.
// The site's pagination links do not reliably round-trip them, so the walker
// copies them forward when deriving the next page URL.
var filterKeys = []string{"category", "brand", "model", "years"}

// visitFunc receives one page's summaries in listing order. Returning false
// stops the walk early (budget exhausted).
type visitFunc func(summaries []models.ProductSummary) bool

// Walker drives repeated listing fetches following next-page locators until a
// termination condition fires.
type Walker struct {
	fetcher  *Fetcher
	governor *Governor
	retry    *retrier
	metrics  *Metrics
	maxPages int
}

// NewWalker builds a pagination walker.
func NewWalker(cfg *config.Config, fetcher *Fetcher, governor *Governor, metrics *Metrics) *Walker {
	return &Walker{
		fetcher:  fetcher,
		governor: governor,
		retry:    newRetrier(cfg, metrics),
		metrics:  metrics,
		maxPages: cfg.MaxPages,
	}
}

// Walk iterates listing pages starting at startURL. After each page it checks,
// in order: the hard page-count ceiling, an empty non-first page, a next URL
// that resolves to an already-visited page, and a missing next locator. Transient
// fetch failures are retried; a fetch that still fails ends the walk like an
// exhausted catalog rather than aborting the run.
func (w *Walker) Walk(ctx context.Context, startURL string, group *models.GroupKey, visit visitFunc) error {
	current, err := url.Parse(startURL)
	if err != nil {
		return fmt.Errorf("parse start url: %w", err)
	}
	visited := map[string]struct{}{current.String(): {}}

	for pageNum := 1; ; pageNum++ {
		if err := w.governor.Listing(ctx); err != nil {
			return err
		}

		var doc *goquery.Document
		fetchErr := w.retry.do(ctx, "listing page", func() error {
			d, err := w.fetcher.Document(ctx, current.String())
			if err == nil {
				doc = d
			}
			return err
		})
		w.metrics.IncRequest("listing")
		if fetchErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.metrics.IncError(errorTypeLabel(fetchErr))
			slog.Warn("listing fetch failed, ending walk",
				slog.String("url", current.String()),
				slog.Int("page", pageNum),
				slog.Any("error", fetchErr),
			)
			return nil
		}

		page := extractListing(doc, current, group)
		if len(page.summaries) > 0 {
			w.metrics.IncPages()
			w.metrics.IncItems(len(page.summaries))
			if !visit(page.summaries) {
				return nil
			}
		}

		if pageNum >= w.maxPages {
			slog.Warn("page ceiling reached, ending walk",
				slog.String("url", current.String()),
				slog.Int("pages", pageNum),
			)
			return nil
		}
		if len(page.summaries) == 0 && pageNum > 1 {
			slog.Debug("empty listing page, ending walk", slog.Int("page", pageNum))
			return nil
		}
		if page.nextURL == "" {
			return nil
		}

		next := w.nextPageURL(current, page.nextURL)
		if next == nil {
			return nil
		}
		if _, seen := visited[next.String()]; seen {
			slog.Debug("next page cycles back, ending walk", slog.String("url", next.String()))
			return nil
		}
		visited[next.String()] = struct{}{}
		current = next
	}
}

// nextPageURL resolves the next-page locator against the current page and
// copies forward any filter parameters the link dropped.
func (w *Walker) nextPageURL(current *url.URL, nextHref string) *url.URL {
	ref, err := url.Parse(nextHref)
	if err != nil {
		return nil
	}
	next := current.ResolveReference(ref)

	currentQuery := current.Query()
	nextQuery := next.Query()
	changed := false
	for _, key := range filterKeys {
		if nextQuery.Get(key) == "" && currentQuery.Get(key) != "" {
			nextQuery.Set(key, currentQuery.Get(key))
			changed = true
		}
	}
	if changed {
		next.RawQuery = nextQuery.Encode()
	}
	return next
}
