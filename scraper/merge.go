package scraper

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Quintui/car-details-web-scraper/config"
	"github.com/Quintui/car-details-web-scraper/models"
	"github.com/Quintui/car-details-web-scraper/parser"
)

// Merger reconciles a listing-page summary with its detail page. It never
// returns an error: a summary whose detail fetch fails is still emitted with
// the enrichment fields empty, because losing the listing-page data over a
// one-item site error is worse than a sparse record.
type Merger struct {
	fetcher  *Fetcher
	governor *Governor
	retry    *retrier
	metrics  *Metrics

	fetchDetails bool
	detailStock  bool
}

// NewMerger builds the detail merge stage.
func NewMerger(cfg *config.Config, fetcher *Fetcher, governor *Governor, metrics *Metrics) *Merger {
	return &Merger{
		fetcher:      fetcher,
		governor:     governor,
		retry:        newRetrier(cfg, metrics),
		metrics:      metrics,
		fetchDetails: cfg.FetchDetails,
		detailStock:  cfg.DetailStock,
	}
}

// Merge folds one summary into a merged record, fetching the detail page when
// the summary carries a usable locator.
func (m *Merger) Merge(ctx context.Context, summary models.ProductSummary) models.MergedProduct {
	merged := models.MergedProduct{
		ProductSummary: summary,
		ImageURLs:      append([]string(nil), summary.PreviewImageURLs...),
		ScrapedAt:      time.Now(),
	}

	if !m.fetchDetails {
		return merged
	}
	if summary.ItemURL == "" {
		slog.Warn("summary has no item url, emitting without detail fields",
			slog.String("name", summary.DisplayName),
		)
		return merged
	}

	if err := m.governor.Detail(ctx); err != nil {
		return merged
	}

	var doc *goquery.Document
	fetchErr := m.retry.do(ctx, "detail page", func() error {
		d, err := m.fetcher.Document(ctx, summary.ItemURL)
		if err == nil {
			doc = d
		}
		return err
	})
	m.metrics.IncRequest("detail")
	if fetchErr != nil {
		m.metrics.IncError(errorTypeLabel(fetchErr))
		slog.Warn("detail fetch failed, emitting listing fields only",
			slog.String("url", summary.ItemURL),
			slog.Any("error", fetchErr),
		)
		return merged
	}

	pageURL, err := url.Parse(summary.ItemURL)
	if err != nil {
		pageURL = nil
	}
	detail := extractDetail(doc, pageURL)

	merged.DetailFetched = true
	merged.ManufacturerCode = detail.ManufacturerCode
	if m.detailStock && detail.InStock != nil {
		merged.AuthoritativeInStock = detail.InStock
	}
	merged.ImageURLs = parser.NormalizeImages(append(detail.ImageURLs, summary.PreviewImageURLs...))
	return merged
}
