// Package scraper implements the crawl-and-merge orchestrator: pagination
// walking, detail merging, group enumeration, and rate governing.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/Quintui/car-details-web-scraper/config"
	"github.com/Quintui/car-details-web-scraper/models"
	"github.com/Quintui/car-details-web-scraper/parser"
	"github.com/Quintui/car-details-web-scraper/pipeline"
)

// Scraper owns the run-scoped collaborators. All network operations are
// sequential: the governor's per-site minimum interval is the only rate
// control, and no fetch overlaps another.
type Scraper struct {
	cfg      *config.Config
	fetcher  *Fetcher
	governor *Governor
	walker   *Walker
	merger   *Merger
	Metrics  *Metrics
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	metrics := NewMetrics()
	fetcher, err := NewFetcher(cfg, metrics)
	if err != nil {
		return nil, err
	}
	governor := NewGovernor(cfg)

	return &Scraper{
		cfg:      cfg,
		fetcher:  fetcher,
		governor: governor,
		walker:   NewWalker(cfg, fetcher, governor, metrics),
		merger:   NewMerger(cfg, fetcher, governor, metrics),
		Metrics:  metrics,
	}, nil
}

// Fetcher exposes the underlying fetcher; used by tests to swap transports.
func (s *Scraper) Fetcher() *Fetcher {
	return s.fetcher
}

// Run executes the configured mode against the sink and returns a report.
func (s *Scraper) Run(ctx context.Context, sink *pipeline.Sink, cursor *pipeline.Cursor) (*models.RunReport, error) {
	start := time.Now()

	var err error
	switch s.cfg.Mode {
	case config.ModeGrouped:
		err = s.runGrouped(ctx, sink, cursor)
	default:
		err = s.runCatalog(ctx, sink)
	}

	snapshot := s.Metrics.TakeSnapshot()
	errorCount := 0
	for _, n := range snapshot.ErrorsByType {
		errorCount += n
	}
	dropped := 0
	for _, n := range sink.Dropped() {
		dropped += n
	}

	report := &models.RunReport{
		StartTime:    start,
		EndTime:      time.Now(),
		PageCount:    snapshot.Pages,
		ItemCount:    snapshot.Items,
		RowsWritten:  sink.Written(),
		RetryCount:   snapshot.Retries,
		ErrorCount:   errorCount,
		ErrorsByType: snapshot.ErrorsByType,
		SkippedItems: dropped,
	}
	return report, err
}

// runCatalog crawls the configured category listings as one logical batch.
func (s *Scraper) runCatalog(ctx context.Context, sink *pipeline.Sink) error {
	var batch []models.MergedProduct

	for _, categoryID := range s.cfg.CategoryIDs {
		remaining := sink.Remaining() - len(batch)
		if remaining <= 0 {
			slog.Info("global budget exhausted, stopping catalog crawl")
			break
		}

		var summaries []models.ProductSummary
		err := s.walker.Walk(ctx, s.categoryURL(categoryID), nil, func(page []models.ProductSummary) bool {
			summaries = append(summaries, page...)
			return len(summaries) < remaining
		})
		if err != nil {
			return err
		}
		if len(summaries) > remaining {
			summaries = summaries[:remaining]
		}

		for _, summary := range summaries {
			if err := ctx.Err(); err != nil {
				return err
			}
			batch = append(batch, s.merger.Merge(ctx, summary))
		}
	}

	written, err := sink.Append(batch)
	if err != nil {
		return &PersistError{Err: err}
	}
	s.Metrics.AddRows(written)
	return nil
}

// runGrouped fetches the vehicle tree once, then enumerates its leaves.
func (s *Scraper) runGrouped(ctx context.Context, sink *pipeline.Sink, cursor *pipeline.Cursor) error {
	tree, err := s.FetchBrandTree(ctx)
	if err != nil {
		return err
	}
	slog.Info("vehicle tree loaded", slog.Int("brands", len(tree)))

	enumerator := NewEnumerator(s.cfg, s.walker, s.merger, s.governor, sink, cursor, s.Metrics)
	return enumerator.Run(ctx, tree)
}

// FetchBrandTree retrieves and parses the embedded brand/model/year mapping.
// Failure is fatal to a grouped run; there is nothing to enumerate without it.
func (s *Scraper) FetchBrandTree(ctx context.Context) (models.BrandModelTree, error) {
	body, err := s.fetcher.Fetch(ctx, s.cfg.BrandTreeURL)
	s.Metrics.IncRequest("tree")
	if err != nil {
		s.Metrics.IncError(errorTypeLabel(err))
		return nil, &ConfigError{Err: fmt.Errorf("fetch vehicle tree: %w", err)}
	}

	tree, err := parser.ParseBrandTree(body)
	if err != nil {
		s.Metrics.IncError("config")
		return nil, &ConfigError{Err: err}
	}
	return tree, nil
}

func (s *Scraper) categoryURL(categoryID string) string {
	u, err := url.Parse(s.cfg.BaseURL)
	if err != nil {
		return s.cfg.BaseURL
	}
	u.Path = "/en/catalog"
	query := url.Values{}
	query.Set("category", categoryID)
	u.RawQuery = query.Encode()
	return u.String()
}
