package scraper

import (
	"context"
	"log/slog"
	"net/url"
	"sort"

	"github.com/Quintui/car-details-web-scraper/config"
	"github.com/Quintui/car-details-web-scraper/models"
	"github.com/Quintui/car-details-web-scraper/pipeline"
)

// Enumerator walks every (brand, model, year-range) leaf of the vehicle tree,
// re-querying the catalog under that filter and persisting one batch per leaf.
// The global budget is enforced at three points: no new leaf starts once it is
// exhausted, a leaf's summaries are truncated to the remainder before the
// expensive detail merges, and the sink re-checks on append.
type Enumerator struct {
	cfg      *config.Config
	walker   *Walker
	merger   *Merger
	governor *Governor
	sink     *pipeline.Sink
	cursor   *pipeline.Cursor
	metrics  *Metrics
}

// NewEnumerator builds the grouped-mode orchestrator.
func NewEnumerator(cfg *config.Config, walker *Walker, merger *Merger, governor *Governor, sink *pipeline.Sink, cursor *pipeline.Cursor, metrics *Metrics) *Enumerator {
	return &Enumerator{
		cfg:      cfg,
		walker:   walker,
		merger:   merger,
		governor: governor,
		sink:     sink,
		cursor:   cursor,
		metrics:  metrics,
	}
}

// Run iterates the tree in sorted order. Budget exhaustion stops brand- and
// model-level iteration promptly, not just the inner year loop.
func (e *Enumerator) Run(ctx context.Context, tree models.BrandModelTree) error {
	for _, brand := range sortedKeys(tree) {
		byModel := tree[brand]
		for _, model := range sortedKeys(byModel) {
			for _, years := range byModel[model] {
				if err := ctx.Err(); err != nil {
					return err
				}
				if e.sink.Remaining() <= 0 {
					slog.Info("global budget exhausted, stopping enumeration",
						slog.Int("written", e.sink.Written()),
					)
					return nil
				}

				group := &models.GroupKey{BrandCode: brand, ModelName: model, YearRange: years}
				if e.cursor != nil && e.cursor.Done(group.String()) {
					slog.Debug("leaf already persisted, skipping", slog.String("leaf", group.String()))
					continue
				}

				if err := e.harvestLeaf(ctx, group); err != nil {
					return err
				}
				if e.cursor != nil {
					if err := e.cursor.MarkDone(group.String()); err != nil {
						return &PersistError{Err: err}
					}
				}
				if err := e.governor.Leaf(ctx); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// harvestLeaf crawls one filtered listing, truncates to budget, merges
// details, and persists the batch before returning.
func (e *Enumerator) harvestLeaf(ctx context.Context, group *models.GroupKey) error {
	limit := e.sink.Remaining()
	if e.cfg.PerLeafCap > 0 && e.cfg.PerLeafCap < limit {
		limit = e.cfg.PerLeafCap
	}

	var summaries []models.ProductSummary
	err := e.walker.Walk(ctx, e.leafURL(group), group, func(page []models.ProductSummary) bool {
		summaries = append(summaries, page...)
		return len(summaries) < limit
	})
	if err != nil {
		return err
	}
	if len(summaries) > limit {
		summaries = summaries[:limit]
	}

	batch := make([]models.MergedProduct, 0, len(summaries))
	for _, summary := range summaries {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch = append(batch, e.merger.Merge(ctx, summary))
	}

	written, err := e.sink.Append(batch)
	if err != nil {
		return &PersistError{Err: err}
	}
	e.metrics.AddRows(written)
	slog.Info("leaf complete",
		slog.String("leaf", group.String()),
		slog.Int("summaries", len(summaries)),
		slog.Int("written", written),
	)
	return nil
}

// leafURL builds the filtered listing start URL for one leaf.
func (e *Enumerator) leafURL(group *models.GroupKey) string {
	u, err := url.Parse(e.cfg.BaseURL)
	if err != nil {
		return e.cfg.BaseURL
	}
	u.Path = "/en/catalog/search"
	query := url.Values{}
	query.Set("brand", group.BrandCode)
	query.Set("model", group.ModelName)
	query.Set("years", group.YearRange)
	u.RawQuery = query.Encode()
	return u.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
