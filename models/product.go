// Package models defines data structures for the catalog harvester.
package models

import "time"

// GroupKey identifies one (brand, model, year-range) leaf of the vehicle tree.
type GroupKey struct {
	BrandCode string `json:"brand_code"`
	ModelName string `json:"model_name"`
	YearRange string `json:"year_range"`
}

// String renders the key in its cursor/log form.
func (g GroupKey) String() string {
	return g.BrandCode + "|" + g.ModelName + "|" + g.YearRange
}

// ProductSummary is the cheap per-item record extracted from a listing page.
// Optional fields are empty strings when the listing did not carry them.
type ProductSummary struct {
	DisplayName      string    `json:"display_name"`
	SiteCode         string    `json:"site_code"`
	Price            string    `json:"price"`
	ItemURL          string    `json:"item_url"`
	PreviewImageURLs []string  `json:"preview_image_urls,omitempty"`
	InStockHint      bool      `json:"in_stock_hint"`
	Group            *GroupKey `json:"group,omitempty"`
}

// ProductDetail carries the enrichment fields only the item page has.
type ProductDetail struct {
	ManufacturerCode string   `json:"manufacturer_code"`
	InStock          *bool    `json:"in_stock,omitempty"`
	ImageURLs        []string `json:"image_urls,omitempty"`
}

// MergedProduct is the union of a summary and its (possibly absent) detail.
// A summary whose detail fetch failed still becomes a MergedProduct with the
// detail fields zeroed.
type MergedProduct struct {
	ProductSummary

	ManufacturerCode     string   `json:"manufacturer_code"`
	AuthoritativeInStock *bool    `json:"authoritative_in_stock,omitempty"`
	ImageURLs            []string `json:"image_urls,omitempty"`
	DetailFetched        bool     `json:"detail_fetched"`

	ScrapedAt time.Time `json:"scraped_at"`
}

// InStock resolves the authoritative stock flag when the detail page supplied
// one, falling back to the listing hint.
func (m *MergedProduct) InStock() bool {
	if m.AuthoritativeInStock != nil {
		return *m.AuthoritativeInStock
	}
	return m.InStockHint
}

// BrandModelTree maps brand code -> model name -> year ranges. It is fetched
// once at process start and never mutated afterwards.
type BrandModelTree map[string]map[string][]string

// RunReport holds the overall result of one harvest run.
type RunReport struct {
	StartTime    time.Time
	EndTime      time.Time
	PageCount    int
	ItemCount    int
	RowsWritten  int
	RetryCount   int
	ErrorCount   int
	ErrorsByType map[string]int
	SkippedItems int
}
