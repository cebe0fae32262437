package scraper

import (
	"context"
	"testing"

	"github.com/Quintui/car-details-web-scraper/config"
	"github.com/Quintui/car-details-web-scraper/models"
)

func collectAll(collected *[]models.ProductSummary) visitFunc {
	return func(page []models.ProductSummary) bool {
		*collected = append(*collected, page...)
		return true
	}
}

func TestWalkerFollowsPagination(t *testing.T) {
	h := newHarness(t, nil)
	h.transport.RegisterResponder("GET", testBase+"/en/catalog?category=9",
		htmlResponder(listingPageHTML("/en/catalog?category=9&page=2", listingItem(1, true), listingItem(2, true))))
	h.transport.RegisterResponder("GET", testBase+"/en/catalog?category=9&page=2",
		htmlResponder(listingPageHTML("", listingItem(3, true))))

	var collected []models.ProductSummary
	err := h.scraper.walker.Walk(context.Background(), testBase+"/en/catalog?category=9", nil, collectAll(&collected))
	if err != nil {
		t.Fatalf("walk: %v", err)
	}

	if len(collected) != 3 {
		t.Fatalf("summaries=%d, want 3", len(collected))
	}
	if collected[0].ItemURL != testBase+"/en/product/part-1" {
		t.Fatalf("item url not absolute: %q", collected[0].ItemURL)
	}
	if collected[0].SiteCode != "S-1" {
		t.Fatalf("site code = %q, want S-1", collected[0].SiteCode)
	}
	if collected[0].Price != "10.50" {
		t.Fatalf("price = %q, want 10.50", collected[0].Price)
	}
	if !collected[0].InStockHint {
		t.Fatalf("stock hint should be set from the quantity marker")
	}
}

func TestWalkerEmptyFirstPageDoesNotTerminate(t *testing.T) {
	h := newHarness(t, nil)
	h.transport.RegisterResponder("GET", testBase+"/en/catalog?category=9",
		htmlResponder(listingPageHTML("/en/catalog?category=9&page=2")))
	h.transport.RegisterResponder("GET", testBase+"/en/catalog?category=9&page=2",
		htmlResponder(listingPageHTML("", listingItem(1, true), listingItem(2, true))))

	var collected []models.ProductSummary
	if err := h.scraper.walker.Walk(context.Background(), testBase+"/en/catalog?category=9", nil, collectAll(&collected)); err != nil {
		t.Fatalf("walk: %v", err)
	}
	if len(collected) != 2 {
		t.Fatalf("summaries=%d, want 2 (first empty page must not end the walk)", len(collected))
	}
}

func TestWalkerEmptyLaterPageTerminates(t *testing.T) {
	h := newHarness(t, nil)
	h.transport.RegisterResponder("GET", testBase+"/en/catalog?category=9",
		htmlResponder(listingPageHTML("/en/catalog?category=9&page=2", listingItem(1, true))))
	h.transport.RegisterResponder("GET", testBase+"/en/catalog?category=9&page=2",
		htmlResponder(listingPageHTML("/en/catalog?category=9&page=3")))
	h.transport.RegisterResponder("GET", testBase+"/en/catalog?category=9&page=3",
		htmlResponder(listingPageHTML("", listingItem(2, true))))

	var collected []models.ProductSummary
	if err := h.scraper.walker.Walk(context.Background(), testBase+"/en/catalog?category=9", nil, collectAll(&collected)); err != nil {
		t.Fatalf("walk: %v", err)
	}

	if len(collected) != 1 {
		t.Fatalf("summaries=%d, want 1", len(collected))
	}
	info := h.transport.GetCallCountInfo()
	if info["GET "+testBase+"/en/catalog?category=9&page=3"] != 0 {
		t.Fatalf("page 3 should never be fetched after an empty page 2")
	}
}

func TestWalkerCycleGuard(t *testing.T) {
	h := newHarness(t, nil)
	page1 := testBase + "/en/catalog?category=9"
	page2 := testBase + "/en/catalog?category=9&page=2"
	h.transport.RegisterResponder("GET", page1,
		htmlResponder(listingPageHTML("/en/catalog?category=9&page=2", listingItem(1, true))))
	h.transport.RegisterResponder("GET", page2,
		htmlResponder(listingPageHTML("/en/catalog?category=9", listingItem(2, true))))

	var collected []models.ProductSummary
	if err := h.scraper.walker.Walk(context.Background(), page1, nil, collectAll(&collected)); err != nil {
		t.Fatalf("walk: %v", err)
	}

	if len(collected) != 2 {
		t.Fatalf("summaries=%d, want 2 (walker must stop after page 2)", len(collected))
	}
	info := h.transport.GetCallCountInfo()
	if got := info["GET "+page1]; got != 1 {
		t.Fatalf("page 1 fetched %d times, want 1", got)
	}
}

func TestWalkerPageCeiling(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.MaxPages = 1
	})
	h.transport.RegisterResponder("GET", testBase+"/en/catalog?category=9",
		htmlResponder(listingPageHTML("/en/catalog?category=9&page=2", listingItem(1, true))))

	var collected []models.ProductSummary
	if err := h.scraper.walker.Walk(context.Background(), testBase+"/en/catalog?category=9", nil, collectAll(&collected)); err != nil {
		t.Fatalf("walk: %v", err)
	}
	if len(collected) != 1 {
		t.Fatalf("summaries=%d, want 1", len(collected))
	}
	if h.transport.GetTotalCallCount() != 1 {
		t.Fatalf("calls=%d, want 1 (ceiling of one page)", h.transport.GetTotalCallCount())
	}
}

func TestWalkerForwardsFilterParams(t *testing.T) {
	h := newHarness(t, nil)
	h.transport.RegisterResponder("GET", testBase+"/en/catalog?category=1248",
		htmlResponder(listingPageHTML("/en/catalog?page=2", listingItem(1, true))))
	// The next link dropped the category filter; the walker must restore it.
	h.transport.RegisterResponder("GET", testBase+"/en/catalog?category=1248&page=2",
		htmlResponder(listingPageHTML("", listingItem(2, true))))

	var collected []models.ProductSummary
	if err := h.scraper.walker.Walk(context.Background(), testBase+"/en/catalog?category=1248", nil, collectAll(&collected)); err != nil {
		t.Fatalf("walk: %v", err)
	}
	if len(collected) != 2 {
		t.Fatalf("summaries=%d, want 2 (filter param was not forwarded)", len(collected))
	}
}

func TestWalkerStopsWhenVisitDeclines(t *testing.T) {
	h := newHarness(t, nil)
	page2 := testBase + "/en/catalog?category=9&page=2"
	h.transport.RegisterResponder("GET", testBase+"/en/catalog?category=9",
		htmlResponder(listingPageHTML("/en/catalog?category=9&page=2", listingItem(1, true))))
	h.transport.RegisterResponder("GET", page2,
		htmlResponder(listingPageHTML("", listingItem(2, true))))

	err := h.scraper.walker.Walk(context.Background(), testBase+"/en/catalog?category=9", nil,
		func(page []models.ProductSummary) bool { return false })
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	info := h.transport.GetCallCountInfo()
	if info["GET "+page2] != 0 {
		t.Fatalf("page 2 should not be fetched once the visitor declines")
	}
}

func TestWalkerFetchFailureEndsWalkWithExtractedPages(t *testing.T) {
	h := newHarness(t, nil)
	h.transport.RegisterResponder("GET", testBase+"/en/catalog?category=9",
		htmlResponder(listingPageHTML("/en/catalog?category=9&page=2", listingItem(1, true))))
	h.transport.RegisterResponder("GET", testBase+"/en/catalog?category=9&page=2",
		httpmockConnFailure())

	var collected []models.ProductSummary
	if err := h.scraper.walker.Walk(context.Background(), testBase+"/en/catalog?category=9", nil, collectAll(&collected)); err != nil {
		t.Fatalf("walk should absorb the fetch failure, got %v", err)
	}
	if len(collected) != 1 {
		t.Fatalf("summaries=%d, want 1", len(collected))
	}
}

func TestWalkerGroupKeyStampedOnSummaries(t *testing.T) {
	h := newHarness(t, nil)
	h.transport.RegisterResponder("GET", testBase+"/en/catalog?category=9",
		htmlResponder(listingPageHTML("", listingItem(1, true))))

	group := &models.GroupKey{BrandCode: "bmw", ModelName: "M3", YearRange: "2005-2010"}
	var collected []models.ProductSummary
	if err := h.scraper.walker.Walk(context.Background(), testBase+"/en/catalog?category=9", group, collectAll(&collected)); err != nil {
		t.Fatalf("walk: %v", err)
	}
	if len(collected) != 1 || collected[0].Group == nil || collected[0].Group.BrandCode != "bmw" {
		t.Fatalf("group key missing on summary: %+v", collected)
	}
}
