package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/Quintui/car-details-web-scraper/config"
	"github.com/Quintui/car-details-web-scraper/models"
	"github.com/Quintui/car-details-web-scraper/pipeline"
)

const testBase = "http://example.test"

// harness bundles the collaborators most scraper tests need.
type harness struct {
	cfg       *config.Config
	scraper   *Scraper
	transport *httpmock.MockTransport
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.BaseURL = testBase
	cfg.BrandTreeURL = testBase + "/en/catalog"
	cfg.ListingDelay = 0
	cfg.DetailDelay = 0
	cfg.LeafDelay = 0
	cfg.MaxRetries = 0
	if mutate != nil {
		mutate(cfg)
	}

	s, err := NewScraper(cfg)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}

	transport := httpmock.NewMockTransport()
	s.Fetcher().WithTransport(transport)

	return &harness{cfg: cfg, scraper: s, transport: transport}
}

func httpmockConnFailure() httpmock.Responder {
	return httpmock.NewErrorResponder(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")})
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html; charset=utf-8")
	return httpmock.ResponderFromResponse(resp)
}

func listingItem(id int, withLink bool) string {
	link := ""
	if withLink {
		link = fmt.Sprintf(` href="/en/product/part-%d"`, id)
	}
	return fmt.Sprintf(`
		<div class="product-card">
			<a class="product-card__title"%s>Part %d</a>
			<div class="product-card__code">Part code: S-%d</div>
			<span class="product-card__price" data-price="10.50">10,50 EUR</span>
			<img class="product-card__image" src="/img/part-%d-thumb.jpg">
			<span class="product-card__stock" data-qty="2">In stock</span>
		</div>`, link, id, id, id)
}

func listingPageHTML(nextHref string, items ...string) string {
	next := ""
	if nextHref != "" {
		next = fmt.Sprintf(`<ul class="pagination"><li class="next"><a href="%s">Next</a></li></ul>`, nextHref)
	}
	body := ""
	for _, item := range items {
		body += item
	}
	return fmt.Sprintf(`<html><body><div class="catalog-list">%s</div>%s</body></html>`, body, next)
}

const detailPageHTML = `<html><body>
	<div class="product-info">
		<span class="product-info__manufacturer-code">Code: OEM-900</span>
		<div class="product-info__availability" data-available="1">In stock</div>
	</div>
	<div class="product-gallery">
		<img src="/img/full-1.jpg">
		<img data-path="/img/gallery" data-filename="full-2.jpg">
		<img src="/img/full-1.jpg">
		<img src="/images/no-image.jpg">
	</div>
</body></html>`

// collectingWriter records batches in memory.
type collectingWriter struct {
	mu      sync.Mutex
	batches int
	records []*models.MergedProduct
}

func (w *collectingWriter) Write(records []*models.MergedProduct) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.batches++
	w.records = append(w.records, records...)
	return nil
}

func (w *collectingWriter) Close() error    { return nil }
func (w *collectingWriter) Validate() error { return nil }

func newTestSink(t *testing.T, budget int) (*pipeline.Sink, *collectingWriter) {
	t.Helper()
	writer := &collectingWriter{}
	sink, err := pipeline.NewSink(writer, budget)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	return sink, writer
}

func TestFetchBrandTree(t *testing.T) {
	h := newHarness(t, nil)
	h.transport.RegisterResponder("GET", testBase+"/en/catalog", htmlResponder(
		`<html><script>var vehicleTree = {"bmw": {"M3": ["2005-2010"]}};</script></html>`,
	))

	tree, err := h.scraper.FetchBrandTree(context.Background())
	if err != nil {
		t.Fatalf("fetch brand tree: %v", err)
	}
	if len(tree) != 1 || len(tree["bmw"]["M3"]) != 1 {
		t.Fatalf("unexpected tree: %v", tree)
	}
}

func TestFetchBrandTreeFetchFailureIsFatal(t *testing.T) {
	h := newHarness(t, nil)
	h.transport.RegisterResponder("GET", testBase+"/en/catalog",
		httpmock.NewStringResponder(http.StatusInternalServerError, ""))

	_, err := h.scraper.FetchBrandTree(context.Background())
	var configErr *ConfigError
	if !errors.As(err, &configErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestFetchBrandTreeParseFailureIsFatal(t *testing.T) {
	h := newHarness(t, nil)
	h.transport.RegisterResponder("GET", testBase+"/en/catalog",
		htmlResponder(`<html><body>nothing embedded</body></html>`))

	_, err := h.scraper.FetchBrandTree(context.Background())
	var configErr *ConfigError
	if !errors.As(err, &configErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestRunCatalogKeepsItemsWithoutDetailURL(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Mode = config.ModeCatalog
		cfg.CategoryIDs = []string{"1248"}
	})

	h.transport.RegisterResponder("GET", testBase+"/en/catalog?category=1248",
		htmlResponder(listingPageHTML("", listingItem(1, true), listingItem(2, false))))
	h.transport.RegisterResponder("GET", testBase+"/en/product/part-1",
		htmlResponder(detailPageHTML))

	sink, writer := newTestSink(t, 0)
	report, err := h.scraper.Run(context.Background(), sink, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(writer.records) != 2 {
		t.Fatalf("records=%d, want 2", len(writer.records))
	}
	if writer.records[0].ManufacturerCode != "OEM-900" {
		t.Fatalf("first record manufacturer code = %q, want OEM-900", writer.records[0].ManufacturerCode)
	}
	if writer.records[1].ManufacturerCode != "" || writer.records[1].DetailFetched {
		t.Fatalf("second record should have no detail fields: %+v", writer.records[1])
	}
	if report.RowsWritten != 2 {
		t.Fatalf("rows written = %d, want 2", report.RowsWritten)
	}
}

func TestRunCatalogIsOneBatch(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Mode = config.ModeCatalog
		cfg.CategoryIDs = []string{"1", "2"}
		cfg.FetchDetails = false
		cfg.DetailStock = false
	})

	h.transport.RegisterResponder("GET", testBase+"/en/catalog?category=1",
		htmlResponder(listingPageHTML("", listingItem(1, true))))
	h.transport.RegisterResponder("GET", testBase+"/en/catalog?category=2",
		htmlResponder(listingPageHTML("", listingItem(2, true))))

	sink, writer := newTestSink(t, 0)
	if _, err := h.scraper.Run(context.Background(), sink, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if writer.batches != 1 {
		t.Fatalf("batches=%d, want 1 (catalog mode persists a single batch)", writer.batches)
	}
	if len(writer.records) != 2 {
		t.Fatalf("records=%d, want 2", len(writer.records))
	}
}
