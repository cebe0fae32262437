package scraper

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Quintui/car-details-web-scraper/models"
	"github.com/Quintui/car-details-web-scraper/parser"
)

// Selectors for the source site's listing and detail markup.
const (
	selListingItem  = "div.catalog-list div.product-card"
	selItemTitle    = "a.product-card__title"
	selItemCode     = "div.product-card__code"
	selItemPrice    = "span.product-card__price"
	selItemImage    = "img.product-card__image"
	selItemStock    = "span.product-card__stock"
	selNextPage     = "ul.pagination li.next a"
	selDetailCode   = ".product-info__manufacturer-code"
	selDetailStock  = ".product-info__availability"
	selDetailImages = "div.product-gallery img"
)

// listingPage is one fetched listing page reduced to its extractable parts.
type listingPage struct {
	summaries []models.ProductSummary
	nextURL   string
}

// extractListing turns a listing document into an ordered sequence of partial
// summaries plus the raw next-page locator, if any.
func extractListing(doc *goquery.Document, pageURL *url.URL, group *models.GroupKey) listingPage {
	var page listingPage

	doc.Find(selListingItem).Each(func(_ int, item *goquery.Selection) {
		summary := models.ProductSummary{
			DisplayName: parser.CollapseWhitespace(item.Find(selItemTitle).Text()),
			SiteCode:    parser.ExtractSiteCode(item.Find(selItemCode).Text()),
			Group:       group,
		}

		if href, ok := item.Find(selItemTitle).Attr("href"); ok {
			summary.ItemURL = absoluteURL(pageURL, href)
		}

		priceNode := item.Find(selItemPrice)
		if raw, ok := priceNode.Attr("data-price"); ok {
			summary.Price = parser.NormalizePrice(raw)
		} else {
			summary.Price = parser.NormalizePrice(priceNode.Text())
		}

		if img := imageURL(pageURL, item.Find(selItemImage).First()); img != "" {
			summary.PreviewImageURLs = []string{img}
		}

		// A numeric available-quantity marker is the listing's stock signal.
		if qty, ok := item.Find(selItemStock).Attr("data-qty"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(qty)); err == nil && n > 0 {
				summary.InStockHint = true
			}
		}

		if summary.DisplayName == "" && summary.ItemURL == "" {
			return
		}
		page.summaries = append(page.summaries, summary)
	})

	if href, ok := doc.Find(selNextPage).First().Attr("href"); ok {
		page.nextURL = strings.TrimSpace(href)
	}
	return page
}

// extractDetail mines an item document for the fields the listing lacks.
func extractDetail(doc *goquery.Document, pageURL *url.URL) models.ProductDetail {
	detail := models.ProductDetail{
		ManufacturerCode: parser.ExtractSiteCode(doc.Find(selDetailCode).Text()),
	}
	if detail.ManufacturerCode == "" {
		detail.ManufacturerCode = parser.CollapseWhitespace(doc.Find(selDetailCode).Text())
	}

	if avail, ok := doc.Find(selDetailStock).Attr("data-available"); ok {
		inStock := strings.TrimSpace(avail) == "1"
		detail.InStock = &inStock
	}

	doc.Find(selDetailImages).Each(func(_ int, img *goquery.Selection) {
		if u := imageURL(pageURL, img); u != "" {
			detail.ImageURLs = append(detail.ImageURLs, u)
		}
	})
	return detail
}

// imageURL resolves an image node's address from either its src or the
// data-path + data-filename pair used by the site's lazy loader.
func imageURL(base *url.URL, img *goquery.Selection) string {
	if img == nil || img.Length() == 0 {
		return ""
	}
	if src, ok := img.Attr("src"); ok && strings.TrimSpace(src) != "" {
		return absoluteURL(base, src)
	}
	path, okPath := img.Attr("data-path")
	name, okName := img.Attr("data-filename")
	if okPath && okName {
		joined := strings.TrimSuffix(path, "/") + "/" + strings.TrimPrefix(name, "/")
		return absoluteURL(base, joined)
	}
	return ""
}

// absoluteURL resolves href against the page it appeared on.
func absoluteURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
