// Package parser normalizes extracted fields and projects merged records into
// the fixed import schema.
package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/Quintui/car-details-web-scraper/models"
)

const (
	// PlaceholderImageFile is the site's stand-in thumbnail; it must never
	// appear next to real product images.
	PlaceholderImageFile = "no-image.jpg"

	// PlaceholderImageURL is substituted when an item has no usable images.
	PlaceholderImageURL = "https://www.example-parts.test/images/no-image.jpg"

	categorySeparator = " > "
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	siteCodeRe   = regexp.MustCompile(`(?i)(?:part\s+code|code)\s*:\s*([A-Za-z0-9][A-Za-z0-9._/-]*)`)
	trailingIDRe = regexp.MustCompile(`(\d+)/?$`)
	priceRe      = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
)

// CollapseWhitespace folds runs of whitespace into single spaces and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// ExtractSiteCode pulls the vendor part code out of its localized label text,
// e.g. "Part code: ABC-123". Returns "" when the label does not match.
func ExtractSiteCode(label string) string {
	match := siteCodeRe.FindStringSubmatch(label)
	if match == nil {
		return ""
	}
	return match[1]
}

// NormalizePrice extracts a decimal amount from raw price text or a numeric
// attribute value. Decimal commas become dots. Returns "" when no number is
// present.
func NormalizePrice(raw string) string {
	match := priceRe.FindString(strings.TrimSpace(raw))
	if match == "" {
		return ""
	}
	normalized := strings.ReplaceAll(match, ",", ".")
	if _, err := strconv.ParseFloat(normalized, 64); err != nil {
		return ""
	}
	return normalized
}

// ItemKey derives the canonical merge identity for a summary: the numeric id
// in the item URL's trailing path segment when present, otherwise the display
// name with whitespace collapsed to dashes.
func ItemKey(s *models.ProductSummary) string {
	if key := keyFromURL(s.ItemURL); key != "" {
		return key
	}
	name := CollapseWhitespace(s.DisplayName)
	if name == "" {
		return ""
	}
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}

func keyFromURL(itemURL string) string {
	if itemURL == "" {
		return ""
	}
	parsed, err := url.Parse(itemURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	last := segments[len(segments)-1]
	match := trailingIDRe.FindStringSubmatch(last)
	if match == nil {
		return ""
	}
	return match[1]
}

// CategoryPath joins brand display name, model, and year range, skipping
// empty segments.
func CategoryPath(group *models.GroupKey) string {
	if group == nil {
		return ""
	}
	segments := make([]string, 0, 3)
	for _, s := range []string{models.BrandDisplayName(group.BrandCode), group.ModelName, group.YearRange} {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			segments = append(segments, trimmed)
		}
	}
	return strings.Join(segments, categorySeparator)
}

// Description synthesizes the import description from the two part codes.
func Description(manufacturerCode, siteCode string) string {
	return fmt.Sprintf("Manufacturer Code: %s\nSite Code: %s", orNA(manufacturerCode), orNA(siteCode))
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

// NormalizeImages deduplicates absolute image URLs preserving order, drops
// placeholder thumbnails, and substitutes the placeholder URL only when
// nothing real remains.
func NormalizeImages(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || strings.Contains(u, PlaceholderImageFile) {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	if len(out) == 0 {
		return []string{PlaceholderImageURL}
	}
	return out
}

// ValidateMerged ensures the record carries enough identity to emit.
func ValidateMerged(m *models.MergedProduct) error {
	if m == nil {
		return fmt.Errorf("record is nil")
	}
	if ItemKey(&m.ProductSummary) == "" {
		return fmt.Errorf("record has neither a display name nor an item url")
	}
	return nil
}

// BuildRow projects a merged record onto the fixed import schema, one entry
// per column of models.CatalogColumns.
func BuildRow(m *models.MergedProduct) []string {
	inStock := "0"
	if m.InStock() {
		inStock = "1"
	}
	return []string{
		"",       // ID
		"simple", // Type
		m.SiteCode,
		CollapseWhitespace(m.DisplayName),
		"1",       // Published
		"0",       // Is featured?
		"visible", // Visibility in catalog
		"",        // Short description
		Description(m.ManufacturerCode, m.SiteCode),
		"", // Date sale price starts
		"", // Date sale price ends
		"taxable", // Tax status
		"",        // Tax class
		inStock,   // In stock?
		"",        // Stock
		"",        // Low stock amount
		"0",       // Backorders allowed?
		"0",       // Sold individually?
		"",        // Weight (kg)
		"",        // Length (cm)
		"",        // Width (cm)
		"",        // Height (cm)
		"1",       // Allow customer reviews?
		"",        // Purchase note
		"",      // Sale price
		m.Price, // Regular price
		CategoryPath(m.Group),
		"", // Tags
		"", // Shipping class
		strings.Join(NormalizeImages(m.ImageURLs), ", "),
		"",  // Download limit
		"",  // Download expiry days
		"",  // Parent
		"",  // Grouped products
		"",  // Upsells
		"",  // Cross-sells
		"",  // External URL
		"",  // Button text
		"0", // Position
	}
}
