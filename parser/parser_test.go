package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Quintui/car-details-web-scraper/models"
)

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "Brake Pad Set", CollapseWhitespace("  Brake \t Pad\n  Set  "))
	assert.Equal(t, "", CollapseWhitespace(" \n\t "))
}

func TestExtractSiteCode(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  string
	}{
		{name: "plain label", label: "Part code: ABC-123", want: "ABC-123"},
		{name: "case insensitive", label: "PART CODE: xy.99/1", want: "xy.99/1"},
		{name: "short label", label: "Code: 554411", want: "554411"},
		{name: "no label", label: "In stock now", want: ""},
		{name: "empty", label: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractSiteCode(tt.label))
		})
	}
}

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain", raw: "12.50", want: "12.50"},
		{name: "currency suffix", raw: "12,50 EUR", want: "12.50"},
		{name: "attribute value", raw: "89", want: "89"},
		{name: "garbage", raw: "call us", want: ""},
		{name: "empty", raw: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePrice(tt.raw))
		})
	}
}

func TestItemKeyPrefersURLID(t *testing.T) {
	summary := &models.ProductSummary{
		DisplayName: "Front Brake Disc",
		ItemURL:     "https://example.test/en/product/front-brake-disc-48151",
	}
	assert.Equal(t, "48151", ItemKey(summary))
}

func TestItemKeyFallsBackToName(t *testing.T) {
	tests := []struct {
		name    string
		summary models.ProductSummary
		want    string
	}{
		{
			name:    "no url",
			summary: models.ProductSummary{DisplayName: "Front  Brake\tDisc"},
			want:    "front-brake-disc",
		},
		{
			name: "url without numeric tail",
			summary: models.ProductSummary{
				DisplayName: "Oil Filter",
				ItemURL:     "https://example.test/en/product/oil-filter",
			},
			want: "oil-filter",
		},
		{
			name:    "nothing",
			summary: models.ProductSummary{},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ItemKey(&tt.summary))
		})
	}
}

func TestCategoryPath(t *testing.T) {
	group := &models.GroupKey{BrandCode: "bmw", ModelName: "3 Series", YearRange: "2010-2015"}
	assert.Equal(t, "BMW > 3 Series > 2010-2015", CategoryPath(group))
}

func TestCategoryPathSkipsEmptySegments(t *testing.T) {
	group := &models.GroupKey{BrandCode: "bmw", ModelName: "", YearRange: "2010-2015"}
	assert.Equal(t, "BMW > 2010-2015", CategoryPath(group))
	assert.Equal(t, "", CategoryPath(nil))
}

func TestCategoryPathUnknownBrand(t *testing.T) {
	group := &models.GroupKey{BrandCode: "zaz", ModelName: "968M", YearRange: ""}
	assert.Equal(t, "zaz > 968M", CategoryPath(group))
}

func TestDescription(t *testing.T) {
	assert.Equal(t, "Manufacturer Code: OEM-1\nSite Code: S-2", Description("OEM-1", "S-2"))
	assert.Equal(t, "Manufacturer Code: N/A\nSite Code: N/A", Description("", "  "))
}

func TestNormalizeImages(t *testing.T) {
	t.Run("dedup preserves order", func(t *testing.T) {
		got := NormalizeImages([]string{
			"https://example.test/img/a.jpg",
			"https://example.test/img/b.jpg",
			"https://example.test/img/a.jpg",
		})
		assert.Equal(t, []string{
			"https://example.test/img/a.jpg",
			"https://example.test/img/b.jpg",
		}, got)
	})

	t.Run("placeholder dropped when real images exist", func(t *testing.T) {
		got := NormalizeImages([]string{
			"https://example.test/images/no-image.jpg",
			"https://example.test/img/a.jpg",
		})
		assert.Equal(t, []string{"https://example.test/img/a.jpg"}, got)
	})

	t.Run("placeholder synthesized when empty", func(t *testing.T) {
		assert.Equal(t, []string{PlaceholderImageURL}, NormalizeImages(nil))
		assert.Equal(t, []string{PlaceholderImageURL}, NormalizeImages([]string{"", "  "}))
	})
}

func TestValidateMerged(t *testing.T) {
	valid := &models.MergedProduct{
		ProductSummary: models.ProductSummary{DisplayName: "Oil Filter"},
	}
	assert.NoError(t, ValidateMerged(valid))
	assert.Error(t, ValidateMerged(&models.MergedProduct{}))
	assert.Error(t, ValidateMerged(nil))
}

func TestBuildRowShape(t *testing.T) {
	inStock := true
	record := &models.MergedProduct{
		ProductSummary: models.ProductSummary{
			DisplayName: "Front   Brake Disc",
			SiteCode:    "S-77",
			Price:       "45.90",
			ItemURL:     "https://example.test/en/product/front-brake-disc-48151",
			InStockHint: false,
			Group:       &models.GroupKey{BrandCode: "bmw", ModelName: "3 Series", YearRange: "2010-2015"},
		},
		ManufacturerCode:     "34116792217",
		AuthoritativeInStock: &inStock,
		ImageURLs:            []string{"https://example.test/img/a.jpg"},
	}

	row := BuildRow(record)
	assert.Len(t, row, len(models.CatalogColumns))
	assert.Equal(t, "simple", row[1])
	assert.Equal(t, "S-77", row[2])
	assert.Equal(t, "Front Brake Disc", row[3])
	assert.Equal(t, "1", row[4])
	assert.Equal(t, "Manufacturer Code: 34116792217\nSite Code: S-77", row[8])
	assert.Equal(t, "taxable", row[11])
	assert.Equal(t, "1", row[13])
	assert.Equal(t, "45.90", row[25])
	assert.Equal(t, "BMW > 3 Series > 2010-2015", row[26])
	assert.Equal(t, "https://example.test/img/a.jpg", row[29])
	assert.Equal(t, "0", row[38])
}

func TestBuildRowNullDetail(t *testing.T) {
	record := &models.MergedProduct{
		ProductSummary: models.ProductSummary{
			DisplayName: "Rear Shock",
			InStockHint: true,
		},
	}

	row := BuildRow(record)
	assert.Equal(t, "Manufacturer Code: N/A\nSite Code: N/A", row[8])
	assert.Equal(t, "1", row[13], "listing hint decides stock when detail was not fetched")
	assert.Equal(t, PlaceholderImageURL, row[29])
}
