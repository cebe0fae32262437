package models

// CatalogColumns is the fixed import-schema header. Order is part of the wire
// contract and must not change.
var CatalogColumns = []string{
	"ID",
	"Type",
	"SKU",
	"Name",
	"Published",
	"Is featured?",
	"Visibility in catalog",
	"Short description",
	"Description",
	"Date sale price starts",
	"Date sale price ends",
	"Tax status",
	"Tax class",
	"In stock?",
	"Stock",
	"Low stock amount",
	"Backorders allowed?",
	"Sold individually?",
	"Weight (kg)",
	"Length (cm)",
	"Width (cm)",
	"Height (cm)",
	"Allow customer reviews?",
	"Purchase note",
	"Sale price",
	"Regular price",
	"Categories",
	"Tags",
	"Shipping class",
	"Images",
	"Download limit",
	"Download expiry days",
	"Parent",
	"Grouped products",
	"Upsells",
	"Cross-sells",
	"External URL",
	"Button text",
	"Position",
}

// BrandNames maps vehicle brand codes from the source site's filter values to
// display names used in the Categories column. Codes missing from this table
// fall back to the raw code.
var BrandNames = map[string]string{
	"alfa-romeo": "Alfa Romeo",
	"audi":       "Audi",
	"bmw":        "BMW",
	"chevrolet":  "Chevrolet",
	"citroen":    "Citroen",
	"dacia":      "Dacia",
	"fiat":       "Fiat",
	"ford":       "Ford",
	"honda":      "Honda",
	"hyundai":    "Hyundai",
	"kia":        "Kia",
	"land-rover": "Land Rover",
	"lexus":      "Lexus",
	"mazda":      "Mazda",
	"mb":         "Mercedes-Benz",
	"mini":       "Mini",
	"mitsubishi": "Mitsubishi",
	"nissan":     "Nissan",
	"opel":       "Opel",
	"peugeot":    "Peugeot",
	"renault":    "Renault",
	"seat":       "Seat",
	"skoda":      "Skoda",
	"subaru":     "Subaru",
	"suzuki":     "Suzuki",
	"toyota":     "Toyota",
	"vw":         "Volkswagen",
	"volvo":      "Volvo",
}

// BrandDisplayName resolves a brand code to its display name.
func BrandDisplayName(code string) string {
	if name, ok := BrandNames[code]; ok {
		return name
	}
	return code
}
