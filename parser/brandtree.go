package parser

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/Quintui/car-details-web-scraper/models"
)

// The vehicle tree ships inside an inline script as a plain object literal.
// Extraction brackets the literal with a balanced-brace scan starting at the
// assignment marker and decodes it as JSON; no script is ever executed.
var brandTreeMarkerRe = regexp.MustCompile(`(?:var|let|const)\s+vehicleTree\s*=`)

// ParseBrandTree extracts the brand -> model -> year-ranges mapping embedded
// in the catalog page body.
func ParseBrandTree(body []byte) (models.BrandModelTree, error) {
	loc := brandTreeMarkerRe.FindIndex(body)
	if loc == nil {
		return nil, fmt.Errorf("vehicle tree marker not found")
	}

	literal, err := balancedObject(body[loc[1]:])
	if err != nil {
		return nil, fmt.Errorf("bracket vehicle tree literal: %w", err)
	}

	var tree models.BrandModelTree
	if err := json.Unmarshal(literal, &tree); err != nil {
		return nil, fmt.Errorf("decode vehicle tree: %w", err)
	}
	if len(tree) == 0 {
		return nil, fmt.Errorf("vehicle tree is empty")
	}
	return tree, nil
}

// balancedObject returns the first {...} object in data, honoring string
// literals so braces inside quoted values do not unbalance the scan.
func balancedObject(data []byte) ([]byte, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, b := range data {
		if start >= 0 && inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}
		switch b {
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start < 0 {
				return nil, fmt.Errorf("unexpected closing brace")
			}
			depth--
			if depth == 0 {
				return data[start : i+1], nil
			}
		case '"':
			if start >= 0 {
				inString = true
			}
		case ';':
			if start < 0 {
				return nil, fmt.Errorf("no object literal before statement end")
			}
		}
	}
	return nil, fmt.Errorf("unterminated object literal")
}
