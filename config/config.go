// Package config holds runtime configuration for the harvester.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
)

// Run modes.
const (
	ModeCatalog = "catalog"
	ModeGrouped = "grouped"
)

// Config holds harvester configuration. Zero caps mean "unbounded".
type Config struct {
	BaseURL      string
	CategoryIDs  []string
	BrandTreeURL string
	Mode         string

	MaxPages     int
	GlobalBudget int
	PerLeafCap   int

	ListingDelay time.Duration
	DetailDelay  time.Duration
	LeafDelay    time.Duration

	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration

	// FetchDetails disables the per-item detail fetch entirely when false;
	// DetailStock controls whether the detail page's stock flag overrides
	// the listing hint.
	FetchDetails bool
	DetailStock  bool

	OutputFile   string
	OutputFormat string // csv, json, or dual
	Resume       bool

	UserAgent   string
	MetricsAddr string
	Verbose     bool
}

// DefaultConfig returns conservative defaults for the target site.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "https://www.example-parts.test",
		CategoryIDs:     []string{"1248"},
		BrandTreeURL:    "https://www.example-parts.test/en/catalog",
		Mode:            ModeCatalog,
		MaxPages:        50,
		GlobalBudget:    0,
		PerLeafCap:      0,
		ListingDelay:    500 * time.Millisecond,
		DetailDelay:     300 * time.Millisecond,
		LeafDelay:       time.Second,
		Timeout:         15 * time.Second,
		MaxRetries:      2,
		RetryBackoff:    500 * time.Millisecond,
		RetryBackoffMax: 5 * time.Second,
		FetchDetails:    true,
		DetailStock:     true,
		OutputFile:      "output/catalog.csv",
		OutputFormat:    "csv",
		Resume:          false,
		UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		MetricsAddr:     "",
		Verbose:         false,
	}
}

// LoadDotenv reads a .env file into the process environment when present.
// A missing file is not an error.
func LoadDotenv() {
	_ = godotenv.Load()
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	parsed, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}
	if c.Mode != ModeCatalog && c.Mode != ModeGrouped {
		return fmt.Errorf("mode must be %s or %s", ModeCatalog, ModeGrouped)
	}
	if c.Mode == ModeCatalog && len(c.CategoryIDs) == 0 {
		return fmt.Errorf("catalog mode requires at least one category id")
	}
	if c.Mode == ModeGrouped && c.BrandTreeURL == "" {
		return fmt.Errorf("grouped mode requires a brand tree URL")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.GlobalBudget < 0 {
		return fmt.Errorf("global budget cannot be negative")
	}
	if c.PerLeafCap < 0 {
		return fmt.Errorf("per-leaf cap cannot be negative")
	}
	if c.ListingDelay < 0 || c.DetailDelay < 0 || c.LeafDelay < 0 {
		return fmt.Errorf("delays cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.DetailStock && !c.FetchDetails {
		return fmt.Errorf("detail stock requires detail fetching")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	return nil
}
