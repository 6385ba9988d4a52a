package crawler

import (
	"fmt"
	"math"
)

// Config captures every knob that shapes a crawl run.
type Config struct {
	MaxPages      int
	MaxDepth      int
	MaxConcurrent int
	SitemapLimit  int
	LinksPerPage  int
	Coverage      CoverageConfig
	Keywords      KeywordTable
}

// DefaultConfig returns the standard crawl budget.
func DefaultConfig() Config {
	return Config{
		MaxPages:      30,
		MaxDepth:      3,
		MaxConcurrent: 15,
		SitemapLimit:  defaultSitemapLimit,
		LinksPerPage:  defaultLinksLimit,
		Coverage: CoverageConfig{
			MinQualityPages:    15,
			RequiredCategories: []Category{CategoryProduct, CategoryAbout, CategoryPricing},
			RequiredMatches:    2,
		},
		Keywords: DefaultKeywordTable(),
	}
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.MaxPages <= 0 {
		return fmt.Errorf("crawler.max_pages must be > 0")
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("crawler.max_depth must be >= 0")
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("crawler.max_concurrent must be > 0")
	}
	if c.MaxConcurrent > math.MaxInt32 {
		return fmt.Errorf("crawler.max_concurrent is too large")
	}
	if c.SitemapLimit < 0 {
		return fmt.Errorf("crawler.sitemap_limit must be >= 0")
	}
	if c.LinksPerPage <= 0 {
		return fmt.Errorf("crawler.links_per_page must be > 0")
	}
	if c.Coverage.MinQualityPages <= 0 {
		return fmt.Errorf("crawler.min_quality_pages must be > 0")
	}
	for _, category := range c.Coverage.RequiredCategories {
		if !category.Valid() {
			return fmt.Errorf("crawler.required_categories contains unknown category %q", category)
		}
	}
	if c.Coverage.RequiredMatches < 0 || c.Coverage.RequiredMatches > len(c.Coverage.RequiredCategories) {
		return fmt.Errorf("crawler.required_category_matches must be between 0 and %d", len(c.Coverage.RequiredCategories))
	}
	if err := c.Keywords.Normalize().Validate(); err != nil {
		return err
	}
	return nil
}
