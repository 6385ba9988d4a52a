package crawler

// CoverageConfig sets the thresholds for early termination.
type CoverageConfig struct {
	MinQualityPages    int        `mapstructure:"min_quality_pages"`
	RequiredCategories []Category `mapstructure:"required_categories"`
	RequiredMatches    int        `mapstructure:"required_category_matches"`
}

// CoverageEvaluator decides whether a crawl has seen enough.
type CoverageEvaluator struct {
	minPages int
	required map[Category]struct{}
	matches  int
}

// NewCoverageEvaluator builds an evaluator from cfg.
func NewCoverageEvaluator(cfg CoverageConfig) *CoverageEvaluator {
	required := make(map[Category]struct{}, len(cfg.RequiredCategories))
	for _, c := range cfg.RequiredCategories {
		required[c] = struct{}{}
	}
	return &CoverageEvaluator{
		minPages: cfg.MinQualityPages,
		required: required,
		matches:  cfg.RequiredMatches,
	}
}

// IsSufficient reports whether pages satisfy both the page-count and the
// category thresholds. It depends only on its input.
func (e *CoverageEvaluator) IsSufficient(pages []PageRecord) bool {
	if len(pages) < e.minPages {
		return false
	}
	hits := make(map[Category]struct{}, len(e.required))
	for _, page := range pages {
		if _, ok := e.required[page.Category]; ok {
			hits[page.Category] = struct{}{}
		}
	}
	return len(hits) >= e.matches
}
