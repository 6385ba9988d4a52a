package crawler

import (
	"fmt"
	"strings"
)

// CategoryRule maps a category to the substrings that select it.
type CategoryRule struct {
	Category Category `mapstructure:"category" json:"category"`
	Keywords []string `mapstructure:"keywords" json:"keywords"`
}

// KeywordTable holds the link-priority keywords and the ordered category
// rules. Both are heuristics and are expected to be tuned through config.
type KeywordTable struct {
	Priority   []string       `mapstructure:"priority" json:"priority"`
	Categories []CategoryRule `mapstructure:"categories" json:"categories"`
}

// DefaultKeywordTable returns the built-in heuristics.
func DefaultKeywordTable() KeywordTable {
	return KeywordTable{
		Priority: []string{
			"product", "pricing", "docs", "about", "case-study", "blog",
			"solutions", "features", "platform", "customers", "company",
			"technology", "resources", "faq",
		},
		Categories: []CategoryRule{
			{Category: CategoryProduct, Keywords: []string{"product", "solution", "platform", "features"}},
			{Category: CategoryPricing, Keywords: []string{"pricing", "price", "plans", "subscription"}},
			{Category: CategoryDocumentation, Keywords: []string{"docs", "documentation", "developer", "api-reference", "getting-started", "guide"}},
			{Category: CategoryAbout, Keywords: []string{"about", "company", "team", "leadership", "mission", "who-we-are"}},
			{Category: CategoryBlog, Keywords: []string{"blog", "news", "article", "insights", "press"}},
			{Category: CategoryResources, Keywords: []string{"resources", "whitepaper", "ebook", "webinar", "library", "download"}},
			{Category: CategoryCaseStudy, Keywords: []string{"case-stud", "case_stud", "case stud", "customer", "success-stor", "testimonial"}},
			{Category: CategoryFAQ, Keywords: []string{"faq", "help", "support", "questions"}},
			{Category: CategoryTechnology, Keywords: []string{"technology", "tech", "integration", "security", "architecture", "how-it-works"}},
		},
	}
}

// Normalize lowercases and trims keywords, drops blanks and duplicates.
func (t KeywordTable) Normalize() KeywordTable {
	out := KeywordTable{Priority: normalizeKeywords(t.Priority)}
	for _, rule := range t.Categories {
		out.Categories = append(out.Categories, CategoryRule{
			Category: Category(strings.ToLower(strings.TrimSpace(string(rule.Category)))),
			Keywords: normalizeKeywords(rule.Keywords),
		})
	}
	return out
}

// Validate rejects rules that name unknown categories or carry no keywords.
func (t KeywordTable) Validate() error {
	for i, rule := range t.Categories {
		if !rule.Category.Valid() || rule.Category == CategoryGeneral {
			return fmt.Errorf("keywords.categories[%d].category %q is not a known category", i, rule.Category)
		}
		if len(rule.Keywords) == 0 {
			return fmt.Errorf("keywords.categories[%d].keywords must not be empty", i)
		}
	}
	return nil
}

func normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{})
	for _, kw := range in {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}
