package crawler

import "strings"

// Categorizer assigns exactly one category to a page.
type Categorizer struct {
	rules []CategoryRule
}

// NewCategorizer builds a categorizer over table's ordered rules.
func NewCategorizer(table KeywordTable) *Categorizer {
	return &Categorizer{rules: table.Normalize().Categories}
}

// Categorize matches the lowercased url and title against each rule in order
// and returns the first hit, or CategoryGeneral.
func (c *Categorizer) Categorize(rawURL, title string) Category {
	haystack := strings.ToLower(rawURL + " " + title)
	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(haystack, kw) {
				return rule.Category
			}
		}
	}
	return CategoryGeneral
}
