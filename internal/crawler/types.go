// Package crawler defines core types shared across subsystems.
package crawler

// Category classifies a fetched page by the kind of content it holds.
type Category string

// Page categories in the order the default keyword table evaluates them.
const (
	CategoryProduct       Category = "product"
	CategoryPricing       Category = "pricing"
	CategoryDocumentation Category = "documentation"
	CategoryAbout         Category = "about"
	CategoryBlog          Category = "blog"
	CategoryResources     Category = "resources"
	CategoryCaseStudy     Category = "case_study"
	CategoryFAQ           Category = "faq"
	CategoryTechnology    Category = "technology"
	CategoryGeneral       Category = "general"
)

// Categories lists every category a page may be assigned.
func Categories() []Category {
	return []Category{
		CategoryProduct,
		CategoryPricing,
		CategoryDocumentation,
		CategoryAbout,
		CategoryBlog,
		CategoryResources,
		CategoryCaseStudy,
		CategoryFAQ,
		CategoryTechnology,
		CategoryGeneral,
	}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// FrontierEntry is a queued URL awaiting fetch.
type FrontierEntry struct {
	URL   string `json:"url"`
	Depth int    `json:"depth"`
}

// FetchedPage is the outcome of a successful GET.
type FetchedPage struct {
	URL         string `json:"url"`
	FinalURL    string `json:"final_url"`
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Text        string `json:"text"`
	Raw         []byte `json:"-"`
}

// PageRecord captures one crawled page. Records are never mutated after the
// engine appends them.
type PageRecord struct {
	URL       string   `json:"url"`
	Depth     int      `json:"depth"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Category  Category `json:"category"`
	WordCount int      `json:"word_count"`
}

// CrawlResult is the value returned by one engine run.
type CrawlResult struct {
	BaseURL           string           `json:"base_url"`
	Pages             []PageRecord     `json:"pages"`
	CategoryHistogram map[Category]int `json:"category_histogram"`
	TotalWords        int              `json:"total_words"`
}

// Empty reports whether the crawl produced no pages.
func (r CrawlResult) Empty() bool {
	return len(r.Pages) == 0
}

func newCrawlResult(baseURL string, pages []PageRecord) CrawlResult {
	result := CrawlResult{
		BaseURL:           baseURL,
		Pages:             pages,
		CategoryHistogram: make(map[Category]int),
	}
	if result.Pages == nil {
		result.Pages = []PageRecord{}
	}
	for _, page := range pages {
		result.CategoryHistogram[page.Category]++
		result.TotalWords += page.WordCount
	}
	return result
}
