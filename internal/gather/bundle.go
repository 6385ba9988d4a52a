package gather

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/JakeFAU/webintel/internal/crawler"
	"github.com/JakeFAU/webintel/internal/sources"
)

// Homepage is the landing page text kept alongside the source outcomes.
type Homepage struct {
	URL     string
	Title   string
	Content string
	Err     error
}

// MarshalJSON renders the homepage with its error text.
func (h Homepage) MarshalJSON() ([]byte, error) {
	out := struct {
		URL     string `json:"url,omitempty"`
		Title   string `json:"title,omitempty"`
		Content string `json:"content"`
		Error   string `json:"error,omitempty"`
	}{URL: h.URL, Title: h.Title, Content: h.Content}
	if h.Err != nil {
		out.Error = h.Err.Error()
	}
	return json.Marshal(out)
}

// Bundle is everything gathered for one request. Outcomes holds exactly one
// entry per requested source, failed or not.
type Bundle struct {
	ID         string                         `json:"id"`
	Company    string                         `json:"company"`
	SeedURL    string                         `json:"seed_url"`
	StartedAt  time.Time                      `json:"started_at"`
	FinishedAt time.Time                      `json:"finished_at"`
	Homepage   Homepage                       `json:"homepage"`
	Outcomes   map[sources.Name]SourceOutcome `json:"outcomes"`
}

// HomepageContent returns the homepage text, empty when the fetch failed.
func (b Bundle) HomepageContent() string {
	return b.Homepage.Content
}

// Outcome returns the outcome recorded for name.
func (b Bundle) Outcome(name sources.Name) (SourceOutcome, bool) {
	o, ok := b.Outcomes[name]
	return o, ok
}

// CrawlResult returns the crawl's pages. A crawl cut short still reports the
// pages it reached.
func (b Bundle) CrawlResult() (crawler.CrawlResult, bool) {
	o, ok := b.Outcomes[sources.NameCrawl]
	if !ok {
		return crawler.CrawlResult{}, false
	}
	result, ok := o.Payload.(crawler.CrawlResult)
	return result, ok
}

// Failed lists the sources whose outcome is a failure, sorted by name.
func (b Bundle) Failed() []sources.Name {
	var out []sources.Name
	for name, o := range b.Outcomes {
		if !o.OK() {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}
