package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeSite serves canned markup keyed by normalized URL and records the
// highest number of concurrent Fetch calls it observed. redirects maps a
// request URL to the final URL reported for it.
type fakeSite struct {
	mu          sync.Mutex
	pages       map[string]string
	redirects   map[string]string
	delay       time.Duration
	inFlight    int
	maxInFlight int
	calls       map[string]int
}

func newFakeSite(pages map[string]string) *fakeSite {
	return &fakeSite{pages: pages, calls: make(map[string]int)}
}

func (s *fakeSite) Fetch(ctx context.Context, rawURL string) (FetchedPage, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.calls[rawURL]++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return FetchedPage{}, ctx.Err()
		}
	}

	body, ok := s.pages[rawURL]
	if !ok {
		return FetchedPage{}, fmt.Errorf("fetch %s: status 404", rawURL)
	}
	title, text, err := ExtractContent([]byte(body))
	if err != nil {
		return FetchedPage{}, err
	}
	finalURL := rawURL
	if target, ok := s.redirects[rawURL]; ok {
		finalURL = target
	}
	return FetchedPage{
		URL:         rawURL,
		FinalURL:    finalURL,
		StatusCode:  200,
		ContentType: "text/html",
		Title:       title,
		Text:        text,
		Raw:         []byte(body),
	}, nil
}

func (s *fakeSite) peak() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}

func (s *fakeSite) callCount(rawURL string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[rawURL]
}

func (s *fakeSite) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

func htmlPage(title, body string) string {
	return "<html><head><title>" + title + "</title></head><body>" + body + "</body></html>"
}

func sitemapXML(locs ...string) string {
	out := `<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`
	for _, loc := range locs {
		out += "<url><loc>" + loc + "</loc></url>"
	}
	return out + "</urlset>"
}
