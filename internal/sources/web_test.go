package sources

import (
	"io"
	"net/http"
	"strings"
	"sync"
)

// fakeWeb is an http.RoundTripper serving canned pages keyed by
// scheme://host/path. Unknown URLs get a 404.
type fakeWeb struct {
	mu      sync.Mutex
	pages   map[string]string
	hits    map[string]int
	queries []string

	// When gate is non-nil every request blocks until it is closed.
	gate    chan struct{}
	arrived chan struct{}
}

func newFakeWeb(pages map[string]string) *fakeWeb {
	return &fakeWeb{pages: pages, hits: make(map[string]int), arrived: make(chan struct{}, 1)}
}

func (w *fakeWeb) RoundTrip(req *http.Request) (*http.Response, error) {
	key := req.URL.Scheme + "://" + req.URL.Host + req.URL.Path
	w.mu.Lock()
	w.hits[key]++
	if req.URL.RawQuery != "" {
		w.queries = append(w.queries, req.URL.Query().Get("q"))
	}
	body, ok := w.pages[key]
	gate := w.gate
	w.mu.Unlock()

	if gate != nil {
		select {
		case w.arrived <- struct{}{}:
		default:
		}
		select {
		case <-gate:
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}

	resp := &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": {"text/html; charset=utf-8"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
	if !ok {
		resp.StatusCode = http.StatusNotFound
		resp.Body = io.NopCloser(strings.NewReader("not found"))
	}
	return resp, nil
}

func (w *fakeWeb) hitCount(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hits[key]
}

func (w *fakeWeb) lastQuery() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queries) == 0 {
		return ""
	}
	return w.queries[len(w.queries)-1]
}

func (w *fakeWeb) client() *Client {
	return NewClient(&http.Client{Transport: w}, 0)
}

func page(title, body string) string {
	return "<html><head><title>" + title + "</title></head><body>" + body + "</body></html>"
}
