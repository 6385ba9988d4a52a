package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/webintel/internal/crawler"
	"github.com/JakeFAU/webintel/internal/httpclient"
	"github.com/JakeFAU/webintel/internal/policy/ratelimit"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title> Acme  Home </title><style>.x{}</style></head>
			<body><script>var a = 1;</script><h1>Welcome</h1><p>We build   widgets.</p><noscript>enable js</noscript></body></html>`))
	})
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(`<urlset><url><loc>https://example.test/a</loc></url></urlset>`))
	})
	mux.HandleFunc("/logo.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
		_, _ = w.Write([]byte("<html></html>"))
	})
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestFetcher(opts ...Option) *Fetcher {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = time.Second
	return New(Config{UserAgent: "webintel-test", Timeout: time.Second}, httpclient.NewTransport(cfg), opts...)
}

func TestFetchHTML(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	page, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.StatusCode)
	require.Equal(t, "Acme Home", page.Title)
	require.Equal(t, "Welcome We build widgets.", page.Text)
	require.Contains(t, string(page.Raw), "<script>")
	require.Equal(t, srv.URL+"/", page.URL)
}

func TestFetchFollowsRedirect(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	page, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/redirect")
	require.NoError(t, err)
	require.Equal(t, "Acme Home", page.Title)
	require.Equal(t, srv.URL+"/redirect", page.URL)
}

func TestFetchSitemapXML(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	page, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/sitemap.xml")
	require.NoError(t, err)

	locs, err := crawler.SitemapLocations(page.Raw)
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.test/a"}, locs)
}

func TestFetchErrors(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	f := newTestFetcher()

	_, err := f.Fetch(context.Background(), srv.URL+"/missing")
	require.ErrorContains(t, err, "404")

	_, err = f.Fetch(context.Background(), srv.URL+"/logo.png")
	require.True(t, errors.Is(err, ErrUnsupportedContent))

	_, err = f.Fetch(context.Background(), "http://127.0.0.1:1/unreachable")
	require.Error(t, err)
}

func TestFetchHonorsContext(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newTestFetcher().Fetch(ctx, srv.URL+"/slow")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)
}

func TestFetchRequestTimeout(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	f := New(Config{Timeout: 100 * time.Millisecond}, nil)

	_, err := f.Fetch(context.Background(), srv.URL+"/slow")
	require.Error(t, err)
}

func TestFetchConcurrentClones(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	f := newTestFetcher(WithLimiter(ratelimit.New(ratelimit.Config{})))

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.Fetch(context.Background(), srv.URL+"/")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestFetchWaitsOnLimiter(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	f := newTestFetcher(WithLimiter(ratelimit.New(ratelimit.Config{RPS: 10, Burst: 1})))

	_, err := f.Fetch(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	start := time.Now()
	_, err = f.Fetch(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{}, nil)
	var result crawler.FetchedPage
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, "https://example.com", &result, &fetchErr)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("<html><title>T</title><body>body text</body></html>"),
		Headers:    &http.Header{"Content-Type": {"text/html"}},
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com/final")},
	})
	require.NoError(t, fetchErr)
	require.Equal(t, "T", result.Title)
	require.Equal(t, "body text", result.Text)
	require.Equal(t, "https://example.com/final", result.FinalURL)

	hooks.onError(&colly.Response{StatusCode: http.StatusServiceUnavailable}, errors.New("Service Unavailable"))
	require.ErrorContains(t, fetchErr, "status 503")
}

func TestIsMarkup(t *testing.T) {
	t.Parallel()

	for contentType, want := range map[string]bool{
		"":                         true,
		"text/html; charset=utf-8": true,
		"application/xhtml+xml":    true,
		"application/xml":          true,
		"application/rss+xml":      true,
		"text/plain":               true,
		"image/png":                false,
		"application/pdf":          false,
		"application/octet-stream": false,
		"application/json":         false,
	} {
		require.Equal(t, want, isMarkup(contentType), contentType)
	}
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
