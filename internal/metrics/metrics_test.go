package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.expected, SanitizeSite(tc.input))
		})
	}
}

func TestInitIdempotent(t *testing.T) {
	t.Parallel()

	Init()
	first := pagesTotal
	Init()
	require.Same(t, first, pagesTotal)
}

func TestObservePage(t *testing.T) {
	t.Parallel()

	Init()
	before := testutil.ToFloat64(pagesTotal.WithLabelValues("observe-page.test", StatusFetched))
	bytesBefore := testutil.ToFloat64(bytesTotal.WithLabelValues("observe-page.test"))

	ObservePage("https://Observe-Page.test/about", StatusFetched, 128)
	ObservePage("https://observe-page.test/", StatusFetched, 0)

	require.Equal(t, before+2, testutil.ToFloat64(pagesTotal.WithLabelValues("observe-page.test", StatusFetched)))
	require.Equal(t, bytesBefore+128, testutil.ToFloat64(bytesTotal.WithLabelValues("observe-page.test")))
}

func TestObserveSource(t *testing.T) {
	t.Parallel()

	Init()
	before := testutil.ToFloat64(sourceOutcomesTotal.WithLabelValues("observe-source", StatusFailure))
	ObserveSource("observe-source", StatusFailure, 250*time.Millisecond)
	require.Equal(t, before+1, testutil.ToFloat64(sourceOutcomesTotal.WithLabelValues("observe-source", StatusFailure)))

	fallbackBefore := testutil.ToFloat64(fallbacksTotal.WithLabelValues("observe-source", StatusSuccess))
	ObserveFallback("observe-source", StatusSuccess)
	require.Equal(t, fallbackBefore+1, testutil.ToFloat64(fallbacksTotal.WithLabelValues("observe-source", StatusSuccess)))
}

func TestDNSLookupCounter(t *testing.T) {
	t.Parallel()

	Init()
	before := testutil.ToFloat64(dnsLookupsTotal.WithLabelValues("lookup"))
	ObserveDNSLookup("lookup")
	require.Equal(t, before+1, testutil.ToFloat64(dnsLookupsTotal.WithLabelValues("lookup")))
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
