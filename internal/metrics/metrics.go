// Package metrics exposes Prometheus collectors for the crawler and the
// gathering orchestrator.
package metrics

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Page fetch statuses.
const (
	StatusFetched = "fetched"
	StatusFailed  = "failed"
)

// Source outcome statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

var (
	pagesTotal             *prometheus.CounterVec
	bytesTotal             *prometheus.CounterVec
	fetchesInFlight        prometheus.Gauge
	crawlDurationSeconds   prometheus.Histogram
	crawlPages             prometheus.Histogram
	sourceOutcomesTotal    *prometheus.CounterVec
	sourceDurationSeconds  *prometheus.HistogramVec
	fallbacksTotal         *prometheus.CounterVec
	rateLimitDelaysSeconds *prometheus.HistogramVec
	dnsLookupsTotal        *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webintel_pages_total",
				Help: "Total number of page fetches, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		bytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webintel_bytes_total",
				Help: "Total number of body bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		fetchesInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "webintel_fetches_in_flight",
				Help: "Number of page fetches currently in flight.",
			},
		)

		crawlDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "webintel_crawl_duration_seconds",
				Help:    "Histogram of crawl run durations.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		)

		crawlPages = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "webintel_crawl_pages",
				Help:    "Histogram of pages collected per crawl run.",
				Buckets: []float64{0, 1, 5, 10, 15, 20, 30, 50},
			},
		)

		sourceOutcomesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webintel_source_outcomes_total",
				Help: "Total number of gathering source outcomes, labeled by source and status.",
			},
			[]string{"source", "status"},
		)

		sourceDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webintel_source_duration_seconds",
				Help:    "Histogram of gathering source durations, labeled by source.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"source"},
		)

		fallbacksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webintel_fallbacks_total",
				Help: "Total number of fallback source runs, labeled by source and status.",
			},
			[]string{"source", "status"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webintel_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		dnsLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webintel_dns_lookups_total",
				Help: "Total number of DNS cache events, labeled by kind.",
			},
			[]string{"result"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage records one page fetch attempt.
func ObservePage(site, status string, bytesFetched int) {
	Init()
	sanitized := SanitizeSite(site)
	pagesTotal.WithLabelValues(sanitized, status).Inc()
	if bytesFetched > 0 {
		bytesTotal.WithLabelValues(sanitized).Add(float64(bytesFetched))
	}
}

// IncInFlight increments the in-flight fetch gauge.
func IncInFlight() {
	Init()
	fetchesInFlight.Inc()
}

// DecInFlight decrements the in-flight fetch gauge.
func DecInFlight() {
	Init()
	fetchesInFlight.Dec()
}

// ObserveCrawl records the duration and page yield of a crawl run.
func ObserveCrawl(duration time.Duration, pages int) {
	Init()
	crawlDurationSeconds.Observe(duration.Seconds())
	crawlPages.Observe(float64(pages))
}

// ObserveSource records a gathering source outcome.
func ObserveSource(source, status string, duration time.Duration) {
	Init()
	sourceOutcomesTotal.WithLabelValues(source, status).Inc()
	sourceDurationSeconds.WithLabelValues(source).Observe(duration.Seconds())
}

// ObserveFallback records a fallback source run.
func ObserveFallback(source, status string) {
	Init()
	fallbacksTotal.WithLabelValues(source, status).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveDNSLookup counts a DNS cache event by kind: lookup, miss or error.
func ObserveDNSLookup(result string) {
	Init()
	dnsLookupsTotal.WithLabelValues(result).Inc()
}
