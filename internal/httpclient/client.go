// Package httpclient builds the connection-pooled HTTP client shared by the
// crawler and every gathering source.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// Config controls pooling, timeouts and DNS caching.
type Config struct {
	Timeout             time.Duration
	UserAgent           string
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	DNSCacheTTL         time.Duration
}

// DefaultConfig returns the standard pool settings.
func DefaultConfig() Config {
	return Config{
		Timeout:             10 * time.Second,
		UserAgent:           "webintel/1.0 (+https://github.com/JakeFAU/webintel)",
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 16,
		MaxConnsPerHost:     32,
		IdleConnTimeout:     90 * time.Second,
		DNSCacheTTL:         5 * time.Minute,
	}
}

// New returns a client whose transport is NewTransport(cfg). Requests without
// a User-Agent header get cfg.UserAgent.
func New(cfg Config) *http.Client {
	return NewWithTransport(cfg, NewTransport(cfg))
}

// NewWithTransport returns a client over an existing transport, so the
// fetcher and the sources can share one pool.
func NewWithTransport(cfg Config, transport http.RoundTripper) *http.Client {
	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &userAgentTransport{base: transport, userAgent: cfg.UserAgent},
	}
}

// NewTransport builds a pooled transport. When cfg.DNSCacheTTL is positive,
// host lookups go through a shared Resolver.
func NewTransport(cfg Config) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   cfg.Timeout,
		KeepAlive: 30 * time.Second,
	}
	dial := dialer.DialContext
	if cfg.DNSCacheTTL > 0 {
		dial = NewResolver(cfg.DNSCacheTTL).DialContext(dialer)
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dial,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   cfg.Timeout,
		ResponseHeaderTimeout: cfg.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
	}
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent == "" || req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(clone)
}
