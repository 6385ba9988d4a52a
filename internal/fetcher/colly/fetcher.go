// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/webintel/internal/crawler"
	"github.com/JakeFAU/webintel/internal/policy/ratelimit"
)

// ErrUnsupportedContent is returned for responses that are not markup.
var ErrUnsupportedContent = errors.New("unsupported content type")

const defaultMaxBodyBytes = 5 << 20

// Config controls collector behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int
}

// Fetcher implements crawler.Fetcher using the Colly collector. All clones
// share the base collector's HTTP backend, so the transport and timeout are
// set once in New.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	limiter       *ratelimit.Limiter
	logger        *zap.Logger
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithLimiter waits on l before every request.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(f *Fetcher) {
		f.limiter = l
	}
}

// WithLogger sets the fetcher's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type outcome struct {
	page crawler.FetchedPage
	err  error
}

// New builds a Fetcher whose requests run over transport. A nil transport
// uses net/http's default.
func New(cfg Config, transport http.RoundTripper, opts ...Option) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.MaxBodySize(cfg.MaxBodyBytes),
	)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	if transport != nil {
		c.WithTransport(transport)
	}
	c.SetRequestTimeout(cfg.Timeout)

	f := &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch executes a single HTTP GET using Colly. Non-2xx responses, network
// errors, timeouts and non-markup bodies are returned as errors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (crawler.FetchedPage, error) {
	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return crawler.FetchedPage{}, err
	}
	start := time.Now()
	collector := f.baseCollector.Clone()

	done := make(chan outcome, 1)
	go func() {
		done <- f.visit(collector, rawURL)
	}()

	select {
	case <-ctx.Done():
		return crawler.FetchedPage{}, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return crawler.FetchedPage{}, res.err
		}
		f.logger.Debug("page fetched",
			zap.String("url", rawURL),
			zap.Int("status", res.page.StatusCode),
			zap.Int("bytes", len(res.page.Raw)),
			zap.Duration("duration", time.Since(start)),
		)
		return res.page, nil
	}
}

// visit runs the collector synchronously. Hook state stays local to this
// goroutine so an abandoned fetch never races with the caller.
func (f *Fetcher) visit(collector *colly.Collector, rawURL string) outcome {
	var (
		result   crawler.FetchedPage
		fetchErr error
	)
	f.configureCollectorHooks(collector, rawURL, &result, &fetchErr)
	visitErr := collector.Visit(rawURL)
	if fetchErr != nil {
		return outcome{err: fmt.Errorf("colly response failed: %w", fetchErr)}
	}
	if visitErr != nil {
		return outcome{err: fmt.Errorf("colly visit failed: %w", visitErr)}
	}
	if result.StatusCode == 0 {
		return outcome{err: fmt.Errorf("colly fetch %s: no response", rawURL)}
	}
	return outcome{page: result}
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	rawURL string,
	result *crawler.FetchedPage,
	fetchErr *error,
) {
	hooks.OnResponse(func(r *colly.Response) {
		contentType := ""
		if r.Headers != nil {
			contentType = r.Headers.Get("Content-Type")
		}
		if !isMarkup(contentType) {
			*fetchErr = fmt.Errorf("%w: %q", ErrUnsupportedContent, contentType)
			return
		}
		body := append([]byte(nil), r.Body...)
		title, text, err := crawler.ExtractContent(body)
		if err != nil {
			*fetchErr = err
			return
		}
		finalURL := rawURL
		if r.Request != nil && r.Request.URL != nil {
			finalURL = r.Request.URL.String()
		}
		*result = crawler.FetchedPage{
			URL:         rawURL,
			FinalURL:    finalURL,
			StatusCode:  r.StatusCode,
			ContentType: contentType,
			Title:       title,
			Text:        text,
			Raw:         body,
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			*fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		*fetchErr = err
	})
}

// isMarkup admits HTML, XML and plain text. A missing header is accepted.
func isMarkup(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch {
	case mediaType == "text/html", mediaType == "application/xhtml+xml":
		return true
	case mediaType == "text/xml", mediaType == "application/xml", strings.HasSuffix(mediaType, "+xml"):
		return true
	case mediaType == "text/plain":
		return true
	default:
		return false
	}
}
