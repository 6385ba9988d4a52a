package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/webintel/internal/metrics"
)

// Stop reasons reported in the crawl finished log line.
const (
	stopFrontierEmpty = "frontier_empty"
	stopPageBudget    = "page_budget"
	stopCoverage      = "coverage_sufficient"
	stopCanceled      = "canceled"
)

// Engine drives seeding, batched fetching, link processing and coverage
// checks. An Engine is safe for concurrent use; each Run owns its own state.
type Engine struct {
	fetcher     Fetcher
	cfg         Config
	logger      *zap.Logger
	extractor   *LinkExtractor
	categorizer *Categorizer
	coverage    *CoverageEvaluator
}

// NewEngine validates cfg and builds an Engine over fetcher.
func NewEngine(fetcher Fetcher, cfg Config, logger *zap.Logger) (*Engine, error) {
	if fetcher == nil {
		return nil, errors.New("crawler: fetcher is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate crawler config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		fetcher:     fetcher,
		cfg:         cfg,
		logger:      logger,
		extractor:   NewLinkExtractor(cfg.Keywords, cfg.LinksPerPage),
		categorizer: NewCategorizer(cfg.Keywords),
		coverage:    NewCoverageEvaluator(cfg.Coverage),
	}, nil
}

// Config returns the engine's crawl configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Run crawls the site rooted at seedURL. The returned error is non-nil only
// for an invalid seed or a done context; in the latter case the pages
// gathered so far are still returned.
func (e *Engine) Run(ctx context.Context, seedURL string) (CrawlResult, error) {
	base, err := ParseSeed(seedURL)
	if err != nil {
		return CrawlResult{}, err
	}
	r := &run{
		Engine:  e,
		base:    base,
		scope:   NewDomainScope(base),
		sem:     semaphore.NewWeighted(int64(e.cfg.MaxConcurrent)),
		visited: NewVisitedSet(),
	}
	r.frontier = NewFrontier(r.visited)
	return r.execute(ctx)
}

type run struct {
	*Engine

	base     *url.URL
	scope    DomainScope
	sem      *semaphore.Weighted
	visited  *VisitedSet
	frontier *Frontier
	pages    []PageRecord
	claimed  int
}

type fetchResult struct {
	entry FrontierEntry
	page  FetchedPage
	err   error
}

func (r *run) execute(ctx context.Context) (CrawlResult, error) {
	start := time.Now()
	homepage := normalize(r.base)
	logger := r.logger.With(zap.String("seed", homepage))
	logger.Info("crawl started",
		zap.Int("max_pages", r.cfg.MaxPages),
		zap.Int("max_depth", r.cfg.MaxDepth),
		zap.Int("max_concurrent", r.cfg.MaxConcurrent),
	)

	r.visited.Add(homepage)
	r.claimed = 1

	seeds := NewSeedLoader(FetcherFunc(r.fetch), r.cfg.SitemapLimit, logger).Load(ctx, r.base)
	r.frontier.PushFront(seeds.Head...)
	r.frontier.PushBack(seeds.Tail...)
	if seeds.Homepage != nil {
		r.apply(FrontierEntry{URL: homepage, Depth: 0}, *seeds.Homepage)
	}

	reason := r.loop(ctx)
	result := newCrawlResult(homepage, r.pages)
	metrics.ObserveCrawl(time.Since(start), len(result.Pages))
	logger.Info("crawl finished",
		zap.String("reason", reason),
		zap.Int("pages", len(result.Pages)),
		zap.Int("visited", r.visited.Len()),
		zap.Int("total_words", result.TotalWords),
		zap.Duration("duration", time.Since(start)),
	)
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("crawl interrupted: %w", err)
	}
	return result, nil
}

func (r *run) loop(ctx context.Context) string {
	for {
		if ctx.Err() != nil {
			return stopCanceled
		}
		if r.claimed >= r.cfg.MaxPages {
			return stopPageBudget
		}
		if r.coverage.IsSufficient(r.pages) {
			return stopCoverage
		}
		batch := r.nextBatch()
		if len(batch) == 0 {
			return stopFrontierEmpty
		}
		r.fetchBatch(ctx, batch)
	}
}

// nextBatch pops up to min(max_concurrent, remaining budget) eligible entries
// and claims them in the visited set.
func (r *run) nextBatch() []FrontierEntry {
	limit := min(r.cfg.MaxConcurrent, r.cfg.MaxPages-r.claimed)
	batch := make([]FrontierEntry, 0, limit)
	for len(batch) < limit {
		entry, ok := r.frontier.Pop()
		if !ok {
			break
		}
		if entry.Depth > r.cfg.MaxDepth || !r.scope.ContainsString(entry.URL) {
			continue
		}
		if !r.visited.Add(entry.URL) {
			continue
		}
		batch = append(batch, entry)
	}
	r.claimed += len(batch)
	return batch
}

// fetchBatch fetches entries concurrently and applies results in completion
// order on the calling goroutine.
func (r *run) fetchBatch(ctx context.Context, batch []FrontierEntry) {
	results := make(chan fetchResult, len(batch))
	for _, entry := range batch {
		go func(entry FrontierEntry) {
			page, err := r.fetch(ctx, entry.URL)
			results <- fetchResult{entry: entry, page: page, err: err}
		}(entry)
	}
	for range batch {
		res := <-results
		if res.err != nil {
			r.logger.Debug("page skipped", zap.String("url", res.entry.URL), zap.Error(res.err))
			continue
		}
		r.apply(res.entry, res.page)
	}
}

// fetch holds one semaphore unit for the duration of the underlying fetch.
func (r *run) fetch(ctx context.Context, rawURL string) (FetchedPage, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return FetchedPage{}, fmt.Errorf("acquire fetch slot: %w", err)
	}
	defer r.sem.Release(1)

	metrics.IncInFlight()
	defer metrics.DecInFlight()

	page, err := r.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		metrics.ObservePage(rawURL, metrics.StatusFailed, 0)
		return FetchedPage{}, err
	}
	metrics.ObservePage(rawURL, metrics.StatusFetched, len(page.Raw))
	return page, nil
}

// apply records page and queues its ranked links. A page whose redirects
// left the crawl's domain is dropped.
func (r *run) apply(entry FrontierEntry, page FetchedPage) {
	if page.FinalURL != "" && !r.scope.ContainsString(page.FinalURL) {
		r.logger.Debug("page redirected off domain",
			zap.String("url", entry.URL), zap.String("final_url", page.FinalURL))
		return
	}
	r.pages = append(r.pages, PageRecord{
		URL:       entry.URL,
		Depth:     entry.Depth,
		Title:     page.Title,
		Content:   page.Text,
		Category:  r.categorizer.Categorize(entry.URL, page.Title),
		WordCount: WordCount(page.Text),
	})

	next := entry.Depth + 1
	if next > r.cfg.MaxDepth {
		return
	}
	base := baseForLinks(page, parseOrEmpty(entry.URL), r.scope)
	links, err := r.extractor.Extract(base, page.Raw, r.scope)
	if err != nil {
		r.logger.Debug("link extraction failed", zap.String("url", entry.URL), zap.Error(err))
		return
	}
	entries := make([]FrontierEntry, len(links))
	for i, link := range links {
		entries[i] = FrontierEntry{URL: link, Depth: next}
	}
	r.frontier.PushBack(entries...)
}
