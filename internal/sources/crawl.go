package sources

import (
	"context"

	"github.com/JakeFAU/webintel/internal/crawler"
)

// Crawler runs a site crawl.
type Crawler interface {
	Run(ctx context.Context, seedURL string) (crawler.CrawlResult, error)
}

// Crawl adapts a crawl engine to the Source interface. Its payload is a
// crawler.CrawlResult.
type Crawl struct {
	engine Crawler
}

// NewCrawl wraps engine.
func NewCrawl(engine Crawler) *Crawl {
	return &Crawl{engine: engine}
}

// Name implements Source.
func (c *Crawl) Name() Name { return NameCrawl }

// Gather implements Source. A crawl cut short by ctx reports the context
// error alongside whatever pages it reached.
func (c *Crawl) Gather(ctx context.Context, req Request) (Payload, error) {
	result, err := c.engine.Run(ctx, req.SeedURL)
	return result, err
}
