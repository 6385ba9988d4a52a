package crawler

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultSitemapLimit = 50

var (
	navigationTags     = map[string]struct{}{"header": {}, "footer": {}, "nav": {}}
	navigationPatterns = []string{"nav", "menu", "footer", "header"}
)

// Seeds is the initial work discovered for a crawl.
type Seeds struct {
	// Navigation links from the homepage, queued at the head.
	Head []FrontierEntry
	// Sitemap entries, queued at the tail.
	Tail []FrontierEntry
	// HomepageURL is the normalized seed URL.
	HomepageURL string
	// Homepage is nil when the homepage fetch failed.
	Homepage *FetchedPage
}

// SeedLoader discovers starting URLs from the sitemap and homepage navigation.
type SeedLoader struct {
	fetcher Fetcher
	limit   int
	logger  *zap.Logger
}

// NewSeedLoader builds a loader. sitemapLimit caps the sitemap entries kept.
func NewSeedLoader(fetcher Fetcher, sitemapLimit int, logger *zap.Logger) *SeedLoader {
	if sitemapLimit <= 0 {
		sitemapLimit = defaultSitemapLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeedLoader{fetcher: fetcher, limit: sitemapLimit, logger: logger}
}

// Load fetches the sitemap and the homepage concurrently. Failures of either
// are logged and leave the corresponding seeds empty.
func (l *SeedLoader) Load(ctx context.Context, base *url.URL) Seeds {
	scope := NewDomainScope(base)
	seeds := Seeds{HomepageURL: normalize(base)}

	var (
		sitemap []string
		nav     []string
	)
	var g errgroup.Group
	g.Go(func() error {
		sitemap = l.sitemapURLs(ctx, Origin(base)+"/sitemap.xml", scope)
		return nil
	})
	g.Go(func() error {
		page, err := l.fetcher.Fetch(ctx, seeds.HomepageURL)
		if err != nil {
			l.logger.Debug("homepage fetch failed", zap.String("url", seeds.HomepageURL), zap.Error(err))
			return nil
		}
		seeds.Homepage = &page
		links, err := NavigationLinks(baseForLinks(page, base, scope), page.Raw, scope)
		if err != nil {
			l.logger.Debug("homepage navigation parse failed", zap.String("url", seeds.HomepageURL), zap.Error(err))
			return nil
		}
		nav = links
		return nil
	})
	_ = g.Wait()

	for _, link := range nav {
		seeds.Head = append(seeds.Head, FrontierEntry{URL: link, Depth: 0})
	}
	for _, link := range sitemap {
		seeds.Tail = append(seeds.Tail, FrontierEntry{URL: link, Depth: 0})
	}
	l.logger.Debug("seeds loaded",
		zap.String("url", seeds.HomepageURL),
		zap.Int("navigation", len(seeds.Head)),
		zap.Int("sitemap", len(seeds.Tail)),
		zap.Bool("homepage", seeds.Homepage != nil),
	)
	return seeds
}

// sitemapURLs collects page locations from sitemapURL. A sitemap index is
// followed one level deep.
func (l *SeedLoader) sitemapURLs(ctx context.Context, sitemapURL string, scope DomainScope) []string {
	locs, err := l.sitemapLocs(ctx, sitemapURL)
	if err != nil {
		l.logger.Debug("sitemap unavailable", zap.String("url", sitemapURL), zap.Error(err))
		return nil
	}

	var (
		out    []string
		nested []string
	)
	base := parseOrEmpty(sitemapURL)
	seen := make(map[string]struct{})
	add := func(loc string) bool {
		u, ok := resolveLink(base, loc)
		if !ok || !scope.Contains(u) || Skipped(u) {
			return len(out) < l.limit
		}
		key := normalize(u)
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			out = append(out, key)
		}
		return len(out) < l.limit
	}

	for _, loc := range locs {
		if isSitemapLoc(loc) {
			nested = append(nested, loc)
			continue
		}
		if !add(loc) {
			return out
		}
	}
	for _, child := range nested {
		if ctx.Err() != nil {
			break
		}
		childLocs, err := l.sitemapLocs(ctx, child)
		if err != nil {
			l.logger.Debug("nested sitemap unavailable", zap.String("url", child), zap.Error(err))
			continue
		}
		for _, loc := range childLocs {
			if isSitemapLoc(loc) {
				continue
			}
			if !add(loc) {
				return out
			}
		}
	}
	return out
}

func (l *SeedLoader) sitemapLocs(ctx context.Context, sitemapURL string) ([]string, error) {
	page, err := l.fetcher.Fetch(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	return SitemapLocations(page.Raw)
}

// SitemapLocations returns the trimmed <loc> values of a sitemap or index.
func SitemapLocations(raw []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	var locs []string
	doc.Find("loc").Each(func(_ int, s *goquery.Selection) {
		if loc := strings.TrimSpace(s.Text()); loc != "" {
			locs = append(locs, loc)
		}
	})
	return locs, nil
}

// NavigationLinks returns in-scope links located in header, footer or
// navigation regions of markup, in document order.
func NavigationLinks(pageURL string, markup []byte, scope DomainScope) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, err
	}
	base = documentBase(doc, base)

	var links []string
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if !inNavigation(s) {
			return
		}
		href, _ := s.Attr("href")
		link, ok := admitLink(base, href, scope)
		if !ok {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links, nil
}

func inNavigation(s *goquery.Selection) bool {
	found := false
	s.Parents().EachWithBreak(func(_ int, parent *goquery.Selection) bool {
		if _, ok := navigationTags[goquery.NodeName(parent)]; ok {
			found = true
			return false
		}
		class, _ := parent.Attr("class")
		id, _ := parent.Attr("id")
		marker := strings.ToLower(class + " " + id)
		for _, pattern := range navigationPatterns {
			if strings.Contains(marker, pattern) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

func isSitemapLoc(loc string) bool {
	lower := strings.ToLower(loc)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	return strings.HasSuffix(lower, ".xml") || strings.HasSuffix(lower, ".xml.gz")
}

// baseForLinks picks the URL links on a fetched page resolve against: the
// final URL after redirects when it stayed in scope, otherwise the request URL.
func baseForLinks(page FetchedPage, requested *url.URL, scope DomainScope) string {
	if page.FinalURL != "" && scope.ContainsString(page.FinalURL) {
		return page.FinalURL
	}
	if page.URL != "" {
		return page.URL
	}
	return requested.String()
}

func parseOrEmpty(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
