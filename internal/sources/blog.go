package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/webintel/internal/crawler"
)

const (
	defaultBlogPosts   = 5
	blogFetchLimit     = 3
	maxBlogSummaryRune = 300
)

var (
	blogKeywords    = []string{"blog", "news", "insights", "articles"}
	blogProbePaths  = []string{"/blog", "/news", "/insights", "/articles"}
	blogSkipSegment = []string{"page", "tag", "tags", "category", "categories", "author", "feed", "rss"}
)

// BlogPost summarizes one post.
type BlogPost struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Summary   string `json:"summary,omitempty"`
	Published string `json:"published,omitempty"`
	WordCount int    `json:"word_count"`
}

// BlogPayload lists recent posts from the company blog.
type BlogPayload struct {
	IndexURL string     `json:"index_url"`
	Posts    []BlogPost `json:"posts"`
}

// Empty reports whether no posts were found.
func (p BlogPayload) Empty() bool {
	return len(p.Posts) == 0
}

// Blog locates the company blog and summarizes its latest posts.
type Blog struct {
	client   *Client
	maxPosts int
	logger   *zap.Logger
}

// NewBlog builds the blog source. maxPosts caps posts fetched.
func NewBlog(client *Client, maxPosts int, logger *zap.Logger) *Blog {
	if maxPosts <= 0 {
		maxPosts = defaultBlogPosts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Blog{client: client, maxPosts: maxPosts, logger: logger}
}

// Name implements Source.
func (b *Blog) Name() Name { return NameBlog }

// Gather implements Source.
func (b *Blog) Gather(ctx context.Context, req Request) (Payload, error) {
	home, homeURL, err := b.client.Document(ctx, req.SeedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch homepage: %w", err)
	}
	scope := crawler.NewDomainScope(homeURL)

	index, indexURL, err := b.locateIndex(ctx, home, homeURL, scope)
	if err != nil {
		return BlogPayload{}, err
	}

	links := postLinks(index, indexURL, scope, b.maxPosts)
	payload := BlogPayload{IndexURL: indexURL.String()}
	if len(links) == 0 {
		return payload, fmt.Errorf("blog posts at %s: %w", indexURL, ErrNotFound)
	}
	payload.Posts = b.fetchPosts(ctx, links)
	return payload, nil
}

// locateIndex prefers a homepage link to the blog and falls back to probing
// common paths.
func (b *Blog) locateIndex(
	ctx context.Context,
	home *goquery.Document,
	homeURL *url.URL,
	scope crawler.DomainScope,
) (*goquery.Document, *url.URL, error) {
	var candidates []string
	for _, a := range anchors(home, homeURL) {
		if !scope.Contains(a.URL) {
			continue
		}
		segs := pathSegments(strings.ToLower(a.URL.Path))
		if len(segs) == 1 && containsAny(segs[0], blogKeywords...) {
			candidates = append(candidates, a.URL.String())
		}
	}
	origin := crawler.Origin(homeURL)
	for _, p := range blogProbePaths {
		candidates = append(candidates, origin+p)
	}

	tried := make(map[string]struct{})
	for _, candidate := range candidates {
		if _, ok := tried[candidate]; ok {
			continue
		}
		tried[candidate] = struct{}{}
		doc, final, err := b.client.Document(ctx, candidate)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			b.logger.Debug("blog candidate unavailable", zap.String("url", candidate), zap.Error(err))
			continue
		}
		return doc, final, nil
	}
	return nil, nil, fmt.Errorf("blog index: %w", ErrNotFound)
}

// postLinks returns links nested under the index path, skipping listing
// pages such as pagination, tags and authors.
func postLinks(index *goquery.Document, indexURL *url.URL, scope crawler.DomainScope, limit int) []anchor {
	prefix := strings.TrimSuffix(strings.ToLower(indexURL.Path), "/") + "/"
	var out []anchor
	for _, a := range anchors(index, indexURL) {
		if len(out) >= limit {
			break
		}
		if !scope.Contains(a.URL) || crawler.Skipped(a.URL) {
			continue
		}
		p := strings.ToLower(a.URL.Path)
		if !strings.HasPrefix(p, prefix) || len(p) <= len(prefix) {
			continue
		}
		rest := pathSegments(strings.TrimPrefix(p, prefix))
		if len(rest) == 0 || containsSegment(rest[0], blogSkipSegment) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// fetchPosts loads posts concurrently. Posts that fail to load keep their
// anchor text as title.
func (b *Blog) fetchPosts(ctx context.Context, links []anchor) []BlogPost {
	posts := make([]BlogPost, len(links))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(blogFetchLimit)
	for i, link := range links {
		i, link := i, link
		g.Go(func() error {
			post := BlogPost{URL: link.URL.String(), Title: link.Text}
			doc, _, err := b.client.Document(gctx, post.URL)
			if err != nil {
				b.logger.Debug("blog post unavailable", zap.String("url", post.URL), zap.Error(err))
			} else {
				summarizePost(doc, &post)
			}
			posts[i] = post
			return nil
		})
	}
	_ = g.Wait()
	return posts
}

func summarizePost(doc *goquery.Document, post *BlogPost) {
	if t := title(doc); t != "" {
		post.Title = t
	}
	post.Summary = truncateRunes(meta(doc, "description", "og:description"), maxBlogSummaryRune)
	post.Published = meta(doc, "article:published_time", "date", "pubdate")
	if post.Published == "" {
		if dt, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
			post.Published = strings.TrimSpace(dt)
		}
	}
	doc.Find("script, style, noscript, template").Remove()
	body := doc.Find("article").First()
	if body.Length() == 0 {
		body = doc.Find("main").First()
	}
	if body.Length() == 0 {
		body = doc.Find("body")
	}
	text := crawler.TextOf(body)
	post.WordCount = crawler.WordCount(text)
	if post.Summary == "" {
		post.Summary = truncateRunes(text, maxBlogSummaryRune)
	}
}

func containsSegment(seg string, set []string) bool {
	for _, s := range set {
		if seg == s {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n])) + "…"
}
