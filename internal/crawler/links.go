package crawler

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	keywordScore      = 10
	longURLPenalty    = 5
	longURLThreshold  = 100
	freePathSegments  = 2
	defaultLinksLimit = 10
)

// skippedSegments are whole path segments, compared without any file
// extension, that mark auth, commerce and legal pages.
var skippedSegments = map[string]struct{}{
	"login": {}, "log-in": {}, "signin": {}, "sign-in": {}, "signup": {}, "sign-up": {},
	"register": {}, "logout": {}, "log-out": {}, "signout": {}, "sign-out": {},
	"account": {}, "accounts": {}, "my-account": {}, "cart": {}, "checkout": {}, "basket": {},
	"privacy": {}, "privacy-policy": {}, "terms": {}, "terms-of-service": {}, "terms-of-use": {},
	"terms-and-conditions": {}, "tos": {}, "legal": {}, "cookie": {}, "cookies": {},
	"cookie-policy": {}, "gdpr": {}, "unsubscribe": {},
}

var skippedExtensions = map[string]struct{}{
	".pdf": {}, ".zip": {}, ".gz": {}, ".tar": {}, ".rar": {}, ".7z": {},
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".svg": {}, ".webp": {}, ".ico": {}, ".bmp": {},
	".mp3": {}, ".mp4": {}, ".mov": {}, ".avi": {}, ".webm": {}, ".wav": {},
	".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
	".exe": {}, ".dmg": {}, ".iso": {}, ".css": {}, ".js": {}, ".woff": {}, ".woff2": {}, ".ttf": {},
}

// Skipped reports whether u points at an auth, commerce or legal page, or at
// a binary asset.
func Skipped(u *url.URL) bool {
	p := strings.ToLower(u.Path)
	for _, seg := range strings.Split(p, "/") {
		seg = strings.TrimSuffix(seg, path.Ext(seg))
		if _, skip := skippedSegments[seg]; skip {
			return true
		}
	}
	_, binary := skippedExtensions[path.Ext(p)]
	return binary
}

// LinkExtractor pulls in-scope links out of markup and ranks them.
type LinkExtractor struct {
	priority []string
	limit    int
}

// NewLinkExtractor builds an extractor that keeps at most limit links per page.
func NewLinkExtractor(table KeywordTable, limit int) *LinkExtractor {
	if limit <= 0 {
		limit = defaultLinksLimit
	}
	return &LinkExtractor{
		priority: table.Normalize().Priority,
		limit:    limit,
	}
}

// Extract returns the top-ranked in-scope links found in markup.
func (e *LinkExtractor) Extract(pageURL string, markup []byte, scope DomainScope) ([]string, error) {
	links, err := e.Candidates(pageURL, markup, scope)
	if err != nil {
		return nil, err
	}
	return e.Rank(links), nil
}

// Candidates returns every admissible link in discovery order, normalized and
// deduplicated.
func (e *LinkExtractor) Candidates(pageURL string, markup []byte, scope DomainScope) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	base = documentBase(doc, base)

	var links []string
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if link, ok := admitLink(base, href, scope); ok {
			if _, dup := seen[link]; !dup {
				seen[link] = struct{}{}
				links = append(links, link)
			}
		}
	})
	return links, nil
}

// Rank orders links by Score, highest first with ties kept in input order,
// and truncates to the extractor's limit.
func (e *LinkExtractor) Rank(links []string) []string {
	type scored struct {
		url   string
		score int
	}
	ranked := make([]scored, len(links))
	for i, link := range links {
		ranked[i] = scored{url: link, score: e.Score(link)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if len(ranked) > e.limit {
		ranked = ranked[:e.limit]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.url
	}
	return out
}

// Score rates a link: +10 per priority keyword in the URL, -5 when the URL
// exceeds 100 characters, -1 per path segment beyond the second.
func (e *LinkExtractor) Score(rawURL string) int {
	lower := strings.ToLower(rawURL)
	score := 0
	for _, kw := range e.priority {
		if strings.Contains(lower, kw) {
			score += keywordScore
		}
	}
	if len(rawURL) > longURLThreshold {
		score -= longURLPenalty
	}
	if u, err := url.Parse(rawURL); err == nil {
		if extra := pathSegments(u.Path) - freePathSegments; extra > 0 {
			score -= extra
		}
	}
	return score
}

// admitLink resolves href and applies the scope and skip-list filters.
func admitLink(base *url.URL, href string, scope DomainScope) (string, bool) {
	abs, ok := resolveLink(base, href)
	if !ok {
		return "", false
	}
	if !scope.Contains(abs) || Skipped(abs) {
		return "", false
	}
	return normalize(abs), true
}

// documentBase honors a <base href> element when present.
func documentBase(doc *goquery.Document, pageURL *url.URL) *url.URL {
	href, ok := doc.Find("base[href]").First().Attr("href")
	if !ok {
		return pageURL
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return pageURL
	}
	return pageURL.ResolveReference(ref)
}

func pathSegments(p string) int {
	n := 0
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			n++
		}
	}
	return n
}
