package sources

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// anchor is a resolved link with its visible text.
type anchor struct {
	URL  *url.URL
	Text string
}

func parseDocument(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

// anchors resolves every http(s) link in doc against base, fragment stripped,
// deduplicated in document order.
func anchors(doc *goquery.Document, base *url.URL) []anchor {
	var out []anchor
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		abs.Fragment = ""
		key := abs.String()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		text := collapse(s.Text())
		if text == "" {
			text, _ = s.Attr("aria-label")
			text = collapse(text)
		}
		out = append(out, anchor{URL: abs, Text: text})
	})
	return out
}

// meta returns the first non-empty content of the named meta tags, matching
// either the name or property attribute.
func meta(doc *goquery.Document, names ...string) string {
	for _, name := range names {
		selector := `meta[name="` + name + `"], meta[property="` + name + `"]`
		if content, ok := doc.Find(selector).First().Attr("content"); ok {
			if content = collapse(content); content != "" {
				return content
			}
		}
	}
	return ""
}

// title prefers og:title, then <title>, then the first h1.
func title(doc *goquery.Document) string {
	if t := meta(doc, "og:title"); t != "" {
		return t
	}
	if t := collapse(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return collapse(doc.Find("h1").First().Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func hostMatches(host string, domains ...string) bool {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func pathSegments(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
