package sources

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Defaults for the HTML search endpoint.
const (
	DefaultSearchEndpoint = "https://html.duckduckgo.com/html/"
	DefaultResultSelector = "a.result__a"
	defaultSearchResults  = 10
)

// JobSearch queries a search engine for the company's job postings. It is
// the fallback when the careers page yields nothing.
type JobSearch struct {
	client   *Client
	endpoint string
	selector string
	limit    int
}

// NewJobSearch builds the search source. Empty endpoint or selector use the
// defaults.
func NewJobSearch(client *Client, endpoint, selector string) *JobSearch {
	if endpoint == "" {
		endpoint = DefaultSearchEndpoint
	}
	if selector == "" {
		selector = DefaultResultSelector
	}
	return &JobSearch{client: client, endpoint: endpoint, selector: selector, limit: defaultSearchResults}
}

// Name implements Source.
func (s *JobSearch) Name() Name { return NameJobSearch }

// Gather implements Source.
func (s *JobSearch) Gather(ctx context.Context, req Request) (Payload, error) {
	company := strings.TrimSpace(req.Company)
	if company == "" {
		return nil, errors.New("job search: company name required")
	}
	searchURL, err := s.queryURL(company + " careers jobs")
	if err != nil {
		return nil, err
	}
	doc, pageURL, err := s.client.Document(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("job search: %w", err)
	}

	payload := JobsPayload{Source: JobsFromSearch}
	seen := make(map[string]struct{})
	doc.Find(s.selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		target, ok := resultTarget(pageURL, href)
		if !ok {
			return true
		}
		if _, dup := seen[target]; dup {
			return true
		}
		seen[target] = struct{}{}
		payload.Postings = append(payload.Postings, JobPosting{Title: collapse(sel.Text()), URL: target})
		return len(payload.Postings) < s.limit
	})
	if payload.Empty() {
		return payload, fmt.Errorf("job search results for %q: %w", company, ErrNotFound)
	}
	return payload, nil
}

func (s *JobSearch) queryURL(query string) (string, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse search endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// resultTarget resolves a result link, unwrapping redirect links that carry
// the destination in a uddg or url query parameter.
func resultTarget(pageURL *url.URL, href string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	abs := pageURL.ResolveReference(ref)
	for _, key := range []string{"uddg", "url"} {
		if wrapped := abs.Query().Get(key); wrapped != "" {
			if inner, err := url.Parse(wrapped); err == nil && inner.IsAbs() {
				abs = inner
				break
			}
		}
	}
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	abs.Fragment = ""
	return abs.String(), true
}
