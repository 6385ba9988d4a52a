package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/webintel/internal/crawler"
)

const maxJobPostings = 50

// Origins reported in JobsPayload.Source.
const (
	JobsFromCareersPage = "careers_page"
	JobsFromSearch      = "search"
)

var (
	careersKeywords   = []string{"career", "jobs", "join-us", "join us", "hiring", "work-with-us", "work with us", "openings"}
	careersProbePaths = []string{"/careers", "/jobs"}
	jobPathMarkers    = []string{"/job/", "/jobs/", "/position", "/positions/", "/opening", "/openings/", "/careers/", "/vacanc"}
	atsDomains        = []string{
		"greenhouse.io", "lever.co", "ashbyhq.com", "workable.com",
		"smartrecruiters.com", "bamboohr.com", "recruitee.com", "myworkdayjobs.com",
	}
)

// JobPosting is one advertised role.
type JobPosting struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// JobsPayload lists open roles and where they were found.
type JobsPayload struct {
	Source     string       `json:"source"`
	CareersURL string       `json:"careers_url,omitempty"`
	Postings   []JobPosting `json:"postings"`
}

// Empty reports whether no postings were found.
func (p JobsPayload) Empty() bool {
	return len(p.Postings) == 0
}

// Jobs reads postings from the company's careers page.
type Jobs struct {
	client *Client
	logger *zap.Logger
}

// NewJobs builds the jobs source.
func NewJobs(client *Client, logger *zap.Logger) *Jobs {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Jobs{client: client, logger: logger}
}

// Name implements Source.
func (j *Jobs) Name() Name { return NameJobs }

// Gather implements Source. It returns ErrNotFound when no careers page or
// no postings exist.
func (j *Jobs) Gather(ctx context.Context, req Request) (Payload, error) {
	home, homeURL, err := j.client.Document(ctx, req.SeedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch homepage: %w", err)
	}
	scope := crawler.NewDomainScope(homeURL)

	careers, careersURL, err := j.locateCareers(ctx, home, homeURL, scope)
	if err != nil {
		return JobsPayload{Source: JobsFromCareersPage}, err
	}

	payload := JobsPayload{
		Source:     JobsFromCareersPage,
		CareersURL: careersURL.String(),
		Postings:   jobPostings(careers, careersURL, scope),
	}
	if payload.Empty() {
		return payload, fmt.Errorf("job postings at %s: %w", careersURL, ErrNotFound)
	}
	return payload, nil
}

func (j *Jobs) locateCareers(
	ctx context.Context,
	home *goquery.Document,
	homeURL *url.URL,
	scope crawler.DomainScope,
) (*goquery.Document, *url.URL, error) {
	var candidates []string
	for _, a := range anchors(home, homeURL) {
		if !scope.Contains(a.URL) && !hostMatches(a.URL.Hostname(), atsDomains...) {
			continue
		}
		haystack := strings.ToLower(a.URL.Path + " " + a.Text)
		if containsAny(haystack, careersKeywords...) || hostMatches(a.URL.Hostname(), atsDomains...) {
			candidates = append(candidates, a.URL.String())
		}
	}
	origin := crawler.Origin(homeURL)
	for _, p := range careersProbePaths {
		candidates = append(candidates, origin+p)
	}

	tried := make(map[string]struct{})
	for _, candidate := range candidates {
		if _, ok := tried[candidate]; ok {
			continue
		}
		tried[candidate] = struct{}{}
		doc, final, err := j.client.Document(ctx, candidate)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			j.logger.Debug("careers candidate unavailable", zap.String("url", candidate), zap.Error(err))
			continue
		}
		return doc, final, nil
	}
	return nil, nil, fmt.Errorf("careers page: %w", ErrNotFound)
}

// jobPostings keeps links to applicant tracking systems and job-like paths
// on the company's own domain.
func jobPostings(doc *goquery.Document, pageURL *url.URL, scope crawler.DomainScope) []JobPosting {
	var out []JobPosting
	pagePath := strings.TrimSuffix(strings.ToLower(pageURL.Path), "/")
	for _, a := range anchors(doc, pageURL) {
		if len(out) >= maxJobPostings {
			break
		}
		p := strings.ToLower(a.URL.Path)
		if strings.TrimSuffix(p, "/") == pagePath && a.URL.Host == pageURL.Host {
			continue
		}
		onATS := hostMatches(a.URL.Hostname(), atsDomains...)
		switch {
		case onATS:
			// Bare board roots are listings, not postings.
			if len(pathSegments(p)) < 2 {
				continue
			}
		case !scope.Contains(a.URL) || crawler.Skipped(a.URL):
			continue
		case len(pathSegments(p)) < 2 || !containsAny(p, jobPathMarkers...):
			continue
		}
		t := a.Text
		if t == "" {
			segs := pathSegments(a.URL.Path)
			t = segs[len(segs)-1]
		}
		out = append(out, JobPosting{Title: t, URL: a.URL.String()})
	}
	return out
}
