// Package sources implements the independent intelligence-gathering sources
// run by the orchestrator: homepage, site crawl, blog, social profiles,
// video channel, job postings and the job-search fallback.
package sources

import (
	"context"
	"errors"
)

// Name identifies a source in the bundle.
type Name string

// Known source names.
const (
	NameHomepage  Name = "homepage"
	NameCrawl     Name = "crawl"
	NameBlog      Name = "blog"
	NameSocial    Name = "social"
	NameVideo     Name = "video"
	NameJobs      Name = "jobs"
	NameJobSearch Name = "job_search"
)

// ErrNotFound marks a source that ran cleanly but found nothing.
var ErrNotFound = errors.New("nothing found")

// Request describes the company being researched.
type Request struct {
	Company string
	SeedURL string
}

// Payload is the structured result of a source.
type Payload interface {
	Empty() bool
}

// Source gathers one kind of intelligence for a request.
type Source interface {
	Name() Name
	Gather(ctx context.Context, req Request) (Payload, error)
}

// NothingFound reports whether a source result means "nothing found": an
// ErrNotFound error, or no error with an empty payload.
func NothingFound(payload Payload, err error) bool {
	if err != nil {
		return errors.Is(err, ErrNotFound)
	}
	return payload == nil || payload.Empty()
}
