package crawler

import "context"

// Fetcher fetches a URL and returns its parsed content plus raw markup.
// Any error means the page is skipped.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (FetchedPage, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, rawURL string) (FetchedPage, error)

// Fetch calls f(ctx, rawURL).
func (f FetcherFunc) Fetch(ctx context.Context, rawURL string) (FetchedPage, error) {
	return f(ctx, rawURL)
}
