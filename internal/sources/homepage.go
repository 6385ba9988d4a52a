package sources

import (
	"context"
	"fmt"

	"github.com/JakeFAU/webintel/internal/crawler"
)

// HomepagePayload is the landing page's text.
type HomepagePayload struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Empty reports whether the homepage had no text.
func (p HomepagePayload) Empty() bool {
	return p.Content == ""
}

// Homepage fetches the seed URL and extracts its text.
type Homepage struct {
	client *Client
}

// NewHomepage builds the homepage source.
func NewHomepage(client *Client) *Homepage {
	return &Homepage{client: client}
}

// Name implements Source.
func (h *Homepage) Name() Name { return NameHomepage }

// Gather implements Source.
func (h *Homepage) Gather(ctx context.Context, req Request) (Payload, error) {
	resp, err := h.client.Get(ctx, req.SeedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch homepage: %w", err)
	}
	pageTitle, text, err := crawler.ExtractContent(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("extract homepage: %w", err)
	}
	return HomepagePayload{URL: resp.URL.String(), Title: pageTitle, Content: text}, nil
}
