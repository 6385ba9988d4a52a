package sources

import (
	"context"
	"fmt"
	"strings"
)

type platform struct {
	name    string
	domains []string
}

// Platforms are reported in this order.
var socialPlatforms = []platform{
	{name: "linkedin", domains: []string{"linkedin.com"}},
	{name: "twitter", domains: []string{"twitter.com", "x.com"}},
	{name: "facebook", domains: []string{"facebook.com", "fb.com"}},
	{name: "instagram", domains: []string{"instagram.com"}},
	{name: "youtube", domains: []string{"youtube.com"}},
	{name: "github", domains: []string{"github.com"}},
	{name: "tiktok", domains: []string{"tiktok.com"}},
}

var shareMarkers = []string{"/share", "/sharer", "/intent/", "/dialog/", "sharearticle"}

// SocialProfile is one platform link.
type SocialProfile struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
	Handle   string `json:"handle,omitempty"`
}

// SocialPayload lists the profiles linked from the homepage.
type SocialPayload struct {
	Profiles []SocialProfile `json:"profiles"`
}

// Empty reports whether no profiles were found.
func (p SocialPayload) Empty() bool {
	return len(p.Profiles) == 0
}

// Social finds social-network profile links on the homepage.
type Social struct {
	client *Client
}

// NewSocial builds the social source.
func NewSocial(client *Client) *Social {
	return &Social{client: client}
}

// Name implements Source.
func (s *Social) Name() Name { return NameSocial }

// Gather implements Source.
func (s *Social) Gather(ctx context.Context, req Request) (Payload, error) {
	doc, homeURL, err := s.client.Document(ctx, req.SeedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch homepage: %w", err)
	}

	found := make(map[string]SocialProfile)
	for _, a := range anchors(doc, homeURL) {
		lowerPath := strings.ToLower(a.URL.Path)
		if containsAny(lowerPath+"?"+strings.ToLower(a.URL.RawQuery), shareMarkers...) {
			continue
		}
		segs := pathSegments(a.URL.Path)
		if len(segs) == 0 {
			continue
		}
		for _, p := range socialPlatforms {
			if _, ok := found[p.name]; ok || !hostMatches(a.URL.Hostname(), p.domains...) {
				continue
			}
			found[p.name] = SocialProfile{
				Platform: p.name,
				URL:      a.URL.String(),
				Handle:   strings.TrimPrefix(segs[len(segs)-1], "@"),
			}
		}
	}

	var payload SocialPayload
	for _, p := range socialPlatforms {
		if profile, ok := found[p.name]; ok {
			payload.Profiles = append(payload.Profiles, profile)
		}
	}
	if payload.Empty() {
		return payload, fmt.Errorf("social profiles: %w", ErrNotFound)
	}
	return payload, nil
}
