package sources

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var (
	youtubeChannelPrefixes = []string{"/@", "/channel/", "/c/", "/user/"}
	vimeoReserved          = map[string]struct{}{"video": {}, "videos": {}, "channels": {}, "groups": {}, "ondemand": {}}
)

// VideoPayload describes the company's video channel.
type VideoPayload struct {
	Platform    string `json:"platform"`
	ChannelURL  string `json:"channel_url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Empty reports whether no channel was found.
func (p VideoPayload) Empty() bool {
	return p.ChannelURL == ""
}

// Video finds a YouTube or Vimeo channel linked from the homepage.
type Video struct {
	client *Client
	logger *zap.Logger
}

// NewVideo builds the video source.
func NewVideo(client *Client, logger *zap.Logger) *Video {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Video{client: client, logger: logger}
}

// Name implements Source.
func (v *Video) Name() Name { return NameVideo }

// Gather implements Source. A channel page that cannot be fetched still
// yields the bare channel link.
func (v *Video) Gather(ctx context.Context, req Request) (Payload, error) {
	doc, homeURL, err := v.client.Document(ctx, req.SeedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch homepage: %w", err)
	}

	var payload VideoPayload
	for _, a := range anchors(doc, homeURL) {
		if platform, ok := channelPlatform(a); ok {
			payload = VideoPayload{Platform: platform, ChannelURL: a.URL.String()}
			break
		}
	}
	if payload.Empty() {
		return payload, fmt.Errorf("video channel: %w", ErrNotFound)
	}

	channel, _, err := v.client.Document(ctx, payload.ChannelURL)
	if err != nil {
		v.logger.Debug("video channel page unavailable", zap.String("url", payload.ChannelURL), zap.Error(err))
		return payload, nil
	}
	payload.Title = title(channel)
	payload.Description = meta(channel, "og:description", "description")
	return payload, nil
}

func channelPlatform(a anchor) (string, bool) {
	host := a.URL.Hostname()
	p := a.URL.Path
	switch {
	case hostMatches(host, "youtube.com"):
		for _, prefix := range youtubeChannelPrefixes {
			if strings.HasPrefix(p, prefix) && len(p) > len(prefix) {
				return "youtube", true
			}
		}
	case hostMatches(host, "vimeo.com"):
		segs := pathSegments(p)
		if len(segs) == 0 {
			return "", false
		}
		if _, reserved := vimeoReserved[strings.ToLower(segs[0])]; reserved && len(segs) < 2 {
			return "", false
		}
		if segs[0] != "" && !isDigits(segs[0]) {
			return "vimeo", true
		}
	}
	return "", false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
