package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/singleflight"
)

const defaultMaxBodyBytes = 5 << 20

// errStatus is wrapped by Get for non-2xx responses.
var errStatus = errors.New("unexpected status")

// Response is a fetched body plus the URL it was served from.
type Response struct {
	URL  *url.URL
	Body []byte
}

// Client performs GETs over the shared pooled client. Concurrent requests for
// the same URL share one round trip.
type Client struct {
	http    *http.Client
	maxBody int64
	group   singleflight.Group
}

// NewClient wraps httpClient. maxBody caps bytes read per response.
func NewClient(httpClient *http.Client, maxBody int64) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	return &Client{http: httpClient, maxBody: maxBody}
}

// Get fetches rawURL and fails on transport errors or non-2xx statuses.
func (c *Client) Get(ctx context.Context, rawURL string) (Response, error) {
	ch := c.group.DoChan(rawURL, func() (any, error) {
		return c.get(context.WithoutCancel(ctx), rawURL)
	})
	select {
	case <-ctx.Done():
		return Response{}, fmt.Errorf("get %s: %w", rawURL, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return Response{}, res.Err
		}
		resp := res.Val.(Response)
		// Each caller gets its own copy of the body.
		return Response{URL: resp.URL, Body: append([]byte(nil), resp.Body...)}, nil
	}
}

// Document fetches rawURL and parses it as HTML.
func (c *Client) Document(ctx context.Context, rawURL string) (*goquery.Document, *url.URL, error) {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, nil, err
	}
	doc, err := parseDocument(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return doc, resp.URL, nil
}

func (c *Client) get(ctx context.Context, rawURL string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Response{}, fmt.Errorf("get %s: %w %d", rawURL, errStatus, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return Response{}, fmt.Errorf("read %s: %w", rawURL, err)
	}
	final := resp.Request.URL
	if final == nil {
		final = req.URL
	}
	return Response{URL: final, Body: body}, nil
}
