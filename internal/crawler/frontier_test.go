package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrontierOrdering(t *testing.T) {
	t.Parallel()

	f := NewFrontier(nil)
	require.Equal(t, 2, f.PushBack(
		FrontierEntry{URL: "https://example.com/sitemap-a"},
		FrontierEntry{URL: "https://example.com/sitemap-b"},
	))
	require.Equal(t, 2, f.PushFront(
		FrontierEntry{URL: "https://example.com/nav-1"},
		FrontierEntry{URL: "https://example.com/nav-2"},
	))

	var order []string
	for {
		entry, ok := f.Pop()
		if !ok {
			break
		}
		order = append(order, entry.URL)
	}
	require.Equal(t, []string{
		"https://example.com/nav-1",
		"https://example.com/nav-2",
		"https://example.com/sitemap-a",
		"https://example.com/sitemap-b",
	}, order)
	require.Zero(t, f.Len())
}

func TestFrontierDeduplicates(t *testing.T) {
	t.Parallel()

	visited := NewVisitedSet()
	require.True(t, visited.Add("https://example.com/"))
	f := NewFrontier(visited)

	accepted := f.PushBack(
		FrontierEntry{URL: "https://example.com"},
		FrontierEntry{URL: "https://example.com/about/"},
		FrontierEntry{URL: "https://EXAMPLE.com/about#team"},
		FrontierEntry{URL: "https://example.com/pricing", Depth: 1},
	)
	require.Equal(t, 2, accepted)
	require.Zero(t, f.PushFront(FrontierEntry{URL: "https://example.com/pricing"}))

	entry, ok := f.Pop()
	require.True(t, ok)
	require.Equal(t, FrontierEntry{URL: "https://example.com/about", Depth: 0}, entry)
}

func TestVisitedSet(t *testing.T) {
	t.Parallel()

	v := NewVisitedSet()
	require.True(t, v.Add("https://example.com/a"))
	require.False(t, v.Add("https://example.com/a/"))
	require.False(t, v.Add("https://example.com/a#frag"))
	require.True(t, v.Contains("HTTPS://example.com/a"))
	require.False(t, v.Add("http://[::1"))
	require.Equal(t, 1, v.Len())
}
