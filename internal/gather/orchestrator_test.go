package gather

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/JakeFAU/webintel/internal/crawler"
	"github.com/JakeFAU/webintel/internal/sources"
)

type stubSource struct {
	name      sources.Name
	payload   sources.Payload
	err       error
	delay     time.Duration
	ignoreCtx bool
	panicMsg  string
	calls     atomic.Int32
}

func (s *stubSource) Name() sources.Name { return s.name }

func (s *stubSource) Gather(ctx context.Context, _ sources.Request) (sources.Payload, error) {
	s.calls.Add(1)
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.delay > 0 {
		if s.ignoreCtx {
			time.Sleep(s.delay)
		} else {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				return s.payload, ctx.Err()
			}
		}
	}
	return s.payload, s.err
}

type mockIDs struct{ mock.Mock }

func (m *mockIDs) NewID() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

type mockClock struct{ mock.Mock }

func (m *mockClock) Now() time.Time {
	return m.Called().Get(0).(time.Time)
}

func crawlStub() *stubSource {
	return &stubSource{
		name:    sources.NameCrawl,
		payload: crawler.CrawlResult{BaseURL: "https://acme.test/", Pages: []crawler.PageRecord{{URL: "https://acme.test/"}}},
	}
}

func jobsPayload(from string, titles ...string) sources.JobsPayload {
	p := sources.JobsPayload{Source: from}
	for _, t := range titles {
		p.Postings = append(p.Postings, sources.JobPosting{Title: t, URL: "https://acme.test/careers/" + t})
	}
	return p
}

func newOrchestrator(t *testing.T, cfg Config, crawl sources.Source, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := New(cfg, crawl, opts...)
	require.NoError(t, err)
	return o
}

func fastConfig() Config {
	return Config{SessionTimeout: 5 * time.Second, SourceTimeout: 100 * time.Millisecond}
}

func TestGatherIsolatesTimeouts(t *testing.T) {
	t.Parallel()

	blog := &stubSource{name: sources.NameBlog, payload: sources.BlogPayload{Posts: []sources.BlogPost{{Title: "p"}}}}
	social := &stubSource{name: sources.NameSocial, delay: 2 * time.Second, ignoreCtx: true}
	video := &stubSource{name: sources.NameVideo, delay: 2 * time.Second}
	jobs := &stubSource{name: sources.NameJobs, payload: jobsPayload(sources.JobsFromCareersPage, "eng")}

	o := newOrchestrator(t, fastConfig(), crawlStub(),
		WithSource(blog), WithSource(social), WithSource(video), WithSource(jobs))

	start := time.Now()
	bundle := o.Gather(context.Background(), Request{Company: "Acme", SeedURL: "https://acme.test/"})
	require.Less(t, time.Since(start), time.Second)

	require.Len(t, bundle.Outcomes, 5)
	for _, name := range []sources.Name{sources.NameCrawl, sources.NameBlog, sources.NameJobs} {
		out, ok := bundle.Outcome(name)
		require.True(t, ok, name)
		require.True(t, out.OK(), name)
	}
	for _, name := range []sources.Name{sources.NameSocial, sources.NameVideo} {
		out := bundle.Outcomes[name]
		require.False(t, out.OK(), name)
		require.ErrorIs(t, out.Err, context.DeadlineExceeded, name)
	}
	require.Equal(t, []sources.Name{sources.NameSocial, sources.NameVideo}, bundle.Failed())
}

func TestGatherPartialFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	o := newOrchestrator(t, fastConfig(), crawlStub(),
		WithSource(&stubSource{name: sources.NameBlog, err: boom}),
		WithSource(&stubSource{name: sources.NameSocial, panicMsg: "nil map"}),
		WithSource(&stubSource{name: sources.NameVideo, payload: sources.VideoPayload{ChannelURL: "https://vimeo.com/acme"}}),
	)

	bundle := o.Gather(context.Background(), Request{SeedURL: "https://acme.test/"})
	require.Len(t, bundle.Outcomes, 4)
	require.ErrorIs(t, bundle.Outcomes[sources.NameBlog].Err, boom)
	require.ErrorIs(t, bundle.Outcomes[sources.NameSocial].Err, ErrSourcePanic)
	require.ErrorContains(t, bundle.Outcomes[sources.NameSocial].Err, "nil map")
	require.True(t, bundle.Outcomes[sources.NameVideo].OK())
	require.True(t, bundle.Outcomes[sources.NameCrawl].OK())

	result, ok := bundle.CrawlResult()
	require.True(t, ok)
	require.Len(t, result.Pages, 1)
}

func TestGatherAllFailing(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, fastConfig(),
		&stubSource{name: sources.NameCrawl, err: crawler.ErrInvalidSeed},
		WithSource(&stubSource{name: sources.NameBlog, err: errors.New("down")}),
	)
	bundle := o.Gather(context.Background(), Request{SeedURL: "ftp://acme.test"})
	require.Len(t, bundle.Outcomes, 2)
	require.Len(t, bundle.Failed(), 2)
	_, ok := bundle.CrawlResult()
	require.False(t, ok)
}

func TestJobsFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		jobs         *stubSource
		fallback     *stubSource
		wantCalls    int32
		wantFallback bool
		wantOK       bool
		wantFrom     string
	}{
		{
			name:         "not found replaced by search",
			jobs:         &stubSource{name: sources.NameJobs, err: sources.ErrNotFound},
			fallback:     &stubSource{name: sources.NameJobSearch, payload: jobsPayload(sources.JobsFromSearch, "pm")},
			wantCalls:    1,
			wantFallback: true,
			wantOK:       true,
			wantFrom:     sources.JobsFromSearch,
		},
		{
			name:         "empty payload replaced by search",
			jobs:         &stubSource{name: sources.NameJobs, payload: sources.JobsPayload{}},
			fallback:     &stubSource{name: sources.NameJobSearch, payload: jobsPayload(sources.JobsFromSearch, "pm")},
			wantCalls:    1,
			wantFallback: true,
			wantOK:       true,
			wantFrom:     sources.JobsFromSearch,
		},
		{
			name:      "failed search keeps original",
			jobs:      &stubSource{name: sources.NameJobs, err: sources.ErrNotFound},
			fallback:  &stubSource{name: sources.NameJobSearch, err: errors.New("search blocked")},
			wantCalls: 1,
		},
		{
			name:      "empty search keeps original",
			jobs:      &stubSource{name: sources.NameJobs, err: sources.ErrNotFound},
			fallback:  &stubSource{name: sources.NameJobSearch, payload: sources.JobsPayload{}},
			wantCalls: 1,
		},
		{
			name:     "postings found skip search",
			jobs:     &stubSource{name: sources.NameJobs, payload: jobsPayload(sources.JobsFromCareersPage, "eng")},
			fallback: &stubSource{name: sources.NameJobSearch, payload: jobsPayload(sources.JobsFromSearch, "pm")},
			wantOK:   true,
			wantFrom: sources.JobsFromCareersPage,
		},
		{
			name:     "real failure skips search",
			jobs:     &stubSource{name: sources.NameJobs, err: errors.New("tls handshake")},
			fallback: &stubSource{name: sources.NameJobSearch, payload: jobsPayload(sources.JobsFromSearch, "pm")},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			o := newOrchestrator(t, fastConfig(), crawlStub(), WithSource(tt.jobs), WithJobsFallback(tt.fallback))
			bundle := o.Gather(context.Background(), Request{Company: "Acme", SeedURL: "https://acme.test/"})

			require.Len(t, bundle.Outcomes, 2)
			require.Equal(t, tt.wantCalls, tt.fallback.calls.Load())
			out := bundle.Outcomes[sources.NameJobs]
			require.Equal(t, sources.NameJobs, out.Source)
			require.Equal(t, tt.wantFallback, out.UsedFallback)
			require.Equal(t, tt.wantOK, out.OK())
			if tt.wantFrom != "" {
				require.Equal(t, tt.wantFrom, out.Payload.(sources.JobsPayload).Source)
			}
			if !tt.wantOK && tt.jobs.err != nil {
				require.ErrorIs(t, out.Err, tt.jobs.err)
			}
		})
	}
}

func TestGatherRequestedSources(t *testing.T) {
	t.Parallel()

	blog := &stubSource{name: sources.NameBlog, payload: sources.BlogPayload{Posts: []sources.BlogPost{{Title: "p"}}}}
	social := &stubSource{name: sources.NameSocial, payload: sources.SocialPayload{}}
	o := newOrchestrator(t, fastConfig(), crawlStub(), WithSource(blog), WithSource(social))
	require.Equal(t, []sources.Name{sources.NameBlog, sources.NameSocial}, o.Sources())

	bundle := o.Gather(context.Background(), Request{
		SeedURL: "https://acme.test/",
		Sources: []sources.Name{sources.NameBlog, sources.NameBlog, sources.NameCrawl, "weather"},
	})
	require.Len(t, bundle.Outcomes, 3)
	require.EqualValues(t, 1, blog.calls.Load())
	require.Zero(t, social.calls.Load())
	require.ErrorIs(t, bundle.Outcomes["weather"].Err, ErrUnknownSource)

	bundle = o.Gather(context.Background(), Request{SeedURL: "https://acme.test/", Sources: []sources.Name{}})
	require.Len(t, bundle.Outcomes, 1)
	require.Contains(t, bundle.Outcomes, sources.NameCrawl)
}

func TestGatherHomepage(t *testing.T) {
	t.Parallel()

	hp := &stubSource{name: sources.NameHomepage, payload: sources.HomepagePayload{
		URL: "https://acme.test/", Title: "Acme", Content: "We make widgets.",
	}}
	o := newOrchestrator(t, fastConfig(), crawlStub(), WithHomepage(hp))
	bundle := o.Gather(context.Background(), Request{SeedURL: "https://acme.test/"})
	require.Equal(t, "We make widgets.", bundle.HomepageContent())
	require.Equal(t, "Acme", bundle.Homepage.Title)
	require.NotContains(t, bundle.Outcomes, sources.NameHomepage)

	failing := &stubSource{name: sources.NameHomepage, err: errors.New("refused")}
	o = newOrchestrator(t, fastConfig(), crawlStub(), WithHomepage(failing))
	bundle = o.Gather(context.Background(), Request{SeedURL: "https://acme.test/"})
	require.Empty(t, bundle.HomepageContent())
	require.ErrorContains(t, bundle.Homepage.Err, "refused")
}

func TestGatherKeepsPartialCrawl(t *testing.T) {
	t.Parallel()

	partial := crawler.CrawlResult{BaseURL: "https://acme.test/", Pages: []crawler.PageRecord{{URL: "https://acme.test/"}}}
	crawl := &stubSource{name: sources.NameCrawl, payload: partial, delay: time.Second}
	o := newOrchestrator(t, fastConfig(), crawl)

	bundle := o.Gather(context.Background(), Request{SeedURL: "https://acme.test/"})
	out := bundle.Outcomes[sources.NameCrawl]
	require.False(t, out.OK())
	require.ErrorIs(t, out.Err, context.DeadlineExceeded)

	result, ok := bundle.CrawlResult()
	require.True(t, ok)
	require.Equal(t, partial, result)
}

func TestGatherSessionTimeout(t *testing.T) {
	t.Parallel()

	cfg := Config{SessionTimeout: 100 * time.Millisecond, SourceTimeout: time.Hour}
	o := newOrchestrator(t, cfg, crawlStub(),
		WithSource(&stubSource{name: sources.NameBlog, delay: time.Hour}))

	start := time.Now()
	bundle := o.Gather(context.Background(), Request{SeedURL: "https://acme.test/"})
	require.Less(t, time.Since(start), time.Second)
	require.ErrorIs(t, bundle.Outcomes[sources.NameBlog].Err, context.DeadlineExceeded)
	require.True(t, bundle.Outcomes[sources.NameCrawl].OK())
}

func TestGatherRecordsSpans(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	o := newOrchestrator(t, fastConfig(), crawlStub(),
		WithTracerProvider(tp),
		WithSource(&stubSource{name: sources.NameBlog, err: errors.New("down")}),
	)
	o.Gather(context.Background(), Request{SeedURL: "https://acme.test/"})

	status := make(map[string]codes.Code)
	for _, span := range recorder.Ended() {
		status[span.Name()] = span.Status().Code
	}
	require.Equal(t, map[string]codes.Code{
		"gather.crawl": codes.Unset,
		"gather.blog":  codes.Error,
	}, status)
}

func TestGatherStampsBundle(t *testing.T) {
	t.Parallel()

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	finished := started.Add(time.Minute)
	clock := &mockClock{}
	clock.On("Now").Return(started).Once()
	clock.On("Now").Return(finished).Once()
	ids := &mockIDs{}
	ids.On("NewID").Return("bundle-1", nil).Once()

	o := newOrchestrator(t, fastConfig(), crawlStub(), WithClock(clock), WithIDGenerator(ids))
	bundle := o.Gather(context.Background(), Request{Company: "Acme", SeedURL: "https://acme.test/"})

	require.Equal(t, "bundle-1", bundle.ID)
	require.Equal(t, "Acme", bundle.Company)
	require.Equal(t, started, bundle.StartedAt)
	require.Equal(t, finished, bundle.FinishedAt)
	clock.AssertExpectations(t)
	ids.AssertExpectations(t)
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(Config{SourceTimeout: time.Second}, crawlStub())
	require.ErrorContains(t, err, "gather.session_timeout")

	_, err = New(Config{SessionTimeout: time.Second}, crawlStub())
	require.ErrorContains(t, err, "gather.source_timeout")

	_, err = New(DefaultConfig(), nil)
	require.ErrorContains(t, err, "crawl source is required")
}
