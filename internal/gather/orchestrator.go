package gather

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/webintel/internal/metrics"
	"github.com/JakeFAU/webintel/internal/sources"
)

const instrumentationName = "github.com/JakeFAU/webintel/internal/gather"

// cancelGrace is how long a timed-out source may take to hand back what it
// has before it is abandoned.
const cancelGrace = 200 * time.Millisecond

var (
	// ErrUnknownSource is recorded for requested sources that are not registered.
	ErrUnknownSource = errors.New("unknown source")
	// ErrSourcePanic wraps a recovered panic.
	ErrSourcePanic = errors.New("source panicked")
)

// IDGenerator creates bundle IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock supplies bundle timestamps.
type Clock interface {
	Now() time.Time
}

// Config bounds a gathering session.
type Config struct {
	SessionTimeout time.Duration
	SourceTimeout  time.Duration
}

// DefaultConfig returns the default timeouts.
func DefaultConfig() Config {
	return Config{SessionTimeout: 2 * time.Minute, SourceTimeout: 90 * time.Second}
}

// Validate checks the timeouts.
func (c Config) Validate() error {
	if c.SessionTimeout <= 0 {
		return errors.New("gather.session_timeout must be > 0")
	}
	if c.SourceTimeout <= 0 {
		return errors.New("gather.source_timeout must be > 0")
	}
	return nil
}

// Request names the company to research. A nil Sources runs every
// registered optional source; the crawl always runs.
type Request struct {
	Company string
	SeedURL string
	Sources []sources.Name
}

// Orchestrator fans a request out to its sources and waits for all of them.
type Orchestrator struct {
	cfg      Config
	homepage sources.Source
	crawl    sources.Source
	optional map[sources.Name]sources.Source
	order    []sources.Name
	fallback sources.Source

	ids     IDGenerator
	clock   Clock
	tracer  trace.Tracer
	session metric.Float64Histogram
	logger  *zap.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithHomepage fetches the landing page alongside the sources. Its result is
// kept in Bundle.Homepage, not in the outcomes.
func WithHomepage(src sources.Source) Option {
	return func(o *Orchestrator) { o.homepage = src }
}

// WithSource registers an optional source. Registration order is the
// default run order.
func WithSource(src sources.Source) Option {
	return func(o *Orchestrator) {
		if src == nil {
			return
		}
		if _, dup := o.optional[src.Name()]; !dup {
			o.order = append(o.order, src.Name())
		}
		o.optional[src.Name()] = src
	}
}

// WithJobsFallback runs src when the jobs source finds nothing.
func WithJobsFallback(src sources.Source) Option {
	return func(o *Orchestrator) { o.fallback = src }
}

// WithIDGenerator sets the bundle ID source.
func WithIDGenerator(ids IDGenerator) Option {
	return func(o *Orchestrator) { o.ids = ids }
}

// WithClock sets the timestamp source.
func WithClock(c Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithTracerProvider sets where source spans are recorded.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) { o.tracer = tp.Tracer(instrumentationName) }
}

// WithLogger sets the orchestrator's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

type unsetIDs struct{}

func (unsetIDs) NewID() (string, error) { return "", nil }

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }

// New builds an Orchestrator around the crawl source.
func New(cfg Config, crawl sources.Source, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if crawl == nil {
		return nil, errors.New("gather: crawl source is required")
	}
	o := &Orchestrator{
		cfg:      cfg,
		crawl:    crawl,
		optional: make(map[sources.Name]sources.Source),
		ids:      unsetIDs{},
		clock:    utcClock{},
		tracer:   otel.Tracer(instrumentationName),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	session, err := otel.Meter(instrumentationName).Float64Histogram(
		"gather.session.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Wall time of a gathering session."),
	)
	if err != nil {
		return nil, fmt.Errorf("create session histogram: %w", err)
	}
	o.session = session
	return o, nil
}

// Sources lists the registered optional sources in run order.
func (o *Orchestrator) Sources() []sources.Name {
	return append([]sources.Name(nil), o.order...)
}

// Gather runs the crawl, the homepage fetch and the requested sources
// concurrently under the session timeout. It returns once every task,
// including a triggered jobs fallback, has resolved. Failures are recorded
// per source and never abort the others.
func (o *Orchestrator) Gather(ctx context.Context, req Request) Bundle {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.SessionTimeout)
	defer cancel()

	id, err := o.ids.NewID()
	if err != nil {
		o.logger.Warn("bundle id unavailable", zap.Error(err))
	}
	bundle := Bundle{
		ID:        id,
		Company:   req.Company,
		SeedURL:   req.SeedURL,
		StartedAt: o.clock.Now(),
		Outcomes:  make(map[sources.Name]SourceOutcome),
	}
	logger := o.logger.With(zap.String("bundle_id", id), zap.String("seed", req.SeedURL))
	logger.Info("gather started", zap.String("company", req.Company))
	start := time.Now()

	srcReq := sources.Request{Company: req.Company, SeedURL: req.SeedURL}
	tasks, unknown := o.plan(req.Sources)
	for _, name := range unknown {
		bundle.Outcomes[name] = Failure(name, fmt.Errorf("%w: %s", ErrUnknownSource, name))
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	if o.homepage != nil {
		g.Go(func() error {
			out := o.run(ctx, o.homepage, srcReq, logger)
			hp := Homepage{Err: out.Err}
			if p, ok := out.Payload.(sources.HomepagePayload); ok {
				hp.URL, hp.Title, hp.Content = p.URL, p.Title, p.Content
			}
			mu.Lock()
			bundle.Homepage = hp
			mu.Unlock()
			return nil
		})
	}
	for _, src := range tasks {
		src := src
		g.Go(func() error {
			out := o.run(ctx, src, srcReq, logger)
			if src.Name() == sources.NameJobs && o.fallback != nil && out.NothingFound() {
				out = o.runFallback(ctx, out, srcReq, logger)
			}
			mu.Lock()
			bundle.Outcomes[out.Source] = out
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	bundle.FinishedAt = o.clock.Now()
	elapsed := time.Since(start)
	o.session.Record(context.WithoutCancel(ctx), elapsed.Seconds())
	logger.Info("gather finished",
		zap.Int("sources", len(bundle.Outcomes)),
		zap.Any("failed", bundle.Failed()),
		zap.Duration("duration", elapsed),
	)
	return bundle
}

// plan resolves the requested names to sources, crawl first. Duplicates are
// dropped and unknown names returned separately.
func (o *Orchestrator) plan(requested []sources.Name) ([]sources.Source, []sources.Name) {
	if requested == nil {
		requested = o.order
	}
	tasks := []sources.Source{o.crawl}
	seen := map[sources.Name]struct{}{sources.NameCrawl: {}}
	var unknown []sources.Name
	for _, name := range requested {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		src, ok := o.optional[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		tasks = append(tasks, src)
	}
	return tasks, unknown
}

// runFallback replaces a jobs outcome that found nothing with the fallback's
// result when the fallback succeeds.
func (o *Orchestrator) runFallback(
	ctx context.Context,
	primary SourceOutcome,
	req sources.Request,
	logger *zap.Logger,
) SourceOutcome {
	out := o.run(ctx, o.fallback, req, logger)
	if !out.OK() || out.NothingFound() {
		metrics.ObserveFallback(string(primary.Source), metrics.StatusFailure)
		logger.Info("jobs fallback found nothing", zap.Error(out.Err))
		return primary
	}
	metrics.ObserveFallback(string(primary.Source), metrics.StatusSuccess)
	out.Source = primary.Source
	out.UsedFallback = true
	out.Duration += primary.Duration
	return out
}

type gathered struct {
	payload sources.Payload
	err     error
}

// run executes one source under the source timeout inside its own span. A
// source that ignores cancellation is abandoned after cancelGrace.
func (o *Orchestrator) run(
	ctx context.Context,
	src sources.Source,
	req sources.Request,
	logger *zap.Logger,
) SourceOutcome {
	name := src.Name()
	ctx, cancel := context.WithTimeout(ctx, o.cfg.SourceTimeout)
	defer cancel()
	ctx, span := o.tracer.Start(ctx, "gather."+string(name),
		trace.WithAttributes(attribute.String("source", string(name))))
	defer span.End()

	start := time.Now()
	done := make(chan gathered, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- gathered{err: fmt.Errorf("%w: %v", ErrSourcePanic, r)}
			}
		}()
		payload, err := src.Gather(ctx, req)
		done <- gathered{payload: payload, err: err}
	}()

	var res gathered
	select {
	case res = <-done:
	case <-ctx.Done():
		grace := time.NewTimer(cancelGrace)
		select {
		case res = <-done:
		case <-grace.C:
			res = gathered{err: fmt.Errorf("%s: %w", name, ctx.Err())}
		}
		grace.Stop()
	}

	var out SourceOutcome
	if res.err != nil {
		out = Failure(name, res.err)
		if res.payload != nil && !res.payload.Empty() {
			out.Payload = res.payload
		}
	} else {
		out = Success(name, res.payload)
	}
	out.Duration = time.Since(start)

	span.SetAttributes(attribute.String("status", string(out.Status())))
	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Err.Error())
	}
	metrics.ObserveSource(string(name), string(out.Status()), out.Duration)
	logger.Debug("source resolved",
		zap.String("source", string(name)),
		zap.String("status", string(out.Status())),
		zap.Duration("duration", out.Duration),
		zap.Error(out.Err),
	)
	return out
}
