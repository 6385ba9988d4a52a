package telemetry

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// Init installs global providers, so these tests run sequentially.

func TestInitRecordsSpansAndMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder := tracetest.NewSpanRecorder()

	providers, err := Init(context.Background(), Config{
		ServiceName:    "webintel-test",
		Version:        "v0.0.1",
		Registerer:     registry,
		SpanProcessors: []sdktrace.SpanProcessor{recorder},
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	_, span := otel.Tracer("test").Start(context.Background(), "gather.blog")
	span.End()
	require.Len(t, recorder.Ended(), 1)
	require.Equal(t, "gather.blog", recorder.Ended()[0].Name())

	counter, err := otel.Meter("test").Int64Counter("bundles")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	families, err := registry.Gather()
	require.NoError(t, err)
	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	require.Contains(t, strings.Join(names, ","), "bundles")
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.ErrorContains(t, err, "service name")
}

func TestShutdownNil(t *testing.T) {
	var p *Providers
	require.NoError(t, p.Shutdown(context.Background()))
}
