package otelgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kgraph-ai/kgraph/graph"
	"github.com/kgraph-ai/kgraph/graph/graphtest"
	"github.com/kgraph-ai/kgraph/graph/memgraph"
)

func TestConformance(t *testing.T) {
	// The decorator must be indistinguishable from the backend it wraps.
	graphtest.Run(t, func(t *testing.T) graph.Backend {
		tp := sdktrace.NewTracerProvider()
		t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

		b, err := Wrap(memgraph.New(),
			WithTracerProvider(tp),
			WithMeterProvider(noop.NewMeterProvider()))
		require.NoError(t, err)
		require.NoError(t, b.Initialize(context.Background()))
		return b
	})
}

func TestSpansRecorded(t *testing.T) {
	ctx := context.Background()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(ctx)

	b, err := Wrap(memgraph.New(), WithTracerProvider(tp))
	require.NoError(t, err)

	require.NoError(t, b.CreateNode(ctx, graph.Node{Label: graph.LabelTopic, ID: "ai"}))
	_, err = b.GetNode(ctx, graph.LabelTopic, "ai")
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "graph.create_node", spans[0].Name)
	assert.Equal(t, "graph.get_node", spans[1].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)

	found := false
	for _, attr := range spans[0].Attributes {
		if string(attr.Key) == "graph.label" {
			assert.Equal(t, "Topic", attr.Value.AsString())
			found = true
		}
	}
	assert.True(t, found, "span should carry the node label")
}

func TestErrorSetsSpanStatus(t *testing.T) {
	ctx := context.Background()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(ctx)

	mem := memgraph.New()
	b, err := Wrap(mem, WithTracerProvider(tp))
	require.NoError(t, err)
	require.NoError(t, mem.Close(ctx))

	_, err = b.GetNode(ctx, graph.LabelTopic, "ai")
	assert.ErrorIs(t, err, graph.ErrClosed)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	require.Len(t, spans[0].Events, 1, "error should be recorded as a span event")
}

func TestUnconfiguredPassThrough(t *testing.T) {
	ctx := context.Background()
	b, err := Wrap(memgraph.New())
	require.NoError(t, err)

	require.NoError(t, b.CreateNode(ctx, graph.Node{Label: graph.LabelTopic, ID: "ai"}))
	n, err := b.GetNode(ctx, graph.LabelTopic, "ai")
	require.NoError(t, err)
	require.NotNil(t, n)
}
