// Package otelgraph decorates a graph backend with OpenTelemetry tracing
// and metrics. Every backend call becomes a span named graph.<operation>
// and feeds a call counter and a duration histogram.
//
// The decorator is transparent: it forwards every call unchanged and never
// alters results or errors. When neither a tracer nor a meter is
// configured it degrades to plain pass-through.
package otelgraph

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kgraph-ai/kgraph/graph"
)

const instrumentationName = "github.com/kgraph-ai/kgraph/graph/otelgraph"

// Option configures the decorator.
type Option func(*Backend)

// WithTracerProvider enables span creation via the given provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(b *Backend) {
		if tp != nil {
			b.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// WithMeterProvider enables call metrics via the given provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(b *Backend) {
		if mp != nil {
			b.meter = mp.Meter(instrumentationName)
		}
	}
}

// Backend wraps another graph.Backend with instrumentation.
type Backend struct {
	next   graph.Backend
	tracer trace.Tracer
	meter  metric.Meter

	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

var _ graph.Backend = (*Backend)(nil)

// Wrap decorates next. Instrument creation failures are returned so a
// misconfigured meter is caught at startup rather than silently dropped.
func Wrap(next graph.Backend, opts ...Option) (*Backend, error) {
	b := &Backend{next: next}
	for _, opt := range opts {
		opt(b)
	}

	if b.meter != nil {
		var err error
		b.calls, err = b.meter.Int64Counter(
			"graph.backend.calls",
			metric.WithDescription("Number of graph backend calls"),
			metric.WithUnit("1"),
		)
		if err != nil {
			return nil, fmt.Errorf("otelgraph: create call counter: %w", err)
		}
		b.duration, err = b.meter.Float64Histogram(
			"graph.backend.duration",
			metric.WithDescription("Graph backend call duration in milliseconds"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			return nil, fmt.Errorf("otelgraph: create duration histogram: %w", err)
		}
	}
	return b, nil
}

// instrument runs fn inside a span and records call metrics. The returned
// context carries the span so nested backend work joins the trace.
func (b *Backend) instrument(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(ctx context.Context) error) error {
	if b.tracer == nil && b.meter == nil {
		return fn(ctx)
	}

	var span trace.Span
	if b.tracer != nil {
		ctx, span = b.tracer.Start(ctx, "graph."+op, trace.WithAttributes(attrs...))
		defer span.End()
	}

	start := time.Now()
	err := fn(ctx)

	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
	if b.meter != nil {
		attrs = append(attrs,
			attribute.String("operation", op),
			attribute.Bool("error", err != nil),
		)
		opts := metric.WithAttributes(attrs...)
		b.calls.Add(ctx, 1, opts)
		b.duration.Record(ctx, float64(time.Since(start).Milliseconds()), opts)
	}
	return err
}

func labelAttr(l graph.Label) attribute.KeyValue {
	return attribute.String("graph.label", string(l))
}

func edgeAttr(t graph.EdgeType) attribute.KeyValue {
	return attribute.String("graph.edge_type", string(t))
}

func (b *Backend) Initialize(ctx context.Context) error {
	return b.instrument(ctx, "initialize", nil, b.next.Initialize)
}

func (b *Backend) Close(ctx context.Context) error {
	return b.instrument(ctx, "close", nil, b.next.Close)
}

func (b *Backend) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return b.instrument(ctx, "with_transaction", nil, func(ctx context.Context) error {
		return b.next.WithTransaction(ctx, fn)
	})
}

func (b *Backend) CreateNode(ctx context.Context, n graph.Node) error {
	attrs := []attribute.KeyValue{labelAttr(n.Label)}
	return b.instrument(ctx, "create_node", attrs, func(ctx context.Context) error {
		return b.next.CreateNode(ctx, n)
	})
}

func (b *Backend) MergeNode(ctx context.Context, label graph.Label, id string, props map[string]any) error {
	attrs := []attribute.KeyValue{labelAttr(label)}
	return b.instrument(ctx, "merge_node", attrs, func(ctx context.Context) error {
		return b.next.MergeNode(ctx, label, id, props)
	})
}

func (b *Backend) CreateEdge(ctx context.Context, e graph.Edge) error {
	attrs := []attribute.KeyValue{edgeAttr(e.Type)}
	return b.instrument(ctx, "create_edge", attrs, func(ctx context.Context) error {
		return b.next.CreateEdge(ctx, e)
	})
}

func (b *Backend) MergeEdge(ctx context.Context, e graph.Edge) error {
	attrs := []attribute.KeyValue{edgeAttr(e.Type)}
	return b.instrument(ctx, "merge_edge", attrs, func(ctx context.Context) error {
		return b.next.MergeEdge(ctx, e)
	})
}

func (b *Backend) IncrementEdgeProperty(ctx context.Context, t graph.EdgeType, from, to, property string, delta float64) error {
	attrs := []attribute.KeyValue{edgeAttr(t)}
	return b.instrument(ctx, "increment_edge_property", attrs, func(ctx context.Context) error {
		return b.next.IncrementEdgeProperty(ctx, t, from, to, property, delta)
	})
}

func (b *Backend) GetNode(ctx context.Context, label graph.Label, id string) (*graph.Node, error) {
	var node *graph.Node
	attrs := []attribute.KeyValue{labelAttr(label)}
	err := b.instrument(ctx, "get_node", attrs, func(ctx context.Context) error {
		var err error
		node, err = b.next.GetNode(ctx, label, id)
		return err
	})
	return node, err
}

func (b *Backend) FindNodes(ctx context.Context, label graph.Label, filter map[string]any) ([]graph.Node, error) {
	var nodes []graph.Node
	attrs := []attribute.KeyValue{labelAttr(label)}
	err := b.instrument(ctx, "find_nodes", attrs, func(ctx context.Context) error {
		var err error
		nodes, err = b.next.FindNodes(ctx, label, filter)
		return err
	})
	return nodes, err
}

func (b *Backend) GetChildren(ctx context.Context, parentLabel graph.Label, parentID string, edgeType graph.EdgeType, childLabel graph.Label) ([]graph.Node, error) {
	var nodes []graph.Node
	attrs := []attribute.KeyValue{labelAttr(parentLabel), edgeAttr(edgeType)}
	err := b.instrument(ctx, "get_children", attrs, func(ctx context.Context) error {
		var err error
		nodes, err = b.next.GetChildren(ctx, parentLabel, parentID, edgeType, childLabel)
		return err
	})
	return nodes, err
}

func (b *Backend) GetRoots(ctx context.Context, label graph.Label, incoming graph.EdgeType) ([]graph.Node, error) {
	var nodes []graph.Node
	attrs := []attribute.KeyValue{labelAttr(label), edgeAttr(incoming)}
	err := b.instrument(ctx, "get_roots", attrs, func(ctx context.Context) error {
		var err error
		nodes, err = b.next.GetRoots(ctx, label, incoming)
		return err
	})
	return nodes, err
}

func (b *Backend) GetEdges(ctx context.Context, nodeID string, edgeType graph.EdgeType, dir graph.Direction) ([]graph.Edge, error) {
	var edges []graph.Edge
	attrs := []attribute.KeyValue{edgeAttr(edgeType), attribute.String("graph.direction", string(dir))}
	err := b.instrument(ctx, "get_edges", attrs, func(ctx context.Context) error {
		var err error
		edges, err = b.next.GetEdges(ctx, nodeID, edgeType, dir)
		return err
	})
	return edges, err
}

func (b *Backend) NodeCount(ctx context.Context, label graph.Label) (int, error) {
	var count int
	attrs := []attribute.KeyValue{labelAttr(label)}
	err := b.instrument(ctx, "node_count", attrs, func(ctx context.Context) error {
		var err error
		count, err = b.next.NodeCount(ctx, label)
		return err
	})
	return count, err
}

func (b *Backend) EdgeCount(ctx context.Context, edgeType graph.EdgeType) (int, error) {
	var count int
	attrs := []attribute.KeyValue{edgeAttr(edgeType)}
	err := b.instrument(ctx, "edge_count", attrs, func(ctx context.Context) error {
		var err error
		count, err = b.next.EdgeCount(ctx, edgeType)
		return err
	})
	return count, err
}

func (b *Backend) AggregateOverEdge(ctx context.Context, targetLabel graph.Label, targetID string, edgeType graph.EdgeType, sourceLabel graph.Label, metrics []graph.Metric) (map[graph.Metric]float64, error) {
	var out map[graph.Metric]float64
	attrs := []attribute.KeyValue{labelAttr(targetLabel), edgeAttr(edgeType)}
	err := b.instrument(ctx, "aggregate_over_edge", attrs, func(ctx context.Context) error {
		var err error
		out, err = b.next.AggregateOverEdge(ctx, targetLabel, targetID, edgeType, sourceLabel, metrics)
		return err
	})
	return out, err
}

func (b *Backend) AggregateGrouped(ctx context.Context, parentLabel graph.Label, parentID string, parentToChild graph.EdgeType, childLabel graph.Label, childToLeaf graph.EdgeType, leafLabel graph.Label, metrics []graph.Metric) (map[string]map[graph.Metric]float64, error) {
	var out map[string]map[graph.Metric]float64
	attrs := []attribute.KeyValue{labelAttr(parentLabel), edgeAttr(parentToChild)}
	err := b.instrument(ctx, "aggregate_grouped", attrs, func(ctx context.Context) error {
		var err error
		out, err = b.next.AggregateGrouped(ctx, parentLabel, parentID, parentToChild, childLabel, childToLeaf, leafLabel, metrics)
		return err
	})
	return out, err
}

func (b *Backend) Traverse(ctx context.Context, startID string, edgeType graph.EdgeType, dir graph.Direction, maxDepth int) ([]graph.Path, error) {
	var paths []graph.Path
	attrs := []attribute.KeyValue{edgeAttr(edgeType), attribute.String("graph.direction", string(dir))}
	err := b.instrument(ctx, "traverse", attrs, func(ctx context.Context) error {
		var err error
		paths, err = b.next.Traverse(ctx, startID, edgeType, dir, maxDepth)
		return err
	})
	return paths, err
}

func (b *Backend) ShortestPath(ctx context.Context, fromID, toID string, edgeType graph.EdgeType) (*graph.Path, error) {
	var path *graph.Path
	attrs := []attribute.KeyValue{edgeAttr(edgeType)}
	err := b.instrument(ctx, "shortest_path", attrs, func(ctx context.Context) error {
		var err error
		path, err = b.next.ShortestPath(ctx, fromID, toID, edgeType)
		return err
	})
	return path, err
}
