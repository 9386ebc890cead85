// Package memgraph provides the reference in-memory graph backend.
//
// It keeps three structures: a primary map from (label, id) to node, an
// insertion-ordered edge list, and an edge index keyed by
// "out:{from}:{type}" and "in:{to}:{type}" for O(1) neighbor lookup. The
// backend is volatile: Close discards all state. Property maps are copied
// both on write and on read, so callers cannot mutate stored state by
// retaining references.
package memgraph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kgraph-ai/kgraph/graph"
)

type nodeKey struct {
	label graph.Label
	id    string
}

// Backend is the in-memory reference implementation of graph.Backend. It is
// safe for concurrent use; the domain layer is single-writer but reads may
// come from other goroutines.
type Backend struct {
	mu     sync.RWMutex
	nodes  map[nodeKey]*graph.Node
	edges  []*graph.Edge
	index  map[string][]*graph.Edge
	closed bool
}

var _ graph.Backend = (*Backend)(nil)

// New returns an initialized in-memory backend.
func New() *Backend {
	b := &Backend{}
	b.reset()
	return b
}

func (b *Backend) reset() {
	b.nodes = make(map[nodeKey]*graph.Node)
	b.edges = nil
	b.index = make(map[string][]*graph.Edge)
}

func indexKey(dir graph.Direction, endpoint string, t graph.EdgeType) string {
	return fmt.Sprintf("%s:%s:%s", dir, endpoint, t)
}

// Initialize prepares the backend. Reopening a closed backend starts empty.
func (b *Backend) Initialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		b.reset()
		b.closed = false
	}
	return nil
}

// Close discards all state.
func (b *Backend) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
	b.closed = true
	return nil
}

// WithTransaction is a pass-through; the in-memory backend has no
// multi-statement atomicity.
func (b *Backend) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	return fn(ctx)
}

func (b *Backend) checkOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return graph.ErrClosed
	}
	return nil
}

func (b *Backend) CreateNode(ctx context.Context, n graph.Node) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return graph.ErrClosed
	}
	b.nodes[nodeKey{n.Label, n.ID}] = n.Clone()
	return nil
}

func (b *Backend) MergeNode(ctx context.Context, label graph.Label, id string, props map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return graph.ErrClosed
	}
	key := nodeKey{label, id}
	if existing, ok := b.nodes[key]; ok {
		existing.Properties = graph.MergeProps(existing.Properties, graph.CloneProps(props))
		return nil
	}
	b.nodes[key] = &graph.Node{Label: label, ID: id, Properties: graph.CloneProps(props)}
	return nil
}

func (b *Backend) CreateEdge(ctx context.Context, e graph.Edge) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return graph.ErrClosed
	}
	b.insertEdge(e.Clone())
	return nil
}

// insertEdge appends to the ordered list and maintains both index sides.
// Callers hold the write lock.
func (b *Backend) insertEdge(e *graph.Edge) {
	b.edges = append(b.edges, e)
	outKey := indexKey(graph.Out, e.From, e.Type)
	inKey := indexKey(graph.In, e.To, e.Type)
	b.index[outKey] = append(b.index[outKey], e)
	b.index[inKey] = append(b.index[inKey], e)
}

// findEdge returns the first stored edge matching (type, from, to).
// Callers hold at least the read lock.
func (b *Backend) findEdge(t graph.EdgeType, from, to string) *graph.Edge {
	for _, e := range b.index[indexKey(graph.Out, from, t)] {
		if e.To == to {
			return e
		}
	}
	return nil
}

func (b *Backend) MergeEdge(ctx context.Context, e graph.Edge) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return graph.ErrClosed
	}
	if existing := b.findEdge(e.Type, e.From, e.To); existing != nil {
		existing.Properties = graph.MergeProps(existing.Properties, graph.CloneProps(e.Properties))
		return nil
	}
	b.insertEdge(e.Clone())
	return nil
}

func (b *Backend) IncrementEdgeProperty(ctx context.Context, t graph.EdgeType, from, to, property string, delta float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return graph.ErrClosed
	}
	if existing := b.findEdge(t, from, to); existing != nil {
		current, _ := graph.ToFloat(existing.Properties[property])
		if existing.Properties == nil {
			existing.Properties = make(map[string]any, 1)
		}
		existing.Properties[property] = current + delta
		return nil
	}
	b.insertEdge(&graph.Edge{Type: t, From: from, To: to, Properties: map[string]any{property: delta}})
	return nil
}

func (b *Backend) GetNode(ctx context.Context, label graph.Label, id string) (*graph.Node, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, graph.ErrClosed
	}
	n, ok := b.nodes[nodeKey{label, id}]
	if !ok {
		return nil, nil
	}
	return n.Clone(), nil
}

func (b *Backend) FindNodes(ctx context.Context, label graph.Label, filter map[string]any) ([]graph.Node, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, graph.ErrClosed
	}
	var out []graph.Node
	for key, n := range b.nodes {
		if key.label != label {
			continue
		}
		if !graph.MatchesFilter(n, filter) {
			continue
		}
		out = append(out, *n.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (b *Backend) GetEdges(ctx context.Context, nodeID string, edgeType graph.EdgeType, dir graph.Direction) ([]graph.Edge, error) {
	if !dir.Valid() {
		return nil, graph.ErrInvalidDirection
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, graph.ErrClosed
	}
	stored := b.index[indexKey(dir, nodeID, edgeType)]
	out := make([]graph.Edge, 0, len(stored))
	for _, e := range stored {
		out = append(out, *e.Clone())
	}
	return out, nil
}

func (b *Backend) NodeCount(ctx context.Context, label graph.Label) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, graph.ErrClosed
	}
	if label == "" {
		return len(b.nodes), nil
	}
	count := 0
	for key := range b.nodes {
		if key.label == label {
			count++
		}
	}
	return count, nil
}

func (b *Backend) EdgeCount(ctx context.Context, edgeType graph.EdgeType) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, graph.ErrClosed
	}
	if edgeType == "" {
		return len(b.edges), nil
	}
	count := 0
	for _, e := range b.edges {
		if e.Type == edgeType {
			count++
		}
	}
	return count, nil
}

func (b *Backend) GetChildren(ctx context.Context, parentLabel graph.Label, parentID string, edgeType graph.EdgeType, childLabel graph.Label) ([]graph.Node, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	return graph.ChildrenOf(ctx, b, parentID, edgeType, childLabel)
}

func (b *Backend) GetRoots(ctx context.Context, label graph.Label, incoming graph.EdgeType) ([]graph.Node, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	return graph.RootsOf(ctx, b, label, incoming)
}

func (b *Backend) AggregateOverEdge(ctx context.Context, targetLabel graph.Label, targetID string, edgeType graph.EdgeType, sourceLabel graph.Label, metrics []graph.Metric) (map[graph.Metric]float64, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	return graph.RunAggregateOverEdge(ctx, b, targetID, edgeType, sourceLabel, metrics)
}

func (b *Backend) AggregateGrouped(ctx context.Context, parentLabel graph.Label, parentID string, parentToChild graph.EdgeType, childLabel graph.Label, childToLeaf graph.EdgeType, leafLabel graph.Label, metrics []graph.Metric) (map[string]map[graph.Metric]float64, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	return graph.RunAggregateGrouped(ctx, b, parentID, parentToChild, childLabel, childToLeaf, leafLabel, metrics)
}

func (b *Backend) Traverse(ctx context.Context, startID string, edgeType graph.EdgeType, dir graph.Direction, maxDepth int) ([]graph.Path, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	return graph.RunTraverse(ctx, b, startID, edgeType, dir, maxDepth)
}

func (b *Backend) ShortestPath(ctx context.Context, fromID, toID string, edgeType graph.EdgeType) (*graph.Path, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	return graph.RunShortestPath(ctx, b, fromID, toID, edgeType)
}
