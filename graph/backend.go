package graph

import "context"

// Backend is the abstract graph store the knowledge graph domain layer is
// bound to. All operations take a context and may block on I/O.
//
// Write semantics:
//
//   - CreateNode inserts unconditionally; the backend is not required to
//     prevent overwriting an existing (label, id). The domain layer uses
//     generated unique IDs for append-only labels and MergeNode for the
//     idempotent ones.
//   - MergeNode shallow-merges properties onto an existing node (new keys
//     added, existing keys overwritten, untouched keys preserved) or
//     inserts when absent.
//   - CreateEdge always appends a new edge, even when a structurally
//     identical one exists.
//   - MergeEdge shallow-merges properties onto the first existing edge with
//     the same (type, from, to), or creates it.
//   - IncrementEdgeProperty adds delta to a numeric edge property (missing
//     treated as 0), creating the edge with {property: delta} when absent.
//
// Read semantics: absent keys produce nil or empty results, never an error.
// Only backend-internal failures (I/O, connectivity) surface as errors.
type Backend interface {
	// Initialize prepares the backend for use. It must be called before any
	// other operation and is idempotent.
	Initialize(ctx context.Context) error

	// Close releases resources. Volatile backends discard all state;
	// durable ones only tear down connections. Subsequent operations
	// return ErrClosed.
	Close(ctx context.Context) error

	// WithTransaction runs fn with at-most-once semantics. Backends without
	// real transactions run fn directly.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	CreateNode(ctx context.Context, n Node) error
	MergeNode(ctx context.Context, label Label, id string, props map[string]any) error
	CreateEdge(ctx context.Context, e Edge) error
	MergeEdge(ctx context.Context, e Edge) error
	IncrementEdgeProperty(ctx context.Context, t EdgeType, from, to, property string, delta float64) error

	// GetNode returns the node under (label, id), or nil when absent.
	GetNode(ctx context.Context, label Label, id string) (*Node, error)

	// FindNodes returns all nodes under label whose properties match the
	// optional exact-match filter, ordered by ID.
	FindNodes(ctx context.Context, label Label, filter map[string]any) ([]Node, error)

	// GetChildren follows outgoing edges of edgeType from the parent and
	// resolves the targets under childLabel, in edge insertion order.
	GetChildren(ctx context.Context, parentLabel Label, parentID string, edgeType EdgeType, childLabel Label) ([]Node, error)

	// GetRoots returns nodes of label with no incoming edge of the given
	// type, ordered by ID.
	GetRoots(ctx context.Context, label Label, incoming EdgeType) ([]Node, error)

	// GetEdges returns the edges of edgeType touching nodeID in the given
	// direction, in insertion order.
	GetEdges(ctx context.Context, nodeID string, edgeType EdgeType, dir Direction) ([]Edge, error)

	// NodeCount returns the number of nodes under label, or all nodes when
	// label is empty.
	NodeCount(ctx context.Context, label Label) (int, error)

	// EdgeCount returns the number of edges of edgeType, or all edges when
	// edgeType is empty.
	EdgeCount(ctx context.Context, edgeType EdgeType) (int, error)

	// AggregateOverEdge computes metrics for a single target node. Distinct
	// source nodes are counted over incoming edges of edgeType; depth
	// values are collected from the nodes reached via incoming IN_TOPIC
	// edges regardless of edgeType. Mixing source counts with leaf depth
	// statistics in one call is intentional: it is the shape of the
	// domain's topic-stats query.
	AggregateOverEdge(ctx context.Context, targetLabel Label, targetID string, edgeType EdgeType, sourceLabel Label, metrics []Metric) (map[Metric]float64, error)

	// AggregateGrouped computes metrics per child of the parent (children
	// found via parentToChild edges). count_distinct counts incoming
	// EXPLORED edges on the child; max and avg are computed over the depth
	// properties of leaves joined via incoming childToLeaf edges.
	AggregateGrouped(ctx context.Context, parentLabel Label, parentID string, parentToChild EdgeType, childLabel Label, childToLeaf EdgeType, leafLabel Label, metrics []Metric) (map[string]map[Metric]float64, error)

	// Traverse enumerates acyclic simple paths from startID following edges
	// of edgeType in the given direction, depth-first. The visited set is
	// global across sibling branches, so each reachable node appears in at
	// most one returned path. maxDepth limits path length in edges;
	// maxDepth <= 0 means unlimited. An unknown startID yields no paths.
	Traverse(ctx context.Context, startID string, edgeType EdgeType, dir Direction, maxDepth int) ([]Path, error)

	// ShortestPath finds the path with the fewest edges between two nodes,
	// treating edges of edgeType as undirected. The start node is not a
	// path to itself; a result has at least one edge. Returns nil when no
	// path exists.
	ShortestPath(ctx context.Context, fromID, toID string, edgeType EdgeType) (*Path, error)
}
