// Package neograph implements the graph backend on Neo4j using the v5
// driver and parameterized Cypher.
//
// Mapping:
//
//   - A node (label, id) becomes (:Label {id: $id, props: $json}) where
//     props is the JSON-encoded property map. Properties live in a single
//     JSON string so arbitrary scalars (including null) round-trip exactly
//     like the Redis backend; filtering happens client-side.
//   - An edge becomes a relationship [:TYPE {seq: $n, props: $json}]. seq
//     is a monotonically increasing counter kept on a (:_Meta) node, which
//     preserves the insertion order the contract requires.
//   - The contract tolerates edges to nonexistent nodes, which Neo4j does
//     not; missing endpoints are materialized as (:_Ref {id}) placeholder
//     nodes. Placeholders are invisible to node reads and counts, and a
//     later CreateNode for the same id absorbs the placeholder.
//
// Labels and relationship types are interpolated into Cypher only after
// validation against the closed sets in the graph package; everything else
// is a query parameter.
//
// Derived operations delegate to the shared algorithms in the graph
// package, so results match the in-memory reference exactly.
package neograph

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kgraph-ai/kgraph/graph"
)

// Options configures the Neo4j connection.
type Options struct {
	// URI is the bolt/neo4j connection URI (e.g., "neo4j://localhost:7687").
	URI string

	// Username and Password authenticate via basic auth.
	Username string
	Password string

	// Database selects the target database. Empty uses the server default.
	Database string
}

// Backend implements graph.Backend on a Neo4j database.
type Backend struct {
	driver   neo4j.DriverWithContext
	database string
	closed   atomic.Bool
}

var _ graph.Backend = (*Backend)(nil)

// New creates a Neo4j backend. Connectivity is verified in Initialize.
func New(opts Options) (*Backend, error) {
	driver, err := neo4j.NewDriverWithContext(opts.URI, neo4j.BasicAuth(opts.Username, opts.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("neograph: create driver: %w", err)
	}
	return &Backend{driver: driver, database: opts.Database}, nil
}

func (b *Backend) check() error {
	if b.closed.Load() {
		return graph.ErrClosed
	}
	return nil
}

func validLabel(l graph.Label) error {
	for _, known := range graph.AllLabels {
		if l == known {
			return nil
		}
	}
	return fmt.Errorf("neograph: unknown label %q", l)
}

func validEdgeType(t graph.EdgeType) error {
	for _, known := range graph.AllEdgeTypes {
		if t == known {
			return nil
		}
	}
	return fmt.Errorf("neograph: unknown edge type %q", t)
}

// Initialize verifies connectivity.
func (b *Backend) Initialize(ctx context.Context) error {
	if err := b.check(); err != nil {
		return err
	}
	if err := b.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("neograph: verify connectivity: %w", err)
	}
	return nil
}

// Close closes the driver. Stored data is kept; Neo4j is a durable backend.
func (b *Backend) Close(ctx context.Context) error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.driver.Close(ctx)
}

// Reset removes every node and relationship. Test hook for the conformance
// suite against a disposable database.
func (b *Backend) Reset(ctx context.Context) error {
	if err := b.check(); err != nil {
		return err
	}
	_, err := b.run(ctx, "MATCH (n) DETACH DELETE n", nil)
	return err
}

// WithTransaction runs fn directly. The per-call query design does not
// compose into a single Neo4j transaction, so this backend offers the same
// pass-through semantics as the in-memory reference.
func (b *Backend) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.check(); err != nil {
		return err
	}
	return fn(ctx)
}

func (b *Backend) run(ctx context.Context, cypher string, params map[string]any) (*neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, b.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(b.database))
	if err != nil {
		return nil, fmt.Errorf("neograph: query failed: %w", err)
	}
	return result, nil
}

func encodeProps(props map[string]any) (string, error) {
	if props == nil {
		props = map[string]any{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("neograph: encode properties: %w", err)
	}
	return string(raw), nil
}

func decodeProps(v any) (map[string]any, error) {
	raw, _ := v.(string)
	if raw == "" {
		return map[string]any{}, nil
	}
	var props map[string]any
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, fmt.Errorf("neograph: decode properties: %w", err)
	}
	return props, nil
}

func (b *Backend) CreateNode(ctx context.Context, n graph.Node) error {
	if err := b.check(); err != nil {
		return err
	}
	if err := validLabel(n.Label); err != nil {
		return err
	}
	raw, err := encodeProps(n.Properties)
	if err != nil {
		return err
	}
	// MERGE on id alone absorbs a (:_Ref) placeholder left by a dangling
	// edge.
	cypher := fmt.Sprintf(
		"MERGE (n {id: $id}) SET n:%s REMOVE n:_Ref SET n.props = $props", n.Label)
	_, err = b.run(ctx, cypher, map[string]any{"id": n.ID, "props": raw})
	return err
}

func (b *Backend) MergeNode(ctx context.Context, label graph.Label, id string, props map[string]any) error {
	if err := b.check(); err != nil {
		return err
	}
	existing, err := b.GetNode(ctx, label, id)
	if err != nil {
		return err
	}
	merged := props
	if existing != nil {
		merged = graph.MergeProps(existing.Properties, props)
	}
	return b.CreateNode(ctx, graph.Node{Label: label, ID: id, Properties: merged})
}

// nextSeq allocates the next edge sequence number from the meta counter.
func (b *Backend) nextSeq(ctx context.Context) (int64, error) {
	result, err := b.run(ctx,
		"MERGE (m:_Meta {key: 'edge_seq'}) SET m.value = coalesce(m.value, 0) + 1 RETURN m.value AS seq", nil)
	if err != nil {
		return 0, err
	}
	if len(result.Records) == 0 {
		return 0, fmt.Errorf("neograph: edge sequence returned no rows")
	}
	seq, _ := result.Records[0].Get("seq")
	n, ok := seq.(int64)
	if !ok {
		return 0, fmt.Errorf("neograph: unexpected edge sequence value %v", seq)
	}
	return n, nil
}

func (b *Backend) CreateEdge(ctx context.Context, e graph.Edge) error {
	if err := b.check(); err != nil {
		return err
	}
	if err := validEdgeType(e.Type); err != nil {
		return err
	}
	seq, err := b.nextSeq(ctx)
	if err != nil {
		return err
	}
	raw, err := encodeProps(e.Properties)
	if err != nil {
		return err
	}
	cypher := fmt.Sprintf(`
		MERGE (a {id: $from}) ON CREATE SET a:_Ref
		MERGE (b {id: $to}) ON CREATE SET b:_Ref
		CREATE (a)-[r:%s {seq: $seq, props: $props}]->(b)`, e.Type)
	_, err = b.run(ctx, cypher, map[string]any{
		"from": e.From, "to": e.To, "seq": seq, "props": raw,
	})
	return err
}

// firstEdge returns the seq and properties of the first structural match
// for (type, from, to), or (0, nil, nil) when none exists.
func (b *Backend) firstEdge(ctx context.Context, t graph.EdgeType, from, to string) (int64, map[string]any, error) {
	cypher := fmt.Sprintf(`
		MATCH (a {id: $from})-[r:%s]->(b {id: $to})
		RETURN r.seq AS seq, r.props AS props ORDER BY r.seq ASC LIMIT 1`, t)
	result, err := b.run(ctx, cypher, map[string]any{"from": from, "to": to})
	if err != nil {
		return 0, nil, err
	}
	if len(result.Records) == 0 {
		return 0, nil, nil
	}
	seqVal, _ := result.Records[0].Get("seq")
	seq, _ := seqVal.(int64)
	propsVal, _ := result.Records[0].Get("props")
	props, err := decodeProps(propsVal)
	if err != nil {
		return 0, nil, err
	}
	return seq, props, nil
}

func (b *Backend) setEdgeProps(ctx context.Context, t graph.EdgeType, seq int64, props map[string]any) error {
	raw, err := encodeProps(props)
	if err != nil {
		return err
	}
	cypher := fmt.Sprintf("MATCH ()-[r:%s]->() WHERE r.seq = $seq SET r.props = $props", t)
	_, err = b.run(ctx, cypher, map[string]any{"seq": seq, "props": raw})
	return err
}

func (b *Backend) MergeEdge(ctx context.Context, e graph.Edge) error {
	if err := b.check(); err != nil {
		return err
	}
	if err := validEdgeType(e.Type); err != nil {
		return err
	}
	seq, props, err := b.firstEdge(ctx, e.Type, e.From, e.To)
	if err != nil {
		return err
	}
	if props == nil {
		return b.CreateEdge(ctx, e)
	}
	return b.setEdgeProps(ctx, e.Type, seq, graph.MergeProps(props, e.Properties))
}

func (b *Backend) IncrementEdgeProperty(ctx context.Context, t graph.EdgeType, from, to, property string, delta float64) error {
	if err := b.check(); err != nil {
		return err
	}
	if err := validEdgeType(t); err != nil {
		return err
	}
	seq, props, err := b.firstEdge(ctx, t, from, to)
	if err != nil {
		return err
	}
	if props == nil {
		return b.CreateEdge(ctx, graph.Edge{Type: t, From: from, To: to, Properties: map[string]any{property: delta}})
	}
	current, _ := graph.ToFloat(props[property])
	props[property] = current + delta
	return b.setEdgeProps(ctx, t, seq, props)
}

func (b *Backend) GetNode(ctx context.Context, label graph.Label, id string) (*graph.Node, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	if err := validLabel(label); err != nil {
		return nil, err
	}
	cypher := fmt.Sprintf("MATCH (n:%s {id: $id}) RETURN n.props AS props LIMIT 1", label)
	result, err := b.run(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(result.Records) == 0 {
		return nil, nil
	}
	propsVal, _ := result.Records[0].Get("props")
	props, err := decodeProps(propsVal)
	if err != nil {
		return nil, err
	}
	return &graph.Node{Label: label, ID: id, Properties: props}, nil
}

func (b *Backend) FindNodes(ctx context.Context, label graph.Label, filter map[string]any) ([]graph.Node, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	if err := validLabel(label); err != nil {
		return nil, err
	}
	cypher := fmt.Sprintf("MATCH (n:%s) RETURN n.id AS id, n.props AS props ORDER BY n.id ASC", label)
	result, err := b.run(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	var out []graph.Node
	for _, record := range result.Records {
		idVal, _ := record.Get("id")
		id, _ := idVal.(string)
		propsVal, _ := record.Get("props")
		props, err := decodeProps(propsVal)
		if err != nil {
			return nil, err
		}
		n := graph.Node{Label: label, ID: id, Properties: props}
		if graph.MatchesFilter(&n, filter) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (b *Backend) GetEdges(ctx context.Context, nodeID string, edgeType graph.EdgeType, dir graph.Direction) ([]graph.Edge, error) {
	if !dir.Valid() {
		return nil, graph.ErrInvalidDirection
	}
	if err := b.check(); err != nil {
		return nil, err
	}
	if err := validEdgeType(edgeType); err != nil {
		return nil, err
	}
	var cypher string
	if dir == graph.Out {
		cypher = fmt.Sprintf(`
			MATCH (a {id: $id})-[r:%s]->(b)
			RETURN a.id AS from, b.id AS to, r.props AS props ORDER BY r.seq ASC`, edgeType)
	} else {
		cypher = fmt.Sprintf(`
			MATCH (a)-[r:%s]->(b {id: $id})
			RETURN a.id AS from, b.id AS to, r.props AS props ORDER BY r.seq ASC`, edgeType)
	}
	result, err := b.run(ctx, cypher, map[string]any{"id": nodeID})
	if err != nil {
		return nil, err
	}
	edges := make([]graph.Edge, 0, len(result.Records))
	for _, record := range result.Records {
		fromVal, _ := record.Get("from")
		toVal, _ := record.Get("to")
		propsVal, _ := record.Get("props")
		props, err := decodeProps(propsVal)
		if err != nil {
			return nil, err
		}
		from, _ := fromVal.(string)
		to, _ := toVal.(string)
		edges = append(edges, graph.Edge{Type: edgeType, From: from, To: to, Properties: props})
	}
	return edges, nil
}

func (b *Backend) NodeCount(ctx context.Context, label graph.Label) (int, error) {
	if err := b.check(); err != nil {
		return 0, err
	}
	var cypher string
	if label == "" {
		cypher = "MATCH (n) WHERE NOT n:_Ref AND NOT n:_Meta RETURN count(n) AS c"
	} else {
		if err := validLabel(label); err != nil {
			return 0, err
		}
		cypher = fmt.Sprintf("MATCH (n:%s) RETURN count(n) AS c", label)
	}
	return b.count(ctx, cypher)
}

func (b *Backend) EdgeCount(ctx context.Context, edgeType graph.EdgeType) (int, error) {
	if err := b.check(); err != nil {
		return 0, err
	}
	cypher := "MATCH ()-[r]->() RETURN count(r) AS c"
	if edgeType != "" {
		if err := validEdgeType(edgeType); err != nil {
			return 0, err
		}
		cypher = fmt.Sprintf("MATCH ()-[r:%s]->() RETURN count(r) AS c", edgeType)
	}
	return b.count(ctx, cypher)
}

func (b *Backend) count(ctx context.Context, cypher string) (int, error) {
	result, err := b.run(ctx, cypher, nil)
	if err != nil {
		return 0, err
	}
	if len(result.Records) == 0 {
		return 0, nil
	}
	c, _ := result.Records[0].Get("c")
	n, _ := c.(int64)
	return int(n), nil
}

func (b *Backend) GetChildren(ctx context.Context, parentLabel graph.Label, parentID string, edgeType graph.EdgeType, childLabel graph.Label) ([]graph.Node, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	return graph.ChildrenOf(ctx, b, parentID, edgeType, childLabel)
}

func (b *Backend) GetRoots(ctx context.Context, label graph.Label, incoming graph.EdgeType) ([]graph.Node, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	return graph.RootsOf(ctx, b, label, incoming)
}

func (b *Backend) AggregateOverEdge(ctx context.Context, targetLabel graph.Label, targetID string, edgeType graph.EdgeType, sourceLabel graph.Label, metrics []graph.Metric) (map[graph.Metric]float64, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	return graph.RunAggregateOverEdge(ctx, b, targetID, edgeType, sourceLabel, metrics)
}

func (b *Backend) AggregateGrouped(ctx context.Context, parentLabel graph.Label, parentID string, parentToChild graph.EdgeType, childLabel graph.Label, childToLeaf graph.EdgeType, leafLabel graph.Label, metrics []graph.Metric) (map[string]map[graph.Metric]float64, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	return graph.RunAggregateGrouped(ctx, b, parentID, parentToChild, childLabel, childToLeaf, leafLabel, metrics)
}

func (b *Backend) Traverse(ctx context.Context, startID string, edgeType graph.EdgeType, dir graph.Direction, maxDepth int) ([]graph.Path, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	return graph.RunTraverse(ctx, b, startID, edgeType, dir, maxDepth)
}

func (b *Backend) ShortestPath(ctx context.Context, fromID, toID string, edgeType graph.EdgeType) (*graph.Path, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	return graph.RunShortestPath(ctx, b, fromID, toID, edgeType)
}
