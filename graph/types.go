package graph

import "fmt"

// Label identifies the kind of a node. The set is closed; callers must not
// invent labels outside AllLabels.
type Label string

// Node labels used by the knowledge graph domain.
const (
	LabelTopic       Label = "Topic"
	LabelUser        Label = "User"
	LabelExploration Label = "Exploration"
	LabelTxLog       Label = "TxLog"
	LabelSnapshot    Label = "Snapshot"
)

// AllLabels lists every valid node label in a fixed order. Cross-label ID
// resolution iterates this slice, so the order is part of the contract.
var AllLabels = []Label{LabelTopic, LabelUser, LabelExploration, LabelTxLog, LabelSnapshot}

// EdgeType identifies the kind of a directed edge. The set is closed.
type EdgeType string

// Edge types used by the knowledge graph domain.
const (
	EdgeParentOf EdgeType = "PARENT_OF"
	EdgeCreated  EdgeType = "CREATED"
	EdgeInTopic  EdgeType = "IN_TOPIC"
	EdgeExplored EdgeType = "EXPLORED"
	EdgeBuildsOn EdgeType = "BUILDS_ON"
	EdgePaidFor  EdgeType = "PAID_FOR"
	EdgeIncludes EdgeType = "INCLUDES"
)

// AllEdgeTypes lists every valid edge type.
var AllEdgeTypes = []EdgeType{EdgeParentOf, EdgeCreated, EdgeInTopic, EdgeExplored, EdgeBuildsOn, EdgePaidFor, EdgeIncludes}

// Direction selects which end of an edge a lookup starts from.
type Direction string

const (
	// Out follows edges whose From endpoint is the given node.
	Out Direction = "out"

	// In follows edges whose To endpoint is the given node.
	In Direction = "in"
)

// Valid reports whether the direction is one of Out or In.
func (d Direction) Valid() bool {
	return d == Out || d == In
}

// Metric names an aggregation computed by AggregateOverEdge and
// AggregateGrouped.
type Metric string

const (
	// MetricCount is the number of distinct source nodes of the aggregated
	// edge type.
	MetricCount Metric = "count"

	// MetricMax is the maximum of the collected depth values, 0 if none.
	MetricMax Metric = "max"

	// MetricAvg is the arithmetic mean of the collected depth values,
	// rounded to 2 decimal places, 0 if none.
	MetricAvg Metric = "avg"

	// MetricSum is the sum of the collected depth values.
	MetricSum Metric = "sum"

	// MetricCountDistinct is the number of incoming EXPLORED edges on a
	// child node in grouped aggregations.
	MetricCountDistinct Metric = "count_distinct"
)

// Node is a labeled record in the graph. The pair (Label, ID) is the
// primary key. Properties hold arbitrary scalar values; numeric property
// values may surface as int, int64, or float64 depending on the backend, so
// use the typed accessors rather than direct assertions.
type Node struct {
	Label      Label          `json:"label"`
	ID         string         `json:"id"`
	Properties map[string]any `json:"properties,omitempty"`
}

// StringProp returns the named property as a string, or "" when the
// property is absent or nil.
func (n *Node) StringProp(key string) string {
	if n == nil || n.Properties == nil {
		return ""
	}
	if s, ok := n.Properties[key].(string); ok {
		return s
	}
	return ""
}

// IntProp returns the named property as an int, or 0 when the property is
// absent or not numeric. Float values (from JSON round-trips) are truncated.
func (n *Node) IntProp(key string) int {
	f, ok := n.FloatProp(key)
	if !ok {
		return 0
	}
	return int(f)
}

// FloatProp returns the named property as a float64 and whether the
// property was present and numeric.
func (n *Node) FloatProp(key string) (float64, bool) {
	if n == nil || n.Properties == nil {
		return 0, false
	}
	return ToFloat(n.Properties[key])
}

// HasProp reports whether the named property is present, even if nil.
func (n *Node) HasProp(key string) bool {
	if n == nil || n.Properties == nil {
		return false
	}
	_, ok := n.Properties[key]
	return ok
}

// Clone returns a deep-enough copy of the node: the Properties map is
// duplicated so callers cannot mutate stored state through it.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	return &Node{Label: n.Label, ID: n.ID, Properties: CloneProps(n.Properties)}
}

func (n *Node) String() string {
	return fmt.Sprintf("%s(%s)", n.Label, n.ID)
}

// Edge is a typed directed connection between two nodes, referenced by ID.
type Edge struct {
	Type       EdgeType       `json:"type"`
	From       string         `json:"from"`
	To         string         `json:"to"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Clone returns a copy of the edge with a duplicated Properties map.
func (e *Edge) Clone() *Edge {
	if e == nil {
		return nil
	}
	return &Edge{Type: e.Type, From: e.From, To: e.To, Properties: CloneProps(e.Properties)}
}

// Other returns the endpoint opposite to the given node ID. When the edge
// does not touch id, the To endpoint is returned.
func (e *Edge) Other(id string) string {
	if e.To == id {
		return e.From
	}
	return e.To
}

// Neighbor returns the endpoint an outgoing lookup in the given direction
// arrives at: To for Out, From for In.
func (e *Edge) Neighbor(dir Direction) string {
	if dir == In {
		return e.From
	}
	return e.To
}

func (e *Edge) String() string {
	return fmt.Sprintf("(%s)-[%s]->(%s)", e.From, e.Type, e.To)
}

// Path is a node sequence joined by edges; Nodes has one more element than
// Edges except when unresolvable node IDs were skipped.
type Path struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Len returns the number of edges in the path.
func (p *Path) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Edges)
}
