// Package graphtest contains a reusable conformance suite for graph.Backend
// implementations. A conforming backend, driven with the same sequence of
// operations as the in-memory reference, produces identical results for
// every read primitive; running this suite is the bar for "behaviorally
// equivalent" in the backend contract.
//
// Usage from a backend package:
//
//	func TestConformance(t *testing.T) {
//		graphtest.Run(t, func(t *testing.T) graph.Backend {
//			return newBackendUnderTest(t)
//		})
//	}
package graphtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgraph-ai/kgraph/graph"
)

// Factory returns a fresh, empty, initialized backend for one subtest. Use
// t.Cleanup to tear it down.
type Factory func(t *testing.T) graph.Backend

// Run exercises the full backend contract against backends produced by the
// factory. Each subtest receives its own empty backend.
func Run(t *testing.T, factory Factory) {
	t.Run("NodeWrites", func(t *testing.T) { testNodeWrites(t, factory(t)) })
	t.Run("EdgeWrites", func(t *testing.T) { testEdgeWrites(t, factory(t)) })
	t.Run("IncrementEdgeProperty", func(t *testing.T) { testIncrement(t, factory(t)) })
	t.Run("FindNodes", func(t *testing.T) { testFindNodes(t, factory(t)) })
	t.Run("ChildrenAndRoots", func(t *testing.T) { testChildrenAndRoots(t, factory(t)) })
	t.Run("Counts", func(t *testing.T) { testCounts(t, factory(t)) })
	t.Run("AggregateOverEdge", func(t *testing.T) { testAggregateOverEdge(t, factory(t)) })
	t.Run("AggregateGrouped", func(t *testing.T) { testAggregateGrouped(t, factory(t)) })
	t.Run("Traverse", func(t *testing.T) { testTraverse(t, factory(t)) })
	t.Run("ShortestPath", func(t *testing.T) { testShortestPath(t, factory(t)) })
	t.Run("WithTransaction", func(t *testing.T) { testWithTransaction(t, factory(t)) })
}

func testNodeWrites(t *testing.T, b graph.Backend) {
	ctx := context.Background()

	// Absent reads return nil, never an error.
	n, err := b.GetNode(ctx, graph.LabelTopic, "missing")
	require.NoError(t, err)
	require.Nil(t, n)

	require.NoError(t, b.CreateNode(ctx, graph.Node{
		Label:      graph.LabelTopic,
		ID:         "ai",
		Properties: map[string]any{"title": "AI", "description": "root"},
	}))

	n, err = b.GetNode(ctx, graph.LabelTopic, "ai")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "AI", n.StringProp("title"))

	// Same id under a different label is a distinct node.
	n, err = b.GetNode(ctx, graph.LabelUser, "ai")
	require.NoError(t, err)
	assert.Nil(t, n)

	// MergeNode shallow-merges: new keys added, existing overwritten,
	// untouched preserved.
	require.NoError(t, b.MergeNode(ctx, graph.LabelTopic, "ai", map[string]any{
		"title": "Artificial Intelligence",
		"extra": "x",
	}))
	n, err = b.GetNode(ctx, graph.LabelTopic, "ai")
	require.NoError(t, err)
	assert.Equal(t, "Artificial Intelligence", n.StringProp("title"))
	assert.Equal(t, "root", n.StringProp("description"))
	assert.Equal(t, "x", n.StringProp("extra"))

	// MergeNode on an absent key inserts.
	require.NoError(t, b.MergeNode(ctx, graph.LabelUser, "0xA", map[string]any{"address": "0xA"}))
	n, err = b.GetNode(ctx, graph.LabelUser, "0xA")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "0xA", n.StringProp("address"))
}

func testEdgeWrites(t *testing.T, b graph.Backend) {
	ctx := context.Background()

	// Absent reads are empty, not errors, and edges to nonexistent nodes
	// are allowed.
	edges, err := b.GetEdges(ctx, "nobody", graph.EdgeCreated, graph.Out)
	require.NoError(t, err)
	assert.Empty(t, edges)

	e := graph.Edge{Type: graph.EdgeBuildsOn, From: "b", To: "a"}
	require.NoError(t, b.CreateEdge(ctx, e))
	require.NoError(t, b.CreateEdge(ctx, e)) // duplicate appends

	edges, err = b.GetEdges(ctx, "b", graph.EdgeBuildsOn, graph.Out)
	require.NoError(t, err)
	assert.Len(t, edges, 2)

	edges, err = b.GetEdges(ctx, "a", graph.EdgeBuildsOn, graph.In)
	require.NoError(t, err)
	assert.Len(t, edges, 2)

	// MergeEdge merges onto the first structural match instead of appending.
	require.NoError(t, b.MergeEdge(ctx, graph.Edge{
		Type: graph.EdgeBuildsOn, From: "b", To: "a",
		Properties: map[string]any{"weight": 3},
	}))
	edges, err = b.GetEdges(ctx, "b", graph.EdgeBuildsOn, graph.Out)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	w, ok := graph.ToFloat(edges[0].Properties["weight"])
	require.True(t, ok)
	assert.Equal(t, 3.0, w)
	assert.NotContains(t, edges[1].Properties, "weight")

	// MergeEdge on an absent (type, from, to) creates.
	require.NoError(t, b.MergeEdge(ctx, graph.Edge{
		Type: graph.EdgePaidFor, From: "u", To: "x",
		Properties: map[string]any{"currency": "FREE"},
	}))
	edges, err = b.GetEdges(ctx, "u", graph.EdgePaidFor, graph.Out)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "FREE", edges[0].Properties["currency"])
}

func testIncrement(t *testing.T, b graph.Backend) {
	ctx := context.Background()

	// Increment on an absent edge creates it with {property: delta}.
	require.NoError(t, b.IncrementEdgeProperty(ctx, graph.EdgeExplored, "u", "topic", "count", 1))
	edges, err := b.GetEdges(ctx, "topic", graph.EdgeExplored, graph.In)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	c, ok := graph.ToFloat(edges[0].Properties["count"])
	require.True(t, ok)
	assert.Equal(t, 1.0, c)

	// Subsequent increments add to the same edge.
	require.NoError(t, b.IncrementEdgeProperty(ctx, graph.EdgeExplored, "u", "topic", "count", 1))
	edges, err = b.GetEdges(ctx, "topic", graph.EdgeExplored, graph.In)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	c, _ = graph.ToFloat(edges[0].Properties["count"])
	assert.Equal(t, 2.0, c)

	// Missing property on an existing edge is treated as 0.
	require.NoError(t, b.IncrementEdgeProperty(ctx, graph.EdgeExplored, "u", "topic", "visits", 5))
	edges, err = b.GetEdges(ctx, "topic", graph.EdgeExplored, graph.In)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	v, _ := graph.ToFloat(edges[0].Properties["visits"])
	assert.Equal(t, 5.0, v)
}

func testFindNodes(t *testing.T, b graph.Backend) {
	ctx := context.Background()

	for _, n := range []graph.Node{
		{Label: graph.LabelExploration, ID: "e2", Properties: map[string]any{"topic_path": "ai", "depth": 2}},
		{Label: graph.LabelExploration, ID: "e1", Properties: map[string]any{"topic_path": "ai", "depth": 3}},
		{Label: graph.LabelExploration, ID: "e3", Properties: map[string]any{"topic_path": "ml", "depth": 2}},
	} {
		require.NoError(t, b.CreateNode(ctx, n))
	}

	all, err := b.FindNodes(ctx, graph.LabelExploration, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "e1", all[0].ID)
	assert.Equal(t, "e2", all[1].ID)
	assert.Equal(t, "e3", all[2].ID)

	matched, err := b.FindNodes(ctx, graph.LabelExploration, map[string]any{"topic_path": "ai"})
	require.NoError(t, err)
	assert.Len(t, matched, 2)

	// Numeric filters match across representations.
	matched, err = b.FindNodes(ctx, graph.LabelExploration, map[string]any{"depth": 2})
	require.NoError(t, err)
	assert.Len(t, matched, 2)

	matched, err = b.FindNodes(ctx, graph.LabelExploration, map[string]any{"topic_path": "nope"})
	require.NoError(t, err)
	assert.Empty(t, matched)
}

func testChildrenAndRoots(t *testing.T, b graph.Backend) {
	ctx := context.Background()

	for _, path := range []string{"ai", "ai/transformers", "ai/transformers/attention", "crypto"} {
		require.NoError(t, b.CreateNode(ctx, graph.Node{
			Label: graph.LabelTopic, ID: path, Properties: map[string]any{"path": path},
		}))
	}
	require.NoError(t, b.CreateEdge(ctx, graph.Edge{Type: graph.EdgeParentOf, From: "ai", To: "ai/transformers"}))
	require.NoError(t, b.CreateEdge(ctx, graph.Edge{Type: graph.EdgeParentOf, From: "ai/transformers", To: "ai/transformers/attention"}))
	// Dangling child: edge to a topic that was never registered.
	require.NoError(t, b.CreateEdge(ctx, graph.Edge{Type: graph.EdgeParentOf, From: "ai", To: "ai/ghost"}))

	children, err := b.GetChildren(ctx, graph.LabelTopic, "ai", graph.EdgeParentOf, graph.LabelTopic)
	require.NoError(t, err)
	require.Len(t, children, 1) // the ghost target does not resolve
	assert.Equal(t, "ai/transformers", children[0].ID)

	roots, err := b.GetRoots(ctx, graph.LabelTopic, graph.EdgeParentOf)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, "ai", roots[0].ID)
	assert.Equal(t, "crypto", roots[1].ID)
}

func testCounts(t *testing.T, b graph.Backend) {
	ctx := context.Background()

	require.NoError(t, b.CreateNode(ctx, graph.Node{Label: graph.LabelTopic, ID: "ai"}))
	require.NoError(t, b.CreateNode(ctx, graph.Node{Label: graph.LabelUser, ID: "0xA"}))
	require.NoError(t, b.CreateEdge(ctx, graph.Edge{Type: graph.EdgeExplored, From: "0xA", To: "ai"}))
	require.NoError(t, b.CreateEdge(ctx, graph.Edge{Type: graph.EdgeParentOf, From: "ai", To: "ai/x"}))

	total, err := b.NodeCount(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	topics, err := b.NodeCount(ctx, graph.LabelTopic)
	require.NoError(t, err)
	assert.Equal(t, 1, topics)

	edges, err := b.EdgeCount(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, edges)

	explored, err := b.EdgeCount(ctx, graph.EdgeExplored)
	require.NoError(t, err)
	assert.Equal(t, 1, explored)
}

func testAggregateOverEdge(t *testing.T, b graph.Backend) {
	ctx := context.Background()

	require.NoError(t, b.CreateNode(ctx, graph.Node{Label: graph.LabelTopic, ID: "t"}))
	for i, depth := range []int{3, 4, 5} {
		id := string(rune('a' + i))
		require.NoError(t, b.CreateNode(ctx, graph.Node{
			Label: graph.LabelExploration, ID: id,
			Properties: map[string]any{"depth": depth},
		}))
		require.NoError(t, b.CreateEdge(ctx, graph.Edge{Type: graph.EdgeInTopic, From: id, To: "t"}))
	}
	// One explorer, regardless of the number of explorations.
	require.NoError(t, b.IncrementEdgeProperty(ctx, graph.EdgeExplored, "0xA", "t", "count", 3))

	stats, err := b.AggregateOverEdge(ctx, graph.LabelTopic, "t", graph.EdgeExplored, graph.LabelUser,
		[]graph.Metric{graph.MetricCount, graph.MetricMax, graph.MetricAvg, graph.MetricSum})
	require.NoError(t, err)
	assert.Equal(t, 1.0, stats[graph.MetricCount])
	assert.Equal(t, 5.0, stats[graph.MetricMax])
	assert.InDelta(t, 4.0, stats[graph.MetricAvg], 0.001)
	assert.Equal(t, 12.0, stats[graph.MetricSum])

	// A topic with no explorations reports zeros.
	require.NoError(t, b.CreateNode(ctx, graph.Node{Label: graph.LabelTopic, ID: "empty"}))
	stats, err = b.AggregateOverEdge(ctx, graph.LabelTopic, "empty", graph.EdgeExplored, graph.LabelUser,
		[]graph.Metric{graph.MetricCount, graph.MetricMax, graph.MetricAvg})
	require.NoError(t, err)
	assert.Zero(t, stats[graph.MetricCount])
	assert.Zero(t, stats[graph.MetricMax])
	assert.Zero(t, stats[graph.MetricAvg])
}

func testAggregateGrouped(t *testing.T, b graph.Backend) {
	ctx := context.Background()

	require.NoError(t, b.CreateNode(ctx, graph.Node{Label: graph.LabelTopic, ID: "ai"}))
	require.NoError(t, b.CreateNode(ctx, graph.Node{Label: graph.LabelTopic, ID: "ai/nlp"}))
	require.NoError(t, b.CreateNode(ctx, graph.Node{Label: graph.LabelTopic, ID: "ai/vision"}))
	require.NoError(t, b.CreateEdge(ctx, graph.Edge{Type: graph.EdgeParentOf, From: "ai", To: "ai/nlp"}))
	require.NoError(t, b.CreateEdge(ctx, graph.Edge{Type: graph.EdgeParentOf, From: "ai", To: "ai/vision"}))

	for i, depth := range []int{2, 6} {
		id := string(rune('a' + i))
		require.NoError(t, b.CreateNode(ctx, graph.Node{
			Label: graph.LabelExploration, ID: id,
			Properties: map[string]any{"depth": depth},
		}))
		require.NoError(t, b.CreateEdge(ctx, graph.Edge{Type: graph.EdgeInTopic, From: id, To: "ai/nlp"}))
	}
	require.NoError(t, b.IncrementEdgeProperty(ctx, graph.EdgeExplored, "0xA", "ai/nlp", "count", 1))
	require.NoError(t, b.IncrementEdgeProperty(ctx, graph.EdgeExplored, "0xB", "ai/nlp", "count", 1))

	grouped, err := b.AggregateGrouped(ctx, graph.LabelTopic, "ai", graph.EdgeParentOf,
		graph.LabelTopic, graph.EdgeInTopic, graph.LabelExploration,
		[]graph.Metric{graph.MetricCountDistinct, graph.MetricMax, graph.MetricAvg})
	require.NoError(t, err)
	require.Len(t, grouped, 2)

	nlp := grouped["ai/nlp"]
	require.NotNil(t, nlp)
	assert.Equal(t, 2.0, nlp[graph.MetricCountDistinct])
	assert.Equal(t, 6.0, nlp[graph.MetricMax])
	assert.InDelta(t, 4.0, nlp[graph.MetricAvg], 0.001)

	vision := grouped["ai/vision"]
	require.NotNil(t, vision)
	assert.Zero(t, vision[graph.MetricCountDistinct])
	assert.Zero(t, vision[graph.MetricMax])
	assert.Zero(t, vision[graph.MetricAvg])
}

func testTraverse(t *testing.T, b graph.Backend) {
	ctx := context.Background()

	// Chain with a branch sharing a tail:
	//   d -> b -> a, c -> b (BUILDS_ON points at the ancestor)
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, b.CreateNode(ctx, graph.Node{
			Label: graph.LabelExploration, ID: id, Properties: map[string]any{"title": id},
		}))
	}
	require.NoError(t, b.CreateEdge(ctx, graph.Edge{Type: graph.EdgeBuildsOn, From: "b", To: "a"}))
	require.NoError(t, b.CreateEdge(ctx, graph.Edge{Type: graph.EdgeBuildsOn, From: "d", To: "b"}))
	require.NoError(t, b.CreateEdge(ctx, graph.Edge{Type: graph.EdgeBuildsOn, From: "c", To: "b"}))

	// Outward from d: the ancestor chain d, b, a in one path.
	paths, err := b.Traverse(ctx, "d", graph.EdgeBuildsOn, graph.Out, 0)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	require.Len(t, paths[0].Nodes, 3)
	assert.Equal(t, "d", paths[0].Nodes[0].ID)
	assert.Equal(t, "b", paths[0].Nodes[1].ID)
	assert.Equal(t, "a", paths[0].Nodes[2].ID)
	assert.Len(t, paths[0].Edges, 2)

	// Inward from a: b has two descendants. The global visited set prunes
	// re-descent, so each leaf ends exactly one path; the shared prefix
	// node b still appears in both paths.
	paths, err = b.Traverse(ctx, "a", graph.EdgeBuildsOn, graph.In, 0)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	leaves := map[string]int{}
	for _, p := range paths {
		require.GreaterOrEqual(t, len(p.Nodes), 2)
		assert.Equal(t, "a", p.Nodes[0].ID)
		assert.Equal(t, "b", p.Nodes[1].ID)
		leaves[p.Nodes[len(p.Nodes)-1].ID]++
	}
	assert.Equal(t, map[string]int{"c": 1, "d": 1}, leaves)

	// maxDepth bounds path length in edges.
	paths, err = b.Traverse(ctx, "d", graph.EdgeBuildsOn, graph.Out, 1)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Len(t, paths[0].Edges, 1)

	// Unknown start yields no paths; isolated start yields itself.
	paths, err = b.Traverse(ctx, "missing", graph.EdgeBuildsOn, graph.Out, 0)
	require.NoError(t, err)
	assert.Empty(t, paths)

	require.NoError(t, b.CreateNode(ctx, graph.Node{Label: graph.LabelExploration, ID: "lone"}))
	paths, err = b.Traverse(ctx, "lone", graph.EdgeBuildsOn, graph.Out, 0)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	require.Len(t, paths[0].Nodes, 1)
	assert.Empty(t, paths[0].Edges)
}

func testShortestPath(t *testing.T, b graph.Backend) {
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "z"} {
		require.NoError(t, b.CreateNode(ctx, graph.Node{Label: graph.LabelExploration, ID: id}))
	}
	require.NoError(t, b.CreateEdge(ctx, graph.Edge{Type: graph.EdgeBuildsOn, From: "b", To: "a"}))
	require.NoError(t, b.CreateEdge(ctx, graph.Edge{Type: graph.EdgeBuildsOn, From: "c", To: "b"}))

	// Edges are undirected for path finding: a reaches c against edge
	// direction.
	p, err := b.ShortestPath(ctx, "a", "c", graph.EdgeBuildsOn)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Len(t, p.Edges, 2)
	require.Len(t, p.Nodes, 3)
	assert.Equal(t, "a", p.Nodes[0].ID)
	assert.Equal(t, "c", p.Nodes[2].ID)

	// No route to an isolated node.
	p, err = b.ShortestPath(ctx, "a", "z", graph.EdgeBuildsOn)
	require.NoError(t, err)
	assert.Nil(t, p)

	// The start node alone is not a path.
	p, err = b.ShortestPath(ctx, "a", "a", graph.EdgeBuildsOn)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func testWithTransaction(t *testing.T, b graph.Backend) {
	ctx := context.Background()

	ran := false
	err := b.WithTransaction(ctx, func(ctx context.Context) error {
		ran = true
		return b.CreateNode(ctx, graph.Node{Label: graph.LabelTopic, ID: "tx"})
	})
	require.NoError(t, err)
	assert.True(t, ran)

	n, err := b.GetNode(ctx, graph.LabelTopic, "tx")
	require.NoError(t, err)
	assert.NotNil(t, n)
}
