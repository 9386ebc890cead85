package kgraph_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgraph-ai/kgraph"
	"github.com/kgraph-ai/kgraph/contenthash"
	"github.com/kgraph-ai/kgraph/graph"
	"github.com/kgraph-ai/kgraph/graph/memgraph"
	"github.com/kgraph-ai/kgraph/pushid"
)

const testAddress = "0xTestUser"

func newTestGraph(t *testing.T) *kgraph.KnowledgeGraph {
	t.Helper()
	b := memgraph.New()
	require.NoError(t, b.Initialize(context.Background()))
	return kgraph.New(b, testAddress)
}

func TestRegisterTopic_Hierarchy(t *testing.T) {
	ctx := context.Background()
	kg := newTestGraph(t)

	require.NoError(t, kg.RegisterTopic(ctx, "ai", kgraph.TopicInfo{Title: "AI"}))
	require.NoError(t, kg.RegisterTopic(ctx, "ai/transformers", kgraph.TopicInfo{Title: "Transformers"}))
	require.NoError(t, kg.RegisterTopic(ctx, "ai/transformers/attention", kgraph.TopicInfo{Title: "Attention"}))

	subs, err := kg.ListSubtopics(ctx, "ai")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "ai/transformers", subs[0].Path)

	subs, err = kg.ListSubtopics(ctx, "ai/transformers")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "ai/transformers/attention", subs[0].Path)

	// Only the top of the hierarchy has no parent.
	roots, err := kg.ListTopics(ctx)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, "ai", roots[0].Path)
}

func TestRegisterTopic_MergeOverwrites(t *testing.T) {
	ctx := context.Background()
	kg := newTestGraph(t)

	require.NoError(t, kg.RegisterTopic(ctx, "ai", kgraph.TopicInfo{Title: "AI", Description: "first"}))
	require.NoError(t, kg.RegisterTopic(ctx, "ai", kgraph.TopicInfo{Title: "Artificial Intelligence"}))

	info, err := kg.GetTopicInfo(ctx, "ai")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "Artificial Intelligence", info.Title)
	assert.Empty(t, info.Description, "re-registration overwrites all caller-supplied fields")

	// Still exactly one Topic node.
	count, err := kg.Backend().NodeCount(ctx, graph.LabelTopic)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestExplore_ContentHash(t *testing.T) {
	ctx := context.Background()
	kg := newTestGraph(t)

	require.NoError(t, kg.RegisterTopic(ctx, "ai", kgraph.TopicInfo{}))
	require.NoError(t, kg.RegisterTopic(ctx, "ai/transformers", kgraph.TopicInfo{}))
	require.NoError(t, kg.RegisterTopic(ctx, "ai/transformers/attention", kgraph.TopicInfo{}))

	id, err := kg.Explore(ctx, kgraph.ExploreInput{
		TopicPath: "ai/transformers/attention",
		Title:     "Paper A",
		Content:   "Content for Paper A",
		Summary:   "Summary of Paper A",
		Depth:     2,
	})
	require.NoError(t, err)
	assert.Len(t, id, pushid.Length)

	n, err := kg.Backend().GetNode(ctx, graph.LabelExploration, id)
	require.NoError(t, err)
	require.NotNil(t, n)
	hash := n.StringProp("content_hash")
	assert.Len(t, hash, 64)
	assert.Equal(t, contenthash.SHA256{}.Sum("Content for Paper A"), hash)
}

func TestExplore_AppendOnly(t *testing.T) {
	ctx := context.Background()
	kg := newTestGraph(t)
	require.NoError(t, kg.RegisterTopic(ctx, "ai", kgraph.TopicInfo{}))

	in := kgraph.ExploreInput{TopicPath: "ai", Title: "Same", Content: "same content", Depth: 1}
	id1, err := kg.Explore(ctx, in)
	require.NoError(t, err)
	id2, err := kg.Explore(ctx, in)
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2, "identical inputs must yield distinct explorations")
	count, err := kg.Backend().NodeCount(ctx, graph.LabelExploration)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestExplore_ExploredCountMonotone(t *testing.T) {
	ctx := context.Background()
	kg := newTestGraph(t)
	require.NoError(t, kg.RegisterTopic(ctx, "ai", kgraph.TopicInfo{}))

	for i := 0; i < 2; i++ {
		_, err := kg.Explore(ctx, kgraph.ExploreInput{TopicPath: "ai", Title: fmt.Sprintf("e%d", i), Content: "c", Depth: 1})
		require.NoError(t, err)
	}

	edges, err := kg.Backend().GetEdges(ctx, "ai", graph.EdgeExplored, graph.In)
	require.NoError(t, err)
	require.Len(t, edges, 1, "at most one EXPLORED edge per (user, topic)")
	count, _ := graph.ToFloat(edges[0].Properties["count"])
	assert.Equal(t, 2.0, count)
}

func TestExplore_Gated(t *testing.T) {
	ctx := context.Background()
	kg := newTestGraph(t)
	require.NoError(t, kg.RegisterTopic(ctx, "ai", kgraph.TopicInfo{}))

	id, err := kg.Explore(ctx, kgraph.ExploreInput{
		TopicPath:  "ai",
		Title:      "Premium",
		Content:    "secret content",
		Depth:      1,
		Price:      "10",
		GatewayURL: "https://gateway.example/pay",
	})
	require.NoError(t, err)

	n, err := kg.Backend().GetNode(ctx, graph.LabelExploration, id)
	require.NoError(t, err)
	require.NotNil(t, n)

	// Content withheld, hash of the original kept.
	require.True(t, n.HasProp("content"))
	assert.Nil(t, n.Properties["content"])
	assert.Equal(t, contenthash.SHA256{}.Sum("secret content"), n.StringProp("content_hash"))

	// Price alone does not gate.
	open, err := kg.Explore(ctx, kgraph.ExploreInput{TopicPath: "ai", Title: "Open", Content: "visible", Depth: 1, Price: "10"})
	require.NoError(t, err)
	n2, err := kg.Backend().GetNode(ctx, graph.LabelExploration, open)
	require.NoError(t, err)
	assert.Equal(t, "visible", n2.Properties["content"])
}

func TestExplore_BuildsOnTags(t *testing.T) {
	ctx := context.Background()
	kg := newTestGraph(t)
	require.NoError(t, kg.RegisterTopic(ctx, "ai", kgraph.TopicInfo{}))

	root, err := kg.Explore(ctx, kgraph.ExploreInput{TopicPath: "ai", Title: "Root", Content: "r", Depth: 1})
	require.NoError(t, err)

	child, err := kg.Explore(ctx, kgraph.ExploreInput{
		TopicPath: "ai", Title: "Child", Content: "c", Depth: 2,
		// Malformed and empty suffixes are dropped silently.
		Tags: fmt.Sprintf("survey, builds-on:%s, builds-on:, buildson:xyz", root),
	})
	require.NoError(t, err)

	edges, err := kg.Backend().GetEdges(ctx, child, graph.EdgeBuildsOn, graph.Out)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, root, edges[0].To)
}

func TestAccess(t *testing.T) {
	ctx := context.Background()
	kg := newTestGraph(t)
	require.NoError(t, kg.RegisterTopic(ctx, "ai", kgraph.TopicInfo{}))

	id, err := kg.Explore(ctx, kgraph.ExploreInput{TopicPath: "ai", Title: "Open", Content: "open content", Depth: 1})
	require.NoError(t, err)

	res, err := kg.Access(ctx, testAddress, "ai", id)
	require.NoError(t, err)
	assert.Equal(t, "open content", res.Content)
	assert.False(t, res.Paid)

	// A PAID_FOR edge records the free access.
	edges, err := kg.Backend().GetEdges(ctx, id, graph.EdgePaidFor, graph.In)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "FREE", edges[0].Properties["currency"])
	assert.Equal(t, "0", edges[0].Properties["amount"])

	// Repeated access merges onto the same edge.
	_, err = kg.Access(ctx, testAddress, "ai", id)
	require.NoError(t, err)
	edges, err = kg.Backend().GetEdges(ctx, id, graph.EdgePaidFor, graph.In)
	require.NoError(t, err)
	assert.Len(t, edges, 1)
}

func TestAccess_NotFound(t *testing.T) {
	ctx := context.Background()
	kg := newTestGraph(t)

	_, err := kg.Access(ctx, testAddress, "ai", "no-such-entry")
	assert.ErrorIs(t, err, kgraph.ErrNotFound)
}

func TestAccess_GatedReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	kg := newTestGraph(t)
	require.NoError(t, kg.RegisterTopic(ctx, "ai", kgraph.TopicInfo{}))

	id, err := kg.Explore(ctx, kgraph.ExploreInput{
		TopicPath: "ai", Title: "Premium", Content: "hidden", Depth: 1,
		Price: "5", GatewayURL: "https://gateway.example",
	})
	require.NoError(t, err)

	res, err := kg.Access(ctx, testAddress, "ai", id)
	require.NoError(t, err)
	assert.Empty(t, res.Content)
}

func TestGetExplorations(t *testing.T) {
	ctx := context.Background()
	kg := newTestGraph(t)
	require.NoError(t, kg.RegisterTopic(ctx, "ai", kgraph.TopicInfo{}))
	require.NoError(t, kg.RegisterTopic(ctx, "math", kgraph.TopicInfo{}))

	// Nil before any creation.
	m, err := kg.GetExplorations(ctx, testAddress, "ai")
	require.NoError(t, err)
	assert.Nil(t, m)

	id, err := kg.Explore(ctx, kgraph.ExploreInput{TopicPath: "ai", Title: "A", Content: "a", Depth: 1})
	require.NoError(t, err)

	m, err = kg.GetExplorations(ctx, testAddress, "ai")
	require.NoError(t, err)
	require.Len(t, m, 1)
	assert.Equal(t, "A", m[id].Title)

	// Creations exist but none in this topic: empty, not nil.
	m, err = kg.GetExplorations(ctx, testAddress, "math")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Empty(t, m)

	// Unknown user has no creations.
	m, err = kg.GetExplorations(ctx, "0xNobody", "ai")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestGetExplorationsByUser_KeyedByEscapedPath(t *testing.T) {
	ctx := context.Background()
	kg := newTestGraph(t)
	require.NoError(t, kg.RegisterTopic(ctx, "ai", kgraph.TopicInfo{}))
	require.NoError(t, kg.RegisterTopic(ctx, "ai/transformers", kgraph.TopicInfo{}))

	_, err := kg.Explore(ctx, kgraph.ExploreInput{TopicPath: "ai/transformers", Title: "A", Content: "a", Depth: 1})
	require.NoError(t, err)
	_, err = kg.Explore(ctx, kgraph.ExploreInput{TopicPath: "ai", Title: "B", Content: "b", Depth: 1})
	require.NoError(t, err)

	grouped, err := kg.GetExplorationsByUser(ctx, testAddress)
	require.NoError(t, err)
	require.Len(t, grouped, 2)
	assert.Contains(t, grouped, "ai|transformers")
	assert.Contains(t, grouped, "ai")
	assert.Len(t, grouped["ai|transformers"], 1)
}

func TestGetExplorers(t *testing.T) {
	ctx := context.Background()
	b := memgraph.New()
	require.NoError(t, b.Initialize(context.Background()))

	alice := kgraph.New(b, "0xAlice")
	bob := kgraph.New(b, "0xBob")

	require.NoError(t, alice.RegisterTopic(ctx, "ai", kgraph.TopicInfo{}))
	_, err := alice.Explore(ctx, kgraph.ExploreInput{TopicPath: "ai", Title: "A", Content: "a", Depth: 1})
	require.NoError(t, err)
	_, err = bob.Explore(ctx, kgraph.ExploreInput{TopicPath: "ai", Title: "B", Content: "b", Depth: 2})
	require.NoError(t, err)
	_, err = bob.Explore(ctx, kgraph.ExploreInput{TopicPath: "ai", Title: "C", Content: "c", Depth: 3})
	require.NoError(t, err)

	explorers, err := alice.GetExplorers(ctx, "ai")
	require.NoError(t, err)
	assert.Equal(t, []string{"0xAlice", "0xBob"}, explorers)
}

func TestGetTopicStats(t *testing.T) {
	ctx := context.Background()
	kg := newTestGraph(t)
	require.NoError(t, kg.RegisterTopic(ctx, "ai", kgraph.TopicInfo{}))

	for i, depth := range []int{3, 4, 5} {
		_, err := kg.Explore(ctx, kgraph.ExploreInput{
			TopicPath: "ai", Title: fmt.Sprintf("e%d", i), Content: "c", Depth: depth,
		})
		require.NoError(t, err)
	}

	stats, err := kg.GetTopicStats(ctx, "ai")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ExplorerCount)
	assert.Equal(t, 5, stats.MaxDepth)
	assert.InDelta(t, 4, stats.AvgDepth, 0.005)
}

func TestGetFrontierMap(t *testing.T) {
	ctx := context.Background()
	kg := newTestGraph(t)
	require.NoError(t, kg.RegisterTopic(ctx, "ai", kgraph.TopicInfo{}))
	require.NoError(t, kg.RegisterTopic(ctx, "ai/nlp", kgraph.TopicInfo{}))
	require.NoError(t, kg.RegisterTopic(ctx, "ai/vision", kgraph.TopicInfo{}))

	for _, depth := range []int{2, 6} {
		_, err := kg.Explore(ctx, kgraph.ExploreInput{TopicPath: "ai/nlp", Title: "e", Content: "c", Depth: depth})
		require.NoError(t, err)
	}

	frontier, err := kg.GetFrontierMap(ctx, "ai")
	require.NoError(t, err)
	require.Len(t, frontier, 2)
	assert.Equal(t, 1, frontier["ai/nlp"].ExplorerCount, "repeat explores by one user share a single EXPLORED edge")
	assert.Equal(t, 6, frontier["ai/nlp"].MaxDepth)
	assert.InDelta(t, 4, frontier["ai/nlp"].AvgDepth, 0.005)
	assert.Zero(t, frontier["ai/vision"].ExplorerCount)

	// Without a parent, the map covers root topics via per-topic stats.
	// Activity on subtopics does not roll up: all explores above target
	// ai/nlp, so ai itself has no explorers.
	rootFrontier, err := kg.GetFrontierMap(ctx, "")
	require.NoError(t, err)
	require.Len(t, rootFrontier, 1)
	assert.Zero(t, rootFrontier["ai"].ExplorerCount)

	_, err = kg.Explore(ctx, kgraph.ExploreInput{TopicPath: "ai", Title: "root note", Content: "c", Depth: 1})
	require.NoError(t, err)
	rootFrontier, err = kg.GetFrontierMap(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, rootFrontier["ai"].ExplorerCount)
}

// buildChain creates Root <- Child 1 <- Grandchild via builds-on tags and
// returns their ids in that order.
func buildChain(t *testing.T, ctx context.Context, kg *kgraph.KnowledgeGraph) (string, string, string) {
	t.Helper()
	require.NoError(t, kg.RegisterTopic(ctx, "ai", kgraph.TopicInfo{}))

	a, err := kg.Explore(ctx, kgraph.ExploreInput{TopicPath: "ai", Title: "Root", Content: "r", Depth: 1})
	require.NoError(t, err)
	b, err := kg.Explore(ctx, kgraph.ExploreInput{
		TopicPath: "ai", Title: "Child 1", Content: "c", Depth: 2,
		Tags: "builds-on:" + a,
	})
	require.NoError(t, err)
	c, err := kg.Explore(ctx, kgraph.ExploreInput{
		TopicPath: "ai", Title: "Grandchild", Content: "g", Depth: 3,
		Tags: "builds-on:" + b,
	})
	require.NoError(t, err)
	return a, b, c
}

func titlesOf(explorations []kgraph.Exploration) []string {
	titles := make([]string, 0, len(explorations))
	for _, e := range explorations {
		titles = append(titles, e.Title)
	}
	return titles
}

func TestGetLineage(t *testing.T) {
	ctx := context.Background()
	kg := newTestGraph(t)
	_, _, c := buildChain(t, ctx, kg)

	lineage, err := kg.GetLineage(ctx, c)
	require.NoError(t, err)
	titles := titlesOf(lineage)
	assert.Contains(t, titles, "Grandchild")
	assert.Contains(t, titles, "Child 1")
	assert.Equal(t, "Grandchild", titles[0], "lineage starts at the queried exploration")
}

func TestGetDescendants(t *testing.T) {
	ctx := context.Background()
	kg := newTestGraph(t)
	a, _, _ := buildChain(t, ctx, kg)

	descendants, err := kg.GetDescendants(ctx, a)
	require.NoError(t, err)
	require.Len(t, descendants, 2)
	assert.ElementsMatch(t, []string{"Child 1", "Grandchild"}, titlesOf(descendants))
}

func TestGetShortestPath(t *testing.T) {
	ctx := context.Background()
	kg := newTestGraph(t)
	a, _, c := buildChain(t, ctx, kg)

	path, err := kg.GetShortestPath(ctx, a, c)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(path), 2)
	assert.Equal(t, a, path[0].ID)
	assert.Equal(t, c, path[len(path)-1].ID)

	isolated, err := kg.Explore(ctx, kgraph.ExploreInput{TopicPath: "ai", Title: "Isolated", Content: "i", Depth: 1})
	require.NoError(t, err)
	path, err = kg.GetShortestPath(ctx, a, isolated)
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestTakeSnapshotAndTxLog(t *testing.T) {
	ctx := context.Background()
	kg := newTestGraph(t)

	require.NoError(t, kg.RegisterTopic(ctx, "ai", kgraph.TopicInfo{Title: "AI"}))
	_, err := kg.Explore(ctx, kgraph.ExploreInput{TopicPath: "ai", Title: "A", Content: "a", Depth: 1})
	require.NoError(t, err)
	_, err = kg.Explore(ctx, kgraph.ExploreInput{TopicPath: "ai", Title: "B", Content: "b", Depth: 2})
	require.NoError(t, err)

	preNodes, err := kg.Backend().NodeCount(ctx, "")
	require.NoError(t, err)
	preEdges, err := kg.Backend().EdgeCount(ctx, "")
	require.NoError(t, err)

	snap, err := kg.TakeSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, preNodes, snap.NodeCount)
	assert.Equal(t, preEdges, snap.RelCount)
	assert.Equal(t, 3, snap.TxCount)

	// The snapshot itself adds one node and tx_count INCLUDES edges.
	postNodes, err := kg.Backend().NodeCount(ctx, "")
	require.NoError(t, err)
	postEdges, err := kg.Backend().EdgeCount(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, preNodes+1, postNodes)
	assert.Equal(t, preEdges+snap.TxCount, postEdges)

	entries, err := kg.GetTxLog(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	ops := make([]string, 0, len(entries))
	for _, e := range entries {
		ops = append(ops, e.Op)
		assert.Equal(t, testAddress, e.Actor)
		assert.Len(t, e.ID, pushid.Length)
	}
	assert.Equal(t, []string{"registerTopic", "explore", "explore"}, ops)

	// Entries sort ascending; ids are monotonic so ties break correctly.
	for i := 1; i < len(entries); i++ {
		assert.True(t, entries[i-1].ID < entries[i].ID)
	}

	limited, err := kg.GetTxLog(ctx, 0, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestVerifyIntegrity(t *testing.T) {
	ctx := context.Background()
	kg := newTestGraph(t)
	require.NoError(t, kg.RegisterTopic(ctx, "ai", kgraph.TopicInfo{}))

	for i := 0; i < 3; i++ {
		_, err := kg.Explore(ctx, kgraph.ExploreInput{
			TopicPath: "ai", Title: fmt.Sprintf("e%d", i), Content: fmt.Sprintf("content %d", i), Depth: 1,
		})
		require.NoError(t, err)
	}
	// A gated exploration cannot be checked and counts as valid.
	_, err := kg.Explore(ctx, kgraph.ExploreInput{
		TopicPath: "ai", Title: "Gated", Content: "hidden", Depth: 1,
		Price: "1", GatewayURL: "https://gateway.example",
	})
	require.NoError(t, err)

	report, err := kg.VerifyIntegrity(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 4, report.Valid)
	assert.Empty(t, report.Invalid)
}

func TestVerifyIntegrity_DetectsTampering(t *testing.T) {
	ctx := context.Background()
	kg := newTestGraph(t)
	require.NoError(t, kg.RegisterTopic(ctx, "ai", kgraph.TopicInfo{}))

	id, err := kg.Explore(ctx, kgraph.ExploreInput{TopicPath: "ai", Title: "A", Content: "original", Depth: 1})
	require.NoError(t, err)

	// Corrupt the stored content behind the domain layer's back.
	require.NoError(t, kg.Backend().MergeNode(ctx, graph.LabelExploration, id, map[string]any{
		"content": "tampered",
	}))

	report, err := kg.VerifyIntegrity(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total)
	assert.Zero(t, report.Valid)
	assert.Equal(t, []string{id}, report.Invalid)
}
