package neograph

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgraph-ai/kgraph/graph"
	"github.com/kgraph-ai/kgraph/graph/graphtest"
)

// setupBackend connects to the Neo4j instance named by NEO4J_TEST_URI and
// wipes it. Skips when the variable is unset so the suite stays runnable
// without infrastructure.
func setupBackend(t *testing.T) *Backend {
	t.Helper()

	uri := os.Getenv("NEO4J_TEST_URI")
	if uri == "" {
		t.Skip("NEO4J_TEST_URI not set")
	}

	b, err := New(Options{
		URI:      uri,
		Username: os.Getenv("NEO4J_TEST_USER"),
		Password: os.Getenv("NEO4J_TEST_PASSWORD"),
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, b.Initialize(ctx))
	require.NoError(t, b.Reset(ctx))

	t.Cleanup(func() {
		_ = b.Close(context.Background())
	})
	return b
}

func TestConformance(t *testing.T) {
	graphtest.Run(t, func(t *testing.T) graph.Backend {
		return setupBackend(t)
	})
}

func TestDanglingEdgeThenNode(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	// Edge to a node that does not exist yet: a placeholder holds the spot.
	require.NoError(t, b.CreateEdge(ctx, graph.Edge{Type: graph.EdgeParentOf, From: "ai", To: "ai/nlp"}))

	count, err := b.NodeCount(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, count, "placeholders must not count as nodes")

	// Creating the real node absorbs the placeholder and keeps the edge.
	require.NoError(t, b.CreateNode(ctx, graph.Node{Label: graph.LabelTopic, ID: "ai/nlp", Properties: map[string]any{"name": "nlp"}}))
	require.NoError(t, b.CreateNode(ctx, graph.Node{Label: graph.LabelTopic, ID: "ai"}))

	count, err = b.NodeCount(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	edges, err := b.GetEdges(ctx, "ai", graph.EdgeParentOf, graph.Out)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "ai/nlp", edges[0].To)

	n, err := b.GetNode(ctx, graph.LabelTopic, "ai/nlp")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "nlp", n.StringProp("name"))
}

func TestValidation(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	assert.Error(t, b.CreateNode(ctx, graph.Node{Label: "Bogus", ID: "x"}))
	assert.Error(t, b.CreateEdge(ctx, graph.Edge{Type: "BOGUS_OF", From: "a", To: "b"}))
	_, err := b.GetEdges(ctx, "a", graph.EdgeParentOf, "sideways")
	assert.ErrorIs(t, err, graph.ErrInvalidDirection)
}

func TestNew_BadURI(t *testing.T) {
	_, err := New(Options{URI: "://bad"})
	assert.Error(t, err)
}
