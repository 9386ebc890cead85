package redisgraph

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgraph-ai/kgraph/graph"
	"github.com/kgraph-ai/kgraph/graph/graphtest"
)

// setupBackend starts a miniredis instance and returns a connected backend.
func setupBackend(t *testing.T) *Backend {
	t.Helper()

	mr := miniredis.RunT(t)
	b, err := New(Options{
		URL:            fmt.Sprintf("redis://%s", mr.Addr()),
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
	})
	require.NoError(t, err)
	require.NoError(t, b.Initialize(context.Background()))

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

func TestNew_InvalidURL(t *testing.T) {
	_, err := New(Options{URL: "not a url"})
	assert.Error(t, err)
}

func TestNumbersRoundTripThroughJSON(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	require.NoError(t, b.CreateNode(ctx, graph.Node{
		Label:      graph.LabelExploration,
		ID:         "e1",
		Properties: map[string]any{"depth": 2, "content": nil},
	}))

	n, err := b.GetNode(ctx, graph.LabelExploration, "e1")
	require.NoError(t, err)
	require.NotNil(t, n)

	// Integers come back as float64; the typed accessor hides that.
	assert.Equal(t, 2, n.IntProp("depth"))

	// A nil property (gated content) survives the round trip as present
	// and nil.
	require.True(t, n.HasProp("content"))
	assert.Nil(t, n.Properties["content"])
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	require.NoError(t, b.CreateNode(ctx, graph.Node{Label: graph.LabelTopic, ID: "ai"}))
	require.NoError(t, b.CreateEdge(ctx, graph.Edge{Type: graph.EdgeParentOf, From: "ai", To: "ai/x"}))

	require.NoError(t, b.Reset(ctx))

	nodes, err := b.NodeCount(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, nodes)
	edges, err := b.EdgeCount(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, edges)
}

func TestWithTransactionLock(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	// The lock key exists while fn runs and is released afterwards.
	err := b.WithTransaction(ctx, func(ctx context.Context) error {
		held, err := b.client.Exists(ctx, b.key("lock")).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), held)
		return nil
	})
	require.NoError(t, err)

	held, err := b.client.Exists(ctx, b.key("lock")).Result()
	require.NoError(t, err)
	assert.Zero(t, held)
}

func TestClosedBackend(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	require.NoError(t, b.Close(ctx))

	_, err := b.GetNode(ctx, graph.LabelTopic, "ai")
	assert.ErrorIs(t, err, graph.ErrClosed)
	assert.ErrorIs(t, b.CreateNode(ctx, graph.Node{Label: graph.LabelTopic, ID: "ai"}), graph.ErrClosed)
}
