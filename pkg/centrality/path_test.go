package centrality

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"space_syntax/pkg/graph"
)

func TestShortestPathGrid(t *testing.T) {
	g := gridGraph(3, 3)

	p, err := ShortestPath(context.Background(), g, graph.Metric, 0, 8)
	require.NoError(t, err)
	assert.Equal(t, 4.0, p.Cost)
	require.Len(t, p.Vertices, 5)
	require.Len(t, p.Edges, 4)
	assert.Equal(t, uint32(0), p.Vertices[0])
	assert.Equal(t, uint32(8), p.Vertices[4])

	for i, e := range p.Edges {
		edge := g.Edge(e)
		a, b := p.Vertices[i], p.Vertices[i+1]
		ok := (edge.V == a && edge.U == b) || (edge.V == b && edge.U == a)
		assert.True(t, ok, "edge %d does not join %d and %d", e, a, b)
	}
}

func TestShortestPathMatchesCompute(t *testing.T) {
	g := randomGraph(40, 60, 7)
	res, err := Compute(context.Background(), g, Options{Channel: graph.Metric, Workers: 1})
	require.NoError(t, err)

	// The sum of distances to every other vertex equals TotalDepth.
	var total float64
	for v := uint32(1); v < g.NumVertices; v++ {
		p, err := ShortestPath(context.Background(), g, graph.Metric, 0, v)
		require.NoError(t, err)
		total += p.Cost
	}
	assert.InDelta(t, res.TotalDepth[0], total, 1e-6*total)
}

func TestShortestPathSameVertex(t *testing.T) {
	p, err := ShortestPath(context.Background(), pathGraph(3), graph.Metric, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, p.Vertices)
	assert.Empty(t, p.Edges)
	assert.Zero(t, p.Cost)
}

func TestShortestPathDisconnected(t *testing.T) {
	b := graph.NewBuilder(4)
	b.AddEdge(0, 1, 1, 0, 0, true)
	b.AddEdge(2, 3, 1, 0, 0, true)
	g := b.Freeze()

	_, err := ShortestPath(context.Background(), g, graph.Metric, 0, 3)
	if !errors.Is(err, ErrNoPath) {
		t.Fatalf("err = %v, want ErrNoPath", err)
	}
}

func TestShortestPathOutOfRange(t *testing.T) {
	assert.Panics(t, func() {
		_, _ = ShortestPath(context.Background(), pathGraph(3), graph.Metric, 0, 3)
	})
}

func TestShortestPathCancelled(t *testing.T) {
	g := pathGraph(500)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ShortestPath(ctx, g, graph.Metric, 0, 499)
	assert.ErrorIs(t, err, context.Canceled)
}
