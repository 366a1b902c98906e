package centrality

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"space_syntax/pkg/graph"
)

// pathGraph builds 0 - 1 - ... - n-1 with unit metric weights.
func pathGraph(n int) *graph.Graph {
	b := graph.NewBuilder(n)
	for i := 0; i+1 < n; i++ {
		b.AddEdge(uint32(i), uint32(i+1), 1, 0, 0, true)
	}
	return b.Freeze()
}

// gridGraph builds a w x h lattice with unit metric weights and angular
// weight 1 on every edge.
func gridGraph(w, h int) *graph.Graph {
	b := graph.NewBuilder(w * h)
	id := func(x, y int) uint32 { return uint32(y*w + x) }
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x+1 < w {
				b.AddEdge(id(x, y), id(x+1, y), 1, 1, 0, true)
			}
			if y+1 < h {
				b.AddEdge(id(x, y), id(x, y+1), 1, 1, 0, true)
			}
		}
	}
	return b.Freeze()
}

// randomGraph builds a connected graph with distinct random metric weights.
func randomGraph(n, extra int, seed uint64) *graph.Graph {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	b := graph.NewBuilder(n)
	for v := 1; v < n; v++ {
		u := rng.IntN(v)
		b.AddEdge(uint32(v), uint32(u), float32(1+rng.Float64()*99), float32(rng.Float64()*2), 0, true)
	}
	for i := 0; i < extra; i++ {
		v, u := rng.IntN(n), rng.IntN(n)
		b.AddEdge(uint32(v), uint32(u), float32(1+rng.Float64()*99), float32(rng.Float64()*2), 0, true)
	}
	return b.Freeze()
}

// gonumGraph mirrors g's metric channel as a gonum weighted graph.
func gonumGraph(g *graph.Graph) *simple.WeightedUndirectedGraph {
	wg := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for v := int64(0); v < int64(g.NumVertices); v++ {
		wg.AddNode(simple.Node(v))
	}
	for e := uint32(0); e < g.NumEdges; e++ {
		wg.SetWeightedEdge(wg.NewWeightedEdge(
			simple.Node(int64(g.EdgeV[e])),
			simple.Node(int64(g.EdgeU[e])),
			float64(g.Metric[e]),
		))
	}
	return wg
}

func TestPathGraphBetweenness(t *testing.T) {
	const n = 7
	res, err := Compute(context.Background(), pathGraph(n), Options{Channel: graph.Metric})
	require.NoError(t, err)
	require.True(t, res.Complete)

	for i := 0; i < n; i++ {
		assert.InDelta(t, float64(i*(n-1-i)), res.Betweenness[i], 1e-9, "vertex %d", i)
		assert.Equal(t, n-1, res.NodeCount[i])

		var depth float64
		for j := 0; j < n; j++ {
			depth += math.Abs(float64(i - j))
		}
		assert.Equal(t, depth, res.TotalDepth[i], "vertex %d", i)
	}
	assert.Nil(t, res.Subgraphs)
}

func TestIsolatedVertex(t *testing.T) {
	b := graph.NewBuilder(3)
	b.AddEdge(0, 1, 2, 0, 0, true)
	res, err := Compute(context.Background(), b.Freeze(), Options{Channel: graph.Metric})
	require.NoError(t, err)

	assert.Zero(t, res.NodeCount[2])
	assert.Zero(t, res.TotalDepth[2])
	assert.Zero(t, res.Betweenness[2])
	assert.Equal(t, 1, res.NodeCount[0])
	assert.Equal(t, 2.0, res.TotalDepth[0])
}

func TestEmptyGraph(t *testing.T) {
	res, err := Compute(context.Background(), graph.NewBuilder(0).Freeze(), Options{})
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.Empty(t, res.TotalDepth)
}

func TestGridBetweennessSymmetry(t *testing.T) {
	// In a 3x3 lattice the centre carries the most shortest paths, then the
	// edge midpoints, then the corners.
	res, err := Compute(context.Background(), gridGraph(3, 3), Options{Channel: graph.Metric})
	require.NoError(t, err)

	for _, mid := range []int{3, 5, 7} {
		assert.InDelta(t, res.Betweenness[1], res.Betweenness[mid], 1e-9)
	}
	for _, corner := range []int{2, 6, 8} {
		assert.InDelta(t, res.Betweenness[0], res.Betweenness[corner], 1e-9)
	}
	assert.Greater(t, res.Betweenness[4], res.Betweenness[1])
	assert.Greater(t, res.Betweenness[1], res.Betweenness[0])
	assert.InDelta(t, 5.0, res.Betweenness[1], 1e-9)
}

func TestTotalDepthMatchesGonum(t *testing.T) {
	g := randomGraph(60, 90, 3)
	res, err := Compute(context.Background(), g, Options{Channel: graph.Metric, Workers: 3})
	require.NoError(t, err)

	wg := gonumGraph(g)
	for s := int64(0); s < int64(g.NumVertices); s++ {
		shortest := path.DijkstraFrom(simple.Node(s), wg)
		var want float64
		for v := int64(0); v < int64(g.NumVertices); v++ {
			if v != s {
				want += shortest.WeightTo(v)
			}
		}
		assert.InDelta(t, want, res.TotalDepth[s], 1e-6*want, "source %d", s)
		assert.Equal(t, int(g.NumVertices)-1, res.NodeCount[s])
	}
}

func TestBetweennessMatchesBruteForce(t *testing.T) {
	// Random real weights make every shortest path unique, so betweenness is
	// the number of pairs whose path passes through the vertex.
	g := randomGraph(30, 40, 9)
	res, err := Compute(context.Background(), g, Options{Channel: graph.Metric})
	require.NoError(t, err)

	wg := gonumGraph(g)
	want := make([]float64, g.NumVertices)
	for s := int64(0); s < int64(g.NumVertices); s++ {
		shortest := path.DijkstraFrom(simple.Node(s), wg)
		for dst := s + 1; dst < int64(g.NumVertices); dst++ {
			nodes, _ := shortest.To(dst)
			for _, n := range nodes[1 : len(nodes)-1] {
				want[n.ID()]++
			}
		}
	}
	for v := range want {
		assert.InDelta(t, want[v], res.Betweenness[v], 1e-6, "vertex %d", v)
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	g := randomGraph(120, 200, 21)

	seq, err := Compute(context.Background(), g, Options{Channel: graph.Angular, Workers: 1})
	require.NoError(t, err)
	par, err := Compute(context.Background(), g, Options{Channel: graph.Angular, Workers: 8})
	require.NoError(t, err)

	assert.Equal(t, seq.TotalDepth, par.TotalDepth)
	assert.Equal(t, seq.NodeCount, par.NodeCount)
	for v := range seq.Betweenness {
		assert.InDelta(t, seq.Betweenness[v], par.Betweenness[v], 1e-9)
	}
}

func TestRadiusBound(t *testing.T) {
	res, err := Compute(context.Background(), pathGraph(6), Options{Channel: graph.Metric, Radius: 2})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 3, 4, 4, 3, 2}, res.NodeCount)
	assert.Equal(t, 3.0, res.TotalDepth[0])
	assert.Equal(t, []uint32{0, 1, 2}, res.Subgraphs[0])
	assert.Equal(t, []uint32{1, 2, 3, 4, 5}, res.Subgraphs[3])
}

func TestRadiusMonotonic(t *testing.T) {
	g := gridGraph(6, 5)
	radii := []float64{1, 2, 3.5, 5, 8}

	var prev *Result
	for _, r := range radii {
		res, err := Compute(context.Background(), g, Options{Channel: graph.Metric, Radius: r})
		require.NoError(t, err)
		if prev != nil {
			for v := range res.NodeCount {
				assert.GreaterOrEqual(t, res.NodeCount[v], prev.NodeCount[v], "radius %v vertex %d", r, v)
				assert.GreaterOrEqual(t, res.TotalDepth[v], prev.TotalDepth[v], "radius %v vertex %d", r, v)
			}
		}
		prev = res
	}

	global, err := Compute(context.Background(), g, Options{Channel: graph.Metric})
	require.NoError(t, err)
	// The lattice diameter is 9, so a radius of 9 is global.
	bounded, err := Compute(context.Background(), g, Options{Channel: graph.Metric, Radius: 9})
	require.NoError(t, err)
	assert.Equal(t, global.TotalDepth, bounded.TotalDepth)
	assert.Equal(t, global.NodeCount, bounded.NodeCount)
}

func TestPerSourceRadii(t *testing.T) {
	g := pathGraph(5)
	res, err := Compute(context.Background(), g, Options{
		Channel: graph.Metric,
		Radii:   []float64{1, 0, 2, math.Inf(1), 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 4, 4, 1}, res.NodeCount)
	require.NotNil(t, res.Subgraphs)
}

func TestRestrictToSubgraphs(t *testing.T) {
	g := gridGraph(5, 5)
	metric, err := Compute(context.Background(), g, Options{Channel: graph.Metric, Radius: 2})
	require.NoError(t, err)

	angular, err := Compute(context.Background(), g, Options{
		Channel:  graph.Angular,
		Restrict: metric.Subgraphs,
	})
	require.NoError(t, err)

	for v := range angular.NodeCount {
		// Every angular edge weighs 1, so the restricted angular pass sees
		// exactly the metric neighbourhood.
		assert.Equal(t, metric.NodeCount[v], angular.NodeCount[v], "vertex %d", v)
		assert.Equal(t, metric.TotalDepth[v], angular.TotalDepth[v], "vertex %d", v)
	}
	assert.Nil(t, angular.Subgraphs)
}

// sharpY is three roads meeting at one junction: 0 and 1 continue straight
// on, 2 leaves at a 150 degree turn from 0 and a 30 degree turn from 1.
func sharpY(junction uint32) *graph.Graph {
	b := graph.NewBuilder(3)
	b.AddEdgeAt(0, 1, junction, 10, 0, 0, true)
	b.AddEdgeAt(0, 2, junction, 10, 1.666667, 0, true)
	b.AddEdgeAt(1, 2, junction, 10, 0.333333, 0, true)
	return b.Freeze()
}

func TestNoTurningBackAtJunction(t *testing.T) {
	res, err := Compute(context.Background(), sharpY(0), Options{Channel: graph.Angular})
	require.NoError(t, err)

	// 0 reaches 2 only by the direct sharp turn, not through 1.
	assert.InDelta(t, 1.666667, res.TotalDepth[0], 1e-6)
	assert.InDelta(t, 0.333333, res.TotalDepth[1], 1e-6)
	assert.InDelta(t, 2.0, res.TotalDepth[2], 1e-6)
	for v := range 3 {
		assert.Zero(t, res.Betweenness[v], "vertex %d", v)
		assert.Equal(t, 2, res.NodeCount[v])
	}

	p, err := ShortestPath(context.Background(), sharpY(0), graph.Angular, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 2}, p.Vertices)
	assert.InDelta(t, 1.666667, p.Cost, 1e-6)
}

func TestUnknownJunctionsAllowAnyPath(t *testing.T) {
	res, err := Compute(context.Background(), sharpY(graph.NoJunction), Options{Channel: graph.Angular})
	require.NoError(t, err)
	assert.InDelta(t, 0.333333, res.TotalDepth[0], 1e-6)
	assert.InDelta(t, 1.0, res.Betweenness[1], 1e-9)
}

func TestTurnAtNextJunctionAllowed(t *testing.T) {
	// 0 and 1 meet at junction 0; 1 and 2 at junction 1, where 0 does not
	// reach. The path 0-1-2 passes two different junctions.
	b := graph.NewBuilder(3)
	b.AddEdgeAt(0, 1, 0, 1, 0, 0, true)
	b.AddEdgeAt(1, 2, 1, 1, 1, 0, true)
	res, err := Compute(context.Background(), b.Freeze(), Options{Channel: graph.Angular})
	require.NoError(t, err)
	assert.Equal(t, 2, res.NodeCount[0])
	assert.InDelta(t, 1.0, res.TotalDepth[0], 1e-9)
	assert.InDelta(t, 1.0, res.Betweenness[1], 1e-9)
}

func TestCancelledContextReturnsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Compute(ctx, gridGraph(4, 4), Options{Channel: graph.Metric, Workers: 2})
	require.NoError(t, err)
	assert.False(t, res.Complete)
	assert.Zero(t, res.Processed)
	assert.Len(t, res.TotalDepth, 16)
}

func TestInvalidOptions(t *testing.T) {
	g := pathGraph(3)
	ctx := context.Background()

	_, err := Compute(ctx, g, Options{Radius: -1})
	assert.True(t, errors.Is(err, ErrInvalidRadius))

	_, err = Compute(ctx, g, Options{Radius: math.NaN()})
	assert.True(t, errors.Is(err, ErrInvalidRadius))

	_, err = Compute(ctx, g, Options{Radii: []float64{1, 2}})
	assert.True(t, errors.Is(err, ErrOptionsMismatch))

	_, err = Compute(ctx, g, Options{Radii: []float64{1, -2, 3}})
	assert.True(t, errors.Is(err, ErrInvalidRadius))

	_, err = Compute(ctx, g, Options{Restrict: [][]uint32{{0}}})
	assert.True(t, errors.Is(err, ErrOptionsMismatch))
}

func TestMinHeap(t *testing.T) {
	var h MinHeap
	h.Push(3, 2.5)
	h.Push(1, 1.0)
	h.Push(7, 2.5)
	h.Push(0, 0.25)

	want := []PQItem{{0, 0.25}, {1, 1.0}, {3, 2.5}, {7, 2.5}}
	for _, w := range want {
		assert.Equal(t, w.Dist, h.PeekDist())
		assert.Equal(t, w, h.Pop())
	}
	assert.True(t, math.IsInf(h.PeekDist(), 1))
}

func BenchmarkComputeGrid(b *testing.B) {
	g := gridGraph(40, 40)
	for b.Loop() {
		if _, err := Compute(context.Background(), g, Options{Channel: graph.Metric}); err != nil {
			b.Fatal(err)
		}
	}
}
