package graph

import "fmt"

// Builder accumulates edges over a fixed vertex set and freezes them into a
// Graph.
type Builder struct {
	numVertices uint32
	edges       []Edge
	pairs       map[uint64]struct{}
}

// NewBuilder creates a Builder for n vertices.
func NewBuilder(n int) *Builder {
	return &Builder{
		numVertices: uint32(n),
		pairs:       make(map[uint64]struct{}),
	}
}

// NumVertices returns the fixed vertex count.
func (b *Builder) NumVertices() int { return int(b.numVertices) }

// NumEdges returns the number of edges added so far.
func (b *Builder) NumEdges() int { return len(b.edges) }

func pairKey(v, u uint32) uint64 {
	if v > u {
		v, u = u, v
	}
	return uint64(v)<<32 | uint64(u)
}

// AddEdge adds an undirected edge between v and u at an unknown junction.
// Self loops are ignored. With checkParallel an edge between an already
// connected pair is ignored. Returns whether the edge was added. Panics if v
// or u is not a vertex.
func (b *Builder) AddEdge(v, u uint32, metric, angular, custom float32, checkParallel bool) bool {
	return b.AddEdgeAt(v, u, NoJunction, metric, angular, custom, checkParallel)
}

// AddEdgeAt is AddEdge for roads meeting at the given junction id. Searches
// never leave a road through the junction they entered it by.
func (b *Builder) AddEdgeAt(v, u, junction uint32, metric, angular, custom float32, checkParallel bool) bool {
	if v >= b.numVertices || u >= b.numVertices {
		panic(fmt.Sprintf("graph: edge %d-%d references a vertex outside [0,%d)", v, u, b.numVertices))
	}
	if v == u {
		return false
	}
	key := pairKey(v, u)
	if checkParallel {
		if _, ok := b.pairs[key]; ok {
			return false
		}
	}
	b.pairs[key] = struct{}{}
	b.edges = append(b.edges, Edge{V: v, U: u, Junction: junction, Metric: metric, Angular: angular, Custom: custom})
	return true
}

// Freeze builds the CSR graph. Edge ids follow insertion order and each
// adjacency range lists incident edges in ascending id order. The Builder
// stays usable.
func (b *Builder) Freeze() *Graph {
	n := b.numVertices
	m := uint32(len(b.edges))

	g := &Graph{
		NumVertices: n,
		NumEdges:    m,
		FirstOut:    make([]uint32, n+1),
		AdjEdge:     make([]uint32, 2*m),
		EdgeV:       make([]uint32, m),
		EdgeU:       make([]uint32, m),
		Junction:    make([]uint32, m),
		Metric:      make([]float32, m),
		Angular:     make([]float32, m),
		Custom:      make([]float32, m),
	}

	// Count incident edges per vertex.
	for i, e := range b.edges {
		g.EdgeV[i] = e.V
		g.EdgeU[i] = e.U
		g.Junction[i] = e.Junction
		g.Metric[i] = e.Metric
		g.Angular[i] = e.Angular
		g.Custom[i] = e.Custom
		g.FirstOut[e.V+1]++
		g.FirstOut[e.U+1]++
	}
	// Prefix sum.
	for i := uint32(1); i <= n; i++ {
		g.FirstOut[i] += g.FirstOut[i-1]
	}

	// Place edge ids into CSR order.
	pos := make([]uint32, n)
	copy(pos, g.FirstOut[:n])
	for i, e := range b.edges {
		g.AdjEdge[pos[e.V]] = uint32(i)
		pos[e.V]++
		g.AdjEdge[pos[e.U]] = uint32(i)
		pos[e.U]++
	}

	return g
}
