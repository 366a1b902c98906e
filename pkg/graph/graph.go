package graph

import (
	"fmt"
	"strings"
)

// Channel selects which edge weight a traversal uses.
type Channel uint8

const (
	Metric Channel = iota
	Angular
	Custom
)

func (c Channel) String() string {
	switch c {
	case Metric:
		return "metric"
	case Angular:
		return "angular"
	case Custom:
		return "custom"
	}
	return fmt.Sprintf("channel(%d)", uint8(c))
}

// ParseChannel parses a channel name as printed by Channel.String.
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "metric":
		return Metric, nil
	case "angular":
		return Angular, nil
	case "custom":
		return Custom, nil
	}
	return 0, fmt.Errorf("unknown channel %q", s)
}

// NoJunction marks an edge whose junction is unknown.
const NoJunction = ^uint32(0)

// Edge is an undirected edge between two roads meeting at a junction.
type Edge struct {
	V, U     uint32
	Junction uint32 // id of the shared point, or NoJunction
	Metric   float32
	Angular  float32
	Custom   float32
}

// Graph is a frozen undirected graph in CSR (Compressed Sparse Row) format.
// Vertices are road ids, edges connect roads sharing a junction. Every edge id
// appears exactly once in the adjacency range of each of its two endpoints.
type Graph struct {
	NumVertices uint32
	NumEdges    uint32
	FirstOut    []uint32 // len: NumVertices + 1; FirstOut[v]..FirstOut[v+1] index AdjEdge
	AdjEdge     []uint32 // len: 2 * NumEdges; incident edge ids, ascending per vertex

	EdgeV    []uint32  // len: NumEdges
	EdgeU    []uint32  // len: NumEdges
	Junction []uint32  // len: NumEdges; edges with the same id share one point
	Metric   []float32 // len: NumEdges
	Angular  []float32 // len: NumEdges
	Custom   []float32 // len: NumEdges
}

func (g *Graph) checkVertex(v uint32) {
	if v >= g.NumVertices {
		panic(fmt.Sprintf("graph: vertex %d out of range [0,%d)", v, g.NumVertices))
	}
}

// EdgesFrom returns the range of AdjEdge indices for edges incident to v.
func (g *Graph) EdgesFrom(v uint32) (start, end uint32) {
	return g.FirstOut[v], g.FirstOut[v+1]
}

// Incident returns the ids of the edges incident to v. Panics if v is not a
// vertex of g.
func (g *Graph) Incident(v uint32) []uint32 {
	g.checkVertex(v)
	return g.AdjEdge[g.FirstOut[v]:g.FirstOut[v+1]]
}

// Degree returns the number of edges incident to v.
func (g *Graph) Degree(v uint32) int {
	g.checkVertex(v)
	return int(g.FirstOut[v+1] - g.FirstOut[v])
}

// Edge returns the edge with the given id.
func (g *Graph) Edge(id uint32) Edge {
	return Edge{
		V:        g.EdgeV[id],
		U:        g.EdgeU[id],
		Junction: g.Junction[id],
		Metric:   g.Metric[id],
		Angular:  g.Angular[id],
		Custom:   g.Custom[id],
	}
}

// Other returns the endpoint of edge id opposite to v.
func (g *Graph) Other(id, v uint32) uint32 {
	if g.EdgeV[id] == v {
		return g.EdgeU[id]
	}
	return g.EdgeV[id]
}

// Weights returns the per-edge weights of a channel, indexed by edge id.
func (g *Graph) Weights(ch Channel) []float32 {
	switch ch {
	case Metric:
		return g.Metric
	case Angular:
		return g.Angular
	case Custom:
		return g.Custom
	}
	panic(fmt.Sprintf("graph: unknown channel %d", ch))
}

// SameJunction reports whether edges a and b meet at the same known point.
func (g *Graph) SameJunction(a, b uint32) bool {
	return g.Junction[a] != NoJunction && g.Junction[a] == g.Junction[b]
}

// HasEdge reports whether v and u are adjacent.
func (g *Graph) HasEdge(v, u uint32) bool {
	g.checkVertex(u)
	for _, e := range g.Incident(v) {
		if g.Other(e, v) == u {
			return true
		}
	}
	return false
}

// Validate checks the adjacency invariants and returns the first violation.
func (g *Graph) Validate() error {
	if len(g.FirstOut) != int(g.NumVertices)+1 {
		return fmt.Errorf("FirstOut has %d entries, want %d", len(g.FirstOut), g.NumVertices+1)
	}
	if len(g.AdjEdge) != 2*int(g.NumEdges) {
		return fmt.Errorf("AdjEdge has %d entries, want %d", len(g.AdjEdge), 2*g.NumEdges)
	}
	for _, arr := range [][]uint32{g.EdgeV, g.EdgeU, g.Junction} {
		if len(arr) != int(g.NumEdges) {
			return fmt.Errorf("edge endpoint array has %d entries, want %d", len(arr), g.NumEdges)
		}
	}
	for _, arr := range [][]float32{g.Metric, g.Angular, g.Custom} {
		if len(arr) != int(g.NumEdges) {
			return fmt.Errorf("edge weight array has %d entries, want %d", len(arr), g.NumEdges)
		}
	}

	seen := make([]uint8, g.NumEdges)
	for v := uint32(0); v < g.NumVertices; v++ {
		start, end := g.EdgesFrom(v)
		if start > end || end > uint32(len(g.AdjEdge)) {
			return fmt.Errorf("vertex %d has invalid range [%d,%d)", v, start, end)
		}
		for _, e := range g.AdjEdge[start:end] {
			if e >= g.NumEdges {
				return fmt.Errorf("vertex %d lists unknown edge %d", v, e)
			}
			if g.EdgeV[e] != v && g.EdgeU[e] != v {
				return fmt.Errorf("vertex %d lists edge %d (%d-%d) it is not an endpoint of", v, e, g.EdgeV[e], g.EdgeU[e])
			}
			seen[e]++
		}
	}
	for e, n := range seen {
		if g.EdgeV[e] == g.EdgeU[e] {
			return fmt.Errorf("edge %d is a self loop on %d", e, g.EdgeV[e])
		}
		if n != 2 {
			return fmt.Errorf("edge %d appears in %d adjacency lists, want 2", e, n)
		}
	}
	return nil
}
