package graph

// UnionFind implements a disjoint-set data structure with path compression
// and union by rank.
type UnionFind struct {
	parent []uint32
	rank   []byte // byte is sufficient, max rank ~30 for realistic graphs
	size   []uint32
}

// NewUnionFind creates a UnionFind for n elements.
func NewUnionFind(n uint32) *UnionFind {
	parent := make([]uint32, n)
	size := make([]uint32, n)
	for i := range n {
		parent[i] = i
		size[i] = 1
	}
	return &UnionFind{
		parent: parent,
		rank:   make([]byte, n),
		size:   size,
	}
}

// Find returns the representative of the set containing x, with path halving.
func (uf *UnionFind) Find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]] // path halving
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y. Returns false if already same set.
func (uf *UnionFind) Union(x, y uint32) bool {
	rx := uf.Find(x)
	ry := uf.Find(y)
	if rx == ry {
		return false
	}

	// Union by rank.
	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
	return true
}

// Size returns the size of the set containing x.
func (uf *UnionFind) Size(x uint32) uint32 {
	return uf.size[uf.Find(x)]
}

// ComponentStats summarizes the connected components of a graph.
type ComponentStats struct {
	Count   int
	Largest int      // vertex count of the giant component
	Label   []uint32 // Label[v] is the component index of v, numbered by first vertex
	Sizes   []int    // Sizes[c] is the vertex count of component c
}

func unionAll(g *Graph) *UnionFind {
	uf := NewUnionFind(g.NumVertices)
	for e := uint32(0); e < g.NumEdges; e++ {
		uf.Union(g.EdgeV[e], g.EdgeU[e])
	}
	return uf
}

// Components labels the connected components of g. Components are numbered
// in order of their lowest vertex id.
func Components(g *Graph) ComponentStats {
	uf := unionAll(g)
	stats := ComponentStats{Label: make([]uint32, g.NumVertices)}
	index := make(map[uint32]uint32)
	for v := uint32(0); v < g.NumVertices; v++ {
		root := uf.Find(v)
		c, ok := index[root]
		if !ok {
			c = uint32(len(stats.Sizes))
			index[root] = c
			stats.Sizes = append(stats.Sizes, 0)
		}
		stats.Label[v] = c
		stats.Sizes[c]++
	}
	stats.Count = len(stats.Sizes)
	for _, s := range stats.Sizes {
		stats.Largest = max(stats.Largest, s)
	}
	return stats
}

// LargestComponent returns the vertex ids belonging to the largest connected
// component, ascending. Ties go to the component with the lowest vertex id.
func LargestComponent(g *Graph) []uint32 {
	if g.NumVertices == 0 {
		return nil
	}

	uf := unionAll(g)

	// Find the representative with the largest size.
	bestRoot := uint32(0)
	bestSize := uint32(0)
	for i := uint32(0); i < g.NumVertices; i++ {
		root := uf.Find(i)
		if uf.size[root] > bestSize {
			bestRoot = root
			bestSize = uf.size[root]
		}
	}

	// Collect all vertices in the largest component.
	nodes := make([]uint32, 0, bestSize)
	for i := uint32(0); i < g.NumVertices; i++ {
		if uf.Find(i) == bestRoot {
			nodes = append(nodes, i)
		}
	}

	return nodes
}

// FilterToComponent creates a new graph over the given vertices, which must
// be ascending. Vertex nodes[i] becomes vertex i; edges with an endpoint
// outside the set are dropped and the rest keep their relative order and
// weights.
func FilterToComponent(g *Graph, nodes []uint32) *Graph {
	if len(nodes) == 0 {
		return NewBuilder(0).Freeze()
	}

	// Build old→new vertex index mapping.
	oldToNew := make(map[uint32]uint32, len(nodes))
	for newIdx, oldIdx := range nodes {
		oldToNew[oldIdx] = uint32(newIdx)
	}

	b := NewBuilder(len(nodes))
	for e := uint32(0); e < g.NumEdges; e++ {
		v, okV := oldToNew[g.EdgeV[e]]
		u, okU := oldToNew[g.EdgeU[e]]
		if !okV || !okU {
			continue
		}
		b.AddEdgeAt(v, u, g.Junction[e], g.Metric[e], g.Angular[e], g.Custom[e], false)
	}
	return b.Freeze()
}
