package graph

import (
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"

	"space_syntax/pkg/geo"
)

// endpointIndex maps every road endpoint to the roads ending there, in road
// order. A road whose ends coincide is listed twice.
func endpointIndex(roads []geo.Polyline) map[geo.Point3][]int {
	ends := make(map[geo.Point3][]int, 2*len(roads))
	for i, r := range roads {
		ends[r.First()] = append(ends[r.First()], i)
		ends[r.Last()] = append(ends[r.Last()], i)
	}
	return ends
}

// chainGraph connects two roads whenever they meet at an endpoint shared by
// exactly those two roads. Every vertex has degree at most two, so its
// components are simple paths or cycles.
func chainGraph(roads []geo.Polyline) *simple.UndirectedGraph {
	aux := simple.NewUndirectedGraph()
	for _, ids := range endpointIndex(roads) {
		if len(ids) != 2 || ids[0] == ids[1] {
			continue
		}
		aux.SetEdge(aux.NewEdge(simple.Node(int64(ids[0])), simple.Node(int64(ids[1]))))
	}
	return aux
}

// mergeChains concatenates every maximal chain of roads joined at degree-two
// endpoints into one road. Chains are walked from one of their two ends;
// closed rings with no free end stay unmerged. The returned members list the
// input roads making up each output road, in walk order. Output roads are
// ordered by their first member's position in the input.
func mergeChains(roads []geo.Polyline) ([]geo.Polyline, [][]int) {
	aux := chainGraph(roads)

	chainOf := make([]int, len(roads))
	for i := range chainOf {
		chainOf[i] = -1
	}
	var chains [][]int
	dfs := traverse.DepthFirst{}
	for i := range roads {
		id := int64(i)
		if chainOf[i] >= 0 || aux.Node(id) == nil || aux.From(id).Len() != 1 {
			continue
		}
		var chain []int
		dfs.Visit = func(n graph.Node) { chain = append(chain, int(n.ID())) }
		dfs.Walk(aux, simple.Node(id), nil)
		for _, m := range chain {
			chainOf[m] = len(chains)
		}
		chains = append(chains, chain)
	}

	var out []geo.Polyline
	var members [][]int
	emitted := make([]bool, len(chains))
	for i, r := range roads {
		c := chainOf[i]
		if c < 0 {
			out = append(out, r.Clone())
			members = append(members, []int{i})
			continue
		}
		if emitted[c] {
			continue
		}
		emitted[c] = true
		out = append(out, joinChain(roads, chains[c]))
		members = append(members, chains[c])
	}
	return out, members
}

// joinChain concatenates consecutive roads of a chain, reversing pieces so
// each one continues from the end of the previous.
func joinChain(roads []geo.Polyline, chain []int) geo.Polyline {
	pts := roads[chain[0]].Clone()
	if len(chain) == 1 {
		return pts
	}
	next := roads[chain[1]]
	if pts.Last() != next.First() && pts.Last() != next.Last() {
		pts = pts.Reversed()
	}
	for _, id := range chain[1:] {
		r := roads[id]
		if r.First() != pts.Last() {
			r = r.Reversed()
		}
		pts = append(pts, r[1:]...)
	}
	return pts
}
