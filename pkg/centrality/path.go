package centrality

import (
	"context"
	"errors"
	"fmt"
	"math"

	"space_syntax/pkg/graph"
)

// ErrNoPath is returned when the two vertices are not connected.
var ErrNoPath = errors.New("no path found")

// Path is a shortest path between two vertices.
type Path struct {
	Vertices []uint32 // from source to target, inclusive
	Edges    []uint32 // edge ids along the path
	Cost     float64
}

// ShortestPath returns the shortest path from one vertex to another over the
// given channel, under the same junction rule as Compute. Ties keep the first
// path found. Panics if either vertex is not in g.
func ShortestPath(ctx context.Context, g *graph.Graph, ch graph.Channel, from, to uint32) (*Path, error) {
	if from >= g.NumVertices || to >= g.NumVertices {
		panic(fmt.Sprintf("centrality: path %d->%d references a vertex outside [0,%d)", from, to, g.NumVertices))
	}
	if from == to {
		return &Path{Vertices: []uint32{from}}, nil
	}

	weights := g.Weights(ch)
	st := newSourceState(g.NumVertices)
	predEdge := make(map[uint32]uint32)

	st.touch(from)
	st.Dist[from] = 0
	st.PQ.Push(from, 0)

	iterations := 0
	for st.PQ.Len() > 0 {
		// Check context cancellation periodically.
		iterations++
		if iterations%100 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		item := st.PQ.Pop()
		v := item.Node
		if st.Settled[v] || item.Dist > st.Dist[v] {
			continue // stale entry
		}
		st.Settled[v] = true
		if v == to {
			break
		}

		start, end := g.EdgesFrom(v)
		for _, e := range g.AdjEdge[start:end] {
			w := g.Other(e, v)
			if st.Settled[w] || turnsBack(g, st.Preds[v], e) {
				continue
			}
			nd := item.Dist + float64(weights[e])
			old := st.Dist[w]
			switch {
			case math.IsInf(old, 1) || nd < old-tieTolerance(old):
				st.touch(w)
				st.Dist[w] = nd
				predEdge[w] = e
				st.Preds[w] = append(st.Preds[w][:0], e)
				st.PQ.Push(w, nd)
			case nd <= old+tieTolerance(old):
				st.Preds[w] = append(st.Preds[w], e)
			}
		}
	}

	if !st.Settled[to] {
		return nil, ErrNoPath
	}
	return reconstructPath(g, predEdge, from, to, st.Dist[to]), nil
}

// reconstructPath walks predecessor edges back from the target and reverses
// them into source → target order.
func reconstructPath(g *graph.Graph, predEdge map[uint32]uint32, from, to uint32, cost float64) *Path {
	path := &Path{Cost: cost}
	node := to
	for node != from {
		e, ok := predEdge[node]
		if !ok {
			break
		}
		path.Vertices = append(path.Vertices, node)
		path.Edges = append(path.Edges, e)
		node = g.Other(e, node)
	}
	path.Vertices = append(path.Vertices, from)

	// Reverse to get source → target.
	for i, j := 0, len(path.Vertices)-1; i < j; i, j = i+1, j-1 {
		path.Vertices[i], path.Vertices[j] = path.Vertices[j], path.Vertices[i]
	}
	for i, j := 0, len(path.Edges)-1; i < j; i, j = i+1, j-1 {
		path.Edges[i], path.Edges[j] = path.Edges[j], path.Edges[i]
	}
	return path
}
