// Package centrality computes shortest-path centralities over a road graph:
// total depth, node count and betweenness (choice) per vertex, optionally
// bounded by a radius.
package centrality

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"space_syntax/pkg/graph"
)

var (
	// ErrInvalidRadius is returned for a NaN or negative radius.
	ErrInvalidRadius = errors.New("radius must be a non-negative number")
	// ErrOptionsMismatch is returned when per-source options are not aligned
	// with the graph's vertices.
	ErrOptionsMismatch = errors.New("per-source options do not match vertex count")
)

// Options configures a centrality pass.
type Options struct {
	Channel graph.Channel

	// Radius bounds every search: vertices farther than Radius from the
	// source are neither counted nor expanded. 0 and +Inf mean unbounded.
	Radius float64
	// Radii overrides Radius per source vertex. Optional.
	Radii []float64

	// Restrict limits the search from source s to the vertices in
	// Restrict[s], typically the Subgraphs of an earlier pass. Optional.
	Restrict [][]uint32
	// RecordSubgraphs records each source's reachable set even when the
	// search is unbounded.
	RecordSubgraphs bool

	// Workers is the number of concurrent workers; 0 uses runtime.NumCPU().
	Workers int
	Logger  *slog.Logger // Optional, uses slog.Default() if nil
}

// Result holds per-vertex centralities indexed by vertex id.
type Result struct {
	Channel graph.Channel

	// TotalDepth is the sum of shortest distances from the vertex to every
	// vertex it reaches.
	TotalDepth []float64
	// NodeCount is the number of vertices reached, excluding the vertex itself.
	NodeCount []int
	// Betweenness is the number of shortest paths between other vertex pairs
	// passing through the vertex, with each unordered pair counted once.
	Betweenness []float64
	// Subgraphs[s] lists the vertices reached from s, ascending and including
	// s. Set only for bounded or recording passes.
	Subgraphs [][]uint32

	// Processed is the number of sources completed. It is below the vertex
	// count only when the context ended first, in which case Complete is
	// false and the arrays hold the sources finished so far.
	Processed int
	Complete  bool
}

func isUnbounded(r float64) bool { return r == 0 || math.IsInf(r, 1) }

func checkRadius(r float64) error {
	if math.IsNaN(r) || r < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidRadius, r)
	}
	return nil
}

// Compute runs one single-source search per vertex and aggregates the
// results. Sources are split into contiguous blocks, one per worker, and the
// per-worker betweenness accumulators are summed in worker order, so the
// result does not depend on scheduling.
//
// Cancellation or a deadline on ctx is checked between sources; Compute then
// returns the partial result with Complete set to false and a nil error.
func Compute(ctx context.Context, g *graph.Graph, opts Options) (*Result, error) {
	n := int(g.NumVertices)
	if err := checkRadius(opts.Radius); err != nil {
		return nil, err
	}
	if opts.Radii != nil {
		if len(opts.Radii) != n {
			return nil, fmt.Errorf("%w: %d radii for %d vertices", ErrOptionsMismatch, len(opts.Radii), n)
		}
		for _, r := range opts.Radii {
			if err := checkRadius(r); err != nil {
				return nil, err
			}
		}
	}
	if opts.Restrict != nil && len(opts.Restrict) != n {
		return nil, fmt.Errorf("%w: %d subgraphs for %d vertices", ErrOptionsMismatch, len(opts.Restrict), n)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	res := &Result{
		Channel:     opts.Channel,
		TotalDepth:  make([]float64, n),
		NodeCount:   make([]int, n),
		Betweenness: make([]float64, n),
	}
	record := opts.RecordSubgraphs || !isUnbounded(opts.Radius) || opts.Radii != nil
	if record {
		res.Subgraphs = make([][]uint32, n)
	}
	if n == 0 {
		res.Complete = true
		return res, nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, n)
	chunk := (n + workers - 1) / workers

	p := &pass{
		g:       g,
		weights: g.Weights(opts.Channel),
		opts:    opts,
		res:     res,
		record:  record,
	}

	started := time.Now()
	partial := make([][]float64, workers)
	var processed atomic.Int64
	var eg errgroup.Group
	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, min(n, (w+1)*chunk)
		if lo >= hi {
			break
		}
		eg.Go(func() error {
			st := newSourceState(g.NumVertices)
			bc := make([]float64, n)
			partial[w] = bc
			for s := lo; s < hi; s++ {
				if ctx.Err() != nil {
					return nil
				}
				p.runSource(st, uint32(s), bc)
				processed.Add(1)
			}
			return nil
		})
	}
	_ = eg.Wait()

	for _, bc := range partial {
		for v, x := range bc {
			res.Betweenness[v] += x
		}
	}
	for v := range res.Betweenness {
		res.Betweenness[v] /= 2
	}

	res.Processed = int(processed.Load())
	res.Complete = res.Processed == n
	if !res.Complete {
		logger.Warn("centrality pass interrupted",
			"channel", opts.Channel.String(),
			"processed", res.Processed,
			"vertices", n,
			"err", ctx.Err(),
		)
	} else {
		logger.Debug("centrality pass complete",
			"channel", opts.Channel.String(),
			"vertices", n,
			"workers", workers,
			"elapsed", time.Since(started),
		)
	}
	return res, nil
}

// pass is the read-only context shared by the workers of one Compute call.
// Workers write only to their own sources' entries of res.
type pass struct {
	g       *graph.Graph
	weights []float32
	opts    Options
	res     *Result
	record  bool
}

func (p *pass) radiusFor(s uint32) float64 {
	r := p.opts.Radius
	if p.opts.Radii != nil {
		r = p.opts.Radii[s]
	}
	if isUnbounded(r) {
		return math.Inf(1)
	}
	return r
}

// tieTolerance is the slack under which two path lengths count as equal.
func tieTolerance(d float64) float64 { return 1e-9 * math.Max(1, d) }

// turnsBack reports whether leaving a road along edge e exits through a
// junction the road was entered by. Such a path would touch the junction
// twice; the roads there are reached directly instead.
func turnsBack(g *graph.Graph, in []uint32, e uint32) bool {
	for _, pe := range in {
		if g.SameJunction(pe, e) {
			return true
		}
	}
	return false
}

// runSource runs Dijkstra from s with shortest-path counting, then
// back-propagates dependencies into bc.
func (p *pass) runSource(st *sourceState, s uint32, bc []float64) {
	defer st.Reset()

	g := p.g
	radius := p.radiusFor(s)
	restricted := p.opts.Restrict != nil
	if restricted {
		st.restrict(p.opts.Restrict[s])
	}

	st.touch(s)
	st.Dist[s] = 0
	st.Sigma[s] = 1
	st.PQ.Push(s, 0)

	for st.PQ.Len() > 0 {
		item := st.PQ.Pop()
		v := item.Node
		if st.Settled[v] || item.Dist > st.Dist[v] {
			continue // stale entry
		}
		st.Settled[v] = true
		st.Order = append(st.Order, v)

		dv := st.Dist[v]
		start, end := g.EdgesFrom(v)
		for _, e := range g.AdjEdge[start:end] {
			w := g.Other(e, v)
			if st.Settled[w] {
				continue
			}
			if restricted && !st.isAllowed(w) {
				continue
			}
			if turnsBack(g, st.Preds[v], e) {
				continue
			}
			nd := dv + float64(p.weights[e])
			if nd > radius {
				continue
			}

			old := st.Dist[w]
			if math.IsInf(old, 1) {
				st.touch(w)
				st.Dist[w] = nd
				st.Sigma[w] = st.Sigma[v]
				st.Preds[w] = append(st.Preds[w][:0], e)
				st.PQ.Push(w, nd)
				continue
			}
			tol := tieTolerance(old)
			switch {
			case nd < old-tol:
				st.Dist[w] = nd
				st.Sigma[w] = st.Sigma[v]
				st.Preds[w] = append(st.Preds[w][:0], e)
				st.PQ.Push(w, nd)
			case nd <= old+tol:
				st.Sigma[w] += st.Sigma[v]
				st.Preds[w] = append(st.Preds[w], e)
			}
		}
	}

	var total float64
	for i := len(st.Order) - 1; i >= 0; i-- {
		w := st.Order[i]
		coeff := (1 + st.Delta[w]) / st.Sigma[w]
		for _, e := range st.Preds[w] {
			v := g.Other(e, w)
			st.Delta[v] += st.Sigma[v] * coeff
		}
		if w != s {
			bc[w] += st.Delta[w]
			total += st.Dist[w]
		}
	}

	p.res.TotalDepth[s] = total
	p.res.NodeCount[s] = len(st.Order) - 1
	if p.record {
		sub := slices.Clone(st.Order)
		slices.Sort(sub)
		p.res.Subgraphs[s] = sub
	}
}
