// Package split turns raw, possibly overlapping 3D polylines into a set of
// atomic segments that meet only at shared endpoints.
//
// Segments are swept along X; the active set is an interval tree keyed on
// the Y extent of each segment so that only pairs whose XY envelopes overlap
// are tested for intersection.
package split

import (
	"log/slog"
	"math"
	"sort"

	"space_syntax/pkg/geo"
)

// Options configures a split run.
type Options struct {
	// Tolerance is the geometric epsilon; values below geo.MinTolerance are
	// clamped.
	Tolerance float64
	Logger    *slog.Logger // Optional, uses slog.Default() if nil
}

// Stats counts what happened during a split run.
type Stats struct {
	Polylines   int
	RawSegments int
	Filtered    int // non-finite, too short or vertical
	Duplicates  int
	Tests       int // pairwise intersection tests
	Hits        int
	SplitPoints int
	Output      int
}

// Result is the output of Split.
type Result struct {
	Segments []geo.Segment
	// Sources[i] is the index of the input polyline that produced Segments[i].
	// When several polylines share a piece, the first one wins.
	Sources []int
	Stats   Stats
}

// Split breaks polylines into non-intersecting atomic segments. Two output
// segments either share an endpoint exactly or are farther apart than the
// tolerance. Output endpoints are rounded to geo.DecimalsFor(tol) decimals.
func Split(polylines []geo.Polyline, opts Options) *Result {
	tol := geo.ClampTolerance(opts.Tolerance)
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	stats := Stats{Polylines: len(polylines)}
	segs, sources := collectSegments(polylines, tol, &stats)

	splits := make([][]geo.Point3, len(segs))
	addSplits := func(i int, pts []geo.Point3) {
		s := segs[i]
		for _, p := range pts {
			if p.EqualWithin(s.From, tol) || p.EqualWithin(s.To, tol) {
				continue
			}
			splits[i] = append(splits[i], p)
			stats.SplitPoints++
		}
	}

	sweep(segs, tol, func(cur, other int) {
		stats.Tests++
		x := geo.Intersect(segs[cur], segs[other], tol)
		if !x.Hit {
			return
		}
		stats.Hits++
		addSplits(cur, x.OnP)
		addSplits(other, x.OnQ)
	})

	out, outSources := rebuild(segs, sources, splits, tol)
	stats.Output = len(out)

	logger.Debug("split complete",
		"polylines", stats.Polylines,
		"raw", stats.RawSegments,
		"filtered", stats.Filtered,
		"duplicates", stats.Duplicates,
		"tests", stats.Tests,
		"hits", stats.Hits,
		"segments", stats.Output,
	)

	return &Result{Segments: out, Sources: outSources, Stats: stats}
}

// collectSegments explodes polylines into normalized, deduplicated raw
// segments and records the polyline each came from.
func collectSegments(polylines []geo.Polyline, tol float64, stats *Stats) ([]geo.Segment, []int) {
	seen := make(map[geo.Segment]struct{})
	var segs []geo.Segment
	var sources []int

	for pi, pl := range polylines {
		for k := 1; k < len(pl); k++ {
			stats.RawSegments++
			s := geo.NewSegment(pl[k-1], pl[k])
			if !s.IsFinite() || s.Length() < tol || math.Hypot(s.To.X-s.From.X, s.To.Y-s.From.Y) < tol {
				stats.Filtered++
				continue
			}
			if _, ok := seen[s]; ok {
				stats.Duplicates++
				continue
			}
			seen[s] = struct{}{}
			segs = append(segs, s)
			sources = append(sources, pi)
		}
	}
	return segs, sources
}

// sweep calls visit for every pair of segments whose tolerance-expanded XY
// envelopes overlap. cur is the segment being inserted, other one already
// in the active set.
func sweep(segs []geo.Segment, tol float64, visit func(cur, other int)) {
	q := eventQueue{items: make([]sweepEvent, 0, 2*len(segs))}
	ivs := make([]geo.Interval, len(segs))
	for i, s := range segs {
		b := s.Bound()
		ivs[i] = s.YInterval().Expand(tol)
		q.Push(sweepEvent{x: b.Min[0] - tol, kind: eventStart, seg: i})
		q.Push(sweepEvent{x: b.Max[0] + tol, kind: eventEnd, seg: i})
	}

	var active intervalTree
	for q.Len() > 0 {
		ev := q.Pop()
		switch ev.kind {
		case eventStart:
			active.SearchOverlaps(ivs[ev.seg], func(other int) {
				visit(ev.seg, other)
			})
			active.Insert(ivs[ev.seg], ev.seg)
		case eventEnd:
			active.Delete(ivs[ev.seg], ev.seg)
		}
	}
}

// rebuild cuts every segment at its split points and deduplicates the
// resulting pieces.
func rebuild(segs []geo.Segment, sources []int, splits [][]geo.Point3, tol float64) ([]geo.Segment, []int) {
	dec := geo.DecimalsFor(tol)
	seen := make(map[geo.Segment]struct{}, len(segs))
	out := make([]geo.Segment, 0, len(segs))
	outSources := make([]int, 0, len(segs))

	for i, s := range segs {
		chain := cutPoints(s.From.Round(dec), s.To.Round(dec), splits[i], dec, tol)
		for k := 1; k < len(chain); k++ {
			piece := geo.NewSegment(chain[k-1], chain[k])
			if piece.Length() < tol {
				continue
			}
			if _, ok := seen[piece]; ok {
				continue
			}
			seen[piece] = struct{}{}
			out = append(out, piece)
			outSources = append(outSources, sources[i])
		}
	}
	return out, outSources
}

// cutPoints returns from, the rounded split points ordered along the
// segment, and to. Points within tol of an endpoint or of the previously
// kept point are dropped.
func cutPoints(from, to geo.Point3, pts []geo.Point3, dec int, tol float64) []geo.Point3 {
	if len(pts) == 0 {
		return []geo.Point3{from, to}
	}

	carrier := geo.Segment{From: from, To: to}
	type cut struct {
		p geo.Point3
		t float64
	}
	cuts := make([]cut, 0, len(pts))
	for _, p := range pts {
		r := p.Round(dec)
		if r.EqualWithin(from, tol) || r.EqualWithin(to, tol) {
			continue
		}
		_, t := carrier.ClosestPoint(r)
		cuts = append(cuts, cut{r, t})
	}
	sort.Slice(cuts, func(i, j int) bool {
		if cuts[i].t != cuts[j].t {
			return cuts[i].t < cuts[j].t
		}
		return cuts[i].p.Compare(cuts[j].p) < 0
	})

	chain := make([]geo.Point3, 0, len(cuts)+2)
	chain = append(chain, from)
	for _, c := range cuts {
		if c.p.EqualWithin(chain[len(chain)-1], tol) {
			continue
		}
		chain = append(chain, c.p)
	}
	return append(chain, to)
}
