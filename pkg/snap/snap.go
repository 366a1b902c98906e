// Package snap merges polyline endpoints that lie within a tolerance of each
// other so that nearly touching roads become topologically connected.
package snap

import (
	"log/slog"
	"sort"

	"github.com/tidwall/rtree"

	"space_syntax/pkg/geo"
)

// Result is the output of Endpoints.
type Result struct {
	Polylines []geo.Polyline
	Clusters  int // distinct endpoint locations after snapping
	Moved     int // endpoints whose coordinates changed
}

// endRef identifies one end of a polyline.
type endRef struct {
	line int
	last bool
}

// Endpoints returns copies of the polylines in which every group of
// endpoints closer than tol to a representative endpoint is moved onto that
// representative. Representatives are chosen in lexicographic point order,
// so the result does not depend on input order. Interior vertices are never
// moved. Polylines with fewer than two points are passed through.
func Endpoints(polylines []geo.Polyline, tol float64, logger *slog.Logger) *Result {
	if logger == nil {
		logger = slog.Default()
	}
	tol = geo.ClampTolerance(tol)

	out := make([]geo.Polyline, len(polylines))
	refs := make(map[geo.Point3][]endRef)
	for i, pl := range polylines {
		out[i] = pl.Clone()
		if !pl.Valid() {
			continue
		}
		refs[pl.First()] = append(refs[pl.First()], endRef{line: i})
		refs[pl.Last()] = append(refs[pl.Last()], endRef{line: i, last: true})
	}

	points := make([]geo.Point3, 0, len(refs))
	for p := range refs {
		if p.IsFinite() {
			points = append(points, p)
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Compare(points[j]) < 0 })

	var tr rtree.RTreeG[int]
	for i, p := range points {
		pt := [2]float64{p.X, p.Y}
		tr.Insert(pt, pt, i)
	}

	visited := make([]bool, len(points))
	res := &Result{Polylines: out}
	var cluster []int
	for i, rep := range points {
		if visited[i] {
			continue
		}
		visited[i] = true
		res.Clusters++

		cluster = cluster[:0]
		lo := [2]float64{rep.X - tol, rep.Y - tol}
		hi := [2]float64{rep.X + tol, rep.Y + tol}
		tr.Search(lo, hi, func(_, _ [2]float64, j int) bool {
			if !visited[j] && points[j].EqualWithin(rep, tol) {
				cluster = append(cluster, j)
			}
			return true
		})

		for _, j := range cluster {
			visited[j] = true
			for _, ref := range refs[points[j]] {
				pl := out[ref.line]
				if ref.last {
					pl[len(pl)-1] = rep
				} else {
					pl[0] = rep
				}
				res.Moved++
			}
		}
	}

	logger.Debug("snapped endpoints",
		"endpoints", len(points),
		"clusters", res.Clusters,
		"moved", res.Moved,
	)
	return res
}
