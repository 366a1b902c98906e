package split

import "space_syntax/pkg/geo"

// Conflict is a pair of segments that still intersect away from their
// endpoints.
type Conflict struct {
	A, B   int
	Points []geo.Point3
}

// Verify reports every pair of segments that would still need splitting.
// It returns nil for the output of Split run with the same tolerance.
func Verify(segs []geo.Segment, tol float64) []Conflict {
	tol = geo.ClampTolerance(tol)
	var conflicts []Conflict

	interior := func(s geo.Segment, pts []geo.Point3) []geo.Point3 {
		var out []geo.Point3
		for _, p := range pts {
			if !p.EqualWithin(s.From, tol) && !p.EqualWithin(s.To, tol) {
				out = append(out, p)
			}
		}
		return out
	}

	sweep(segs, tol, func(cur, other int) {
		x := geo.Intersect(segs[cur], segs[other], tol)
		if !x.Hit {
			return
		}
		pts := append(interior(segs[cur], x.OnP), interior(segs[other], x.OnQ)...)
		if len(pts) == 0 && !(x.Collinear && segs[cur] == segs[other]) {
			return
		}
		a, b := min(cur, other), max(cur, other)
		conflicts = append(conflicts, Conflict{A: a, B: b, Points: pts})
	})
	return conflicts
}
