package geo

import (
	"math"
	"sort"
)

// Intersection describes how two segments meet. OnP holds the points at
// which the first segment must be split, OnQ those for the second one.
type Intersection struct {
	Hit       bool
	Collinear bool
	OnP       []Point3
	OnQ       []Point3
}

// Intersect computes the intersection of two 3D segments within tol.
//
// The closest points of the two carrier lines are computed and clamped to
// the segments; the segments meet when those points are closer than tol.
// A proper crossing splits both segments at the midpoint of the closest
// points. An endpoint of one segment lying on the interior of the other
// splits only the other segment. Collinear overlaps split each segment at
// the inner endpoints of the overlap. Endpoint-to-endpoint contact yields
// Hit with no split points.
func Intersect(p, q Segment, tol float64) Intersection {
	u := p.Direction()
	v := q.Direction()
	w := p.From.Sub(q.From)

	a := u.Dot(u)
	b := u.Dot(v)
	c := v.Dot(v)
	d := u.Dot(w)
	e := v.Dot(w)

	lu, lv := math.Sqrt(a), math.Sqrt(c)
	if lu < tol || lv < tol {
		return Intersection{}
	}

	D := a*c - b*b
	parallel := math.Sin(Angle(u, v))*math.Min(lu, lv) < tol
	if !parallel && D <= 1e-12*a*c {
		// Numerically unstable; treat as non-intersecting.
		return Intersection{}
	}

	var sN, sD, tN, tD float64
	if parallel {
		sN, sD = 0, 1
		tN, tD = e, c
	} else {
		sD, tD = D, D
		sN = b*e - c*d
		tN = a*e - b*d
		if sN < 0 {
			sN = 0
			tN, tD = e, c
		} else if sN > sD {
			sN = sD
			tN, tD = e+b, c
		}
	}

	if tN < 0 {
		tN = 0
		switch {
		case -d < 0:
			sN = 0
		case -d > a:
			sN = sD
		default:
			sN, sD = -d, a
		}
	} else if tN > tD {
		tN = tD
		switch {
		case -d+b < 0:
			sN = 0
		case -d+b > a:
			sN = sD
		default:
			sN, sD = -d+b, a
		}
	}

	sc := clamp01(sN / sD)
	tc := clamp01(tN / tD)

	pc, sc := snapToEnds(p, p.From.Add(u.Scale(sc)), sc, tol)
	qc, tc := snapToEnds(q, q.From.Add(v.Scale(tc)), tc, tol)

	if pc.DistanceTo(qc) >= tol {
		return Intersection{}
	}

	if parallel {
		inner := overlapInterior(p, q, u, tol)
		return Intersection{Hit: true, Collinear: true, OnP: inner, OnQ: inner}
	}

	pEnd := sc == 0 || sc == 1
	qEnd := tc == 0 || tc == 1
	switch {
	case !pEnd && !qEnd:
		x := pc.Midpoint(qc)
		return Intersection{Hit: true, OnP: []Point3{x}, OnQ: []Point3{x}}
	case pEnd && !qEnd:
		return Intersection{Hit: true, OnQ: []Point3{pc}}
	case !pEnd && qEnd:
		return Intersection{Hit: true, OnP: []Point3{qc}}
	}
	return Intersection{Hit: true}
}

func clamp01(t float64) float64 {
	if math.IsNaN(t) || t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// snapToEnds replaces a closest point lying within tol of a segment endpoint
// by the endpoint itself.
func snapToEnds(s Segment, pt Point3, t, tol float64) (Point3, float64) {
	if t < 0.5 && pt.DistanceTo(s.From) < tol {
		return s.From, 0
	}
	if t >= 0.5 && pt.DistanceTo(s.To) < tol {
		return s.To, 1
	}
	return pt, t
}

// overlapInterior orders the four endpoints of two collinear segments along
// dir, collapses points within tol and returns everything but the extremes.
func overlapInterior(p, q Segment, dir Point3, tol float64) []Point3 {
	pts := []Point3{p.From, p.To, q.From, q.To}
	origin := p.From
	sort.SliceStable(pts, func(i, j int) bool {
		return pts[i].Sub(origin).Dot(dir) < pts[j].Sub(origin).Dot(dir)
	})

	uniq := pts[:1]
	for _, pt := range pts[1:] {
		if !pt.EqualWithin(uniq[len(uniq)-1], tol) {
			uniq = append(uniq, pt)
		}
	}
	if len(uniq) < 3 {
		return nil
	}
	inner := make([]Point3, len(uniq)-2)
	copy(inner, uniq[1:len(uniq)-1])
	return inner
}
