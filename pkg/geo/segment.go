package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// Segment is a straight 3D segment normalized so that From sorts before To.
// Two segments with the same endpoints compare equal regardless of the order
// they were given in, which makes Segment usable as a map key.
type Segment struct {
	From, To Point3
}

// NewSegment returns the normalized segment between a and b.
func NewSegment(a, b Point3) Segment {
	if a.Compare(b) > 0 {
		a, b = b, a
	}
	return Segment{From: a, To: b}
}

// Length returns the 3D length of the segment.
func (s Segment) Length() float64 { return s.From.DistanceTo(s.To) }

// Direction returns To - From.
func (s Segment) Direction() Point3 { return s.To.Sub(s.From) }

// Bound returns the XY envelope of the segment.
func (s Segment) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{math.Min(s.From.X, s.To.X), math.Min(s.From.Y, s.To.Y)},
		Max: orb.Point{math.Max(s.From.X, s.To.X), math.Max(s.From.Y, s.To.Y)},
	}
}

// YInterval returns the segment's extent along Y.
func (s Segment) YInterval() Interval {
	return Interval{Low: math.Min(s.From.Y, s.To.Y), High: math.Max(s.From.Y, s.To.Y)}
}

// IsFinite reports whether both endpoints are finite.
func (s Segment) IsFinite() bool { return s.From.IsFinite() && s.To.IsFinite() }

// Round rounds both endpoints and renormalizes.
func (s Segment) Round(decimals int) Segment {
	return NewSegment(s.From.Round(decimals), s.To.Round(decimals))
}

// ClosestPoint projects p onto the segment and returns the closest point and
// the projection ratio along From→To, clamped to [0,1].
func (s Segment) ClosestPoint(p Point3) (Point3, float64) {
	d := s.Direction()
	lenSq := d.Dot(d)
	if lenSq == 0 {
		return s.From, 0
	}
	t := p.Sub(s.From).Dot(d) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return s.From.Add(d.Scale(t)), t
}

// Interval is a closed 1D range.
type Interval struct {
	Low, High float64
}

// Overlaps reports whether the two closed intervals intersect.
func (iv Interval) Overlaps(o Interval) bool {
	return iv.Low <= o.High && o.Low <= iv.High
}

// Expand grows the interval by d on both sides.
func (iv Interval) Expand(d float64) Interval {
	return Interval{Low: iv.Low - d, High: iv.High + d}
}

// Polyline is an ordered sequence of 3D points. A valid road has at least two.
type Polyline []Point3

// Valid reports whether the polyline has at least two points.
func (pl Polyline) Valid() bool { return len(pl) >= 2 }

func (pl Polyline) First() Point3 { return pl[0] }

func (pl Polyline) Last() Point3 { return pl[len(pl)-1] }

// Length returns the sum of the 3D lengths of consecutive pieces.
func (pl Polyline) Length() float64 {
	var total float64
	for i := 1; i < len(pl); i++ {
		total += pl[i-1].DistanceTo(pl[i])
	}
	return total
}

// Reversed returns a reversed copy of the polyline.
func (pl Polyline) Reversed() Polyline {
	out := make(Polyline, len(pl))
	for i, p := range pl {
		out[len(pl)-1-i] = p
	}
	return out
}

// Clone returns a copy of the polyline.
func (pl Polyline) Clone() Polyline {
	out := make(Polyline, len(pl))
	copy(out, pl)
	return out
}

// Bound returns the XY envelope of all points.
func (pl Polyline) Bound() orb.Bound {
	ls := make(orb.LineString, len(pl))
	for i, p := range pl {
		ls[i] = orb.Point{p.X, p.Y}
	}
	return ls.Bound()
}

// NeighborOf returns the polyline vertex adjacent to the endpoint p: the
// second point when p is the first, the second-to-last when p is the last.
// The boolean is false when p is not an endpoint.
func (pl Polyline) NeighborOf(p Point3) (Point3, bool) {
	if len(pl) < 2 {
		return Point3{}, false
	}
	switch p {
	case pl[0]:
		return pl[1], true
	case pl[len(pl)-1]:
		return pl[len(pl)-2], true
	}
	return Point3{}, false
}
