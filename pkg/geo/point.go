package geo

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Point3 is a point (or vector) in 3D space. Coordinates are in projected
// metres for real networks.
type Point3 r3.Vec

// Vec returns p as a gonum vector.
func (p Point3) Vec() r3.Vec { return r3.Vec(p) }

func (p Point3) Add(q Point3) Point3 { return Point3(r3.Add(r3.Vec(p), r3.Vec(q))) }

func (p Point3) Sub(q Point3) Point3 { return Point3(r3.Sub(r3.Vec(p), r3.Vec(q))) }

func (p Point3) Scale(s float64) Point3 { return Point3(r3.Scale(s, r3.Vec(p))) }

func (p Point3) Dot(q Point3) float64 { return r3.Dot(r3.Vec(p), r3.Vec(q)) }

func (p Point3) Cross(q Point3) Point3 { return Point3(r3.Cross(r3.Vec(p), r3.Vec(q))) }

// Len returns the Euclidean norm of p treated as a vector.
func (p Point3) Len() float64 { return r3.Norm(r3.Vec(p)) }

// DistanceTo returns the Euclidean distance between p and q.
func (p Point3) DistanceTo(q Point3) float64 { return p.Sub(q).Len() }

// Midpoint returns the point halfway between p and q.
func (p Point3) Midpoint(q Point3) Point3 { return p.Add(q).Scale(0.5) }

// IsFinite reports whether no coordinate is NaN or infinite.
func (p Point3) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0) &&
		!math.IsNaN(p.Z) && !math.IsInf(p.Z, 0)
}

// EqualWithin reports whether p and q are closer than tol.
func (p Point3) EqualWithin(q Point3, tol float64) bool {
	return p.DistanceTo(q) < tol
}

// Compare orders points lexicographically by X, then Y, then Z.
func (p Point3) Compare(q Point3) int {
	switch {
	case p.X < q.X:
		return -1
	case p.X > q.X:
		return 1
	case p.Y < q.Y:
		return -1
	case p.Y > q.Y:
		return 1
	case p.Z < q.Z:
		return -1
	case p.Z > q.Z:
		return 1
	}
	return 0
}

// Round rounds every coordinate to the given number of decimals. Rounded
// points are the exact keys used for endpoint lookups.
func (p Point3) Round(decimals int) Point3 {
	return Point3{RoundTo(p.X, decimals), RoundTo(p.Y, decimals), RoundTo(p.Z, decimals)}
}

// RoundTo rounds v half away from zero to the given number of decimals.
// Negative zero is normalized to zero.
func RoundTo(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	r := math.Round(v*scale) / scale
	if r == 0 {
		return 0
	}
	return r
}

// DecimalsFor returns the rounding precision implied by a tolerance:
// 1e-6 maps to 6 decimals, 0.01 to 2.
func DecimalsFor(tol float64) int {
	return int(math.Abs(math.Log10(tol)) + 1e-9)
}

// MinTolerance is the smallest accepted tolerance; smaller values are clamped.
const MinTolerance = 1e-8

// ClampTolerance returns tol raised to MinTolerance. NaN and infinite values
// also map to MinTolerance.
func ClampTolerance(tol float64) float64 {
	if math.IsNaN(tol) || math.IsInf(tol, 0) || tol < MinTolerance {
		return MinTolerance
	}
	return tol
}

// Angle returns the angle in radians between vectors u and v, in [0, π].
// A zero vector yields 0.
func Angle(u, v Point3) float64 {
	if u.Len() == 0 || v.Len() == 0 {
		return 0
	}
	c := r3.Cos(u.Vec(), v.Vec())
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}
	return math.Acos(c)
}
