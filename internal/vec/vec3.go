package vec

import (
	"fmt"
	"math"
)

// Vec3 is a float64 3D vector used for positions, displacements and forces.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

var (
	Zero = Vec3{}
	Up   = Vec3{0, 1, 0}
	Down = Vec3{0, -1, 0}
)

func New(x, y, z float64) Vec3 { return Vec3{x, y, z} }

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vec3) LenSq() float64 { return v.Dot(v) }

func (v Vec3) Len() float64 { return math.Sqrt(v.LenSq()) }

// Normalize returns the unit vector along v. ok is false when v has zero or
// non-finite length, in which case the zero vector is returned.
func (v Vec3) Normalize() (Vec3, bool) {
	mag := v.Len()
	if mag == 0 || math.IsNaN(mag) || math.IsInf(mag, 0) {
		return Zero, false
	}
	inv := 1.0 / mag
	return Vec3{v.X * inv, v.Y * inv, v.Z * inv}, true
}

func Dist(a, b Vec3) float64 { return a.Sub(b).Len() }

func DistSq(a, b Vec3) float64 { return a.Sub(b).LenSq() }

// Lerp interpolates between a and b; t is not clamped.
func Lerp(a, b Vec3, t float64) Vec3 {
	return Vec3{a.X + (b.X-a.X)*t, a.Y + (b.Y-a.Y)*t, a.Z + (b.Z-a.Z)*t}
}

func Midpoint(a, b Vec3) Vec3 { return a.Add(b).Scale(0.5) }

// ClosestOnSegment returns the point of segment ab nearest to p.
func ClosestOnSegment(p, a, b Vec3) Vec3 {
	ab := b.Sub(a)
	den := ab.LenSq()
	if den == 0 {
		return a
	}
	t := p.Sub(a).Dot(ab) / den
	t = math.Max(0, math.Min(1, t))
	return Lerp(a, b, t)
}

// IsFinite reports whether no component is NaN or Inf.
func (v Vec3) IsFinite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%.4f, %.4f, %.4f)", v.X, v.Y, v.Z)
}
