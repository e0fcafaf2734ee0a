package xform

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// BoundingBox is an axis-aligned box in double precision. The zero value
// is a valid zero-extent box at the origin (Min == Max == 0), not an empty
// one; EmptyBoundingBox returns the invalid box that Merge treats as a
// neutral element.
type BoundingBox struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// EmptyBoundingBox returns a box with no extent, ready to be Merge-d into.
func EmptyBoundingBox() BoundingBox {
	return BoundingBox{
		Min: mgl64.Vec3{math.MaxFloat64, math.MaxFloat64, math.MaxFloat64},
		Max: mgl64.Vec3{-math.MaxFloat64, -math.MaxFloat64, -math.MaxFloat64},
	}
}

// IsValid reports whether Min <= Max component-wise.
func (b BoundingBox) IsValid() bool {
	return b.Min[0] <= b.Max[0] && b.Min[1] <= b.Max[1] && b.Min[2] <= b.Max[2]
}

// Merge returns the union of b and other. An invalid operand is treated
// as the neutral element (doesn't affect the result).
func (b BoundingBox) Merge(other BoundingBox) BoundingBox {
	if !other.IsValid() {
		return b
	}
	if !b.IsValid() {
		return other
	}
	return BoundingBox{
		Min: mgl64.Vec3{
			math.Min(b.Min[0], other.Min[0]),
			math.Min(b.Min[1], other.Min[1]),
			math.Min(b.Min[2], other.Min[2]),
		},
		Max: mgl64.Vec3{
			math.Max(b.Max[0], other.Max[0]),
			math.Max(b.Max[1], other.Max[1]),
			math.Max(b.Max[2], other.Max[2]),
		},
	}
}

// Transform applies m to all eight corners of b and refits a new
// axis-aligned box around them, per spec.md §3.
func (b BoundingBox) Transform(m mgl64.Mat4) BoundingBox {
	if !b.IsValid() {
		return b
	}
	out := EmptyBoundingBox()
	for i := 0; i < 8; i++ {
		corner := mgl64.Vec3{
			pick(i&1 != 0, b.Min[0], b.Max[0]),
			pick(i&2 != 0, b.Min[1], b.Max[1]),
			pick(i&4 != 0, b.Min[2], b.Max[2]),
		}
		v4 := mgl64.Vec4{corner[0], corner[1], corner[2], 1}
		tv := m.Mul4x1(v4)
		p := mgl64.Vec3{tv[0], tv[1], tv[2]}
		out.Min = mgl64.Vec3{math.Min(out.Min[0], p[0]), math.Min(out.Min[1], p[1]), math.Min(out.Min[2], p[2])}
		out.Max = mgl64.Vec3{math.Max(out.Max[0], p[0]), math.Max(out.Max[1], p[1]), math.Max(out.Max[2], p[2])}
	}
	return out
}

func pick(cond bool, a, b float64) float64 {
	if cond {
		return b
	}
	return a
}

// ToTilesetBox converts to the 3D-Tiles 12-double "box" bounding volume:
// center (3) + three half-axis vectors aligned to world axes (9).
func (b BoundingBox) ToTilesetBox() [12]float64 {
	cx := (b.Min[0] + b.Max[0]) / 2
	cy := (b.Min[1] + b.Max[1]) / 2
	cz := (b.Min[2] + b.Max[2]) / 2
	hx := (b.Max[0] - b.Min[0]) / 2
	hy := (b.Max[1] - b.Min[1]) / 2
	hz := (b.Max[2] - b.Min[2]) / 2
	return [12]float64{
		cx, cy, cz,
		hx, 0, 0,
		0, hy, 0,
		0, 0, hz,
	}
}

// Similar reports whether a and b are component-wise within tolerance on
// both Min and Max, per spec.md §4.C's tolerance-mode grouping rule.
func Similar(a, b BoundingBox, tolerance float64) bool {
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}
	return closeVec(a.Min, b.Min, tolerance) && closeVec(a.Max, b.Max, tolerance)
}

func closeVec(a, b mgl64.Vec3, tol float64) bool {
	return math.Abs(a[0]-b[0]) <= tol && math.Abs(a[1]-b[1]) <= tol && math.Abs(a[2]-b[2]) <= tol
}
