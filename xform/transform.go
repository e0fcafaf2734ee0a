// Package xform implements the double-precision transform math shared by
// the instancing detector and the GLB assembler: decomposed TRS
// components, 4x4 matrix composition/decomposition, and axis-aligned
// bounding boxes. It is built on github.com/go-gl/mathgl/mgl64, the
// double-precision sibling of the mgl32 package the teacher uses
// throughout its renderer (editor/gow/*.go); mathgl itself does not
// provide a generic polar-like matrix decomposition, so Decompose and
// Components.ToMat4 are hand-written here, following the same T*R*S convention as the
// original C++ tool's glm::decompose usage.
package xform

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Components is a decomposed affine transform: translation, a normalized
// rotation quaternion, and per-axis scale. The zero value is NOT the
// identity transform; use Identity().
type Components struct {
	Translation mgl64.Vec3
	Rotation    mgl64.Quat
	Scale       mgl64.Vec3
}

// Identity returns the identity TransformComponents.
func Identity() Components {
	return Components{
		Translation: mgl64.Vec3{0, 0, 0},
		Rotation:    mgl64.Quat{W: 1, V: mgl64.Vec3{0, 0, 0}},
		Scale:       mgl64.Vec3{1, 1, 1},
	}
}

// ToMat4 builds the 4x4 matrix T*R*S for these components.
func (c Components) ToMat4() mgl64.Mat4 {
	r := c.Rotation.Normalize()
	rm := quatToMat3(r)
	sx, sy, sz := c.Scale[0], c.Scale[1], c.Scale[2]

	// Column-major: columns are R's basis vectors scaled by S, then the
	// translation column.
	return mgl64.Mat4{
		rm[0] * sx, rm[1] * sx, rm[2] * sx, 0,
		rm[3] * sy, rm[4] * sy, rm[5] * sy, 0,
		rm[6] * sz, rm[7] * sz, rm[8] * sz, 0,
		c.Translation[0], c.Translation[1], c.Translation[2], 1,
	}
}

// Decompose extracts TransformComponents from an arbitrary affine 4x4
// matrix. Reflections (an odd number of negative-scale axes) are
// sign-ambiguous between scale and rotation; this implementation's chosen
// convention, per spec.md §9's open question, is to push the sign into
// the scale's X component, leaving Y and Z scale non-negative and the
// rotation always proper (determinant +1).
func Decompose(m mgl64.Mat4) Components {
	c0 := mgl64.Vec3{m[0], m[1], m[2]}
	c1 := mgl64.Vec3{m[4], m[5], m[6]}
	c2 := mgl64.Vec3{m[8], m[9], m[10]}

	sx, sy, sz := c0.Len(), c1.Len(), c2.Len()
	r0 := safeNormalize(c0, sx)
	r1 := safeNormalize(c1, sy)
	r2 := safeNormalize(c2, sz)

	det := r0.Dot(r1.Cross(r2))
	if det < 0 {
		sx = -sx
		r0 = r0.Mul(-1)
	}

	rot := mat3ToQuat([9]float64{
		r0[0], r0[1], r0[2],
		r1[0], r1[1], r1[2],
		r2[0], r2[1], r2[2],
	}).Normalize()

	return Components{
		Translation: mgl64.Vec3{m[12], m[13], m[14]},
		Rotation:    rot,
		Scale:       mgl64.Vec3{sx, sy, sz},
	}
}

func safeNormalize(v mgl64.Vec3, length float64) mgl64.Vec3 {
	if length < 1e-12 {
		return mgl64.Vec3{1, 0, 0}
	}
	return mgl64.Vec3{v[0] / length, v[1] / length, v[2] / length}
}

// quatToMat3 returns the 3x3 rotation matrix for q in column-major flat
// form [c0.x,c0.y,c0.z, c1.x,c1.y,c1.z, c2.x,c2.y,c2.z].
func quatToMat3(q mgl64.Quat) [9]float64 {
	w, x, y, z := q.W, q.V[0], q.V[1], q.V[2]
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z

	return [9]float64{
		1 - 2*(yy+zz), 2 * (xy + wz), 2 * (xz - wy),
		2 * (xy - wz), 1 - 2*(xx+zz), 2 * (yz + wx),
		2 * (xz + wy), 2 * (yz - wx), 1 - 2*(xx+yy),
	}
}

// mat3ToQuat converts a column-major 3x3 rotation matrix (flat, same
// layout as quatToMat3's output) back into a quaternion using Shepperd's
// method, which stays numerically stable near all four singularities.
func mat3ToQuat(m [9]float64) mgl64.Quat {
	m00, m10, m20 := m[0], m[1], m[2]
	m01, m11, m21 := m[3], m[4], m[5]
	m02, m12, m22 := m[6], m[7], m[8]

	trace := m00 + m11 + m22
	switch {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1.0)
		return mgl64.Quat{
			W: 0.25 / s,
			V: mgl64.Vec3{(m21 - m12) * s, (m02 - m20) * s, (m10 - m01) * s},
		}
	case m00 > m11 && m00 > m22:
		s := 2.0 * math.Sqrt(1.0+m00-m11-m22)
		return mgl64.Quat{
			W: (m21 - m12) / s,
			V: mgl64.Vec3{0.25 * s, (m01 + m10) / s, (m02 + m20) / s},
		}
	case m11 > m22:
		s := 2.0 * math.Sqrt(1.0+m11-m00-m22)
		return mgl64.Quat{
			W: (m02 - m20) / s,
			V: mgl64.Vec3{(m01 + m10) / s, 0.25 * s, (m12 + m21) / s},
		}
	default:
		s := 2.0 * math.Sqrt(1.0+m22-m00-m11)
		return mgl64.Quat{
			W: (m10 - m01) / s,
			V: mgl64.Vec3{(m02 + m20) / s, (m12 + m21) / s, 0.25 * s},
		}
	}
}

// FrobeniusDiff returns the Frobenius-norm difference between two 4x4
// matrices, used by tests to check decomposition round-trips within
// tolerance (spec.md §8 invariant: below 1e-9 for bounded-magnitude,
// identity-free matrices).
func FrobeniusDiff(a, b mgl64.Mat4) float64 {
	var sum float64
	for i := 0; i < 16; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Mul composes two column-major Mat4 (a * b).
func Mul(a, b mgl64.Mat4) mgl64.Mat4 {
	return a.Mul4(b)
}
