package scene

import (
	"camsim/common"
)

// Transformation describes the pose of an entity: a translation, a rotation,
// and a (possibly non-uniform) scaling. The matrix form applies scaling first,
// then rotation, then translation.
type Transformation struct {
	Translation common.Vec3
	Rotation    common.Quat
	Scaling     common.Vec3
}

// NewTransformation returns the identity transformation.
func NewTransformation() Transformation {
	return Transformation{
		Rotation: common.QuatIdentity(),
		Scaling:  common.Vec3{X: 1, Y: 1, Z: 1},
	}
}

// Matrix returns the 4x4 matrix form of the transformation.
func (t Transformation) Matrix() common.Mat4 {
	r := t.Rotation
	x2, y2, z2 := r.X+r.X, r.Y+r.Y, r.Z+r.Z
	xx, xy, xz := r.X*x2, r.X*y2, r.X*z2
	yy, yz, zz := r.Y*y2, r.Y*z2, r.Z*z2
	wx, wy, wz := r.W*x2, r.W*y2, r.W*z2

	var m common.Mat4
	m[0] = (1 - (yy + zz)) * t.Scaling.X
	m[1] = (xy + wz) * t.Scaling.X
	m[2] = (xz - wy) * t.Scaling.X
	m[4] = (xy - wz) * t.Scaling.Y
	m[5] = (1 - (xx + zz)) * t.Scaling.Y
	m[6] = (yz + wx) * t.Scaling.Y
	m[8] = (xz + wy) * t.Scaling.Z
	m[9] = (yz - wx) * t.Scaling.Z
	m[10] = (1 - (xx + yy)) * t.Scaling.Z
	m[12] = t.Translation.X
	m[13] = t.Translation.Y
	m[14] = t.Translation.Z
	m[15] = 1
	return m
}

// Combined returns the transformation t applied after o, i.e. the matrix
// product t.Matrix() * o.Matrix() expressed as separate components where the
// combination is exact (rotation and translation; scaling is multiplied
// component-wise, which matches as long as rotations are axis-aligned or
// scaling is uniform).
func (t Transformation) Combined(o Transformation) Transformation {
	return Transformation{
		Translation: t.Translation.Add(t.Rotation.Rotate(common.Vec3{
			X: o.Translation.X * t.Scaling.X,
			Y: o.Translation.Y * t.Scaling.Y,
			Z: o.Translation.Z * t.Scaling.Z,
		})),
		Rotation: t.Rotation.Mul(o.Rotation),
		Scaling: common.Vec3{
			X: t.Scaling.X * o.Scaling.X,
			Y: t.Scaling.Y * o.Scaling.Y,
			Z: t.Scaling.Z * o.Scaling.Z,
		},
	}
}

// InterpolateTransformation blends two transformations at parameter alpha in
// [0,1]: linear for translation and scaling, spherical linear for rotation.
func InterpolateTransformation(p0, p1 Transformation, alpha float32) Transformation {
	return Transformation{
		Translation: p0.Translation.Lerp(p1.Translation, alpha),
		Rotation:    p0.Rotation.Slerp(p1.Rotation, alpha),
		Scaling:     p0.Scaling.Lerp(p1.Scaling, alpha),
	}
}
