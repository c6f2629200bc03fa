package common

import (
	"math"
	"unsafe"
)

// Vec2 is a 2-component float vector.
type Vec2 struct {
	X, Y float32
}

// Vec3 is a 3-component float vector used for positions, directions, colors
// and scale factors throughout the simulator.
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 is a 4-component float vector, mostly used for GPU uniform staging.
type Vec4 struct {
	X, Y, Z, W float32
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v scaled by s.
func (v Vec3) Scale(s float32) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float32 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Cross returns the cross product v x o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Length returns the Euclidean length of v.
func (v Vec3) Length() float32 {
	return float32(math.Sqrt(float64(v.Dot(v))))
}

// Normalized returns v scaled to unit length. The zero vector is returned
// unchanged.
func (v Vec3) Normalized() Vec3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// Lerp returns the linear interpolation between v and o at parameter t.
func (v Vec3) Lerp(o Vec3, t float32) Vec3 {
	return Vec3{
		v.X + (o.X-v.X)*t,
		v.Y + (o.Y-v.Y)*t,
		v.Z + (o.Z-v.Z)*t,
	}
}

// Quat is a rotation quaternion (W is the scalar part).
type Quat struct {
	X, Y, Z, W float32
}

// QuatIdentity returns the identity rotation.
func QuatIdentity() Quat {
	return Quat{0, 0, 0, 1}
}

// QuatFromAxisAngle builds a quaternion rotating angle radians around axis.
// The axis does not need to be normalized.
func QuatFromAxisAngle(axis Vec3, angle float32) Quat {
	a := axis.Normalized()
	s := float32(math.Sin(float64(angle) / 2))
	c := float32(math.Cos(float64(angle) / 2))
	return Quat{a.X * s, a.Y * s, a.Z * s, c}
}

// Mul returns the composed rotation q * o (o applied first).
func (q Quat) Mul(o Quat) Quat {
	return Quat{
		q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
		q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
	}
}

// Rotate applies the rotation to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	u := Vec3{q.X, q.Y, q.Z}
	s := q.W
	return u.Scale(2 * u.Dot(v)).
		Add(v.Scale(s*s - u.Dot(u))).
		Add(u.Cross(v).Scale(2 * s))
}

// Slerp spherically interpolates from q to o at parameter t in [0,1].
// Falls back to normalized linear interpolation when the rotations are
// nearly parallel.
func (q Quat) Slerp(o Quat, t float32) Quat {
	cosTheta := q.X*o.X + q.Y*o.Y + q.Z*o.Z + q.W*o.W
	if cosTheta < 0 {
		o = Quat{-o.X, -o.Y, -o.Z, -o.W}
		cosTheta = -cosTheta
	}
	var w1, w2 float32
	if cosTheta > 0.9995 {
		w1, w2 = 1-t, t
	} else {
		theta := float32(math.Acos(float64(cosTheta)))
		sinTheta := float32(math.Sin(float64(theta)))
		w1 = float32(math.Sin(float64((1-t)*theta))) / sinTheta
		w2 = float32(math.Sin(float64(t*theta))) / sinTheta
	}
	r := Quat{
		w1*q.X + w2*o.X,
		w1*q.Y + w2*o.Y,
		w1*q.Z + w2*o.Z,
		w1*q.W + w2*o.W,
	}
	l := float32(math.Sqrt(float64(r.X*r.X + r.Y*r.Y + r.Z*r.Z + r.W*r.W)))
	if l == 0 {
		return QuatIdentity()
	}
	return Quat{r.X / l, r.Y / l, r.Z / l, r.W / l}
}

// Mat4 is a 4x4 matrix stored in column-major order (WebGPU convention).
type Mat4 [16]float32

// Mat3 is a 3x3 matrix stored in column-major order, used for normal matrices.
type Mat3 [9]float32

// Mat4Identity returns the identity matrix.
func Mat4Identity() Mat4 {
	var m Mat4
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
	return m
}

// Mul returns m * o.
func (m Mat4) Mul(o Mat4) Mat4 {
	var out Mat4
	for i := 0; i < 4; i++ { // column of o
		for j := 0; j < 4; j++ { // row of m
			sum := float32(0)
			for k := 0; k < 4; k++ {
				sum += m[k*4+j] * o[i*4+k]
			}
			out[i*4+j] = sum
		}
	}
	return out
}

// TransformPoint applies the full transformation (including translation) to p.
func (m Mat4) TransformPoint(p Vec3) Vec3 {
	return Vec3{
		m[0]*p.X + m[4]*p.Y + m[8]*p.Z + m[12],
		m[1]*p.X + m[5]*p.Y + m[9]*p.Z + m[13],
		m[2]*p.X + m[6]*p.Y + m[10]*p.Z + m[14],
	}
}

// TransformDir applies only the rotational/scaling part of the matrix to d.
func (m Mat4) TransformDir(d Vec3) Vec3 {
	return Vec3{
		m[0]*d.X + m[4]*d.Y + m[8]*d.Z,
		m[1]*d.X + m[5]*d.Y + m[9]*d.Z,
		m[2]*d.X + m[6]*d.Y + m[10]*d.Z,
	}
}

// Inverted computes the inverse via Laplace (cofactor) expansion. If the
// matrix is singular the identity is returned and ok is false.
func (m Mat4) Inverted() (Mat4, bool) {
	s0 := m[0]*m[5] - m[4]*m[1]
	s1 := m[0]*m[6] - m[4]*m[2]
	s2 := m[0]*m[7] - m[4]*m[3]
	s3 := m[1]*m[6] - m[5]*m[2]
	s4 := m[1]*m[7] - m[5]*m[3]
	s5 := m[2]*m[7] - m[6]*m[3]

	c5 := m[10]*m[15] - m[14]*m[11]
	c4 := m[9]*m[15] - m[13]*m[11]
	c3 := m[9]*m[14] - m[13]*m[10]
	c2 := m[8]*m[15] - m[12]*m[11]
	c1 := m[8]*m[14] - m[12]*m[10]
	c0 := m[8]*m[13] - m[12]*m[9]

	det := s0*c5 - s1*c4 + s2*c3 + s3*c2 - s4*c1 + s5*c0
	if det == 0 {
		return Mat4Identity(), false
	}
	invDet := 1.0 / det

	var out Mat4
	out[0] = (m[5]*c5 - m[6]*c4 + m[7]*c3) * invDet
	out[1] = (-m[1]*c5 + m[2]*c4 - m[3]*c3) * invDet
	out[2] = (m[13]*s5 - m[14]*s4 + m[15]*s3) * invDet
	out[3] = (-m[9]*s5 + m[10]*s4 - m[11]*s3) * invDet

	out[4] = (-m[4]*c5 + m[6]*c2 - m[7]*c1) * invDet
	out[5] = (m[0]*c5 - m[2]*c2 + m[3]*c1) * invDet
	out[6] = (-m[12]*s5 + m[14]*s2 - m[15]*s1) * invDet
	out[7] = (m[8]*s5 - m[10]*s2 + m[11]*s1) * invDet

	out[8] = (m[4]*c4 - m[5]*c2 + m[7]*c0) * invDet
	out[9] = (-m[0]*c4 + m[1]*c2 - m[3]*c0) * invDet
	out[10] = (m[12]*s4 - m[13]*s2 + m[15]*s0) * invDet
	out[11] = (-m[8]*s4 + m[9]*s2 - m[11]*s0) * invDet

	out[12] = (-m[4]*c3 + m[5]*c1 - m[6]*c0) * invDet
	out[13] = (m[0]*c3 - m[1]*c1 + m[2]*c0) * invDet
	out[14] = (-m[12]*s3 + m[13]*s1 - m[14]*s0) * invDet
	out[15] = (m[8]*s3 - m[9]*s1 + m[10]*s0) * invDet
	return out, true
}

// NormalMat3 returns the inverse-transpose of the upper-left 3x3 block,
// suitable for transforming normals under non-uniform scale.
func (m Mat4) NormalMat3() Mat3 {
	inv, ok := m.Inverted()
	if !ok {
		return Mat3{1, 0, 0, 0, 1, 0, 0, 0, 1}
	}
	// transpose of the upper-left 3x3 of the inverse
	return Mat3{
		inv[0], inv[4], inv[8],
		inv[1], inv[5], inv[9],
		inv[2], inv[6], inv[10],
	}
}

// MaxScale returns an upper bound on the scaling the matrix applies to any
// direction, for conservative bounding volume transforms.
func (m Mat4) MaxScale() float32 {
	x := Vec3{X: m[0], Y: m[1], Z: m[2]}.Length()
	y := Vec3{X: m[4], Y: m[5], Z: m[6]}.Length()
	z := Vec3{X: m[8], Y: m[9], Z: m[10]}.Length()
	return max(x, y, z)
}

// Frustum builds an off-center perspective projection for the given frustum
// planes at the near clipping distance. Clip-space depth is mapped to [0,1].
func Frustum(l, r, b, t, n, f float32) Mat4 {
	var m Mat4
	m[0] = 2 * n / (r - l)
	m[5] = 2 * n / (t - b)
	m[8] = (r + l) / (r - l)
	m[9] = (t + b) / (t - b)
	m[10] = f / (n - f)
	m[11] = -1
	m[14] = n * f / (n - f)
	return m
}

// Perspective builds a symmetric perspective projection from a vertical field
// of view in radians. Clip-space depth is mapped to [0,1].
func Perspective(fovY, aspect, near, far float32) Mat4 {
	t := near * float32(math.Tan(float64(fovY)/2))
	r := t * aspect
	return Frustum(-r, r, -t, t, near, far)
}

// LookAt builds a view matrix placing the camera at eye, looking at center,
// with the given up vector.
func LookAt(eye, center, up Vec3) Mat4 {
	z := eye.Sub(center).Normalized()
	x := up.Cross(z).Normalized()
	y := z.Cross(x)

	var m Mat4
	m[0], m[4], m[8], m[12] = x.X, x.Y, x.Z, -x.Dot(eye)
	m[1], m[5], m[9], m[13] = y.X, y.Y, y.Z, -y.Dot(eye)
	m[2], m[6], m[10], m[14] = z.X, z.Y, z.Z, -z.Dot(eye)
	m[3], m[7], m[11], m[15] = 0, 0, 0, 1
	return m
}

// Radians converts degrees to radians.
func Radians(deg float32) float32 {
	return deg * math.Pi / 180
}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// StructToBytes reinterprets a pointer to a struct as a raw byte slice using unsafe.
// The returned slice has length equal to the struct's size in memory.
//
// Parameters:
//   - v: pointer to the struct to reinterpret
//
// Returns:
//   - []byte: byte slice view of the struct's memory
func StructToBytes[T any](v *T) []byte {
	size := unsafe.Sizeof(*v)
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), int(size))
}
