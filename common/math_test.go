package common

import (
	"math"
	"testing"
)

func mat4Close(a, b Mat4, tol float64) bool {
	for i := range a {
		if math.Abs(float64(a[i]-b[i])) > tol {
			return false
		}
	}
	return true
}

func vec3Close(a, b Vec3, tol float64) bool {
	return math.Abs(float64(a.X-b.X)) <= tol &&
		math.Abs(float64(a.Y-b.Y)) <= tol &&
		math.Abs(float64(a.Z-b.Z)) <= tol
}

func TestMat4Inverted(t *testing.T) {
	m := Mat4Identity()
	m[0] = 2
	m[5] = 3
	m[12] = 4
	m[13] = -1

	inv, ok := m.Inverted()
	if !ok {
		t.Fatal("invertible matrix reported as singular")
	}
	if !mat4Close(m.Mul(inv), Mat4Identity(), 1e-5) {
		t.Fatal("m * m^-1 is not the identity")
	}
	if !mat4Close(inv.Mul(m), Mat4Identity(), 1e-5) {
		t.Fatal("m^-1 * m is not the identity")
	}

	var singular Mat4
	if _, ok := singular.Inverted(); ok {
		t.Fatal("zero matrix reported as invertible")
	}
}

func TestQuatRotate(t *testing.T) {
	q := QuatFromAxisAngle(Vec3{Z: 1}, Radians(90))
	got := q.Rotate(Vec3{X: 1})
	if !vec3Close(got, Vec3{Y: 1}, 1e-6) {
		t.Fatalf("90 degree z rotation maps x to %+v, want y", got)
	}

	// Composition applies the right-hand rotation first.
	q2 := QuatFromAxisAngle(Vec3{X: 1}, Radians(90))
	got = q2.Mul(q).Rotate(Vec3{X: 1})
	if !vec3Close(got, Vec3{Z: 1}, 1e-6) {
		t.Fatalf("composed rotation maps x to %+v, want z", got)
	}
}

func TestQuatSlerpEndpoints(t *testing.T) {
	a := QuatIdentity()
	b := QuatFromAxisAngle(Vec3{Y: 1}, Radians(120))
	if got := a.Slerp(b, 0); got != a {
		t.Fatalf("slerp at 0 = %+v, want start rotation", got)
	}
	half := a.Slerp(b, 0.5)
	want := QuatFromAxisAngle(Vec3{Y: 1}, Radians(60))
	if math.Abs(float64(half.Y-want.Y)) > 1e-5 || math.Abs(float64(half.W-want.W)) > 1e-5 {
		t.Fatalf("slerp at 0.5 = %+v, want 60 degree rotation %+v", half, want)
	}
}

func TestFrustumDepthRange(t *testing.T) {
	m := Frustum(-1, 1, -1, 1, 1, 10)

	depthAt := func(z float32) float32 {
		return (m[10]*z + m[14]) / -z
	}
	if got := depthAt(-1); math.Abs(float64(got)) > 1e-6 {
		t.Fatalf("near plane depth = %v, want 0", got)
	}
	if got := depthAt(-10); math.Abs(float64(got)-1) > 1e-6 {
		t.Fatalf("far plane depth = %v, want 1", got)
	}
	mid := depthAt(-5)
	if mid <= 0 || mid >= 1 {
		t.Fatalf("mid depth = %v, want in (0, 1)", mid)
	}
}

func TestLookAt(t *testing.T) {
	view := LookAt(Vec3{Z: 5}, Vec3{}, Vec3{Y: 1})

	// The view matrix moves the looked-at point onto the negative z axis.
	if got := view.TransformPoint(Vec3{}); !vec3Close(got, Vec3{Z: -5}, 1e-6) {
		t.Fatalf("center maps to %+v, want (0, 0, -5)", got)
	}
	if got := view.TransformPoint(Vec3{Z: 5}); !vec3Close(got, Vec3{}, 1e-6) {
		t.Fatalf("eye maps to %+v, want origin", got)
	}
	if got := view.TransformDir(Vec3{X: 1}); !vec3Close(got, Vec3{X: 1}, 1e-6) {
		t.Fatalf("right direction maps to %+v, want unchanged", got)
	}
}

func TestNormalMat3UnderNonUniformScale(t *testing.T) {
	m := Mat4Identity()
	m[0] = 2 // stretch x by 2
	n := m.NormalMat3()

	// A normal along x must shrink so it stays perpendicular to the scaled
	// surface after renormalization.
	if math.Abs(float64(n[0])-0.5) > 1e-6 {
		t.Fatalf("normal matrix x scale = %v, want 0.5", n[0])
	}
	if math.Abs(float64(n[4])-1) > 1e-6 || math.Abs(float64(n[8])-1) > 1e-6 {
		t.Fatalf("normal matrix y/z scales = %v, %v, want 1", n[4], n[8])
	}
}

func TestSliceToBytes(t *testing.T) {
	data := []float32{1, 2, 3}
	b := SliceToBytes(data)
	if len(b) != 12 {
		t.Fatalf("byte length = %d, want 12", len(b))
	}
	if SliceToBytes([]float32(nil)) != nil {
		t.Fatal("empty slice should convert to nil")
	}

	type uniform struct {
		A Vec4
		B Vec4
	}
	u := uniform{}
	if got := len(StructToBytes(&u)); got != 32 {
		t.Fatalf("struct byte length = %d, want 32", got)
	}
}
