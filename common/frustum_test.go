package common

import (
	"testing"
)

func TestViewVolumeContainsSphere(t *testing.T) {
	// Identity view: camera at the origin looking down negative z.
	v := ViewVolumeFromMatrix(Perspective(Radians(90), 1, 0.1, 100))

	if !v.ContainsSphere(Vec3{Z: -5}, 1) {
		t.Fatal("sphere in front of the camera reported outside")
	}
	if v.ContainsSphere(Vec3{Z: 5}, 1) {
		t.Fatal("sphere behind the camera reported inside")
	}
	if v.ContainsSphere(Vec3{X: 100, Z: -5}, 1) {
		t.Fatal("sphere far beside the frustum reported inside")
	}
	// At z=-5 with a 90 degree fov the frustum is 5 units wide; a sphere
	// centered just outside must still pass while it overlaps the plane.
	if !v.ContainsSphere(Vec3{X: 6, Z: -5}, 2) {
		t.Fatal("sphere overlapping the right plane reported outside")
	}
	if v.ContainsSphere(Vec3{Z: -200}, 1) {
		t.Fatal("sphere beyond the far plane reported inside")
	}
}

func TestMaxScale(t *testing.T) {
	m := Mat4Identity()
	m[5] = 3 // stretch y
	if got := m.MaxScale(); got != 3 {
		t.Fatalf("max scale = %v, want 3", got)
	}
}
