package scene

import (
	"math"
	"testing"

	"camsim/common"
)

func TestFromOpeningAngleCenterPixel(t *testing.T) {
	p := FromOpeningAngle(640, 480, 70)
	center := p.CenterPixel()
	if math.Abs(float64(center.X)-319.5) > 1e-3 {
		t.Fatalf("center x = %v, want 319.5", center.X)
	}
	if math.Abs(float64(center.Y)-239.5) > 1e-3 {
		t.Fatalf("center y = %v, want 239.5", center.Y)
	}
}

func TestIntrinsicsRoundTrip(t *testing.T) {
	p := FromIntrinsics(640, 480, 310, 250, 520, 530)
	center := p.CenterPixel()
	focal := p.FocalLengths()
	// FromIntrinsics takes the principal point in top-left image
	// coordinates while CenterPixel reports it relative to the opposite
	// corner, so the round trip mirrors it to (w-1-cx, h-1-cy).
	if math.Abs(float64(center.X)-329) > 1e-2 || math.Abs(float64(center.Y)-229) > 1e-2 {
		t.Fatalf("center pixel = %+v, want (329, 229)", center)
	}
	if math.Abs(float64(focal.X)-520) > 1e-2 || math.Abs(float64(focal.Y)-530) > 1e-2 {
		t.Fatalf("focal lengths = %+v, want (520, 530)", focal)
	}
}

func TestFocalLengthMatchesOpeningAngle(t *testing.T) {
	p := FromOpeningAngle(640, 480, 70)
	// fy = (h/2) / tan(fovy/2)
	want := 240 / math.Tan(float64(common.Radians(35)))
	if got := float64(p.FocalLengths().Y); math.Abs(got-want) > 1e-2 {
		t.Fatalf("focal length y = %v, want %v", got, want)
	}
}

func TestDistortion(t *testing.T) {
	p := FromOpeningAngle(64, 48, 70)
	if p.HasDistortion() {
		t.Fatal("fresh projection reports distortion")
	}
	undistorted := p.DistortPoint(common.Vec2{X: 0.5, Y: -0.25})
	if undistorted != (common.Vec2{X: 0.5, Y: -0.25}) {
		t.Fatalf("identity distortion moved the point to %+v", undistorted)
	}

	p.SetDistortion(-0.2, 0, 0, 0)
	if !p.HasDistortion() {
		t.Fatal("projection does not report distortion")
	}
	// Negative k1 is barrel distortion: points move toward the center.
	d := p.DistortPoint(common.Vec2{X: 0.5, Y: 0})
	if d.X >= 0.5 || d.X <= 0 {
		t.Fatalf("barrel distorted x = %v, want in (0, 0.5)", d.X)
	}
	if d.Y != 0 {
		t.Fatalf("on-axis point gained y offset %v", d.Y)
	}
}

func TestUndistortedCornersCoverFrustum(t *testing.T) {
	p := FromOpeningAngle(64, 48, 70)
	// Pincushion distortion pushes the corners outward, so the covering
	// frustum must grow.
	p.SetDistortion(0.2, 0, 0, 0)
	l, r, b, tp := p.UndistortedCorners()
	if l > -0.9 || r < 0.9 || b > -0.69 || tp < 0.69 {
		t.Fatalf("undistorted corners [%v %v %v %v] do not cover the frustum", l, r, b, tp)
	}
	if r <= 0.94 {
		t.Fatalf("pincushion corners did not grow: r = %v", r)
	}
}

func TestProjectionMatrixDepthRange(t *testing.T) {
	p := FromOpeningAngle(640, 480, 70)
	m := p.ProjectionMatrix(0.1, 100)

	project := func(z float32) float32 {
		w := -z
		depth := m[10]*z + m[14]
		return depth / w
	}
	if got := project(-0.1); math.Abs(float64(got)) > 1e-5 {
		t.Fatalf("near plane depth = %v, want 0", got)
	}
	if got := project(-100); math.Abs(float64(got)-1) > 1e-4 {
		t.Fatalf("far plane depth = %v, want 1", got)
	}
}

func TestTransformationCombined(t *testing.T) {
	outer := NewTransformation()
	outer.Translation = common.Vec3{X: 1}
	outer.Rotation = common.QuatFromAxisAngle(common.Vec3{Z: 1}, common.Radians(90))
	inner := NewTransformation()
	inner.Translation = common.Vec3{X: 2}

	combined := outer.Combined(inner)
	direct := outer.Matrix().Mul(inner.Matrix())
	p := common.Vec3{X: 1, Y: 1, Z: 1}
	got := combined.Matrix().TransformPoint(p)
	want := direct.TransformPoint(p)
	if math.Abs(float64(got.X-want.X)) > 1e-5 ||
		math.Abs(float64(got.Y-want.Y)) > 1e-5 ||
		math.Abs(float64(got.Z-want.Z)) > 1e-5 {
		t.Fatalf("combined transform maps p to %+v, matrix product to %+v", got, want)
	}
}
