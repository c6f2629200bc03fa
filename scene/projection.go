package scene

import (
	"math"

	"camsim/common"
)

// Projection defines the camera projection onto the image plane: image size,
// view frustum (relative to a near plane distance of 1), and OpenCV-compatible
// lens distortion parameters.
type Projection struct {
	w, h           int
	l, r, b, t     float32 // frustum for near=1
	k1, k2, p1, p2 float32 // lens distortion parameters, compatible to OpenCV
}

// NewProjection returns a 640x480 projection with a 70 degree vertical
// opening angle and no lens distortion.
func NewProjection() Projection {
	return FromOpeningAngle(640, 480, 70)
}

// FromFrustum builds a projection from image size and frustum information,
// relative to a near plane value of 1.
func FromFrustum(imageWidth, imageHeight int, l, r, b, t float32) Projection {
	return Projection{w: imageWidth, h: imageHeight, l: l, r: r, b: b, t: t}
}

// FromOpeningAngle builds a projection from image size and a vertical opening
// angle in degrees.
func FromOpeningAngle(imageWidth, imageHeight int, fovyDegrees float32) Projection {
	t := float32(math.Tan(float64(common.Radians(fovyDegrees / 2))))
	b := -t
	r := t * float32(imageWidth) / float32(imageHeight)
	l := -r
	return FromFrustum(imageWidth, imageHeight, l, r, b, t)
}

// FromIntrinsics builds a projection from image size and camera intrinsic
// parameters as used by OpenCV.
func FromIntrinsics(imageWidth, imageHeight int, centerX, centerY, focalLengthX, focalLengthY float32) Projection {
	rMinusL := float32(imageWidth) / focalLengthX
	l := -(centerX + 0.5) * rMinusL / float32(imageWidth)
	r := rMinusL + l
	tMinusB := float32(imageHeight) / focalLengthY
	b := -(centerY + 0.5) * tMinusB / float32(imageHeight)
	t := tMinusB + b
	return FromFrustum(imageWidth, imageHeight, l, r, b, t)
}

// ImageWidth returns the image width in pixels.
func (p Projection) ImageWidth() int { return p.w }

// ImageHeight returns the image height in pixels.
func (p Projection) ImageHeight() int { return p.h }

// ProjectionMatrix returns the projection matrix for the given near and far
// plane values.
func (p Projection) ProjectionMatrix(n, f float32) common.Mat4 {
	return common.Frustum(p.l*n, p.r*n, p.b*n, p.t*n, n, f)
}

// CenterPixel returns the center pixel coordinates, for use with camera
// intrinsics.
func (p Projection) CenterPixel() common.Vec2 {
	return common.Vec2{
		X: p.r/(p.r-p.l)*float32(p.w) - 0.5,
		Y: p.t/(p.t-p.b)*float32(p.h) - 0.5,
	}
}

// FocalLengths returns the focal lengths in x and y direction, for use with
// camera intrinsics.
func (p Projection) FocalLengths() common.Vec2 {
	return common.Vec2{
		X: 1 / ((p.r - p.l) / float32(p.w)),
		Y: 1 / ((p.t - p.b) / float32(p.h)),
	}
}

// SetDistortion sets the lens distortion parameters, compatible to OpenCV.
// Set everything to zero to disable lens distortion.
func (p *Projection) SetDistortion(k1, k2, p1, p2 float32) {
	p.k1, p.k2, p.p1, p.p2 = k1, k2, p1, p2
}

// Distortion returns the lens distortion parameters, compatible to OpenCV.
func (p Projection) Distortion() (k1, k2, p1, p2 float32) {
	return p.k1, p.k2, p.p1, p.p2
}

// HasDistortion reports whether any lens distortion parameter is non-zero.
func (p Projection) HasDistortion() bool {
	return p.k1 != 0 || p.k2 != 0 || p.p1 != 0 || p.p2 != 0
}

// DistortPoint applies the lens distortion model to a point in normalized
// image coordinates (near plane distance 1).
func (p Projection) DistortPoint(pos common.Vec2) common.Vec2 {
	r2 := pos.X*pos.X + pos.Y*pos.Y
	radial := 1 + p.k1*r2 + p.k2*r2*r2
	return common.Vec2{
		X: pos.X*radial + 2*p.p1*pos.X*pos.Y + p.p2*(r2+2*pos.X*pos.X),
		Y: pos.Y*radial + p.p1*(r2+2*pos.Y*pos.Y) + 2*p.p2*pos.X*pos.Y,
	}
}

// UndistortedCorners returns the frustum corners enlarged so that the
// distorted image still covers the full original frustum. Used to compute the
// clip margin for vertex-stage lens distortion.
func (p Projection) UndistortedCorners() (l, r, b, t float32) {
	l, r, b, t = p.l, p.r, p.b, p.t
	corners := []common.Vec2{{X: p.l, Y: p.b}, {X: p.r, Y: p.b}, {X: p.l, Y: p.t}, {X: p.r, Y: p.t}}
	for _, c := range corners {
		d := p.DistortPoint(c)
		if d.X < l {
			l = d.X
		}
		if d.X > r {
			r = d.X
		}
		if d.Y < b {
			b = d.Y
		}
		if d.Y > t {
			t = d.Y
		}
	}
	return l, r, b, t
}
