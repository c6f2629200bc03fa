package common

// ViewVolume holds the six clip planes of a combined projection * view
// matrix, oriented so that points inside the volume lie on the positive side
// of every plane. It is used for conservative bounding sphere culling.
type ViewVolume struct {
	planes [6]Vec4
}

// ViewVolumeFromMatrix extracts the clip planes from a projection * view
// matrix with the Gribb/Hartmann method, adjusted for the [0,1] clip space
// depth range.
func ViewVolumeFromMatrix(m Mat4) ViewVolume {
	row := func(i int) Vec4 {
		return Vec4{X: m[i], Y: m[4+i], Z: m[8+i], W: m[12+i]}
	}
	sum := func(a, b Vec4, sign float32) Vec4 {
		return Vec4{X: a.X + sign*b.X, Y: a.Y + sign*b.Y, Z: a.Z + sign*b.Z, W: a.W + sign*b.W}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	var v ViewVolume
	v.planes[0] = sum(r3, r0, 1)  // left
	v.planes[1] = sum(r3, r0, -1) // right
	v.planes[2] = sum(r3, r1, 1)  // bottom
	v.planes[3] = sum(r3, r1, -1) // top
	v.planes[4] = r2              // near, z >= 0 in clip space
	v.planes[5] = sum(r3, r2, -1) // far

	for i, p := range v.planes {
		length := Vec3{X: p.X, Y: p.Y, Z: p.Z}.Length()
		if length > 0 {
			v.planes[i] = Vec4{X: p.X / length, Y: p.Y / length, Z: p.Z / length, W: p.W / length}
		}
	}
	return v
}

// ContainsSphere reports whether a sphere touches the view volume.
func (v *ViewVolume) ContainsSphere(center Vec3, radius float32) bool {
	for _, p := range v.planes {
		if p.X*center.X+p.Y*center.Y+p.Z*center.Z+p.W < -radius {
			return false
		}
	}
	return true
}
