package main

import (
	"camsim/common"
	"camsim/render"
	"camsim/scene"
)

type vertex struct {
	Position common.Vec3
	Normal   common.Vec3
	Texcoord common.Vec2
}

func uploadMesh(backend render.Backend, vertices []vertex, indices []uint32) (render.Mesh, scene.BoundingSphere, error) {
	positions := make([]common.Vec3, len(vertices))
	for i := range vertices {
		positions[i] = vertices[i].Position
	}
	mesh, err := backend.CreateMesh(
		common.SliceToBytes(vertices),
		common.SliceToBytes(indices),
		len(indices))
	return mesh, scene.SphereAround(positions...), err
}

// buildBoxMesh creates a unit cube centered at the origin with per-face
// normals.
func buildBoxMesh(backend render.Backend) (render.Mesh, scene.BoundingSphere, error) {
	faces := []struct {
		normal common.Vec3
		right  common.Vec3
		up     common.Vec3
	}{
		{common.Vec3{Z: 1}, common.Vec3{X: 1}, common.Vec3{Y: 1}},
		{common.Vec3{Z: -1}, common.Vec3{X: -1}, common.Vec3{Y: 1}},
		{common.Vec3{X: 1}, common.Vec3{Z: -1}, common.Vec3{Y: 1}},
		{common.Vec3{X: -1}, common.Vec3{Z: 1}, common.Vec3{Y: 1}},
		{common.Vec3{Y: 1}, common.Vec3{X: 1}, common.Vec3{Z: -1}},
		{common.Vec3{Y: -1}, common.Vec3{X: 1}, common.Vec3{Z: 1}},
	}
	var vertices []vertex
	var indices []uint32
	for _, face := range faces {
		base := uint32(len(vertices))
		center := face.normal.Scale(0.5)
		for _, corner := range []struct{ u, v float32 }{
			{-0.5, -0.5}, {0.5, -0.5}, {0.5, 0.5}, {-0.5, 0.5},
		} {
			pos := center.Add(face.right.Scale(corner.u)).Add(face.up.Scale(corner.v))
			vertices = append(vertices, vertex{
				Position: pos,
				Normal:   face.normal,
				Texcoord: common.Vec2{X: corner.u + 0.5, Y: 0.5 - corner.v},
			})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return uploadMesh(backend, vertices, indices)
}

// buildPlaneMesh creates a horizontal quad of the given half extent at y=0.
func buildPlaneMesh(backend render.Backend, halfExtent float32) (render.Mesh, scene.BoundingSphere, error) {
	normal := common.Vec3{Y: 1}
	vertices := []vertex{
		{common.Vec3{X: -halfExtent, Z: halfExtent}, normal, common.Vec2{X: 0, Y: 1}},
		{common.Vec3{X: halfExtent, Z: halfExtent}, normal, common.Vec2{X: 1, Y: 1}},
		{common.Vec3{X: halfExtent, Z: -halfExtent}, normal, common.Vec2{X: 1, Y: 0}},
		{common.Vec3{X: -halfExtent, Z: -halfExtent}, normal, common.Vec2{X: 0, Y: 0}},
	}
	indices := []uint32{0, 1, 2, 0, 2, 3}
	return uploadMesh(backend, vertices, indices)
}

// buildDemoScene assembles a small animated scene: a box rotating above a
// ground plane, lit by a point light at the camera.
func buildDemoScene(backend render.Backend, durationUS int64) (*scene.Scene, scene.Animation, error) {
	sc := &scene.Scene{}

	boxMaterial := sc.AddMaterial(scene.PhongMaterial(
		common.Vec3{X: 0.8, Y: 0.3, Z: 0.2},
		common.Vec3{X: 0.4, Y: 0.4, Z: 0.4}, 80))
	groundMaterial := sc.AddMaterial(scene.PhongMaterial(
		common.Vec3{X: 0.4, Y: 0.4, Z: 0.45},
		common.Vec3{}, 1))

	box, boxBounds, err := buildBoxMesh(backend)
	if err != nil {
		return nil, scene.Animation{}, err
	}
	ground, groundBounds, err := buildPlaneMesh(backend, 10)
	if err != nil {
		return nil, scene.Animation{}, err
	}

	spin := scene.NewAnimation()
	for i := int64(0); i <= 4; i++ {
		t := scene.NewTransformation()
		t.Translation = common.Vec3{Y: 0.5}
		t.Rotation = common.QuatFromAxisAngle(common.Vec3{Y: 1}, float32(i)*common.Radians(90))
		spin.AddKeyframe(scene.Keyframe{T: i * durationUS / 4, Transformation: t})
	}
	sc.AddObject(scene.Object{Shapes: []scene.Shape{
		{MaterialIndex: boxMaterial, Mesh: box, Bounds: boxBounds},
	}}, spin)
	sc.AddObject(scene.Object{Shapes: []scene.Shape{
		{MaterialIndex: groundMaterial, Mesh: ground, Bounds: groundBounds},
	}}, scene.NewAnimation())

	light := scene.NewLight()
	light.IsRelativeToCamera = true
	light.Power = 0.5
	sc.AddLight(light, scene.NewAnimation())

	camera := scene.NewAnimation()
	start := scene.NewTransformation()
	start.Translation = common.Vec3{Y: 1.2, Z: 4}
	end := start
	end.Translation = common.Vec3{X: 1, Y: 1.2, Z: 4}
	camera.AddKeyframe(scene.Keyframe{T: 0, Transformation: start})
	camera.AddKeyframe(scene.Keyframe{T: durationUS, Transformation: end})

	return sc, camera, nil
}
