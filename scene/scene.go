package scene

import (
	"camsim/common"
	"camsim/render"
)

// LightType identifies a light source type.
// Do not change these values; they are reused in shaders.
type LightType int

const (
	PointLight       LightType = 0
	SpotLight        LightType = 1
	DirectionalLight LightType = 2
)

// PowerFactorMap holds a per-angle power factor grid for a light source.
// Each entry corresponds to an outgoing angle (horizontally and vertically)
// and contains a value in [0,1] that is multiplied with the light source
// power.
type PowerFactorMap struct {
	Width, Height int
	// Angles in degrees at the borders of the map, seen from the light.
	AngleLeft, AngleRight float32
	AngleBottom, AngleTop float32
	Factors               []float32
}

// PowerFactorMapFunc dynamically regenerates a light's power factor map for
// the given timestamp. It must fill in the map and report whether any value
// changed compared to the previous version, so unchanged maps skip the GPU
// upload.
type PowerFactorMapFunc func(timestamp int64, m *PowerFactorMap) bool

// Light describes a light source.
type Light struct {
	Type LightType
	// For spot lights: cone angles in degrees.
	InnerConeAngle float32
	OuterConeAngle float32

	// Does this light source move with the camera?
	IsRelativeToCamera bool
	Position           common.Vec3
	// Direction, for spot lights and directional lights.
	Direction common.Vec3
	// Up vector, for shadow mapping and power factor maps.
	// Must be perpendicular to Direction.
	Up common.Vec3

	// Color for RGB simulation.
	Color common.Vec3
	// Power in Watt, for PMD simulation.
	Power float32
	// Attenuation coefficients. Physically plausible lights use
	// constant=1, linear=0, quadratic=1.
	AttenuationConstant  float32
	AttenuationLinear    float32
	AttenuationQuadratic float32

	// Does this light create a shadow map? Only used when shadow maps are
	// active in the pipeline configuration.
	ShadowMap          bool
	ShadowMapSize      int
	ShadowMapDepthBias float32
	// Does this light create a reflective shadow map? Only used when
	// reflective shadow maps are active in the pipeline configuration.
	ReflectiveShadowMap     bool
	ReflectiveShadowMapSize int

	// Static power factor map values, or nil.
	PowerFactors *PowerFactorMap
	// Callback that regenerates the power factor map per timestamp, or nil.
	PowerFactorMapFunc PowerFactorMapFunc
}

// NewLight returns a point light with physically plausible defaults.
func NewLight() Light {
	return Light{
		Type:                    PointLight,
		InnerConeAngle:          20,
		OuterConeAngle:          30,
		Direction:               common.Vec3{Z: -1},
		Up:                      common.Vec3{Y: 1},
		Color:                   common.Vec3{X: 1, Y: 1, Z: 1},
		Power:                   0.2,
		AttenuationConstant:     1,
		AttenuationLinear:       0,
		AttenuationQuadratic:    1,
		ShadowMapSize:           1024,
		ShadowMapDepthBias:      0.05,
		ReflectiveShadowMapSize: 256,
	}
}

// MaterialType identifies a BRDF model.
// Do not change these values; they are reused in shaders.
type MaterialType int

const (
	// A BRDF model based on modified Phong lighting.
	Phong MaterialType = 0
)

// Material describes the surface properties of a shape.
type Material struct {
	Type       MaterialType
	IsTwoSided bool

	// Bump/normal mapping. NormalTex overrides BumpTex when both are set.
	BumpTex     render.Texture
	BumpScaling float32
	NormalTex   render.Texture

	// Opacity in [0,1]; OpacityTex overrides Opacity when set.
	Opacity    float32
	OpacityTex render.Texture

	Ambient      common.Vec3
	Diffuse      common.Vec3
	Specular     common.Vec3
	Emissive     common.Vec3
	Shininess    float32
	AmbientTex   render.Texture
	DiffuseTex   render.Texture
	SpecularTex  render.Texture
	EmissiveTex  render.Texture
	ShininessTex render.Texture
	LightnessTex render.Texture
}

// NewMaterial returns a default greyish Phong material with diffuse and
// specular components.
func NewMaterial() Material {
	return PhongMaterial(
		common.Vec3{X: 0.5, Y: 0.5, Z: 0.5},
		common.Vec3{X: 0.5, Y: 0.5, Z: 0.5}, 100)
}

// PhongMaterial builds a Phong material with the given diffuse and specular
// colors. A zero specular color yields a lambertian material.
func PhongMaterial(diffuse, specular common.Vec3, shininess float32) Material {
	return Material{
		Type:      Phong,
		Opacity:   1,
		Diffuse:   diffuse,
		Specular:  specular,
		Shininess: shininess,
	}
}

// BoundingSphere conservatively encloses a shape's geometry in object space.
// A zero radius disables view volume culling for the shape.
type BoundingSphere struct {
	Center common.Vec3
	Radius float32
}

// SphereAround returns a bounding sphere of the given points, centered on
// their centroid.
func SphereAround(points ...common.Vec3) BoundingSphere {
	if len(points) == 0 {
		return BoundingSphere{}
	}
	var center common.Vec3
	for _, p := range points {
		center = center.Add(p)
	}
	center = center.Scale(1 / float32(len(points)))
	var radius float32
	for _, p := range points {
		if d := p.Sub(center).Length(); d > radius {
			radius = d
		}
	}
	return BoundingSphere{Center: center, Radius: radius}
}

// Shape is a triangle mesh with a single material.
type Shape struct {
	// Index of the material in the scene's global material list.
	MaterialIndex int
	// Vertex and index buffers for the triangle geometry.
	Mesh render.Mesh
	// Object-space bounds, for view volume culling.
	Bounds BoundingSphere
}

// Object groups one or more shapes that move together.
type Object struct {
	Shapes []Shape
}

// Scene describes the content to simulate: light sources and objects with
// their animations, plus a global material list.
type Scene struct {
	// Global list of materials used in the scene.
	Materials []Material

	Lights []Light
	// One animation per light; must have the same length as Lights.
	LightAnimations []Animation
	Objects         []Object
	// One animation per object; must have the same length as Objects.
	ObjectAnimations []Animation
}

// AddMaterial appends a material and returns its index.
func (s *Scene) AddMaterial(material Material) int {
	s.Materials = append(s.Materials, material)
	return len(s.Materials) - 1
}

// AddLight appends a light source and its animation.
func (s *Scene) AddLight(light Light, animation Animation) {
	s.Lights = append(s.Lights, light)
	s.LightAnimations = append(s.LightAnimations, animation)
}

// AddObject appends an object and its animation.
func (s *Scene) AddObject(object Object, animation Animation) {
	s.Objects = append(s.Objects, object)
	s.ObjectAnimations = append(s.ObjectAnimations, animation)
}
