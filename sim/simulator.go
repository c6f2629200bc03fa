package sim

import (
	"math"
	"sync"

	"camsim/common"
	"camsim/log"
	"camsim/render"
	"camsim/scene"
)

var logger = log.New("sim")

// Simulator renders camera frames of an animated scene. It owns the GPU
// programs and textures derived from its configuration; setters flag the
// derived state for lazy recreation on the next Simulate call.
//
// All methods must be called from the thread that owns the GPU context.
type Simulator struct {
	mu      sync.Mutex
	backend render.Backend

	scene                *scene.Scene
	projection           scene.Projection
	pipeline             Pipeline
	output               Output
	chipTiming           ChipTiming
	pmd                  PMD
	cameraTransformation scene.Transformation
	cameraAnimation      scene.Animation
	customTransformation scene.Transformation

	recreateShaders    bool
	recreateOutput     bool
	recreateTimestamps bool

	programs  programSet
	resources resourceSet

	haveLastFrameTimestamp bool
	lastFrameTimestamp     int64
	// Rotation offset into the depth buffer ring; advances by the subframe
	// count per new frame timestamp so Simulate stays idempotent when called
	// again with the same timestamp.
	depthBufferRotation int

	noiseSeed uint32
}

// NewSimulator returns a simulator with default configuration rendering
// through the given backend. A scene must be set before simulating.
func NewSimulator(backend render.Backend) *Simulator {
	return &Simulator{
		backend:              backend,
		projection:           scene.NewProjection(),
		pipeline:             NewPipeline(),
		output:               NewOutput(),
		chipTiming:           NewChipTiming(),
		pmd:                  NewPMD(),
		cameraTransformation: scene.NewTransformation(),
		customTransformation: scene.NewTransformation(),
		recreateShaders:      true,
		recreateOutput:       true,
		recreateTimestamps:   true,
	}
}

// SetScene replaces the scene. All derived state is recreated.
func (s *Simulator) SetScene(sc *scene.Scene) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scene = sc
	s.recreateShaders = true
	s.recreateOutput = true
	s.recreateTimestamps = true
}

// Scene returns the current scene.
func (s *Simulator) Scene() *scene.Scene { return s.scene }

// SetPipeline replaces the pipeline configuration.
func (s *Simulator) SetPipeline(pipeline Pipeline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipeline = pipeline
	s.recreateShaders = true
	s.recreateOutput = true
}

// GetPipeline returns the current pipeline configuration.
func (s *Simulator) GetPipeline() Pipeline { return s.pipeline }

// SetOutput replaces the output configuration.
func (s *Simulator) SetOutput(output Output) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.output = output
	s.recreateShaders = true
	s.recreateOutput = true
}

// GetOutput returns the current output configuration.
func (s *Simulator) GetOutput() Output { return s.output }

// SetProjection replaces the camera projection.
func (s *Simulator) SetProjection(projection scene.Projection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projection = projection
	s.recreateOutput = true
}

// GetProjection returns the current camera projection.
func (s *Simulator) GetProjection() scene.Projection { return s.projection }

// SetChipTiming replaces the chip timing.
func (s *Simulator) SetChipTiming(timing ChipTiming) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chipTiming = timing
	s.recreateTimestamps = true
}

// GetChipTiming returns the current chip timing.
func (s *Simulator) GetChipTiming() ChipTiming { return s.chipTiming }

// SetPMD replaces the PMD chip parameters.
func (s *Simulator) SetPMD(pmd PMD) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pmd = pmd
}

// GetPMDParams returns the current PMD chip parameters. The phase images of
// the last simulated frame are served by GetPMD.
func (s *Simulator) GetPMDParams() PMD { return s.pmd }

// SetCameraTransformation replaces the static camera transformation, applied
// on top of the camera animation.
func (s *Simulator) SetCameraTransformation(t scene.Transformation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cameraTransformation = t
}

// GetCameraTransformation returns the static camera transformation.
func (s *Simulator) GetCameraTransformation() scene.Transformation {
	return s.cameraTransformation
}

// SetCameraAnimation replaces the camera animation.
func (s *Simulator) SetCameraAnimation(a scene.Animation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cameraAnimation = a
	s.recreateTimestamps = true
}

// GetCameraAnimation returns the camera animation.
func (s *Simulator) GetCameraAnimation() scene.Animation { return s.cameraAnimation }

// SetCustomTransformation replaces the transformation used for custom-space
// position and normal outputs.
func (s *Simulator) SetCustomTransformation(t scene.Transformation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customTransformation = t
}

// GetCustomTransformation returns the custom-space transformation.
func (s *Simulator) GetCustomTransformation() scene.Transformation {
	return s.customTransformation
}

// SubFrames returns the number of subframes per frame: four for PMD output,
// one otherwise.
func (s *Simulator) SubFrames() int {
	if s.output.PMD {
		return 4
	}
	return 1
}

// SubFrameDuration returns the duration of one subframe in microseconds.
func (s *Simulator) SubFrameDuration() int64 {
	return subFrameDurationUS(s.chipTiming)
}

// FrameDuration returns the duration of one frame in microseconds.
func (s *Simulator) FrameDuration() int64 {
	return frameDurationUS(s.chipTiming, s.SubFrames())
}

// FramesPerSecond returns the frame rate resulting from the chip timing.
func (s *Simulator) FramesPerSecond() float64 {
	return framesPerSecond(s.chipTiming, s.SubFrames())
}

// StartTimestamp returns the earliest keyframe timestamp across the camera,
// light and object animations, or zero when nothing is animated.
func (s *Simulator) StartTimestamp() int64 {
	start := int64(math.MaxInt64)
	consider := func(a *scene.Animation) {
		if a.KeyframeCount() > 0 && a.StartTime() < start {
			start = a.StartTime()
		}
	}
	consider(&s.cameraAnimation)
	if s.scene != nil {
		for i := range s.scene.LightAnimations {
			consider(&s.scene.LightAnimations[i])
		}
		for i := range s.scene.ObjectAnimations {
			consider(&s.scene.ObjectAnimations[i])
		}
	}
	if start == math.MaxInt64 {
		return 0
	}
	return start
}

// EndTimestamp returns the latest keyframe timestamp across the camera,
// light and object animations, or zero when nothing is animated.
func (s *Simulator) EndTimestamp() int64 {
	end := int64(math.MinInt64)
	consider := func(a *scene.Animation) {
		if a.KeyframeCount() > 0 && a.EndTime() > end {
			end = a.EndTime()
		}
	}
	consider(&s.cameraAnimation)
	if s.scene != nil {
		for i := range s.scene.LightAnimations {
			consider(&s.scene.LightAnimations[i])
		}
		for i := range s.scene.ObjectAnimations {
			consider(&s.scene.ObjectAnimations[i])
		}
	}
	if end == math.MinInt64 {
		return 0
	}
	return end
}

// refreshTimestamps restarts the frame sequence after a change to the chip
// timing or the animations: the previous frame's timestamp no longer relates
// to the new timing.
func (s *Simulator) refreshTimestamps() {
	if s.recreateTimestamps {
		s.haveLastFrameTimestamp = false
		s.recreateTimestamps = false
	}
}

// NextFrameTimestamp returns the timestamp the next Simulate call should
// use: the animation start for the first frame, then one frame duration
// after the previous frame.
func (s *Simulator) NextFrameTimestamp() int64 {
	s.refreshTimestamps()
	if !s.haveLastFrameTimestamp {
		return s.StartTimestamp()
	}
	return s.lastFrameTimestamp + s.FrameDuration()
}

// drawContext carries the per-sample state shared by all draws of one scene
// pass.
type drawContext struct {
	timestamp  int64
	lastOffset int64
	nextOffset int64

	projection common.Mat4
	view       common.Mat4
	lastView   common.Mat4
	nextView   common.Mat4
	custom     common.Mat4

	// Scales light power so additive accumulation over temporal samples
	// averages instead of summing.
	sampleScale float32

	phaseIndex int
}

func transpose(m common.Mat4) common.Mat4 {
	var t common.Mat4
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			t[r*4+c] = m[c*4+r]
		}
	}
	return t
}

func normalMatrix(modelView common.Mat4) common.Mat4 {
	inv, ok := modelView.Inverted()
	if !ok {
		return common.Mat4Identity()
	}
	return transpose(inv)
}

// cameraMatrix returns the camera-to-world matrix at a timestamp.
func (s *Simulator) cameraMatrix(t int64) common.Mat4 {
	pose := s.cameraAnimation.Interpolate(t).Combined(s.cameraTransformation)
	return pose.Matrix()
}

// viewMatrix returns the world-to-eye matrix at a timestamp.
func (s *Simulator) viewMatrix(t int64) common.Mat4 {
	inv, ok := s.cameraMatrix(t).Inverted()
	if !ok {
		logger.Fatal("camera transformation is not invertible")
	}
	return inv
}

// lightPose returns a light's world-space position and direction at a
// timestamp.
func (s *Simulator) lightPose(index int, t int64) (position, direction, up common.Vec3) {
	light := &s.scene.Lights[index]
	m := s.scene.LightAnimations[index].Interpolate(t).Matrix()
	if light.IsRelativeToCamera {
		m = s.cameraMatrix(t).Mul(m)
	}
	position = m.TransformPoint(light.Position)
	direction = m.TransformDir(light.Direction).Normalized()
	up = m.TransformDir(light.Up).Normalized()
	return position, direction, up
}

// lightViewProj returns the world-to-light-clip matrix used for shadow map
// rendering and lookups.
func (s *Simulator) lightViewProj(index int, t int64) common.Mat4 {
	light := &s.scene.Lights[index]
	position, direction, up := s.lightPose(index, t)
	view := common.LookAt(position, position.Add(direction), up)
	fov := float32(90)
	if light.Type == scene.SpotLight {
		fov = light.OuterConeAngle
	}
	proj := common.Perspective(common.Radians(fov), 1,
		s.pipeline.NearClippingPlane, s.pipeline.FarClippingPlane)
	return proj.Mul(view)
}

// baseUniforms fills the draw-independent uniform fields for one sample.
func (s *Simulator) baseUniforms(ctx *drawContext) sceneUniforms {
	var u sceneUniforms
	u.Projection = ctx.projection
	u.View = ctx.view
	u.LastView = ctx.lastView
	u.NextView = ctx.nextView
	u.Custom = ctx.custom
	u.LightViewProj = common.Mat4Identity()

	k1, k2, p1, p2 := s.projection.Distortion()
	u.Distortion = common.Vec4{X: k1, Y: k2, Z: p1, W: p2}

	vignetting := float32(0)
	if s.pipeline.ThinLensVignetting && s.pipeline.ThinLensFocalLength > 0 {
		d := s.pipeline.ThinLensApertureDiameter / (2 * s.pipeline.ThinLensFocalLength)
		vignetting = d * d
	}
	u.ClipParams = common.Vec4{
		X: s.pipeline.NearClippingPlane,
		Y: s.pipeline.FarClippingPlane,
		Z: s.pipeline.PreprocLensDistortionMargin,
		W: vignetting,
	}

	u.PMDParams = common.Vec4{
		X: float32(s.pmd.PixelContrast),
		Y: float32(ctx.phaseIndex),
		Z: float32(s.pmd.ModulationFrequency),
		W: float32(s.chipTiming.ExposureTime),
	}
	u.PMDChip = common.Vec4{
		X: float32(s.pmd.PixelSize),
		Y: float32(s.pmd.Wavelength),
		Z: float32(s.pmd.QuantumEfficiency),
		W: float32(s.pmd.MaxElectrons),
	}

	// The pixel size in zw serves the 2D flow conversion, which renders at
	// the final image size.
	u.FrameParams = common.Vec4{
		X: float32(ctx.lastOffset) * 1e-6,
		Y: float32(ctx.nextOffset) * 1e-6,
		Z: float32(s.resources.width),
		W: float32(s.resources.height),
	}

	s.noiseSeed = s.noiseSeed*1664525 + 1013904223
	u.NoiseParams = common.Vec4{
		X: float32(s.noiseSeed%65536) / 64,
		Y: s.pipeline.GaussianWhiteNoiseMean * ctx.sampleScale,
		Z: s.pipeline.GaussianWhiteNoiseStddev,
		W: 0,
	}
	return u
}

// lightUniforms fills the per-light uniform fields in eye space.
func (s *Simulator) lightUniforms(u *sceneUniforms, ctx *drawContext, index int, haveShadowMap bool) {
	light := &s.scene.Lights[index]
	position, direction, _ := s.lightPose(index, ctx.timestamp)
	eyePos := ctx.view.TransformPoint(position)
	eyeDir := ctx.view.TransformDir(direction).Normalized()

	u.LightPosition = common.Vec4{X: eyePos.X, Y: eyePos.Y, Z: eyePos.Z, W: 1}
	u.LightDirection = common.Vec4{X: eyeDir.X, Y: eyeDir.Y, Z: eyeDir.Z, W: 0}

	intensity := lightIntensity(float64(light.Power),
		light.Type == scene.SpotLight, float64(light.OuterConeAngle))
	u.LightColor = common.Vec4{
		X: light.Color.X * ctx.sampleScale,
		Y: light.Color.Y * ctx.sampleScale,
		Z: light.Color.Z * ctx.sampleScale,
		W: float32(intensity) * ctx.sampleScale,
	}
	haveShadow := float32(0)
	if haveShadowMap {
		haveShadow = 1
		u.LightViewProj = s.lightViewProj(index, ctx.timestamp)
	}
	u.LightParams = common.Vec4{
		X: float32(light.Type),
		Y: common.Radians(light.InnerConeAngle),
		Z: common.Radians(light.OuterConeAngle),
		W: light.ShadowMapDepthBias,
	}
	u.LightAttenuation = common.Vec4{
		X: light.AttenuationConstant,
		Y: light.AttenuationLinear,
		Z: light.AttenuationQuadratic,
		W: haveShadow,
	}
	// Virtual point light grid root for the indirect light gather, one grid
	// cell per reflective shadow map texel.
	if len(s.resources.rsmColor[index]) > 0 {
		u.NoiseParams.W = float32(light.ReflectiveShadowMapSize)
	}
}

// materialUniforms fills the per-material uniform fields and returns the
// material textures in binding order.
func (s *Simulator) materialUniforms(u *sceneUniforms, materialIndex int, sampleScale float32) [4]render.Texture {
	material := &s.scene.Materials[materialIndex]
	twoSided := float32(0)
	if material.IsTwoSided {
		twoSided = 1
	}
	ambient := common.Vec3{}
	if s.pipeline.AmbientLight {
		ambient = material.Ambient
	}
	u.MaterialAmbient = common.Vec4{
		X: ambient.X * sampleScale, Y: ambient.Y * sampleScale,
		Z: ambient.Z * sampleScale, W: twoSided,
	}
	u.MaterialDiffuse = common.Vec4{X: material.Diffuse.X, Y: material.Diffuse.Y, Z: material.Diffuse.Z}
	u.MaterialSpecular = common.Vec4{
		X: material.Specular.X, Y: material.Specular.Y, Z: material.Specular.Z,
		W: material.Shininess,
	}
	u.MaterialEmissive = common.Vec4{
		X: material.Emissive.X * sampleScale, Y: material.Emissive.Y * sampleScale,
		Z: material.Emissive.Z * sampleScale, W: material.Opacity,
	}
	normalTex := material.NormalTex
	if !normalTex.Valid() {
		normalTex = material.BumpTex
	}
	return [4]render.Texture{material.DiffuseTex, normalTex, material.SpecularTex, material.OpacityTex}
}

// drawObjects issues one draw per shape of every object, with per-object
// model matrices interpolated at the context timestamps.
func (s *Simulator) drawObjects(ctx *drawContext, base sceneUniforms,
	shadowTex, auxTex render.Texture, extraTexs ...render.Texture) {

	// Preprocessing lens distortion moves vertices in the vertex stage, so
	// the undistorted view volume is not conservative then.
	cull := !s.pipeline.PreprocLensDistortion
	volume := common.ViewVolumeFromMatrix(base.Projection.Mul(base.View))

	for oi := range s.scene.Objects {
		animation := &s.scene.ObjectAnimations[oi]
		model := animation.Interpolate(ctx.timestamp).Matrix()
		lastModel := animation.Interpolate(ctx.timestamp + ctx.lastOffset).Matrix()
		nextModel := animation.Interpolate(ctx.timestamp + ctx.nextOffset).Matrix()

		u := base
		u.Model = model
		u.LastModel = lastModel
		u.NextModel = nextModel
		u.NormalMatrix = normalMatrix(ctx.view.Mul(model))

		for si := range s.scene.Objects[oi].Shapes {
			shape := &s.scene.Objects[oi].Shapes[si]
			if cull && shape.Bounds.Radius > 0 {
				center := model.TransformPoint(shape.Bounds.Center)
				if !volume.ContainsSphere(center, shape.Bounds.Radius*model.MaxScale()) {
					continue
				}
			}
			materialTexs := s.materialUniforms(&u, shape.MaterialIndex, ctx.sampleScale)
			u.DrawIndices = common.Vec4{
				X: float32(oi), Y: float32(si),
				Z: float32(shape.MaterialIndex), W: float32(s.resources.width),
			}
			s.backend.SetUniforms(u.bytes())
			texs := []render.Texture{
				materialTexs[0], materialTexs[1], materialTexs[2], materialTexs[3],
				shadowTex, auxTex,
			}
			s.backend.BindTextures(append(texs, extraTexs...))
			s.backend.DrawMesh(shape.Mesh)
		}
	}
}

// uploadPowerFactors refreshes a light's power factor map texture for a
// timestamp. Static maps upload once; dynamic maps upload whenever the
// callback reports a change.
func (s *Simulator) uploadPowerFactors(index int, t int64, force bool) {
	light := &s.scene.Lights[index]
	tex := s.resources.powerFactors[index]
	if !tex.Valid() {
		return
	}
	m := light.PowerFactors
	changed := force
	if light.PowerFactorMapFunc != nil {
		if m == nil {
			m = &scene.PowerFactorMap{}
			light.PowerFactors = m
		}
		if light.PowerFactorMapFunc(t, m) {
			changed = true
		}
	}
	if m == nil || !changed || len(m.Factors) < m.Width*m.Height {
		return
	}
	data := make([]float32, 2*m.Width*m.Height)
	for i := 0; i < m.Width*m.Height; i++ {
		data[2*i] = m.Factors[i]
	}
	s.backend.UploadTexture(tex, common.SliceToBytes(data))
}

// depthBufferSlot returns the ring slot holding the depth of the given
// subframe of the current frame. The rotation advances by the subframe count
// per frame, so index -1 addresses the previous frame's last subframe and
// index subFrames the spare buffer of the whole-frame flow pass.
func (s *Simulator) depthBufferSlot(subFrame int) int {
	n := len(s.resources.depthBuffers)
	idx := (s.depthBufferRotation + subFrame) % n
	if idx < 0 {
		idx += n
	}
	return idx
}

// Simulate renders one frame at the given timestamp. Fatal configuration
// errors abort the process; use ValidateConfig to check a configuration
// gracefully.
func (s *Simulator) Simulate(frameTimestamp int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scene == nil {
		logger.Fatal("cannot simulate without a scene")
	}
	if err := ValidateConfig(s.scene, s.pipeline, s.output); err != nil {
		logger.Fatalf("invalid simulator configuration: %v", err)
	}

	subFrames := s.SubFrames()
	if s.recreateShaders {
		if err := s.programs.build(s.backend, s.scene, s.pipeline, s.output, subFrames); err != nil {
			logger.Fatalf("failed to build simulation programs: %v", err)
		}
		s.recreateShaders = false
		s.recreateOutput = true
	}
	if s.recreateOutput {
		s.resources.alloc(s.backend, s.scene, &s.programs,
			s.projection.ImageWidth(), s.projection.ImageHeight(),
			s.pipeline, s.output, subFrames)
		s.recreateOutput = false
		s.haveLastFrameTimestamp = false
		for i := range s.scene.Lights {
			s.uploadPowerFactors(i, frameTimestamp, true)
		}
	}
	s.refreshTimestamps()

	if s.haveLastFrameTimestamp && frameTimestamp != s.lastFrameTimestamp {
		s.depthBufferRotation += subFrames
	}

	frameDuration := s.FrameDuration()
	samples := s.pipeline.TemporalSamples
	oversampling := s.resources.oversampling
	firstFrame := !s.haveLastFrameTimestamp

	for i := 0; i < subFrames; i++ {
		subFrameStart := subFrameTimestamp(frameTimestamp, s.chipTiming, i,
			s.pipeline.SubFrameTemporalSampling)

		// The native-size depth ring belongs to the geometry and flow
		// passes; the light path only shares it when it renders at native
		// size anyway.
		depthTex := s.resources.depthBuffers[s.depthBufferSlot(i)]
		lightDepthTex := depthTex
		if oversampling {
			lightDepthTex = s.resources.depthBufferOversampled
		}

		for j := 0; j < samples; j++ {
			t := temporalSampleTimestamp(subFrameStart, s.chipTiming, j, samples)
			ctx := drawContext{
				timestamp:   t,
				projection:  s.projection.ProjectionMatrix(s.pipeline.NearClippingPlane, s.pipeline.FarClippingPlane),
				view:        s.viewMatrix(t),
				custom:      s.customTransformation.Matrix(),
				sampleScale: 1 / float32(samples),
				phaseIndex:  i,
			}
			ctx.lastView = ctx.view
			ctx.nextView = ctx.view

			s.renderShadowMaps(&ctx)
			s.renderDepthPrepass(&ctx, lightDepthTex)
			s.renderLightPass(&ctx, i, lightDepthTex, j == 0)
		}

		// Geometry and flow sample the subframe start time only; they have
		// no radiometric accumulation.
		t := subFrameStart
		ctx := drawContext{
			timestamp:   t,
			projection:  s.projection.ProjectionMatrix(s.pipeline.NearClippingPlane, s.pipeline.FarClippingPlane),
			view:        s.viewMatrix(t),
			custom:      s.customTransformation.Matrix(),
			sampleScale: 1,
			phaseIndex:  i,
		}
		ctx.lastView = ctx.view
		ctx.nextView = ctx.view
		if s.programs.geometry.Valid() {
			s.renderGeometryPass(&ctx, i, depthTex)
			if s.pipeline.PostprocLensDistortion {
				for a, format := range s.programs.geometryFormats {
					s.renderLensDistortion(&s.resources.geometry[a][i], format)
				}
			}
		}
		if s.programs.flow.Valid() {
			// Flow relates each subframe to its neighbors; at the frame
			// edges the neighbor subframe lies in the adjacent frame.
			lastT := subFrameStart
			switch {
			case i > 0:
				lastT = subFrameTimestamp(frameTimestamp, s.chipTiming, i-1,
					s.pipeline.SubFrameTemporalSampling)
			case !firstFrame:
				lastT = subFrameTimestamp(s.lastFrameTimestamp, s.chipTiming, subFrames-1,
					s.pipeline.SubFrameTemporalSampling)
			}
			nextT := frameTimestamp + frameDuration
			if i < subFrames-1 {
				nextT = subFrameTimestamp(frameTimestamp, s.chipTiming, i+1,
					s.pipeline.SubFrameTemporalSampling)
			}
			flowCtx := ctx
			flowCtx.lastOffset = lastT - t
			flowCtx.nextOffset = nextT - t
			flowCtx.lastView = s.viewMatrix(lastT)
			flowCtx.nextView = s.viewMatrix(nextT)

			prevDepthTex := render.Texture{}
			if i > 0 || !firstFrame {
				prevDepthTex = s.resources.depthBuffers[s.depthBufferSlot(i-1)]
			}
			s.renderFlowPass(&flowCtx, i, depthTex, prevDepthTex)
		}

		if oversampling && s.programs.oversampledLight.Valid() {
			s.renderOversampleReduction(i)
		}
		if s.output.PMD {
			s.renderPMDDigNum(i)
		}
		if s.pipeline.PostprocLensDistortion {
			if s.output.RGB {
				s.renderLensDistortion(&s.resources.rgb[i], render.FormatRGBA32F)
			}
			if s.output.PMD {
				s.renderLensDistortion(&s.resources.pmdEnergy, render.FormatRG32F)
			}
		}
	}

	s.renderFrameResults(frameTimestamp, subFrames, firstFrame)

	s.lastFrameTimestamp = frameTimestamp
	s.haveLastFrameTimestamp = true
}

func (s *Simulator) renderShadowMaps(ctx *drawContext) {
	if !s.programs.shadowMap.Valid() {
		return
	}
	for li := range s.scene.Lights {
		shadowTex := s.resources.shadowMaps[li]
		if !shadowTex.Valid() {
			continue
		}
		size, _ := s.backend.TextureSize(shadowTex)
		lightCtx := *ctx
		lightCtx.view = common.Mat4Identity()
		viewProj := s.lightViewProj(li, ctx.timestamp)

		u := s.baseUniforms(&lightCtx)
		// The shadow program reuses the scene vertex stage; feed the light
		// matrices through projection and view.
		u.Projection = viewProj
		u.View = common.Mat4Identity()
		u.LastView = common.Mat4Identity()
		u.NextView = common.Mat4Identity()

		s.backend.BeginPass(render.PassDesc{
			Program:     s.programs.shadowMap,
			Width:       size,
			Height:      size,
			DepthTarget: shadowTex,
		})
		s.drawObjects(&lightCtx, u, render.Texture{}, render.Texture{})
		s.backend.EndPass()

		if s.programs.reflectiveShadowMap.Valid() && len(s.resources.rsmColor[li]) > 0 {
			s.renderReflectiveShadowMap(&lightCtx, li, viewProj)
		}
	}
}

func (s *Simulator) renderReflectiveShadowMap(ctx *drawContext, li int, viewProj common.Mat4) {
	rsmDepth := s.resources.rsmDepth[li]
	size, _ := s.backend.TextureSize(rsmDepth)

	u := s.baseUniforms(ctx)
	u.Projection = viewProj
	u.View = common.Mat4Identity()
	u.LastView = common.Mat4Identity()
	u.NextView = common.Mat4Identity()
	s.lightUniforms(&u, ctx, li, false)

	s.backend.BeginPass(render.PassDesc{
		Program:      s.programs.reflectiveShadowMap,
		Width:        size,
		Height:       size,
		ColorTargets: s.resources.rsmColor[li],
		DepthTarget:  rsmDepth,
		ClearColor:   true,
	})
	s.drawObjects(ctx, u, render.Texture{}, render.Texture{})
	s.backend.EndPass()
}

func (s *Simulator) renderDepthPrepass(ctx *drawContext, depthTex render.Texture) {
	u := s.baseUniforms(ctx)
	s.backend.BeginPass(render.PassDesc{
		Program:     s.programs.depth,
		Width:       s.resources.osWidth,
		Height:      s.resources.osHeight,
		DepthTarget: depthTex,
	})
	s.drawObjects(ctx, u, render.Texture{}, render.Texture{})
	s.backend.EndPass()
}

// renderLightPass draws the scene once per light source into the subframe's
// light targets, accumulating additively against the depth prepass.
func (s *Simulator) renderLightPass(ctx *drawContext, subFrame int, depthTex render.Texture, clear bool) {
	if !s.programs.light.Valid() {
		return
	}
	for li := range s.scene.Lights {
		s.uploadPowerFactors(li, ctx.timestamp, false)
	}
	s.backend.BeginPass(render.PassDesc{
		Program:       s.programs.light,
		Width:         s.resources.osWidth,
		Height:        s.resources.osHeight,
		ColorTargets:  s.resources.lightTargets(s.output, subFrame),
		DepthTarget:   depthTex,
		PreserveDepth: true,
		ClearColor:    clear,
	})
	for li := range s.scene.Lights {
		shadowTex := s.resources.shadowMaps[li]
		u := s.baseUniforms(ctx)
		s.lightUniforms(&u, ctx, li, shadowTex.Valid())
		// Lights without a reflective shadow map leave the gather bindings on
		// the backend's placeholder; the zero grid root skips the gather.
		rsm := s.resources.rsmColor[li]
		if len(rsm) > 3 {
			rsm = rsm[:3] // positions, normals, radiances
		}
		s.drawObjects(ctx, u, shadowTex, s.resources.powerFactors[li], rsm...)
	}
	s.backend.EndPass()
}

func (s *Simulator) renderGeometryPass(ctx *drawContext, subFrame int, depthTex render.Texture) {
	u := s.baseUniforms(ctx)
	s.backend.BeginPass(render.PassDesc{
		Program:      s.programs.geometry,
		Width:        s.resources.width,
		Height:       s.resources.height,
		ColorTargets: subFrameTargets(s.resources.geometry, subFrame),
		DepthTarget:  depthTex,
		ClearColor:   true,
	})
	s.drawObjects(ctx, u, render.Texture{}, render.Texture{})
	s.backend.EndPass()
}

func (s *Simulator) renderFlowPass(ctx *drawContext, subFrame int, depthTex, prevDepthTex render.Texture) {
	u := s.baseUniforms(ctx)
	s.backend.BeginPass(render.PassDesc{
		Program:      s.programs.flow,
		Width:        s.resources.width,
		Height:       s.resources.height,
		ColorTargets: subFrameTargets(s.resources.flow, subFrame),
		DepthTarget:  depthTex,
		ClearColor:   true,
	})
	// The previous subframe's depth buffer rides in the shadow map binding
	// for the backward flow visibility test.
	s.drawObjects(ctx, u, prevDepthTex, render.Texture{})
	s.backend.EndPass()
}

func (s *Simulator) renderOversampleReduction(subFrame int) {
	var u oversampleUniforms
	u.setWeights(s.pipeline.SpatialSampleWeights,
		s.pipeline.SpatialSamplesX*s.pipeline.SpatialSamplesY)

	inputs := make([]render.Texture, 2)
	copy(inputs, s.resources.oversampledLight)

	s.backend.BeginPass(render.PassDesc{
		Program:      s.programs.oversampledLight,
		Width:        s.resources.width,
		Height:       s.resources.height,
		ColorTargets: s.resources.combinedLightTargets(s.output, subFrame),
		ClearColor:   true,
	})
	s.backend.SetUniforms(u.bytes())
	s.backend.BindTextures(inputs)
	s.backend.DrawQuad()
	s.backend.EndPass()
}

func (s *Simulator) renderPMDDigNum(subFrame int) {
	seed := float32(s.noiseSeed%65536) / 64
	u := digNumUniforms{Chip: common.Vec4{
		X: float32(s.pmd.Wavelength),
		Y: float32(s.pmd.QuantumEfficiency),
		Z: float32(s.pmd.MaxElectrons),
		W: seed,
	}}
	s.backend.BeginPass(render.PassDesc{
		Program:      s.programs.pmdDigNum,
		Width:        s.resources.width,
		Height:       s.resources.height,
		ColorTargets: []render.Texture{s.resources.pmdDigNum[subFrame]},
		ClearColor:   true,
	})
	s.backend.SetUniforms(u.bytes())
	s.backend.BindTextures([]render.Texture{s.resources.pmdEnergy})
	s.backend.DrawQuad()
	s.backend.EndPass()
}

func (s *Simulator) renderSRGBConversion(src, dst int) {
	s.backend.BeginPass(render.PassDesc{
		Program:      s.programs.convertToSRGB,
		Width:        s.resources.width,
		Height:       s.resources.height,
		ColorTargets: []render.Texture{s.resources.srgb[dst]},
		ClearColor:   true,
	})
	s.backend.SetUniforms(nil)
	s.backend.BindTextures([]render.Texture{s.resources.rgb[src]})
	s.backend.DrawQuad()
	s.backend.EndPass()
}

// renderLensDistortion warps one texture through the lens distortion model
// and swaps the distorted image into its place. The scratch target and the
// distortion program are chosen by the texture's format.
func (s *Simulator) renderLensDistortion(tex *render.Texture, format render.TextureFormat) {
	prg := s.programs.postprocLensDist
	scratch := &s.resources.postProcessing
	if format == render.FormatRG32F {
		prg = s.programs.postprocLensDistRG
		scratch = &s.resources.postProcessingRG
	}
	if !prg.Valid() || !scratch.Valid() || !tex.Valid() {
		return
	}
	center := s.projection.CenterPixel()
	focal := s.projection.FocalLengths()
	k1, k2, p1, p2 := s.projection.Distortion()
	u := lensDistUniforms{
		Distortion: common.Vec4{X: k1, Y: k2, Z: p1, W: p2},
		Intrinsics: common.Vec4{X: center.X, Y: center.Y, Z: focal.X, W: focal.Y},
		Image:      common.Vec4{X: float32(s.resources.width), Y: float32(s.resources.height)},
	}
	s.backend.BeginPass(render.PassDesc{
		Program:      prg,
		Width:        s.resources.width,
		Height:       s.resources.height,
		ColorTargets: []render.Texture{*scratch},
		ClearColor:   true,
	})
	s.backend.SetUniforms(u.bytes())
	s.backend.BindTextures([]render.Texture{*tex})
	s.backend.DrawQuad()
	s.backend.EndPass()
	*tex, *scratch = *scratch, *tex
}

// renderFrameResults combines the subframe outputs into the frame results.
func (s *Simulator) renderFrameResults(frameTimestamp int64, subFrames int, firstFrame bool) {
	if s.output.RGB && subFrames > 1 && s.programs.rgbResult.Valid() {
		inputs := make([]render.Texture, 4)
		copy(inputs, s.resources.rgb[:subFrames])
		s.backend.BeginPass(render.PassDesc{
			Program:      s.programs.rgbResult,
			Width:        s.resources.width,
			Height:       s.resources.height,
			ColorTargets: []render.Texture{s.resources.rgb[subFrames]},
			ClearColor:   true,
		})
		s.backend.SetUniforms(nil)
		s.backend.BindTextures(inputs)
		s.backend.DrawQuad()
		s.backend.EndPass()
	}

	if s.output.RGB && s.output.SRGB && s.programs.convertToSRGB.Valid() {
		for i := range s.resources.srgb {
			s.renderSRGBConversion(i, i)
		}
	}

	if s.output.PMD && subFrames == 4 && s.programs.pmdResult.Valid() {
		u := pmdResultUniforms{Params: common.Vec4{X: float32(s.pmd.ModulationFrequency)}}
		s.backend.BeginPass(render.PassDesc{
			Program:      s.programs.pmdResult,
			Width:        s.resources.width,
			Height:       s.resources.height,
			ColorTargets: []render.Texture{s.resources.pmdDigNum[4]},
			ClearColor:   true,
		})
		s.backend.SetUniforms(u.bytes())
		s.backend.BindTextures(s.resources.pmdDigNum[:4])
		s.backend.DrawQuad()
		s.backend.EndPass()

		if s.output.PMDCoordinates && s.programs.pmdCoordinates.Valid() {
			center := s.projection.CenterPixel()
			focal := s.projection.FocalLengths()
			u := coordinatesUniforms{Intrinsics: common.Vec4{
				X: center.X, Y: center.Y, Z: focal.X, W: focal.Y,
			}}
			s.backend.BeginPass(render.PassDesc{
				Program:      s.programs.pmdCoordinates,
				Width:        s.resources.width,
				Height:       s.resources.height,
				ColorTargets: []render.Texture{s.resources.pmdCoordinates},
				ClearColor:   true,
			})
			s.backend.SetUniforms(u.bytes())
			s.backend.BindTextures([]render.Texture{s.resources.pmdDigNum[4]})
			s.backend.DrawQuad()
			s.backend.EndPass()
		}
	}

	// The per-subframe flow passes relate neighboring subframes; the
	// combined result spans whole-frame boundaries instead, rendered into
	// the spare slots of the flow tables and the depth ring.
	if subFrames > 1 && s.programs.flow.Valid() {
		frameDuration := s.FrameDuration()
		t := frameTimestamp
		ctx := drawContext{
			timestamp:   t,
			lastOffset:  -frameDuration,
			nextOffset:  frameDuration,
			projection:  s.projection.ProjectionMatrix(s.pipeline.NearClippingPlane, s.pipeline.FarClippingPlane),
			view:        s.viewMatrix(t),
			lastView:    s.viewMatrix(t - frameDuration),
			nextView:    s.viewMatrix(t + frameDuration),
			custom:      s.customTransformation.Matrix(),
			sampleScale: 1,
		}
		prevDepthTex := render.Texture{}
		if !firstFrame {
			prevDepthTex = s.resources.depthBuffers[s.depthBufferSlot(0)]
		}
		depthTex := s.resources.depthBuffers[s.depthBufferSlot(subFrames)]
		s.renderFlowPass(&ctx, subFrames, depthTex, prevDepthTex)
	}
}

// Release frees all GPU resources owned by the simulator.
func (s *Simulator) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.programs.destroy(s.backend)
	s.resources.free(s.backend)
	s.haveLastFrameTimestamp = false
	s.recreateShaders = true
	s.recreateOutput = true
}
