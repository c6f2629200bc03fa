package sim

import (
	"testing"

	"camsim/common"
	"camsim/render"
	"camsim/scene"
)

func newTestSimulator(backend render.Backend) *Simulator {
	s := NewSimulator(backend)
	s.SetProjection(scene.FromOpeningAngle(64, 48, 70))
	s.SetScene(validScene())
	return s
}

func TestSubFrames(t *testing.T) {
	s := NewSimulator(render.NewNullBackend())
	if got := s.SubFrames(); got != 1 {
		t.Fatalf("RGB simulation has %d subframes, want 1", got)
	}
	s.SetOutput(Output{PMD: true})
	if got := s.SubFrames(); got != 4 {
		t.Fatalf("PMD simulation has %d subframes, want 4", got)
	}
}

func TestSetterDirtyFlags(t *testing.T) {
	s := newTestSimulator(render.NewNullBackend())
	s.Simulate(0)
	if s.recreateShaders || s.recreateOutput || s.recreateTimestamps {
		t.Fatal("simulate did not clear the recreate flags")
	}

	s.SetChipTiming(NewChipTiming())
	if s.recreateShaders || s.recreateOutput {
		t.Fatal("chip timing must not invalidate shaders or output textures")
	}
	if !s.recreateTimestamps {
		t.Fatal("chip timing must invalidate the frame timestamps")
	}
	s.Simulate(s.NextFrameTimestamp())

	s.SetProjection(scene.FromOpeningAngle(32, 24, 70))
	if s.recreateShaders {
		t.Fatal("projection must not invalidate shaders")
	}
	if !s.recreateOutput {
		t.Fatal("projection must invalidate the output textures")
	}
	s.Simulate(s.NextFrameTimestamp())

	s.SetPipeline(NewPipeline())
	if !s.recreateShaders || !s.recreateOutput {
		t.Fatal("pipeline must invalidate shaders and output textures")
	}
}

func TestOutputAccessors(t *testing.T) {
	s := newTestSimulator(render.NewNullBackend())

	if _, ok := s.GetRGB(-1); ok {
		t.Fatal("rgb output available before the first frame")
	}

	s.Simulate(0)
	if _, ok := s.GetRGB(-1); !ok {
		t.Fatal("combined rgb result unavailable after simulating")
	}
	if _, ok := s.GetRGB(0); !ok {
		t.Fatal("subframe 0 rgb output unavailable after simulating")
	}
	if _, ok := s.GetRGB(1); ok {
		t.Fatal("rgb output for a nonexistent subframe")
	}
	if _, ok := s.GetPMD(-1); ok {
		t.Fatal("pmd output available although only RGB is enabled")
	}
	if _, ok := s.GetEyeSpacePositions(0); ok {
		t.Fatal("geometry output available although it is disabled")
	}

	// Reconfiguring invalidates the previous frame's outputs.
	s.SetOutput(Output{PMD: true})
	if _, ok := s.GetPMD(-1); ok {
		t.Fatal("pmd output available before simulating the new configuration")
	}
	s.Simulate(s.NextFrameTimestamp())
	for i := -1; i < 4; i++ {
		if _, ok := s.GetPMD(i); !ok {
			t.Fatalf("pmd output %d unavailable after simulating", i)
		}
	}
	if _, ok := s.GetRGB(-1); ok {
		t.Fatal("rgb output available although only PMD is enabled")
	}
}

func TestDefaultTransformationsAreIdentity(t *testing.T) {
	s := NewSimulator(render.NewNullBackend())
	if m := s.GetCameraTransformation().Matrix(); m != common.Mat4Identity() {
		t.Fatalf("default camera transformation matrix = %v, want identity", m)
	}
	if m := s.GetCustomTransformation().Matrix(); m != common.Mat4Identity() {
		t.Fatalf("default custom transformation matrix = %v, want identity", m)
	}
}

func TestPMDParamsRoundTrip(t *testing.T) {
	s := NewSimulator(render.NewNullBackend())
	pmd := NewPMD()
	pmd.ModulationFrequency = 20e6
	s.SetPMD(pmd)
	if got := s.GetPMDParams().ModulationFrequency; got != 20e6 {
		t.Fatalf("modulation frequency = %v, want 20e6", got)
	}
	// The phase image accessor of the same name serves textures, not
	// parameters, and stays invalid before the first frame.
	if _, ok := s.GetPMD(-1); ok {
		t.Fatal("pmd image available before simulating")
	}
}

func TestSimulateIsIdempotentPerTimestamp(t *testing.T) {
	s := newTestSimulator(render.NewNullBackend())
	s.Simulate(0)
	rotation := s.depthBufferRotation
	s.Simulate(0)
	if s.depthBufferRotation != rotation {
		t.Fatal("repeating a timestamp advanced the depth buffer ring")
	}
	s.Simulate(s.FrameDuration())
	if s.depthBufferRotation != rotation+1 {
		t.Fatalf("depth buffer rotation = %d after a new frame, want %d",
			s.depthBufferRotation, rotation+1)
	}
}

func TestNextFrameTimestampProgression(t *testing.T) {
	s := newTestSimulator(render.NewNullBackend())

	camera := scene.NewAnimation()
	start := scene.NewTransformation()
	start.Translation = common.Vec3{Z: 2}
	camera.AddKeyframe(scene.Keyframe{T: 500, Transformation: start})
	camera.AddKeyframe(scene.Keyframe{T: 90500, Transformation: start})
	s.SetCameraAnimation(camera)

	if got := s.StartTimestamp(); got != 500 {
		t.Fatalf("start timestamp = %d, want 500", got)
	}
	if got := s.EndTimestamp(); got != 90500 {
		t.Fatalf("end timestamp = %d, want 90500", got)
	}
	if got := s.NextFrameTimestamp(); got != 500 {
		t.Fatalf("first frame timestamp = %d, want animation start 500", got)
	}
	s.Simulate(500)
	if got := s.NextFrameTimestamp(); got != 500+s.FrameDuration() {
		t.Fatalf("second frame timestamp = %d, want %d", got, 500+s.FrameDuration())
	}
}

func TestChipTimingChangeRestartsFrameSequence(t *testing.T) {
	s := newTestSimulator(render.NewNullBackend())

	camera := scene.NewAnimation()
	pose := scene.NewTransformation()
	camera.AddKeyframe(scene.Keyframe{T: 1000, Transformation: pose})
	camera.AddKeyframe(scene.Keyframe{T: 91000, Transformation: pose})
	s.SetCameraAnimation(camera)

	s.Simulate(s.NextFrameTimestamp())
	if got := s.NextFrameTimestamp(); got != 1000+s.FrameDuration() {
		t.Fatalf("second frame timestamp = %d, want %d", got, 1000+s.FrameDuration())
	}

	// New chip timings restart the frame sequence: the previous frame's
	// timestamp no longer relates to the new frame duration.
	timing := NewChipTiming()
	timing.ExposureTime /= 2
	s.SetChipTiming(timing)
	if got := s.NextFrameTimestamp(); got != 1000 {
		t.Fatalf("frame timestamp after retiming = %d, want animation start 1000", got)
	}
}

func TestSimulatePassSequence(t *testing.T) {
	backend := render.NewNullBackend()
	s := newTestSimulator(backend)
	s.Simulate(0)

	passes := backend.Passes()
	if len(passes) != 2 {
		t.Fatalf("plain RGB frame recorded %d passes, want depth prepass and light pass", len(passes))
	}
	if len(passes[0].ColorTargets) != 0 || !passes[0].DepthTarget.Valid() {
		t.Fatal("first pass is not a depth-only prepass")
	}
	if len(passes[1].ColorTargets) != 1 || !passes[1].ClearColor {
		t.Fatal("second pass is not a cleared single-target light pass")
	}
	if passes[0].DepthTarget != passes[1].DepthTarget {
		t.Fatal("light pass does not draw against the prepass depth buffer")
	}
}

func TestSimulatePMDPassSequence(t *testing.T) {
	backend := render.NewNullBackend()
	s := newTestSimulator(backend)
	s.SetOutput(Output{PMD: true})
	s.Simulate(0)

	// Four subframes of depth, light and digital number conversion, then one
	// demodulation pass.
	if got := len(backend.Passes()); got != 13 {
		t.Fatalf("PMD frame recorded %d passes, want 13", got)
	}
}

func TestTemporalSamplesAccumulate(t *testing.T) {
	backend := render.NewNullBackend()
	s := newTestSimulator(backend)
	pipeline := NewPipeline()
	pipeline.TemporalSamples = 3
	s.SetPipeline(pipeline)
	s.Simulate(0)

	cleared := 0
	lightPasses := 0
	for _, pass := range backend.Passes() {
		if len(pass.ColorTargets) == 0 {
			continue
		}
		lightPasses++
		if pass.ClearColor {
			cleared++
		}
	}
	if lightPasses != 3 {
		t.Fatalf("%d light passes for 3 temporal samples, want 3", lightPasses)
	}
	if cleared != 1 {
		t.Fatalf("%d cleared light passes, want only the first sample to clear", cleared)
	}
}

func TestFlowCombinedResultSpansFrameOffsets(t *testing.T) {
	backend := render.NewNullBackend()
	s := newTestSimulator(backend)
	s.SetOutput(Output{PMD: true, ForwardFlow2D: true})
	s.Simulate(0)

	combined, ok := s.GetForwardFlow2D(-1)
	if !ok {
		t.Fatal("combined flow result unavailable after simulating")
	}
	for i := 0; i < s.SubFrames(); i++ {
		tex, ok := s.GetForwardFlow2D(i)
		if !ok {
			t.Fatalf("subframe %d flow output unavailable", i)
		}
		if tex == combined {
			t.Fatalf("combined flow result aliases subframe %d", i)
		}
	}

	// One flow pass per subframe relates neighboring subframes; one more
	// covers the whole-frame offsets for the combined result.
	flowPasses := 0
	for _, pass := range backend.Passes() {
		if pass.Program == s.programs.flow {
			flowPasses++
		}
	}
	if flowPasses != 5 {
		t.Fatalf("%d flow passes for 4 subframes, want 5", flowPasses)
	}
}

func TestPostprocDistortionAppliesPerSubFrame(t *testing.T) {
	backend := render.NewNullBackend()
	s := newTestSimulator(backend)
	pipeline := NewPipeline()
	pipeline.PostprocLensDistortion = true
	s.SetPipeline(pipeline)
	s.SetOutput(Output{RGB: true, PMD: true, DepthAndRange: true})
	s.Simulate(0)

	// RGB, PMD energies and the depth and range attachment of each of the
	// four subframes pass through the distortion.
	distortions := 0
	for _, pass := range backend.Passes() {
		if pass.Program == s.programs.postprocLensDist ||
			pass.Program == s.programs.postprocLensDistRG {
			distortions++
		}
	}
	if distortions != 12 {
		t.Fatalf("%d lens distortion passes, want 12", distortions)
	}
	if _, ok := s.GetRGB(0); !ok {
		t.Fatal("rgb output unavailable after distortion")
	}
	if _, ok := s.GetDepthAndRange(0); !ok {
		t.Fatal("depth and range output unavailable after distortion")
	}
}

func TestDrawObjectsCullViewVolume(t *testing.T) {
	backend := render.NewNullBackend()
	s := NewSimulator(backend)
	s.SetProjection(scene.FromOpeningAngle(64, 48, 70))

	sc := &scene.Scene{}
	material := sc.AddMaterial(scene.NewMaterial())
	mesh, err := backend.CreateMesh(make([]byte, 96), make([]byte, 12), 3)
	if err != nil {
		t.Fatal(err)
	}
	inFront := scene.Shape{MaterialIndex: material, Mesh: mesh,
		Bounds: scene.BoundingSphere{Center: common.Vec3{Z: -5}, Radius: 1}}
	behind := inFront
	behind.Bounds.Center = common.Vec3{Z: 5}
	sc.AddObject(scene.Object{Shapes: []scene.Shape{inFront}}, scene.NewAnimation())
	sc.AddObject(scene.Object{Shapes: []scene.Shape{behind}}, scene.NewAnimation())
	sc.AddLight(scene.NewLight(), scene.NewAnimation())
	s.SetScene(sc)

	s.Simulate(0)
	passes := backend.Passes()
	if len(passes) != 2 {
		t.Fatalf("recorded %d passes, want depth prepass and light pass", len(passes))
	}
	for _, pass := range passes {
		if pass.Draws != 1 {
			t.Fatalf("pass drew %d shapes, want the shape behind the camera culled", pass.Draws)
		}
	}
}

func TestReleaseFreesResources(t *testing.T) {
	backend := render.NewNullBackend()
	s := newTestSimulator(backend)
	s.Simulate(0)
	if backend.TextureCount() == 0 || backend.ProgramCount() == 0 {
		t.Fatal("simulating allocated no GPU resources")
	}
	s.Release()
	if got := backend.TextureCount(); got != 0 {
		t.Fatalf("%d textures left after release", got)
	}
	if got := backend.ProgramCount(); got != 0 {
		t.Fatalf("%d programs left after release", got)
	}
	if _, ok := s.GetRGB(-1); ok {
		t.Fatal("rgb output still available after release")
	}
}

func TestGetDepthBlockedWhenOversampled(t *testing.T) {
	s := newTestSimulator(render.NewNullBackend())
	pipeline := NewPipeline()
	pipeline.SpatialSamplesX = 3
	pipeline.SpatialSamplesY = 3
	s.SetPipeline(pipeline)
	s.Simulate(0)
	if _, ok := s.GetDepth(0); ok {
		t.Fatal("oversampled depth buffer exposed without geometry or flow outputs")
	}

	output := NewOutput()
	output.DepthAndRange = true
	s.SetOutput(output)
	s.Simulate(s.NextFrameTimestamp())
	if _, ok := s.GetDepth(0); !ok {
		t.Fatal("depth buffer unavailable although geometry outputs are on")
	}
}
