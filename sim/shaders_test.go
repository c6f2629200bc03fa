package sim

import (
	"testing"

	"camsim/scene"
)

// validScene builds the smallest scene that passes validation: one light and
// one empty object, each with an animation.
func validScene() *scene.Scene {
	sc := &scene.Scene{}
	sc.AddLight(scene.NewLight(), scene.NewAnimation())
	sc.AddObject(scene.Object{}, scene.NewAnimation())
	return sc
}

func TestValidateConfigAccepts(t *testing.T) {
	if err := ValidateConfig(validScene(), NewPipeline(), NewOutput()); err != nil {
		t.Fatalf("valid configuration rejected: %v", err)
	}
}

func TestValidateConfigRejects(t *testing.T) {
	cases := []struct {
		name     string
		scene    func() *scene.Scene
		pipeline func() Pipeline
		output   func() Output
	}{
		{
			name: "no lights",
			scene: func() *scene.Scene {
				sc := &scene.Scene{}
				sc.AddObject(scene.Object{}, scene.NewAnimation())
				return sc
			},
		},
		{
			name: "light animation mismatch",
			scene: func() *scene.Scene {
				sc := validScene()
				sc.Lights = append(sc.Lights, scene.NewLight())
				return sc
			},
		},
		{
			name: "object animation mismatch",
			scene: func() *scene.Scene {
				sc := validScene()
				sc.Objects = append(sc.Objects, scene.Object{})
				return sc
			},
		},
		{
			name: "even spatial samples",
			pipeline: func() Pipeline {
				p := NewPipeline()
				p.SpatialSamplesX = 2
				return p
			},
		},
		{
			name: "negative spatial samples",
			pipeline: func() Pipeline {
				p := NewPipeline()
				p.SpatialSamplesY = -3
				return p
			},
		},
		{
			name: "wrong weight count",
			pipeline: func() Pipeline {
				p := NewPipeline()
				p.SpatialSamplesX = 3
				p.SpatialSamplesY = 3
				p.SpatialSampleWeights = []float32{1, 2, 3}
				return p
			},
		},
		{
			name: "zero temporal samples",
			pipeline: func() Pipeline {
				p := NewPipeline()
				p.TemporalSamples = 0
				return p
			},
		},
		{
			name: "both lens distortion modes",
			pipeline: func() Pipeline {
				p := NewPipeline()
				p.PreprocLensDistortion = true
				p.PostprocLensDistortion = true
				return p
			},
		},
		{
			name: "postproc distortion with flow",
			pipeline: func() Pipeline {
				p := NewPipeline()
				p.PostprocLensDistortion = true
				return p
			},
			output: func() Output {
				o := NewOutput()
				o.ForwardFlow2D = true
				return o
			},
		},
		{
			name: "postproc distortion with indices",
			pipeline: func() Pipeline {
				p := NewPipeline()
				p.PostprocLensDistortion = true
				return p
			},
			output: func() Output {
				o := NewOutput()
				o.Indices = true
				return o
			},
		},
	}
	for _, tc := range cases {
		sc := validScene()
		if tc.scene != nil {
			sc = tc.scene()
		}
		pipeline := NewPipeline()
		if tc.pipeline != nil {
			pipeline = tc.pipeline()
		}
		output := NewOutput()
		if tc.output != nil {
			output = tc.output()
		}
		if err := ValidateConfig(sc, pipeline, output); err == nil {
			t.Errorf("%s: configuration accepted, want error", tc.name)
		}
	}
}

func TestBaseKeyGatesFeatures(t *testing.T) {
	sc := validScene()
	pipeline := NewPipeline()
	pipeline.ShadowMaps = true
	pipeline.GaussianWhiteNoise = true
	pipeline.ShotNoise = true

	// No light requests a shadow map, so the feature stays off.
	key := baseKey(sc, pipeline, Output{RGB: true}, 1)
	if key.ShadowMaps {
		t.Fatal("shadow maps enabled although no light has one")
	}
	if !key.GaussianWhiteNoise {
		t.Fatal("gaussian noise should be on for RGB output")
	}
	if key.ShotNoise {
		t.Fatal("shot noise should be off without PMD output")
	}

	sc.Lights[0].ShadowMap = true
	key = baseKey(sc, pipeline, Output{PMD: true}, 4)
	if !key.ShadowMaps {
		t.Fatal("shadow maps should be on when pipeline and light request them")
	}
	if key.GaussianWhiteNoise {
		t.Fatal("gaussian noise should be off without RGB output")
	}
	if !key.ShotNoise {
		t.Fatal("shot noise should be on for PMD output")
	}
	if key.SubFrames != 4 {
		t.Fatalf("key subframes = %d, want 4", key.SubFrames)
	}
}

func TestLightOutputFormats(t *testing.T) {
	key, formats := lightOutputs(VariantKey{}, Output{RGB: true, PMD: true})
	if !key.OutputRGB || !key.OutputPMD {
		t.Fatal("light outputs not enabled on key")
	}
	if len(formats) != 2 {
		t.Fatalf("light pass has %d attachments, want 2", len(formats))
	}
}

func TestFlowOutputsRequireTwoInputs(t *testing.T) {
	key, formats := flowOutputs(VariantKey{}, Output{BackwardFlow2D: true})
	if !key.TwoInputs {
		t.Fatal("flow pass must sample two points in time")
	}
	if len(formats) != 1 {
		t.Fatalf("flow pass has %d attachments, want 1", len(formats))
	}
}
