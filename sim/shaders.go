package sim

import (
	"errors"
	"fmt"

	"camsim/render"
	"camsim/scene"
)

// sceneTextureBindings is the number of sampled texture bindings every scene
// draw program declares: diffuse, normal, specular, opacity, shadow map and
// one auxiliary texture.
const sceneTextureBindings = 6

// ValidateConfig checks a scene and configuration for the preconditions the
// simulator relies on. Simulate refuses to run on a configuration that does
// not pass.
func ValidateConfig(sc *scene.Scene, pipeline Pipeline, output Output) error {
	if len(sc.Lights) == 0 {
		return errors.New("cannot simulate a scene without light sources")
	}
	if len(sc.Lights) != len(sc.LightAnimations) {
		return fmt.Errorf("scene has %d light sources but %d light animations",
			len(sc.Lights), len(sc.LightAnimations))
	}
	if len(sc.Objects) != len(sc.ObjectAnimations) {
		return fmt.Errorf("scene has %d objects but %d object animations",
			len(sc.Objects), len(sc.ObjectAnimations))
	}
	if pipeline.SpatialSamplesX < 1 || pipeline.SpatialSamplesX%2 == 0 ||
		pipeline.SpatialSamplesY < 1 || pipeline.SpatialSamplesY%2 == 0 {
		return fmt.Errorf("spatial oversampling dimensions %dx%d are not positive and odd",
			pipeline.SpatialSamplesX, pipeline.SpatialSamplesY)
	}
	if len(pipeline.SpatialSampleWeights) > 0 &&
		len(pipeline.SpatialSampleWeights) != pipeline.SpatialSamplesX*pipeline.SpatialSamplesY {
		return fmt.Errorf("%d spatial sample weights do not match %dx%d samples",
			len(pipeline.SpatialSampleWeights),
			pipeline.SpatialSamplesX, pipeline.SpatialSamplesY)
	}
	if pipeline.TemporalSamples < 1 {
		return fmt.Errorf("temporal oversampling with %d samples is not possible",
			pipeline.TemporalSamples)
	}
	if pipeline.PreprocLensDistortion && pipeline.PostprocLensDistortion {
		return errors.New("preprocessing and postprocessing lens distortion are mutually exclusive")
	}
	if pipeline.PostprocLensDistortion &&
		(output.Indices || output.anyFlow()) {
		return errors.New("postprocessing lens distortion cannot be combined with indices or flow output")
	}
	return nil
}

// programSet holds the compiled program variants for one configuration.
type programSet struct {
	shadowMap           render.Program
	reflectiveShadowMap render.Program
	depth               render.Program
	light               render.Program
	oversampledLight    render.Program
	pmdDigNum           render.Program
	rgbResult           render.Program
	pmdResult           render.Program
	pmdCoordinates      render.Program
	geometry            render.Program
	flow                render.Program
	convertToSRGB       render.Program
	postprocLensDist    render.Program
	postprocLensDistRG  render.Program

	// Color formats of the light pass targets, in attachment order.
	lightFormats []render.TextureFormat
	// Color formats of the geometry pass targets, in attachment order.
	geometryFormats []render.TextureFormat
	// Color formats of the flow pass targets, in attachment order.
	flowFormats []render.TextureFormat
}

// baseKey builds the variant key shared by all scene draw programs.
func baseKey(sc *scene.Scene, pipeline Pipeline, output Output, subFrames int) VariantKey {
	anyShadowMap := false
	anyPowerFactors := false
	for _, light := range sc.Lights {
		if light.ShadowMap {
			anyShadowMap = true
		}
		if light.PowerFactors != nil || light.PowerFactorMapFunc != nil {
			anyPowerFactors = true
		}
	}
	wx := pipeline.SpatialSamplesX
	wy := pipeline.SpatialSamplesY
	return VariantKey{
		LightSources:          len(sc.Lights),
		Transparency:          pipeline.Transparency,
		NormalMapping:         pipeline.NormalMapping,
		ShadowMaps:            pipeline.ShadowMaps && anyShadowMap,
		ShadowMapFiltering:    pipeline.ShadowMapFiltering,
		ReflectiveShadowMaps:  pipeline.ReflectiveShadowMaps,
		PowerFactorMaps:       pipeline.LightPowerFactorMaps && anyPowerFactors,
		PreprocLensDistortion: pipeline.PreprocLensDistortion,
		ThinLensVignetting:    pipeline.ThinLensVignetting,
		GaussianWhiteNoise:    pipeline.GaussianWhiteNoise && output.RGB,
		ShotNoise:             pipeline.ShotNoise && output.PMD,
		SubFrames:             subFrames,
		WeightsWidth:          wx,
		WeightsHeight:         wy,
	}
}

// lightOutputs enables the light pass outputs on a key and returns the
// matching attachment formats.
func lightOutputs(key VariantKey, output Output) (VariantKey, []render.TextureFormat) {
	var formats []render.TextureFormat
	if output.RGB {
		key.OutputRGB = true
		formats = append(formats, render.FormatRGBA32F)
	}
	if output.PMD {
		key.OutputPMD = true
		formats = append(formats, render.FormatRG32F)
	}
	return key, formats
}

// geometryOutputs enables the geometry pass outputs on a key and returns the
// matching attachment formats. Index outputs are float encoded; indices stay
// exactly representable well past any realistic scene size.
func geometryOutputs(key VariantKey, output Output) (VariantKey, []render.TextureFormat) {
	var formats []render.TextureFormat
	if output.EyeSpacePositions {
		key.OutputEyeSpacePositions = true
		formats = append(formats, render.FormatRGBA32F)
	}
	if output.CustomSpacePositions {
		key.OutputCustomSpacePositions = true
		formats = append(formats, render.FormatRGBA32F)
	}
	if output.EyeSpaceNormals {
		key.OutputEyeSpaceNormals = true
		formats = append(formats, render.FormatRGBA32F)
	}
	if output.CustomSpaceNormals {
		key.OutputCustomSpaceNormals = true
		formats = append(formats, render.FormatRGBA32F)
	}
	if output.DepthAndRange {
		key.OutputDepthAndRange = true
		formats = append(formats, render.FormatRG32F)
	}
	if output.Indices {
		key.OutputIndices = true
		formats = append(formats, render.FormatRGBA32F)
	}
	return key, formats
}

// flowOutputs enables the flow pass outputs on a key and returns the
// matching attachment formats.
func flowOutputs(key VariantKey, output Output) (VariantKey, []render.TextureFormat) {
	var formats []render.TextureFormat
	if output.ForwardFlow3D {
		key.OutputForwardFlow3D = true
		formats = append(formats, render.FormatRGBA32F)
	}
	if output.ForwardFlow2D {
		key.OutputForwardFlow2D = true
		formats = append(formats, render.FormatRG32F)
	}
	if output.BackwardFlow3D {
		key.OutputBackwardFlow3D = true
		formats = append(formats, render.FormatRGBA32F)
	}
	if output.BackwardFlow2D {
		key.OutputBackwardFlow2D = true
		formats = append(formats, render.FormatRG32F)
	}
	key.TwoInputs = true
	return key, formats
}

// build compiles all program variants needed for the configuration. The
// caller must have validated the configuration first.
func (p *programSet) build(backend render.Backend, sc *scene.Scene,
	pipeline Pipeline, output Output, subFrames int) error {

	p.destroy(backend)
	base := baseKey(sc, pipeline, output, subFrames)
	oversampling := pipeline.SpatialSamplesX > 1 || pipeline.SpatialSamplesY > 1

	var err error
	if base.ShadowMaps {
		p.shadowMap, err = backend.CreateProgram(render.ProgramDesc{
			Name:           programShadowMap.String(),
			VertexSource:   generateVariant(programShadowMap, base).vertex,
			FragmentSource: generateVariant(programShadowMap, base).fragment,
			HasDepth:       true,
			TextureCount:   sceneTextureBindings,
		})
		if err != nil {
			return err
		}
	}
	if pipeline.ReflectiveShadowMaps {
		// The map render itself does not gather indirect light.
		rsmKey := base
		rsmKey.ReflectiveShadowMaps = false
		rsmKey.OutputEyeSpacePositions = true
		rsmKey.OutputEyeSpaceNormals = true
		rsmKey.OutputRadiances = true
		rsmKey.OutputBRDFDiffParams = true
		rsmKey.OutputBRDFSpecParams = true
		src := generateVariant(programReflectiveShadowMap, rsmKey)
		p.reflectiveShadowMap, err = backend.CreateProgram(render.ProgramDesc{
			Name:           programReflectiveShadowMap.String(),
			VertexSource:   src.vertex,
			FragmentSource: src.fragment,
			ColorFormats: []render.TextureFormat{
				render.FormatRGBA32F, render.FormatRGBA32F, render.FormatRGBA32F,
				render.FormatRGBA32F, render.FormatRGBA32F,
			},
			HasDepth:     true,
			TextureCount: sceneTextureBindings,
		})
		if err != nil {
			return err
		}
	}

	depthSrc := generateVariant(programDepth, base)
	p.depth, err = backend.CreateProgram(render.ProgramDesc{
		Name:           programDepth.String(),
		VertexSource:   depthSrc.vertex,
		FragmentSource: depthSrc.fragment,
		HasDepth:       true,
		TextureCount:   sceneTextureBindings,
	})
	if err != nil {
		return err
	}

	if output.RGB || output.PMD {
		lightKey, lightFormats := lightOutputs(base, output)
		// Only the light program gathers indirect light, through three extra
		// bindings for the virtual point light maps.
		lightTextures := sceneTextureBindings
		if lightKey.ReflectiveShadowMaps {
			lightTextures += 3
		}
		src := generateVariant(programLight, lightKey)
		p.light, err = backend.CreateProgram(render.ProgramDesc{
			Name:           programLight.String(),
			VertexSource:   src.vertex,
			FragmentSource: src.fragment,
			ColorFormats:   lightFormats,
			HasDepth:       true,
			DepthReadOnly:  true,
			AdditiveBlend:  true,
			TextureCount:   lightTextures,
		})
		if err != nil {
			return err
		}
		p.lightFormats = lightFormats

		if oversampling {
			osKey := base
			osKey.TwoInputs = output.RGB && output.PMD
			src := generateVariant(programOversampledLight, osKey)
			p.oversampledLight, err = backend.CreateProgram(render.ProgramDesc{
				Name:           programOversampledLight.String(),
				VertexSource:   src.vertex,
				FragmentSource: src.fragment,
				ColorFormats:   lightFormats,
				TextureCount:   2,
				FullscreenQuad: true,
			})
			if err != nil {
				return err
			}
		}
	}

	if output.PMD {
		src := generateVariant(programPMDDigNum, base)
		p.pmdDigNum, err = backend.CreateProgram(render.ProgramDesc{
			Name:           programPMDDigNum.String(),
			VertexSource:   src.vertex,
			FragmentSource: src.fragment,
			ColorFormats:   []render.TextureFormat{render.FormatRGBA32F},
			TextureCount:   1,
			FullscreenQuad: true,
		})
		if err != nil {
			return err
		}
		src = generateVariant(programPMDResult, base)
		p.pmdResult, err = backend.CreateProgram(render.ProgramDesc{
			Name:           programPMDResult.String(),
			VertexSource:   src.vertex,
			FragmentSource: src.fragment,
			ColorFormats:   []render.TextureFormat{render.FormatRGBA32F},
			TextureCount:   4,
			FullscreenQuad: true,
		})
		if err != nil {
			return err
		}
		if output.PMDCoordinates {
			src = generateVariant(programPMDCoordinates, base)
			p.pmdCoordinates, err = backend.CreateProgram(render.ProgramDesc{
				Name:           programPMDCoordinates.String(),
				VertexSource:   src.vertex,
				FragmentSource: src.fragment,
				ColorFormats:   []render.TextureFormat{render.FormatRGBA32F},
				TextureCount:   1,
				FullscreenQuad: true,
			})
			if err != nil {
				return err
			}
		}
	}

	if output.RGB {
		src := generateVariant(programRGBResult, base)
		p.rgbResult, err = backend.CreateProgram(render.ProgramDesc{
			Name:           programRGBResult.String(),
			VertexSource:   src.vertex,
			FragmentSource: src.fragment,
			ColorFormats:   []render.TextureFormat{render.FormatRGBA32F},
			TextureCount:   4,
			FullscreenQuad: true,
		})
		if err != nil {
			return err
		}
		if output.SRGB {
			src = generateVariant(programConvertToSRGB, base)
			p.convertToSRGB, err = backend.CreateProgram(render.ProgramDesc{
				Name:           programConvertToSRGB.String(),
				VertexSource:   src.vertex,
				FragmentSource: src.fragment,
				ColorFormats:   []render.TextureFormat{render.FormatRGBA8},
				TextureCount:   1,
				FullscreenQuad: true,
			})
			if err != nil {
				return err
			}
		}
	}

	if output.anyGeometry() {
		geomKey, geomFormats := geometryOutputs(base, output)
		geomKey.ReflectiveShadowMaps = false
		src := generateVariant(programGeometry, geomKey)
		p.geometry, err = backend.CreateProgram(render.ProgramDesc{
			Name:           programGeometry.String(),
			VertexSource:   src.vertex,
			FragmentSource: src.fragment,
			ColorFormats:   geomFormats,
			HasDepth:       true,
			TextureCount:   sceneTextureBindings,
		})
		if err != nil {
			return err
		}
		p.geometryFormats = geomFormats
	}

	if output.anyFlow() {
		flowKey, flowFormats := flowOutputs(base, output)
		flowKey.ReflectiveShadowMaps = false
		src := generateVariant(programFlow, flowKey)
		p.flow, err = backend.CreateProgram(render.ProgramDesc{
			Name:           programFlow.String(),
			VertexSource:   src.vertex,
			FragmentSource: src.fragment,
			ColorFormats:   flowFormats,
			HasDepth:       true,
			TextureCount:   sceneTextureBindings,
		})
		if err != nil {
			return err
		}
		p.flowFormats = flowFormats
	}

	if pipeline.PostprocLensDistortion {
		src := generateVariant(programPostprocLensDistortion, base)
		p.postprocLensDist, err = backend.CreateProgram(render.ProgramDesc{
			Name:           programPostprocLensDistortion.String(),
			VertexSource:   src.vertex,
			FragmentSource: src.fragment,
			ColorFormats:   []render.TextureFormat{render.FormatRGBA32F},
			TextureCount:   1,
			FullscreenQuad: true,
		})
		if err != nil {
			return err
		}
		// Two-channel targets (PMD energies, depth and range) need their own
		// pipeline with a matching attachment format.
		if output.PMD || output.DepthAndRange {
			p.postprocLensDistRG, err = backend.CreateProgram(render.ProgramDesc{
				Name:           programPostprocLensDistortion.String() + "_rg",
				VertexSource:   src.vertex,
				FragmentSource: src.fragment,
				ColorFormats:   []render.TextureFormat{render.FormatRG32F},
				TextureCount:   1,
				FullscreenQuad: true,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// destroy releases all compiled programs.
func (p *programSet) destroy(backend render.Backend) {
	for _, program := range []render.Program{
		p.shadowMap, p.reflectiveShadowMap, p.depth, p.light,
		p.oversampledLight, p.pmdDigNum, p.rgbResult, p.pmdResult,
		p.pmdCoordinates, p.geometry, p.flow, p.convertToSRGB,
		p.postprocLensDist, p.postprocLensDistRG,
	} {
		if program.Valid() {
			backend.DestroyProgram(program)
		}
	}
	*p = programSet{}
}
