package sim

import (
	"camsim/render"
	"camsim/scene"
)

// resourceSet owns the textures a configuration renders into. Everything is
// reallocated as a whole whenever the output configuration, projection or
// scene structure changes.
type resourceSet struct {
	width, height     int
	osWidth, osHeight int
	oversampling      bool
	subFrames         int

	// Native-size depth ring: one buffer per subframe, plus one spare so the
	// backward flow test can still read the previous subframe's depth and
	// the whole-frame flow pass has a depth target of its own.
	depthBuffers []render.Texture
	// Depth buffer of the oversampled light path. The zero handle without
	// spatial oversampling; the light path shares the ring then.
	depthBufferOversampled render.Texture

	// Oversampled light pass targets, in the light program's attachment
	// order. Empty without spatial oversampling.
	oversampledLight []render.Texture

	// Per-subframe linear RGB images at the final size. With more than one
	// subframe an extra texture at the end holds the combined frame result.
	rgb []render.Texture
	// sRGB conversions of the rgb textures, same layout.
	srgb []render.Texture

	// Received PMD energies for the current subframe, reused across
	// subframes.
	pmdEnergy render.Texture
	// Per-phase PMD digital numbers plus the demodulated result at the end.
	pmdDigNum []render.Texture
	// Cartesian coordinates computed from the PMD result.
	pmdCoordinates render.Texture

	// Geometry and flow outputs, indexed [attachment][subframe] in the
	// respective program's attachment order. The flow lists carry an extra
	// slot for the whole-frame result when there is more than one subframe.
	geometry [][]render.Texture
	flow     [][]render.Texture

	// Scratch targets for the postprocessing lens distortion passes, one
	// per distorted attachment format.
	postProcessing   render.Texture
	postProcessingRG render.Texture

	// Per-light shadow map depth textures; the zero handle for lights
	// without a shadow map.
	shadowMaps []render.Texture
	// Per-light reflective shadow map attachments and depth.
	rsmColor [][]render.Texture
	rsmDepth []render.Texture
	// Per-light power factor map textures.
	powerFactors []render.Texture
}

func allocList(backend render.Backend, n, w, h int, format render.TextureFormat) []render.Texture {
	list := make([]render.Texture, 0, n)
	for i := 0; i < n; i++ {
		list = append(list, backend.CreateTexture(w, h, format, false))
	}
	return list
}

// alloc frees any previous allocation and creates the textures needed by the
// configuration. The program set must have been built first, since its
// attachment format lists drive the geometry and flow allocations.
func (r *resourceSet) alloc(backend render.Backend, sc *scene.Scene,
	programs *programSet, width, height int,
	pipeline Pipeline, output Output, subFrames int) {

	r.free(backend)
	r.width = width
	r.height = height
	r.osWidth = width * pipeline.SpatialSamplesX
	r.osHeight = height * pipeline.SpatialSamplesY
	r.oversampling = pipeline.SpatialSamplesX > 1 || pipeline.SpatialSamplesY > 1
	r.subFrames = subFrames

	r.depthBuffers = allocList(backend, subFrames+1, width, height, render.FormatDepth32F)

	if r.oversampling {
		r.depthBufferOversampled = backend.CreateTexture(
			r.osWidth, r.osHeight, render.FormatDepth32F, false)
		for _, format := range programs.lightFormats {
			r.oversampledLight = append(r.oversampledLight,
				backend.CreateTexture(r.osWidth, r.osHeight, format, false))
		}
	}

	extra := 0
	if subFrames > 1 {
		extra = 1
	}
	if output.RGB {
		r.rgb = allocList(backend, subFrames+extra, width, height, render.FormatRGBA32F)
		if output.SRGB {
			r.srgb = allocList(backend, subFrames+extra, width, height, render.FormatRGBA8)
		}
	}
	if output.PMD {
		r.pmdEnergy = backend.CreateTexture(width, height, render.FormatRG32F, false)
		r.pmdDigNum = allocList(backend, subFrames+1, width, height, render.FormatRGBA32F)
		if output.PMDCoordinates {
			r.pmdCoordinates = backend.CreateTexture(width, height, render.FormatRGBA32F, false)
		}
	}

	for _, format := range programs.geometryFormats {
		r.geometry = append(r.geometry,
			allocList(backend, subFrames, width, height, format))
	}
	for _, format := range programs.flowFormats {
		r.flow = append(r.flow,
			allocList(backend, subFrames+extra, width, height, format))
	}

	if pipeline.PostprocLensDistortion {
		r.postProcessing = backend.CreateTexture(width, height, render.FormatRGBA32F, false)
		if output.PMD || output.DepthAndRange {
			r.postProcessingRG = backend.CreateTexture(width, height, render.FormatRG32F, false)
		}
	}

	for _, light := range sc.Lights {
		var shadowTex render.Texture
		if pipeline.ShadowMaps && light.ShadowMap {
			shadowTex = backend.CreateTexture(
				light.ShadowMapSize, light.ShadowMapSize, render.FormatDepth32F, false)
		}
		r.shadowMaps = append(r.shadowMaps, shadowTex)

		var rsmColor []render.Texture
		var rsmDepth render.Texture
		if pipeline.ReflectiveShadowMaps && light.ReflectiveShadowMap {
			rsmColor = allocList(backend, 5,
				light.ReflectiveShadowMapSize, light.ReflectiveShadowMapSize,
				render.FormatRGBA32F)
			rsmDepth = backend.CreateTexture(
				light.ReflectiveShadowMapSize, light.ReflectiveShadowMapSize,
				render.FormatDepth32F, false)
		}
		r.rsmColor = append(r.rsmColor, rsmColor)
		r.rsmDepth = append(r.rsmDepth, rsmDepth)

		var powerTex render.Texture
		if pipeline.LightPowerFactorMaps &&
			(light.PowerFactors != nil || light.PowerFactorMapFunc != nil) {
			w, h := 1, 1
			if light.PowerFactors != nil {
				w, h = light.PowerFactors.Width, light.PowerFactors.Height
			}
			powerTex = backend.CreateTexture(w, h, render.FormatRG32F, false)
		}
		r.powerFactors = append(r.powerFactors, powerTex)
	}
}

// lightTargets returns the color attachments for the light pass of the given
// subframe, in the light program's attachment order.
func (r *resourceSet) lightTargets(output Output, subFrame int) []render.Texture {
	if r.oversampling {
		return r.oversampledLight
	}
	return r.combinedLightTargets(output, subFrame)
}

// combinedLightTargets returns the final-size textures the oversampling
// reduction writes into for the given subframe.
func (r *resourceSet) combinedLightTargets(output Output, subFrame int) []render.Texture {
	var targets []render.Texture
	if output.RGB {
		targets = append(targets, r.rgb[subFrame])
	}
	if output.PMD {
		targets = append(targets, r.pmdEnergy)
	}
	return targets
}

// subFrameTargets returns column subFrame of an [attachment][subframe]
// texture table.
func subFrameTargets(table [][]render.Texture, subFrame int) []render.Texture {
	targets := make([]render.Texture, 0, len(table))
	for _, list := range table {
		targets = append(targets, list[subFrame])
	}
	return targets
}

// free destroys all allocated textures and resets the set.
func (r *resourceSet) free(backend render.Backend) {
	destroy := func(tex render.Texture) {
		if tex.Valid() {
			backend.DestroyTexture(tex)
		}
	}
	for _, tex := range r.depthBuffers {
		destroy(tex)
	}
	destroy(r.depthBufferOversampled)
	for _, tex := range r.oversampledLight {
		destroy(tex)
	}
	for _, tex := range r.rgb {
		destroy(tex)
	}
	for _, tex := range r.srgb {
		destroy(tex)
	}
	destroy(r.pmdEnergy)
	for _, tex := range r.pmdDigNum {
		destroy(tex)
	}
	destroy(r.pmdCoordinates)
	for _, list := range r.geometry {
		for _, tex := range list {
			destroy(tex)
		}
	}
	for _, list := range r.flow {
		for _, tex := range list {
			destroy(tex)
		}
	}
	destroy(r.postProcessing)
	destroy(r.postProcessingRG)
	for _, tex := range r.shadowMaps {
		destroy(tex)
	}
	for _, list := range r.rsmColor {
		for _, tex := range list {
			destroy(tex)
		}
	}
	for _, tex := range r.rsmDepth {
		destroy(tex)
	}
	for _, tex := range r.powerFactors {
		destroy(tex)
	}
	*r = resourceSet{}
}
