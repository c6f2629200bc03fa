package sim

import (
	"fmt"
	"strings"
	"sync"
)

// programKind identifies one of the program variants the simulator compiles.
type programKind int

const (
	programShadowMap programKind = iota
	programReflectiveShadowMap
	programDepth
	programLight
	programOversampledLight
	programPMDDigNum
	programRGBResult
	programPMDResult
	programPMDCoordinates
	programGeometry
	programFlow
	programConvertToSRGB
	programPostprocLensDistortion
)

func (k programKind) String() string {
	switch k {
	case programShadowMap:
		return "shadow-map"
	case programReflectiveShadowMap:
		return "reflective-shadow-map"
	case programDepth:
		return "depth"
	case programLight:
		return "light"
	case programOversampledLight:
		return "oversampled-light"
	case programPMDDigNum:
		return "pmd-dignum"
	case programRGBResult:
		return "rgb-result"
	case programPMDResult:
		return "pmd-result"
	case programPMDCoordinates:
		return "pmd-coordinates"
	case programGeometry:
		return "geometry"
	case programFlow:
		return "flow"
	case programConvertToSRGB:
		return "convert-to-srgb"
	case programPostprocLensDistortion:
		return "postproc-lens-distortion"
	}
	return "unknown"
}

// VariantKey is the set of flags that deterministically selects a generated
// shader variant. Identical keys yield byte-identical generated source.
type VariantKey struct {
	LightSources int

	OutputRGB                  bool
	OutputPMD                  bool
	OutputEyeSpacePositions    bool
	OutputCustomSpacePositions bool
	OutputEyeSpaceNormals      bool
	OutputCustomSpaceNormals   bool
	OutputDepthAndRange        bool
	OutputIndices              bool
	OutputForwardFlow3D        bool
	OutputForwardFlow2D        bool
	OutputBackwardFlow3D       bool
	OutputBackwardFlow2D       bool
	OutputShadowMapDepth       bool
	OutputRadiances            bool
	OutputBRDFDiffParams       bool
	OutputBRDFSpecParams       bool

	Transparency          bool
	NormalMapping         bool
	ShadowMaps            bool
	ShadowMapFiltering    bool
	ReflectiveShadowMaps  bool
	PowerFactorMaps       bool
	PreprocLensDistortion bool
	ThinLensVignetting    bool
	GaussianWhiteNoise    bool
	ShotNoise             bool

	SubFrames     int
	TwoInputs     bool
	WeightsWidth  int
	WeightsHeight int
}

// outputOrder lists the variable fragment outputs in their fixed declaration
// order. Enabled outputs get locations assigned sequentially in this order;
// the resource manager binds framebuffer attachments in the same order, so
// this list is load-bearing.
var outputOrder = []struct {
	flag string
	on   func(VariantKey) bool
}{
	{"RGB", func(k VariantKey) bool { return k.OutputRGB }},
	{"PMD", func(k VariantKey) bool { return k.OutputPMD }},
	{"EYE_SPACE_POSITIONS", func(k VariantKey) bool { return k.OutputEyeSpacePositions }},
	{"CUSTOM_SPACE_POSITIONS", func(k VariantKey) bool { return k.OutputCustomSpacePositions }},
	{"EYE_SPACE_NORMALS", func(k VariantKey) bool { return k.OutputEyeSpaceNormals }},
	{"CUSTOM_SPACE_NORMALS", func(k VariantKey) bool { return k.OutputCustomSpaceNormals }},
	{"DEPTH_AND_RANGE", func(k VariantKey) bool { return k.OutputDepthAndRange }},
	{"INDICES", func(k VariantKey) bool { return k.OutputIndices }},
	{"FORWARDFLOW3D", func(k VariantKey) bool { return k.OutputForwardFlow3D }},
	{"FORWARDFLOW2D", func(k VariantKey) bool { return k.OutputForwardFlow2D }},
	{"BACKWARDFLOW3D", func(k VariantKey) bool { return k.OutputBackwardFlow3D }},
	{"BACKWARDFLOW2D", func(k VariantKey) bool { return k.OutputBackwardFlow2D }},
	{"RADIANCES", func(k VariantKey) bool { return k.OutputRadiances }},
	{"BRDF_DIFF_PARAMS", func(k VariantKey) bool { return k.OutputBRDFDiffParams }},
	{"BRDF_SPEC_PARAMS", func(k VariantKey) bool { return k.OutputBRDFSpecParams }},
}

func boolFlag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// substitutions builds the full flag-to-value table for a key. Every marker
// that can occur in a template has an entry, so substitution is applied
// uniformly to all templates.
func (k VariantKey) substitutions() map[string]string {
	subs := map[string]string{
		"$LIGHT_SOURCES$":           fmt.Sprintf("%d", max(1, k.LightSources)),
		"$TRANSPARENCY$":            boolFlag(k.Transparency),
		"$NORMALMAPPING$":           boolFlag(k.NormalMapping),
		"$SHADOW_MAPS$":             boolFlag(k.ShadowMaps),
		"$SHADOW_MAP_FILTERING$":    boolFlag(k.ShadowMapFiltering),
		"$REFLECTIVE_SHADOW_MAPS$":  boolFlag(k.ReflectiveShadowMaps),
		"$POWER_FACTOR_MAPS$":       boolFlag(k.PowerFactorMaps),
		"$PREPROC_LENS_DISTORTION$": boolFlag(k.PreprocLensDistortion),
		"$THIN_LENS_VIGNETTING$":    boolFlag(k.ThinLensVignetting),
		"$GAUSSIAN_WHITE_NOISE$":    boolFlag(k.GaussianWhiteNoise),
		"$SHOT_NOISE$":              boolFlag(k.ShotNoise),
		"$OUTPUT_SHADOW_MAP_DEPTH$": boolFlag(k.OutputShadowMapDepth),
		"$OUTPUT_BACKWARDVISIBILITY$": boolFlag(k.TwoInputs &&
			(k.OutputBackwardFlow3D || k.OutputBackwardFlow2D)),
		"$SUBFRAMES$":      fmt.Sprintf("%d", max(1, k.SubFrames)),
		"$TWO_INPUTS$":     boolFlag(k.TwoInputs),
		"$WEIGHTS_WIDTH$":  fmt.Sprintf("%d", max(1, k.WeightsWidth)),
		"$WEIGHTS_HEIGHT$": fmt.Sprintf("%d", max(1, k.WeightsHeight)),
	}
	if k.TwoInputs {
		subs["$SECOND_OUTPUT_DECL$"] = "@location(1) output1: vec4<f32>,"
		subs["$SECOND_OUTPUT_ASSIGN$"] = "out.output1 = sum1;"
	} else {
		subs["$SECOND_OUTPUT_DECL$"] = ""
		subs["$SECOND_OUTPUT_ASSIGN$"] = ""
	}
	if k.ReflectiveShadowMaps {
		subs["$RSM_GATHER$"] = rsmGatherTemplate
		subs["$RSM_APPLY$"] = "rgb = rgb + kd / PI * indirect_light(in.eye_position, normal);"
	} else {
		subs["$RSM_GATHER$"] = ""
		subs["$RSM_APPLY$"] = ""
	}

	// Assign attachment locations sequentially, in declaration order, to
	// enabled outputs only.
	location := 0
	for _, out := range outputOrder {
		enabled := out.on(k)
		subs["$OUTPUT_"+out.flag+"$"] = boolFlag(enabled)
		if enabled {
			subs["$OUTPUT_"+out.flag+"_DECL$"] = fmt.Sprintf(
				"@location(%d) output_%s: vec4<f32>,", location, strings.ToLower(out.flag))
			subs["$OUTPUT_"+out.flag+"_LOCATION$"] = fmt.Sprintf("%d", location)
			location++
		} else {
			subs["$OUTPUT_"+out.flag+"_DECL$"] = ""
			subs["$OUTPUT_"+out.flag+"_LOCATION$"] = "-1"
		}
	}
	return subs
}

// instantiate applies a substitution table to a template. Every marker in
// the template must have an entry in the table.
func instantiate(template string, subs map[string]string) string {
	var b strings.Builder
	b.Grow(len(template))
	for {
		start := strings.IndexByte(template, '$')
		if start < 0 {
			b.WriteString(template)
			break
		}
		end := strings.IndexByte(template[start+1:], '$')
		if end < 0 {
			b.WriteString(template)
			break
		}
		marker := template[start : start+end+2]
		b.WriteString(template[:start])
		if value, ok := subs[marker]; ok {
			b.WriteString(value)
		} else {
			b.WriteString(marker)
		}
		template = template[start+end+2:]
	}
	return b.String()
}

// variantSource is the generated WGSL for one program variant.
type variantSource struct {
	vertex   string
	fragment string
}

type variantCacheKey struct {
	kind programKind
	key  VariantKey
}

var (
	variantMu    sync.Mutex
	variantCache = make(map[variantCacheKey]variantSource)
)

// generateVariant produces the WGSL sources for a program variant. The
// result is a pure function of (kind, key) and is memoized.
func generateVariant(kind programKind, key VariantKey) variantSource {
	cacheKey := variantCacheKey{kind: kind, key: key}
	variantMu.Lock()
	defer variantMu.Unlock()
	if src, ok := variantCache[cacheKey]; ok {
		return src
	}

	subs := key.substitutions()
	var src variantSource
	switch kind {
	case programShadowMap, programDepth:
		src.vertex = instantiate(simulationVertexTemplate, subs)
		src.fragment = instantiate(depthFragmentTemplate, subs)
	case programReflectiveShadowMap, programLight, programGeometry, programFlow:
		src.vertex = instantiate(simulationVertexTemplate, subs)
		src.fragment = instantiate(simulationFragmentTemplate, subs)
	case programOversampledLight:
		src.vertex = instantiate(quadVertexTemplate, subs)
		src.fragment = instantiate(oversampleFragmentTemplate, subs)
	case programPMDDigNum:
		src.vertex = instantiate(quadVertexTemplate, subs)
		src.fragment = instantiate(pmdDigNumFragmentTemplate, subs)
	case programRGBResult:
		src.vertex = instantiate(quadVertexTemplate, subs)
		src.fragment = instantiate(rgbResultFragmentTemplate, subs)
	case programPMDResult:
		src.vertex = instantiate(quadVertexTemplate, subs)
		src.fragment = instantiate(pmdResultFragmentTemplate, subs)
	case programPMDCoordinates:
		src.vertex = instantiate(quadVertexTemplate, subs)
		src.fragment = instantiate(pmdCoordinatesFragmentTemplate, subs)
	case programConvertToSRGB:
		src.vertex = instantiate(quadVertexTemplate, subs)
		src.fragment = instantiate(srgbFragmentTemplate, subs)
	case programPostprocLensDistortion:
		src.vertex = instantiate(quadVertexTemplate, subs)
		src.fragment = instantiate(lensDistortionFragmentTemplate, subs)
	}
	variantCache[cacheKey] = src
	return src
}
