package sim

import (
	"camsim/common"
)

// sceneUniforms mirrors the uniform block of the scene draw programs. Field
// order and types must match the WGSL declaration exactly; everything is
// 16-byte aligned by construction.
type sceneUniforms struct {
	Projection   common.Mat4
	View         common.Mat4
	LastView     common.Mat4
	NextView     common.Mat4
	Model        common.Mat4
	LastModel    common.Mat4
	NextModel    common.Mat4
	Custom       common.Mat4
	NormalMatrix common.Mat4
	LightViewProj common.Mat4

	// k1, k2, p1, p2
	Distortion common.Vec4
	// near, far, preproc margin, thin lens vignetting factor
	ClipParams common.Vec4
	// light position in eye space
	LightPosition common.Vec4
	// light direction in eye space
	LightDirection common.Vec4
	// light color; w = intensity in mW/sr
	LightColor common.Vec4
	// type, inner cone angle (rad), outer cone angle (rad), shadow bias
	LightParams common.Vec4
	// attenuation constant, linear, quadratic; w = have shadow map
	LightAttenuation common.Vec4
	// contrast, phase index, modulation frequency, exposure time
	PMDParams common.Vec4
	// pixel size (m^2), wavelength (nm), quantum efficiency, max electrons
	PMDChip common.Vec4
	// ambient color; w = two sided
	MaterialAmbient common.Vec4
	MaterialDiffuse common.Vec4
	// specular rgb, shininess
	MaterialSpecular common.Vec4
	// emissive rgb, opacity
	MaterialEmissive common.Vec4
	// object index, shape index, material index, image width
	DrawIndices common.Vec4
	// timestamp deltas: to last (s), to next (s); zw = image size
	FrameParams common.Vec4
	// random seed, noise mean, noise stddev, max energy estimate
	NoiseParams common.Vec4
}

func (u *sceneUniforms) bytes() []byte {
	return common.StructToBytes(u)
}

// oversampleUniforms carries the normalized spatial sample weights, packed
// four to a vec4.
type oversampleUniforms struct {
	Weights [64]common.Vec4
}

func (u *oversampleUniforms) bytes() []byte {
	return common.StructToBytes(u)
}

// setWeights packs and normalizes a weight grid. An empty slice yields
// uniform weights.
func (u *oversampleUniforms) setWeights(weights []float32, count int) {
	var sum float32
	for i := 0; i < count; i++ {
		if i < len(weights) {
			sum += weights[i]
		} else {
			sum++
		}
	}
	if sum == 0 {
		sum = 1
	}
	for i := 0; i < count && i < 256; i++ {
		w := float32(1)
		if i < len(weights) {
			w = weights[i]
		}
		switch i % 4 {
		case 0:
			u.Weights[i/4].X = w / sum
		case 1:
			u.Weights[i/4].Y = w / sum
		case 2:
			u.Weights[i/4].Z = w / sum
		case 3:
			u.Weights[i/4].W = w / sum
		}
	}
}

// digNumUniforms parameterizes the PMD digital number conversion.
type digNumUniforms struct {
	// wavelength (nm), quantum efficiency, max electrons, random seed
	Chip common.Vec4
}

func (u *digNumUniforms) bytes() []byte {
	return common.StructToBytes(u)
}

// pmdResultUniforms parameterizes the PMD demodulation pass.
type pmdResultUniforms struct {
	// modulation frequency (Hz), rest unused
	Params common.Vec4
}

func (u *pmdResultUniforms) bytes() []byte {
	return common.StructToBytes(u)
}

// coordinatesUniforms parameterizes the PMD coordinates pass.
type coordinatesUniforms struct {
	// center pixel x, y; focal length x, y
	Intrinsics common.Vec4
}

func (u *coordinatesUniforms) bytes() []byte {
	return common.StructToBytes(u)
}

// lensDistUniforms parameterizes the postprocessing lens distortion pass.
type lensDistUniforms struct {
	// k1, k2, p1, p2
	Distortion common.Vec4
	// center pixel x, y; focal length x, y
	Intrinsics common.Vec4
	// image width, height, rest unused
	Image common.Vec4
}

func (u *lensDistUniforms) bytes() []byte {
	return common.StructToBytes(u)
}
