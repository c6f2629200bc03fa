package render

// TextureFormat identifies the pixel format of a render target or sampled
// texture.
type TextureFormat int

const (
	// FormatRGBA32F is a 4-channel 32-bit float format, used for most
	// continuous simulation outputs.
	FormatRGBA32F TextureFormat = iota

	// FormatRGBA32U is a 4-channel 32-bit unsigned integer format, used for
	// index outputs.
	FormatRGBA32U

	// FormatRGBA8 is a 4-channel 8-bit normalized format, used for sRGB
	// output.
	FormatRGBA8

	// FormatRG32F is a 2-channel 32-bit float format, used for 2D flow,
	// depth+range, and accumulated PMD energies.
	FormatRG32F

	// FormatDepth32F is a single-channel 32-bit float depth format, only
	// usable as a depth attachment.
	FormatDepth32F
)

// BytesPerPixel returns the storage size of one pixel in this format.
func (f TextureFormat) BytesPerPixel() int {
	switch f {
	case FormatRGBA32F, FormatRGBA32U:
		return 16
	case FormatRGBA8:
		return 4
	case FormatRG32F:
		return 8
	case FormatDepth32F:
		return 4
	}
	return 0
}

// Channels returns the number of channels in this format.
func (f TextureFormat) Channels() int {
	switch f {
	case FormatRGBA32F, FormatRGBA32U, FormatRGBA8:
		return 4
	case FormatRG32F:
		return 2
	case FormatDepth32F:
		return 1
	}
	return 0
}

// Texture is an opaque handle to a GPU texture owned by a Backend. The zero
// value is the invalid handle.
type Texture struct {
	id uint64
}

// Valid reports whether the handle refers to a live texture.
func (t Texture) Valid() bool {
	return t.id != 0
}

// Mesh is an opaque handle to GPU vertex/index buffers owned by a Backend.
// The zero value is the invalid handle.
type Mesh struct {
	id uint64
}

// Valid reports whether the handle refers to live mesh buffers.
func (m Mesh) Valid() bool {
	return m.id != 0
}

// Program is an opaque handle to a compiled GPU program variant owned by a
// Backend. The zero value is the invalid handle.
type Program struct {
	id uint64
}

// Valid reports whether the handle refers to a compiled program.
func (p Program) Valid() bool {
	return p.id != 0
}

// ProgramDesc describes a GPU program variant to compile. Color target
// formats, blending, and the texture binding count are fixed at compile time.
type ProgramDesc struct {
	Name           string
	VertexSource   string
	FragmentSource string

	// Formats of the color targets this program renders to, in attachment
	// order. May be empty for depth-only programs.
	ColorFormats []TextureFormat

	// Whether the program renders with a depth attachment.
	HasDepth bool

	// DepthReadOnly disables depth writes and compares with LessEqual, so a
	// pass can draw against a depth prepass without disturbing it.
	DepthReadOnly bool

	// Additive blending on all color targets, for temporal accumulation.
	AdditiveBlend bool

	// Number of sampled texture bindings the fragment stage declares.
	TextureCount int

	// FullscreenQuad programs take no vertex buffers; the vertex stage
	// generates a screen-covering triangle from the vertex index.
	FullscreenQuad bool
}

// PassDesc describes one render pass. The color target formats must match
// the program's compiled ColorFormats.
type PassDesc struct {
	Program       Program
	Width, Height int

	// Color attachments in the program's attachment order. May be empty
	// for depth-only passes.
	ColorTargets []Texture

	// Depth attachment, or the zero handle for passes without depth.
	DepthTarget Texture

	// Load the existing depth contents instead of clearing.
	PreserveDepth bool

	// Clear color targets at the start of the pass. When false the
	// existing contents are loaded, which is required for additive
	// accumulation across temporal samples.
	ClearColor bool
}
