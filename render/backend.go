package render

// Backend abstracts the GPU API used by the simulator. All methods must be
// called from the thread that owns the underlying GPU context. Rendering is
// strictly ordered: command submission order equals the dependency order of
// the passes, so no intra-context synchronization is needed.
type Backend interface {
	// CreateProgram compiles a program variant from WGSL sources.
	//
	// Parameters:
	//   - desc: the program sources and fixed pipeline state
	//
	// Returns:
	//   - Program: handle to the compiled program
	//   - error: an error if compilation or pipeline creation failed
	CreateProgram(desc ProgramDesc) (Program, error)

	// DestroyProgram releases a compiled program. Invalid handles are ignored.
	DestroyProgram(prg Program)

	// CreateTexture allocates a texture usable as render target, sampled
	// texture, and readback source.
	//
	// Parameters:
	//   - width: texture width in pixels
	//   - height: texture height in pixels
	//   - format: pixel format
	//   - filter: enable linear filtering when sampled
	//
	// Returns:
	//   - Texture: handle to the allocated texture
	CreateTexture(width, height int, format TextureFormat, filter bool) Texture

	// DestroyTexture releases a texture. Invalid handles are ignored.
	DestroyTexture(tex Texture)

	// TextureSize returns the dimensions of a texture, or (0, 0) for an
	// invalid handle.
	TextureSize(tex Texture) (width, height int)

	// UploadTexture replaces the full contents of a texture with raw pixel
	// data in the texture's format.
	UploadTexture(tex Texture, data []byte)

	// ReadTexture blocks until the GPU work producing the texture has
	// completed and returns its raw pixel contents, tightly packed.
	//
	// Returns:
	//   - []byte: width*height*BytesPerPixel bytes of pixel data
	//   - error: an error if the readback failed
	ReadTexture(tex Texture) ([]byte, error)

	// CreateMesh uploads vertex and index data for a triangle mesh.
	// The vertex layout is position (3xf32), normal (3xf32), texcoord (2xf32).
	//
	// Parameters:
	//   - vertexData: raw interleaved vertex bytes
	//   - indexData: raw uint32 index bytes
	//   - indexCount: number of indices to draw
	//
	// Returns:
	//   - Mesh: handle to the uploaded mesh
	//   - error: an error if buffer creation failed
	CreateMesh(vertexData, indexData []byte, indexCount int) (Mesh, error)

	// DestroyMesh releases mesh buffers. Invalid handles are ignored.
	DestroyMesh(mesh Mesh)

	// BeginPass starts a render pass. Must be paired with EndPass.
	BeginPass(desc PassDesc)

	// SetUniforms stages the uniform block for subsequent draws in the
	// current pass.
	SetUniforms(data []byte)

	// BindTextures stages sampled textures for subsequent draws in the
	// current pass, in binding order. The number of textures must match the
	// program's TextureCount; invalid handles bind a 1x1 placeholder.
	BindTextures(texs []Texture)

	// DrawMesh draws an indexed triangle mesh with the staged uniforms and
	// textures.
	DrawMesh(mesh Mesh)

	// DrawQuad draws a fullscreen triangle with the staged uniforms and
	// textures. Only valid for programs compiled with FullscreenQuad.
	DrawQuad()

	// EndPass finishes the current render pass and submits its commands.
	EndPass()
}
