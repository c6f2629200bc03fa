package render

import (
	"fmt"
	"sync"
)

// PassRecord captures one render pass executed by the null backend, for
// inspection in tests and dry runs.
type PassRecord struct {
	Program      Program
	Width        int
	Height       int
	ColorTargets []Texture
	DepthTarget  Texture
	ClearColor   bool
	Draws        int
}

// NullBackend is an in-memory Backend without a GPU. Programs compile
// unconditionally, draws are counted, and ReadTexture returns zeroed pixel
// data of the right size. It records every pass for inspection.
type NullBackend struct {
	mu     sync.Mutex
	nextID uint64

	textures map[uint64]nullTexture
	meshes   map[uint64]int
	programs map[uint64]ProgramDesc

	passes  []PassRecord
	current *PassRecord
}

type nullTexture struct {
	width, height int
	format        TextureFormat
	data          []byte
}

var _ Backend = &NullBackend{}

// NewNullBackend returns an empty in-memory backend.
func NewNullBackend() *NullBackend {
	return &NullBackend{
		textures: make(map[uint64]nullTexture),
		meshes:   make(map[uint64]int),
		programs: make(map[uint64]ProgramDesc),
	}
}

// Passes returns the recorded render passes in submission order.
func (b *NullBackend) Passes() []PassRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]PassRecord(nil), b.passes...)
}

// ResetPasses clears the recorded passes.
func (b *NullBackend) ResetPasses() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.passes = nil
}

// ProgramCount returns the number of live programs.
func (b *NullBackend) ProgramCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.programs)
}

// TextureCount returns the number of live textures.
func (b *NullBackend) TextureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.textures)
}

func (b *NullBackend) CreateProgram(desc ProgramDesc) (Program, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if desc.VertexSource == "" || desc.FragmentSource == "" {
		return Program{}, fmt.Errorf("program %s has empty sources", desc.Name)
	}
	b.nextID++
	b.programs[b.nextID] = desc
	return Program{id: b.nextID}, nil
}

func (b *NullBackend) DestroyProgram(prg Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.programs, prg.id)
}

func (b *NullBackend) CreateTexture(width, height int, format TextureFormat, filter bool) Texture {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.textures[b.nextID] = nullTexture{width: width, height: height, format: format}
	return Texture{id: b.nextID}
}

func (b *NullBackend) DestroyTexture(tex Texture) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.textures, tex.id)
}

func (b *NullBackend) TextureSize(tex Texture) (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.textures[tex.id]
	if !ok {
		return 0, 0
	}
	return t.width, t.height
}

func (b *NullBackend) UploadTexture(tex Texture, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.textures[tex.id]
	if !ok {
		return
	}
	t.data = append(t.data[:0], data...)
	b.textures[tex.id] = t
}

func (b *NullBackend) ReadTexture(tex Texture) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.textures[tex.id]
	if !ok {
		return nil, fmt.Errorf("cannot read invalid texture handle")
	}
	size := t.width * t.height * t.format.BytesPerPixel()
	data := make([]byte, size)
	copy(data, t.data)
	return data, nil
}

func (b *NullBackend) CreateMesh(vertexData, indexData []byte, indexCount int) (Mesh, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(vertexData) == 0 || indexCount == 0 {
		return Mesh{}, fmt.Errorf("cannot create an empty mesh")
	}
	b.nextID++
	b.meshes[b.nextID] = indexCount
	return Mesh{id: b.nextID}, nil
}

func (b *NullBackend) DestroyMesh(mesh Mesh) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.meshes, mesh.id)
}

func (b *NullBackend) BeginPass(desc PassDesc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = &PassRecord{
		Program:      desc.Program,
		Width:        desc.Width,
		Height:       desc.Height,
		ColorTargets: append([]Texture(nil), desc.ColorTargets...),
		DepthTarget:  desc.DepthTarget,
		ClearColor:   desc.ClearColor,
	}
}

func (b *NullBackend) SetUniforms(data []byte) {}

func (b *NullBackend) BindTextures(texs []Texture) {}

func (b *NullBackend) DrawMesh(mesh Mesh) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current != nil {
		b.current.Draws++
	}
}

func (b *NullBackend) DrawQuad() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current != nil {
		b.current.Draws++
	}
}

func (b *NullBackend) EndPass() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current != nil {
		b.passes = append(b.passes, *b.current)
		b.current = nil
	}
}
