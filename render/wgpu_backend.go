package render

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuBackend implements Backend on top of WebGPU.
type wgpuBackend struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	nextID   uint64
	textures map[uint64]*wgpuTexture
	meshes   map[uint64]*wgpuMesh
	programs map[uint64]*wgpuProgram

	sampler     *wgpu.Sampler
	placeholder *wgpuTexture

	// Pass state, valid between BeginPass and EndPass
	passEncoder  *wgpu.CommandEncoder
	pass         *wgpu.RenderPassEncoder
	passProgram  *wgpuProgram
	passUniforms []byte
	passTextures []Texture
	passGarbage  []interface{ Release() }
}

var _ Backend = &wgpuBackend{}

type wgpuTexture struct {
	tex           *wgpu.Texture
	view          *wgpu.TextureView
	width, height int
	format        TextureFormat
}

type wgpuMesh struct {
	vertexBuf  *wgpu.Buffer
	indexBuf   *wgpu.Buffer
	indexCount int
}

type wgpuProgram struct {
	pipeline *wgpu.RenderPipeline
	layout   *wgpu.BindGroupLayout
	desc     ProgramDesc
}

// NewWGPUBackend creates a Backend bound to an existing WebGPU device and
// queue. The caller keeps ownership of the device; one backend per device.
func NewWGPUBackend(device *wgpu.Device, queue *wgpu.Queue) (Backend, error) {
	b := &wgpuBackend{
		mu:       &sync.Mutex{},
		device:   device,
		queue:    queue,
		textures: make(map[uint64]*wgpuTexture),
		meshes:   make(map[uint64]*wgpuMesh),
		programs: make(map[uint64]*wgpuProgram),
	}
	sampler, err := device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "camsim sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeNearest,
		MinFilter:     wgpu.FilterModeNearest,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sampler: %w", err)
	}
	b.sampler = sampler
	placeholder, err := b.allocTexture(1, 1, FormatRGBA32F)
	if err != nil {
		return nil, err
	}
	b.placeholder = placeholder
	return b, nil
}

func wgpuFormat(f TextureFormat) wgpu.TextureFormat {
	switch f {
	case FormatRGBA32F:
		return wgpu.TextureFormatRGBA32Float
	case FormatRGBA32U:
		return wgpu.TextureFormatRGBA32Uint
	case FormatRGBA8:
		return wgpu.TextureFormatRGBA8Unorm
	case FormatRG32F:
		return wgpu.TextureFormatRG32Float
	case FormatDepth32F:
		return wgpu.TextureFormatDepth32Float
	}
	return wgpu.TextureFormatUndefined
}

func (b *wgpuBackend) allocTexture(width, height int, format TextureFormat) (*wgpuTexture, error) {
	usage := wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding |
		wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "camsim texture",
		Usage: usage,
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		Format:        wgpuFormat(format),
		Dimension:     wgpu.TextureDimension2D,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create texture: %w", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("failed to create texture view: %w", err)
	}
	return &wgpuTexture{tex: tex, view: view, width: width, height: height, format: format}, nil
}

func (b *wgpuBackend) CreateTexture(width, height int, format TextureFormat, filter bool) Texture {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, err := b.allocTexture(width, height, format)
	if err != nil {
		return Texture{}
	}
	_ = filter // all simulation outputs are read back or sampled texel-exact
	b.nextID++
	b.textures[b.nextID] = t
	return Texture{id: b.nextID}
}

func (b *wgpuBackend) DestroyTexture(tex Texture) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.textures[tex.id]
	if !ok {
		return
	}
	t.view.Release()
	t.tex.Release()
	delete(b.textures, tex.id)
}

func (b *wgpuBackend) TextureSize(tex Texture) (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.textures[tex.id]
	if !ok {
		return 0, 0
	}
	return t.width, t.height
}

func (b *wgpuBackend) UploadTexture(tex Texture, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.textures[tex.id]
	if !ok {
		return
	}
	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(t.width * t.format.BytesPerPixel()),
			RowsPerImage: uint32(t.height),
		},
		&wgpu.Extent3D{
			Width:              uint32(t.width),
			Height:             uint32(t.height),
			DepthOrArrayLayers: 1,
		},
	)
}

const rowAlignment = 256

func (b *wgpuBackend) ReadTexture(tex Texture) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.textures[tex.id]
	if !ok {
		return nil, errors.New("read from invalid texture handle")
	}

	rowBytes := t.width * t.format.BytesPerPixel()
	paddedRowBytes := (rowBytes + rowAlignment - 1) / rowAlignment * rowAlignment
	size := uint64(paddedRowBytes * t.height)

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "camsim readback buffer",
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readback buffer: %w", err)
	}
	defer buf.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create readback encoder: %w", err)
	}
	defer encoder.Release()
	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyBuffer{
			Buffer: buf,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  uint32(paddedRowBytes),
				RowsPerImage: uint32(t.height),
			},
		},
		&wgpu.Extent3D{
			Width:              uint32(t.width),
			Height:             uint32(t.height),
			DepthOrArrayLayers: 1,
		},
	)
	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to finish readback encoder: %w", err)
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()

	var mapErr error
	done := false
	err = buf.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			mapErr = fmt.Errorf("readback map failed with status %v", status)
		}
		done = true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to map readback buffer: %w", err)
	}
	for !done {
		b.device.Poll(true, nil)
	}
	if mapErr != nil {
		return nil, mapErr
	}
	defer buf.Unmap()

	mapped := buf.GetMappedRange(0, uint(size))
	out := make([]byte, rowBytes*t.height)
	for row := 0; row < t.height; row++ {
		copy(out[row*rowBytes:(row+1)*rowBytes], mapped[row*paddedRowBytes:row*paddedRowBytes+rowBytes])
	}
	return out, nil
}

func (b *wgpuBackend) CreateMesh(vertexData, indexData []byte, indexCount int) (Mesh, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	vbuf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "camsim vertex buffer",
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		Size:  uint64(len(vertexData)),
	})
	if err != nil {
		return Mesh{}, fmt.Errorf("failed to create vertex buffer: %w", err)
	}
	b.queue.WriteBuffer(vbuf, 0, vertexData)

	ibuf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "camsim index buffer",
		Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
		Size:  uint64(len(indexData)),
	})
	if err != nil {
		vbuf.Release()
		return Mesh{}, fmt.Errorf("failed to create index buffer: %w", err)
	}
	b.queue.WriteBuffer(ibuf, 0, indexData)

	b.nextID++
	b.meshes[b.nextID] = &wgpuMesh{vertexBuf: vbuf, indexBuf: ibuf, indexCount: indexCount}
	return Mesh{id: b.nextID}, nil
}

func (b *wgpuBackend) DestroyMesh(mesh Mesh) {
	b.mu.Lock()
	defer b.mu.Unlock()

	m, ok := b.meshes[mesh.id]
	if !ok {
		return
	}
	m.vertexBuf.Release()
	m.indexBuf.Release()
	delete(b.meshes, mesh.id)
}

func (b *wgpuBackend) CreateProgram(desc ProgramDesc) (Program, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	vs, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Name + " vs",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.VertexSource,
		},
	})
	if err != nil {
		return Program{}, fmt.Errorf("failed to compile %s vertex shader: %w", desc.Name, err)
	}
	fs, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Name + " fs",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.FragmentSource,
		},
	})
	if err != nil {
		return Program{}, fmt.Errorf("failed to compile %s fragment shader: %w", desc.Name, err)
	}

	entries := []wgpu.BindGroupLayoutEntry{
		{
			Binding:    0,
			Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
			Buffer: wgpu.BufferBindingLayout{
				Type: wgpu.BufferBindingTypeUniform,
			},
		},
		{
			Binding:    1,
			Visibility: wgpu.ShaderStageFragment,
			Sampler: wgpu.SamplerBindingLayout{
				Type: wgpu.SamplerBindingTypeNonFiltering,
			},
		},
	}
	for i := 0; i < desc.TextureCount; i++ {
		entries = append(entries, wgpu.BindGroupLayoutEntry{
			Binding:    uint32(2 + i),
			Visibility: wgpu.ShaderStageFragment,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeUnfilterableFloat,
				ViewDimension: wgpu.TextureViewDimension2D,
			},
		})
	}
	layout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   desc.Name + " bind group layout",
		Entries: entries,
	})
	if err != nil {
		return Program{}, fmt.Errorf("failed to create %s bind group layout: %w", desc.Name, err)
	}
	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Name + " pipeline layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	if err != nil {
		return Program{}, fmt.Errorf("failed to create %s pipeline layout: %w", desc.Name, err)
	}

	var vertexLayouts []wgpu.VertexBufferLayout
	if !desc.FullscreenQuad {
		vertexLayouts = []wgpu.VertexBufferLayout{{
			ArrayStride: 32,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
				{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
				{Format: wgpu.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 2},
			},
		}}
	}

	targets := make([]wgpu.ColorTargetState, 0, len(desc.ColorFormats))
	for _, f := range desc.ColorFormats {
		state := wgpu.ColorTargetState{
			Format:    wgpuFormat(f),
			WriteMask: wgpu.ColorWriteMaskAll,
		}
		if desc.AdditiveBlend {
			state.Blend = &wgpu.BlendState{
				Color: wgpu.BlendComponent{
					Operation: wgpu.BlendOperationAdd,
					SrcFactor: wgpu.BlendFactorOne,
					DstFactor: wgpu.BlendFactorOne,
				},
				Alpha: wgpu.BlendComponent{
					Operation: wgpu.BlendOperationAdd,
					SrcFactor: wgpu.BlendFactorOne,
					DstFactor: wgpu.BlendFactorOne,
				},
			}
		}
		targets = append(targets, state)
	}

	var depthStencil *wgpu.DepthStencilState
	if desc.HasDepth {
		compare := wgpu.CompareFunctionLess
		write := true
		if desc.DepthReadOnly {
			compare = wgpu.CompareFunctionLessEqual
			write = false
		}
		depthStencil = &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth32Float,
			DepthWriteEnabled: write,
			DepthCompare:      compare,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Name + " render pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: "vs_main",
			Buffers:    vertexLayouts,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: "fs_main",
			Targets:    targets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: depthStencil,
	})
	if err != nil {
		return Program{}, fmt.Errorf("failed to create %s render pipeline: %w", desc.Name, err)
	}

	b.nextID++
	b.programs[b.nextID] = &wgpuProgram{pipeline: created, layout: layout, desc: desc}
	return Program{id: b.nextID}, nil
}

func (b *wgpuBackend) DestroyProgram(prg Program) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.programs[prg.id]
	if !ok {
		return
	}
	p.pipeline.Release()
	p.layout.Release()
	delete(b.programs, prg.id)
}

func (b *wgpuBackend) BeginPass(desc PassDesc) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.programs[desc.Program.id]
	if !ok {
		return
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return
	}

	colorAttachments := make([]wgpu.RenderPassColorAttachment, 0, len(desc.ColorTargets))
	for _, target := range desc.ColorTargets {
		t, ok := b.textures[target.id]
		if !ok {
			encoder.Release()
			return
		}
		loadOp := wgpu.LoadOpLoad
		if desc.ClearColor {
			loadOp = wgpu.LoadOpClear
		}
		colorAttachments = append(colorAttachments, wgpu.RenderPassColorAttachment{
			View:       t.view,
			LoadOp:     loadOp,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{},
		})
	}

	passDesc := &wgpu.RenderPassDescriptor{
		Label:            p.desc.Name + " pass",
		ColorAttachments: colorAttachments,
	}
	if desc.DepthTarget.Valid() {
		t, ok := b.textures[desc.DepthTarget.id]
		if !ok {
			encoder.Release()
			return
		}
		depthLoadOp := wgpu.LoadOpClear
		if desc.PreserveDepth {
			depthLoadOp = wgpu.LoadOpLoad
		}
		passDesc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            t.view,
			DepthLoadOp:     depthLoadOp,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		}
	}

	pass := encoder.BeginRenderPass(passDesc)
	pass.SetPipeline(p.pipeline)
	pass.SetViewport(0, 0, float32(desc.Width), float32(desc.Height), 0, 1)

	b.passEncoder = encoder
	b.pass = pass
	b.passProgram = p
	b.passUniforms = nil
	b.passTextures = nil
}

func (b *wgpuBackend) SetUniforms(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.passUniforms = append(b.passUniforms[:0], data...)
}

func (b *wgpuBackend) BindTextures(texs []Texture) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.passTextures = append(b.passTextures[:0], texs...)
}

// bindDrawState creates the uniform buffer and bind group for the next draw
// from the staged pass state.
func (b *wgpuBackend) bindDrawState() bool {
	if b.pass == nil || b.passProgram == nil {
		return false
	}
	uniforms := b.passUniforms
	if len(uniforms) == 0 {
		uniforms = make([]byte, 16)
	}
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: b.passProgram.desc.Name + " uniforms",
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:  uint64(len(uniforms)),
	})
	if err != nil {
		return false
	}
	b.queue.WriteBuffer(buf, 0, uniforms)

	entries := []wgpu.BindGroupEntry{
		{Binding: 0, Buffer: buf, Size: uint64(len(uniforms))},
		{Binding: 1, Sampler: b.sampler},
	}
	for i := 0; i < b.passProgram.desc.TextureCount; i++ {
		view := b.placeholder.view
		if i < len(b.passTextures) {
			if t, ok := b.textures[b.passTextures[i].id]; ok {
				view = t.view
			}
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding:     uint32(2 + i),
			TextureView: view,
		})
	}
	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   b.passProgram.desc.Name + " bind group",
		Layout:  b.passProgram.layout,
		Entries: entries,
	})
	if err != nil {
		buf.Release()
		return false
	}
	b.pass.SetBindGroup(0, bindGroup, nil)
	b.passGarbage = append(b.passGarbage, buf, bindGroup)
	return true
}

func (b *wgpuBackend) DrawMesh(mesh Mesh) {
	b.mu.Lock()
	defer b.mu.Unlock()

	m, ok := b.meshes[mesh.id]
	if !ok || !b.bindDrawState() {
		return
	}
	b.pass.SetVertexBuffer(0, m.vertexBuf, 0, wgpu.WholeSize)
	b.pass.SetIndexBuffer(m.indexBuf, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	b.pass.DrawIndexed(uint32(m.indexCount), 1, 0, 0, 0)
}

func (b *wgpuBackend) DrawQuad() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.bindDrawState() {
		return
	}
	b.pass.Draw(3, 1, 0, 0)
}

func (b *wgpuBackend) EndPass() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pass == nil {
		return
	}
	b.pass.End()
	commandBuffer, err := b.passEncoder.Finish(nil)
	if err == nil {
		b.queue.Submit(commandBuffer)
		commandBuffer.Release()
	}
	b.passEncoder.Release()
	for _, g := range b.passGarbage {
		g.Release()
	}
	b.passGarbage = nil
	b.pass = nil
	b.passEncoder = nil
	b.passProgram = nil
	b.passUniforms = nil
	b.passTextures = nil
}
