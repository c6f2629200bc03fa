package sim

import (
	"fmt"
	"unsafe"

	"camsim/render"
)

// Buffer is a CPU copy of a simulation output texture.
type Buffer struct {
	Width, Height int
	Channels      int
	// Channel names, e.g. "r","g","b","a" or "range","amplitude","intensity".
	ChannelNames []string
	// Tightly packed pixel data in the texture's native format.
	Data []byte
}

// Floats reinterprets the buffer data as float32 values. Only valid for
// float formats.
func (b Buffer) Floats() []float32 {
	if len(b.Data) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b.Data[0])), len(b.Data)/4)
}

// At returns channel c of the pixel at (x, y) for float formats.
func (b Buffer) At(x, y, c int) float32 {
	return b.Floats()[(y*b.Width+x)*b.Channels+c]
}

// haveValidOutput reports whether subframe index i addresses a valid output
// of the last simulated frame. Index -1 addresses the frame result.
func (s *Simulator) haveValidOutput(i int) bool {
	return !s.recreateOutput && s.haveLastFrameTimestamp &&
		i >= -1 && i < s.SubFrames()
}

// lastIndex maps subframe index -1 to the last texture in a list.
func lastIndex(i, n int) int {
	if i < 0 {
		return n - 1
	}
	return i
}

// firstIndex maps subframe index -1 to the first texture in a list.
func firstIndex(i int) int {
	if i < 0 {
		return 0
	}
	return i
}

// GetRGB returns the linear RGB output of subframe i, or the combined frame
// result for i == -1.
func (s *Simulator) GetRGB(i int) (render.Texture, bool) {
	if !s.output.RGB || !s.haveValidOutput(i) || len(s.resources.rgb) == 0 {
		return render.Texture{}, false
	}
	return s.resources.rgb[lastIndex(i, len(s.resources.rgb))], true
}

// GetSRGB returns the sRGB output of subframe i, or the combined frame
// result for i == -1.
func (s *Simulator) GetSRGB(i int) (render.Texture, bool) {
	if !s.output.SRGB || !s.haveValidOutput(i) || len(s.resources.srgb) == 0 {
		return render.Texture{}, false
	}
	return s.resources.srgb[lastIndex(i, len(s.resources.srgb))], true
}

// GetPMD returns the PMD digital numbers of phase image i as
// (A-B, A+B, A, B), or the demodulated range/amplitude/intensity result for
// i == -1.
func (s *Simulator) GetPMD(i int) (render.Texture, bool) {
	if !s.output.PMD || !s.haveValidOutput(i) || len(s.resources.pmdDigNum) == 0 {
		return render.Texture{}, false
	}
	return s.resources.pmdDigNum[lastIndex(i, len(s.resources.pmdDigNum))], true
}

// GetPMDCoordinates returns the cartesian coordinates computed from the PMD
// range result.
func (s *Simulator) GetPMDCoordinates() (render.Texture, bool) {
	if !s.output.PMD || !s.output.PMDCoordinates || !s.haveValidOutput(-1) {
		return render.Texture{}, false
	}
	return s.resources.pmdCoordinates, true
}

// geometryTexture returns the texture of one geometry attachment for
// subframe i. Index -1 addresses the first subframe.
func (s *Simulator) geometryTexture(attachment, i int) (render.Texture, bool) {
	if !s.haveValidOutput(i) || attachment >= len(s.resources.geometry) {
		return render.Texture{}, false
	}
	return s.resources.geometry[attachment][firstIndex(i)], true
}

// geometrySlot computes the attachment slot of a geometry output flag from
// the enabled flags that precede it in declaration order.
func geometrySlot(o Output, flag int) (int, bool) {
	flags := []bool{
		o.EyeSpacePositions, o.CustomSpacePositions,
		o.EyeSpaceNormals, o.CustomSpaceNormals,
		o.DepthAndRange, o.Indices,
	}
	if !flags[flag] {
		return 0, false
	}
	slot := 0
	for i := 0; i < flag; i++ {
		if flags[i] {
			slot++
		}
	}
	return slot, true
}

// flowSlot computes the attachment slot of a flow output flag from the
// enabled flags that precede it in declaration order.
func flowSlot(o Output, flag int) (int, bool) {
	flags := []bool{
		o.ForwardFlow3D, o.ForwardFlow2D,
		o.BackwardFlow3D, o.BackwardFlow2D,
	}
	if !flags[flag] {
		return 0, false
	}
	slot := 0
	for i := 0; i < flag; i++ {
		if flags[i] {
			slot++
		}
	}
	return slot, true
}

// GetEyeSpacePositions returns the eye space position output of subframe i.
func (s *Simulator) GetEyeSpacePositions(i int) (render.Texture, bool) {
	slot, ok := geometrySlot(s.output, 0)
	if !ok {
		return render.Texture{}, false
	}
	return s.geometryTexture(slot, i)
}

// GetCustomSpacePositions returns the custom space position output of
// subframe i.
func (s *Simulator) GetCustomSpacePositions(i int) (render.Texture, bool) {
	slot, ok := geometrySlot(s.output, 1)
	if !ok {
		return render.Texture{}, false
	}
	return s.geometryTexture(slot, i)
}

// GetEyeSpaceNormals returns the eye space normal output of subframe i.
func (s *Simulator) GetEyeSpaceNormals(i int) (render.Texture, bool) {
	slot, ok := geometrySlot(s.output, 2)
	if !ok {
		return render.Texture{}, false
	}
	return s.geometryTexture(slot, i)
}

// GetCustomSpaceNormals returns the custom space normal output of subframe i.
func (s *Simulator) GetCustomSpaceNormals(i int) (render.Texture, bool) {
	slot, ok := geometrySlot(s.output, 3)
	if !ok {
		return render.Texture{}, false
	}
	return s.geometryTexture(slot, i)
}

// GetDepthAndRange returns the depth and range output of subframe i.
func (s *Simulator) GetDepthAndRange(i int) (render.Texture, bool) {
	slot, ok := geometrySlot(s.output, 4)
	if !ok {
		return render.Texture{}, false
	}
	return s.geometryTexture(slot, i)
}

// GetIndices returns the object/shape/material index output of subframe i.
func (s *Simulator) GetIndices(i int) (render.Texture, bool) {
	slot, ok := geometrySlot(s.output, 5)
	if !ok {
		return render.Texture{}, false
	}
	return s.geometryTexture(slot, i)
}

// flowTexture returns the texture of one flow attachment for subframe i.
// Index -1 addresses the whole-frame result in the extra slot; with a single
// subframe that is the subframe itself.
func (s *Simulator) flowTexture(attachment, i int) (render.Texture, bool) {
	if !s.haveValidOutput(i) || attachment >= len(s.resources.flow) {
		return render.Texture{}, false
	}
	list := s.resources.flow[attachment]
	return list[lastIndex(i, len(list))], true
}

// GetForwardFlow3D returns the 3D forward flow output of subframe i.
func (s *Simulator) GetForwardFlow3D(i int) (render.Texture, bool) {
	slot, ok := flowSlot(s.output, 0)
	if !ok {
		return render.Texture{}, false
	}
	return s.flowTexture(slot, i)
}

// GetForwardFlow2D returns the 2D forward flow output of subframe i.
func (s *Simulator) GetForwardFlow2D(i int) (render.Texture, bool) {
	slot, ok := flowSlot(s.output, 1)
	if !ok {
		return render.Texture{}, false
	}
	return s.flowTexture(slot, i)
}

// GetBackwardFlow3D returns the 3D backward flow output of subframe i.
func (s *Simulator) GetBackwardFlow3D(i int) (render.Texture, bool) {
	slot, ok := flowSlot(s.output, 2)
	if !ok {
		return render.Texture{}, false
	}
	return s.flowTexture(slot, i)
}

// GetBackwardFlow2D returns the 2D backward flow output of subframe i.
func (s *Simulator) GetBackwardFlow2D(i int) (render.Texture, bool) {
	slot, ok := flowSlot(s.output, 3)
	if !ok {
		return render.Texture{}, false
	}
	return s.flowTexture(slot, i)
}

// GetDepth returns the depth buffer of subframe i. With spatial oversampling
// the native-size depth ring is only rendered by the geometry and flow
// passes, so without either output it holds nothing.
func (s *Simulator) GetDepth(i int) (render.Texture, bool) {
	if !s.haveValidOutput(i) {
		return render.Texture{}, false
	}
	if s.resources.oversampling && !s.output.anyGeometry() && !s.output.anyFlow() {
		return render.Texture{}, false
	}
	return s.resources.depthBuffers[s.depthBufferSlot(firstIndex(i))], true
}

// ReadBuffer downloads a texture into a Buffer with the given channel names.
func (s *Simulator) ReadBuffer(tex render.Texture, channelNames []string) (Buffer, error) {
	if !tex.Valid() {
		return Buffer{}, fmt.Errorf("cannot read an invalid texture")
	}
	w, h := s.backend.TextureSize(tex)
	data, err := s.backend.ReadTexture(tex)
	if err != nil {
		return Buffer{}, err
	}
	channels := len(channelNames)
	if channels == 0 {
		channels = len(data) / (w * h * 4)
		for c := 0; c < channels; c++ {
			channelNames = append(channelNames, fmt.Sprintf("c%d", c))
		}
	}
	return Buffer{
		Width:        w,
		Height:       h,
		Channels:     channels,
		ChannelNames: channelNames,
		Data:         data,
	}, nil
}
