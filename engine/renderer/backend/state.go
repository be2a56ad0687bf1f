package backend

import (
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
)

const (
	blendMask = metadata.StateBlendMask |
		metadata.StateBlendEquationMask |
		metadata.StateBlendIndependent |
		metadata.StateBlendAlphaToCoverage |
		metadata.StateWriteRGB |
		metadata.StateWriteAlpha

	depthMask = metadata.StateWriteZ | metadata.StateDepthTestMask

	rasterMask = metadata.StateCullMask |
		metadata.StateFrontCCW |
		metadata.StateMSAA |
		metadata.StateLineAA |
		metadata.StateConservativeRaster
)

// currentState mirrors what was last applied to the native context.
type currentState struct {
	// dirty forces the next item to re-apply every class of state.
	dirty bool

	view        int
	frameBuffer metadata.FrameBufferHandle
	targetBound bool
	width       uint32
	height      uint32
	rect        metadata.Rect

	compute    bool
	program    metadata.ProgramHandle
	prog       *program
	state      uint64
	stencil    uint64
	blendColor uint32
	topology   metadata.Topology

	scissor   metadata.Rect
	scissorOn bool

	streams        [metadata.MaxVertexStreams]metadata.Stream
	streamMask     uint8
	instance       metadata.VertexBufferHandle
	instanceOffset uint32
	instanceStride uint16
	index          metadata.IndexBufferHandle
	layoutHash     uint32

	binds metadata.Binds
	uavs  uint32
}

func (cs *currentState) reset() {
	*cs = currentState{
		dirty:       true,
		view:        -1,
		frameBuffer: metadata.InvalidFrameBuffer,
		program:     metadata.InvalidProgram,
		instance:    metadata.InvalidVertexBuffer,
		index:       metadata.InvalidIndexBuffer,
		binds:       metadata.NewBinds(),
	}
}

// invalidate keeps the bound target but forgets every pipeline binding.
func (cs *currentState) invalidate() {
	cs.dirty = true
	cs.program = metadata.InvalidProgram
	cs.prog = nil
	cs.layoutHash = 0
	cs.binds.Clear()
}

func (cs *currentState) blendChanged(state uint64, rgba uint32) bool {
	return cs.dirty || (cs.state^state)&blendMask != 0 || cs.blendColor != rgba
}

func (cs *currentState) depthChanged(state, stencil uint64) bool {
	return cs.dirty || (cs.state^state)&depthMask != 0 || cs.stencil != stencil
}

func (cs *currentState) rasterChanged(state uint64, scissorOn bool) bool {
	return cs.dirty || (cs.state^state)&rasterMask != 0 || cs.scissorOn != scissorOn
}

func (cs *currentState) streamsChanged(d *metadata.DrawItem) bool {
	return cs.dirty ||
		cs.streamMask != d.StreamMask ||
		cs.streams != d.Streams ||
		cs.instance != d.InstanceDataBuffer ||
		cs.instanceOffset != d.InstanceDataOffset ||
		cs.instanceStride != d.InstanceDataStride
}

// viewport is the rect a view renders into; an empty rect means the target.
func viewport(r metadata.Rect, width, height uint32) metadata.Rect {
	if r.IsZeroArea() {
		return metadata.Rect{Width: uint16(min(width, 0xffff)), Height: uint16(min(height, 0xffff))}
	}
	return r
}

func indexFormat(b *buffer) gpu.IndexFormat {
	if b.desc.Index32 {
		return gpu.Index32
	}
	return gpu.Index16
}
