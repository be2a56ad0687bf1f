package metadata

// RenderItem is one encoded draw, compute dispatch or blit.
type RenderItem interface {
	ItemType() ItemType
}

// Stream is one vertex buffer input of a draw.
type Stream struct {
	Handle      VertexBufferHandle
	Layout      VertexLayoutHandle
	StartVertex uint32
}

// DrawItem is a draw call. Its program lives in the sort key.
type DrawItem struct {
	State   uint64
	Stencil uint64
	// BlendFactor is the RGBA8 constant used by StateBlendFactor. With
	// StateBlendIndependent it instead packs the blend functions of color
	// attachments 1 to 3, 11 bits each: src(4) dst(4) equation(3).
	BlendFactor uint32

	Streams     [MaxVertexStreams]Stream
	StreamMask  uint8
	NumVertices uint32

	IndexBuffer IndexBufferHandle
	StartIndex  uint32
	NumIndices  uint32

	InstanceDataBuffer VertexBufferHandle
	InstanceDataOffset uint32
	InstanceDataStride uint16
	NumInstances       uint32

	IndirectBuffer IndirectBufferHandle
	StartIndirect  uint16
	NumIndirect    uint16

	UniformBegin uint32
	UniformEnd   uint32

	// StartMatrix indexes Frame.Matrices; NumMatrices of 0 means identity.
	StartMatrix uint32
	NumMatrices uint16

	// Scissor indexes Frame.Rects; InvalidHandle uses the view scissor.
	Scissor uint16

	// OcclusionQuery is measured by this draw.
	OcclusionQuery OcclusionQueryHandle
	// Condition skips the draw when that query resolved to zero samples.
	Condition OcclusionQueryHandle
}

func (*DrawItem) ItemType() ItemType { return ItemDraw }

// NewDrawItem returns a draw with every handle unset.
func NewDrawItem() *DrawItem {
	d := &DrawItem{
		State:              StateDefault,
		IndexBuffer:        InvalidIndexBuffer,
		InstanceDataBuffer: InvalidVertexBuffer,
		IndirectBuffer:     InvalidIndirectBuffer,
		NumInstances:       1,
		Scissor:            InvalidHandle,
		OcclusionQuery:     InvalidOcclusionQuery,
		Condition:          InvalidOcclusionQuery,
		NumVertices:        0xffffffff,
		NumIndices:         0xffffffff,
	}
	for i := range d.Streams {
		d.Streams[i] = Stream{Handle: InvalidVertexBuffer, Layout: InvalidVertexLayout}
	}
	return d
}

// SetVertexBuffer fills stream slot i.
func (d *DrawItem) SetVertexBuffer(i int, h VertexBufferHandle, layout VertexLayoutHandle, start uint32) {
	d.Streams[i] = Stream{Handle: h, Layout: layout, StartVertex: start}
	if h.IsValid() {
		d.StreamMask |= 1 << i
	} else {
		d.StreamMask &^= 1 << i
	}
}

func (d *DrawItem) HasUniforms() bool {
	return d.UniformEnd > d.UniformBegin
}

// ComputeItem is a dispatch. Its program lives in the sort key.
type ComputeItem struct {
	NumX, NumY, NumZ uint32

	IndirectBuffer IndirectBufferHandle
	StartIndirect  uint16
	NumIndirect    uint16

	UniformBegin uint32
	UniformEnd   uint32

	StartMatrix uint32
	NumMatrices uint16
}

func (*ComputeItem) ItemType() ItemType { return ItemCompute }

func NewComputeItem(x, y, z uint32) *ComputeItem {
	return &ComputeItem{
		NumX:           x,
		NumY:           y,
		NumZ:           z,
		IndirectBuffer: InvalidIndirectBuffer,
	}
}

func (c *ComputeItem) HasUniforms() bool {
	return c.UniformEnd > c.UniformBegin
}

// BlitItem copies a region between two textures.
type BlitItem struct {
	Src    TextureHandle
	SrcMip uint8
	SrcX   uint16
	SrcY   uint16
	SrcZ   uint16

	Dst    TextureHandle
	DstMip uint8
	DstX   uint16
	DstY   uint16
	DstZ   uint16

	Width  uint16
	Height uint16
	Depth  uint16
}

func (*BlitItem) ItemType() ItemType { return ItemBlit }
