package metadata

const InvalidHandle uint16 = 0xffff

const (
	MaxViews           = 256
	MaxPrograms        = 1024
	MaxShaders         = 512
	MaxTextures        = 4096
	MaxVertexBuffers   = 4096
	MaxIndexBuffers    = 4096
	MaxVertexLayouts   = 64
	MaxFrameBuffers    = 128
	MaxUniforms        = 512
	MaxOcclusionQuery  = 256
	MaxIndirectBuffers = 64
	MaxVertexStreams   = 4
	MaxTextureSamplers = 16
	MaxColorAttachment = 8
)

type TextureHandle uint16
type VertexBufferHandle uint16
type IndexBufferHandle uint16
type VertexLayoutHandle uint16
type ShaderHandle uint16
type ProgramHandle uint16
type FrameBufferHandle uint16
type UniformHandle uint16
type OcclusionQueryHandle uint16
type IndirectBufferHandle uint16

func (h TextureHandle) IsValid() bool        { return uint16(h) != InvalidHandle }
func (h VertexBufferHandle) IsValid() bool   { return uint16(h) != InvalidHandle }
func (h IndexBufferHandle) IsValid() bool    { return uint16(h) != InvalidHandle }
func (h VertexLayoutHandle) IsValid() bool   { return uint16(h) != InvalidHandle }
func (h ShaderHandle) IsValid() bool         { return uint16(h) != InvalidHandle }
func (h ProgramHandle) IsValid() bool        { return uint16(h) != InvalidHandle }
func (h FrameBufferHandle) IsValid() bool    { return uint16(h) != InvalidHandle }
func (h UniformHandle) IsValid() bool        { return uint16(h) != InvalidHandle }
func (h OcclusionQueryHandle) IsValid() bool { return uint16(h) != InvalidHandle }
func (h IndirectBufferHandle) IsValid() bool { return uint16(h) != InvalidHandle }

const (
	InvalidTexture        = TextureHandle(InvalidHandle)
	InvalidVertexBuffer   = VertexBufferHandle(InvalidHandle)
	InvalidIndexBuffer    = IndexBufferHandle(InvalidHandle)
	InvalidVertexLayout   = VertexLayoutHandle(InvalidHandle)
	InvalidShader         = ShaderHandle(InvalidHandle)
	InvalidProgram        = ProgramHandle(InvalidHandle)
	InvalidFrameBuffer    = FrameBufferHandle(InvalidHandle)
	InvalidUniform        = UniformHandle(InvalidHandle)
	InvalidOcclusionQuery = OcclusionQueryHandle(InvalidHandle)
	InvalidIndirectBuffer = IndirectBufferHandle(InvalidHandle)
)
