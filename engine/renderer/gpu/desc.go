package gpu

import (
	"fmt"
	"strings"

	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
)

const MaxColorAttachments = metadata.MaxColorAttachment

type Stage uint8

const (
	StageVertex Stage = iota
	StageFragment
	StageCompute
	StageCount
)

func (s Stage) String() string {
	return [...]string{"vertex", "fragment", "compute"}[s]
}

type CompareFunc uint8

const (
	CompareDisabled CompareFunc = iota
	CompareLess
	CompareLEqual
	CompareEqual
	CompareGEqual
	CompareGreater
	CompareNotEqual
	CompareNever
	CompareAlways
)

type BlendFactor uint8

const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcColor
	BlendInvSrcColor
	BlendSrcAlpha
	BlendInvSrcAlpha
	BlendDstAlpha
	BlendInvDstAlpha
	BlendDstColor
	BlendInvDstColor
	BlendSrcAlphaSat
	BlendFactorColor
	BlendInvFactorColor
)

type BlendOp uint8

const (
	BlendOpAdd BlendOp = iota
	BlendOpSub
	BlendOpRevSub
	BlendOpMin
	BlendOpMax
)

type ColorWriteMask uint8

const (
	WriteRed   ColorWriteMask = 1 << 0
	WriteGreen ColorWriteMask = 1 << 1
	WriteBlue  ColorWriteMask = 1 << 2
	WriteAlpha ColorWriteMask = 1 << 3
	WriteRGB                  = WriteRed | WriteGreen | WriteBlue
	WriteAll                  = WriteRGB | WriteAlpha
)

type TargetBlend struct {
	Enable    bool
	Src       BlendFactor
	Dst       BlendFactor
	Op        BlendOp
	SrcAlpha  BlendFactor
	DstAlpha  BlendFactor
	OpAlpha   BlendOp
	WriteMask ColorWriteMask
}

type BlendDesc struct {
	AlphaToCoverage  bool
	IndependentBlend bool
	Targets          [MaxColorAttachments]TargetBlend
}

type StencilOp uint8

const (
	StencilZero StencilOp = iota
	StencilKeep
	StencilReplace
	StencilIncr
	StencilIncrSat
	StencilDecr
	StencilDecrSat
	StencilInvert
)

type StencilFace struct {
	Func      CompareFunc
	Fail      StencilOp
	DepthFail StencilOp
	Pass      StencilOp
}

type DepthStencilDesc struct {
	DepthEnable   bool
	DepthWrite    bool
	DepthFunc     CompareFunc
	StencilEnable bool
	ReadMask      uint8
	WriteMask     uint8
	Front         StencilFace
	Back          StencilFace
}

type FillMode uint8

const (
	FillSolid FillMode = iota
	FillWireframe
)

type CullMode uint8

const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

type RasterizerDesc struct {
	Fill            FillMode
	Cull            CullMode
	FrontCCW        bool
	DepthClip       bool
	Scissor         bool
	Multisample     bool
	AntialiasedLine bool
	Conservative    bool
}

type FilterMode uint8

const (
	FilterLinear FilterMode = iota
	FilterPoint
	FilterAnisotropic
)

type AddressMode uint8

const (
	AddressWrap AddressMode = iota
	AddressMirror
	AddressClamp
	AddressBorder
)

type SamplerDesc struct {
	Min           FilterMode
	Mag           FilterMode
	Mip           FilterMode
	U, V, W       AddressMode
	MaxAnisotropy uint32
	Compare       CompareFunc
	BorderColor   [4]float32
}

type VertexFormat uint8

const (
	VertexFormatUnknown VertexFormat = iota
	VertexFormatUByte4
	VertexFormatUByte4Norm
	VertexFormatShort2
	VertexFormatShort4
	VertexFormatShort2Norm
	VertexFormatShort4Norm
	VertexFormatHalf2
	VertexFormatHalf4
	VertexFormatFloat1
	VertexFormatFloat2
	VertexFormatFloat3
	VertexFormatFloat4
)

type VertexElement struct {
	Semantic    string
	Index       uint32
	Format      VertexFormat
	Slot        uint32
	Offset      uint32
	PerInstance bool
}

type InputLayoutDesc struct {
	Elements []VertexElement
	// Bytecode of the vertex shader the layout is validated against.
	Bytecode []byte
}

type TextureUsage uint8

const (
	UsageSampled TextureUsage = 1 << iota
	UsageRenderTarget
	UsageDepthStencil
	UsageStorage
	UsageReadBack
)

type TextureDesc struct {
	Width   uint32
	Height  uint32
	Depth   uint32
	Mips    uint8
	Layers  uint16
	Cube    bool
	Format  metadata.TextureFormat
	Samples uint32
	Usage   TextureUsage
}

type BufferUsage uint8

const (
	BufferVertex BufferUsage = 1 << iota
	BufferIndex
	BufferIndirect
	BufferConstant
	BufferStorage
)

type BufferDesc struct {
	Size    uint32
	Stride  uint32
	Usage   BufferUsage
	Index32 bool
	Dynamic bool
}

type ViewDimension uint8

const (
	Dim2D ViewDimension = iota
	Dim2DMS
	Dim2DArray
	Dim3D
	DimCube
	DimBuffer
)

type ViewDesc struct {
	Format    metadata.TextureFormat
	Dimension ViewDimension
	Mip       uint8
	MipCount  uint8
	// Stencil selects the stencil plane of a depth-stencil texture.
	Stencil      bool
	FirstElement uint32
	NumElements  uint32
}

type QueryKind uint8

const (
	QueryTimer QueryKind = iota
	QueryOcclusion
)

// QueryResult is what a resolved query reports. Timer queries fill Begin, End
// and Frequency; occlusion queries fill Samples.
type QueryResult struct {
	Begin     uint64
	End       uint64
	Frequency uint64
	Disjoint  bool
	Samples   uint64
}

type PresentMode uint8

const (
	// PresentFlip is the flip model: the compositor reads the back buffer directly.
	PresentFlip PresentMode = iota
	// PresentBlit copies the back buffer into the window surface.
	PresentBlit
)

func (m PresentMode) String() string {
	switch m {
	case PresentFlip:
		return "flip"
	case PresentBlit:
		return "blit"
	}
	return fmt.Sprintf("PresentMode(%d)", uint8(m))
}

func ParsePresentMode(s string) (PresentMode, error) {
	switch strings.ToLower(s) {
	case "flip":
		return PresentFlip, nil
	case "blit", "discard":
		return PresentBlit, nil
	}
	return 0, fmt.Errorf("unknown present mode %q", s)
}

type SwapChainDesc struct {
	Width           uint32
	Height          uint32
	Format          metadata.TextureFormat
	BufferCount     uint8
	Mode            PresentMode
	MaxFrameLatency uint8
	SRGB            bool
	// Window is the native handle the swap chain presents into.
	Window uintptr
}

type Box struct {
	X, Y, Z              uint32
	Width, Height, Depth uint32
}

type IndexFormat uint8

const (
	Index16 IndexFormat = iota
	Index32
)

func (f IndexFormat) Size() uint32 {
	if f == Index32 {
		return 4
	}
	return 2
}

type Caps struct {
	Vendor             string
	DeviceName         string
	MaxTextureSize     uint32
	MaxAnisotropy      uint32
	MaxMSAA            uint32
	ConstantBufferSize uint32
	Compute            bool
	DrawIndirect       bool
	MultiDrawIndirect  bool
	TimestampQuery     bool
	OcclusionQuery     bool
	ConservativeRaster bool
}
