package metadata

// Draw state bits. A DrawItem carries one uint64 of these.
const (
	StateWriteRGB   uint64 = 0x0000000000000001
	StateWriteAlpha uint64 = 0x0000000000000002
	StateWriteZ     uint64 = 0x0000000000000004

	StateDepthTestLess     uint64 = 0x0000000000000010
	StateDepthTestLEqual   uint64 = 0x0000000000000020
	StateDepthTestEqual    uint64 = 0x0000000000000030
	StateDepthTestGEqual   uint64 = 0x0000000000000040
	StateDepthTestGreater  uint64 = 0x0000000000000050
	StateDepthTestNotEqual uint64 = 0x0000000000000060
	StateDepthTestNever    uint64 = 0x0000000000000070
	StateDepthTestAlways   uint64 = 0x0000000000000080
	StateDepthTestShift           = 4
	StateDepthTestMask     uint64 = 0x00000000000000f0

	StateBlendZero        uint64 = 0x0000000000001000
	StateBlendOne         uint64 = 0x0000000000002000
	StateBlendSrcColor    uint64 = 0x0000000000003000
	StateBlendInvSrcColor uint64 = 0x0000000000004000
	StateBlendSrcAlpha    uint64 = 0x0000000000005000
	StateBlendInvSrcAlpha uint64 = 0x0000000000006000
	StateBlendDstAlpha    uint64 = 0x0000000000007000
	StateBlendInvDstAlpha uint64 = 0x0000000000008000
	StateBlendDstColor    uint64 = 0x0000000000009000
	StateBlendInvDstColor uint64 = 0x000000000000a000
	StateBlendSrcAlphaSat uint64 = 0x000000000000b000
	StateBlendFactor      uint64 = 0x000000000000c000
	StateBlendInvFactor   uint64 = 0x000000000000d000
	StateBlendShift              = 12
	StateBlendMask        uint64 = 0x000000000ffff000

	StateBlendEquationAdd    uint64 = 0x0000000000000000
	StateBlendEquationSub    uint64 = 0x0000000010000000
	StateBlendEquationRevSub uint64 = 0x0000000020000000
	StateBlendEquationMin    uint64 = 0x0000000030000000
	StateBlendEquationMax    uint64 = 0x0000000040000000
	StateBlendEquationShift         = 28
	StateBlendEquationMask   uint64 = 0x00000003f0000000

	StateBlendIndependent     uint64 = 0x0000000400000000
	StateBlendAlphaToCoverage uint64 = 0x0000000800000000

	StateCullCW    uint64 = 0x0000001000000000
	StateCullCCW   uint64 = 0x0000002000000000
	StateCullShift        = 36
	StateCullMask  uint64 = 0x0000003000000000

	StateFrontCCW uint64 = 0x0000008000000000

	StateAlphaRefShift        = 40
	StateAlphaRefMask  uint64 = 0x0000ff0000000000

	StatePtTriStrip  uint64 = 0x0001000000000000
	StatePtLines     uint64 = 0x0002000000000000
	StatePtLineStrip uint64 = 0x0003000000000000
	StatePtPoints    uint64 = 0x0004000000000000
	StatePtShift            = 48
	StatePtMask      uint64 = 0x0007000000000000

	StateMSAA               uint64 = 0x1000000000000000
	StateLineAA             uint64 = 0x2000000000000000
	StateConservativeRaster uint64 = 0x4000000000000000

	StateNone uint64 = 0

	StateDefault = StateWriteRGB | StateWriteAlpha | StateWriteZ | StateDepthTestLess | StateCullCW | StateMSAA
)

// StateAlphaRef encodes the alpha test reference value.
func StateAlphaRef(ref uint8) uint64 {
	return (uint64(ref) << StateAlphaRefShift) & StateAlphaRefMask
}

func StateBlendFuncSeparate(srcRGB, dstRGB, srcA, dstA uint64) uint64 {
	return srcRGB | dstRGB<<4 | srcA<<8 | dstA<<12
}

func StateBlendEquationSeparate(rgb, a uint64) uint64 {
	return rgb | a<<3
}

func StateBlendFunc(src, dst uint64) uint64 {
	return StateBlendFuncSeparate(src, dst, src, dst)
}

func StateBlendEquation(eq uint64) uint64 {
	return StateBlendEquationSeparate(eq, eq)
}

var (
	StateBlendAdd      = StateBlendFunc(StateBlendOne, StateBlendOne)
	StateBlendAlpha    = StateBlendFunc(StateBlendSrcAlpha, StateBlendInvSrcAlpha)
	StateBlendMultiply = StateBlendFunc(StateBlendDstColor, StateBlendZero)
)

// Topology is the primitive type selected by StatePtMask.
type Topology uint8

const (
	TopologyTriList Topology = iota
	TopologyTriStrip
	TopologyLineList
	TopologyLineStrip
	TopologyPointList
	TopologyCount
)

func TopologyFromState(state uint64) Topology {
	t := Topology((state & StatePtMask) >> StatePtShift)
	if t >= TopologyCount {
		return TopologyTriList
	}
	return t
}

func (t Topology) String() string {
	return [...]string{"TriList", "TriStrip", "Line", "LineStrip", "Point"}[t]
}

// PrimitiveCount returns how many primitives count indices or vertices make.
func (t Topology) PrimitiveCount(count uint32) uint32 {
	switch t {
	case TopologyTriList:
		return count / 3
	case TopologyTriStrip:
		if count < 3 {
			return 0
		}
		return count - 2
	case TopologyLineList:
		return count / 2
	case TopologyLineStrip:
		if count < 2 {
			return 0
		}
		return count - 1
	}
	return count
}

// Stencil bits per face; a DrawItem packs front | back<<32.
const (
	StencilFuncRefShift         = 0
	StencilFuncRefMask   uint32 = 0x000000ff
	StencilFuncRMaskShift       = 8
	StencilFuncRMaskMask uint32 = 0x0000ff00

	StencilTestLess     uint32 = 0x00010000
	StencilTestLEqual   uint32 = 0x00020000
	StencilTestEqual    uint32 = 0x00030000
	StencilTestGEqual   uint32 = 0x00040000
	StencilTestGreater  uint32 = 0x00050000
	StencilTestNotEqual uint32 = 0x00060000
	StencilTestNever    uint32 = 0x00070000
	StencilTestAlways   uint32 = 0x00080000
	StencilTestShift           = 16
	StencilTestMask     uint32 = 0x000f0000

	StencilOpFailSZero    uint32 = 0x00000000
	StencilOpFailSKeep    uint32 = 0x00100000
	StencilOpFailSReplace uint32 = 0x00200000
	StencilOpFailSIncr    uint32 = 0x00300000
	StencilOpFailSIncrSat uint32 = 0x00400000
	StencilOpFailSDecr    uint32 = 0x00500000
	StencilOpFailSDecrSat uint32 = 0x00600000
	StencilOpFailSInvert  uint32 = 0x00700000
	StencilOpFailSShift          = 20
	StencilOpFailSMask    uint32 = 0x00f00000

	StencilOpFailZZero    uint32 = 0x00000000
	StencilOpFailZKeep    uint32 = 0x01000000
	StencilOpFailZReplace uint32 = 0x02000000
	StencilOpFailZIncr    uint32 = 0x03000000
	StencilOpFailZIncrSat uint32 = 0x04000000
	StencilOpFailZDecr    uint32 = 0x05000000
	StencilOpFailZDecrSat uint32 = 0x06000000
	StencilOpFailZInvert  uint32 = 0x07000000
	StencilOpFailZShift          = 24
	StencilOpFailZMask    uint32 = 0x0f000000

	StencilOpPassZZero    uint32 = 0x00000000
	StencilOpPassZKeep    uint32 = 0x10000000
	StencilOpPassZReplace uint32 = 0x20000000
	StencilOpPassZIncr    uint32 = 0x30000000
	StencilOpPassZIncrSat uint32 = 0x40000000
	StencilOpPassZDecr    uint32 = 0x50000000
	StencilOpPassZDecrSat uint32 = 0x60000000
	StencilOpPassZInvert  uint32 = 0x70000000
	StencilOpPassZShift          = 28
	StencilOpPassZMask    uint32 = 0xf0000000

	StencilNone uint32 = 0
)

func StencilFuncRef(ref uint8) uint32 {
	return (uint32(ref) << StencilFuncRefShift) & StencilFuncRefMask
}

func StencilFuncRMask(mask uint8) uint32 {
	return (uint32(mask) << StencilFuncRMaskShift) & StencilFuncRMaskMask
}

// PackStencil combines front and back face stencil bits. A zero back face
// means "same as front".
func PackStencil(front, back uint32) uint64 {
	return uint64(front) | uint64(back)<<32
}

func UnpackStencil(stencil uint64) (front, back uint32) {
	front = uint32(stencil)
	back = uint32(stencil >> 32)
	if back == StencilNone {
		back = front
	}
	return front, back
}

// Sampler flags carried per texture binding.
const (
	SamplerUMirror uint32 = 0x00000001
	SamplerUClamp  uint32 = 0x00000002
	SamplerUBorder uint32 = 0x00000003
	SamplerUShift         = 0
	SamplerUMask   uint32 = 0x00000003
	SamplerVMirror uint32 = 0x00000004
	SamplerVClamp  uint32 = 0x00000008
	SamplerVBorder uint32 = 0x0000000c
	SamplerVShift         = 2
	SamplerVMask   uint32 = 0x0000000c
	SamplerWMirror uint32 = 0x00000010
	SamplerWClamp  uint32 = 0x00000020
	SamplerWBorder uint32 = 0x00000030
	SamplerWShift         = 4
	SamplerWMask   uint32 = 0x00000030

	SamplerMinPoint       uint32 = 0x00000040
	SamplerMinAnisotropic uint32 = 0x00000080
	SamplerMinShift              = 6
	SamplerMinMask        uint32 = 0x000000c0
	SamplerMagPoint       uint32 = 0x00000100
	SamplerMagAnisotropic uint32 = 0x00000200
	SamplerMagShift              = 8
	SamplerMagMask        uint32 = 0x00000300
	SamplerMipPoint       uint32 = 0x00000400
	SamplerMipShift              = 10
	SamplerMipMask        uint32 = 0x00000400

	SamplerCompareLess     uint32 = 0x00010000
	SamplerCompareLEqual   uint32 = 0x00020000
	SamplerCompareEqual    uint32 = 0x00030000
	SamplerCompareGEqual   uint32 = 0x00040000
	SamplerCompareGreater  uint32 = 0x00050000
	SamplerCompareNotEqual uint32 = 0x00060000
	SamplerCompareNever    uint32 = 0x00070000
	SamplerCompareAlways   uint32 = 0x00080000
	SamplerCompareShift           = 16
	SamplerCompareMask     uint32 = 0x000f0000

	SamplerBorderColorShift        = 24
	SamplerBorderColorMask  uint32 = 0x0f000000

	// SamplerUseTextureFlags selects the flags the texture was created with.
	SamplerUseTextureFlags uint32 = 0x10000000

	SamplerBitsMask = SamplerUMask | SamplerVMask | SamplerWMask | SamplerMinMask |
		SamplerMagMask | SamplerMipMask | SamplerCompareMask | SamplerBorderColorMask
)

// ClearFlags select which attachments a view clears.
type ClearFlags uint16

const (
	ClearNone    ClearFlags = 0x0000
	ClearColor   ClearFlags = 0x0001
	ClearDepth   ClearFlags = 0x0002
	ClearStencil ClearFlags = 0x0004
)

// ResetFlags accompany a Resolution.
type ResetFlags uint32

const (
	ResetNone       ResetFlags = 0x00000000
	ResetMSAAX2     ResetFlags = 0x00000010
	ResetMSAAX4     ResetFlags = 0x00000020
	ResetMSAAX8     ResetFlags = 0x00000030
	ResetMSAAX16    ResetFlags = 0x00000040
	ResetMSAAShift             = 4
	ResetMSAAMask   ResetFlags = 0x00000070
	ResetFullscreen ResetFlags = 0x00000001
	ResetVSync      ResetFlags = 0x00000080
	ResetCapture    ResetFlags = 0x00000100
	ResetFlush      ResetFlags = 0x00002000
	ResetSRGB       ResetFlags = 0x00010000
	// ResetSuspend asks the device to trim its memory instead of touching buffers.
	ResetSuspend ResetFlags = 0x00080000
)

// MSAASamples returns the sample count requested by the MSAA bits.
func (f ResetFlags) MSAASamples() uint32 {
	return 1 << ((f & ResetMSAAMask) >> ResetMSAAShift)
}

func ResetMSAAFromSamples(samples uint8) ResetFlags {
	switch samples {
	case 2:
		return ResetMSAAX2
	case 4:
		return ResetMSAAX4
	case 8:
		return ResetMSAAX8
	case 16:
		return ResetMSAAX16
	}
	return ResetNone
}

// DebugFlags are per-frame diagnostics toggles.
type DebugFlags uint32

const (
	DebugNone      DebugFlags = 0x00000000
	DebugWireframe DebugFlags = 0x00000001
	// DebugIFH makes every draw an infinitely fast no-op, for measuring CPU cost.
	DebugIFH   DebugFlags = 0x00000002
	DebugStats DebugFlags = 0x00000004
	DebugText  DebugFlags = 0x00000008
)
