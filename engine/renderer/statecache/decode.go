package statecache

import (
	"math"

	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
)

const (
	blendHashMask = metadata.StateBlendMask |
		metadata.StateBlendEquationMask |
		metadata.StateBlendIndependent |
		metadata.StateBlendAlphaToCoverage |
		metadata.StateWriteRGB |
		metadata.StateWriteAlpha

	depthHashMask = metadata.StateWriteZ | metadata.StateDepthTestMask

	rasterHashMask = metadata.StateCullMask |
		metadata.StateFrontCCW |
		metadata.StateMSAA |
		metadata.StateLineAA |
		metadata.StateConservativeRaster

	// Bits outside rasterHashMask that carry the wireframe and scissor switches.
	rasterWireframeBit = uint64(1) << 0
	rasterScissorBit   = uint64(1) << 1
)

// BlendHash keys a blend state. The per-target word only matters with
// independent blending, so it is left out otherwise.
func BlendHash(state uint64, rgba uint32) uint32 {
	h := core.NewMurmurHash2A(0)
	h.AddUint64(state & blendHashMask)
	if state&metadata.StateBlendIndependent != 0 {
		h.AddUint32(rgba)
	}
	return h.Sum32()
}

func blendFactor(v uint64) gpu.BlendFactor {
	if v == 0 {
		return gpu.BlendZero
	}
	return gpu.BlendFactor(v - 1)
}

func targetBlend(funcs, equation uint64, mask gpu.ColorWriteMask) gpu.TargetBlend {
	src := funcs & 0xf
	dst := (funcs >> 4) & 0xf
	srcA := (funcs >> 8) & 0xf
	dstA := (funcs >> 12) & 0xf
	return gpu.TargetBlend{
		Enable:    funcs != 0,
		Src:       blendFactor(src),
		Dst:       blendFactor(dst),
		Op:        gpu.BlendOp(equation & 0x7),
		SrcAlpha:  blendFactor(srcA),
		DstAlpha:  blendFactor(dstA),
		OpAlpha:   gpu.BlendOp((equation >> 3) & 0x7),
		WriteMask: mask,
	}
}

// BlendDesc decodes the blend class of a state word.
func BlendDesc(state uint64, rgba uint32) gpu.BlendDesc {
	var mask gpu.ColorWriteMask
	if state&metadata.StateWriteRGB != 0 {
		mask |= gpu.WriteRGB
	}
	if state&metadata.StateWriteAlpha != 0 {
		mask |= gpu.WriteAlpha
	}

	funcs := (state & metadata.StateBlendMask) >> metadata.StateBlendShift
	equation := (state & metadata.StateBlendEquationMask) >> metadata.StateBlendEquationShift

	desc := gpu.BlendDesc{
		AlphaToCoverage:  state&metadata.StateBlendAlphaToCoverage != 0,
		IndependentBlend: state&metadata.StateBlendIndependent != 0,
	}
	desc.Targets[0] = targetBlend(funcs, equation, mask)

	if desc.IndependentBlend {
		for i := 1; i < 4; i++ {
			packed := uint64(rgba >> (11 * (i - 1)))
			src := packed & 0xf
			dst := (packed >> 4) & 0xf
			eq := (packed >> 8) & 0x7
			desc.Targets[i] = targetBlend(src|dst<<4|src<<8|dst<<12, eq|eq<<3, mask)
		}
		for i := 4; i < gpu.MaxColorAttachments; i++ {
			desc.Targets[i] = desc.Targets[0]
		}
	} else {
		for i := 1; i < gpu.MaxColorAttachments; i++ {
			desc.Targets[i] = desc.Targets[0]
		}
	}
	return desc
}

// BlendColor returns the constant blend color carried by a draw, white when
// the draw does not use it.
func BlendColor(state uint64, rgba uint32) [4]float32 {
	if state&metadata.StateBlendIndependent != 0 || !usesBlendFactor(state) {
		return [4]float32{1, 1, 1, 1}
	}
	return [4]float32{
		float32((rgba>>24)&0xff) / 255.0,
		float32((rgba>>16)&0xff) / 255.0,
		float32((rgba>>8)&0xff) / 255.0,
		float32(rgba&0xff) / 255.0,
	}
}

func usesBlendFactor(state uint64) bool {
	funcs := (state & metadata.StateBlendMask) >> metadata.StateBlendShift
	factor := (metadata.StateBlendFactor >> metadata.StateBlendShift) & 0xf
	inv := (metadata.StateBlendInvFactor >> metadata.StateBlendShift) & 0xf
	for i := 0; i < 4; i++ {
		f := (funcs >> (4 * i)) & 0xf
		if f == factor || f == inv {
			return true
		}
	}
	return false
}

// DepthStencilHash keys a depth-stencil state. The stencil reference is set
// at bind time and is not part of the key.
func DepthStencilHash(state, stencil uint64) uint32 {
	refMask := uint64(metadata.StencilFuncRefMask) | uint64(metadata.StencilFuncRefMask)<<32
	h := core.NewMurmurHash2A(0)
	h.AddUint64(state & depthHashMask)
	h.AddUint64(stencil &^ refMask)
	return h.Sum32()
}

// StencilRef extracts the front face reference value.
func StencilRef(stencil uint64) uint8 {
	front, _ := metadata.UnpackStencil(stencil)
	return uint8((front & metadata.StencilFuncRefMask) >> metadata.StencilFuncRefShift)
}

func stencilFace(s uint32) gpu.StencilFace {
	return gpu.StencilFace{
		Func:      gpu.CompareFunc((s & metadata.StencilTestMask) >> metadata.StencilTestShift),
		Fail:      gpu.StencilOp((s & metadata.StencilOpFailSMask) >> metadata.StencilOpFailSShift),
		DepthFail: gpu.StencilOp((s & metadata.StencilOpFailZMask) >> metadata.StencilOpFailZShift),
		Pass:      gpu.StencilOp((s & metadata.StencilOpPassZMask) >> metadata.StencilOpPassZShift),
	}
}

func DepthStencilDesc(state, stencil uint64) gpu.DepthStencilDesc {
	fn := gpu.CompareFunc((state & metadata.StateDepthTestMask) >> metadata.StateDepthTestShift)
	write := state&metadata.StateWriteZ != 0
	desc := gpu.DepthStencilDesc{
		DepthEnable: fn != gpu.CompareDisabled || write,
		DepthWrite:  write,
		DepthFunc:   fn,
	}
	if desc.DepthEnable && fn == gpu.CompareDisabled {
		desc.DepthFunc = gpu.CompareAlways
	}

	front, back := metadata.UnpackStencil(stencil)
	if front|back != metadata.StencilNone {
		desc.StencilEnable = true
		desc.ReadMask = uint8((front & metadata.StencilFuncRMaskMask) >> metadata.StencilFuncRMaskShift)
		desc.WriteMask = 0xff
		desc.Front = stencilFace(front)
		desc.Back = stencilFace(back)
	}
	return desc
}

func rasterKey(state uint64, wireframe, scissor bool) uint64 {
	key := state & rasterHashMask
	if wireframe {
		key |= rasterWireframeBit
	}
	if scissor {
		key |= rasterScissorBit
	}
	return key
}

func RasterizerHash(state uint64, wireframe, scissor bool) uint32 {
	h := core.NewMurmurHash2A(0)
	h.AddUint64(rasterKey(state, wireframe, scissor))
	return h.Sum32()
}

func RasterizerDesc(state uint64, wireframe, scissor bool) gpu.RasterizerDesc {
	desc := gpu.RasterizerDesc{
		Fill:            gpu.FillSolid,
		FrontCCW:        state&metadata.StateFrontCCW != 0,
		DepthClip:       true,
		Scissor:         scissor,
		Multisample:     state&metadata.StateMSAA != 0,
		AntialiasedLine: state&metadata.StateLineAA != 0,
		Conservative:    state&metadata.StateConservativeRaster != 0,
	}
	if wireframe {
		desc.Fill = gpu.FillWireframe
	}
	switch (state & metadata.StateCullMask) >> metadata.StateCullShift {
	case 1:
		desc.Cull = gpu.CullFront
	case 2:
		desc.Cull = gpu.CullBack
	default:
		desc.Cull = gpu.CullNone
	}
	return desc
}

// SamplerHash keys a sampler from its flags and border color.
func SamplerHash(flags uint32, border [4]float32) uint32 {
	h := core.NewMurmurHash2A(0)
	h.AddUint32(flags & metadata.SamplerBitsMask)
	if samplerUsesBorder(flags) {
		for _, c := range border {
			h.AddUint32(math.Float32bits(c))
		}
	}
	return h.Sum32()
}

func samplerUsesBorder(flags uint32) bool {
	return flags&metadata.SamplerUMask == metadata.SamplerUBorder ||
		flags&metadata.SamplerVMask == metadata.SamplerVBorder ||
		flags&metadata.SamplerWMask == metadata.SamplerWBorder
}

func filter(v uint32) gpu.FilterMode {
	switch v {
	case 1:
		return gpu.FilterPoint
	case 2:
		return gpu.FilterAnisotropic
	}
	return gpu.FilterLinear
}

func SamplerDesc(flags uint32, maxAnisotropy uint32, border [4]float32) gpu.SamplerDesc {
	desc := gpu.SamplerDesc{
		Min:     filter((flags & metadata.SamplerMinMask) >> metadata.SamplerMinShift),
		Mag:     filter((flags & metadata.SamplerMagMask) >> metadata.SamplerMagShift),
		Mip:     filter((flags & metadata.SamplerMipMask) >> metadata.SamplerMipShift),
		U:       gpu.AddressMode((flags & metadata.SamplerUMask) >> metadata.SamplerUShift),
		V:       gpu.AddressMode((flags & metadata.SamplerVMask) >> metadata.SamplerVShift),
		W:       gpu.AddressMode((flags & metadata.SamplerWMask) >> metadata.SamplerWShift),
		Compare: gpu.CompareFunc((flags & metadata.SamplerCompareMask) >> metadata.SamplerCompareShift),
	}
	if desc.Min == gpu.FilterAnisotropic || desc.Mag == gpu.FilterAnisotropic {
		desc.MaxAnisotropy = maxAnisotropy
	}
	if samplerUsesBorder(flags) {
		desc.BorderColor = border
	}
	return desc
}
