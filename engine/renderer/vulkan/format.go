package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
)

var textureFormats = [metadata.FormatCount]vk.Format{
	metadata.FormatUnknown: vk.FormatUndefined,
	metadata.FormatR8:      vk.FormatR8Unorm,
	metadata.FormatRG8:     vk.FormatR8g8Unorm,
	metadata.FormatRGBA8:   vk.FormatR8g8b8a8Unorm,
	metadata.FormatBGRA8:   vk.FormatB8g8r8a8Unorm,
	metadata.FormatRGBA16F: vk.FormatR16g16b16a16Sfloat,
	metadata.FormatRGBA32F: vk.FormatR32g32b32a32Sfloat,
	metadata.FormatR32F:    vk.FormatR32Sfloat,
	metadata.FormatR32U:    vk.FormatR32Uint,
	metadata.FormatD16:     vk.FormatD16Unorm,
	metadata.FormatD24S8:   vk.FormatD24UnormS8Uint,
	metadata.FormatD32F:    vk.FormatD32Sfloat,
}

func textureFormat(f metadata.TextureFormat, srgb bool) vk.Format {
	if f >= metadata.FormatCount {
		return vk.FormatUndefined
	}
	if srgb {
		switch f {
		case metadata.FormatRGBA8:
			return vk.FormatR8g8b8a8Srgb
		case metadata.FormatBGRA8:
			return vk.FormatB8g8r8a8Srgb
		}
	}
	return textureFormats[f]
}

// fromVkFormat maps a surface format back. Unknown formats report
// FormatUnknown.
func fromVkFormat(f vk.Format) (metadata.TextureFormat, bool) {
	switch f {
	case vk.FormatR8g8b8a8Srgb:
		return metadata.FormatRGBA8, true
	case vk.FormatB8g8r8a8Srgb:
		return metadata.FormatBGRA8, true
	}
	for i, vf := range textureFormats {
		if vf == f && i != int(metadata.FormatUnknown) {
			return metadata.TextureFormat(i), false
		}
	}
	return metadata.FormatUnknown, false
}

func aspectMask(f metadata.TextureFormat) vk.ImageAspectFlags {
	switch {
	case f.HasStencil():
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	case f.IsDepth():
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

func vertexFormat(f gpu.VertexFormat) vk.Format {
	switch f {
	case gpu.VertexFormatUByte4:
		return vk.FormatR8g8b8a8Uint
	case gpu.VertexFormatUByte4Norm:
		return vk.FormatR8g8b8a8Unorm
	case gpu.VertexFormatShort2:
		return vk.FormatR16g16Sint
	case gpu.VertexFormatShort4:
		return vk.FormatR16g16b16a16Sint
	case gpu.VertexFormatShort2Norm:
		return vk.FormatR16g16Snorm
	case gpu.VertexFormatShort4Norm:
		return vk.FormatR16g16b16a16Snorm
	case gpu.VertexFormatHalf2:
		return vk.FormatR16g16Sfloat
	case gpu.VertexFormatHalf4:
		return vk.FormatR16g16b16a16Sfloat
	case gpu.VertexFormatFloat1:
		return vk.FormatR32Sfloat
	case gpu.VertexFormatFloat2:
		return vk.FormatR32g32Sfloat
	case gpu.VertexFormatFloat3:
		return vk.FormatR32g32b32Sfloat
	case gpu.VertexFormatFloat4:
		return vk.FormatR32g32b32a32Sfloat
	}
	return vk.FormatUndefined
}

// attributeLocation maps a vertex semantic onto the shader input location.
func attributeLocation(semantic string, index uint32) (uint32, bool) {
	base, ok := semanticLocation[semantic]
	if !ok {
		return 0, false
	}
	switch semantic {
	case "COLOR":
		if index > 3 {
			return 0, false
		}
		return base + index, true
	case "TEXCOORD":
		if index > 7 {
			return 0, false
		}
		return base + index, true
	}
	return base, index == 0
}

func sampleCount(n uint32) vk.SampleCountFlagBits {
	switch {
	case n >= 64:
		return vk.SampleCount64Bit
	case n >= 32:
		return vk.SampleCount32Bit
	case n >= 16:
		return vk.SampleCount16Bit
	case n >= 8:
		return vk.SampleCount8Bit
	case n >= 4:
		return vk.SampleCount4Bit
	case n >= 2:
		return vk.SampleCount2Bit
	}
	return vk.SampleCount1Bit
}

func compareOp(f gpu.CompareFunc) vk.CompareOp {
	switch f {
	case gpu.CompareLess:
		return vk.CompareOpLess
	case gpu.CompareLEqual:
		return vk.CompareOpLessOrEqual
	case gpu.CompareEqual:
		return vk.CompareOpEqual
	case gpu.CompareGEqual:
		return vk.CompareOpGreaterOrEqual
	case gpu.CompareGreater:
		return vk.CompareOpGreater
	case gpu.CompareNotEqual:
		return vk.CompareOpNotEqual
	case gpu.CompareNever:
		return vk.CompareOpNever
	}
	return vk.CompareOpAlways
}

var blendFactors = [...]vk.BlendFactor{
	gpu.BlendZero:           vk.BlendFactorZero,
	gpu.BlendOne:            vk.BlendFactorOne,
	gpu.BlendSrcColor:       vk.BlendFactorSrcColor,
	gpu.BlendInvSrcColor:    vk.BlendFactorOneMinusSrcColor,
	gpu.BlendSrcAlpha:       vk.BlendFactorSrcAlpha,
	gpu.BlendInvSrcAlpha:    vk.BlendFactorOneMinusSrcAlpha,
	gpu.BlendDstAlpha:       vk.BlendFactorDstAlpha,
	gpu.BlendInvDstAlpha:    vk.BlendFactorOneMinusDstAlpha,
	gpu.BlendDstColor:       vk.BlendFactorDstColor,
	gpu.BlendInvDstColor:    vk.BlendFactorOneMinusDstColor,
	gpu.BlendSrcAlphaSat:    vk.BlendFactorSrcAlphaSaturate,
	gpu.BlendFactorColor:    vk.BlendFactorConstantColor,
	gpu.BlendInvFactorColor: vk.BlendFactorOneMinusConstantColor,
}

func blendFactor(f gpu.BlendFactor) vk.BlendFactor {
	if int(f) >= len(blendFactors) {
		return vk.BlendFactorOne
	}
	return blendFactors[f]
}

func blendOp(op gpu.BlendOp) vk.BlendOp {
	switch op {
	case gpu.BlendOpSub:
		return vk.BlendOpSubtract
	case gpu.BlendOpRevSub:
		return vk.BlendOpReverseSubtract
	case gpu.BlendOpMin:
		return vk.BlendOpMin
	case gpu.BlendOpMax:
		return vk.BlendOpMax
	}
	return vk.BlendOpAdd
}

func stencilOp(op gpu.StencilOp) vk.StencilOp {
	switch op {
	case gpu.StencilZero:
		return vk.StencilOpZero
	case gpu.StencilReplace:
		return vk.StencilOpReplace
	case gpu.StencilIncr:
		return vk.StencilOpIncrementAndWrap
	case gpu.StencilIncrSat:
		return vk.StencilOpIncrementAndClamp
	case gpu.StencilDecr:
		return vk.StencilOpDecrementAndWrap
	case gpu.StencilDecrSat:
		return vk.StencilOpDecrementAndClamp
	case gpu.StencilInvert:
		return vk.StencilOpInvert
	}
	return vk.StencilOpKeep
}

func filter(f gpu.FilterMode) vk.Filter {
	if f == gpu.FilterPoint {
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

func mipmapMode(f gpu.FilterMode) vk.SamplerMipmapMode {
	if f == gpu.FilterPoint {
		return vk.SamplerMipmapModeNearest
	}
	return vk.SamplerMipmapModeLinear
}

func addressMode(a gpu.AddressMode) vk.SamplerAddressMode {
	switch a {
	case gpu.AddressMirror:
		return vk.SamplerAddressModeMirroredRepeat
	case gpu.AddressClamp:
		return vk.SamplerAddressModeClampToEdge
	case gpu.AddressBorder:
		return vk.SamplerAddressModeClampToBorder
	}
	return vk.SamplerAddressModeRepeat
}

// borderColor picks the closest of the fixed border colors.
func borderColor(c [4]float32) vk.BorderColor {
	switch {
	case c[3] < 0.5:
		return vk.BorderColorFloatTransparentBlack
	case c[0] >= 0.5 && c[1] >= 0.5 && c[2] >= 0.5:
		return vk.BorderColorFloatOpaqueWhite
	}
	return vk.BorderColorFloatOpaqueBlack
}

func topology(t metadata.Topology) vk.PrimitiveTopology {
	switch t {
	case metadata.TopologyTriStrip:
		return vk.PrimitiveTopologyTriangleStrip
	case metadata.TopologyLineList:
		return vk.PrimitiveTopologyLineList
	case metadata.TopologyLineStrip:
		return vk.PrimitiveTopologyLineStrip
	case metadata.TopologyPointList:
		return vk.PrimitiveTopologyPointList
	}
	return vk.PrimitiveTopologyTriangleList
}

func indexType(f gpu.IndexFormat) vk.IndexType {
	if f == gpu.Index32 {
		return vk.IndexTypeUint32
	}
	return vk.IndexTypeUint16
}

func bool32(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}
