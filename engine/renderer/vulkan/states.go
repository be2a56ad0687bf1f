package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
)

// Fixed function state is baked into pipelines, so these objects only hold
// the translated create info. Releasing one drops the pipelines built
// from it.

type blendState struct {
	d               *Device
	attachments     [gpu.MaxColorAttachments]vk.PipelineColorBlendAttachmentState
	alphaToCoverage bool
	usesConstant    bool
}

func (s *blendState) Release() { s.d.pipelines.evict(func(k pipelineKey) bool { return k.blend == s }) }

type depthStencilState struct {
	d    *Device
	info vk.PipelineDepthStencilStateCreateInfo
}

func (s *depthStencilState) Release() { s.d.pipelines.evict(func(k pipelineKey) bool { return k.depth == s }) }

type rasterizerState struct {
	d       *Device
	info    vk.PipelineRasterizationStateCreateInfo
	scissor bool
}

func (s *rasterizerState) Release() { s.d.pipelines.evict(func(k pipelineKey) bool { return k.raster == s }) }

type samplerState struct {
	d      *Device
	handle vk.Sampler
}

func (s *samplerState) Release() {
	if s.handle == nil {
		return
	}
	d, h := s.d, s.handle
	s.handle = nil
	d.destroyLater(func() { vk.DestroySampler(d.device, h, nil) })
}

type inputLayout struct {
	d          *Device
	attributes []vk.VertexInputAttributeDescription
	// perInstance is indexed by vertex buffer slot.
	perInstance [maxVertexBindings]bool
	used        [maxVertexBindings]bool
}

func (s *inputLayout) Release() { s.d.pipelines.evict(func(k pipelineKey) bool { return k.layout == s }) }

func colorWriteMask(m gpu.ColorWriteMask) vk.ColorComponentFlags {
	var out vk.ColorComponentFlagBits
	if m&gpu.WriteRed != 0 {
		out |= vk.ColorComponentRBit
	}
	if m&gpu.WriteGreen != 0 {
		out |= vk.ColorComponentGBit
	}
	if m&gpu.WriteBlue != 0 {
		out |= vk.ColorComponentBBit
	}
	if m&gpu.WriteAlpha != 0 {
		out |= vk.ColorComponentABit
	}
	return vk.ColorComponentFlags(out)
}

func usesConstantFactor(f gpu.BlendFactor) bool {
	return f == gpu.BlendFactorColor || f == gpu.BlendInvFactorColor
}

func (d *Device) CreateBlendState(desc gpu.BlendDesc) (gpu.BlendState, error) {
	s := &blendState{d: d, alphaToCoverage: desc.AlphaToCoverage}
	if desc.IndependentBlend && d.pd.features.IndependentBlend == vk.False {
		core.LogWarn("independent blend is not supported, using target 0 for all targets")
		desc.IndependentBlend = false
	}
	for i := range s.attachments {
		t := desc.Targets[0]
		if desc.IndependentBlend {
			t = desc.Targets[i]
		}
		s.attachments[i] = vk.PipelineColorBlendAttachmentState{
			BlendEnable:         bool32(t.Enable),
			SrcColorBlendFactor: blendFactor(t.Src),
			DstColorBlendFactor: blendFactor(t.Dst),
			ColorBlendOp:        blendOp(t.Op),
			SrcAlphaBlendFactor: blendFactor(t.SrcAlpha),
			DstAlphaBlendFactor: blendFactor(t.DstAlpha),
			AlphaBlendOp:        blendOp(t.OpAlpha),
			ColorWriteMask:      colorWriteMask(t.WriteMask),
		}
		if t.Enable {
			for _, f := range []gpu.BlendFactor{t.Src, t.Dst, t.SrcAlpha, t.DstAlpha} {
				s.usesConstant = s.usesConstant || usesConstantFactor(f)
			}
		}
	}
	return s, nil
}

func stencilFace(f gpu.StencilFace, read, write uint8) vk.StencilOpState {
	return vk.StencilOpState{
		FailOp:      stencilOp(f.Fail),
		PassOp:      stencilOp(f.Pass),
		DepthFailOp: stencilOp(f.DepthFail),
		CompareOp:   compareOp(f.Func),
		CompareMask: uint32(read),
		WriteMask:   uint32(write),
	}
}

func (d *Device) CreateDepthStencilState(desc gpu.DepthStencilDesc) (gpu.DepthStencilState, error) {
	s := &depthStencilState{d: d}
	s.info = vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   bool32(desc.DepthEnable),
		DepthWriteEnable:  bool32(desc.DepthEnable && desc.DepthWrite),
		DepthCompareOp:    compareOp(desc.DepthFunc),
		StencilTestEnable: bool32(desc.StencilEnable),
		Front:             stencilFace(desc.Front, desc.ReadMask, desc.WriteMask),
		Back:              stencilFace(desc.Back, desc.ReadMask, desc.WriteMask),
		MinDepthBounds:    0,
		MaxDepthBounds:    1,
	}
	return s, nil
}

func (d *Device) CreateRasterizerState(desc gpu.RasterizerDesc) (gpu.RasterizerState, error) {
	s := &rasterizerState{d: d, scissor: desc.Scissor}
	mode := vk.PolygonModeFill
	if desc.Fill == gpu.FillWireframe {
		if d.pd.features.FillModeNonSolid == vk.True {
			mode = vk.PolygonModeLine
		} else {
			core.LogWarn("wireframe fill is not supported")
		}
	}
	cull := vk.CullModeNone
	switch desc.Cull {
	case gpu.CullFront:
		cull = vk.CullModeFrontBit
	case gpu.CullBack:
		cull = vk.CullModeBackBit
	}
	front := vk.FrontFaceClockwise
	if desc.FrontCCW {
		front = vk.FrontFaceCounterClockwise
	}
	s.info = vk.PipelineRasterizationStateCreateInfo{
		SType:            vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable: bool32(!desc.DepthClip && d.pd.features.DepthClamp == vk.True),
		PolygonMode:      mode,
		CullMode:         vk.CullModeFlags(cull),
		FrontFace:        front,
		LineWidth:        1.0,
	}
	return s, nil
}

func (d *Device) CreateSamplerState(desc gpu.SamplerDesc) (gpu.SamplerState, error) {
	info := vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    filter(desc.Mag),
		MinFilter:    filter(desc.Min),
		MipmapMode:   mipmapMode(desc.Mip),
		AddressModeU: addressMode(desc.U),
		AddressModeV: addressMode(desc.V),
		AddressModeW: addressMode(desc.W),
		MaxLod:       1000,
		BorderColor:  borderColor(desc.BorderColor),
	}
	if desc.Min == gpu.FilterAnisotropic || desc.Mag == gpu.FilterAnisotropic {
		if d.pd.features.SamplerAnisotropy == vk.True {
			info.AnisotropyEnable = vk.True
			info.MaxAnisotropy = min(float32(max(desc.MaxAnisotropy, 1)), d.pd.limits.MaxSamplerAnisotropy)
		}
	}
	if desc.Compare != gpu.CompareDisabled {
		info.CompareEnable = vk.True
		info.CompareOp = compareOp(desc.Compare)
	}
	s := &samplerState{d: d}
	if res := vk.CreateSampler(d.device, &info, nil, &s.handle); res != vk.Success {
		return nil, check("vkCreateSampler", res)
	}
	return s, nil
}

func (d *Device) CreateInputLayout(desc gpu.InputLayoutDesc) (gpu.InputLayout, error) {
	s := &inputLayout{d: d}
	for _, e := range desc.Elements {
		loc, ok := attributeLocation(e.Semantic, e.Index)
		if !ok {
			return nil, fmt.Errorf("input layout semantic %s%d: %w", e.Semantic, e.Index, core.ErrUnsupported)
		}
		if e.Slot >= maxVertexBindings {
			return nil, fmt.Errorf("input layout slot %d: %w", e.Slot, gpu.Check("CreateInputLayout", gpu.InvalidArg))
		}
		format := vertexFormat(e.Format)
		if format == vk.FormatUndefined {
			return nil, fmt.Errorf("vertex format %d: %w", e.Format, core.ErrUnsupported)
		}
		s.attributes = append(s.attributes, vk.VertexInputAttributeDescription{
			Location: loc,
			Binding:  e.Slot,
			Format:   format,
			Offset:   e.Offset,
		})
		s.used[e.Slot] = true
		if e.PerInstance {
			s.perInstance[e.Slot] = true
		}
	}
	return s, nil
}
