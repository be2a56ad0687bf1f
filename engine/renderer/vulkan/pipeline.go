package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
)

// pipelineKey identifies a graphics pipeline. State objects are compared by
// identity; the state cache above the device already deduplicates them.
type pipelineKey struct {
	program  *program
	layout   *inputLayout
	blend    *blendState
	depth    *depthStencilState
	raster   *rasterizerState
	topology metadata.Topology
	pass     vk.RenderPass
	colors   uint32
	samples  uint32
	strides  [maxVertexBindings]uint32
}

type pipelineCache struct {
	d     *Device
	items map[pipelineKey]vk.Pipeline
}

func newPipelineCache(d *Device) *pipelineCache {
	return &pipelineCache{d: d, items: make(map[pipelineKey]vk.Pipeline)}
}

func (pc *pipelineCache) get(k pipelineKey) (vk.Pipeline, error) {
	unlock := pc.d.locks.lock(pipelineManagement)
	defer unlock()
	if p, ok := pc.items[k]; ok {
		return p, nil
	}
	p, err := pc.d.createGraphicsPipeline(&k)
	if err != nil {
		return nil, err
	}
	pc.items[k] = p
	return p, nil
}

// evict destroys every pipeline whose key matches.
func (pc *pipelineCache) evict(match func(pipelineKey) bool) {
	unlock := pc.d.locks.lock(pipelineManagement)
	defer unlock()
	for k, p := range pc.items {
		if match(k) {
			delete(pc.items, k)
			pipe := p
			pc.d.destroyLater(func() { vk.DestroyPipeline(pc.d.device, pipe, nil) })
		}
	}
}

func (pc *pipelineCache) len() int {
	unlock := pc.d.locks.lock(pipelineManagement)
	defer unlock()
	return len(pc.items)
}

func (pc *pipelineCache) destroy() {
	for k, p := range pc.items {
		vk.DestroyPipeline(pc.d.device, p, nil)
		delete(pc.items, k)
	}
}

var dynamicStates = []vk.DynamicState{
	vk.DynamicStateViewport,
	vk.DynamicStateScissor,
	vk.DynamicStateBlendConstants,
	vk.DynamicStateStencilReference,
}

func (d *Device) createGraphicsPipeline(k *pipelineKey) (vk.Pipeline, error) {
	var bindings []vk.VertexInputBindingDescription
	var attributes []vk.VertexInputAttributeDescription
	if k.layout != nil {
		attributes = k.layout.attributes
		for slot := uint32(0); slot < maxVertexBindings; slot++ {
			if !k.layout.used[slot] {
				continue
			}
			rate := vk.VertexInputRateVertex
			if k.layout.perInstance[slot] {
				rate = vk.VertexInputRateInstance
			}
			bindings = append(bindings, vk.VertexInputBindingDescription{
				Binding:   slot,
				Stride:    k.strides[slot],
				InputRate: rate,
			})
		}
	}
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: topology(k.topology),
	}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	raster := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    vk.CullModeFlags(vk.CullModeNone),
		FrontFace:   vk.FrontFaceClockwise,
		LineWidth:   1.0,
	}
	if k.raster != nil {
		raster = k.raster.info
	}

	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: sampleCount(k.samples),
		MinSampleShading:     1.0,
	}

	depth := vk.PipelineDepthStencilStateCreateInfo{
		SType:          vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthCompareOp: vk.CompareOpAlways,
		MaxDepthBounds: 1,
	}
	if k.depth != nil {
		depth = k.depth.info
	}

	attachments := make([]vk.PipelineColorBlendAttachmentState, k.colors)
	for i := range attachments {
		attachments[i] = vk.PipelineColorBlendAttachmentState{
			SrcColorBlendFactor: vk.BlendFactorOne,
			DstColorBlendFactor: vk.BlendFactorZero,
			ColorBlendOp:        vk.BlendOpAdd,
			SrcAlphaBlendFactor: vk.BlendFactorOne,
			DstAlphaBlendFactor: vk.BlendFactorZero,
			AlphaBlendOp:        vk.BlendOpAdd,
			ColorWriteMask:      colorWriteMask(0xf),
		}
	}
	if k.blend != nil {
		copy(attachments, k.blend.attachments[:])
		multisample.AlphaToCoverageEnable = bool32(k.blend.alphaToCoverage && k.samples > 1)
	}
	blend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
	}

	dynamic := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	stages := k.program.stages()
	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &raster,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &depth,
		PColorBlendState:    &blend,
		PDynamicState:       &dynamic,
		Layout:              d.pipelineLayout,
		RenderPass:          k.pass,
		Subpass:             0,
	}
	out := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(d.device, d.pipelineCache, 1, []vk.GraphicsPipelineCreateInfo{info}, nil, out); res != vk.Success {
		return nil, check("vkCreateGraphicsPipelines", res)
	}
	core.LogDebug("graphics pipeline created (%s, %d colors, %dx)", k.topology, k.colors, k.samples)
	return out[0], nil
}
