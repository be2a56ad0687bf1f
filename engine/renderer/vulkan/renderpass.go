package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
)

// renderPassKey describes the attachments of a pass. Passes load and store
// everything; clears are recorded inside the pass.
type renderPassKey struct {
	colors    [gpu.MaxColorAttachments]vk.Format
	numColors uint32
	depth     vk.Format
	samples   uint32
}

type renderPassCache struct {
	d     *Device
	items map[renderPassKey]vk.RenderPass
}

func newRenderPassCache(d *Device) *renderPassCache {
	return &renderPassCache{d: d, items: make(map[renderPassKey]vk.RenderPass)}
}

func (rc *renderPassCache) get(k renderPassKey) (vk.RenderPass, error) {
	unlock := rc.d.locks.lock(renderpassManagement)
	defer unlock()
	if p, ok := rc.items[k]; ok {
		return p, nil
	}
	p, err := rc.d.createRenderPass(k)
	if err != nil {
		return nil, err
	}
	rc.items[k] = p
	return p, nil
}

func (rc *renderPassCache) destroy() {
	for k, p := range rc.items {
		vk.DestroyRenderPass(rc.d.device, p, nil)
		delete(rc.items, k)
	}
}

func (d *Device) createRenderPass(k renderPassKey) (vk.RenderPass, error) {
	samples := sampleCount(k.samples)
	var attachments []vk.AttachmentDescription
	var colorRefs []vk.AttachmentReference
	for i := uint32(0); i < k.numColors; i++ {
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         k.colors[i],
			Samples:        samples,
			LoadOp:         vk.AttachmentLoadOpLoad,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutColorAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
		})
		colorRefs = append(colorRefs, vk.AttachmentReference{
			Attachment: i,
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
	}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorRefs)),
		PColorAttachments:    colorRefs,
	}
	if k.depth != vk.FormatUndefined {
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         k.depth,
			Samples:        samples,
			LoadOp:         vk.AttachmentLoadOpLoad,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpLoad,
			StencilStoreOp: vk.AttachmentStoreOpStore,
			InitialLayout:  vk.ImageLayoutDepthStencilAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		})
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: k.numColors,
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
	}

	info := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
	}
	var pass vk.RenderPass
	if res := vk.CreateRenderPass(d.device, &info, nil, &pass); res != vk.Success {
		return nil, check("vkCreateRenderPass", res)
	}
	return pass, nil
}
