package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
)

type framebufferKey struct {
	pass   vk.RenderPass
	views  [gpu.MaxColorAttachments + 1]vk.ImageView
	width  uint32
	height uint32
}

type framebufferCache struct {
	d     *Device
	items map[framebufferKey]vk.Framebuffer
}

func newFramebufferCache(d *Device) *framebufferCache {
	return &framebufferCache{d: d, items: make(map[framebufferKey]vk.Framebuffer)}
}

func (fc *framebufferCache) get(k framebufferKey, count int) (vk.Framebuffer, error) {
	unlock := fc.d.locks.lock(resourceManagement)
	defer unlock()
	if fb, ok := fc.items[k]; ok {
		return fb, nil
	}
	info := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      k.pass,
		AttachmentCount: uint32(count),
		PAttachments:    k.views[:count],
		Width:           k.width,
		Height:          k.height,
		Layers:          1,
	}
	var fb vk.Framebuffer
	if res := vk.CreateFramebuffer(fc.d.device, &info, nil, &fb); res != vk.Success {
		return nil, check("vkCreateFramebuffer", res)
	}
	fc.items[k] = fb
	return fb, nil
}

// evict drops every framebuffer that references one of views.
func (fc *framebufferCache) evict(views []vk.ImageView) {
	unlock := fc.d.locks.lock(resourceManagement)
	defer unlock()
	for k, fb := range fc.items {
		if !k.references(views) {
			continue
		}
		delete(fc.items, k)
		h := fb
		fc.d.destroyLater(func() { vk.DestroyFramebuffer(fc.d.device, h, nil) })
	}
}

func (fc *framebufferCache) evictAll() {
	unlock := fc.d.locks.lock(resourceManagement)
	defer unlock()
	for k, fb := range fc.items {
		delete(fc.items, k)
		h := fb
		fc.d.destroyLater(func() { vk.DestroyFramebuffer(fc.d.device, h, nil) })
	}
}

func (k *framebufferKey) references(views []vk.ImageView) bool {
	for _, kv := range k.views {
		if kv == nil {
			continue
		}
		for _, v := range views {
			if kv == v {
				return true
			}
		}
	}
	return false
}

func (fc *framebufferCache) destroy() {
	for k, fb := range fc.items {
		vk.DestroyFramebuffer(fc.d.device, fb, nil)
		delete(fc.items, k)
	}
}
