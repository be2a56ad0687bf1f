package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
)

type fence struct {
	handle   vk.Fence
	signaled bool
}

func newFence(dev vk.Device, signaled bool) (*fence, error) {
	f := &fence{signaled: signaled}
	info := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	if res := vk.CreateFence(dev, &info, nil, &f.handle); res != vk.Success {
		return nil, check("vkCreateFence", res)
	}
	return f, nil
}

func (f *fence) destroy(dev vk.Device) {
	if f.handle != nil {
		vk.DestroyFence(dev, f.handle, nil)
		f.handle = nil
	}
	f.signaled = false
}

// wait blocks until the fence signals. A signaled fence returns at once.
func (f *fence) wait(dev vk.Device, timeoutNs uint64) gpu.Code {
	if f.signaled {
		return gpu.OK
	}
	res := vk.WaitForFences(dev, 1, []vk.Fence{f.handle}, vk.True, timeoutNs)
	switch res {
	case vk.Success:
		f.signaled = true
	case vk.Timeout:
		core.LogWarn("fence wait timed out")
	default:
		core.LogError("fence wait: %s", resultString(res, true))
	}
	return codeOf(res)
}

// poll reports whether the fence signaled without blocking.
func (f *fence) poll(dev vk.Device) bool {
	if f.signaled {
		return true
	}
	if vk.GetFenceStatus(dev, f.handle) == vk.Success {
		f.signaled = true
	}
	return f.signaled
}

func (f *fence) reset(dev vk.Device) error {
	if !f.signaled {
		return nil
	}
	if res := vk.ResetFences(dev, 1, []vk.Fence{f.handle}); res != vk.Success {
		return check("vkResetFences", res)
	}
	f.signaled = false
	return nil
}
