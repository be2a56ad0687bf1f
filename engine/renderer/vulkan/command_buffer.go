package vulkan

import (
	vk "github.com/goki/vulkan"
)

type commandBufferState uint8

const (
	commandBufferNotAllocated commandBufferState = iota
	commandBufferReady
	commandBufferRecording
	commandBufferInRenderPass
	commandBufferRecordingEnded
	commandBufferSubmitted
)

type commandBuffer struct {
	handle vk.CommandBuffer
	state  commandBufferState
}

func newCommandBuffer(dev vk.Device, pool vk.CommandPool, primary bool) (*commandBuffer, error) {
	level := vk.CommandBufferLevelSecondary
	if primary {
		level = vk.CommandBufferLevelPrimary
	}
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              level,
	}
	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(dev, &info, handles); res != vk.Success {
		return nil, check("vkAllocateCommandBuffers", res)
	}
	return &commandBuffer{handle: handles[0], state: commandBufferReady}, nil
}

func (cb *commandBuffer) free(dev vk.Device, pool vk.CommandPool) {
	if cb.handle != nil {
		vk.FreeCommandBuffers(dev, pool, 1, []vk.CommandBuffer{cb.handle})
	}
	cb.handle = nil
	cb.state = commandBufferNotAllocated
}

func (cb *commandBuffer) begin(singleUse bool) error {
	info := vk.CommandBufferBeginInfo{SType: vk.StructureTypeCommandBufferBeginInfo}
	if singleUse {
		info.Flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if res := vk.BeginCommandBuffer(cb.handle, &info); res != vk.Success {
		return check("vkBeginCommandBuffer", res)
	}
	cb.state = commandBufferRecording
	return nil
}

func (cb *commandBuffer) end() error {
	if res := vk.EndCommandBuffer(cb.handle); res != vk.Success {
		return check("vkEndCommandBuffer", res)
	}
	cb.state = commandBufferRecordingEnded
	return nil
}

func (cb *commandBuffer) reset() error {
	if res := vk.ResetCommandBuffer(cb.handle, 0); res != vk.Success {
		return check("vkResetCommandBuffer", res)
	}
	cb.state = commandBufferReady
	return nil
}

func (cb *commandBuffer) recording() bool {
	return cb.state == commandBufferRecording || cb.state == commandBufferInRenderPass
}

// beginSingleUse allocates a one shot command buffer from the upload pool.
func (d *Device) beginSingleUse() (*commandBuffer, error) {
	cb, err := newCommandBuffer(d.device, d.uploadPool, true)
	if err != nil {
		return nil, err
	}
	if err := cb.begin(true); err != nil {
		cb.free(d.device, d.uploadPool)
		return nil, err
	}
	return cb, nil
}

// endSingleUse submits cb, waits for the queue to drain and frees it.
func (d *Device) endSingleUse(cb *commandBuffer) error {
	defer cb.free(d.device, d.uploadPool)
	if err := cb.end(); err != nil {
		return err
	}
	return d.locks.safeCall(queueManagement, func() error {
		submit := vk.SubmitInfo{
			SType:              vk.StructureTypeSubmitInfo,
			CommandBufferCount: 1,
			PCommandBuffers:    []vk.CommandBuffer{cb.handle},
		}
		if res := vk.QueueSubmit(d.queue, 1, []vk.SubmitInfo{submit}, vk.NullFence); res != vk.Success {
			return d.lost(check("vkQueueSubmit", res))
		}
		if res := vk.QueueWaitIdle(d.queue); res != vk.Success {
			return d.lost(check("vkQueueWaitIdle", res))
		}
		return nil
	})
}
