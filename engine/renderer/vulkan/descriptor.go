package vulkan

import (
	vk "github.com/goki/vulkan"
)

// createSetLayout builds the single descriptor set layout every program
// shares, and the pipeline layout on top of it.
func (d *Device) createSetLayout() error {
	stages := vk.ShaderStageFlags(vk.ShaderStageAll)
	bindings := make([]vk.DescriptorSetLayoutBinding, 0, numBindings)
	add := func(first, count int, kind vk.DescriptorType) {
		for i := 0; i < count; i++ {
			bindings = append(bindings, vk.DescriptorSetLayoutBinding{
				Binding:         uint32(first + i),
				DescriptorType:  kind,
				DescriptorCount: 1,
				StageFlags:      stages,
			})
		}
	}
	add(bindingVertexConstants, 1, vk.DescriptorTypeUniformBufferDynamic)
	add(bindingFragmentConstants, 1, vk.DescriptorTypeUniformBufferDynamic)
	add(bindingTextures, numTextureSlots, vk.DescriptorTypeCombinedImageSampler)
	add(bindingBufferSRV, numBufferSlots, vk.DescriptorTypeStorageBuffer)
	add(bindingBufferUAV, numBufferSlots, vk.DescriptorTypeStorageBuffer)
	add(bindingImageUAV, numUAVSlots, vk.DescriptorTypeStorageImage)

	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	if res := vk.CreateDescriptorSetLayout(d.device, &info, nil, &d.setLayout); res != vk.Success {
		return check("vkCreateDescriptorSetLayout", res)
	}

	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{d.setLayout},
	}
	if res := vk.CreatePipelineLayout(d.device, &layoutInfo, nil, &d.pipelineLayout); res != vk.Success {
		return check("vkCreatePipelineLayout", res)
	}
	return nil
}

// descriptorAllocator hands out sets for one frame slot. Pools are added
// when the current ones run dry and all are reset together.
type descriptorAllocator struct {
	pools   []vk.DescriptorPool
	current int
}

func (d *Device) newDescriptorPool() (vk.DescriptorPool, error) {
	sizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBufferDynamic, DescriptorCount: 2 * descriptorSetsPerPool},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: numTextureSlots * descriptorSetsPerPool},
		{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: 2 * numBufferSlots * descriptorSetsPerPool},
		{Type: vk.DescriptorTypeStorageImage, DescriptorCount: numUAVSlots * descriptorSetsPerPool},
	}
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       descriptorSetsPerPool,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(d.device, &info, nil, &pool); res != vk.Success {
		return nil, check("vkCreateDescriptorPool", res)
	}
	return pool, nil
}

func (a *descriptorAllocator) allocate(d *Device) (vk.DescriptorSet, error) {
	for {
		if a.current == len(a.pools) {
			pool, err := d.newDescriptorPool()
			if err != nil {
				return nil, err
			}
			a.pools = append(a.pools, pool)
		}
		info := vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     a.pools[a.current],
			DescriptorSetCount: 1,
			PSetLayouts:        []vk.DescriptorSetLayout{d.setLayout},
		}
		var set vk.DescriptorSet
		switch res := vk.AllocateDescriptorSets(d.device, &info, &set); res {
		case vk.Success:
			return set, nil
		case vk.ErrorOutOfPoolMemory, vk.ErrorFragmentedPool:
			a.current++
		default:
			return nil, check("vkAllocateDescriptorSets", res)
		}
	}
}

func (a *descriptorAllocator) reset(d *Device) {
	for _, p := range a.pools[:min(a.current+1, len(a.pools))] {
		vk.ResetDescriptorPool(d.device, p, 0)
	}
	a.current = 0
}

func (a *descriptorAllocator) destroy(d *Device) {
	for _, p := range a.pools {
		vk.DestroyDescriptorPool(d.device, p, nil)
	}
	a.pools = nil
	a.current = 0
}

// descriptorWrites collects the writes of one set. The info slices are
// preallocated so the pointers taken into them stay valid.
type descriptorWrites struct {
	writes  []vk.WriteDescriptorSet
	buffers []vk.DescriptorBufferInfo
	images  []vk.DescriptorImageInfo
}

func newDescriptorWrites() *descriptorWrites {
	return &descriptorWrites{
		writes:  make([]vk.WriteDescriptorSet, 0, numBindings),
		buffers: make([]vk.DescriptorBufferInfo, 0, numBindings),
		images:  make([]vk.DescriptorImageInfo, 0, numBindings),
	}
}

func (w *descriptorWrites) reset() {
	w.writes = w.writes[:0]
	w.buffers = w.buffers[:0]
	w.images = w.images[:0]
}

func (w *descriptorWrites) buffer(set vk.DescriptorSet, binding uint32, kind vk.DescriptorType, buf vk.Buffer, offset, size vk.DeviceSize) {
	w.buffers = append(w.buffers, vk.DescriptorBufferInfo{Buffer: buf, Offset: offset, Range: size})
	w.writes = append(w.writes, vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  kind,
		PBufferInfo:     w.buffers[len(w.buffers)-1:],
	})
}

func (w *descriptorWrites) image(set vk.DescriptorSet, binding uint32, kind vk.DescriptorType, view vk.ImageView, sampler vk.Sampler, layout vk.ImageLayout) {
	w.images = append(w.images, vk.DescriptorImageInfo{Sampler: sampler, ImageView: view, ImageLayout: layout})
	w.writes = append(w.writes, vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  kind,
		PImageInfo:      w.images[len(w.images)-1:],
	})
}

func (w *descriptorWrites) flush(d *Device) {
	if len(w.writes) > 0 {
		vk.UpdateDescriptorSets(d.device, uint32(len(w.writes)), w.writes, 0, nil)
	}
}
