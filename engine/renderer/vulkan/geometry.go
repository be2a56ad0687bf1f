package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
)

// Buffer lives in device local memory. Writes go through the staging ring
// of the frame being recorded.
type Buffer struct {
	d      *Device
	desc   gpu.BufferDesc
	handle vk.Buffer
	memory vk.DeviceMemory
}

func (b *Buffer) Desc() gpu.BufferDesc { return b.desc }

func (b *Buffer) Release() {
	if b.handle == nil {
		return
	}
	d, handle, memory := b.d, b.handle, b.memory
	b.handle, b.memory = nil, nil
	d.destroyLater(func() {
		vk.DestroyBuffer(d.device, handle, nil)
		vk.FreeMemory(d.device, memory, nil)
	})
}

func bufferUsage(u gpu.BufferUsage) vk.BufferUsageFlagBits {
	usage := vk.BufferUsageTransferSrcBit | vk.BufferUsageTransferDstBit
	if u&gpu.BufferVertex != 0 {
		usage |= vk.BufferUsageVertexBufferBit
	}
	if u&gpu.BufferIndex != 0 {
		usage |= vk.BufferUsageIndexBufferBit
	}
	if u&gpu.BufferIndirect != 0 {
		usage |= vk.BufferUsageIndirectBufferBit
	}
	if u&gpu.BufferConstant != 0 {
		usage |= vk.BufferUsageUniformBufferBit
	}
	if u&gpu.BufferStorage != 0 {
		usage |= vk.BufferUsageStorageBufferBit
	}
	return usage
}

func (d *Device) CreateBuffer(desc gpu.BufferDesc, data []byte) (gpu.Buffer, error) {
	if desc.Size == 0 {
		return nil, gpu.Check("CreateBuffer", gpu.InvalidArg)
	}
	b := &Buffer{d: d, desc: desc}
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       vk.BufferUsageFlags(bufferUsage(desc.Usage)),
		SharingMode: vk.SharingModeExclusive,
	}
	if res := vk.CreateBuffer(d.device, &info, nil, &b.handle); res != vk.Success {
		return nil, check("vkCreateBuffer", res)
	}
	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, b.handle, &reqs)
	reqs.Deref()
	mem, err := d.allocate(reqs, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		vk.DestroyBuffer(d.device, b.handle, nil)
		return nil, err
	}
	b.memory = mem
	if res := vk.BindBufferMemory(d.device, b.handle, b.memory, 0); res != vk.Success {
		vk.DestroyBuffer(d.device, b.handle, nil)
		vk.FreeMemory(d.device, b.memory, nil)
		return nil, check("vkBindBufferMemory", res)
	}

	if len(data) > 0 {
		if err := d.uploadBuffer(b, data); err != nil {
			b.Release()
			return nil, err
		}
	}
	return b, nil
}

func (d *Device) uploadBuffer(b *Buffer, data []byte) error {
	staging, err := d.newHostBuffer(uint64(len(data)), vk.BufferUsageTransferSrcBit)
	if err != nil {
		return err
	}
	defer staging.destroy(d.device)
	staging.write(0, data)

	cb, err := d.beginSingleUse()
	if err != nil {
		return err
	}
	vk.CmdCopyBuffer(cb.handle, staging.handle, b.handle, 1, []vk.BufferCopy{{
		Size: vk.DeviceSize(len(data)),
	}})
	return d.endSingleUse(cb)
}

// hostBuffer is persistently mapped, coherent memory.
type hostBuffer struct {
	handle vk.Buffer
	memory vk.DeviceMemory
	ptr    unsafe.Pointer
	size   uint64
}

func (d *Device) newHostBuffer(size uint64, usage vk.BufferUsageFlagBits) (*hostBuffer, error) {
	h := &hostBuffer{size: size}
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	if res := vk.CreateBuffer(d.device, &info, nil, &h.handle); res != vk.Success {
		return nil, check("vkCreateBuffer", res)
	}
	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, h.handle, &reqs)
	reqs.Deref()
	mem, err := d.allocate(reqs, vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		vk.DestroyBuffer(d.device, h.handle, nil)
		return nil, err
	}
	h.memory = mem
	if res := vk.BindBufferMemory(d.device, h.handle, h.memory, 0); res != vk.Success {
		h.destroy(d.device)
		return nil, check("vkBindBufferMemory", res)
	}
	if res := vk.MapMemory(d.device, h.memory, 0, vk.DeviceSize(size), 0, &h.ptr); res != vk.Success {
		h.destroy(d.device)
		return nil, check("vkMapMemory", res)
	}
	return h, nil
}

func (h *hostBuffer) write(offset uint64, data []byte) {
	vk.Memcopy(unsafe.Add(h.ptr, offset), data)
}

func (h *hostBuffer) read(offset uint64, out []byte) {
	copy(out, unsafe.Slice((*byte)(unsafe.Add(h.ptr, offset)), len(out)))
}

func (h *hostBuffer) destroy(dev vk.Device) {
	if h.ptr != nil {
		vk.UnmapMemory(dev, h.memory)
		h.ptr = nil
	}
	if h.handle != nil {
		vk.DestroyBuffer(dev, h.handle, nil)
		h.handle = nil
	}
	if h.memory != nil {
		vk.FreeMemory(dev, h.memory, nil)
		h.memory = nil
	}
}

// ring hands out aligned slices of a host buffer. It is reset once the frame
// owning it has retired. tail bytes stay reserved at the end of the buffer
// so a descriptor range starting at any offset stays in bounds.
type ring struct {
	buf  *hostBuffer
	head uint64
	tail uint64
}

func (d *Device) newRing(size, tail uint64, usage vk.BufferUsageFlagBits) (*ring, error) {
	buf, err := d.newHostBuffer(size+tail, usage)
	if err != nil {
		return nil, err
	}
	return &ring{buf: buf, tail: tail}, nil
}

// alloc returns the offset of n bytes aligned to align, or false when the
// ring is full.
func (r *ring) alloc(n, align uint64) (uint64, bool) {
	off := alignUp(r.head, align)
	if off+n > r.buf.size || off+r.tail > r.buf.size {
		return 0, false
	}
	r.head = off + n
	return off, true
}

func (r *ring) push(data []byte, align uint64) (uint64, bool) {
	off, ok := r.alloc(uint64(len(data)), align)
	if ok {
		r.buf.write(off, data)
	}
	return off, ok
}

func (r *ring) reset() { r.head = 0 }

// grow replaces the buffer with one twice as large. The old buffer is
// handed to retire since commands may still reference it.
func (r *ring) grow(d *Device, need uint64, usage vk.BufferUsageFlagBits, retire func(*hostBuffer)) error {
	size := (r.buf.size - r.tail) * 2
	for size < need {
		size *= 2
	}
	buf, err := d.newHostBuffer(size+r.tail, usage)
	if err != nil {
		return err
	}
	core.LogDebug("ring grown to %d bytes", size)
	retire(r.buf)
	r.buf = buf
	r.head = 0
	return nil
}
