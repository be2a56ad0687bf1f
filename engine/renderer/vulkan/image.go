package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
)

// Texture is a device local image. A texture returned by SwapChain.BackBuffer
// stands for whichever swap chain image is acquired this frame.
type Texture struct {
	d      *Device
	desc   gpu.TextureDesc
	format vk.Format
	image  vk.Image
	memory vk.DeviceMemory
	layout vk.ImageLayout
	layers uint32
	swap   *SwapChain
}

func (t *Texture) Desc() gpu.TextureDesc { return t.desc }

func (t *Texture) Release() {
	if t.swap != nil || t.image == nil {
		return
	}
	d, image, memory := t.d, t.image, t.memory
	t.image, t.memory = nil, nil
	d.destroyLater(func() {
		vk.DestroyImage(d.device, image, nil)
		vk.FreeMemory(d.device, memory, nil)
	})
}

func (t *Texture) aspect() vk.ImageAspectFlags {
	return aspectMask(t.desc.Format)
}

// target returns the image and the tracked layout. For the back buffer this
// acquires the next swap chain image on first use in a frame.
func (t *Texture) target(c *Context) (vk.Image, *vk.ImageLayout) {
	if t.swap != nil {
		return t.swap.current(c)
	}
	return t.image, &t.layout
}

func (t *Texture) subresourceRange() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     t.aspect(),
		BaseMipLevel:   0,
		LevelCount:     uint32(max(t.desc.Mips, 1)),
		BaseArrayLayer: 0,
		LayerCount:     t.layers,
	}
}

func (d *Device) CreateTexture(desc gpu.TextureDesc, data []byte) (gpu.Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, gpu.Check("CreateTexture", gpu.InvalidArg)
	}
	desc.Depth = max(desc.Depth, 1)
	desc.Mips = max(desc.Mips, 1)
	desc.Layers = max(desc.Layers, 1)
	desc.Samples = max(desc.Samples, 1)
	if desc.Usage == 0 {
		desc.Usage = gpu.UsageSampled
	}

	t := &Texture{d: d, desc: desc, layout: vk.ImageLayoutUndefined, layers: uint32(desc.Layers)}
	if desc.Format.IsDepth() {
		t.format = d.pd.depthStencilFormat(desc.Format)
	} else {
		t.format = textureFormat(desc.Format, false)
	}
	if t.format == vk.FormatUndefined {
		return nil, fmt.Errorf("texture format %s: %w", desc.Format, core.ErrUnsupported)
	}

	usage := vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit
	if desc.Usage&gpu.UsageSampled != 0 {
		usage |= vk.ImageUsageSampledBit
	}
	if desc.Usage&gpu.UsageRenderTarget != 0 {
		usage |= vk.ImageUsageColorAttachmentBit
	}
	if desc.Usage&gpu.UsageDepthStencil != 0 {
		usage |= vk.ImageUsageDepthStencilAttachmentBit
	}
	if desc.Usage&gpu.UsageStorage != 0 {
		usage |= vk.ImageUsageStorageBit
	}

	imageType := vk.ImageType2d
	var flags vk.ImageCreateFlags
	if desc.Depth > 1 {
		imageType = vk.ImageType3d
	}
	if desc.Cube {
		flags = vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
		t.layers = 6 * uint32(desc.Layers)
	}

	info := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		Flags:     flags,
		ImageType: imageType,
		Format:    t.format,
		Extent: vk.Extent3D{
			Width:  desc.Width,
			Height: desc.Height,
			Depth:  desc.Depth,
		},
		MipLevels:     uint32(desc.Mips),
		ArrayLayers:   t.layers,
		Samples:       sampleCount(desc.Samples),
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	if res := vk.CreateImage(d.device, &info, nil, &t.image); res != vk.Success {
		return nil, check("vkCreateImage", res)
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, t.image, &reqs)
	reqs.Deref()
	mem, err := d.allocate(reqs, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		vk.DestroyImage(d.device, t.image, nil)
		return nil, err
	}
	t.memory = mem
	if res := vk.BindImageMemory(d.device, t.image, t.memory, 0); res != vk.Success {
		vk.DestroyImage(d.device, t.image, nil)
		vk.FreeMemory(d.device, t.memory, nil)
		return nil, check("vkBindImageMemory", res)
	}

	if len(data) > 0 {
		if err := d.uploadTexture(t, data); err != nil {
			t.Release()
			return nil, err
		}
	}
	return t, nil
}

// uploadTexture copies the first mip of the first layer and leaves the
// image ready for sampling.
func (d *Device) uploadTexture(t *Texture, data []byte) error {
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
	transitionImage(cb.handle, t.image, t.subresourceRange(), t.layout, vk.ImageLayoutTransferDstOptimal)
	t.layout = vk.ImageLayoutTransferDstOptimal
	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{Width: t.desc.Width, Height: t.desc.Height, Depth: t.desc.Depth},
	}
	if t.desc.Format.IsDepth() {
		region.ImageSubresource.AspectMask = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	vk.CmdCopyBufferToImage(cb.handle, staging.handle, t.image, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
	if t.desc.Usage&gpu.UsageSampled != 0 {
		transitionImage(cb.handle, t.image, t.subresourceRange(), t.layout, vk.ImageLayoutShaderReadOnlyOptimal)
		t.layout = vk.ImageLayoutShaderReadOnlyOptimal
	}
	return d.endSingleUse(cb)
}

// transitionImage records a full barrier moving image between layouts.
func transitionImage(cb vk.CommandBuffer, image vk.Image, rng vk.ImageSubresourceRange, from, to vk.ImageLayout) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(vk.AccessMemoryWriteBit),
		DstAccessMask:       vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit),
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange:    rng,
	}
	vk.CmdPipelineBarrier(cb,
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

type viewKind uint8

const (
	viewShaderResource viewKind = iota
	viewUnorderedAccess
	viewRenderTarget
	viewDepthStencil
)

// View is an image view or a range of a storage buffer. Views of the back
// buffer keep one image view per swap chain image.
type View struct {
	d       *Device
	kind    viewKind
	desc    gpu.ViewDesc
	tex     *Texture
	buf     *Buffer
	handles []vk.ImageView
	format  vk.Format
	offset  vk.DeviceSize
	size    vk.DeviceSize
}

func (v *View) Release() {
	if len(v.handles) == 0 {
		return
	}
	d, handles := v.d, v.handles
	v.handles = nil
	d.framebuffers.evict(handles)
	d.destroyLater(func() {
		for _, h := range handles {
			vk.DestroyImageView(d.device, h, nil)
		}
	})
}

// imageView returns the handle for the image the view currently refers to.
func (v *View) imageView(c *Context) vk.ImageView {
	if len(v.handles) == 0 {
		return nil
	}
	if v.tex.swap != nil {
		idx, ok := v.tex.swap.acquire(c)
		if !ok || int(idx) >= len(v.handles) {
			return nil
		}
		return v.handles[idx]
	}
	return v.handles[0]
}

func (v *View) samples() uint32 {
	if v.tex == nil {
		return 1
	}
	return v.tex.desc.Samples
}

func (d *Device) CreateShaderResourceView(res gpu.Object, desc gpu.ViewDesc) (gpu.View, error) {
	return d.createView(viewShaderResource, res, desc)
}

func (d *Device) CreateUnorderedAccessView(res gpu.Object, desc gpu.ViewDesc) (gpu.View, error) {
	return d.createView(viewUnorderedAccess, res, desc)
}

func (d *Device) CreateRenderTargetView(tex gpu.Texture, desc gpu.ViewDesc) (gpu.View, error) {
	return d.createView(viewRenderTarget, tex, desc)
}

func (d *Device) CreateDepthStencilView(tex gpu.Texture, desc gpu.ViewDesc) (gpu.View, error) {
	return d.createView(viewDepthStencil, tex, desc)
}

func (d *Device) createView(kind viewKind, res gpu.Object, desc gpu.ViewDesc) (gpu.View, error) {
	switch r := res.(type) {
	case *Buffer:
		if kind != viewShaderResource && kind != viewUnorderedAccess {
			return nil, gpu.Check("CreateView", gpu.InvalidArg)
		}
		stride := uint64(max(r.desc.Stride, 1))
		v := &View{d: d, kind: kind, desc: desc, buf: r}
		v.offset = vk.DeviceSize(uint64(desc.FirstElement) * stride)
		v.size = vk.DeviceSize(vk.WholeSize)
		if desc.NumElements > 0 {
			v.size = vk.DeviceSize(uint64(desc.NumElements) * stride)
		}
		return v, nil
	case *Texture:
		return d.createImageView(kind, r, desc)
	}
	return nil, fmt.Errorf("view of %T: %w", res, core.ErrInvalidHandle)
}

func (d *Device) createImageView(kind viewKind, t *Texture, desc gpu.ViewDesc) (*View, error) {
	v := &View{d: d, kind: kind, desc: desc, tex: t, format: t.format}
	if t.swap == nil && desc.Format != metadata.FormatUnknown && desc.Format != t.desc.Format && !desc.Format.IsDepth() {
		v.format = textureFormat(desc.Format, false)
	}

	viewType := vk.ImageViewType2d
	layers := uint32(1)
	switch desc.Dimension {
	case gpu.Dim2DArray:
		viewType = vk.ImageViewType2dArray
		layers = t.layers
	case gpu.Dim3D:
		viewType = vk.ImageViewType3d
	case gpu.DimCube:
		viewType = vk.ImageViewTypeCube
		layers = 6
	}
	mips := uint32(desc.MipCount)
	if mips == 0 {
		mips = uint32(t.desc.Mips) - uint32(desc.Mip)
	}
	if kind == viewRenderTarget || kind == viewDepthStencil || kind == viewUnorderedAccess {
		mips = 1
	}

	aspect := t.aspect()
	if kind == viewShaderResource && t.desc.Format.IsDepth() {
		aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
		if desc.Stencil {
			aspect = vk.ImageAspectFlags(vk.ImageAspectStencilBit)
		}
	}

	images := []vk.Image{t.image}
	if t.swap != nil {
		images = t.swap.images
	}
	for _, img := range images {
		info := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    img,
			ViewType: viewType,
			Format:   v.format,
			Components: vk.ComponentMapping{
				R: vk.ComponentSwizzleIdentity,
				G: vk.ComponentSwizzleIdentity,
				B: vk.ComponentSwizzleIdentity,
				A: vk.ComponentSwizzleIdentity,
			},
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     aspect,
				BaseMipLevel:   uint32(desc.Mip),
				LevelCount:     mips,
				BaseArrayLayer: 0,
				LayerCount:     layers,
			},
		}
		var h vk.ImageView
		if res := vk.CreateImageView(d.device, &info, nil, &h); res != vk.Success {
			for _, prev := range v.handles {
				vk.DestroyImageView(d.device, prev, nil)
			}
			return nil, check("vkCreateImageView", res)
		}
		v.handles = append(v.handles, h)
	}
	return v, nil
}
