package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
)

const maxSurfaceExtent = 0xFFFFFFFF

// SwapChain presents into the device surface. Images are acquired lazily
// the first time the back buffer is touched in a frame.
type SwapChain struct {
	d      *Device
	desc   gpu.SwapChainDesc
	handle vk.Swapchain
	format vk.SurfaceFormat
	mode   vk.PresentMode
	vsync  bool

	images     []vk.Image
	layouts    []vk.ImageLayout
	acquired   bool
	available  []vk.Semaphore
	renderDone []vk.Semaphore
	semIndex   int
	index      uint32
	outOfDate  bool
	back       *Texture
}

// CreateSwapChain creates the swap chain of the device surface. Only one may
// exist at a time; desc.Window is ignored since the surface is bound at
// device creation.
func (d *Device) CreateSwapChain(desc gpu.SwapChainDesc) (gpu.SwapChain, error) {
	if d.swap != nil {
		return nil, fmt.Errorf("surface already has a swap chain: %w", gpu.Check("CreateSwapChain", gpu.InvalidArg))
	}
	s := &SwapChain{d: d, desc: desc, vsync: d.vsync}
	if err := s.create(vk.NullSwapchain); err != nil {
		return nil, err
	}
	d.swap = s
	return s, nil
}

// pickSurfaceFormat prefers the requested format, then the same channels in
// the other order.
func pickSurfaceFormat(formats []vk.SurfaceFormat, want metadata.TextureFormat, srgb bool) (vk.SurfaceFormat, bool) {
	candidates := []vk.Format{textureFormat(want, srgb)}
	switch want {
	case metadata.FormatRGBA8:
		candidates = append(candidates, textureFormat(metadata.FormatBGRA8, srgb))
	case metadata.FormatBGRA8:
		candidates = append(candidates, textureFormat(metadata.FormatRGBA8, srgb))
	}
	for _, c := range candidates {
		for _, f := range formats {
			if f.Format == c && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
				return f, true
			}
		}
	}
	// A single undefined entry means any format is accepted.
	if len(formats) == 1 && formats[0].Format == vk.FormatUndefined {
		return vk.SurfaceFormat{Format: candidates[0], ColorSpace: vk.ColorSpaceSrgbNonlinear}, true
	}
	return vk.SurfaceFormat{}, false
}

// pickPresentMode maps the present model and vsync onto a Vulkan present
// mode. Flip prefers mailbox when vsync is off; blit requires immediate.
func pickPresentMode(modes []vk.PresentMode, mode gpu.PresentMode, vsync bool) (vk.PresentMode, bool) {
	has := func(m vk.PresentMode) bool {
		for _, x := range modes {
			if x == m {
				return true
			}
		}
		return false
	}
	switch mode {
	case gpu.PresentFlip:
		if vsync {
			return vk.PresentModeFifo, true
		}
		for _, m := range []vk.PresentMode{vk.PresentModeMailbox, vk.PresentModeImmediate} {
			if has(m) {
				return m, true
			}
		}
		return vk.PresentModeFifo, true
	case gpu.PresentBlit:
		if !has(vk.PresentModeImmediate) {
			return 0, false
		}
		if vsync {
			return vk.PresentModeFifo, true
		}
		return vk.PresentModeImmediate, true
	}
	return 0, false
}

func chooseExtent(caps vk.SurfaceCapabilities, width, height uint32) vk.Extent2D {
	if caps.CurrentExtent.Width != maxSurfaceExtent {
		return caps.CurrentExtent
	}
	return vk.Extent2D{
		Width:  max(caps.MinImageExtent.Width, min(caps.MaxImageExtent.Width, width)),
		Height: max(caps.MinImageExtent.Height, min(caps.MaxImageExtent.Height, height)),
	}
}

func imageCount(caps vk.SurfaceCapabilities, want uint8) uint32 {
	n := max(uint32(want), caps.MinImageCount)
	if caps.MaxImageCount > 0 {
		n = min(n, caps.MaxImageCount)
	}
	return n
}

func (s *SwapChain) create(old vk.Swapchain) error {
	d := s.d
	support, err := querySwapchainSupport(d.pd.handle, d.surface)
	if err != nil {
		return d.lost(err)
	}
	format, ok := pickSurfaceFormat(support.formats, s.desc.Format, s.desc.SRGB)
	if !ok {
		return fmt.Errorf("surface format %s: %w", s.desc.Format, gpu.Check("CreateSwapChain", gpu.Unsupported))
	}
	mode, ok := pickPresentMode(support.presentModes, s.desc.Mode, s.vsync)
	if !ok {
		return fmt.Errorf("present mode %s: %w", s.desc.Mode, gpu.Check("CreateSwapChain", gpu.Unsupported))
	}
	caps := support.capabilities
	extent := chooseExtent(caps, s.desc.Width, s.desc.Height)
	if extent.Width == 0 || extent.Height == 0 {
		// Minimized window.
		return gpu.Check("CreateSwapChain", gpu.OutOfDate)
	}

	preTransform := vk.SurfaceTransformIdentityBit
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&preTransform == 0 {
		preTransform = caps.CurrentTransform
	}
	compositeAlpha := vk.CompositeAlphaOpaqueBit
	for _, a := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if caps.SupportedCompositeAlpha&vk.CompositeAlphaFlags(a) != 0 {
			compositeAlpha = a
			break
		}
	}

	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.surface,
		MinImageCount:    imageCount(caps, s.desc.BufferCount),
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage: vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit |
			vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     preTransform,
		CompositeAlpha:   compositeAlpha,
		PresentMode:      mode,
		Clipped:          vk.True,
		OldSwapchain:     old,
	}
	var handle vk.Swapchain
	if res := vk.CreateSwapchain(d.device, &info, nil, &handle); res != vk.Success {
		return d.lost(check("vkCreateSwapchain", res))
	}
	if old != vk.NullSwapchain {
		s.destroyHandles()
	}
	s.handle, s.format, s.mode = handle, format, mode

	var count uint32
	if res := vk.GetSwapchainImages(d.device, handle, &count, nil); res != vk.Success {
		return check("vkGetSwapchainImages", res)
	}
	s.images = make([]vk.Image, count)
	if res := vk.GetSwapchainImages(d.device, handle, &count, s.images); res != vk.Success {
		return check("vkGetSwapchainImages", res)
	}
	s.layouts = make([]vk.ImageLayout, count)
	for i := range s.layouts {
		s.layouts[i] = vk.ImageLayoutUndefined
	}
	if err := s.createSemaphores(int(count)); err != nil {
		return err
	}
	s.acquired, s.outOfDate = false, false
	s.desc.Width, s.desc.Height = extent.Width, extent.Height
	s.desc.BufferCount = uint8(count)

	texFormat, srgb := fromVkFormat(format.Format)
	s.desc.Format, s.desc.SRGB = texFormat, srgb
	s.back = &Texture{
		d: d,
		desc: gpu.TextureDesc{
			Width:   extent.Width,
			Height:  extent.Height,
			Depth:   1,
			Mips:    1,
			Layers:  1,
			Format:  texFormat,
			Samples: 1,
			Usage:   gpu.UsageRenderTarget | gpu.UsageReadBack,
		},
		format: format.Format,
		layers: 1,
		swap:   s,
	}
	core.LogWith("width", extent.Width, "height", extent.Height, "images", count,
		"format", texFormat, "present", mode).Debug("vulkan swap chain created")
	return nil
}

func (s *SwapChain) createSemaphores(images int) error {
	info := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	newSem := func() (vk.Semaphore, error) {
		var sem vk.Semaphore
		if res := vk.CreateSemaphore(s.d.device, &info, nil, &sem); res != vk.Success {
			return vk.NullSemaphore, check("vkCreateSemaphore", res)
		}
		return sem, nil
	}
	// One spare acquire semaphore so the next acquire never reuses one
	// still pending.
	s.available = make([]vk.Semaphore, images+1)
	s.renderDone = make([]vk.Semaphore, images)
	for i := range s.available {
		sem, err := newSem()
		if err != nil {
			return err
		}
		s.available[i] = sem
	}
	for i := range s.renderDone {
		sem, err := newSem()
		if err != nil {
			return err
		}
		s.renderDone[i] = sem
	}
	s.semIndex = 0
	return nil
}

// destroyHandles waits for the queue and destroys the semaphores and the
// swap chain. Pending image view releases run first.
func (s *SwapChain) destroyHandles() {
	d := s.d
	vk.DeviceWaitIdle(d.device)
	for _, f := range d.frames {
		if !f.started {
			d.collect(f)
		}
	}
	for _, sem := range append(s.available, s.renderDone...) {
		vk.DestroySemaphore(d.device, sem, nil)
	}
	s.available, s.renderDone = nil, nil
	if s.handle != vk.NullSwapchain {
		vk.DestroySwapchain(d.device, s.handle, nil)
		s.handle = vk.NullSwapchain
	}
	s.images, s.layouts = nil, nil
	s.acquired = false
}

func (s *SwapChain) destroy() {
	s.destroyHandles()
	if s.d.swap == s {
		s.d.swap = nil
	}
}

func (s *SwapChain) Release() {
	if s.d.device == nil {
		return
	}
	s.destroy()
}

func (s *SwapChain) Desc() gpu.SwapChainDesc { return s.desc }

// BackBuffer returns a texture standing for the image acquired in the
// current frame.
func (s *SwapChain) BackBuffer() (gpu.Texture, error) {
	if s.handle == vk.NullSwapchain {
		return nil, fmt.Errorf("back buffer: %w", core.ErrNotInitialized)
	}
	return s.back, nil
}

// ResizeBuffers recreates the swap chain in place, handing the old one over
// as OldSwapchain.
func (s *SwapChain) ResizeBuffers(width, height uint32, format metadata.TextureFormat, count uint8) gpu.Code {
	if code := s.d.Status(); code != gpu.OK {
		return code
	}
	s.desc.Width, s.desc.Height = width, height
	if format != metadata.FormatUnknown {
		s.desc.Format = format
	}
	if count > 0 {
		s.desc.BufferCount = count
	}
	s.vsync = s.d.vsync
	if err := s.create(s.handle); err != nil {
		core.LogWarn("resize swap chain: %s", err)
		return gpu.CodeOf(err)
	}
	return gpu.OK
}

// acquire acquires the next image. It returns false when the swap
// chain is out of date or the device is gone.
func (s *SwapChain) acquire(c *Context) (uint32, bool) {
	if s.acquired {
		return s.index, true
	}
	if s.outOfDate || s.handle == vk.NullSwapchain || !c.begin() {
		return 0, false
	}
	sem := s.available[s.semIndex]
	var idx uint32
	res := vk.AcquireNextImage(s.d.device, s.handle, fenceTimeout, sem, vk.NullFence, &idx)
	switch res {
	case vk.Success, vk.Suboptimal:
	case vk.ErrorOutOfDate:
		s.outOfDate = true
		return 0, false
	default:
		code := codeOf(res)
		if code.IsDeviceLost() {
			s.d.setStatus(code)
		}
		core.LogError("vkAcquireNextImage: %s", resultString(res, true))
		return 0, false
	}
	s.semIndex = (s.semIndex + 1) % len(s.available)
	s.index = idx
	s.acquired = true
	s.layouts[idx] = vk.ImageLayoutUndefined
	c.pendingWait = sem
	return idx, true
}

// current returns the acquired image and its tracked layout.
func (s *SwapChain) current(c *Context) (vk.Image, *vk.ImageLayout) {
	idx, ok := s.acquire(c)
	if !ok {
		return nil, nil
	}
	return s.images[idx], &s.layouts[idx]
}

// Present submits the frame and queues the acquired image for display. A
// change of vsync is applied by reporting OutOfDate after presenting.
func (s *SwapChain) Present(syncInterval uint32) gpu.Code {
	d, c := s.d, s.d.ctx
	if code := d.Status(); code != gpu.OK {
		return code
	}
	vsync := syncInterval > 0
	d.vsync = vsync
	if s.outOfDate {
		c.Flush()
		return gpu.OutOfDate
	}
	if !c.transition(s.back, vk.ImageLayoutPresentSrc) {
		c.Flush()
		if s.outOfDate {
			return gpu.OutOfDate
		}
		return d.Status()
	}
	idx := s.index
	if code := c.submit([]vk.Semaphore{s.renderDone[idx]}); code != gpu.OK {
		s.acquired = false
		return code
	}

	info := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{s.renderDone[idx]},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{s.handle},
		PImageIndices:      []uint32{idx},
	}
	var res vk.Result
	d.locks.safeCall(queueManagement, func() error {
		res = vk.QueuePresent(d.queue, &info)
		return nil
	})
	s.acquired = false

	switch code := codeOf(res); {
	case res == vk.Suboptimal:
		s.outOfDate = true
		return gpu.OutOfDate
	case code == gpu.OutOfDate:
		s.outOfDate = true
		return code
	case code.IsDeviceLost():
		d.setStatus(code)
		return code
	case code != gpu.OK:
		core.LogError("vkQueuePresent: %s", resultString(res, true))
		return code
	}
	if vsync != s.vsync {
		core.LogDebug("vsync changed to %t, swap chain needs recreation", vsync)
		s.outOfDate = true
		return gpu.OutOfDate
	}
	return gpu.OK
}
