// Package vulkan implements the gpu device on top of Vulkan 1.0 through
// goki/vulkan. Resources are bound through one shared descriptor set layout;
// fixed function state is folded into cached pipelines.
package vulkan

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

// Options configures device creation.
type Options struct {
	AppName string
	// Validation enables the Khronos validation layer and routes its
	// reports to the log.
	Validation bool
	// InstanceExtensions are required by the window system, usually
	// glfw.GetRequiredInstanceExtensions.
	InstanceExtensions []string
	// ProcAddr is vkGetInstanceProcAddr, usually
	// glfw.GetVulkanGetInstanceProcAddress.
	ProcAddr unsafe.Pointer
	// CreateSurface creates the presentation surface for the window.
	CreateSurface  func(vk.Instance) (vk.Surface, error)
	PreferDiscrete bool
}

// frame is one slot of the submission ring. Everything recorded into cb
// lives until its fence signals.
type frame struct {
	cb          *commandBuffer
	fence       *fence
	descriptors descriptorAllocator
	staging     *ring
	constants   *ring
	garbage     []func()
	started     bool
}

// Device is the Vulkan gpu.Device.
type Device struct {
	opts Options

	instance      vk.Instance
	debugCallback vk.DebugReportCallback
	surface       vk.Surface
	pd            *physicalDevice
	device        vk.Device
	queue         vk.Queue
	caps          gpu.Caps
	locks         lockPool

	uploadPool     vk.CommandPool
	graphicsPool   vk.CommandPool
	pipelineCache  vk.PipelineCache
	setLayout      vk.DescriptorSetLayout
	pipelineLayout vk.PipelineLayout
	defaultSampler vk.Sampler

	passes       *renderPassCache
	framebuffers *framebufferCache
	pipelines    *pipelineCache

	frames             [framesInFlight]*frame
	current            int
	timestampFrequency uint64
	ctx                *Context
	swap               *SwapChain
	vsync              bool
	status             atomic.Int32
}

// New creates the instance, the surface and the device.
func New(opts Options) (*Device, error) {
	if opts.ProcAddr == nil {
		return nil, errors.New("vulkan: GetInstanceProcAddr is nil")
	}
	if opts.CreateSurface == nil {
		return nil, errors.New("vulkan: no surface constructor")
	}
	vk.SetGetInstanceProcAddr(opts.ProcAddr)
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("vulkan init: %w", err)
	}

	d := &Device{opts: opts}
	if err := d.createInstance(); err != nil {
		return nil, err
	}
	surface, err := opts.CreateSurface(d.instance)
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("vulkan surface: %w", err)
	}
	d.surface = surface

	if err := d.createDevice(); err != nil {
		d.Release()
		return nil, err
	}
	d.ctx = newContext(d)
	core.LogInfo("vulkan device ready: %s (%s)", d.caps.DeviceName, d.caps.Vendor)
	return d, nil
}

func (d *Device) createInstance() error {
	app := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   safeString(d.opts.AppName),
		PEngineName:        safeString("rendercore"),
	}
	extensions := append([]string{"VK_KHR_surface"}, d.opts.InstanceExtensions...)
	info := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: app,
	}
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		info.Flags |= 1
	}

	var layers []string
	if d.opts.Validation {
		if hasInstanceLayer(validationLayer) {
			layers = append(layers, validationLayer)
			extensions = append(extensions, vk.ExtDebugReportExtensionName)
		} else {
			core.LogWarn("validation requested but %s is missing", validationLayer)
		}
	}
	core.LogWith("extensions", extensions, "layers", layers).Debug("creating vulkan instance")
	info.EnabledExtensionCount = uint32(len(extensions))
	info.PpEnabledExtensionNames = safeStrings(extensions)
	info.EnabledLayerCount = uint32(len(layers))
	info.PpEnabledLayerNames = safeStrings(layers)

	if res := vk.CreateInstance(&info, nil, &d.instance); res != vk.Success {
		return check("vkCreateInstance", res)
	}
	if err := vk.InitInstance(d.instance); err != nil {
		return fmt.Errorf("vulkan instance: %w", err)
	}

	if len(layers) > 0 {
		dbg := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: debugReport,
		}
		if res := vk.CreateDebugReportCallback(d.instance, &dbg, nil, &d.debugCallback); res != vk.Success {
			core.LogWarn("debug report callback: %s", resultString(res, true))
		}
	}
	return nil
}

func hasInstanceLayer(name string) bool {
	var count uint32
	if vk.EnumerateInstanceLayerProperties(&count, nil) != vk.Success {
		return false
	}
	props := make([]vk.LayerProperties, count)
	if vk.EnumerateInstanceLayerProperties(&count, props) != vk.Success {
		return false
	}
	for i := range props {
		props[i].Deref()
		if cString(props[i].LayerName[:]) == name {
			return true
		}
	}
	return false
}

func debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("[%s] performance, code %d: %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}

func (d *Device) createDevice() error {
	req := deviceRequirements{
		extensions:        []string{"VK_KHR_swapchain"},
		samplerAnisotropy: true,
		preferDiscrete:    d.opts.PreferDiscrete,
	}
	pd, err := selectPhysicalDevice(d.instance, d.surface, req)
	if err != nil {
		return err
	}
	d.pd = pd
	logPhysicalDevice(pd)

	if d.device, d.queue, err = createLogicalDevice(pd, req.extensions); err != nil {
		return err
	}

	d.fillCaps()

	if d.uploadPool, err = d.newCommandPool(vk.CommandPoolCreateTransientBit); err != nil {
		return err
	}
	if d.graphicsPool, err = d.newCommandPool(vk.CommandPoolCreateResetCommandBufferBit); err != nil {
		return err
	}
	cacheInfo := vk.PipelineCacheCreateInfo{SType: vk.StructureTypePipelineCacheCreateInfo}
	if res := vk.CreatePipelineCache(d.device, &cacheInfo, nil, &d.pipelineCache); res != vk.Success {
		return check("vkCreatePipelineCache", res)
	}
	if err := d.createSetLayout(); err != nil {
		return err
	}
	if err := d.createDefaultSampler(); err != nil {
		return err
	}

	d.passes = newRenderPassCache(d)
	d.framebuffers = newFramebufferCache(d)
	d.pipelines = newPipelineCache(d)

	for i := range d.frames {
		f, err := d.newFrame()
		if err != nil {
			return err
		}
		d.frames[i] = f
	}
	return nil
}

func (d *Device) fillCaps() {
	props, limits := d.pd.props, d.pd.limits
	vendor, ok := vendorNames[props.VendorID]
	if !ok {
		vendor = fmt.Sprintf("0x%04x", props.VendorID)
	}
	d.caps = gpu.Caps{
		Vendor:             vendor,
		DeviceName:         cString(props.DeviceName[:]),
		MaxTextureSize:     limits.MaxImageDimension2D,
		MaxAnisotropy:      uint32(limits.MaxSamplerAnisotropy),
		MaxMSAA:            d.pd.maxMSAA(),
		ConstantBufferSize: constantsRange,
		Compute:            true,
		DrawIndirect:       true,
		MultiDrawIndirect:  d.pd.features.MultiDrawIndirect == vk.True,
		TimestampQuery:     d.pd.timestampValid && limits.TimestampComputeAndGraphics == vk.True,
		OcclusionQuery:     true,
	}
	if d.pd.features.SamplerAnisotropy != vk.True {
		d.caps.MaxAnisotropy = 1
	}
	if limits.TimestampPeriod > 0 {
		d.timestampFrequency = uint64(1e9 / float64(limits.TimestampPeriod))
	}
}

func (d *Device) newCommandPool(flags vk.CommandPoolCreateFlagBits) (vk.CommandPool, error) {
	info := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(flags),
		QueueFamilyIndex: d.pd.queueFamily,
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(d.device, &info, nil, &pool); res != vk.Success {
		return nil, check("vkCreateCommandPool", res)
	}
	return pool, nil
}

// createDefaultSampler backs texture slots that have no sampler bound.
func (d *Device) createDefaultSampler() error {
	info := vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    vk.FilterLinear,
		MinFilter:    vk.FilterLinear,
		MipmapMode:   vk.SamplerMipmapModeLinear,
		AddressModeU: vk.SamplerAddressModeRepeat,
		AddressModeV: vk.SamplerAddressModeRepeat,
		AddressModeW: vk.SamplerAddressModeRepeat,
		MaxLod:       1000,
		BorderColor:  vk.BorderColorFloatOpaqueBlack,
	}
	if res := vk.CreateSampler(d.device, &info, nil, &d.defaultSampler); res != vk.Success {
		return check("vkCreateSampler", res)
	}
	return nil
}

func (d *Device) newFrame() (*frame, error) {
	f := &frame{}
	var err error
	if f.cb, err = newCommandBuffer(d.device, d.graphicsPool, true); err != nil {
		return nil, err
	}
	if f.fence, err = newFence(d.device, true); err != nil {
		return nil, err
	}
	if f.staging, err = d.newRing(stagingRingSize, 0, vk.BufferUsageTransferSrcBit); err != nil {
		return nil, err
	}
	if f.constants, err = d.newRing(constantsRingSize, constantsRange, vk.BufferUsageUniformBufferBit); err != nil {
		return nil, err
	}
	return f, nil
}

// frame returns the slot being recorded.
func (d *Device) frame() *frame { return d.frames[d.current] }

// startFrame waits for the slot's previous submission and opens its
// command buffer.
func (d *Device) startFrame() error {
	f := d.frame()
	if f.started {
		return nil
	}
	if code := f.fence.wait(d.device, fenceTimeout); code != gpu.OK {
		return d.lost(gpu.Check("vkWaitForFences", code))
	}
	d.collect(f)
	f.descriptors.reset(d)
	f.staging.reset()
	f.constants.reset()
	if err := f.cb.reset(); err != nil {
		return d.lost(err)
	}
	if err := f.cb.begin(true); err != nil {
		return d.lost(err)
	}
	f.started = true
	return nil
}

// advance moves recording to the next slot after a submission.
func (d *Device) advance() {
	d.frame().started = false
	d.current = (d.current + 1) % framesInFlight
}

func (d *Device) collect(f *frame) {
	unlock := d.locks.lock(garbageManagement)
	garbage := f.garbage
	f.garbage = nil
	unlock()
	for _, fn := range garbage {
		fn()
	}
}

// destroyLater runs fn once every command recorded so far has retired.
func (d *Device) destroyLater(fn func()) {
	unlock := d.locks.lock(garbageManagement)
	defer unlock()
	f := d.frame()
	f.garbage = append(f.garbage, fn)
}

// allocate finds memory for reqs, dropping the preferred properties when no
// type offers them.
func (d *Device) allocate(reqs vk.MemoryRequirements, props vk.MemoryPropertyFlags) (vk.DeviceMemory, error) {
	index, ok := d.pd.findMemoryIndex(reqs.MemoryTypeBits, props)
	if !ok && props == vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit) {
		index, ok = d.pd.findMemoryIndex(reqs.MemoryTypeBits, 0)
	}
	if !ok {
		return nil, gpu.Check("vkAllocateMemory", gpu.OutOfMemory)
	}
	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: index,
	}
	var mem vk.DeviceMemory
	if res := vk.AllocateMemory(d.device, &info, nil, &mem); res != vk.Success {
		return nil, check("vkAllocateMemory", res)
	}
	return mem, nil
}

// lost latches a device loss carried by err.
func (d *Device) lost(err error) error {
	if err != nil && core.IsDeviceLost(err) {
		d.setStatus(gpu.DeviceRemoved)
	}
	return err
}

func (d *Device) setStatus(code gpu.Code) {
	if d.status.CompareAndSwap(int32(gpu.OK), int32(code)) {
		core.LogError("vulkan device lost: %s", code)
	}
}

func (d *Device) Caps() gpu.Caps { return d.caps }

func (d *Device) Context() gpu.Context { return d.ctx }

func (d *Device) Status() gpu.Code { return gpu.Code(d.status.Load()) }

// Trim drops cached pipelines and framebuffers. They are rebuilt on demand.
func (d *Device) Trim() {
	if d.device == nil {
		return
	}
	d.ctx.Flush()
	vk.DeviceWaitIdle(d.device)
	n := d.pipelines.len()
	d.pipelines.evict(func(pipelineKey) bool { return true })
	d.framebuffers.evictAll()
	for _, f := range d.frames {
		d.collect(f)
	}
	core.LogDebug("trimmed %d pipelines", n)
}

func (d *Device) Release() {
	if d.device != nil {
		vk.DeviceWaitIdle(d.device)
		for _, f := range d.frames {
			if f == nil {
				continue
			}
			d.collect(f)
			f.descriptors.destroy(d)
			f.staging.buf.destroy(d.device)
			f.constants.buf.destroy(d.device)
			f.fence.destroy(d.device)
			f.cb.free(d.device, d.graphicsPool)
		}
		if d.ctx != nil {
			d.ctx.release()
		}
		if d.swap != nil {
			d.swap.destroy()
		}
		if d.pipelines != nil {
			d.pipelines.destroy()
			d.framebuffers.destroy()
			d.passes.destroy()
		}
		if d.defaultSampler != nil {
			vk.DestroySampler(d.device, d.defaultSampler, nil)
		}
		if d.pipelineLayout != nil {
			vk.DestroyPipelineLayout(d.device, d.pipelineLayout, nil)
		}
		if d.setLayout != nil {
			vk.DestroyDescriptorSetLayout(d.device, d.setLayout, nil)
		}
		if d.pipelineCache != nil {
			vk.DestroyPipelineCache(d.device, d.pipelineCache, nil)
		}
		for _, pool := range []vk.CommandPool{d.uploadPool, d.graphicsPool} {
			if pool != nil {
				vk.DestroyCommandPool(d.device, pool, nil)
			}
		}
		vk.DestroyDevice(d.device, nil)
		d.device = nil
	}
	if d.surface != vk.NullSurface {
		vk.DestroySurface(d.instance, d.surface, nil)
		d.surface = vk.NullSurface
	}
	if d.debugCallback != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(d.instance, d.debugCallback, nil)
		d.debugCallback = vk.NullDebugReportCallback
	}
	if d.instance != nil {
		vk.DestroyInstance(d.instance, nil)
		d.instance = nil
	}
	core.LogInfo("vulkan device released")
}
