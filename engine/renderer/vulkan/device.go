package vulkan

import (
	"fmt"
	"runtime"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
)

const portabilitySubset = "VK_KHR_portability_subset"

type physicalDevice struct {
	handle   vk.PhysicalDevice
	props    vk.PhysicalDeviceProperties
	limits   vk.PhysicalDeviceLimits
	features vk.PhysicalDeviceFeatures
	memory   vk.PhysicalDeviceMemoryProperties

	// queueFamily supports graphics, compute and presentation to the surface.
	queueFamily    uint32
	timestampValid bool
	extensions     map[string]bool
}

type swapchainSupport struct {
	capabilities vk.SurfaceCapabilities
	formats      []vk.SurfaceFormat
	presentModes []vk.PresentMode
}

type deviceRequirements struct {
	extensions        []string
	samplerAnisotropy bool
	preferDiscrete    bool
}

func deviceExtensions(pd vk.PhysicalDevice) (map[string]bool, error) {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(pd, "", &count, nil); res != vk.Success {
		return nil, check("vkEnumerateDeviceExtensionProperties", res)
	}
	props := make([]vk.ExtensionProperties, count)
	if count > 0 {
		if res := vk.EnumerateDeviceExtensionProperties(pd, "", &count, props); res != vk.Success {
			return nil, check("vkEnumerateDeviceExtensionProperties", res)
		}
	}
	out := make(map[string]bool, count)
	for i := range props {
		props[i].Deref()
		out[cString(props[i].ExtensionName[:])] = true
	}
	return out, nil
}

func querySwapchainSupport(pd vk.PhysicalDevice, surface vk.Surface) (*swapchainSupport, error) {
	s := &swapchainSupport{}
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(pd, surface, &s.capabilities); res != vk.Success {
		return nil, check("vkGetPhysicalDeviceSurfaceCapabilities", res)
	}
	s.capabilities.Deref()
	s.capabilities.CurrentExtent.Deref()
	s.capabilities.MinImageExtent.Deref()
	s.capabilities.MaxImageExtent.Deref()

	var count uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &count, nil); res != vk.Success {
		return nil, check("vkGetPhysicalDeviceSurfaceFormats", res)
	}
	if count > 0 {
		s.formats = make([]vk.SurfaceFormat, count)
		if res := vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &count, s.formats); res != vk.Success {
			return nil, check("vkGetPhysicalDeviceSurfaceFormats", res)
		}
		for i := range s.formats {
			s.formats[i].Deref()
		}
	}

	count = 0
	if res := vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &count, nil); res != vk.Success {
		return nil, check("vkGetPhysicalDeviceSurfacePresentModes", res)
	}
	if count > 0 {
		s.presentModes = make([]vk.PresentMode, count)
		if res := vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &count, s.presentModes); res != vk.Success {
			return nil, check("vkGetPhysicalDeviceSurfacePresentModes", res)
		}
	}
	return s, nil
}

// selectPhysicalDevice returns the best device able to render and present to
// surface. Discrete GPUs win over everything else when preferred.
func selectPhysicalDevice(instance vk.Instance, surface vk.Surface, req deviceRequirements) (*physicalDevice, error) {
	var count uint32
	if res := vk.EnumeratePhysicalDevices(instance, &count, nil); res != vk.Success {
		return nil, check("vkEnumeratePhysicalDevices", res)
	}
	if count == 0 {
		return nil, fmt.Errorf("no device supporting vulkan was found: %w", core.ErrUnsupported)
	}
	handles := make([]vk.PhysicalDevice, count)
	if res := vk.EnumeratePhysicalDevices(instance, &count, handles); res != vk.Success {
		return nil, check("vkEnumeratePhysicalDevices", res)
	}

	var best *physicalDevice
	bestScore := -1
	for _, h := range handles {
		pd, score, ok := evaluatePhysicalDevice(h, surface, req)
		if ok && score > bestScore {
			best, bestScore = pd, score
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no physical device meets the requirements: %w", core.ErrUnsupported)
	}
	logPhysicalDevice(best)
	return best, nil
}

func evaluatePhysicalDevice(h vk.PhysicalDevice, surface vk.Surface, req deviceRequirements) (*physicalDevice, int, bool) {
	pd := &physicalDevice{handle: h}
	vk.GetPhysicalDeviceProperties(h, &pd.props)
	pd.props.Deref()
	pd.limits = pd.props.Limits
	pd.limits.Deref()
	vk.GetPhysicalDeviceFeatures(h, &pd.features)
	pd.features.Deref()
	vk.GetPhysicalDeviceMemoryProperties(h, &pd.memory)
	pd.memory.Deref()

	name := cString(pd.props.DeviceName[:])

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(h, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(h, &familyCount, families)

	want := vk.QueueFlags(vk.QueueGraphicsBit) | vk.QueueFlags(vk.QueueComputeBit)
	found := false
	for i := range families {
		families[i].Deref()
		if families[i].QueueFlags&want != want {
			continue
		}
		var present vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(h, uint32(i), surface, &present); res != vk.Success || present != vk.True {
			continue
		}
		pd.queueFamily = uint32(i)
		pd.timestampValid = families[i].TimestampValidBits > 0
		found = true
		break
	}
	if !found {
		core.LogInfo("device %q has no graphics queue that can present, skipping", name)
		return nil, 0, false
	}

	exts, err := deviceExtensions(h)
	if err != nil {
		return nil, 0, false
	}
	for _, e := range req.extensions {
		if !exts[e] {
			core.LogInfo("device %q lacks extension %s, skipping", name, e)
			return nil, 0, false
		}
	}
	pd.extensions = exts

	support, err := querySwapchainSupport(h, surface)
	if err != nil || len(support.formats) == 0 || len(support.presentModes) == 0 {
		core.LogInfo("device %q has no swapchain support, skipping", name)
		return nil, 0, false
	}
	if req.samplerAnisotropy && pd.features.SamplerAnisotropy == vk.False {
		core.LogInfo("device %q does not support sampler anisotropy, skipping", name)
		return nil, 0, false
	}

	score := 1
	switch pd.props.DeviceType {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		if req.preferDiscrete {
			score += 1000
		}
	case vk.PhysicalDeviceTypeIntegratedGpu:
		score += 100
	case vk.PhysicalDeviceTypeCpu:
		score = 0
	}
	return pd, score, true
}

func logPhysicalDevice(pd *physicalDevice) {
	kind := "unknown"
	switch pd.props.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		kind = "integrated"
	case vk.PhysicalDeviceTypeDiscreteGpu:
		kind = "discrete"
	case vk.PhysicalDeviceTypeVirtualGpu:
		kind = "virtual"
	case vk.PhysicalDeviceTypeCpu:
		kind = "cpu"
	}
	l := core.LogWith("device", cString(pd.props.DeviceName[:]))
	l.Info("physical device selected", "type", kind,
		"driver", fmt.Sprintf("%d.%d.%d",
			vk.Version(pd.props.DriverVersion).Major(),
			vk.Version(pd.props.DriverVersion).Minor(),
			vk.Version(pd.props.DriverVersion).Patch()),
		"api", fmt.Sprintf("%d.%d.%d",
			vk.Version(pd.props.ApiVersion).Major(),
			vk.Version(pd.props.ApiVersion).Minor(),
			vk.Version(pd.props.ApiVersion).Patch()))
	for i := uint32(0); i < pd.memory.MemoryHeapCount; i++ {
		heap := pd.memory.MemoryHeaps[i]
		heap.Deref()
		gib := float64(heap.Size) / (1 << 30)
		if vk.MemoryHeapFlagBits(heap.Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			l.Debug("heap", "local", true, "gib", gib)
		} else {
			l.Debug("heap", "local", false, "gib", gib)
		}
	}
}

// createLogicalDevice opens the device with the single queue every command
// goes through.
func createLogicalDevice(pd *physicalDevice, extensions []string) (vk.Device, vk.Queue, error) {
	if runtime.GOOS == "darwin" && pd.extensions[portabilitySubset] {
		core.LogInfo("adding required extension %s", portabilitySubset)
		extensions = append(extensions, portabilitySubset)
	}

	var features vk.PhysicalDeviceFeatures
	features.SamplerAnisotropy = pd.features.SamplerAnisotropy
	features.FillModeNonSolid = pd.features.FillModeNonSolid
	features.IndependentBlend = pd.features.IndependentBlend
	features.DepthClamp = pd.features.DepthClamp
	features.MultiDrawIndirect = pd.features.MultiDrawIndirect
	features.DrawIndirectFirstInstance = pd.features.DrawIndirectFirstInstance
	features.OcclusionQueryPrecise = pd.features.OcclusionQueryPrecise
	features.ShaderStorageImageWriteWithoutFormat = pd.features.ShaderStorageImageWriteWithoutFormat
	info := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos: []vk.DeviceQueueCreateInfo{{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: pd.queueFamily,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}},
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
	}
	var dev vk.Device
	if res := vk.CreateDevice(pd.handle, &info, nil, &dev); res != vk.Success {
		return nil, nil, check("vkCreateDevice", res)
	}
	var queue vk.Queue
	vk.GetDeviceQueue(dev, pd.queueFamily, 0, &queue)
	return dev, queue, nil
}

// findMemoryIndex picks a memory type allowed by typeFilter that has all of
// the wanted property bits.
func (pd *physicalDevice) findMemoryIndex(typeFilter uint32, want vk.MemoryPropertyFlags) (uint32, bool) {
	for i := uint32(0); i < pd.memory.MemoryTypeCount; i++ {
		mt := pd.memory.MemoryTypes[i]
		mt.Deref()
		if typeFilter&(1<<i) != 0 && mt.PropertyFlags&want == want {
			return i, true
		}
	}
	return 0, false
}

func (pd *physicalDevice) formatSupports(format vk.Format, feature vk.FormatFeatureFlagBits) bool {
	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(pd.handle, format, &props)
	props.Deref()
	return vk.FormatFeatureFlagBits(props.OptimalTilingFeatures)&feature == feature
}

// depthStencilFormat resolves a depth format to one the device can attach.
// D24S8 is optional in Vulkan; D32S8 stands in for it.
func (pd *physicalDevice) depthStencilFormat(f metadata.TextureFormat) vk.Format {
	vf := textureFormat(f, false)
	if f == metadata.FormatD24S8 && !pd.formatSupports(vf, vk.FormatFeatureDepthStencilAttachmentBit) {
		return vk.FormatD32SfloatS8Uint
	}
	return vf
}

func (pd *physicalDevice) maxMSAA() uint32 {
	counts := vk.SampleCountFlagBits(pd.limits.FramebufferColorSampleCounts & pd.limits.FramebufferDepthSampleCounts)
	for _, n := range []uint32{16, 8, 4, 2} {
		if counts&sampleCount(n) != 0 {
			return n
		}
	}
	return 1
}
