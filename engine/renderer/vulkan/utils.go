package vulkan

import (
	"encoding/binary"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
)

// resultString names a result. extended appends the description from the
// registry.
func resultString(result vk.Result, extended bool) string {
	name, desc := "VK_ERROR_UNKNOWN", "An unknown error has occurred."
	switch result {
	case vk.Success:
		name, desc = "VK_SUCCESS", "Command successfully completed"
	case vk.NotReady:
		name, desc = "VK_NOT_READY", "A fence or query has not yet completed"
	case vk.Timeout:
		name, desc = "VK_TIMEOUT", "A wait operation has not completed in the specified time"
	case vk.Incomplete:
		name, desc = "VK_INCOMPLETE", "A return array was too small for the result"
	case vk.Suboptimal:
		name, desc = "VK_SUBOPTIMAL_KHR", "A swapchain no longer matches the surface properties exactly, but can still be used to present to the surface successfully."
	case vk.ErrorOutOfHostMemory:
		name, desc = "VK_ERROR_OUT_OF_HOST_MEMORY", "A host memory allocation has failed."
	case vk.ErrorOutOfDeviceMemory:
		name, desc = "VK_ERROR_OUT_OF_DEVICE_MEMORY", "A device memory allocation has failed."
	case vk.ErrorInitializationFailed:
		name, desc = "VK_ERROR_INITIALIZATION_FAILED", "Initialization of an object could not be completed for implementation-specific reasons."
	case vk.ErrorDeviceLost:
		name, desc = "VK_ERROR_DEVICE_LOST", "The logical or physical device has been lost."
	case vk.ErrorMemoryMapFailed:
		name, desc = "VK_ERROR_MEMORY_MAP_FAILED", "Mapping of a memory object has failed."
	case vk.ErrorLayerNotPresent:
		name, desc = "VK_ERROR_LAYER_NOT_PRESENT", "A requested layer is not present or could not be loaded."
	case vk.ErrorExtensionNotPresent:
		name, desc = "VK_ERROR_EXTENSION_NOT_PRESENT", "A requested extension is not supported."
	case vk.ErrorFeatureNotPresent:
		name, desc = "VK_ERROR_FEATURE_NOT_PRESENT", "A requested feature is not supported."
	case vk.ErrorIncompatibleDriver:
		name, desc = "VK_ERROR_INCOMPATIBLE_DRIVER", "The requested version of Vulkan is not supported by the driver."
	case vk.ErrorTooManyObjects:
		name, desc = "VK_ERROR_TOO_MANY_OBJECTS", "Too many objects of the type have already been created."
	case vk.ErrorFormatNotSupported:
		name, desc = "VK_ERROR_FORMAT_NOT_SUPPORTED", "A requested format is not supported on this device."
	case vk.ErrorFragmentedPool:
		name, desc = "VK_ERROR_FRAGMENTED_POOL", "A pool allocation has failed due to fragmentation of the pool's memory."
	case vk.ErrorSurfaceLost:
		name, desc = "VK_ERROR_SURFACE_LOST_KHR", "A surface is no longer available."
	case vk.ErrorNativeWindowInUse:
		name, desc = "VK_ERROR_NATIVE_WINDOW_IN_USE_KHR", "The requested window is already in use by Vulkan or another API."
	case vk.ErrorOutOfDate:
		name, desc = "VK_ERROR_OUT_OF_DATE_KHR", "A surface has changed in such a way that it is no longer compatible with the swapchain."
	case vk.ErrorIncompatibleDisplay:
		name, desc = "VK_ERROR_INCOMPATIBLE_DISPLAY_KHR", "The display used by a swapchain does not use the same presentable image layout."
	case vk.ErrorInvalidShaderNv:
		name, desc = "VK_ERROR_INVALID_SHADER_NV", "One or more shaders failed to compile or link."
	case vk.ErrorOutOfPoolMemory:
		name, desc = "VK_ERROR_OUT_OF_POOL_MEMORY", "A pool memory allocation has failed."
	case vk.ErrorInvalidExternalHandle:
		name, desc = "VK_ERROR_INVALID_EXTERNAL_HANDLE", "An external handle is not a valid handle of the specified type."
	case vk.ErrorFragmentation:
		name, desc = "VK_ERROR_FRAGMENTATION", "A descriptor pool creation has failed due to fragmentation."
	}
	if extended {
		return name + " " + desc
	}
	return name
}

// codeOf translates a result into the device-independent code the backend
// classifies. Suboptimal still presented, so it counts as success.
func codeOf(result vk.Result) gpu.Code {
	switch result {
	case vk.Success, vk.Suboptimal, vk.Incomplete:
		return gpu.OK
	case vk.NotReady, vk.Timeout:
		return gpu.WasStillDrawing
	case vk.ErrorOutOfDate:
		return gpu.OutOfDate
	case vk.ErrorDeviceLost:
		return gpu.DeviceRemoved
	case vk.ErrorSurfaceLost:
		return gpu.NotCurrentlyAvailable
	case vk.ErrorOutOfHostMemory, vk.ErrorOutOfDeviceMemory, vk.ErrorOutOfPoolMemory,
		vk.ErrorFragmentedPool, vk.ErrorFragmentation, vk.ErrorTooManyObjects, vk.ErrorMemoryMapFailed:
		return gpu.OutOfMemory
	case vk.ErrorFormatNotSupported, vk.ErrorFeatureNotPresent, vk.ErrorExtensionNotPresent,
		vk.ErrorLayerNotPresent, vk.ErrorIncompatibleDriver, vk.ErrorIncompatibleDisplay:
		return gpu.Unsupported
	case vk.ErrorInvalidShaderNv, vk.ErrorInvalidExternalHandle, vk.ErrorNativeWindowInUse:
		return gpu.InvalidArg
	}
	return gpu.Unknown
}

// check turns a failed call into an error tagged with op.
func check(op string, result vk.Result) error {
	return gpu.Check(op+" ("+resultString(result, false)+")", codeOf(result))
}

func safeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != 0 {
		return s + "\x00"
	}
	return s
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = safeString(list[i])
	}
	return out
}

// cString reads a NUL terminated name out of a fixed size array.
func cString(arr []byte) string {
	for i, b := range arr {
		if b == 0 {
			return string(arr[:i])
		}
	}
	return string(arr)
}

// sliceUint32 copies SPIR-V words out of bytecode. Trailing bytes that do
// not make a whole word are dropped.
func sliceUint32(data []byte) []uint32 {
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return words
}

func alignUp(v, align uint64) uint64 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}
