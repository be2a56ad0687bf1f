package vulkan

import "github.com/spaghettifunk/rendercore/engine/renderer/metadata"

const (
	// framesInFlight is how many submissions may be queued before the CPU
	// waits on the oldest one.
	framesInFlight = 2

	fenceTimeout = ^uint64(0)
)

// Descriptor set layout shared by every program. Shaders declare their
// resources in set 0 at these bindings.
const (
	bindingVertexConstants   = 0
	bindingFragmentConstants = 1
	bindingTextures          = 2
	numTextureSlots          = metadata.MaxTextureSamplers
	bindingBufferSRV         = bindingTextures + numTextureSlots
	numBufferSlots           = 8
	bindingBufferUAV         = bindingBufferSRV + numBufferSlots
	bindingImageUAV          = bindingBufferUAV + numBufferSlots
	numUAVSlots              = 8
	numBindings              = bindingImageUAV + numUAVSlots
)

const (
	maxVertexBindings = metadata.MaxVertexStreams + 1

	constantsRingSize = 4 << 20
	stagingRingSize   = 16 << 20
	// constantsRange is the window each dynamic uniform descriptor exposes.
	constantsRange = 64 << 10

	descriptorSetsPerPool = 512
)

// Vertex input locations by semantic. TEXCOORD n and COLOR n add n.
var semanticLocation = map[string]uint32{
	"POSITION":     0,
	"NORMAL":       1,
	"TANGENT":      2,
	"BITANGENT":    3,
	"COLOR":        4,
	"BLENDINDICES": 8,
	"BLENDWEIGHT":  9,
	"TEXCOORD":     10,
}

var vendorNames = map[uint32]string{
	0x1002:  "AMD",
	0x1010:  "ImgTec",
	0x10de:  "NVIDIA",
	0x13b5:  "ARM",
	0x5143:  "Qualcomm",
	0x8086:  "Intel",
	0x106b:  "Apple",
	0x10005: "Mesa",
}
