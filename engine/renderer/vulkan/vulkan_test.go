package vulkan

import (
	"testing"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	cases := map[vk.Result]gpu.Code{
		vk.Success:                   gpu.OK,
		vk.Suboptimal:                gpu.OK,
		vk.NotReady:                  gpu.WasStillDrawing,
		vk.Timeout:                   gpu.WasStillDrawing,
		vk.ErrorOutOfDate:            gpu.OutOfDate,
		vk.ErrorDeviceLost:           gpu.DeviceRemoved,
		vk.ErrorSurfaceLost:          gpu.NotCurrentlyAvailable,
		vk.ErrorOutOfDeviceMemory:    gpu.OutOfMemory,
		vk.ErrorOutOfPoolMemory:      gpu.OutOfMemory,
		vk.ErrorFeatureNotPresent:    gpu.Unsupported,
		vk.ErrorInitializationFailed: gpu.Unknown,
	}
	for res, want := range cases {
		assert.Equal(t, want, codeOf(res), resultString(res, false))
	}
}

func TestCheckCarriesDeviceLoss(t *testing.T) {
	assert.NoError(t, check("vkQueueSubmit", vk.Success))

	err := check("vkQueueSubmit", vk.ErrorDeviceLost)
	require.Error(t, err)
	assert.True(t, core.IsDeviceLost(err))
	assert.Equal(t, gpu.DeviceRemoved, gpu.CodeOf(err))
	assert.Contains(t, err.Error(), "vkQueueSubmit")

	err = check("vkAllocateMemory", vk.ErrorOutOfDeviceMemory)
	assert.ErrorIs(t, err, core.ErrOutOfMemory)
	assert.False(t, core.IsDeviceLost(err))
}

func TestTextureFormatRoundTrip(t *testing.T) {
	for f := metadata.FormatR8; f < metadata.FormatCount; f++ {
		vf := textureFormat(f, false)
		require.NotEqual(t, vk.FormatUndefined, vf, f.String())
		back, srgb := fromVkFormat(vf)
		assert.Equal(t, f, back)
		assert.False(t, srgb)
	}

	assert.Equal(t, vk.FormatB8g8r8a8Srgb, textureFormat(metadata.FormatBGRA8, true))
	back, srgb := fromVkFormat(vk.FormatR8g8b8a8Srgb)
	assert.Equal(t, metadata.FormatRGBA8, back)
	assert.True(t, srgb)

	// sRGB only applies to 8 bit color.
	assert.Equal(t, vk.FormatR32Sfloat, textureFormat(metadata.FormatR32F, true))
	assert.Equal(t, vk.FormatUndefined, textureFormat(metadata.FormatCount, false))

	unknown, _ := fromVkFormat(vk.FormatBc1RgbUnormBlock)
	assert.Equal(t, metadata.FormatUnknown, unknown)
}

func TestAspectMask(t *testing.T) {
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectColorBit), aspectMask(metadata.FormatRGBA8))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit), aspectMask(metadata.FormatD32F))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit|vk.ImageAspectStencilBit), aspectMask(metadata.FormatD24S8))
}

func TestAttributeLocation(t *testing.T) {
	loc, ok := attributeLocation("POSITION", 0)
	require.True(t, ok)
	assert.Equal(t, uint32(0), loc)

	loc, ok = attributeLocation("COLOR", 3)
	require.True(t, ok)
	assert.Equal(t, uint32(7), loc)

	loc, ok = attributeLocation("TEXCOORD", 7)
	require.True(t, ok)
	assert.Equal(t, uint32(17), loc)

	_, ok = attributeLocation("TEXCOORD", 8)
	assert.False(t, ok)
	_, ok = attributeLocation("NORMAL", 1)
	assert.False(t, ok)
	_, ok = attributeLocation("FOG", 0)
	assert.False(t, ok)
}

func TestAttributeLocationsAreUnique(t *testing.T) {
	seen := map[uint32]string{}
	add := func(sem string, idx uint32) {
		loc, ok := attributeLocation(sem, idx)
		require.True(t, ok)
		prev, dup := seen[loc]
		require.False(t, dup, "%s%d collides with %s", sem, idx, prev)
		seen[loc] = sem
	}
	for _, sem := range []string{"POSITION", "NORMAL", "TANGENT", "BITANGENT", "BLENDINDICES", "BLENDWEIGHT"} {
		add(sem, 0)
	}
	for i := uint32(0); i < 4; i++ {
		add("COLOR", i)
	}
	for i := uint32(0); i < 8; i++ {
		add("TEXCOORD", i)
	}
}

func TestSampleCount(t *testing.T) {
	assert.Equal(t, vk.SampleCount1Bit, sampleCount(0))
	assert.Equal(t, vk.SampleCount1Bit, sampleCount(1))
	assert.Equal(t, vk.SampleCount4Bit, sampleCount(4))
	// Counts round down to a power of two.
	assert.Equal(t, vk.SampleCount4Bit, sampleCount(6))
	assert.Equal(t, vk.SampleCount16Bit, sampleCount(16))
}

func TestAlignUp(t *testing.T) {
	assert.Equal(t, uint64(0), alignUp(0, 256))
	assert.Equal(t, uint64(256), alignUp(1, 256))
	assert.Equal(t, uint64(256), alignUp(256, 256))
	assert.Equal(t, uint64(13), alignUp(13, 1))
}

func TestSliceUint32(t *testing.T) {
	words := sliceUint32([]byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00, 0xff})
	assert.Equal(t, []uint32{0x07230203, 0x00010000}, words)
}

func TestCString(t *testing.T) {
	assert.Equal(t, "VK_LAYER", cString([]byte{'V', 'K', '_', 'L', 'A', 'Y', 'E', 'R', 0, 'x'}))
	assert.Equal(t, "abc", cString([]byte("abc")))
	assert.Equal(t, "name\x00", safeString("name"))
	assert.Equal(t, "name\x00", safeString("name\x00"))
}

func TestRingAlloc(t *testing.T) {
	r := &ring{buf: &hostBuffer{size: 1024 + 256}, tail: 256}

	off, ok := r.alloc(100, 64)
	require.True(t, ok)
	assert.Equal(t, uint64(0), off)

	off, ok = r.alloc(100, 64)
	require.True(t, ok)
	assert.Equal(t, uint64(128), off)

	_, ok = r.alloc(1100, 64)
	assert.False(t, ok)

	off, ok = r.alloc(500, 256)
	require.True(t, ok)
	assert.Equal(t, uint64(256), off)

	r.reset()
	off, ok = r.alloc(1, 256)
	require.True(t, ok)
	assert.Equal(t, uint64(0), off)
}

func TestRingKeepsTailReadable(t *testing.T) {
	r := &ring{buf: &hostBuffer{size: 300}, tail: 256}
	_, ok := r.alloc(10, 64)
	require.True(t, ok)
	// A range starting at 64 would read past the end of the buffer.
	_, ok = r.alloc(10, 64)
	assert.False(t, ok)
}

func TestPickPresentMode(t *testing.T) {
	all := []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox, vk.PresentModeImmediate}
	fifoOnly := []vk.PresentMode{vk.PresentModeFifo}

	m, ok := pickPresentMode(all, gpu.PresentFlip, true)
	require.True(t, ok)
	assert.Equal(t, vk.PresentModeFifo, m)

	m, ok = pickPresentMode(all, gpu.PresentFlip, false)
	require.True(t, ok)
	assert.Equal(t, vk.PresentModeMailbox, m)

	m, ok = pickPresentMode(fifoOnly, gpu.PresentFlip, false)
	require.True(t, ok)
	assert.Equal(t, vk.PresentModeFifo, m)

	m, ok = pickPresentMode(all, gpu.PresentBlit, false)
	require.True(t, ok)
	assert.Equal(t, vk.PresentModeImmediate, m)

	_, ok = pickPresentMode(fifoOnly, gpu.PresentBlit, false)
	assert.False(t, ok)
}

func TestPickSurfaceFormat(t *testing.T) {
	formats := []vk.SurfaceFormat{
		{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
	}
	f, ok := pickSurfaceFormat(formats, metadata.FormatBGRA8, false)
	require.True(t, ok)
	assert.Equal(t, vk.FormatB8g8r8a8Unorm, f.Format)

	// RGBA falls back to the BGRA the surface offers.
	f, ok = pickSurfaceFormat(formats, metadata.FormatRGBA8, true)
	require.True(t, ok)
	assert.Equal(t, vk.FormatB8g8r8a8Srgb, f.Format)

	_, ok = pickSurfaceFormat(formats, metadata.FormatRGBA16F, false)
	assert.False(t, ok)

	f, ok = pickSurfaceFormat([]vk.SurfaceFormat{{Format: vk.FormatUndefined}}, metadata.FormatRGBA8, false)
	require.True(t, ok)
	assert.Equal(t, vk.FormatR8g8b8a8Unorm, f.Format)
}

func TestChooseExtent(t *testing.T) {
	var caps vk.SurfaceCapabilities
	caps.CurrentExtent = vk.Extent2D{Width: 640, Height: 480}
	assert.Equal(t, vk.Extent2D{Width: 640, Height: 480}, chooseExtent(caps, 800, 600))

	caps.CurrentExtent = vk.Extent2D{Width: maxSurfaceExtent, Height: maxSurfaceExtent}
	caps.MinImageExtent = vk.Extent2D{Width: 1, Height: 1}
	caps.MaxImageExtent = vk.Extent2D{Width: 1024, Height: 1024}
	assert.Equal(t, vk.Extent2D{Width: 800, Height: 1024}, chooseExtent(caps, 800, 4096))
}

func TestImageCount(t *testing.T) {
	var caps vk.SurfaceCapabilities
	caps.MinImageCount = 2
	assert.Equal(t, uint32(3), imageCount(caps, 3))
	assert.Equal(t, uint32(2), imageCount(caps, 1))
	caps.MaxImageCount = 3
	assert.Equal(t, uint32(3), imageCount(caps, 8))
}

func TestClipRect(t *testing.T) {
	extent := vk.Extent2D{Width: 100, Height: 50}
	r := clipRect(metadata.Rect{X: 10, Y: 10, Width: 200, Height: 20}, extent)
	assert.Equal(t, int32(10), r.Offset.X)
	assert.Equal(t, uint32(90), r.Extent.Width)
	assert.Equal(t, uint32(20), r.Extent.Height)

	r = clipRect(metadata.Rect{X: 150, Y: 0, Width: 10, Height: 10}, extent)
	assert.Equal(t, uint32(0), r.Extent.Width)
}

func TestMipExtent(t *testing.T) {
	tex := &Texture{desc: gpu.TextureDesc{Width: 256, Height: 64}}
	assert.Equal(t, vk.Extent2D{Width: 64, Height: 16}, mipExtent(tex, 2))
	assert.Equal(t, vk.Extent2D{Width: 1, Height: 1}, mipExtent(tex, 9))
}

func TestFramebufferKeyReferences(t *testing.T) {
	var backing [3]byte
	a := vk.ImageView(unsafe.Pointer(&backing[0]))
	b := vk.ImageView(unsafe.Pointer(&backing[1]))
	c := vk.ImageView(unsafe.Pointer(&backing[2]))
	k := framebufferKey{}
	k.views[0], k.views[1] = a, b
	assert.True(t, k.references([]vk.ImageView{b}))
	assert.False(t, k.references([]vk.ImageView{c}))
	assert.False(t, k.references(nil))
}

func TestDescriptorWritesKeepInfoPointers(t *testing.T) {
	w := newDescriptorWrites()
	for i := 0; i < numBindings; i++ {
		w.buffer(nil, uint32(i), vk.DescriptorTypeStorageBuffer, nil, vk.DeviceSize(i), 16)
	}
	require.Len(t, w.writes, numBindings)
	for i, wr := range w.writes {
		require.Len(t, wr.PBufferInfo, 1)
		assert.Equal(t, vk.DeviceSize(i), wr.PBufferInfo[0].Offset)
	}
	w.reset()
	assert.Empty(t, w.writes)
	assert.Empty(t, w.buffers)
}

func TestBindingLayout(t *testing.T) {
	assert.Equal(t, 18, bindingBufferSRV)
	assert.Equal(t, 26, bindingBufferUAV)
	assert.Equal(t, 34, bindingImageUAV)
	assert.Equal(t, 42, numBindings)
}

func TestLockPool(t *testing.T) {
	var p lockPool
	unlock := p.lock(pipelineManagement)
	// Other groups stay available.
	err := p.safeCall(queueManagement, func() error { return nil })
	unlock()
	assert.NoError(t, err)
}
