package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
)

const (
	drawIndirectSize        = 16
	drawIndexedIndirectSize = 20
)

// Context records into the command buffer of the current frame slot. The
// render pass begins lazily at the first draw or clear and ends whenever a
// command that cannot run inside a pass is recorded.
type Context struct {
	d *Device

	blend      *blendState
	factor     [4]float32
	depth      *depthStencilState
	stencilRef uint8
	raster     *rasterizerState
	topology   metadata.Topology
	viewport   metadata.Rect
	scissor    metadata.Rect

	colors    [gpu.MaxColorAttachments]*View
	numColors int
	depthView *View

	program  *program
	compute  *program
	layout   *inputLayout
	vbufs    [maxVertexBindings]*Buffer
	strides  [maxVertexBindings]uint32
	offsets  [maxVertexBindings]vk.DeviceSize
	ibuf     *Buffer
	iformat  gpu.IndexFormat
	ioffset  uint32
	srv      [numTextureSlots]*View
	samplers [numTextureSlots]*samplerState
	uav      [numUAVSlots]*View

	// Constants are staged on the CPU and pushed to the frame's ring at the
	// next draw or dispatch.
	constData   [2][]byte
	constStale  [2]bool
	constOffset [2]uint32
	uboRange    vk.DeviceSize
	uboAlign    uint64

	writes          *descriptorWrites
	set             vk.DescriptorSet
	descDirty       bool
	boundSet        [2]vk.DescriptorSet
	boundOffs       [2][2]uint32
	pipeline        vk.Pipeline
	computePipeline vk.Pipeline
	dynDirty        bool
	vbDirty         bool
	ibDirty         bool

	inPass      bool
	pass        vk.RenderPass
	passColors  uint32
	passSamples uint32
	extent      vk.Extent2D

	// pendingWait is signaled when the acquired swap chain image is ready.
	pendingWait vk.Semaphore
	serial      uint64
	occlusion   *query
}

func newContext(d *Device) *Context {
	c := &Context{
		d:        d,
		writes:   newDescriptorWrites(),
		uboRange: vk.DeviceSize(min(constantsRange, d.pd.limits.MaxUniformBufferRange)),
		uboAlign: max(uint64(d.pd.limits.MinUniformBufferOffsetAlignment), 16),
	}
	c.ClearState()
	return c
}

func (c *Context) release() {
	c.ClearState()
	c.occlusion = nil
}

func (c *Context) cmd() vk.CommandBuffer { return c.d.frame().cb.handle }

// begin makes sure the current slot is recording. It returns false once the
// device is lost, after which every command is dropped.
func (c *Context) begin() bool {
	if c.d.Status() != gpu.OK {
		return false
	}
	if c.d.frame().started {
		return true
	}
	if err := c.d.startFrame(); err != nil {
		core.LogError("begin frame: %s", err)
		return false
	}
	c.invalidate()
	return true
}

// invalidate forgets everything bound to the previous command buffer.
func (c *Context) invalidate() {
	c.inPass = false
	c.pipeline = nil
	c.computePipeline = nil
	c.set = nil
	c.boundSet = [2]vk.DescriptorSet{}
	c.descDirty = true
	c.dynDirty = true
	c.vbDirty = true
	c.ibDirty = true
	c.constStale = [2]bool{true, true}
}

func (c *Context) SetBlendState(s gpu.BlendState, factor [4]float32) {
	b, _ := s.(*blendState)
	c.blend = b
	if c.factor != factor {
		c.factor = factor
		c.dynDirty = true
	}
}

func (c *Context) SetDepthStencilState(s gpu.DepthStencilState, stencilRef uint8) {
	ds, _ := s.(*depthStencilState)
	c.depth = ds
	if c.stencilRef != stencilRef {
		c.stencilRef = stencilRef
		c.dynDirty = true
	}
}

func (c *Context) SetRasterizerState(s gpu.RasterizerState) {
	r, _ := s.(*rasterizerState)
	if c.raster != r {
		c.raster = r
		c.dynDirty = true
	}
}

func (c *Context) SetPrimitiveTopology(t metadata.Topology) { c.topology = t }

func (c *Context) SetViewport(r metadata.Rect) {
	if c.viewport != r {
		c.viewport = r
		c.dynDirty = true
	}
}

func (c *Context) SetScissor(r metadata.Rect) {
	if c.scissor != r {
		c.scissor = r
		c.dynDirty = true
	}
}

// SetRenderTargets binds up to MaxColorAttachments color views. Attachments
// after the first nil color view are ignored.
func (c *Context) SetRenderTargets(colors []gpu.View, depth gpu.View) {
	var next [gpu.MaxColorAttachments]*View
	n := 0
	for _, v := range colors {
		cv, ok := v.(*View)
		if !ok || cv == nil || n == len(next) {
			break
		}
		next[n] = cv
		n++
	}
	dv, _ := depth.(*View)
	if next == c.colors && n == c.numColors && dv == c.depthView {
		return
	}
	c.endPass()
	c.colors, c.numColors, c.depthView = next, n, dv
}

func (c *Context) SetProgram(p gpu.Program) {
	prog, _ := p.(*program)
	c.program = prog
}

func (c *Context) SetComputeProgram(p gpu.Program) {
	prog, _ := p.(*program)
	c.compute = prog
}

func (c *Context) SetInputLayout(l gpu.InputLayout) {
	il, _ := l.(*inputLayout)
	c.layout = il
}

func (c *Context) SetVertexBuffers(start uint32, bufs []gpu.Buffer, strides, offsets []uint32) {
	for i, b := range bufs {
		slot := start + uint32(i)
		if slot >= maxVertexBindings {
			break
		}
		vb, _ := b.(*Buffer)
		var stride, offset uint32
		if i < len(strides) {
			stride = strides[i]
		}
		if i < len(offsets) {
			offset = offsets[i]
		}
		c.vbufs[slot] = vb
		c.strides[slot] = stride
		c.offsets[slot] = vk.DeviceSize(offset)
	}
	c.vbDirty = true
}

func (c *Context) SetIndexBuffer(b gpu.Buffer, format gpu.IndexFormat, offset uint32) {
	ib, _ := b.(*Buffer)
	c.ibuf, c.iformat, c.ioffset = ib, format, offset
	c.ibDirty = true
}

// SetShaderResource binds v for every stage. Texture views take texture
// slots; buffer views take the storage buffer slots of the same index.
func (c *Context) SetShaderResource(stage gpu.Stage, slot uint32, v gpu.View) {
	if slot >= numTextureSlots {
		return
	}
	sv, _ := v.(*View)
	if c.srv[slot] != sv {
		c.srv[slot] = sv
		c.descDirty = true
	}
}

func (c *Context) SetSampler(stage gpu.Stage, slot uint32, s gpu.SamplerState) {
	if slot >= numTextureSlots {
		return
	}
	ss, _ := s.(*samplerState)
	if c.samplers[slot] != ss {
		c.samplers[slot] = ss
		c.descDirty = true
	}
}

func (c *Context) SetUnorderedAccess(slot uint32, v gpu.View) {
	if slot >= numUAVSlots {
		return
	}
	uv, _ := v.(*View)
	if c.uav[slot] != uv {
		c.uav[slot] = uv
		c.descDirty = true
	}
}

// UpdateConstants stages the constants of a stage. Compute programs read
// the vertex constants binding.
func (c *Context) UpdateConstants(stage gpu.Stage, data []byte) {
	i := 0
	if stage == gpu.StageFragment {
		i = 1
	}
	if uint64(len(data)) > uint64(c.uboRange) {
		core.LogWarn("%s constants truncated from %d to %d bytes", stage, len(data), c.uboRange)
		data = data[:c.uboRange]
	}
	c.constData[i] = append(c.constData[i][:0], data...)
	c.constStale[i] = true
}

// pushConstants copies stale constants into the frame's ring. A grown ring
// has a new buffer, so both stages are pushed again and the set rewritten.
func (c *Context) pushConstants() bool {
	f := c.d.frame()
	for i := 0; i < 2; i++ {
		if !c.constStale[i] {
			continue
		}
		data := c.constData[i]
		if len(data) == 0 {
			c.constOffset[i] = 0
			c.constStale[i] = false
			continue
		}
		off, ok := f.constants.push(data, c.uboAlign)
		if !ok {
			err := f.constants.grow(c.d, uint64(len(data)), vk.BufferUsageUniformBufferBit, c.retire)
			if err != nil {
				core.LogError("grow constants ring: %s", err)
				return false
			}
			c.constStale = [2]bool{true, true}
			c.descDirty = true
			i = -1
			continue
		}
		c.constOffset[i] = uint32(off)
		c.constStale[i] = false
	}
	return true
}

func (c *Context) retire(h *hostBuffer) {
	dev := c.d.device
	c.d.destroyLater(func() { h.destroy(dev) })
}

func (c *Context) UpdateBuffer(b gpu.Buffer, offset uint32, data []byte, discard bool) {
	buf, ok := b.(*Buffer)
	if !ok || buf.handle == nil || len(data) == 0 || !c.begin() {
		return
	}
	if uint64(offset)+uint64(len(data)) > uint64(buf.desc.Size) {
		core.LogWarn("buffer update out of range: %d+%d > %d", offset, len(data), buf.desc.Size)
		return
	}
	c.endPass()
	f := c.d.frame()
	off, ok := f.staging.push(data, 16)
	if !ok {
		if err := f.staging.grow(c.d, uint64(len(data)), vk.BufferUsageTransferSrcBit, c.retire); err != nil {
			core.LogError("grow staging ring: %s", err)
			return
		}
		off, _ = f.staging.push(data, 16)
	}
	vk.CmdCopyBuffer(c.cmd(), f.staging.buf.handle, buf.handle, 1, []vk.BufferCopy{{
		SrcOffset: vk.DeviceSize(off),
		DstOffset: vk.DeviceSize(offset),
		Size:      vk.DeviceSize(len(data)),
	}})
	c.memoryBarrier(vk.PipelineStageTransferBit, vk.AccessTransferWriteBit)
}

// memoryBarrier makes writes of the src stage visible to every later
// command.
func (c *Context) memoryBarrier(src vk.PipelineStageFlagBits, access vk.AccessFlagBits) {
	barrier := vk.MemoryBarrier{
		SType:         vk.StructureTypeMemoryBarrier,
		SrcAccessMask: vk.AccessFlags(access),
		DstAccessMask: vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit),
	}
	vk.CmdPipelineBarrier(c.cmd(),
		vk.PipelineStageFlags(src),
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		0, 1, []vk.MemoryBarrier{barrier}, 0, nil, 0, nil)
}

// transition moves t to layout outside of any render pass. It returns false
// when t is a back buffer that could not be acquired.
func (c *Context) transition(t *Texture, layout vk.ImageLayout) bool {
	img, cur := t.target(c)
	if img == nil {
		return false
	}
	if *cur == layout {
		return true
	}
	c.endPass()
	transitionImage(c.cmd(), img, t.subresourceRange(), *cur, layout)
	*cur = layout
	return true
}

// prepareResources moves bound textures into the layouts their descriptors
// expect. Nothing is done when they are already there, so an open pass
// survives.
func (c *Context) prepareResources() bool {
	for _, v := range c.srv {
		if v != nil && v.tex != nil && !c.transition(v.tex, vk.ImageLayoutShaderReadOnlyOptimal) {
			return false
		}
	}
	for _, v := range c.uav {
		if v != nil && v.tex != nil && !c.transition(v.tex, vk.ImageLayoutGeneral) {
			return false
		}
	}
	return true
}

func mipExtent(t *Texture, mip uint8) vk.Extent2D {
	return vk.Extent2D{
		Width:  max(t.desc.Width>>mip, 1),
		Height: max(t.desc.Height>>mip, 1),
	}
}

// beginPass opens a render pass over the bound targets.
func (c *Context) beginPass() bool {
	if c.inPass {
		return true
	}
	var key renderPassKey
	var fbKey framebufferKey
	samples := uint32(0)
	var extent vk.Extent2D
	n := 0
	for i := 0; i < c.numColors; i++ {
		v := c.colors[i]
		if v.tex == nil || !c.transition(v.tex, vk.ImageLayoutColorAttachmentOptimal) {
			return false
		}
		h := v.imageView(c)
		if h == nil {
			return false
		}
		key.colors[i] = v.format
		fbKey.views[n] = h
		n++
		samples = max(samples, v.samples())
		extent = mipExtent(v.tex, v.desc.Mip)
	}
	key.numColors = uint32(c.numColors)
	if dv := c.depthView; dv != nil {
		if dv.tex == nil || !c.transition(dv.tex, vk.ImageLayoutDepthStencilAttachmentOptimal) {
			return false
		}
		h := dv.imageView(c)
		if h == nil {
			return false
		}
		key.depth = dv.format
		fbKey.views[n] = h
		n++
		samples = max(samples, dv.samples())
		if extent.Width == 0 {
			extent = mipExtent(dv.tex, dv.desc.Mip)
		}
	}
	if n == 0 {
		return false
	}
	key.samples = max(samples, 1)

	pass, err := c.d.passes.get(key)
	if err != nil {
		core.LogError("render pass: %s", err)
		return false
	}
	fbKey.pass = pass
	fbKey.width, fbKey.height = extent.Width, extent.Height
	fb, err := c.d.framebuffers.get(fbKey, n)
	if err != nil {
		core.LogError("framebuffer: %s", err)
		return false
	}
	info := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass,
		Framebuffer: fb,
		RenderArea:  vk.Rect2D{Extent: extent},
	}
	vk.CmdBeginRenderPass(c.cmd(), &info, vk.SubpassContentsInline)
	c.d.frame().cb.state = commandBufferInRenderPass
	c.inPass = true
	c.pass = pass
	c.passColors = key.numColors
	c.passSamples = key.samples
	c.extent = extent
	c.dynDirty = true
	return true
}

func (c *Context) endPass() {
	if !c.inPass {
		return
	}
	c.suspendOcclusion()
	vk.CmdEndRenderPass(c.cmd())
	c.d.frame().cb.state = commandBufferRecording
	c.inPass = false
}

// applyDynamic records viewport, scissor, blend constants and the stencil
// reference.
func (c *Context) applyDynamic() {
	if !c.dynDirty {
		return
	}
	vp := vk.Viewport{
		X:        float32(c.viewport.X),
		Y:        float32(c.viewport.Y),
		Width:    float32(c.viewport.Width),
		Height:   float32(c.viewport.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	if c.viewport.Width == 0 || c.viewport.Height == 0 {
		vp.X, vp.Y = 0, 0
		vp.Width, vp.Height = float32(c.extent.Width), float32(c.extent.Height)
	}
	vk.CmdSetViewport(c.cmd(), 0, 1, []vk.Viewport{vp})

	rect := vk.Rect2D{Extent: c.extent}
	if c.raster != nil && c.raster.scissor {
		rect = clipRect(c.scissor, c.extent)
	}
	vk.CmdSetScissor(c.cmd(), 0, 1, []vk.Rect2D{rect})

	factor := c.factor
	vk.CmdSetBlendConstants(c.cmd(), &factor)
	vk.CmdSetStencilReference(c.cmd(), vk.StencilFaceFlags(vk.StencilFrontAndBack), uint32(c.stencilRef))
	c.dynDirty = false
}

// clipRect clamps r to extent. Vulkan rejects scissors outside the
// framebuffer.
func clipRect(r metadata.Rect, extent vk.Extent2D) vk.Rect2D {
	x := min(uint32(r.X), extent.Width)
	y := min(uint32(r.Y), extent.Height)
	w := min(uint32(r.Width), extent.Width-x)
	h := min(uint32(r.Height), extent.Height-y)
	return vk.Rect2D{
		Offset: vk.Offset2D{X: int32(x), Y: int32(y)},
		Extent: vk.Extent2D{Width: w, Height: h},
	}
}

func (c *Context) bindPipeline() bool {
	k := pipelineKey{
		program:  c.program,
		layout:   c.layout,
		blend:    c.blend,
		depth:    c.depth,
		raster:   c.raster,
		topology: c.topology,
		pass:     c.pass,
		colors:   c.passColors,
		samples:  c.passSamples,
	}
	if c.layout != nil {
		for slot, used := range c.layout.used {
			if used {
				k.strides[slot] = c.strides[slot]
			}
		}
	}
	p, err := c.d.pipelines.get(k)
	if err != nil {
		core.LogError("pipeline: %s", err)
		return false
	}
	if p != c.pipeline {
		vk.CmdBindPipeline(c.cmd(), vk.PipelineBindPointGraphics, p)
		c.pipeline = p
	}
	return true
}

// bindDescriptors writes a fresh set when bindings changed and binds it
// with the current constant offsets.
func (c *Context) bindDescriptors(point vk.PipelineBindPoint) bool {
	if !c.pushConstants() {
		return false
	}
	if c.descDirty || c.set == nil {
		set, err := c.d.frame().descriptors.allocate(c.d)
		if err != nil {
			core.LogError("descriptor set: %s", err)
			return false
		}
		c.writeSet(set)
		c.set = set
		c.descDirty = false
	}
	idx := 0
	if point == vk.PipelineBindPointCompute {
		idx = 1
	}
	offs := c.constOffset
	if c.boundSet[idx] == c.set && c.boundOffs[idx] == offs {
		return true
	}
	vk.CmdBindDescriptorSets(c.cmd(), point, c.d.pipelineLayout, 0, 1,
		[]vk.DescriptorSet{c.set}, 2, offs[:])
	c.boundSet[idx] = c.set
	c.boundOffs[idx] = offs
	return true
}

func (c *Context) writeSet(set vk.DescriptorSet) {
	w := c.writes
	w.reset()
	ubo := c.d.frame().constants.buf.handle
	w.buffer(set, bindingVertexConstants, vk.DescriptorTypeUniformBufferDynamic, ubo, 0, c.uboRange)
	w.buffer(set, bindingFragmentConstants, vk.DescriptorTypeUniformBufferDynamic, ubo, 0, c.uboRange)
	for slot, v := range c.srv {
		if v == nil {
			continue
		}
		if v.buf != nil {
			if slot < numBufferSlots && v.buf.handle != nil {
				w.buffer(set, uint32(bindingBufferSRV+slot), vk.DescriptorTypeStorageBuffer, v.buf.handle, v.offset, v.size)
			}
			continue
		}
		h := v.imageView(c)
		if h == nil {
			continue
		}
		sampler := c.d.defaultSampler
		if s := c.samplers[slot]; s != nil && s.handle != nil {
			sampler = s.handle
		}
		w.image(set, uint32(bindingTextures+slot), vk.DescriptorTypeCombinedImageSampler, h, sampler, vk.ImageLayoutShaderReadOnlyOptimal)
	}
	for slot, v := range c.uav {
		if v == nil {
			continue
		}
		if v.buf != nil {
			if v.buf.handle != nil {
				w.buffer(set, uint32(bindingBufferUAV+slot), vk.DescriptorTypeStorageBuffer, v.buf.handle, v.offset, v.size)
			}
			continue
		}
		if h := v.imageView(c); h != nil {
			w.image(set, uint32(bindingImageUAV+slot), vk.DescriptorTypeStorageImage, h, nil, vk.ImageLayoutGeneral)
		}
	}
	w.flush(c.d)
}

func (c *Context) bindGeometry(indexed bool) {
	if c.vbDirty {
		for slot, b := range c.vbufs {
			if b == nil || b.handle == nil {
				continue
			}
			vk.CmdBindVertexBuffers(c.cmd(), uint32(slot), 1, []vk.Buffer{b.handle}, []vk.DeviceSize{c.offsets[slot]})
		}
		c.vbDirty = false
	}
	if indexed && c.ibDirty && c.ibuf != nil && c.ibuf.handle != nil {
		vk.CmdBindIndexBuffer(c.cmd(), c.ibuf.handle, vk.DeviceSize(c.ioffset), indexType(c.iformat))
		c.ibDirty = false
	}
}

// prepareDraw gets everything a draw needs recorded. A false return drops
// the draw.
func (c *Context) prepareDraw(indexed bool) bool {
	if c.program == nil || c.program.vs == nil || !c.begin() {
		return false
	}
	if indexed && (c.ibuf == nil || c.ibuf.handle == nil) {
		return false
	}
	if !c.prepareResources() || !c.beginPass() {
		return false
	}
	if !c.bindPipeline() || !c.bindDescriptors(vk.PipelineBindPointGraphics) {
		return false
	}
	c.applyDynamic()
	c.bindGeometry(indexed)
	c.resumeOcclusion()
	return true
}

func (c *Context) Draw(vertexCount, instanceCount, startVertex, startInstance uint32) {
	if vertexCount == 0 || !c.prepareDraw(false) {
		return
	}
	vk.CmdDraw(c.cmd(), vertexCount, max(instanceCount, 1), startVertex, startInstance)
}

func (c *Context) DrawIndexed(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32) {
	if indexCount == 0 || !c.prepareDraw(true) {
		return
	}
	vk.CmdDrawIndexed(c.cmd(), indexCount, max(instanceCount, 1), startIndex, baseVertex, startInstance)
}

func (c *Context) DrawIndirect(b gpu.Buffer, offset uint32) {
	c.MultiDrawIndirect(1, b, offset, drawIndirectSize)
}

func (c *Context) DrawIndexedIndirect(b gpu.Buffer, offset uint32) {
	c.MultiDrawIndexedIndirect(1, b, offset, drawIndexedIndirectSize)
}

// MultiDrawIndirect issues count draws in one call when the device has the
// multiDrawIndirect feature, one call per draw otherwise.
func (c *Context) MultiDrawIndirect(count uint32, b gpu.Buffer, offset, stride uint32) {
	buf, ok := b.(*Buffer)
	if !ok || buf.handle == nil || count == 0 || !c.prepareDraw(false) {
		return
	}
	c.multiDraw(count, offset, stride, func(n, off uint32) {
		vk.CmdDrawIndirect(c.cmd(), buf.handle, vk.DeviceSize(off), n, max(stride, drawIndirectSize))
	})
}

func (c *Context) MultiDrawIndexedIndirect(count uint32, b gpu.Buffer, offset, stride uint32) {
	buf, ok := b.(*Buffer)
	if !ok || buf.handle == nil || count == 0 || !c.prepareDraw(true) {
		return
	}
	c.multiDraw(count, offset, stride, func(n, off uint32) {
		vk.CmdDrawIndexedIndirect(c.cmd(), buf.handle, vk.DeviceSize(off), n, max(stride, drawIndexedIndirectSize))
	})
}

func (c *Context) multiDraw(count, offset, stride uint32, draw func(n, off uint32)) {
	if count > 1 && c.d.caps.MultiDrawIndirect {
		limit := max(c.d.pd.limits.MaxDrawIndirectCount, 1)
		for count > 0 {
			n := min(count, limit)
			draw(n, offset)
			offset += n * stride
			count -= n
		}
		return
	}
	for i := uint32(0); i < count; i++ {
		draw(1, offset+i*stride)
	}
}

// prepareDispatch ends the pass and binds the compute program.
func (c *Context) prepareDispatch() bool {
	if c.compute == nil || c.compute.compute == nil || !c.begin() {
		return false
	}
	c.endPass()
	if !c.prepareResources() {
		return false
	}
	if c.computePipeline != c.compute.compute {
		vk.CmdBindPipeline(c.cmd(), vk.PipelineBindPointCompute, c.compute.compute)
		c.computePipeline = c.compute.compute
	}
	return c.bindDescriptors(vk.PipelineBindPointCompute)
}

func (c *Context) Dispatch(x, y, z uint32) {
	if x == 0 || y == 0 || z == 0 || !c.prepareDispatch() {
		return
	}
	vk.CmdDispatch(c.cmd(), x, y, z)
	c.memoryBarrier(vk.PipelineStageComputeShaderBit, vk.AccessShaderWriteBit)
}

func (c *Context) DispatchIndirect(b gpu.Buffer, offset uint32) {
	buf, ok := b.(*Buffer)
	if !ok || buf.handle == nil || !c.prepareDispatch() {
		return
	}
	vk.CmdDispatchIndirect(c.cmd(), buf.handle, vk.DeviceSize(offset))
	c.memoryBarrier(vk.PipelineStageComputeShaderBit, vk.AccessShaderWriteBit)
}

// attached reports whether v is one of the bound targets.
func (c *Context) attached(v *View) (int, bool) {
	if v == c.depthView {
		return int(c.passColors), true
	}
	for i := 0; i < c.numColors; i++ {
		if c.colors[i] == v {
			return i, true
		}
	}
	return 0, false
}

// clearView clears v inside a render pass. Unbound views get a pass of
// their own and the previous targets are restored afterwards.
func (c *Context) clearView(v *View, att vk.ClearAttachment) {
	if v.tex == nil || !c.begin() {
		return
	}
	if idx, ok := c.attached(v); ok {
		if !c.beginPass() {
			return
		}
		if att.AspectMask&vk.ImageAspectFlags(vk.ImageAspectColorBit) != 0 {
			att.ColorAttachment = uint32(idx)
		}
		c.clearAttachment(att, c.extent)
		return
	}

	colors, numColors, depth := c.colors, c.numColors, c.depthView
	c.endPass()
	if v.kind == viewDepthStencil {
		c.colors, c.numColors, c.depthView = [gpu.MaxColorAttachments]*View{}, 0, v
	} else {
		c.colors, c.numColors, c.depthView = [gpu.MaxColorAttachments]*View{v}, 1, nil
	}
	if c.beginPass() {
		c.clearAttachment(att, c.extent)
	}
	c.endPass()
	c.colors, c.numColors, c.depthView = colors, numColors, depth
}

func (c *Context) clearAttachment(att vk.ClearAttachment, extent vk.Extent2D) {
	rect := vk.ClearRect{
		Rect:       vk.Rect2D{Extent: extent},
		LayerCount: 1,
	}
	vk.CmdClearAttachments(c.cmd(), 1, []vk.ClearAttachment{att}, 1, []vk.ClearRect{rect})
}

func (c *Context) ClearRenderTarget(v gpu.View, color [4]float32) {
	rv, ok := v.(*View)
	if !ok || rv.kind != viewRenderTarget {
		return
	}
	c.clearView(rv, vk.ClearAttachment{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		ClearValue: vk.NewClearValue(color[:]),
	})
}

func (c *Context) ClearDepthStencil(v gpu.View, flags metadata.ClearFlags, depth float32, stencil uint8) {
	dv, ok := v.(*View)
	if !ok || dv.kind != viewDepthStencil || dv.tex == nil {
		return
	}
	var aspect vk.ImageAspectFlagBits
	if flags&metadata.ClearDepth != 0 {
		aspect |= vk.ImageAspectDepthBit
	}
	if flags&metadata.ClearStencil != 0 && dv.tex.desc.Format.HasStencil() {
		aspect |= vk.ImageAspectStencilBit
	}
	if aspect == 0 {
		return
	}
	c.clearView(dv, vk.ClearAttachment{
		AspectMask: vk.ImageAspectFlags(aspect),
		ClearValue: vk.NewClearDepthStencil(depth, uint32(stencil)),
	})
}

func colorLayers(t *Texture, mip uint8) vk.ImageSubresourceLayers {
	return vk.ImageSubresourceLayers{
		AspectMask: t.aspect(),
		MipLevel:   uint32(mip),
		LayerCount: 1,
	}
}

func (c *Context) CopyTextureRegion(dst gpu.Texture, dstMip uint8, dx, dy, dz uint32, src gpu.Texture, srcMip uint8, box gpu.Box) {
	d, ok1 := dst.(*Texture)
	s, ok2 := src.(*Texture)
	if !ok1 || !ok2 || !c.begin() {
		return
	}
	if box.Width == 0 || box.Height == 0 {
		e := mipExtent(s, srcMip)
		box = gpu.Box{Width: e.Width, Height: e.Height, Depth: max(s.desc.Depth>>srcMip, 1)}
	}
	box.Depth = max(box.Depth, 1)
	c.endPass()
	if !c.transition(s, vk.ImageLayoutTransferSrcOptimal) || !c.transition(d, vk.ImageLayoutTransferDstOptimal) {
		return
	}
	srcImg, _ := s.target(c)
	dstImg, _ := d.target(c)
	region := vk.ImageCopy{
		SrcSubresource: colorLayers(s, srcMip),
		SrcOffset:      vk.Offset3D{X: int32(box.X), Y: int32(box.Y), Z: int32(box.Z)},
		DstSubresource: colorLayers(d, dstMip),
		DstOffset:      vk.Offset3D{X: int32(dx), Y: int32(dy), Z: int32(dz)},
		Extent:         vk.Extent3D{Width: box.Width, Height: box.Height, Depth: box.Depth},
	}
	vk.CmdCopyImage(c.cmd(), srcImg, vk.ImageLayoutTransferSrcOptimal, dstImg, vk.ImageLayoutTransferDstOptimal, 1, []vk.ImageCopy{region})
}

// ResolveSubresource resolves a multisampled src into dst. A single sampled
// src is copied.
func (c *Context) ResolveSubresource(dst, src gpu.Texture) {
	d, ok1 := dst.(*Texture)
	s, ok2 := src.(*Texture)
	if !ok1 || !ok2 || !c.begin() {
		return
	}
	c.endPass()
	if !c.transition(s, vk.ImageLayoutTransferSrcOptimal) || !c.transition(d, vk.ImageLayoutTransferDstOptimal) {
		return
	}
	srcImg, _ := s.target(c)
	dstImg, _ := d.target(c)
	extent := vk.Extent3D{
		Width:  min(s.desc.Width, d.desc.Width),
		Height: min(s.desc.Height, d.desc.Height),
		Depth:  1,
	}
	if s.desc.Samples <= 1 {
		vk.CmdCopyImage(c.cmd(), srcImg, vk.ImageLayoutTransferSrcOptimal, dstImg, vk.ImageLayoutTransferDstOptimal, 1, []vk.ImageCopy{{
			SrcSubresource: colorLayers(s, 0),
			DstSubresource: colorLayers(d, 0),
			Extent:         extent,
		}})
		return
	}
	vk.CmdResolveImage(c.cmd(), srcImg, vk.ImageLayoutTransferSrcOptimal, dstImg, vk.ImageLayoutTransferDstOptimal, 1, []vk.ImageResolve{{
		SrcSubresource: colorLayers(s, 0),
		DstSubresource: colorLayers(d, 0),
		Extent:         extent,
	}})
}

// ReadTexture copies the first mip of t to the host. It flushes and waits
// for the queue to drain.
func (c *Context) ReadTexture(gt gpu.Texture) ([]byte, error) {
	t, ok := gt.(*Texture)
	if !ok {
		return nil, fmt.Errorf("read texture %T: %w", gt, core.ErrInvalidHandle)
	}
	if !c.begin() {
		return nil, gpu.Check("ReadTexture", c.d.Status())
	}
	if t.desc.Samples > 1 || t.desc.Format.IsDepth() {
		return nil, fmt.Errorf("read back of %s x%d: %w", t.desc.Format, t.desc.Samples, core.ErrUnsupported)
	}
	size := uint64(t.desc.Format.Pitch(t.desc.Width)) * uint64(t.desc.Height)
	if size == 0 {
		return nil, gpu.Check("ReadTexture", gpu.InvalidArg)
	}
	host, err := c.d.newHostBuffer(size, vk.BufferUsageTransferDstBit)
	if err != nil {
		return nil, err
	}
	defer host.destroy(c.d.device)

	c.endPass()
	if !c.transition(t, vk.ImageLayoutTransferSrcOptimal) {
		return nil, gpu.Check("ReadTexture", gpu.OutOfDate)
	}
	img, _ := t.target(c)
	region := vk.BufferImageCopy{
		ImageSubresource: colorLayers(t, 0),
		ImageExtent:      vk.Extent3D{Width: t.desc.Width, Height: t.desc.Height, Depth: 1},
	}
	vk.CmdCopyImageToBuffer(c.cmd(), img, vk.ImageLayoutTransferSrcOptimal, host.handle, 1, []vk.BufferImageCopy{region})
	if code := c.Flush(); code != gpu.OK {
		return nil, gpu.Check("ReadTexture", code)
	}
	err = c.d.locks.safeCall(queueManagement, func() error {
		return c.d.lost(check("vkQueueWaitIdle", vk.QueueWaitIdle(c.d.queue)))
	})
	if err != nil {
		return nil, err
	}
	out := make([]byte, size)
	host.read(0, out)
	return out, nil
}

// Flush submits everything recorded so far.
func (c *Context) Flush() gpu.Code {
	return c.submit(nil)
}

// submit ends the command buffer and queues it. The acquire semaphore of
// the swap chain is waited on and signal is signaled on completion.
func (c *Context) submit(signal []vk.Semaphore) gpu.Code {
	if code := c.d.Status(); code != gpu.OK {
		return code
	}
	f := c.d.frame()
	if !f.started {
		if len(signal) == 0 {
			return gpu.OK
		}
		if !c.begin() {
			return c.d.Status()
		}
	}
	c.endPass()
	if err := f.cb.end(); err != nil {
		c.d.lost(err)
		c.d.advance()
		return gpu.Unknown
	}
	if err := f.fence.reset(c.d.device); err != nil {
		c.d.lost(err)
		c.d.advance()
		return gpu.Unknown
	}

	info := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{f.cb.handle},
		SignalSemaphoreCount: uint32(len(signal)),
		PSignalSemaphores:    signal,
	}
	if c.pendingWait != vk.NullSemaphore {
		info.WaitSemaphoreCount = 1
		info.PWaitSemaphores = []vk.Semaphore{c.pendingWait}
		info.PWaitDstStageMask = []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)}
	}
	var res vk.Result
	c.d.locks.safeCall(queueManagement, func() error {
		res = vk.QueueSubmit(c.d.queue, 1, []vk.SubmitInfo{info}, f.fence.handle)
		return nil
	})
	c.pendingWait = vk.NullSemaphore
	c.serial++
	f.cb.state = commandBufferSubmitted
	c.d.advance()

	code := codeOf(res)
	if code.IsDeviceLost() {
		c.d.setStatus(code)
	} else if code != gpu.OK {
		core.LogError("vkQueueSubmit: %s", resultString(res, true))
	}
	return code
}

// ClearState unbinds everything and restores the default state.
func (c *Context) ClearState() {
	if c.d.frame() != nil && c.d.frame().started {
		c.endPass()
	}
	c.blend, c.depth, c.raster = nil, nil, nil
	c.factor = [4]float32{}
	c.stencilRef = 0
	c.topology = metadata.TopologyTriList
	c.viewport, c.scissor = metadata.Rect{}, metadata.Rect{}
	c.colors, c.numColors, c.depthView = [gpu.MaxColorAttachments]*View{}, 0, nil
	c.program, c.compute, c.layout = nil, nil, nil
	c.vbufs = [maxVertexBindings]*Buffer{}
	c.strides = [maxVertexBindings]uint32{}
	c.offsets = [maxVertexBindings]vk.DeviceSize{}
	c.ibuf, c.ioffset = nil, 0
	c.srv = [numTextureSlots]*View{}
	c.samplers = [numTextureSlots]*samplerState{}
	c.uav = [numUAVSlots]*View{}
	c.constData = [2][]byte{}
	c.constStale = [2]bool{true, true}
	c.descDirty = true
	c.dynDirty = true
	c.vbDirty = true
	c.ibDirty = true
}
