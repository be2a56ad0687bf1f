package backend

import (
	"fmt"
	"time"

	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/math"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
	"github.com/spaghettifunk/rendercore/engine/renderer/statecache"
	"github.com/spaghettifunk/rendercore/engine/renderer/uniform"
	"github.com/spaghettifunk/rendercore/engine/renderer/viewcache"
)

const autoCount = 0xffffffff

// geometry is the resolved input of one draw.
type geometry struct {
	layouts     []*VertexLayout
	bufs        []gpu.Buffer
	strides     []uint32
	offsets     []uint32
	numVertices uint32
	index       *buffer
	indirect    *buffer
}

func (g *geometry) reset() {
	g.layouts = g.layouts[:0]
	g.bufs = g.bufs[:0]
	g.strides = g.strides[:0]
	g.offsets = g.offsets[:0]
	g.numVertices = autoCount
	g.index = nil
	g.indirect = nil
}

// Submit dispatches a finished frame in key order and presents it. Once the
// device is lost every call returns the loss error without touching it.
func (c *Context) Submit(f *metadata.Frame) error {
	if c.lostErr != nil {
		return c.lostErr
	}
	if !f.IsFrozen() {
		core.Assert(false, "submitted frame was not finished")
		f.Finish()
	}
	if f.Resolution.Width != 0 && f.Resolution.Height != 0 {
		if _, err := c.swap.UpdateResolution(f.Resolution); err != nil {
			return fmt.Errorf("update resolution: %w", err)
		}
	}
	// a suspended frame is not counted
	if c.swap.IsSuspended() {
		return nil
	}
	c.cpu.Start()
	c.frameNum++
	c.cur = metadata.Stats{
		DeviceID:   c.id.String(),
		FrameNum:   c.frameNum,
		WaitSubmit: f.WaitSubmit,
		WaitRender: f.WaitRender,
	}
	// bindings do not survive a frame boundary
	c.cs.reset()

	wireframe := f.Debug&metadata.DebugWireframe != 0
	if wireframe != c.wireframe {
		c.wireframe = wireframe
		c.states.Rasterizer.Invalidate()
	}

	c.uploadTransient(c.res.vertexBuffers, f.TransientVertices)
	c.uploadTransient(c.res.indexBuffers, f.TransientIndices)

	if err := c.pollQueries(); err != nil {
		return err
	}
	if err := c.beginTimer(frameTimer); err != nil {
		return err
	}

	for i, key := range f.Keys {
		dk := key.Decode()
		if int(dk.View) != c.cs.view {
			if err := c.enterView(f, dk.View); err != nil {
				return err
			}
		}
		var err error
		switch item := f.Items[i].(type) {
		case *metadata.DrawItem:
			err = c.draw(f, dk, item, &f.Binds[i])
		case *metadata.ComputeItem:
			err = c.dispatch(f, dk, item, &f.Binds[i])
		case *metadata.BlitItem:
			c.blit(item)
		default:
			core.Assert(false, "unknown render item %T", item)
		}
		if err != nil {
			return err
		}
	}
	c.leaveView(f)
	if c.cs.compute {
		c.leaveCompute()
	}

	if err := c.drawOverlay(f); err != nil {
		return err
	}
	if f.Screenshot != nil {
		if err := c.saveScreenshot(f.Screenshot); err != nil {
			if core.IsDeviceLost(err) {
				return err
			}
			c.log.Warn("screenshot failed", "path", f.Screenshot.Path, "err", err)
		}
	}
	if c.timers != nil {
		c.timers.End(frameTimer)
	}

	var err error
	if c.cfg.External != nil {
		err = c.swap.Flush()
	} else {
		err = c.swap.Present()
	}
	if err != nil {
		if core.IsDeviceLost(err) {
			return err
		}
		c.log.Warn("present failed", "err", err)
	}
	c.finishStats()
	return nil
}

func (c *Context) uploadTransient(tb *table[buffer], t *metadata.TransientBuffer) {
	if t == nil || len(t.Data) == 0 {
		return
	}
	b := tb.get(t.Handle)
	if b == nil || !b.dynamic || uint32(len(t.Data)) > b.desc.Size {
		core.Assert(false, "transient %s %d cannot hold %d bytes", tb.name, t.Handle, len(t.Data))
		return
	}
	c.ctx.UpdateBuffer(b.buf, 0, t.Data, true)
}

func (c *Context) pollQueries() error {
	if c.occlusion != nil {
		if _, err := c.occlusion.Update(); err != nil {
			return c.checkLost(err)
		}
	}
	if c.timers != nil {
		if _, err := c.timers.Update(); err != nil {
			return c.checkLost(err)
		}
	}
	return nil
}

func (c *Context) beginTimer(idx int) error {
	if c.timers == nil {
		return nil
	}
	if err := c.timers.Begin(idx); err != nil {
		if core.IsDeviceLost(err) {
			return c.checkLost(err)
		}
		c.log.Debug("timer query skipped", "slot", idx, "err", err)
	}
	return nil
}

func (c *Context) enterView(f *metadata.Frame, v uint8) error {
	c.leaveView(f)
	c.cs.view = int(v)
	c.viewStart = time.Now()
	if err := c.beginTimer(int(v)); err != nil {
		return err
	}
	view := &f.Views[v]
	c.bindTarget(view.FrameBuffer)
	rect := viewport(view.Rect, c.cs.width, c.cs.height)
	c.cs.rect = rect
	c.ctx.SetViewport(rect)
	if view.Clear.Flags != metadata.ClearNone {
		c.clearView(view.Clear, rect)
	}
	return nil
}

func (c *Context) leaveView(f *metadata.Frame) {
	v := c.cs.view
	if v < 0 {
		return
	}
	vs := metadata.ViewStats{
		Name:    f.Views[v].Name,
		View:    uint8(v),
		CPUTime: time.Since(c.viewStart),
	}
	if c.timers != nil {
		c.timers.End(v)
		vs.GPUTime = c.timers.Result(v).Elapsed()
	}
	c.cur.Views = append(c.cur.Views, vs)
	c.cs.view = -1
}

// bindTarget binds a frame buffer, or the back buffer for an invalid handle,
// unless it is already bound.
func (c *Context) bindTarget(h metadata.FrameBufferHandle) {
	cs := &c.cs
	if h.IsValid() {
		if fb := c.res.frameBuffers.get(uint16(h)); fb != nil {
			if cs.targetBound && cs.frameBuffer == h {
				return
			}
			c.ctx.SetRenderTargets(fb.rtv, fb.dsv)
			cs.frameBuffer, cs.targetBound = h, true
			cs.width, cs.height = fb.width, fb.height
			return
		}
		core.Assert(false, "view renders into unknown frame buffer %d", h)
		h = metadata.InvalidFrameBuffer
	}
	if cs.targetBound && cs.frameBuffer == h {
		return
	}
	res := c.swap.Resolution()
	c.ctx.SetRenderTargets([]gpu.View{c.swap.Color()}, c.swap.Depth())
	cs.frameBuffer, cs.targetBound = h, true
	cs.width, cs.height = res.Width, res.Height
}

// boundTargets returns the views of the bound target.
func (c *Context) boundTargets() ([]gpu.View, gpu.View) {
	if fb := c.res.frameBuffers.get(uint16(c.cs.frameBuffer)); fb != nil && c.cs.frameBuffer.IsValid() {
		return fb.rtv, fb.dsv
	}
	return []gpu.View{c.swap.Color()}, c.swap.Depth()
}

// skip drops the current item and forces the next one to re-apply all state.
func (c *Context) skip() {
	c.cur.NumSkipped++
	c.cs.dirty = true
}

// itemFailed drops an item whose state could not be built. Only device loss
// reaches the caller.
func (c *Context) itemFailed(err error) error {
	c.skip()
	if core.IsDeviceLost(err) {
		return c.checkLost(err)
	}
	c.log.Warn("render item dropped", "err", err)
	return nil
}

// drawScissor resolves the scissor of d inside the view rect. visible is
// false when the intersection is empty.
func (c *Context) drawScissor(f *metadata.Frame, view *metadata.View, d *metadata.DrawItem) (r metadata.Rect, on, visible bool) {
	vr := c.cs.rect
	switch {
	case d.Scissor != metadata.InvalidHandle:
		if int(d.Scissor) >= len(f.Rects) {
			core.Assert(false, "scissor %d out of range", d.Scissor)
			return vr, false, true
		}
		r = f.Rects[d.Scissor].Intersect(vr)
		return r, true, !r.IsZeroArea()
	case !view.Scissor.IsZeroArea():
		r = view.Scissor.Intersect(vr)
		return r, true, !r.IsZeroArea()
	}
	return vr, false, true
}

func (c *Context) conditionVisible(h metadata.OcclusionQueryHandle) bool {
	if !h.IsValid() || c.occlusion == nil {
		return true
	}
	return c.occlusion.IsVisible(h)
}

// isTouch reports a draw without geometry, submitted only so its view is
// entered and cleared.
func isTouch(d *metadata.DrawItem) bool {
	return d.StreamMask == 0 &&
		!d.IndexBuffer.IsValid() &&
		!d.IndirectBuffer.IsValid() &&
		(d.NumVertices == 0 || d.NumVertices == autoCount)
}

func (c *Context) draw(f *metadata.Frame, key metadata.DecodedKey, d *metadata.DrawItem, binds *metadata.Binds) error {
	cs := &c.cs
	if isTouch(d) {
		return nil
	}
	if cs.compute {
		c.leaveCompute()
	}
	view := &f.Views[key.View]
	scissor, scissorOn, visible := c.drawScissor(f, view, d)
	if !visible || !c.conditionVisible(d.Condition) {
		c.skip()
		return nil
	}
	p := c.res.programs.get(uint16(key.Program))
	if p == nil || p.compute {
		core.Assert(false, "draw with invalid program %d", key.Program)
		c.skip()
		return nil
	}
	if !c.resolveGeometry(d) {
		c.skip()
		return nil
	}

	programChanged := cs.dirty || cs.program != key.Program
	if programChanged {
		c.ctx.SetProgram(p.native)
		c.uniforms.SetProgram(p.vs.ConstantSize(), fragmentSize(p))
		cs.program, cs.prog = key.Program, p
	}
	if err := c.applyDrawState(d.State, d.Stencil, d.BlendFactor, scissor, scissorOn); err != nil {
		return c.itemFailed(err)
	}
	if err := c.applyGeometry(d, p, programChanged); err != nil {
		return c.itemFailed(err)
	}
	if err := c.applyBinds(binds, programChanged, false); err != nil {
		return c.itemFailed(err)
	}
	pre := uniform.PredefinedValues{
		Rect:     cs.rect,
		View:     view.ViewMatrix,
		Proj:     view.Proj,
		Model:    modelMatrices(f, d.StartMatrix, d.NumMatrices),
		AlphaRef: float32((d.State&metadata.StateAlphaRefMask)>>metadata.StateAlphaRefShift) / 255.0,
	}
	c.commitUniforms(f, p, d.UniformBegin, d.UniformEnd, programChanged, &pre)
	cs.dirty = false

	ifh := f.Debug&metadata.DebugIFH != 0
	occlusion := d.OcclusionQuery.IsValid() && c.occlusion != nil && !ifh
	if occlusion {
		if err := c.occlusion.Begin(d.OcclusionQuery); err != nil {
			if core.IsDeviceLost(err) {
				return c.checkLost(err)
			}
			c.log.Debug("occlusion query skipped", "query", d.OcclusionQuery, "err", err)
			occlusion = false
		}
	}

	g := &c.geo
	topo := cs.topology
	instances := max(d.NumInstances, 1)
	var prims uint32
	switch {
	case g.indirect != nil:
		c.drawIndirect(d, g, ifh)
	case g.index != nil:
		num := d.NumIndices
		if num == autoCount {
			total := g.index.desc.Size / indexFormat(g.index).Size()
			num = total - min(d.StartIndex, total)
		}
		if !ifh {
			c.ctx.DrawIndexed(num, instances, d.StartIndex, 0, 0)
		}
		prims = topo.PrimitiveCount(num)
		c.cur.NumIndices += num
	default:
		if !ifh {
			c.ctx.Draw(g.numVertices, instances, 0, 0)
		}
		prims = topo.PrimitiveCount(g.numVertices)
	}
	if occlusion {
		c.occlusion.End()
	}

	c.cur.NumDraw++
	c.cur.NumInstances[topo] += instances
	c.cur.NumPrimsSubmitted[topo] += prims * instances
	if !ifh {
		c.cur.NumPrimsRendered[topo] += prims * instances
	}
	return nil
}

func fragmentSize(p *program) uint32 {
	if p.fs == nil {
		return 0
	}
	return p.fs.ConstantSize()
}

func modelMatrices(f *metadata.Frame, start uint32, num uint16) []math.Mat4 {
	if num == 0 || int(start) >= len(f.Matrices) {
		return nil
	}
	end := min(int(start)+int(num), len(f.Matrices))
	return f.Matrices[start:end]
}

// resolveGeometry looks up every buffer of d into c.geo. It fails when a
// handle is stale.
func (c *Context) resolveGeometry(d *metadata.DrawItem) bool {
	g := &c.geo
	g.reset()
	for i := range d.Streams {
		if d.StreamMask&(1<<i) == 0 {
			continue
		}
		s := d.Streams[i]
		b := c.res.vertexBuffers.get(uint16(s.Handle))
		if b == nil {
			core.Assert(false, "stream %d uses unknown vertex buffer %d", i, s.Handle)
			return false
		}
		lh := s.Layout
		if !lh.IsValid() {
			lh = b.layout
		}
		l := c.res.layouts.get(uint16(lh))
		if l == nil {
			core.Assert(false, "vertex buffer %d has no layout", s.Handle)
			return false
		}
		g.layouts = append(g.layouts, l)
		g.bufs = append(g.bufs, b.buf)
		g.strides = append(g.strides, l.Stride)
		g.offsets = append(g.offsets, s.StartVertex*l.Stride)
		if d.NumVertices == autoCount && l.Stride > 0 {
			total := b.desc.Size / l.Stride
			g.numVertices = min(g.numVertices, total-min(s.StartVertex, total))
		}
	}
	if d.NumVertices != autoCount {
		g.numVertices = d.NumVertices
	} else if g.numVertices == autoCount {
		g.numVertices = 0
	}
	if d.InstanceDataBuffer.IsValid() {
		b := c.res.vertexBuffers.get(uint16(d.InstanceDataBuffer))
		if b == nil {
			core.Assert(false, "unknown instance data buffer %d", d.InstanceDataBuffer)
			return false
		}
		g.bufs = append(g.bufs, b.buf)
		g.strides = append(g.strides, uint32(d.InstanceDataStride))
		g.offsets = append(g.offsets, d.InstanceDataOffset)
	}
	if d.IndexBuffer.IsValid() {
		if g.index = c.res.indexBuffers.get(uint16(d.IndexBuffer)); g.index == nil {
			core.Assert(false, "unknown index buffer %d", d.IndexBuffer)
			return false
		}
	}
	if d.IndirectBuffer.IsValid() {
		if !c.caps.DrawIndirect {
			core.Assert(false, "indirect draw without device support")
			return false
		}
		if g.indirect = c.res.indirectBuffers.get(uint16(d.IndirectBuffer)); g.indirect == nil {
			core.Assert(false, "unknown indirect buffer %d", d.IndirectBuffer)
			return false
		}
	}
	return true
}

// applyDrawState applies every changed class of fixed function state.
func (c *Context) applyDrawState(state, stencil uint64, rgba uint32, scissor metadata.Rect, scissorOn bool) error {
	cs := &c.cs
	if cs.blendChanged(state, rgba) {
		bs, err := c.states.BlendState(c.dev, state, rgba)
		if err != nil {
			return err
		}
		c.ctx.SetBlendState(bs, statecache.BlendColor(state, rgba))
		cs.blendColor = rgba
	}
	if cs.depthChanged(state, stencil) {
		ds, err := c.states.DepthStencilState(c.dev, state, stencil)
		if err != nil {
			return err
		}
		c.ctx.SetDepthStencilState(ds, statecache.StencilRef(stencil))
		cs.stencil = stencil
	}
	wasOn := cs.scissorOn
	if cs.rasterChanged(state, scissorOn) {
		rs, err := c.states.RasterizerState(c.dev, state, c.wireframe, scissorOn)
		if err != nil {
			return err
		}
		c.ctx.SetRasterizerState(rs)
		cs.scissorOn = scissorOn
	}
	if topo := metadata.TopologyFromState(state); cs.dirty || topo != cs.topology {
		c.ctx.SetPrimitiveTopology(topo)
		cs.topology = topo
	}
	if scissorOn && (cs.dirty || !wasOn || scissor != cs.scissor) {
		c.ctx.SetScissor(scissor)
		cs.scissor = scissor
	}
	cs.state = state
	return nil
}

// applyGeometry binds vertex streams, the input layout and the index buffer.
func (c *Context) applyGeometry(d *metadata.DrawItem, p *program, programChanged bool) error {
	cs := &c.cs
	g := &c.geo
	streams := cs.streamsChanged(d)
	if streams && len(g.bufs) > 0 {
		c.ctx.SetVertexBuffers(0, g.bufs, g.strides, g.offsets)
	}
	if streams || programChanged {
		hash := inputLayoutHash(g.layouts, p.vs, d.InstanceDataStride)
		if cs.dirty || hash != cs.layoutHash {
			il, err := c.states.InputLayoutState(c.dev, hash, func() gpu.InputLayoutDesc {
				return inputLayoutDesc(g.layouts, p.vs.AttributeMask(), d.InstanceDataStride, p.vs.Bytecode())
			})
			if err != nil {
				return err
			}
			c.ctx.SetInputLayout(il)
			cs.layoutHash = hash
		}
		cs.streams, cs.streamMask = d.Streams, d.StreamMask
		cs.instance, cs.instanceOffset, cs.instanceStride = d.InstanceDataBuffer, d.InstanceDataOffset, d.InstanceDataStride
	}
	if g.index != nil && (cs.dirty || cs.index != d.IndexBuffer) {
		c.ctx.SetIndexBuffer(g.index.buf, indexFormat(g.index), 0)
	}
	cs.index = d.IndexBuffer
	return nil
}

// drawIndirect issues the commands of an indirect buffer, with the vendor
// multi-draw when the device has it.
func (c *Context) drawIndirect(d *metadata.DrawItem, g *geometry, ifh bool) {
	const stride = IndirectStride
	total := g.indirect.desc.Size / stride
	start := min(uint32(d.StartIndirect), total)
	num := uint32(d.NumIndirect)
	if d.NumIndirect == 0xffff || start+num > total {
		num = total - start
	}
	c.cur.NumDraw += max(num, 1) - 1
	if ifh || num == 0 {
		return
	}
	offset := start * stride
	indexed := g.index != nil
	if mdi, ok := c.ctx.(gpu.MultiDrawIndirect); ok && c.caps.MultiDrawIndirect {
		if indexed {
			mdi.MultiDrawIndexedIndirect(num, g.indirect.buf, offset, stride)
		} else {
			mdi.MultiDrawIndirect(num, g.indirect.buf, offset, stride)
		}
		return
	}
	for i := uint32(0); i < num; i++ {
		if indexed {
			c.ctx.DrawIndexedIndirect(g.indirect.buf, offset+i*stride)
		} else {
			c.ctx.DrawIndirect(g.indirect.buf, offset+i*stride)
		}
	}
}

// applyBinds re-binds the slots whose binding changed since the last item,
// and every bound slot after a program change.
func (c *Context) applyBinds(binds *metadata.Binds, programChanged, compute bool) error {
	cs := &c.cs
	for slot := range binds {
		b := binds[slot]
		prev := cs.binds[slot]
		if !cs.dirty && b == prev && !(programChanged && b.IsBound()) {
			continue
		}
		if !b.IsBound() {
			if prev.IsBound() {
				c.unbindSlot(uint32(slot), compute)
			}
			cs.binds[slot] = b
			continue
		}
		ok, err := c.bindSlot(uint32(slot), b, compute)
		if err != nil {
			return err
		}
		if !ok {
			b = metadata.Binding{Handle: metadata.InvalidHandle}
		}
		cs.binds[slot] = b
	}
	return nil
}

func (c *Context) unbindSlot(slot uint32, compute bool) {
	if compute && c.cs.uavs&(1<<slot) != 0 {
		c.ctx.SetUnorderedAccess(slot, nil)
		c.cs.uavs &^= 1 << slot
		return
	}
	stage := gpu.StageFragment
	if compute {
		stage = gpu.StageCompute
	}
	c.ctx.SetShaderResource(stage, slot, nil)
}

// bindSlot binds one resource. A stale handle is asserted and leaves the
// slot empty.
func (c *Context) bindSlot(slot uint32, b metadata.Binding, compute bool) (bool, error) {
	write := compute && b.Access != metadata.AccessRead
	switch b.Kind {
	case metadata.BindTexture:
		t := c.res.textures.get(b.Handle)
		if t == nil {
			core.Assert(false, "slot %d uses unknown texture %d", slot, b.Handle)
			return false, nil
		}
		key := viewcache.Key{Kind: b.Kind, Handle: b.Handle, Mip: b.Mip, Dimension: t.dimension(), Compute: write}
		desc := gpu.ViewDesc{Format: t.desc.Format, Dimension: t.dimension(), Mip: b.Mip, MipCount: t.desc.Mips - min(b.Mip, t.desc.Mips)}
		if write {
			desc.MipCount = 1
			v, err := c.views.Get(key, func() (gpu.View, error) { return c.dev.CreateUnorderedAccessView(t.tex, desc) })
			if err != nil {
				return false, err
			}
			c.ctx.SetUnorderedAccess(slot, v)
			c.cs.uavs |= 1 << slot
			return true, nil
		}
		v, err := c.views.Get(key, func() (gpu.View, error) { return c.dev.CreateShaderResourceView(t.tex, desc) })
		if err != nil {
			return false, err
		}
		stage := gpu.StageFragment
		if compute {
			stage = gpu.StageCompute
		}
		c.ctx.SetShaderResource(stage, slot, v)

		flags := b.SamplerFlags
		if flags&metadata.SamplerUseTextureFlags != 0 {
			flags = t.flags
		}
		border := c.palette[(flags&metadata.SamplerBorderColorMask)>>metadata.SamplerBorderColorShift]
		ss, err := c.states.SamplerState(c.dev, flags, border)
		if err != nil {
			return false, err
		}
		c.ctx.SetSampler(stage, slot, ss)
		return true, nil

	case metadata.BindVertexBuffer, metadata.BindIndexBuffer:
		tb := c.res.vertexBuffers
		if b.Kind == metadata.BindIndexBuffer {
			tb = c.res.indexBuffers
		}
		buf := tb.get(b.Handle)
		if buf == nil {
			core.Assert(false, "slot %d uses unknown %s %d", slot, tb.name, b.Handle)
			return false, nil
		}
		desc := gpu.ViewDesc{
			Format:      metadata.FormatR32U,
			Dimension:   gpu.DimBuffer,
			NumElements: buf.desc.Size / 4,
		}
		key := viewcache.Key{Kind: b.Kind, Handle: b.Handle, Dimension: gpu.DimBuffer, Compute: write}
		if write {
			v, err := c.views.Get(key, func() (gpu.View, error) { return c.dev.CreateUnorderedAccessView(buf.buf, desc) })
			if err != nil {
				return false, err
			}
			c.ctx.SetUnorderedAccess(slot, v)
			c.cs.uavs |= 1 << slot
			return true, nil
		}
		v, err := c.views.Get(key, func() (gpu.View, error) { return c.dev.CreateShaderResourceView(buf.buf, desc) })
		if err != nil {
			return false, err
		}
		stage := gpu.StageVertex
		if compute {
			stage = gpu.StageCompute
		}
		c.ctx.SetShaderResource(stage, slot, v)
		return true, nil
	}
	core.Assert(false, "slot %d has binding kind %d", slot, b.Kind)
	return false, nil
}

// commitUniforms applies the item's uniform values, commits the program
// constants when needed and uploads the dirty stages.
func (c *Context) commitUniforms(f *metadata.Frame, p *program, begin, end uint32, programChanged bool, pre *uniform.PredefinedValues) {
	hasUniforms := end > begin
	if hasUniforms {
		if end > uint32(len(f.Uniforms)) {
			core.Assert(false, "uniform range [%d,%d) past stream of %d bytes", begin, end, len(f.Uniforms))
			hasUniforms = false
		} else if _, err := c.registry.Update(f.Uniforms[begin:end]); err != nil {
			c.log.Warn("frame uniforms", "err", err)
		}
	}
	if programChanged || hasUniforms {
		if err := c.uniforms.Commit(p.vs.Constants(), c.registry); err != nil {
			c.log.Warn("commit constants", "stage", p.vs.Stage(), "err", err)
		}
		if p.fs != nil {
			if err := c.uniforms.Commit(p.fs.Constants(), c.registry); err != nil {
				c.log.Warn("commit constants", "stage", p.fs.Stage(), "err", err)
			}
		}
	}
	if len(p.predefined) > 0 {
		if err := c.uniforms.WritePredefined(p.predefined, pre); err != nil {
			c.log.Warn("predefined uniforms", "err", err)
		}
	}
	c.uniforms.Flush(c.ctx)
}

func (c *Context) enterCompute() {
	cs := &c.cs
	c.ctx.SetProgram(nil)
	for slot, b := range cs.binds {
		if b.IsBound() {
			c.unbindSlot(uint32(slot), false)
		}
	}
	cs.binds.Clear()
	cs.compute = true
	cs.program, cs.prog = metadata.InvalidProgram, nil
}

func (c *Context) leaveCompute() {
	cs := &c.cs
	c.ctx.SetComputeProgram(nil)
	for slot, b := range cs.binds {
		if b.IsBound() || cs.uavs&(1<<slot) != 0 {
			c.unbindSlot(uint32(slot), true)
		}
	}
	cs.uavs = 0
	cs.compute = false
	cs.invalidate()
}

func (c *Context) dispatch(f *metadata.Frame, key metadata.DecodedKey, ci *metadata.ComputeItem, binds *metadata.Binds) error {
	cs := &c.cs
	p := c.res.programs.get(uint16(key.Program))
	if p == nil || !p.compute {
		core.Assert(false, "dispatch with invalid compute program %d", key.Program)
		c.skip()
		return nil
	}
	var indirect *buffer
	if ci.IndirectBuffer.IsValid() {
		if indirect = c.res.indirectBuffers.get(uint16(ci.IndirectBuffer)); indirect == nil {
			core.Assert(false, "unknown indirect buffer %d", ci.IndirectBuffer)
			c.skip()
			return nil
		}
	}
	if !cs.compute {
		c.enterCompute()
	}
	programChanged := cs.dirty || cs.program != key.Program
	if programChanged {
		c.ctx.SetComputeProgram(p.native)
		c.uniforms.SetComputeProgram(p.vs.ConstantSize())
		cs.program, cs.prog = key.Program, p
	}
	if err := c.applyBinds(binds, programChanged, true); err != nil {
		return c.itemFailed(err)
	}
	view := &f.Views[key.View]
	pre := uniform.PredefinedValues{
		Rect:  cs.rect,
		View:  view.ViewMatrix,
		Proj:  view.Proj,
		Model: modelMatrices(f, ci.StartMatrix, ci.NumMatrices),
	}
	c.commitUniforms(f, p, ci.UniformBegin, ci.UniformEnd, programChanged, &pre)
	cs.dirty = false

	c.cur.NumCompute++
	if f.Debug&metadata.DebugIFH != 0 {
		return nil
	}
	if indirect == nil {
		c.ctx.Dispatch(ci.NumX, ci.NumY, ci.NumZ)
		return nil
	}
	total := indirect.desc.Size / IndirectStride
	start := min(uint32(ci.StartIndirect), total)
	num := uint32(ci.NumIndirect)
	if ci.NumIndirect == 0xffff || start+num > total {
		num = total - start
	}
	for i := uint32(0); i < num; i++ {
		c.ctx.DispatchIndirect(indirect.buf, (start+i)*IndirectStride)
	}
	return nil
}

func mipSize(size uint32, mip uint8) uint32 {
	return max(size>>mip, 1)
}

func (c *Context) blit(b *metadata.BlitItem) {
	src := c.res.textures.get(uint16(b.Src))
	dst := c.res.textures.get(uint16(b.Dst))
	if src == nil || dst == nil {
		core.Assert(false, "blit between unknown textures %d -> %d", b.Src, b.Dst)
		c.cur.NumSkipped++
		return
	}
	box := gpu.Box{
		X:      uint32(b.SrcX),
		Y:      uint32(b.SrcY),
		Z:      uint32(b.SrcZ),
		Width:  uint32(b.Width),
		Height: uint32(b.Height),
		Depth:  uint32(b.Depth),
	}
	if box.Width == 0 {
		box.Width = mipSize(src.desc.Width, b.SrcMip) - min(box.X, mipSize(src.desc.Width, b.SrcMip))
	}
	if box.Height == 0 {
		box.Height = mipSize(src.desc.Height, b.SrcMip) - min(box.Y, mipSize(src.desc.Height, b.SrcMip))
	}
	if box.Depth == 0 {
		box.Depth = 1
	}
	c.ctx.CopyTextureRegion(dst.tex, b.DstMip, uint32(b.DstX), uint32(b.DstY), uint32(b.DstZ), src.tex, b.SrcMip, box)
	c.cur.NumBlit++
}

func (c *Context) finishStats() {
	c.cpu.Stop()
	c.metrics.Update(c.cpu.Elapsed())
	s := &c.cur
	s.CPUTime = c.cpu.Elapsed()
	if c.timers != nil {
		r := c.timers.Result(frameTimer)
		s.GPUTime = r.Elapsed()
		s.GPUTimeBegin, s.GPUTimeEnd, s.GPUFrequency = r.Begin, r.End, r.Frequency
		s.PendingTimerQueries = c.timers.Pending()
	}
	if c.occlusion != nil {
		s.PendingOcclusionQueries = c.occlusion.Pending()
	}
	s.BlendStates = c.states.Blend.Stats()
	s.DepthStencilStates = c.states.DepthStencil.Stats()
	s.RasterizerStates = c.states.Rasterizer.Stats()
	s.SamplerStates = c.states.Sampler.Stats()
	s.InputLayouts = c.states.InputLayout.Stats()
	s.ResourceViews = c.views.Stats()
	res := c.swap.Resolution()
	s.Width, s.Height = res.Width, res.Height
	c.stats = c.cur
}
