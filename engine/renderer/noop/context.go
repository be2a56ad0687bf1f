package noop

import (
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
)

// Context records commands. Constant uploads are kept so tests can inspect
// the bytes a draw saw.
type Context struct {
	dev       *Device
	Constants [gpu.StageCount][]byte
}

func (c *Context) SetBlendState(s gpu.BlendState, factor [4]float32) {
	c.dev.record("SetBlendState", s, factor)
}

func (c *Context) SetDepthStencilState(s gpu.DepthStencilState, stencilRef uint8) {
	c.dev.record("SetDepthStencilState", s, stencilRef)
}

func (c *Context) SetRasterizerState(s gpu.RasterizerState) {
	c.dev.record("SetRasterizerState", s)
}

func (c *Context) SetPrimitiveTopology(t metadata.Topology) {
	c.dev.record("SetPrimitiveTopology", t)
}

func (c *Context) SetViewport(r metadata.Rect) {
	c.dev.record("SetViewport", r)
}

func (c *Context) SetScissor(r metadata.Rect) {
	c.dev.record("SetScissor", r)
}

func (c *Context) SetRenderTargets(colors []gpu.View, depth gpu.View) {
	c.dev.record("SetRenderTargets", len(colors), depth)
}

func (c *Context) ClearRenderTarget(v gpu.View, color [4]float32) {
	c.dev.record("ClearRenderTarget", v, color)
}

func (c *Context) ClearDepthStencil(v gpu.View, flags metadata.ClearFlags, depth float32, stencil uint8) {
	c.dev.record("ClearDepthStencil", v, flags, depth, stencil)
}

func (c *Context) SetProgram(p gpu.Program) {
	c.dev.record("SetProgram", p)
}

func (c *Context) SetComputeProgram(p gpu.Program) {
	c.dev.record("SetComputeProgram", p)
}

func (c *Context) SetInputLayout(l gpu.InputLayout) {
	c.dev.record("SetInputLayout", l)
}

func (c *Context) SetVertexBuffers(start uint32, bufs []gpu.Buffer, strides, offsets []uint32) {
	c.dev.record("SetVertexBuffers", start, len(bufs))
}

func (c *Context) SetIndexBuffer(b gpu.Buffer, format gpu.IndexFormat, offset uint32) {
	c.dev.record("SetIndexBuffer", b, format, offset)
}

func (c *Context) SetShaderResource(stage gpu.Stage, slot uint32, v gpu.View) {
	c.dev.record("SetShaderResource", stage, slot, v)
}

func (c *Context) SetSampler(stage gpu.Stage, slot uint32, s gpu.SamplerState) {
	c.dev.record("SetSampler", stage, slot, s)
}

func (c *Context) SetUnorderedAccess(slot uint32, v gpu.View) {
	c.dev.record("SetUnorderedAccess", slot, v)
}

func (c *Context) UpdateConstants(stage gpu.Stage, data []byte) {
	c.Constants[stage] = append(c.Constants[stage][:0], data...)
	c.dev.record("UpdateConstants", stage, len(data))
}

func (c *Context) UpdateBuffer(b gpu.Buffer, offset uint32, data []byte, discard bool) {
	if nb, ok := b.(*Buffer); ok && int(offset)+len(data) <= len(nb.Data) {
		copy(nb.Data[offset:], data)
	}
	c.dev.record("UpdateBuffer", b, offset, len(data), discard)
}

func (c *Context) Draw(vertexCount, instanceCount, startVertex, startInstance uint32) {
	c.dev.record("Draw", vertexCount, instanceCount, startVertex, startInstance)
}

func (c *Context) DrawIndexed(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32) {
	c.dev.record("DrawIndexed", indexCount, instanceCount, startIndex, baseVertex, startInstance)
}

func (c *Context) DrawIndirect(b gpu.Buffer, offset uint32) {
	c.dev.record("DrawIndirect", b, offset)
}

func (c *Context) DrawIndexedIndirect(b gpu.Buffer, offset uint32) {
	c.dev.record("DrawIndexedIndirect", b, offset)
}

func (c *Context) Dispatch(x, y, z uint32) {
	c.dev.record("Dispatch", x, y, z)
}

func (c *Context) DispatchIndirect(b gpu.Buffer, offset uint32) {
	c.dev.record("DispatchIndirect", b, offset)
}

func (c *Context) CopyTextureRegion(dst gpu.Texture, dstMip uint8, dx, dy, dz uint32, src gpu.Texture, srcMip uint8, box gpu.Box) {
	c.dev.record("CopyTextureRegion", dst, src, box)
}

func (c *Context) ResolveSubresource(dst, src gpu.Texture) {
	c.dev.record("ResolveSubresource", dst, src)
}

// ReadTexture returns an opaque gray image of the texture's size.
func (c *Context) ReadTexture(t gpu.Texture) ([]byte, error) {
	if code := c.dev.record("ReadTexture", t); code != gpu.OK {
		return nil, gpu.Check("ReadTexture", code)
	}
	desc := t.Desc()
	data := make([]byte, desc.Format.Pitch(desc.Width)*desc.Height)
	for i := range data {
		data[i] = 0x80
	}
	return data, nil
}

func (c *Context) BeginQuery(q gpu.Query) {
	c.dev.record("BeginQuery", q)
	nq := q.(*Query)
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	c.dev.ticks += 1000
	nq.begin = c.dev.ticks
	nq.ended = false
}

func (c *Context) EndQuery(q gpu.Query) {
	c.dev.record("EndQuery", q)
	nq := q.(*Query)
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	c.dev.ticks += 1000
	nq.end = c.dev.ticks
	nq.ended = true
	nq.samples = c.dev.Samples
	nq.pollsLeft = c.dev.QueryLatency
	nq.serial = 0
	if c.dev.DeferSubmit {
		nq.serial = c.dev.serial + 1
	}
}

func (c *Context) GetQueryData(q gpu.Query, flush bool) (gpu.QueryResult, gpu.Code) {
	if code := c.dev.record("GetQueryData", q, flush); code != gpu.OK {
		return gpu.QueryResult{}, code
	}
	nq := q.(*Query)
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	if !nq.ended {
		return gpu.QueryResult{}, gpu.WasStillDrawing
	}
	if nq.serial > c.dev.serial {
		if !flush {
			return gpu.QueryResult{}, gpu.WasStillDrawing
		}
		c.dev.calls = append(c.dev.calls, Call{Name: "Flush"})
		c.dev.serial++
	}
	if c.dev.QueryLatency < 0 {
		return gpu.QueryResult{}, gpu.WasStillDrawing
	}
	if nq.pollsLeft > 0 {
		nq.pollsLeft--
		return gpu.QueryResult{}, gpu.WasStillDrawing
	}
	if nq.kind == gpu.QueryOcclusion {
		return gpu.QueryResult{Samples: nq.samples}, gpu.OK
	}
	return gpu.QueryResult{Begin: nq.begin, End: nq.end, Frequency: 1_000_000_000}, gpu.OK
}

func (c *Context) Flush() gpu.Code {
	if code := c.dev.record("Flush"); code != gpu.OK {
		return code
	}
	c.dev.submit()
	return c.dev.FlushCode
}

func (c *Context) ClearState() {
	c.dev.record("ClearState")
}

// MultiDrawIndirect is only taken by the renderer when the caps advertise
// MultiDrawIndirect.
func (c *Context) MultiDrawIndirect(count uint32, b gpu.Buffer, offset, stride uint32) {
	c.dev.record("MultiDrawIndirect", count, b, offset, stride)
}

func (c *Context) MultiDrawIndexedIndirect(count uint32, b gpu.Buffer, offset, stride uint32) {
	c.dev.record("MultiDrawIndexedIndirect", count, b, offset, stride)
}
