package backend

import (
	"encoding/binary"
	gomath "math"

	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
	"github.com/spaghettifunk/rendercore/engine/renderer/uniform"
)

const clearQuadSize = 4 * 12

// clearPass draws a quad for clears that only cover part of the target.
type clearPass struct {
	program metadata.ProgramHandle
	vb      metadata.VertexBufferHandle
	layout  metadata.VertexLayoutHandle
	// warned is set once a partial clear had to fall back to a full clear.
	warned bool
	verts  []byte
}

func (p *clearPass) release() {
	p.program = metadata.InvalidProgram
	p.vb = metadata.InvalidVertexBuffer
	p.layout = metadata.InvalidVertexLayout
}

func (p *clearPass) ready() bool {
	return p.program.IsValid()
}

// SetClearProgram installs the shaders used to clear part of a target. The
// fragment shader outputs the color in fragment constant register 0.
func (c *Context) SetClearProgram(vs, fs Shader) error {
	c.destroyClearPass()
	l, err := c.CreateVertexLayout(VertexLayout{
		Attribs: []VertexAttrib{{Attrib: AttribPosition, Format: gpu.VertexFormatFloat3}},
		Stride:  12,
	})
	if err != nil {
		return err
	}
	c.clear.layout = l
	if c.clear.vb, err = c.CreateVertexBuffer(clearQuadSize, nil, l, true); err != nil {
		c.destroyClearPass()
		return err
	}
	if c.clear.program, err = c.CreateProgram(vs, fs); err != nil {
		c.destroyClearPass()
		return err
	}
	return nil
}

func (c *Context) destroyClearPass() {
	if c.clear.program.IsValid() {
		c.DestroyProgram(c.clear.program)
	}
	if c.clear.vb.IsValid() {
		c.DestroyVertexBuffer(c.clear.vb)
	}
	if c.clear.layout.IsValid() {
		c.DestroyVertexLayout(c.clear.layout)
	}
	c.clear.release()
}

// clearView clears the part of the bound target inside rect. Native clears
// always hit the whole attachment, so smaller rects draw a quad instead.
func (c *Context) clearView(cl metadata.Clear, rect metadata.Rect) {
	full := rect.Covers(c.cs.width, c.cs.height)
	if !full && !c.clear.ready() {
		if !c.clear.warned {
			c.log.Warn("partial view clear without a clear program, clearing the whole target")
			c.clear.warned = true
		}
		full = true
	}
	if full {
		c.clearNative(cl)
		return
	}
	if err := c.clearQuad(cl); err != nil {
		c.log.Warn("clear quad", "err", err)
	}
	c.cs.invalidate()
}

func (c *Context) clearNative(cl metadata.Clear) {
	rtv, dsv := c.boundTargets()
	if cl.Flags&metadata.ClearColor != 0 {
		for _, v := range rtv {
			if v != nil {
				c.ctx.ClearRenderTarget(v, cl.Color)
			}
		}
	}
	if ds := cl.Flags & (metadata.ClearDepth | metadata.ClearStencil); ds != 0 && dsv != nil {
		c.ctx.ClearDepthStencil(dsv, ds, cl.Depth, cl.Stencil)
	}
}

func clearState(cl metadata.Clear) (state, stencil uint64) {
	state = metadata.StateDepthTestAlways | metadata.StatePtTriStrip
	if cl.Flags&metadata.ClearColor != 0 {
		state |= metadata.StateWriteRGB | metadata.StateWriteAlpha
	}
	if cl.Flags&metadata.ClearDepth != 0 {
		state |= metadata.StateWriteZ
	}
	if cl.Flags&metadata.ClearStencil != 0 {
		front := metadata.StencilTestAlways |
			metadata.StencilFuncRef(cl.Stencil) |
			metadata.StencilFuncRMask(0xff) |
			metadata.StencilOpFailSReplace |
			metadata.StencilOpFailZReplace |
			metadata.StencilOpPassZReplace
		stencil = metadata.PackStencil(front, metadata.StencilNone)
	}
	return state, stencil
}

func (c *Context) clearQuad(cl metadata.Clear) error {
	p := c.res.programs.get(uint16(c.clear.program))
	vb := c.res.vertexBuffers.get(uint16(c.clear.vb))
	l := c.res.layouts.get(uint16(c.clear.layout))
	if p == nil || vb == nil || l == nil {
		return core.ErrNotInitialized
	}
	state, stencil := clearState(cl)
	if err := c.applyDrawState(state, stencil, 0, metadata.Rect{}, false); err != nil {
		return err
	}

	z := gomath.Float32bits(cl.Depth)
	verts := c.clear.verts[:0]
	for _, xy := range [4][2]float32{{-1, -1}, {1, -1}, {-1, 1}, {1, 1}} {
		verts = binary.LittleEndian.AppendUint32(verts, gomath.Float32bits(xy[0]))
		verts = binary.LittleEndian.AppendUint32(verts, gomath.Float32bits(xy[1]))
		verts = binary.LittleEndian.AppendUint32(verts, z)
	}
	c.clear.verts = verts
	c.ctx.UpdateBuffer(vb.buf, 0, verts, true)

	layouts := []*VertexLayout{l}
	il, err := c.states.InputLayoutState(c.dev, inputLayoutHash(layouts, p.vs, 0), func() gpu.InputLayoutDesc {
		return inputLayoutDesc(layouts, p.vs.AttributeMask(), 0, p.vs.Bytecode())
	})
	if err != nil {
		return err
	}
	c.ctx.SetProgram(p.native)
	c.ctx.SetInputLayout(il)
	c.ctx.SetVertexBuffers(0, []gpu.Buffer{vb.buf}, []uint32{l.Stride}, []uint32{0})

	c.uniforms.SetProgram(p.vs.ConstantSize(), max(fragmentSize(p), 16))
	if err := c.uniforms.Write(uniform.Vec4|uniform.FragmentBit, 0, 1, uniform.Float32Bytes(cl.Color[:])); err != nil {
		return err
	}
	c.uniforms.Flush(c.ctx)
	c.ctx.Draw(4, 1, 0, 0)
	return nil
}
