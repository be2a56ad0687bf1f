package backend

import (
	"fmt"

	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/math"
	"github.com/spaghettifunk/rendercore/engine/renderer/debugtext"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
	"github.com/spaghettifunk/rendercore/engine/renderer/uniform"
	"github.com/spaghettifunk/rendercore/engine/renderer/viewcache"
)

const (
	overlayState = metadata.StateWriteRGB | metadata.StateWriteAlpha

	overlaySampler = metadata.SamplerMinPoint | metadata.SamplerMagPoint |
		metadata.SamplerUClamp | metadata.SamplerVClamp

	attrStats uint8 = 0x0f
	attrTitle uint8 = 0x1f
)

// overlay draws the debug text grids over the back buffer after every view.
type overlay struct {
	font    *debugtext.Font
	program metadata.ProgramHandle
	atlas   metadata.TextureHandle
	layout  metadata.VertexLayoutHandle
	vb      metadata.VertexBufferHandle
	ib      metadata.IndexBufferHandle

	mesh   debugtext.Mesh
	text   *metadata.TextVideoMem
	vbytes []byte
	ibytes []byte
	// release is bound to the context that created the handles.
	release func()
}

// SetDebugText installs the font and shaders of the diagnostics overlay.
// atlas holds the R8 pixels of the font's single page.
func (c *Context) SetDebugText(vs, fs Shader, font *debugtext.Font, atlas []byte) error {
	if c.overlay != nil {
		c.overlay.release()
		c.overlay = nil
	}
	o := &overlay{
		font:    font,
		program: metadata.InvalidProgram,
		atlas:   metadata.InvalidTexture,
		layout:  metadata.InvalidVertexLayout,
		vb:      metadata.InvalidVertexBuffer,
		ib:      metadata.InvalidIndexBuffer,
		text:    metadata.NewTextVideoMem(0, 0),
	}
	o.release = func() {
		if o.program.IsValid() {
			c.DestroyProgram(o.program)
		}
		if o.atlas.IsValid() {
			c.DestroyTexture(o.atlas)
		}
		if o.vb.IsValid() {
			c.DestroyVertexBuffer(o.vb)
		}
		if o.ib.IsValid() {
			c.DestroyIndexBuffer(o.ib)
		}
		if o.layout.IsValid() {
			c.DestroyVertexLayout(o.layout)
		}
	}

	var err error
	o.atlas, err = c.CreateTexture(gpu.TextureDesc{
		Width:  uint32(font.AtlasWidth),
		Height: uint32(font.AtlasHeight),
		Format: metadata.FormatR8,
	}, atlas, overlaySampler)
	if err != nil {
		o.release()
		return fmt.Errorf("debug text atlas: %w", err)
	}
	o.layout, err = c.CreateVertexLayout(VertexLayout{
		Attribs: []VertexAttrib{
			{Attrib: AttribPosition, Format: gpu.VertexFormatFloat3, Offset: 0},
			{Attrib: AttribColor0, Format: gpu.VertexFormatUByte4Norm, Offset: 12},
			{Attrib: AttribColor1, Format: gpu.VertexFormatUByte4Norm, Offset: 16},
			{Attrib: AttribTexCoord0, Format: gpu.VertexFormatFloat2, Offset: 20},
		},
		Stride: debugtext.VertexSize,
	})
	if err != nil {
		o.release()
		return err
	}
	if o.vb, err = c.CreateVertexBuffer(debugtext.MaxQuads*4*debugtext.VertexSize, nil, o.layout, true); err != nil {
		o.release()
		return fmt.Errorf("debug text vertices: %w", err)
	}
	if o.ib, err = c.CreateIndexBuffer(debugtext.MaxQuads*6*2, nil, false, true); err != nil {
		o.release()
		return fmt.Errorf("debug text indices: %w", err)
	}
	if o.program, err = c.CreateProgram(vs, fs); err != nil {
		o.release()
		return fmt.Errorf("debug text program: %w", err)
	}
	c.overlay = o
	return nil
}

// printStats fills the overlay grid with the counters of the last frame.
func (c *Context) printStats(o *overlay) *metadata.TextVideoMem {
	res := c.swap.Resolution()
	cols := res.Width / uint32(max(o.font.CellWidth, 1))
	rows := res.Height / uint32(max(o.font.CellHeight, 1))
	if o.text.Width != cols || o.text.Height != rows {
		o.text.Resize(cols, rows)
	} else {
		o.text.Clear(0)
	}
	s := &c.stats
	fps, ms := c.metrics.Frame()
	t := o.text
	y := uint32(0)
	line := func(attr uint8, format string, args ...interface{}) {
		t.Printf(0, y, attr, format, args...)
		y++
	}
	line(attrTitle, " %s %s ", c.caps.Vendor, c.caps.DeviceName)
	line(attrStats, "frame %d  %dx%d  %s", s.FrameNum, s.Width, s.Height, c.swap.Mode())
	line(attrStats, "cpu %6.2f ms  avg %6.2f ms  %5.1f fps", float64(s.CPUTime.Microseconds())/1000, ms, fps)
	line(attrStats, "gpu %6.2f ms  pending %d timer %d occlusion", float64(s.GPUTime.Microseconds())/1000,
		s.PendingTimerQueries, s.PendingOcclusionQueries)
	line(attrStats, "wait submit %v  render %v", s.WaitSubmit, s.WaitRender)
	line(attrStats, "draw %d  compute %d  blit %d  skipped %d", s.NumDraw, s.NumCompute, s.NumBlit, s.NumSkipped)
	line(attrStats, "prims %d  indices %d", s.TotalPrimsRendered(), s.NumIndices)
	for _, e := range []struct {
		name string
		cs   metadata.CacheStats
	}{
		{"blend", s.BlendStates},
		{"depth", s.DepthStencilStates},
		{"raster", s.RasterizerStates},
		{"sampler", s.SamplerStates},
		{"layout", s.InputLayouts},
		{"views", s.ResourceViews},
	} {
		line(attrStats, "%-8s %5d  hit %8d  miss %6d  evict %d", e.name, e.cs.Len, e.cs.Hits, e.cs.Misses, e.cs.Evictions)
	}
	for _, v := range s.Views {
		line(attrStats, "[%3d] %-16s cpu %6.2f  gpu %6.2f", v.View, v.Name,
			float64(v.CPUTime.Microseconds())/1000, float64(v.GPUTime.Microseconds())/1000)
	}
	return t
}

// drawOverlay draws the stats grid and the frame's own text grid.
func (c *Context) drawOverlay(f *metadata.Frame) error {
	o := c.overlay
	if o == nil || f.Debug&(metadata.DebugStats|metadata.DebugText) == 0 {
		return nil
	}
	var mems []*metadata.TextVideoMem
	if f.Debug&metadata.DebugStats != 0 {
		mems = append(mems, c.printStats(o))
	}
	if f.Debug&metadata.DebugText != 0 && f.TextVideoMem != nil {
		mems = append(mems, f.TextVideoMem)
	}
	for _, mem := range mems {
		if err := c.drawText(o, mem); err != nil {
			if core.IsDeviceLost(err) {
				return c.checkLost(err)
			}
			c.log.Warn("debug text overlay", "err", err)
		}
	}
	c.cs.invalidate()
	return nil
}

func (c *Context) drawText(o *overlay, mem *metadata.TextVideoMem) error {
	debugtext.Build(mem, o.font, &o.mesh)
	quads := o.mesh.NumQuads()
	if quads == 0 {
		return nil
	}
	p := c.res.programs.get(uint16(o.program))
	vb := c.res.vertexBuffers.get(uint16(o.vb))
	ib := c.res.indexBuffers.get(uint16(o.ib))
	atlas := c.res.textures.get(uint16(o.atlas))
	l := c.res.layouts.get(uint16(o.layout))
	if p == nil || vb == nil || ib == nil || atlas == nil || l == nil {
		return fmt.Errorf("debug text resources: %w", core.ErrInvalidHandle)
	}

	o.vbytes = o.mesh.VertexBytes(o.vbytes)
	o.ibytes = o.mesh.IndexBytes(o.ibytes)
	c.ctx.UpdateBuffer(vb.buf, 0, o.vbytes, true)
	c.ctx.UpdateBuffer(ib.buf, 0, o.ibytes, true)

	c.bindTarget(metadata.InvalidFrameBuffer)
	rect := viewport(metadata.Rect{}, c.cs.width, c.cs.height)
	c.cs.rect = rect
	c.ctx.SetViewport(rect)
	if err := c.applyDrawState(overlayState|metadata.StateBlendAlpha, 0, 0, metadata.Rect{}, false); err != nil {
		return err
	}

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
	c.ctx.SetIndexBuffer(ib.buf, gpu.Index16, 0)

	key := viewcache.Key{Kind: metadata.BindTexture, Handle: uint16(o.atlas), Dimension: atlas.dimension()}
	srv, err := c.views.Get(key, func() (gpu.View, error) {
		return c.dev.CreateShaderResourceView(atlas.tex, gpu.ViewDesc{Format: atlas.desc.Format, Dimension: atlas.dimension(), MipCount: atlas.desc.Mips})
	})
	if err != nil {
		return err
	}
	ss, err := c.states.SamplerState(c.dev, overlaySampler, [4]float32{})
	if err != nil {
		return err
	}
	c.ctx.SetShaderResource(gpu.StageFragment, 0, srv)
	c.ctx.SetSampler(gpu.StageFragment, 0, ss)

	c.uniforms.SetProgram(p.vs.ConstantSize(), fragmentSize(p))
	if len(p.predefined) > 0 {
		pre := uniform.PredefinedValues{
			Rect: rect,
			View: math.NewMat4Identity(),
			Proj: math.NewMat4Orthographic(0, float32(rect.Width), float32(rect.Height), 0, -1, 1),
		}
		if err := c.uniforms.WritePredefined(p.predefined, &pre); err != nil {
			return err
		}
	}
	c.uniforms.Flush(c.ctx)
	c.ctx.DrawIndexed(uint32(quads*6), 1, 0, 0, 0)
	return nil
}
