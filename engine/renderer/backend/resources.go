package backend

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
	"github.com/spaghettifunk/rendercore/engine/renderer/uniform"
)

// IndirectStride is the size of one indirect draw or dispatch command.
const IndirectStride = 32

// table maps dense handles to resources.
type table[T any] struct {
	name  string
	alloc *core.HandleAlloc
	slots []*T
}

func newTable[T any](name string, max int) *table[T] {
	return &table[T]{
		name:  name,
		alloc: core.NewHandleAlloc(uint16(max)),
		slots: make([]*T, max),
	}
}

func (t *table[T]) add(v *T) (uint16, error) {
	h := t.alloc.Alloc()
	if h == core.InvalidHandle {
		return h, fmt.Errorf("%s table full (%d): %w", t.name, len(t.slots), core.ErrOutOfMemory)
	}
	t.slots[h] = v
	return h, nil
}

func (t *table[T]) get(h uint16) *T {
	if int(h) >= len(t.slots) {
		return nil
	}
	return t.slots[h]
}

func (t *table[T]) remove(h uint16) *T {
	v := t.get(h)
	if v == nil {
		return nil
	}
	if err := t.alloc.Free(h); err != nil {
		core.LogWarn("%s %d: %v", t.name, h, err)
	}
	t.slots[h] = nil
	return v
}

func (t *table[T]) each(fn func(h uint16, v *T)) {
	for i, v := range t.slots {
		if v != nil {
			fn(uint16(i), v)
		}
	}
}

func (t *table[T]) len() int {
	return t.alloc.Len()
}

type texture struct {
	tex   gpu.Texture
	desc  gpu.TextureDesc
	flags uint32
}

func (t *texture) dimension() gpu.ViewDimension {
	switch {
	case t.desc.Cube:
		return gpu.DimCube
	case t.desc.Depth > 1:
		return gpu.Dim3D
	case t.desc.Layers > 1:
		return gpu.Dim2DArray
	case t.desc.Samples > 1:
		return gpu.Dim2DMS
	}
	return gpu.Dim2D
}

type buffer struct {
	buf     gpu.Buffer
	desc    gpu.BufferDesc
	layout  metadata.VertexLayoutHandle
	dynamic bool
}

type program struct {
	native     gpu.Program
	vs, fs     Shader
	compute    bool
	predefined []uniform.PredefinedUniform
}

func (p *program) release() {
	if p.native != nil {
		p.native.Release()
	}
}

type frameBuffer struct {
	colors []metadata.TextureHandle
	depth  metadata.TextureHandle
	rtv    []gpu.View
	dsv    gpu.View
	width  uint32
	height uint32
}

func (fb *frameBuffer) uses(h metadata.TextureHandle) bool {
	if fb.depth == h {
		return true
	}
	for _, c := range fb.colors {
		if c == h {
			return true
		}
	}
	return false
}

func (fb *frameBuffer) release() {
	for _, v := range fb.rtv {
		v.Release()
	}
	if fb.dsv != nil {
		fb.dsv.Release()
	}
	fb.rtv, fb.dsv = nil, nil
}

type resources struct {
	textures        *table[texture]
	vertexBuffers   *table[buffer]
	indexBuffers    *table[buffer]
	indirectBuffers *table[buffer]
	layouts         *table[VertexLayout]
	programs        *table[program]
	frameBuffers    *table[frameBuffer]
	uniforms        *core.HandleAlloc
	occlusion       *core.HandleAlloc
}

func newResources() resources {
	return resources{
		textures:        newTable[texture]("texture", metadata.MaxTextures),
		vertexBuffers:   newTable[buffer]("vertex buffer", metadata.MaxVertexBuffers),
		indexBuffers:    newTable[buffer]("index buffer", metadata.MaxIndexBuffers),
		indirectBuffers: newTable[buffer]("indirect buffer", metadata.MaxIndirectBuffers),
		layouts:         newTable[VertexLayout]("vertex layout", metadata.MaxVertexLayouts),
		programs:        newTable[program]("program", metadata.MaxPrograms),
		frameBuffers:    newTable[frameBuffer]("frame buffer", metadata.MaxFrameBuffers),
		uniforms:        core.NewHandleAlloc(metadata.MaxUniforms),
		occlusion:       core.NewHandleAlloc(metadata.MaxOcclusionQuery),
	}
}

// releaseAll frees every native object and forgets every handle.
func (r *resources) releaseAll() {
	r.frameBuffers.each(func(_ uint16, fb *frameBuffer) { fb.release() })
	r.textures.each(func(_ uint16, t *texture) { t.tex.Release() })
	for _, tb := range []*table[buffer]{r.vertexBuffers, r.indexBuffers, r.indirectBuffers} {
		tb.each(func(_ uint16, b *buffer) { b.buf.Release() })
	}
	r.programs.each(func(_ uint16, p *program) { p.release() })
	*r = newResources()
}

func (c *Context) CreateVertexLayout(l VertexLayout) (metadata.VertexLayoutHandle, error) {
	h, err := c.res.layouts.add(&l)
	return metadata.VertexLayoutHandle(h), err
}

func (c *Context) DestroyVertexLayout(h metadata.VertexLayoutHandle) {
	c.res.layouts.remove(uint16(h))
}

func (c *Context) createBuffer(tb *table[buffer], desc gpu.BufferDesc, data []byte, layout metadata.VertexLayoutHandle) (uint16, error) {
	if !desc.Dynamic && uint32(len(data)) < desc.Size {
		return core.InvalidHandle, fmt.Errorf("%s: %d bytes of data for size %d: %w", tb.name, len(data), desc.Size, core.ErrInvalidHandle)
	}
	native, err := c.dev.CreateBuffer(desc, data)
	if err != nil {
		return core.InvalidHandle, fmt.Errorf("create %s: %w", tb.name, err)
	}
	h, err := tb.add(&buffer{buf: native, desc: desc, layout: layout, dynamic: desc.Dynamic})
	if err != nil {
		native.Release()
		return h, err
	}
	return h, nil
}

// CreateVertexBuffer creates a buffer of size bytes. Static buffers need
// data; dynamic ones are filled with UpdateVertexBuffer.
func (c *Context) CreateVertexBuffer(size uint32, data []byte, layout metadata.VertexLayoutHandle, dynamic bool) (metadata.VertexBufferHandle, error) {
	desc := gpu.BufferDesc{Size: size, Usage: gpu.BufferVertex, Dynamic: dynamic}
	if l := c.res.layouts.get(uint16(layout)); l != nil {
		desc.Stride = l.Stride
	}
	h, err := c.createBuffer(c.res.vertexBuffers, desc, data, layout)
	return metadata.VertexBufferHandle(h), err
}

func (c *Context) CreateIndexBuffer(size uint32, data []byte, index32, dynamic bool) (metadata.IndexBufferHandle, error) {
	desc := gpu.BufferDesc{Size: size, Usage: gpu.BufferIndex, Index32: index32, Dynamic: dynamic}
	h, err := c.createBuffer(c.res.indexBuffers, desc, data, metadata.InvalidVertexLayout)
	return metadata.IndexBufferHandle(h), err
}

// CreateIndirectBuffer creates room for num indirect commands.
func (c *Context) CreateIndirectBuffer(num uint32) (metadata.IndirectBufferHandle, error) {
	desc := gpu.BufferDesc{
		Size:    num * IndirectStride,
		Stride:  IndirectStride,
		Usage:   gpu.BufferIndirect | gpu.BufferStorage,
		Dynamic: true,
	}
	h, err := c.createBuffer(c.res.indirectBuffers, desc, nil, metadata.InvalidVertexLayout)
	return metadata.IndirectBufferHandle(h), err
}

// updateBuffer writes into a dynamic buffer. A write covering the whole
// buffer discards it, any other write must not overlap data in flight.
func (c *Context) updateBuffer(tb *table[buffer], h uint16, offset uint32, data []byte) error {
	b := tb.get(h)
	if b == nil {
		return fmt.Errorf("%s %d: %w", tb.name, h, core.ErrInvalidHandle)
	}
	if !b.dynamic {
		return fmt.Errorf("%s %d is static: %w", tb.name, h, core.ErrUnsupported)
	}
	if offset+uint32(len(data)) > b.desc.Size {
		return fmt.Errorf("%s %d: write of %d bytes at %d past size %d: %w", tb.name, h, len(data), offset, b.desc.Size, core.ErrInvalidHandle)
	}
	discard := offset == 0 && uint32(len(data)) == b.desc.Size
	c.ctx.UpdateBuffer(b.buf, offset, data, discard)
	return nil
}

func (c *Context) UpdateVertexBuffer(h metadata.VertexBufferHandle, offset uint32, data []byte) error {
	return c.updateBuffer(c.res.vertexBuffers, uint16(h), offset, data)
}

func (c *Context) UpdateIndexBuffer(h metadata.IndexBufferHandle, offset uint32, data []byte) error {
	return c.updateBuffer(c.res.indexBuffers, uint16(h), offset, data)
}

func (c *Context) UpdateIndirectBuffer(h metadata.IndirectBufferHandle, offset uint32, data []byte) error {
	return c.updateBuffer(c.res.indirectBuffers, uint16(h), offset, data)
}

func (c *Context) destroyBuffer(tb *table[buffer], kind metadata.BindingKind, h uint16) {
	b := tb.remove(h)
	if b == nil {
		return
	}
	if kind != metadata.BindNone {
		c.views.InvalidateOwner(kind, h)
	}
	b.buf.Release()
	c.cs.invalidate()
}

func (c *Context) DestroyVertexBuffer(h metadata.VertexBufferHandle) {
	c.destroyBuffer(c.res.vertexBuffers, metadata.BindVertexBuffer, uint16(h))
}

func (c *Context) DestroyIndexBuffer(h metadata.IndexBufferHandle) {
	c.destroyBuffer(c.res.indexBuffers, metadata.BindIndexBuffer, uint16(h))
}

func (c *Context) DestroyIndirectBuffer(h metadata.IndirectBufferHandle) {
	c.destroyBuffer(c.res.indirectBuffers, metadata.BindNone, uint16(h))
}

// CreateTexture creates a texture from tightly packed pixels of the first
// mip. samplerFlags are used by bindings that ask for the texture's flags.
func (c *Context) CreateTexture(desc gpu.TextureDesc, data []byte, samplerFlags uint32) (metadata.TextureHandle, error) {
	if desc.Width == 0 || desc.Height == 0 || desc.Width > c.caps.MaxTextureSize || desc.Height > c.caps.MaxTextureSize {
		return metadata.InvalidTexture, fmt.Errorf("texture %dx%d: %w", desc.Width, desc.Height, core.ErrUnsupported)
	}
	desc.Depth = max(desc.Depth, 1)
	desc.Mips = max(desc.Mips, 1)
	desc.Layers = max(desc.Layers, 1)
	desc.Samples = max(desc.Samples, 1)
	if desc.Usage == 0 {
		desc.Usage = gpu.UsageSampled
	}
	native, err := c.dev.CreateTexture(desc, data)
	if err != nil {
		return metadata.InvalidTexture, fmt.Errorf("create texture %dx%d %s: %w", desc.Width, desc.Height, desc.Format, err)
	}
	h, err := c.res.textures.add(&texture{tex: native, desc: desc, flags: samplerFlags})
	if err != nil {
		native.Release()
		return metadata.InvalidTexture, err
	}
	return metadata.TextureHandle(h), nil
}

// CreateTextureFromImage decodes an image file with dec and uploads it.
func (c *Context) CreateTextureFromImage(dec TextureDecoder, data []byte, samplerFlags uint32) (metadata.TextureHandle, error) {
	img, err := dec.Decode(data)
	if err != nil {
		return metadata.InvalidTexture, fmt.Errorf("decode texture: %w", err)
	}
	return c.CreateTexture(gpu.TextureDesc{
		Width:  img.Width,
		Height: img.Height,
		Format: img.Format,
		Usage:  gpu.UsageSampled,
	}, img.Pixels, samplerFlags)
}

// ResizeTexture recreates a render target texture at a new size. Every view
// derived from the old texture is dropped and frame buffers attaching it get
// new views.
func (c *Context) ResizeTexture(h metadata.TextureHandle, width, height uint32) error {
	t := c.res.textures.get(uint16(h))
	if t == nil {
		return fmt.Errorf("texture %d: %w", h, core.ErrInvalidHandle)
	}
	desc := t.desc
	desc.Width, desc.Height = width, height
	native, err := c.dev.CreateTexture(desc, nil)
	if err != nil {
		return fmt.Errorf("resize texture %d to %dx%d: %w", h, width, height, err)
	}
	c.views.InvalidateOwner(metadata.BindTexture, uint16(h))
	t.tex.Release()
	t.tex, t.desc = native, desc
	c.cs.invalidate()
	return c.reattach(h)
}

func (c *Context) DestroyTexture(h metadata.TextureHandle) {
	t := c.res.textures.remove(uint16(h))
	if t == nil {
		return
	}
	c.views.InvalidateOwner(metadata.BindTexture, uint16(h))
	t.tex.Release()
	c.cs.invalidate()
}

// ReadTexture reads back the first mip of a texture.
func (c *Context) ReadTexture(h metadata.TextureHandle) ([]byte, error) {
	t := c.res.textures.get(uint16(h))
	if t == nil {
		return nil, fmt.Errorf("texture %d: %w", h, core.ErrInvalidHandle)
	}
	return c.ctx.ReadTexture(t.tex)
}

func mergePredefined(vs, fs Shader) []uniform.PredefinedUniform {
	var out []uniform.PredefinedUniform
	if vs != nil {
		out = append(out, vs.Predefined()...)
	}
	if fs != nil {
		for _, p := range fs.Predefined() {
			p.Fragment = true
			out = append(out, p)
		}
	}
	return out
}

// CreateProgram links a vertex and a fragment shader. fs may be nil for
// depth-only passes.
func (c *Context) CreateProgram(vs, fs Shader) (metadata.ProgramHandle, error) {
	if vs == nil {
		return metadata.InvalidProgram, fmt.Errorf("program without vertex shader: %w", core.ErrInvalidHandle)
	}
	var fsCode []byte
	if fs != nil {
		fsCode = fs.Bytecode()
	}
	native, err := c.dev.CreateProgram(vs.Bytecode(), fsCode)
	if err != nil {
		return metadata.InvalidProgram, fmt.Errorf("create program: %w", err)
	}
	h, err := c.res.programs.add(&program{native: native, vs: vs, fs: fs, predefined: mergePredefined(vs, fs)})
	if err != nil {
		native.Release()
		return metadata.InvalidProgram, err
	}
	return metadata.ProgramHandle(h), nil
}

func (c *Context) CreateComputeProgram(cs Shader) (metadata.ProgramHandle, error) {
	if !c.caps.Compute {
		return metadata.InvalidProgram, fmt.Errorf("compute program: %w", core.ErrUnsupported)
	}
	native, err := c.dev.CreateComputeProgram(cs.Bytecode())
	if err != nil {
		return metadata.InvalidProgram, fmt.Errorf("create compute program: %w", err)
	}
	h, err := c.res.programs.add(&program{native: native, vs: cs, compute: true, predefined: mergePredefined(cs, nil)})
	if err != nil {
		native.Release()
		return metadata.InvalidProgram, err
	}
	return metadata.ProgramHandle(h), nil
}

func (c *Context) DestroyProgram(h metadata.ProgramHandle) {
	if p := c.res.programs.remove(uint16(h)); p != nil {
		p.release()
		c.cs.invalidate()
	}
}

// CreateFrameBuffer renders into textures. All attachments must have the
// size of the first one.
func (c *Context) CreateFrameBuffer(colors []metadata.TextureHandle, depth metadata.TextureHandle) (metadata.FrameBufferHandle, error) {
	if len(colors) > metadata.MaxColorAttachment {
		return metadata.InvalidFrameBuffer, fmt.Errorf("%d color attachments: %w", len(colors), core.ErrUnsupported)
	}
	fb := &frameBuffer{colors: append([]metadata.TextureHandle(nil), colors...), depth: depth}
	if err := c.attach(fb, true); err != nil {
		fb.release()
		return metadata.InvalidFrameBuffer, err
	}
	h, err := c.res.frameBuffers.add(fb)
	if err != nil {
		fb.release()
		return metadata.InvalidFrameBuffer, err
	}
	return metadata.FrameBufferHandle(h), nil
}

// attach creates the views of fb's attachments and sizes it. When strict is
// false mismatched attachments are allowed and fb takes the smallest extent,
// which happens while a host resizes the attachments one at a time.
func (c *Context) attach(fb *frameBuffer, strict bool) error {
	fb.width, fb.height = 0, 0
	size := func(t *texture) error {
		if fb.width == 0 {
			fb.width, fb.height = t.desc.Width, t.desc.Height
			return nil
		}
		if t.desc.Width == fb.width && t.desc.Height == fb.height {
			return nil
		}
		if strict {
			return fmt.Errorf("attachment %dx%d does not match %dx%d: %w", t.desc.Width, t.desc.Height, fb.width, fb.height, core.ErrInvalidHandle)
		}
		fb.width, fb.height = min(fb.width, t.desc.Width), min(fb.height, t.desc.Height)
		return nil
	}
	for _, h := range fb.colors {
		t := c.res.textures.get(uint16(h))
		if t == nil {
			return fmt.Errorf("color attachment %d: %w", h, core.ErrInvalidHandle)
		}
		if err := size(t); err != nil {
			return err
		}
		v, err := c.dev.CreateRenderTargetView(t.tex, gpu.ViewDesc{Format: t.desc.Format, Dimension: t.dimension()})
		if err != nil {
			return fmt.Errorf("color attachment %d: %w", h, err)
		}
		fb.rtv = append(fb.rtv, v)
	}
	if fb.depth.IsValid() {
		t := c.res.textures.get(uint16(fb.depth))
		if t == nil {
			return fmt.Errorf("depth attachment %d: %w", fb.depth, core.ErrInvalidHandle)
		}
		if err := size(t); err != nil {
			return err
		}
		v, err := c.dev.CreateDepthStencilView(t.tex, gpu.ViewDesc{Format: t.desc.Format, Dimension: t.dimension()})
		if err != nil {
			return fmt.Errorf("depth attachment %d: %w", fb.depth, err)
		}
		fb.dsv = v
	}
	return nil
}

// reattach rebuilds the views of every frame buffer that uses texture h.
func (c *Context) reattach(h metadata.TextureHandle) error {
	var errs []error
	c.res.frameBuffers.each(func(fh uint16, fb *frameBuffer) {
		if !fb.uses(h) {
			return
		}
		fb.release()
		if c.cs.frameBuffer == metadata.FrameBufferHandle(fh) {
			c.cs.targetBound = false
		}
		if err := c.attach(fb, false); err != nil {
			fb.release()
			errs = append(errs, fmt.Errorf("frame buffer %d: %w", fh, err))
		}
	})
	return errors.Join(errs...)
}

func (c *Context) DestroyFrameBuffer(h metadata.FrameBufferHandle) {
	if fb := c.res.frameBuffers.remove(uint16(h)); fb != nil {
		fb.release()
		if c.cs.frameBuffer == h {
			c.cs.frameBuffer = metadata.InvalidFrameBuffer
			c.cs.targetBound = false
		}
	}
}

// CreateUniform registers a named uniform whose value frames set by handle.
func (c *Context) CreateUniform(name string, t uniform.Type, num uint16) (metadata.UniformHandle, error) {
	if h, ok := c.registry.Lookup(name); ok {
		return h, nil
	}
	h := metadata.UniformHandle(c.res.uniforms.Alloc())
	if !h.IsValid() {
		return h, fmt.Errorf("uniform %q: %w", name, core.ErrOutOfMemory)
	}
	if err := c.registry.Create(h, name, t, num); err != nil {
		_ = c.res.uniforms.Free(uint16(h))
		return metadata.InvalidUniform, err
	}
	return h, nil
}

func (c *Context) SetUniform(h metadata.UniformHandle, data []byte) error {
	return c.registry.Set(h, data)
}

func (c *Context) DestroyUniform(h metadata.UniformHandle) {
	if c.registry.Get(h) == nil {
		return
	}
	c.registry.Destroy(h)
	_ = c.res.uniforms.Free(uint16(h))
}

func (c *Context) CreateOcclusionQuery() (metadata.OcclusionQueryHandle, error) {
	if c.occlusion == nil {
		return metadata.InvalidOcclusionQuery, fmt.Errorf("occlusion query: %w", core.ErrUnsupported)
	}
	h := metadata.OcclusionQueryHandle(c.res.occlusion.Alloc())
	if !h.IsValid() {
		return h, fmt.Errorf("occlusion query: %w", core.ErrOutOfMemory)
	}
	c.occlusion.Invalidate(h)
	return h, nil
}

// OcclusionResult is the last resolved visible sample count of h, or
// query.NotResolved.
func (c *Context) OcclusionResult(h metadata.OcclusionQueryHandle) int32 {
	if c.occlusion == nil {
		return -1
	}
	return c.occlusion.Result(h)
}

func (c *Context) DestroyOcclusionQuery(h metadata.OcclusionQueryHandle) {
	if c.occlusion != nil {
		c.occlusion.Invalidate(h)
	}
	_ = c.res.occlusion.Free(uint16(h))
}

// SetPaletteColor sets the border color selected by sampler flags.
func (c *Context) SetPaletteColor(idx uint8, rgba [4]float32) {
	if int(idx) < len(c.palette) {
		c.palette[idx] = rgba
		c.cs.invalidate()
	}
}
