package backend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
	"github.com/spaghettifunk/rendercore/engine/renderer/noop"
	"github.com/spaghettifunk/rendercore/engine/renderer/uniform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testShader struct {
	stage      gpu.Stage
	hash       uint32
	predefined []uniform.PredefinedUniform
	constants  []byte
	size       uint32
}

func (s *testShader) Stage() gpu.Stage { return s.stage }
func (s *testShader) Bytecode() []byte { return []byte{byte(s.hash)} }
func (s *testShader) Hash() uint32 { return s.hash }
func (s *testShader) AttributeMask() uint32 { return 0xffffffff }
func (s *testShader) Predefined() []uniform.PredefinedUniform { return s.predefined }
func (s *testShader) Constants() []byte { return s.constants }
func (s *testShader) ConstantSize() uint32 { return s.size }
func (s *testShader) WritesDepth() bool { return false }

func resolution(w, h uint32) metadata.Resolution {
	return metadata.Resolution{Width: w, Height: h, Format: metadata.FormatBGRA8, NumBackBuffers: 2}
}

type fixture struct {
	dev    *noop.Device
	c      *Context
	fatal  int
	prog   metadata.ProgramHandle
	layout metadata.VertexLayoutHandle
	vbA    metadata.VertexBufferHandle
	vbB    metadata.VertexBufferHandle
}

func newFixture(t *testing.T, caps func(*gpu.Caps)) *fixture {
	t.Helper()
	fx := &fixture{dev: noop.NewDevice()}
	if caps != nil {
		c := fx.dev.Caps()
		caps(&c)
		fx.dev.SetCaps(c)
	}
	c, err := New(fx.dev, Config{
		ScreenshotDir: t.TempDir(),
		Fatal:         func(error) { fx.fatal++ },
	}, resolution(800, 600))
	require.NoError(t, err)
	t.Cleanup(c.Destroy)
	fx.c = c

	fx.layout, err = c.CreateVertexLayout(VertexLayout{
		Attribs: []VertexAttrib{{Attrib: AttribPosition, Format: gpu.VertexFormatFloat3}},
		Stride:  12,
	})
	require.NoError(t, err)
	fx.vbA, err = c.CreateVertexBuffer(36, make([]byte, 36), fx.layout, false)
	require.NoError(t, err)
	fx.vbB, err = c.CreateVertexBuffer(36, make([]byte, 36), fx.layout, false)
	require.NoError(t, err)
	fx.prog, err = c.CreateProgram(
		&testShader{stage: gpu.StageVertex, hash: 1},
		&testShader{stage: gpu.StageFragment, hash: 2},
	)
	require.NoError(t, err)
	fx.dev.ResetCalls()
	return fx
}

func (fx *fixture) draw(vb metadata.VertexBufferHandle) *metadata.DrawItem {
	d := metadata.NewDrawItem()
	d.SetVertexBuffer(0, vb, metadata.InvalidVertexLayout, 0)
	return d
}

func (fx *fixture) add(t *testing.T, f *metadata.Frame, view uint8, d *metadata.DrawItem) {
	t.Helper()
	key := metadata.EncodeDraw(view, fx.prog, 0, 0, f.NextSeq())
	require.NoError(t, f.Add(key, d, metadata.NewBinds()))
}

func TestSameStateDrawsShareOneBlendLookup(t *testing.T) {
	fx := newFixture(t, nil)
	f := metadata.NewFrame()
	fx.add(t, f, 0, fx.draw(fx.vbA))
	fx.add(t, f, 0, fx.draw(fx.vbB))
	f.Finish()

	require.NoError(t, fx.c.Submit(f))
	assert.Equal(t, 1, fx.dev.Count("CreateBlendState"))
	assert.Equal(t, 1, fx.dev.Count("SetBlendState"))
	assert.Equal(t, 2, fx.dev.Count("SetVertexBuffers"))
	assert.Equal(t, 2, fx.dev.Count("Draw"))
	assert.Equal(t, 1, fx.dev.Count("SetProgram"))
	assert.Equal(t, 1, fx.dev.Count("SetInputLayout"))

	s := fx.c.Stats()
	assert.Equal(t, uint32(2), s.NumDraw)
	assert.Equal(t, uint64(1), s.BlendStates.Misses)
	assert.Equal(t, uint32(2), s.NumPrimsRendered[metadata.TopologyTriList])
	require.Len(t, s.Views, 1)
	assert.Equal(t, uint8(0), s.Views[0].View)
}

func TestSkippedDrawForcesFullStateOnNext(t *testing.T) {
	fx := newFixture(t, nil)
	f := metadata.NewFrame()
	fx.add(t, f, 0, fx.draw(fx.vbA))
	hidden := fx.draw(fx.vbA)
	hidden.Scissor = f.AddRect(metadata.Rect{X: 900, Y: 900, Width: 10, Height: 10})
	fx.add(t, f, 0, hidden)
	fx.add(t, f, 0, fx.draw(fx.vbA))
	f.Finish()

	require.NoError(t, fx.c.Submit(f))
	assert.Equal(t, 2, fx.dev.Count("Draw"))
	assert.Equal(t, 2, fx.dev.Count("SetBlendState"))
	assert.Equal(t, 1, fx.dev.Count("CreateBlendState"))
	assert.Equal(t, uint32(1), fx.c.Stats().NumSkipped)
}

func TestUnknownProgramIsSkipped(t *testing.T) {
	fx := newFixture(t, nil)
	f := metadata.NewFrame()
	key := metadata.EncodeDraw(0, 77, 0, 0, f.NextSeq())
	require.NoError(t, f.Add(key, fx.draw(fx.vbA), metadata.NewBinds()))
	f.Finish()

	require.NoError(t, fx.c.Submit(f))
	assert.Equal(t, 0, fx.dev.Count("Draw"))
	assert.Equal(t, uint32(1), fx.c.Stats().NumSkipped)
}

func TestDeviceLossIsFatalOnce(t *testing.T) {
	fx := newFixture(t, nil)
	fx.dev.PresentCode = gpu.DeviceRemoved

	f := metadata.NewFrame()
	fx.add(t, f, 0, fx.draw(fx.vbA))
	f.Finish()
	err := fx.c.Submit(f)
	require.Error(t, err)
	assert.True(t, core.IsDeviceLost(err))
	assert.Equal(t, 1, fx.fatal)
	assert.True(t, fx.c.IsLost())

	fx.dev.ResetCalls()
	err = fx.c.Submit(f)
	require.Error(t, err)
	assert.True(t, core.IsDeviceLost(err))
	assert.Equal(t, 0, fx.dev.NumCalls())
	assert.Equal(t, 1, fx.fatal)
}

func TestResetAfterLoss(t *testing.T) {
	fx := newFixture(t, nil)
	fx.dev.PresentCode = gpu.DeviceRemoved
	f := metadata.NewFrame()
	f.Finish()
	require.Error(t, fx.c.Submit(f))
	old := fx.c.ID()

	dev := noop.NewDevice()
	require.NoError(t, fx.c.Reset(dev, resolution(640, 480)))
	assert.False(t, fx.c.IsLost())
	assert.NotEqual(t, old, fx.c.ID())
	assert.Equal(t, uint32(640), fx.c.Resolution().Width)

	f = metadata.NewFrame()
	f.Finish()
	require.NoError(t, fx.c.Submit(f))
	assert.Equal(t, 1, dev.Count("Present"))
}

func TestFullViewClearIsNative(t *testing.T) {
	fx := newFixture(t, nil)
	f := metadata.NewFrame()
	f.Views[0].Clear = metadata.Clear{Flags: metadata.ClearColor | metadata.ClearDepth, Depth: 1}
	fx.add(t, f, 0, metadata.NewDrawItem())
	f.Finish()

	require.NoError(t, fx.c.Submit(f))
	assert.Equal(t, 1, fx.dev.Count("ClearRenderTarget"))
	assert.Equal(t, 1, fx.dev.Count("ClearDepthStencil"))
	assert.Equal(t, 0, fx.dev.Count("Draw"))
}

func TestPartialViewClearDrawsQuad(t *testing.T) {
	fx := newFixture(t, nil)
	require.NoError(t, fx.c.SetClearProgram(
		&testShader{stage: gpu.StageVertex, hash: 10},
		&testShader{stage: gpu.StageFragment, hash: 11},
	))
	fx.dev.ResetCalls()

	f := metadata.NewFrame()
	f.Views[0].Rect = metadata.Rect{X: 10, Y: 10, Width: 100, Height: 100}
	f.Views[0].Clear = metadata.Clear{Flags: metadata.ClearColor, Color: [4]float32{1, 0, 0, 1}}
	fx.add(t, f, 0, metadata.NewDrawItem())
	fx.add(t, f, 0, fx.draw(fx.vbA))
	f.Finish()

	require.NoError(t, fx.c.Submit(f))
	assert.Equal(t, 0, fx.dev.Count("ClearRenderTarget"))
	// the clear quad and the draw
	assert.Equal(t, 2, fx.dev.Count("Draw"))
	assert.Equal(t, 2, fx.dev.Count("SetBlendState"))
	assert.Equal(t, 2, fx.dev.Count("SetProgram"))
}

func TestPartialViewClearWithoutProgramFallsBack(t *testing.T) {
	fx := newFixture(t, nil)
	f := metadata.NewFrame()
	f.Views[0].Rect = metadata.Rect{Width: 100, Height: 100}
	f.Views[0].Clear = metadata.Clear{Flags: metadata.ClearColor}
	fx.add(t, f, 0, metadata.NewDrawItem())
	f.Finish()

	require.NoError(t, fx.c.Submit(f))
	assert.Equal(t, 1, fx.dev.Count("ClearRenderTarget"))
}

func indirectFixture(t *testing.T, mdi bool) (*fixture, *metadata.Frame) {
	fx := newFixture(t, func(c *gpu.Caps) { c.MultiDrawIndirect = mdi })
	ib, err := fx.c.CreateIndirectBuffer(8)
	require.NoError(t, err)
	fx.dev.ResetCalls()

	f := metadata.NewFrame()
	d := fx.draw(fx.vbA)
	d.IndirectBuffer = ib
	d.StartIndirect = 2
	d.NumIndirect = 0xffff
	fx.add(t, f, 0, d)
	f.Finish()
	return fx, f
}

func TestIndirectDrawUsesMultiDraw(t *testing.T) {
	fx, f := indirectFixture(t, true)
	require.NoError(t, fx.c.Submit(f))
	require.Equal(t, 1, fx.dev.Count("MultiDrawIndirect"))
	assert.Equal(t, 0, fx.dev.Count("DrawIndirect"))
	for _, call := range fx.dev.Calls() {
		if call.Name == "MultiDrawIndirect" {
			assert.Equal(t, uint32(6), call.Args[0])
			assert.Equal(t, uint32(2*IndirectStride), call.Args[2])
		}
	}
	assert.Equal(t, uint32(6), fx.c.Stats().NumDraw)
}

func TestIndirectDrawLoopsWithoutMultiDraw(t *testing.T) {
	fx, f := indirectFixture(t, false)
	require.NoError(t, fx.c.Submit(f))
	assert.Equal(t, 0, fx.dev.Count("MultiDrawIndirect"))
	assert.Equal(t, 6, fx.dev.Count("DrawIndirect"))
}

func TestComputeDispatch(t *testing.T) {
	fx := newFixture(t, nil)
	cs, err := fx.c.CreateComputeProgram(&testShader{stage: gpu.StageCompute, hash: 20})
	require.NoError(t, err)
	tex, err := fx.c.CreateTexture(gpu.TextureDesc{
		Width: 64, Height: 64, Format: metadata.FormatRGBA8, Usage: gpu.UsageSampled | gpu.UsageStorage,
	}, nil, 0)
	require.NoError(t, err)
	fx.dev.ResetCalls()

	f := metadata.NewFrame()
	binds := metadata.NewBinds()
	binds.SetImage(0, tex, 0, metadata.AccessWrite)
	require.NoError(t, f.Add(metadata.EncodeCompute(0, cs, f.NextSeq()), metadata.NewComputeItem(8, 8, 1), binds))
	fx.add(t, f, 1, fx.draw(fx.vbA))
	f.Finish()

	require.NoError(t, fx.c.Submit(f))
	assert.Equal(t, 1, fx.dev.Count("Dispatch"))
	assert.Equal(t, 1, fx.dev.Count("CreateUnorderedAccessView"))
	assert.Equal(t, 1, fx.dev.Count("Draw"))
	// bound on dispatch, cleared when the draw leaves compute mode
	assert.Equal(t, 2, fx.dev.Count("SetUnorderedAccess"))
	s := fx.c.Stats()
	assert.Equal(t, uint32(1), s.NumCompute)
	assert.Len(t, s.Views, 2)
}

func TestTextureBindingUsesViewCache(t *testing.T) {
	fx := newFixture(t, nil)
	tex, err := fx.c.CreateTexture(gpu.TextureDesc{Width: 4, Height: 4, Format: metadata.FormatRGBA8}, make([]byte, 64), metadata.SamplerMinPoint)
	require.NoError(t, err)
	fx.dev.ResetCalls()

	for i := 0; i < 2; i++ {
		f := metadata.NewFrame()
		d := fx.draw(fx.vbA)
		binds := metadata.NewBinds()
		binds.SetTexture(0, tex, metadata.SamplerUseTextureFlags)
		require.NoError(t, f.Add(metadata.EncodeDraw(0, fx.prog, 0, 0, f.NextSeq()), d, binds))
		f.Finish()
		require.NoError(t, fx.c.Submit(f))
	}
	assert.Equal(t, 1, fx.dev.Count("CreateShaderResourceView"))
	assert.Equal(t, 1, fx.dev.Count("CreateSamplerState"))
	assert.Equal(t, uint64(1), fx.c.Stats().ResourceViews.Hits)

	fx.c.DestroyTexture(tex)
	assert.Equal(t, 0, fx.c.views.Len())
}

func TestBlitCopiesFullMip(t *testing.T) {
	fx := newFixture(t, nil)
	desc := gpu.TextureDesc{Width: 32, Height: 16, Format: metadata.FormatRGBA8}
	src, err := fx.c.CreateTexture(desc, make([]byte, 32*16*4), 0)
	require.NoError(t, err)
	dst, err := fx.c.CreateTexture(desc, make([]byte, 32*16*4), 0)
	require.NoError(t, err)
	fx.dev.ResetCalls()

	f := metadata.NewFrame()
	require.NoError(t, f.Add(metadata.EncodeBlit(0, f.NextSeq()), &metadata.BlitItem{Src: src, Dst: dst, SrcX: 8}, metadata.NewBinds()))
	f.Finish()
	require.NoError(t, fx.c.Submit(f))

	calls := fx.dev.Calls()
	var box gpu.Box
	for _, c := range calls {
		if c.Name == "CopyTextureRegion" {
			box = c.Args[len(c.Args)-1].(gpu.Box)
		}
	}
	assert.Equal(t, uint32(24), box.Width)
	assert.Equal(t, uint32(16), box.Height)
	assert.Equal(t, uint32(1), fx.c.Stats().NumBlit)
}

func TestTransientVerticesUploadBeforeDraws(t *testing.T) {
	fx := newFixture(t, nil)
	vb, err := fx.c.CreateVertexBuffer(1024, nil, fx.layout, true)
	require.NoError(t, err)
	fx.dev.ResetCalls()

	f := metadata.NewFrame()
	f.TransientVertices = &metadata.TransientBuffer{Handle: uint16(vb), Data: make([]byte, 36)}
	d := fx.draw(vb)
	d.NumVertices = 3
	fx.add(t, f, 0, d)
	f.Finish()
	require.NoError(t, fx.c.Submit(f))

	names := fx.dev.Names()
	upload, draw := -1, -1
	for i, n := range names {
		switch {
		case n == "UpdateBuffer" && upload < 0:
			upload = i
		case n == "Draw":
			draw = i
		}
	}
	require.GreaterOrEqual(t, upload, 0)
	assert.Less(t, upload, draw)
}

func TestUniformStreamReachesConstants(t *testing.T) {
	fx := newFixture(t, nil)
	h, err := fx.c.CreateUniform("u_tint", uniform.Vec4, 1)
	require.NoError(t, err)
	var cw uniform.Writer
	cw.WriteHandle(uniform.Vec4, 0, 1, h)
	vs := &testShader{stage: gpu.StageVertex, hash: 30, size: 16, constants: cw.Bytes()}
	prog, err := fx.c.CreateProgram(vs, &testShader{stage: gpu.StageFragment, hash: 31})
	require.NoError(t, err)
	fx.dev.ResetCalls()

	var fw uniform.Writer
	require.NoError(t, fw.WriteFloats(uniform.Vec4, uint16(h), 1, []float32{1, 2, 3, 4}))
	f := metadata.NewFrame()
	d := fx.draw(fx.vbA)
	d.UniformBegin, d.UniformEnd = f.AppendUniforms(fw.Bytes())
	require.NoError(t, f.Add(metadata.EncodeDraw(0, prog, 0, 0, f.NextSeq()), d, metadata.NewBinds()))
	f.Finish()
	require.NoError(t, fx.c.Submit(f))

	assert.Equal(t, 1, fx.dev.Count("UpdateConstants"))
	data := fx.dev.NoopContext().Constants[gpu.StageVertex]
	require.Len(t, data, 16)
	assert.Equal(t, []float32{1, 2, 3, 4}, uniform.BytesFloat32(data))
}

func TestScreenshotWritesFile(t *testing.T) {
	for _, tc := range []struct {
		name   string
		format metadata.ScreenshotFormat
	}{
		{"shot.tga", metadata.ScreenshotTGA},
		{"shot.webp", metadata.ScreenshotWebP},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fx := newFixture(t, nil)
			f := metadata.NewFrame()
			f.Screenshot = &metadata.ScreenshotRequest{Path: tc.name, Format: tc.format}
			f.Finish()
			require.NoError(t, fx.c.Submit(f))

			info, err := os.Stat(filepath.Join(fx.c.cfg.ScreenshotDir, tc.name))
			require.NoError(t, err)
			assert.Positive(t, info.Size())
		})
	}
}

func TestResizeFiresEvent(t *testing.T) {
	bus := core.NewEventBus()
	var got [2]uint32
	bus.Register(core.EVENT_CODE_RESIZED, nil, func(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
		got = [2]uint32{data.Data.U32[0], data.Data.U32[1]}
		return true
	})
	dev := noop.NewDevice()
	c, err := New(dev, Config{Events: bus}, resolution(800, 600))
	require.NoError(t, err)
	defer c.Destroy()

	f := metadata.NewFrame()
	f.Resolution = resolution(1024, 768)
	f.Finish()
	require.NoError(t, c.Submit(f))
	assert.Equal(t, [2]uint32{1024, 768}, got)
	assert.Equal(t, uint32(1024), c.Stats().Width)
}

func callIndex(calls []noop.Call, name string) int {
	for i, c := range calls {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func TestOcclusionQueryBracketsDraw(t *testing.T) {
	// without timer queries every query call belongs to the draw
	fx := newFixture(t, func(c *gpu.Caps) { c.TimestampQuery = false })
	q, err := fx.c.CreateOcclusionQuery()
	require.NoError(t, err)
	fx.dev.ResetCalls()

	f := metadata.NewFrame()
	d := fx.draw(fx.vbA)
	d.OcclusionQuery = q
	fx.add(t, f, 0, d)
	f.Finish()
	require.NoError(t, fx.c.Submit(f))

	calls := fx.dev.Calls()
	begin, draw, end := callIndex(calls, "BeginQuery"), callIndex(calls, "Draw"), callIndex(calls, "EndQuery")
	require.NotEqual(t, -1, begin)
	assert.Less(t, begin, draw)
	assert.Less(t, draw, end)
	assert.Equal(t, 1, fx.dev.Count("BeginQuery"))
	assert.Equal(t, calls[begin].Args[0], calls[end].Args[0])
}

func TestOccludedDrawIsSkipped(t *testing.T) {
	fx := newFixture(t, nil)
	q, err := fx.c.CreateOcclusionQuery()
	require.NoError(t, err)
	fx.dev.Samples = 0

	f := metadata.NewFrame()
	d := fx.draw(fx.vbA)
	d.OcclusionQuery = q
	fx.add(t, f, 0, d)
	f.Finish()
	require.NoError(t, fx.c.Submit(f))
	fx.dev.ResetCalls()

	f = metadata.NewFrame()
	fx.add(t, f, 0, fx.draw(fx.vbA))
	hidden := fx.draw(fx.vbA)
	hidden.Condition = q
	fx.add(t, f, 0, hidden)
	fx.add(t, f, 0, fx.draw(fx.vbA))
	f.Finish()
	require.NoError(t, fx.c.Submit(f))

	assert.Equal(t, int32(0), fx.c.OcclusionResult(q))
	assert.Equal(t, 2, fx.dev.Count("Draw"))
	// the draw after the skipped one re-applies its state
	assert.Equal(t, 2, fx.dev.Count("SetBlendState"))
	assert.Equal(t, uint32(1), fx.c.Stats().NumSkipped)
	assert.Equal(t, uint32(2), fx.c.Stats().NumDraw)
}

func TestIFHSuppressesDraws(t *testing.T) {
	fx := newFixture(t, nil)
	q, err := fx.c.CreateOcclusionQuery()
	require.NoError(t, err)
	fx.dev.ResetCalls()

	f := metadata.NewFrame()
	f.Debug = metadata.DebugIFH
	d := fx.draw(fx.vbA)
	d.OcclusionQuery = q
	fx.add(t, f, 0, d)
	f.Finish()
	require.NoError(t, fx.c.Submit(f))

	assert.Equal(t, 0, fx.dev.Count("Draw"))
	s := fx.c.Stats()
	assert.Equal(t, uint32(1), s.NumDraw)
	assert.Equal(t, uint32(1), s.NumPrimsSubmitted[metadata.TopologyTriList])
	assert.Equal(t, uint32(0), s.NumPrimsRendered[metadata.TopologyTriList])
	assert.Equal(t, int32(-1), fx.c.OcclusionResult(q))
}

func TestResizeTextureRebuildsFrameBuffer(t *testing.T) {
	fx := newFixture(t, nil)
	color, err := fx.c.CreateTexture(gpu.TextureDesc{Width: 64, Height: 64, Format: metadata.FormatRGBA8, Usage: gpu.UsageRenderTarget}, nil, 0)
	require.NoError(t, err)
	depth, err := fx.c.CreateTexture(gpu.TextureDesc{Width: 64, Height: 64, Format: metadata.FormatD24S8, Usage: gpu.UsageDepthStencil}, nil, 0)
	require.NoError(t, err)
	fb, err := fx.c.CreateFrameBuffer([]metadata.TextureHandle{color}, depth)
	require.NoError(t, err)
	old := fx.c.res.frameBuffers.get(uint16(fb)).rtv[0].(*noop.Object)
	fx.dev.ResetCalls()

	require.NoError(t, fx.c.ResizeTexture(color, 128, 128))
	assert.Equal(t, 1, fx.dev.Count("CreateRenderTargetView"))
	assert.Equal(t, 1, fx.dev.Count("CreateDepthStencilView"))
	assert.True(t, old.Released)

	rec := fx.c.res.frameBuffers.get(uint16(fb))
	for _, c := range fx.dev.Calls() {
		if c.Name == "CreateRenderTargetView" {
			assert.Same(t, fx.c.res.textures.get(uint16(color)).tex, c.Args[0])
		}
	}
	// depth is still 64x64 until the host resizes it too
	assert.Equal(t, uint32(64), rec.width)

	require.NoError(t, fx.c.ResizeTexture(depth, 128, 128))
	assert.Equal(t, uint32(128), rec.width)
	assert.Equal(t, uint32(128), rec.height)

	fx.dev.ResetCalls()
	f := metadata.NewFrame()
	f.Views[0].FrameBuffer = fb
	fx.add(t, f, 0, fx.draw(fx.vbA))
	f.Finish()
	require.NoError(t, fx.c.Submit(f))
	assert.Equal(t, 1, fx.dev.Count("Draw"))
}

func TestSuspendedFrameIsNotCounted(t *testing.T) {
	fx := newFixture(t, nil)
	f := metadata.NewFrame()
	f.Finish()
	require.NoError(t, fx.c.Submit(f))
	assert.Equal(t, uint64(1), fx.c.Stats().FrameNum)

	f = metadata.NewFrame()
	f.Resolution = resolution(800, 600)
	f.Resolution.Reset |= metadata.ResetSuspend
	f.Finish()
	require.NoError(t, fx.c.Submit(f))
	assert.Equal(t, uint64(1), fx.c.Stats().FrameNum)

	f = metadata.NewFrame()
	f.Resolution = resolution(800, 600)
	f.Finish()
	require.NoError(t, fx.c.Submit(f))
	assert.Equal(t, uint64(2), fx.c.Stats().FrameNum)
}
