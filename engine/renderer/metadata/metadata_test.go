package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortKeyDrawRoundTrip(t *testing.T) {
	for _, view := range []uint8{0, 1, 17, 255} {
		for _, prog := range []ProgramHandle{0, 5, 1023} {
			k := EncodeDraw(view, prog, 2, 0xdeadbeef, 1000)
			d := k.Decode()
			assert.Equal(t, view, d.View)
			assert.Equal(t, ItemDraw, d.Type)
			assert.False(t, d.IsCompute())
			assert.Equal(t, prog, d.Program)
			assert.Equal(t, uint8(2), d.Trans)
			assert.Equal(t, uint32(0xdeadbeef), d.Depth)
			assert.Equal(t, uint32(1000), d.Seq)
		}
	}
}

func TestSortKeyComputeRoundTrip(t *testing.T) {
	k := EncodeCompute(42, 77, 12345)
	assert.Equal(t, uint8(42), k.View())
	assert.True(t, k.IsCompute())
	d := k.Decode()
	assert.Equal(t, ProgramHandle(77), d.Program)
	assert.Equal(t, uint32(12345), d.Seq)

	b := EncodeBlit(42, 3).Decode()
	assert.Equal(t, ItemBlit, b.Type)
	assert.Equal(t, InvalidProgram, b.Program)
	assert.Equal(t, uint32(3), b.Seq)
}

func TestSortKeyOrdering(t *testing.T) {
	// view dominates, then blit < compute < draw
	assert.Less(t, EncodeDraw(0, 1023, 3, 0xffffffff, 1023), EncodeBlit(1, 0))
	assert.Less(t, EncodeBlit(3, 0xfffff), EncodeCompute(3, 0, 0))
	assert.Less(t, EncodeCompute(3, 1023, 0xfffff), EncodeDraw(3, 0, 0, 0, 0))
	// opaque before translucent
	assert.Less(t, EncodeDraw(0, 1023, 0, 0, 0), EncodeDraw(0, 0, 1, 0, 0))
}

func TestFrameFinishIsStable(t *testing.T) {
	f := NewFrame()
	a := NewDrawItem()
	b := NewDrawItem()
	c := NewComputeItem(1, 1, 1)
	same := EncodeDraw(1, 3, 0, 10, 0)

	require.NoError(t, f.Add(same, a, NewBinds()))
	require.NoError(t, f.Add(EncodeCompute(1, 2, 0), c, NewBinds()))
	require.NoError(t, f.Add(same, b, NewBinds()))
	f.Finish()

	require.Equal(t, 3, f.Len())
	assert.Same(t, c, f.Items[0])
	assert.Same(t, a, f.Items[1])
	assert.Same(t, b, f.Items[2])
	assert.True(t, f.IsFrozen())
	assert.ErrorIs(t, f.Add(same, a, NewBinds()), ErrFrameFrozen)

	f.Reset()
	assert.Equal(t, 0, f.Len())
	assert.False(t, f.IsFrozen())
}

func TestFrameCaches(t *testing.T) {
	f := NewFrame()
	assert.Equal(t, uint16(0), f.AddRect(Rect{Width: 4, Height: 4}))
	assert.Equal(t, uint16(1), f.AddRect(Rect{Width: 8, Height: 8}))

	b, e := f.AppendUniforms([]byte{1, 2, 3, 4})
	assert.Equal(t, uint32(0), b)
	assert.Equal(t, uint32(4), e)
	b, e = f.AppendUniforms([]byte{5, 6})
	assert.Equal(t, uint32(4), b)
	assert.Equal(t, uint32(6), e)

	assert.Equal(t, uint32(0), f.NextSeq())
	assert.Equal(t, uint32(1), f.NextSeq())
}

func TestRectIntersect(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 100, Height: 100}
	b := Rect{X: 50, Y: 60, Width: 100, Height: 100}
	assert.Equal(t, Rect{X: 50, Y: 60, Width: 50, Height: 40}, a.Intersect(b))

	c := Rect{X: 200, Y: 200, Width: 10, Height: 10}
	assert.True(t, a.Intersect(c).IsZeroArea())
	assert.True(t, a.Covers(100, 100))
	assert.False(t, b.Covers(100, 100))
}

func TestStencilPacking(t *testing.T) {
	front := StencilTestEqual | StencilFuncRef(7) | StencilFuncRMask(0xff) | StencilOpPassZReplace
	f, b := UnpackStencil(PackStencil(front, StencilNone))
	assert.Equal(t, front, f)
	assert.Equal(t, front, b)

	back := StencilTestAlways | StencilOpFailSKeep
	f, b = UnpackStencil(PackStencil(front, back))
	assert.Equal(t, front, f)
	assert.Equal(t, back, b)
}

func TestResetFlagsMSAA(t *testing.T) {
	assert.Equal(t, uint32(1), ResetNone.MSAASamples())
	assert.Equal(t, uint32(4), ResetMSAAX4.MSAASamples())
	assert.Equal(t, uint32(16), (ResetMSAAX16 | ResetVSync).MSAASamples())
	assert.Equal(t, ResetMSAAX8, ResetMSAAFromSamples(8))
	assert.Equal(t, ResetNone, ResetMSAAFromSamples(3))
}

func TestResolutionChanges(t *testing.T) {
	r := Resolution{Width: 800, Height: 600, Format: FormatBGRA8, NumBackBuffers: 2}
	next := r
	next.Width, next.Height = 1920, 1080
	assert.True(t, r.Differs(next))
	assert.False(t, r.NeedsRecreate(next))

	next.Reset = ResetMSAAX4
	assert.True(t, r.NeedsRecreate(next))
	assert.False(t, r.Differs(r))
}

func TestTopology(t *testing.T) {
	assert.Equal(t, TopologyTriList, TopologyFromState(StateDefault))
	assert.Equal(t, TopologyLineStrip, TopologyFromState(StatePtLineStrip))
	assert.Equal(t, uint32(2), TopologyTriList.PrimitiveCount(6))
	assert.Equal(t, uint32(4), TopologyTriStrip.PrimitiveCount(6))
	assert.Equal(t, uint32(0), TopologyLineStrip.PrimitiveCount(1))
}

func TestTextVideoMem(t *testing.T) {
	tv := NewTextVideoMem(8, 2)
	tv.Printf(5, 1, 0x0f, "abcdef")
	assert.Equal(t, 'a', tv.At(5, 1).Char)
	assert.Equal(t, 'c', tv.At(7, 1).Char)
	assert.Equal(t, uint8(0x0f), tv.At(7, 1).Attr)
	assert.Equal(t, ' ', tv.At(0, 0).Char)
	tv.Printf(0, 9, 0, "ignored")
}

func TestDrawItemStreams(t *testing.T) {
	d := NewDrawItem()
	d.SetVertexBuffer(1, VertexBufferHandle(3), VertexLayoutHandle(0), 0)
	assert.Equal(t, uint8(0x2), d.StreamMask)
	d.SetVertexBuffer(1, InvalidVertexBuffer, InvalidVertexLayout, 0)
	assert.Equal(t, uint8(0), d.StreamMask)
	assert.False(t, d.HasUniforms())
}
