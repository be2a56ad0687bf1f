package uniform

import (
	"testing"

	"github.com/spaghettifunk/rendercore/engine/math"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
	"github.com/spaghettifunk/rendercore/engine/renderer/noop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpcodeRoundTrip(t *testing.T) {
	ops := []Op{
		{Type: Vec4, Loc: 0, Num: 1, Copy: true},
		{Type: Mat4 | FragmentBit, Loc: MaxLoc, Num: MaxNum},
		{Type: Mat3, Loc: 1234, Num: 7, Copy: true},
		{Type: End},
	}
	for _, op := range ops {
		assert.Equal(t, op, DecodeOp(op.Encode()), op.String())
	}
}

func TestStreamReader(t *testing.T) {
	w := NewWriter()
	require.NoError(t, w.WriteFloats(Vec4, 2, 1, []float32{1, 2, 3, 4}))
	w.WriteHandle(Mat4|FragmentBit, 4, 1, metadata.UniformHandle(9))
	w.WriteEnd()
	require.NoError(t, w.WriteFloats(Vec4, 8, 1, []float32{0, 0, 0, 0}))

	r := NewReader(w.Bytes())
	op, payload, _, ok := r.Next()
	require.True(t, ok)
	assert.Equal(t, Op{Type: Vec4, Loc: 2, Num: 1, Copy: true}, op)
	assert.Equal(t, []float32{1, 2, 3, 4}, BytesFloat32(payload))

	op, _, h, ok := r.Next()
	require.True(t, ok)
	assert.True(t, op.Type.IsFragment())
	assert.Equal(t, metadata.UniformHandle(9), h)

	// decoding stops at End
	_, _, _, ok = r.Next()
	assert.False(t, ok)
	assert.NoError(t, r.Err())
}

func TestWriterRejectsWrongPayload(t *testing.T) {
	w := NewWriter()
	assert.Error(t, w.WriteFloats(Mat4, 0, 1, []float32{1, 2, 3}))
	assert.Equal(t, 0, w.Len())
}

func TestTruncatedStream(t *testing.T) {
	w := NewWriter()
	require.NoError(t, w.WriteFloats(Vec4, 0, 1, []float32{1, 2, 3, 4}))
	data := w.Bytes()[:10]

	r := NewReader(data)
	_, _, _, ok := r.Next()
	assert.False(t, ok)
	assert.ErrorIs(t, r.Err(), ErrTruncated)
}

func TestMat3IsPaddedToRegisters(t *testing.T) {
	e := NewEngine()
	m := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}
	require.NoError(t, e.Write(Mat3, 1, 1, Float32Bytes(m)))

	got := BytesFloat32(e.Scratch(false)[16 : 16+48])
	assert.Equal(t, []float32{1, 2, 3, 0, 4, 5, 6, 0, 7, 8, 9, 0}, got)
	assert.True(t, e.IsDirty())
}

func TestStagesAreDisjoint(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Write(Vec4, 0, 1, Float32Bytes([]float32{1, 1, 1, 1})))
	require.NoError(t, e.Write(Vec4|FragmentBit, 0, 1, Float32Bytes([]float32{2, 2, 2, 2})))
	assert.Equal(t, []float32{1, 1, 1, 1}, BytesFloat32(e.Scratch(false)[:16]))
	assert.Equal(t, []float32{2, 2, 2, 2}, BytesFloat32(e.Scratch(true)[:16]))
}

func TestWriteOverflow(t *testing.T) {
	e := NewEngine()
	assert.Error(t, e.Write(Mat4, MaxLoc, 1, make([]byte, 64)))
}

func TestCommitAndFlush(t *testing.T) {
	dev := noop.NewDevice()
	ctx := dev.NoopContext()
	reg := NewRegistry()
	color := metadata.UniformHandle(3)
	require.NoError(t, reg.Create(color, "u_color", Vec4, 1))

	// frame stream sets the uniform value by handle
	fw := NewWriter()
	require.NoError(t, fw.WriteFloats(Vec4, uint16(color), 1, []float32{0.5, 0.25, 0, 1}))
	n, err := reg.Update(fw.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// shader stream maps the handle to fragment register 2
	sw := NewWriter()
	sw.WriteHandle(Vec4|FragmentBit, 2, 1, color)
	sw.WriteEnd()

	e := NewEngine()
	e.SetProgram(0, 64)
	require.NoError(t, e.Commit(sw.Bytes(), reg))
	assert.Equal(t, 1, e.Flush(ctx))
	assert.Equal(t, []float32{0.5, 0.25, 0, 1}, BytesFloat32(ctx.Constants[gpu.StageFragment][32:48]))

	// nothing written since the last flush
	assert.Equal(t, 0, e.Flush(ctx))
	assert.Equal(t, 1, dev.Count("UpdateConstants"))
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Create(1, "u_params", Vec4, 2))
	h, ok := reg.Lookup("u_params")
	require.True(t, ok)
	assert.Equal(t, metadata.UniformHandle(1), h)
	assert.Len(t, reg.Get(h).Data, 32)

	assert.Error(t, reg.Create(metadata.InvalidUniform, "bad", Vec4, 1))
	assert.Error(t, reg.Set(metadata.UniformHandle(2), []byte{1}))

	reg.Destroy(h)
	_, ok = reg.Lookup("u_params")
	assert.False(t, ok)
	assert.Nil(t, reg.Get(h))
}

func TestWritePredefined(t *testing.T) {
	e := NewEngine()
	view := math.NewMat4Translation(math.NewVec3(1, 2, 3))
	table := []PredefinedUniform{
		{Type: ViewRect, Loc: 0},
		{Type: View, Loc: 1},
		{Type: ModelViewProj, Loc: 5},
		{Type: AlphaRef, Loc: 0, Fragment: true},
	}
	vals := &PredefinedValues{
		Rect:     metadata.Rect{X: 0, Y: 0, Width: 800, Height: 600},
		View:     view,
		Proj:     math.NewMat4Identity(),
		AlphaRef: 0.5,
	}
	require.NoError(t, e.WritePredefined(table, vals))

	vs := e.Scratch(false)
	assert.Equal(t, []float32{0, 0, 800, 600}, BytesFloat32(vs[:16]))
	assert.Equal(t, view.Data[:], BytesFloat32(vs[16:80]))
	// identity model and projection leave the view matrix
	assert.Equal(t, view.Data[:], BytesFloat32(vs[80:144]))
	assert.Equal(t, []float32{0.5, 0, 0, 0}, BytesFloat32(e.Scratch(true)[:16]))

	p, ok := PredefinedByName("u_modelViewProj")
	assert.True(t, ok)
	assert.Equal(t, ModelViewProj, p)
}

func TestComputeFlushTargetsComputeStage(t *testing.T) {
	dev := noop.NewDevice()
	ctx := dev.NoopContext()
	e := NewEngine()
	e.SetComputeProgram(32)
	require.NoError(t, e.Write(Vec4, 1, 1, Float32Bytes([]float32{1, 2, 3, 4})))
	assert.Equal(t, 1, e.Flush(ctx))
	assert.Len(t, ctx.Constants[gpu.StageCompute], 32)
	assert.Empty(t, ctx.Constants[gpu.StageVertex])

	e.SetProgram(32, 0)
	e.MarkDirty()
	assert.Equal(t, 1, e.Flush(ctx))
	assert.Len(t, ctx.Constants[gpu.StageVertex], 32)
}
