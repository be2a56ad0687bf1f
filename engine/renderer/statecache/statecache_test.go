package statecache

import (
	"testing"

	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
	"github.com/spaghettifunk/rendercore/engine/renderer/noop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindOrCreateIsIdempotent(t *testing.T) {
	dev := noop.NewDevice()
	s := NewStates()

	states := []uint64{
		metadata.StateDefault,
		metadata.StateDefault | metadata.StateBlendAlpha,
		metadata.StateWriteRGB | metadata.StateBlendAdd | metadata.StateBlendEquation(metadata.StateBlendEquationMax),
		metadata.StateNone,
	}
	for _, st := range states {
		a, err := s.BlendState(dev, st, 0)
		require.NoError(t, err)
		b, err := s.BlendState(dev, st, 0)
		require.NoError(t, err)
		assert.Same(t, a, b)

		da, err := s.DepthStencilState(dev, st, 0)
		require.NoError(t, err)
		db, err := s.DepthStencilState(dev, st, 0)
		require.NoError(t, err)
		assert.Same(t, da, db)

		ra, err := s.RasterizerState(dev, st, false, true)
		require.NoError(t, err)
		rb, err := s.RasterizerState(dev, st, false, true)
		require.NoError(t, err)
		assert.Same(t, ra, rb)
	}
}

func TestBlendHashIgnoresFactorWithoutIndependentBlend(t *testing.T) {
	st := metadata.StateDefault | metadata.StateBlendAlpha
	assert.Equal(t, BlendHash(st, 0x11223344), BlendHash(st, 0xffffffff))

	ind := st | metadata.StateBlendIndependent
	assert.NotEqual(t, BlendHash(ind, 0x11223344), BlendHash(ind, 0xffffffff))
}

func TestDepthStencilHashIgnoresRef(t *testing.T) {
	base := metadata.StencilTestEqual | metadata.StencilFuncRMask(0xff) | metadata.StencilOpPassZReplace
	a := metadata.PackStencil(base|metadata.StencilFuncRef(1), metadata.StencilNone)
	b := metadata.PackStencil(base|metadata.StencilFuncRef(200), metadata.StencilNone)
	assert.Equal(t, DepthStencilHash(metadata.StateDefault, a), DepthStencilHash(metadata.StateDefault, b))
	assert.Equal(t, uint8(200), StencilRef(b))

	// blend bits do not reach the depth-stencil key
	assert.Equal(t,
		DepthStencilHash(metadata.StateDefault, 0),
		DepthStencilHash(metadata.StateDefault|metadata.StateBlendAdd, 0))
}

func TestBlendDesc(t *testing.T) {
	desc := BlendDesc(metadata.StateWriteRGB|metadata.StateBlendAlpha, 0)
	assert.False(t, desc.IndependentBlend)
	for _, tgt := range desc.Targets {
		assert.True(t, tgt.Enable)
		assert.Equal(t, gpu.BlendSrcAlpha, tgt.Src)
		assert.Equal(t, gpu.BlendInvSrcAlpha, tgt.Dst)
		assert.Equal(t, gpu.BlendOpAdd, tgt.Op)
		assert.Equal(t, gpu.WriteRGB, tgt.WriteMask)
	}

	off := BlendDesc(metadata.StateDefault, 0)
	assert.False(t, off.Targets[0].Enable)
	assert.Equal(t, gpu.WriteAll, off.Targets[0].WriteMask)
}

func TestBlendColor(t *testing.T) {
	st := metadata.StateBlendFunc(metadata.StateBlendFactor, metadata.StateBlendInvFactor)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, BlendColor(st, 0xff0000ff))
	assert.Equal(t, [4]float32{1, 1, 1, 1}, BlendColor(metadata.StateBlendAlpha, 0xff0000ff))
}

func TestDepthStencilDesc(t *testing.T) {
	d := DepthStencilDesc(metadata.StateDefault, 0)
	assert.True(t, d.DepthEnable)
	assert.True(t, d.DepthWrite)
	assert.Equal(t, gpu.CompareLess, d.DepthFunc)
	assert.False(t, d.StencilEnable)

	front := metadata.StencilTestNotEqual | metadata.StencilFuncRMask(0x0f) |
		metadata.StencilOpFailSKeep | metadata.StencilOpFailZIncr | metadata.StencilOpPassZReplace
	d = DepthStencilDesc(metadata.StateWriteZ, metadata.PackStencil(front, metadata.StencilNone))
	assert.Equal(t, gpu.CompareAlways, d.DepthFunc)
	assert.True(t, d.StencilEnable)
	assert.Equal(t, uint8(0x0f), d.ReadMask)
	assert.Equal(t, gpu.StencilFace{Func: gpu.CompareNotEqual, Fail: gpu.StencilKeep, DepthFail: gpu.StencilIncr, Pass: gpu.StencilReplace}, d.Front)
	assert.Equal(t, d.Front, d.Back)
}

func TestRasterizerDesc(t *testing.T) {
	d := RasterizerDesc(metadata.StateDefault, false, true)
	assert.Equal(t, gpu.CullFront, d.Cull)
	assert.Equal(t, gpu.FillSolid, d.Fill)
	assert.True(t, d.Scissor)
	assert.True(t, d.Multisample)

	w := RasterizerDesc(metadata.StateCullCCW, true, false)
	assert.Equal(t, gpu.CullBack, w.Cull)
	assert.Equal(t, gpu.FillWireframe, w.Fill)

	assert.NotEqual(t, RasterizerHash(metadata.StateDefault, false, false), RasterizerHash(metadata.StateDefault, true, false))
	assert.Equal(t, RasterizerHash(metadata.StateDefault, false, false), RasterizerHash(metadata.StateDefault|metadata.StateBlendAdd, false, false))
}

func TestSamplerDesc(t *testing.T) {
	flags := metadata.SamplerUClamp | metadata.SamplerVBorder | metadata.SamplerMinAnisotropic | metadata.SamplerCompareLEqual
	border := [4]float32{1, 0, 0, 1}
	d := SamplerDesc(flags, 8, border)
	assert.Equal(t, gpu.AddressClamp, d.U)
	assert.Equal(t, gpu.AddressBorder, d.V)
	assert.Equal(t, gpu.AddressWrap, d.W)
	assert.Equal(t, gpu.FilterAnisotropic, d.Min)
	assert.Equal(t, uint32(8), d.MaxAnisotropy)
	assert.Equal(t, gpu.CompareLEqual, d.Compare)
	assert.Equal(t, border, d.BorderColor)

	assert.NotEqual(t, SamplerHash(flags, border), SamplerHash(flags, [4]float32{}))
	assert.Equal(t, SamplerHash(metadata.SamplerUClamp, border), SamplerHash(metadata.SamplerUClamp, [4]float32{}))
}

func TestStatsAndInvalidate(t *testing.T) {
	dev := noop.NewDevice()
	s := NewStates()

	_, err := s.SamplerState(dev, metadata.SamplerUClamp, [4]float32{})
	require.NoError(t, err)
	_, err = s.SamplerState(dev, metadata.SamplerUClamp, [4]float32{})
	require.NoError(t, err)

	st := s.Sampler.Stats()
	assert.Equal(t, 1, st.Len)
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
	assert.Equal(t, 1, dev.Count("CreateSamplerState"))

	live := dev.Live()
	s.Invalidate()
	assert.Equal(t, 0, s.Sampler.Len())
	assert.Equal(t, live-1, dev.Live())
}

func TestCreateFailureIsNotCached(t *testing.T) {
	dev := noop.NewDevice()
	s := NewStates()

	dev.FailNext("CreateBlendState", gpu.OutOfMemory)
	_, err := s.BlendState(dev, metadata.StateDefault, 0)
	require.Error(t, err)
	assert.Equal(t, 0, s.Blend.Len())

	_, err = s.BlendState(dev, metadata.StateDefault, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Blend.Len())
}
