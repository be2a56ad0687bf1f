package viewcache

import (
	"testing"

	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
	"github.com/spaghettifunk/rendercore/engine/renderer/noop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texKey(h uint16, mip uint8) Key {
	return Key{Kind: metadata.BindTexture, Handle: h, Mip: mip}
}

func creator(dev *noop.Device) func() (gpu.View, error) {
	return func() (gpu.View, error) {
		return dev.CreateShaderResourceView(nil, gpu.ViewDesc{})
	}
}

func TestHitMovesToFront(t *testing.T) {
	dev := noop.NewDevice()
	c := New(2)

	a, err := c.Get(texKey(1, 0), creator(dev))
	require.NoError(t, err)
	_, err = c.Get(texKey(2, 0), creator(dev))
	require.NoError(t, err)

	again, err := c.Get(texKey(1, 0), creator(dev))
	require.NoError(t, err)
	assert.Same(t, a, again)

	// key 2 is now least recently used
	_, err = c.Get(texKey(3, 0), creator(dev))
	require.NoError(t, err)
	assert.True(t, c.Contains(texKey(1, 0)))
	assert.False(t, c.Contains(texKey(2, 0)))
	assert.True(t, c.Contains(texKey(3, 0)))

	st := c.Stats()
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(3), st.Misses)
	assert.Equal(t, uint64(1), st.Evictions)
}

func TestNeverExceedsCapacity(t *testing.T) {
	dev := noop.NewDevice()
	c := New(8)
	for i := 0; i < 100; i++ {
		before := c.Stats().Evictions
		_, err := c.Get(texKey(uint16(i), uint8(i%3)), creator(dev))
		require.NoError(t, err)
		assert.LessOrEqual(t, c.Len(), 8)
		if i >= 8 {
			assert.Equal(t, before+1, c.Stats().Evictions)
		}
	}
	// only live views are the cached ones
	assert.Equal(t, 8, dev.Live())
}

func TestInvalidateOwner(t *testing.T) {
	dev := noop.NewDevice()
	c := New(16)
	for mip := uint8(0); mip < 4; mip++ {
		_, err := c.Get(texKey(7, mip), creator(dev))
		require.NoError(t, err)
		_, err = c.Get(texKey(8, mip), creator(dev))
		require.NoError(t, err)
	}
	_, err := c.Get(Key{Kind: metadata.BindTexture, Handle: 7, Compute: true}, creator(dev))
	require.NoError(t, err)
	_, err = c.Get(Key{Kind: metadata.BindVertexBuffer, Handle: 7}, creator(dev))
	require.NoError(t, err)

	// touch one of the owner's entries so it is the most recent
	_, err = c.Get(texKey(7, 2), creator(dev))
	require.NoError(t, err)

	assert.Equal(t, 5, c.InvalidateOwner(metadata.BindTexture, 7))
	for mip := uint8(0); mip < 4; mip++ {
		assert.False(t, c.Contains(texKey(7, mip)))
		assert.True(t, c.Contains(texKey(8, mip)))
	}
	assert.True(t, c.Contains(Key{Kind: metadata.BindVertexBuffer, Handle: 7}))
	assert.Equal(t, 5, c.Len())
	assert.Equal(t, 5, dev.Live())
}

func TestCreateErrorLeavesCacheUntouched(t *testing.T) {
	dev := noop.NewDevice()
	c := New(1)
	_, err := c.Get(texKey(1, 0), creator(dev))
	require.NoError(t, err)

	dev.FailNext("CreateShaderResourceView", gpu.OutOfMemory)
	_, err = c.Get(texKey(2, 0), creator(dev))
	require.Error(t, err)
	assert.True(t, c.Contains(texKey(1, 0)))
	assert.Equal(t, 1, c.Len())
}

func TestInvalidate(t *testing.T) {
	dev := noop.NewDevice()
	c := New(0)
	assert.Equal(t, DefaultCapacity, c.Capacity())
	for i := 0; i < 10; i++ {
		_, err := c.Get(texKey(uint16(i), 0), creator(dev))
		require.NoError(t, err)
	}
	c.Invalidate()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, dev.Live())
	assert.False(t, c.Contains(texKey(0, 0)))
}

func TestKeysCompareEveryField(t *testing.T) {
	dev := noop.NewDevice()
	c := New(16)
	keys := []Key{
		texKey(3, 1),
		{Kind: metadata.BindTexture, Handle: 3, Mip: 2},
		{Kind: metadata.BindTexture, Handle: 4, Mip: 1},
		{Kind: metadata.BindTexture, Handle: 3, Mip: 1, Compute: true},
		{Kind: metadata.BindTexture, Handle: 3, Mip: 1, Stencil: true},
		{Kind: metadata.BindTexture, Handle: 3, Mip: 1, Dimension: gpu.DimCube},
		{Kind: metadata.BindIndexBuffer, Handle: 3, Mip: 1},
	}
	views := make(map[gpu.View]bool)
	for _, k := range keys {
		v, err := c.Get(k, creator(dev))
		require.NoError(t, err)
		views[v] = true
	}
	assert.Len(t, views, len(keys))
	assert.Equal(t, uint64(len(keys)), c.Stats().Misses)

	v, err := c.Get(texKey(3, 1), creator(dev))
	require.NoError(t, err)
	assert.True(t, views[v])
	assert.Equal(t, uint64(1), c.Stats().Hits)
}

func TestInvalidateOwnerKeepsRecency(t *testing.T) {
	dev := noop.NewDevice()
	c := New(3)
	for _, h := range []uint16{1, 2, 9} {
		_, err := c.Get(texKey(h, 0), creator(dev))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, c.InvalidateOwner(metadata.BindTexture, 9))

	_, err := c.Get(texKey(4, 0), creator(dev))
	require.NoError(t, err)
	_, err = c.Get(texKey(5, 0), creator(dev))
	require.NoError(t, err)
	// 1 was still the oldest after the owner walk
	assert.False(t, c.Contains(texKey(1, 0)))
	assert.True(t, c.Contains(texKey(2, 0)))
	assert.Equal(t, 3, dev.Live())
}
