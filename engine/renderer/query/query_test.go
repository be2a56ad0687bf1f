package query

import (
	"testing"
	"time"

	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
	"github.com/spaghettifunk/rendercore/engine/renderer/noop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOcclusionVisibility(t *testing.T) {
	dev := noop.NewDevice()
	o, err := NewOcclusionRing(dev, 4)
	require.NoError(t, err)

	// never resolved counts as visible
	assert.True(t, o.IsVisible(3))
	assert.Equal(t, NotResolved, o.Result(3))

	dev.Samples = 0
	require.NoError(t, o.Begin(3))
	assert.True(t, o.End())
	dev.Samples = 42
	require.NoError(t, o.Begin(4))
	assert.True(t, o.End())

	ok, err := o.Update()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, o.IsVisible(3))
	assert.True(t, o.IsVisible(4))
	assert.Equal(t, int32(42), o.Result(4))
	assert.Equal(t, 0, o.Pending())

	o.Invalidate(3)
	assert.True(t, o.IsVisible(3))
	assert.True(t, o.IsVisible(metadata.InvalidOcclusionQuery))
}

func TestPollNeverFlushes(t *testing.T) {
	dev := noop.NewDevice()
	dev.QueryLatency = 2
	o, err := NewOcclusionRing(dev, 4)
	require.NoError(t, err)

	require.NoError(t, o.Begin(0))
	o.End()
	ok, err := o.Update()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, o.Pending())

	for _, c := range dev.Calls() {
		if c.Name == "GetQueryData" {
			assert.Equal(t, false, c.Args[1])
		}
	}
}

func TestBeginBlocksUntilSlotResolves(t *testing.T) {
	dev := noop.NewDevice()
	dev.QueryLatency = 3
	o, err := NewOcclusionRing(dev, 2)
	require.NoError(t, err)

	for h := metadata.OcclusionQueryHandle(0); h < 2; h++ {
		require.NoError(t, o.Begin(h))
		o.End()
		assert.LessOrEqual(t, o.Pending(), o.Cap())
	}
	assert.Equal(t, 0, dev.Count("GetQueryData"))

	require.NoError(t, o.Begin(2))
	// three not-ready polls, the resolving one, then one on the next slot
	assert.Equal(t, 5, dev.Count("GetQueryData"))
	assert.Equal(t, int32(1), o.Result(0))
	assert.Equal(t, 2, o.Pending())
}

func TestBeginFlushesUnsubmittedQueries(t *testing.T) {
	dev := noop.NewDevice()
	dev.DeferSubmit = true
	o, err := NewOcclusionRing(dev, 2)
	require.NoError(t, err)

	for h := metadata.OcclusionQueryHandle(0); h < 2; h++ {
		require.NoError(t, o.Begin(h))
		o.End()
	}
	// still in the command buffer being recorded
	ok, err := o.Update()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, dev.Count("Flush"))

	done := make(chan error, 1)
	go func() {
		done <- o.Begin(2)
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("begin spun on queries that were never submitted")
	}
	assert.Equal(t, 1, dev.Count("Flush"))
	assert.Equal(t, int32(1), o.Result(0))
	assert.Equal(t, int32(1), o.Result(1))
	assert.Equal(t, 1, o.Pending())
}

func TestBeginWaitsForDriver(t *testing.T) {
	dev := noop.NewDevice()
	dev.QueryLatency = -1
	o, err := NewOcclusionRing(dev, 2)
	require.NoError(t, err)

	require.NoError(t, o.Begin(0))
	o.End()
	require.NoError(t, o.Begin(1))
	o.End()

	done := make(chan error, 1)
	go func() {
		done <- o.Begin(2)
	}()

	select {
	case <-done:
		t.Fatal("begin returned while every slot was pending")
	case <-time.After(50 * time.Millisecond):
	}

	dev.CompleteQueries()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("begin did not return after the driver resolved")
	}
	assert.True(t, o.End())
}

func TestStalledRing(t *testing.T) {
	core.SetDebug(false)
	dev := noop.NewDevice()
	o, err := NewOcclusionRing(dev, 1)
	require.NoError(t, err)

	require.NoError(t, o.Begin(0))
	assert.ErrorIs(t, o.Begin(1), ErrStalled)
}

func TestTimerRing(t *testing.T) {
	dev := noop.NewDevice()
	tr, err := NewTimerRing(dev, 8, 3)
	require.NoError(t, err)

	require.NoError(t, tr.Begin(2))
	require.NoError(t, tr.Begin(0))
	assert.True(t, tr.End(0))
	assert.True(t, tr.End(2))
	assert.False(t, tr.End(1))
	assert.Equal(t, uint32(1), tr.Result(0).Pending)

	ok, err := tr.Update()
	require.NoError(t, err)
	assert.True(t, ok)

	frame := tr.Result(2)
	view := tr.Result(0)
	assert.True(t, frame.Valid)
	assert.Equal(t, uint32(0), frame.Pending)
	assert.Equal(t, uint64(3000), frame.Ticks())
	assert.Equal(t, 3*time.Microsecond, frame.Elapsed())
	assert.Equal(t, time.Microsecond, view.Elapsed())
	assert.False(t, tr.Result(1).Valid)
}

func TestDeviceLostWhilePolling(t *testing.T) {
	dev := noop.NewDevice()
	o, err := NewOcclusionRing(dev, 2)
	require.NoError(t, err)
	require.NoError(t, o.Begin(0))
	o.End()

	dev.FailNext("GetQueryData", gpu.DeviceRemoved)
	_, err = o.Update()
	assert.True(t, core.IsDeviceLost(err))
}

func TestReleaseFreesQueries(t *testing.T) {
	dev := noop.NewDevice()
	o, err := NewOcclusionRing(dev, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, dev.Live())
	o.Release()
	assert.Equal(t, 0, dev.Live())
}

func TestCreateFailureReleasesPartialRing(t *testing.T) {
	dev := noop.NewDevice()
	dev.FailNext("CreateQuery", gpu.OutOfMemory)
	_, err := NewTimerRing(dev, 4, 1)
	assert.ErrorIs(t, err, core.ErrOutOfMemory)
	assert.Equal(t, 0, dev.Live())
}
