package renderer

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/backend"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
	"github.com/spaghettifunk/rendercore/engine/renderer/noop"
	"github.com/spaghettifunk/rendercore/engine/renderer/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type devices struct {
	opened []*noop.Device
}

func (d *devices) open() (gpu.Device, error) {
	dev := noop.NewDevice()
	d.opened = append(d.opened, dev)
	return dev, nil
}

func newRenderer(t *testing.T, fatal func(error)) (*Renderer, *devices) {
	t.Helper()
	devs := &devices{}
	r, err := New(Config{
		Backend: backend.Config{ScreenshotDir: t.TempDir()},
		Resolution: metadata.Resolution{
			Width: 320, Height: 240, Format: metadata.FormatBGRA8, NumBackBuffers: 2,
		},
		Fatal: fatal,
	}, devs.open)
	require.NoError(t, err)
	t.Cleanup(r.Stop)
	return r, devs
}

func renderFrame(t *testing.T, r *Renderer) {
	t.Helper()
	f, err := r.Begin()
	require.NoError(t, err)
	require.NoError(t, r.End(f))
}

func TestRendererPresentsFrames(t *testing.T) {
	r, devs := newRenderer(t, nil)
	for i := 0; i < 3; i++ {
		renderFrame(t, r)
	}
	// The third Begin cannot return before the first frame came back.
	renderFrame(t, r)

	require.NoError(t, r.Do(func(*backend.Context) error { return nil }))
	require.Len(t, devs.opened, 1)
	assert.GreaterOrEqual(t, devs.opened[0].Count("Present"), 3)
	assert.GreaterOrEqual(t, r.Stats().FrameNum, uint64(3))
}

func TestRendererAppliesResolution(t *testing.T) {
	r, devs := newRenderer(t, nil)
	r.SetResolution(640, 480)
	renderFrame(t, r)

	var got metadata.Resolution
	require.NoError(t, r.Do(func(ctx *backend.Context) error {
		got = ctx.Resolution()
		return nil
	}))
	assert.Equal(t, uint32(640), got.Width)
	assert.Equal(t, uint32(480), got.Height)
	assert.Equal(t, 1, devs.opened[0].Count("ResizeBuffers"))
}

func TestRendererDoReturnsError(t *testing.T) {
	r, _ := newRenderer(t, nil)
	want := errors.New("boom")
	assert.ErrorIs(t, r.Do(func(*backend.Context) error { return want }), want)
}

func TestRendererDeviceLossAndRecover(t *testing.T) {
	var fatal atomic.Int32
	r, devs := newRenderer(t, func(err error) {
		fatal.Add(1)
	})

	require.NoError(t, r.Do(func(*backend.Context) error {
		devs.opened[0].PresentCode = gpu.DeviceRemoved
		return nil
	}))
	renderFrame(t, r)
	// Wait for the frame to be dispatched.
	require.NoError(t, r.Do(func(*backend.Context) error { return nil }))

	assert.True(t, r.IsLost())
	assert.True(t, core.IsDeviceLost(r.Err()))
	assert.Equal(t, int32(1), fatal.Load())

	// Frames are dropped while lost.
	renderFrame(t, r)
	require.NoError(t, r.Do(func(*backend.Context) error { return nil }))
	assert.Equal(t, 1, devs.opened[0].Count("Present"))

	require.NoError(t, r.Recover())
	assert.False(t, r.IsLost())
	assert.NoError(t, r.Err())
	require.Len(t, devs.opened, 2)

	renderFrame(t, r)
	require.NoError(t, r.Do(func(*backend.Context) error { return nil }))
	assert.Equal(t, 1, devs.opened[1].Count("Present"))
}

func TestRendererStop(t *testing.T) {
	r, _ := newRenderer(t, nil)
	r.Stop()
	assert.ErrorIs(t, r.End(metadata.NewFrame()), ErrStopped)
	assert.ErrorIs(t, r.Do(func(*backend.Context) error { return nil }), ErrStopped)
	// Stop is idempotent.
	r.Stop()
}

func TestParseRendererType(t *testing.T) {
	typ, err := ParseRendererType("vulkan")
	require.NoError(t, err)
	assert.Equal(t, Vulkan, typ)
	typ, err = ParseRendererType("")
	require.NoError(t, err)
	assert.Equal(t, Noop, typ)
	_, err = ParseRendererType("metal")
	assert.Error(t, err)

	dev, err := Devices(Noop, vulkan.Options{})()
	require.NoError(t, err)
	assert.Equal(t, "noop", dev.Caps().Vendor)
}
