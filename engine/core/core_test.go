package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKind(t *testing.T) {
	lost := NewError(KindDeviceLost, "present", -0x7785FFFB, nil) // 0x887A0005 as int32
	wrapped := fmt.Errorf("end frame: %w", lost)

	assert.True(t, errors.Is(wrapped, ErrDeviceLost))
	assert.True(t, IsDeviceLost(wrapped))
	assert.Equal(t, KindDeviceLost, KindOf(wrapped))

	oom := NewError(KindTransient, "create texture", -0x7FF8FFF2, ErrOutOfMemory) // 0x8007000E as int32
	assert.False(t, errors.Is(oom, ErrDeviceLost))
	assert.True(t, errors.Is(oom, ErrOutOfMemory))
	assert.Equal(t, KindTransient, KindOf(oom))

	assert.Equal(t, KindOk, KindOf(nil))
	assert.Equal(t, KindTransient, KindOf(errors.New("boom")))
	assert.Contains(t, lost.Error(), "device-lost")
}

func TestAssertReleaseIsSoft(t *testing.T) {
	SetDebug(false)
	assert.True(t, Assert(true, "never"))
	assert.False(t, Assert(false, "bad handle %d", 3))

	SetDebug(true)
	defer SetDebug(false)
	assert.Panics(t, func() { Assert(false, "bad handle %d", 3) })
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "renderer.toml")
	data := []byte(`
debug = true

[log]
level = "warn"

[renderer]
backend = "noop"
view_cache_capacity = 64
present_modes = ["blit"]
msaa = 4
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "noop", cfg.Renderer.Backend)
	assert.Equal(t, 64, cfg.Renderer.ViewCacheCapacity)
	assert.Equal(t, []string{"blit"}, cfg.Renderer.PresentModes)
	assert.Equal(t, uint8(4), cfg.Renderer.MSAA)
	// untouched keys keep their defaults
	assert.Equal(t, 256, cfg.Renderer.OcclusionQueryCount)
	assert.Equal(t, uint32(1280), cfg.Window.Width)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Renderer.PresentModes = []string{"discard"}
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Renderer.ViewCacheCapacity = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Renderer.MSAA = 3
	assert.Error(t, cfg.Validate())
}

func TestConfigRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Renderer.TimerQueryCount = 8
	data, err := cfg.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.toml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestHandleAlloc(t *testing.T) {
	a := NewHandleAlloc(3)
	assert.Equal(t, uint16(0), a.Alloc())
	assert.Equal(t, uint16(1), a.Alloc())
	assert.Equal(t, uint16(2), a.Alloc())
	assert.Equal(t, InvalidHandle, a.Alloc())

	require.NoError(t, a.Free(2))
	require.NoError(t, a.Free(0))
	assert.Error(t, a.Free(0))
	assert.ErrorIs(t, a.Free(7), ErrInvalidHandle)
	assert.Equal(t, 1, a.Len())

	assert.Equal(t, uint16(0), a.Alloc())
	assert.Equal(t, uint16(2), a.Alloc())
	assert.True(t, a.IsValid(1))
}

func TestEventBus(t *testing.T) {
	bus := NewEventBus()
	var got []uint32
	first := func(code SystemEventCode, sender, listener interface{}, data EventContext) bool {
		got = append(got, data.Data.U32[0])
		return false
	}
	second := func(code SystemEventCode, sender, listener interface{}, data EventContext) bool {
		got = append(got, data.Data.U32[0]+100)
		return true
	}
	a, b := new(int), new(int)
	assert.True(t, bus.Register(EVENT_CODE_RESIZED, a, first))
	assert.False(t, bus.Register(EVENT_CODE_RESIZED, a, first))
	assert.True(t, bus.Register(EVENT_CODE_RESIZED, b, second))

	ctx := EventContext{}
	ctx.Data.U32[0] = 7
	assert.True(t, bus.Fire(EVENT_CODE_RESIZED, nil, ctx))
	assert.Equal(t, []uint32{7, 107}, got)

	assert.True(t, bus.Unregister(EVENT_CODE_RESIZED, b))
	assert.False(t, bus.Fire(EVENT_CODE_RESIZED, nil, ctx))
	assert.False(t, bus.Fire(EVENT_CODE_DEVICE_LOST, nil, ctx))
}

func TestFrameMetrics(t *testing.T) {
	m := NewFrameMetrics()
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(10 * time.Millisecond)
	}
	assert.InDelta(t, 10.0, m.FrameTime(), 1e-9)

	for i := 0; i < 100; i++ {
		m.Update(10 * time.Millisecond)
	}
	assert.InDelta(t, 100.0, m.FPS(), 1.0)
}

func TestMurmurHash2AIncremental(t *testing.T) {
	data := []byte("blend-state-0123456789abcdef")
	one := HashMurmur2A(data)

	m := NewMurmurHash2A(0)
	m.Add(data[:3])
	m.Add(data[3:10])
	m.Add(data[10:])
	assert.Equal(t, one, m.Sum32())

	assert.NotEqual(t, one, HashMurmur2A(data[:len(data)-1]))
	assert.Equal(t, HashMurmur2A([]byte{1, 0, 0, 0}), func() uint32 {
		h := NewMurmurHash2A(0)
		h.AddUint32(1)
		return h.Sum32()
	}())
}

func TestInput(t *testing.T) {
	bus := NewEventBus()
	var pressed, released []uint16
	bus.Register(EVENT_CODE_KEY_PRESSED, t, func(code SystemEventCode, sender, listener interface{}, data EventContext) bool {
		pressed = append(pressed, data.Data.U16[0])
		return true
	})
	bus.Register(EVENT_CODE_KEY_RELEASED, t, func(code SystemEventCode, sender, listener interface{}, data EventContext) bool {
		released = append(released, data.Data.U16[0])
		return true
	})

	in := NewInput(bus)
	in.ProcessKey(KEY_F1, true)
	// repeated state does not fire again
	in.ProcessKey(KEY_F1, true)
	assert.True(t, in.IsKeyDown(KEY_F1))
	assert.True(t, in.Pressed(KEY_F1))
	assert.False(t, in.WasKeyDown(KEY_F1))

	in.Update()
	assert.False(t, in.Pressed(KEY_F1))
	assert.True(t, in.WasKeyDown(KEY_F1))

	in.ProcessKey(KEY_F1, false)
	assert.False(t, in.IsKeyDown(KEY_F1))
	assert.Equal(t, []uint16{uint16(KEY_F1)}, pressed)
	assert.Equal(t, []uint16{uint16(KEY_F1)}, released)
}
