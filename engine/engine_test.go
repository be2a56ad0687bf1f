package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/rendercore/engine/assets"
	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, g *Game) *Engine {
	t.Helper()
	if g == nil {
		g = &Game{ApplicationConfig: &ApplicationConfig{}}
	}
	e, err := New(g)
	require.NoError(t, err)
	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.events.Register(core.EVENT_CODE_WINDOW_RESIZED, e, e.onResized)
	e.events.Register(core.EVENT_CODE_ASSET_CHANGED, e, e.onAssetChanged)
	return e
}

func TestLoadConfig(t *testing.T) {
	cfg, path, err := loadConfig("")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, core.DefaultConfig(), cfg)

	missing := filepath.Join(t.TempDir(), "missing.toml")
	cfg, path, err = loadConfig(missing)
	require.NoError(t, err)
	assert.Equal(t, missing, path)
	assert.Equal(t, core.DefaultConfig().Window, cfg.Window)

	file := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(file, []byte("[renderer]\nmsaa = 4\nvsync = false\n"), 0o644))
	cfg, _, err = loadConfig(file)
	require.NoError(t, err)
	assert.Equal(t, uint8(4), cfg.Renderer.MSAA)

	require.NoError(t, os.WriteFile(file, []byte("[renderer]\nmsaa = 3\n"), 0o644))
	_, _, err = loadConfig(file)
	assert.Error(t, err)
}

func TestResolutionFromConfig(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Renderer.MSAA = 4
	cfg.Renderer.VSync = true
	res := resolutionFromConfig(cfg, 800, 600)
	assert.Equal(t, uint32(800), res.Width)
	assert.Equal(t, uint32(600), res.Height)
	assert.Equal(t, metadata.FormatBGRA8, res.Format)
	assert.Equal(t, uint32(4), res.Reset.MSAASamples())
	assert.NotZero(t, res.Reset&metadata.ResetVSync)
	assert.Equal(t, cfg.Renderer.BackBufferCount, res.NumBackBuffers)

	cfg.Renderer.MSAA = 1
	cfg.Renderer.VSync = false
	res = resolutionFromConfig(cfg, 1, 1)
	assert.Equal(t, metadata.ResetNone, res.Reset)
}

func TestNewUsesApplicationName(t *testing.T) {
	e := newTestEngine(t, &Game{ApplicationConfig: &ApplicationConfig{Name: "demo"}})
	assert.Equal(t, "demo", e.Config().Window.Title)
	assert.Equal(t, EngineStageUninitialized, e.Stage())
}

func press(e *Engine, key core.KeyCode) {
	e.input.ProcessKey(key, true)
	e.input.ProcessKey(key, false)
}

func TestDebugKeys(t *testing.T) {
	e := newTestEngine(t, nil)

	press(e, core.KEY_F1)
	press(e, core.KEY_F2)
	assert.Equal(t, metadata.DebugStats|metadata.DebugWireframe, e.DebugFlags())
	press(e, core.KEY_F1)
	assert.Equal(t, metadata.DebugWireframe, e.DebugFlags())

	press(e, core.KEY_F3)
	e.mu.Lock()
	assert.True(t, e.screenshot)
	e.mu.Unlock()

	assert.True(t, e.isRunning.Load())
	press(e, core.KEY_ESCAPE)
	assert.False(t, e.isRunning.Load())
}

func TestResizeSuspendsAndResumes(t *testing.T) {
	var sizes [][2]uint32
	g := &Game{
		ApplicationConfig: &ApplicationConfig{},
		FnOnResize: func(w, h uint32) error {
			sizes = append(sizes, [2]uint32{w, h})
			return nil
		},
	}
	e := newTestEngine(t, g)

	resize := func(w, h uint32) {
		var data core.EventContext
		data.Data.U32[0], data.Data.U32[1] = w, h
		e.events.Fire(core.EVENT_CODE_WINDOW_RESIZED, nil, data)
	}
	resize(e.width, e.height)
	assert.Empty(t, sizes)

	resize(0, 0)
	assert.True(t, e.isSuspended)
	resize(640, 480)
	assert.False(t, e.isSuspended)
	assert.Equal(t, [][2]uint32{{640, 480}}, sizes)
	w, h := e.GetFramebufferSize()
	assert.Equal(t, uint32(640), w)
	assert.Equal(t, uint32(480), h)
}

func TestAssetChangesAreQueued(t *testing.T) {
	var got []string
	g := &Game{
		ApplicationConfig: &ApplicationConfig{},
		FnOnAssetChanged: func(path string, typ assets.Type) error {
			got = append(got, path)
			return nil
		},
	}
	e := newTestEngine(t, g)

	var data core.EventContext
	data.Data.S = "textures/wall.png"
	data.Data.U32[0] = uint32(assets.TypeTexture)
	e.events.Fire(core.EVENT_CODE_ASSET_CHANGED, nil, data)
	assert.Empty(t, got)

	e.drainAssetChanges()
	assert.Equal(t, []string{"textures/wall.png"}, got)
}
