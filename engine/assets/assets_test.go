package assets

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spaghettifunk/rendercore/engine/assets/loaders"
	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetermineAssetType(t *testing.T) {
	cases := map[string]Type{
		"shaders/vs_cubes.bin": TypeShader,
		"a.shader":             TypeShader,
		"tex/wall.PNG":         TypeTexture,
		"wall.tga":             TypeTexture,
		"wall.webp":            TypeTexture,
		"fonts/debug.fnt":      TypeFont,
		"config.toml":          TypeConfig,
		"README":               TypeNone,
		"notes.txt":            TypeNone,
	}
	for path, want := range cases {
		assert.Equal(t, want, determineAssetType(path), path)
	}
	assert.Equal(t, "texture", TypeTexture.String())
	assert.Equal(t, "none", TypeNone.String())
}

func writeFile(t *testing.T, path string, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

func TestAssetManagerIndexes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "shaders", "vs.bin"), "x")
	writeFile(t, filepath.Join(root, "textures", "a.png"), "x")
	writeFile(t, filepath.Join(root, "readme.md"), "x")

	am, err := NewAssetManager(root, false, nil)
	require.NoError(t, err)
	defer am.Close()

	shaders := am.Assets(TypeShader)
	require.Len(t, shaders, 1)
	assert.Equal(t, filepath.Join(root, "shaders", "vs.bin"), shaders[0].Path)
	assert.Len(t, am.Assets(TypeTexture), 1)
	assert.Empty(t, am.Assets(TypeNone))

	assert.Equal(t, filepath.Join(root, "x.png"), am.Path("x.png"))
	assert.Equal(t, "/abs/x.png", am.Path("/abs/x.png"))

	// one byte is not a shader blob
	_, err = am.LoadShader("shaders/vs.bin", nil)
	assert.ErrorIs(t, err, loaders.ErrBadShader)
	_, err = am.LoadShader("textures/a.png", nil)
	assert.ErrorContains(t, err, "is not a shader")
	// the texture is not a real image
	_, err = am.Load("textures/a.png")
	assert.Error(t, err)
}

type stubLoader struct{ v interface{} }

func (s stubLoader) Load(string) (interface{}, error) { return s.v, nil }

func TestAssetManagerTypedLoads(t *testing.T) {
	am, err := NewAssetManager(t.TempDir(), false, nil)
	require.NoError(t, err)
	defer am.Close()

	_, err = am.Load("a.toml")
	assert.ErrorContains(t, err, "no loader registered")

	am.RegisterLoader(TypeFont, stubLoader{v: 1})
	_, err = am.LoadFont("a.fnt")
	assert.ErrorContains(t, err, "is not a bitmap font")
}

func TestAssetManagerMissingRoot(t *testing.T) {
	_, err := NewAssetManager(filepath.Join(t.TempDir(), "missing"), true, nil)
	assert.Error(t, err)
}

func TestAssetManagerWatch(t *testing.T) {
	root := t.TempDir()
	events := core.NewEventBus()

	var mu sync.Mutex
	changed := map[string]Type{}
	events.Register(core.EVENT_CODE_ASSET_CHANGED, t, func(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
		mu.Lock()
		changed[data.Data.S] = Type(data.Data.U32[0])
		mu.Unlock()
		return true
	})

	am, err := NewAssetManager(root, true, events)
	require.NoError(t, err)
	defer am.Close()

	sub := filepath.Join(root, "shaders")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// the new directory is watched asynchronously
	require.Eventually(t, func() bool {
		path := filepath.Join(sub, "fs.bin")
		writeFile(t, path, "x")
		mu.Lock()
		defer mu.Unlock()
		return changed[path] == TypeShader
	}, 5*time.Second, 50*time.Millisecond)
	assert.Len(t, am.Assets(TypeShader), 1)

	cfg := filepath.Join(root, "config.toml")
	writeFile(t, cfg, "[log]")
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return changed[cfg] == TypeConfig
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.Remove(cfg))
	require.Eventually(t, func() bool {
		return len(am.Assets(TypeConfig)) == 0
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, am.Close())
	require.NoError(t, am.Close())
}

func TestAssetManagerWatchDir(t *testing.T) {
	events := core.NewEventBus()
	var mu sync.Mutex
	var paths []string
	events.Register(core.EVENT_CODE_ASSET_CHANGED, t, func(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
		mu.Lock()
		paths = append(paths, data.Data.S)
		mu.Unlock()
		return true
	})

	am, err := NewAssetManager(t.TempDir(), true, events)
	require.NoError(t, err)
	defer am.Close()

	outside := t.TempDir()
	require.NoError(t, am.WatchDir(outside))
	cfg := filepath.Join(outside, "config.toml")
	writeFile(t, cfg, "debug = true")
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, p := range paths {
			if p == cfg {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)

	unwatched, err := NewAssetManager(t.TempDir(), false, nil)
	require.NoError(t, err)
	assert.NoError(t, unwatched.WatchDir(outside))
	assert.NoError(t, unwatched.Close())
}
