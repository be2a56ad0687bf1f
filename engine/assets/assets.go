package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/rendercore/engine/assets/loaders"
	"github.com/spaghettifunk/rendercore/engine/core"
)

var ErrClosed = errors.New("asset manager closed")

type AssetInfo struct {
	Path     string
	Type     Type
	Modified time.Time
}

type AssetManager struct {
	root    string
	assets  map[string]AssetInfo
	loaders map[Type]Loader
	events  *core.EventBus

	mutex sync.RWMutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
}

// NewAssetManager indexes root. With watch set, changes below root are
// reported on events as EVENT_CODE_ASSET_CHANGED.
func NewAssetManager(root string, watch bool, events *core.EventBus) (*AssetManager, error) {
	am := &AssetManager{
		root:    root,
		assets:  make(map[string]AssetInfo),
		loaders: make(map[Type]Loader),
		events:  events,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	am.RegisterLoader(TypeShader, &loaders.ShaderLoader{})
	am.RegisterLoader(TypeTexture, &loaders.TextureLoader{})
	am.RegisterLoader(TypeFont, &loaders.BitmapFontLoader{})

	if watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, err
		}
		am.fsnotify = w
		go am.start()
	} else {
		close(am.stopped)
	}
	if err := am.watchRecursive(root); err != nil {
		am.Close()
		return nil, err
	}
	return am, nil
}

// RegisterLoader sets the loader of an asset type, replacing any previous
// one.
func (am *AssetManager) RegisterLoader(t Type, loader Loader) {
	am.mutex.Lock()
	am.loaders[t] = loader
	am.mutex.Unlock()
}

// Path resolves a name relative to the asset root.
func (am *AssetManager) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(am.root, name)
}

// Load an asset using the loader of its type.
func (am *AssetManager) Load(name string) (interface{}, error) {
	path := am.Path(name)
	t := determineAssetType(path)
	am.mutex.RLock()
	loader, ok := am.loaders[t]
	am.mutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no loader registered for %s (%s)", name, t)
	}
	return loader.Load(path)
}

// LoadShader parses a shader blob, registering its user uniforms through
// uniforms. Call it from the render goroutine when uniforms creates them on a
// backend context.
func (am *AssetManager) LoadShader(name string, uniforms loaders.UniformFunc) (*loaders.Shader, error) {
	path := am.Path(name)
	if t := determineAssetType(path); t != TypeShader {
		return nil, fmt.Errorf("%s is not a shader", name)
	}
	v, err := (&loaders.ShaderLoader{Uniforms: uniforms}).Load(path)
	if err != nil {
		return nil, err
	}
	return v.(*loaders.Shader), nil
}

func (am *AssetManager) LoadFont(name string) (*loaders.BitmapFont, error) {
	v, err := am.Load(name)
	if err != nil {
		return nil, err
	}
	f, ok := v.(*loaders.BitmapFont)
	if !ok {
		return nil, fmt.Errorf("%s is not a bitmap font", name)
	}
	return f, nil
}

// WatchDir reports changes of files directly inside dir, which may lie
// outside the asset root. It is a no-op without watching.
func (am *AssetManager) WatchDir(dir string) error {
	if am.fsnotify == nil {
		return nil
	}
	return am.fsnotify.Add(dir)
}

// Assets lists the indexed assets of type t.
func (am *AssetManager) Assets(t Type) []AssetInfo {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	var out []AssetInfo
	for _, a := range am.assets {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

func (am *AssetManager) Close() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()
	if am.fsnotify != nil {
		close(am.done)
	}
	<-am.stopped
	return nil
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleEvent(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	if e.Op&fsnotify.Create != 0 {
		if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
			if err := am.watchRecursive(e.Name); err != nil {
				core.LogWarn("asset watcher: %s", err)
			}
			return
		}
	}
	switch {
	case e.Op&(fsnotify.Create|fsnotify.Write) != 0:
		if !am.index(e.Name) {
			return
		}
	case e.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// A deleted directory cannot be stat'ed; the watcher drops it itself.
		am.removeAsset(e.Name)
	default:
		return
	}
	if am.events != nil {
		var data core.EventContext
		data.Data.S = e.Name
		data.Data.U32[0] = uint32(determineAssetType(e.Name))
		am.events.Fire(core.EVENT_CODE_ASSET_CHANGED, am, data)
	}
}

// watchRecursive indexes every file under path and watches every directory.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if am.fsnotify != nil {
				return am.fsnotify.Add(walkPath)
			}
			return nil
		}
		am.index(walkPath)
		return nil
	})
}

// index records a file if its type is known.
func (am *AssetManager) index(path string) bool {
	assetType := determineAssetType(path)
	if assetType == TypeNone {
		return false
	}
	info := AssetInfo{Path: path, Type: assetType, Modified: time.Now()}
	if s, err := os.Stat(path); err == nil {
		info.Modified = s.ModTime()
	}
	am.mutex.Lock()
	am.assets[path] = info
	am.mutex.Unlock()
	return true
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, path)
}
