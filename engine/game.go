package engine

import (
	"github.com/spaghettifunk/rendercore/engine/assets"
	"github.com/spaghettifunk/rendercore/engine/renderer/backend"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
)

type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnCreateResources CreateResources
	FnUpdate          Update
	FnRender          Render
	FnOnResize        OnResize
	FnOnAssetChanged  OnAssetChanged
	FnShutdown        Shutdown
}

type Initialize func(e *Engine) error

// CreateResources runs on the render goroutine at startup and again after a
// device loss, when every previous handle is gone.
type CreateResources func(ctx *backend.Context, am *assets.AssetManager) error
type Update func(deltaTime float64) error

// Render fills the frame; the engine submits it afterwards.
type Render func(frame *metadata.Frame, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type OnAssetChanged func(path string, t assets.Type) error
type Shutdown func() error
