package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/rendercore/engine/assets"
	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/platform"
	"github.com/spaghettifunk/rendercore/engine/renderer"
	"github.com/spaghettifunk/rendercore/engine/renderer/backend"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
	"github.com/spaghettifunk/rendercore/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

const (
	debugTextVS = "shaders/vs_debugtext.bin"
	debugTextFS = "shaders/fs_debugtext.bin"
	clearVS     = "shaders/vs_clear.bin"
	clearFS     = "shaders/fs_clear.bin"

	// recoverInterval spaces out attempts to reopen a lost device.
	recoverInterval = time.Second
)

type assetChange struct {
	path string
	typ  assets.Type
}

type Engine struct {
	currentStage Stage
	gameInstance *Game

	cfg     *core.Config
	cfgPath string

	events       *core.EventBus
	input        *core.Input
	platform     *platform.Platform
	assetManager *assets.AssetManager
	renderer     *renderer.Renderer
	clock        *core.Clock
	metrics      *core.FrameMetrics

	isRunning   atomic.Bool
	isSuspended bool
	width       uint32
	height      uint32
	lastTime    time.Duration
	lastRecover time.Time

	// written by event callbacks on other goroutines
	mu            sync.Mutex
	debug         metadata.DebugFlags
	screenshot    bool
	screenshotSeq int
	changes       chan assetChange
}

func New(g *Game) (*Engine, error) {
	cfg, path, err := loadConfig(g.ApplicationConfig.ConfigPath)
	if err != nil {
		return nil, err
	}
	if g.ApplicationConfig.Name != "" && cfg.Window.Title == core.DefaultConfig().Window.Title {
		cfg.Window.Title = g.ApplicationConfig.Name
	}
	if err := cfg.Apply(); err != nil {
		return nil, err
	}

	events := core.NewEventBus()
	input := core.NewInput(events)
	e := &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		cfg:          cfg,
		cfgPath:      path,
		events:       events,
		input:        input,
		platform:     platform.New(events, input),
		clock:        core.NewClock(),
		metrics:      core.NewFrameMetrics(),
		width:        cfg.Window.Width,
		height:       cfg.Window.Height,
		changes:      make(chan assetChange, 64),
	}
	if cfg.Debug {
		e.debug |= metadata.DebugStats
	}
	e.isRunning.Store(true)
	return e, nil
}

// loadConfig reads path on top of the defaults. An empty or missing path
// yields the defaults.
func loadConfig(path string) (*core.Config, string, error) {
	if path == "" {
		return core.DefaultConfig(), "", nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(abs); errors.Is(err, os.ErrNotExist) {
		core.LogWarn("config %s not found, using defaults", abs)
		return core.DefaultConfig(), abs, nil
	}
	cfg, err := core.LoadConfig(abs)
	if err != nil {
		return nil, "", err
	}
	return cfg, abs, nil
}

// resolutionFromConfig builds the swap chain request of the renderer section.
func resolutionFromConfig(cfg *core.Config, width, height uint32) metadata.Resolution {
	r := cfg.Renderer
	reset := metadata.ResetMSAAFromSamples(r.MSAA)
	if r.VSync {
		reset |= metadata.ResetVSync
	}
	return metadata.Resolution{
		Width:           width,
		Height:          height,
		Format:          metadata.FormatBGRA8,
		Reset:           reset,
		NumBackBuffers:  r.BackBufferCount,
		MaxFrameLatency: r.MaxFrameLatency,
	}
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.events.Register(core.EVENT_CODE_WINDOW_RESIZED, e, e.onResized)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_DEVICE_LOST, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_SCREENSHOT_SAVED, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_ASSET_CHANGED, e, e.onAssetChanged)

	if err := e.platform.Startup(e.cfg.Window); err != nil {
		return err
	}
	e.width, e.height = e.platform.FramebufferSize()

	if err := os.MkdirAll(e.cfg.Assets.Dir, 0o755); err != nil {
		return err
	}
	am, err := assets.NewAssetManager(e.cfg.Assets.Dir, e.cfg.Assets.Watch, e.events)
	if err != nil {
		return err
	}
	e.assetManager = am
	if e.cfg.Assets.Watch && e.cfgPath != "" {
		if err := am.WatchDir(filepath.Dir(e.cfgPath)); err != nil {
			core.LogWarn("config %s will not be reloaded: %s", e.cfgPath, err)
		}
	}

	t, err := renderer.ParseRendererType(e.cfg.Renderer.Backend)
	if err != nil {
		return err
	}
	bcfg, err := backend.ConfigFrom(e.cfg)
	if err != nil {
		return err
	}
	bcfg.Events = e.events
	devices := renderer.Devices(t, vulkan.Options{
		AppName:            e.cfg.Window.Title,
		Validation:         e.cfg.Debug,
		InstanceExtensions: e.platform.InstanceExtensions(),
		ProcAddr:           e.platform.ProcAddr(),
		CreateSurface:      e.platform.CreateSurface,
		PreferDiscrete:     true,
	})
	r, err := renderer.New(renderer.Config{
		Backend:    bcfg,
		Resolution: resolutionFromConfig(e.cfg, e.width, e.height),
		Fatal: func(err error) {
			core.LogError("renderer lost its device: %s", err)
		},
	}, devices)
	if err != nil {
		return err
	}
	e.renderer = r
	core.LogInfo("renderer started: backend=%s %dx%d", t, e.width, e.height)

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e); err != nil {
			return err
		}
	}
	if err := e.createResources(); err != nil {
		return err
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}
	e.currentStage = EngineStageInitialized
	return nil
}

// createResources installs the engine's own programs and lets the game
// create its resources.
func (e *Engine) createResources() error {
	return e.renderer.Do(func(ctx *backend.Context) error {
		if err := e.setupClear(ctx); err != nil {
			core.LogWarn("clear program unavailable: %s", err)
		}
		if err := e.setupDebugText(ctx); err != nil {
			core.LogWarn("debug text unavailable: %s", err)
		}
		if e.gameInstance.FnCreateResources == nil {
			return nil
		}
		return e.gameInstance.FnCreateResources(ctx, e.assetManager)
	})
}

func (e *Engine) exists(name string) bool {
	_, err := os.Stat(e.assetManager.Path(name))
	return err == nil
}

func (e *Engine) setupClear(ctx *backend.Context) error {
	if !e.exists(clearVS) || !e.exists(clearFS) {
		return nil
	}
	vs, err := e.assetManager.LoadShader(clearVS, ctx.CreateUniform)
	if err != nil {
		return err
	}
	fs, err := e.assetManager.LoadShader(clearFS, ctx.CreateUniform)
	if err != nil {
		return err
	}
	return ctx.SetClearProgram(vs, fs)
}

func (e *Engine) setupDebugText(ctx *backend.Context) error {
	if e.cfg.Renderer.DebugFont == "" {
		return nil
	}
	font, err := e.assetManager.LoadFont(e.cfg.Renderer.DebugFont)
	if err != nil {
		return err
	}
	vs, err := e.assetManager.LoadShader(debugTextVS, ctx.CreateUniform)
	if err != nil {
		return err
	}
	fs, err := e.assetManager.LoadShader(debugTextFS, ctx.CreateUniform)
	if err != nil {
		return err
	}
	return ctx.SetDebugText(vs, fs, font.Font, font.Atlas)
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	var targetFrame time.Duration
	if fps := e.gameInstance.ApplicationConfig.TargetFPS; fps > 0 {
		targetFrame = time.Second / time.Duration(fps)
	}

	for e.isRunning.Load() {
		if !e.platform.PumpMessages() {
			e.isRunning.Store(false)
			break
		}
		e.drainAssetChanges()

		if e.isSuspended {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := (currentTime - e.lastTime).Seconds()
		frameStart := time.Now()

		if e.renderer.IsLost() {
			e.tryRecover()
		}

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				core.LogError("Game update failed, shutting down: %s", err)
				return err
			}
		}

		if err := e.frame(delta); err != nil {
			if errors.Is(err, renderer.ErrStopped) {
				break
			}
			return err
		}

		frameTime := time.Since(frameStart)
		e.metrics.Update(frameTime)
		if remaining := targetFrame - frameTime; targetFrame > 0 && remaining > 0 {
			time.Sleep(remaining)
		}

		// NOTE: Input update/state copying should always be handled
		// after any input should be recorded.
		e.input.Update()
		e.lastTime = currentTime
	}
	return nil
}

// frame fills one frame through the game and hands it to the renderer.
func (e *Engine) frame(delta float64) error {
	f, err := e.renderer.Begin()
	if err != nil {
		return err
	}

	e.mu.Lock()
	f.Debug = e.debug
	if e.screenshot {
		e.screenshot = false
		e.screenshotSeq++
		f.Screenshot = &metadata.ScreenshotRequest{
			Path:   fmt.Sprintf("screenshot-%03d.tga", e.screenshotSeq),
			Format: metadata.ScreenshotTGA,
		}
	}
	e.mu.Unlock()

	if e.gameInstance.FnRender != nil {
		if err := e.gameInstance.FnRender(f, delta); err != nil {
			core.LogError("Game render failed, shutting down: %s", err)
			return err
		}
	}
	return e.renderer.End(f)
}

func (e *Engine) tryRecover() {
	if time.Since(e.lastRecover) < recoverInterval {
		return
	}
	e.lastRecover = time.Now()
	if err := e.renderer.Recover(); err != nil {
		core.LogWarn("device recovery failed: %s", err)
		return
	}
	if err := e.createResources(); err != nil {
		core.LogError("recreating resources after device loss: %s", err)
	}
}

func (e *Engine) drainAssetChanges() {
	for {
		select {
		case c := <-e.changes:
			e.applyAssetChange(c)
		default:
			return
		}
	}
}

func (e *Engine) applyAssetChange(c assetChange) {
	if c.typ == assets.TypeConfig && c.path == e.cfgPath {
		e.reloadConfig()
		return
	}
	if c.typ == assets.TypeShader || c.typ == assets.TypeFont {
		if err := e.renderer.Do(func(ctx *backend.Context) error {
			if err := e.setupClear(ctx); err != nil {
				return err
			}
			return e.setupDebugText(ctx)
		}); err != nil {
			core.LogWarn("reloading %s: %s", c.path, err)
		}
	}
	if e.gameInstance.FnOnAssetChanged != nil {
		if err := e.gameInstance.FnOnAssetChanged(c.path, c.typ); err != nil {
			core.LogWarn("game could not reload %s: %s", c.path, err)
		}
	}
}

// reloadConfig applies the live parts of a changed configuration file:
// logging, debug mode and the swap chain flags.
func (e *Engine) reloadConfig() {
	cfg, err := core.LoadConfig(e.cfgPath)
	if err != nil {
		core.LogWarn("config reload: %s", err)
		return
	}
	if err := cfg.Apply(); err != nil {
		core.LogWarn("config reload: %s", err)
	}
	e.cfg = cfg
	e.renderer.SetReset(resolutionFromConfig(cfg, e.width, e.height).Reset)
	core.LogInfo("config reloaded from %s", e.cfgPath)
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	var errs []error
	if e.gameInstance.FnShutdown != nil {
		errs = append(errs, e.gameInstance.FnShutdown())
	}
	if e.renderer != nil {
		e.renderer.Stop()
	}
	if e.assetManager != nil {
		errs = append(errs, e.assetManager.Close())
	}
	errs = append(errs, e.platform.Shutdown())
	return errors.Join(errs...)
}

func (e *Engine) Renderer() *renderer.Renderer    { return e.renderer }
func (e *Engine) Assets() *assets.AssetManager    { return e.assetManager }
func (e *Engine) Events() *core.EventBus          { return e.events }
func (e *Engine) Input() *core.Input              { return e.input }
func (e *Engine) Config() *core.Config            { return e.cfg }
func (e *Engine) Metrics() *core.FrameMetrics     { return e.metrics }
func (e *Engine) Stage() Stage                    { return e.currentStage }
func (e *Engine) DebugFlags() metadata.DebugFlags { e.mu.Lock(); defer e.mu.Unlock(); return e.debug }

// GetFramebufferSize returns the width and height (in this order)
// of the application framebuffer.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	switch code {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		return true
	case core.EVENT_CODE_RESIZED:
		core.LogDebug("swap chain resized to %dx%d", data.Data.U32[0], data.Data.U32[1])
	case core.EVENT_CODE_DEVICE_LOST:
		core.LogError("device lost (code %d): %s", data.Data.U32[0], data.Data.S)
	case core.EVENT_CODE_SCREENSHOT_SAVED:
		core.LogInfo("screenshot saved to %s", data.Data.S)
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	switch core.KeyCode(data.Data.U16[0]) {
	case core.KEY_ESCAPE:
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
		// Block anything else from processing this.
		return true
	case core.KEY_F1:
		e.toggleDebug(metadata.DebugStats)
	case core.KEY_F2:
		e.toggleDebug(metadata.DebugWireframe)
	case core.KEY_F3:
		e.mu.Lock()
		e.screenshot = true
		e.mu.Unlock()
	case core.KEY_F4:
		e.toggleDebug(metadata.DebugText)
	case core.KEY_F5:
		e.toggleDebug(metadata.DebugIFH)
	}
	return false
}

func (e *Engine) toggleDebug(flag metadata.DebugFlags) {
	e.mu.Lock()
	e.debug ^= flag
	on := e.debug&flag != 0
	e.mu.Unlock()
	core.LogDebug("debug flag %#x on=%t", uint32(flag), on)
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	width, height := data.Data.U32[0], data.Data.U32[1]
	// Check if different. If so, trigger a resize event.
	if width == e.width && height == e.height {
		return false
	}
	e.width, e.height = width, height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if e.renderer != nil {
		e.renderer.SetResolution(width, height)
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError("%s", err)
		}
	}
	return true
}

// onAssetChanged runs on the watcher goroutine; changes are applied by the
// game loop.
func (e *Engine) onAssetChanged(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	c := assetChange{path: data.Data.S, typ: assets.Type(data.Data.U32[0])}
	select {
	case e.changes <- c:
	default:
		core.LogWarn("asset change of %s dropped", c.path)
	}
	return false
}
