// Package backend executes frames against one gpu.Device. A Context owns
// every cache, query ring and resource table tied to the device lifetime.
package backend

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
	"github.com/spaghettifunk/rendercore/engine/renderer/query"
	"github.com/spaghettifunk/rendercore/engine/renderer/statecache"
	"github.com/spaghettifunk/rendercore/engine/renderer/swapchain"
	"github.com/spaghettifunk/rendercore/engine/renderer/uniform"
	"github.com/spaghettifunk/rendercore/engine/renderer/viewcache"
)

// frameTimer is the timer result slot measuring the whole frame; slots below
// it measure one view each.
const frameTimer = metadata.MaxViews

type Config struct {
	ViewCacheCapacity int
	// TimerQueryCount is how many frames of timer queries may be in flight.
	TimerQueryCount     int
	OcclusionQueryCount int
	PresentModes        []gpu.PresentMode
	Window              uintptr
	// External replaces the swap chain with host supplied targets.
	External      *swapchain.External
	ScreenshotDir string
	// Fatal is called once when the device is lost.
	Fatal  func(err error)
	Events *core.EventBus
}

// ConfigFrom maps the renderer section of the engine configuration.
func ConfigFrom(cfg *core.Config) (Config, error) {
	r := cfg.Renderer
	out := Config{
		ViewCacheCapacity:   r.ViewCacheCapacity,
		TimerQueryCount:     r.TimerQueryCount,
		OcclusionQueryCount: r.OcclusionQueryCount,
		ScreenshotDir:       r.ScreenshotDir,
	}
	for _, name := range r.PresentModes {
		m, err := gpu.ParsePresentMode(name)
		if err != nil {
			return out, err
		}
		out.PresentModes = append(out.PresentModes, m)
	}
	return out, nil
}

// Context is driven from the render goroutine only.
type Context struct {
	id  uuid.UUID
	log *log.Logger
	cfg Config

	dev  gpu.Device
	ctx  gpu.Context
	caps gpu.Caps

	states    *statecache.States
	views     *viewcache.Cache
	uniforms  *uniform.Engine
	registry  *uniform.Registry
	timers    *query.TimerRing
	occlusion *query.OcclusionRing
	swap      *swapchain.Lifecycle

	res     resources
	palette [16][4]float32

	clear   clearPass
	overlay *overlay

	cs        currentState
	geo       geometry
	viewStart time.Time
	// cur is the frame being dispatched, stats the last finished one.
	cur       metadata.Stats
	stats     metadata.Stats
	frameNum  uint64
	cpu       *core.Clock
	metrics   *core.FrameMetrics
	wireframe bool
	lostErr   error
}

// New builds a context on dev and creates the swap chain for res.
func New(dev gpu.Device, cfg Config, res metadata.Resolution) (*Context, error) {
	if cfg.ViewCacheCapacity <= 0 {
		cfg.ViewCacheCapacity = viewcache.DefaultCapacity
	}
	if cfg.TimerQueryCount <= 0 {
		cfg.TimerQueryCount = 4
	}
	if cfg.OcclusionQueryCount <= 0 {
		cfg.OcclusionQueryCount = 256
	}
	c := &Context{
		cfg:      cfg,
		registry: uniform.NewRegistry(),
		res:      newResources(),
		cpu:      core.NewClock(),
		metrics:  core.NewFrameMetrics(),
	}
	c.clear.release()
	if err := c.init(dev, res); err != nil {
		c.Destroy()
		return nil, err
	}
	return c, nil
}

func (c *Context) init(dev gpu.Device, res metadata.Resolution) error {
	c.id = uuid.New()
	c.log = core.LogWith("device", c.id.String())
	c.dev = dev
	c.ctx = dev.Context()
	c.caps = dev.Caps()
	c.lostErr = nil

	c.states = statecache.NewStates()
	c.views = viewcache.New(c.cfg.ViewCacheCapacity)
	c.uniforms = uniform.NewEngine()
	c.cs.reset()

	var err error
	if c.caps.TimestampQuery {
		size := c.cfg.TimerQueryCount * (metadata.MaxViews + 1)
		if c.timers, err = query.NewTimerRing(dev, size, metadata.MaxViews+1); err != nil {
			return fmt.Errorf("timer queries: %w", err)
		}
	}
	if c.caps.OcclusionQuery {
		if c.occlusion, err = query.NewOcclusionRing(dev, c.cfg.OcclusionQueryCount); err != nil {
			return fmt.Errorf("occlusion queries: %w", err)
		}
	}

	c.swap = swapchain.New(dev, swapchain.Config{
		PresentModes: c.cfg.PresentModes,
		Window:       c.cfg.Window,
		External:     c.cfg.External,
	}, c, c.onDeviceLost)
	if err := c.swap.Create(res); err != nil {
		return fmt.Errorf("swap chain: %w", err)
	}
	c.stats = metadata.Stats{DeviceID: c.id.String()}
	c.log.Info("renderer context ready", "vendor", c.caps.Vendor, "device", c.caps.DeviceName,
		"width", res.Width, "height", res.Height)
	return nil
}

// PreReset runs before the back buffer is released.
func (c *Context) PreReset() {
	c.cs.reset()
}

// PostReset runs once the new back buffer views exist.
func (c *Context) PostReset() error {
	c.cs.reset()
	res := c.swap.Resolution()
	var data core.EventContext
	data.Data.U32[0] = res.Width
	data.Data.U32[1] = res.Height
	c.fire(core.EVENT_CODE_RESIZED, data)
	return nil
}

func (c *Context) fire(code core.SystemEventCode, data core.EventContext) {
	if c.cfg.Events != nil {
		c.cfg.Events.Fire(code, c, data)
	}
}

// onDeviceLost is invoked once by the lifecycle when the device is lost.
func (c *Context) onDeviceLost(err error) {
	c.lostErr = err
	var data core.EventContext
	data.Data.U32[0] = uint32(gpu.CodeOf(err))
	data.Data.S = err.Error()
	c.fire(core.EVENT_CODE_DEVICE_LOST, data)
	if c.cfg.Fatal != nil {
		c.cfg.Fatal(err)
	}
}

// checkLost routes a device-loss error found outside the lifecycle into it.
func (c *Context) checkLost(err error) error {
	if err != nil && core.IsDeviceLost(err) {
		return c.swap.MarkLost(err)
	}
	return err
}

// release frees every object created on the current device.
func (c *Context) release() {
	if c.overlay != nil {
		c.overlay.release()
		c.overlay = nil
	}
	c.clear.release()
	c.res.releaseAll()
	if c.views != nil {
		c.views.Invalidate()
	}
	if c.states != nil {
		c.states.Invalidate()
	}
	if c.timers != nil {
		c.timers.Release()
		c.timers = nil
	}
	if c.occlusion != nil {
		c.occlusion.Release()
		c.occlusion = nil
	}
	if c.swap != nil {
		c.swap.Destroy()
	}
	if c.uniforms != nil {
		c.uniforms.Reset()
	}
}

// Reset moves the context to a new device after a loss. Every resource
// handle is invalidated; the host recreates its resources afterwards.
func (c *Context) Reset(dev gpu.Device, res metadata.Resolution) error {
	old := c.id
	c.release()
	for _, h := range c.registryHandles() {
		c.registry.Destroy(h)
	}
	if err := c.init(dev, res); err != nil {
		return err
	}
	c.log.Info("device reset", "previous", old.String())
	return nil
}

func (c *Context) registryHandles() []metadata.UniformHandle {
	var out []metadata.UniformHandle
	for h := metadata.UniformHandle(0); h < metadata.MaxUniforms; h++ {
		if c.registry.Get(h) != nil {
			out = append(out, h)
		}
	}
	return out
}

// Destroy releases everything. The device itself stays owned by the caller.
func (c *Context) Destroy() {
	c.release()
	c.log.Debug("renderer context destroyed")
}

func (c *Context) ID() uuid.UUID         { return c.id }
func (c *Context) Caps() gpu.Caps        { return c.caps }
func (c *Context) Stats() metadata.Stats { return c.stats }
func (c *Context) IsLost() bool          { return c.lostErr != nil }
func (c *Context) Err() error            { return c.lostErr }

// Resolution is the resolution the swap chain currently has.
func (c *Context) Resolution() metadata.Resolution {
	return c.swap.Resolution()
}

// FrameMetrics reports the rolling CPU frame time average and frame rate.
func (c *Context) FrameMetrics() (fps, ms float64) {
	return c.metrics.Frame()
}
