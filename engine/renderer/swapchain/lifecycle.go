// Package swapchain owns the presentable surface of a window: creation with
// present-mode fallback, resize, MSAA resolve, present and device-loss
// detection.
package swapchain

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
)

type State uint8

const (
	Uninitialized State = iota
	Created
	Active
	Resizing
	Lost
	Destroyed
)

func (s State) String() string {
	return [...]string{"uninitialized", "created", "active", "resizing", "lost", "destroyed"}[s]
}

// Hooks are called around a resize so the owner can release and rebuild
// everything that depends on the back buffer.
type Hooks interface {
	PreReset()
	PostReset() error
}

// FatalFunc receives the device-loss error. It is called at most once.
type FatalFunc func(err error)

// External is a back buffer supplied by the host instead of a swap chain.
type External struct {
	Color gpu.View
	Depth gpu.View
}

type Config struct {
	// PresentModes are tried in order until one is accepted.
	PresentModes []gpu.PresentMode
	Window       uintptr
	External     *External
}

// Lifecycle is driven from the render goroutine only.
type Lifecycle struct {
	dev   gpu.Device
	ctx   gpu.Context
	cfg   Config
	hooks Hooks
	fatal FatalFunc

	state State
	res   metadata.Resolution
	mode  gpu.PresentMode
	swap  gpu.SwapChain

	back     gpu.Texture
	msaa     gpu.Texture
	color    gpu.View
	depthTex gpu.Texture
	depth    gpu.View

	suspended bool
	outOfDate bool
	lostErr   error
}

func New(dev gpu.Device, cfg Config, hooks Hooks, fatal FatalFunc) *Lifecycle {
	if len(cfg.PresentModes) == 0 {
		cfg.PresentModes = []gpu.PresentMode{gpu.PresentFlip, gpu.PresentBlit}
	}
	return &Lifecycle{
		dev:   dev,
		ctx:   dev.Context(),
		cfg:   cfg,
		hooks: hooks,
		fatal: fatal,
		state: Uninitialized,
	}
}

// Create builds the swap chain and its views for res.
func (l *Lifecycle) Create(res metadata.Resolution) error {
	if l.state != Uninitialized && l.state != Destroyed {
		return fmt.Errorf("create swap chain in state %s", l.state)
	}
	if err := l.createSwapChain(res); err != nil {
		return err
	}
	l.res = res
	if err := l.createViews(); err != nil {
		l.releaseViews()
		return err
	}
	l.state = Created
	core.LogInfo("swap chain created %dx%d %s (%s, %dx msaa)", res.Width, res.Height, res.Format, l.mode, res.Reset.MSAASamples())
	return nil
}

func (l *Lifecycle) createSwapChain(res metadata.Resolution) error {
	if l.cfg.External != nil {
		return nil
	}
	var errs []error
	for _, mode := range l.cfg.PresentModes {
		desc := gpu.SwapChainDesc{
			Width:           res.Width,
			Height:          res.Height,
			Format:          res.Format,
			BufferCount:     max(res.NumBackBuffers, 2),
			Mode:            mode,
			MaxFrameLatency: res.MaxFrameLatency,
			SRGB:            res.Reset&metadata.ResetSRGB != 0,
			Window:          l.cfg.Window,
		}
		swap, err := l.dev.CreateSwapChain(desc)
		if err == nil {
			l.swap = swap
			l.mode = mode
			return nil
		}
		if core.IsDeviceLost(err) {
			return l.lose(err)
		}
		core.LogWarn("present mode %s rejected: %v", mode, err)
		errs = append(errs, err)
	}
	return fmt.Errorf("no present mode accepted: %w", errors.Join(errs...))
}

func (l *Lifecycle) createViews() error {
	if ext := l.cfg.External; ext != nil {
		l.color = ext.Color
		l.depth = ext.Depth
		return nil
	}

	back, err := l.swap.BackBuffer()
	if err != nil {
		return fmt.Errorf("back buffer: %w", err)
	}
	l.back = back
	// The surface may have picked another channel order than requested.
	format := back.Desc().Format
	if format == metadata.FormatUnknown {
		format = l.res.Format
	}

	samples := l.res.Reset.MSAASamples()
	target := back
	if samples > 1 {
		l.msaa, err = l.dev.CreateTexture(gpu.TextureDesc{
			Width:   l.res.Width,
			Height:  l.res.Height,
			Depth:   1,
			Mips:    1,
			Layers:  1,
			Format:  format,
			Samples: samples,
			Usage:   gpu.UsageRenderTarget,
		}, nil)
		if err != nil {
			return fmt.Errorf("msaa target: %w", err)
		}
		target = l.msaa
	}

	dim := gpu.Dim2D
	if samples > 1 {
		dim = gpu.Dim2DMS
	}
	l.color, err = l.dev.CreateRenderTargetView(target, gpu.ViewDesc{Format: format, Dimension: dim})
	if err != nil {
		return fmt.Errorf("color view: %w", err)
	}

	l.depthTex, err = l.dev.CreateTexture(gpu.TextureDesc{
		Width:   l.res.Width,
		Height:  l.res.Height,
		Depth:   1,
		Mips:    1,
		Layers:  1,
		Format:  metadata.FormatD24S8,
		Samples: samples,
		Usage:   gpu.UsageDepthStencil,
	}, nil)
	if err != nil {
		return fmt.Errorf("depth stencil: %w", err)
	}
	l.depth, err = l.dev.CreateDepthStencilView(l.depthTex, gpu.ViewDesc{Format: metadata.FormatD24S8, Dimension: dim})
	if err != nil {
		return fmt.Errorf("depth stencil view: %w", err)
	}
	return nil
}

func (l *Lifecycle) releaseViews() {
	if l.cfg.External != nil {
		l.color, l.depth = nil, nil
		return
	}
	for _, o := range []gpu.Object{l.color, l.depth, l.depthTex, l.msaa} {
		if o != nil {
			o.Release()
		}
	}
	l.color, l.depth, l.depthTex, l.msaa, l.back = nil, nil, nil, nil, nil
}

// UpdateResolution applies next if it differs from the current resolution.
// A suspend request only trims driver memory. It reports whether the back
// buffer changed.
func (l *Lifecycle) UpdateResolution(next metadata.Resolution) (bool, error) {
	if l.lostErr != nil {
		return false, l.lostErr
	}
	if l.state == Uninitialized || l.state == Destroyed {
		return false, fmt.Errorf("update resolution in state %s: %w", l.state, core.ErrNotInitialized)
	}
	if next.Reset&metadata.ResetSuspend != 0 {
		if !l.suspended {
			if err := l.Flush(); core.IsDeviceLost(err) {
				return false, err
			}
			l.dev.Trim()
			l.suspended = true
			core.LogDebug("device trimmed for suspend")
		}
		return false, nil
	}
	l.suspended = false
	if !l.outOfDate && !l.res.Differs(next) {
		return false, nil
	}

	prev := l.state
	l.state = Resizing
	if err := l.preReset(); err != nil {
		return false, err
	}

	if l.cfg.External == nil {
		if l.outOfDate || l.res.NeedsRecreate(next) {
			if err := l.recreate(next); err != nil {
				return false, err
			}
		} else {
			code := l.swap.ResizeBuffers(next.Width, next.Height, next.Format, next.NumBackBuffers)
			switch {
			case code == gpu.OK:
			case code.IsDeviceLost():
				return false, l.lose(gpu.Check("ResizeBuffers", code))
			default:
				core.LogWarn("resize buffers failed (%s), recreating swap chain", code)
				if err := l.recreate(next); err != nil {
					return false, err
				}
			}
		}
	}
	l.res = next
	l.outOfDate = false

	if err := l.postReset(); err != nil {
		return false, err
	}
	if prev == Created {
		l.state = Created
	} else {
		l.state = Active
	}
	core.LogDebug("resolution %dx%d %s msaa=%d", next.Width, next.Height, next.Format, next.Reset.MSAASamples())
	return true, nil
}

func (l *Lifecycle) recreate(next metadata.Resolution) error {
	l.swap.Release()
	l.swap = nil
	if err := l.createSwapChain(next); err != nil {
		return err
	}
	core.LogInfo("swap chain recreated %dx%d (%s)", next.Width, next.Height, l.mode)
	return nil
}

func (l *Lifecycle) preReset() error {
	if l.hooks != nil {
		l.hooks.PreReset()
	}
	l.releaseViews()
	l.ctx.ClearState()
	if code := l.ctx.Flush(); code.IsDeviceLost() {
		return l.lose(gpu.Check("Flush", code))
	}
	return nil
}

func (l *Lifecycle) postReset() error {
	if err := l.createViews(); err != nil {
		return err
	}
	l.ctx.SetRenderTargets([]gpu.View{l.color}, l.depth)
	if l.hooks != nil {
		return l.hooks.PostReset()
	}
	return nil
}

// Present resolves the multisampled target if there is one and presents.
func (l *Lifecycle) Present() error {
	if l.lostErr != nil {
		return l.lostErr
	}
	if l.swap == nil {
		return nil
	}
	if l.msaa != nil {
		l.ctx.ResolveSubresource(l.back, l.msaa)
	}
	var interval uint32
	if l.res.Reset&metadata.ResetVSync != 0 {
		interval = 1
	}
	code := l.swap.Present(interval)
	switch {
	case code == gpu.OK:
		l.state = Active
		return nil
	case code.IsDeviceLost():
		return l.lose(gpu.Check("Present", code))
	case code == gpu.OutOfDate:
		l.outOfDate = true
		return nil
	}
	return gpu.Check("Present", code)
}

// Flush submits pending work and checks the result for device loss.
func (l *Lifecycle) Flush() error {
	if l.lostErr != nil {
		return l.lostErr
	}
	if code := l.ctx.Flush(); code != gpu.OK {
		if code.IsDeviceLost() {
			return l.lose(gpu.Check("Flush", code))
		}
		return gpu.Check("Flush", code)
	}
	return nil
}

// lose latches the device loss and reports it once.
func (l *Lifecycle) lose(err error) error {
	if l.lostErr != nil {
		return l.lostErr
	}
	l.lostErr = err
	l.state = Lost
	core.LogError("device lost: %v", err)
	if l.fatal != nil {
		l.fatal(err)
	}
	return err
}

// MarkLost latches a device loss detected outside present and flush, e.g.
// while polling queries.
func (l *Lifecycle) MarkLost(err error) error {
	return l.lose(err)
}

// Capture reads back the presentable surface, resolving MSAA first.
func (l *Lifecycle) Capture() ([]byte, gpu.TextureDesc, error) {
	if l.lostErr != nil {
		return nil, gpu.TextureDesc{}, l.lostErr
	}
	if l.back == nil {
		return nil, gpu.TextureDesc{}, core.ErrNotInitialized
	}
	if l.msaa != nil {
		l.ctx.ResolveSubresource(l.back, l.msaa)
	}
	data, err := l.ctx.ReadTexture(l.back)
	if err != nil {
		return nil, gpu.TextureDesc{}, fmt.Errorf("capture: %w", err)
	}
	return data, l.back.Desc(), nil
}

// Destroy releases everything. A destroyed lifecycle can be created again.
func (l *Lifecycle) Destroy() {
	if l.state == Destroyed || l.state == Uninitialized {
		return
	}
	l.releaseViews()
	if l.swap != nil {
		l.swap.Release()
		l.swap = nil
	}
	l.state = Destroyed
}

func (l *Lifecycle) State() State                    { return l.state }
func (l *Lifecycle) Resolution() metadata.Resolution { return l.res }
func (l *Lifecycle) Mode() gpu.PresentMode           { return l.mode }
func (l *Lifecycle) Color() gpu.View                 { return l.color }
func (l *Lifecycle) Depth() gpu.View                 { return l.depth }
func (l *Lifecycle) IsLost() bool                    { return l.lostErr != nil }
func (l *Lifecycle) HasResolve() bool                { return l.msaa != nil }
func (l *Lifecycle) IsSuspended() bool               { return l.suspended }
