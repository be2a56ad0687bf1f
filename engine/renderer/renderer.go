// Package renderer runs a backend.Context on its own goroutine. The game
// goroutine fills one frame while the render goroutine dispatches the
// previous one.
package renderer

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/backend"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
)

// framesInFlight is the number of frames circulating between the game and
// the render goroutine.
const framesInFlight = 2

var (
	ErrStopped = errors.New("renderer stopped")
	ErrLost    = errors.New("renderer device lost")
)

// DeviceFunc opens a device. It runs on the render goroutine.
type DeviceFunc func() (gpu.Device, error)

type Config struct {
	Backend    backend.Config
	Resolution metadata.Resolution
	// Fatal is called once, from the render goroutine, when the device is
	// lost. The renderer keeps running but drops frames until Recover.
	Fatal func(err error)
}

type Renderer struct {
	cfg  Config
	open DeviceFunc

	dev gpu.Device
	ctx *backend.Context

	submit chan *metadata.Frame
	free   chan *metadata.Frame
	calls  chan call
	quit   chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	res     metadata.Resolution
	stats   atomic.Pointer[metadata.Stats]
	lost    atomic.Bool
	lostErr atomic.Pointer[error]

	stopOnce sync.Once
}

type call struct {
	fn  func(*backend.Context) error
	err chan error
}

// New starts the render goroutine and waits for the device and the swap
// chain to be ready.
func New(cfg Config, open DeviceFunc) (*Renderer, error) {
	r := &Renderer{
		cfg:    cfg,
		open:   open,
		res:    cfg.Resolution,
		submit: make(chan *metadata.Frame),
		free:   make(chan *metadata.Frame, framesInFlight),
		calls:  make(chan call),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	r.cfg.Backend.Fatal = r.onFatal
	for i := 0; i < framesInFlight; i++ {
		r.free <- metadata.NewFrame()
	}

	ready := make(chan error, 1)
	go r.run(ready)
	if err := <-ready; err != nil {
		<-r.done
		return nil, err
	}
	return r, nil
}

// run owns the device. Native APIs expect their calls from one OS thread.
func (r *Renderer) run(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(r.done)

	if err := r.openContext(); err != nil {
		ready <- err
		return
	}
	ready <- nil
	core.LogInfo("render goroutine started")

	for {
		waitStart := time.Now()
		select {
		case f := <-r.submit:
			f.WaitSubmit = time.Since(waitStart)
			r.render(f)
			f.Reset()
			r.free <- f
		case c := <-r.calls:
			c.err <- c.fn(r.ctx)
		case <-r.quit:
			r.closeContext()
			core.LogInfo("render goroutine stopped")
			return
		}
	}
}

func (r *Renderer) openContext() error {
	dev, err := r.open()
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	r.mu.Lock()
	res := r.res
	r.mu.Unlock()
	ctx, err := backend.New(dev, r.cfg.Backend, res)
	if err != nil {
		dev.Release()
		return fmt.Errorf("backend: %w", err)
	}
	r.dev, r.ctx = dev, ctx
	return nil
}

func (r *Renderer) closeContext() {
	if r.ctx != nil {
		r.ctx.Destroy()
		r.ctx = nil
	}
	if r.dev != nil {
		r.dev.Release()
		r.dev = nil
	}
}

func (r *Renderer) render(f *metadata.Frame) {
	if r.lost.Load() {
		return
	}
	if err := r.ctx.Submit(f); err != nil {
		if core.IsDeviceLost(err) {
			// the lifecycle already reported the loss through onFatal
			r.onFatal(err)
			return
		}
		core.LogError("frame %d: %s", r.ctx.Stats().FrameNum, err)
	}
	stats := r.ctx.Stats()
	r.stats.Store(&stats)
}

func (r *Renderer) onFatal(err error) {
	if r.lost.Swap(true) {
		return
	}
	r.lostErr.Store(&err)
	core.LogError("device lost: %s", err)
	if r.cfg.Fatal != nil {
		r.cfg.Fatal(err)
	}
}

// Begin returns an empty frame to fill. It blocks while both frames are in
// flight.
func (r *Renderer) Begin() (*metadata.Frame, error) {
	start := time.Now()
	select {
	case f := <-r.free:
		r.mu.Lock()
		f.Resolution = r.res
		r.mu.Unlock()
		f.WaitRender = time.Since(start)
		return f, nil
	case <-r.done:
		return nil, ErrStopped
	}
}

// End finishes f and hands it to the render goroutine.
func (r *Renderer) End(f *metadata.Frame) error {
	f.Finish()
	select {
	case r.submit <- f:
		return nil
	case <-r.done:
		return ErrStopped
	}
}

// SetResolution requests a new back buffer size for the next frame. A zero
// size suspends presentation.
func (r *Renderer) SetResolution(width, height uint32) {
	r.mu.Lock()
	r.res.Width, r.res.Height = width, height
	r.mu.Unlock()
}

// SetReset replaces the reset flags (MSAA, vsync, sRGB) of the requested
// resolution.
func (r *Renderer) SetReset(flags metadata.ResetFlags) {
	r.mu.Lock()
	r.res.Reset = flags
	r.mu.Unlock()
}

func (r *Renderer) Resolution() metadata.Resolution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.res
}

// Do runs fn on the render goroutine and waits for it. Every resource call
// on the backend context goes through here.
func (r *Renderer) Do(fn func(*backend.Context) error) error {
	c := call{fn: fn, err: make(chan error, 1)}
	select {
	case r.calls <- c:
	case <-r.done:
		return ErrStopped
	}
	return <-c.err
}

// Stats returns the statistics of the last dispatched frame.
func (r *Renderer) Stats() metadata.Stats {
	if s := r.stats.Load(); s != nil {
		return *s
	}
	return metadata.Stats{}
}

func (r *Renderer) IsLost() bool {
	return r.lost.Load()
}

func (r *Renderer) Err() error {
	if e := r.lostErr.Load(); e != nil {
		return *e
	}
	return nil
}

// Recover opens a new device after a loss and moves the context onto it.
// Every resource handle is invalid afterwards and must be recreated.
func (r *Renderer) Recover() error {
	if !r.lost.Load() {
		return nil
	}
	return r.Do(func(ctx *backend.Context) error {
		dev, err := r.open()
		if err != nil {
			return fmt.Errorf("%w: reopen device: %w", ErrLost, err)
		}
		old := r.dev
		if err := ctx.Reset(dev, r.Resolution()); err != nil {
			dev.Release()
			return fmt.Errorf("%w: reset context: %w", ErrLost, err)
		}
		if old != nil {
			old.Release()
		}
		r.dev = dev
		r.lostErr.Store(nil)
		r.lost.Store(false)
		core.LogInfo("device recovered")
		return nil
	})
}

// Stop shuts the render goroutine down and releases the device.
func (r *Renderer) Stop() {
	r.stopOnce.Do(func() {
		close(r.quit)
		<-r.done
	})
}
