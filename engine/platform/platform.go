package platform

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/rendercore/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type Platform struct {
	Window *glfw.Window
	events *core.EventBus
	input  *core.Input

	width  uint32
	height uint32
}

func New(events *core.EventBus, input *core.Input) *Platform {
	return &Platform{
		events: events,
		input:  input,
	}
}

func (p *Platform) Startup(cfg core.WindowConfig) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return errors.New("glfw: vulkan loader not found")
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(cfg.Width), int(cfg.Height), cfg.Title, nil, nil)
	if err != nil {
		core.LogError("failed to create window: %s", err)
		glfw.Terminate()
		return err
	}
	p.Window = window

	w, h := window.GetFramebufferSize()
	p.width, p.height = uint32(w), uint32(h)

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetCloseCallback(p.closeCallback)
	p.Window.SetPos(int(cfg.X), int(cfg.Y))
	p.Window.Show()

	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages polls the OS event queue. It returns false once the window
// was asked to close.
func (p *Platform) PumpMessages() bool {
	glfw.PollEvents()
	return !p.Window.ShouldClose()
}

// FramebufferSize is the size of the drawable surface in pixels, which can
// differ from the window size on high-DPI displays.
func (p *Platform) FramebufferSize() (uint32, uint32) {
	return p.width, p.height
}

// InstanceExtensions lists the Vulkan instance extensions the window system
// needs to present.
func (p *Platform) InstanceExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

// ProcAddr is vkGetInstanceProcAddr as resolved by GLFW.
func (p *Platform) ProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

// CreateSurface creates the presentation surface of the window. GLFW allows
// this from any goroutine.
func (p *Platform) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	ptr, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, fmt.Errorf("create window surface: %w", err)
	}
	return vk.SurfaceFromPointer(ptr), nil
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	code, ok := keyCodes[key]
	if !ok || action == glfw.Repeat {
		return
	}
	p.input.ProcessKey(code, action == glfw.Press)
}

func (p *Platform) closeCallback(w *glfw.Window) {
	p.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, p, core.EventContext{})
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.width, p.height = uint32(width), uint32(height)
	var data core.EventContext
	data.Data.U32[0] = p.width
	data.Data.U32[1] = p.height
	p.events.Fire(core.EVENT_CODE_WINDOW_RESIZED, p, data)
}

var keyCodes = map[glfw.Key]core.KeyCode{
	glfw.KeyEscape: core.KEY_ESCAPE,
	glfw.KeyF1:     core.KEY_F1,
	glfw.KeyF2:     core.KEY_F2,
	glfw.KeyF3:     core.KEY_F3,
	glfw.KeyF4:     core.KEY_F4,
	glfw.KeyF5:     core.KEY_F5,
	glfw.KeyF11:    core.KEY_F11,
	glfw.KeyF12:    core.KEY_F12,
	glfw.KeySpace:  core.KEY_SPACE,
}
