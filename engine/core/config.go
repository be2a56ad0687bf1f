package core

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type LogConfig struct {
	Level  string `toml:"level"`
	Prefix string `toml:"prefix"`
}

type RendererConfig struct {
	// Backend is "vulkan" or "noop".
	Backend             string `toml:"backend"`
	ViewCacheCapacity   int    `toml:"view_cache_capacity"`
	TimerQueryCount     int    `toml:"timer_query_count"`
	OcclusionQueryCount int    `toml:"occlusion_query_count"`
	// PresentModes is the order in which swap chain present models are tried.
	PresentModes    []string `toml:"present_modes"`
	MaxFrameLatency uint8    `toml:"max_frame_latency"`
	BackBufferCount uint8    `toml:"back_buffer_count"`
	VSync           bool     `toml:"vsync"`
	MSAA            uint8    `toml:"msaa"`
	DebugFont       string   `toml:"debug_font"`
	ScreenshotDir   string   `toml:"screenshot_dir"`
}

type WindowConfig struct {
	Title  string `toml:"title"`
	X      uint32 `toml:"x"`
	Y      uint32 `toml:"y"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type AssetsConfig struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
}

type Config struct {
	Debug    bool           `toml:"debug"`
	Log      LogConfig      `toml:"log"`
	Renderer RendererConfig `toml:"renderer"`
	Window   WindowConfig   `toml:"window"`
	Assets   AssetsConfig   `toml:"assets"`
}

func DefaultConfig() *Config {
	return &Config{
		Debug: false,
		Log: LogConfig{
			Level:  "info",
			Prefix: "Renderer 🖥️ ",
		},
		Renderer: RendererConfig{
			Backend:             "vulkan",
			ViewCacheCapacity:   1024,
			TimerQueryCount:     4,
			OcclusionQueryCount: 256,
			PresentModes:        []string{"flip", "blit"},
			MaxFrameLatency:     3,
			BackBufferCount:     2,
			VSync:               true,
			MSAA:                1,
			ScreenshotDir:       ".",
		},
		Window: WindowConfig{
			Title:  "rendercore",
			X:      100,
			Y:      100,
			Width:  1280,
			Height: 720,
		},
		Assets: AssetsConfig{
			Dir:   "assets",
			Watch: false,
		},
	}
}

// LoadConfig reads a TOML file on top of DefaultConfig, so a file only has
// to name the keys it overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	r := &c.Renderer
	if r.ViewCacheCapacity <= 0 {
		return fmt.Errorf("renderer.view_cache_capacity must be positive, got %d", r.ViewCacheCapacity)
	}
	if r.TimerQueryCount <= 0 || r.OcclusionQueryCount <= 0 {
		return fmt.Errorf("renderer query counts must be positive")
	}
	if len(r.PresentModes) == 0 {
		return fmt.Errorf("renderer.present_modes must name at least one mode")
	}
	for _, m := range r.PresentModes {
		if m != "flip" && m != "blit" {
			return fmt.Errorf("renderer.present_modes: unknown mode %q", m)
		}
	}
	switch r.MSAA {
	case 0:
		r.MSAA = 1
	case 1, 2, 4, 8, 16:
	default:
		return fmt.Errorf("renderer.msaa must be a power of two up to 16, got %d", r.MSAA)
	}
	return nil
}

// Apply pushes the live-reloadable parts of the configuration (log level,
// debug assertions) into the process.
func (c *Config) Apply() error {
	SetDebug(c.Debug)
	if c.Log.Prefix != "" {
		SetLogPrefix(c.Log.Prefix)
	}
	if c.Log.Level != "" {
		return SetLogLevel(c.Log.Level)
	}
	return nil
}

func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}
