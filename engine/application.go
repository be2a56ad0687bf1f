package engine

type ApplicationConfig struct {
	// The application name used in windowing and by the Vulkan instance.
	Name string
	// ConfigPath is the TOML configuration file. A missing file falls back
	// to the defaults.
	ConfigPath string
	// TargetFPS limits the game loop; 0 runs unthrottled.
	TargetFPS uint32
}
