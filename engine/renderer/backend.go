package renderer

import (
	"fmt"

	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/noop"
	"github.com/spaghettifunk/rendercore/engine/renderer/vulkan"
)

type RendererType uint8

const (
	Vulkan RendererType = iota
	Noop
)

func (t RendererType) String() string {
	switch t {
	case Vulkan:
		return "vulkan"
	case Noop:
		return "noop"
	}
	return fmt.Sprintf("RendererType(%d)", uint8(t))
}

func ParseRendererType(name string) (RendererType, error) {
	switch name {
	case "vulkan":
		return Vulkan, nil
	case "noop", "":
		return Noop, nil
	}
	return Noop, fmt.Errorf("unknown renderer backend %q", name)
}

// Devices returns the DeviceFunc for t. opts is only read by the Vulkan
// backend.
func Devices(t RendererType, opts vulkan.Options) DeviceFunc {
	switch t {
	case Vulkan:
		return func() (gpu.Device, error) {
			d, err := vulkan.New(opts)
			if err != nil {
				return nil, err
			}
			return d, nil
		}
	default:
		return func() (gpu.Device, error) {
			return noop.NewDevice(), nil
		}
	}
}
