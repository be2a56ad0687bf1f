package backend

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
)

// captureImage converts a read back surface into an image. Only 8-bit four
// channel surfaces can be captured.
func captureImage(data []byte, desc gpu.TextureDesc) (*image.NRGBA, error) {
	w, h := int(desc.Width), int(desc.Height)
	if len(data) < w*h*4 {
		return nil, fmt.Errorf("capture of %d bytes for %dx%d", len(data), w, h)
	}
	var swap bool
	switch desc.Format {
	case metadata.FormatBGRA8:
		swap = true
	case metadata.FormatRGBA8:
	default:
		return nil, fmt.Errorf("capture format %s: %w", desc.Format, core.ErrUnsupported)
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	copy(img.Pix, data[:w*h*4])
	if swap {
		for i := 0; i < len(img.Pix); i += 4 {
			img.Pix[i], img.Pix[i+2] = img.Pix[i+2], img.Pix[i]
		}
	}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img, nil
}

// saveScreenshot writes the presentable surface of this frame to disk.
func (c *Context) saveScreenshot(req *metadata.ScreenshotRequest) error {
	data, desc, err := c.swap.Capture()
	if err != nil {
		return c.checkLost(err)
	}
	img, err := captureImage(data, desc)
	if err != nil {
		return err
	}

	path := req.Path
	if !filepath.IsAbs(path) && c.cfg.ScreenshotDir != "" {
		path = filepath.Join(c.cfg.ScreenshotDir, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch req.Format {
	case metadata.ScreenshotWebP:
		err = nativewebp.Encode(f, img, nil)
	default:
		err = tga.Encode(f, img)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	var ev core.EventContext
	ev.Data.U32[0] = desc.Width
	ev.Data.U32[1] = desc.Height
	ev.Data.S = path
	c.fire(core.EVENT_CODE_SCREENSHOT_SAVED, ev)
	c.log.Info("screenshot saved", "path", path, "width", desc.Width, "height", desc.Height)
	return nil
}
