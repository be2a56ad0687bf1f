package loaders

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/ftrvxmtrx/tga"
	"github.com/spaghettifunk/rendercore/engine/renderer/backend"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// TextureDecoder decodes every registered image format into tightly packed
// RGBA8, flipping rows when FlipY is set.
type TextureDecoder struct {
	FlipY bool
}

func (td *TextureDecoder) Decode(data []byte) (*backend.DecodedImage, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// TGA has no magic number to sniff.
		var tgaErr error
		if img, tgaErr = tga.Decode(bytes.NewReader(data)); tgaErr != nil {
			return nil, fmt.Errorf("decode image: %w", err)
		}
	}
	return toRGBA8(img, td.FlipY), nil
}

func toRGBA8(img image.Image, flip bool) *backend.DecodedImage {
	b := img.Bounds()
	dst, ok := img.(*image.NRGBA)
	if !ok || dst.Stride != b.Dx()*4 || b.Min != (image.Point{}) {
		dst = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	}
	pixels := dst.Pix
	if flip {
		pixels = flipRows(pixels, b.Dx()*4, b.Dy())
	}
	return &backend.DecodedImage{
		Width:  uint32(b.Dx()),
		Height: uint32(b.Dy()),
		Format: metadata.FormatRGBA8,
		Pixels: pixels,
	}
}

func flipRows(pix []byte, stride, rows int) []byte {
	out := make([]byte, len(pix))
	for y := 0; y < rows; y++ {
		copy(out[y*stride:(y+1)*stride], pix[(rows-1-y)*stride:(rows-y)*stride])
	}
	return out
}

type TextureLoader struct {
	Decoder *TextureDecoder
}

func (tl *TextureLoader) Load(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := tl.Decoder
	if dec == nil {
		dec = &TextureDecoder{}
	}
	img, err := dec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}
