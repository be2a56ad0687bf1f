package loaders

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spaghettifunk/rendercore/engine/renderer/debugtext"
)

// BitmapFont is an AngelCode font together with the R8 pixels of its atlas.
type BitmapFont struct {
	Font  *debugtext.Font
	Atlas []byte
}

type BitmapFontLoader struct {
	Decoder *TextureDecoder
}

// Load reads a .fnt descriptor and the first atlas page next to it. The
// atlas keeps the alpha channel, or the red channel of opaque images.
func (fl *BitmapFontLoader) Load(path string) (interface{}, error) {
	font, err := debugtext.LoadFont(path)
	if err != nil {
		return nil, err
	}
	if len(font.Pages) == 0 {
		return nil, fmt.Errorf("bitmap font %s has no atlas page", path)
	}
	page := filepath.Join(filepath.Dir(path), font.Pages[0])
	data, err := os.ReadFile(page)
	if err != nil {
		return nil, fmt.Errorf("bitmap font atlas: %w", err)
	}
	dec := fl.Decoder
	if dec == nil {
		dec = &TextureDecoder{}
	}
	img, err := dec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("bitmap font atlas %s: %w", page, err)
	}
	if img.Width != uint32(font.AtlasWidth) || img.Height != uint32(font.AtlasHeight) {
		return nil, fmt.Errorf("bitmap font atlas %s is %dx%d, descriptor says %dx%d",
			page, img.Width, img.Height, font.AtlasWidth, font.AtlasHeight)
	}
	return &BitmapFont{Font: font, Atlas: alphaChannel(img.Pixels)}, nil
}

func alphaChannel(rgba []byte) []byte {
	opaque := true
	for i := 3; i < len(rgba); i += 4 {
		if rgba[i] != 0xff {
			opaque = false
			break
		}
	}
	ch := 3
	if opaque {
		ch = 0
	}
	out := make([]byte, len(rgba)/4)
	for i := range out {
		out[i] = rgba[i*4+ch]
	}
	return out
}
