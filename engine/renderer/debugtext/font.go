// Package debugtext turns the text video memory of a frame into glyph quads
// for the on-screen diagnostics overlay.
package debugtext

import (
	"fmt"

	"github.com/fzipp/bmfont"
)

// Glyph is one character cell of the font atlas, in atlas pixels.
type Glyph struct {
	X, Y          uint16
	Width, Height uint16
	XOffset       int16
	YOffset       int16
}

// Font is a monospaced view of a bitmap font: every text cell has the same
// size and glyphs are placed inside it by their offsets.
type Font struct {
	Face        string
	CellWidth   uint16
	CellHeight  uint16
	AtlasWidth  uint16
	AtlasHeight uint16
	// Pages are the atlas image files, relative to the font descriptor.
	Pages  []string
	glyphs map[rune]Glyph
}

// LoadFont reads an AngelCode bitmap font. The cell width is the widest
// advance of the printable ASCII range.
func LoadFont(path string) (*Font, error) {
	bf, err := bmfont.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading debug font %s: %w", path, err)
	}
	d := bf.Descriptor
	f := &Font{
		Face:        d.Info.Face,
		CellHeight:  uint16(d.Common.LineHeight),
		AtlasWidth:  uint16(d.Common.ScaleW),
		AtlasHeight: uint16(d.Common.ScaleH),
		glyphs:      make(map[rune]Glyph, len(d.Chars)),
	}
	for _, p := range d.Pages {
		f.Pages = append(f.Pages, p.File)
	}
	for _, c := range d.Chars {
		if c.Page != 0 {
			// the overlay samples a single atlas page
			continue
		}
		f.glyphs[rune(c.ID)] = Glyph{
			X:       uint16(c.X),
			Y:       uint16(c.Y),
			Width:   uint16(c.Width),
			Height:  uint16(c.Height),
			XOffset: int16(c.XOffset),
			YOffset: int16(c.YOffset),
		}
		if c.ID >= ' ' && c.ID < 0x7f && uint16(c.XAdvance) > f.CellWidth {
			f.CellWidth = uint16(c.XAdvance)
		}
	}
	if f.CellWidth == 0 || f.CellHeight == 0 {
		return nil, fmt.Errorf("debug font %s has no printable glyphs", path)
	}
	return f, nil
}

// FixedFont describes an atlas laid out as a grid of cellW x cellH glyphs,
// columns per row, starting at code point first.
func FixedFont(cellW, cellH, columns uint16, first rune, count int) *Font {
	rows := (uint16(count) + columns - 1) / columns
	f := &Font{
		Face:        "fixed",
		CellWidth:   cellW,
		CellHeight:  cellH,
		AtlasWidth:  cellW * columns,
		AtlasHeight: cellH * rows,
		glyphs:      make(map[rune]Glyph, count),
	}
	for i := 0; i < count; i++ {
		col, row := uint16(i)%columns, uint16(i)/columns
		f.glyphs[first+rune(i)] = Glyph{X: col * cellW, Y: row * cellH, Width: cellW, Height: cellH}
	}
	return f
}

// Glyph returns the glyph of r, falling back to '?'.
func (f *Font) Glyph(r rune) (Glyph, bool) {
	if g, ok := f.glyphs[r]; ok {
		return g, true
	}
	g, ok := f.glyphs['?']
	return g, ok
}

func (f *Font) Len() int {
	return len(f.glyphs)
}
