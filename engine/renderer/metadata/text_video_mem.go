package metadata

import "fmt"

// TextCell is one character of the debug text grid with its palette attribute
// (low nibble foreground, high nibble background).
type TextCell struct {
	Char rune
	Attr uint8
}

// TextVideoMem is a character grid drawn on top of the back buffer.
type TextVideoMem struct {
	Width  uint32
	Height uint32
	Cells  []TextCell
}

func NewTextVideoMem(width, height uint32) *TextVideoMem {
	t := &TextVideoMem{}
	t.Resize(width, height)
	return t
}

// Resize changes the grid dimensions and clears it.
func (t *TextVideoMem) Resize(width, height uint32) {
	t.Width = width
	t.Height = height
	n := int(width * height)
	if cap(t.Cells) < n {
		t.Cells = make([]TextCell, n)
	}
	t.Cells = t.Cells[:n]
	t.Clear(0)
}

func (t *TextVideoMem) Clear(attr uint8) {
	for i := range t.Cells {
		t.Cells[i] = TextCell{Char: ' ', Attr: attr}
	}
}

// Printf writes at column x, row y; text past the right edge is clipped.
func (t *TextVideoMem) Printf(x, y uint32, attr uint8, format string, args ...interface{}) {
	if y >= t.Height {
		return
	}
	row := t.Cells[y*t.Width : (y+1)*t.Width]
	for _, r := range fmt.Sprintf(format, args...) {
		if x >= t.Width {
			return
		}
		row[x] = TextCell{Char: r, Attr: attr}
		x++
	}
}

func (t *TextVideoMem) At(x, y uint32) TextCell {
	return t.Cells[y*t.Width+x]
}
