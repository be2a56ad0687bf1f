package debugtext

import (
	"encoding/binary"
	"math"

	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
)

// Palette is the 16 color VGA palette in ABGR, indexed by attribute nibbles.
var Palette = [16]uint32{
	0x00000000, // black, transparent as background
	0xffaa0000, // blue
	0xff00aa00, // green
	0xffaaaa00, // cyan
	0xff0000aa, // red
	0xffaa00aa, // magenta
	0xff0055aa, // brown
	0xffaaaaaa, // light gray
	0xff555555, // dark gray
	0xffff5555, // light blue
	0xff55ff55, // light green
	0xffffff55, // light cyan
	0xff5555ff, // light red
	0xffff55ff, // light magenta
	0xff55ffff, // yellow
	0xffffffff, // white
}

// Vertex is one corner of a glyph quad. Positions are in back buffer pixels.
type Vertex struct {
	X, Y, Z float32
	FG, BG  uint32
	U, V    float32
}

// VertexSize is the packed size of a Vertex.
const VertexSize = 28

// Mesh is the geometry of one text video memory snapshot.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint16
}

// MaxQuads is how many cells fit in one 16-bit indexed mesh.
const MaxQuads = 0x10000 / 4

// Build emits one quad per cell that shows either a glyph or a background
// color. Cells past MaxQuads are dropped.
func Build(mem *metadata.TextVideoMem, font *Font, mesh *Mesh) {
	mesh.Vertices = mesh.Vertices[:0]
	mesh.Indices = mesh.Indices[:0]
	if mem == nil || font == nil {
		return
	}
	texelU := 1.0 / float32(max(font.AtlasWidth, 1))
	texelV := 1.0 / float32(max(font.AtlasHeight, 1))
	cw, ch := float32(font.CellWidth), float32(font.CellHeight)

	for y := uint32(0); y < mem.Height; y++ {
		for x := uint32(0); x < mem.Width; x++ {
			cell := mem.At(x, y)
			fg := Palette[cell.Attr&0x0f]
			bg := Palette[cell.Attr>>4]
			if (cell.Char == ' ' || cell.Char == 0) && bg == 0 {
				continue
			}
			if len(mesh.Vertices)/4 >= MaxQuads {
				return
			}
			g, ok := font.Glyph(cell.Char)
			if !ok {
				g = Glyph{}
			}
			x0 := float32(x)*cw + float32(g.XOffset)
			y0 := float32(y)*ch + float32(g.YOffset)
			x1 := x0 + float32(g.Width)
			y1 := y0 + float32(g.Height)
			if g.Width == 0 || g.Height == 0 {
				// background only
				x0, y0 = float32(x)*cw, float32(y)*ch
				x1, y1 = x0+cw, y0+ch
			}
			u0 := float32(g.X) * texelU
			v0 := float32(g.Y) * texelV
			u1 := float32(g.X+g.Width) * texelU
			v1 := float32(g.Y+g.Height) * texelV

			base := uint16(len(mesh.Vertices))
			mesh.Vertices = append(mesh.Vertices,
				Vertex{X: x0, Y: y0, FG: fg, BG: bg, U: u0, V: v0},
				Vertex{X: x1, Y: y0, FG: fg, BG: bg, U: u1, V: v0},
				Vertex{X: x1, Y: y1, FG: fg, BG: bg, U: u1, V: v1},
				Vertex{X: x0, Y: y1, FG: fg, BG: bg, U: u0, V: v1},
			)
			mesh.Indices = append(mesh.Indices, base, base+1, base+2, base+2, base+3, base)
		}
	}
}

// NumQuads is the number of emitted cells.
func (m *Mesh) NumQuads() int {
	return len(m.Vertices) / 4
}

// VertexBytes packs the vertices little endian for upload.
func (m *Mesh) VertexBytes(dst []byte) []byte {
	dst = dst[:0]
	for _, v := range m.Vertices {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.X))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.Y))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.Z))
		dst = binary.LittleEndian.AppendUint32(dst, v.FG)
		dst = binary.LittleEndian.AppendUint32(dst, v.BG)
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.U))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.V))
	}
	return dst
}

func (m *Mesh) IndexBytes(dst []byte) []byte {
	dst = dst[:0]
	for _, i := range m.Indices {
		dst = binary.LittleEndian.AppendUint16(dst, i)
	}
	return dst
}
