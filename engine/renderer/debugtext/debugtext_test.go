package debugtext

import (
	"testing"

	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedFont(t *testing.T) {
	f := FixedFont(8, 16, 16, ' ', 96)
	assert.Equal(t, 96, f.Len())
	assert.Equal(t, uint16(128), f.AtlasWidth)
	assert.Equal(t, uint16(96), f.AtlasHeight)

	g, ok := f.Glyph('A')
	require.True(t, ok)
	// 'A' is the 33rd glyph after the space
	assert.Equal(t, uint16(1*8), g.X)
	assert.Equal(t, uint16(2*16), g.Y)

	q, ok := f.Glyph('☃')
	require.True(t, ok)
	qm, _ := f.Glyph('?')
	assert.Equal(t, qm, q)
}

func TestBuildSkipsEmptyCells(t *testing.T) {
	f := FixedFont(8, 16, 16, ' ', 96)
	mem := metadata.NewTextVideoMem(10, 2)
	mem.Printf(0, 0, 0x0f, "hi")
	mem.Printf(0, 1, 0x40, " ")

	var mesh Mesh
	Build(mem, f, &mesh)
	assert.Equal(t, 3, mesh.NumQuads())
	assert.Len(t, mesh.Indices, 18)

	first := mesh.Vertices[0]
	assert.Equal(t, Palette[0x0f], first.FG)
	assert.Equal(t, Palette[0], first.BG)
	assert.Equal(t, float32(0), first.X)

	// background-only cell covers the whole cell on row 1
	bg := mesh.Vertices[8]
	assert.Equal(t, Palette[4], bg.BG)
	assert.Equal(t, float32(16), bg.Y)

	assert.Len(t, mesh.VertexBytes(nil), 3*4*VertexSize)
	assert.Len(t, mesh.IndexBytes(nil), 18*2)
}

func TestBuildNil(t *testing.T) {
	mesh := Mesh{Vertices: make([]Vertex, 4)}
	Build(nil, nil, &mesh)
	assert.Equal(t, 0, mesh.NumQuads())
}
