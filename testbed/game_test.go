package testbed

import (
	"testing"

	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriangleVertices(t *testing.T) {
	assert.Len(t, triangleVertices(), 3*16)
}

func TestRenderWithoutShadersOnlyClears(t *testing.T) {
	g, err := NewTestGame()
	require.NoError(t, err)
	require.NoError(t, g.OnResize(640, 480))
	require.NoError(t, g.Update(0.016))

	f := metadata.NewFrame()
	require.NoError(t, g.Render(f, 0.016))
	assert.Zero(t, f.Len())

	v := f.Views[viewMain]
	assert.Equal(t, "main", v.Name)
	assert.Equal(t, metadata.Rect{Width: 640, Height: 480}, v.Rect)
	assert.Equal(t, metadata.ClearColor|metadata.ClearDepth, v.Clear.Flags)
	require.NotNil(t, f.TextVideoMem)
	assert.NotSame(t, g.state().text, f.TextVideoMem)
}

func TestRenderAddsTriangle(t *testing.T) {
	g, err := NewTestGame()
	require.NoError(t, err)
	s := g.state()
	s.program = 1
	s.vb = 2
	s.layout = 3
	s.tint = 4
	require.NoError(t, g.OnResize(640, 480))

	f := metadata.NewFrame()
	require.NoError(t, g.Render(f, 0.016))
	require.Equal(t, 1, f.Len())
	d, ok := f.Items[0].(*metadata.DrawItem)
	require.True(t, ok)
	assert.Equal(t, uint32(3), d.NumVertices)
	assert.True(t, d.HasUniforms())
	assert.Equal(t, metadata.ProgramHandle(1), f.Keys[0].Decode().Program)
}
