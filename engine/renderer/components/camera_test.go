package components

import (
	"testing"

	"github.com/spaghettifunk/rendercore/engine/math"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
)

func TestCameraDefaultView(t *testing.T) {
	c := NewCamera()
	assert.Equal(t, math.NewVec3(0, 0, 2), c.GetPosition())

	view := c.GetView()
	assert.False(t, c.IsDirty)
	p := c.Target.Transform(view)
	assert.InDelta(t, -2, p.Z, 1e-5)
}

func TestCameraOrbitClampsPitch(t *testing.T) {
	c := NewCamera()
	c.Orbit(0, 10)
	assert.Equal(t, pitchLimit, c.Pitch)
	c.Orbit(0, -20)
	assert.Equal(t, -pitchLimit, c.Pitch)
	assert.True(t, c.IsDirty)

	// the distance to the target is kept
	c.Orbit(1.2, 0)
	assert.InDelta(t, c.Distance, c.GetPosition().Sub(c.Target).Length(), 1e-5)
}

func TestCameraZoom(t *testing.T) {
	c := NewCamera()
	c.Zoom(1)
	assert.InDelta(t, 1, c.Distance, 1e-6)
	c.Zoom(100)
	assert.InDelta(t, c.Near*2, c.Distance, 1e-6)
}

func TestCameraApply(t *testing.T) {
	c := NewCamera()
	v := metadata.NewView()
	c.Apply(&v, 1280, 720)
	assert.Equal(t, metadata.Rect{Width: 1280, Height: 720}, v.Rect)
	assert.Equal(t, c.GetView(), v.ViewMatrix)
	assert.Equal(t, math.NewMat4Perspective(c.FOV, 1280.0/720.0, c.Near, c.Far), v.Proj)

	// a zero height does not divide by zero
	c.Apply(&v, 10, 0)
	assert.Equal(t, math.NewMat4Perspective(c.FOV, 1, c.Near, c.Far), v.Proj)
}
