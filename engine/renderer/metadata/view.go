package metadata

import (
	"github.com/spaghettifunk/rendercore/engine/math"
)

type Rect struct {
	X, Y          uint16
	Width, Height uint16
}

func (r Rect) IsZeroArea() bool {
	return r.Width == 0 || r.Height == 0
}

func (r Rect) Right() uint32 {
	return uint32(r.X) + uint32(r.Width)
}

func (r Rect) Bottom() uint32 {
	return uint32(r.Y) + uint32(r.Height)
}

// Intersect returns the overlap of r and o; the result has zero area when
// they do not overlap.
func (r Rect) Intersect(o Rect) Rect {
	x0 := math.Max(uint32(r.X), uint32(o.X))
	y0 := math.Max(uint32(r.Y), uint32(o.Y))
	x1 := math.Min(r.Right(), o.Right())
	y1 := math.Min(r.Bottom(), o.Bottom())
	if x1 <= x0 || y1 <= y0 {
		return Rect{X: uint16(x0), Y: uint16(y0)}
	}
	return Rect{X: uint16(x0), Y: uint16(y0), Width: uint16(x1 - x0), Height: uint16(y1 - y0)}
}

// Covers reports whether r spans the whole width x height target.
func (r Rect) Covers(width, height uint32) bool {
	return r.X == 0 && r.Y == 0 && uint32(r.Width) >= width && uint32(r.Height) >= height
}

type Clear struct {
	Flags   ClearFlags
	Color   [4]float32
	Depth   float32
	Stencil uint8
}

// View is one rendering pass: its target, viewport, scissor and clear.
type View struct {
	Name        string
	Rect        Rect
	Scissor     Rect
	Clear       Clear
	FrameBuffer FrameBufferHandle
	ViewMatrix  math.Mat4
	Proj        math.Mat4
}

func NewView() View {
	return View{
		FrameBuffer: InvalidFrameBuffer,
		ViewMatrix:  math.NewMat4Identity(),
		Proj:        math.NewMat4Identity(),
		Clear:       Clear{Depth: 1.0},
	}
}
