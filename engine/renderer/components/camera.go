package components

import (
	"github.com/spaghettifunk/rendercore/engine/math"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
)

// pitchLimit is 89 degrees, avoiding the flip at the poles.
const pitchLimit = float32(1.55334306)

/**
 * @brief An orbit camera: it looks at Target from Distance away, turned by
 * Yaw around the up axis and by Pitch above the horizon.
 */
type Camera struct {
	Target   math.Vec3
	Distance float32
	Yaw      float32
	Pitch    float32

	/** @brief Vertical field of view in radians. */
	FOV  float32
	Near float32
	Far  float32

	/** @brief Internal flag used to determine when the view matrix needs to be rebuilt. */
	IsDirty bool
	/**
	 * @brief The view matrix of this camera.
	 * NOTE: Do not get this directly, use GetView() instead
	 * so the view matrix is recalculated when needed.
	 */
	ViewMatrix math.Mat4
}

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.Target = math.NewVec3Zero()
	c.Distance = 2.0
	c.Yaw = 0
	c.Pitch = 0
	c.FOV = 60 * math.K_DEG2RAD_MULTIPLIER
	c.Near = 0.1
	c.Far = 100.0
	c.IsDirty = true
	c.ViewMatrix = math.NewMat4Identity()
}

// GetPosition derives the eye position from the orbit parameters.
func (c *Camera) GetPosition() math.Vec3 {
	offset := math.NewVec3(
		math.Cos(c.Pitch)*math.Sin(c.Yaw),
		math.Sin(c.Pitch),
		math.Cos(c.Pitch)*math.Cos(c.Yaw),
	)
	return c.Target.Add(offset.MulScalar(c.Distance))
}

func (c *Camera) SetTarget(target math.Vec3) {
	c.Target = target
	c.IsDirty = true
}

func (c *Camera) Orbit(yaw, pitch float32) {
	c.Yaw += yaw
	c.Pitch = math.Clamp(c.Pitch+pitch, -pitchLimit, pitchLimit)
	c.IsDirty = true
}

// Zoom moves the eye towards the target, never closer than the near plane.
func (c *Camera) Zoom(amount float32) {
	c.Distance = math.Max(c.Distance-amount, c.Near*2)
	c.IsDirty = true
}

func (c *Camera) GetView() math.Mat4 {
	if c.IsDirty {
		c.ViewMatrix = math.NewMat4LookAt(c.GetPosition(), c.Target, math.NewVec3Up())
		c.IsDirty = false
	}
	return c.ViewMatrix
}

func (c *Camera) Projection(width, height uint32) math.Mat4 {
	aspect := float32(1)
	if height != 0 {
		aspect = float32(width) / float32(height)
	}
	return math.NewMat4Perspective(c.FOV, aspect, c.Near, c.Far)
}

// Apply sets the viewport and the matrices of a frame view.
func (c *Camera) Apply(v *metadata.View, width, height uint32) {
	v.Rect = metadata.Rect{Width: uint16(width), Height: uint16(height)}
	v.ViewMatrix = c.GetView()
	v.Proj = c.Projection(width, height)
}
