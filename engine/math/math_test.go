package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const standardTol = float32(1.0e-5)

func TestMat4Inverse(t *testing.T) {
	mt := NewMat4Translation(NewVec3(1, 2, 3)).Mul(NewMat4LookAt(NewVec3(3, 1, 2), NewVec3Zero(), NewVec3Up()))
	inv := mt.Inverse()
	assert.True(t, mt.Mul(inv).Compare(NewMat4Identity(), standardTol))

	p := NewMat4Perspective(60*K_DEG2RAD_MULTIPLIER, 16.0/9.0, 0.1, 100)
	assert.True(t, p.Mul(p.Inverse()).Compare(NewMat4Identity(), 1e-4))
}

func TestMat4Transform(t *testing.T) {
	mt := NewMat4Translation(NewVec3(1, 2, 3))
	assert.Equal(t, NewVec3(1, 2, 3), NewVec3(0, 0, 0).Transform(mt))
}

func TestMat3(t *testing.T) {
	mt := NewMat4Identity()
	mt.Data[0], mt.Data[5], mt.Data[10] = 2, 3, 4
	m3 := mt.Mat3()
	assert.Equal(t, [9]float32{2, 0, 0, 0, 3, 0, 0, 0, 4}, m3.Data)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 5, Clamp(9, 0, 5))
	assert.Equal(t, float32(0), Clamp(float32(-1), 0, 1))
	assert.Equal(t, uint16(3), Min(uint16(3), 4))
	assert.Equal(t, 4, Max(3, 4))
}

func TestMat4LookAt(t *testing.T) {
	eye := NewVec3(0, 0, 5)
	view := NewMat4LookAt(eye, NewVec3Zero(), NewVec3Up())
	assert.True(t, NewVec3Zero().Transform(view) == NewVec3(0, 0, -5))
	assert.Equal(t, NewVec3Zero(), eye.Transform(view))

	// looking along -x from the right
	view = NewMat4LookAt(NewVec3(3, 0, 0), NewVec3Zero(), NewVec3Up())
	p := NewVec3(0, 1, 0).Transform(view)
	assert.InDelta(t, 0, p.X, 1e-5)
	assert.InDelta(t, 1, p.Y, 1e-5)
	assert.InDelta(t, -3, p.Z, 1e-5)
}

func TestVec3Ops(t *testing.T) {
	v := NewVec3(1, 2, 3).Add(NewVec3(1, 1, 1)).MulScalar(2)
	assert.Equal(t, NewVec3(4, 6, 8), v)
}
