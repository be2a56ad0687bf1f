package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingQueue(t *testing.T) {
	rq := NewRingQueue[int](3)
	assert.True(t, rq.IsEmpty())
	_, err := rq.Dequeue()
	assert.ErrorIs(t, err, ErrQueueEmpty)

	require.NoError(t, rq.Enqueue(1))
	require.NoError(t, rq.Enqueue(2))
	require.NoError(t, rq.Enqueue(3))
	assert.True(t, rq.IsFull())
	assert.ErrorIs(t, rq.Enqueue(4), ErrQueueFull)

	v, err := rq.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// wrap around
	require.NoError(t, rq.Enqueue(4))
	assert.Equal(t, 2, rq.At(0))
	assert.Equal(t, 4, rq.At(2))

	p, err := rq.Peek()
	require.NoError(t, err)
	assert.Equal(t, 2, p)

	rq.Clear()
	assert.Equal(t, 0, rq.Len())
	assert.Equal(t, 3, rq.Cap())
}

func TestRingQueueReserve(t *testing.T) {
	rq := NewRingQueue[struct{ id int }](2)
	slot, err := rq.Reserve()
	require.NoError(t, err)
	slot.id = 42
	assert.Equal(t, 0, rq.Len())
	rq.Commit()
	assert.Equal(t, 1, rq.Len())
	assert.Equal(t, 42, rq.At(0).id)

	rq.Ref(0).id = 7
	assert.Equal(t, 7, rq.At(0).id)
}
