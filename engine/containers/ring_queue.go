package containers

import "errors"

var (
	ErrQueueFull  = errors.New("queue is full")
	ErrQueueEmpty = errors.New("queue is empty")
)

// RingQueue is a fixed-capacity FIFO.
type RingQueue[T any] struct {
	data       []T
	size       int
	readIndex  int
	writeIndex int
	count      int
}

// Create a new RingQueue
func NewRingQueue[T any](size int) *RingQueue[T] {
	return &RingQueue[T]{
		data: make([]T, size),
		size: size,
	}
}

// Enqueue adds an element to the queue
func (rq *RingQueue[T]) Enqueue(value T) error {
	if rq.IsFull() {
		return ErrQueueFull
	}

	rq.data[rq.writeIndex] = value
	rq.writeIndex = (rq.writeIndex + 1) % rq.size
	rq.count++
	return nil
}

// Dequeue removes and returns the front element in the queue
func (rq *RingQueue[T]) Dequeue() (T, error) {
	var zero T
	if rq.IsEmpty() {
		return zero, ErrQueueEmpty
	}

	value := rq.data[rq.readIndex]
	rq.data[rq.readIndex] = zero
	rq.readIndex = (rq.readIndex + 1) % rq.size
	rq.count--
	return value, nil
}

// Peek returns the front element without removing it
func (rq *RingQueue[T]) Peek() (T, error) {
	if rq.IsEmpty() {
		var zero T
		return zero, ErrQueueEmpty
	}
	return rq.data[rq.readIndex], nil
}

// At returns the i-th element counted from the front.
func (rq *RingQueue[T]) At(i int) T {
	return rq.data[(rq.readIndex+i)%rq.size]
}

// Ref returns a pointer to the i-th element counted from the front, so it
// can be updated in place.
func (rq *RingQueue[T]) Ref(i int) *T {
	return &rq.data[(rq.readIndex+i)%rq.size]
}

// Reserve returns the slot the next Enqueue would write, without committing
// it. Callers fill it in place and then call Commit.
func (rq *RingQueue[T]) Reserve() (*T, error) {
	if rq.IsFull() {
		return nil, ErrQueueFull
	}
	return &rq.data[rq.writeIndex], nil
}

func (rq *RingQueue[T]) Commit() {
	rq.writeIndex = (rq.writeIndex + 1) % rq.size
	rq.count++
}

// Clear drops every element.
func (rq *RingQueue[T]) Clear() {
	var zero T
	for i := range rq.data {
		rq.data[i] = zero
	}
	rq.readIndex, rq.writeIndex, rq.count = 0, 0, 0
}

func (rq *RingQueue[T]) Len() int {
	return rq.count
}

func (rq *RingQueue[T]) Cap() int {
	return rq.size
}

// IsEmpty checks if the queue is empty
func (rq *RingQueue[T]) IsEmpty() bool {
	return rq.count == 0
}

// IsFull checks if the queue is full
func (rq *RingQueue[T]) IsFull() bool {
	return rq.count == rq.size
}
