package core

import (
	"fmt"
	"sync"
)

const InvalidHandle uint16 = 0xffff

// HandleAlloc hands out dense uint16 handles in [0, max) and recycles released
// ones, lowest first.
type HandleAlloc struct {
	mu    sync.Mutex
	owned []bool
	free  []uint16
	next  uint16
	max   uint16
}

func NewHandleAlloc(max uint16) *HandleAlloc {
	return &HandleAlloc{
		owned: make([]bool, max),
		max:   max,
	}
}

// Alloc returns InvalidHandle when every handle is in use.
func (a *HandleAlloc) Alloc() uint16 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n := len(a.free); n > 0 {
		// Existing free spot. Take it.
		h := a.free[n-1]
		a.free = a.free[:n-1]
		a.owned[h] = true
		return h
	}
	if a.next >= a.max {
		return InvalidHandle
	}
	h := a.next
	a.next++
	a.owned[h] = true
	return h
}

func (a *HandleAlloc) Free(h uint16) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if h >= a.max {
		return fmt.Errorf("handle %d out of range (max=%d): %w", h, a.max, ErrInvalidHandle)
	}
	if !a.owned[h] {
		return fmt.Errorf("handle %d released twice: %w", h, ErrInvalidHandle)
	}
	a.owned[h] = false
	// Keep the free list sorted descending so the lowest handle pops first.
	i := len(a.free)
	a.free = append(a.free, h)
	for i > 0 && a.free[i-1] < h {
		a.free[i] = a.free[i-1]
		i--
	}
	a.free[i] = h
	return nil
}

func (a *HandleAlloc) IsValid(h uint16) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return h < a.max && a.owned[h]
}

func (a *HandleAlloc) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int(a.next) - len(a.free)
}
