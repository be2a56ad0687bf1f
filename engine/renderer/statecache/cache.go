// Package statecache keeps immutable native pipeline state objects keyed by
// a hash of the state bits that produced them.
package statecache

import (
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
)

// Cache maps a 32-bit state hash to the native object built for it. Objects
// are never mutated once inserted, so equal hashes always return the same
// object. There is no per-entry removal: the whole cache goes away with the
// device.
type Cache[T gpu.Object] struct {
	entries map[uint32]T
	hits    uint64
	misses  uint64
}

func New[T gpu.Object]() *Cache[T] {
	return &Cache[T]{entries: make(map[uint32]T)}
}

func (c *Cache[T]) Find(hash uint32) (T, bool) {
	v, ok := c.entries[hash]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

func (c *Cache[T]) Add(hash uint32, v T) {
	c.entries[hash] = v
}

// FindOrCreate returns the cached object for hash, calling create on a miss.
// A failed create leaves the cache unchanged.
func (c *Cache[T]) FindOrCreate(hash uint32, create func() (T, error)) (T, error) {
	if v, ok := c.Find(hash); ok {
		return v, nil
	}
	v, err := create()
	if err != nil {
		var zero T
		return zero, err
	}
	c.entries[hash] = v
	return v, nil
}

// Invalidate releases every native object and empties the cache.
func (c *Cache[T]) Invalidate() {
	for k, v := range c.entries {
		v.Release()
		delete(c.entries, k)
	}
}

func (c *Cache[T]) Len() int {
	return len(c.entries)
}

func (c *Cache[T]) Stats() metadata.CacheStats {
	return metadata.CacheStats{
		Len:    len(c.entries),
		Hits:   c.hits,
		Misses: c.misses,
	}
}
