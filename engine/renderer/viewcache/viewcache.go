// Package viewcache keeps derived GPU views of textures and buffers in a
// bounded least-recently-used cache.
package viewcache

import (
	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
)

const DefaultCapacity = 1024

// Key identifies one view of one resource.
type Key struct {
	Kind      metadata.BindingKind
	Handle    uint16
	Mip       uint8
	Dimension gpu.ViewDimension
	Compute   bool
	Stencil   bool
}

// Owner is the resource a view was derived from.
type Owner struct {
	Kind   metadata.BindingKind
	Handle uint16
}

func (k Key) Owner() Owner {
	return Owner{Kind: k.Kind, Handle: k.Handle}
}

type entry struct {
	owner Owner
	view  gpu.View
}

// Cache is used from the render goroutine only and does no locking.
type Cache struct {
	capacity  int
	lru       *simplelru.LRU[Key, entry]
	hits      uint64
	misses    uint64
	evictions uint64
}

func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	// every way out of the cache releases the view
	lru, err := simplelru.NewLRU[Key, entry](capacity, func(_ Key, e entry) {
		e.view.Release()
	})
	if err != nil {
		panic(err)
	}
	return &Cache{capacity: capacity, lru: lru}
}

// Get returns the view for key, creating it on a miss. A full cache evicts
// its least recently used entry first.
func (c *Cache) Get(key Key, create func() (gpu.View, error)) (gpu.View, error) {
	if e, ok := c.lru.Get(key); ok {
		c.hits++
		return e.view, nil
	}
	c.misses++

	v, err := create()
	if err != nil {
		return nil, err
	}
	if c.lru.Add(key, entry{owner: key.Owner(), view: v}) {
		c.evictions++
	}
	return v, nil
}

// InvalidateOwner drops every view derived from the given resource. The
// walk does not change the recency of the remaining entries.
func (c *Cache) InvalidateOwner(kind metadata.BindingKind, handle uint16) int {
	owner := Owner{Kind: kind, Handle: handle}
	removed := 0
	for _, k := range c.lru.Keys() {
		if k.Owner() == owner && c.lru.Remove(k) {
			removed++
		}
	}
	return removed
}

// Invalidate releases every view.
func (c *Cache) Invalidate() {
	c.lru.Purge()
}

func (c *Cache) Contains(key Key) bool {
	return c.lru.Contains(key)
}

func (c *Cache) Len() int {
	return c.lru.Len()
}

func (c *Cache) Capacity() int {
	return c.capacity
}

func (c *Cache) Stats() metadata.CacheStats {
	return metadata.CacheStats{
		Len:       c.lru.Len(),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
