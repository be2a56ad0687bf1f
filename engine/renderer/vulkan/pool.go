package vulkan

import "sync"

type lockGroup uint8

const (
	resourceManagement lockGroup = iota
	pipelineManagement
	renderpassManagement
	queueManagement
	garbageManagement
	lockGroupCount
)

// lockPool serializes access to the device level caches and the queue.
// Objects may be created off the render goroutine while it records.
type lockPool struct {
	locks [lockGroupCount]sync.Mutex
}

func (p *lockPool) safeCall(group lockGroup, fn func() error) error {
	l := &p.locks[group]
	l.Lock()
	defer l.Unlock()
	return fn()
}

func (p *lockPool) lock(group lockGroup) func() {
	l := &p.locks[group]
	l.Lock()
	return l.Unlock
}
