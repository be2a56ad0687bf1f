// Package query runs timer and occlusion queries through fixed-size rings
// and resolves them without stalling the GPU.
package query

import (
	"errors"
	"fmt"
	"time"

	"github.com/spaghettifunk/rendercore/engine/containers"
	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
)

// ErrStalled is returned by Begin when the ring is full and its oldest query
// was never ended, so draining cannot free a slot.
var ErrStalled = errors.New("query ring stalled on an open query")

// drainBackoff is the pause between polls while Begin waits for a slot.
const drainBackoff = 50 * time.Microsecond

type State uint8

const (
	Free State = iota
	Begun
	Ended
	Resolved
)

func (s State) String() string {
	return [...]string{"free", "begun", "ended", "resolved"}[s]
}

type slot struct {
	query gpu.Query
	state State
	tag   int
}

// ring holds the in-flight queries in issue order. Native query objects are
// created once and handed out round robin.
type ring struct {
	ctx     gpu.Context
	queries []gpu.Query
	slots   *containers.RingQueue[slot]
	next    int
	polls   uint64
}

func newRing(dev gpu.Device, kind gpu.QueryKind, size int) (*ring, error) {
	if size <= 0 {
		return nil, fmt.Errorf("query ring size %d", size)
	}
	r := &ring{
		ctx:     dev.Context(),
		queries: make([]gpu.Query, size),
		slots:   containers.NewRingQueue[slot](size),
	}
	for i := range r.queries {
		q, err := dev.CreateQuery(kind)
		if err != nil {
			r.release()
			return nil, fmt.Errorf("create query %d/%d: %w", i, size, err)
		}
		r.queries[i] = q
	}
	return r, nil
}

// begin allocates a slot, draining resolved queries while the ring is full.
// The drain flushes so an oldest query still in unsubmitted commands can
// reach the GPU.
func (r *ring) begin(tag int, onResult func(tag int, res gpu.QueryResult)) (gpu.Query, error) {
	for r.slots.IsFull() {
		if r.slots.Ref(0).state != Ended {
			core.Assert(false, "query ring full with open query at head")
			return nil, ErrStalled
		}
		n, err := r.poll(onResult, true)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			time.Sleep(drainBackoff)
		}
	}
	q := r.queries[r.next]
	r.next = (r.next + 1) % len(r.queries)

	s, _ := r.slots.Reserve()
	*s = slot{query: q, state: Begun, tag: tag}
	r.slots.Commit()
	r.ctx.BeginQuery(q)
	return q, nil
}

// end closes the most recently begun query.
func (r *ring) end() bool {
	if r.slots.IsEmpty() {
		return false
	}
	s := r.slots.Ref(r.slots.Len() - 1)
	if s.state != Begun {
		return false
	}
	r.ctx.EndQuery(s.query)
	s.state = Ended
	return true
}

// endTag closes the open query carrying tag.
func (r *ring) endTag(tag int) bool {
	for i := r.slots.Len() - 1; i >= 0; i-- {
		s := r.slots.Ref(i)
		if s.state == Begun && s.tag == tag {
			r.ctx.EndQuery(s.query)
			s.state = Ended
			return true
		}
	}
	return false
}

// poll resolves ended queries in issue order, stopping at the first one
// that is not ready. Only the drain in begin passes flush.
func (r *ring) poll(onResult func(tag int, res gpu.QueryResult), flush bool) (int, error) {
	n := 0
	for !r.slots.IsEmpty() {
		s := r.slots.Ref(0)
		if s.state != Ended {
			break
		}
		r.polls++
		res, code := r.ctx.GetQueryData(s.query, flush)
		if code == gpu.WasStillDrawing {
			break
		}
		if code != gpu.OK {
			return n, gpu.Check("GetQueryData", code)
		}
		s.state = Resolved
		onResult(s.tag, res)
		_, _ = r.slots.Dequeue()
		n++
	}
	return n, nil
}

func (r *ring) pending() int {
	return r.slots.Len()
}

func (r *ring) release() {
	for i, q := range r.queries {
		if q != nil {
			q.Release()
			r.queries[i] = nil
		}
	}
	r.slots.Clear()
	r.next = 0
}
