package query

import (
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
)

// NotResolved marks a handle whose query never completed.
const NotResolved int32 = -1

// OcclusionRing counts visible samples per occlusion query handle.
type OcclusionRing struct {
	ring       *ring
	visibility [metadata.MaxOcclusionQuery]int32
}

func NewOcclusionRing(dev gpu.Device, size int) (*OcclusionRing, error) {
	r, err := newRing(dev, gpu.QueryOcclusion, size)
	if err != nil {
		return nil, err
	}
	o := &OcclusionRing{ring: r}
	o.Reset()
	return o, nil
}

func (o *OcclusionRing) onResult(tag int, res gpu.QueryResult) {
	samples := res.Samples
	if samples > uint64(^uint32(0)>>1) {
		samples = uint64(^uint32(0) >> 1)
	}
	o.visibility[tag] = int32(samples)
}

// Begin opens the query for h. A full ring is drained first.
func (o *OcclusionRing) Begin(h metadata.OcclusionQueryHandle) error {
	_, err := o.ring.begin(int(h), o.onResult)
	return err
}

func (o *OcclusionRing) End() bool {
	return o.ring.end()
}

// Update resolves whatever is ready without waiting.
func (o *OcclusionRing) Update() (bool, error) {
	n, err := o.ring.poll(o.onResult, false)
	return n > 0, err
}

// Result is the last resolved sample count of h, or NotResolved.
func (o *OcclusionRing) Result(h metadata.OcclusionQueryHandle) int32 {
	if !h.IsValid() || int(h) >= len(o.visibility) {
		return NotResolved
	}
	return o.visibility[h]
}

// IsVisible is true unless the query of h resolved to zero samples. A
// handle that never resolved counts as visible.
func (o *OcclusionRing) IsVisible(h metadata.OcclusionQueryHandle) bool {
	return o.Result(h) != 0
}

// Invalidate forgets the result of h, used when the host destroys it.
func (o *OcclusionRing) Invalidate(h metadata.OcclusionQueryHandle) {
	if h.IsValid() && int(h) < len(o.visibility) {
		o.visibility[h] = NotResolved
	}
}

func (o *OcclusionRing) Reset() {
	for i := range o.visibility {
		o.visibility[i] = NotResolved
	}
}

func (o *OcclusionRing) Pending() int {
	return o.ring.pending()
}

func (o *OcclusionRing) Cap() int {
	return o.ring.slots.Cap()
}

func (o *OcclusionRing) Release() {
	o.ring.release()
	o.Reset()
}
