package query

import (
	"time"

	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
)

// TimerResult is the last resolved measurement of one logical timer.
type TimerResult struct {
	Begin     uint64
	End       uint64
	Frequency uint64
	// Pending counts measurements issued but not resolved yet.
	Pending uint32
	Valid   bool
}

func (r TimerResult) Ticks() uint64 {
	if r.End < r.Begin {
		return 0
	}
	return r.End - r.Begin
}

func (r TimerResult) Elapsed() time.Duration {
	if !r.Valid || r.Frequency == 0 {
		return 0
	}
	return time.Duration(float64(r.Ticks()) * float64(time.Second) / float64(r.Frequency))
}

// TimerRing measures GPU time into a fixed set of result slots, e.g. one per
// view plus one for the whole frame.
type TimerRing struct {
	ring    *ring
	results []TimerResult
}

func NewTimerRing(dev gpu.Device, size, numResults int) (*TimerRing, error) {
	r, err := newRing(dev, gpu.QueryTimer, size)
	if err != nil {
		return nil, err
	}
	return &TimerRing{ring: r, results: make([]TimerResult, numResults)}, nil
}

func (t *TimerRing) onResult(tag int, res gpu.QueryResult) {
	r := &t.results[tag]
	if r.Pending > 0 {
		r.Pending--
	}
	if res.Disjoint {
		return
	}
	r.Begin, r.End, r.Frequency = res.Begin, res.End, res.Frequency
	r.Valid = true
}

// Begin starts measuring into result slot idx. When the ring is full it
// resolves queries until one frees, which blocks on the driver.
func (t *TimerRing) Begin(idx int) error {
	if _, err := t.ring.begin(idx, t.onResult); err != nil {
		return err
	}
	t.results[idx].Pending++
	return nil
}

// End stops the open measurement of result slot idx.
func (t *TimerRing) End(idx int) bool {
	return t.ring.endTag(idx)
}

// Update resolves whatever is ready without waiting and reports whether any
// measurement completed.
func (t *TimerRing) Update() (bool, error) {
	n, err := t.ring.poll(t.onResult, false)
	return n > 0, err
}

func (t *TimerRing) Result(idx int) TimerResult {
	return t.results[idx]
}

func (t *TimerRing) NumResults() int {
	return len(t.results)
}

func (t *TimerRing) Pending() int {
	return t.ring.pending()
}

func (t *TimerRing) Cap() int {
	return t.ring.slots.Cap()
}

func (t *TimerRing) Release() {
	t.ring.release()
	for i := range t.results {
		t.results[i] = TimerResult{}
	}
}
