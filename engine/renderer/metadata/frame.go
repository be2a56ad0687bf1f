package metadata

import (
	"errors"
	"time"

	"github.com/spaghettifunk/rendercore/engine/math"
	"golang.org/x/exp/slices"
)

var ErrFrameFrozen = errors.New("frame already finished")

// TransientBuffer is per-frame geometry uploaded into a dynamic buffer before
// any item of the frame is dispatched.
type TransientBuffer struct {
	Handle uint16
	Data   []byte
}

type ScreenshotFormat uint8

const (
	ScreenshotTGA ScreenshotFormat = iota
	ScreenshotWebP
)

type ScreenshotRequest struct {
	Path   string
	Format ScreenshotFormat
}

// Frame is the unit handed from the producer to the dispatcher. After Finish
// it is read-only until Reset.
type Frame struct {
	Keys  []SortKey
	Items []RenderItem
	Binds []Binds

	Views    [MaxViews]View
	Rects    []Rect
	Matrices []math.Mat4
	Uniforms []byte

	Resolution Resolution
	Debug      DebugFlags

	TransientVertices *TransientBuffer
	TransientIndices  *TransientBuffer

	TextVideoMem *TextVideoMem
	Screenshot   *ScreenshotRequest

	// Hand-off timings measured by the frontend.
	WaitSubmit time.Duration
	WaitRender time.Duration

	seq    uint32
	frozen bool
}

func NewFrame() *Frame {
	f := &Frame{}
	f.Reset()
	return f
}

// Reset empties the frame for reuse, keeping allocated capacity.
func (f *Frame) Reset() {
	f.Keys = f.Keys[:0]
	f.Items = f.Items[:0]
	f.Binds = f.Binds[:0]
	f.Rects = f.Rects[:0]
	f.Matrices = f.Matrices[:0]
	f.Uniforms = f.Uniforms[:0]
	for i := range f.Views {
		f.Views[i] = NewView()
	}
	f.Debug = DebugNone
	f.TransientVertices = nil
	f.TransientIndices = nil
	f.TextVideoMem = nil
	f.Screenshot = nil
	f.WaitSubmit = 0
	f.WaitRender = 0
	f.seq = 0
	f.frozen = false
}

// NextSeq returns the submission counter used as the last sort tiebreaker.
func (f *Frame) NextSeq() uint32 {
	s := f.seq
	f.seq++
	return s
}

// Add appends one render item with its key and bindings.
func (f *Frame) Add(key SortKey, item RenderItem, binds Binds) error {
	if f.frozen {
		return ErrFrameFrozen
	}
	f.Keys = append(f.Keys, key)
	f.Items = append(f.Items, item)
	f.Binds = append(f.Binds, binds)
	return nil
}

// AddRect caches a scissor rectangle and returns its index.
func (f *Frame) AddRect(r Rect) uint16 {
	f.Rects = append(f.Rects, r)
	return uint16(len(f.Rects) - 1)
}

// AddMatrices caches model matrices and returns the index of the first.
func (f *Frame) AddMatrices(m ...math.Mat4) uint32 {
	start := uint32(len(f.Matrices))
	f.Matrices = append(f.Matrices, m...)
	return start
}

// AppendUniforms appends an encoded uniform stream and returns its range.
func (f *Frame) AppendUniforms(stream []byte) (begin, end uint32) {
	begin = uint32(len(f.Uniforms))
	f.Uniforms = append(f.Uniforms, stream...)
	return begin, uint32(len(f.Uniforms))
}

// Finish sorts the items by key, keeping submission order between equal
// keys, and freezes the frame.
func (f *Frame) Finish() {
	if f.frozen {
		return
	}
	n := len(f.Keys)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		ka, kb := f.Keys[a], f.Keys[b]
		switch {
		case ka < kb:
			return -1
		case ka > kb:
			return 1
		}
		return 0
	})
	keys := make([]SortKey, n)
	items := make([]RenderItem, n)
	binds := make([]Binds, n)
	for i, j := range order {
		keys[i] = f.Keys[j]
		items[i] = f.Items[j]
		binds[i] = f.Binds[j]
	}
	f.Keys, f.Items, f.Binds = keys, items, binds
	f.frozen = true
}

func (f *Frame) IsFrozen() bool {
	return f.frozen
}

func (f *Frame) Len() int {
	return len(f.Items)
}

func (f *Frame) Matrix(start uint32, num uint16) math.Mat4 {
	if num == 0 || int(start) >= len(f.Matrices) {
		return math.NewMat4Identity()
	}
	return f.Matrices[start]
}
