package uniform

import (
	"encoding/binary"
	"fmt"

	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
)

// ScratchSize is the constant buffer image size per stage.
const ScratchSize = 64 << 10

const registerSize = 16

type stage struct {
	scratch [ScratchSize]byte
	size    uint32
	dirty   bool
}

// Engine commits uniform streams into vertex and fragment scratch images and
// uploads only the stages written since the last flush.
type Engine struct {
	stages  [2]stage
	compute bool
}

func NewEngine() *Engine {
	return &Engine{}
}

func stageOf(t Type) int {
	if t.IsFragment() {
		return 1
	}
	return 0
}

func (e *Engine) gpuStage(i int) gpu.Stage {
	switch {
	case i == 1:
		return gpu.StageFragment
	case e.compute:
		return gpu.StageCompute
	}
	return gpu.StageVertex
}

// SetProgram sets the upload size of each stage for the bound program.
func (e *Engine) SetProgram(vsSize, fsSize uint32) {
	e.compute = false
	e.stages[0].size = min(vsSize, ScratchSize)
	e.stages[1].size = min(fsSize, ScratchSize)
}

// SetComputeProgram uploads the vertex image to the compute stage until the
// next SetProgram.
func (e *Engine) SetComputeProgram(csSize uint32) {
	e.compute = true
	e.stages[0].size = min(csSize, ScratchSize)
	e.stages[1].size = 0
}

// Write stores num elements of type t at register loc. Mat3 elements are
// expanded to three rows of four floats with a zero fourth column.
func (e *Engine) Write(t Type, loc uint16, num uint16, data []byte) error {
	st := &e.stages[stageOf(t)]
	offset := uint32(loc) * registerSize
	end := offset + t.RegisterSize()*uint32(num)
	if end > ScratchSize {
		return fmt.Errorf("%s at register %d x%d overflows constant buffer", t, loc, num)
	}
	if uint32(len(data)) < t.Size()*uint32(num) {
		return fmt.Errorf("%s x%d: %w", t, num, ErrTruncated)
	}

	switch t.Base() {
	case Sampler:
		// samplers are bound through slots, the register only records the index
		for i := uint32(0); i < uint32(num); i++ {
			dst := st.scratch[offset+i*16:]
			copy(dst[:4], data[i*4:i*4+4])
			clear(dst[4:16])
		}
	case Mat3:
		for i := uint32(0); i < uint32(num); i++ {
			src := data[i*36:]
			dst := st.scratch[offset+i*48:]
			for row := uint32(0); row < 3; row++ {
				copy(dst[row*16:row*16+12], src[row*12:row*12+12])
				binary.LittleEndian.PutUint32(dst[row*16+12:], 0)
			}
		}
	default:
		copy(st.scratch[offset:end], data[:end-offset])
	}
	st.dirty = true
	return nil
}

// Commit decodes a shader constant stream. Ops without the copy flag take
// their value from reg.
func (e *Engine) Commit(stream []byte, reg *Registry) error {
	rd := NewReader(stream)
	for {
		op, payload, handle, ok := rd.Next()
		if !ok {
			break
		}
		if !op.Copy {
			u := reg.Get(handle)
			if u == nil {
				core.Assert(false, "constant stream references unknown uniform %d", handle)
				continue
			}
			payload = u.Data
			if op.Num > u.Num {
				op.Num = u.Num
			}
		}
		if err := e.Write(op.Type, op.Loc, op.Num, payload); err != nil {
			return err
		}
	}
	return rd.Err()
}

// MarkDirty forces the next flush to upload both stages.
func (e *Engine) MarkDirty() {
	e.stages[0].dirty = true
	e.stages[1].dirty = true
}

func (e *Engine) IsDirty() bool {
	return e.stages[0].dirty || e.stages[1].dirty
}

// Flush uploads each dirty stage in one call and returns how many uploads
// were issued.
func (e *Engine) Flush(ctx gpu.Context) int {
	n := 0
	for i := range e.stages {
		st := &e.stages[i]
		if !st.dirty {
			continue
		}
		st.dirty = false
		if st.size == 0 {
			continue
		}
		ctx.UpdateConstants(e.gpuStage(i), st.scratch[:st.size])
		n++
	}
	return n
}

// Scratch exposes the current image of a stage.
func (e *Engine) Scratch(fragment bool) []byte {
	if fragment {
		return e.stages[1].scratch[:]
	}
	return e.stages[0].scratch[:]
}

// Reset zeroes both images, used after a device reset.
func (e *Engine) Reset() {
	for i := range e.stages {
		clear(e.stages[i].scratch[:])
		e.stages[i].dirty = false
		e.stages[i].size = 0
	}
	e.compute = false
}
