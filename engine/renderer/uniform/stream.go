package uniform

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
)

var ErrTruncated = errors.New("uniform stream truncated")

// Writer builds an opcode stream. Copy ops carry their payload inline, the
// others carry a uniform handle padded to four bytes.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) putUint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// WriteCopy appends an op whose num elements follow inline.
func (w *Writer) WriteCopy(t Type, loc uint16, num uint16, data []byte) error {
	if uint32(len(data)) != t.Size()*uint32(num) {
		return fmt.Errorf("%s x%d: got %d bytes, want %d", t, num, len(data), t.Size()*uint32(num))
	}
	w.putUint32(Op{Type: t, Loc: loc, Num: num, Copy: true}.Encode())
	w.buf = append(w.buf, data...)
	return nil
}

// WriteFloats is WriteCopy for float32 payloads.
func (w *Writer) WriteFloats(t Type, loc uint16, num uint16, data []float32) error {
	return w.WriteCopy(t, loc, num, Float32Bytes(data))
}

// WriteHandle appends an op whose value is read from the registry.
func (w *Writer) WriteHandle(t Type, loc uint16, num uint16, h metadata.UniformHandle) {
	w.putUint32(Op{Type: t, Loc: loc, Num: num}.Encode())
	w.putUint32(uint32(h))
}

func (w *Writer) WriteEnd() {
	w.putUint32(Op{Type: End}.Encode())
}

func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) Len() int {
	return len(w.buf)
}

func (w *Writer) Reset() {
	w.buf = w.buf[:0]
}

// Reader walks an opcode stream.
type Reader struct {
	data []byte
	pos  int
	err  error
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Next returns the next op and its payload: inline bytes for copy ops, the
// handle otherwise. It returns false at End, at the end of data, or on error.
func (r *Reader) Next() (op Op, payload []byte, handle metadata.UniformHandle, ok bool) {
	if r.err != nil || r.pos+4 > len(r.data) {
		return Op{}, nil, metadata.InvalidUniform, false
	}
	op = DecodeOp(binary.LittleEndian.Uint32(r.data[r.pos:]))
	r.pos += 4
	if op.Type.Base() == End {
		return op, nil, metadata.InvalidUniform, false
	}
	if op.Copy {
		size := int(op.Type.Size()) * int(op.Num)
		if r.pos+size > len(r.data) {
			r.err = fmt.Errorf("%w: %s needs %d bytes at %d", ErrTruncated, op, size, r.pos)
			return Op{}, nil, metadata.InvalidUniform, false
		}
		payload = r.data[r.pos : r.pos+size]
		r.pos += size
		return op, payload, metadata.InvalidUniform, true
	}
	if r.pos+4 > len(r.data) {
		r.err = fmt.Errorf("%w: %s handle at %d", ErrTruncated, op, r.pos)
		return Op{}, nil, metadata.InvalidUniform, false
	}
	handle = metadata.UniformHandle(binary.LittleEndian.Uint32(r.data[r.pos:]))
	r.pos += 4
	return op, nil, handle, true
}

func (r *Reader) Err() error {
	return r.err
}

func Float32Bytes(f []float32) []byte {
	out := make([]byte, 4*len(f))
	for i, v := range f {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

func BytesFloat32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}
