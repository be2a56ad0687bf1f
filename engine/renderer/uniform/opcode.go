// Package uniform encodes and decodes uniform opcode streams and commits
// them into per-stage constant buffer images.
package uniform

import "fmt"

// Type of a uniform. FragmentBit marks values that go to the fragment stage.
type Type uint8

const (
	Sampler Type = iota
	End
	Vec4
	Mat3
	Mat4
	TypeCount

	FragmentBit Type = 0x10
	typeMask    Type = 0x0f
)

func (t Type) Base() Type {
	return t & typeMask
}

func (t Type) IsFragment() bool {
	return t&FragmentBit != 0
}

func (t Type) String() string {
	s := "unknown"
	switch t.Base() {
	case Sampler:
		s = "sampler"
	case End:
		s = "end"
	case Vec4:
		s = "vec4"
	case Mat3:
		s = "mat3"
	case Mat4:
		s = "mat4"
	}
	if t.IsFragment() {
		return "fs." + s
	}
	return s
}

// Size is the byte size of one element as it is stored in a stream.
func (t Type) Size() uint32 {
	switch t.Base() {
	case Sampler:
		return 4
	case Vec4:
		return 16
	case Mat3:
		return 36
	case Mat4:
		return 64
	}
	return 0
}

// RegisterSize is the byte size of one element once laid out in constant
// registers. A 3x3 matrix takes three padded rows.
func (t Type) RegisterSize() uint32 {
	switch t.Base() {
	case Sampler:
		return 16
	case Mat3:
		return 48
	}
	return t.Size()
}

// Opcode layout, 32 bits:
//
//	type(5) loc(16) num(10) copy(1)
const (
	opTypeShift = 27
	opTypeMask  = 0xf8000000
	opLocShift  = 11
	opLocMask   = 0x07fff800
	opNumShift  = 1
	opNumMask   = 0x000007fe
	opCopyMask  = 0x00000001

	MaxLoc = opLocMask >> opLocShift
	MaxNum = opNumMask >> opNumShift
)

// Op is a decoded opcode.
type Op struct {
	Type Type
	// Loc is a constant register index in a shader stream, and a uniform
	// handle in a frame stream.
	Loc  uint16
	Num  uint16
	Copy bool
}

func (o Op) Encode() uint32 {
	var copyBit uint32
	if o.Copy {
		copyBit = 1
	}
	return (uint32(o.Type)<<opTypeShift)&opTypeMask |
		(uint32(o.Loc)<<opLocShift)&opLocMask |
		(uint32(o.Num)<<opNumShift)&opNumMask |
		copyBit
}

func DecodeOp(v uint32) Op {
	return Op{
		Type: Type((v & opTypeMask) >> opTypeShift),
		Loc:  uint16((v & opLocMask) >> opLocShift),
		Num:  uint16((v & opNumMask) >> opNumShift),
		Copy: v&opCopyMask != 0,
	}
}

func (o Op) String() string {
	return fmt.Sprintf("%s loc=%d num=%d copy=%t", o.Type, o.Loc, o.Num, o.Copy)
}

// ParseType is the inverse of String for the base types a shader can
// declare.
func ParseType(name string) (Type, error) {
	switch name {
	case "sampler":
		return Sampler, nil
	case "vec4":
		return Vec4, nil
	case "mat3":
		return Mat3, nil
	case "mat4":
		return Mat4, nil
	}
	return End, fmt.Errorf("unknown uniform type %q", name)
}
