package metadata

// ItemType orders item kinds inside a view: blits first, then compute, then draws.
type ItemType uint8

const (
	ItemBlit ItemType = iota
	ItemCompute
	ItemDraw
)

func (t ItemType) String() string {
	switch t {
	case ItemBlit:
		return "blit"
	case ItemCompute:
		return "compute"
	case ItemDraw:
		return "draw"
	}
	return "unknown"
}

// SortKey layout, most significant bits first:
//
//	draw:    view(8) type(2) trans(2) program(10) depth(32) seq(10)
//	compute: view(8) type(2) 0(2)     seq(20)     0(12)     program(10)
//	blit:    view(8) type(2) 0(2)     seq(20)     0(22)
type SortKey uint64

const (
	sortKeyViewShift = 56
	sortKeyViewMask  = uint64(0xff) << sortKeyViewShift

	sortKeyTypeShift = 54
	sortKeyTypeMask  = uint64(0x3) << sortKeyTypeShift

	sortKeyTransShift = 52
	sortKeyTransMask  = uint64(0x3) << sortKeyTransShift

	sortKeyDrawProgramShift = 42
	sortKeyDrawProgramMask  = uint64(0x3ff) << sortKeyDrawProgramShift

	sortKeyDepthShift = 10
	sortKeyDepthMask  = uint64(0xffffffff) << sortKeyDepthShift

	sortKeyDrawSeqMask = uint64(0x3ff)

	sortKeySeqShift = 32
	sortKeySeqMask  = uint64(0xfffff) << sortKeySeqShift

	sortKeyComputeProgramMask = uint64(0x3ff)
)

// DecodedKey is the unpacked form of a SortKey.
type DecodedKey struct {
	View    uint8
	Type    ItemType
	Program ProgramHandle
	Trans   uint8
	Depth   uint32
	Seq     uint32
}

func (d DecodedKey) IsCompute() bool {
	return d.Type == ItemCompute
}

// EncodeDraw packs a draw key. trans selects the blend order bucket (0 opaque,
// 1 and 2 translucent passes).
func EncodeDraw(view uint8, program ProgramHandle, trans uint8, depth uint32, seq uint32) SortKey {
	k := uint64(view)<<sortKeyViewShift |
		uint64(ItemDraw)<<sortKeyTypeShift |
		(uint64(trans)<<sortKeyTransShift)&sortKeyTransMask |
		(uint64(program)<<sortKeyDrawProgramShift)&sortKeyDrawProgramMask |
		(uint64(depth)<<sortKeyDepthShift)&sortKeyDepthMask |
		uint64(seq)&sortKeyDrawSeqMask
	return SortKey(k)
}

// EncodeCompute packs a compute key; compute items keep submission order
// inside their view.
func EncodeCompute(view uint8, program ProgramHandle, seq uint32) SortKey {
	k := uint64(view)<<sortKeyViewShift |
		uint64(ItemCompute)<<sortKeyTypeShift |
		(uint64(seq)<<sortKeySeqShift)&sortKeySeqMask |
		uint64(program)&sortKeyComputeProgramMask
	return SortKey(k)
}

func EncodeBlit(view uint8, seq uint32) SortKey {
	k := uint64(view)<<sortKeyViewShift |
		uint64(ItemBlit)<<sortKeyTypeShift |
		(uint64(seq)<<sortKeySeqShift)&sortKeySeqMask
	return SortKey(k)
}

func (k SortKey) View() uint8 {
	return uint8((uint64(k) & sortKeyViewMask) >> sortKeyViewShift)
}

func (k SortKey) Type() ItemType {
	return ItemType((uint64(k) & sortKeyTypeMask) >> sortKeyTypeShift)
}

func (k SortKey) IsCompute() bool {
	return k.Type() == ItemCompute
}

func (k SortKey) Decode() DecodedKey {
	d := DecodedKey{
		View: k.View(),
		Type: k.Type(),
	}
	u := uint64(k)
	switch d.Type {
	case ItemDraw:
		d.Trans = uint8((u & sortKeyTransMask) >> sortKeyTransShift)
		d.Program = ProgramHandle((u & sortKeyDrawProgramMask) >> sortKeyDrawProgramShift)
		d.Depth = uint32((u & sortKeyDepthMask) >> sortKeyDepthShift)
		d.Seq = uint32(u & sortKeyDrawSeqMask)
	case ItemCompute:
		d.Program = ProgramHandle(u & sortKeyComputeProgramMask)
		d.Seq = uint32((u & sortKeySeqMask) >> sortKeySeqShift)
	default:
		d.Program = InvalidProgram
		d.Seq = uint32((u & sortKeySeqMask) >> sortKeySeqShift)
	}
	return d
}
