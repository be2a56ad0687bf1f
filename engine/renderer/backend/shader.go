package backend

import (
	"fmt"

	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
	"github.com/spaghettifunk/rendercore/engine/renderer/uniform"
)

// Shader is a compiled shader as the asset layer hands it over. The backend
// never looks inside the bytecode.
type Shader interface {
	Stage() gpu.Stage
	Bytecode() []byte
	// Hash identifies the bytecode; input layouts are cached per vertex
	// shader hash.
	Hash() uint32
	// AttributeMask has bit Attrib set for every vertex input the shader reads.
	AttributeMask() uint32
	Predefined() []uniform.PredefinedUniform
	// Constants is the opcode stream that maps registry uniforms to
	// constant registers.
	Constants() []byte
	ConstantSize() uint32
	WritesDepth() bool
}

// Attrib is a vertex input semantic.
type Attrib uint8

const (
	AttribPosition Attrib = iota
	AttribNormal
	AttribTangent
	AttribBitangent
	AttribColor0
	AttribColor1
	AttribColor2
	AttribColor3
	AttribIndices
	AttribWeight
	AttribTexCoord0
	AttribTexCoord1
	AttribTexCoord2
	AttribTexCoord3
	AttribTexCoord4
	AttribTexCoord5
	AttribTexCoord6
	AttribTexCoord7
	AttribCount
)

var attribSemantic = [AttribCount]struct {
	name  string
	index uint32
}{
	{"POSITION", 0},
	{"NORMAL", 0},
	{"TANGENT", 0},
	{"BITANGENT", 0},
	{"COLOR", 0},
	{"COLOR", 1},
	{"COLOR", 2},
	{"COLOR", 3},
	{"BLENDINDICES", 0},
	{"BLENDWEIGHT", 0},
	{"TEXCOORD", 0},
	{"TEXCOORD", 1},
	{"TEXCOORD", 2},
	{"TEXCOORD", 3},
	{"TEXCOORD", 4},
	{"TEXCOORD", 5},
	{"TEXCOORD", 6},
	{"TEXCOORD", 7},
}

func (a Attrib) Semantic() (string, uint32) {
	if a >= AttribCount {
		return "", 0
	}
	s := attribSemantic[a]
	return s.name, s.index
}

type VertexAttrib struct {
	Attrib Attrib
	Format gpu.VertexFormat
	Offset uint32
}

// VertexLayout describes one interleaved vertex stream.
type VertexLayout struct {
	Attribs []VertexAttrib
	Stride  uint32
}

// Hash covers every attribute and the stride.
func (l *VertexLayout) Hash() uint32 {
	m := core.NewMurmurHash2A(0)
	for _, a := range l.Attribs {
		m.AddUint32(uint32(a.Attrib) | uint32(a.Format)<<8 | a.Offset<<16)
	}
	m.AddUint32(l.Stride)
	return m.Sum32()
}

func (l *VertexLayout) Has(a Attrib) bool {
	for _, x := range l.Attribs {
		if x.Attrib == a {
			return true
		}
	}
	return false
}

// instanceAttribs are the TEXCOORD slots used for instance data, highest
// first, one float4 per 16 bytes of instance stride.
var instanceAttribs = [...]Attrib{
	AttribTexCoord7, AttribTexCoord6, AttribTexCoord5, AttribTexCoord4, AttribTexCoord3,
}

// inputLayoutDesc builds the native input layout for the streams of a draw,
// keeping only the attributes the vertex shader reads.
func inputLayoutDesc(layouts []*VertexLayout, mask uint32, instanceStride uint16, bytecode []byte) gpu.InputLayoutDesc {
	desc := gpu.InputLayoutDesc{Bytecode: bytecode}
	for slot, l := range layouts {
		for _, a := range l.Attribs {
			if mask&(1<<a.Attrib) == 0 {
				continue
			}
			name, idx := a.Attrib.Semantic()
			desc.Elements = append(desc.Elements, gpu.VertexElement{
				Semantic: name,
				Index:    idx,
				Format:   a.Format,
				Slot:     uint32(slot),
				Offset:   a.Offset,
			})
		}
	}
	n := min(int(instanceStride/16), len(instanceAttribs))
	for i := 0; i < n; i++ {
		name, idx := instanceAttribs[i].Semantic()
		desc.Elements = append(desc.Elements, gpu.VertexElement{
			Semantic:    name,
			Index:       idx,
			Format:      gpu.VertexFormatFloat4,
			Slot:        uint32(len(layouts)),
			Offset:      uint32(i * 16),
			PerInstance: true,
		})
	}
	return desc
}

func inputLayoutHash(layouts []*VertexLayout, vs Shader, instanceStride uint16) uint32 {
	m := core.NewMurmurHash2A(0)
	for _, l := range layouts {
		m.AddUint32(l.Hash())
	}
	m.AddUint32(vs.Hash())
	m.AddUint32(uint32(instanceStride))
	return m.Sum32()
}

// DecodedImage is tightly packed pixel data of one mip level.
type DecodedImage struct {
	Width  uint32
	Height uint32
	Format metadata.TextureFormat
	Pixels []byte
}

// TextureDecoder turns an encoded image file into pixels of a format the
// device can sample.
type TextureDecoder interface {
	Decode(data []byte) (*DecodedImage, error)
}

// ParseAttrib maps a semantic name such as "POSITION", "COLOR1" or
// "TEXCOORD0" to its attribute. A missing index means 0.
func ParseAttrib(name string) (Attrib, bool) {
	for a, s := range attribSemantic {
		if name == s.name && s.index == 0 || name == fmt.Sprintf("%s%d", s.name, s.index) {
			return Attrib(a), true
		}
	}
	return AttribCount, false
}
