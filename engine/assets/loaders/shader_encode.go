package loaders

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/uniform"
)

// UniformDecl is one uniform of a shader blob.
type UniformDecl struct {
	Name     string
	Type     uniform.Type
	Num      uint8
	RegIndex uint16
	RegCount uint16
}

// ShaderDesc is everything EncodeShader writes into a blob.
type ShaderDesc struct {
	Stage         gpu.Stage
	IOHash        uint32
	AttributeMask uint32
	ConstantSize  uint16
	Uniforms      []UniformDecl
	Code          []byte
	WritesDepth   bool
}

// EncodeShader writes the blob format read by ParseShader.
func EncodeShader(d *ShaderDesc) ([]byte, error) {
	var magic [4]byte
	switch d.Stage {
	case gpu.StageVertex:
		magic = MagicVertex
	case gpu.StageFragment:
		magic = MagicFragment
	case gpu.StageCompute:
		magic = MagicCompute
	default:
		return nil, fmt.Errorf("%w: unknown stage %d", ErrBadShader, d.Stage)
	}
	if len(d.Uniforms) > 0xffff {
		return nil, fmt.Errorf("%w: %d uniforms", ErrBadShader, len(d.Uniforms))
	}

	var b bytes.Buffer
	b.Write(magic[:])
	hdr := []interface{}{d.IOHash, d.AttributeMask, uint16(len(d.Uniforms)), d.ConstantSize}
	for _, v := range hdr {
		_ = binary.Write(&b, binary.LittleEndian, v)
	}
	for _, u := range d.Uniforms {
		if len(u.Name) == 0 || len(u.Name) > 0xff {
			return nil, fmt.Errorf("%w: uniform name %q", ErrBadShader, u.Name)
		}
		b.WriteByte(byte(len(u.Name)))
		b.WriteString(u.Name)
		b.WriteByte(byte(u.Type))
		b.WriteByte(u.Num)
		_ = binary.Write(&b, binary.LittleEndian, u.RegIndex)
		_ = binary.Write(&b, binary.LittleEndian, u.RegCount)
	}
	_ = binary.Write(&b, binary.LittleEndian, uint32(len(d.Code)))
	b.Write(d.Code)
	var flags byte
	if d.WritesDepth {
		flags |= shaderFlagWritesDepth
	}
	b.WriteByte(flags)
	return b.Bytes(), nil
}
