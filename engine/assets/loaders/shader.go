package loaders

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
	"github.com/spaghettifunk/rendercore/engine/renderer/uniform"
)

// Shader blobs start with a four character code naming the stage and the
// format version.
var (
	MagicVertex   = [4]byte{'V', 'S', 'H', 1}
	MagicFragment = [4]byte{'F', 'S', 'H', 1}
	MagicCompute  = [4]byte{'C', 'S', 'H', 1}
)

const shaderFlagWritesDepth = 0x01

var ErrBadShader = errors.New("malformed shader blob")

// UniformFunc registers a user uniform found in a shader and returns its
// handle. Registering the same name twice returns the same handle.
type UniformFunc func(name string, t uniform.Type, num uint16) (metadata.UniformHandle, error)

// Shader is a parsed shader blob.
type Shader struct {
	Name string

	stage        gpu.Stage
	ioHash       uint32
	hash         uint32
	attribMask   uint32
	constantSize uint32
	bytecode     []byte
	constants    []byte
	predefined   []uniform.PredefinedUniform
	writesDepth  bool
}

func (s *Shader) Stage() gpu.Stage                        { return s.stage }
func (s *Shader) Bytecode() []byte                        { return s.bytecode }
func (s *Shader) Hash() uint32                            { return s.hash }
func (s *Shader) AttributeMask() uint32                   { return s.attribMask }
func (s *Shader) Predefined() []uniform.PredefinedUniform { return s.predefined }
func (s *Shader) Constants() []byte                       { return s.constants }
func (s *Shader) ConstantSize() uint32                    { return s.constantSize }
func (s *Shader) WritesDepth() bool                       { return s.writesDepth }

// IOHash identifies the varyings; a vertex and a fragment shader link when
// their hashes match.
func (s *Shader) IOHash() uint32 { return s.ioHash }

// ParseShader decodes a shader blob:
//
//	magic      [4]byte
//	io hash    uint32
//	attributes uint32 bit mask
//	uniforms   uint16 count
//	constants  uint16 byte size of the constant buffer
//	count x { name len uint8, name, type uint8, num uint8, reg index uint16, reg count uint16 }
//	code size  uint32
//	code       [code size]byte
//	flags      uint8, optional
//
// All values are little endian. Predefined uniforms are recognized by name;
// every other uniform is registered through uniforms and referenced by
// handle in the constant stream.
func ParseShader(data []byte, uniforms UniformFunc) (*Shader, error) {
	rd := bytes.NewReader(data)
	var hdr struct {
		Magic        [4]byte
		IOHash       uint32
		AttribMask   uint32
		Count        uint16
		ConstantSize uint16
	}
	if err := binary.Read(rd, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrBadShader, err)
	}

	s := &Shader{
		ioHash:       hdr.IOHash,
		attribMask:   hdr.AttribMask,
		constantSize: uint32(hdr.ConstantSize),
	}
	var fragmentBit uniform.Type
	switch hdr.Magic {
	case MagicVertex:
		s.stage = gpu.StageVertex
	case MagicFragment:
		s.stage = gpu.StageFragment
		fragmentBit = uniform.FragmentBit
	case MagicCompute:
		s.stage = gpu.StageCompute
	default:
		return nil, fmt.Errorf("%w: unknown magic %q", ErrBadShader, hdr.Magic[:])
	}

	w := uniform.NewWriter()
	for i := 0; i < int(hdr.Count); i++ {
		name, err := readName(rd)
		if err != nil {
			return nil, fmt.Errorf("%w: uniform %d: %w", ErrBadShader, i, err)
		}
		var u struct {
			Type     uint8
			Num      uint8
			RegIndex uint16
			RegCount uint16
		}
		if err := binary.Read(rd, binary.LittleEndian, &u); err != nil {
			return nil, fmt.Errorf("%w: uniform %s: %w", ErrBadShader, name, err)
		}

		if p, ok := uniform.PredefinedByName(name); ok {
			s.predefined = append(s.predefined, uniform.PredefinedUniform{
				Type:  p,
				Loc:   u.RegIndex,
				Count: u.RegCount,
			})
			continue
		}
		t := uniform.Type(u.Type).Base()
		if t == uniform.End || t >= uniform.TypeCount {
			return nil, fmt.Errorf("%w: uniform %s has type %d", ErrBadShader, name, u.Type)
		}
		if uniforms == nil {
			core.LogWarn("shader uniform %s ignored, no registry", name)
			continue
		}
		h, err := uniforms(name, t, uint16(max(u.Num, 1)))
		if err != nil {
			return nil, fmt.Errorf("uniform %s: %w", name, err)
		}
		w.WriteHandle(t|fragmentBit, u.RegIndex, u.RegCount, h)
	}
	if w.Len() > 0 {
		w.WriteEnd()
		s.constants = append([]byte(nil), w.Bytes()...)
	}

	var size uint32
	if err := binary.Read(rd, binary.LittleEndian, &size); err != nil {
		return nil, fmt.Errorf("%w: code size: %w", ErrBadShader, err)
	}
	if int64(size) > int64(rd.Len()) {
		return nil, fmt.Errorf("%w: code size %d exceeds blob", ErrBadShader, size)
	}
	s.bytecode = make([]byte, size)
	if _, err := io.ReadFull(rd, s.bytecode); err != nil {
		return nil, fmt.Errorf("%w: code: %w", ErrBadShader, err)
	}
	if flags, err := rd.ReadByte(); err == nil {
		s.writesDepth = flags&shaderFlagWritesDepth != 0
	}
	s.hash = core.HashMurmur2A(s.bytecode)
	return s, nil
}

func readName(rd *bytes.Reader) (string, error) {
	n, err := rd.ReadByte()
	if err != nil {
		return "", err
	}
	name := make([]byte, n)
	if _, err := io.ReadFull(rd, name); err != nil {
		return "", err
	}
	return string(name), nil
}

// ShaderLoader reads shader blobs from disk.
type ShaderLoader struct {
	Uniforms UniformFunc
}

func (sl *ShaderLoader) Load(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := ParseShader(data, sl.Uniforms)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.Name = path
	return s, nil
}
