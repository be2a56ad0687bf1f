package loaders

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ftrvxmtrx/tga"
	"github.com/spaghettifunk/rendercore/engine/renderer/backend"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
	"github.com/spaghettifunk/rendercore/engine/renderer/uniform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blobUniform struct {
	name     string
	typ      uniform.Type
	num      uint8
	regIndex uint16
	regCount uint16
}

func shaderBlob(magic [4]byte, attribs uint32, constSize uint16, uniforms []blobUniform, code []byte, flags ...byte) []byte {
	var b bytes.Buffer
	b.Write(magic[:])
	_ = binary.Write(&b, binary.LittleEndian, uint32(0xabcd))
	_ = binary.Write(&b, binary.LittleEndian, attribs)
	_ = binary.Write(&b, binary.LittleEndian, uint16(len(uniforms)))
	_ = binary.Write(&b, binary.LittleEndian, constSize)
	for _, u := range uniforms {
		b.WriteByte(byte(len(u.name)))
		b.WriteString(u.name)
		b.WriteByte(byte(u.typ))
		b.WriteByte(u.num)
		_ = binary.Write(&b, binary.LittleEndian, u.regIndex)
		_ = binary.Write(&b, binary.LittleEndian, u.regCount)
	}
	_ = binary.Write(&b, binary.LittleEndian, uint32(len(code)))
	b.Write(code)
	b.Write(flags)
	return b.Bytes()
}

func TestParseVertexShader(t *testing.T) {
	code := []byte{0x03, 0x02, 0x23, 0x07, 1, 2, 3, 4}
	blob := shaderBlob(MagicVertex, 1<<0|1<<10, 128, []blobUniform{
		{name: "u_modelViewProj", typ: uniform.Mat4, num: 1, regIndex: 0, regCount: 4},
		{name: "u_tint", typ: uniform.Vec4, num: 1, regIndex: 4, regCount: 1},
	}, code)

	var registered []string
	s, err := ParseShader(blob, func(name string, typ uniform.Type, num uint16) (metadata.UniformHandle, error) {
		registered = append(registered, name)
		assert.Equal(t, uniform.Vec4, typ)
		assert.Equal(t, uint16(1), num)
		return 7, nil
	})
	require.NoError(t, err)

	assert.Equal(t, gpu.StageVertex, s.Stage())
	assert.Equal(t, code, s.Bytecode())
	assert.Equal(t, uint32(1<<0|1<<10), s.AttributeMask())
	assert.Equal(t, uint32(128), s.ConstantSize())
	assert.Equal(t, uint32(0xabcd), s.IOHash())
	assert.NotZero(t, s.Hash())
	assert.False(t, s.WritesDepth())
	assert.Equal(t, []string{"u_tint"}, registered)

	require.Len(t, s.Predefined(), 1)
	p := s.Predefined()[0]
	assert.Equal(t, uniform.ModelViewProj, p.Type)
	assert.Equal(t, uint16(4), p.Count)

	rd := uniform.NewReader(s.Constants())
	op, _, h, ok := rd.Next()
	require.True(t, ok)
	assert.False(t, op.Copy)
	assert.Equal(t, uniform.Vec4, op.Type)
	assert.Equal(t, uint16(4), op.Loc)
	assert.Equal(t, metadata.UniformHandle(7), h)
	_, _, _, ok = rd.Next()
	assert.False(t, ok)
	assert.NoError(t, rd.Err())
}

func TestParseFragmentShaderMarksFragmentUniforms(t *testing.T) {
	blob := shaderBlob(MagicFragment, 0, 16, []blobUniform{
		{name: "u_color", typ: uniform.Vec4, num: 1, regIndex: 0, regCount: 1},
	}, []byte{1, 2, 3, 4}, shaderFlagWritesDepth)

	s, err := ParseShader(blob, func(string, uniform.Type, uint16) (metadata.UniformHandle, error) {
		return 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, gpu.StageFragment, s.Stage())
	assert.True(t, s.WritesDepth())

	op, _, _, ok := uniform.NewReader(s.Constants()).Next()
	require.True(t, ok)
	assert.True(t, op.Type.IsFragment())
}

func TestParseShaderErrors(t *testing.T) {
	_, err := ParseShader([]byte{'X', 'S', 'H'}, nil)
	assert.ErrorIs(t, err, ErrBadShader)

	blob := shaderBlob([4]byte{'X', 'S', 'H', 1}, 0, 0, nil, []byte{1})
	_, err = ParseShader(blob, nil)
	assert.ErrorIs(t, err, ErrBadShader)

	// code size larger than the blob
	blob = shaderBlob(MagicCompute, 0, 0, nil, []byte{1, 2, 3, 4})
	_, err = ParseShader(blob[:len(blob)-2], nil)
	assert.ErrorIs(t, err, ErrBadShader)
}

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(1, 0, color.NRGBA{G: 255, A: 255})
	img.Set(0, 1, color.NRGBA{B: 255, A: 255})
	img.Set(1, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 128})
	return img
}

func TestTextureDecoderPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage()))

	img, err := (&TextureDecoder{}).Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint32(2), img.Width)
	assert.Equal(t, uint32(2), img.Height)
	assert.Equal(t, metadata.FormatRGBA8, img.Format)
	assert.Equal(t, []byte{255, 0, 0, 255}, img.Pixels[:4])

	flipped, err := (&TextureDecoder{FlipY: true}).Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 255, 255}, flipped.Pixels[:4])
}

func TestTextureDecoderTGA(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, tga.Encode(&buf, testImage()))

	img, err := (&TextureDecoder{}).Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint32(2), img.Width)
	assert.Len(t, img.Pixels, 16)
}

func TestTextureDecoderRejectsGarbage(t *testing.T) {
	_, err := (&TextureDecoder{}).Decode([]byte("not an image"))
	assert.Error(t, err)
}

func TestTextureLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tex.png")
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage()))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	v, err := (&TextureLoader{}).Load(path)
	require.NoError(t, err)
	img, ok := v.(*backend.DecodedImage)
	require.True(t, ok)
	assert.Equal(t, uint32(2), img.Height)

	_, err = (&TextureLoader{}).Load(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestAlphaChannel(t *testing.T) {
	assert.Equal(t, []byte{10, 20}, alphaChannel([]byte{10, 0, 0, 255, 20, 0, 0, 255}))
	assert.Equal(t, []byte{255, 7}, alphaChannel([]byte{10, 0, 0, 255, 20, 0, 0, 7}))
}

const testFontDescriptor = `info face="Test" size=8 bold=0 italic=0 charset="" unicode=1 stretchH=100 smooth=0 aa=1 padding=0,0,0,0 spacing=0,0
common lineHeight=4 base=3 scaleW=2 scaleH=2 pages=1 packed=0
page id=0 file="atlas.png"
chars count=1
char id=65 x=0 y=0 width=2 height=2 xoffset=0 yoffset=0 xadvance=3 page=0 chnl=15
`

func TestBitmapFontLoader(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "atlas.png"), buf.Bytes(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.fnt"), []byte(testFontDescriptor), 0o644))

	v, err := (&BitmapFontLoader{}).Load(filepath.Join(dir, "test.fnt"))
	require.NoError(t, err)
	f, ok := v.(*BitmapFont)
	require.True(t, ok)
	assert.Equal(t, uint16(3), f.Font.CellWidth)
	assert.Equal(t, uint16(4), f.Font.CellHeight)
	// the atlas has a translucent texel, so alpha is kept
	assert.Equal(t, []byte{255, 255, 255, 128}, f.Atlas)
}

func TestEncodeShaderParses(t *testing.T) {
	blob, err := EncodeShader(&ShaderDesc{
		Stage:         gpu.StageFragment,
		IOHash:        42,
		AttributeMask: 1,
		ConstantSize:  32,
		Uniforms: []UniformDecl{
			{Name: "u_viewRect", Type: uniform.Vec4, Num: 1, RegIndex: 0, RegCount: 1},
			{Name: "s_tex", Type: uniform.Sampler, Num: 1, RegIndex: 0, RegCount: 1},
		},
		Code:        []byte{9, 9, 9, 9},
		WritesDepth: true,
	})
	require.NoError(t, err)

	var names []string
	s, err := ParseShader(blob, func(name string, typ uniform.Type, num uint16) (metadata.UniformHandle, error) {
		names = append(names, name)
		return 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(42), s.IOHash())
	assert.True(t, s.WritesDepth())
	assert.Equal(t, []string{"s_tex"}, names)
	require.Len(t, s.Predefined(), 1)
	assert.Equal(t, uniform.ViewRect, s.Predefined()[0].Type)

	_, err = EncodeShader(&ShaderDesc{Stage: gpu.Stage(9)})
	assert.ErrorIs(t, err, ErrBadShader)
}
