package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/rendercore/engine/assets/loaders"
	"github.com/spaghettifunk/rendercore/engine/renderer/backend"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
	"github.com/spaghettifunk/rendercore/engine/renderer/uniform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vertexManifest = `
stage = "vertex"
code = "tri.vert.spv"
attributes = ["POSITION", "color0"]
varyings = ["v_color0"]
constant_size = 80

[[uniforms]]
name = "u_modelViewProj"
type = "mat4"
reg_count = 4

[[uniforms]]
name = "u_tint"
type = "vec4"
reg_index = 4
`

func TestPackManifest(t *testing.T) {
	dir := t.TempDir()
	code := []byte{0x03, 0x02, 0x23, 0x07}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tri.vert.spv"), code, 0o644))
	manifestPath := filepath.Join(dir, "vs_tri.toml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(vertexManifest), 0o644))

	dst := filepath.Join(dir, "vs_tri.bin")
	require.NoError(t, pack(manifestPath, dst))

	blob, err := os.ReadFile(dst)
	require.NoError(t, err)
	var registered []string
	s, err := loaders.ParseShader(blob, func(name string, typ uniform.Type, num uint16) (metadata.UniformHandle, error) {
		registered = append(registered, name)
		return 0, nil
	})
	require.NoError(t, err)

	assert.Equal(t, gpu.StageVertex, s.Stage())
	assert.Equal(t, code, s.Bytecode())
	assert.Equal(t, uint32(1<<backend.AttribPosition|1<<backend.AttribColor0), s.AttributeMask())
	assert.Equal(t, uint32(80), s.ConstantSize())
	assert.Equal(t, ioHash([]string{"v_color0"}), s.IOHash())
	assert.Equal(t, []string{"u_tint"}, registered)
	require.Len(t, s.Predefined(), 1)
	assert.Equal(t, uint16(4), s.Predefined()[0].Count)
}

func TestManifestErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := (&manifest{Stage: "geometry", Code: "x"}).desc(dir)
	assert.ErrorContains(t, err, "unknown stage")

	_, err = (&manifest{Stage: "vs", Code: "x", Attributes: []string{"FOO"}}).desc(dir)
	assert.ErrorContains(t, err, "unknown attribute")

	_, err = (&manifest{Stage: "fs", Code: "x", Uniforms: []uniformEntry{{Name: "u", Type: "vec3"}}}).desc(dir)
	assert.ErrorContains(t, err, "unknown uniform type")

	_, err = (&manifest{Stage: "cs"}).desc(dir)
	assert.ErrorContains(t, err, "no code file")

	_, err = (&manifest{Stage: "cs", Code: "missing.spv"}).desc(dir)
	assert.Error(t, err)
}

func TestIOHash(t *testing.T) {
	assert.Zero(t, ioHash(nil))
	assert.Equal(t, ioHash([]string{"a", "b"}), ioHash([]string{"a", "b"}))
	assert.NotEqual(t, ioHash([]string{"a", "b"}), ioHash([]string{"b", "a"}))
}
