package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/rendercore/engine/assets/loaders"
	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/backend"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/uniform"
)

type uniformEntry struct {
	Name     string `toml:"name"`
	Type     string `toml:"type"`
	Num      uint8  `toml:"num"`
	RegIndex uint16 `toml:"reg_index"`
	RegCount uint16 `toml:"reg_count"`
}

// manifest describes one compiled shader next to its SPIR-V file.
type manifest struct {
	Stage        string         `toml:"stage"`
	Code         string         `toml:"code"`
	Attributes   []string       `toml:"attributes"`
	Varyings     []string       `toml:"varyings"`
	ConstantSize uint16         `toml:"constant_size"`
	WritesDepth  bool           `toml:"writes_depth"`
	Uniforms     []uniformEntry `toml:"uniforms"`
}

func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := &manifest{}
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return m, nil
}

func parseStage(s string) (gpu.Stage, error) {
	switch strings.ToLower(s) {
	case "vertex", "vs":
		return gpu.StageVertex, nil
	case "fragment", "fs":
		return gpu.StageFragment, nil
	case "compute", "cs":
		return gpu.StageCompute, nil
	}
	return 0, fmt.Errorf("unknown stage %q", s)
}

// ioHash identifies the varyings. Vertex and fragment manifests list them in
// the same order.
func ioHash(varyings []string) uint32 {
	if len(varyings) == 0 {
		return 0
	}
	return core.HashMurmur2A([]byte(strings.Join(varyings, ";")))
}

// desc resolves the manifest into a shader description; code is read
// relative to dir.
func (m *manifest) desc(dir string) (*loaders.ShaderDesc, error) {
	stage, err := parseStage(m.Stage)
	if err != nil {
		return nil, err
	}
	d := &loaders.ShaderDesc{
		Stage:        stage,
		IOHash:       ioHash(m.Varyings),
		ConstantSize: m.ConstantSize,
		WritesDepth:  m.WritesDepth,
	}
	for _, name := range m.Attributes {
		a, ok := backend.ParseAttrib(strings.ToUpper(name))
		if !ok {
			return nil, fmt.Errorf("unknown attribute %q", name)
		}
		d.AttributeMask |= 1 << a
	}
	for _, u := range m.Uniforms {
		t, err := uniform.ParseType(u.Type)
		if err != nil {
			return nil, fmt.Errorf("uniform %s: %w", u.Name, err)
		}
		d.Uniforms = append(d.Uniforms, loaders.UniformDecl{
			Name:     u.Name,
			Type:     t,
			Num:      max(u.Num, 1),
			RegIndex: u.RegIndex,
			RegCount: max(u.RegCount, 1),
		})
	}
	if m.Code == "" {
		return nil, fmt.Errorf("manifest names no code file")
	}
	code := m.Code
	if !filepath.IsAbs(code) {
		code = filepath.Join(dir, code)
	}
	if d.Code, err = os.ReadFile(code); err != nil {
		return nil, err
	}
	return d, nil
}
