//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

const shaderDir = "assets/shaders"

// Compiles every GLSL shader under assets/shaders to SPIR-V and packs it with
// its manifest into an engine shader blob.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the testbed binary.
func (Build) Testbed() error {
	_, err := executeCmd("go", withArgs("build", "-o", "bin/testbed", "."), withStream())
	return err
}

func buildShaders() error {
	sources, err := filepath.Glob(filepath.Join(shaderDir, "*.glsl"))
	if err != nil {
		return err
	}
	for _, src := range sources {
		base := strings.TrimSuffix(src, ".glsl")
		stage := "vertex"
		switch {
		case strings.HasPrefix(filepath.Base(base), "fs_"):
			stage = "fragment"
		case strings.HasPrefix(filepath.Base(base), "cs_"):
			stage = "compute"
		}
		spv := base + ".spv"
		if _, err := executeCmd("glslc", withArgs("-fshader-stage="+stage, src, "-o", spv), withStream()); err != nil {
			return err
		}
		manifest := base + ".toml"
		if _, err := os.Stat(manifest); err != nil {
			return fmt.Errorf("%s has no manifest: %w", src, err)
		}
		if _, err := executeCmd("go", withArgs("run", "./cmd/shaderpack", "-o", base+".bin", manifest), withStream()); err != nil {
			return err
		}
	}
	return nil
}
