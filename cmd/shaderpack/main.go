// Command shaderpack wraps compiled SPIR-V into the engine's shader blob
// format, using a TOML manifest for the reflection data.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/rendercore/engine/assets/loaders"
)

func main() {
	out := flag.String("o", "", "Output blob (default: manifest name with .bin)")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: shaderpack [-o out.bin] manifest.toml...")
		os.Exit(2)
	}
	if *out != "" && flag.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "Error: -o needs a single manifest")
		os.Exit(2)
	}

	for _, path := range flag.Args() {
		dst := *out
		if dst == "" {
			dst = strings.TrimSuffix(path, filepath.Ext(path)) + ".bin"
		}
		if err := pack(path, dst); err != nil {
			fmt.Fprintf(os.Stderr, "Error packing %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("%s -> %s\n", path, dst)
	}
}

func pack(path, dst string) error {
	m, err := loadManifest(path)
	if err != nil {
		return err
	}
	d, err := m.desc(filepath.Dir(path))
	if err != nil {
		return err
	}
	blob, err := loaders.EncodeShader(d)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, blob, 0o644)
}
