package assets

import (
	"path/filepath"
	"strings"
)

type Loader interface {
	// Load returns a loader specific value, e.g. *loaders.Shader.
	Load(path string) (interface{}, error)
}

type Type uint8

const (
	TypeNone Type = iota
	TypeShader
	TypeTexture
	TypeFont
	TypeConfig
)

func (t Type) String() string {
	switch t {
	case TypeShader:
		return "shader"
	case TypeTexture:
		return "texture"
	case TypeFont:
		return "font"
	case TypeConfig:
		return "config"
	}
	return "none"
}

func determineAssetType(path string) Type {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bin", ".shader":
		return TypeShader
	case ".png", ".jpg", ".jpeg", ".tga", ".bmp", ".tif", ".tiff", ".webp":
		return TypeTexture
	case ".fnt":
		return TypeFont
	case ".toml":
		return TypeConfig
	default:
		return TypeNone
	}
}
