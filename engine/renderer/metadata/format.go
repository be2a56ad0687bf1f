package metadata

type TextureFormat uint8

const (
	FormatUnknown TextureFormat = iota
	FormatR8
	FormatRG8
	FormatRGBA8
	FormatBGRA8
	FormatRGBA16F
	FormatRGBA32F
	FormatR32F
	FormatR32U
	FormatD16
	FormatD24S8
	FormatD32F
	FormatCount
)

type FormatInfo struct {
	Name         string
	BitsPerPixel uint8
	Depth        bool
	Stencil      bool
}

var formatInfo = [FormatCount]FormatInfo{
	FormatUnknown: {Name: "Unknown"},
	FormatR8:      {Name: "R8", BitsPerPixel: 8},
	FormatRG8:     {Name: "RG8", BitsPerPixel: 16},
	FormatRGBA8:   {Name: "RGBA8", BitsPerPixel: 32},
	FormatBGRA8:   {Name: "BGRA8", BitsPerPixel: 32},
	FormatRGBA16F: {Name: "RGBA16F", BitsPerPixel: 64},
	FormatRGBA32F: {Name: "RGBA32F", BitsPerPixel: 128},
	FormatR32F:    {Name: "R32F", BitsPerPixel: 32},
	FormatR32U:    {Name: "R32U", BitsPerPixel: 32},
	FormatD16:     {Name: "D16", BitsPerPixel: 16, Depth: true},
	FormatD24S8:   {Name: "D24S8", BitsPerPixel: 32, Depth: true, Stencil: true},
	FormatD32F:    {Name: "D32F", BitsPerPixel: 32, Depth: true},
}

func (f TextureFormat) Info() FormatInfo {
	if f >= FormatCount {
		return formatInfo[FormatUnknown]
	}
	return formatInfo[f]
}

func (f TextureFormat) String() string {
	return f.Info().Name
}

func (f TextureFormat) IsDepth() bool {
	return f.Info().Depth
}

func (f TextureFormat) HasStencil() bool {
	return f.Info().Stencil
}

// Pitch returns the byte size of one row of width pixels.
func (f TextureFormat) Pitch(width uint32) uint32 {
	return width * uint32(f.Info().BitsPerPixel) / 8
}

// Resolution is what the host asks the swap chain to be.
type Resolution struct {
	Width           uint32
	Height          uint32
	Format          TextureFormat
	Reset           ResetFlags
	NumBackBuffers  uint8
	MaxFrameLatency uint8
}

// NeedsRecreate reports whether moving from r to next changes the sample
// count, which cannot be done with an in-place buffer resize.
func (r Resolution) NeedsRecreate(next Resolution) bool {
	return r.Reset.MSAASamples() != next.Reset.MSAASamples() ||
		r.NumBackBuffers != next.NumBackBuffers
}

// Differs reports whether a resize or reset is needed at all.
func (r Resolution) Differs(next Resolution) bool {
	return r.Width != next.Width ||
		r.Height != next.Height ||
		r.Format != next.Format ||
		r.Reset != next.Reset ||
		r.NumBackBuffers != next.NumBackBuffers ||
		r.MaxFrameLatency != next.MaxFrameLatency
}
