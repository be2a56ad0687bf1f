package metadata

type BindingKind uint8

const (
	BindNone BindingKind = iota
	BindTexture
	BindVertexBuffer
	BindIndexBuffer
)

type Access uint8

const (
	AccessRead Access = iota
	AccessWrite
	AccessReadWrite
)

// Binding describes what sits in one shader resource slot.
type Binding struct {
	Handle       uint16
	Kind         BindingKind
	Access       Access
	Mip          uint8
	SamplerFlags uint32
}

func (b Binding) IsBound() bool {
	return b.Kind != BindNone && b.Handle != InvalidHandle
}

// Binds is the slot table of one render item.
type Binds [MaxTextureSamplers]Binding

func NewBinds() Binds {
	var b Binds
	b.Clear()
	return b
}

func (b *Binds) Clear() {
	for i := range b {
		b[i] = Binding{Handle: InvalidHandle}
	}
}

func (b *Binds) SetTexture(slot int, h TextureHandle, samplerFlags uint32) {
	b[slot] = Binding{
		Handle:       uint16(h),
		Kind:         BindTexture,
		Access:       AccessRead,
		SamplerFlags: samplerFlags,
	}
}

// SetImage binds a texture mip for compute access.
func (b *Binds) SetImage(slot int, h TextureHandle, mip uint8, access Access) {
	b[slot] = Binding{
		Handle: uint16(h),
		Kind:   BindTexture,
		Access: access,
		Mip:    mip,
	}
}

func (b *Binds) SetBuffer(slot int, kind BindingKind, h uint16, access Access) {
	b[slot] = Binding{
		Handle: h,
		Kind:   kind,
		Access: access,
	}
}
