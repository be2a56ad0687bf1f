package uniform

import (
	"fmt"

	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
)

type Info struct {
	Name string
	Type Type
	Num  uint16
	Data []byte
}

// Registry holds the current value of every uniform created by the host.
type Registry struct {
	uniforms [metadata.MaxUniforms]*Info
	byName   map[string]metadata.UniformHandle
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]metadata.UniformHandle)}
}

// Create registers a uniform at handle h with a zeroed value.
func (r *Registry) Create(h metadata.UniformHandle, name string, t Type, num uint16) error {
	if !h.IsValid() || int(h) >= len(r.uniforms) {
		return fmt.Errorf("uniform %q: %w", name, core.ErrInvalidHandle)
	}
	r.uniforms[h] = &Info{
		Name: name,
		Type: t,
		Num:  num,
		Data: make([]byte, t.Size()*uint32(num)),
	}
	r.byName[name] = h
	return nil
}

func (r *Registry) Destroy(h metadata.UniformHandle) {
	if !h.IsValid() || int(h) >= len(r.uniforms) || r.uniforms[h] == nil {
		return
	}
	delete(r.byName, r.uniforms[h].Name)
	r.uniforms[h] = nil
}

func (r *Registry) Get(h metadata.UniformHandle) *Info {
	if !h.IsValid() || int(h) >= len(r.uniforms) {
		return nil
	}
	return r.uniforms[h]
}

func (r *Registry) Lookup(name string) (metadata.UniformHandle, bool) {
	h, ok := r.byName[name]
	return h, ok
}

// Set overwrites the first len(data) bytes of the value of h.
func (r *Registry) Set(h metadata.UniformHandle, data []byte) error {
	u := r.Get(h)
	if u == nil {
		return fmt.Errorf("uniform %d: %w", h, core.ErrInvalidHandle)
	}
	if len(data) > len(u.Data) {
		data = data[:len(u.Data)]
	}
	copy(u.Data, data)
	return nil
}

// Update applies a frame uniform stream, where each op's loc is the handle
// of the uniform it sets.
func (r *Registry) Update(stream []byte) (int, error) {
	rd := NewReader(stream)
	n := 0
	for {
		op, payload, _, ok := rd.Next()
		if !ok {
			break
		}
		if !op.Copy {
			continue
		}
		if err := r.Set(metadata.UniformHandle(op.Loc), payload); err != nil {
			core.Assert(false, "frame uniform stream: %v", err)
			continue
		}
		n++
	}
	return n, rd.Err()
}
