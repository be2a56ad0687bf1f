package statecache

import (
	"fmt"

	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
)

// States groups one cache per state class. It lives as long as the device
// that created its objects.
type States struct {
	Blend        *Cache[gpu.BlendState]
	DepthStencil *Cache[gpu.DepthStencilState]
	Rasterizer   *Cache[gpu.RasterizerState]
	Sampler      *Cache[gpu.SamplerState]
	InputLayout  *Cache[gpu.InputLayout]
}

func NewStates() *States {
	return &States{
		Blend:        New[gpu.BlendState](),
		DepthStencil: New[gpu.DepthStencilState](),
		Rasterizer:   New[gpu.RasterizerState](),
		Sampler:      New[gpu.SamplerState](),
		InputLayout:  New[gpu.InputLayout](),
	}
}

func (s *States) BlendState(dev gpu.Device, state uint64, rgba uint32) (gpu.BlendState, error) {
	return s.Blend.FindOrCreate(BlendHash(state, rgba), func() (gpu.BlendState, error) {
		bs, err := dev.CreateBlendState(BlendDesc(state, rgba))
		if err != nil {
			return nil, fmt.Errorf("blend state 0x%016x: %w", state, err)
		}
		return bs, nil
	})
}

func (s *States) DepthStencilState(dev gpu.Device, state, stencil uint64) (gpu.DepthStencilState, error) {
	return s.DepthStencil.FindOrCreate(DepthStencilHash(state, stencil), func() (gpu.DepthStencilState, error) {
		ds, err := dev.CreateDepthStencilState(DepthStencilDesc(state, stencil))
		if err != nil {
			return nil, fmt.Errorf("depth stencil state 0x%016x/0x%016x: %w", state, stencil, err)
		}
		return ds, nil
	})
}

func (s *States) RasterizerState(dev gpu.Device, state uint64, wireframe, scissor bool) (gpu.RasterizerState, error) {
	return s.Rasterizer.FindOrCreate(RasterizerHash(state, wireframe, scissor), func() (gpu.RasterizerState, error) {
		rs, err := dev.CreateRasterizerState(RasterizerDesc(state, wireframe, scissor))
		if err != nil {
			return nil, fmt.Errorf("rasterizer state 0x%016x: %w", state, err)
		}
		return rs, nil
	})
}

func (s *States) SamplerState(dev gpu.Device, flags uint32, border [4]float32) (gpu.SamplerState, error) {
	return s.Sampler.FindOrCreate(SamplerHash(flags, border), func() (gpu.SamplerState, error) {
		ss, err := dev.CreateSamplerState(SamplerDesc(flags, dev.Caps().MaxAnisotropy, border))
		if err != nil {
			return nil, fmt.Errorf("sampler state 0x%08x: %w", flags, err)
		}
		return ss, nil
	})
}

// InputLayoutState caches an input layout under a hash the caller computed
// from the vertex layouts, the vertex shader and the instance stride.
func (s *States) InputLayoutState(dev gpu.Device, hash uint32, desc func() gpu.InputLayoutDesc) (gpu.InputLayout, error) {
	return s.InputLayout.FindOrCreate(hash, func() (gpu.InputLayout, error) {
		il, err := dev.CreateInputLayout(desc())
		if err != nil {
			return nil, fmt.Errorf("input layout 0x%08x: %w", hash, err)
		}
		return il, nil
	})
}

// Invalidate releases every cached object of every class.
func (s *States) Invalidate() {
	s.Blend.Invalidate()
	s.DepthStencil.Invalidate()
	s.Rasterizer.Invalidate()
	s.Sampler.Invalidate()
	s.InputLayout.Invalidate()
}
