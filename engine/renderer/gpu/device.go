package gpu

import "github.com/spaghettifunk/rendercore/engine/renderer/metadata"

// Object is any native object owned by the renderer.
type Object interface {
	Release()
}

type BlendState interface{ Object }
type DepthStencilState interface{ Object }
type RasterizerState interface{ Object }
type SamplerState interface{ Object }
type InputLayout interface{ Object }
type Program interface{ Object }
type Query interface{ Object }

// View is a typed interpretation of a texture or buffer: shader resource,
// unordered access, render target or depth stencil.
type View interface{ Object }

type Texture interface {
	Object
	Desc() TextureDesc
}

type Buffer interface {
	Object
	Desc() BufferDesc
}

type SwapChain interface {
	Object
	Desc() SwapChainDesc
	BackBuffer() (Texture, error)
	ResizeBuffers(width, height uint32, format metadata.TextureFormat, count uint8) Code
	Present(syncInterval uint32) Code
}

// Device creates native objects. Creation failures are returned as errors
// built with Check.
type Device interface {
	Caps() Caps
	Context() Context

	CreateBlendState(desc BlendDesc) (BlendState, error)
	CreateDepthStencilState(desc DepthStencilDesc) (DepthStencilState, error)
	CreateRasterizerState(desc RasterizerDesc) (RasterizerState, error)
	CreateSamplerState(desc SamplerDesc) (SamplerState, error)
	CreateInputLayout(desc InputLayoutDesc) (InputLayout, error)

	CreateTexture(desc TextureDesc, data []byte) (Texture, error)
	CreateBuffer(desc BufferDesc, data []byte) (Buffer, error)
	CreateShaderResourceView(res Object, desc ViewDesc) (View, error)
	CreateUnorderedAccessView(res Object, desc ViewDesc) (View, error)
	CreateRenderTargetView(tex Texture, desc ViewDesc) (View, error)
	CreateDepthStencilView(tex Texture, desc ViewDesc) (View, error)

	CreateProgram(vs, fs []byte) (Program, error)
	CreateComputeProgram(cs []byte) (Program, error)
	CreateQuery(kind QueryKind) (Query, error)
	CreateSwapChain(desc SwapChainDesc) (SwapChain, error)

	// Trim releases driver-internal memory while the application is suspended.
	Trim()
	// Status reports whether the device has been removed.
	Status() Code
	Release()
}

// Context records and submits commands on the render goroutine.
type Context interface {
	SetBlendState(s BlendState, factor [4]float32)
	SetDepthStencilState(s DepthStencilState, stencilRef uint8)
	SetRasterizerState(s RasterizerState)
	SetPrimitiveTopology(t metadata.Topology)
	SetViewport(r metadata.Rect)
	SetScissor(r metadata.Rect)
	SetRenderTargets(colors []View, depth View)
	ClearRenderTarget(v View, color [4]float32)
	ClearDepthStencil(v View, flags metadata.ClearFlags, depth float32, stencil uint8)

	SetProgram(p Program)
	SetComputeProgram(p Program)
	SetInputLayout(l InputLayout)
	SetVertexBuffers(start uint32, bufs []Buffer, strides, offsets []uint32)
	SetIndexBuffer(b Buffer, format IndexFormat, offset uint32)
	SetShaderResource(stage Stage, slot uint32, v View)
	SetSampler(stage Stage, slot uint32, s SamplerState)
	SetUnorderedAccess(slot uint32, v View)
	UpdateConstants(stage Stage, data []byte)
	// UpdateBuffer writes data at offset. discard lets the driver rename the
	// whole buffer, otherwise the write must not overlap in-flight ranges.
	UpdateBuffer(b Buffer, offset uint32, data []byte, discard bool)

	Draw(vertexCount, instanceCount, startVertex, startInstance uint32)
	DrawIndexed(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32)
	DrawIndirect(b Buffer, offset uint32)
	DrawIndexedIndirect(b Buffer, offset uint32)
	Dispatch(x, y, z uint32)
	DispatchIndirect(b Buffer, offset uint32)

	CopyTextureRegion(dst Texture, dstMip uint8, dx, dy, dz uint32, src Texture, srcMip uint8, box Box)
	ResolveSubresource(dst, src Texture)
	ReadTexture(t Texture) ([]byte, error)

	BeginQuery(q Query)
	EndQuery(q Query)
	// GetQueryData polls q; WasStillDrawing means not ready yet. flush false
	// must never force a GPU stall.
	GetQueryData(q Query, flush bool) (QueryResult, Code)

	Flush() Code
	ClearState()
}

// MultiDrawIndirect is implemented by contexts exposing a vendor multi-draw
// extension.
type MultiDrawIndirect interface {
	MultiDrawIndirect(count uint32, b Buffer, offset, stride uint32)
	MultiDrawIndexedIndirect(count uint32, b Buffer, offset, stride uint32)
}
