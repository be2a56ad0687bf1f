// Package noop is a headless device that executes nothing and records every
// call it receives. Hosts without a GPU and the tests of the renderer use it.
package noop

import (
	"sync"

	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
)

// Call is one recorded device or context call.
type Call struct {
	Name string
	Args []interface{}
}

// Object is the native object handed out by the noop device.
type Object struct {
	ID       uint64
	Kind     string
	Released bool
	dev      *Device
}

func (o *Object) Release() {
	o.dev.mu.Lock()
	defer o.dev.mu.Unlock()
	if !o.Released {
		o.Released = true
		o.dev.live--
	}
}

type Texture struct {
	Object
	desc gpu.TextureDesc
}

func (t *Texture) Desc() gpu.TextureDesc { return t.desc }

type Buffer struct {
	Object
	desc gpu.BufferDesc
	Data []byte
}

func (b *Buffer) Desc() gpu.BufferDesc { return b.desc }

type Query struct {
	Object
	kind      gpu.QueryKind
	pollsLeft int
	ended     bool
	begin     uint64
	end       uint64
	samples   uint64
	// serial is the submission carrying the end of the query.
	serial uint64
}

// Device is safe for use from several goroutines so tests can complete
// queries while the render goroutine is draining.
type Device struct {
	mu     sync.Mutex
	caps   gpu.Caps
	ctx    *Context
	calls  []Call
	nextID uint64
	live   int
	ticks  uint64
	serial uint64

	// QueryLatency is how many polls a query needs before it resolves. A
	// negative value keeps queries pending until CompleteQueries.
	QueryLatency int
	// Samples is what the next ended occlusion query reports.
	Samples uint64
	// DeferSubmit keeps ended queries in unsubmitted commands until Flush,
	// Present or a flushing GetQueryData.
	DeferSubmit bool
	// PresentCode and FlushCode are returned by Present and Flush.
	PresentCode gpu.Code
	FlushCode   gpu.Code
	// Unsupported present modes fail CreateSwapChain.
	Unsupported map[gpu.PresentMode]bool

	fail map[string]gpu.Code
}

func NewDevice() *Device {
	d := &Device{
		caps: gpu.Caps{
			Vendor:             "noop",
			DeviceName:         "noop",
			MaxTextureSize:     16384,
			MaxAnisotropy:      16,
			MaxMSAA:            16,
			ConstantBufferSize: 64 << 10,
			Compute:            true,
			DrawIndirect:       true,
			TimestampQuery:     true,
			OcclusionQuery:     true,
		},
		Samples:     1,
		Unsupported: make(map[gpu.PresentMode]bool),
		fail:        make(map[string]gpu.Code),
	}
	d.ctx = &Context{dev: d}
	return d
}

// SetCaps replaces the reported capabilities.
func (d *Device) SetCaps(c gpu.Caps) {
	d.caps = c
}

// FailNext makes the next call named name fail with code.
func (d *Device) FailNext(name string, code gpu.Code) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail[name] = code
}

func (d *Device) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.calls))
	copy(out, d.calls)
	return out
}

// Names returns the recorded call names in order.
func (d *Device) Names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	for i, c := range d.calls {
		out[i] = c.Name
	}
	return out
}

func (d *Device) Count(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c.Name == name {
			n++
		}
	}
	return n
}

func (d *Device) NumCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func (d *Device) ResetCalls() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = d.calls[:0]
}

// Live is the number of created objects not yet released.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

// CompleteQueries resolves every ended query on its next poll.
func (d *Device) CompleteQueries() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.QueryLatency = 0
}

func (d *Device) submit() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.serial++
}

func (d *Device) record(name string, args ...interface{}) gpu.Code {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Name: name, Args: args})
	if c, ok := d.fail[name]; ok {
		delete(d.fail, name)
		return c
	}
	return gpu.OK
}

func (d *Device) object(kind string) Object {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.live++
	return Object{ID: d.nextID, Kind: kind, dev: d}
}

func (d *Device) create(name string, args ...interface{}) (*Object, error) {
	if code := d.record(name, args...); code != gpu.OK {
		return nil, gpu.Check(name, code)
	}
	o := d.object(name)
	return &o, nil
}

func (d *Device) Caps() gpu.Caps        { return d.caps }
func (d *Device) Context() gpu.Context  { return d.ctx }
func (d *Device) NoopContext() *Context { return d.ctx }

func (d *Device) CreateBlendState(desc gpu.BlendDesc) (gpu.BlendState, error) {
	o, err := d.create("CreateBlendState", desc)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (d *Device) CreateDepthStencilState(desc gpu.DepthStencilDesc) (gpu.DepthStencilState, error) {
	o, err := d.create("CreateDepthStencilState", desc)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (d *Device) CreateRasterizerState(desc gpu.RasterizerDesc) (gpu.RasterizerState, error) {
	o, err := d.create("CreateRasterizerState", desc)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (d *Device) CreateSamplerState(desc gpu.SamplerDesc) (gpu.SamplerState, error) {
	o, err := d.create("CreateSamplerState", desc)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (d *Device) CreateInputLayout(desc gpu.InputLayoutDesc) (gpu.InputLayout, error) {
	o, err := d.create("CreateInputLayout", desc)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (d *Device) CreateTexture(desc gpu.TextureDesc, data []byte) (gpu.Texture, error) {
	if code := d.record("CreateTexture", desc); code != gpu.OK {
		return nil, gpu.Check("CreateTexture", code)
	}
	return &Texture{Object: d.object("Texture"), desc: desc}, nil
}

func (d *Device) CreateBuffer(desc gpu.BufferDesc, data []byte) (gpu.Buffer, error) {
	if code := d.record("CreateBuffer", desc); code != gpu.OK {
		return nil, gpu.Check("CreateBuffer", code)
	}
	b := &Buffer{Object: d.object("Buffer"), desc: desc, Data: make([]byte, desc.Size)}
	copy(b.Data, data)
	return b, nil
}

func (d *Device) CreateShaderResourceView(res gpu.Object, desc gpu.ViewDesc) (gpu.View, error) {
	o, err := d.create("CreateShaderResourceView", res, desc)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (d *Device) CreateUnorderedAccessView(res gpu.Object, desc gpu.ViewDesc) (gpu.View, error) {
	o, err := d.create("CreateUnorderedAccessView", res, desc)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (d *Device) CreateRenderTargetView(tex gpu.Texture, desc gpu.ViewDesc) (gpu.View, error) {
	o, err := d.create("CreateRenderTargetView", tex, desc)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (d *Device) CreateDepthStencilView(tex gpu.Texture, desc gpu.ViewDesc) (gpu.View, error) {
	o, err := d.create("CreateDepthStencilView", tex, desc)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (d *Device) CreateProgram(vs, fs []byte) (gpu.Program, error) {
	o, err := d.create("CreateProgram", len(vs), len(fs))
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (d *Device) CreateComputeProgram(cs []byte) (gpu.Program, error) {
	o, err := d.create("CreateComputeProgram", len(cs))
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (d *Device) CreateQuery(kind gpu.QueryKind) (gpu.Query, error) {
	if code := d.record("CreateQuery", kind); code != gpu.OK {
		return nil, gpu.Check("CreateQuery", code)
	}
	return &Query{Object: d.object("Query"), kind: kind}, nil
}

func (d *Device) CreateSwapChain(desc gpu.SwapChainDesc) (gpu.SwapChain, error) {
	code := d.record("CreateSwapChain", desc.Mode, desc.Width, desc.Height)
	if code == gpu.OK && d.Unsupported[desc.Mode] {
		code = gpu.Unsupported
	}
	if code != gpu.OK {
		return nil, gpu.Check("CreateSwapChain", code)
	}
	sc := &SwapChain{Object: d.object("SwapChain"), dev: d, desc: desc}
	sc.newBackBuffer()
	return sc, nil
}

func (d *Device) Trim() {
	d.record("Trim")
}

func (d *Device) Status() gpu.Code {
	return d.record("Status")
}

func (d *Device) Release() {
	d.record("Release")
}

type SwapChain struct {
	Object
	dev  *Device
	desc gpu.SwapChainDesc
	back *Texture
}

func (s *SwapChain) newBackBuffer() {
	s.back = &Texture{
		Object: s.dev.object("BackBuffer"),
		desc: gpu.TextureDesc{
			Width:   s.desc.Width,
			Height:  s.desc.Height,
			Depth:   1,
			Mips:    1,
			Layers:  1,
			Format:  s.desc.Format,
			Samples: 1,
			Usage:   gpu.UsageRenderTarget,
		},
	}
}

func (s *SwapChain) Desc() gpu.SwapChainDesc { return s.desc }

func (s *SwapChain) BackBuffer() (gpu.Texture, error) {
	return s.back, nil
}

func (s *SwapChain) ResizeBuffers(width, height uint32, format metadata.TextureFormat, count uint8) gpu.Code {
	code := s.dev.record("ResizeBuffers", width, height)
	if code != gpu.OK {
		return code
	}
	s.desc.Width, s.desc.Height, s.desc.Format = width, height, format
	if count != 0 {
		s.desc.BufferCount = count
	}
	s.back.Release()
	s.newBackBuffer()
	return gpu.OK
}

func (s *SwapChain) Present(syncInterval uint32) gpu.Code {
	if code := s.dev.record("Present", syncInterval); code != gpu.OK {
		return code
	}
	s.dev.submit()
	return s.dev.PresentCode
}
