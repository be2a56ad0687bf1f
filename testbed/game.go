package testbed

import (
	"encoding/binary"
	"math"

	"github.com/spaghettifunk/rendercore/engine"
	"github.com/spaghettifunk/rendercore/engine/assets"
	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/engine/renderer/backend"
	"github.com/spaghettifunk/rendercore/engine/renderer/components"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
	"github.com/spaghettifunk/rendercore/engine/renderer/uniform"
)

const (
	triangleVS = "shaders/vs_triangle.bin"
	triangleFS = "shaders/fs_triangle.bin"

	viewMain uint8 = 0
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	engine *engine.Engine

	width  uint32
	height uint32
	time   float64
	camera *components.Camera

	program metadata.ProgramHandle
	layout  metadata.VertexLayoutHandle
	vb      metadata.VertexBufferHandle
	tint    metadata.UniformHandle

	text     *metadata.TextVideoMem
	uniforms *uniform.Writer
}

func NewTestGame() (*TestGame, error) {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				Name:       "rendercore testbed",
				ConfigPath: "config.toml",
				TargetFPS:  120,
			},
			State: &gameState{
				program:  metadata.InvalidProgram,
				layout:   metadata.InvalidVertexLayout,
				vb:       metadata.InvalidVertexBuffer,
				tint:     metadata.InvalidUniform,
				camera:   components.NewCamera(),
				text:     metadata.NewTextVideoMem(40, 3),
				uniforms: uniform.NewWriter(),
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnCreateResources = tg.CreateResources
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnOnAssetChanged = tg.OnAssetChanged
	tg.FnShutdown = tg.Shutdown

	return tg, nil
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize(e *engine.Engine) error {
	core.LogInfo("initializing testbed...")
	g.state().engine = e
	return nil
}

// triangleVertices is position float3 followed by color ubyte4 normalized.
func triangleVertices() []byte {
	type vertex struct {
		x, y, z float32
		rgba    uint32
	}
	verts := []vertex{
		{0.0, 0.5, 0.0, 0xff0000ff},
		{0.5, -0.5, 0.0, 0xff00ff00},
		{-0.5, -0.5, 0.0, 0xffff0000},
	}
	out := make([]byte, 0, len(verts)*16)
	for _, v := range verts {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v.x))
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v.y))
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v.z))
		out = binary.LittleEndian.AppendUint32(out, v.rgba)
	}
	return out
}

// CreateResources builds the triangle when its shaders are present. Without
// them the testbed only clears the back buffer.
func (g *TestGame) CreateResources(ctx *backend.Context, am *assets.AssetManager) error {
	s := g.state()
	s.program = metadata.InvalidProgram
	s.layout = metadata.InvalidVertexLayout
	s.vb = metadata.InvalidVertexBuffer

	vs, err := am.LoadShader(triangleVS, ctx.CreateUniform)
	if err != nil {
		core.LogWarn("triangle disabled: %s", err)
		return nil
	}
	fs, err := am.LoadShader(triangleFS, ctx.CreateUniform)
	if err != nil {
		core.LogWarn("triangle disabled: %s", err)
		return nil
	}
	if s.program, err = ctx.CreateProgram(vs, fs); err != nil {
		return err
	}
	if s.layout, err = ctx.CreateVertexLayout(backend.VertexLayout{
		Attribs: []backend.VertexAttrib{
			{Attrib: backend.AttribPosition, Format: gpu.VertexFormatFloat3, Offset: 0},
			{Attrib: backend.AttribColor0, Format: gpu.VertexFormatUByte4Norm, Offset: 12},
		},
		Stride: 16,
	}); err != nil {
		return err
	}
	data := triangleVertices()
	if s.vb, err = ctx.CreateVertexBuffer(uint32(len(data)), data, s.layout, false); err != nil {
		return err
	}
	// a no-op when the shaders declared it already
	if s.tint, err = ctx.CreateUniform("u_tint", uniform.Vec4, 1); err != nil {
		return err
	}
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	s := g.state()
	s.time += deltaTime
	s.camera.Orbit(float32(0.5*deltaTime), 0)
	if s.engine == nil {
		return nil
	}
	fps, ms := s.engine.Metrics().Frame()
	stats := s.engine.Renderer().Stats()
	s.text.Clear(0)
	s.text.Printf(0, 0, 0x0f, "rendercore testbed")
	s.text.Printf(0, 1, 0x0e, "%.0f fps %.2f ms", fps, ms)
	s.text.Printf(0, 2, 0x07, "draws %d prims %d", stats.NumDraw, stats.TotalPrimsRendered())
	return nil
}

func (g *TestGame) Render(f *metadata.Frame, deltaTime float64) error {
	s := g.state()

	v := &f.Views[viewMain]
	v.Name = "main"
	s.camera.Apply(v, s.width, s.height)
	pulse := float32(0.5 + 0.5*math.Sin(s.time))
	v.Clear = metadata.Clear{
		Flags: metadata.ClearColor | metadata.ClearDepth,
		Color: [4]float32{0.1, 0.1 * pulse, 0.2, 1},
		Depth: 1,
	}
	// the render goroutine reads the grid while the next frame is built
	mem := metadata.NewTextVideoMem(s.text.Width, s.text.Height)
	copy(mem.Cells, s.text.Cells)
	f.TextVideoMem = mem

	if !s.program.IsValid() {
		return nil
	}
	d := metadata.NewDrawItem()
	d.SetVertexBuffer(0, s.vb, s.layout, 0)
	d.NumVertices = 3
	d.State = metadata.StateWriteRGB | metadata.StateWriteAlpha

	s.uniforms.Reset()
	if err := s.uniforms.WriteFloats(uniform.Vec4, uint16(s.tint), 1, []float32{1, pulse, 1, 1}); err != nil {
		return err
	}
	d.UniformBegin, d.UniformEnd = f.AppendUniforms(s.uniforms.Bytes())

	key := metadata.EncodeDraw(viewMain, s.program, 0, 0, f.NextSeq())
	return f.Add(key, d, metadata.NewBinds())
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	s := g.state()
	s.width, s.height = width, height
	return nil
}

func (g *TestGame) OnAssetChanged(path string, t assets.Type) error {
	if t != assets.TypeShader {
		return nil
	}
	core.LogInfo("shader %s changed, rebuilding the triangle", path)
	s := g.state()
	return s.engine.Renderer().Do(func(ctx *backend.Context) error {
		if s.program.IsValid() {
			ctx.DestroyProgram(s.program)
		}
		if s.vb.IsValid() {
			ctx.DestroyVertexBuffer(s.vb)
		}
		if s.layout.IsValid() {
			ctx.DestroyVertexLayout(s.layout)
		}
		return g.CreateResources(ctx, s.engine.Assets())
	})
}

func (g *TestGame) Shutdown() error {
	core.LogInfo("shutting down testbed")
	return nil
}
