package renderer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"runtime"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/program"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// uniformAlignment is the minimum uniform buffer offset alignment guaranteed by WebGPU.
	uniformAlignment = 256

	// uniformChunkSize is the size of one uniform arena buffer.
	uniformChunkSize = 64 * 1024
)

// wgpuTexture is the wgpu implementation of gpu.Texture.
type wgpuTexture struct {
	label    string
	width    int
	height   int
	format   gpu.TextureFormat
	texture  *wgpu.Texture
	view     *wgpu.TextureView
	released bool
}

var _ gpu.Texture = &wgpuTexture{}

func (t *wgpuTexture) Label() string             { return t.label }
func (t *wgpuTexture) Width() int                { return t.width }
func (t *wgpuTexture) Height() int               { return t.height }
func (t *wgpuTexture) Format() gpu.TextureFormat { return t.format }
func (t *wgpuTexture) Released() bool            { return t.released }

// wgpuFramebuffer is the wgpu implementation of gpu.Framebuffer.
type wgpuFramebuffer struct {
	label  string
	width  int
	height int
	colors []*wgpuTexture
	depth  *wgpuTexture
}

var _ gpu.Framebuffer = &wgpuFramebuffer{}

func (f *wgpuFramebuffer) Label() string { return f.label }
func (f *wgpuFramebuffer) Width() int    { return f.width }
func (f *wgpuFramebuffer) Height() int   { return f.height }

func (f *wgpuFramebuffer) ColorAttachments() []gpu.Texture {
	out := make([]gpu.Texture, len(f.colors))
	for i, c := range f.colors {
		out[i] = c
	}
	return out
}

func (f *wgpuFramebuffer) DepthAttachment() gpu.Texture {
	if f.depth == nil {
		return nil
	}
	return f.depth
}

// wgpuMesh is the wgpu implementation of gpu.Mesh; its buffers live on a BindGroupProvider.
type wgpuMesh struct {
	bind_group_provider.BindGroupProvider
}

var _ gpu.Mesh = &wgpuMesh{}

// pipelineKey identifies one render pipeline variant of a program.
type pipelineKey struct {
	colorFormats string
	depth        bool
	blend        gpu.BlendMode
}

// wgpuProgram holds the device objects of a compiled program. Its provider owns the bind
// group layouts and the bind groups recorded with the program during a frame.
type wgpuProgram struct {
	shader         shader.Shader
	module         *wgpu.ShaderModule
	provider       bind_group_provider.BindGroupProvider
	pipelineLayout *wgpu.PipelineLayout
	pipelines      map[pipelineKey]*wgpu.RenderPipeline
}

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	surfaceWidth  int
	surfaceHeight int
	presentMode   wgpu.PresentMode // defaults to PresentModeImmediate (Uncapped)

	sampler  *wgpu.Sampler
	fallback *wgpuTexture
	programs map[*wgpuProgram]struct{}
	textures map[*wgpuTexture]struct{}

	// Uniform arena: 256-aligned slices of chunk buffers, rewound every frame.
	arena        bind_group_provider.BindGroupProvider
	arenaChunk   int
	arenaOffset  uint64
	arenaWrites  []bind_group_provider.BufferWrite
	drawPrograms map[*wgpuProgram]struct{}

	// Frame state for batched rendering across multiple draw calls
	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView

	target *wgpuFramebuffer
	inputs []*wgpuTexture
	blend  gpu.BlendMode
}

type wgpuRendererBackend interface {
	RendererBackend

	Device() *wgpu.Device
	Queue() *wgpu.Queue
	Instance() *wgpu.Instance
	Adapter() *wgpu.Adapter
	Surface() *wgpu.Surface

	// SetPresentMode sets the surface present mode which controls how frames are delivered to the display.
	// Takes effect on the next ConfigureSurface.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)
}

var _ wgpuRendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool, presentMode PresentMode) wgpuRendererBackend {
	runtime.LockOSThread()
	w := &wgpuRendererBackendImpl{
		mu:           &sync.Mutex{},
		instance:     wgpu.CreateInstance(nil),
		presentMode:  wgpu.PresentModeImmediate,
		programs:     make(map[*wgpuProgram]struct{}),
		textures:     make(map[*wgpuTexture]struct{}),
		drawPrograms: make(map[*wgpuProgram]struct{}),
		arena:        bind_group_provider.NewBindGroupProvider("Uniform Arena"),
	}
	w.SetPresentMode(presentMode)
	w.surface = w.instance.CreateSurface(surfaceDescriptor)

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		panic(err)
	}
	w.adapter = a

	// Programs use two bind groups; the lighting program samples nine textures and the
	// G-buffer binds four color targets, all within the default limits.
	limits := wgpu.DefaultLimits()

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		panic(err)
	}
	w.device = d
	w.queue = d.GetQueue()

	w.sampler, err = w.createSampler(common.SamplerStagingData{})
	if err != nil {
		panic(err)
	}
	fallback, err := w.CreateTexture(gpu.TextureDescriptor{Label: "Fallback Texture", Width: 1, Height: 1, Format: gpu.FormatRGBA8Unorm})
	if err != nil {
		panic(err)
	}
	if err := w.WriteTexture(fallback, common.TextureStagingData{Pixels: []byte{255, 255, 255, 255}, Width: 1, Height: 1}); err != nil {
		panic(err)
	}
	w.fallback = fallback.(*wgpuTexture)

	return w
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	width, height = max(width, 1), max(height, 1)
	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = capabilities.Formats[0]
	// The composite program applies gamma itself, so prefer a linear surface format.
	for _, f := range capabilities.Formats {
		if f == wgpu.TextureFormatBGRA8Unorm || f == wgpu.TextureFormatRGBA8Unorm {
			b.surfaceFormat = f
			break
		}
	}

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	b.surfaceWidth, b.surfaceHeight = width, height
	Logger().Debug("surface configured", "width", width, "height", height, "format", b.surfaceFormat.String())
}

func (b *wgpuRendererBackendImpl) SurfaceSize() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.surfaceWidth, b.surfaceHeight
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

func (b *wgpuRendererBackendImpl) CreateTexture(desc gpu.TextureDescriptor) (gpu.Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("texture %q: invalid size %dx%d", desc.Label, desc.Width, desc.Height)
	}

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     desc.Label,
		Usage:     wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              uint32(desc.Width),
			Height:             uint32(desc.Height),
			DepthOrArrayLayers: 1,
		},
		Format:        wgpuTextureFormat(desc.Format),
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}

	t := &wgpuTexture{
		label:   desc.Label,
		width:   desc.Width,
		height:  desc.Height,
		format:  desc.Format,
		texture: tex,
		view:    view,
	}
	b.textures[t] = struct{}{}
	return t, nil
}

func (b *wgpuRendererBackendImpl) WriteTexture(t gpu.Texture, data common.TextureStagingData) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tex, ok := t.(*wgpuTexture)
	if !ok || tex == nil || tex.released {
		return fmt.Errorf("texture %v is not a live wgpu texture", t)
	}
	if tex.format.IsDepth() {
		return fmt.Errorf("texture %q: depth textures cannot be written", tex.label)
	}
	if int(data.Width) != tex.width || int(data.Height) != tex.height || len(data.Pixels) < tex.width*tex.height*4 {
		return fmt.Errorf("texture %q: staging data %dx%d does not match %dx%d",
			tex.label, data.Width, data.Height, tex.width, tex.height)
	}

	pixels, bytesPerPixel := convertPixels(tex.format, data.Pixels[:tex.width*tex.height*4])
	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  data.Width * bytesPerPixel,
			RowsPerImage: data.Height,
		},
		&wgpu.Extent3D{
			Width:              data.Width,
			Height:             data.Height,
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

func (b *wgpuRendererBackendImpl) ReleaseTexture(t gpu.Texture) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releaseTexture(t)
}

func (b *wgpuRendererBackendImpl) releaseTexture(t gpu.Texture) {
	tex, ok := t.(*wgpuTexture)
	if !ok || tex == nil || tex.released {
		return
	}
	tex.released = true
	tex.view.Release()
	tex.texture.Release()
	delete(b.textures, tex)
}

func (b *wgpuRendererBackendImpl) CreateFramebuffer(desc gpu.FramebufferDescriptor) (gpu.Framebuffer, error) {
	if err := gpu.ValidateFramebuffer(desc); err != nil {
		return nil, err
	}
	fb := &wgpuFramebuffer{label: desc.Label}
	for _, c := range desc.ColorAttachments {
		tex, ok := c.(*wgpuTexture)
		if !ok {
			return nil, fmt.Errorf("framebuffer %q: attachment %q was not created by the wgpu device", desc.Label, c.Label())
		}
		fb.colors = append(fb.colors, tex)
	}
	if desc.DepthAttachment != nil {
		tex, ok := desc.DepthAttachment.(*wgpuTexture)
		if !ok {
			return nil, fmt.Errorf("framebuffer %q: depth attachment was not created by the wgpu device", desc.Label)
		}
		fb.depth = tex
	}
	fb.width, fb.height = gpu.FramebufferSize(desc)
	return fb, nil
}

func (b *wgpuRendererBackendImpl) ReleaseFramebuffer(fb gpu.Framebuffer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if f, ok := fb.(*wgpuFramebuffer); ok && b.target == f {
		b.endPass()
		b.target = nil
	}
}

func (b *wgpuRendererBackendImpl) CreateMesh(desc gpu.MeshDescriptor) (gpu.Mesh, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, idx := range desc.Indices {
		if int(idx) >= len(desc.Vertices) {
			return nil, fmt.Errorf("mesh %q: index %d out of range of %d vertices", desc.Label, idx, len(desc.Vertices))
		}
	}
	provider := bind_group_provider.NewBindGroupProvider(desc.Label, bind_group_provider.WithIndexCount(len(desc.Indices)))

	vertexData := common.MarshalVertices(desc.Vertices)
	if len(vertexData) > 0 {
		buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label:            provider.Label() + " Vertex Buffer",
			Size:             uint64(len(vertexData)),
			Usage:            wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
			MappedAtCreation: false,
		})
		if err != nil {
			return nil, err
		}
		b.queue.WriteBuffer(buf, 0, vertexData)
		provider.SetVertexBuffer(buf)
	}

	indexData := common.MarshalIndices(desc.Indices)
	if len(indexData) > 0 {
		buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label:            provider.Label() + " Index Buffer",
			Size:             uint64(len(indexData)),
			Usage:            wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
			MappedAtCreation: false,
		})
		if err != nil {
			provider.Release()
			return nil, err
		}
		b.queue.WriteBuffer(buf, 0, indexData)
		provider.SetIndexBuffer(buf)
	}

	return &wgpuMesh{provider}, nil
}

func (b *wgpuRendererBackendImpl) ReleaseMesh(m gpu.Mesh) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if wm, ok := m.(*wgpuMesh); ok && wm != nil {
		wm.Release()
	}
}

func (b *wgpuRendererBackendImpl) CompileProgram(p program.Program) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := p.Shader()
	if s == nil {
		return &program.CompileError{Key: p.Key(), Stage: "shader", Err: errors.New("program has no shader")}
	}
	if err := s.Validate(); err != nil {
		// naga trails wgpu-native on some WGSL features; the device compiler has the final say.
		Logger().Warn("shader validation reported an error", "program", p.Key(), "error", err)
	}

	module, err := b.device.CreateShaderModule(s.Module())
	if err != nil {
		return &program.CompileError{Key: p.Key(), Stage: "module", Err: err}
	}

	wp := &wgpuProgram{
		shader:    s,
		module:    module,
		provider:  bind_group_provider.NewBindGroupProvider(p.Key()),
		pipelines: make(map[pipelineKey]*wgpu.RenderPipeline),
	}
	for g, desc := range s.BindGroupLayoutDescriptors() {
		desc.Label = fmt.Sprintf("%s Group %d Layout", p.Key(), g)
		layout, layoutErr := b.device.CreateBindGroupLayout(&desc)
		if layoutErr != nil {
			wp.provider.Release()
			module.Release()
			return &program.CompileError{Key: p.Key(), Stage: "layout", Err: fmt.Errorf("group %d: %w", g, layoutErr)}
		}
		wp.provider.SetBindGroupLayout(g, layout)
	}

	wp.pipelineLayout, err = b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.Key(),
		BindGroupLayouts: wp.provider.BindGroupLayouts(),
	})
	if err != nil {
		wp.provider.Release()
		module.Release()
		return &program.CompileError{Key: p.Key(), Stage: "layout", Err: err}
	}

	b.programs[wp] = struct{}{}
	p.SetHandle(wp)
	return nil
}

func (b *wgpuRendererBackendImpl) ReleaseProgram(p program.Program) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wp, ok := p.Handle().(*wgpuProgram)
	if !ok {
		return
	}
	b.releaseProgram(wp)
	p.SetHandle(nil)
}

func (b *wgpuRendererBackendImpl) releaseProgram(wp *wgpuProgram) {
	for key, rp := range wp.pipelines {
		rp.Release()
		delete(wp.pipelines, key)
	}
	wp.pipelineLayout.Release()
	wp.provider.Release()
	wp.module.Release()
	delete(b.programs, wp)
	delete(b.drawPrograms, wp)
}

// renderPipeline returns the pipeline variant of a program for the bound target and blend mode,
// creating it on first use.
func (b *wgpuRendererBackendImpl) renderPipeline(p program.Program, wp *wgpuProgram) (*wgpu.RenderPipeline, error) {
	formats := b.targetFormats()
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = f.String()
	}
	hasDepth := b.target != nil && b.target.depth != nil
	key := pipelineKey{colorFormats: strings.Join(names, ","), depth: hasDepth, blend: b.blend}
	if rp, ok := wp.pipelines[key]; ok {
		return rp, nil
	}

	targets := make([]wgpu.ColorTargetState, len(formats))
	for i, f := range formats {
		targets[i] = wgpu.ColorTargetState{
			Format:    f,
			WriteMask: wgpu.ColorWriteMaskAll,
		}
		if b.blend == gpu.BlendAdditive {
			additive := wgpu.BlendComponent{
				Operation: wgpu.BlendOperationAdd,
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOne,
			}
			targets[i].Blend = &wgpu.BlendState{Color: additive, Alpha: additive}
		}
	}

	var depthStencil *wgpu.DepthStencilState
	if hasDepth {
		depthCompare := wgpuCompareFunction(p.DepthCompare())
		if !p.DepthTestEnabled() {
			depthCompare = wgpu.CompareFunctionAlways
		}
		depthStencil = &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth32Float,
			DepthWriteEnabled: p.DepthWriteEnabled(),
			DepthCompare:      depthCompare,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.Key() + " Render Pipeline",
		Layout: wp.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     wp.module,
			EntryPoint: wp.shader.EntryPoint(shader.ShaderTypeVertex),
			Buffers:    wp.shader.VertexLayouts(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     wp.module,
			EntryPoint: wp.shader.EntryPoint(shader.ShaderTypeFragment),
			Targets:    targets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  p.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: depthStencil,
	})
	if err != nil {
		return nil, err
	}
	wp.pipelines[key] = created
	return created, nil
}

func (b *wgpuRendererBackendImpl) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface != nil {
		return fmt.Errorf("previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return err
	}

	b.frameEncoder = encoder
	b.frameSurface = surfaceTexture
	b.frameView = view
	b.target = nil
	b.blend = gpu.BlendNone
	b.arenaChunk, b.arenaOffset = 0, 0
	b.arenaWrites = b.arenaWrites[:0]

	return nil
}

func (b *wgpuRendererBackendImpl) BindFramebuffer(fb gpu.Framebuffer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.endPass()
	if fb == nil {
		b.target = nil
		return
	}
	b.target, _ = fb.(*wgpuFramebuffer)
}

func (b *wgpuRendererBackendImpl) BindTexture(slot int, t gpu.Texture) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if slot < 0 {
		return
	}
	for len(b.inputs) <= slot {
		b.inputs = append(b.inputs, nil)
	}
	tex, _ := t.(*wgpuTexture)
	b.inputs[slot] = tex
}

func (b *wgpuRendererBackendImpl) Clear(color mgl32.Vec4, depth float32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		Logger().Warn("clear outside of a frame ignored")
		return
	}
	b.endPass()
	b.beginPass(wgpu.LoadOpClear, wgpu.Color{R: float64(color[0]), G: float64(color[1]), B: float64(color[2]), A: float64(color[3])}, depth)
}

func (b *wgpuRendererBackendImpl) SetBlend(mode gpu.BlendMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blend = mode
}

func (b *wgpuRendererBackendImpl) BlitDepth(src, dst gpu.Framebuffer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return errors.New("depth blit outside of a frame")
	}
	s, _ := src.(*wgpuFramebuffer)
	d, _ := dst.(*wgpuFramebuffer)
	if s == nil || d == nil || s.depth == nil || d.depth == nil {
		return errors.New("depth blit requires two framebuffers with depth attachments")
	}
	if s.width != d.width || s.height != d.height {
		return fmt.Errorf("depth blit %q -> %q: size %dx%d does not match %dx%d",
			s.label, d.label, s.width, s.height, d.width, d.height)
	}

	b.endPass()
	b.frameEncoder.CopyTextureToTexture(
		&wgpu.ImageCopyTexture{Texture: s.depth.texture, Aspect: wgpu.TextureAspectAll},
		&wgpu.ImageCopyTexture{Texture: d.depth.texture, Aspect: wgpu.TextureAspectAll},
		&wgpu.Extent3D{Width: uint32(s.width), Height: uint32(s.height), DepthOrArrayLayers: 1},
	)
	return nil
}

func (b *wgpuRendererBackendImpl) Draw(p program.Program, uniforms map[string]any, mesh gpu.Mesh) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return fmt.Errorf("draw %s outside of a frame", p.Key())
	}
	wp, ok := p.Handle().(*wgpuProgram)
	if !ok {
		return fmt.Errorf("program %s is not compiled for the wgpu device", p.Key())
	}
	if b.target != nil {
		for _, t := range append(append([]*wgpuTexture(nil), b.target.colors...), b.target.depth) {
			if t != nil && t.released {
				return fmt.Errorf("draw %s: attachment %q has been released", p.Key(), t.label)
			}
		}
	}

	rp, err := b.renderPipeline(p, wp)
	if err != nil {
		return fmt.Errorf("draw %s: %w", p.Key(), err)
	}

	var bindGroups []*wgpu.BindGroup
	if layout := wp.provider.BindGroupLayout(shader.UniformGroup); layout != nil {
		bg, err := b.uniformBindGroup(wp, layout, uniforms)
		if err != nil {
			return fmt.Errorf("draw %s: %w", p.Key(), err)
		}
		bindGroups = append(bindGroups, bg)
	}
	if layout := wp.provider.BindGroupLayout(shader.TextureGroup); layout != nil {
		bg, err := b.textureBindGroup(wp, layout)
		if err != nil {
			return fmt.Errorf("draw %s: %w", p.Key(), err)
		}
		bindGroups = append(bindGroups, bg)
	}
	b.drawPrograms[wp] = struct{}{}

	if b.framePass == nil {
		b.beginPass(wgpu.LoadOpLoad, wgpu.Color{}, 1)
	}
	b.framePass.SetPipeline(rp)
	for i, bg := range bindGroups {
		b.framePass.SetBindGroup(uint32(i), bg, nil)
	}

	if mesh == nil {
		b.framePass.Draw(3, 1, 0, 0)
		return nil
	}
	wm, ok := mesh.(*wgpuMesh)
	if !ok || wm.VertexBuffer() == nil || wm.IndexBuffer() == nil {
		return fmt.Errorf("draw %s: mesh was not created by the wgpu device", p.Key())
	}
	b.framePass.SetVertexBuffer(0, wm.VertexBuffer(), 0, wgpu.WholeSize)
	b.framePass.SetIndexBuffer(wm.IndexBuffer(), wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	b.framePass.DrawIndexed(uint32(wm.IndexCount()), 1, 0, 0, 0)
	return nil
}

// uniformBindGroup encodes the program's uniform block into the arena and binds the written slice.
func (b *wgpuRendererBackendImpl) uniformBindGroup(wp *wgpuProgram, layout *wgpu.BindGroupLayout, uniforms map[string]any) (*wgpu.BindGroup, error) {
	data, err := wp.shader.Uniforms().Encode(uniforms)
	if err != nil {
		return nil, err
	}
	chunk, offset, err := b.allocUniforms(uint64(len(data)))
	if err != nil {
		return nil, err
	}
	b.arenaWrites = append(b.arenaWrites, bind_group_provider.BufferWrite{
		Provider: b.arena,
		Binding:  chunk,
		Offset:   offset,
		Data:     data,
	})

	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  wp.provider.Label() + " Uniform Bind Group",
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{{
			Binding: 0,
			Buffer:  b.arena.Buffer(chunk),
			Offset:  offset,
			Size:    uint64(len(data)),
		}},
	})
	if err != nil {
		return nil, err
	}
	wp.provider.TrackBindGroup(bg)
	return bg, nil
}

// textureBindGroup binds the input slots the program samples followed by the shared sampler.
// Empty slots read the 1x1 white fallback texture.
func (b *wgpuRendererBackendImpl) textureBindGroup(wp *wgpuProgram, layout *wgpu.BindGroupLayout) (*wgpu.BindGroup, error) {
	slots := wp.shader.TextureSlots()
	entries := make([]wgpu.BindGroupEntry, 0, slots+1)
	for slot := 0; slot < slots; slot++ {
		tex := b.fallback
		if slot < len(b.inputs) && b.inputs[slot] != nil {
			tex = b.inputs[slot]
		}
		if tex.released {
			return nil, fmt.Errorf("input slot %d: texture %q has been released", slot, tex.label)
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding:     uint32(slot),
			TextureView: tex.view,
		})
	}
	entries = append(entries, wgpu.BindGroupEntry{
		Binding: uint32(slots),
		Sampler: b.sampler,
	})

	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   wp.provider.Label() + " Texture Bind Group",
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	wp.provider.TrackBindGroup(bg)
	return bg, nil
}

// allocUniforms reserves a 256-aligned slice of the uniform arena, growing it by one chunk when
// the current chunk is full.
func (b *wgpuRendererBackendImpl) allocUniforms(size uint64) (int, uint64, error) {
	if size > uniformChunkSize {
		return 0, 0, fmt.Errorf("uniform block of %d bytes exceeds the arena chunk size", size)
	}
	if b.arenaOffset+size > uniformChunkSize {
		b.arenaChunk++
		b.arenaOffset = 0
	}
	if b.arena.Buffer(b.arenaChunk) == nil {
		buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: fmt.Sprintf("%s Chunk %d", b.arena.Label(), b.arenaChunk),
			Size:  uniformChunkSize,
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return 0, 0, err
		}
		b.arena.SetBuffer(b.arenaChunk, buf)
	}
	offset := b.arenaOffset
	b.arenaOffset += roundUp(size, uniformAlignment)
	return b.arenaChunk, offset, nil
}

func (b *wgpuRendererBackendImpl) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return errors.New("no frame in progress")
	}
	b.endPass()
	b.writeBuffers(b.arenaWrites)
	b.arenaWrites = b.arenaWrites[:0]

	commandBuffer, err := b.frameEncoder.Finish(nil)
	if err != nil {
		b.frameEncoder.Release()
		b.frameView.Release()
		b.frameSurface.Release()
		b.frameEncoder = nil
		b.frameSurface = nil
		b.frameView = nil
		b.releaseBindGroups()
		return err
	}

	b.queue.Submit(commandBuffer)

	commandBuffer.Release()
	b.frameEncoder.Release()
	b.frameEncoder = nil
	b.releaseBindGroups()
	return nil
}

func (b *wgpuRendererBackendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return
	}

	b.surface.Present()

	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
}

func (b *wgpuRendererBackendImpl) DiscardFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for wp := range b.programs {
		b.releaseProgram(wp)
	}
	for t := range b.textures {
		b.releaseTexture(t)
	}
	b.arena.Release()
	if b.sampler != nil {
		b.sampler.Release()
		b.sampler = nil
	}
	b.inputs = nil
	b.target = nil
}

func (b *wgpuRendererBackendImpl) Device() *wgpu.Device {
	return b.device
}

func (b *wgpuRendererBackendImpl) Queue() *wgpu.Queue {
	return b.queue
}

func (b *wgpuRendererBackendImpl) Instance() *wgpu.Instance {
	return b.instance
}

func (b *wgpuRendererBackendImpl) Adapter() *wgpu.Adapter {
	return b.adapter
}

func (b *wgpuRendererBackendImpl) Surface() *wgpu.Surface {
	return b.surface
}

// beginPass starts a render pass over the bound target.
func (b *wgpuRendererBackendImpl) beginPass(loadOp wgpu.LoadOp, clear wgpu.Color, depth float32) {
	desc := &wgpu.RenderPassDescriptor{}
	if b.target == nil {
		desc.ColorAttachments = []wgpu.RenderPassColorAttachment{{
			View:       b.frameView,
			LoadOp:     loadOp,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: clear,
		}}
	} else {
		for _, c := range b.target.colors {
			desc.ColorAttachments = append(desc.ColorAttachments, wgpu.RenderPassColorAttachment{
				View:       c.view,
				LoadOp:     loadOp,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: clear,
			})
		}
		if b.target.depth != nil {
			desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
				View:            b.target.depth.view,
				DepthLoadOp:     loadOp,
				DepthStoreOp:    wgpu.StoreOpStore,
				DepthClearValue: depth,
			}
		}
	}
	b.framePass = b.frameEncoder.BeginRenderPass(desc)
}

func (b *wgpuRendererBackendImpl) endPass() {
	if b.framePass == nil {
		return
	}
	b.framePass.End()
	b.framePass = nil
}

// writeBuffers flushes staged buffer writes to the queue ahead of the frame's submission.
func (b *wgpuRendererBackendImpl) writeBuffers(writes []bind_group_provider.BufferWrite) {
	for _, w := range writes {
		buf := w.Provider.Buffer(w.Binding)
		if buf == nil {
			continue
		}
		b.queue.WriteBuffer(buf, w.Offset, w.Data)
	}
}

func (b *wgpuRendererBackendImpl) releaseBindGroups() {
	for wp := range b.drawPrograms {
		wp.provider.ReleaseBindGroups()
		delete(b.drawPrograms, wp)
	}
}

// targetFormats returns the color formats of the bound render target.
func (b *wgpuRendererBackendImpl) targetFormats() []wgpu.TextureFormat {
	if b.target == nil {
		return []wgpu.TextureFormat{b.surfaceFormat}
	}
	formats := make([]wgpu.TextureFormat, len(b.target.colors))
	for i, c := range b.target.colors {
		formats[i] = wgpuTextureFormat(c.format)
	}
	return formats
}

func (b *wgpuRendererBackendImpl) createSampler(samplerStagingData common.SamplerStagingData) (*wgpu.Sampler, error) {
	return b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Linear Clamp Sampler",
		AddressModeU:  common.Coalesce(samplerStagingData.AddressModeU, wgpu.AddressModeClampToEdge),
		AddressModeV:  common.Coalesce(samplerStagingData.AddressModeV, wgpu.AddressModeClampToEdge),
		AddressModeW:  common.Coalesce(samplerStagingData.AddressModeW, wgpu.AddressModeClampToEdge),
		MagFilter:     common.Coalesce(samplerStagingData.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(samplerStagingData.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(samplerStagingData.MipmapFilter, wgpu.MipmapFilterModeNearest),
		LodMinClamp:   common.Coalesce(samplerStagingData.LodMinClamp, 0.0),
		LodMaxClamp:   common.Coalesce(samplerStagingData.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(samplerStagingData.MaxAnisotropy, 1),
	})
}

func wgpuTextureFormat(f gpu.TextureFormat) wgpu.TextureFormat {
	switch f {
	case gpu.FormatRGBA16Float:
		return wgpu.TextureFormatRGBA16Float
	case gpu.FormatR16Float:
		return wgpu.TextureFormatR16Float
	case gpu.FormatDepth32Float:
		return wgpu.TextureFormatDepth32Float
	}
	return wgpu.TextureFormatRGBA8Unorm
}

func wgpuCompareFunction(c program.CompareFunc) wgpu.CompareFunction {
	switch c {
	case program.CompareLessEqual:
		return wgpu.CompareFunctionLessEqual
	case program.CompareAlways:
		return wgpu.CompareFunctionAlways
	}
	return wgpu.CompareFunctionLess
}

// convertPixels converts RGBA8 staging bytes to the texel layout of a texture format.
func convertPixels(f gpu.TextureFormat, rgba []byte) ([]byte, uint32) {
	switch f {
	case gpu.FormatRGBA16Float:
		out := make([]byte, len(rgba)*2)
		for i, c := range rgba {
			binary.LittleEndian.PutUint16(out[i*2:], float16Bits(float32(c)/255))
		}
		return out, 8
	case gpu.FormatR16Float:
		out := make([]byte, len(rgba)/2)
		for i := 0; i < len(rgba)/4; i++ {
			binary.LittleEndian.PutUint16(out[i*2:], float16Bits(float32(rgba[i*4])/255))
		}
		return out, 2
	}
	return rgba, 4
}

// float16Bits converts a value in [0, 1] to IEEE 754 half precision, truncating the mantissa.
func float16Bits(v float32) uint16 {
	bits := math.Float32bits(v)
	sign := uint16(bits>>16) & 0x8000
	exp := int32(bits>>23&0xff) - 127 + 15
	mant := bits & 0x7fffff
	switch {
	case exp <= 0:
		return sign
	case exp >= 31:
		return sign | 0x7c00
	}
	return sign | uint16(exp)<<10 | uint16(mant>>13)
}

func roundUp(v, align uint64) uint64 {
	return (v + align - 1) / align * align
}
