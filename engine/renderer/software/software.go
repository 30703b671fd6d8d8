// package software implements gpu.Backend on the CPU. Programs run as Go kernels registered per
// program key; draws rasterize into float32 textures in parallel row bands.
// The device renders headless, so it backs the test suite and frame capture.
package software

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/program"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// ErrOutOfMemory is returned when a texture allocation exceeds the configured texture budget.
var ErrOutOfMemory = errors.New("software device out of texture memory")

type texture struct {
	label    string
	width    int
	height   int
	format   gpu.TextureFormat
	texels   []mgl32.Vec4
	released bool
}

var _ gpu.Texture = &texture{}

func (t *texture) Label() string             { return t.label }
func (t *texture) Width() int                { return t.width }
func (t *texture) Height() int               { return t.height }
func (t *texture) Format() gpu.TextureFormat { return t.format }
func (t *texture) Released() bool            { return t.released }

func (t *texture) at(x, y int) mgl32.Vec4 {
	return t.texels[y*t.width+x]
}

func (t *texture) fill(v mgl32.Vec4) {
	v = quantize(t.format, v)
	for i := range t.texels {
		t.texels[i] = v
	}
}

type framebuffer struct {
	label    string
	width    int
	height   int
	colors   []*texture
	depth    *texture
	released bool
}

var _ gpu.Framebuffer = &framebuffer{}

func (f *framebuffer) Label() string { return f.label }
func (f *framebuffer) Width() int    { return f.width }
func (f *framebuffer) Height() int   { return f.height }

func (f *framebuffer) ColorAttachments() []gpu.Texture {
	out := make([]gpu.Texture, len(f.colors))
	for i, c := range f.colors {
		out[i] = c
	}
	return out
}

func (f *framebuffer) DepthAttachment() gpu.Texture {
	if f.depth == nil {
		return nil
	}
	return f.depth
}

type mesh struct {
	label    string
	vertices []common.Vertex
	indices  []uint32
}

var _ gpu.Mesh = &mesh{}

func (m *mesh) Label() string   { return m.label }
func (m *mesh) IndexCount() int { return len(m.indices) }

// Backend is the CPU implementation of gpu.Backend.
type Backend struct {
	logger *slog.Logger

	kernels map[string]KernelFactory
	workers int
	pool    worker.DynamicWorkerPool

	textureBudget int
	live          map[*texture]struct{}
	liveFBs       map[*framebuffer]struct{}

	surface   *texture
	presented *image.RGBA

	inFrame bool
	target  *framebuffer
	inputs  []*texture
	blend   gpu.BlendMode
}

var _ gpu.Backend = &Backend{}
var _ gpu.Snapshotter = &Backend{}

// New creates a software device with an output surface of the given size.
//
// Parameters:
//   - width: the surface width in pixels
//   - height: the surface height in pixels
//   - options: variadic list of BackendBuilderOption functions to configure the device
//
// Returns:
//   - *Backend: the device, with kernels for every built-in program registered
func New(width, height int, options ...BackendBuilderOption) *Backend {
	b := &Backend{
		logger:  slog.New(slog.DiscardHandler),
		kernels: builtinKernels(),
		workers: runtime.NumCPU(),
		live:    make(map[*texture]struct{}),
		liveFBs: make(map[*framebuffer]struct{}),
	}
	for _, opt := range options {
		opt(b)
	}
	if b.workers < 1 {
		b.workers = 1
	}
	b.pool = worker.NewDynamicWorkerPool(b.workers, 256, 1*time.Second)
	b.ConfigureSurface(width, height)
	return b
}

func (b *Backend) ConfigureSurface(width, height int) {
	width, height = max(width, 1), max(height, 1)
	b.surface = &texture{
		label:  "surface",
		width:  width,
		height: height,
		format: gpu.FormatRGBA8Unorm,
		texels: make([]mgl32.Vec4, width*height),
	}
	b.logger.Debug("surface configured", "width", width, "height", height)
}

func (b *Backend) SurfaceSize() (int, int) {
	return b.surface.width, b.surface.height
}

func (b *Backend) CreateTexture(desc gpu.TextureDescriptor) (gpu.Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, errors.Errorf("texture %q: invalid size %dx%d", desc.Label, desc.Width, desc.Height)
	}
	if b.textureBudget > 0 && len(b.live) >= b.textureBudget {
		return nil, errors.Wrapf(ErrOutOfMemory, "texture %q", desc.Label)
	}
	t := &texture{
		label:  desc.Label,
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
		texels: make([]mgl32.Vec4, desc.Width*desc.Height),
	}
	b.live[t] = struct{}{}
	return t, nil
}

func (b *Backend) WriteTexture(t gpu.Texture, data common.TextureStagingData) error {
	tex, err := b.texture(t)
	if err != nil {
		return err
	}
	if int(data.Width) != tex.width || int(data.Height) != tex.height || len(data.Pixels) < tex.width*tex.height*4 {
		return errors.Errorf("texture %q: staging data %dx%d does not match %dx%d",
			tex.label, data.Width, data.Height, tex.width, tex.height)
	}
	for i := range tex.texels {
		p := data.Pixels[i*4 : i*4+4]
		v := mgl32.Vec4{float32(p[0]) / 255, float32(p[1]) / 255, float32(p[2]) / 255, float32(p[3]) / 255}
		tex.texels[i] = quantize(tex.format, v)
	}
	return nil
}

func (b *Backend) ReleaseTexture(t gpu.Texture) {
	tex, ok := t.(*texture)
	if !ok || tex == nil || tex.released {
		return
	}
	tex.released = true
	tex.texels = nil
	delete(b.live, tex)
}

func (b *Backend) CreateFramebuffer(desc gpu.FramebufferDescriptor) (gpu.Framebuffer, error) {
	if err := gpu.ValidateFramebuffer(desc); err != nil {
		return nil, err
	}
	fb := &framebuffer{label: desc.Label}
	fb.width, fb.height = gpu.FramebufferSize(desc)
	for _, c := range desc.ColorAttachments {
		tex, err := b.texture(c)
		if err != nil {
			return nil, errors.Wrapf(err, "framebuffer %q", desc.Label)
		}
		fb.colors = append(fb.colors, tex)
	}
	if desc.DepthAttachment != nil {
		tex, err := b.texture(desc.DepthAttachment)
		if err != nil {
			return nil, errors.Wrapf(err, "framebuffer %q", desc.Label)
		}
		fb.depth = tex
	}
	b.liveFBs[fb] = struct{}{}
	return fb, nil
}

func (b *Backend) ReleaseFramebuffer(f gpu.Framebuffer) {
	fb, ok := f.(*framebuffer)
	if !ok || fb == nil || fb.released {
		return
	}
	fb.released = true
	delete(b.liveFBs, fb)
	if b.target == fb {
		b.target = nil
	}
}

func (b *Backend) CreateMesh(desc gpu.MeshDescriptor) (gpu.Mesh, error) {
	for _, idx := range desc.Indices {
		if int(idx) >= len(desc.Vertices) {
			return nil, errors.Errorf("mesh %q: index %d out of range of %d vertices", desc.Label, idx, len(desc.Vertices))
		}
	}
	return &mesh{
		label:    desc.Label,
		vertices: append([]common.Vertex(nil), desc.Vertices...),
		indices:  append([]uint32(nil), desc.Indices...),
	}, nil
}

func (b *Backend) ReleaseMesh(m gpu.Mesh) {
	if sm, ok := m.(*mesh); ok && sm != nil {
		sm.vertices, sm.indices = nil, nil
	}
}

func (b *Backend) CompileProgram(p program.Program) error {
	factory, ok := b.kernels[p.Key()]
	if !ok {
		return &program.CompileError{Key: p.Key(), Stage: "kernel", Err: errors.New("no software kernel registered")}
	}
	p.SetHandle(factory)
	return nil
}

func (b *Backend) ReleaseProgram(p program.Program) {
	if _, ok := p.Handle().(KernelFactory); ok {
		p.SetHandle(nil)
	}
}

func (b *Backend) BeginFrame() error {
	if b.inFrame {
		return errors.New("frame already in progress")
	}
	b.inFrame = true
	b.target = nil
	b.blend = gpu.BlendNone
	return nil
}

func (b *Backend) BindFramebuffer(f gpu.Framebuffer) {
	if f == nil {
		b.target = nil
		return
	}
	fb, _ := f.(*framebuffer)
	b.target = fb
}

func (b *Backend) BindTexture(slot int, t gpu.Texture) {
	if slot < 0 {
		return
	}
	for len(b.inputs) <= slot {
		b.inputs = append(b.inputs, nil)
	}
	tex, _ := t.(*texture)
	b.inputs[slot] = tex
}

func (b *Backend) Clear(c mgl32.Vec4, depth float32) {
	if !b.inFrame {
		b.logger.Warn("clear outside of a frame ignored")
		return
	}
	colors, depthTex := b.attachments()
	for _, t := range colors {
		t.fill(c)
	}
	if depthTex != nil {
		for i := range depthTex.texels {
			depthTex.texels[i] = mgl32.Vec4{depth}
		}
	}
}

func (b *Backend) SetBlend(mode gpu.BlendMode) {
	b.blend = mode
}

func (b *Backend) BlitDepth(src, dst gpu.Framebuffer) error {
	if !b.inFrame {
		return errors.New("depth blit outside of a frame")
	}
	s, _ := src.(*framebuffer)
	d, _ := dst.(*framebuffer)
	if s == nil || d == nil || s.depth == nil || d.depth == nil {
		return errors.New("depth blit requires two framebuffers with depth attachments")
	}
	if s.width != d.width || s.height != d.height {
		return errors.Errorf("depth blit %q -> %q: size %dx%d does not match %dx%d",
			s.label, d.label, s.width, s.height, d.width, d.height)
	}
	copy(d.depth.texels, s.depth.texels)
	return nil
}

func (b *Backend) Draw(p program.Program, uniforms map[string]any, m gpu.Mesh) error {
	if !b.inFrame {
		return errors.Errorf("draw %s outside of a frame", p.Key())
	}
	factory, ok := p.Handle().(KernelFactory)
	if !ok {
		return errors.Errorf("program %s is not compiled for the software device", p.Key())
	}
	kernel := factory(Uniforms(uniforms))

	var vertices []common.Vertex
	var indices []uint32
	if m == nil {
		vertices, indices = fullscreenVertices, fullscreenIndices
	} else {
		sm, ok := m.(*mesh)
		if !ok || sm == nil {
			return errors.Errorf("draw %s: mesh was not created by the software device", p.Key())
		}
		vertices, indices = sm.vertices, sm.indices
	}

	colors, depthTex := b.attachments()
	for _, t := range append(append([]*texture(nil), colors...), depthTex) {
		if t != nil && t.released {
			return errors.Errorf("draw %s: attachment %q has been released", p.Key(), t.label)
		}
	}
	if len(colors) == 0 && depthTex == nil {
		return nil
	}
	b.rasterize(drawState{
		kernel:    kernel,
		colors:    colors,
		depth:     depthTex,
		inputs:    append([]*texture(nil), b.inputs...),
		blend:     b.blend,
		depthTest: p.DepthTestEnabled() && depthTex != nil,
		depthOp:   p.DepthCompare(),
		depthMask: p.DepthWriteEnabled() && depthTex != nil,
		cull:      p.CullMode(),
	}, vertices, indices)
	return nil
}

func (b *Backend) EndFrame() error {
	if !b.inFrame {
		return errors.New("no frame in progress")
	}
	b.inFrame = false
	return nil
}

// DiscardFrame is a no-op: the software surface is owned by the device, not acquired per frame.
func (b *Backend) DiscardFrame() {}

func (b *Backend) Present() {
	img := image.NewRGBA(image.Rect(0, 0, b.surface.width, b.surface.height))
	for y := 0; y < b.surface.height; y++ {
		for x := 0; x < b.surface.width; x++ {
			v := b.surface.at(x, y)
			img.SetRGBA(x, y, color.RGBA{R: toByte(v[0]), G: toByte(v[1]), B: toByte(v[2]), A: toByte(v[3])})
		}
	}
	b.presented = img
}

func (b *Backend) Release() {
	for t := range b.live {
		b.ReleaseTexture(t)
	}
	for fb := range b.liveFBs {
		b.ReleaseFramebuffer(fb)
	}
	b.inputs = nil
	b.target = nil
}

func (b *Backend) Snapshot() (*image.RGBA, error) {
	if b.presented == nil {
		return nil, errors.New("no frame has been presented")
	}
	out := image.NewRGBA(b.presented.Rect)
	copy(out.Pix, b.presented.Pix)
	return out, nil
}

// ReadPixel returns the stored value of one texel, or of the output surface when t is nil.
//
// Parameters:
//   - t: a texture created by this device, or nil for the output surface
//   - x: the column, from the left
//   - y: the row, from the top
//
// Returns:
//   - mgl32.Vec4: the texel value; depth textures report depth in the first component
func (b *Backend) ReadPixel(t gpu.Texture, x, y int) mgl32.Vec4 {
	tex := b.surface
	if t != nil {
		tex, _ = t.(*texture)
	}
	if tex == nil || tex.released || x < 0 || y < 0 || x >= tex.width || y >= tex.height {
		return mgl32.Vec4{}
	}
	return tex.at(x, y)
}

// LiveTextures returns the number of textures created and not yet released.
func (b *Backend) LiveTextures() int {
	return len(b.live)
}

// LiveFramebuffers returns the number of framebuffers created and not yet released.
func (b *Backend) LiveFramebuffers() int {
	return len(b.liveFBs)
}

// RegisterKernel adds or replaces the kernel run for programs with the given key.
//
// Parameters:
//   - key: the program key
//   - factory: the kernel factory
func (b *Backend) RegisterKernel(key string, factory KernelFactory) {
	b.kernels[key] = factory
}

func (b *Backend) texture(t gpu.Texture) (*texture, error) {
	tex, ok := t.(*texture)
	if !ok || tex == nil {
		return nil, fmt.Errorf("texture %v was not created by the software device", t)
	}
	if tex.released {
		return nil, errors.Errorf("texture %q has been released", tex.label)
	}
	return tex, nil
}

// attachments returns the render target of the next clear or draw.
func (b *Backend) attachments() ([]*texture, *texture) {
	if b.target == nil {
		return []*texture{b.surface}, nil
	}
	return b.target.colors, b.target.depth
}

// quantize applies the storage precision of a format to a written value.
// Half-float formats are stored at float32 precision.
func quantize(f gpu.TextureFormat, v mgl32.Vec4) mgl32.Vec4 {
	switch f {
	case gpu.FormatRGBA8Unorm:
		for i := range v {
			v[i] = float32(math.Round(float64(clamp01(v[i])*255))) / 255
		}
	case gpu.FormatR16Float:
		v = mgl32.Vec4{v[0], 0, 0, 1}
	}
	return v
}

func toByte(v float32) uint8 {
	return uint8(math.Round(float64(clamp01(v) * 255)))
}
