package software

import (
	"errors"
	"image/color"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/program"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// flatKernel passes positions through as NDC and shades a constant color.
type flatKernel struct {
	color mgl32.Vec4
}

func (k flatKernel) Vertex(v common.Vertex) (mgl32.Vec4, Varyings) {
	return mgl32.Vec4{v.Position[0], v.Position[1], v.Position[2], 1}, Varyings{}
}

func (k flatKernel) Fragment(_ *ShaderContext, _ Varyings) Outputs {
	return Outputs{k.color}
}

func newFlatKernel(u Uniforms) Kernel {
	c := u.Vec3("Color")
	return flatKernel{color: c.Vec4(1)}
}

// gradientKernel shades each pixel with its own coordinates.
type gradientKernel struct {
	fullscreen
}

func (gradientKernel) Fragment(ctx *ShaderContext, _ Varyings) Outputs {
	return Outputs{{float32(ctx.Pixel[0]), float32(ctx.Pixel[1]), 0, 1}}
}

// perspectiveKernel projects view-space positions and shades each pixel with its view distance.
type perspectiveKernel struct {
	projection mgl32.Mat4
}

func (k perspectiveKernel) Vertex(v common.Vertex) (mgl32.Vec4, Varyings) {
	p := mgl32.Vec3(v.Position)
	return k.projection.Mul4x1(p.Vec4(1)), Varyings{{-p[2], 0, 0, 0}}
}

func (k perspectiveKernel) Fragment(_ *ShaderContext, in Varyings) Outputs {
	return Outputs{{in[0][0], 1, 0, 1}}
}

func newTestDevice(t *testing.T, w, h int, opts ...BackendBuilderOption) *Backend {
	t.Helper()
	opts = append([]BackendBuilderOption{
		WithKernel("flat", newFlatKernel),
		WithKernel("gradient", func(Uniforms) Kernel { return gradientKernel{} }),
		WithKernel("perspective", func(Uniforms) Kernel {
			return perspectiveKernel{projection: common.Perspective(math.Pi/2, 1, 0.1, 100)}
		}),
	}, opts...)
	return New(w, h, opts...)
}

func newTestProgram(t *testing.T, b *Backend, key string, opts ...program.ProgramBuilderOption) program.Program {
	t.Helper()
	s, err := shader.Builtin(shader.KeyGeometry)
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	p := program.NewProgram(key, s, opts...)
	if err := b.CompileProgram(p); err != nil {
		t.Fatalf("CompileProgram(%s): %v", key, err)
	}
	return p
}

func mustTexture(t *testing.T, b *Backend, label string, w, h int, f gpu.TextureFormat) gpu.Texture {
	t.Helper()
	tex, err := b.CreateTexture(gpu.TextureDescriptor{Label: label, Width: w, Height: h, Format: f})
	if err != nil {
		t.Fatalf("CreateTexture(%s): %v", label, err)
	}
	return tex
}

func mustFramebuffer(t *testing.T, b *Backend, desc gpu.FramebufferDescriptor) gpu.Framebuffer {
	t.Helper()
	fb, err := b.CreateFramebuffer(desc)
	if err != nil {
		t.Fatalf("CreateFramebuffer(%s): %v", desc.Label, err)
	}
	return fb
}

func quad(z float32) gpu.MeshDescriptor {
	return gpu.MeshDescriptor{
		Label: "quad",
		Vertices: []common.Vertex{
			{Position: [3]float32{-1, -1, z}},
			{Position: [3]float32{1, -1, z}},
			{Position: [3]float32{1, 1, z}},
			{Position: [3]float32{-1, 1, z}},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
}

func TestCreateTextureValidation(t *testing.T) {
	b := newTestDevice(t, 4, 4, WithTextureBudget(2))
	if _, err := b.CreateTexture(gpu.TextureDescriptor{Label: "empty", Width: 0, Height: 4}); err == nil {
		t.Fatal("expected an error for a zero-width texture")
	}
	mustTexture(t, b, "a", 4, 4, gpu.FormatRGBA8Unorm)
	mustTexture(t, b, "b", 4, 4, gpu.FormatRGBA8Unorm)
	_, err := b.CreateTexture(gpu.TextureDescriptor{Label: "c", Width: 4, Height: 4})
	if !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("third texture error = %v, want ErrOutOfMemory", err)
	}
	if b.LiveTextures() != 2 {
		t.Errorf("LiveTextures() = %d, want 2", b.LiveTextures())
	}
}

func TestReleaseTextureTwice(t *testing.T) {
	b := newTestDevice(t, 4, 4)
	tex := mustTexture(t, b, "a", 2, 2, gpu.FormatRGBA16Float)
	b.ReleaseTexture(tex)
	b.ReleaseTexture(tex)
	if !tex.Released() || b.LiveTextures() != 0 {
		t.Errorf("released=%v live=%d", tex.Released(), b.LiveTextures())
	}
}

func TestFramebufferValidation(t *testing.T) {
	b := newTestDevice(t, 4, 4)
	color4 := mustTexture(t, b, "color4", 4, 4, gpu.FormatRGBA16Float)
	color2 := mustTexture(t, b, "color2", 2, 2, gpu.FormatRGBA16Float)
	depth4 := mustTexture(t, b, "depth4", 4, 4, gpu.FormatDepth32Float)
	released := mustTexture(t, b, "released", 4, 4, gpu.FormatRGBA8Unorm)
	b.ReleaseTexture(released)

	tests := []struct {
		name    string
		desc    gpu.FramebufferDescriptor
		wantErr bool
	}{
		{"color and depth", gpu.FramebufferDescriptor{Label: "ok", ColorAttachments: []gpu.Texture{color4}, DepthAttachment: depth4}, false},
		{"depth only", gpu.FramebufferDescriptor{Label: "depth", DepthAttachment: depth4}, false},
		{"no attachments", gpu.FramebufferDescriptor{Label: "none"}, true},
		{"size mismatch", gpu.FramebufferDescriptor{Label: "mismatch", ColorAttachments: []gpu.Texture{color4, color2}}, true},
		{"depth as color", gpu.FramebufferDescriptor{Label: "depth-color", ColorAttachments: []gpu.Texture{depth4}}, true},
		{"color as depth", gpu.FramebufferDescriptor{Label: "color-depth", DepthAttachment: color4}, true},
		{"released attachment", gpu.FramebufferDescriptor{Label: "released", ColorAttachments: []gpu.Texture{released}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb, err := b.CreateFramebuffer(tt.desc)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateFramebuffer err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && (fb.Width() != 4 || fb.Height() != 4) {
				t.Errorf("framebuffer size = %dx%d, want 4x4", fb.Width(), fb.Height())
			}
		})
	}
	if b.LiveFramebuffers() != 2 {
		t.Errorf("LiveFramebuffers() = %d, want 2", b.LiveFramebuffers())
	}
}

func TestClearAndFullscreenDraw(t *testing.T) {
	b := newTestDevice(t, 4, 4)
	p := newTestProgram(t, b, "flat", program.WithFullscreen())
	target := mustTexture(t, b, "hdr", 5, 3, gpu.FormatRGBA16Float)
	fb := mustFramebuffer(t, b, gpu.FramebufferDescriptor{Label: "hdr", ColorAttachments: []gpu.Texture{target}})

	if err := b.BeginFrame(); err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	b.BindFramebuffer(fb)
	b.Clear(mgl32.Vec4{0.25, 0.25, 0.25, 1}, 1)
	if got := b.ReadPixel(target, 4, 2); got != (mgl32.Vec4{0.25, 0.25, 0.25, 1}) {
		t.Fatalf("cleared texel = %v", got)
	}
	if err := b.Draw(p, map[string]any{"Color": mgl32.Vec3{2, 3, 4}}, nil); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if err := b.EndFrame(); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}

	for y := 0; y < 3; y++ {
		for x := 0; x < 5; x++ {
			if got := b.ReadPixel(target, x, y); got != (mgl32.Vec4{2, 3, 4, 1}) {
				t.Fatalf("texel (%d,%d) = %v, want unclamped (2,3,4,1)", x, y, got)
			}
		}
	}
}

func TestAdditiveBlend(t *testing.T) {
	b := newTestDevice(t, 2, 2)
	p := newTestProgram(t, b, "flat", program.WithFullscreen())
	target := mustTexture(t, b, "accum", 2, 2, gpu.FormatRGBA16Float)
	fb := mustFramebuffer(t, b, gpu.FramebufferDescriptor{Label: "accum", ColorAttachments: []gpu.Texture{target}})

	_ = b.BeginFrame()
	b.BindFramebuffer(fb)
	b.Clear(mgl32.Vec4{0.25, 0, 0, 0}, 1)
	b.SetBlend(gpu.BlendAdditive)
	_ = b.Draw(p, map[string]any{"Color": mgl32.Vec3{0.5, 1, 0}}, nil)
	_ = b.Draw(p, map[string]any{"Color": mgl32.Vec3{0.5, 1, 0}}, nil)
	_ = b.EndFrame()

	if got := b.ReadPixel(target, 1, 1); got != (mgl32.Vec4{1.25, 2, 0, 2}) {
		t.Errorf("blended texel = %v, want (1.25,2,0,2)", got)
	}
}

func TestDepthTestKeepsNearest(t *testing.T) {
	b := newTestDevice(t, 4, 4)
	p := newTestProgram(t, b, "flat")
	colorTex := mustTexture(t, b, "color", 4, 4, gpu.FormatRGBA8Unorm)
	depthTex := mustTexture(t, b, "depth", 4, 4, gpu.FormatDepth32Float)
	fb := mustFramebuffer(t, b, gpu.FramebufferDescriptor{Label: "gbuffer", ColorAttachments: []gpu.Texture{colorTex}, DepthAttachment: depthTex})

	near, _ := b.CreateMesh(quad(0.3))
	far, _ := b.CreateMesh(quad(0.6))

	_ = b.BeginFrame()
	b.BindFramebuffer(fb)
	b.Clear(mgl32.Vec4{}, 1)
	_ = b.Draw(p, map[string]any{"Color": mgl32.Vec3{0, 1, 0}}, far)
	_ = b.Draw(p, map[string]any{"Color": mgl32.Vec3{1, 0, 0}}, near)
	_ = b.Draw(p, map[string]any{"Color": mgl32.Vec3{0, 0, 1}}, far)
	_ = b.EndFrame()

	if got := b.ReadPixel(colorTex, 2, 2); got != (mgl32.Vec4{1, 0, 0, 1}) {
		t.Errorf("color = %v, want the near quad's red", got)
	}
	if got := b.ReadPixel(depthTex, 2, 2)[0]; abs32(got-0.3) > 1e-6 {
		t.Errorf("depth = %v, want 0.3", got)
	}
}

func TestCullBackFaces(t *testing.T) {
	b := newTestDevice(t, 4, 4)
	p := newTestProgram(t, b, "flat", program.WithDepthTestEnabled(false), program.WithCullMode(wgpu.CullModeBack))
	target := mustTexture(t, b, "color", 4, 4, gpu.FormatRGBA8Unorm)
	fb := mustFramebuffer(t, b, gpu.FramebufferDescriptor{Label: "color", ColorAttachments: []gpu.Texture{target}})

	clockwise := quad(0.5)
	clockwise.Indices = []uint32{0, 2, 1, 0, 3, 2}
	m, _ := b.CreateMesh(clockwise)

	_ = b.BeginFrame()
	b.BindFramebuffer(fb)
	b.Clear(mgl32.Vec4{}, 1)
	_ = b.Draw(p, map[string]any{"Color": mgl32.Vec3{1, 1, 1}}, m)
	_ = b.EndFrame()

	if got := b.ReadPixel(target, 1, 1); got != (mgl32.Vec4{}) {
		t.Errorf("back-facing quad was drawn: %v", got)
	}
}

func TestRGBA8Quantization(t *testing.T) {
	b := newTestDevice(t, 2, 2)
	p := newTestProgram(t, b, "flat", program.WithFullscreen())
	target := mustTexture(t, b, "ldr", 2, 2, gpu.FormatRGBA8Unorm)
	fb := mustFramebuffer(t, b, gpu.FramebufferDescriptor{Label: "ldr", ColorAttachments: []gpu.Texture{target}})

	_ = b.BeginFrame()
	b.BindFramebuffer(fb)
	_ = b.Draw(p, map[string]any{"Color": mgl32.Vec3{0.5, 1.7, -0.2}}, nil)
	_ = b.EndFrame()

	want := mgl32.Vec4{float32(128) / 255, 1, 0, 1}
	if got := b.ReadPixel(target, 0, 0); got != want {
		t.Errorf("quantized texel = %v, want %v", got, want)
	}
}

func TestR16FloatStoresRedOnly(t *testing.T) {
	b := newTestDevice(t, 2, 2)
	p := newTestProgram(t, b, "flat", program.WithFullscreen())
	target := mustTexture(t, b, "occlusion", 2, 2, gpu.FormatR16Float)
	fb := mustFramebuffer(t, b, gpu.FramebufferDescriptor{Label: "occlusion", ColorAttachments: []gpu.Texture{target}})

	_ = b.BeginFrame()
	b.BindFramebuffer(fb)
	_ = b.Draw(p, map[string]any{"Color": mgl32.Vec3{0.75, 0.5, 0.25}}, nil)
	_ = b.EndFrame()

	if got := b.ReadPixel(target, 1, 0); got != (mgl32.Vec4{0.75, 0, 0, 1}) {
		t.Errorf("r16float texel = %v", got)
	}
}

func TestBlitDepth(t *testing.T) {
	b := newTestDevice(t, 4, 4)
	p := newTestProgram(t, b, "flat")
	srcDepth := mustTexture(t, b, "src-depth", 4, 4, gpu.FormatDepth32Float)
	dstDepth := mustTexture(t, b, "dst-depth", 4, 4, gpu.FormatDepth32Float)
	smallDepth := mustTexture(t, b, "small-depth", 2, 2, gpu.FormatDepth32Float)
	src := mustFramebuffer(t, b, gpu.FramebufferDescriptor{Label: "src", DepthAttachment: srcDepth})
	dst := mustFramebuffer(t, b, gpu.FramebufferDescriptor{Label: "dst", DepthAttachment: dstDepth})
	small := mustFramebuffer(t, b, gpu.FramebufferDescriptor{Label: "small", DepthAttachment: smallDepth})
	m, _ := b.CreateMesh(quad(0.4))

	if err := b.BlitDepth(src, dst); err == nil {
		t.Fatal("expected an error outside of a frame")
	}

	_ = b.BeginFrame()
	b.BindFramebuffer(src)
	b.Clear(mgl32.Vec4{}, 1)
	_ = b.Draw(p, nil, m)
	b.BindFramebuffer(dst)
	b.Clear(mgl32.Vec4{}, 1)
	if err := b.BlitDepth(src, dst); err != nil {
		t.Fatalf("BlitDepth: %v", err)
	}
	if err := b.BlitDepth(src, small); err == nil {
		t.Error("expected a size mismatch error")
	}
	_ = b.EndFrame()

	if got := b.ReadPixel(dstDepth, 3, 3)[0]; abs32(got-0.4) > 1e-6 {
		t.Errorf("blitted depth = %v, want 0.4", got)
	}
}

func TestWriteTexture(t *testing.T) {
	b := newTestDevice(t, 2, 2)
	tex := mustTexture(t, b, "noise", 2, 1, gpu.FormatRGBA16Float)
	err := b.WriteTexture(tex, common.TextureStagingData{Pixels: []byte{255, 0, 51, 255, 0, 255, 0, 0}, Width: 2, Height: 1})
	if err != nil {
		t.Fatalf("WriteTexture: %v", err)
	}
	if got := b.ReadPixel(tex, 0, 0); got != (mgl32.Vec4{1, 0, 0.2, 1}) {
		t.Errorf("texel 0 = %v", got)
	}
	if err := b.WriteTexture(tex, common.TextureStagingData{Pixels: make([]byte, 4), Width: 1, Height: 1}); err == nil {
		t.Error("expected a size mismatch error")
	}
}

func TestPresentAndSnapshot(t *testing.T) {
	b := newTestDevice(t, 3, 2)
	if _, err := b.Snapshot(); err == nil {
		t.Fatal("expected an error before the first present")
	}
	_ = b.BeginFrame()
	b.BindFramebuffer(nil)
	b.Clear(mgl32.Vec4{1, 0, 0.5, 1}, 1)
	_ = b.EndFrame()
	b.Present()

	img, err := b.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if img.Bounds().Dx() != 3 || img.Bounds().Dy() != 2 {
		t.Fatalf("snapshot bounds = %v", img.Bounds())
	}
	if got := img.RGBAAt(2, 1); got != (color.RGBA{R: 255, G: 0, B: 128, A: 255}) {
		t.Errorf("pixel = %v", got)
	}
}

func TestFrameStateErrors(t *testing.T) {
	b := newTestDevice(t, 2, 2)
	p := newTestProgram(t, b, "flat")
	if err := b.Draw(p, nil, nil); err == nil {
		t.Error("expected an error drawing outside of a frame")
	}
	if err := b.EndFrame(); err == nil {
		t.Error("expected an error ending a frame that never began")
	}
	_ = b.BeginFrame()
	if err := b.BeginFrame(); err == nil {
		t.Error("expected an error beginning a frame twice")
	}
}

func TestCompileUnknownKernel(t *testing.T) {
	b := newTestDevice(t, 2, 2)
	s, _ := shader.Builtin(shader.KeyGeometry)
	err := b.CompileProgram(program.NewProgram("missing", s))
	var compileErr *program.CompileError
	if !errors.As(err, &compileErr) || compileErr.Key != "missing" {
		t.Fatalf("CompileProgram err = %v, want *program.CompileError for missing", err)
	}
}

func TestBuiltinKernelsCoverEveryProgram(t *testing.T) {
	kernels := builtinKernels()
	for _, key := range shader.BuiltinKeys() {
		if _, ok := kernels[key]; !ok {
			t.Errorf("no software kernel for %s", key)
		}
	}
}

func TestParallelBandsMatchSerial(t *testing.T) {
	render := func(workers int) []mgl32.Vec4 {
		b := newTestDevice(t, 37, 53, WithWorkers(workers))
		p := newTestProgram(t, b, "gradient", program.WithFullscreen())
		tex := mustTexture(t, b, "out", 37, 53, gpu.FormatRGBA16Float)
		fb := mustFramebuffer(t, b, gpu.FramebufferDescriptor{Label: "out", ColorAttachments: []gpu.Texture{tex}})
		_ = b.BeginFrame()
		b.BindFramebuffer(fb)
		_ = b.Draw(p, nil, nil)
		_ = b.EndFrame()
		out := make([]mgl32.Vec4, 0, 37*53)
		for y := 0; y < 53; y++ {
			for x := 0; x < 37; x++ {
				out = append(out, b.ReadPixel(tex, x, y))
			}
		}
		return out
	}
	serial, parallel := render(1), render(8)
	for i := range serial {
		if serial[i] != parallel[i] {
			t.Fatalf("texel %d: serial %v, parallel %v", i, serial[i], parallel[i])
		}
	}
	if serial[len(serial)-1] != (mgl32.Vec4{36, 52, 0, 1}) {
		t.Errorf("last texel = %v, every pixel must be covered", serial[len(serial)-1])
	}
}

func TestSampleBilinear(t *testing.T) {
	tex := &texture{width: 2, height: 1, format: gpu.FormatRGBA16Float, texels: []mgl32.Vec4{{0, 0, 0, 0}, {1, 1, 1, 1}}}
	ctx := &ShaderContext{inputs: []*texture{tex}}

	if got := ctx.Sample(0, mgl32.Vec2{0.25, 0.5}); got != (mgl32.Vec4{}) {
		t.Errorf("texel center = %v, want exact texel 0", got)
	}
	if got := ctx.Sample(0, mgl32.Vec2{0.5, 0.5}); got != (mgl32.Vec4{0.5, 0.5, 0.5, 0.5}) {
		t.Errorf("midpoint = %v, want 0.5", got)
	}
	if got := ctx.Sample(0, mgl32.Vec2{1.5, 0.5}); got != (mgl32.Vec4{1, 1, 1, 1}) {
		t.Errorf("clamped = %v, want edge texel", got)
	}
	if got := ctx.Sample(3, mgl32.Vec2{0.5, 0.5}); got != (mgl32.Vec4{1, 1, 1, 1}) {
		t.Errorf("empty slot = %v, want white", got)
	}
}

func TestFloorThroughEyePlaneIsClipped(t *testing.T) {
	b := newTestDevice(t, 8, 8)
	p := newTestProgram(t, b, "perspective", program.WithDepthTestEnabled(false))
	target := mustTexture(t, b, "color", 8, 8, gpu.FormatRGBA16Float)
	fb := mustFramebuffer(t, b, gpu.FramebufferDescriptor{Label: "color", ColorAttachments: []gpu.Texture{target}})

	// Every triangle of this floor has a vertex behind the camera.
	floor, err := b.CreateMesh(gpu.MeshDescriptor{
		Label: "floor",
		Vertices: []common.Vertex{
			{Position: [3]float32{-1, -1, -5}},
			{Position: [3]float32{1, -1, -5}},
			{Position: [3]float32{1, -1, 5}},
			{Position: [3]float32{-1, -1, 5}},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	})
	if err != nil {
		t.Fatalf("CreateMesh: %v", err)
	}

	_ = b.BeginFrame()
	b.BindFramebuffer(fb)
	b.Clear(mgl32.Vec4{}, 1)
	if err := b.Draw(p, nil, floor); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	_ = b.EndFrame()

	// Pixel (4,6) sits at ndc y = -0.625 and meets the floor 1.6 units ahead.
	got := b.ReadPixel(target, 4, 6)
	if got[1] != 1 || abs32(got[0]-1.6) > 0.01 {
		t.Errorf("floor pixel = %v, want distance 1.6", got)
	}
	if got := b.ReadPixel(target, 4, 1); got != (mgl32.Vec4{}) {
		t.Errorf("pixel above the horizon = %v, want untouched", got)
	}
}
