package renderer

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/program"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/software"
	"github.com/go-gl/mathgl/mgl32"
)

// recordingKernel records the uniforms of the last draw and shades a constant color.
type recordingKernel struct {
	seen *software.Uniforms
}

func (k recordingKernel) Vertex(v common.Vertex) (mgl32.Vec4, software.Varyings) {
	return mgl32.Vec4{v.Position[0], v.Position[1], 0, 1}, software.Varyings{}
}

func (k recordingKernel) Fragment(_ *software.ShaderContext, _ software.Varyings) software.Outputs {
	return software.Outputs{{0, 1, 0, 1}}
}

func newSoftwareRenderer(t *testing.T, seen *software.Uniforms) Renderer {
	t.Helper()
	r := NewRenderer(BackendTypeSoftware, nil,
		WithSurfaceSize(8, 6),
		WithSoftwareOptions(
			software.WithWorkers(2),
			software.WithKernel("recording", func(u software.Uniforms) software.Kernel {
				*seen = u
				return recordingKernel{seen: seen}
			}),
		),
	)
	t.Cleanup(r.Release)
	return r
}

func recordingProgram(t *testing.T, opts ...program.ProgramBuilderOption) program.Program {
	t.Helper()
	s, err := shader.Builtin(shader.KeyComposite)
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	return program.NewProgram("recording", s, opts...)
}

func TestNewSoftwareRenderer(t *testing.T) {
	var seen software.Uniforms
	r := newSoftwareRenderer(t, &seen)
	if w, h := r.SurfaceSize(); w != 8 || h != 6 {
		t.Errorf("SurfaceSize() = %dx%d, want 8x6", w, h)
	}
	if r.BackendType() != BackendTypeSoftware || r.BackendType().String() != "software" {
		t.Errorf("BackendType() = %v", r.BackendType())
	}
	r.Resize(4, 2)
	if w, h := r.SurfaceSize(); w != 4 || h != 2 {
		t.Errorf("after Resize SurfaceSize() = %dx%d, want 4x2", w, h)
	}
}

func TestRegisterProgramsSkipsDuplicates(t *testing.T) {
	var seen software.Uniforms
	r := newSoftwareRenderer(t, &seen)

	first := recordingProgram(t)
	second := recordingProgram(t)
	if err := r.RegisterPrograms(first, second); err != nil {
		t.Fatalf("RegisterPrograms: %v", err)
	}
	if r.Program("recording") != first {
		t.Error("a duplicate key must not replace the registered program")
	}
	if len(r.Programs()) != 1 {
		t.Errorf("Programs() = %d entries, want 1", len(r.Programs()))
	}
	if second.Handle() != nil {
		t.Error("a skipped program must not be compiled")
	}
}

func TestRegisterBuiltinPrograms(t *testing.T) {
	var seen software.Uniforms
	r := newSoftwareRenderer(t, &seen)
	for _, key := range shader.BuiltinKeys() {
		p, err := program.NewBuiltin(key)
		if err != nil {
			t.Fatalf("NewBuiltin(%s): %v", key, err)
		}
		if err := r.RegisterPrograms(p); err != nil {
			t.Fatalf("RegisterPrograms(%s): %v", key, err)
		}
	}
	if got := len(r.Programs()); got != len(shader.BuiltinKeys()) {
		t.Errorf("Programs() = %d, want %d", got, len(shader.BuiltinKeys()))
	}
}

func TestRegisterProgramCompileError(t *testing.T) {
	var seen software.Uniforms
	r := newSoftwareRenderer(t, &seen)
	s, _ := shader.Builtin(shader.KeyComposite)
	err := r.RegisterPrograms(program.NewProgram("no_kernel", s))
	var compileErr *program.CompileError
	if !errors.As(err, &compileErr) {
		t.Fatalf("RegisterPrograms err = %v, want *program.CompileError", err)
	}
	if r.Program("no_kernel") != nil {
		t.Error("a program that failed to compile must not be cached")
	}
}

func TestActiveProgramStack(t *testing.T) {
	var seen software.Uniforms
	r := newSoftwareRenderer(t, &seen)
	outer := recordingProgram(t)
	_ = r.RegisterPrograms(outer)
	s, _ := shader.Builtin(shader.KeyGeometry)
	inner := program.NewProgram("inner", s)
	r.Activate(inner)

	if r.ActiveProgram() != inner {
		t.Fatal("directly activated program should be active")
	}
	outer.Use()
	if r.ActiveProgram() != outer {
		t.Fatal("Use should push the program")
	}
	outer.Unuse()
	if r.ActiveProgram() != inner {
		t.Fatal("Unuse should restore the previous program")
	}
	r.Deactivate(inner)
	if r.ActiveProgram() != nil {
		t.Error("stack should be empty")
	}
}

func TestDrawWithoutActiveProgram(t *testing.T) {
	var seen software.Uniforms
	r := newSoftwareRenderer(t, &seen)
	_ = r.BeginFrame()
	defer r.EndFrame()
	if err := r.DrawFullscreen(); !errors.Is(err, ErrNoActiveProgram) {
		t.Errorf("DrawFullscreen err = %v, want ErrNoActiveProgram", err)
	}
}

func TestDrawMergesUniformBlocks(t *testing.T) {
	var seen software.Uniforms
	r := newSoftwareRenderer(t, &seen)
	p := recordingProgram(t, program.WithFullscreen(), program.WithUniformBlockBinding("SharedMatrices", 0),
		program.WithUniform("ViewPosition", mgl32.Vec3{0, 0, 9}))
	if err := r.RegisterPrograms(p); err != nil {
		t.Fatalf("RegisterPrograms: %v", err)
	}
	r.SetUniformBlock(0, map[string]any{
		"ViewMatrix":   mgl32.Ident4(),
		"ViewPosition": mgl32.Vec3{0, 0, 5},
	})
	r.SetUniformBlock(1, map[string]any{"Unbound": float32(1)})

	_ = r.BeginFrame()
	p.Use()
	if err := r.DrawFullscreen(); err != nil {
		t.Fatalf("DrawFullscreen: %v", err)
	}
	p.Unuse()
	_ = r.EndFrame()

	if _, ok := seen["ViewMatrix"]; !ok {
		t.Error("shared block values must reach the draw")
	}
	if got := seen.Vec3("ViewPosition"); got != (mgl32.Vec3{0, 0, 9}) {
		t.Errorf("ViewPosition = %v, program uniforms must override shared blocks", got)
	}
	if _, ok := seen["Unbound"]; ok {
		t.Error("blocks the program is not bound to must not be merged")
	}
}

func TestRendererFrameToSnapshot(t *testing.T) {
	var seen software.Uniforms
	r := newSoftwareRenderer(t, &seen)
	p := recordingProgram(t, program.WithFullscreen())
	_ = r.RegisterPrograms(p)

	_ = r.BeginFrame()
	r.BindFramebuffer(nil)
	r.Clear(mgl32.Vec4{1, 0, 0, 1}, 1)
	p.Use()
	if err := r.DrawFullscreen(); err != nil {
		t.Fatalf("DrawFullscreen: %v", err)
	}
	p.Unuse()
	if err := r.EndFrame(); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	r.Present()

	img, err := r.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got := img.RGBAAt(7, 5); got.G != 255 || got.R != 0 {
		t.Errorf("pixel = %v, want green", got)
	}
}

func TestResourceCreationErrorsWrap(t *testing.T) {
	r := NewRenderer(BackendTypeSoftware, nil, WithSurfaceSize(2, 2),
		WithSoftwareOptions(software.WithTextureBudget(1)))
	defer r.Release()

	if _, err := r.CreateTexture(gpu.TextureDescriptor{Label: "a", Width: 2, Height: 2}); err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	_, err := r.CreateTexture(gpu.TextureDescriptor{Label: "b", Width: 2, Height: 2})
	if !errors.Is(err, ErrResourceCreation) || !errors.Is(err, software.ErrOutOfMemory) {
		t.Errorf("CreateTexture err = %v, want ErrResourceCreation wrapping ErrOutOfMemory", err)
	}
	_, err = r.CreateFramebuffer(gpu.FramebufferDescriptor{Label: "empty"})
	if !errors.Is(err, ErrResourceCreation) {
		t.Errorf("CreateFramebuffer err = %v, want ErrResourceCreation", err)
	}
}

func TestDrawMeshRequiresMesh(t *testing.T) {
	var seen software.Uniforms
	r := newSoftwareRenderer(t, &seen)
	p := recordingProgram(t)
	_ = r.RegisterPrograms(p)
	_ = r.BeginFrame()
	defer r.EndFrame()
	p.Use()
	defer p.Unuse()
	if err := r.DrawMesh(nil); err == nil {
		t.Error("expected an error for a nil mesh")
	}
}

type fakeBackend struct {
	RendererBackend
}

func TestSnapshotUnsupported(t *testing.T) {
	sw := software.New(2, 2)
	r := NewRenderer(BackendTypeSoftware, nil, WithBackend(fakeBackend{sw}))
	if _, err := r.Snapshot(); !errors.Is(err, ErrSnapshotUnsupported) {
		t.Errorf("Snapshot err = %v, want ErrSnapshotUnsupported", err)
	}
}
