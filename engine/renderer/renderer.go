package renderer

import (
	"errors"
	"fmt"
	"image"
	"maps"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/program"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/software"
	"github.com/Carmen-Shannon/oxy-deferred/engine/window"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrResourceCreation wraps every device failure to allocate a texture, framebuffer or mesh.
	ErrResourceCreation = errors.New("resource creation failed")

	// ErrNoActiveProgram is returned by draws issued while no program is in use.
	ErrNoActiveProgram = errors.New("no active program")

	// ErrSnapshotUnsupported is returned by Snapshot when the device cannot read back frames.
	ErrSnapshotUnsupported = errors.New("backend does not support snapshots")
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	programCache map[string]program.Program
	active       []program.Program
	blocks       map[int]map[string]any

	backendType RendererBackendType
	backend     RendererBackend

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	surfaceWidth         int
	surfaceHeight        int
	softwareOptions      []software.BackendBuilderOption
}

// Renderer is the immediate-mode drawing API the render passes are written against.
//
// The Renderer caches compiled programs by key, tracks the active program as a stack driven by
// Program.Use and Program.Unuse, publishes shared uniform blocks, and forwards resource and draw
// calls to a device backend. Calls are issued from a single goroutine.
type Renderer interface {
	program.Activator

	// Program retrieves the cached Program associated with the given key.
	// If the Program does not exist, this will return nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Program to retrieve
	//
	// Returns:
	//   - program.Program: the Program associated with the key, or nil if not found
	Program(key string) program.Program

	// Programs retrieves the entire cache of Programs.
	//
	// Returns:
	//   - map[string]program.Program: a copy of the cache keyed by program key
	Programs() map[string]program.Program

	// RegisterPrograms compiles one or more programs on the device and caches them by key.
	// Programs whose keys are already registered are skipped to avoid duplicate device objects.
	// Registered programs report Use and Unuse to this Renderer.
	//
	// Parameters:
	//   - programs: the Programs to register
	//
	// Returns:
	//   - error: the first *program.CompileError encountered
	RegisterPrograms(programs ...program.Program) error

	// ActiveProgram returns the program on top of the active stack.
	//
	// Returns:
	//   - program.Program: the active program, or nil when none is in use
	ActiveProgram() program.Program

	// SetUniformBlock publishes shared uniform values at a binding point. Values are merged into
	// every program bound to that point, at draw time, beneath the program's own uniforms.
	//
	// Parameters:
	//   - point: the binding point
	//   - values: uniform values keyed by member name; the map is copied
	SetUniformBlock(point int, values map[string]any)

	// UniformBlock returns the values published at a binding point.
	//
	// Parameters:
	//   - point: the binding point
	//
	// Returns:
	//   - map[string]any: the published values, or nil
	UniformBlock(point int) map[string]any

	// CreateTexture allocates a device texture.
	//
	// Parameters:
	//   - desc: the texture descriptor
	//
	// Returns:
	//   - gpu.Texture: the texture handle
	//   - error: an error wrapping ErrResourceCreation
	CreateTexture(desc gpu.TextureDescriptor) (gpu.Texture, error)

	// WriteTexture uploads RGBA8 pixel data to a texture.
	//
	// Parameters:
	//   - t: the destination texture
	//   - data: the pixel data, sized like the texture
	//
	// Returns:
	//   - error: an error if the data does not match the texture
	WriteTexture(t gpu.Texture, data common.TextureStagingData) error

	// ReleaseTexture frees a texture. Releasing twice is a no-op.
	//
	// Parameters:
	//   - t: the texture to release
	ReleaseTexture(t gpu.Texture)

	// CreateFramebuffer aggregates textures into a render target.
	//
	// Parameters:
	//   - desc: the framebuffer descriptor
	//
	// Returns:
	//   - gpu.Framebuffer: the framebuffer handle
	//   - error: an error wrapping ErrResourceCreation
	CreateFramebuffer(desc gpu.FramebufferDescriptor) (gpu.Framebuffer, error)

	// ReleaseFramebuffer frees a framebuffer aggregation without touching its attachments.
	//
	// Parameters:
	//   - fb: the framebuffer to release
	ReleaseFramebuffer(fb gpu.Framebuffer)

	// CreateMesh uploads indexed triangle geometry.
	//
	// Parameters:
	//   - desc: the mesh descriptor
	//
	// Returns:
	//   - gpu.Mesh: the mesh handle
	//   - error: an error wrapping ErrResourceCreation
	CreateMesh(desc gpu.MeshDescriptor) (gpu.Mesh, error)

	// ReleaseMesh frees a mesh.
	//
	// Parameters:
	//   - m: the mesh to release
	ReleaseMesh(m gpu.Mesh)

	// BindFramebuffer selects the render target of subsequent clears and draws.
	//
	// Parameters:
	//   - fb: the framebuffer, or nil for the output surface
	BindFramebuffer(fb gpu.Framebuffer)

	// BindTexture binds a texture to an input slot of subsequent draws.
	//
	// Parameters:
	//   - slot: the input slot
	//   - t: the texture, or nil to unbind
	BindTexture(slot int, t gpu.Texture)

	// Resize reconfigures the output surface.
	// This should be called when re-sizing the window or when the surface size should change.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// SurfaceSize returns the output surface size.
	//
	// Returns:
	//   - int: the width in pixels
	//   - int: the height in pixels
	SurfaceSize() (int, int)

	// BeginFrame starts recording a frame. Must be paired with EndFrame.
	//
	// Returns:
	//   - error: an error if the device cannot start a frame
	BeginFrame() error

	// Clear clears every attachment of the bound render target.
	//
	// Parameters:
	//   - color: the clear color of color attachments
	//   - depth: the clear value of the depth attachment
	Clear(color mgl32.Vec4, depth float32)

	// SetBlend selects the blend mode of subsequent draws.
	//
	// Parameters:
	//   - mode: the blend mode
	SetBlend(mode gpu.BlendMode)

	// BlitDepth copies the depth attachment of src into dst.
	//
	// Parameters:
	//   - src: the framebuffer to copy from
	//   - dst: the framebuffer to copy into
	//
	// Returns:
	//   - error: an error if either framebuffer lacks depth or the sizes differ
	BlitDepth(src, dst gpu.Framebuffer) error

	// DrawFullscreen draws a fullscreen triangle with the active program.
	//
	// Returns:
	//   - error: ErrNoActiveProgram, or a device error
	DrawFullscreen() error

	// DrawMesh draws a mesh with the active program.
	//
	// Parameters:
	//   - m: the mesh to draw
	//
	// Returns:
	//   - error: ErrNoActiveProgram, or a device error
	DrawMesh(m gpu.Mesh) error

	// EndFrame finishes and submits the frame.
	//
	// Returns:
	//   - error: an error if submission fails
	EndFrame() error

	// Present shows the last submitted frame.
	Present()

	// DiscardFrame drops a frame that will not be presented so the next BeginFrame can acquire
	// a fresh surface image.
	DiscardFrame()

	// Snapshot returns a copy of the last presented frame.
	//
	// Returns:
	//   - *image.RGBA: the frame
	//   - error: ErrSnapshotUnsupported when the device cannot read back
	Snapshot() (*image.RGBA, error)

	// Backend returns the device the Renderer drives.
	//
	// Returns:
	//   - RendererBackend: the device backend
	Backend() RendererBackend

	// BackendType returns the kind of device the Renderer was created with.
	//
	// Returns:
	//   - RendererBackendType: the backend type
	BackendType() RendererBackendType

	// Release frees every cached program and the device.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer with the specified backend type.
// The wgpu backend presents to the window's surface and panics if no adapter or device can be
// acquired. The software backend renders headless; its surface takes the window's size, or the
// size given by WithSurfaceSize when win is nil.
//
// Parameters:
//   - backendType: the type of rendering backend to use
//   - win: the window to present to; may be nil for the software backend
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new instance of Renderer configured with the specified backend and options
func NewRenderer(backendType RendererBackendType, win window.Window, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:            &sync.Mutex{},
		programCache:  make(map[string]program.Program),
		blocks:        make(map[int]map[string]any),
		backendType:   backendType,
		surfaceWidth:  800,
		surfaceHeight: 600,
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	if win != nil {
		r.surfaceWidth, r.surfaceHeight = win.Size()
	}

	if r.backend == nil {
		switch backendType {
		case BackendTypeSoftware:
			opts := append([]software.BackendBuilderOption{software.WithLogger(Logger())}, r.softwareOptions...)
			r.backend = software.New(r.surfaceWidth, r.surfaceHeight, opts...)
		case BackendTypeWGPU:
			fallthrough
		default:
			if win == nil {
				panic("renderer: the wgpu backend requires a window")
			}
			presentMode := PresentModeUncapped
			if r.pendingPresentMode != nil {
				presentMode = *r.pendingPresentMode
			}
			r.backend = newWGPURendererBackend(win.SurfaceDescriptor(), r.forceFallbackAdapter, presentMode)
		}
	}

	r.backend.ConfigureSurface(r.surfaceWidth, r.surfaceHeight)
	Logger().Info("renderer created", "backend", backendType.String(), "width", r.surfaceWidth, "height", r.surfaceHeight)
	return r
}

func (r *renderer) Program(key string) program.Program {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.programCache[key]
}

func (r *renderer) Programs() map[string]program.Program {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.programCache)
}

func (r *renderer) RegisterPrograms(programs ...program.Program) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range programs {
		key := p.Key()
		if _, exists := r.programCache[key]; exists {
			continue
		}
		if err := r.backend.CompileProgram(p); err != nil {
			return err
		}
		p.SetActivator(r)
		r.programCache[key] = p
		Logger().Debug("program registered", "key", key)
	}
	return nil
}

func (r *renderer) Activate(p program.Program) {
	r.active = append(r.active, p)
}

func (r *renderer) Deactivate(p program.Program) {
	for i := len(r.active) - 1; i >= 0; i-- {
		if r.active[i] == p {
			r.active = append(r.active[:i], r.active[i+1:]...)
			return
		}
	}
}

func (r *renderer) ActiveProgram() program.Program {
	if len(r.active) == 0 {
		return nil
	}
	return r.active[len(r.active)-1]
}

func (r *renderer) SetUniformBlock(point int, values map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks[point] = maps.Clone(values)
}

func (r *renderer) UniformBlock(point int) map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blocks[point]
}

func (r *renderer) CreateTexture(desc gpu.TextureDescriptor) (gpu.Texture, error) {
	t, err := r.backend.CreateTexture(desc)
	if err != nil {
		return nil, fmt.Errorf("%w: texture %q: %w", ErrResourceCreation, desc.Label, err)
	}
	return t, nil
}

func (r *renderer) WriteTexture(t gpu.Texture, data common.TextureStagingData) error {
	return r.backend.WriteTexture(t, data)
}

func (r *renderer) ReleaseTexture(t gpu.Texture) {
	if t != nil {
		r.backend.ReleaseTexture(t)
	}
}

func (r *renderer) CreateFramebuffer(desc gpu.FramebufferDescriptor) (gpu.Framebuffer, error) {
	fb, err := r.backend.CreateFramebuffer(desc)
	if err != nil {
		return nil, fmt.Errorf("%w: framebuffer %q: %w", ErrResourceCreation, desc.Label, err)
	}
	return fb, nil
}

func (r *renderer) ReleaseFramebuffer(fb gpu.Framebuffer) {
	if fb != nil {
		r.backend.ReleaseFramebuffer(fb)
	}
}

func (r *renderer) CreateMesh(desc gpu.MeshDescriptor) (gpu.Mesh, error) {
	m, err := r.backend.CreateMesh(desc)
	if err != nil {
		return nil, fmt.Errorf("%w: mesh %q: %w", ErrResourceCreation, desc.Label, err)
	}
	return m, nil
}

func (r *renderer) ReleaseMesh(m gpu.Mesh) {
	if m != nil {
		r.backend.ReleaseMesh(m)
	}
}

func (r *renderer) BindFramebuffer(fb gpu.Framebuffer) {
	r.backend.BindFramebuffer(fb)
}

func (r *renderer) BindTexture(slot int, t gpu.Texture) {
	r.backend.BindTexture(slot, t)
}

func (r *renderer) Resize(width, height int) {
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SurfaceSize() (int, int) {
	return r.backend.SurfaceSize()
}

func (r *renderer) BeginFrame() error {
	return r.backend.BeginFrame()
}

func (r *renderer) Clear(color mgl32.Vec4, depth float32) {
	r.backend.Clear(color, depth)
}

func (r *renderer) SetBlend(mode gpu.BlendMode) {
	r.backend.SetBlend(mode)
}

func (r *renderer) BlitDepth(src, dst gpu.Framebuffer) error {
	return r.backend.BlitDepth(src, dst)
}

func (r *renderer) DrawFullscreen() error {
	return r.draw(nil)
}

func (r *renderer) DrawMesh(m gpu.Mesh) error {
	if m == nil {
		return errors.New("draw mesh: nil mesh")
	}
	return r.draw(m)
}

// draw merges the shared blocks the active program is bound to beneath its own uniforms and
// issues the draw on the device.
func (r *renderer) draw(m gpu.Mesh) error {
	p := r.ActiveProgram()
	if p == nil {
		return ErrNoActiveProgram
	}

	r.mu.Lock()
	uniforms := make(map[string]any, len(p.Uniforms()))
	for _, point := range p.UniformBlockBindings() {
		maps.Copy(uniforms, r.blocks[point])
	}
	r.mu.Unlock()
	maps.Copy(uniforms, p.Uniforms())

	return r.backend.Draw(p, uniforms, m)
}

func (r *renderer) EndFrame() error {
	return r.backend.EndFrame()
}

func (r *renderer) Present() {
	r.backend.Present()
}

func (r *renderer) DiscardFrame() {
	r.backend.DiscardFrame()
}

func (r *renderer) Snapshot() (*image.RGBA, error) {
	s, ok := r.backend.(gpu.Snapshotter)
	if !ok {
		return nil, ErrSnapshotUnsupported
	}
	return s.Snapshot()
}

func (r *renderer) Backend() RendererBackend {
	return r.backend
}

func (r *renderer) BackendType() RendererBackendType {
	return r.backendType
}

func (r *renderer) Release() {
	r.mu.Lock()
	for key, p := range r.programCache {
		r.backend.ReleaseProgram(p)
		delete(r.programCache, key)
	}
	r.active = nil
	r.mu.Unlock()
	r.backend.Release()
}
