package frame

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/profiler"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/software"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/Carmen-Shannon/oxy-deferred/engine/skybox"
	"github.com/davecgh/go-spew/spew"
	"github.com/go-gl/mathgl/mgl32"
)

// flakyRenderer fails texture creation once its allowance runs out. A negative allowance
// never fails.
type flakyRenderer struct {
	renderer.Renderer
	remaining int
}

func (f *flakyRenderer) CreateTexture(desc gpu.TextureDescriptor) (gpu.Texture, error) {
	if f.remaining == 0 {
		return nil, fmt.Errorf("%w: texture %q refused", renderer.ErrResourceCreation, desc.Label)
	}
	if f.remaining > 0 {
		f.remaining--
	}
	return f.Renderer.CreateTexture(desc)
}

func newController(t *testing.T, opts ...ControllerBuilderOption) (Controller, *flakyRenderer, *software.Backend) {
	t.Helper()
	r := renderer.NewRenderer(renderer.BackendTypeSoftware, nil, renderer.WithSurfaceSize(16, 12))
	t.Cleanup(r.Release)
	fr := &flakyRenderer{Renderer: r, remaining: -1}

	sc := scene.NewScene("frame", camera.NewCamera(), scene.WithLights(light.DefaultLights()...))
	m, err := model.NewModel(r, model.Cube(1))
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	t.Cleanup(m.Release)
	sc.CreateNode(scene.WithDrawable(m), scene.WithTransform(mgl32.HomogRotate3DY(0.5)))

	opts = append([]ControllerBuilderOption{WithSkyboxOptions(skybox.WithResolution(16, 8), skybox.WithBRDFLookup(4, 4))}, opts...)
	c, err := NewController(fr, sc, opts...)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	t.Cleanup(c.Release)
	return c, fr, r.Backend().(*software.Backend)
}

func TestNewControllerSizesToSurface(t *testing.T) {
	c, _, sw := newController(t)
	if w, h := c.Size(); w != 16 || h != 12 {
		t.Errorf("Size() = %dx%d", w, h)
	}
	if w, h := c.Targets().Size(); w != 16 || h != 12 {
		t.Errorf("buffers sized %dx%d", w, h)
	}
	if got := c.Scene().Camera().Aspect(); got < 1.333 || got > 1.334 {
		t.Errorf("camera aspect = %v, want 4/3", got)
	}
	// buffer textures, four skybox maps and the noise texture
	if got, want := sw.LiveTextures(), 15+4+1; got != want {
		t.Errorf("live textures = %d, want %d", got, want)
	}
}

func TestRenderFramePresents(t *testing.T) {
	p := profiler.NewProfiler(profiler.WithInterval(0), profiler.WithQuiet(true))
	c, _, sw := newController(t, WithProfiler(p))
	report, err := c.RenderFrame(config.Defaults())
	if err != nil {
		t.Fatalf("RenderFrame: %v\n%s", err, spew.Sdump(report.Stages))
	}
	if report.ColorSource != pass.ColorSourceBloom || !report.Ran(pass.StageBackground) {
		t.Errorf("report = %s", spew.Sdump(report.ColorSource, report.Stages))
	}
	if report.Lights != 2 {
		t.Errorf("Lights = %d, want the default rig", report.Lights)
	}

	img, err := sw.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if px := img.RGBAAt(8, 6); px.R == 0 && px.G == 0 && px.B == 0 {
		t.Errorf("center pixel %v is black", px)
	}

	p.Tick()
	if _, ok := p.Last().Stages[pass.StageGeometry]; !ok {
		t.Error("stage timings should reach the profiler")
	}
}

func TestOnViewportResized(t *testing.T) {
	c, _, sw := newController(t)
	before := sw.LiveTextures()
	sizes := [][2]int{{32, 8}, {5, 7}, {16, 12}}
	for _, sz := range sizes {
		if err := c.OnViewportResized(sz[0], sz[1]); err != nil {
			t.Fatalf("OnViewportResized(%v): %v", sz, err)
		}
		for _, tgt := range c.Targets().Targets() {
			if w, h := tgt.Size(); w != sz[0] || h != sz[1] {
				t.Errorf("%s sized %dx%d, want %v", tgt.Label(), w, h, sz)
			}
			for _, ch := range tgt.Channels() {
				if ch.Width() != sz[0] || ch.Height() != sz[1] {
					t.Errorf("%s is %dx%d, want %v", ch.Label(), ch.Width(), ch.Height(), sz)
				}
			}
		}
		if w, h := sw.SurfaceSize(); w != sz[0] || h != sz[1] {
			t.Errorf("surface %dx%d, want %v", w, h, sz)
		}
		if w, h := c.Pipeline().ScreenSize(); w != sz[0] || h != sz[1] {
			t.Errorf("screen size %dx%d, want %v", w, h, sz)
		}
		if got := c.Scene().Camera().Aspect(); got != float32(sz[0])/float32(sz[1]) {
			t.Errorf("aspect = %v", got)
		}
		if sw.LiveTextures() != before {
			t.Errorf("live textures = %d after resize, want %d", sw.LiveTextures(), before)
		}
		if _, err := c.RenderFrame(config.Defaults()); err != nil {
			t.Fatalf("RenderFrame after resize: %v", err)
		}
	}
}

func TestOnViewportResizedIgnoresNonPositive(t *testing.T) {
	c, _, _ := newController(t)
	for _, sz := range [][2]int{{0, 0}, {-1, 10}, {10, 0}} {
		if err := c.OnViewportResized(sz[0], sz[1]); err != nil {
			t.Errorf("OnViewportResized(%v) = %v, want nil", sz, err)
		}
	}
	if w, h := c.Size(); w != 16 || h != 12 {
		t.Errorf("Size() = %dx%d after ignored resizes", w, h)
	}
}

func TestResizeFailureReleasesBuffers(t *testing.T) {
	c, fr, sw := newController(t)
	// skybox maps and the noise texture outlive the buffer set
	owned := 4 + 1

	fr.remaining = 3
	err := c.OnViewportResized(20, 20)
	if !errors.Is(err, renderer.ErrResourceCreation) {
		t.Fatalf("OnViewportResized err = %v, want ErrResourceCreation", err)
	}
	if sw.LiveTextures() != owned {
		t.Errorf("live textures = %d, want %d", sw.LiveTextures(), owned)
	}
	for _, tgt := range c.Targets().Targets() {
		if tgt.Initialized() {
			t.Errorf("%s still initialized after a failed resize", tgt.Label())
		}
	}
	if w, h := c.Size(); w != 16 || h != 12 {
		t.Errorf("Size() = %dx%d, a failed resize must keep the old size", w, h)
	}

	fr.remaining = -1
	if err := c.OnViewportResized(20, 20); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if sw.LiveTextures() != owned+15 {
		t.Errorf("live textures = %d after retry", sw.LiveTextures())
	}
}

func TestResizeFailureIsReported(t *testing.T) {
	r := renderer.NewRenderer(renderer.BackendTypeSoftware, nil,
		renderer.WithSurfaceSize(4, 4),
		renderer.WithSoftwareOptions(software.WithTextureBudget(10)))
	defer r.Release()
	_, err := NewController(r, scene.NewScene("tight", camera.NewCamera()), WithSkybox(false))
	if !errors.Is(err, renderer.ErrResourceCreation) {
		t.Fatalf("NewController err = %v, want ErrResourceCreation", err)
	}
	if sw := r.Backend().(*software.Backend); sw.LiveTextures() != 0 {
		t.Errorf("failed construction left %d textures", sw.LiveTextures())
	}
}

// acquiringBackend models a device that hands out one surface image per frame and refuses to
// start a frame while the previous image is still held.
type acquiringBackend struct {
	*software.Backend
	held     bool
	discards int
}

func (b *acquiringBackend) BeginFrame() error {
	if b.held {
		return errors.New("previous frame surface not yet presented")
	}
	b.held = true
	return b.Backend.BeginFrame()
}

func (b *acquiringBackend) Present() {
	b.held = false
	b.Backend.Present()
}

func (b *acquiringBackend) DiscardFrame() {
	b.held = false
	b.discards++
	b.Backend.DiscardFrame()
}

// drawOnce fails its first draw and succeeds afterwards.
type drawOnce struct {
	calls int
}

func (d *drawOnce) Draw() error {
	d.calls++
	if d.calls == 1 {
		return errors.New("draw failed")
	}
	return nil
}

func TestFailedFrameReleasesSurface(t *testing.T) {
	dev := &acquiringBackend{Backend: software.New(8, 6)}
	r := renderer.NewRenderer(renderer.BackendTypeSoftware, nil,
		renderer.WithSurfaceSize(8, 6), renderer.WithBackend(dev))
	t.Cleanup(r.Release)

	sc := scene.NewScene("discard", camera.NewCamera())
	d := &drawOnce{}
	sc.CreateNode(scene.WithDrawable(d))
	c, err := NewController(r, sc, WithSkybox(false))
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	t.Cleanup(c.Release)

	if _, err := c.RenderFrame(config.Defaults()); err == nil {
		t.Fatal("the first frame should fail")
	}
	if dev.held || dev.discards != 1 {
		t.Fatalf("after a failed frame held=%v discards=%d, want the image dropped once", dev.held, dev.discards)
	}

	report, err := c.RenderFrame(config.Defaults())
	if err != nil {
		t.Fatalf("frame after a failure: %v", err)
	}
	if !report.Ran(pass.StageComposite) || dev.held {
		t.Errorf("second frame stages=%v held=%v", report.Stages, dev.held)
	}
	if d.calls != 2 {
		t.Errorf("drawable called %d times, want 2", d.calls)
	}
}
