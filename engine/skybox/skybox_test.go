package skybox

import (
	"image"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/software"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/target"
	"github.com/go-gl/mathgl/mgl32"
)

func newRenderer(t *testing.T) (renderer.Renderer, *software.Backend) {
	t.Helper()
	r := renderer.NewRenderer(renderer.BackendTypeSoftware, nil, renderer.WithSurfaceSize(8, 8))
	t.Cleanup(r.Release)
	return r, r.Backend().(*software.Backend)
}

func TestDirectionCoversSphere(t *testing.T) {
	if d := Direction(0, 0, 64, 32); d[1] < 0.99 {
		t.Errorf("top row direction = %v, want +Y", d)
	}
	if d := Direction(0, 31, 64, 32); d[1] > -0.99 {
		t.Errorf("bottom row direction = %v, want -Y", d)
	}
	if d := Direction(31, 16, 64, 32); d.Len() < 0.999 || d.Len() > 1.001 {
		t.Errorf("direction %v is not unit length", d)
	}
}

func TestSkyRadiance(t *testing.T) {
	sky := DefaultSky()
	if got := sky.Radiance(sky.SunDirection); got != sky.SunColor {
		t.Errorf("sun direction radiance = %v, want %v", got, sky.SunColor)
	}
	if got := sky.Radiance(mgl32.Vec3{0, -1, 0}); got != sky.Ground {
		t.Errorf("straight down = %v, want ground %v", got, sky.Ground)
	}
	up := sky.Radiance(mgl32.Vec3{0, 1, 0})
	if up.Sub(sky.Zenith).Len() > 1e-5 {
		t.Errorf("straight up = %v, want zenith %v", up, sky.Zenith)
	}
	sky.SunSize = 0
	if got := sky.Radiance(sky.SunDirection); got == sky.SunColor {
		t.Error("a zero-size sun must not be visible")
	}
}

func TestConvolveBlurs(t *testing.T) {
	sky := DefaultSky()
	env := sky.Render(64, 32)
	blurred := Convolve(env, image.Pt(4, 2), image.Pt(16, 8))
	if blurred.Bounds().Dx() != 16 || blurred.Bounds().Dy() != 8 {
		t.Fatalf("bounds = %v", blurred.Bounds())
	}
	spread := func(img *image.RGBA) int {
		lo, hi := 255, 0
		for i := 0; i < len(img.Pix); i += 4 {
			lo = min(lo, int(img.Pix[i+2]))
			hi = max(hi, int(img.Pix[i+2]))
		}
		return hi - lo
	}
	if spread(blurred) >= spread(env) {
		t.Errorf("convolution should narrow the value range: %d >= %d", spread(blurred), spread(env))
	}
}

func TestBRDFLookup(t *testing.T) {
	lut := BRDFLookup(16, 128)
	// smooth surface seen head on reflects nearly everything through the scale term
	head := lut.RGBAAt(15, 0)
	if head.R < 200 || head.G > 30 {
		t.Errorf("smooth head-on texel = %v, want scale near 1 and bias near 0", head)
	}
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			c := lut.RGBAAt(x, y)
			if int(c.R)+int(c.G) > 260 {
				t.Fatalf("texel (%d,%d) = %v reflects more than it receives", x, y, c)
			}
		}
	}
}

func TestNewSkyboxUploadsAndReleases(t *testing.T) {
	r, sw := newRenderer(t)
	sb, err := NewSkybox(r, WithResolution(32, 16), WithBRDFLookup(8, 16))
	if err != nil {
		t.Fatalf("NewSkybox: %v", err)
	}
	if sw.LiveTextures() != 4 {
		t.Errorf("live textures = %d, want 4", sw.LiveTextures())
	}
	if w, h := sb.Environment().Width(), sb.Environment().Height(); w != 32 || h != 16 {
		t.Errorf("environment = %dx%d", w, h)
	}
	if sb.Irradiance().Width() != 8 || sb.Prefilter().Width() != 16 || sb.BRDF().Width() != 8 {
		t.Error("lighting maps have unexpected sizes")
	}
	sb.Release()
	sb.Release()
	if sw.LiveTextures() != 0 {
		t.Errorf("leaked %d textures", sw.LiveTextures())
	}
}

func TestDrawBackgroundFillsOnlyEmptyDepth(t *testing.T) {
	r, sw := newRenderer(t)
	sky := DefaultSky()
	sky.SunSize = 0
	sb, err := NewSkybox(r, WithSky(sky), WithResolution(32, 16), WithBRDFLookup(4, 4))
	if err != nil {
		t.Fatalf("NewSkybox: %v", err)
	}
	defer sb.Release()

	shaded := target.NewRenderTarget(r, target.ShadedLayout)
	if err := shaded.Initialize(8, 8); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer shaded.Release()
	cam := camera.NewCamera()

	tests := []struct {
		name       string
		clearDepth float32
		wantSky    bool
	}{
		{"empty depth", 1, true},
		{"covered depth", 0.5, false},
	}
	for _, tc := range tests {
		if err := r.BeginFrame(); err != nil {
			t.Fatalf("BeginFrame: %v", err)
		}
		shaded.BindAsTarget()
		r.Clear(mgl32.Vec4{0, 0, 0, 1}, tc.clearDepth)
		if err := sb.DrawBackground(cam); err != nil {
			t.Fatalf("%s: DrawBackground: %v", tc.name, err)
		}
		_ = r.EndFrame()

		c := sw.ReadPixel(shaded.Channel(0), 4, 4)
		drawn := c[0]+c[1]+c[2] > 0
		if drawn != tc.wantSky {
			t.Errorf("%s: center pixel = %v, sky drawn = %v, want %v", tc.name, c, drawn, tc.wantSky)
		}
	}
	if r.ActiveProgram() != nil {
		t.Error("DrawBackground must restore the active program")
	}
}

func TestDisplaySelectsMap(t *testing.T) {
	r, _ := newRenderer(t)
	sb, err := NewSkybox(r, WithResolution(16, 8), WithBRDFLookup(4, 4), WithDisplay(MapPrefilter))
	if err != nil {
		t.Fatalf("NewSkybox: %v", err)
	}
	defer sb.Release()
	if sb.Display() != MapPrefilter || sb.Display().String() != "prefilter" {
		t.Errorf("Display() = %v", sb.Display())
	}
	sb.SetDisplay(MapIrradiance)
	if sb.Display() != MapIrradiance {
		t.Errorf("Display() = %v after SetDisplay", sb.Display())
	}
}
