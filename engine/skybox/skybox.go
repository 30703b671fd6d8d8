// Package skybox provides the procedural environment: the backdrop drawn behind all geometry and
// the irradiance, prefilter and BRDF lookup maps the lighting stage samples.
package skybox

import (
	"fmt"
	"image"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/program"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
)

// Map selects which map the backdrop shows.
type Map int

const (
	// MapEnvironment shows the sky itself.
	MapEnvironment Map = iota

	// MapIrradiance shows the diffuse irradiance map.
	MapIrradiance

	// MapPrefilter shows the specular prefilter map.
	MapPrefilter
)

func (m Map) String() string {
	switch m {
	case MapEnvironment:
		return "environment"
	case MapIrradiance:
		return "irradiance"
	case MapPrefilter:
		return "prefilter"
	}
	return "unknown"
}

// skybox is the implementation of the Skybox interface.
type skybox struct {
	r       renderer.Renderer
	program program.Program

	sky           Sky
	width, height int
	lutSize       int
	lutSamples    int

	environment gpu.Texture
	irradiance  gpu.Texture
	prefilter   gpu.Texture
	brdf        gpu.Texture

	display Map
}

// Skybox is the pipeline's environment collaborator.
type Skybox interface {
	pass.Environment

	// Environment returns the sky map in equirectangular layout.
	Environment() gpu.Texture

	// Sky returns the parameters the maps were generated from.
	Sky() Sky

	// Display returns the map the backdrop shows.
	Display() Map

	// SetDisplay selects the map the backdrop shows.
	//
	// Parameters:
	//   - m: the map
	SetDisplay(m Map)

	// Release frees every map. Releasing twice is a no-op.
	Release()
}

var _ Skybox = &skybox{}

// NewSkybox renders the procedural sky, derives the lighting maps from it, uploads all four and
// registers the background program.
//
// Parameters:
//   - r: the renderer
//   - options: a variadic list of SkyboxBuilderOption functions
//
// Returns:
//   - Skybox: the skybox
//   - error: a *program.CompileError or an error wrapping renderer.ErrResourceCreation
func NewSkybox(r renderer.Renderer, options ...SkyboxBuilderOption) (Skybox, error) {
	s := &skybox{
		r:          r,
		sky:        DefaultSky(),
		width:      128,
		height:     64,
		lutSize:    32,
		lutSamples: 64,
	}
	for _, opt := range options {
		opt(s)
	}

	prog, err := program.NewBuiltin(shader.KeyBackground,
		program.WithDepthCompare(program.CompareLessEqual),
		program.WithDepthWriteEnabled(false),
	)
	if err != nil {
		return nil, fmt.Errorf("create background program: %w", err)
	}
	if err := r.RegisterPrograms(prog); err != nil {
		return nil, err
	}
	s.program = r.Program(shader.KeyBackground)

	env := s.sky.Render(s.width, s.height)
	maps := []struct {
		dst   *gpu.Texture
		label string
		img   *image.RGBA
	}{
		{&s.environment, "environment", env},
		{&s.irradiance, "irradiance", Convolve(env, image.Pt(4, 2), image.Pt(s.width/4, s.height/4))},
		{&s.prefilter, "prefilter", Convolve(env, image.Pt(s.width/8, s.height/8), image.Pt(s.width/2, s.height/2))},
		{&s.brdf, "brdf_lut", BRDFLookup(s.lutSize, s.lutSamples)},
	}
	for _, m := range maps {
		tex, err := s.upload(m.label, m.img)
		if err != nil {
			s.Release()
			return nil, err
		}
		*m.dst = tex
	}
	return s, nil
}

func (s *skybox) upload(label string, img *image.RGBA) (gpu.Texture, error) {
	b := img.Bounds()
	tex, err := s.r.CreateTexture(gpu.TextureDescriptor{
		Label:  label,
		Width:  b.Dx(),
		Height: b.Dy(),
		Format: gpu.FormatRGBA8Unorm,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s map: %w", label, err)
	}
	err = s.r.WriteTexture(tex, common.TextureStagingData{
		Pixels: img.Pix,
		Width:  uint32(b.Dx()),
		Height: uint32(b.Dy()),
	})
	if err != nil {
		s.r.ReleaseTexture(tex)
		return nil, fmt.Errorf("upload %s map: %w", label, err)
	}
	return tex, nil
}

func (s *skybox) Irradiance() gpu.Texture {
	return s.irradiance
}

func (s *skybox) Prefilter() gpu.Texture {
	return s.prefilter
}

func (s *skybox) BRDF() gpu.Texture {
	return s.brdf
}

func (s *skybox) Environment() gpu.Texture {
	return s.environment
}

func (s *skybox) Sky() Sky {
	return s.sky
}

func (s *skybox) Display() Map {
	return s.display
}

func (s *skybox) SetDisplay(m Map) {
	s.display = m
}

func (s *skybox) DrawBackground(cam camera.Camera) error {
	tex := s.environment
	switch s.display {
	case MapIrradiance:
		tex = s.irradiance
	case MapPrefilter:
		tex = s.prefilter
	}
	s.r.BindTexture(0, tex)
	s.program.SetUniform("InverseViewProjection", cam.InverseViewProjectionMatrix())
	s.program.SetUniform("ViewPosition", cam.Position())

	s.program.Use()
	defer s.program.Unuse()
	return s.r.DrawFullscreen()
}

func (s *skybox) Release() {
	for _, t := range []*gpu.Texture{&s.environment, &s.irradiance, &s.prefilter, &s.brdf} {
		if *t != nil {
			s.r.ReleaseTexture(*t)
			*t = nil
		}
	}
}
