// Package pass runs the deferred frame: geometry, ambient occlusion, lighting, background,
// reflections, bloom and the depth of field composite, in that order, over a target.Set.
package pass

import (
	"time"

	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/target"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
)

// Stage names one step of the frame.
type Stage string

const (
	StageGeometry         Stage = "geometry"
	StageAmbientOcclusion Stage = "ambient_occlusion"
	StageLighting         Stage = "lighting"
	StageBackground       Stage = "background"
	StageReflections      Stage = "reflections"
	StageBloom            Stage = "bloom"
	StageComposite        Stage = "composite"
	StageGBufferView      Stage = "gbuffer_view"
)

// ColorSource selects the buffer the composite stage reads its color from.
type ColorSource int

const (
	// ColorSourceShaded reads the lit buffer.
	ColorSourceShaded ColorSource = iota

	// ColorSourceReflections reads the reflection-blended buffer.
	ColorSourceReflections

	// ColorSourceBloom reads the bloom-blended buffer.
	ColorSourceBloom
)

func (c ColorSource) String() string {
	switch c {
	case ColorSourceShaded:
		return "shaded"
	case ColorSourceReflections:
		return "reflections"
	case ColorSourceBloom:
		return "bloom"
	}
	return "unknown"
}

// ResolveColorSource picks the composite input for a frame. Bloom wins over reflections,
// which win over the plain shaded buffer.
//
// Parameters:
//   - cfg: the frame's configuration snapshot
//
// Returns:
//   - ColorSource: the resolved choice
func ResolveColorSource(cfg config.PassConfig) ColorSource {
	switch {
	case cfg.Bloom.Enabled:
		return ColorSourceBloom
	case cfg.Reflections.Enabled:
		return ColorSourceReflections
	}
	return ColorSourceShaded
}

// bloomSource is the color the bloom pass reads: whatever the final color
// would be with bloom itself switched off.
func bloomSource(cfg config.PassConfig) ColorSource {
	return ResolveColorSource(cfg.WithEffect(config.EffectBloom, false))
}

// Target returns the buffer of s that holds this source's color.
//
// Parameters:
//   - s: the buffer set
//
// Returns:
//   - target.RenderTarget: the buffer
func (c ColorSource) Target(s target.Set) target.RenderTarget {
	switch c {
	case ColorSourceBloom:
		return s.Bloom()
	case ColorSourceReflections:
		return s.Reflections()
	}
	return s.Shaded()
}

// Environment supplies the image-based lighting inputs and draws the backdrop.
type Environment interface {
	// Irradiance returns the diffuse irradiance map in equirectangular layout.
	Irradiance() gpu.Texture

	// Prefilter returns the specular prefiltered map in equirectangular layout.
	Prefilter() gpu.Texture

	// BRDF returns the split-sum lookup table indexed by (n·v, roughness).
	BRDF() gpu.Texture

	// DrawBackground draws the environment into the bound target at the far plane.
	//
	// Parameters:
	//   - cam: the camera the frame is rendered from
	//
	// Returns:
	//   - error: an error if the draw fails
	DrawBackground(cam camera.Camera) error
}

// FrameInputs is everything one Execute call reads.
type FrameInputs struct {
	// Scene holds the graph, the camera and the lights.
	Scene scene.Scene
	// Config is the pass configuration snapshot for this frame.
	Config config.PassConfig
}

// FrameReport describes what a frame did.
type FrameReport struct {
	// Stages lists the stages that ran, in order.
	Stages []Stage
	// ColorSource is the composite input resolved for the frame.
	ColorSource ColorSource
	// CompositeInput is the buffer the composite stage read, nil when it did not run.
	CompositeInput target.RenderTarget
	// Durations holds the wall time of each stage that ran.
	Durations map[Stage]time.Duration
	// Lights is the number of lights uploaded to the lighting stage.
	Lights int
}

// Ran reports whether a stage ran during the frame.
func (r FrameReport) Ran(s Stage) bool {
	for _, st := range r.Stages {
		if st == s {
			return true
		}
	}
	return false
}

// Total returns the summed duration of every stage.
func (r FrameReport) Total() time.Duration {
	var total time.Duration
	for _, d := range r.Durations {
		total += d
	}
	return total
}
