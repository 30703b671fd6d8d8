package target

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
)

// set is the implementation of the Set interface.
type set struct {
	r renderer.Renderer

	geometry      RenderTarget
	occlusion     RenderTarget
	occlusionBlur RenderTarget
	shaded        RenderTarget
	blur          RenderTarget
	reflections   RenderTarget
	bloom         RenderTarget
	pingPong      [2]RenderTarget

	width  int
	height int
}

// Set is the named collection of off-screen buffers the pass pipeline renders through.
// Every buffer in a set shares the viewport size.
type Set interface {
	// Geometry returns the five-channel geometry buffer with depth.
	Geometry() RenderTarget

	// Occlusion returns the raw ambient occlusion buffer.
	Occlusion() RenderTarget

	// OcclusionBlur returns the blurred ambient occlusion buffer.
	OcclusionBlur() RenderTarget

	// Shaded returns the lit color buffer with a depth attachment.
	Shaded() RenderTarget

	// Blur returns the box-blurred copy of the shaded buffer used by reflections.
	Blur() RenderTarget

	// Reflections returns the reflection-blended color buffer.
	Reflections() RenderTarget

	// Bloom returns the bloom-blended color buffer.
	Bloom() RenderTarget

	// PingPong returns one of the two bloom blur buffers.
	//
	// Parameters:
	//   - i: 0 or 1
	//
	// Returns:
	//   - RenderTarget: the buffer
	PingPong(i int) RenderTarget

	// Targets returns every buffer in the fixed resize order.
	Targets() []RenderTarget

	// Resize releases then initializes every buffer at the new size, in the order of Targets.
	// When a buffer fails to initialize every buffer is released and the error is returned.
	//
	// Parameters:
	//   - width: the width in pixels
	//   - height: the height in pixels
	//
	// Returns:
	//   - error: an error wrapping renderer.ErrResourceCreation
	Resize(width, height int) error

	// Release frees every buffer. Releasing twice is a no-op.
	Release()

	// Size returns the size of the last successful Resize, or zero.
	//
	// Returns:
	//   - int: the width in pixels
	//   - int: the height in pixels
	Size() (int, int)
}

var _ Set = &set{}

// NewSet creates the released buffer set. Call Resize to allocate it.
//
// Parameters:
//   - r: the renderer allocating the buffers
//
// Returns:
//   - Set: the buffer set
func NewSet(r renderer.Renderer) Set {
	return &set{
		r:             r,
		geometry:      NewRenderTarget(r, GeometryLayout),
		occlusion:     NewRenderTarget(r, OcclusionLayout),
		occlusionBlur: NewRenderTarget(r, OcclusionBlurLayout),
		shaded:        NewRenderTarget(r, ShadedLayout),
		blur:          NewRenderTarget(r, BlurLayout),
		reflections:   NewRenderTarget(r, ReflectionsLayout),
		bloom:         NewRenderTarget(r, BloomLayout),
		pingPong:      [2]RenderTarget{NewRenderTarget(r, PingLayout), NewRenderTarget(r, PongLayout)},
	}
}

func (s *set) Geometry() RenderTarget {
	return s.geometry
}

func (s *set) Occlusion() RenderTarget {
	return s.occlusion
}

func (s *set) OcclusionBlur() RenderTarget {
	return s.occlusionBlur
}

func (s *set) Shaded() RenderTarget {
	return s.shaded
}

func (s *set) Blur() RenderTarget {
	return s.blur
}

func (s *set) Reflections() RenderTarget {
	return s.reflections
}

func (s *set) Bloom() RenderTarget {
	return s.bloom
}

func (s *set) PingPong(i int) RenderTarget {
	return s.pingPong[i&1]
}

func (s *set) Targets() []RenderTarget {
	return []RenderTarget{
		s.geometry,
		s.occlusion,
		s.occlusionBlur,
		s.shaded,
		s.blur,
		s.reflections,
		s.bloom,
		s.pingPong[0],
		s.pingPong[1],
	}
}

func (s *set) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("resize buffer set to %dx%d: size must be positive", width, height)
	}
	for _, t := range s.Targets() {
		t.Release()
		if err := t.Initialize(width, height); err != nil {
			s.Release()
			return err
		}
	}
	s.width = width
	s.height = height
	return nil
}

func (s *set) Release() {
	for _, t := range s.Targets() {
		t.Release()
	}
	s.width = 0
	s.height = 0
}

func (s *set) Size() (int, int) {
	return s.width, s.height
}
