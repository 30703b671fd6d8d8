package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/profiler"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithProfiler sets the profiler ticked each frame. It should be the one given to the frame controller.
func WithProfiler(p *profiler.Profiler) EngineBuilderOption {
	return func(e *engine) {
		e.profiler = p
	}
}

// WithTickRate sets the engine tick rate in frames per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Second / time.Duration(fps)
	}
}

// WithWindow attaches the window whose input and resize events drive the engine.
//
// Parameters:
//   - w: the window
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithConfig sets the configuration store. Defaults to a store seeded with config.Defaults.
//
// Parameters:
//   - s: the store
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithConfig(s *config.Store) EngineBuilderOption {
	return func(e *engine) {
		e.store = s
	}
}

// WithCapture enables frame captures from r into dir.
//
// Parameters:
//   - r: the renderer whose presented frames are captured
//   - dir: the output directory
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithCapture(r renderer.Renderer, dir string) EngineBuilderOption {
	return func(e *engine) {
		e.renderer = r
		e.captureDir = dir
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Second / time.Duration(fps)
	}
}
