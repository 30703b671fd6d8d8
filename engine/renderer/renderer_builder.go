package renderer

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/program"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/software"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithProgram pre-registers a single Program in the renderer's program cache under its key.
// The program is not compiled; use RegisterPrograms for programs that will be drawn with.
//
// Parameters:
//   - p: the Program to cache
//
// Returns:
//   - RendererBuilderOption: a function that applies the program option to a renderer
func WithProgram(p program.Program) RendererBuilderOption {
	return func(r *renderer) {
		r.programCache[p.Key()] = p
	}
}

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingPresentMode = &mode
	}
}

// WithForceFallbackAdapter forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the fallback adapter option to a renderer
func WithForceFallbackAdapter(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithSurfaceSize sets the initial output size used when no window is given.
//
// Parameters:
//   - width: the surface width in pixels
//   - height: the surface height in pixels
//
// Returns:
//   - RendererBuilderOption: a function that applies the surface size to a renderer
func WithSurfaceSize(width, height int) RendererBuilderOption {
	return func(r *renderer) {
		r.surfaceWidth, r.surfaceHeight = width, height
	}
}

// WithSoftwareOptions forwards options to the software device when BackendTypeSoftware is selected.
//
// Parameters:
//   - opts: the software device options
//
// Returns:
//   - RendererBuilderOption: a function that records the device options
func WithSoftwareOptions(opts ...software.BackendBuilderOption) RendererBuilderOption {
	return func(r *renderer) {
		r.softwareOptions = append(r.softwareOptions, opts...)
	}
}

// WithBackend supplies an already constructed device, bypassing backend creation.
//
// Parameters:
//   - b: the device to drive
//
// Returns:
//   - RendererBuilderOption: a function that installs the device
func WithBackend(b RendererBackend) RendererBuilderOption {
	return func(r *renderer) {
		r.backend = b
	}
}
