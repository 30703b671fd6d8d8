package renderer

import "github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"

// RendererBackendType identifies the device implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU device presenting to a window surface.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeSoftware selects the headless CPU device.
	BackendTypeSoftware
)

// String returns the backend name used in logs.
func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeSoftware:
		return "software"
	}
	return "unknown"
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// RendererBackend is the device interface the Renderer drives.
type RendererBackend interface {
	gpu.Backend
}
