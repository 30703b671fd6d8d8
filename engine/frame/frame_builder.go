package frame

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/profiler"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-deferred/engine/skybox"
)

// ControllerBuilderOption is a function that configures a controller.
type ControllerBuilderOption func(*controller)

// WithSkybox enables or disables the procedural environment. Enabled by default.
//
// Parameters:
//   - enabled: whether to create the skybox
//
// Returns:
//   - ControllerBuilderOption: a function that sets the flag
func WithSkybox(enabled bool) ControllerBuilderOption {
	return func(c *controller) {
		c.skyboxEnabled = enabled
	}
}

// WithSkyboxOptions passes options to the skybox constructor.
//
// Parameters:
//   - opts: the skybox options
//
// Returns:
//   - ControllerBuilderOption: a function that stores the options
func WithSkyboxOptions(opts ...skybox.SkyboxBuilderOption) ControllerBuilderOption {
	return func(c *controller) {
		c.skyboxOptions = append(c.skyboxOptions, opts...)
	}
}

// WithPipelineOptions passes options to the pipeline constructor.
//
// Parameters:
//   - opts: the pipeline options
//
// Returns:
//   - ControllerBuilderOption: a function that stores the options
func WithPipelineOptions(opts ...pass.PipelineBuilderOption) ControllerBuilderOption {
	return func(c *controller) {
		c.pipelineOptions = append(c.pipelineOptions, opts...)
	}
}

// WithProfiler feeds the stage durations of every presented frame to p.
//
// Parameters:
//   - p: the profiler
//
// Returns:
//   - ControllerBuilderOption: a function that sets the profiler
func WithProfiler(p *profiler.Profiler) ControllerBuilderOption {
	return func(c *controller) {
		c.profiler = p
	}
}
