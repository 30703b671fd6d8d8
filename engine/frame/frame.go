// Package frame owns the per-viewport rendering state: the buffer set, the pass pipeline and
// the environment. It is the single entry point an application loop calls once per frame.
package frame

import (
	"fmt"
	"log"

	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/profiler"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/target"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/Carmen-Shannon/oxy-deferred/engine/skybox"
)

// controller implements the Controller interface.
type controller struct {
	r     renderer.Renderer
	scene scene.Scene

	set      target.Set
	pipeline pass.Pipeline
	skybox   skybox.Skybox
	profiler *profiler.Profiler

	skyboxEnabled   bool
	skyboxOptions   []skybox.SkyboxBuilderOption
	pipelineOptions []pass.PipelineBuilderOption

	width  int
	height int
}

// Controller renders a scene through the deferred pipeline and keeps every buffer sized to the
// viewport.
type Controller interface {
	// RenderFrame renders and presents one frame.
	//
	// Parameters:
	//   - cfg: the configuration snapshot for this frame
	//
	// Returns:
	//   - pass.FrameReport: what the frame did
	//   - error: an error if a stage fails
	RenderFrame(cfg config.PassConfig) (pass.FrameReport, error)

	// OnViewportResized recreates every buffer at the new size, reconfigures the output surface
	// and updates the size-dependent state. Non-positive sizes are ignored.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: an error wrapping renderer.ErrResourceCreation; every buffer is released when it occurs
	OnViewportResized(width, height int) error

	// Size returns the current viewport size.
	//
	// Returns:
	//   - int: the width in pixels
	//   - int: the height in pixels
	Size() (int, int)

	// Scene returns the rendered scene.
	Scene() scene.Scene

	// Targets returns the buffer set.
	Targets() target.Set

	// Pipeline returns the pass pipeline.
	Pipeline() pass.Pipeline

	// Skybox returns the environment, or nil when it is disabled.
	Skybox() skybox.Skybox

	// Release frees every buffer and map owned by the controller.
	Release()
}

var _ Controller = &controller{}

// NewController sizes the buffer set to the renderer's surface and builds the pipeline.
// Program compile errors and allocation failures are returned here and never per frame.
//
// Parameters:
//   - r: the renderer
//   - sc: the scene to render
//   - options: a variadic list of ControllerBuilderOption functions
//
// Returns:
//   - Controller: the controller
//   - error: an error if any program or buffer cannot be created
func NewController(r renderer.Renderer, sc scene.Scene, options ...ControllerBuilderOption) (Controller, error) {
	c := &controller{
		r:             r,
		scene:         sc,
		skyboxEnabled: true,
	}
	for _, opt := range options {
		opt(c)
	}

	c.width, c.height = r.SurfaceSize()
	c.set = target.NewSet(r)
	if err := c.set.Resize(c.width, c.height); err != nil {
		return nil, fmt.Errorf("allocate buffers: %w", err)
	}

	pipelineOptions := c.pipelineOptions
	if c.skyboxEnabled {
		sb, err := skybox.NewSkybox(r, c.skyboxOptions...)
		if err != nil {
			c.set.Release()
			return nil, fmt.Errorf("create skybox: %w", err)
		}
		c.skybox = sb
		pipelineOptions = append([]pass.PipelineBuilderOption{pass.WithEnvironment(sb)}, pipelineOptions...)
	}

	p, err := pass.NewPipeline(r, c.set, pipelineOptions...)
	if err != nil {
		c.Release()
		return nil, fmt.Errorf("create pipeline: %w", err)
	}
	c.pipeline = p
	c.pipeline.SetScreenSize(c.width, c.height)
	if cam := sc.Camera(); cam != nil {
		cam.SetAspect(float32(c.width) / float32(c.height))
	}
	return c, nil
}

func (c *controller) RenderFrame(cfg config.PassConfig) (pass.FrameReport, error) {
	if err := c.r.BeginFrame(); err != nil {
		return pass.FrameReport{}, fmt.Errorf("begin frame: %w", err)
	}
	report, err := c.pipeline.Execute(pass.FrameInputs{Scene: c.scene, Config: cfg})
	if endErr := c.r.EndFrame(); err == nil && endErr != nil {
		err = fmt.Errorf("end frame: %w", endErr)
	}
	if err != nil {
		c.r.DiscardFrame()
		return report, err
	}
	c.r.Present()
	if c.profiler != nil {
		c.profiler.RecordStages(report.Durations)
	}
	return report, nil
}

func (c *controller) OnViewportResized(width, height int) error {
	if width <= 0 || height <= 0 {
		log.Printf("[Frame] ignoring viewport size %dx%d", width, height)
		return nil
	}
	if width == c.width && height == c.height && c.set.Geometry().Initialized() {
		return nil
	}

	if err := c.set.Resize(width, height); err != nil {
		return fmt.Errorf("resize viewport to %dx%d: %w", width, height, err)
	}
	c.r.Resize(width, height)
	c.pipeline.SetScreenSize(width, height)
	if cam := c.scene.Camera(); cam != nil {
		cam.SetAspect(float32(width) / float32(height))
	}
	c.width, c.height = width, height
	log.Printf("[Frame] viewport resized to %dx%d", width, height)
	return nil
}

func (c *controller) Size() (int, int) {
	return c.width, c.height
}

func (c *controller) Scene() scene.Scene {
	return c.scene
}

func (c *controller) Targets() target.Set {
	return c.set
}

func (c *controller) Pipeline() pass.Pipeline {
	return c.pipeline
}

func (c *controller) Skybox() skybox.Skybox {
	return c.skybox
}

func (c *controller) Release() {
	if c.pipeline != nil {
		c.pipeline.Release()
	}
	if c.skybox != nil {
		c.skybox.Release()
	}
	c.set.Release()
}
