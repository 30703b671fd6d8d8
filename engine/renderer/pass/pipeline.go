package pass

import (
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/program"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/target"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// SharedMatricesPoint is the uniform block binding point carrying the camera matrices and the
// screen size.
const SharedMatricesPoint = 0

// SharedMatricesBlock is the name programs bind SharedMatricesPoint under.
const SharedMatricesBlock = "SharedMatrices"

const (
	occlusionBlurSize       = 1
	occlusionBlurSeparation = 1
	debugPositionScale      = 0.2
)

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	r   renderer.Renderer
	set target.Set
	env Environment

	seed               uint64
	reflectionBlurSize int

	geometry      program.Program
	occlusion     program.Program
	boxBlur       program.Program
	lighting      program.Program
	reflections   program.Program
	bloomSeparate program.Program
	gaussianBlur  program.Program
	bloomBlend    program.Program
	composite     program.Program
	gbufferDebug  program.Program

	kernels map[int][]mgl32.Vec3
	noise   gpu.Texture

	screenWidth  int
	screenHeight int
}

// Pipeline renders a scene through the deferred passes into the output surface.
type Pipeline interface {
	// Execute runs every enabled stage for one frame. The caller brackets it with
	// BeginFrame and EndFrame. The first failing stage stops the frame.
	//
	// Parameters:
	//   - in: the scene and the configuration snapshot of this frame
	//
	// Returns:
	//   - FrameReport: the stages that ran and the resolved composite input
	//   - error: an error naming the failing stage
	Execute(in FrameInputs) (FrameReport, error)

	// SetScreenSize updates the size published with the shared matrices.
	//
	// Parameters:
	//   - width: the viewport width in pixels
	//   - height: the viewport height in pixels
	SetScreenSize(width, height int)

	// ScreenSize returns the size last set with SetScreenSize.
	//
	// Returns:
	//   - int: the width in pixels
	//   - int: the height in pixels
	ScreenSize() (int, int)

	// Targets returns the buffer set the pipeline renders through.
	Targets() target.Set

	// GeometryProgram returns the program scene nodes inherit during the geometry stage.
	GeometryProgram() program.Program

	// Release frees the noise texture. The buffer set is owned by the caller.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline compiles the pass programs and uploads the occlusion noise texture.
//
// Parameters:
//   - r: the renderer
//   - set: the buffer set, sized by the caller
//   - opts: a variadic list of PipelineBuilderOption functions
//
// Returns:
//   - Pipeline: the pipeline
//   - error: a *program.CompileError or an error wrapping renderer.ErrResourceCreation
func NewPipeline(r renderer.Renderer, set target.Set, opts ...PipelineBuilderOption) (Pipeline, error) {
	p := &pipeline{
		r:                  r,
		set:                set,
		seed:               1,
		reflectionBlurSize: 2,
		kernels:            make(map[int][]mgl32.Vec3),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.screenWidth, p.screenHeight = set.Size()

	shared := program.WithUniformBlockBinding(SharedMatricesBlock, SharedMatricesPoint)
	specs := []struct {
		dst  *program.Program
		key  string
		opts []program.ProgramBuilderOption
	}{
		{&p.geometry, shader.KeyGeometry, []program.ProgramBuilderOption{shared, program.WithCullMode(wgpu.CullModeBack)}},
		{&p.occlusion, shader.KeyOcclusion, []program.ProgramBuilderOption{shared, program.WithFullscreen()}},
		{&p.boxBlur, shader.KeyBoxBlur, []program.ProgramBuilderOption{program.WithFullscreen()}},
		{&p.lighting, shader.KeyLighting, []program.ProgramBuilderOption{shared, program.WithFullscreen()}},
		{&p.reflections, shader.KeyReflections, []program.ProgramBuilderOption{shared, program.WithFullscreen()}},
		{&p.bloomSeparate, shader.KeyBloomSeparate, []program.ProgramBuilderOption{program.WithFullscreen()}},
		{&p.gaussianBlur, shader.KeyGaussianBlur, []program.ProgramBuilderOption{program.WithFullscreen()}},
		{&p.bloomBlend, shader.KeyBloomBlend, []program.ProgramBuilderOption{program.WithFullscreen()}},
		{&p.composite, shader.KeyComposite, []program.ProgramBuilderOption{program.WithFullscreen()}},
		{&p.gbufferDebug, shader.KeyGBufferDebug, []program.ProgramBuilderOption{program.WithFullscreen()}},
	}
	for _, s := range specs {
		prog, err := program.NewBuiltin(s.key, s.opts...)
		if err != nil {
			return nil, fmt.Errorf("create %s program: %w", s.key, err)
		}
		if err := r.RegisterPrograms(prog); err != nil {
			return nil, err
		}
		*s.dst = r.Program(s.key)
	}

	noise, err := r.CreateTexture(gpu.TextureDescriptor{
		Label:  "occlusion_noise",
		Width:  NoiseSize,
		Height: NoiseSize,
		Format: gpu.FormatRGBA8Unorm,
	})
	if err != nil {
		return nil, fmt.Errorf("create occlusion noise: %w", err)
	}
	if err := r.WriteTexture(noise, OcclusionNoise(p.seed)); err != nil {
		r.ReleaseTexture(noise)
		return nil, fmt.Errorf("upload occlusion noise: %w", err)
	}
	p.noise = noise
	return p, nil
}

func (p *pipeline) SetScreenSize(width, height int) {
	p.screenWidth = width
	p.screenHeight = height
}

func (p *pipeline) ScreenSize() (int, int) {
	return p.screenWidth, p.screenHeight
}

func (p *pipeline) Targets() target.Set {
	return p.set
}

func (p *pipeline) GeometryProgram() program.Program {
	return p.geometry
}

func (p *pipeline) Release() {
	if p.noise != nil {
		p.r.ReleaseTexture(p.noise)
		p.noise = nil
	}
}

func (p *pipeline) Execute(in FrameInputs) (FrameReport, error) {
	cfg := in.Config
	cam := in.Scene.Camera()
	report := FrameReport{
		ColorSource: ResolveColorSource(cfg),
		Durations:   make(map[Stage]time.Duration),
	}

	p.publishShared(cam)

	run := func(s Stage, fn func() error) error {
		start := time.Now()
		err := fn()
		report.Durations[s] = time.Since(start)
		report.Stages = append(report.Stages, s)
		if err != nil {
			return fmt.Errorf("%s pass: %w", s, err)
		}
		return nil
	}

	if err := run(StageGeometry, func() error { return p.geometryPass(in) }); err != nil {
		return report, err
	}
	if cfg.Debug.GBufferView {
		err := run(StageGBufferView, p.gbufferViewPass)
		return report, err
	}
	if cfg.AmbientOcclusion.Enabled {
		if err := run(StageAmbientOcclusion, func() error { return p.occlusionPass(cfg.AmbientOcclusion) }); err != nil {
			return report, err
		}
	}
	if err := run(StageLighting, func() error {
		n, err := p.lightingPass(in, cfg.AmbientOcclusion.Enabled)
		report.Lights = n
		return err
	}); err != nil {
		return report, err
	}
	if p.env != nil {
		if err := run(StageBackground, func() error { return p.backgroundPass(cam) }); err != nil {
			return report, err
		}
	}
	if cfg.Reflections.Enabled {
		if err := run(StageReflections, func() error { return p.reflectionsPass(cfg.Reflections) }); err != nil {
			return report, err
		}
	}
	if cfg.Bloom.Enabled {
		source := bloomSource(cfg)
		if err := run(StageBloom, func() error { return p.bloomPass(cfg.Bloom, source.Target(p.set)) }); err != nil {
			return report, err
		}
	}

	report.CompositeInput = report.ColorSource.Target(p.set)
	err := run(StageComposite, func() error { return p.compositePass(cfg.DepthOfField, report.CompositeInput) })
	return report, err
}

func (p *pipeline) publishShared(cam camera.Camera) {
	block := cam.SharedMatrices()
	block["ScreenSize"] = mgl32.Vec2{float32(p.screenWidth), float32(p.screenHeight)}
	p.r.SetUniformBlock(SharedMatricesPoint, block)
}

// drawFullscreen activates prog for one fullscreen draw.
func (p *pipeline) drawFullscreen(prog program.Program) error {
	prog.Use()
	defer prog.Unuse()
	return p.r.DrawFullscreen()
}

func (p *pipeline) geometryPass(in FrameInputs) error {
	p.set.Geometry().BindAsTarget()
	p.r.Clear(mgl32.Vec4{}, 1)
	p.geometry.Use()
	defer p.geometry.Unuse()
	return in.Scene.TraverseAndDraw(p.geometry)
}

func (p *pipeline) gbufferViewPass() error {
	p.r.BindFramebuffer(nil)
	p.r.Clear(mgl32.Vec4{0, 0, 0, 1}, 1)
	p.set.Geometry().BindChannelAsInput(target.GeometryPosition, 0)
	p.set.Geometry().BindChannelAsInput(target.GeometryAlbedo, 1)
	p.set.Geometry().BindChannelAsInput(target.GeometryNormal, 2)
	p.set.Geometry().BindChannelAsInput(target.GeometryMaterial, 3)
	p.gbufferDebug.SetUniform("PositionScale", float32(debugPositionScale))
	return p.drawFullscreen(p.gbufferDebug)
}

// kernel returns the cached ambient occlusion kernel of n samples.
func (p *pipeline) kernel(n int) []mgl32.Vec3 {
	k, ok := p.kernels[n]
	if !ok {
		k = OcclusionKernel(p.seed, n)
		p.kernels[n] = k
	}
	return k
}

func (p *pipeline) occlusionPass(cfg config.AmbientOcclusion) error {
	n := min(cfg.KernelSize, shader.MaxKernelSize)

	p.set.Occlusion().BindAsTarget()
	p.r.Clear(mgl32.Vec4{1, 0, 0, 1}, 1)
	p.set.Geometry().BindChannelAsInput(target.GeometryPosition, 0)
	p.set.Geometry().BindChannelAsInput(target.GeometryNormal, 1)
	p.r.BindTexture(2, p.noise)
	p.occlusion.SetUniform("Kernel", p.kernel(n))
	p.occlusion.SetUniform("KernelSize", n)
	p.occlusion.SetUniform("Radius", cfg.Radius)
	p.occlusion.SetUniform("Bias", cfg.Bias)
	if err := p.drawFullscreen(p.occlusion); err != nil {
		return err
	}

	p.set.OcclusionBlur().BindAsTarget()
	p.r.Clear(mgl32.Vec4{1, 0, 0, 1}, 1)
	p.set.Occlusion().BindChannelAsInput(0, 0)
	p.boxBlur.SetUniform("BlurSize", occlusionBlurSize)
	p.boxBlur.SetUniform("Separation", float32(occlusionBlurSeparation))
	return p.drawFullscreen(p.boxBlur)
}

func (p *pipeline) lightingPass(in FrameInputs, useOcclusion bool) (int, error) {
	shaded := p.set.Shaded()
	shaded.BindAsTarget()
	p.r.Clear(mgl32.Vec4{0, 0, 0, 1}, 1)

	next := p.set.Geometry().BindChannelsAsInputs(0)
	if useOcclusion {
		p.set.OcclusionBlur().BindChannelAsInput(0, next)
	} else {
		p.r.BindTexture(next, nil)
	}
	if p.env != nil {
		p.r.BindTexture(next+1, p.env.Irradiance())
		p.r.BindTexture(next+2, p.env.Prefilter())
		p.r.BindTexture(next+3, p.env.BRDF())
	} else {
		for slot := next + 1; slot <= next+3; slot++ {
			p.r.BindTexture(slot, nil)
		}
	}

	packed := light.Pack(in.Scene.Lights())
	packed.Apply(p.lighting)
	p.lighting.SetUniform("UseOcclusion", useOcclusion)
	if err := p.drawFullscreen(p.lighting); err != nil {
		return packed.Count, err
	}
	return packed.Count, p.r.BlitDepth(p.set.Geometry().Framebuffer(), shaded.Framebuffer())
}

func (p *pipeline) backgroundPass(cam camera.Camera) error {
	p.set.Shaded().BindAsTarget()
	return p.env.DrawBackground(cam)
}

func (p *pipeline) reflectionsPass(cfg config.Reflections) error {
	p.set.Blur().BindAsTarget()
	p.r.Clear(mgl32.Vec4{}, 1)
	p.set.Shaded().BindChannelAsInput(0, 0)
	p.boxBlur.SetUniform("BlurSize", p.reflectionBlurSize)
	p.boxBlur.SetUniform("Separation", float32(1))
	if err := p.drawFullscreen(p.boxBlur); err != nil {
		return err
	}

	p.set.Reflections().BindAsTarget()
	p.r.Clear(mgl32.Vec4{}, 1)
	p.set.Geometry().BindChannelAsInput(target.GeometryPosition, 0)
	p.set.Geometry().BindChannelAsInput(target.GeometryNormal, 1)
	p.set.Geometry().BindChannelAsInput(target.GeometryMaterial, 2)
	p.set.Shaded().BindChannelAsInput(0, 3)
	p.set.Blur().BindChannelAsInput(0, 4)
	p.reflections.SetUniform("MaxRayDistance", cfg.MaxRayDistance)
	p.reflections.SetUniform("StepResolution", cfg.StepResolution)
	p.reflections.SetUniform("StepIterations", cfg.StepIterations)
	p.reflections.SetUniform("HitTolerance", cfg.HitTolerance)
	return p.drawFullscreen(p.reflections)
}

func (p *pipeline) bloomPass(cfg config.Bloom, source target.RenderTarget) error {
	ping, pong := p.set.PingPong(0), p.set.PingPong(1)

	ping.BindAsTarget()
	p.r.Clear(mgl32.Vec4{}, 1)
	source.BindChannelAsInput(0, 0)
	p.bloomSeparate.SetUniform("Threshold", cfg.Threshold)
	if err := p.drawFullscreen(p.bloomSeparate); err != nil {
		return err
	}

	passes := []struct {
		from, to  target.RenderTarget
		direction mgl32.Vec2
	}{
		{ping, pong, mgl32.Vec2{1, 0}},
		{pong, ping, mgl32.Vec2{0, 1}},
	}
	for i := 0; i < cfg.BlurIterations; i++ {
		for _, bp := range passes {
			bp.to.BindAsTarget()
			bp.from.BindChannelAsInput(0, 0)
			p.gaussianBlur.SetUniform("Direction", bp.direction)
			if err := p.drawFullscreen(p.gaussianBlur); err != nil {
				return err
			}
		}
	}

	p.set.Bloom().BindAsTarget()
	source.BindChannelAsInput(0, 0)
	ping.BindChannelAsInput(0, 1)
	p.bloomBlend.SetUniform("Exposure", cfg.Exposure)
	return p.drawFullscreen(p.bloomBlend)
}

func (p *pipeline) compositePass(cfg config.DepthOfField, input target.RenderTarget) error {
	p.r.BindFramebuffer(nil)
	p.r.Clear(mgl32.Vec4{}, 1)
	next := p.set.Geometry().BindChannelsAsInputs(0)
	input.BindChannelAsInput(0, next)

	p.composite.SetUniform("UseDepthOfField", cfg.Enabled)
	p.composite.SetUniform("FocalDepth", cfg.FocalDepth)
	p.composite.SetUniform("SampleCount", cfg.SampleCount)
	p.composite.SetUniform("MaxBlur", cfg.MaxBlur)

	p.r.SetBlend(gpu.BlendAdditive)
	defer p.r.SetBlend(gpu.BlendNone)
	return p.drawFullscreen(p.composite)
}
