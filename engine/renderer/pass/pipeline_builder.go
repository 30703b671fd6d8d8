package pass

// PipelineBuilderOption is a function that configures a pipeline.
type PipelineBuilderOption func(*pipeline)

// WithEnvironment sets the collaborator supplying image-based lighting and the backdrop.
// Without one the lighting stage reads white ambient inputs and the background stage is skipped.
//
// Parameters:
//   - env: the environment
//
// Returns:
//   - PipelineBuilderOption: a function that sets the environment
func WithEnvironment(env Environment) PipelineBuilderOption {
	return func(p *pipeline) {
		p.env = env
	}
}

// WithSeed sets the seed of the ambient occlusion kernel and noise texture.
//
// Parameters:
//   - seed: the PRNG seed
//
// Returns:
//   - PipelineBuilderOption: a function that sets the seed
func WithSeed(seed uint64) PipelineBuilderOption {
	return func(p *pipeline) {
		p.seed = seed
	}
}

// WithReflectionBlurSize sets the box blur radius of the rough reflection input.
//
// Parameters:
//   - size: the blur radius in texels
//
// Returns:
//   - PipelineBuilderOption: a function that sets the radius
func WithReflectionBlurSize(size int) PipelineBuilderOption {
	return func(p *pipeline) {
		p.reflectionBlurSize = size
	}
}
