package program

import "github.com/cogentcore/webgpu/wgpu"

// ProgramBuilderOption is a functional option used to configure a Program during construction.
type ProgramBuilderOption func(*program)

// WithDepthTestEnabled sets whether draws with this program test against the bound depth attachment.
//
// Parameters:
//   - enabled: a boolean indicating whether depth testing should be enabled
//
// Returns:
//   - ProgramBuilderOption: a function that sets the depth test state
func WithDepthTestEnabled(enabled bool) ProgramBuilderOption {
	return func(p *program) {
		p.depthTestEnabled = enabled
	}
}

// WithDepthWriteEnabled sets whether draws with this program write depth.
//
// Parameters:
//   - enabled: a boolean indicating whether depth writes should be enabled
//
// Returns:
//   - ProgramBuilderOption: a function that sets the depth write state
func WithDepthWriteEnabled(enabled bool) ProgramBuilderOption {
	return func(p *program) {
		p.depthWriteEnabled = enabled
	}
}

// WithDepthCompare sets the depth comparison function.
//
// Parameters:
//   - fn: the comparison applied when depth testing is enabled
//
// Returns:
//   - ProgramBuilderOption: a function that sets the depth comparison
func WithDepthCompare(fn CompareFunc) ProgramBuilderOption {
	return func(p *program) {
		p.depthCompare = fn
	}
}

// WithCullMode sets the face culling mode for mesh draws.
//
// Parameters:
//   - mode: the cull mode (e.g., wgpu.CullModeNone, wgpu.CullModeBack)
//
// Returns:
//   - ProgramBuilderOption: a function that sets the cull mode
func WithCullMode(mode wgpu.CullMode) ProgramBuilderOption {
	return func(p *program) {
		p.cullMode = mode
	}
}

// WithUniformBlockBinding binds a shared uniform block to a binding point at construction.
//
// Parameters:
//   - block: the block name
//   - point: the binding point
//
// Returns:
//   - ProgramBuilderOption: a function that records the binding
func WithUniformBlockBinding(block string, point int) ProgramBuilderOption {
	return func(p *program) {
		p.blockBindings[block] = point
	}
}

// WithUniform seeds a uniform value.
//
// Parameters:
//   - name: the uniform name
//   - value: the initial value
//
// Returns:
//   - ProgramBuilderOption: a function that stores the value
func WithUniform(name string, value any) ProgramBuilderOption {
	return func(p *program) {
		p.uniforms[name] = value
	}
}

// WithFullscreen configures a program for fullscreen passes: no depth test and no depth write.
//
// Returns:
//   - ProgramBuilderOption: a function that disables depth testing and writing
func WithFullscreen() ProgramBuilderOption {
	return func(p *program) {
		p.depthTestEnabled = false
		p.depthWriteEnabled = false
	}
}
