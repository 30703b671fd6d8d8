package program

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// CompareFunc selects the depth comparison a program's draws use.
type CompareFunc int

const (
	// CompareLess passes fragments strictly closer than the stored depth.
	CompareLess CompareFunc = iota

	// CompareLessEqual also passes fragments at exactly the stored depth, used to draw at the far plane.
	CompareLessEqual

	// CompareAlways passes every fragment.
	CompareAlways
)

// Activator receives Use and Unuse notifications from programs.
// The renderer implements it to maintain the active program stack.
type Activator interface {
	// Activate pushes p as the active program.
	Activate(p Program)
	// Deactivate pops p, restoring the previously active program.
	Deactivate(p Program)
}

// CompileError reports a program that a device failed to compile or link.
type CompileError struct {
	// Key is the program key.
	Key string
	// Stage names the failing step, e.g. "validate", "module", "pipeline" or "kernel".
	Stage string
	// Err is the underlying device error.
	Err error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("program %s: %s: %v", e.Key, e.Stage, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// program is the implementation of the Program interface.
// It pairs a shader with the fixed-function state and the uniform values of its next draw.
type program struct {
	key    string
	shader shader.Shader

	uniforms      map[string]any
	blockBindings map[string]int

	// handle is the device-side compiled object, opaque to everything but the device that set it
	handle    any
	activator Activator

	depthTestEnabled  bool
	depthWriteEnabled bool
	depthCompare      CompareFunc
	cullMode          wgpu.CullMode
}

// Program is a compiled shader program accepting named uniforms.
// Uniform values persist across draws until overwritten, matching how GPU programs keep
// their uniform state between draw calls.
type Program interface {
	// Key returns the unique key for this program, used for caching and lookups.
	//
	// Returns:
	//   - string: the program key
	Key() string

	// Shader returns the parsed WGSL module backing this program.
	//
	// Returns:
	//   - shader.Shader: the shader
	Shader() shader.Shader

	// Use makes this program the active program of its renderer.
	Use()

	// Unuse restores the program that was active before the matching Use.
	Unuse()

	// SetUniform stores a uniform value that will be uploaded with the next draw.
	//
	// Parameters:
	//   - name: the uniform block member name
	//   - value: float32, int, bool, an mgl32 vector or matrix, or a slice of mgl32 vectors
	SetUniform(name string, value any)

	// Uniform returns a previously stored uniform value.
	//
	// Parameters:
	//   - name: the uniform name
	//
	// Returns:
	//   - any: the stored value
	//   - bool: true if a value was stored
	Uniform(name string) (any, bool)

	// Uniforms returns the stored uniform values. The map must not be modified.
	//
	// Returns:
	//   - map[string]any: uniform values keyed by name
	Uniforms() map[string]any

	// SetUniformBlockBinding binds a named shared uniform block to a binding point.
	// Values published to that point are merged into this program's uniforms at draw time.
	//
	// Parameters:
	//   - block: the block name, e.g. "SharedMatrices"
	//   - point: the binding point
	SetUniformBlockBinding(block string, point int)

	// UniformBlockBindings returns the shared block binding points of this program.
	//
	// Returns:
	//   - map[string]int: binding points keyed by block name
	UniformBlockBindings() map[string]int

	// DepthTestEnabled returns whether draws test against the bound depth attachment.
	DepthTestEnabled() bool

	// DepthWriteEnabled returns whether draws write the bound depth attachment.
	DepthWriteEnabled() bool

	// DepthCompare returns the depth comparison used when depth testing is enabled.
	DepthCompare() CompareFunc

	// CullMode returns the face culling mode used for mesh draws.
	CullMode() wgpu.CullMode

	// Handle returns the device-side compiled object set by SetHandle.
	Handle() any

	// SetHandle stores the device-side compiled object.
	//
	// Parameters:
	//   - h: the device specific handle
	SetHandle(h any)

	// SetActivator attaches the program to the renderer that tracks the active program.
	//
	// Parameters:
	//   - a: the activator receiving Use and Unuse
	SetActivator(a Activator)
}

var _ Program = &program{}

// NewProgram creates a Program around a parsed shader with depth testing and writing enabled,
// a Less depth comparison and no face culling unless overridden by options.
//
// Parameters:
//   - key: the unique key for this program
//   - s: the parsed shader
//   - opts: a variadic list of ProgramBuilderOption functions to configure the program
//
// Returns:
//   - Program: the new program, not yet compiled by any device
func NewProgram(key string, s shader.Shader, opts ...ProgramBuilderOption) Program {
	p := &program{
		key:               key,
		shader:            s,
		uniforms:          make(map[string]any),
		blockBindings:     make(map[string]int),
		depthTestEnabled:  true,
		depthWriteEnabled: true,
		depthCompare:      CompareLess,
		cullMode:          wgpu.CullModeNone,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewBuiltin creates a Program from one of the embedded shaders, using the shader key as the
// program key.
//
// Parameters:
//   - key: one of the shader.Key* constants
//   - opts: a variadic list of ProgramBuilderOption functions to configure the program
//
// Returns:
//   - Program: the new program
//   - error: an error if the embedded shader is unknown or fails to parse
func NewBuiltin(key string, opts ...ProgramBuilderOption) (Program, error) {
	s, err := shader.Builtin(key)
	if err != nil {
		return nil, err
	}
	return NewProgram(key, s, opts...), nil
}

func (p *program) Key() string {
	return p.key
}

func (p *program) Shader() shader.Shader {
	return p.shader
}

func (p *program) Use() {
	if p.activator != nil {
		p.activator.Activate(p)
	}
}

func (p *program) Unuse() {
	if p.activator != nil {
		p.activator.Deactivate(p)
	}
}

func (p *program) SetUniform(name string, value any) {
	p.uniforms[name] = value
}

func (p *program) Uniform(name string) (any, bool) {
	v, ok := p.uniforms[name]
	return v, ok
}

func (p *program) Uniforms() map[string]any {
	return p.uniforms
}

func (p *program) SetUniformBlockBinding(block string, point int) {
	p.blockBindings[block] = point
}

func (p *program) UniformBlockBindings() map[string]int {
	return p.blockBindings
}

func (p *program) DepthTestEnabled() bool {
	return p.depthTestEnabled
}

func (p *program) DepthWriteEnabled() bool {
	return p.depthWriteEnabled
}

func (p *program) DepthCompare() CompareFunc {
	return p.depthCompare
}

func (p *program) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *program) Handle() any {
	return p.handle
}

func (p *program) SetHandle(h any) {
	p.handle = h
}

func (p *program) SetActivator(a Activator) {
	p.activator = a
}
