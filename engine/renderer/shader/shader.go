package shader

import (
	"embed"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga"
	"github.com/pkg/errors"
)

// ShaderType identifies a programmable stage of a render program.
type ShaderType int

const (
	// ShaderTypeVertex is the vertex stage.
	ShaderTypeVertex ShaderType = iota

	// ShaderTypeFragment is the fragment stage.
	ShaderTypeFragment
)

// MaxLights is the capacity of the light arrays in the lighting program's uniform block.
const MaxLights = 32

// MaxKernelSize is the capacity of the ambient occlusion sample kernel array.
const MaxKernelSize = 32

// Keys of the built-in programs shipped with the engine.
const (
	KeyGeometry      = "geometry"
	KeyOcclusion     = "ssao"
	KeyBoxBlur       = "box_blur"
	KeyLighting      = "lighting"
	KeyBackground    = "background"
	KeyReflections   = "reflections"
	KeyBloomSeparate = "bloom_separate"
	KeyGaussianBlur  = "gaussian_blur"
	KeyBloomBlend    = "bloom_blend"
	KeyComposite     = "composite"
	KeyGBufferDebug  = "gbuffer_debug"
)

// UniformGroup and TextureGroup are the bind group indices every program uses: group 0
// holds the uniform block, group 1 holds the input textures followed by one sampler.
const (
	UniformGroup = 0
	TextureGroup = 1
)

//go:embed assets/*.wgsl
var builtinAssets embed.FS

// shader is the implementation of the Shader interface.
// It holds the WGSL source of a program together with the metadata parsed from it.
type shader struct {
	key                        string
	source                     string
	vertexEntry                string
	fragmentEntry              string
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	bindingVarNames            map[int]map[int]string
	vertexLayouts              []wgpu.VertexBufferLayout
	uniforms                   UniformLayout
	textureSlots               int
	module                     *wgpu.ShaderModuleDescriptor
}

// Shader is a parsed WGSL module containing both the vertex and the fragment entry point of a
// program. It exposes everything a device needs to build pipelines and bind resources.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for caching and lookups.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the WGSL shader source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// EntryPoint returns the entry point name for the given stage.
	//
	// Parameters:
	//   - shaderType: ShaderTypeVertex or ShaderTypeFragment
	//
	// Returns:
	//   - string: the entry point name (e.g. "vs_main")
	EntryPoint(shaderType ShaderType) string

	// BindGroupLayoutDescriptors retrieves all parsed bind group layout descriptors keyed by group index.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// BindGroupVarName retrieves the variable name declared at a group and binding.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - string: the variable name, or an empty string if nothing is declared there
	BindGroupVarName(group, binding int) string

	// VertexLayouts retrieves the vertex buffer layouts consumed by the vertex stage.
	// Fullscreen programs, whose vertex stage only reads the vertex index, return none.
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: the vertex buffer layouts in slot order
	VertexLayouts() []wgpu.VertexBufferLayout

	// Uniforms returns the layout of the uniform block at @group(0) @binding(0).
	//
	// Returns:
	//   - UniformLayout: the block layout, empty if the program declares no uniforms
	Uniforms() UniformLayout

	// TextureSlots returns the number of input textures the program samples.
	// Slot N corresponds to @group(1) @binding(N); the sampler follows the last texture.
	//
	// Returns:
	//   - int: the texture slot count
	TextureSlots() int

	// Module returns the wgpu.ShaderModuleDescriptor for this shader.
	//
	// Returns:
	//   - *wgpu.ShaderModuleDescriptor: the shader module descriptor containing the WGSL code and label
	Module() *wgpu.ShaderModuleDescriptor

	// Validate runs the WGSL front end over the source and reports syntax and type errors.
	//
	// Returns:
	//   - error: the validation error, or nil
	Validate() error
}

var _ Shader = &shader{}

// NewShader parses WGSL source into a Shader. The source must declare a @vertex and a
// @fragment entry point.
//
// Parameters:
//   - key: a unique identifier for the shader, used for caching and lookups
//   - source: the WGSL source code
//
// Returns:
//   - Shader: the parsed shader
//   - error: an error if an entry point is missing or the uniform block cannot be laid out
func NewShader(key, source string) (Shader, error) {
	s := &shader{
		key:    key,
		source: source,
		module: &wgpu.ShaderModuleDescriptor{
			Label: key,
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
				Code: source,
			},
		},
	}
	if err := s.parse(); err != nil {
		return nil, errors.Wrapf(err, "shader %s", key)
	}
	return s, nil
}

// NewShaderFromPath reads a WGSL file and parses it with NewShader.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - sourcePath: the file path to read WGSL source from
//
// Returns:
//   - Shader: the parsed shader
//   - error: a read or parse error
func NewShaderFromPath(key, sourcePath string) (Shader, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, errors.Wrapf(err, "read shader source %q", sourcePath)
	}
	return NewShader(key, string(data))
}

// Builtin returns one of the engine's embedded programs by key.
//
// Parameters:
//   - key: one of the Key* constants
//
// Returns:
//   - Shader: the parsed shader
//   - error: an error if no embedded program has that key
func Builtin(key string) (Shader, error) {
	data, err := builtinAssets.ReadFile(path.Join("assets", key+".wgsl"))
	if err != nil {
		return nil, errors.Wrapf(err, "unknown builtin shader %q", key)
	}
	return NewShader(key, string(data))
}

// BuiltinKeys lists the keys of all embedded programs in lexical order.
func BuiltinKeys() []string {
	entries, _ := builtinAssets.ReadDir("assets")
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, strings.TrimSuffix(e.Name(), ".wgsl"))
	}
	sort.Strings(keys)
	return keys
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) EntryPoint(shaderType ShaderType) string {
	if shaderType == ShaderTypeFragment {
		return s.fragmentEntry
	}
	return s.vertexEntry
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) BindGroupVarName(group, binding int) string {
	if s.bindingVarNames[group] == nil {
		return ""
	}
	return s.bindingVarNames[group][binding]
}

func (s *shader) VertexLayouts() []wgpu.VertexBufferLayout {
	return s.vertexLayouts
}

func (s *shader) Uniforms() UniformLayout {
	return s.uniforms
}

func (s *shader) TextureSlots() int {
	return s.textureSlots
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}

func (s *shader) Validate() error {
	if _, err := naga.Compile(s.source); err != nil {
		return errors.Wrapf(err, "validate %s", s.key)
	}
	return nil
}

// parse extracts the entry points, vertex layouts, bind group layouts, uniform block layout and
// texture slot count from the source.
func (s *shader) parse() error {
	cleaned := stripComments(s.source)

	s.vertexEntry = parseEntryPoint(cleaned, ShaderTypeVertex)
	s.fragmentEntry = parseEntryPoint(cleaned, ShaderTypeFragment)
	if s.vertexEntry == "" || s.fragmentEntry == "" {
		return errors.New("source must declare both a @vertex and a @fragment entry point")
	}

	structs := parseStructBlocks(cleaned)
	structSizes := computeStructSizes(structs)
	s.vertexLayouts = parseVertexLayouts(cleaned, s.vertexEntry, structs)

	var typeNames map[int]map[int]string
	s.bindGroupLayoutDescriptors, s.bindingVarNames, typeNames = parseBindGroupLayouts(
		cleaned, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, structSizes)

	if blockType, ok := typeNames[UniformGroup][0]; ok {
		var block *parsedStruct
		for i := range structs {
			if structs[i].name == blockType {
				block = &structs[i]
				break
			}
		}
		if block == nil {
			return errors.Errorf("uniform block type %s is not a struct", blockType)
		}
		fields, layout, ok := computeFieldOffsets(*block, structSizes)
		if !ok {
			return errors.Errorf("uniform block %s has a member of unsupported type", blockType)
		}
		s.uniforms = UniformLayout{Struct: blockType, Size: layout.size, Fields: fields}
	}

	for _, typeName := range typeNames[TextureGroup] {
		if strings.HasPrefix(typeName, "texture_") {
			s.textureSlots++
		}
	}
	return nil
}
