package shader

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// wgslVertexFormatMap maps WGSL type names to their corresponding wgpu vertex format and byte size
var wgslVertexFormatMap = map[string]vertexFormatInfo{
	"f32":       {wgpu.VertexFormatFloat32, 4},
	"vec2f":     {wgpu.VertexFormatFloat32x2, 8},
	"vec2<f32>": {wgpu.VertexFormatFloat32x2, 8},
	"vec3f":     {wgpu.VertexFormatFloat32x3, 12},
	"vec3<f32>": {wgpu.VertexFormatFloat32x3, 12},
	"vec4f":     {wgpu.VertexFormatFloat32x4, 16},
	"vec4<f32>": {wgpu.VertexFormatFloat32x4, 16},
	"u32":       {wgpu.VertexFormatUint32, 4},
	"i32":       {wgpu.VertexFormatSint32, 4},
}

// wgslSampledTextureMap maps WGSL sampled texture base names to their view dimension and multisampled flag
var wgslSampledTextureMap = map[string]sampledTextureInfo{
	"texture_2d":              {wgpu.TextureViewDimension2D, false},
	"texture_2d_array":        {wgpu.TextureViewDimension2DArray, false},
	"texture_cube":            {wgpu.TextureViewDimensionCube, false},
	"texture_multisampled_2d": {wgpu.TextureViewDimension2D, true},
	"texture_depth_2d":        {wgpu.TextureViewDimension2D, false},
}

// wgslSampleTypeMap maps WGSL scalar type parameters to their wgpu texture sample type
var wgslSampleTypeMap = map[string]wgpu.TextureSampleType{
	"f32": wgpu.TextureSampleTypeFloat,
	"i32": wgpu.TextureSampleTypeSint,
	"u32": wgpu.TextureSampleTypeUint,
}

var (
	// structBlockRegex matches struct declarations and captures the name and body
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// locationRegex matches @location(N) attributes
	locationRegex = regexp.MustCompile(`@location\((\d+)\)`)

	// builtinRegex matches @builtin(...) attributes
	builtinRegex = regexp.MustCompile(`@builtin\(\w+\)`)

	// fieldRegex matches a struct member or parameter: optional attributes, name, colon, type.
	fieldRegex = regexp.MustCompile(`^(?:@\w+(?:\([^)]*\))?\s*)*(\w+)\s*:\s*(.+)$`)

	// vertexEntryRegex matches @vertex functions and captures the entry point name
	vertexEntryRegex = regexp.MustCompile(`@vertex\s+fn\s+(\w+)\s*\(`)

	// fragmentEntryRegex matches @fragment functions and captures the entry point name
	fragmentEntryRegex = regexp.MustCompile(`@fragment\s+fn\s+(\w+)\s*\(`)

	// bindGroupDeclRegex captures group, binding, optional address space, variable name, and type
	// from declarations like: @group(0) @binding(0) var<uniform> u: Uniforms;
	// or handle types: @group(1) @binding(0) var gPosition: texture_2d<f32>;
	bindGroupDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// parseEntryPoint extracts the entry point function name for the given stage from WGSL source.
// Returns an empty string if no matching entry point attribute is found.
//
// Parameters:
//   - source: WGSL source with comments stripped
//   - shaderType: ShaderTypeVertex or ShaderTypeFragment
//
// Returns:
//   - string: the entry point function name, or empty string if not found
func parseEntryPoint(source string, shaderType ShaderType) string {
	re := vertexEntryRegex
	if shaderType == ShaderTypeFragment {
		re = fragmentEntryRegex
	}
	if match := re.FindStringSubmatch(source); match != nil {
		return match[1]
	}
	return ""
}

// parseEntryParams returns the raw parameter list of the named function, with nested
// parentheses from attributes such as @builtin(vertex_index) preserved.
func parseEntryParams(source, entryPoint string) string {
	re := regexp.MustCompile(`fn\s+` + regexp.QuoteMeta(entryPoint) + `\s*\(`)
	loc := re.FindStringIndex(source)
	if loc == nil {
		return ""
	}
	depth := 1
	for i := loc[1]; i < len(source); i++ {
		switch source[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return source[loc[1]:i]
			}
		}
	}
	return ""
}

// parseVertexLayouts builds the vertex buffer layouts consumed by the vertex entry point.
// Only struct-typed parameters of the entry point whose members all carry @location become
// buffers; a vertex stage that takes only builtins (a fullscreen triangle) yields no layouts.
//
// Parameters:
//   - source: WGSL source with comments stripped
//   - entryPoint: the vertex entry point name
//   - structs: all parsed struct blocks from the source
//
// Returns:
//   - []wgpu.VertexBufferLayout: one layout per vertex input struct, in parameter order
func parseVertexLayouts(source, entryPoint string, structs []parsedStruct) []wgpu.VertexBufferLayout {
	byName := make(map[string]parsedStruct, len(structs))
	for _, ps := range structs {
		byName[ps.name] = ps
	}

	var layouts []wgpu.VertexBufferLayout
	for _, param := range splitAtTopLevelCommas(parseEntryParams(source, entryPoint)) {
		fm := fieldRegex.FindStringSubmatch(strings.TrimSpace(param))
		if fm == nil {
			continue
		}
		ps, ok := byName[strings.TrimSpace(fm[2])]
		if !ok {
			continue
		}
		if layout, ok := buildVertexBufferLayout(ps); ok {
			layouts = append(layouts, layout)
		}
	}
	return layouts
}

// parseBindGroupLayouts extracts all @group(N) @binding(M) resource declarations from WGSL
// source and returns them as wgpu.BindGroupLayoutDescriptor values grouped by group index.
// Each descriptor's entries are sorted by binding index.
//
// Parameters:
//   - source: WGSL source with comments stripped
//   - visibility: the shader stage visibility flag to set on each entry
//   - structSizes: struct layouts used to set MinBindingSize on buffer bindings
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: layout descriptors keyed by group index
//   - map[int]map[int]string: variable names keyed by group and binding index
//   - map[int]map[int]string: declared types keyed by group and binding index
func parseBindGroupLayouts(source string, visibility wgpu.ShaderStage, structSizes map[string]wgslTypeLayout) (map[int]wgpu.BindGroupLayoutDescriptor, map[int]map[int]string, map[int]map[int]string) {
	groups := make(map[int][]wgpu.BindGroupLayoutEntry)
	varNames := make(map[int]map[int]string)
	typeNames := make(map[int]map[int]string)

	for _, match := range bindGroupDeclRegex.FindAllStringSubmatch(source, -1) {
		group, _ := strconv.Atoi(match[1])
		binding, _ := strconv.Atoi(match[2])
		addressSpace := strings.TrimSpace(match[3])
		varName := strings.TrimSpace(match[4])
		typeName := strings.TrimSpace(match[5])

		entry := classifyResource(uint32(binding), visibility, addressSpace, typeName)
		if entry.Buffer.Type != wgpu.BufferBindingTypeUndefined {
			if layout, ok := resolveTypeLayout(typeName, structSizes); ok {
				entry.Buffer.MinBindingSize = layout.size
			}
		}
		groups[group] = append(groups[group], entry)

		if varNames[group] == nil {
			varNames[group] = make(map[int]string)
			typeNames[group] = make(map[int]string)
		}
		varNames[group][binding] = varName
		typeNames[group][binding] = typeName
	}

	result := make(map[int]wgpu.BindGroupLayoutDescriptor, len(groups))
	for g, entries := range groups {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Binding < entries[j].Binding
		})
		result[g] = wgpu.BindGroupLayoutDescriptor{Entries: entries}
	}
	return result, varNames, typeNames
}

// parseStructBlocks finds all struct { ... } blocks in the cleaned WGSL source
// and parses their fields including @location and @builtin attributes
//
// Parameters:
//   - source: WGSL source with comments already stripped
//
// Returns:
//   - []parsedStruct: all struct blocks found in the source
func parseStructBlocks(source string) []parsedStruct {
	matches := structBlockRegex.FindAllStringSubmatch(source, -1)
	structs := make([]parsedStruct, 0, len(matches))
	for _, match := range matches {
		structs = append(structs, parsedStruct{
			name:   match[1],
			fields: parseStructFields(match[2]),
		})
	}
	return structs
}

// parseStructFields parses the body of a struct block into individual fields,
// extracting @location and @builtin attributes along with the field name and type
//
// Parameters:
//   - body: the content between { and } of a struct declaration
//
// Returns:
//   - []parsedField: all fields found in the struct body
func parseStructFields(body string) []parsedField {
	lines := splitAtTopLevelCommas(body)
	fields := make([]parsedField, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fm := fieldRegex.FindStringSubmatch(line)
		if fm == nil {
			continue
		}

		field := parsedField{
			name:      fm[1],
			typeName:  strings.TrimSpace(fm[2]),
			location:  -1,
			isBuiltin: builtinRegex.MatchString(line),
		}
		if locMatch := locationRegex.FindStringSubmatch(line); locMatch != nil {
			if loc, err := strconv.Atoi(locMatch[1]); err == nil {
				field.location = loc
			}
		}
		fields = append(fields, field)
	}

	return fields
}
