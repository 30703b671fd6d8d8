package shader

import (
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// wgslPrimitiveLayoutMap maps the WGSL scalar, vector and matrix types that may appear in a
// uniform block to their byte size and alignment.
//
// Reference: https://www.w3.org/TR/WGSL/#alignment-and-size
var wgslPrimitiveLayoutMap = map[string]wgslTypeLayout{
	"f32":  {4, 4},
	"i32":  {4, 4},
	"u32":  {4, 4},
	"bool": {4, 4},

	"vec2<f32>": {8, 8},
	"vec2f":     {8, 8},
	"vec3<f32>": {12, 16},
	"vec3f":     {12, 16},
	"vec4<f32>": {16, 16},
	"vec4f":     {16, 16},

	"vec2<i32>": {8, 8},
	"vec2i":     {8, 8},
	"vec4<i32>": {16, 16},
	"vec4i":     {16, 16},

	"mat3x3<f32>": {48, 16},
	"mat3x3f":     {48, 16},
	"mat4x4<f32>": {64, 16},
	"mat4x4f":     {64, 16},
}

// roundUpAlign rounds value up to the next multiple of alignment.
// Alignment must be a power of two.
//
// Parameters:
//   - alignment: the required alignment (must be a power of two)
//   - value: the value to align
//
// Returns:
//   - uint64: value rounded up to the next multiple of alignment
func roundUpAlign(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// splitArrayType splits "array<T, N>" into its element type and count.
// Runtime-sized arrays report a count of zero.
func splitArrayType(typeName string) (elem string, count uint64, ok bool) {
	if !strings.HasPrefix(typeName, "array<") || !strings.HasSuffix(typeName, ">") {
		return "", 0, false
	}
	inner := typeName[len("array<") : len(typeName)-1]
	cut := strings.LastIndex(inner, ",")
	if cut < 0 {
		return strings.TrimSpace(inner), 0, true
	}
	n, err := strconv.ParseUint(strings.TrimSpace(inner[cut+1:]), 10, 64)
	if err != nil {
		return "", 0, false
	}
	return strings.TrimSpace(inner[:cut]), n, true
}

// resolveTypeLayout resolves a WGSL type name to its size and alignment using primitives
// and previously-computed struct layouts. Fixed-size arrays resolve to count*stride;
// runtime-sized arrays resolve to one element stride.
//
// Parameters:
//   - typeName: the WGSL type name to resolve, e.g. "f32", "Uniforms", "array<vec4<f32>, 32>"
//   - knownTypes: a map of already-resolved type names to their layouts
//
// Returns:
//   - wgslTypeLayout: the resolved layout
//   - bool: true if the type could be resolved
func resolveTypeLayout(typeName string, knownTypes map[string]wgslTypeLayout) (wgslTypeLayout, bool) {
	if layout, ok := wgslPrimitiveLayoutMap[typeName]; ok {
		return layout, true
	}
	if layout, ok := knownTypes[typeName]; ok {
		return layout, true
	}

	elem, count, ok := splitArrayType(typeName)
	if !ok {
		return wgslTypeLayout{}, false
	}
	elemLayout, ok := resolveTypeLayout(elem, knownTypes)
	if !ok {
		return wgslTypeLayout{}, false
	}
	stride := roundUpAlign(elemLayout.align, elemLayout.size)
	if count == 0 {
		return wgslTypeLayout{stride, elemLayout.align}, true
	}
	return wgslTypeLayout{count * stride, elemLayout.align}, true
}

// computeFieldOffsets lays out the members of a struct using WGSL struct layout rules:
// each member is placed at the next offset aligned to its type, and the struct size is
// rounded up to the largest member alignment. Builtin members are skipped.
//
// Parameters:
//   - ps: the parsed struct to lay out
//   - knownTypes: a map of already-resolved type names to their layouts
//
// Returns:
//   - []UniformField: the members with their offsets, in declaration order
//   - wgslTypeLayout: the layout of the whole struct
//   - bool: false if any member type could not be resolved
func computeFieldOffsets(ps parsedStruct, knownTypes map[string]wgslTypeLayout) ([]UniformField, wgslTypeLayout, bool) {
	fields := make([]UniformField, 0, len(ps.fields))
	offset := uint64(0)
	maxAlign := uint64(1)

	for _, f := range ps.fields {
		if f.isBuiltin {
			continue
		}
		layout, ok := resolveTypeLayout(f.typeName, knownTypes)
		if !ok {
			return nil, wgslTypeLayout{}, false
		}

		offset = roundUpAlign(layout.align, offset)
		field := UniformField{
			Name:   f.name,
			Type:   f.typeName,
			Offset: offset,
			Size:   layout.size,
		}
		if elem, count, isArray := splitArrayType(f.typeName); isArray && count > 0 {
			elemLayout, _ := resolveTypeLayout(elem, knownTypes)
			field.Count = int(count)
			field.Stride = roundUpAlign(elemLayout.align, elemLayout.size)
		}
		fields = append(fields, field)

		offset += layout.size
		if layout.align > maxAlign {
			maxAlign = layout.align
		}
	}

	return fields, wgslTypeLayout{roundUpAlign(maxAlign, offset), maxAlign}, true
}

// computeStructSizes computes the byte size and alignment of all parsed WGSL structs,
// resolving nested struct members iteratively until no further progress is made.
//
// Parameters:
//   - structs: all parsed struct blocks from the WGSL source
//
// Returns:
//   - map[string]wgslTypeLayout: a map from struct name to computed layout
func computeStructSizes(structs []parsedStruct) map[string]wgslTypeLayout {
	resolved := make(map[string]wgslTypeLayout, len(structs))
	remaining := append([]parsedStruct(nil), structs...)

	for len(remaining) > 0 {
		next := remaining[:0]
		for _, ps := range remaining {
			if _, layout, ok := computeFieldOffsets(ps, resolved); ok {
				resolved[ps.name] = layout
			} else {
				next = append(next, ps)
			}
		}
		if len(next) == len(remaining) {
			break
		}
		remaining = next
	}

	return resolved
}

// classifyResource creates a wgpu.BindGroupLayoutEntry from a parsed WGSL resource declaration.
// Uniform blocks, filtering samplers and sampled 2D textures are the resource kinds the
// deferred programs declare.
//
// Parameters:
//   - binding: the binding index from @binding(N)
//   - visibility: the shader stage visibility flag
//   - addressSpace: the address space qualifier (e.g. "uniform"), empty for handle types
//   - typeName: the WGSL type string (e.g. "Uniforms", "texture_2d<f32>", "sampler")
//
// Returns:
//   - wgpu.BindGroupLayoutEntry: a populated layout entry for the resource
func classifyResource(binding uint32, visibility wgpu.ShaderStage, addressSpace, typeName string) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: visibility,
	}

	switch {
	case addressSpace == "uniform":
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
	case strings.HasPrefix(addressSpace, "storage"):
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		if strings.Contains(addressSpace, "read_write") {
			entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		}
	case typeName == "sampler":
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case strings.HasPrefix(typeName, "texture_depth_"):
		entry.Texture.SampleType = wgpu.TextureSampleTypeDepth
		if info, ok := wgslSampledTextureMap[typeName]; ok {
			entry.Texture.ViewDimension = info.viewDimension
			entry.Texture.Multisampled = info.multisampled
		}
	case strings.HasPrefix(typeName, "texture_"):
		base, param := splitTypeParams(typeName)
		if info, ok := wgslSampledTextureMap[base]; ok {
			entry.Texture.ViewDimension = info.viewDimension
			entry.Texture.Multisampled = info.multisampled
		}
		if st, ok := wgslSampleTypeMap[param]; ok {
			entry.Texture.SampleType = st
		}
	}

	return entry
}

// splitTypeParams splits a WGSL parameterized type into its base name and parameter string.
// For "texture_2d<f32>" returns ("texture_2d", "f32").
func splitTypeParams(typeName string) (base string, params string) {
	before, after, ok := strings.Cut(typeName, "<")
	if !ok {
		return typeName, ""
	}
	return before, strings.TrimSpace(strings.TrimSuffix(after, ">"))
}

// stripComments removes both single-line (//) and block (/* */) comments from WGSL source.
// Block comments may be nested per the WGSL specification.
func stripComments(source string) string {
	return stripLineComments(stripBlockComments(source))
}

// stripLineComments removes single-line // comments from WGSL source.
func stripLineComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	for line := range strings.SplitSeq(source, "\n") {
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// stripBlockComments removes nested block comments (/* ... */) from WGSL source.
func stripBlockComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		if i+1 < len(source) {
			switch {
			case source[i] == '/' && source[i+1] == '*':
				depth++
				i++
				continue
			case source[i] == '*' && source[i+1] == '/' && depth > 0:
				depth--
				i++
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}

// buildVertexBufferLayout converts a parsed vertex input struct into a wgpu.VertexBufferLayout
// with tightly packed attributes in declaration order. Returns false if any member has a type
// that is not a valid vertex format.
//
// Parameters:
//   - ps: the parsed struct containing vertex input members
//
// Returns:
//   - wgpu.VertexBufferLayout: the constructed vertex buffer layout
//   - bool: false if a member type could not be mapped to a vertex format
func buildVertexBufferLayout(ps parsedStruct) (wgpu.VertexBufferLayout, bool) {
	attrs := make([]wgpu.VertexAttribute, 0, len(ps.fields))
	var offset uint64

	for _, f := range ps.fields {
		if f.location < 0 {
			return wgpu.VertexBufferLayout{}, false
		}
		info, ok := wgslVertexFormatMap[f.typeName]
		if !ok {
			return wgpu.VertexBufferLayout{}, false
		}
		attrs = append(attrs, wgpu.VertexAttribute{
			Format:         info.format,
			Offset:         offset,
			ShaderLocation: uint32(f.location),
		})
		offset += info.size
	}

	return wgpu.VertexBufferLayout{
		ArrayStride: offset,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attrs,
	}, true
}

// splitAtTopLevelCommas splits a string at commas that are not nested inside angle brackets
// or parentheses, so types like array<vec4<f32>, 32> and attributes like @builtin(position)
// stay intact.
func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(':
			depth++
		case '>', ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
