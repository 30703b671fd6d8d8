package shader

import "github.com/cogentcore/webgpu/wgpu"

// vertexFormatInfo holds the wgpu vertex format and its byte size for offset calculation
type vertexFormatInfo struct {
	format wgpu.VertexFormat
	size   uint64
}

// sampledTextureInfo holds the view dimension and multisampled flag for a sampled texture type
type sampledTextureInfo struct {
	viewDimension wgpu.TextureViewDimension
	multisampled  bool
}

// wgslTypeLayout holds the byte size and alignment for a WGSL type per the WGSL specification.
// Used to compute MinBindingSize for buffer bindings and uniform field offsets.
type wgslTypeLayout struct {
	size  uint64
	align uint64
}

// parsedField represents a single field extracted from a WGSL struct during parsing
type parsedField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
}

// parsedStruct represents a WGSL struct block extracted during parsing
type parsedStruct struct {
	name   string
	fields []parsedField
}

// UniformField describes one member of a program's uniform block.
type UniformField struct {
	// Name is the WGSL member name, which is also the uniform name used by SetUniform.
	Name string
	// Type is the WGSL type of the member, e.g. "mat4x4<f32>" or "array<vec4<f32>, 32>".
	Type string
	// Offset is the byte offset of the member inside the block.
	Offset uint64
	// Size is the byte size of the member.
	Size uint64
	// Count is the element count for fixed-size arrays, zero otherwise.
	Count int
	// Stride is the element stride for fixed-size arrays, zero otherwise.
	Stride uint64
}
