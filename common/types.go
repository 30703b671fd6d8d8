// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"encoding/binary"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
)

// Vertex is the interleaved vertex layout shared by every mesh in the engine.
// It matches the geometry shader's VertexInput struct exactly (32 bytes, tightly packed).
type Vertex struct {
	// Position is the object-space position.
	Position [3]float32
	// Normal is the object-space surface normal.
	Normal [3]float32
	// UV is the texture coordinate.
	UV [2]float32
}

// VertexStride is the size in bytes of a single Vertex.
const VertexStride = 32

// MarshalVertices packs vertices into the little-endian byte layout uploaded to vertex buffers.
//
// Parameters:
//   - vertices: the vertices to pack
//
// Returns:
//   - []byte: len(vertices)*VertexStride bytes
func MarshalVertices(vertices []Vertex) []byte {
	buf := make([]byte, len(vertices)*VertexStride)
	for i, v := range vertices {
		b := buf[i*VertexStride:]
		binary.LittleEndian.PutUint32(b[0:4], math.Float32bits(v.Position[0]))
		binary.LittleEndian.PutUint32(b[4:8], math.Float32bits(v.Position[1]))
		binary.LittleEndian.PutUint32(b[8:12], math.Float32bits(v.Position[2]))
		binary.LittleEndian.PutUint32(b[12:16], math.Float32bits(v.Normal[0]))
		binary.LittleEndian.PutUint32(b[16:20], math.Float32bits(v.Normal[1]))
		binary.LittleEndian.PutUint32(b[20:24], math.Float32bits(v.Normal[2]))
		binary.LittleEndian.PutUint32(b[24:28], math.Float32bits(v.UV[0]))
		binary.LittleEndian.PutUint32(b[28:32], math.Float32bits(v.UV[1]))
	}
	return buf
}

// MarshalIndices packs uint32 indices into little-endian bytes.
//
// Parameters:
//   - indices: the indices to pack
//
// Returns:
//   - []byte: len(indices)*4 bytes
func MarshalIndices(indices []uint32) []byte {
	buf := make([]byte, len(indices)*4)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(buf[i*4:], idx)
	}
	return buf
}

// TextureStagingData holds RGBA pixel data for a texture pending GPU upload.
// Used for the small data textures the pipeline generates at startup (rotation noise, environment maps, BRDF lookup).
type TextureStagingData struct {
	// Pixels is the byte slice representing the actual pixel data for the texture. It should be in RGBA format, with 4 bytes per pixel.
	Pixels []byte
	// Width is the width of the texture in pixels. This is required to correctly create the GPU texture and interpret the pixel data.
	Width uint32
	// Height is the height of the texture in pixels. This is required to correctly create the GPU texture and interpret the pixel data.
	Height uint32
}

// SamplerStagingData holds the configuration for a sampler pending GPU creation.
// Zero fields fall back to linear filtering and clamp-to-edge addressing.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode for texture coordinates outside the [0, 1] range in each dimension (U, V, W).
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp specify the minimum and maximum level of detail (LOD) for mipmapping.
	LodMinClamp, LodMaxClamp float32
	// MaxAnisotropy specifies the maximum anisotropy level for anisotropic filtering.
	MaxAnisotropy uint16
}

// EncodeUnorm packs a float in [0, 1] into an 8-bit unsigned normalized channel.
//
// Parameters:
//   - v: the value to pack, clamped to [0, 1]
//
// Returns:
//   - byte: the packed channel value
func EncodeUnorm(v float32) byte {
	return byte(Clamp(v, 0, 1)*255 + 0.5)
}

// EncodeSnorm packs a float in [-1, 1] into an 8-bit unsigned channel using the v*0.5+0.5 remap.
// Shaders reverse the remap with c*2-1.
//
// Parameters:
//   - v: the value to pack, clamped to [-1, 1]
//
// Returns:
//   - byte: the packed channel value
func EncodeSnorm(v float32) byte {
	return EncodeUnorm(v*0.5 + 0.5)
}
