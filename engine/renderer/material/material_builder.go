package material

import "github.com/go-gl/mathgl/mgl32"

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithName is an option builder that sets the name of the material.
//
// Parameters:
//   - name: the identifier for the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name option to a material
func WithName(name string) MaterialBuilderOption {
	return func(m *material) {
		m.name = name
	}
}

// WithAlbedo is an option builder that sets the base RGB color of the material.
//
// Parameters:
//   - r, g, b: the albedo components
//
// Returns:
//   - MaterialBuilderOption: a function that applies the albedo option to a material
func WithAlbedo(r, g, b float32) MaterialBuilderOption {
	return func(m *material) {
		m.albedo = mgl32.Vec3{r, g, b}
	}
}

// WithMetallic is an option builder that sets the metallic factor of the material.
//
// Parameters:
//   - metallic: the metallic factor (0.0 = dielectric, 1.0 = metal)
//
// Returns:
//   - MaterialBuilderOption: a function that applies the metallic option to a material
func WithMetallic(metallic float32) MaterialBuilderOption {
	return func(m *material) {
		m.metallic = metallic
	}
}

// WithRoughness is an option builder that sets the roughness factor of the material.
//
// Parameters:
//   - roughness: the roughness factor (0.0 = smooth, 1.0 = rough)
//
// Returns:
//   - MaterialBuilderOption: a function that applies the roughness option to a material
func WithRoughness(roughness float32) MaterialBuilderOption {
	return func(m *material) {
		m.roughness = roughness
	}
}

// WithAO is an option builder that sets the baked ambient occlusion factor.
//
// Parameters:
//   - ao: the ambient occlusion factor (1.0 = unoccluded)
//
// Returns:
//   - MaterialBuilderOption: a function that applies the ambient occlusion option to a material
func WithAO(ao float32) MaterialBuilderOption {
	return func(m *material) {
		m.ao = ao
	}
}
