package material

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/program"
	"github.com/go-gl/mathgl/mgl32"
)

// material is the implementation of the Material interface.
type material struct {
	name      string
	albedo    mgl32.Vec3
	metallic  float32
	roughness float32
	ao        float32
}

// Material defines the interface for the surface properties a drawable writes into the
// geometry buffer: albedo and the packed metallic, roughness and ambient occlusion factors.
//
// Materials are shared data referenced by drawables; a drawable applies its material to the
// active program right before its mesh draw.
type Material interface {
	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// Albedo retrieves the base RGB color of the material.
	//
	// Returns:
	//   - mgl32.Vec3: the albedo color
	Albedo() mgl32.Vec3

	// Metallic retrieves the metallic factor of the material.
	// A value of 0.0 represents a dielectric surface, 1.0 represents a fully metallic surface.
	//
	// Returns:
	//   - float32: the metallic factor
	Metallic() float32

	// Roughness retrieves the roughness factor of the material.
	// A value of 0.0 represents a perfectly smooth surface, 1.0 represents a fully rough surface.
	//
	// Returns:
	//   - float32: the roughness factor
	Roughness() float32

	// AO retrieves the baked ambient occlusion factor, 1.0 meaning unoccluded.
	//
	// Returns:
	//   - float32: the ambient occlusion factor
	AO() float32

	// SetAlbedo sets the base RGB color.
	//
	// Parameters:
	//   - albedo: the albedo color
	SetAlbedo(albedo mgl32.Vec3)

	// SetMetallic sets the metallic factor.
	//
	// Parameters:
	//   - metallic: the metallic factor
	SetMetallic(metallic float32)

	// SetRoughness sets the roughness factor.
	//
	// Parameters:
	//   - roughness: the roughness factor
	SetRoughness(roughness float32)

	// Apply uploads the material as the Albedo, Metallic, Roughness and AO uniforms.
	//
	// Parameters:
	//   - p: the program about to draw, usually the geometry program
	Apply(p program.Program)
}

var _ Material = &material{}

// NewMaterial creates a new white, dielectric, fully rough Material configured with the provided options.
//
// Parameters:
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := &material{
		albedo:    mgl32.Vec3{1, 1, 1},
		metallic:  0.0,
		roughness: 1.0,
		ao:        1.0,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *material) Name() string {
	return m.name
}

func (m *material) Albedo() mgl32.Vec3 {
	return m.albedo
}

func (m *material) Metallic() float32 {
	return m.metallic
}

func (m *material) Roughness() float32 {
	return m.roughness
}

func (m *material) AO() float32 {
	return m.ao
}

func (m *material) SetAlbedo(albedo mgl32.Vec3) {
	m.albedo = albedo
}

func (m *material) SetMetallic(metallic float32) {
	m.metallic = metallic
}

func (m *material) SetRoughness(roughness float32) {
	m.roughness = roughness
}

func (m *material) Apply(p program.Program) {
	p.SetUniform("Albedo", m.albedo)
	p.SetUniform("Metallic", m.metallic)
	p.SetUniform("Roughness", m.roughness)
	p.SetUniform("AO", m.ao)
}
