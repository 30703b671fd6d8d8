package model

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
)

// ErrReleased is returned by Draw after the model's mesh has been released.
var ErrReleased = errors.New("model: mesh has been released")

// model is the implementation of the Model interface.
type model struct {
	name           string
	r              renderer.Renderer
	geometry       Geometry
	mesh           gpu.Mesh
	material       material.Material
	boundingRadius float32
}

// Model defines the interface for an uploaded mesh together with the material it is drawn with.
// A Model is a scene.Drawable: scene nodes borrow it and call Draw during traversal.
type Model interface {
	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Geometry returns the CPU-side mesh data the model was created from.
	//
	// Returns:
	//   - Geometry: the vertices and indices
	Geometry() Geometry

	// Mesh returns the device mesh handle, or nil after Release.
	//
	// Returns:
	//   - gpu.Mesh: the mesh
	Mesh() gpu.Mesh

	// Material returns the material applied before each draw.
	//
	// Returns:
	//   - material.Material: the material, or nil
	Material() material.Material

	// SetMaterial replaces the material applied before each draw.
	//
	// Parameters:
	//   - m: the material, or nil to leave the program's surface uniforms untouched
	SetMaterial(m material.Material)

	// BoundingRadius returns the radius of the bounding sphere around the model origin.
	//
	// Returns:
	//   - float32: the radius
	BoundingRadius() float32

	// Draw applies the material to the renderer's active program and draws the mesh.
	//
	// Returns:
	//   - error: ErrReleased, renderer.ErrNoActiveProgram, or a device error
	Draw() error

	// Release frees the device mesh. Releasing twice is a no-op.
	Release()
}

var _ Model = &model{}

// NewModel uploads geometry to the renderer's device and returns the drawable model.
//
// Parameters:
//   - r: the renderer owning the device
//   - g: the mesh data
//   - options: variadic list of ModelBuilderOption functions to configure the model
//
// Returns:
//   - Model: the model
//   - error: an error wrapping renderer.ErrResourceCreation
func NewModel(r renderer.Renderer, g Geometry, options ...ModelBuilderOption) (Model, error) {
	m := &model{
		name:           "model",
		r:              r,
		geometry:       g,
		material:       material.NewMaterial(),
		boundingRadius: g.BoundingRadius(),
	}
	for _, opt := range options {
		opt(m)
	}
	mesh, err := r.CreateMesh(gpu.MeshDescriptor{Label: m.name, Vertices: g.Vertices, Indices: g.Indices})
	if err != nil {
		return nil, err
	}
	m.mesh = mesh
	return m, nil
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Geometry() Geometry {
	return m.geometry
}

func (m *model) Mesh() gpu.Mesh {
	return m.mesh
}

func (m *model) Material() material.Material {
	return m.material
}

func (m *model) SetMaterial(mat material.Material) {
	m.material = mat
}

func (m *model) BoundingRadius() float32 {
	return m.boundingRadius
}

func (m *model) Draw() error {
	if m.mesh == nil {
		return ErrReleased
	}
	p := m.r.ActiveProgram()
	if p == nil {
		return renderer.ErrNoActiveProgram
	}
	if m.material != nil {
		m.material.Apply(p)
	}
	return m.r.DrawMesh(m.mesh)
}

func (m *model) Release() {
	if m.mesh == nil {
		return
	}
	m.r.ReleaseMesh(m.mesh)
	m.mesh = nil
}
