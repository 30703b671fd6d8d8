package model

import "github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"

// ModelBuilderOption is a function that configures a model instance during construction.
type ModelBuilderOption func(*model)

// WithName is an option builder that sets the name of the model, also used as the mesh label.
//
// Parameters:
//   - name: the identifier for the model
//
// Returns:
//   - ModelBuilderOption: a function that applies the name option to a model
func WithName(name string) ModelBuilderOption {
	return func(m *model) {
		m.name = name
	}
}

// WithMaterial is an option builder that sets the material applied before each draw.
//
// Parameters:
//   - mat: the material
//
// Returns:
//   - ModelBuilderOption: a function that applies the material option to a model
func WithMaterial(mat material.Material) ModelBuilderOption {
	return func(m *model) {
		m.material = mat
	}
}
