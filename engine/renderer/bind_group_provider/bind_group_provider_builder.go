package bind_group_provider

import "github.com/cogentcore/webgpu/wgpu"

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithBindGroupLayout sets the layout for a bind group index.
//
// Parameters:
//   - group: the bind group index
//   - bgl: the bind group layout to use for this group
//
// Returns:
//   - BindGroupProviderOption: a function that sets the layout on the provider
func WithBindGroupLayout(group int, bgl *wgpu.BindGroupLayout) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.bindGroupLayouts[group] = bgl
	}
}

// WithBuffer sets a buffer for a specific binding index.
//
// Parameters:
//   - binding: the binding index for this buffer
//   - buf: the buffer to associate with this binding
//
// Returns:
//   - BindGroupProviderOption: a function that sets the buffer for the specified binding
func WithBuffer(binding int, buf *wgpu.Buffer) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.buffers[binding] = buf
	}
}

// WithIndexCount sets the number of indices drawn for a mesh provider.
//
// Parameters:
//   - count: the index count
//
// Returns:
//   - BindGroupProviderOption: a function that sets the index count
func WithIndexCount(count int) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.indexCount = count
	}
}
