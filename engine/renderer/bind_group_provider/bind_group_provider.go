package bind_group_provider

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string

	// The following fields are GPU allocated resources and must be released when no longer needed. They are populated by the wgpu device, not by user-creation.

	// bindGroupLayouts holds the layouts of a program keyed by group index.
	bindGroupLayouts map[int]*wgpu.BindGroupLayout
	// buffers holds GPU buffers keyed by binding index, or by chunk index for the uniform arena.
	buffers map[int]*wgpu.Buffer
	// bindGroups holds the bind groups created during the current frame.
	bindGroups []*wgpu.BindGroup

	// The following fields are specific to mesh providers.

	// vertexBuffer is the GPU vertex buffer, or nil if not initialized.
	vertexBuffer *wgpu.Buffer
	// indexBuffer is the GPU index buffer, or nil if not initialized.
	indexBuffer *wgpu.Buffer
	// indexCount is the number of indices drawn by DrawIndexed.
	indexCount int
}

// BindGroupProvider owns the wgpu objects behind one device-side resource of the renderer:
// the bind group layouts of a compiled program and the bind groups recorded with it, the
// vertex and index buffers of a mesh, or the chunked buffers of the per-frame uniform arena.
//
// Usage pattern:
//  1. The wgpu device creates a provider when it compiles a program, uploads a mesh or grows the arena
//  2. The device stores the created objects on the provider
//  3. Draws record per-frame bind groups with TrackBindGroup
//  4. EndFrame calls ReleaseBindGroups; Release frees everything when the resource is released
type BindGroupProvider interface {
	// Release releases every GPU object held by this provider.
	Release()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// BindGroupLayout returns the layout for a bind group index.
	//
	// Parameters:
	//   - group: the bind group index
	//
	// Returns:
	//   - *wgpu.BindGroupLayout: the layout or nil
	BindGroupLayout(group int) *wgpu.BindGroupLayout

	// SetBindGroupLayout stores the layout for a bind group index.
	//
	// Parameters:
	//   - group: the bind group index
	//   - layout: the layout
	SetBindGroupLayout(group int, layout *wgpu.BindGroupLayout)

	// BindGroupLayouts returns the layouts densely indexed by group, for a pipeline layout.
	//
	// Returns:
	//   - []*wgpu.BindGroupLayout: the layouts from group 0 to the highest group set
	BindGroupLayouts() []*wgpu.BindGroupLayout

	// Buffer returns the buffer stored at a binding or chunk index.
	//
	// Parameters:
	//   - binding: the index
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer or nil
	Buffer(binding int) *wgpu.Buffer

	// SetBuffer stores a buffer at a binding or chunk index.
	//
	// Parameters:
	//   - binding: the index
	//   - buf: the buffer
	SetBuffer(binding int, buf *wgpu.Buffer)

	// Buffers returns every stored buffer keyed by index.
	//
	// Returns:
	//   - map[int]*wgpu.Buffer: the buffers
	Buffers() map[int]*wgpu.Buffer

	// TrackBindGroup records a bind group created for the current frame.
	//
	// Parameters:
	//   - bg: the bind group
	TrackBindGroup(bg *wgpu.BindGroup)

	// ReleaseBindGroups releases the bind groups recorded since the last call.
	//
	// Returns:
	//   - int: the number of bind groups released
	ReleaseBindGroups() int

	// VertexBuffer returns the GPU vertex buffer, or nil if not initialized.
	//
	// Returns:
	//   - *wgpu.Buffer: the vertex buffer or nil
	VertexBuffer() *wgpu.Buffer

	// SetVertexBuffer stores the GPU vertex buffer.
	//
	// Parameters:
	//   - buf: the vertex buffer
	SetVertexBuffer(buf *wgpu.Buffer)

	// IndexBuffer returns the GPU index buffer, or nil if not initialized.
	//
	// Returns:
	//   - *wgpu.Buffer: the index buffer or nil
	IndexBuffer() *wgpu.Buffer

	// SetIndexBuffer stores the GPU index buffer.
	//
	// Parameters:
	//   - buf: the index buffer
	SetIndexBuffer(buf *wgpu.Buffer)

	// IndexCount returns the number of indices to draw.
	//
	// Returns:
	//   - int: the index count
	IndexCount() int

	// SetIndexCount sets the number of indices to draw.
	//
	// Parameters:
	//   - count: the index count
	SetIndexCount(count int)
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates an empty provider.
//
// Parameters:
//   - label: a debug label used as the prefix of every object the device creates for it
//   - options: variadic list of BindGroupProviderOption functions
//
// Returns:
//   - BindGroupProvider: the provider
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:            label,
		bindGroupLayouts: make(map[int]*wgpu.BindGroupLayout),
		buffers:          make(map[int]*wgpu.Buffer),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Release() {
	p.ReleaseBindGroups()
	for k, buf := range p.buffers {
		if buf != nil {
			buf.Release()
		}
		delete(p.buffers, k)
	}
	for g, layout := range p.bindGroupLayouts {
		if layout != nil {
			layout.Release()
		}
		delete(p.bindGroupLayouts, g)
	}
	if p.vertexBuffer != nil {
		p.vertexBuffer.Release()
		p.vertexBuffer = nil
	}
	if p.indexBuffer != nil {
		p.indexBuffer.Release()
		p.indexBuffer = nil
	}
	p.indexCount = 0
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) BindGroupLayout(group int) *wgpu.BindGroupLayout {
	return p.bindGroupLayouts[group]
}

func (p *bindGroupProvider) SetBindGroupLayout(group int, layout *wgpu.BindGroupLayout) {
	p.bindGroupLayouts[group] = layout
}

func (p *bindGroupProvider) BindGroupLayouts() []*wgpu.BindGroupLayout {
	maxGroup := -1
	for g := range p.bindGroupLayouts {
		if g > maxGroup {
			maxGroup = g
		}
	}
	layouts := make([]*wgpu.BindGroupLayout, maxGroup+1)
	for g, layout := range p.bindGroupLayouts {
		layouts[g] = layout
	}
	return layouts
}

func (p *bindGroupProvider) Buffer(binding int) *wgpu.Buffer {
	return p.buffers[binding]
}

func (p *bindGroupProvider) SetBuffer(binding int, buf *wgpu.Buffer) {
	p.buffers[binding] = buf
}

func (p *bindGroupProvider) Buffers() map[int]*wgpu.Buffer {
	return p.buffers
}

func (p *bindGroupProvider) TrackBindGroup(bg *wgpu.BindGroup) {
	if bg != nil {
		p.bindGroups = append(p.bindGroups, bg)
	}
}

func (p *bindGroupProvider) ReleaseBindGroups() int {
	n := len(p.bindGroups)
	for _, bg := range p.bindGroups {
		bg.Release()
	}
	p.bindGroups = p.bindGroups[:0]
	return n
}

func (p *bindGroupProvider) VertexBuffer() *wgpu.Buffer {
	return p.vertexBuffer
}

func (p *bindGroupProvider) SetVertexBuffer(buf *wgpu.Buffer) {
	p.vertexBuffer = buf
}

func (p *bindGroupProvider) IndexBuffer() *wgpu.Buffer {
	return p.indexBuffer
}

func (p *bindGroupProvider) SetIndexBuffer(buf *wgpu.Buffer) {
	p.indexBuffer = buf
}

func (p *bindGroupProvider) IndexCount() int {
	return p.indexCount
}

func (p *bindGroupProvider) SetIndexCount(count int) {
	p.indexCount = count
}
