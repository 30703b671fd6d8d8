package bind_group_provider

// BufferWrite describes a single GPU buffer write operation targeting a specific binding
// on a BindGroupProvider at a given byte offset. The wgpu device stages one per draw for the
// uniform arena and flushes them before the frame is submitted.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  int
	Offset   uint64
	Data     []byte
}
