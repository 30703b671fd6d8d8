package scene

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/program"
	"github.com/go-gl/mathgl/mgl32"
)

// NodeBuilderOption is a functional option for configuring a Node.
// Use the With* functions to create options.
type NodeBuilderOption func(n *node)

// WithName sets the node name.
//
// Parameters:
//   - name: the node name
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithName(name string) NodeBuilderOption {
	return func(n *node) {
		n.name = name
	}
}

// WithTransform sets the initial local transform.
//
// Parameters:
//   - m: the local transform
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithTransform(m mgl32.Mat4) NodeBuilderOption {
	return func(n *node) {
		n.transform = m
	}
}

// WithDrawable binds a drawable to the node.
//
// Parameters:
//   - d: the drawable
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithDrawable(d Drawable) NodeBuilderOption {
	return func(n *node) {
		n.drawable = d
	}
}

// WithProgram overrides the program inherited from the parent.
//
// Parameters:
//   - p: the program
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithProgram(p program.Program) NodeBuilderOption {
	return func(n *node) {
		n.program = p
	}
}

// WithPreDraw sets the callback invoked before the node is drawn.
//
// Parameters:
//   - cb: the callback
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithPreDraw(cb NodeCallback) NodeBuilderOption {
	return func(n *node) {
		n.preDraw = cb
	}
}

// WithPostDraw sets the callback invoked after the node and its subtree are drawn.
//
// Parameters:
//   - cb: the callback
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithPostDraw(cb NodeCallback) NodeBuilderOption {
	return func(n *node) {
		n.postDraw = cb
	}
}
