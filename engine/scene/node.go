package scene

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/program"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

var (
	// ErrNodeAttached is returned by AddChild when the node already has a parent.
	ErrNodeAttached = errors.New("scene: node is already attached to a parent")

	// ErrCycle is returned by AddChild when the node is the target itself or one of its ancestors.
	ErrCycle = errors.New("scene: adding node would create a cycle")

	// ErrNodeDestroyed is returned by AddChild when either node has been destroyed.
	ErrNodeDestroyed = errors.New("scene: node has been destroyed")
)

// ModelMatrixUniform is the uniform each drawable node uploads its world matrix to.
const ModelMatrixUniform = "ModelMatrix"

// Drawable is anything a node can draw. Draw issues the geometry submission using the
// renderer's active program and currently bound textures; the drawable binds its own textures.
type Drawable interface {
	Draw() error
}

// NodeCallback runs before or after a node is drawn.
type NodeCallback func(n Node)

// node is the implementation of the Node interface.
type node struct {
	id   uuid.UUID
	name string

	parent   *node
	children []*node

	transform mgl32.Mat4
	drawable  Drawable
	program   program.Program

	preDraw  NodeCallback
	postDraw NodeCallback

	destroyed bool
}

// Node is an element of the scene graph. A node owns its children, carries a local transform,
// and optionally borrows a drawable and overrides the shader program inherited from its parent.
//
// Nodes are created through CreateChild on their parent, so the tree stays acyclic by
// construction. A detached subtree can be re-attached with AddChild.
type Node interface {
	// ID returns the random identity assigned at creation.
	//
	// Returns:
	//   - uuid.UUID: the node identity
	ID() uuid.UUID

	// Name returns the optional node name.
	Name() string

	// SetName sets the node name.
	SetName(name string)

	// Parent returns the parent node, or nil for a root or detached node.
	Parent() Node

	// Children returns a copy of the child list in draw order.
	//
	// Returns:
	//   - []Node: the children
	Children() []Node

	// CreateChild creates a node with an identity transform and no program override, and appends
	// it to this node's children.
	//
	// Parameters:
	//   - opts: a variadic list of NodeBuilderOption functions to configure the child
	//
	// Returns:
	//   - Node: the new child
	CreateChild(opts ...NodeBuilderOption) Node

	// AddChild appends a detached node to this node's children.
	//
	// Parameters:
	//   - child: a node created by this package with no parent
	//
	// Returns:
	//   - error: ErrNodeAttached, ErrCycle or ErrNodeDestroyed
	AddChild(child Node) error

	// RemoveChild detaches a direct child, keeping its subtree intact.
	//
	// Parameters:
	//   - child: the child to remove
	//
	// Returns:
	//   - bool: true if child was a direct child of this node
	RemoveChild(child Node) bool

	// ClearChildren detaches every child.
	ClearChildren()

	// Destroy detaches this node from its parent and tears down its subtree. Drawable and
	// program references of the subtree are dropped; the drawables themselves are not released.
	Destroy()

	// Destroyed reports whether Destroy has been called on this node or an ancestor.
	Destroyed() bool

	// Transform returns the local transform.
	Transform() mgl32.Mat4

	// SetTransform replaces the local transform. Descendants pick up the change on the next draw.
	//
	// Parameters:
	//   - m: the new local transform
	SetTransform(m mgl32.Mat4)

	// Drawable returns the bound drawable, or nil for a transform-only node.
	Drawable() Drawable

	// SetDrawable binds a drawable; nil unbinds it.
	//
	// Parameters:
	//   - d: the drawable
	SetDrawable(d Drawable)

	// Program returns the program override, or nil when the node inherits its parent's program.
	Program() program.Program

	// SetProgram sets the program override; nil restores inheritance.
	//
	// Parameters:
	//   - p: the program
	SetProgram(p program.Program)

	// EffectiveProgram resolves the program this node draws with by walking up the parent chain.
	//
	// Returns:
	//   - program.Program: the nearest override, or nil if no ancestor sets one
	EffectiveProgram() program.Program

	// SetPreDraw sets the callback invoked before the node and its subtree are drawn.
	SetPreDraw(cb NodeCallback)

	// SetPostDraw sets the callback invoked after the node and its subtree are drawn.
	SetPostDraw(cb NodeCallback)

	// WorldMatrix returns the product of the local transforms from the root down to this node.
	//
	// Returns:
	//   - mgl32.Mat4: the world matrix
	WorldMatrix() mgl32.Mat4

	// Find searches this node's subtree, including the node itself, for an identity.
	//
	// Parameters:
	//   - id: the identity to look for
	//
	// Returns:
	//   - Node: the matching node, or nil
	Find(id uuid.UUID) Node

	// Count returns the number of nodes in this subtree, including the node itself.
	Count() int

	// TraverseAndDraw draws the subtree in depth-first pre-order. World matrices are recomputed
	// for every node on every call. For each node: the pre-draw callback runs; if the node
	// overrides the inherited program the override is activated with Use; if a drawable is bound
	// the world matrix is uploaded as ModelMatrix on the effective program and the drawable is
	// drawn; the children are drawn with the effective program; the override is restored with
	// Unuse; the post-draw callback runs.
	//
	// Parameters:
	//   - active: the program inherited by this node, typically the pass program in use
	//
	// Returns:
	//   - error: the first drawable error; traversal stops there
	TraverseAndDraw(active program.Program) error
}

var _ Node = &node{}

// NewNode creates a detached root node with an identity transform.
//
// Parameters:
//   - opts: a variadic list of NodeBuilderOption functions to configure the node
//
// Returns:
//   - Node: the new node
func NewNode(opts ...NodeBuilderOption) Node {
	return newNode(opts...)
}

func newNode(opts ...NodeBuilderOption) *node {
	n := &node{
		id:        uuid.New(),
		transform: mgl32.Ident4(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *node) ID() uuid.UUID {
	return n.id
}

func (n *node) Name() string {
	return n.name
}

func (n *node) SetName(name string) {
	n.name = name
}

func (n *node) Parent() Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *node) Children() []Node {
	out := make([]Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

func (n *node) CreateChild(opts ...NodeBuilderOption) Node {
	c := newNode(opts...)
	c.parent = n
	n.children = append(n.children, c)
	return c
}

func (n *node) AddChild(child Node) error {
	c, ok := child.(*node)
	if !ok || c == nil {
		return ErrNodeAttached
	}
	if n.Destroyed() || c.destroyed {
		return ErrNodeDestroyed
	}
	if c.parent != nil {
		return ErrNodeAttached
	}
	for a := n; a != nil; a = a.parent {
		if a == c {
			return ErrCycle
		}
	}
	c.parent = n
	n.children = append(n.children, c)
	return nil
}

func (n *node) RemoveChild(child Node) bool {
	for i, c := range n.children {
		if Node(c) == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			c.parent = nil
			return true
		}
	}
	return false
}

func (n *node) ClearChildren() {
	for _, c := range n.children {
		c.parent = nil
	}
	n.children = nil
}

func (n *node) Destroy() {
	if n.parent != nil {
		n.parent.RemoveChild(n)
	}
	n.teardown()
}

func (n *node) teardown() {
	for _, c := range n.children {
		c.parent = nil
		c.teardown()
	}
	n.children = nil
	n.drawable = nil
	n.program = nil
	n.preDraw = nil
	n.postDraw = nil
	n.destroyed = true
}

func (n *node) Destroyed() bool {
	for a := n; a != nil; a = a.parent {
		if a.destroyed {
			return true
		}
	}
	return false
}

func (n *node) Transform() mgl32.Mat4 {
	return n.transform
}

func (n *node) SetTransform(m mgl32.Mat4) {
	n.transform = m
}

func (n *node) Drawable() Drawable {
	return n.drawable
}

func (n *node) SetDrawable(d Drawable) {
	n.drawable = d
}

func (n *node) Program() program.Program {
	return n.program
}

func (n *node) SetProgram(p program.Program) {
	n.program = p
}

func (n *node) EffectiveProgram() program.Program {
	for a := n; a != nil; a = a.parent {
		if a.program != nil {
			return a.program
		}
	}
	return nil
}

func (n *node) SetPreDraw(cb NodeCallback) {
	n.preDraw = cb
}

func (n *node) SetPostDraw(cb NodeCallback) {
	n.postDraw = cb
}

func (n *node) WorldMatrix() mgl32.Mat4 {
	if n.parent == nil {
		return n.transform
	}
	return n.parent.WorldMatrix().Mul4(n.transform)
}

func (n *node) Find(id uuid.UUID) Node {
	if n.id == id {
		return n
	}
	for _, c := range n.children {
		if found := c.Find(id); found != nil {
			return found
		}
	}
	return nil
}

func (n *node) Count() int {
	count := 1
	for _, c := range n.children {
		count += c.Count()
	}
	return count
}

func (n *node) TraverseAndDraw(active program.Program) error {
	parentWorld := mgl32.Ident4()
	if n.parent != nil {
		parentWorld = n.parent.WorldMatrix()
	}
	return n.draw(parentWorld, active)
}

func (n *node) draw(parentWorld mgl32.Mat4, inherited program.Program) error {
	world := parentWorld.Mul4(n.transform)

	if n.preDraw != nil {
		n.preDraw(n)
	}

	effective := inherited
	override := n.program != nil && n.program != inherited
	if override {
		effective = n.program
		effective.Use()
	}
	err := n.drawSubtree(world, effective)
	if override {
		effective.Unuse()
	}
	if err != nil {
		return err
	}

	if n.postDraw != nil {
		n.postDraw(n)
	}
	return nil
}

func (n *node) drawSubtree(world mgl32.Mat4, effective program.Program) error {
	if n.drawable != nil {
		if effective != nil {
			effective.SetUniform(ModelMatrixUniform, world)
		}
		if err := n.drawable.Draw(); err != nil {
			return err
		}
	}
	for _, c := range n.children {
		if err := c.draw(world, effective); err != nil {
			return err
		}
	}
	return nil
}
