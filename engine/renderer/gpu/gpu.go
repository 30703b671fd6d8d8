// package gpu defines the device contract shared by the renderer backends: opaque texture,
// framebuffer and mesh handles, their descriptors, and the immediate-mode Backend interface the
// renderer drives. Handles are created and released only by the backend that issued them.
package gpu

import (
	"fmt"
	"image"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/program"
	"github.com/go-gl/mathgl/mgl32"
)

// TextureFormat is the channel layout of a texture.
type TextureFormat int

const (
	// FormatRGBA8Unorm stores four 8-bit normalized channels; written values are clamped to [0, 1].
	FormatRGBA8Unorm TextureFormat = iota

	// FormatRGBA16Float stores four half-float channels.
	FormatRGBA16Float

	// FormatR16Float stores a single half-float channel.
	FormatR16Float

	// FormatDepth32Float stores 32-bit depth, usable only as a depth attachment and blit source/target.
	FormatDepth32Float
)

// String returns the WebGPU name of the format.
func (f TextureFormat) String() string {
	switch f {
	case FormatRGBA8Unorm:
		return "rgba8unorm"
	case FormatRGBA16Float:
		return "rgba16float"
	case FormatR16Float:
		return "r16float"
	case FormatDepth32Float:
		return "depth32float"
	}
	return "unknown"
}

// IsDepth reports whether the format is a depth format.
func (f TextureFormat) IsDepth() bool {
	return f == FormatDepth32Float
}

// BlendMode selects how fragment output combines with the bound color attachments.
type BlendMode int

const (
	// BlendNone replaces the destination.
	BlendNone BlendMode = iota

	// BlendAdditive adds source to destination (src*1 + dst*1).
	BlendAdditive
)

// TextureDescriptor describes a texture to create.
type TextureDescriptor struct {
	Label  string
	Width  int
	Height int
	Format TextureFormat
}

// FramebufferDescriptor aggregates textures into a render target.
// All attachments must share the same size.
type FramebufferDescriptor struct {
	Label            string
	ColorAttachments []Texture
	// DepthAttachment is optional.
	DepthAttachment Texture
}

// MeshDescriptor holds indexed triangle-list geometry to upload.
type MeshDescriptor struct {
	Label    string
	Vertices []common.Vertex
	Indices  []uint32
}

// MaxColorAttachments is the largest number of color attachments a framebuffer may aggregate.
const MaxColorAttachments = 8

// ValidateFramebuffer checks a framebuffer descriptor against the rules every backend enforces:
// at least one attachment, at most MaxColorAttachments colors, no released textures, a single
// size shared by every attachment, color formats for colors and a depth format for depth.
//
// Parameters:
//   - desc: the framebuffer descriptor
//
// Returns:
//   - error: the first violated rule, or nil
func ValidateFramebuffer(desc FramebufferDescriptor) error {
	if len(desc.ColorAttachments) == 0 && desc.DepthAttachment == nil {
		return fmt.Errorf("framebuffer %q has no attachments", desc.Label)
	}
	if len(desc.ColorAttachments) > MaxColorAttachments {
		return fmt.Errorf("framebuffer %q: %d color attachments exceeds %d", desc.Label, len(desc.ColorAttachments), MaxColorAttachments)
	}
	w, h := FramebufferSize(desc)
	check := func(t Texture) error {
		if t == nil {
			return fmt.Errorf("framebuffer %q: nil attachment", desc.Label)
		}
		if t.Released() {
			return fmt.Errorf("framebuffer %q: attachment %q has been released", desc.Label, t.Label())
		}
		if t.Width() != w || t.Height() != h {
			return fmt.Errorf("framebuffer %q: attachment %q is %dx%d, want %dx%d",
				desc.Label, t.Label(), t.Width(), t.Height(), w, h)
		}
		return nil
	}
	for _, c := range desc.ColorAttachments {
		if err := check(c); err != nil {
			return err
		}
		if c.Format().IsDepth() {
			return fmt.Errorf("framebuffer %q: depth texture %q used as color attachment", desc.Label, c.Label())
		}
	}
	if desc.DepthAttachment != nil {
		if err := check(desc.DepthAttachment); err != nil {
			return err
		}
		if !desc.DepthAttachment.Format().IsDepth() {
			return fmt.Errorf("framebuffer %q: depth attachment %q has color format %s",
				desc.Label, desc.DepthAttachment.Label(), desc.DepthAttachment.Format())
		}
	}
	return nil
}

// FramebufferSize returns the size of the first attachment of a descriptor, or zero.
//
// Parameters:
//   - desc: the framebuffer descriptor
//
// Returns:
//   - int: the width in pixels
//   - int: the height in pixels
func FramebufferSize(desc FramebufferDescriptor) (int, int) {
	for _, c := range desc.ColorAttachments {
		if c != nil {
			return c.Width(), c.Height()
		}
	}
	if desc.DepthAttachment != nil {
		return desc.DepthAttachment.Width(), desc.DepthAttachment.Height()
	}
	return 0, 0
}

// Texture is a device texture handle.
type Texture interface {
	Label() string
	Width() int
	Height() int
	Format() TextureFormat
	// Released reports whether the texture has been released.
	Released() bool
}

// Framebuffer is a device framebuffer handle aggregating color attachments and an optional depth attachment.
type Framebuffer interface {
	Label() string
	Width() int
	Height() int
	ColorAttachments() []Texture
	// DepthAttachment returns nil when the framebuffer has no depth attachment.
	DepthAttachment() Texture
}

// Mesh is a device mesh handle.
type Mesh interface {
	Label() string
	IndexCount() int
}

// Backend is the device interface the renderer drives. Calls are issued from a single
// goroutine; state set with BindFramebuffer, BindTexture and SetBlend persists until changed.
type Backend interface {
	// ConfigureSurface resizes the output surface.
	ConfigureSurface(width, height int)

	// SurfaceSize returns the current output surface size.
	SurfaceSize() (int, int)

	// CreateTexture allocates a texture with undefined contents.
	CreateTexture(desc TextureDescriptor) (Texture, error)

	// WriteTexture uploads RGBA8 pixel data to a texture of matching size.
	WriteTexture(t Texture, data common.TextureStagingData) error

	// ReleaseTexture frees a texture. Releasing twice is a no-op.
	ReleaseTexture(t Texture)

	// CreateFramebuffer aggregates existing textures into a render target.
	CreateFramebuffer(desc FramebufferDescriptor) (Framebuffer, error)

	// ReleaseFramebuffer frees the aggregation only, never its attachments.
	ReleaseFramebuffer(fb Framebuffer)

	// CreateMesh uploads indexed geometry.
	CreateMesh(desc MeshDescriptor) (Mesh, error)

	// ReleaseMesh frees a mesh.
	ReleaseMesh(m Mesh)

	// CompileProgram prepares a program for drawing and stores the result with SetHandle.
	// Failures are reported as *program.CompileError.
	CompileProgram(p program.Program) error

	// ReleaseProgram frees the device objects of a compiled program.
	ReleaseProgram(p program.Program)

	// BeginFrame starts recording a frame.
	BeginFrame() error

	// BindFramebuffer selects the render target for subsequent Clear and Draw calls; nil selects the output surface.
	BindFramebuffer(fb Framebuffer)

	// BindTexture binds a texture to an input slot; nil unbinds it.
	BindTexture(slot int, t Texture)

	// Clear sets every color attachment of the bound target to color and its depth attachment to depth.
	Clear(color mgl32.Vec4, depth float32)

	// SetBlend selects the blend mode of subsequent draws.
	SetBlend(mode BlendMode)

	// BlitDepth copies the depth attachment of src into the depth attachment of dst.
	BlitDepth(src, dst Framebuffer) error

	// Draw issues one draw of p with the given uniform values. A nil mesh draws a fullscreen triangle.
	Draw(p program.Program, uniforms map[string]any, mesh Mesh) error

	// EndFrame finishes and submits the recorded frame.
	EndFrame() error

	// Present shows the last submitted frame on the output surface.
	Present()

	// DiscardFrame drops the output surface image acquired by BeginFrame without presenting it.
	// It is a no-op when no image is held.
	DiscardFrame()

	// Release frees every device object owned by the backend.
	Release()
}

// Snapshotter is implemented by backends that can read back the presented image.
type Snapshotter interface {
	// Snapshot returns a copy of the last presented frame.
	Snapshot() (*image.RGBA, error)
}
