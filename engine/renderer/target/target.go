// Package target owns the off-screen render targets of the deferred pipeline. A render target
// is either fully initialized, with every channel texture and the framebuffer allocated at one
// size, or fully released.
package target

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
)

// renderTarget is the implementation of the RenderTarget interface.
type renderTarget struct {
	r      renderer.Renderer
	layout Layout

	width  int
	height int

	channels    []gpu.Texture
	depth       gpu.Texture
	framebuffer gpu.Framebuffer
}

// RenderTarget is a sized collection of channel textures aggregated into one framebuffer.
type RenderTarget interface {
	// Label returns the layout label.
	Label() string

	// Layout returns the fixed channel layout.
	Layout() Layout

	// Initialize allocates every channel texture, the optional depth texture and the framebuffer.
	// If any allocation fails, everything allocated so far is released before returning.
	// Initializing an initialized target releases it first.
	//
	// Parameters:
	//   - width: the width in pixels
	//   - height: the height in pixels
	//
	// Returns:
	//   - error: an error wrapping renderer.ErrResourceCreation
	Initialize(width, height int) error

	// Release frees the framebuffer and every texture. Releasing a released target is a no-op.
	Release()

	// Initialized reports whether the target currently holds allocated textures.
	Initialized() bool

	// Size returns the dimensions of the last successful Initialize, or zero when released.
	//
	// Returns:
	//   - int: the width in pixels
	//   - int: the height in pixels
	Size() (int, int)

	// Framebuffer returns the aggregation handle, or nil when released.
	Framebuffer() gpu.Framebuffer

	// Channel returns one color texture, or nil when released or out of range.
	//
	// Parameters:
	//   - i: the channel index in layout order
	//
	// Returns:
	//   - gpu.Texture: the texture
	Channel(i int) gpu.Texture

	// Channels returns a copy of the color textures in layout order.
	Channels() []gpu.Texture

	// Depth returns the depth texture, or nil when the layout has none or the target is released.
	Depth() gpu.Texture

	// BindAsTarget selects this target for subsequent clears and draws.
	BindAsTarget()

	// BindChannelsAsInputs binds every channel as an input texture at consecutive slots.
	//
	// Parameters:
	//   - startSlot: the slot of channel 0
	//
	// Returns:
	//   - int: the first slot after the last bound channel
	BindChannelsAsInputs(startSlot int) int

	// BindChannelAsInput binds one channel as an input texture.
	//
	// Parameters:
	//   - channel: the channel index
	//   - slot: the input slot
	BindChannelAsInput(channel, slot int)
}

var _ RenderTarget = &renderTarget{}

// NewRenderTarget creates a released render target with the given layout.
//
// Parameters:
//   - r: the renderer allocating the textures
//   - layout: the channel layout
//
// Returns:
//   - RenderTarget: the target, ready for Initialize
func NewRenderTarget(r renderer.Renderer, layout Layout) RenderTarget {
	return &renderTarget{r: r, layout: layout}
}

func (t *renderTarget) Label() string {
	return t.layout.Label
}

func (t *renderTarget) Layout() Layout {
	return t.layout
}

func (t *renderTarget) Initialize(width, height int) error {
	t.Release()

	channels := make([]gpu.Texture, 0, len(t.layout.Channels))
	var depth gpu.Texture
	fail := func(err error) error {
		for _, c := range channels {
			t.r.ReleaseTexture(c)
		}
		if depth != nil {
			t.r.ReleaseTexture(depth)
		}
		return fmt.Errorf("initialize %s target %dx%d: %w", t.layout.Label, width, height, err)
	}

	for _, ch := range t.layout.Channels {
		tex, err := t.r.CreateTexture(gpu.TextureDescriptor{
			Label:  t.layout.Label + "_" + ch.Name,
			Width:  width,
			Height: height,
			Format: ch.Format,
		})
		if err != nil {
			return fail(err)
		}
		channels = append(channels, tex)
	}
	if t.layout.Depth {
		tex, err := t.r.CreateTexture(gpu.TextureDescriptor{
			Label:  t.layout.Label + "_depth",
			Width:  width,
			Height: height,
			Format: gpu.FormatDepth32Float,
		})
		if err != nil {
			return fail(err)
		}
		depth = tex
	}
	fb, err := t.r.CreateFramebuffer(gpu.FramebufferDescriptor{
		Label:            t.layout.Label,
		ColorAttachments: channels,
		DepthAttachment:  depth,
	})
	if err != nil {
		return fail(err)
	}

	t.channels = channels
	t.depth = depth
	t.framebuffer = fb
	t.width = width
	t.height = height
	return nil
}

func (t *renderTarget) Release() {
	if t.framebuffer != nil {
		t.r.ReleaseFramebuffer(t.framebuffer)
		t.framebuffer = nil
	}
	for _, c := range t.channels {
		t.r.ReleaseTexture(c)
	}
	t.channels = nil
	if t.depth != nil {
		t.r.ReleaseTexture(t.depth)
		t.depth = nil
	}
	t.width = 0
	t.height = 0
}

func (t *renderTarget) Initialized() bool {
	return t.framebuffer != nil
}

func (t *renderTarget) Size() (int, int) {
	return t.width, t.height
}

func (t *renderTarget) Framebuffer() gpu.Framebuffer {
	return t.framebuffer
}

func (t *renderTarget) Channel(i int) gpu.Texture {
	if i < 0 || i >= len(t.channels) {
		return nil
	}
	return t.channels[i]
}

func (t *renderTarget) Channels() []gpu.Texture {
	return append([]gpu.Texture(nil), t.channels...)
}

func (t *renderTarget) Depth() gpu.Texture {
	return t.depth
}

func (t *renderTarget) BindAsTarget() {
	t.r.BindFramebuffer(t.framebuffer)
}

func (t *renderTarget) BindChannelsAsInputs(startSlot int) int {
	for i, c := range t.channels {
		t.r.BindTexture(startSlot+i, c)
	}
	return startSlot + len(t.layout.Channels)
}

func (t *renderTarget) BindChannelAsInput(channel, slot int) {
	t.r.BindTexture(slot, t.Channel(channel))
}
