package target

import "github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"

// Channel names one color attachment of a render target and its format.
type Channel struct {
	Name   string
	Format gpu.TextureFormat
}

// Layout is the fixed channel layout of a render target.
type Layout struct {
	// Label prefixes the labels of every texture and the framebuffer.
	Label string
	// Channels are the color attachments in attachment and input-slot order.
	Channels []Channel
	// Depth adds a Depth32Float attachment.
	Depth bool
}

// Geometry buffer channel indices, which are also the input slots the lighting and composite
// passes read them from.
const (
	GeometryPosition = iota
	GeometryAlbedo
	GeometryNormal
	GeometryMaterial
	GeometryTexCoord
)

// Layouts of the buffers owned by a Set.
var (
	// GeometryLayout holds world position (w = view depth), albedo, normal,
	// metallic/roughness/ao and texcoord.
	GeometryLayout = Layout{
		Label: "geometry",
		Channels: []Channel{
			{Name: "position", Format: gpu.FormatRGBA16Float},
			{Name: "albedo", Format: gpu.FormatRGBA8Unorm},
			{Name: "normal", Format: gpu.FormatRGBA16Float},
			{Name: "material", Format: gpu.FormatRGBA8Unorm},
			{Name: "texcoord", Format: gpu.FormatRGBA16Float},
		},
		Depth: true,
	}

	OcclusionLayout     = singleChannel("occlusion", gpu.FormatR16Float)
	OcclusionBlurLayout = singleChannel("occlusion_blur", gpu.FormatR16Float)

	// ShadedLayout carries a depth attachment that receives a copy of the geometry depth so the
	// background pass can depth-test against the scene.
	ShadedLayout = Layout{
		Label:    "shaded",
		Channels: []Channel{{Name: "color", Format: gpu.FormatRGBA16Float}},
		Depth:    true,
	}

	BlurLayout        = singleChannel("blur", gpu.FormatRGBA16Float)
	ReflectionsLayout = singleChannel("reflections", gpu.FormatRGBA16Float)
	BloomLayout       = singleChannel("bloom", gpu.FormatRGBA16Float)
	PingLayout        = singleChannel("ping", gpu.FormatRGBA16Float)
	PongLayout        = singleChannel("pong", gpu.FormatRGBA16Float)
)

func singleChannel(label string, format gpu.TextureFormat) Layout {
	return Layout{Label: label, Channels: []Channel{{Name: "color", Format: format}}}
}

// TextureCount returns the number of textures a target with this layout allocates.
func (l Layout) TextureCount() int {
	if l.Depth {
		return len(l.Channels) + 1
	}
	return len(l.Channels)
}
