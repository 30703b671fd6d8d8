package software

import (
	"math"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// MaxColorAttachments is the number of fragment outputs a kernel can produce.
const MaxColorAttachments = gpu.MaxColorAttachments

// Varyings are the per-vertex values interpolated across a triangle.
type Varyings [4]mgl32.Vec4

// Outputs holds one color per bound color attachment, in attachment order.
type Outputs [MaxColorAttachments]mgl32.Vec4

// Uniforms are the values of one draw keyed by uniform block member name.
// Missing members read as zero, matching a zero-filled uniform buffer.
type Uniforms map[string]any

// Float reads an f32 member.
func (u Uniforms) Float(name string) float32 {
	switch v := u[name].(type) {
	case float32:
		return v
	case float64:
		return float32(v)
	case int:
		return float32(v)
	}
	return 0
}

// Int reads an i32 member.
func (u Uniforms) Int(name string) int {
	switch v := u[name].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case uint32:
		return int(v)
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

// Bool reads a member used as a flag.
func (u Uniforms) Bool(name string) bool {
	return u.Int(name) != 0
}

// Vec2 reads a vec2<f32> member.
func (u Uniforms) Vec2(name string) mgl32.Vec2 {
	v, _ := u[name].(mgl32.Vec2)
	return v
}

// Vec3 reads a vec3<f32> member.
func (u Uniforms) Vec3(name string) mgl32.Vec3 {
	v, _ := u[name].(mgl32.Vec3)
	return v
}

// Mat4 reads a mat4x4<f32> member.
func (u Uniforms) Mat4(name string) mgl32.Mat4 {
	v, _ := u[name].(mgl32.Mat4)
	return v
}

// Vec4s reads an array<vec4<f32>, N> member truncated to n elements.
// Vec3 slices are widened with a zero w component.
func (u Uniforms) Vec4s(name string, n int) []mgl32.Vec4 {
	var out []mgl32.Vec4
	switch v := u[name].(type) {
	case []mgl32.Vec4:
		out = v
	case []mgl32.Vec3:
		out = make([]mgl32.Vec4, len(v))
		for i, e := range v {
			out[i] = e.Vec4(0)
		}
	}
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// ShaderContext gives a fragment kernel access to its pixel and the bound input textures.
// A context is owned by a single goroutine for the duration of a draw.
type ShaderContext struct {
	// Pixel is the integer coordinate of the fragment, origin top-left.
	Pixel [2]int

	inputs []*texture
}

// Size returns the dimensions of the texture bound at slot, or 1x1 when the slot is empty.
func (c *ShaderContext) Size(slot int) (int, int) {
	t := c.input(slot)
	if t == nil {
		return 1, 1
	}
	return t.width, t.height
}

// Load fetches one texel with coordinates clamped to the texture. Empty slots read as white.
func (c *ShaderContext) Load(slot, x, y int) mgl32.Vec4 {
	t := c.input(slot)
	if t == nil {
		return mgl32.Vec4{1, 1, 1, 1}
	}
	return t.at(clampInt(x, 0, t.width-1), clampInt(y, 0, t.height-1))
}

// LoadPixel fetches the texel at the fragment's own pixel.
func (c *ShaderContext) LoadPixel(slot int) mgl32.Vec4 {
	return c.Load(slot, c.Pixel[0], c.Pixel[1])
}

// Sample reads a texture with bilinear filtering and clamp-to-edge addressing.
// Coordinates that land within a small tolerance of a texel center return that texel exactly.
func (c *ShaderContext) Sample(slot int, uv mgl32.Vec2) mgl32.Vec4 {
	t := c.input(slot)
	if t == nil {
		return mgl32.Vec4{1, 1, 1, 1}
	}
	x0, fx := texelCoord(uv[0], t.width)
	y0, fy := texelCoord(uv[1], t.height)
	x1 := clampInt(x0+1, 0, t.width-1)
	y1 := clampInt(y0+1, 0, t.height-1)
	x0 = clampInt(x0, 0, t.width-1)
	y0 = clampInt(y0, 0, t.height-1)

	if fx == 0 && fy == 0 {
		return t.at(x0, y0)
	}
	top := common.Mix(t.at(x0, y0), t.at(x1, y0), fx)
	bottom := common.Mix(t.at(x0, y1), t.at(x1, y1), fx)
	return common.Mix(top, bottom, fy)
}

func (c *ShaderContext) input(slot int) *texture {
	if slot < 0 || slot >= len(c.inputs) {
		return nil
	}
	t := c.inputs[slot]
	if t == nil || t.released {
		return nil
	}
	return t
}

const texelSnap = 1e-3

// texelCoord converts a normalized coordinate to the lower texel index and the blend weight
// towards the next texel.
func texelCoord(u float32, size int) (int, float32) {
	x := float64(u)*float64(size) - 0.5
	base := math.Floor(x)
	frac := float32(x - base)
	i := int(base)
	switch {
	case frac < texelSnap:
		frac = 0
	case frac > 1-texelSnap:
		i++
		frac = 0
	}
	return i, frac
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
