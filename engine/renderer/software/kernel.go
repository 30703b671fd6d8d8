package software

import (
	"math"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Kernel is the CPU rendition of a program, bound to the uniform values of one draw.
// Kernels are shared by the goroutines shading a draw and must not mutate themselves.
type Kernel interface {
	// Vertex transforms a vertex to clip space and returns the values to interpolate.
	Vertex(v common.Vertex) (mgl32.Vec4, Varyings)

	// Fragment shades one pixel. Output i is written to color attachment i.
	Fragment(ctx *ShaderContext, in Varyings) Outputs
}

// KernelFactory binds a kernel to the uniform values of a draw.
type KernelFactory func(u Uniforms) Kernel

// fullscreen is the vertex stage shared by fullscreen programs: it passes the generated
// triangle through at a fixed depth and forwards its texture coordinate in varying 0.
type fullscreen struct {
	depth float32
}

func (f fullscreen) Vertex(v common.Vertex) (mgl32.Vec4, Varyings) {
	return mgl32.Vec4{v.Position[0], v.Position[1], f.depth, 1}, Varyings{{v.UV[0], v.UV[1], 0, 0}}
}

func uvOf(in Varyings) mgl32.Vec2 {
	return mgl32.Vec2{in[0][0], in[0][1]}
}

func vec3Of(v mgl32.Vec4) mgl32.Vec3 {
	return mgl32.Vec3{v[0], v[1], v[2]}
}

func safeNormalize(v mgl32.Vec3) mgl32.Vec3 {
	l := v.Len()
	if l == 0 {
		return mgl32.Vec3{}
	}
	return v.Mul(1 / l)
}

func mulv(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func mix3(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

func splat(v float32) mgl32.Vec3 {
	return mgl32.Vec3{v, v, v}
}

func reflect(i, n mgl32.Vec3) mgl32.Vec3 {
	return i.Sub(n.Mul(2 * n.Dot(i)))
}

func smoothstep(e0, e1, x float32) float32 {
	t := clamp01((x - e0) / (e1 - e0))
	return t * t * (3 - 2*t)
}

func fract(x float32) float32 {
	return x - float32(math.Floor(float64(x)))
}

func abs32(x float32) float32 {
	return float32(math.Abs(float64(x)))
}

func pow32(x, y float32) float32 {
	return float32(math.Pow(float64(x), float64(y)))
}

func sqrt32(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

// equirectUV maps a direction to equirectangular texture coordinates with v = 0 at the zenith.
func equirectUV(d mgl32.Vec3) mgl32.Vec2 {
	n := safeNormalize(d)
	u := math.Atan2(float64(n[2]), float64(n[0]))/(2*math.Pi) + 0.5
	v := math.Acos(float64(common.Clamp(n[1], -1, 1))) / math.Pi
	return mgl32.Vec2{float32(u), float32(v)}
}
