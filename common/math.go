package common

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Perspective creates a right-handed perspective projection matrix mapping view depth into the
// WebGPU clip range [0, 1]. mgl32.Perspective targets the OpenGL [-1, 1] range and is not used
// for anything that reaches a depth attachment.
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
//
// Returns:
//   - mgl32.Mat4: the column-major projection matrix
func Perspective(fovY, aspect, near, far float32) mgl32.Mat4 {
	f := 1.0 / float32(math.Tan(float64(fovY)/2.0))

	var out mgl32.Mat4
	out[0] = f / aspect
	out[5] = f
	out[10] = far / (near - far)
	out[11] = -1.0
	out[14] = (near * far) / (near - far)
	return out
}

// ProjectToScreen projects a world-space point through a view-projection matrix into normalized
// screen coordinates with the origin at the top-left corner.
//
// Parameters:
//   - viewProjection: the combined projection * view matrix
//   - p: the world-space point
//
// Returns:
//   - mgl32.Vec2: screen coordinates in [0, 1] when the point is visible
//   - float32: the clip-space w component (view depth for a perspective projection)
func ProjectToScreen(viewProjection mgl32.Mat4, p mgl32.Vec3) (mgl32.Vec2, float32) {
	clip := viewProjection.Mul4x1(p.Vec4(1))
	if clip[3] == 0 {
		return mgl32.Vec2{-1, -1}, 0
	}
	ndcX := clip[0] / clip[3]
	ndcY := clip[1] / clip[3]
	return mgl32.Vec2{ndcX*0.5 + 0.5, 0.5 - ndcY*0.5}, clip[3]
}

// Clamp limits v to the closed range [lo, hi].
//
// Parameters:
//   - v: the value to clamp
//   - lo: the lower bound
//   - hi: the upper bound
//
// Returns:
//   - float32: the clamped value
func Clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Mix linearly interpolates between a and b by t.
func Mix(a, b mgl32.Vec4, t float32) mgl32.Vec4 {
	return a.Mul(1 - t).Add(b.Mul(t))
}
