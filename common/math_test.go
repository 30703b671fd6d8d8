package common

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestEncodeSnorm(t *testing.T) {
	tests := []struct {
		in   float32
		want byte
	}{
		{-1, 0},
		{0, 128},
		{1, 255},
		{2, 255},
		{-3, 0},
	}
	for _, tc := range tests {
		if got := EncodeSnorm(tc.in); got != tc.want {
			t.Errorf("EncodeSnorm(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestProjectToScreen(t *testing.T) {
	proj := Perspective(mgl32.DegToRad(90), 1, 0.1, 10)
	uv, w := ProjectToScreen(proj, mgl32.Vec3{0, 0, -2})
	if !uv.ApproxEqual(mgl32.Vec2{0.5, 0.5}) || w != 2 {
		t.Errorf("center = %v w=%v, want (0.5, 0.5) w=2", uv, w)
	}
	uv, _ = ProjectToScreen(proj, mgl32.Vec3{-2, 2, -2})
	if !uv.ApproxEqual(mgl32.Vec2{0, 0}) {
		t.Errorf("top-left = %v, want (0, 0)", uv)
	}
	if _, w := ProjectToScreen(mgl32.Mat4{}, mgl32.Vec3{1, 1, 1}); w != 0 {
		t.Errorf("degenerate w = %v", w)
	}
}

func TestMix(t *testing.T) {
	a, b := mgl32.Vec4{0, 0, 0, 1}, mgl32.Vec4{1, 2, 4, 1}
	if got := Mix(a, b, 0.5); !got.ApproxEqual(mgl32.Vec4{0.5, 1, 2, 1}) {
		t.Errorf("Mix = %v", got)
	}
	if got := Mix(a, b, 0); got != a {
		t.Errorf("Mix(t=0) = %v, want a", got)
	}
}
