package material

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/program"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
)

func TestNewMaterialDefaults(t *testing.T) {
	m := NewMaterial()
	if m.Albedo() != (mgl32.Vec3{1, 1, 1}) || m.Metallic() != 0 || m.Roughness() != 1 || m.AO() != 1 {
		t.Errorf("defaults = %v %v %v %v", m.Albedo(), m.Metallic(), m.Roughness(), m.AO())
	}
}

func TestApply(t *testing.T) {
	p, err := program.NewBuiltin(shader.KeyGeometry)
	if err != nil {
		t.Fatalf("NewBuiltin: %v", err)
	}
	m := NewMaterial(WithName("gold"), WithAlbedo(1, 0.8, 0.2), WithMetallic(1), WithRoughness(0.25), WithAO(0.5))
	m.Apply(p)

	want := map[string]any{
		"Albedo":    mgl32.Vec3{1, 0.8, 0.2},
		"Metallic":  float32(1),
		"Roughness": float32(0.25),
		"AO":        float32(0.5),
	}
	for name, v := range want {
		if got, _ := p.Uniform(name); got != v {
			t.Errorf("%s = %v, want %v", name, got, v)
		}
	}
	if _, err := p.Shader().Uniforms().Encode(p.Uniforms()); err != nil {
		t.Errorf("material uniforms do not encode into the geometry block: %v", err)
	}
}
