package light

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/program"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
)

// Packed is the light list in the layout the lighting program consumes: two equal-length arrays
// and a count.
type Packed struct {
	// Positions holds the world-space position of each packed light.
	Positions []mgl32.Vec3
	// Colors holds color × brightness of each packed light, index-aligned with Positions.
	Colors []mgl32.Vec3
	// Count is the number of packed lights.
	Count int
}

// Pack collects the enabled lights, in order, truncated at shader.MaxLights.
//
// Parameters:
//   - lights: the scene's lights; nil entries are skipped
//
// Returns:
//   - Packed: the packed arrays
func Pack(lights []Light) Packed {
	p := Packed{
		Positions: make([]mgl32.Vec3, 0, min(len(lights), shader.MaxLights)),
		Colors:    make([]mgl32.Vec3, 0, min(len(lights), shader.MaxLights)),
	}
	for _, l := range lights {
		if p.Count == shader.MaxLights {
			break
		}
		if l == nil || !l.Enabled() {
			continue
		}
		p.Positions = append(p.Positions, l.Position())
		p.Colors = append(p.Colors, l.Radiance())
		p.Count++
	}
	return p
}

// Apply uploads the packed arrays as the LightPositions, LightColors and LightCount uniforms.
//
// Parameters:
//   - p: the lighting program
func (pk Packed) Apply(p program.Program) {
	p.SetUniform("LightPositions", pk.Positions)
	p.SetUniform("LightColors", pk.Colors)
	p.SetUniform("LightCount", pk.Count)
}
