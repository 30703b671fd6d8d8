package light

import "github.com/go-gl/mathgl/mgl32"

// lightImpl is the implementation of the Light interface.
type lightImpl struct {
	position   mgl32.Vec3
	color      mgl32.Vec3
	brightness float32
	enabled    bool
}

// Light defines the interface for a point light in the scene.
//
// Lights are mutable at any time. The pass pipeline re-reads the full light list every frame
// and packs the enabled lights into the lighting program's uniform arrays with Pack.
type Light interface {
	// Position returns the world-space position of the light.
	//
	// Returns:
	//   - mgl32.Vec3: position as (x, y, z)
	Position() mgl32.Vec3

	// Color returns the unit-less RGB color of the light.
	//
	// Returns:
	//   - mgl32.Vec3: color as (r, g, b)
	Color() mgl32.Vec3

	// Brightness returns the scalar intensity multiplier applied to the color.
	//
	// Returns:
	//   - float32: the brightness value
	Brightness() float32

	// Radiance returns color × brightness, the value uploaded to the lighting program.
	//
	// Returns:
	//   - mgl32.Vec3: the scaled color
	Radiance() mgl32.Vec3

	// Enabled returns whether this light is active for rendering.
	// Disabled lights are skipped when packing.
	//
	// Returns:
	//   - bool: true if the light is enabled
	Enabled() bool

	// SetPosition sets the world-space position of the light.
	//
	// Parameters:
	//   - x, y, z: position components
	SetPosition(x, y, z float32)

	// SetColor sets the RGB color of the light.
	//
	// Parameters:
	//   - r, g, b: color components
	SetColor(r, g, b float32)

	// SetBrightness sets the scalar intensity multiplier.
	//
	// Parameters:
	//   - brightness: the brightness value
	SetBrightness(brightness float32)

	// SetEnabled sets whether the light is active for rendering.
	//
	// Parameters:
	//   - enabled: true to enable the light
	SetEnabled(enabled bool)
}

var _ Light = &lightImpl{}

// NewLight creates a new white point light at the origin with brightness 1.
//
// Parameters:
//   - opts: a variadic list of LightBuilderOption functions to configure the light
//
// Returns:
//   - Light: the new light
func NewLight(opts ...LightBuilderOption) Light {
	l := &lightImpl{
		color:      mgl32.Vec3{1, 1, 1},
		brightness: 1,
		enabled:    true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DefaultLights returns the two-light rig used by the demo scenes: white lights of brightness 15
// at (2, 3, 2) and (-2, 3, -2).
//
// Returns:
//   - []Light: the default lights
func DefaultLights() []Light {
	return []Light{
		NewLight(WithPosition(2, 3, 2), WithBrightness(15)),
		NewLight(WithPosition(-2, 3, -2), WithBrightness(15)),
	}
}

func (l *lightImpl) Position() mgl32.Vec3 {
	return l.position
}

func (l *lightImpl) Color() mgl32.Vec3 {
	return l.color
}

func (l *lightImpl) Brightness() float32 {
	return l.brightness
}

func (l *lightImpl) Radiance() mgl32.Vec3 {
	return l.color.Mul(l.brightness)
}

func (l *lightImpl) Enabled() bool {
	return l.enabled
}

func (l *lightImpl) SetPosition(x, y, z float32) {
	l.position = mgl32.Vec3{x, y, z}
}

func (l *lightImpl) SetColor(r, g, b float32) {
	l.color = mgl32.Vec3{r, g, b}
}

func (l *lightImpl) SetBrightness(brightness float32) {
	l.brightness = brightness
}

func (l *lightImpl) SetEnabled(enabled bool) {
	l.enabled = enabled
}
