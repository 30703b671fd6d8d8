package light

import "github.com/go-gl/mathgl/mgl32"

// LightBuilderOption is a function that configures a Light instance during construction.
type LightBuilderOption func(*lightImpl)

// WithPosition is an option builder that sets the world-space position of the light.
//
// Parameters:
//   - x: the x position component
//   - y: the y position component
//   - z: the z position component
//
// Returns:
//   - LightBuilderOption: a function that applies the position option to a lightImpl
func WithPosition(x, y, z float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.position = mgl32.Vec3{x, y, z}
	}
}

// WithColor is an option builder that sets the RGB color of the light.
//
// Parameters:
//   - r: the red color component
//   - g: the green color component
//   - b: the blue color component
//
// Returns:
//   - LightBuilderOption: a function that applies the color option to a lightImpl
func WithColor(r, g, b float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.color = mgl32.Vec3{r, g, b}
	}
}

// WithBrightness is an option builder that sets the scalar intensity multiplier.
//
// Parameters:
//   - brightness: the brightness value
//
// Returns:
//   - LightBuilderOption: a function that applies the brightness option to a lightImpl
func WithBrightness(brightness float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.brightness = brightness
	}
}

// WithEnabled is an option builder that sets whether the light is active.
// Lights are enabled by default.
//
// Parameters:
//   - enabled: true to enable the light
//
// Returns:
//   - LightBuilderOption: a function that applies the enabled option to a lightImpl
func WithEnabled(enabled bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.enabled = enabled
	}
}
