// package config holds the per-frame pass configuration of the deferred pipeline.
// A PassConfig is a plain value: the frame controller receives a snapshot each frame and never
// mutates it, the Store owns the canonical copy that input handlers and loaders write to.
package config

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrOutOfRange is returned (wrapped) by Validate when a parameter falls outside its allowed range.
var ErrOutOfRange = errors.New("config: parameter out of range")

// Effect names an optional pipeline effect that can be toggled at runtime.
type Effect int

const (
	EffectAmbientOcclusion Effect = iota
	EffectReflections
	EffectBloom
	EffectDepthOfField
	EffectGBufferView
)

// String returns the YAML section name of the effect.
func (e Effect) String() string {
	switch e {
	case EffectAmbientOcclusion:
		return "ambient_occlusion"
	case EffectReflections:
		return "reflections"
	case EffectBloom:
		return "bloom"
	case EffectDepthOfField:
		return "depth_of_field"
	case EffectGBufferView:
		return "gbuffer_view"
	}
	return "unknown"
}

// AmbientOcclusion configures the screen-space ambient occlusion pass.
type AmbientOcclusion struct {
	Enabled bool `yaml:"enabled"`
	// Radius is the world-space sampling hemisphere radius.
	Radius float32 `yaml:"radius"`
	// Bias is the depth comparison bias that suppresses self-occlusion acne.
	Bias float32 `yaml:"bias"`
	// KernelSize is the number of hemisphere samples evaluated per pixel, in [1, 32].
	KernelSize int `yaml:"kernel_size"`
}

// Reflections configures the screen-space reflection march.
type Reflections struct {
	Enabled        bool    `yaml:"enabled"`
	MaxRayDistance float32 `yaml:"max_ray_distance"`
	StepResolution float32 `yaml:"step_resolution"`
	StepIterations int     `yaml:"step_iterations"`
	HitTolerance   float32 `yaml:"hit_tolerance"`
}

// Bloom configures the bright-pass, blur and blend sequence.
type Bloom struct {
	Enabled bool `yaml:"enabled"`
	// Exposure scales the blurred bright image before it is added back, in [0, 1].
	Exposure float32 `yaml:"exposure"`
	// BlurIterations is the number of horizontal+vertical Gaussian rounds, in [0, 20].
	BlurIterations int `yaml:"blur_iterations"`
	// Threshold is the per-channel cutoff of the bright pass, in [0, 1].
	Threshold float32 `yaml:"threshold"`
}

// DepthOfField configures the composite pass blur.
type DepthOfField struct {
	Enabled    bool    `yaml:"enabled"`
	FocalDepth float32 `yaml:"focal_depth"`
	// SampleCount is the number of golden-angle taps gathered per pixel, in [0, 64].
	SampleCount int `yaml:"sample_count"`
	// MaxBlur is the circle of confusion radius in pixels at full defocus, in [0, 32].
	MaxBlur float32 `yaml:"max_blur"`
}

// Debug holds developer-facing views.
type Debug struct {
	// GBufferView replaces the composite with a four-quadrant view of the geometry channels.
	GBufferView bool `yaml:"gbuffer_view"`
}

// PassConfig is the complete parameter set read by one frame of the pipeline.
type PassConfig struct {
	AmbientOcclusion AmbientOcclusion `yaml:"ambient_occlusion"`
	Reflections      Reflections      `yaml:"reflections"`
	Bloom            Bloom            `yaml:"bloom"`
	DepthOfField     DepthOfField     `yaml:"depth_of_field"`
	Debug            Debug            `yaml:"debug"`
}

// Defaults returns the configuration the engine starts with.
//
// Returns:
//   - PassConfig: every effect enabled except depth of field and the debug view
func Defaults() PassConfig {
	return PassConfig{
		AmbientOcclusion: AmbientOcclusion{
			Enabled:    true,
			Radius:     0.5,
			Bias:       0.025,
			KernelSize: 16,
		},
		Reflections: Reflections{
			Enabled:        true,
			MaxRayDistance: 10,
			StepResolution: 0.1,
			StepIterations: 64,
			HitTolerance:   0.1,
		},
		Bloom: Bloom{
			Enabled:        true,
			Exposure:       0.2,
			BlurIterations: 10,
			Threshold:      0.9,
		},
		DepthOfField: DepthOfField{
			Enabled:     false,
			FocalDepth:  2,
			SampleCount: 32,
			MaxBlur:     8,
		},
	}
}

// Enabled reports whether the given effect is switched on.
func (c PassConfig) Enabled(e Effect) bool {
	switch e {
	case EffectAmbientOcclusion:
		return c.AmbientOcclusion.Enabled
	case EffectReflections:
		return c.Reflections.Enabled
	case EffectBloom:
		return c.Bloom.Enabled
	case EffectDepthOfField:
		return c.DepthOfField.Enabled
	case EffectGBufferView:
		return c.Debug.GBufferView
	}
	return false
}

// WithEffect returns a copy of c with the given effect switched on or off.
//
// Parameters:
//   - e: the effect to change
//   - on: the new state
//
// Returns:
//   - PassConfig: the modified copy
func (c PassConfig) WithEffect(e Effect, on bool) PassConfig {
	switch e {
	case EffectAmbientOcclusion:
		c.AmbientOcclusion.Enabled = on
	case EffectReflections:
		c.Reflections.Enabled = on
	case EffectBloom:
		c.Bloom.Enabled = on
	case EffectDepthOfField:
		c.DepthOfField.Enabled = on
	case EffectGBufferView:
		c.Debug.GBufferView = on
	}
	return c
}

// Validate checks every parameter against its allowed range.
// Disabled effects are still validated so that toggling them on never produces an invalid frame.
//
// Returns:
//   - error: an error wrapping ErrOutOfRange naming the first offending field, or nil
func (c PassConfig) Validate() error {
	checks := []struct {
		name string
		ok   bool
	}{
		{"ambient_occlusion.radius", c.AmbientOcclusion.Radius > 0},
		{"ambient_occlusion.bias", c.AmbientOcclusion.Bias >= 0},
		{"ambient_occlusion.kernel_size", c.AmbientOcclusion.KernelSize >= 1 && c.AmbientOcclusion.KernelSize <= 32},
		{"reflections.max_ray_distance", c.Reflections.MaxRayDistance > 0},
		{"reflections.step_resolution", c.Reflections.StepResolution > 0},
		{"reflections.step_iterations", c.Reflections.StepIterations >= 0 && c.Reflections.StepIterations <= 512},
		{"reflections.hit_tolerance", c.Reflections.HitTolerance > 0},
		{"bloom.exposure", c.Bloom.Exposure >= 0 && c.Bloom.Exposure <= 1},
		{"bloom.blur_iterations", c.Bloom.BlurIterations >= 0 && c.Bloom.BlurIterations <= 20},
		{"bloom.threshold", c.Bloom.Threshold >= 0 && c.Bloom.Threshold <= 1},
		{"depth_of_field.focal_depth", c.DepthOfField.FocalDepth > 0},
		{"depth_of_field.sample_count", c.DepthOfField.SampleCount >= 0 && c.DepthOfField.SampleCount <= 64},
		{"depth_of_field.max_blur", c.DepthOfField.MaxBlur >= 0 && c.DepthOfField.MaxBlur <= 32},
	}
	for _, ch := range checks {
		if !ch.ok {
			return errors.Wrap(ErrOutOfRange, ch.name)
		}
	}
	return nil
}

// Parse decodes a YAML document into a PassConfig.
// Fields absent from the document keep their Defaults() value.
//
// Parameters:
//   - data: the YAML document
//
// Returns:
//   - PassConfig: the decoded and validated configuration
//   - error: a decode or validation error
func Parse(data []byte) (PassConfig, error) {
	cfg := Defaults()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return PassConfig{}, errors.Wrap(err, "decode pass config")
	}
	if err := cfg.Validate(); err != nil {
		return PassConfig{}, err
	}
	return cfg, nil
}

// Load reads and parses a YAML pass configuration file.
//
// Parameters:
//   - path: the file to read
//
// Returns:
//   - PassConfig: the decoded and validated configuration
//   - error: a read, decode or validation error
func Load(path string) (PassConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PassConfig{}, errors.Wrapf(err, "read pass config %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return PassConfig{}, errors.Wrapf(err, "load %s", path)
	}
	return cfg, nil
}

// Marshal encodes the configuration as YAML with two-space indentation.
func (c PassConfig) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, errors.Wrap(err, "encode pass config")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "encode pass config")
	}
	return buf.Bytes(), nil
}

// Save writes the configuration to path as YAML.
//
// Parameters:
//   - path: the destination file
//   - c: the configuration to write
//
// Returns:
//   - error: an encode or write error
func Save(path string, c PassConfig) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write pass config %s", path)
	}
	return nil
}
