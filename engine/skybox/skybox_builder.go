package skybox

// SkyboxBuilderOption is a function that configures a skybox.
type SkyboxBuilderOption func(*skybox)

// WithSky sets the procedural sky parameters.
//
// Parameters:
//   - sky: the sky
//
// Returns:
//   - SkyboxBuilderOption: a function that sets the sky
func WithSky(sky Sky) SkyboxBuilderOption {
	return func(s *skybox) {
		s.sky = sky
	}
}

// WithResolution sets the size of the environment map. The lighting maps are derived from it.
//
// Parameters:
//   - width: the width in pixels, at least 8
//   - height: the height in pixels, at least 8
//
// Returns:
//   - SkyboxBuilderOption: a function that sets the resolution
func WithResolution(width, height int) SkyboxBuilderOption {
	return func(s *skybox) {
		s.width = max(width, 8)
		s.height = max(height, 8)
	}
}

// WithBRDFLookup sets the size and the sample count of the BRDF lookup table.
//
// Parameters:
//   - size: the table edge length
//   - samples: the importance samples per texel
//
// Returns:
//   - SkyboxBuilderOption: a function that sets the table parameters
func WithBRDFLookup(size, samples int) SkyboxBuilderOption {
	return func(s *skybox) {
		s.lutSize = max(size, 1)
		s.lutSamples = max(samples, 1)
	}
}

// WithDisplay sets the map the backdrop initially shows.
//
// Parameters:
//   - m: the map
//
// Returns:
//   - SkyboxBuilderOption: a function that sets the map
func WithDisplay(m Map) SkyboxBuilderOption {
	return func(s *skybox) {
		s.display = m
	}
}
