package pass

import (
	"math/rand/v2"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/go-gl/mathgl/mgl32"
)

// NoiseSize is the edge length of the tiling rotation noise texture.
const NoiseSize = 4

// OcclusionKernel generates n sample offsets inside the unit hemisphere around +Z.
// Samples are scaled so that they cluster toward the origin. The same seed always yields the
// same kernel.
//
// Parameters:
//   - seed: the PRNG seed
//   - n: the number of samples
//
// Returns:
//   - []mgl32.Vec3: the samples
func OcclusionKernel(seed uint64, n int) []mgl32.Vec3 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	kernel := make([]mgl32.Vec3, n)
	for i := range kernel {
		s := mgl32.Vec3{
			rng.Float32()*2 - 1,
			rng.Float32()*2 - 1,
			rng.Float32(),
		}
		if s.Len() == 0 {
			s = mgl32.Vec3{0, 0, 1}
		}
		s = s.Normalize().Mul(rng.Float32())

		scale := float32(i) / float32(n)
		scale = 0.1 + 0.9*scale*scale
		kernel[i] = s.Mul(scale)
	}
	return kernel
}

// OcclusionNoise generates the NoiseSize×NoiseSize rotation texture. Each texel stores a random
// tangent-plane direction remapped from [-1, 1] to [0, 1], with z fixed at the midpoint.
//
// Parameters:
//   - seed: the PRNG seed
//
// Returns:
//   - common.TextureStagingData: RGBA8 pixels ready for upload
func OcclusionNoise(seed uint64) common.TextureStagingData {
	rng := rand.New(rand.NewPCG(seed^0xbf58476d1ce4e5b9, seed))
	pixels := make([]byte, NoiseSize*NoiseSize*4)
	for i := 0; i < NoiseSize*NoiseSize; i++ {
		pixels[i*4+0] = common.EncodeSnorm(rng.Float32()*2 - 1)
		pixels[i*4+1] = common.EncodeSnorm(rng.Float32()*2 - 1)
		pixels[i*4+2] = common.EncodeSnorm(0)
		pixels[i*4+3] = 255
	}
	return common.TextureStagingData{Pixels: pixels, Width: NoiseSize, Height: NoiseSize}
}
