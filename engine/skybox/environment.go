package skybox

import (
	"image"
	"image/color"
	"math"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/go-gl/mathgl/mgl32"
	xdraw "golang.org/x/image/draw"
)

// Sky describes the procedural environment.
type Sky struct {
	// Zenith is the color straight up.
	Zenith mgl32.Vec3
	// Horizon is the color at the horizon line.
	Horizon mgl32.Vec3
	// Ground is the color below the horizon.
	Ground mgl32.Vec3
	// SunDirection points from the scene toward the sun.
	SunDirection mgl32.Vec3
	// SunColor is the color of the sun disc.
	SunColor mgl32.Vec3
	// SunSize is the angular radius of the sun disc in radians.
	SunSize float32
}

// DefaultSky is a clear day with the sun high in front of the default camera.
func DefaultSky() Sky {
	return Sky{
		Zenith:       mgl32.Vec3{0.18, 0.36, 0.75},
		Horizon:      mgl32.Vec3{0.75, 0.82, 0.9},
		Ground:       mgl32.Vec3{0.3, 0.27, 0.24},
		SunDirection: mgl32.Vec3{0.3, 0.8, 0.5}.Normalize(),
		SunColor:     mgl32.Vec3{1, 0.95, 0.85},
		SunSize:      0.05,
	}
}

// Direction returns the unit direction an equirectangular texel center looks along.
// Row 0 faces +Y.
//
// Parameters:
//   - x: the column
//   - y: the row
//   - width: the image width
//   - height: the image height
//
// Returns:
//   - mgl32.Vec3: the direction
func Direction(x, y, width, height int) mgl32.Vec3 {
	u := (float64(x) + 0.5) / float64(width)
	v := (float64(y) + 0.5) / float64(height)
	phi := (u - 0.5) * 2 * math.Pi
	theta := v * math.Pi
	return mgl32.Vec3{
		float32(math.Sin(theta) * math.Cos(phi)),
		float32(math.Cos(theta)),
		float32(math.Sin(theta) * math.Sin(phi)),
	}
}

// Radiance returns the sky color seen along dir.
func (s Sky) Radiance(dir mgl32.Vec3) mgl32.Vec3 {
	dir = dir.Normalize()
	if s.SunSize > 0 && dir.Dot(s.SunDirection.Normalize()) >= float32(math.Cos(float64(s.SunSize))) {
		return s.SunColor
	}
	if dir[1] >= 0 {
		t := float32(math.Sqrt(float64(dir[1])))
		return s.Horizon.Add(s.Zenith.Sub(s.Horizon).Mul(t))
	}
	t := common.Clamp(-dir[1]*8, 0, 1)
	return s.Horizon.Add(s.Ground.Sub(s.Horizon).Mul(t))
}

// Render rasterizes the sky into an equirectangular image.
//
// Parameters:
//   - width: the image width
//   - height: the image height
//
// Returns:
//   - *image.RGBA: the environment map
func (s Sky) Render(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, toRGBA(s.Radiance(Direction(x, y, width, height))))
		}
	}
	return img
}

// Convolve approximates a convolution of src by shrinking it to a coarse grid and scaling it
// back up to the requested size. Smaller grids give wider blurs.
//
// Parameters:
//   - src: the equirectangular source
//   - grid: the size of the intermediate image
//   - size: the size of the result
//
// Returns:
//   - *image.RGBA: the blurred map
func Convolve(src *image.RGBA, grid, size image.Point) *image.RGBA {
	small := image.NewRGBA(image.Rectangle{Max: grid})
	xdraw.CatmullRom.Scale(small, small.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	out := image.NewRGBA(image.Rectangle{Max: size})
	xdraw.BiLinear.Scale(out, out.Bounds(), small, small.Bounds(), xdraw.Src, nil)
	return out
}

// BRDFLookup integrates the split-sum GGX terms into a size×size table. Columns index n·v and
// rows index roughness; red holds the scale and green the bias applied to F0.
//
// Parameters:
//   - size: the table edge length
//   - samples: the number of importance samples per texel
//
// Returns:
//   - *image.RGBA: the lookup table
func BRDFLookup(size, samples int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		roughness := (float64(y) + 0.5) / float64(size)
		for x := 0; x < size; x++ {
			nDotV := (float64(x) + 0.5) / float64(size)
			a, b := integrateBRDF(nDotV, roughness, samples)
			img.SetRGBA(x, y, toRGBA(mgl32.Vec3{float32(a), float32(b), 0}))
		}
	}
	return img
}

func integrateBRDF(nDotV, roughness float64, samples int) (float64, float64) {
	v := [3]float64{math.Sqrt(1 - nDotV*nDotV), 0, nDotV}
	alpha := roughness * roughness
	k := alpha / 2

	var a, b float64
	for i := 0; i < samples; i++ {
		xi0, xi1 := hammersley(i, samples)
		phi := 2 * math.Pi * xi0
		cosTheta := math.Sqrt((1 - xi1) / (1 + (alpha*alpha-1)*xi1))
		sinTheta := math.Sqrt(1 - cosTheta*cosTheta)
		h := [3]float64{sinTheta * math.Cos(phi), sinTheta * math.Sin(phi), cosTheta}

		vDotH := v[0]*h[0] + v[1]*h[1] + v[2]*h[2]
		l := [3]float64{2*vDotH*h[0] - v[0], 2*vDotH*h[1] - v[1], 2*vDotH*h[2] - v[2]}
		nDotL := math.Max(l[2], 0)
		nDotH := math.Max(h[2], 0)
		vDotH = math.Max(vDotH, 0)
		if nDotL <= 0 {
			continue
		}

		g := (nDotV / (nDotV*(1-k) + k)) * (nDotL / (nDotL*(1-k) + k))
		gVis := g * vDotH / (nDotH * nDotV)
		fc := math.Pow(1-vDotH, 5)
		a += (1 - fc) * gVis
		b += fc * gVis
	}
	return a / float64(samples), b / float64(samples)
}

func hammersley(i, n int) (float64, float64) {
	bits := uint32(i)
	bits = (bits << 16) | (bits >> 16)
	bits = ((bits & 0x55555555) << 1) | ((bits & 0xAAAAAAAA) >> 1)
	bits = ((bits & 0x33333333) << 2) | ((bits & 0xCCCCCCCC) >> 2)
	bits = ((bits & 0x0F0F0F0F) << 4) | ((bits & 0xF0F0F0F0) >> 4)
	bits = ((bits & 0x00FF00FF) << 8) | ((bits & 0xFF00FF00) >> 8)
	return float64(i) / float64(n), float64(bits) * 2.3283064365386963e-10
}

func toRGBA(c mgl32.Vec3) color.RGBA {
	return color.RGBA{
		R: common.EncodeUnorm(c[0]),
		G: common.EncodeUnorm(c[1]),
		B: common.EncodeUnorm(c[2]),
		A: 255,
	}
}
