package model

import (
	"math"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Geometry is indexed triangle-list mesh data in the engine's interleaved vertex layout.
// Front faces wind counter-clockwise.
type Geometry struct {
	Vertices []common.Vertex
	Indices  []uint32
}

// BoundingRadius returns the distance from the origin to the farthest vertex.
//
// Returns:
//   - float32: the bounding sphere radius
func (g Geometry) BoundingRadius() float32 {
	var maxSq float32
	for _, v := range g.Vertices {
		p := mgl32.Vec3(v.Position)
		maxSq = max(maxSq, p.Dot(p))
	}
	return float32(math.Sqrt(float64(maxSq)))
}

// face appends one quad spanning center ± u ± v, facing u × v.
func (g *Geometry) face(center, u, v mgl32.Vec3) {
	n := u.Cross(v).Normalize()
	base := uint32(len(g.Vertices))
	corners := [4]struct {
		su, sv float32
	}{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	for _, c := range corners {
		p := center.Add(u.Mul(c.su)).Add(v.Mul(c.sv))
		g.Vertices = append(g.Vertices, common.Vertex{
			Position: p,
			Normal:   n,
			UV:       [2]float32{(c.su + 1) / 2, (1 - c.sv) / 2},
		})
	}
	g.Indices = append(g.Indices, base, base+1, base+2, base, base+2, base+3)
}

// Quad returns a size × size square in the XY plane facing +Z.
//
// Parameters:
//   - size: the edge length
//
// Returns:
//   - Geometry: 4 vertices, 6 indices
func Quad(size float32) Geometry {
	var g Geometry
	h := size / 2
	g.face(mgl32.Vec3{}, mgl32.Vec3{h, 0, 0}, mgl32.Vec3{0, h, 0})
	return g
}

// Plane returns a size × size square in the XZ plane facing +Y.
//
// Parameters:
//   - size: the edge length
//
// Returns:
//   - Geometry: 4 vertices, 6 indices
func Plane(size float32) Geometry {
	var g Geometry
	h := size / 2
	g.face(mgl32.Vec3{}, mgl32.Vec3{h, 0, 0}, mgl32.Vec3{0, 0, -h})
	return g
}

// Cube returns an axis-aligned cube centered on the origin with per-face normals.
//
// Parameters:
//   - size: the edge length
//
// Returns:
//   - Geometry: 24 vertices, 36 indices
func Cube(size float32) Geometry {
	var g Geometry
	h := size / 2
	faces := [6][3]mgl32.Vec3{
		{{h, 0, 0}, {0, 0, -h}, {0, h, 0}},
		{{-h, 0, 0}, {0, 0, h}, {0, h, 0}},
		{{0, h, 0}, {h, 0, 0}, {0, 0, -h}},
		{{0, -h, 0}, {h, 0, 0}, {0, 0, h}},
		{{0, 0, h}, {h, 0, 0}, {0, h, 0}},
		{{0, 0, -h}, {-h, 0, 0}, {0, h, 0}},
	}
	for _, f := range faces {
		g.face(f[0], f[1], f[2])
	}
	return g
}

// UVSphere returns a latitude/longitude sphere centered on the origin.
//
// Parameters:
//   - radius: the sphere radius
//   - rings: the number of latitude bands, at least 2
//   - sectors: the number of longitude bands, at least 3
//
// Returns:
//   - Geometry: (rings+1)·(sectors+1) vertices, 6·rings·sectors indices
func UVSphere(radius float32, rings, sectors int) Geometry {
	rings = max(rings, 2)
	sectors = max(sectors, 3)
	var g Geometry
	for i := 0; i <= rings; i++ {
		phi := math.Pi * float64(i) / float64(rings)
		for j := 0; j <= sectors; j++ {
			theta := 2 * math.Pi * float64(j) / float64(sectors)
			n := mgl32.Vec3{
				float32(math.Sin(phi) * math.Cos(theta)),
				float32(math.Cos(phi)),
				float32(math.Sin(phi) * math.Sin(theta)),
			}
			g.Vertices = append(g.Vertices, common.Vertex{
				Position: n.Mul(radius),
				Normal:   n,
				UV:       [2]float32{float32(j) / float32(sectors), float32(i) / float32(rings)},
			})
		}
	}
	stride := uint32(sectors + 1)
	for i := uint32(0); i < uint32(rings); i++ {
		for j := uint32(0); j < uint32(sectors); j++ {
			a := i*stride + j
			b := a + stride
			g.Indices = append(g.Indices, a, a+1, b, a+1, b+1, b)
		}
	}
	return g
}
