package software

import (
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/program"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// minBandRows is the smallest number of rows shaded by one task.
const minBandRows = 8

// wEpsilon rejects vertices on or behind the eye plane that survive near clipping.
const wEpsilon = 1e-6

// fullscreenVertices reproduce the vertex_index triangle of the fullscreen programs:
// xy = (0,0), (2,0), (0,2), position = xy*2-1, uv = (xy.x, 1-xy.y).
var (
	fullscreenVertices = []common.Vertex{
		{Position: [3]float32{-1, -1, 0}, UV: [2]float32{0, 1}},
		{Position: [3]float32{3, -1, 0}, UV: [2]float32{2, 1}},
		{Position: [3]float32{-1, 3, 0}, UV: [2]float32{0, -1}},
	}
	fullscreenIndices = []uint32{0, 1, 2}
)

type drawState struct {
	kernel    Kernel
	colors    []*texture
	depth     *texture
	inputs    []*texture
	blend     gpu.BlendMode
	depthTest bool
	depthOp   program.CompareFunc
	depthMask bool
	cull      wgpu.CullMode
}

// clipVertex is a vertex kernel result before the perspective divide.
type clipVertex struct {
	pos      mgl32.Vec4
	varyings Varyings
}

// screenVertex is a vertex after the vertex kernel and the viewport transform.
type screenVertex struct {
	x, y, z  float32
	invW     float32
	varyings Varyings
	valid    bool
}

type screenTriangle struct {
	v          [3]screenVertex
	area       float32
	minY, maxY int
	minX, maxX int
}

// rasterize runs the vertex kernel over every vertex, then shades the target in row bands on the
// worker pool. Bands own disjoint rows and visit triangles in index order, so results do not depend
// on scheduling. The call returns once every band is done.
func (b *Backend) rasterize(st drawState, vertices []common.Vertex, indices []uint32) {
	width, height := b.targetSize(st)

	clipped := make([]clipVertex, len(vertices))
	projected := make([]screenVertex, len(vertices))
	for i, v := range vertices {
		pos, vary := st.kernel.Vertex(v)
		clipped[i] = clipVertex{pos: pos, varyings: vary}
		if insideNear(pos) {
			projected[i] = clipped[i].project(width, height)
		}
	}

	tris := make([]screenTriangle, 0, len(indices)/3)
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		if projected[i0].valid && projected[i1].valid && projected[i2].valid {
			tris = st.appendTriangle(tris, [3]screenVertex{projected[i0], projected[i1], projected[i2]}, width, height)
			continue
		}
		poly := clipNear([3]clipVertex{clipped[i0], clipped[i1], clipped[i2]})
		for k := 1; k+1 < len(poly); k++ {
			v := [3]screenVertex{
				poly[0].project(width, height),
				poly[k].project(width, height),
				poly[k+1].project(width, height),
			}
			if v[0].valid && v[1].valid && v[2].valid {
				tris = st.appendTriangle(tris, v, width, height)
			}
		}
	}
	if len(tris) == 0 {
		return
	}

	rows := max(minBandRows, (height+b.workers*2-1)/(b.workers*2))
	var wg sync.WaitGroup
	taskID := 0
	for y0 := 0; y0 < height; y0 += rows {
		y1 := min(height, y0+rows)
		wg.Add(1)
		id := taskID
		taskID++
		b.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				ctx := &ShaderContext{inputs: st.inputs}
				for i := range tris {
					shadeTriangle(st, ctx, &tris[i], y0, y1, width)
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
}

// appendTriangle culls and bounds one projected triangle, appending it to tris when it covers
// any pixel.
func (st drawState) appendTriangle(tris []screenTriangle, v [3]screenVertex, width, height int) []screenTriangle {
	t := screenTriangle{v: v}
	t.area = edge(t.v[0], t.v[1], t.v[2].x, t.v[2].y)
	if t.area == 0 {
		return tris
	}
	// Counter-clockwise in NDC is clockwise once y points down.
	front := t.area < 0
	if (st.cull == wgpu.CullModeBack && !front) || (st.cull == wgpu.CullModeFront && front) {
		return tris
	}
	t.minX = max(0, int(min3(t.v[0].x, t.v[1].x, t.v[2].x)))
	t.maxX = min(width-1, int(max3(t.v[0].x, t.v[1].x, t.v[2].x)))
	t.minY = max(0, int(min3(t.v[0].y, t.v[1].y, t.v[2].y)))
	t.maxY = min(height-1, int(max3(t.v[0].y, t.v[1].y, t.v[2].y)))
	if t.minX > t.maxX || t.minY > t.maxY {
		return tris
	}
	return append(tris, t)
}

// insideNear reports whether a clip-space position lies on the visible side of the near plane,
// z >= 0 with depth mapped to [0, 1].
func insideNear(pos mgl32.Vec4) bool {
	return pos[2] >= 0 && pos[3] > wEpsilon
}

// clipNear cuts a triangle against the near plane, returning the visible polygon in the
// original winding: nothing, the triangle itself, or a triangle or quad with new vertices on
// the plane.
func clipNear(tri [3]clipVertex) []clipVertex {
	out := make([]clipVertex, 0, 4)
	for i := range tri {
		cur, next := tri[i], tri[(i+1)%3]
		curIn, nextIn := cur.pos[2] >= 0, next.pos[2] >= 0
		if curIn {
			out = append(out, cur)
		}
		if curIn != nextIn {
			out = append(out, cur.lerp(next, cur.pos[2]/(cur.pos[2]-next.pos[2])))
		}
	}
	return out
}

func (c clipVertex) lerp(o clipVertex, t float32) clipVertex {
	r := clipVertex{pos: c.pos.Add(o.pos.Sub(c.pos).Mul(t))}
	r.pos[2] = 0
	for k := range r.varyings {
		r.varyings[k] = c.varyings[k].Add(o.varyings[k].Sub(c.varyings[k]).Mul(t))
	}
	return r
}

func (c clipVertex) project(width, height int) screenVertex {
	if c.pos[3] <= wEpsilon {
		return screenVertex{}
	}
	inv := 1 / c.pos[3]
	return screenVertex{
		x:        (c.pos[0]*inv*0.5 + 0.5) * float32(width),
		y:        (0.5 - c.pos[1]*inv*0.5) * float32(height),
		z:        c.pos[2] * inv,
		invW:     inv,
		varyings: c.varyings,
		valid:    true,
	}
}

func (b *Backend) targetSize(st drawState) (int, int) {
	if len(st.colors) > 0 {
		return st.colors[0].width, st.colors[0].height
	}
	return st.depth.width, st.depth.height
}

func shadeTriangle(st drawState, ctx *ShaderContext, t *screenTriangle, y0, y1, width int) {
	ys, ye := max(y0, t.minY), min(y1-1, t.maxY)
	v0, v1, v2 := t.v[0], t.v[1], t.v[2]
	for py := ys; py <= ye; py++ {
		cy := float32(py) + 0.5
		for px := t.minX; px <= t.maxX; px++ {
			cx := float32(px) + 0.5
			w0 := edge(v1, v2, cx, cy) / t.area
			w1 := edge(v2, v0, cx, cy) / t.area
			w2 := edge(v0, v1, cx, cy) / t.area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			z := w0*v0.z + w1*v1.z + w2*v2.z
			if z < 0 || z > 1 {
				continue
			}
			idx := py*width + px
			if st.depthTest && !depthPasses(st.depthOp, z, st.depth.texels[idx][0]) {
				continue
			}

			p0, p1, p2 := w0*v0.invW, w1*v1.invW, w2*v2.invW
			norm := 1 / (p0 + p1 + p2)
			var in Varyings
			for k := range in {
				in[k] = v0.varyings[k].Mul(p0).Add(v1.varyings[k].Mul(p1)).Add(v2.varyings[k].Mul(p2)).Mul(norm)
			}

			ctx.Pixel = [2]int{px, py}
			out := st.kernel.Fragment(ctx, in)
			for i, c := range st.colors {
				v := out[i]
				if st.blend == gpu.BlendAdditive {
					v = c.texels[idx].Add(v)
				}
				c.texels[idx] = quantize(c.format, v)
			}
			if st.depthMask {
				st.depth.texels[idx] = mgl32.Vec4{z}
			}
		}
	}
}

func depthPasses(op program.CompareFunc, z, stored float32) bool {
	switch op {
	case program.CompareLess:
		return z < stored
	case program.CompareLessEqual:
		return z <= stored
	}
	return true
}

func edge(a, b screenVertex, x, y float32) float32 {
	return (b.x-a.x)*(y-a.y) - (b.y-a.y)*(x-a.x)
}

func min3(a, b, c float32) float32 {
	return min(a, min(b, c))
}

func max3(a, b, c float32) float32 {
	return max(a, max(b, c))
}
