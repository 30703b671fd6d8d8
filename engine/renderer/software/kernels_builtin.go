package software

import (
	"math"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
)

// builtinKernels returns a kernel for every embedded program, keyed like the shaders.
func builtinKernels() map[string]KernelFactory {
	return map[string]KernelFactory{
		shader.KeyGeometry:      newGeometryKernel,
		shader.KeyOcclusion:     newOcclusionKernel,
		shader.KeyBoxBlur:       newBoxBlurKernel,
		shader.KeyLighting:      newLightingKernel,
		shader.KeyBackground:    newBackgroundKernel,
		shader.KeyReflections:   newReflectionsKernel,
		shader.KeyBloomSeparate: newBloomSeparateKernel,
		shader.KeyGaussianBlur:  newGaussianBlurKernel,
		shader.KeyBloomBlend:    newBloomBlendKernel,
		shader.KeyComposite:     newCompositeKernel,
		shader.KeyGBufferDebug:  newGBufferDebugKernel,
	}
}

type geometryKernel struct {
	view, projection, model mgl32.Mat4
	albedo                  mgl32.Vec3
	material                mgl32.Vec4
}

func newGeometryKernel(u Uniforms) Kernel {
	return &geometryKernel{
		view:       u.Mat4("ViewMatrix"),
		projection: u.Mat4("ProjectionMatrix"),
		model:      u.Mat4("ModelMatrix"),
		albedo:     u.Vec3("Albedo"),
		material:   mgl32.Vec4{u.Float("Metallic"), u.Float("Roughness"), u.Float("AO"), 1},
	}
}

func (k *geometryKernel) Vertex(v common.Vertex) (mgl32.Vec4, Varyings) {
	world := k.model.Mul4x1(mgl32.Vec3(v.Position).Vec4(1))
	view := k.view.Mul4x1(world)
	n := k.model.Mul4x1(mgl32.Vec3(v.Normal).Vec4(0))
	return k.projection.Mul4x1(view), Varyings{
		{world[0], world[1], world[2], -view[2]},
		{n[0], n[1], n[2], 0},
		{v.UV[0], v.UV[1], 0, 0},
	}
}

func (k *geometryKernel) Fragment(_ *ShaderContext, in Varyings) Outputs {
	return Outputs{
		in[0],
		k.albedo.Vec4(1),
		safeNormalize(vec3Of(in[1])).Vec4(1),
		k.material,
		{in[2][0], in[2][1], 0, 1},
	}
}

type occlusionKernel struct {
	fullscreen
	view, projection mgl32.Mat4
	samples          []mgl32.Vec4
	radius, bias     float32
}

func newOcclusionKernel(u Uniforms) Kernel {
	n := clampInt(u.Int("KernelSize"), 0, shader.MaxKernelSize)
	samples := make([]mgl32.Vec4, n)
	copy(samples, u.Vec4s("Kernel", n))
	return &occlusionKernel{
		view:       u.Mat4("ViewMatrix"),
		projection: u.Mat4("ProjectionMatrix"),
		samples:    samples,
		radius:     u.Float("Radius"),
		bias:       u.Float("Bias"),
	}
}

func (k *occlusionKernel) Fragment(ctx *ShaderContext, _ Varyings) Outputs {
	pos := ctx.LoadPixel(0)
	if pos[3] <= 0 {
		return Outputs{{1, 0, 0, 1}}
	}
	fragView := vec3Of(k.view.Mul4x1(vec3Of(pos).Vec4(1)))
	normal := safeNormalize(vec3Of(k.view.Mul4x1(vec3Of(ctx.LoadPixel(1)).Vec4(0))))
	noise := ctx.Load(2, ctx.Pixel[0]%4, ctx.Pixel[1]%4)
	randomVec := safeNormalize(vec3Of(noise).Mul(2).Sub(splat(1)))

	tangent := safeNormalize(randomVec.Sub(normal.Mul(randomVec.Dot(normal))))
	bitangent := normal.Cross(tangent)
	tbn := mgl32.Mat3FromCols(tangent, bitangent, normal)

	var occlusion float32
	for _, s := range k.samples {
		samplePos := fragView.Add(tbn.Mul3x1(vec3Of(s)).Mul(k.radius))
		suv, _ := common.ProjectToScreen(k.projection, samplePos)
		sampled := ctx.Sample(0, suv)
		if sampled[3] <= 0 {
			continue
		}
		sampleDepth := k.view.Mul4x1(vec3Of(sampled).Vec4(1))[2]
		rangeCheck := smoothstep(0, 1, k.radius/max(abs32(fragView[2]-sampleDepth), 1e-4))
		if sampleDepth >= samplePos[2]+k.bias {
			occlusion += rangeCheck
		}
	}
	result := 1 - occlusion/float32(max(len(k.samples), 1))
	return Outputs{{result, 0, 0, 1}}
}

type boxBlurKernel struct {
	fullscreen
	size       int
	separation float32
}

func newBoxBlurKernel(u Uniforms) Kernel {
	return &boxBlurKernel{size: u.Int("BlurSize"), separation: u.Float("Separation")}
}

func (k *boxBlurKernel) Fragment(ctx *ShaderContext, in Varyings) Outputs {
	uv := uvOf(in)
	w, h := ctx.Size(0)
	var sum mgl32.Vec4
	var count float32
	for x := -k.size; x <= k.size; x++ {
		for y := -k.size; y <= k.size; y++ {
			offset := mgl32.Vec2{float32(x) * k.separation / float32(w), float32(y) * k.separation / float32(h)}
			sum = sum.Add(ctx.Sample(0, uv.Add(offset)))
			count++
		}
	}
	if count == 0 {
		return Outputs{}
	}
	return Outputs{sum.Mul(1 / count)}
}

type lightingKernel struct {
	fullscreen
	positions    [shader.MaxLights]mgl32.Vec4
	colors       [shader.MaxLights]mgl32.Vec4
	count        int
	viewPosition mgl32.Vec3
	useOcclusion bool
}

func newLightingKernel(u Uniforms) Kernel {
	k := &lightingKernel{
		count:        clampInt(u.Int("LightCount"), 0, shader.MaxLights),
		viewPosition: u.Vec3("ViewPosition"),
		useOcclusion: u.Bool("UseOcclusion"),
	}
	copy(k.positions[:], u.Vec4s("LightPositions", shader.MaxLights))
	copy(k.colors[:], u.Vec4s("LightColors", shader.MaxLights))
	return k
}

func distributionGGX(n, h mgl32.Vec3, roughness float32) float32 {
	a := roughness * roughness
	a2 := a * a
	nDotH := max(n.Dot(h), 0)
	denom := nDotH*nDotH*(a2-1) + 1
	return a2 / max(math.Pi*denom*denom, 1e-7)
}

func geometrySchlickGGX(nDotV, roughness float32) float32 {
	r := roughness + 1
	k := r * r / 8
	return nDotV / (nDotV*(1-k) + k)
}

func geometrySmith(n, v, l mgl32.Vec3, roughness float32) float32 {
	return geometrySchlickGGX(max(n.Dot(v), 0), roughness) * geometrySchlickGGX(max(n.Dot(l), 0), roughness)
}

func fresnelSchlick(cosTheta float32, f0 mgl32.Vec3) mgl32.Vec3 {
	return f0.Add(splat(1).Sub(f0).Mul(pow32(clamp01(1-cosTheta), 5)))
}

func fresnelSchlickRoughness(cosTheta float32, f0 mgl32.Vec3, roughness float32) mgl32.Vec3 {
	r := splat(1 - roughness)
	hi := mgl32.Vec3{max(r[0], f0[0]), max(r[1], f0[1]), max(r[2], f0[2])}
	return f0.Add(hi.Sub(f0).Mul(pow32(clamp01(1-cosTheta), 5)))
}

func (k *lightingKernel) Fragment(ctx *ShaderContext, _ Varyings) Outputs {
	pos := ctx.LoadPixel(0)
	if pos[3] <= 0 {
		return Outputs{{0, 0, 0, 1}}
	}
	p := vec3Of(pos)
	albedo := vec3Of(ctx.LoadPixel(1))
	n := safeNormalize(vec3Of(ctx.LoadPixel(2)))
	mra := ctx.LoadPixel(3)
	metallic, roughness, ao := mra[0], mra[1], mra[2]
	occlusion := float32(1)
	if k.useOcclusion {
		occlusion = ctx.LoadPixel(5)[0]
	}

	v := safeNormalize(k.viewPosition.Sub(p))
	nDotV := max(n.Dot(v), 0)
	f0 := mix3(splat(0.04), albedo, metallic)

	var lo mgl32.Vec3
	for i := 0; i < k.count; i++ {
		toLight := vec3Of(k.positions[i]).Sub(p)
		dist := toLight.Len()
		l := toLight.Mul(1 / max(dist, 1e-4))
		h := safeNormalize(v.Add(l))
		radiance := vec3Of(k.colors[i]).Mul(1 / max(dist*dist, 1e-4))

		ndf := distributionGGX(n, h, roughness)
		g := geometrySmith(n, v, l, roughness)
		f := fresnelSchlick(max(h.Dot(v), 0), f0)
		nDotL := max(n.Dot(l), 0)
		specular := f.Mul(ndf * g / (4*nDotV*nDotL + 1e-4))
		kD := splat(1).Sub(f).Mul(1 - metallic)
		diffuse := mulv(kD, albedo).Mul(1 / math.Pi)
		lo = lo.Add(mulv(diffuse.Add(specular), radiance).Mul(nDotL))
	}

	f := fresnelSchlickRoughness(nDotV, f0, roughness)
	kD := splat(1).Sub(f).Mul(1 - metallic)
	irradiance := vec3Of(ctx.Sample(6, equirectUV(n)))
	r := reflect(v.Mul(-1), n)
	prefiltered := mix3(vec3Of(ctx.Sample(7, equirectUV(r))), vec3Of(ctx.Sample(6, equirectUV(r))), roughness)
	brdf := ctx.Sample(8, mgl32.Vec2{nDotV, roughness})
	specular := mulv(prefiltered, f.Mul(brdf[0]).Add(splat(brdf[1])))
	ambient := mulv(mulv(kD, irradiance), albedo).Add(specular).Mul(ao * occlusion)

	return Outputs{ambient.Add(lo).Vec4(1)}
}

type backgroundKernel struct {
	fullscreen
	inverseViewProjection mgl32.Mat4
	viewPosition          mgl32.Vec3
}

func newBackgroundKernel(u Uniforms) Kernel {
	return &backgroundKernel{
		fullscreen:            fullscreen{depth: 1},
		inverseViewProjection: u.Mat4("InverseViewProjection"),
		viewPosition:          u.Vec3("ViewPosition"),
	}
}

func (k *backgroundKernel) Fragment(ctx *ShaderContext, in Varyings) Outputs {
	uv := uvOf(in)
	world := k.inverseViewProjection.Mul4x1(mgl32.Vec4{uv[0]*2 - 1, 1 - uv[1]*2, 1, 1})
	dir := safeNormalize(vec3Of(world).Mul(1 / world[3]).Sub(k.viewPosition))
	return Outputs{vec3Of(ctx.Sample(0, equirectUV(dir))).Vec4(1)}
}

type reflectionsKernel struct {
	fullscreen
	viewProjection mgl32.Mat4
	viewPosition   mgl32.Vec3
	maxDistance    float32
	stepSize       float32
	iterations     int
	tolerance      float32
}

func newReflectionsKernel(u Uniforms) Kernel {
	return &reflectionsKernel{
		viewProjection: u.Mat4("ProjectionMatrix").Mul4(u.Mat4("ViewMatrix")),
		viewPosition:   u.Vec3("ViewPosition"),
		maxDistance:    u.Float("MaxRayDistance"),
		stepSize:       u.Float("StepResolution"),
		iterations:     u.Int("StepIterations"),
		tolerance:      u.Float("HitTolerance"),
	}
}

func (k *reflectionsKernel) Fragment(ctx *ShaderContext, _ Varyings) Outputs {
	base := ctx.LoadPixel(3)
	pos := ctx.LoadPixel(0)
	if pos[3] <= 0 {
		return Outputs{base}
	}
	mra := ctx.LoadPixel(2)
	reflectivity := mra[0] * (1 - mra[1])
	if reflectivity <= 0 {
		return Outputs{base}
	}

	p := vec3Of(pos)
	n := safeNormalize(vec3Of(ctx.LoadPixel(1)))
	r := safeNormalize(reflect(safeNormalize(p.Sub(k.viewPosition)), n))

	hit := false
	var hitUV mgl32.Vec2
	marched := p
	for i := 0; i < k.iterations; i++ {
		marched = marched.Add(r.Mul(k.stepSize))
		if marched.Sub(p).Len() > k.maxDistance {
			break
		}
		suv, w := common.ProjectToScreen(k.viewProjection, marched)
		if w <= 0 || suv[0] < 0 || suv[0] > 1 || suv[1] < 0 || suv[1] > 1 {
			break
		}
		sampled := ctx.Sample(0, suv)
		if sampled[3] <= 0 {
			continue
		}
		if abs32(w-sampled[3]) < k.tolerance {
			hit = true
			hitUV = suv
			break
		}
	}
	if !hit {
		return Outputs{base}
	}

	sharp := vec3Of(ctx.Sample(3, hitUV))
	soft := vec3Of(ctx.Sample(4, hitUV))
	reflection := mix3(sharp, soft, mra[1])
	return Outputs{mix3(vec3Of(base), reflection, reflectivity).Vec4(base[3])}
}

type bloomSeparateKernel struct {
	fullscreen
	threshold float32
}

func newBloomSeparateKernel(u Uniforms) Kernel {
	return &bloomSeparateKernel{threshold: u.Float("Threshold")}
}

func (k *bloomSeparateKernel) Fragment(ctx *ShaderContext, _ Varyings) Outputs {
	c := ctx.LoadPixel(0)
	var out mgl32.Vec4
	for i, v := range c {
		if clamp01(v) > k.threshold {
			out[i] = v
		}
	}
	return Outputs{out}
}

var gaussianWeights = [5]float32{0.227027, 0.1945946, 0.1216216, 0.054054, 0.016216}

type gaussianBlurKernel struct {
	fullscreen
	direction mgl32.Vec2
}

func newGaussianBlurKernel(u Uniforms) Kernel {
	return &gaussianBlurKernel{direction: u.Vec2("Direction")}
}

func (k *gaussianBlurKernel) Fragment(ctx *ShaderContext, in Varyings) Outputs {
	uv := uvOf(in)
	w, h := ctx.Size(0)
	step := mgl32.Vec2{k.direction[0] / float32(w), k.direction[1] / float32(h)}
	result := vec3Of(ctx.Sample(0, uv)).Mul(gaussianWeights[0])
	for i := 1; i < len(gaussianWeights); i++ {
		offset := step.Mul(float32(i))
		result = result.Add(vec3Of(ctx.Sample(0, uv.Add(offset))).Mul(gaussianWeights[i]))
		result = result.Add(vec3Of(ctx.Sample(0, uv.Sub(offset))).Mul(gaussianWeights[i]))
	}
	return Outputs{result.Vec4(1)}
}

type bloomBlendKernel struct {
	fullscreen
	exposure float32
}

func newBloomBlendKernel(u Uniforms) Kernel {
	return &bloomBlendKernel{exposure: u.Float("Exposure")}
}

func (k *bloomBlendKernel) Fragment(ctx *ShaderContext, _ Varyings) Outputs {
	c := ctx.LoadPixel(0)
	b := ctx.LoadPixel(1)
	return Outputs{vec3Of(c).Add(vec3Of(b).Mul(k.exposure)).Vec4(c[3])}
}

// goldenAngle spaces depth of field taps on a spiral.
const goldenAngle = 2.39996323

type compositeKernel struct {
	fullscreen
	depthOfField bool
	focalDepth   float32
	samples      int
	maxBlur      float32
}

func newCompositeKernel(u Uniforms) Kernel {
	return &compositeKernel{
		depthOfField: u.Bool("UseDepthOfField"),
		focalDepth:   u.Float("FocalDepth"),
		samples:      u.Int("SampleCount"),
		maxBlur:      u.Float("MaxBlur"),
	}
}

func (k *compositeKernel) Fragment(ctx *ShaderContext, in Varyings) Outputs {
	c := vec3Of(ctx.LoadPixel(5))

	if k.depthOfField && k.samples > 0 {
		depth := ctx.LoadPixel(0)[3]
		coc := k.maxBlur
		if depth > 0 {
			coc = clamp01(abs32(depth-k.focalDepth)/k.focalDepth) * k.maxBlur
		}
		if coc > 0 {
			uv := uvOf(in)
			w, h := ctx.Size(5)
			sum := c
			for i := 0; i < k.samples; i++ {
				radius := coc * sqrt32((float32(i)+0.5)/float32(k.samples))
				theta := float64(i) * goldenAngle
				offset := mgl32.Vec2{
					float32(math.Cos(theta)) * radius / float32(w),
					float32(math.Sin(theta)) * radius / float32(h),
				}
				sum = sum.Add(vec3Of(ctx.Sample(5, uv.Add(offset))))
			}
			c = sum.Mul(1 / float32(k.samples+1))
		}
	}

	var out mgl32.Vec4
	for i := 0; i < 3; i++ {
		mapped := c[i] / (c[i] + 1)
		out[i] = pow32(max(mapped, 0), 1/2.2)
	}
	out[3] = 1
	return Outputs{out}
}

type gbufferDebugKernel struct {
	fullscreen
	positionScale float32
}

func newGBufferDebugKernel(u Uniforms) Kernel {
	return &gbufferDebugKernel{positionScale: u.Float("PositionScale")}
}

func (k *gbufferDebugKernel) Fragment(ctx *ShaderContext, in Varyings) Outputs {
	uv := uvOf(in)
	local := mgl32.Vec2{fract(uv[0] * 2), fract(uv[1] * 2)}
	right, bottom := uv[0] >= 0.5, uv[1] >= 0.5
	switch {
	case !right && !bottom:
		p := vec3Of(ctx.Sample(0, local))
		return Outputs{mgl32.Vec4{
			clamp01(abs32(p[0]) * k.positionScale),
			clamp01(abs32(p[1]) * k.positionScale),
			clamp01(abs32(p[2]) * k.positionScale),
			1,
		}}
	case right && !bottom:
		return Outputs{vec3Of(ctx.Sample(1, local)).Vec4(1)}
	case !right && bottom:
		return Outputs{vec3Of(ctx.Sample(2, local)).Mul(0.5).Add(splat(0.5)).Vec4(1)}
	}
	return Outputs{vec3Of(ctx.Sample(3, local)).Vec4(1)}
}
