package shader

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// UniformLayout is the CPU-side description of the uniform block a program declares at
// @group(0) @binding(0). Uniform names are the block's member names.
type UniformLayout struct {
	// Struct is the WGSL struct name of the block.
	Struct string
	// Size is the byte size of the block, rounded up to its alignment.
	Size uint64
	// Fields lists the block members in declaration order.
	Fields []UniformField
}

// Field looks up a member by name.
//
// Parameters:
//   - name: the member name
//
// Returns:
//   - UniformField: the member description
//   - bool: true if the block declares the member
func (l UniformLayout) Field(name string) (UniformField, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return UniformField{}, false
}

// Encode packs uniform values into the byte image of the block.
// Names that are not members of the block are ignored so that shared blocks can be merged
// into every program; members without a value stay zero. Arrays longer than the declared
// count are truncated.
//
// Parameters:
//   - values: uniform values keyed by member name
//
// Returns:
//   - []byte: a buffer of exactly Size bytes
//   - error: an error naming the member whose value has an unsupported Go type
func (l UniformLayout) Encode(values map[string]any) ([]byte, error) {
	buf := make([]byte, l.Size)
	for _, f := range l.Fields {
		v, ok := values[f.Name]
		if !ok || v == nil {
			continue
		}
		if err := encodeField(buf[f.Offset:f.Offset+f.Size], f, v); err != nil {
			return nil, errors.Wrapf(err, "uniform %s.%s", l.Struct, f.Name)
		}
	}
	return buf, nil
}

func encodeField(dst []byte, f UniformField, v any) error {
	if f.Count > 0 {
		return encodeArray(dst, f, v)
	}
	switch f.Type {
	case "f32":
		x, ok := asFloat(v)
		if !ok {
			return errors.Errorf("cannot encode %T as f32", v)
		}
		putFloats(dst, x)
	case "i32", "u32", "bool":
		x, ok := asInt(v)
		if !ok {
			return errors.Errorf("cannot encode %T as %s", v, f.Type)
		}
		binary.LittleEndian.PutUint32(dst, uint32(x))
	case "vec2<f32>", "vec2f":
		x, ok := v.(mgl32.Vec2)
		if !ok {
			return errors.Errorf("cannot encode %T as %s", v, f.Type)
		}
		putFloats(dst, x[:]...)
	case "vec3<f32>", "vec3f":
		x, ok := v.(mgl32.Vec3)
		if !ok {
			return errors.Errorf("cannot encode %T as %s", v, f.Type)
		}
		putFloats(dst, x[:]...)
	case "vec4<f32>", "vec4f":
		x, ok := v.(mgl32.Vec4)
		if !ok {
			return errors.Errorf("cannot encode %T as %s", v, f.Type)
		}
		putFloats(dst, x[:]...)
	case "mat4x4<f32>", "mat4x4f":
		x, ok := v.(mgl32.Mat4)
		if !ok {
			return errors.Errorf("cannot encode %T as %s", v, f.Type)
		}
		putFloats(dst, x[:]...)
	default:
		return errors.Errorf("unsupported uniform type %s", f.Type)
	}
	return nil
}

// encodeArray packs slices of vectors into array<vec4<f32>, N> members.
// Vec3 elements are widened with a zero w component.
func encodeArray(dst []byte, f UniformField, v any) error {
	var elems []mgl32.Vec4
	switch x := v.(type) {
	case []mgl32.Vec4:
		elems = x
	case []mgl32.Vec3:
		elems = make([]mgl32.Vec4, len(x))
		for i, e := range x {
			elems[i] = e.Vec4(0)
		}
	default:
		return errors.Errorf("cannot encode %T as %s", v, f.Type)
	}
	if len(elems) > f.Count {
		elems = elems[:f.Count]
	}
	for i, e := range elems {
		off := uint64(i) * f.Stride
		putFloats(dst[off:off+16], e[:]...)
	}
	return nil
}

func putFloats(dst []byte, vs ...float32) {
	for i, v := range vs {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}

func asFloat(v any) (float32, bool) {
	switch x := v.(type) {
	case float32:
		return x, true
	case float64:
		return float32(x), true
	case int:
		return float32(x), true
	}
	return 0, false
}

func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case uint32:
		return int64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
