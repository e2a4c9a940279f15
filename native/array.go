// Package native implements the CPU reference engine for sheaf records.
//
// Arrays are dense, row-major and immutable: a dtype, a shape and one
// contiguous little-endian byte payload. Typed views of the payload are
// produced with unsafe casts so that kernels operate on []float32 or
// []float64 slices without copying.
//
// Key components:
//   - Array: immutable dense array over a contiguous byte payload
//   - FromAny: reflection-based coercion of Go scalars and nested slices
//   - Index/Reshape/BroadcastTo/Stack: the shape kernels used by records
//   - Normalize/AppendRow: numeric helpers for geometry-style callers
//   - Marshal/Unmarshal: binary persistence with integrity checking
package native

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"unsafe"

	"github.com/sbl8/sheaf/backend"
	"github.com/sbl8/sheaf/dtype"
	"github.com/sbl8/sheaf/shape"
)

// Array is one immutable dense array. The payload is little-endian and
// exactly shape.Size()*dtype.Size() bytes long. Arrays sharing a payload are
// safe because no operation writes through an existing array.
type Array struct {
	dt   dtype.DType
	shp  shape.Shape
	data []byte
}

// NewRaw wraps an existing payload without copying. The payload length must
// match the shape and dtype exactly.
func NewRaw(dt dtype.DType, s shape.Shape, data []byte) (*Array, error) {
	dt, err := dtype.Normalize(dt)
	if err != nil {
		return nil, err
	}
	want := s.Size() * dt.Size()
	if len(data) != want {
		return nil, fmt.Errorf("native: payload is %d bytes, want %d for %v %v", len(data), want, dt, s)
	}
	return &Array{dt: dt, shp: s.Clone(), data: data}, nil
}

// Zeros returns a zero-filled array of the given dtype and shape.
func Zeros(dt dtype.DType, s shape.Shape) (*Array, error) {
	dt, err := dtype.Normalize(dt)
	if err != nil {
		return nil, err
	}
	return &Array{dt: dt, shp: s.Clone(), data: make([]byte, s.Size()*dt.Size())}, nil
}

// Engine returns the native engine singleton.
func (a *Array) Engine() backend.Engine { return Default }

// DType returns the element type.
func (a *Array) DType() dtype.DType { return a.dt }

// Shape returns the full shape. The caller must not mutate it.
func (a *Array) Shape() shape.Shape { return a.shp }

// Len returns the number of elements.
func (a *Array) Len() int { return a.shp.Size() }

// Bytes returns the raw payload. The caller must not mutate it.
func (a *Array) Bytes() []byte { return a.data }

// Float32s returns the payload viewed as []float32. Valid only for Float32
// arrays; the view must be treated as read-only.
func (a *Array) Float32s() []float32 {
	if a.dt != dtype.Float32 || len(a.data) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&a.data[0])), len(a.data)/4)
}

// Float64s returns the payload viewed as []float64.
func (a *Array) Float64s() []float64 {
	if a.dt != dtype.Float64 || len(a.data) == 0 {
		return nil
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&a.data[0])), len(a.data)/8)
}

// Int32s returns the payload viewed as []int32.
func (a *Array) Int32s() []int32 {
	if a.dt != dtype.Int32 || len(a.data) == 0 {
		return nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&a.data[0])), len(a.data)/4)
}

// Int64s returns the payload viewed as []int64.
func (a *Array) Int64s() []int64 {
	if a.dt != dtype.Int64 || len(a.data) == 0 {
		return nil
	}
	return unsafe.Slice((*int64)(unsafe.Pointer(&a.data[0])), len(a.data)/8)
}

// Bools returns the payload viewed as []bool.
func (a *Array) Bools() []bool {
	if a.dt != dtype.Bool || len(a.data) == 0 {
		return nil
	}
	return unsafe.Slice((*bool)(unsafe.Pointer(&a.data[0])), len(a.data))
}

// Equal reports element-wise equality: same engine, dtype, shape and payload.
func (a *Array) Equal(o backend.Array) bool {
	ob, ok := o.(*Array)
	if !ok {
		if u, uok := o.(interface{ Native() *Array }); uok {
			ob = u.Native()
		} else {
			return false
		}
	}
	return a.dt == ob.dt && a.shp.Equal(ob.shp) && bytes.Equal(a.data, ob.data)
}

// Reshape returns an array with identical elements and the given shape. The
// payload is shared, never copied.
func (a *Array) Reshape(s shape.Shape) (backend.Array, error) {
	if s.Size() != a.shp.Size() {
		return nil, fmt.Errorf("%w: cannot reshape %v into %v", shape.ErrShape, a.shp, s)
	}
	return &Array{dt: a.dt, shp: s.Clone(), data: a.data}, nil
}

// Take returns the sub-array at position i along the leading axis. The
// payload is shared with the receiver.
func (a *Array) Take(i int) (*Array, error) {
	if a.shp.Rank() == 0 {
		return nil, fmt.Errorf("%w: cannot take from scalar-shaped array", shape.ErrIndex)
	}
	n := a.shp[0]
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return nil, fmt.Errorf("%w: position %d out of range for axis of length %d", shape.ErrIndex, i, n)
	}
	sub := a.shp[1:].Clone()
	block := sub.Size() * a.dt.Size()
	return &Array{dt: a.dt, shp: sub, data: a.data[i*block : (i+1)*block]}, nil
}

// String renders a short description, not the element values.
func (a *Array) String() string {
	return fmt.Sprintf("native.Array(%v, shape=%v)", a.dt, a.shp)
}

// readFloat reads element i as float64, converting from any dtype.
func (a *Array) readFloat(i int) float64 {
	switch a.dt {
	case dtype.Bool:
		if a.data[i] != 0 {
			return 1
		}
		return 0
	case dtype.Int32:
		return float64(int32(leUint32(a.data[i*4:])))
	case dtype.Int64:
		return float64(int64(leUint64(a.data[i*8:])))
	case dtype.Float32:
		return float64(math.Float32frombits(leUint32(a.data[i*4:])))
	case dtype.Float64:
		return math.Float64frombits(leUint64(a.data[i*8:]))
	}
	return 0
}

// readInt reads element i as int64, truncating floats.
func (a *Array) readInt(i int) int64 {
	switch a.dt {
	case dtype.Bool:
		if a.data[i] != 0 {
			return 1
		}
		return 0
	case dtype.Int32:
		return int64(int32(leUint32(a.data[i*4:])))
	case dtype.Int64:
		return int64(leUint64(a.data[i*8:]))
	case dtype.Float32:
		return int64(math.Float32frombits(leUint32(a.data[i*4:])))
	case dtype.Float64:
		return int64(math.Float64frombits(leUint64(a.data[i*8:])))
	}
	return 0
}

// writeScalar writes one element into buf at position i according to dt.
func writeScalar(buf []byte, dt dtype.DType, i int, f float64, iv int64, isInt bool) {
	switch dt {
	case dtype.Bool:
		v := byte(0)
		if (isInt && iv != 0) || (!isInt && f != 0) {
			v = 1
		}
		buf[i] = v
	case dtype.Int32:
		if !isInt {
			iv = int64(f)
		}
		putLeUint32(buf[i*4:], uint32(int32(iv)))
	case dtype.Int64:
		if !isInt {
			iv = int64(f)
		}
		putLeUint64(buf[i*8:], uint64(iv))
	case dtype.Float32:
		if isInt {
			f = float64(iv)
		}
		putLeUint32(buf[i*4:], math.Float32bits(float32(f)))
	case dtype.Float64:
		if isInt {
			f = float64(iv)
		}
		putLeUint64(buf[i*8:], math.Float64bits(f))
	}
}

// convert returns the array re-typed to dt, element by element. Same-dtype
// conversion returns the receiver.
func (a *Array) convert(dt dtype.DType) (*Array, error) {
	dt, err := dtype.Normalize(dt)
	if err != nil {
		return nil, err
	}
	if dt == a.dt {
		return a, nil
	}
	n := a.shp.Size()
	out := make([]byte, n*dt.Size())
	srcInt := a.dt.IsInt() || a.dt == dtype.Bool
	for i := 0; i < n; i++ {
		if srcInt {
			writeScalar(out, dt, i, 0, a.readInt(i), true)
		} else {
			writeScalar(out, dt, i, a.readFloat(i), 0, false)
		}
	}
	return &Array{dt: dt, shp: a.shp.Clone(), data: out}, nil
}

// FromAny coerces an arbitrary value to a native array of the given dtype.
// Accepted inputs: an existing native array (dtype converted on mismatch),
// any value exposing Native() *Array, Go numeric scalars and bools, and
// arbitrarily nested slices or arrays of those (the shape is inferred by
// reflection; ragged nesting is rejected).
func FromAny(v any, dt dtype.DType) (*Array, error) {
	dt, err := dtype.Normalize(dt)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("native: cannot build array from nil")
	}
	// A typed-nil pointer is as empty as untyped nil and must not reach the
	// conversion methods.
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil, fmt.Errorf("native: cannot build array from nil %T", v)
	}
	switch src := v.(type) {
	case *Array:
		return src.convert(dt)
	case interface{ Native() *Array }:
		return src.Native().convert(dt)
	}

	rv := reflect.ValueOf(v)
	shp, err := inferShape(rv)
	if err != nil {
		return nil, err
	}
	out := make([]byte, shp.Size()*dt.Size())
	pos := 0
	if err := fillPayload(out, dt, rv, shp, 0, &pos); err != nil {
		return nil, err
	}
	return &Array{dt: dt, shp: shp, data: out}, nil
}

// MustFromAny is FromAny that panics on error. Intended for tests and
// literal construction.
func MustFromAny(v any, dt dtype.DType) *Array {
	a, err := FromAny(v, dt)
	if err != nil {
		panic(err)
	}
	return a
}

// FromFloat32s builds a Float32 array from a flat slice and an explicit
// shape.
func FromFloat32s(s shape.Shape, vals []float32) (*Array, error) {
	if len(vals) != s.Size() {
		return nil, fmt.Errorf("%w: %d values for shape %v", shape.ErrShape, len(vals), s)
	}
	data := make([]byte, len(vals)*4)
	for i, f := range vals {
		putLeUint32(data[i*4:], math.Float32bits(f))
	}
	return &Array{dt: dtype.Float32, shp: s.Clone(), data: data}, nil
}

// inferShape walks the nesting structure of rv to determine the array shape.
func inferShape(rv reflect.Value) (shape.Shape, error) {
	var shp shape.Shape
	for {
		for rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return nil, fmt.Errorf("native: nil value inside input")
			}
			rv = rv.Elem()
		}
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			shp = append(shp, rv.Len())
			if rv.Len() == 0 {
				return shp, nil
			}
			rv = rv.Index(0)
		case reflect.Bool,
			reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			return shp, nil
		default:
			return nil, fmt.Errorf("native: cannot build array from %s", rv.Kind())
		}
	}
}

// fillPayload writes the elements of rv into buf in row-major order,
// verifying the inferred shape at every level.
func fillPayload(buf []byte, dt dtype.DType, rv reflect.Value, shp shape.Shape, depth int, pos *int) error {
	for rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return fmt.Errorf("native: nil value inside input")
		}
		rv = rv.Elem()
	}
	if depth == len(shp) {
		switch rv.Kind() {
		case reflect.Bool:
			iv := int64(0)
			if rv.Bool() {
				iv = 1
			}
			writeScalar(buf, dt, *pos, 0, iv, true)
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			writeScalar(buf, dt, *pos, 0, rv.Int(), true)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			writeScalar(buf, dt, *pos, 0, int64(rv.Uint()), true)
		case reflect.Float32, reflect.Float64:
			writeScalar(buf, dt, *pos, rv.Float(), 0, false)
		default:
			return fmt.Errorf("native: expected scalar at depth %d, got %s", depth, rv.Kind())
		}
		*pos++
		return nil
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("native: ragged input: expected sequence at depth %d, got %s", depth, rv.Kind())
	}
	if rv.Len() != shp[depth] {
		return fmt.Errorf("native: ragged input: length %d at depth %d, want %d", rv.Len(), depth, shp[depth])
	}
	for i := 0; i < rv.Len(); i++ {
		if err := fillPayload(buf, dt, rv.Index(i), shp, depth+1, pos); err != nil {
			return err
		}
	}
	return nil
}

// Little-endian payload accessors shared by the kernels and the serializer.

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leUint64(b []byte) uint64 {
	return uint64(leUint32(b)) | uint64(leUint32(b[4:]))<<32
}

func putLeUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putLeUint64(b []byte, v uint64) {
	putLeUint32(b, uint32(v))
	putLeUint32(b[4:], uint32(v>>32))
}
