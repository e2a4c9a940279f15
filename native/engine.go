package native

import (
	"fmt"
	"reflect"

	"github.com/sbl8/sheaf/backend"
	"github.com/sbl8/sheaf/dtype"
	"github.com/sbl8/sheaf/shape"
)

// Engine is the CPU array engine. Exactly one instance exists (Default);
// engine identity is pointer identity across the whole process.
type Engine struct{}

// Default is the process-wide native engine, registered at init time.
var Default = &Engine{}

func init() {
	backend.Register(Default)
}

// Name identifies the engine in error messages.
func (e *Engine) Name() string { return "native" }

// Owns reports whether v belongs to the native engine. Besides native
// arrays, the CPU engine claims raw Go numeric values and nested slices, so
// that untyped inputs default to it.
func (e *Engine) Owns(v any) bool {
	switch v.(type) {
	case *Array:
		return true
	case backend.Array:
		return false
	}
	rv := reflect.ValueOf(v)
	for {
		switch rv.Kind() {
		case reflect.Interface, reflect.Pointer:
			if rv.IsNil() {
				return false
			}
			rv = rv.Elem()
		case reflect.Slice, reflect.Array:
			if rv.Len() == 0 {
				return true
			}
			rv = rv.Index(0)
		case reflect.Bool,
			reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			return true
		default:
			return false
		}
	}
}

// AsArray coerces v to a native array of the given dtype.
func (e *Engine) AsArray(v any, dt dtype.DType) (backend.Array, error) {
	return FromAny(v, dt)
}

// Stack concatenates same-shape arrays along a new leading axis. Only axis 0
// is supported.
func (e *Engine) Stack(arrs []backend.Array, axis int) (backend.Array, error) {
	nats := make([]*Array, len(arrs))
	for i, a := range arrs {
		na, err := asNative(a)
		if err != nil {
			return nil, fmt.Errorf("native: stack input %d: %w", i, err)
		}
		nats[i] = na
	}
	return stack(nats, axis)
}

// BroadcastTo broadcasts a to the given full shape.
func (e *Engine) BroadcastTo(a backend.Array, s shape.Shape) (backend.Array, error) {
	na, err := asNative(a)
	if err != nil {
		return nil, err
	}
	return na.broadcastTo(s)
}

// asNative unwraps a backend array down to its native representation.
func asNative(a backend.Array) (*Array, error) {
	switch v := a.(type) {
	case nil:
		return nil, fmt.Errorf("native: nil array")
	case *Array:
		return v, nil
	case interface{ Native() *Array }:
		return v.Native(), nil
	default:
		return nil, fmt.Errorf("native: cannot use %s array from engine %q", a.DType(), a.Engine().Name())
	}
}
