// Package backend defines the contract between array records and the numeric
// engines that own their field data.
//
// An Engine supplies array creation, stacking and broadcasting for one array
// implementation; an Array is one value owned by exactly one engine. Engine
// identity is pointer identity of the registered Engine and is what the
// record core compares when it enforces that all fields of one record live
// on the same engine.
//
// Engines register themselves in a process-wide registry (typically from an
// init function) so that raw Go values can be attributed to their owning
// engine via Infer.
package backend

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sbl8/sheaf/dtype"
	"github.com/sbl8/sheaf/shape"
)

// Array is one immutable array value owned by an Engine. Shape-altering
// methods return new arrays and never mutate the receiver.
type Array interface {
	// Engine returns the owning engine.
	Engine() Engine

	// DType returns the element type.
	DType() dtype.DType

	// Shape returns the full shape (batch dims followed by inner dims).
	Shape() shape.Shape

	// Reshape returns an array with the same elements and the given shape.
	// The target must already be resolved (no -1 placeholder).
	Reshape(s shape.Shape) (Array, error)

	// Index applies an already-normalized index expression to the leading
	// axes and returns the selected sub-array.
	Index(items []shape.Item) (Array, error)

	// Equal reports element-wise equality with another array of the same
	// engine, dtype and shape.
	Equal(o Array) bool
}

// Engine is one interchangeable array implementation.
type Engine interface {
	// Name identifies the engine in error messages.
	Name() string

	// Owns reports whether v is a value belonging to this engine.
	Owns(v any) bool

	// AsArray coerces an arbitrary value to an array of the given dtype.
	AsArray(v any, dt dtype.DType) (Array, error)

	// Stack concatenates same-shape arrays along a new leading axis.
	// Only axis 0 is supported.
	Stack(arrs []Array, axis int) (Array, error)

	// BroadcastTo broadcasts an array to the given full shape.
	BroadcastTo(a Array, s shape.Shape) (Array, error)
}

// ErrNoEngine reports a value no registered engine claims.
var ErrNoEngine = errors.New("backend: no engine owns value")

var registry struct {
	mu      sync.RWMutex
	engines []Engine
}

// Register adds an engine to the process-wide registry. Registering the same
// engine twice is a no-op; engines are probed by Infer in registration order.
func Register(e Engine) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	for _, got := range registry.engines {
		if got == e {
			return
		}
	}
	registry.engines = append(registry.engines, e)
}

// Engines returns a snapshot of the registered engines.
func Engines() []Engine {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	out := make([]Engine, len(registry.engines))
	copy(out, registry.engines)
	return out
}

// Infer returns the engine that owns v. Arrays report their engine directly;
// other values are probed against the registry in registration order.
func Infer(v any) (Engine, bool) {
	if a, ok := v.(Array); ok {
		return a.Engine(), true
	}
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	for _, e := range registry.engines {
		if e.Owns(v) {
			return e, true
		}
	}
	return nil, false
}

// MustInfer is Infer for values known to belong to an engine; it panics with
// a descriptive message otherwise. Intended for tests and examples.
func MustInfer(v any) Engine {
	e, ok := Infer(v)
	if !ok {
		panic(fmt.Sprintf("backend: no engine owns %T", v))
	}
	return e
}
