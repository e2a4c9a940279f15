// Package trace provides a recording array engine.
//
// A trace engine wraps the native CPU engine: every array operation routed
// through it delegates to native and appends one line to an op log. The log
// is useful in tests that need to observe which engine handled a value and
// which operations a record rebuild actually performed.
//
// Default is registered in the backend registry at init time. New creates
// additional unregistered engines with isolated logs.
package trace

import (
	"fmt"
	"sync"

	"github.com/sbl8/sheaf/backend"
	"github.com/sbl8/sheaf/dtype"
	"github.com/sbl8/sheaf/native"
	"github.com/sbl8/sheaf/shape"
)

// Engine records every operation it performs on behalf of its arrays.
// Engine identity is pointer identity, as with all backend engines.
type Engine struct {
	mu  sync.Mutex
	log []string
}

// Default is the process-wide trace engine, registered at init time.
var Default = New()

func init() {
	backend.Register(Default)
}

// New returns a fresh trace engine with an empty log. Engines created here
// are not added to the backend registry.
func New() *Engine { return &Engine{} }

// Name identifies the engine in error messages.
func (e *Engine) Name() string { return "trace" }

// Owns reports whether v is an array produced by this engine. Raw Go values
// are never claimed; they stay with the native engine.
func (e *Engine) Owns(v any) bool {
	a, ok := v.(*Array)
	return ok && a.eng == e
}

// AsArray coerces v through the native engine and wraps the result.
func (e *Engine) AsArray(v any, dt dtype.DType) (backend.Array, error) {
	na, err := native.FromAny(v, dt)
	if err != nil {
		return nil, err
	}
	e.record("as_array dtype=%v shape=%v", na.DType(), na.Shape())
	return &Array{eng: e, a: na}, nil
}

// Stack concatenates same-shape arrays along a new leading axis.
func (e *Engine) Stack(arrs []backend.Array, axis int) (backend.Array, error) {
	out, err := native.Default.Stack(arrs, axis)
	if err != nil {
		return nil, err
	}
	e.record("stack n=%d axis=%d", len(arrs), axis)
	return &Array{eng: e, a: out.(*native.Array)}, nil
}

// BroadcastTo broadcasts a to the given full shape.
func (e *Engine) BroadcastTo(a backend.Array, s shape.Shape) (backend.Array, error) {
	out, err := native.Default.BroadcastTo(a, s)
	if err != nil {
		return nil, err
	}
	e.record("broadcast_to %v", s)
	return &Array{eng: e, a: out.(*native.Array)}, nil
}

// Wrap adopts a native array into this engine without recording anything.
func (e *Engine) Wrap(na *native.Array) *Array {
	return &Array{eng: e, a: na}
}

// Log returns a snapshot of the recorded operations in order.
func (e *Engine) Log() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.log))
	copy(out, e.log)
	return out
}

// Reset clears the op log.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = e.log[:0]
}

func (e *Engine) record(format string, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = append(e.log, fmt.Sprintf(format, args...))
}

// Array is a native array adopted by a trace engine. All shape-altering
// methods delegate to the underlying native array and record one log line.
type Array struct {
	eng *Engine
	a   *native.Array
}

// Engine returns the owning trace engine.
func (a *Array) Engine() backend.Engine { return a.eng }

// Native returns the underlying native array.
func (a *Array) Native() *native.Array { return a.a }

// DType returns the element type.
func (a *Array) DType() dtype.DType { return a.a.DType() }

// Shape returns the full shape.
func (a *Array) Shape() shape.Shape { return a.a.Shape() }

// Reshape returns an array with the same elements and the given shape.
func (a *Array) Reshape(s shape.Shape) (backend.Array, error) {
	out, err := a.a.Reshape(s)
	if err != nil {
		return nil, err
	}
	a.eng.record("reshape %v -> %v", a.a.Shape(), s)
	return &Array{eng: a.eng, a: out.(*native.Array)}, nil
}

// Index applies an already-normalized index expression to the leading axes.
func (a *Array) Index(items []shape.Item) (backend.Array, error) {
	out, err := a.a.Index(items)
	if err != nil {
		return nil, err
	}
	a.eng.record("index %v -> %v", a.a.Shape(), out.Shape())
	return &Array{eng: a.eng, a: out.(*native.Array)}, nil
}

// Equal reports element-wise equality; the wrapper is transparent, so a
// trace array equals the native array it wraps.
func (a *Array) Equal(o backend.Array) bool {
	return a.a.Equal(o)
}
