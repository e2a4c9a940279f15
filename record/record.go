// Package record implements batched dataclass arrays: user structs whose
// array fields share one leading batch shape and one array engine.
//
// A record type embeds Base and declares its array fields with struct tags:
//
//	type Square struct {
//	    record.Base
//	    Pos   backend.Array `sheaf:"shape=2"`
//	    Scale backend.Array `sheaf:"shape=()"`
//	}
//
//	sq, err := record.New(&Square{
//	    Pos:   native.MustFromAny([][]float32{{0, 0}, {1, 1}, {2, 2}}, dtype.Float32),
//	    Scale: native.MustFromAny([]float32{1, 2, 3}, dtype.Float32),
//	})
//	// sq.Shape() == (3,)
//
// Construction validates that every present field carries the declared
// trailing (inner) dimensions, that all fields agree on the remaining batch
// dimensions, and that all fields live on one engine. Every operation
// (Reshape, Index, BroadcastTo, Stack, Iterate, ...) rebuilds a fresh,
// revalidated record and applies uniformly to all fields; records are
// immutable once built.
//
// Key components:
//   - Base: per-instance cached batch shape, engine and bound fields
//   - New: the validating constructor
//   - Reshape/Flatten/BroadcastTo/Index/Iterate: batch-shape operations
//   - Stack: combine same-type records along a new leading axis
//   - MapField/AsEngine/ApplyTransform: per-field rewrites
//   - tree bridge: every constructed type participates in tree.Flatten
package record

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/sbl8/sheaf/backend"
	"github.com/sbl8/sheaf/shape"
	"github.com/sbl8/sheaf/tree"
)

// Record is implemented by every pointer to a struct embedding Base. Only
// this package can implement it directly; user types get it by embedding.
type Record interface {
	base() *Base
}

// New validates r in place and returns it. The value must be a non-nil
// pointer to a struct embedding Base; its array fields are coerced to their
// declared dtypes and written back, so the returned record holds exactly the
// arrays its accessors report. The type's tree flattener is registered on
// first success.
func New[T Record](r T) (T, error) {
	if err := finalize(r, false); err != nil {
		var zero T
		return zero, err
	}
	return r, nil
}

// MustNew is New that panics on error. Intended for tests and literals.
func MustNew[T Record](r T) T {
	out, err := New(r)
	if err != nil {
		panic(err)
	}
	return out
}

// finalize binds and validates every declared field of r and fills in its
// Base. With allowEmpty set, a record with no active field becomes a
// template instead of failing; only the tree bridge takes that path.
func finalize(r Record, allowEmpty bool) error {
	rv := reflect.ValueOf(r)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: record must be a non-nil struct pointer, got %T", ErrConstruction, r)
	}
	sch, err := schemaOf(rv.Type())
	if err != nil {
		return err
	}
	b := r.base()
	b.self = r
	b.sch = sch
	b.shp = nil
	b.eng = nil
	b.bound = make([]any, len(sch.fields))

	type activeField struct {
		name string
		host shape.Shape
		eng  backend.Engine
	}
	var actives []activeField

	elem := rv.Elem()
	for i, spec := range sch.fields {
		fv := elem.Field(spec.index)
		if fieldMissing(fv) {
			continue
		}
		if spec.nested {
			nested := fv.Interface().(Record)
			if err := finalize(nested, true); err != nil {
				return fmt.Errorf("field %s: %w", spec.name, err)
			}
			nb := nested.base()
			if nb.shp == nil {
				continue // nested template counts as missing
			}
			b.bound[i] = nested
			actives = append(actives, activeField{spec.name, nb.shp, nb.eng})
			continue
		}

		raw := fv.Interface().(backend.Array)
		eng := raw.Engine()
		arr, err := eng.AsArray(raw, spec.dt)
		if err != nil {
			return fmt.Errorf("field %s: %w", spec.name, err)
		}
		full := arr.Shape()
		hostRank := full.Rank() - spec.inner.Rank()
		if hostRank < 0 || !full[hostRank:].Equal(spec.inner) {
			return fmt.Errorf("%w: field %s has shape %v, want trailing dims %v",
				ErrShape, spec.name, full, spec.inner)
		}
		// One-time materialization: the coerced array replaces the raw
		// value so later reads see what the record validated.
		if reflect.TypeOf(arr).AssignableTo(fv.Type()) {
			fv.Set(reflect.ValueOf(arr))
		} else if arr != raw {
			return fmt.Errorf("%w: field %s of type %v cannot hold coerced %T",
				ErrTypeMismatch, spec.name, fv.Type(), arr)
		}
		host := make(shape.Shape, hostRank)
		copy(host, full[:hostRank])
		b.bound[i] = arr
		actives = append(actives, activeField{spec.name, host, eng})
	}

	if len(actives) == 0 {
		if !allowEmpty {
			return fmt.Errorf("%w: %s has no active array field", ErrConstruction, sch.typ.Name())
		}
		tree.Register(sch.ptr, flattener{sch: sch})
		return nil
	}

	eng := actives[0].eng
	for _, a := range actives[1:] {
		if a.eng != eng {
			parts := make([]string, len(actives))
			for i, a := range actives {
				parts[i] = fmt.Sprintf("%s=%s", a.name, a.eng.Name())
			}
			return fmt.Errorf("%w: conflicting engines: %s", ErrConstruction, strings.Join(parts, ", "))
		}
	}
	host := actives[0].host
	for _, a := range actives[1:] {
		if !a.host.Equal(host) {
			parts := make([]string, len(actives))
			for i, a := range actives {
				parts[i] = fmt.Sprintf("%s=%v", a.name, a.host)
			}
			return fmt.Errorf("%w: conflicting batch shapes: %s", ErrConstruction, strings.Join(parts, ", "))
		}
	}

	b.shp = host
	b.eng = eng
	tree.Register(sch.ptr, flattener{sch: sch})
	return nil
}

// fieldMissing reports whether a declared field holds no value. Interface
// fields wrapping a nil concrete pointer count as missing: the interface
// itself is non-nil, but there is no array behind it.
func fieldMissing(fv reflect.Value) bool {
	if fv.IsNil() {
		return true
	}
	if fv.Kind() == reflect.Interface {
		ev := fv.Elem()
		return ev.Kind() == reflect.Pointer && ev.IsNil()
	}
	return false
}
