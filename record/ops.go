package record

import (
	"fmt"
	"iter"
	"reflect"

	"github.com/sbl8/sheaf/backend"
	"github.com/sbl8/sheaf/native"
	"github.com/sbl8/sheaf/shape"
	"github.com/sbl8/sheaf/trace"
)

// The exported operations are thin generic wrappers over non-generic
// internals, so nested records (held as the Record interface) recurse
// through the same code paths.

func cast[T Record](r Record, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	return r.(T), nil
}

// rebuildFrom clones the record behind b, installs the given per-field
// values (nil clears a field) and validates the clone as a fresh record.
// Passive fields are carried over by the struct copy.
func rebuildFrom(b *Base, vals []any, allowEmpty bool) (Record, error) {
	rv := reflect.New(b.sch.typ)
	rv.Elem().Set(reflect.ValueOf(b.self).Elem())
	rv.Elem().Field(b.sch.baseIdx).Set(reflect.Zero(baseType))
	for i, spec := range b.sch.fields {
		fv := rv.Elem().Field(spec.index)
		if vals[i] == nil {
			fv.Set(reflect.Zero(fv.Type()))
			continue
		}
		fv.Set(reflect.ValueOf(vals[i]))
	}
	rec := rv.Interface().(Record)
	if err := finalize(rec, allowEmpty); err != nil {
		return nil, err
	}
	return rec, nil
}

// mapBound rebuilds r with every active field passed through prim (arrays)
// or nested (sub-records). Missing fields stay missing.
func mapBound(r Record,
	prim func(spec fieldSpec, a backend.Array) (backend.Array, error),
	nested func(spec fieldSpec, n Record) (Record, error)) (Record, error) {
	b := r.base()
	if err := b.require(); err != nil {
		return nil, err
	}
	vals := make([]any, len(b.sch.fields))
	for i, spec := range b.sch.fields {
		bv := b.bound[i]
		if bv == nil {
			continue
		}
		if spec.nested {
			out, err := nested(spec, bv.(Record))
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", spec.name, err)
			}
			vals[i] = out
			continue
		}
		out, err := prim(spec, bv.(backend.Array))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", spec.name, err)
		}
		vals[i] = out
	}
	return rebuildFrom(b, vals, false)
}

// Reshape returns a record with the batch shape changed to target, which may
// contain a single -1 placeholder. Inner dimensions are untouched.
func Reshape[T Record](r T, target shape.Shape) (T, error) {
	return cast[T](reshapeAny(r, target))
}

func reshapeAny(r Record, target shape.Shape) (Record, error) {
	b := r.base()
	if err := b.require(); err != nil {
		return nil, err
	}
	resolved, err := shape.Resolve(target, b.shp.Size())
	if err != nil {
		return nil, err
	}
	return mapBound(r,
		func(spec fieldSpec, a backend.Array) (backend.Array, error) {
			return a.Reshape(resolved.Concat(spec.inner))
		},
		func(spec fieldSpec, n Record) (Record, error) {
			return reshapeAny(n, resolved)
		})
}

// ReshapePattern is reserved for einops-style string patterns and always
// returns ErrNotSupported.
func ReshapePattern[T Record](r T, pattern string) (T, error) {
	var zero T
	return zero, fmt.Errorf("%w: pattern reshape %q", ErrNotSupported, pattern)
}

// Flatten collapses all batch dimensions into one.
func Flatten[T Record](r T) (T, error) {
	return Reshape(r, shape.Shape{-1})
}

// BroadcastTo broadcasts every field to the given batch shape.
func BroadcastTo[T Record](r T, target shape.Shape) (T, error) {
	return cast[T](broadcastAny(r, target))
}

func broadcastAny(r Record, target shape.Shape) (Record, error) {
	b := r.base()
	if err := b.require(); err != nil {
		return nil, err
	}
	return mapBound(r,
		func(spec fieldSpec, a backend.Array) (backend.Array, error) {
			return b.eng.BroadcastTo(a, target.Concat(spec.inner))
		},
		func(spec fieldSpec, n Record) (Record, error) {
			return broadcastAny(n, target)
		})
}

// Index applies an index expression to the batch dimensions of every field.
// Expressions support positions, spans, a single ellipsis and new axes; see
// the shape package for the item constructors.
func Index[T Record](r T, items ...shape.Item) (T, error) {
	return cast[T](indexAny(r, items))
}

func indexAny(r Record, items []shape.Item) (Record, error) {
	b := r.base()
	if err := b.require(); err != nil {
		return nil, err
	}
	normalized, err := shape.NormalizeIndex(items, b.shp)
	if err != nil {
		return nil, err
	}
	return indexNormalized(r, normalized)
}

func indexNormalized(r Record, items []shape.Item) (Record, error) {
	return mapBound(r,
		func(spec fieldSpec, a backend.Array) (backend.Array, error) {
			return a.Index(items)
		},
		func(spec fieldSpec, n Record) (Record, error) {
			// Nested records share the outer batch shape, so the
			// normalized expression applies verbatim.
			return indexNormalized(n, items)
		})
}

// Iterate returns a restartable sequence over the leading batch dimension;
// element i is Index(r, At(i)). Unbatched records cannot be iterated.
func Iterate[T Record](r T) (iter.Seq[T], error) {
	b := r.base()
	if err := b.require(); err != nil {
		return nil, err
	}
	if b.shp.Rank() == 0 {
		return nil, fmt.Errorf("%w: iteration over unbatched %s", ErrNotSupported, b.sch.typ.Name())
	}
	n := b.shp[0]
	return func(yield func(T) bool) {
		for i := 0; i < n; i++ {
			el, err := Index(r, shape.At(i))
			if err != nil {
				// Unreachable for 0 <= i < n once validation above
				// passed; a silent truncation would hide the bug.
				panic(fmt.Sprintf("record: iterate element %d of %s: %v", i, b, err))
			}
			if !yield(el) {
				return
			}
		}
	}, nil
}

// MapField rebuilds r with fn applied to every active array field. Nested
// fields recurse; their leaves are reported with dotted names like
// "Corner.Pos".
func MapField[T Record](r T, fn func(name string, a backend.Array) (backend.Array, error)) (T, error) {
	return cast[T](mapFieldAny(r, "", fn))
}

func mapFieldAny(r Record, prefix string, fn func(name string, a backend.Array) (backend.Array, error)) (Record, error) {
	return mapBound(r,
		func(spec fieldSpec, a backend.Array) (backend.Array, error) {
			return fn(prefix+spec.name, a)
		},
		func(spec fieldSpec, n Record) (Record, error) {
			return mapFieldAny(n, prefix+spec.name+".", fn)
		})
}

// AsEngine moves every field of r onto the given engine, preserving dtypes.
func AsEngine[T Record](r T, eng backend.Engine) (T, error) {
	return cast[T](asEngineAny(r, eng))
}

func asEngineAny(r Record, eng backend.Engine) (Record, error) {
	return mapBound(r,
		func(spec fieldSpec, a backend.Array) (backend.Array, error) {
			return eng.AsArray(a, a.DType())
		},
		func(spec fieldSpec, n Record) (Record, error) {
			return asEngineAny(n, eng)
		})
}

// AsNative moves the record onto the native CPU engine.
func AsNative[T Record](r T) (T, error) { return AsEngine(r, native.Default) }

// AsTrace moves the record onto the default trace engine.
func AsTrace[T Record](r T) (T, error) { return AsEngine(r, trace.Default) }

// Transformable is the override hook for geometric transforms. Record types
// that support ApplyTransform implement it; everything else rejects
// transforms with ErrNotSupported.
type Transformable interface {
	Record
	ApplyTransform(tr any) (Record, error)
}

// ApplyTransform dispatches to the record's Transformable implementation.
func ApplyTransform[T Record](r T, tr any) (T, error) {
	impl, ok := any(r).(Transformable)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %T does not implement Transformable", ErrNotSupported, r)
	}
	return cast[T](impl.ApplyTransform(tr))
}

// Equal reports whether two records have the same type, batch shape, engine,
// field values and passive fields. Intended as a test helper.
func Equal(a, b Record) bool {
	ba, bb := a.base(), b.base()
	if ba.sch == nil || ba.sch != bb.sch {
		return false
	}
	if (ba.shp == nil) != (bb.shp == nil) || !ba.shp.Equal(bb.shp) {
		return false
	}
	if ba.eng != bb.eng {
		return false
	}
	for i, spec := range ba.sch.fields {
		x, y := ba.bound[i], bb.bound[i]
		if (x == nil) != (y == nil) {
			return false
		}
		if x == nil {
			continue
		}
		if spec.nested {
			if !Equal(x.(Record), y.(Record)) {
				return false
			}
			continue
		}
		if !x.(backend.Array).Equal(y.(backend.Array)) {
			return false
		}
	}
	// Passive fields ride along on every rebuild; compare them too.
	va := reflect.ValueOf(ba.self).Elem()
	vb := reflect.ValueOf(bb.self).Elem()
	for i := 0; i < va.NumField(); i++ {
		if i == ba.sch.baseIdx || ba.sch.active[i] || !va.Field(i).CanInterface() {
			continue
		}
		if !reflect.DeepEqual(va.Field(i).Interface(), vb.Field(i).Interface()) {
			return false
		}
	}
	return true
}
