package record

import (
	"fmt"
	"reflect"

	"github.com/sbl8/sheaf/backend"
)

// Stack combines same-type records along a new leading batch axis. Only
// axis 0 is supported. The first record decides which fields participate: a
// field missing from it stays missing in the result, and a field it carries
// must be present in every other record.
func Stack[T Record](rs []T, axis int) (T, error) {
	recs := make([]Record, len(rs))
	for i, r := range rs {
		recs[i] = r
	}
	return cast[T](stackAny(recs, axis))
}

func stackAny(rs []Record, axis int) (Record, error) {
	if axis != 0 {
		return nil, fmt.Errorf("%w: stacking along axis %d", ErrNotSupported, axis)
	}
	if len(rs) == 0 {
		return nil, fmt.Errorf("%w: cannot stack zero records", ErrConstruction)
	}
	first := rs[0]
	b := first.base()
	if err := b.require(); err != nil {
		return nil, err
	}
	for _, r := range rs[1:] {
		if reflect.TypeOf(r) != reflect.TypeOf(first) {
			return nil, fmt.Errorf("%w: cannot stack %T with %T", ErrTypeMismatch, first, r)
		}
		if err := r.base().require(); err != nil {
			return nil, err
		}
	}

	vals := make([]any, len(b.sch.fields))
	for i, spec := range b.sch.fields {
		if b.bound[i] == nil {
			continue
		}
		if spec.nested {
			subs := make([]Record, len(rs))
			for j, r := range rs {
				bv := r.base().bound[i]
				if bv == nil {
					return nil, fmt.Errorf("%w: field %s missing from record %d", ErrConstruction, spec.name, j)
				}
				subs[j] = bv.(Record)
			}
			out, err := stackAny(subs, 0)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", spec.name, err)
			}
			vals[i] = out
			continue
		}
		arrs := make([]backend.Array, len(rs))
		for j, r := range rs {
			bv := r.base().bound[i]
			if bv == nil {
				return nil, fmt.Errorf("%w: field %s missing from record %d", ErrConstruction, spec.name, j)
			}
			arrs[j] = bv.(backend.Array)
		}
		out, err := b.eng.Stack(arrs, 0)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", spec.name, err)
		}
		vals[i] = out
	}
	return rebuildFrom(b, vals, false)
}
