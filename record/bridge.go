package record

import (
	"fmt"
	"reflect"

	"github.com/sbl8/sheaf/tree"
)

// flattener bridges record types into the tree package. Leaves are the raw
// values of every declared field in declaration order, nil placeholders
// included; passive fields travel as metadata. Unflattening rebuilds through
// the constructor but tolerates all-nil leaf lists, which produce empty
// templates.
type flattener struct {
	sch *schema
}

func (f flattener) Flatten(v any) ([]any, tree.Meta, error) {
	rv := reflect.ValueOf(v)
	if rv.Type() != f.sch.ptr || rv.IsNil() {
		return nil, tree.Meta{}, fmt.Errorf("%w: expected %v, got %T", ErrTypeMismatch, f.sch.ptr, v)
	}
	elem := rv.Elem()

	leaves := make([]any, len(f.sch.fields))
	names := make([]string, len(f.sch.fields))
	for i, spec := range f.sch.fields {
		names[i] = spec.name
		fv := elem.Field(spec.index)
		if fieldMissing(fv) {
			continue
		}
		leaves[i] = fv.Interface()
	}

	extras := map[string]any{}
	for i := 0; i < elem.NumField(); i++ {
		if i == f.sch.baseIdx || f.sch.active[i] || !elem.Field(i).CanInterface() {
			continue
		}
		extras[f.sch.typ.Field(i).Name] = elem.Field(i).Interface()
	}
	return leaves, tree.Meta{Type: f.sch.ptr, Fields: names, Extras: extras}, nil
}

func (f flattener) Unflatten(meta tree.Meta, leaves []any) (any, error) {
	if len(leaves) != len(f.sch.fields) {
		return nil, fmt.Errorf("%w: %v declares %d fields, got %d leaves",
			ErrTypeMismatch, f.sch.ptr, len(f.sch.fields), len(leaves))
	}
	rv := reflect.New(f.sch.typ)
	elem := rv.Elem()
	for name, val := range meta.Extras {
		sf, ok := f.sch.typ.FieldByName(name)
		if !ok || val == nil {
			continue
		}
		elem.FieldByIndex(sf.Index).Set(reflect.ValueOf(val))
	}
	for i, spec := range f.sch.fields {
		if leaves[i] == nil {
			continue
		}
		elem.Field(spec.index).Set(reflect.ValueOf(leaves[i]))
	}
	rec := rv.Interface().(Record)
	if err := finalize(rec, true); err != nil {
		return nil, err
	}
	return rec, nil
}
