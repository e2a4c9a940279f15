package record

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/sbl8/sheaf/backend"
	"github.com/sbl8/sheaf/dtype"
	"github.com/sbl8/sheaf/shape"
)

// Field declarations live in struct tags under the "sheaf" key:
//
//	Pos    backend.Array `sheaf:"shape=2"`            // inner shape (2,), float32
//	Mask   backend.Array `sheaf:"shape=(),dtype=bool"` // scalar inner shape
//	Corner *Point        `sheaf:"nested"`             // nested record
//
// Untagged fields are passive: carried verbatim through every rebuilding
// operation and through tree metadata, never treated as array data.
const tagKey = "sheaf"

// fieldSpec is one declared array field of a record type.
type fieldSpec struct {
	name   string
	index  int
	nested bool
	inner  shape.Shape // primitive fields only
	dt     dtype.DType // primitive fields only
}

// schema is the parsed declaration of one record type, built once per
// concrete type and cached for the life of the process.
type schema struct {
	typ     reflect.Type // the struct type
	ptr     reflect.Type // pointer to the struct type
	baseIdx int          // index of the embedded Base
	fields  []fieldSpec
	active  map[int]bool // struct field indices declared as array fields
}

var (
	baseType   = reflect.TypeOf(Base{})
	arrayType  = reflect.TypeOf((*backend.Array)(nil)).Elem()
	recordType = reflect.TypeOf((*Record)(nil)).Elem()
)

// schemaCache maps record pointer types to their parsed schema (or the
// definition error, which is as permanent as the type itself).
var schemaCache sync.Map

type schemaEntry struct {
	sch *schema
	err error
}

// schemaOf parses and caches the declaration of the record type behind pt,
// which must be a pointer to a struct embedding Base.
func schemaOf(pt reflect.Type) (*schema, error) {
	if e, ok := schemaCache.Load(pt); ok {
		entry := e.(schemaEntry)
		return entry.sch, entry.err
	}
	sch, err := buildSchema(pt)
	e, _ := schemaCache.LoadOrStore(pt, schemaEntry{sch: sch, err: err})
	entry := e.(schemaEntry)
	return entry.sch, entry.err
}

func buildSchema(pt reflect.Type) (*schema, error) {
	if pt.Kind() != reflect.Pointer || pt.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: record type must be a struct pointer, got %v", ErrDefinition, pt)
	}
	st := pt.Elem()
	sch := &schema{typ: st, ptr: pt, baseIdx: -1, active: map[int]bool{}}

	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if f.Anonymous && f.Type == baseType {
			sch.baseIdx = i
			continue
		}
		tag, ok := f.Tag.Lookup(tagKey)
		if !ok {
			continue // passive field
		}
		if f.PkgPath != "" {
			return nil, fmt.Errorf("%w: field %s: declared fields must be exported", ErrDefinition, f.Name)
		}
		spec, err := parseFieldTag(f, i, tag)
		if err != nil {
			return nil, err
		}
		sch.fields = append(sch.fields, spec)
		sch.active[i] = true
	}
	if sch.baseIdx < 0 {
		return nil, fmt.Errorf("%w: %v does not embed record.Base", ErrDefinition, st)
	}
	return sch, nil
}

func parseFieldTag(f reflect.StructField, idx int, tag string) (fieldSpec, error) {
	spec := fieldSpec{name: f.Name, index: idx, dt: dtype.Float32}
	hasShape := false

	for _, part := range strings.Split(tag, ",") {
		switch {
		case part == "nested":
			spec.nested = true
		case strings.HasPrefix(part, "shape="):
			inner, err := parseInnerShape(strings.TrimPrefix(part, "shape="))
			if err != nil {
				return spec, fmt.Errorf("%w: field %s: %v", ErrDefinition, f.Name, err)
			}
			spec.inner = inner
			hasShape = true
		case strings.HasPrefix(part, "dtype="):
			dt, err := dtype.Parse(strings.TrimPrefix(part, "dtype="))
			if err != nil {
				return spec, fmt.Errorf("%w: field %s: %v", ErrDefinition, f.Name, err)
			}
			if dt, err = dtype.Normalize(dt); err != nil {
				return spec, fmt.Errorf("%w: field %s: %v", ErrDefinition, f.Name, err)
			}
			spec.dt = dt
		default:
			return spec, fmt.Errorf("%w: field %s: unknown tag element %q", ErrDefinition, f.Name, part)
		}
	}

	if spec.nested {
		if hasShape {
			return spec, fmt.Errorf("%w: field %s: nested fields carry no shape", ErrDefinition, f.Name)
		}
		if f.Type.Kind() != reflect.Pointer || !f.Type.Implements(recordType) {
			return spec, fmt.Errorf("%w: field %s: nested field must be a record pointer, got %v",
				ErrDefinition, f.Name, f.Type)
		}
		return spec, nil
	}
	if !hasShape {
		return spec, fmt.Errorf("%w: field %s: array field needs a shape= declaration", ErrDefinition, f.Name)
	}
	if k := f.Type.Kind(); k != reflect.Interface && k != reflect.Pointer {
		return spec, fmt.Errorf("%w: field %s: array field must be nilable, got %v", ErrDefinition, f.Name, f.Type)
	}
	if f.Type != arrayType && !f.Type.Implements(arrayType) {
		return spec, fmt.Errorf("%w: field %s: type %v is not a backend array", ErrDefinition, f.Name, f.Type)
	}
	return spec, nil
}

// parseInnerShape reads a shape declaration: "()" for scalar, "3" for one
// axis, "2x3" for several. Dimensions must be non-negative.
func parseInnerShape(s string) (shape.Shape, error) {
	if s == "()" {
		return shape.Shape{}, nil
	}
	if s == "" {
		return nil, fmt.Errorf("empty shape declaration")
	}
	parts := strings.Split(s, "x")
	out := make(shape.Shape, len(parts))
	for i, p := range parts {
		d, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("bad dimension %q", p)
		}
		if d < 0 {
			return nil, fmt.Errorf("negative dimension %d", d)
		}
		out[i] = d
	}
	return out, nil
}
