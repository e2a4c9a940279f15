package record

import (
	"fmt"

	"github.com/sbl8/sheaf/backend"
	"github.com/sbl8/sheaf/shape"
)

// Base carries the validated state of a record: its batch shape, its owning
// engine and the bound field values. User types embed Base and gain both the
// accessors below and membership in the Record interface.
//
// A zero Base is unbound; New (or the tree bridge) fills it in. A bound Base
// with a nil batch shape is a template: a record rebuilt from an all-nil
// leaf list, useful as a structural placeholder but rejected by every
// shape-dependent operation.
type Base struct {
	self  any
	sch   *schema
	shp   shape.Shape
	eng   backend.Engine
	bound []any
}

func (b *Base) base() *Base { return b }

// require rejects records that never went through construction and empty
// templates.
func (b *Base) require() error {
	if b.sch == nil {
		return fmt.Errorf("%w: record was not built with New", ErrConstruction)
	}
	if b.shp == nil {
		return fmt.Errorf("%w: record is an empty template with no array data", ErrConstruction)
	}
	return nil
}

// Shape returns the batch shape shared by every active field. Templates
// return nil.
func (b *Base) Shape() shape.Shape { return b.shp.Clone() }

// Rank returns the number of batch dimensions.
func (b *Base) Rank() int { return b.shp.Rank() }

// Size returns the total number of batched elements; unbatched records have
// size one.
func (b *Base) Size() int { return b.shp.Size() }

// Engine returns the engine owning every active field, or nil for templates.
func (b *Base) Engine() backend.Engine { return b.eng }

// Len returns the length of the leading batch dimension. Unbatched records
// have no length.
func (b *Base) Len() (int, error) {
	if err := b.require(); err != nil {
		return 0, err
	}
	if b.shp.Rank() == 0 {
		return 0, fmt.Errorf("%w: len() of unbatched %s", ErrNotSupported, b.sch.typ.Name())
	}
	return b.shp[0], nil
}

// Truthy reports whether the record is non-empty. Batched records with a
// zero-length leading dimension have no defined truth value.
func (b *Base) Truthy() (bool, error) {
	if err := b.require(); err != nil {
		return false, err
	}
	if b.shp.Rank() > 0 && b.shp[0] == 0 {
		return false, fmt.Errorf("%w: %s has a zero-length leading dimension", ErrAmbiguous, b.sch.typ.Name())
	}
	return true, nil
}

// AssertSameEngine verifies that v belongs to the record's engine.
func (b *Base) AssertSameEngine(v any) error {
	if err := b.require(); err != nil {
		return err
	}
	eng, ok := backend.Infer(v)
	if !ok {
		return fmt.Errorf("%w: no engine owns %T", ErrEngineMismatch, v)
	}
	if eng != b.eng {
		return fmt.Errorf("%w: record is on %q, value is on %q", ErrEngineMismatch, b.eng.Name(), eng.Name())
	}
	return nil
}

// String renders a short description, e.g. "Square(shape=(3,), engine=native)".
func (b *Base) String() string {
	if b.sch == nil {
		return "record(unbound)"
	}
	if b.shp == nil {
		return fmt.Sprintf("%s(template)", b.sch.typ.Name())
	}
	return fmt.Sprintf("%s(shape=%v, engine=%s)", b.sch.typ.Name(), b.shp, b.eng.Name())
}
