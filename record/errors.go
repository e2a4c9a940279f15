package record

import "errors"

// Sentinel errors for the record core. Every error returned by this package
// wraps exactly one of these (or a sentinel from the shape package) so that
// callers can classify failures with errors.Is.
var (
	// ErrDefinition reports a malformed field declaration: a bad struct
	// tag, an unsupported field type or a missing embedded Base.
	ErrDefinition = errors.New("record: invalid field definition")

	// ErrConstruction reports an invalid record: no active array field,
	// or active fields that disagree on engine or batch shape.
	ErrConstruction = errors.New("record: invalid construction")

	// ErrShape reports a field value whose trailing dimensions do not
	// match the declared inner shape.
	ErrShape = errors.New("record: field shape mismatch")

	// ErrTypeMismatch reports a value of the wrong concrete type, such as
	// stacking records of different types.
	ErrTypeMismatch = errors.New("record: type mismatch")

	// ErrNotSupported reports an operation outside the supported surface,
	// such as stacking along a non-zero axis.
	ErrNotSupported = errors.New("record: operation not supported")

	// ErrAmbiguous reports a truth-value query on a record whose leading
	// batch dimension is zero.
	ErrAmbiguous = errors.New("record: ambiguous truth value")

	// ErrEngineMismatch reports a value owned by a different engine than
	// the record's.
	ErrEngineMismatch = errors.New("record: engine mismatch")
)
