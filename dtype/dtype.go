// Package dtype defines the element type system shared by every array engine.
//
// A DType names the primitive element type of one array field. Two category
// aliases exist for declarations: Int resolves to Int32 and Float resolves to
// Float32, so a field declared simply as "int" or "float" always materializes
// with a concrete 32-bit type. Unsupported categories are rejected when the
// declaring record type is first seen, before any instance exists.
package dtype

import (
	"errors"
	"fmt"
)

// DType identifies a primitive element type.
type DType uint8

const (
	// Invalid is the zero value; it never passes Normalize.
	Invalid DType = iota

	Bool
	Int32
	Int64
	Float32
	Float64

	// Int is the integer-category alias; Normalize resolves it to Int32.
	Int
	// Float is the floating-category alias; Normalize resolves it to Float32.
	Float
)

// ErrUnsupported reports a dtype whose category has no array representation.
var ErrUnsupported = errors.New("dtype: unsupported element type")

// Normalize resolves category aliases to their concrete 32-bit types and
// rejects anything outside the supported set.
func Normalize(dt DType) (DType, error) {
	switch dt {
	case Bool, Int32, Int64, Float32, Float64:
		return dt, nil
	case Int:
		return Int32, nil
	case Float:
		return Float32, nil
	default:
		return Invalid, fmt.Errorf("%w: %v", ErrUnsupported, dt)
	}
}

// Size returns the byte width of one element.
func (dt DType) Size() int {
	switch dt {
	case Bool:
		return 1
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	default:
		return 0
	}
}

// IsFloat reports whether dt is a floating-point type.
func (dt DType) IsFloat() bool {
	return dt == Float32 || dt == Float64 || dt == Float
}

// IsInt reports whether dt is an integer type.
func (dt DType) IsInt() bool {
	return dt == Int32 || dt == Int64 || dt == Int
}

func (dt DType) String() string {
	switch dt {
	case Bool:
		return "bool"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int:
		return "int"
	case Float:
		return "float"
	default:
		return fmt.Sprintf("dtype(%d)", uint8(dt))
	}
}

// Parse maps a declaration string (as written in struct tags) to a DType.
// Category aliases are accepted and normalized by the caller.
func Parse(s string) (DType, error) {
	switch s {
	case "bool":
		return Bool, nil
	case "int32":
		return Int32, nil
	case "int64":
		return Int64, nil
	case "float32":
		return Float32, nil
	case "float64":
		return Float64, nil
	case "int":
		return Int, nil
	case "float":
		return Float, nil
	default:
		return Invalid, fmt.Errorf("%w: %q", ErrUnsupported, s)
	}
}
