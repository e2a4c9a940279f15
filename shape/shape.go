// Package shape provides batch-shape arithmetic and index-expression
// normalization for array records.
//
// A Shape is an ordered list of non-negative dimensions. The empty shape ()
// denotes an unbatched value with exactly one element, following the scalar
// convention. Shapes are value types: every operation returns a fresh slice
// and never aliases its input.
package shape

import (
	"errors"
	"fmt"
	"strings"
)

// Shape is an ordered sequence of dimensions. A nil Shape and an empty
// Shape both denote the scalar shape ().
type Shape []int

// ErrShape reports an impossible shape computation, such as a reshape whose
// element counts cannot match.
var ErrShape = errors.New("shape: invalid shape")

// Rank returns the number of dimensions.
func (s Shape) Rank() int { return len(s) }

// Size returns the product of all dimensions. The scalar shape () has size
// one; any zero dimension makes the size zero.
func (s Shape) Size() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Equal reports whether two shapes have identical dimensions. Nil and empty
// shapes compare equal.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i, d := range s {
		if d != o[i] {
			return false
		}
	}
	return true
}

// Concat returns s followed by inner as a new shape.
func (s Shape) Concat(inner Shape) Shape {
	out := make(Shape, 0, len(s)+len(inner))
	out = append(out, s...)
	out = append(out, inner...)
	return out
}

// Clone returns an independent copy of s.
func (s Shape) Clone() Shape {
	if s == nil {
		return nil
	}
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

// String renders the shape in tuple form, e.g. "(3, 2)" or "()".
func (s Shape) String() string {
	if len(s) == 0 {
		return "()"
	}
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = fmt.Sprintf("%d", d)
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Resolve materializes a reshape target against a known element count.
// At most one dimension may be -1; it is inferred so that the total size
// matches. Any other negative dimension, more than one -1, or a size
// mismatch is an error.
func Resolve(target Shape, size int) (Shape, error) {
	out := target.Clone()
	infer := -1
	known := 1
	for i, d := range out {
		switch {
		case d == -1:
			if infer >= 0 {
				return nil, fmt.Errorf("%w: more than one -1 in %v", ErrShape, target)
			}
			infer = i
		case d < 0:
			return nil, fmt.Errorf("%w: negative dimension %d in %v", ErrShape, d, target)
		default:
			known *= d
		}
	}
	if infer < 0 {
		if known != size {
			return nil, fmt.Errorf("%w: cannot reshape %d elements into %v", ErrShape, size, target)
		}
		return out, nil
	}
	if known == 0 {
		if size != 0 {
			return nil, fmt.Errorf("%w: cannot reshape %d elements into %v", ErrShape, size, target)
		}
		out[infer] = 0
		return out, nil
	}
	if size%known != 0 {
		return nil, fmt.Errorf("%w: cannot reshape %d elements into %v", ErrShape, size, target)
	}
	out[infer] = size / known
	return out, nil
}
