package shape

import (
	"errors"
	"fmt"
)

// ErrIndex reports an invalid index expression: more than one ellipsis, or
// more consuming items than the batch shape has axes.
var ErrIndex = errors.New("shape: invalid index")

// Item is one element of an index expression. Items are built with At, Span,
// SpanStep, All, NewAxis and Ellipsis and applied by the array engines.
type Item interface {
	isItem()
	String() string
}

// AtItem selects a single position along one axis, consuming it. Negative
// values count from the end of the axis.
type AtItem struct{ Pos int }

// SpanItem selects a half-open range along one axis, keeping the axis.
// Unset bounds cover the whole axis; Step defaults to one. Negative bounds
// count from the end of the axis.
type SpanItem struct {
	Start, Stop, Step int
	HasStart, HasStop bool
}

// NewAxisItem inserts a new length-one axis without consuming any input axis.
type NewAxisItem struct{}

// EllipsisItem expands to as many full spans as needed to cover the
// remaining batch axes. At most one may appear in an expression.
type EllipsisItem struct{}

func (AtItem) isItem()       {}
func (SpanItem) isItem()     {}
func (NewAxisItem) isItem()  {}
func (EllipsisItem) isItem() {}

func (it AtItem) String() string { return fmt.Sprintf("%d", it.Pos) }

func (it SpanItem) String() string {
	start, stop := "", ""
	if it.HasStart {
		start = fmt.Sprintf("%d", it.Start)
	}
	if it.HasStop {
		stop = fmt.Sprintf("%d", it.Stop)
	}
	if it.Step != 1 {
		return fmt.Sprintf("%s:%s:%d", start, stop, it.Step)
	}
	return start + ":" + stop
}

func (NewAxisItem) String() string  { return "newaxis" }
func (EllipsisItem) String() string { return "..." }

// At selects position i along one axis.
func At(i int) Item { return AtItem{Pos: i} }

// Span selects the half-open range [start, stop) along one axis.
func Span(start, stop int) Item {
	return SpanItem{Start: start, Stop: stop, Step: 1, HasStart: true, HasStop: true}
}

// SpanStep selects [start, stop) with the given step. Step must not be zero;
// the engines reject zero steps when applying the item.
func SpanStep(start, stop, step int) Item {
	return SpanItem{Start: start, Stop: stop, Step: step, HasStart: true, HasStop: true}
}

// From selects [start, end-of-axis).
func From(start int) Item { return SpanItem{Start: start, Step: 1, HasStart: true} }

// To selects [0, stop).
func To(stop int) Item { return SpanItem{Stop: stop, Step: 1, HasStop: true} }

// All selects the whole axis.
func All() Item { return SpanItem{Step: 1} }

// NewAxis inserts a new length-one axis.
func NewAxis() Item { return NewAxisItem{} }

// Ellipsis expands to full spans over the remaining batch axes.
func Ellipsis() Item { return EllipsisItem{} }

// Consuming reports whether the item consumes one input axis. NewAxis and
// Ellipsis do not.
func Consuming(it Item) bool {
	switch it.(type) {
	case NewAxisItem, EllipsisItem:
		return false
	default:
		return true
	}
}

// NormalizeIndex canonicalizes an index expression against a batch shape:
// it rejects multiple ellipses, rejects more consuming items than the batch
// rank, and replaces a single ellipsis with exactly enough full spans to
// cover the remaining axes, preserving the items on either side. The result
// only ever addresses batch axes; inner axes are untouched by construction.
func NormalizeIndex(items []Item, batch Shape) ([]Item, error) {
	ellipses := 0
	consuming := 0
	for _, it := range items {
		switch it.(type) {
		case EllipsisItem:
			ellipses++
		case NewAxisItem:
		default:
			consuming++
		}
	}
	if ellipses > 1 {
		return nil, fmt.Errorf("%w: an index can only have a single ellipsis", ErrIndex)
	}
	if consuming > batch.Rank() {
		return nil, fmt.Errorf(
			"%w: too many indices for record: batch shape is %v, but rank-%d was provided",
			ErrIndex, batch, consuming)
	}
	if ellipses == 0 {
		out := make([]Item, len(items))
		copy(out, items)
		return out, nil
	}

	fill := batch.Rank() - consuming
	out := make([]Item, 0, len(items)-1+fill)
	for _, it := range items {
		if _, ok := it.(EllipsisItem); ok {
			for i := 0; i < fill; i++ {
				out = append(out, All())
			}
			continue
		}
		out = append(out, it)
	}
	return out, nil
}
