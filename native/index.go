package native

import (
	"fmt"

	"github.com/sbl8/sheaf/backend"
	"github.com/sbl8/sheaf/shape"
)

// Index applies an already-normalized index expression to the leading axes
// of a and returns the selected sub-array as a fresh copy. Consuming items
// address the first axes in order; trailing axes are carried over untouched,
// so inner shapes are never reinterpreted.
func (a *Array) Index(items []shape.Item) (backend.Array, error) {
	consumed := 0
	for _, it := range items {
		if shape.Consuming(it) {
			consumed++
		}
	}
	if consumed > a.shp.Rank() {
		return nil, fmt.Errorf("%w: %d consuming items for shape %v", shape.ErrIndex, consumed, a.shp)
	}

	elem := a.dt.Size()
	// Everything past the consumed axes moves as one contiguous block.
	tail := a.shp[consumed:].Clone()
	block := tail.Size() * elem

	// Per consumed axis: stride in blocks.
	strides := make([]int, consumed)
	acc := 1
	for i := consumed - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= a.shp[i]
	}

	// One output axis per span or new-axis item, in item order. At items
	// contribute only a fixed offset.
	type axisSel struct {
		indices []int // source positions, nil for a new axis
		stride  int   // in blocks, 0 for a new axis
	}
	var sels []axisSel
	var outShape shape.Shape
	offset := 0
	axis := 0
	for _, it := range items {
		switch v := it.(type) {
		case shape.AtItem:
			n := a.shp[axis]
			p := v.Pos
			if p < 0 {
				p += n
			}
			if p < 0 || p >= n {
				return nil, fmt.Errorf("%w: position %d out of range for axis %d of length %d",
					shape.ErrIndex, v.Pos, axis, n)
			}
			offset += p * strides[axis]
			axis++
		case shape.SpanItem:
			idxs, err := spanIndices(v, a.shp[axis])
			if err != nil {
				return nil, err
			}
			sels = append(sels, axisSel{indices: idxs, stride: strides[axis]})
			outShape = append(outShape, len(idxs))
			axis++
		case shape.NewAxisItem:
			sels = append(sels, axisSel{})
			outShape = append(outShape, 1)
		default:
			return nil, fmt.Errorf("%w: unexpected item %v (normalize first)", shape.ErrIndex, it)
		}
	}
	outShape = outShape.Concat(tail)

	out := make([]byte, outShape.Size()*elem)
	// Walk the cartesian product of the span selections, copying one tail
	// block per combination.
	pos := 0
	var walk func(dim, base int)
	walk = func(dim, base int) {
		if dim == len(sels) {
			copy(out[pos*block:(pos+1)*block], a.data[base*block:(base+1)*block])
			pos++
			return
		}
		s := sels[dim]
		if s.indices == nil {
			walk(dim+1, base)
			return
		}
		for _, i := range s.indices {
			walk(dim+1, base+i*s.stride)
		}
	}
	if len(out) > 0 {
		walk(0, offset)
	}
	return &Array{dt: a.dt, shp: outShape, data: out}, nil
}

// spanIndices materializes a span against an axis of length n using the
// usual slice semantics: negative bounds count from the end, bounds are
// clamped, and a negative step walks backwards.
func spanIndices(sp shape.SpanItem, n int) ([]int, error) {
	step := sp.Step
	if step == 0 {
		return nil, fmt.Errorf("%w: span step cannot be zero", shape.ErrIndex)
	}
	norm := func(v int) int {
		if v < 0 {
			return v + n
		}
		return v
	}
	var start, stop int
	if step > 0 {
		start, stop = 0, n
		if sp.HasStart {
			start = min(max(norm(sp.Start), 0), n)
		}
		if sp.HasStop {
			stop = min(max(norm(sp.Stop), 0), n)
		}
		var idxs []int
		for i := start; i < stop; i += step {
			idxs = append(idxs, i)
		}
		return idxs, nil
	}
	start, stop = n-1, -1
	if sp.HasStart {
		start = min(max(norm(sp.Start), -1), n-1)
	}
	if sp.HasStop {
		stop = min(max(norm(sp.Stop), -1), n-1)
	}
	var idxs []int
	for i := start; i > stop; i += step {
		idxs = append(idxs, i)
	}
	return idxs, nil
}

// broadcastTo materializes a to the target full shape using right-aligned
// broadcasting: trailing dims must match or be one, and the target rank must
// be at least the source rank.
func (a *Array) broadcastTo(target shape.Shape) (*Array, error) {
	src := a.shp
	if target.Rank() < src.Rank() {
		return nil, fmt.Errorf("%w: cannot broadcast %v to lower-rank %v", shape.ErrShape, src, target)
	}
	pad := target.Rank() - src.Rank()
	// Source stride per target axis, zero where the source dim is 1 or absent.
	strides := make([]int, target.Rank())
	acc := 1
	for i := src.Rank() - 1; i >= 0; i-- {
		t := target[pad+i]
		switch src[i] {
		case t:
			strides[pad+i] = acc
		case 1:
			strides[pad+i] = 0
		default:
			return nil, fmt.Errorf("%w: cannot broadcast %v to %v (axis %d)", shape.ErrShape, src, target, pad+i)
		}
		acc *= src[i]
	}

	elem := a.dt.Size()
	out := make([]byte, target.Size()*elem)
	pos := 0
	var walk func(dim, base int)
	walk = func(dim, base int) {
		if dim == target.Rank() {
			copy(out[pos*elem:(pos+1)*elem], a.data[base*elem:(base+1)*elem])
			pos++
			return
		}
		for i := 0; i < target[dim]; i++ {
			walk(dim+1, base+i*strides[dim])
		}
	}
	if len(out) > 0 {
		walk(0, 0)
	}
	return &Array{dt: a.dt, shp: target.Clone(), data: out}, nil
}

// stack concatenates same-shape, same-dtype arrays along a new leading axis.
func stack(arrs []*Array, axis int) (*Array, error) {
	if axis != 0 {
		return nil, fmt.Errorf("native: stacking is only supported along axis 0, got %d", axis)
	}
	if len(arrs) == 0 {
		return nil, fmt.Errorf("native: cannot stack zero arrays")
	}
	first := arrs[0]
	for i, a := range arrs[1:] {
		if a == nil {
			return nil, fmt.Errorf("native: cannot stack nil array at position %d", i+1)
		}
		if a.dt != first.dt {
			return nil, fmt.Errorf("native: conflicting dtypes %v and %v", first.dt, a.dt)
		}
		if !a.shp.Equal(first.shp) {
			return nil, fmt.Errorf("%w: conflicting shapes %v and %v", shape.ErrShape, first.shp, a.shp)
		}
	}
	outShape := shape.Shape{len(arrs)}.Concat(first.shp)
	out := make([]byte, 0, outShape.Size()*first.dt.Size())
	for _, a := range arrs {
		out = append(out, a.data...)
	}
	return &Array{dt: first.dt, shp: outShape, data: out}, nil
}
