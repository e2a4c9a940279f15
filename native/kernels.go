package native

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/sbl8/sheaf/dtype"
	"github.com/sbl8/sheaf/shape"
)

// Numeric helpers shared by geometry-style callers. Float32 kernels are
// hand-rolled loops over the typed payload views; float64 kernels go through
// gonum where the data is contiguous.

// Normalize scales every vector along the given axis to unit L2 norm.
// Negative axes count from the end; the array must be floating point.
func Normalize(a *Array, axis int) (*Array, error) {
	if !a.dt.IsFloat() {
		return nil, fmt.Errorf("native: Normalize needs a float array, got %v", a.dt)
	}
	rank := a.shp.Rank()
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return nil, fmt.Errorf("%w: axis %d out of range for %v", shape.ErrIndex, axis, a.shp)
	}
	outer, n, inner := 1, a.shp[axis], 1
	for _, d := range a.shp[:axis] {
		outer *= d
	}
	for _, d := range a.shp[axis+1:] {
		inner *= d
	}

	out := &Array{dt: a.dt, shp: a.shp.Clone(), data: append([]byte(nil), a.data...)}
	switch a.dt {
	case dtype.Float32:
		vals := out.Float32s()
		for o := 0; o < outer; o++ {
			for in := 0; in < inner; in++ {
				var sum float32
				for k := 0; k < n; k++ {
					v := vals[(o*n+k)*inner+in]
					sum += v * v
				}
				norm := float32(math.Sqrt(float64(sum)))
				for k := 0; k < n; k++ {
					vals[(o*n+k)*inner+in] /= norm
				}
			}
		}
	case dtype.Float64:
		vals := out.Float64s()
		if inner == 1 {
			for o := 0; o < outer; o++ {
				vec := vals[o*n : (o+1)*n]
				floats.Scale(1/floats.Norm(vec, 2), vec)
			}
			break
		}
		for o := 0; o < outer; o++ {
			for in := 0; in < inner; in++ {
				var sum float64
				for k := 0; k < n; k++ {
					v := vals[(o*n+k)*inner+in]
					sum += v * v
				}
				norm := math.Sqrt(sum)
				for k := 0; k < n; k++ {
					vals[(o*n+k)*inner+in] /= norm
				}
			}
		}
	}
	return out, nil
}

// Norm returns the L2 norm along the last axis, dropping that axis.
func Norm(a *Array) (*Array, error) {
	if !a.dt.IsFloat() {
		return nil, fmt.Errorf("native: Norm needs a float array, got %v", a.dt)
	}
	rank := a.shp.Rank()
	if rank == 0 {
		return nil, fmt.Errorf("%w: Norm needs at least one axis, got %v", shape.ErrShape, a.shp)
	}
	n := a.shp[rank-1]
	outShape := a.shp[:rank-1].Clone()
	out := &Array{dt: a.dt, shp: outShape, data: make([]byte, outShape.Size()*a.dt.Size())}
	switch a.dt {
	case dtype.Float32:
		src := a.Float32s()
		dst := out.Float32s()
		for o := range dst {
			var sum float32
			for k := 0; k < n; k++ {
				v := src[o*n+k]
				sum += v * v
			}
			dst[o] = float32(math.Sqrt(float64(sum)))
		}
	case dtype.Float64:
		src := a.Float64s()
		dst := out.Float64s()
		for o := range dst {
			dst[o] = floats.Norm(src[o*n:(o+1)*n], 2)
		}
	}
	return out, nil
}

// AppendRow grows the given axis by one, filling the new positions with a
// broadcast scalar value.
func AppendRow(a *Array, value float64, axis int) (*Array, error) {
	rank := a.shp.Rank()
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return nil, fmt.Errorf("%w: axis %d out of range for %v", shape.ErrIndex, axis, a.shp)
	}
	outer, inner := 1, 1
	for _, d := range a.shp[:axis] {
		outer *= d
	}
	for _, d := range a.shp[axis+1:] {
		inner *= d
	}
	elem := a.dt.Size()
	n := a.shp[axis]

	outShape := a.shp.Clone()
	outShape[axis] = n + 1
	out := make([]byte, outShape.Size()*elem)

	fill := make([]byte, inner*elem)
	for i := 0; i < inner; i++ {
		writeScalar(fill, a.dt, i, value, int64(value), a.dt.IsInt() || a.dt == dtype.Bool)
	}

	srcBlock := n * inner * elem
	dstBlock := (n + 1) * inner * elem
	for o := 0; o < outer; o++ {
		copy(out[o*dstBlock:], a.data[o*srcBlock:(o+1)*srcBlock])
		copy(out[o*dstBlock+srcBlock:], fill)
	}
	return &Array{dt: a.dt, shp: outShape, data: out}, nil
}

// Add returns the element-wise sum of two same-shape, same-dtype float
// arrays.
func Add(a, b *Array) (*Array, error) {
	if a.dt != b.dt || !a.shp.Equal(b.shp) {
		return nil, fmt.Errorf("%w: Add needs matching arrays, got %v %v and %v %v",
			shape.ErrShape, a.dt, a.shp, b.dt, b.shp)
	}
	if !a.dt.IsFloat() {
		return nil, fmt.Errorf("native: Add needs float arrays, got %v", a.dt)
	}
	out := &Array{dt: a.dt, shp: a.shp.Clone(), data: append([]byte(nil), a.data...)}
	switch a.dt {
	case dtype.Float32:
		dst := out.Float32s()
		src := b.Float32s()
		for i := range dst {
			dst[i] += src[i]
		}
	case dtype.Float64:
		floats.Add(out.Float64s(), b.Float64s())
	}
	return out, nil
}

// Scale returns a with every element multiplied by c.
func Scale(a *Array, c float64) (*Array, error) {
	if !a.dt.IsFloat() {
		return nil, fmt.Errorf("native: Scale needs a float array, got %v", a.dt)
	}
	out := &Array{dt: a.dt, shp: a.shp.Clone(), data: append([]byte(nil), a.data...)}
	switch a.dt {
	case dtype.Float32:
		f := float32(c)
		dst := out.Float32s()
		for i := range dst {
			dst[i] *= f
		}
	case dtype.Float64:
		floats.Scale(c, out.Float64s())
	}
	return out, nil
}
