package record_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sbl8/sheaf/backend"
	"github.com/sbl8/sheaf/native"
	"github.com/sbl8/sheaf/record"
	"github.com/sbl8/sheaf/shape"
	"github.com/sbl8/sheaf/trace"
)

func TestReshape(t *testing.T) {
	t.Parallel()
	sq := newSquare(t)

	wide, err := record.Reshape(sq, shape.Shape{3, 1})
	require.NoError(t, err)
	require.Equal(t, shape.Shape{3, 1}, wide.Shape())
	require.Equal(t, shape.Shape{3, 1, 2}, wide.Pos.Shape())
	require.Equal(t, shape.Shape{3, 1}, wide.Scale.Shape())
	require.Equal(t, "unit", wide.Label)

	inferred, err := record.Reshape(wide, shape.Shape{-1})
	require.NoError(t, err)
	require.Equal(t, shape.Shape{3}, inferred.Shape())

	_, err = record.Reshape(sq, shape.Shape{2})
	require.ErrorIs(t, err, shape.ErrShape)
}

func TestFlatten(t *testing.T) {
	t.Parallel()
	sq := newSquare(t)
	grid, err := record.Reshape(sq, shape.Shape{3, 1})
	require.NoError(t, err)
	flat, err := record.Flatten(grid)
	require.NoError(t, err)
	require.Equal(t, shape.Shape{3}, flat.Shape())
	require.True(t, record.Equal(flat, sq))
}

func TestReshapePatternReserved(t *testing.T) {
	t.Parallel()
	sq := newSquare(t)
	_, err := record.ReshapePattern(sq, "b -> b 1")
	require.ErrorIs(t, err, record.ErrNotSupported)
}

func TestBroadcastTo(t *testing.T) {
	t.Parallel()
	single, err := record.New(&Square{
		Pos:   f32([]float32{1, 2}),
		Scale: f32(3.0),
	})
	require.NoError(t, err)

	batched, err := record.BroadcastTo(single, shape.Shape{2})
	require.NoError(t, err)
	require.Equal(t, shape.Shape{2}, batched.Shape())
	require.Equal(t, shape.Shape{2, 2}, batched.Pos.Shape())
	require.Equal(t, []float32{1, 2, 1, 2}, batched.Pos.(*native.Array).Float32s())
}

func TestIndexAt(t *testing.T) {
	t.Parallel()
	sq := newSquare(t)
	el, err := record.Index(sq, shape.At(1))
	require.NoError(t, err)
	require.Equal(t, shape.Shape{}, el.Shape())
	require.Equal(t, []float32{1, 1}, el.Pos.(*native.Array).Float32s())
	require.Equal(t, "unit", el.Label)
}

func TestIndexEllipsisIdentity(t *testing.T) {
	t.Parallel()
	sq := newSquare(t)
	same, err := record.Index(sq, shape.Ellipsis())
	require.NoError(t, err)
	require.True(t, record.Equal(same, sq))
}

func TestIndexErrors(t *testing.T) {
	t.Parallel()
	sq := newSquare(t)

	_, err := record.Index(sq, shape.Ellipsis(), shape.Ellipsis())
	require.ErrorIs(t, err, shape.ErrIndex)
	require.Contains(t, err.Error(), "single ellipsis")

	_, err = record.Index(sq, shape.At(0), shape.At(0))
	require.ErrorIs(t, err, shape.ErrIndex)
	require.Contains(t, err.Error(), "batch shape is (3,), but rank-2 was provided")
}

func TestIndexNeverTouchesInnerAxes(t *testing.T) {
	t.Parallel()
	sq := newSquare(t)
	sub, err := record.Index(sq, shape.Span(1, 3))
	require.NoError(t, err)
	require.Equal(t, shape.Shape{2}, sub.Shape())
	require.Equal(t, shape.Shape{2, 2}, sub.Pos.Shape())
	require.Equal(t, []float32{1, 1, 2, 2}, sub.Pos.(*native.Array).Float32s())
}

func TestIterate(t *testing.T) {
	t.Parallel()
	sq := newSquare(t)
	seq, err := record.Iterate(sq)
	require.NoError(t, err)

	var els []*Square
	for el := range seq {
		require.Equal(t, shape.Shape{}, el.Shape())
		els = append(els, el)
	}
	require.Len(t, els, 3)
	require.Equal(t, []float32{2, 2}, els[2].Pos.(*native.Array).Float32s())

	// The sequence restarts from the beginning.
	count := 0
	for range seq {
		count++
	}
	require.Equal(t, 3, count)
}

func TestIterateUnbatched(t *testing.T) {
	t.Parallel()
	single, err := record.New(&Square{Pos: f32([]float32{1, 2})})
	require.NoError(t, err)
	_, err = record.Iterate(single)
	require.ErrorIs(t, err, record.ErrNotSupported)
}

func TestMapField(t *testing.T) {
	t.Parallel()
	sq := newSquare(t)

	var names []string
	doubled, err := record.MapField(sq, func(name string, a backend.Array) (backend.Array, error) {
		names = append(names, name)
		return native.Scale(a.(*native.Array), 2)
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Pos", "Scale"}, names)
	require.Equal(t, []float32{0, 0, 2, 2, 4, 4}, doubled.Pos.(*native.Array).Float32s())
	require.Equal(t, []float32{2, 4, 6}, doubled.Scale.(*native.Array).Float32s())
}

func TestMapFieldNestedNames(t *testing.T) {
	t.Parallel()
	frame, err := record.New(&Frame{
		Origin: f32([][]float32{{0, 0, 0}}),
		Corner: &Point{XY: f32([][]float32{{1, 2}})},
	})
	require.NoError(t, err)

	var names []string
	_, err = record.MapField(frame, func(name string, a backend.Array) (backend.Array, error) {
		names = append(names, name)
		return a, nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Origin", "Corner.XY"}, names)
}

func TestAsEngineRoundTrip(t *testing.T) {
	t.Parallel()
	sq := newSquare(t)

	traced, err := record.AsTrace(sq)
	require.NoError(t, err)
	require.Equal(t, backend.Engine(trace.Default), traced.Engine())
	require.Equal(t, shape.Shape{3}, traced.Shape())

	back, err := record.AsNative(traced)
	require.NoError(t, err)
	require.True(t, record.Equal(back, sq))
}

func TestNestedReshape(t *testing.T) {
	t.Parallel()
	frame, err := record.New(&Frame{
		Origin: f32([][]float32{{0, 0, 0}, {1, 1, 1}}),
		Corner: &Point{XY: f32([][]float32{{0, 1}, {2, 3}})},
	})
	require.NoError(t, err)

	grid, err := record.Reshape(frame, shape.Shape{2, 1})
	require.NoError(t, err)
	require.Equal(t, shape.Shape{2, 1}, grid.Shape())
	require.Equal(t, shape.Shape{2, 1}, grid.Corner.Shape())
	require.Equal(t, shape.Shape{2, 1, 2}, grid.Corner.XY.Shape())
}

func TestNestedIndex(t *testing.T) {
	t.Parallel()
	frame, err := record.New(&Frame{
		Origin: f32([][]float32{{0, 0, 0}, {1, 1, 1}}),
		Corner: &Point{XY: f32([][]float32{{0, 1}, {2, 3}})},
	})
	require.NoError(t, err)

	el, err := record.Index(frame, shape.At(1))
	require.NoError(t, err)
	require.Equal(t, shape.Shape{}, el.Shape())
	require.Equal(t, []float32{2, 3}, el.Corner.XY.(*native.Array).Float32s())
}
