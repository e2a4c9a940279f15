package record_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sbl8/sheaf/native"
	"github.com/sbl8/sheaf/record"
	"github.com/sbl8/sheaf/shape"
)

func TestStackScalars(t *testing.T) {
	t.Parallel()
	els := make([]*Square, 3)
	for i := range els {
		v := float32(i)
		sq, err := record.New(&Square{
			Pos:   f32([]float32{v, v}),
			Scale: f32(v),
			Label: "unit",
		})
		require.NoError(t, err)
		els[i] = sq
	}

	got, err := record.Stack(els, 0)
	require.NoError(t, err)
	require.Equal(t, shape.Shape{3}, got.Shape())
	require.Equal(t, shape.Shape{3, 2}, got.Pos.Shape())
	require.Equal(t, []float32{0, 0, 1, 1, 2, 2}, got.Pos.(*native.Array).Float32s())
	require.Equal(t, []float32{0, 1, 2}, got.Scale.(*native.Array).Float32s())
	require.Equal(t, "unit", got.Label)
}

func TestIterateStackRoundTrip(t *testing.T) {
	t.Parallel()
	sq := newSquare(t)
	seq, err := record.Iterate(sq)
	require.NoError(t, err)

	var els []*Square
	for el := range seq {
		els = append(els, el)
	}
	back, err := record.Stack(els, 0)
	require.NoError(t, err)
	require.True(t, record.Equal(back, sq))
}

func TestStackErrors(t *testing.T) {
	t.Parallel()
	sq := newSquare(t)
	pt, err := record.New(&Point{XY: f32([][]float32{{0, 1}})})
	require.NoError(t, err)

	_, err = record.Stack([]record.Record{sq, pt}, 0)
	require.ErrorIs(t, err, record.ErrTypeMismatch)
	require.Contains(t, err.Error(), "*record_test.Square")
	require.Contains(t, err.Error(), "*record_test.Point")

	_, err = record.Stack([]*Square{sq, sq}, 1)
	require.ErrorIs(t, err, record.ErrNotSupported)

	_, err = record.Stack([]*Square{}, 0)
	require.ErrorIs(t, err, record.ErrConstruction)
}

func TestStackFirstRecordDecidesFields(t *testing.T) {
	t.Parallel()
	noScale, err := record.New(&Square{Pos: f32([]float32{0, 0})})
	require.NoError(t, err)
	full, err := record.New(&Square{Pos: f32([]float32{1, 1}), Scale: f32(2.0)})
	require.NoError(t, err)

	// A field missing from the first record stays missing in the stack,
	// even when later records carry it.
	got, err := record.Stack([]*Square{noScale, full}, 0)
	require.NoError(t, err)
	require.Equal(t, shape.Shape{2}, got.Shape())
	require.Nil(t, got.Scale)

	// The reverse is an error: the first record's field must exist
	// everywhere.
	_, err = record.Stack([]*Square{full, noScale}, 0)
	require.ErrorIs(t, err, record.ErrConstruction)
	require.Contains(t, err.Error(), "Scale")
}

func TestStackNestedRecurses(t *testing.T) {
	t.Parallel()
	frames := make([]*Frame, 2)
	for i := range frames {
		v := float32(i)
		fr, err := record.New(&Frame{
			Origin: f32([]float32{v, v, v}),
			Corner: &Point{XY: f32([]float32{v, v + 1})},
		})
		require.NoError(t, err)
		frames[i] = fr
	}

	got, err := record.Stack(frames, 0)
	require.NoError(t, err)
	require.Equal(t, shape.Shape{2}, got.Shape())
	require.Equal(t, shape.Shape{2}, got.Corner.Shape())
	require.Equal(t, []float32{0, 1, 1, 2}, got.Corner.XY.(*native.Array).Float32s())
}
