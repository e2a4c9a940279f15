package record_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sbl8/sheaf/backend"
	"github.com/sbl8/sheaf/native"
	"github.com/sbl8/sheaf/record"
)

// Ray opts into geometric transforms; the test transform is a plain scale
// factor applied to every array field.
type Ray struct {
	record.Base
	Dir backend.Array `sheaf:"shape=3"`
}

func (r *Ray) ApplyTransform(tr any) (record.Record, error) {
	factor, ok := tr.(float64)
	if !ok {
		return nil, fmt.Errorf("unsupported transform %T", tr)
	}
	return record.MapField(r, func(name string, a backend.Array) (backend.Array, error) {
		return native.Scale(a.(*native.Array), factor)
	})
}

func TestApplyTransform(t *testing.T) {
	t.Parallel()
	ray, err := record.New(&Ray{Dir: f32([]float32{1, 2, 3})})
	require.NoError(t, err)

	scaled, err := record.ApplyTransform(ray, 2.0)
	require.NoError(t, err)
	require.Equal(t, []float32{2, 4, 6}, scaled.Dir.(*native.Array).Float32s())
}

func TestApplyTransformNotSupported(t *testing.T) {
	t.Parallel()
	sq := newSquare(t)
	_, err := record.ApplyTransform(sq, 2.0)
	require.ErrorIs(t, err, record.ErrNotSupported)
}

func TestApplyTransformBadTransform(t *testing.T) {
	t.Parallel()
	ray, err := record.New(&Ray{Dir: f32([]float32{1, 2, 3})})
	require.NoError(t, err)
	_, err = record.ApplyTransform(ray, "not a transform")
	require.Error(t, err)
}
