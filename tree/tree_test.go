package tree

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

// pair is a minimal registered container used by the tests: two leaf slots
// plus a label that rides along as structure rather than data.
type pair struct {
	A, B  any
	Label string
}

type pairFlattener struct{}

func (pairFlattener) Flatten(v any) ([]any, Meta, error) {
	p := v.(*pair)
	meta := Meta{
		Type:   reflect.TypeOf(p),
		Fields: []string{"A", "B"},
		Extras: map[string]any{"label": p.Label},
	}
	return []any{p.A, p.B}, meta, nil
}

func (pairFlattener) Unflatten(meta Meta, leaves []any) (any, error) {
	return &pair{A: leaves[0], B: leaves[1], Label: meta.Extras["label"].(string)}, nil
}

func init() {
	Register(reflect.TypeOf(&pair{}), pairFlattener{})
}

func TestRegisterIdempotent(t *testing.T) {
	t.Parallel()
	typ := reflect.TypeOf(&pair{})
	require.True(t, Registered(typ))
	// A second registration is silently ignored.
	Register(typ, pairFlattener{})
	require.True(t, Registered(typ))
	require.False(t, Registered(reflect.TypeOf(42)))
}

func TestFlattenLeaf(t *testing.T) {
	t.Parallel()
	leaves, def, err := Flatten(3.5)
	require.NoError(t, err)
	require.Equal(t, []any{3.5}, leaves)
	require.Equal(t, 1, def.Leaves())

	leaves, _, err = Flatten(nil)
	require.NoError(t, err)
	require.Equal(t, []any{nil}, leaves)
}

func TestFlattenUnflattenRoundTrip(t *testing.T) {
	t.Parallel()
	v := &pair{
		A:     &pair{A: 1, B: 2, Label: "inner"},
		B:     3,
		Label: "outer",
	}
	leaves, def, err := Flatten(v)
	require.NoError(t, err)
	require.Equal(t, []any{1, 2, 3}, leaves)
	require.Equal(t, 3, def.Leaves())

	got, err := Unflatten(def, leaves)
	require.NoError(t, err)
	require.Equal(t, v, got)
}

func TestUnflattenAllNil(t *testing.T) {
	t.Parallel()
	v := &pair{A: 1, B: 2, Label: "tmpl"}
	_, def, err := Flatten(v)
	require.NoError(t, err)

	got, err := Unflatten(def, []any{nil, nil})
	require.NoError(t, err)
	p := got.(*pair)
	require.Nil(t, p.A)
	require.Nil(t, p.B)
	require.Equal(t, "tmpl", p.Label)
}

func TestUnflattenLeafCountMismatch(t *testing.T) {
	t.Parallel()
	_, def, err := Flatten(&pair{A: 1, B: 2})
	require.NoError(t, err)
	_, err = Unflatten(def, []any{1})
	require.ErrorIs(t, err, ErrStructure)
}

func TestMap(t *testing.T) {
	t.Parallel()
	a := &pair{A: 1, B: 2, Label: "xs"}
	b := &pair{A: 10, B: 20, Label: "ys"}

	got, err := Map(func(leaf any, rest ...any) any {
		return leaf.(int) + rest[0].(int)
	}, a, b)
	require.NoError(t, err)
	p := got.(*pair)
	require.Equal(t, 11, p.A)
	require.Equal(t, 22, p.B)
	require.Equal(t, "xs", p.Label)
}

func TestMapNilLeafStaysNil(t *testing.T) {
	t.Parallel()
	a := &pair{A: nil, B: 2}
	b := &pair{A: 10, B: 20}

	calls := 0
	got, err := Map(func(leaf any, rest ...any) any {
		calls++
		return leaf.(int) + rest[0].(int)
	}, a, b)
	require.NoError(t, err)
	p := got.(*pair)
	require.Nil(t, p.A)
	require.Equal(t, 22, p.B)
	require.Equal(t, 1, calls)
}

func TestMapStructureMismatch(t *testing.T) {
	t.Parallel()
	a := &pair{A: &pair{A: 1, B: 2}, B: 3}
	b := &pair{A: 1, B: 2}
	_, err := Map(func(leaf any, rest ...any) any { return leaf }, a, b)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrStructure))

	// Equal leaf counts are not enough: the containers must line up too.
	c := &pair{A: 1, B: &pair{A: 2, B: 3}}
	_, err = Map(func(leaf any, rest ...any) any { return leaf }, a, c)
	require.ErrorIs(t, err, ErrStructure)
}

func TestDefEqual(t *testing.T) {
	t.Parallel()
	_, nested, err := Flatten(&pair{A: &pair{A: 1, B: 2}, B: 3})
	require.NoError(t, err)
	_, nestedAgain, err := Flatten(&pair{A: &pair{A: 9, B: 9}, B: 9})
	require.NoError(t, err)
	_, flipped, err := Flatten(&pair{A: 1, B: &pair{A: 2, B: 3}})
	require.NoError(t, err)
	_, leaf, err := Flatten(42)
	require.NoError(t, err)

	require.True(t, nested.Equal(nestedAgain))
	require.False(t, nested.Equal(flipped))
	require.False(t, nested.Equal(leaf))
	require.Equal(t, nested.Leaves(), flipped.Leaves())
}
