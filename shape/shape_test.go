package shape

import (
	"errors"
	"testing"
)

func TestSize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		s    Shape
		want int
	}{
		{name: "scalar shape has one element", s: Shape{}, want: 1},
		{name: "nil shape has one element", s: nil, want: 1},
		{name: "vector", s: Shape{4}, want: 4},
		{name: "matrix", s: Shape{3, 2}, want: 6},
		{name: "zero dimension yields zero", s: Shape{0, 5}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.Size(); got != tt.want {
				t.Errorf("%v.Size() = %d, want %d", tt.s, got, tt.want)
			}
		})
	}
}

func TestEqualAndConcat(t *testing.T) {
	t.Parallel()
	if !(Shape{}).Equal(nil) {
		t.Error("empty and nil shapes should compare equal")
	}
	if (Shape{3}).Equal(Shape{3, 1}) {
		t.Error("shapes of different rank should not compare equal")
	}
	got := Shape{3, 1}.Concat(Shape{2})
	if !got.Equal(Shape{3, 1, 2}) {
		t.Errorf("Concat = %v, want (3, 1, 2)", got)
	}
}

func TestString(t *testing.T) {
	t.Parallel()
	if s := (Shape{}).String(); s != "()" {
		t.Errorf("scalar String() = %q", s)
	}
	if s := (Shape{3}).String(); s != "(3,)" {
		t.Errorf("vector String() = %q", s)
	}
	if s := (Shape{3, 2}).String(); s != "(3, 2)" {
		t.Errorf("matrix String() = %q", s)
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		target  Shape
		size    int
		want    Shape
		wantErr bool
	}{
		{name: "exact match", target: Shape{3, 2}, size: 6, want: Shape{3, 2}},
		{name: "infer flatten", target: Shape{-1}, size: 6, want: Shape{6}},
		{name: "infer middle", target: Shape{2, -1, 2}, size: 12, want: Shape{2, 3, 2}},
		{name: "infer zero", target: Shape{-1, 4}, size: 0, want: Shape{0, 4}},
		{name: "size mismatch", target: Shape{4}, size: 6, wantErr: true},
		{name: "indivisible", target: Shape{-1, 4}, size: 6, wantErr: true},
		{name: "two placeholders", target: Shape{-1, -1}, size: 6, wantErr: true},
		{name: "negative dimension", target: Shape{-2, 3}, size: 6, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.target, tt.size)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Resolve(%v, %d) error = %v, wantErr %v", tt.target, tt.size, err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrShape) {
					t.Errorf("error should wrap ErrShape, got %v", err)
				}
				return
			}
			if !got.Equal(tt.want) {
				t.Errorf("Resolve(%v, %d) = %v, want %v", tt.target, tt.size, got, tt.want)
			}
		})
	}
}

func TestResolveDoesNotAliasInput(t *testing.T) {
	t.Parallel()
	target := Shape{-1}
	got, err := Resolve(target, 5)
	if err != nil {
		t.Fatal(err)
	}
	if target[0] != -1 {
		t.Error("Resolve mutated its input")
	}
	if got[0] != 5 {
		t.Errorf("resolved dim = %d, want 5", got[0])
	}
}

func TestNormalizeIndex(t *testing.T) {
	t.Parallel()
	batch := Shape{4, 3, 2}
	tests := []struct {
		name    string
		items   []Item
		want    []Item
		wantErr bool
	}{
		{
			name:  "no ellipsis passes through",
			items: []Item{At(0), All()},
			want:  []Item{At(0), All()},
		},
		{
			name:  "bare ellipsis expands to full rank",
			items: []Item{Ellipsis()},
			want:  []Item{All(), All(), All()},
		},
		{
			name:  "ellipsis preserves surrounding items",
			items: []Item{At(1), Ellipsis(), At(0)},
			want:  []Item{At(1), All(), At(0)},
		},
		{
			name:  "new axis does not consume",
			items: []Item{NewAxis(), Ellipsis()},
			want:  []Item{NewAxis(), All(), All(), All()},
		},
		{
			name:    "two ellipses rejected",
			items:   []Item{Ellipsis(), At(0), Ellipsis()},
			wantErr: true,
		},
		{
			name:    "too many consuming items",
			items:   []Item{At(0), At(0), At(0), At(0)},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeIndex(tt.items, batch)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeIndex error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrIndex) {
					t.Errorf("error should wrap ErrIndex, got %v", err)
				}
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("normalized length = %d, want %d (%v)", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i].String() != tt.want[i].String() {
					t.Errorf("item %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNormalizeIndexScalarBatch(t *testing.T) {
	t.Parallel()
	// An unbatched record accepts only non-consuming items.
	if _, err := NormalizeIndex([]Item{Ellipsis()}, Shape{}); err != nil {
		t.Errorf("ellipsis on scalar batch should normalize, got %v", err)
	}
	if _, err := NormalizeIndex([]Item{At(0)}, Shape{}); !errors.Is(err, ErrIndex) {
		t.Errorf("consuming item on scalar batch should fail with ErrIndex, got %v", err)
	}
}
