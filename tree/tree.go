// Package tree implements structure-preserving flattening of nested
// containers into flat leaf lists and back.
//
// Types opt in by registering a Flattener for their concrete type. Values
// whose type has no flattener are leaves. The package provides:
//
//   - Register / Registered: a process-wide, idempotent flattener registry
//   - Flatten / Unflatten: recursive decomposition into leaves plus a
//     structure definition that can rebuild the original value
//   - Map: leaf-wise mapping across equally-structured trees
//
// Flatteners must tolerate all-nil leaf lists on the way back in, so that
// callers can rebuild structural templates without any data attached.
package tree

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// ErrStructure reports a structural mismatch between trees or between a
// definition and a leaf list.
var ErrStructure = errors.New("tree: structure mismatch")

// Meta carries the per-node payload a Flattener needs to rebuild its value:
// the concrete type, the ordered child names, and any auxiliary values that
// are part of the structure rather than the data.
type Meta struct {
	Type   reflect.Type
	Fields []string
	Extras map[string]any
}

// Flattener decomposes values of a single concrete type into an ordered
// leaf list plus rebuild metadata, and reassembles them.
type Flattener interface {
	Flatten(v any) ([]any, Meta, error)
	Unflatten(meta Meta, leaves []any) (any, error)
}

var (
	regMu    sync.RWMutex
	registry = map[reflect.Type]Flattener{}
)

// Register installs a flattener for the given concrete type. Registration
// is idempotent: the first flattener for a type wins and later calls are
// ignored, so construction paths may register unconditionally.
func Register(t reflect.Type, f Flattener) {
	regMu.Lock()
	defer regMu.Unlock()
	if _, ok := registry[t]; ok {
		return
	}
	registry[t] = f
}

// Registered reports whether a flattener exists for the given type.
func Registered(t reflect.Type) bool {
	regMu.RLock()
	defer regMu.RUnlock()
	_, ok := registry[t]
	return ok
}

func lookup(t reflect.Type) (Flattener, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	f, ok := registry[t]
	return f, ok
}

// Def records the structure of a flattened tree. A leaf Def stands for one
// entry in the leaf list; an interior Def remembers which flattener produced
// it and the sub-definition of every child.
type Def struct {
	leaf     bool
	meta     Meta
	children []*Def
}

// Equal reports whether two definitions describe the same structure: the
// same containers of the same types in the same positions. Leaf values play
// no part in the comparison.
func (d *Def) Equal(o *Def) bool {
	if d.leaf != o.leaf {
		return false
	}
	if d.leaf {
		return true
	}
	if d.meta.Type != o.meta.Type || len(d.children) != len(o.children) {
		return false
	}
	for i, c := range d.children {
		if !c.Equal(o.children[i]) {
			return false
		}
	}
	return true
}

// Leaves returns the number of leaf slots the definition describes.
func (d *Def) Leaves() int {
	if d.leaf {
		return 1
	}
	n := 0
	for _, c := range d.children {
		n += c.Leaves()
	}
	return n
}

// Flatten decomposes v into its leaves and a definition that Unflatten can
// use to rebuild it. Values without a registered flattener are single
// leaves; nil is a leaf.
func Flatten(v any) ([]any, *Def, error) {
	if v == nil {
		return []any{nil}, &Def{leaf: true}, nil
	}
	f, ok := lookup(reflect.TypeOf(v))
	if !ok {
		return []any{v}, &Def{leaf: true}, nil
	}
	vals, meta, err := f.Flatten(v)
	if err != nil {
		return nil, nil, err
	}
	def := &Def{meta: meta, children: make([]*Def, len(vals))}
	var leaves []any
	for i, val := range vals {
		sub, subDef, err := Flatten(val)
		if err != nil {
			return nil, nil, err
		}
		leaves = append(leaves, sub...)
		def.children[i] = subDef
	}
	return leaves, def, nil
}

// Unflatten rebuilds the value described by def from the given leaves. The
// leaf list length must match the definition exactly.
func Unflatten(def *Def, leaves []any) (any, error) {
	if want := def.Leaves(); len(leaves) != want {
		return nil, fmt.Errorf("%w: definition holds %d leaves, got %d", ErrStructure, want, len(leaves))
	}
	v, rest, err := unflatten(def, leaves)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d leaves left over", ErrStructure, len(rest))
	}
	return v, nil
}

func unflatten(def *Def, leaves []any) (any, []any, error) {
	if def.leaf {
		return leaves[0], leaves[1:], nil
	}
	f, ok := lookup(def.meta.Type)
	if !ok {
		return nil, nil, fmt.Errorf("%w: no flattener for %v", ErrStructure, def.meta.Type)
	}
	vals := make([]any, len(def.children))
	rest := leaves
	for i, c := range def.children {
		var (
			v   any
			err error
		)
		v, rest, err = unflatten(c, rest)
		if err != nil {
			return nil, nil, err
		}
		vals[i] = v
	}
	v, err := f.Unflatten(def.meta, vals)
	if err != nil {
		return nil, nil, err
	}
	return v, rest, nil
}

// Map applies fn leaf-wise across equally-structured trees and rebuilds a
// tree with first's structure. Where first holds a nil leaf the result leaf
// stays nil and fn is not called, regardless of the paired leaves.
func Map(fn func(leaf any, rest ...any) any, first any, rest ...any) (any, error) {
	leaves, def, err := Flatten(first)
	if err != nil {
		return nil, err
	}
	others := make([][]any, len(rest))
	for i, r := range rest {
		rl, rdef, err := Flatten(r)
		if err != nil {
			return nil, err
		}
		if !rdef.Equal(def) {
			return nil, fmt.Errorf("%w: tree %d does not share the first tree's structure", ErrStructure, i+1)
		}
		others[i] = rl
	}
	out := make([]any, len(leaves))
	paired := make([]any, len(rest))
	for i, leaf := range leaves {
		if leaf == nil {
			continue
		}
		for j := range others {
			paired[j] = others[j][i]
		}
		out[i] = fn(leaf, paired...)
	}
	return Unflatten(def, out)
}
