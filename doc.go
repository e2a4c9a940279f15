// Package sheaf implements structured records whose fields are numeric arrays
// sharing one common leading batch shape.
//
// A sheaf record is an ordinary Go struct whose array fields are declared with
// struct tags and which embeds record.Base. The record then behaves like an
// array itself: it can be indexed, reshaped, iterated, broadcast and stacked,
// with every field moving in lockstep.
//
//	type Square struct {
//	    record.Base
//	    Pos   backend.Array `sheaf:"shape=2"`
//	    Scale backend.Array `sheaf:"shape=()"`
//	}
//
//	sq, err := record.New(&Square{
//	    Pos:   native.MustFromAny([][]float32{{0, 0}, {1, 0}, {0, 1}}, dtype.Float32),
//	    Scale: native.MustFromAny([]float32{1, 2, 3}, dtype.Float32),
//	})
//	sq.Shape()        // (3,)
//	one, _ := record.Index(sq, shape.At(0))
//	one.Shape()       // ()
//
// # Package Structure
//
//   - dtype: element type system and category aliases
//   - shape: batch shape arithmetic and index-expression normalization
//   - backend: the numeric-engine contract and engine registry
//   - native: dense CPU engine over byte payloads with typed views
//   - trace: op-recording engine used for interchangeability testing
//   - tree: flatten/unflatten registration protocol and tree mapping
//   - record: the array-like record core (validation, ops, stacking)
//
// # Invariants
//
// Every active field of a record shares exactly one batch shape and one
// backend engine; both are validated at construction time and cached on the
// instance. Records are immutable: every shape-altering operation rebuilds
// and revalidates a fresh instance.
//
// For more information, see the project repository at
// https://github.com/sbl8/sheaf
package sheaf
