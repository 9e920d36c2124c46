package ir

// SymbolKind distinguishes relation tables from lattice tables.
type SymbolKind string

const (
	// KindRelation is a set-valued table; membership only grows.
	KindRelation SymbolKind = "relation"

	// KindLattice is a table whose last column is merged per key via a
	// user-supplied bounded join-semilattice.
	KindLattice SymbolKind = "lattice"
)

// ValidSymbolKinds defines allowed symbol kinds.
var ValidSymbolKinds = map[SymbolKind]bool{
	KindRelation: true,
	KindLattice:  true,
}

// LatticeOps names the four registered scalar operators of a lattice symbol.
// They apply to the last column only; the remaining columns form the key.
// The solver trusts that (Bottom, Leq, Lub) forms a valid bounded
// join-semilattice; violating the lattice laws is a caller contract breach,
// not a runtime-checked error.
type LatticeOps struct {
	Bottom string `json:"bottom"` // nullary: the least element
	Leq    string `json:"leq"`    // binary predicate: partial order
	Lub    string `json:"lub"`    // binary: least upper bound
	Glb    string `json:"glb"`    // binary: greatest lower bound
}

// Symbol identifies a relation or lattice table with a fixed attribute arity.
type Symbol struct {
	Name  string      `json:"name"`
	Arity int         `json:"arity"`
	Kind  SymbolKind  `json:"kind"`
	Ops   *LatticeOps `json:"ops,omitempty"` // non-nil iff Kind == KindLattice
}

// KeyArity returns the number of key columns: the full arity for relations,
// all but the lattice value column for lattices.
func (s *Symbol) KeyArity() int {
	if s.Kind == KindLattice {
		return s.Arity - 1
	}
	return s.Arity
}
