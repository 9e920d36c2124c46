package solver

import (
	"fmt"
	"iter"

	"github.com/roach88/strata/internal/ir"
)

// TableStore holds the current extent of every relation and lattice symbol
// of one solve. Storage is arena-style append-only with a version counter:
// relation rows are never removed, lattice rows only ever move up under the
// symbol's leq. Each solve owns exactly one TableStore; there is no sharing
// between solves.
type TableStore struct {
	program  *ir.Program
	registry *Registry
	version  uint64
	tables   map[string]*table
}

// table is the per-symbol arena. rows is insertion-ordered; for lattices the
// last column of a row is updated in place by merges, all other bytes are
// immutable once appended.
type table struct {
	sym     *ir.Symbol
	keyMask uint32
	rows    [][]ir.Value
	byKey   map[uint64][]int          // join key over key columns -> row indices
	indexes map[uint32]*patternIndex  // built lazily per bound-column pattern
}

// NewTableStore creates an empty store for the program's symbols.
func NewTableStore(program *ir.Program, registry *Registry) *TableStore {
	ts := &TableStore{
		program:  program,
		registry: registry,
		tables:   make(map[string]*table, len(program.Symbols)),
	}
	for i := range program.Symbols {
		sym := &program.Symbols[i]
		ts.tables[sym.Name] = &table{
			sym:     sym,
			keyMask: maskBits(sym.KeyArity()),
			byKey:   make(map[uint64][]int),
			indexes: make(map[uint32]*patternIndex),
		}
	}
	return ts
}

// Version returns the mutation counter. Every insert or merge that changed
// the store increments it; snapshots and iterators taken at a version stay
// valid because the arena never shrinks.
func (ts *TableStore) Version() uint64 {
	return ts.version
}

// Len returns the number of stored rows for a symbol.
func (ts *TableStore) Len(sym string) int {
	return len(ts.tables[sym].rows)
}

// Insert adds a fact to a relation. Idempotent: returns false without
// mutation if the fact is already present.
func (ts *TableStore) Insert(f ir.Fact) (bool, error) {
	t, ok := ts.tables[f.Sym]
	if !ok {
		return false, fmt.Errorf("insert: undeclared symbol %q", f.Sym)
	}
	if t.sym.Kind != ir.KindRelation {
		return false, fmt.Errorf("insert: symbol %q is not a relation", f.Sym)
	}
	if len(f.Values) != t.sym.Arity {
		return false, fmt.Errorf("insert: %q arity %d, got %d values", f.Sym, t.sym.Arity, len(f.Values))
	}

	jk, err := joinKey(f.Values, t.keyMask)
	if err != nil {
		return false, err
	}
	for _, idx := range t.byKey[jk] {
		if ir.CompareRow(t.rows[idx], f.Values) == 0 {
			return false, nil
		}
	}

	if err := t.appendRow(f.Values, jk); err != nil {
		return false, err
	}
	ts.version++
	return true, nil
}

// Merge folds a value into a lattice table at the given key:
// new = lub(oldOrBottom, value). Returns false without mutation when the
// merged value is leq-equal to the stored one. The merged value is returned
// so callers can seed deltas with what was actually stored.
//
// The engine trusts but does not verify that the symbol's leq/lub pair forms
// a valid bounded join-semilattice; a violation is a caller contract breach.
func (ts *TableStore) Merge(sym string, key []ir.Value, value ir.Value) (bool, ir.Value, error) {
	t, ok := ts.tables[sym]
	if !ok {
		return false, nil, fmt.Errorf("merge: undeclared symbol %q", sym)
	}
	if t.sym.Kind != ir.KindLattice {
		return false, nil, fmt.Errorf("merge: symbol %q is not a lattice", sym)
	}
	if len(key) != t.sym.KeyArity() {
		return false, nil, fmt.Errorf("merge: %q key arity %d, got %d values", sym, t.sym.KeyArity(), len(key))
	}

	jk, err := hashRow(key)
	if err != nil {
		return false, nil, err
	}
	ops := t.sym.Ops

	for _, idx := range t.byKey[jk] {
		row := t.rows[idx]
		if ir.CompareRow(row[:len(row)-1], key) != 0 {
			continue
		}
		old := row[len(row)-1]
		merged, err := ts.callLatticeOp(ops.Lub, old, value)
		if err != nil {
			return false, nil, err
		}
		equal, err := ts.leqEqual(ops.Leq, merged, old)
		if err != nil {
			return false, nil, err
		}
		if equal {
			return false, merged, nil
		}
		row[len(row)-1] = merged
		ts.version++
		return true, merged, nil
	}

	// New key: merge the value into bottom and append.
	bottom, err := ts.registry.Call(ops.Bottom, nil)
	if err != nil {
		return false, nil, fmt.Errorf("lattice %q bottom: %w", sym, err)
	}
	merged, err := ts.callLatticeOp(ops.Lub, bottom, value)
	if err != nil {
		return false, nil, err
	}
	row := make([]ir.Value, 0, t.sym.Arity)
	row = append(row, key...)
	row = append(row, merged)
	if err := t.appendRow(row, jk); err != nil {
		return false, nil, err
	}
	ts.version++
	return true, merged, nil
}

// Lookup returns a lazy, finite, restartable sequence of rows consistent
// with the bound-column pattern. bound must have the symbol's arity; nil
// entries are free columns. Enumeration order is insertion order, which
// keeps evaluation deterministic.
//
// The per-pattern index is built on first use and extended on every later
// insert; it is never rebuilt mid-solve. Lattice value columns are excluded
// from index keys (merges mutate them in place), so a bound value column is
// checked per row instead.
func (ts *TableStore) Lookup(sym string, bound []ir.Value) (iter.Seq[[]ir.Value], error) {
	t, ok := ts.tables[sym]
	if !ok {
		return nil, fmt.Errorf("lookup: undeclared symbol %q", sym)
	}
	if len(bound) != t.sym.Arity {
		return nil, fmt.Errorf("lookup: %q arity %d, got %d pattern columns", sym, t.sym.Arity, len(bound))
	}

	mask := maskOf(bound)
	idxMask := mask & t.keyMask

	if idxMask == 0 {
		// No indexable bound columns: scan the arena.
		return func(yield func([]ir.Value) bool) {
			for _, row := range t.rows {
				if rowMatches(row, bound, mask) && !yield(row) {
					return
				}
			}
		}, nil
	}

	pi, err := t.index(idxMask)
	if err != nil {
		return nil, err
	}
	jk, err := joinKey(bound, idxMask)
	if err != nil {
		return nil, err
	}
	candidates := pi.buckets[jk]
	return func(yield func([]ir.Value) bool) {
		for _, idx := range candidates {
			row := t.rows[idx]
			if rowMatches(row, bound, mask) && !yield(row) {
				return
			}
		}
	}, nil
}

// Contains reports whether any stored row matches the bound-column pattern.
// This is the negation-as-failure primitive.
func (ts *TableStore) Contains(sym string, bound []ir.Value) (bool, error) {
	seq, err := ts.Lookup(sym, bound)
	if err != nil {
		return false, err
	}
	found := false
	seq(func([]ir.Value) bool {
		found = true
		return false
	})
	return found, nil
}

// Snapshot takes the immutable point-in-time Model of the store. Called
// once, at stratum-scheduler completion.
func (ts *TableStore) Snapshot() *Model {
	return newModel(ts)
}

func (ts *TableStore) callLatticeOp(name string, a, b ir.Value) (ir.Value, error) {
	v, err := ts.registry.Call(name, []ir.Value{a, b})
	if err != nil {
		return nil, fmt.Errorf("lattice op %q: %w", name, err)
	}
	return v, nil
}

// leqEqual reports leq(a, b) && leq(b, a): equality in the lattice order.
func (ts *TableStore) leqEqual(leq string, a, b ir.Value) (bool, error) {
	ab, err := ts.callLatticeOp(leq, a, b)
	if err != nil {
		return false, err
	}
	if abv, ok := ab.(ir.Bool); !ok || !bool(abv) {
		if !ok {
			return false, fmt.Errorf("lattice op %q: want bool result, got %T", leq, ab)
		}
		return false, nil
	}
	ba, err := ts.callLatticeOp(leq, b, a)
	if err != nil {
		return false, err
	}
	bav, ok := ba.(ir.Bool)
	if !ok {
		return false, fmt.Errorf("lattice op %q: want bool result, got %T", leq, ba)
	}
	return bool(bav), nil
}

// appendRow stores a copy of the row and extends every cached index.
func (t *table) appendRow(row []ir.Value, jk uint64) error {
	stored := make([]ir.Value, len(row))
	copy(stored, row)
	idx := len(t.rows)
	t.rows = append(t.rows, stored)
	t.byKey[jk] = append(t.byKey[jk], idx)
	for _, pi := range t.indexes {
		if err := pi.add(idx, stored); err != nil {
			return err
		}
	}
	return nil
}

func rowMatches(row, bound []ir.Value, mask uint32) bool {
	for i, b := range bound {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		if !ir.Equal(row[i], b) {
			return false
		}
	}
	return true
}
