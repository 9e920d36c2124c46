package solver

import (
	"fmt"
	"io"
	"slices"

	"github.com/roach88/strata/internal/ir"
)

// Model is the immutable, fully-finalized result of a successful solve:
// symbol to ordered fact list (relations), or ordered key/value pairs
// (lattices). It is created once per solve and never mutated; it is the only
// artifact that outlives the solve call.
type Model struct {
	symbols []ir.Symbol
	tables  map[string][]ir.Fact // rows sorted by CompareRow
}

// KeyValue is one lattice table entry of a Model.
type KeyValue struct {
	Key []ir.Value
	Val ir.Value
}

func newModel(ts *TableStore) *Model {
	m := &Model{
		symbols: ts.program.Symbols,
		tables:  make(map[string][]ir.Fact, len(ts.program.Symbols)),
	}
	for i := range ts.program.Symbols {
		sym := &ts.program.Symbols[i]
		t := ts.tables[sym.Name]
		facts := make([]ir.Fact, 0, len(t.rows))
		for _, row := range t.rows {
			vals := make([]ir.Value, len(row))
			copy(vals, row)
			facts = append(facts, ir.Fact{Sym: sym.Name, Values: vals})
		}
		slices.SortFunc(facts, ir.CompareFacts)
		m.tables[sym.Name] = facts
	}
	return m
}

// Symbols returns the program's symbols in declaration order.
func (m *Model) Symbols() []ir.Symbol {
	return m.symbols
}

// Facts returns the ordered facts of a symbol. For lattice symbols the last
// value of each fact is the merged lattice value.
func (m *Model) Facts(sym string) []ir.Fact {
	return m.tables[sym]
}

// Pairs returns the ordered key/value pairs of a lattice symbol.
func (m *Model) Pairs(sym string) []KeyValue {
	facts := m.tables[sym]
	pairs := make([]KeyValue, len(facts))
	for i, f := range facts {
		n := len(f.Values)
		pairs[i] = KeyValue{Key: f.Values[:n-1], Val: f.Values[n-1]}
	}
	return pairs
}

// AllFacts returns every fact of the model: symbols in declaration order,
// facts ordered within each symbol. Re-solving with this as the initial
// input yields the identical model (fixpoint idempotence).
func (m *Model) AllFacts() []ir.Fact {
	var out []ir.Fact
	for _, sym := range m.symbols {
		out = append(out, m.tables[sym.Name]...)
	}
	return out
}

// Len returns the total number of facts across all symbols.
func (m *Model) Len() int {
	n := 0
	for _, facts := range m.tables {
		n += len(facts)
	}
	return n
}

// Render writes the model as text, one fact per line in program-literal
// syntax, symbols in declaration order. This rendering is stable and is
// what golden tests compare.
func (m *Model) Render(w io.Writer) error {
	for _, sym := range m.symbols {
		for _, f := range m.tables[sym.Name] {
			if _, err := fmt.Fprintln(w, f.String()); err != nil {
				return err
			}
		}
	}
	return nil
}
