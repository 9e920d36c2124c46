package ir

import (
	"fmt"
	"strings"
)

// Fact is an immutable, fixed-arity ordered value sequence over a symbol.
// For lattice symbols the last value is the lattice value column.
type Fact struct {
	Sym    string  `json:"sym"`
	Values []Value `json:"values"`
}

// String renders the fact in program-level literal syntax:
// SymbolName(value1, value2, ...). This is the line format of minimized
// fact files and model dumps.
func (f Fact) String() string {
	var sb strings.Builder
	sb.WriteString(f.Sym)
	sb.WriteByte('(')
	for i, v := range f.Values {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(v.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// CompareFacts orders facts by symbol name, then row content. Used for
// deterministic model output.
func CompareFacts(a, b Fact) int {
	if c := strings.Compare(a.Sym, b.Sym); c != 0 {
		return c
	}
	return CompareRow(a.Values, b.Values)
}

// NewFact builds a fact, copying the value slice so callers cannot mutate
// stored state through the original.
func NewFact(sym string, values ...Value) Fact {
	vals := make([]Value, len(values))
	copy(vals, values)
	return Fact{Sym: sym, Values: vals}
}

// Canonical returns the canonical byte form of the fact: the symbol name,
// a NUL separator, then the canonical row encoding.
func (f Fact) Canonical() ([]byte, error) {
	row, err := MarshalCanonicalRow(f.Values)
	if err != nil {
		return nil, fmt.Errorf("fact %s: %w", f.Sym, err)
	}
	buf := make([]byte, 0, len(f.Sym)+1+len(row))
	buf = append(buf, f.Sym...)
	buf = append(buf, 0x00)
	buf = append(buf, row...)
	return buf, nil
}
