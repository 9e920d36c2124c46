package ir

import (
	"fmt"
	"strings"
)

// MaxArity bounds symbol arity. Lookup patterns are bitmasks over columns,
// so arity must fit in 32 bits.
const MaxArity = 32

// Constraint is one rule: head derived from a body conjunction. The ID is
// carried through failure diagnostics and must be unique within a program.
type Constraint struct {
	ID   string        `json:"id"`
	Head Head          `json:"head"`
	Body []BodyLiteral `json:"body"`
}

// String renders the constraint in "head :- lit, lit." form for diagnostics.
func (c Constraint) String() string {
	var sb strings.Builder
	sb.WriteString(c.Head.String())
	if len(c.Body) > 0 {
		sb.WriteString(" :- ")
		for i, lit := range c.Body {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(lit.String())
		}
	}
	sb.WriteByte('.')
	return sb.String()
}

// Program is a compiled constraint program: symbol table, constraints in
// declaration order, and the precomputed stratification. The producer
// certifies well-typedness, range restriction and stratification validity;
// the solver re-checks none of it except the negation-finalization contract.
type Program struct {
	Symbols     []Symbol       `json:"symbols"`     // declaration order
	Constraints []Constraint   `json:"constraints"` // declaration order
	Strata      map[string]int `json:"strata"`      // symbol name -> stratum
}

// Symbol looks up a symbol by name.
func (p *Program) Symbol(name string) (*Symbol, bool) {
	for i := range p.Symbols {
		if p.Symbols[i].Name == name {
			return &p.Symbols[i], true
		}
	}
	return nil, false
}

// Stratum returns the stratum of a symbol, defaulting to 0 for symbols the
// stratification does not mention.
func (p *Program) Stratum(name string) int {
	return p.Strata[name]
}

// NumStrata returns one past the highest stratum index.
func (p *Program) NumStrata() int {
	n := 0
	for _, s := range p.Strata {
		if s+1 > n {
			n = s + 1
		}
	}
	if n == 0 {
		n = 1
	}
	return n
}

// ConstraintStratum computes the stratum a constraint is evaluated in. For a
// fact-deriving head that is the head symbol's stratum. Assertion constraints
// (HeadTrue/HeadFalse) have no head symbol; they run once every symbol they
// read is available: the maximum over positive/loop dependencies, plus one
// past any negated dependency so negation only ever sees finalized extents.
func (p *Program) ConstraintStratum(c Constraint) int {
	if h, ok := c.Head.(HeadAtom); ok {
		return p.Stratum(h.Sym)
	}
	stratum := 0
	for _, lit := range c.Body {
		switch l := lit.(type) {
		case Atom:
			if s := p.Stratum(l.Sym); s > stratum {
				stratum = s
			}
		case NegAtom:
			if s := p.Stratum(l.Sym) + 1; s > stratum {
				stratum = s
			}
		}
	}
	return stratum
}

// Validate performs shape checks a hand-built program can get wrong:
// duplicate symbols or constraint IDs, atoms over undeclared symbols, and
// arity mismatches. It does NOT re-derive range restriction or
// stratification validity - those are upstream contracts.
func (p *Program) Validate() error {
	seen := make(map[string]bool, len(p.Symbols))
	for _, sym := range p.Symbols {
		if seen[sym.Name] {
			return fmt.Errorf("duplicate symbol %q", sym.Name)
		}
		seen[sym.Name] = true
		if sym.Arity < 1 {
			return fmt.Errorf("symbol %q: arity must be at least 1, got %d", sym.Name, sym.Arity)
		}
		if sym.Arity > MaxArity {
			return fmt.Errorf("symbol %q: arity %d exceeds maximum %d", sym.Name, sym.Arity, MaxArity)
		}
		if !ValidSymbolKinds[sym.Kind] {
			return fmt.Errorf("symbol %q: unknown kind %q", sym.Name, sym.Kind)
		}
		if sym.Kind == KindLattice && sym.Ops == nil {
			return fmt.Errorf("lattice symbol %q: missing lattice operators", sym.Name)
		}
		if sym.Kind == KindRelation && sym.Ops != nil {
			return fmt.Errorf("relation symbol %q: lattice operators are not allowed", sym.Name)
		}
	}

	ids := make(map[string]bool, len(p.Constraints))
	for _, c := range p.Constraints {
		if c.ID == "" {
			return fmt.Errorf("constraint %s: empty id", c)
		}
		if ids[c.ID] {
			return fmt.Errorf("duplicate constraint id %q", c.ID)
		}
		ids[c.ID] = true

		if h, ok := c.Head.(HeadAtom); ok {
			if err := p.checkAtom(h.Sym, len(h.Terms)); err != nil {
				return fmt.Errorf("constraint %q head: %w", c.ID, err)
			}
		}
		for _, lit := range c.Body {
			switch l := lit.(type) {
			case Atom:
				if err := p.checkAtom(l.Sym, len(l.Terms)); err != nil {
					return fmt.Errorf("constraint %q: %w", c.ID, err)
				}
			case NegAtom:
				if err := p.checkAtom(l.Sym, len(l.Terms)); err != nil {
					return fmt.Errorf("constraint %q: %w", c.ID, err)
				}
			}
		}
	}
	return nil
}

func (p *Program) checkAtom(sym string, nterms int) error {
	s, ok := p.Symbol(sym)
	if !ok {
		return fmt.Errorf("atom over undeclared symbol %q", sym)
	}
	if nterms != s.Arity {
		return fmt.Errorf("atom over %q: %d terms, symbol arity is %d", sym, nterms, s.Arity)
	}
	return nil
}
