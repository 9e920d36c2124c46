package solver

import (
	"github.com/roach88/strata/internal/ir"
)

// stratum is one evaluation-order partition: the constraints evaluated in it
// (declaration order preserved) and the symbols whose extents seed its
// deltas.
type stratum struct {
	index       int
	constraints []ir.Constraint
	seedSymbols []string // declaration order, deduplicated
}

// buildStrata partitions the program's constraints by evaluation stratum.
// Constraint order within a stratum follows declaration order, which the
// evaluator preserves for determinism.
//
// A stratum's deltas are seeded from every symbol its constraints define or
// read through positive literals: this-stratum symbols contribute the
// user-supplied initial facts, earlier-stratum symbols contribute their
// finalized extents carried forward.
func buildStrata(p *ir.Program) []stratum {
	n := p.NumStrata()
	// Assertion constraints may be pushed one past the last symbol stratum.
	for _, c := range p.Constraints {
		if s := p.ConstraintStratum(c) + 1; s > n {
			n = s
		}
	}

	strata := make([]stratum, n)
	for i := range strata {
		strata[i].index = i
	}
	for _, c := range p.Constraints {
		k := p.ConstraintStratum(c)
		strata[k].constraints = append(strata[k].constraints, c)
	}

	for k := range strata {
		seen := make(map[string]bool)
		add := func(sym string) {
			if !seen[sym] {
				seen[sym] = true
				strata[k].seedSymbols = append(strata[k].seedSymbols, sym)
			}
		}
		for _, c := range strata[k].constraints {
			if h, ok := c.Head.(ir.HeadAtom); ok {
				add(h.Sym)
			}
			for _, lit := range c.Body {
				if a, ok := lit.(ir.Atom); ok {
					add(a.Sym)
				}
			}
		}
	}
	return strata
}
