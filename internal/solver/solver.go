package solver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/strata/internal/ir"
)

// Solver evaluates one compiled constraint program. A Solver is immutable
// and safe for concurrent use: every Solve call builds its own TableStore
// and index state.
type Solver struct {
	program  *ir.Program
	registry *Registry
	tokens   TokenGenerator
}

// Option configures a Solver.
type Option func(*Solver)

// WithTokenGenerator overrides the run-token generator. Tests use
// FixedGenerator for deterministic log output.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(s *Solver) {
		s.tokens = g
	}
}

// New creates a Solver for a compiled program. The program is assumed
// well-typed, range-restricted and validly stratified by its producer; the
// registry must resolve every scalar callable and lattice operator the
// program names.
func New(program *ir.Program, registry *Registry, opts ...Option) *Solver {
	s := &Solver{
		program:  program,
		registry: registry,
		tokens:   UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Solve evaluates the program over the initial facts to its minimal model.
// Single-threaded, no suspension points; ctx is checked between strata and
// rounds only. On failure the returned error carries the failing constraint
// identity and binding context; no partial model is returned.
func (s *Solver) Solve(ctx context.Context, facts []ir.Fact) (*Model, error) {
	token := s.tokens.Generate()
	slog.Debug("solve starting",
		"run", token,
		"symbols", len(s.program.Symbols),
		"constraints", len(s.program.Constraints),
		"initial_facts", len(facts),
	)

	store := NewTableStore(s.program, s.registry)
	if err := s.loadInitialFacts(store, facts); err != nil {
		return nil, err
	}

	ev := &evaluation{
		program:  s.program,
		registry: s.registry,
		store:    store,
		token:    token,
	}
	for _, st := range buildStrata(s.program) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := ev.runStratum(ctx, st); err != nil {
			return nil, err
		}
	}

	model := store.Snapshot()
	slog.Debug("solve finished",
		"run", token,
		"facts", model.Len(),
		"store_version", store.Version(),
	)
	return model, nil
}

// loadInitialFacts routes user-supplied facts into the fresh store:
// relation facts insert, lattice facts merge their last value under the
// symbol's lub.
func (s *Solver) loadInitialFacts(store *TableStore, facts []ir.Fact) error {
	for _, f := range facts {
		sym, ok := s.program.Symbol(f.Sym)
		if !ok {
			return fmt.Errorf("initial fact over undeclared symbol %q", f.Sym)
		}
		switch sym.Kind {
		case ir.KindRelation:
			if _, err := store.Insert(f); err != nil {
				return fmt.Errorf("initial fact %s: %w", f, err)
			}
		case ir.KindLattice:
			if len(f.Values) != sym.Arity {
				return fmt.Errorf("initial fact %s: arity %d, want %d", f, len(f.Values), sym.Arity)
			}
			n := len(f.Values)
			if _, _, err := store.Merge(f.Sym, f.Values[:n-1], f.Values[n-1]); err != nil {
				return fmt.Errorf("initial fact %s: %w", f, err)
			}
		}
	}
	return nil
}
