package shrink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/strata/internal/ir"
	"github.com/roach88/strata/internal/solver"
)

// Strictness controls which trial failures count as reproducing the
// original failure.
type Strictness int

const (
	// MatchAny accepts any unsatisfiable-constraint or scalar-function
	// failure as the target, regardless of which constraint raised it.
	MatchAny Strictness = iota

	// MatchIdentity accepts only failures with the same error code and
	// constraint identity as the original run.
	MatchIdentity
)

func (s Strictness) String() string {
	switch s {
	case MatchAny:
		return "any"
	case MatchIdentity:
		return "identity"
	default:
		return fmt.Sprintf("Strictness(%d)", int(s))
	}
}

// Result is the outcome of a minimization run.
type Result struct {
	// Reproduced reports whether the initial fact set triggered a target
	// failure at all. When false, Facts is nil and nothing was written.
	Reproduced bool

	// Facts is the 1-minimal reproducing subset, in the original facts'
	// relative order.
	Facts []ir.Fact

	// Failure is the solve error observed for the final minimized set.
	Failure error

	// Trials counts oracle solves performed, including the initial one.
	Trials int
}

// Minimizer shrinks failing fact sets against a fixed solver oracle.
type Minimizer struct {
	solver     *solver.Solver
	strictness Strictness
}

// Option configures a Minimizer.
type Option func(*Minimizer)

// WithStrictness selects the failure-matching mode. The default is MatchAny.
func WithStrictness(s Strictness) Option {
	return func(m *Minimizer) {
		m.strictness = s
	}
}

// New creates a Minimizer over a solver. The solver is used as a black-box
// oracle; the Minimizer never inspects partial evaluation state.
func New(s *solver.Solver, opts ...Option) *Minimizer {
	m := &Minimizer{solver: s, strictness: MatchAny}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// run carries the mutable state of one Minimize call: the trial counter and
// the original failure that strict matching compares against.
type run struct {
	trials   int
	original *solver.SolveError
}

// Minimize runs delta debugging over facts. When the initial solve fails
// with a target failure, it returns a 1-minimal reproducing subset and
// writes it to sink exactly once; when the initial solve succeeds, it
// returns Reproduced: false and writes nothing. A nil sink skips
// persistence.
//
// Non-target errors, context cancellation and stratification breaches
// included, abort minimization and propagate.
func (m *Minimizer) Minimize(ctx context.Context, facts []ir.Fact, sink Sink) (*Result, error) {
	r := &run{}

	failure, err := m.trial(ctx, r, facts)
	if err != nil {
		return nil, err
	}
	if failure == nil {
		slog.Debug("minimize: failure not reproducible", "facts", len(facts))
		return &Result{Trials: r.trials}, nil
	}
	r.original, _ = solver.AsSolveError(failure)

	current := make([]ir.Fact, len(facts))
	copy(current, facts)

	n := 2
	for len(current) > 1 {
		next, nextFailure, err := m.pass(ctx, r, current, n)
		if err != nil {
			return nil, err
		}
		if next != nil {
			current = next
			failure = nextFailure
			n = 2
			continue
		}
		if n >= len(current) {
			break
		}
		n = min(n*2, len(current))
	}

	setID, err := ir.FactSetID(current)
	if err != nil {
		return nil, err
	}
	slog.Debug("minimize: converged",
		"facts", len(current),
		"trials", r.trials,
		"fact_set", setID,
	)

	if sink != nil {
		if err := sink.Write(current); err != nil {
			return nil, fmt.Errorf("persist minimized facts: %w", err)
		}
	}
	return &Result{
		Reproduced: true,
		Facts:      current,
		Failure:    failure,
		Trials:     r.trials,
	}, nil
}

// pass runs one granularity level: for every chunk of an n-way partition of
// current, it trials the complement and then the chunk alone. The first
// reproducing subset wins the pass; nil means no reduction at this
// granularity.
func (m *Minimizer) pass(ctx context.Context, r *run, current []ir.Fact, n int) ([]ir.Fact, error, error) {
	for _, ch := range partition(len(current), n) {
		complement := without(current, ch.start, ch.end)
		failure, err := m.trial(ctx, r, complement)
		if err != nil {
			return nil, nil, err
		}
		if failure != nil {
			return complement, failure, nil
		}

		if ch.end-ch.start == len(current) {
			continue
		}
		subset := current[ch.start:ch.end:ch.end]
		failure, err = m.trial(ctx, r, subset)
		if err != nil {
			return nil, nil, err
		}
		if failure != nil {
			return subset, failure, nil
		}
	}
	return nil, nil, nil
}

// trial performs one oracle solve. It returns the solve error when it is a
// target failure under the configured strictness, nil when the solve
// succeeds or fails off-target, and a second error when minimization must
// abort.
func (m *Minimizer) trial(ctx context.Context, r *run, facts []ir.Fact) (error, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.trials++

	setID, err := ir.FactSetID(facts)
	if err != nil {
		return nil, err
	}

	_, solveErr := m.solver.Solve(ctx, facts)
	slog.Debug("minimize: trial",
		"trial", r.trials,
		"facts", len(facts),
		"fact_set", setID,
		"failed", solveErr != nil,
	)
	if solveErr == nil {
		return nil, nil
	}
	if ctx.Err() != nil {
		return nil, solveErr
	}

	se, ok := solver.AsSolveError(solveErr)
	if !ok {
		return nil, fmt.Errorf("trial %d: %w", r.trials, solveErr)
	}
	switch se.Code {
	case solver.CodeUnsatisfiable, solver.CodeScalarFailure:
		if m.matches(r, se) {
			return solveErr, nil
		}
		return nil, nil
	default:
		// Stratification breaches and the like are contract errors, not
		// input-dependent failures worth shrinking toward.
		return nil, fmt.Errorf("trial %d: non-target failure: %w", r.trials, solveErr)
	}
}

// matches checks a target-class failure against the run's original failure
// under the configured strictness. The initial solve, which establishes the
// original, matches unconditionally.
func (m *Minimizer) matches(r *run, se *solver.SolveError) bool {
	if m.strictness == MatchAny || r.original == nil {
		return true
	}
	return se.Code == r.original.Code && se.ConstraintID == r.original.ConstraintID
}

// span is a half-open chunk boundary over a fact slice.
type span struct {
	start, end int
}

// partition splits [0, total) into n nearly-equal non-empty spans. When
// n > total it degrades to total singleton spans.
func partition(total, n int) []span {
	n = min(n, total)
	spans := make([]span, 0, n)
	start := 0
	for i := range n {
		size := total / n
		if i < total%n {
			size++
		}
		spans = append(spans, span{start: start, end: start + size})
		start += size
	}
	return spans
}

// without copies facts minus the [start, end) span.
func without(facts []ir.Fact, start, end int) []ir.Fact {
	out := make([]ir.Fact, 0, len(facts)-(end-start))
	out = append(out, facts[:start]...)
	out = append(out, facts[end:]...)
	return out
}
