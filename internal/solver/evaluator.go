package solver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/strata/internal/ir"
)

// evaluation is the per-solve semi-naive fixpoint state. It exclusively owns
// the store for the duration of the solve; nothing here is shared between
// concurrent solves.
type evaluation struct {
	program  *ir.Program
	registry *Registry
	store    *TableStore
	token    string

	stratum int                      // stratum currently being iterated
	delta   map[string][][]ir.Value  // rows derived in the prior round
	next    map[string][][]ir.Value  // rows derived in the current round
}

// runStratum drives one stratum to quiescence. Deltas are seeded from the
// current extents of every symbol the stratum defines or reads positively;
// the round loop ends when a full round yields empty deltas everywhere.
// After return the stratum's extents are frozen: later strata may negate
// over them.
func (ev *evaluation) runStratum(ctx context.Context, st stratum) error {
	if len(st.constraints) == 0 {
		return nil
	}
	ev.stratum = st.index

	ev.delta = make(map[string][][]ir.Value, len(st.seedSymbols))
	for _, sym := range st.seedSymbols {
		ev.delta[sym] = ev.extentRows(sym)
	}

	for round := 0; ; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev.next = make(map[string][][]ir.Value)

		for ci := range st.constraints {
			c := &st.constraints[ci]
			if err := ev.evalConstraint(c, round); err != nil {
				return err
			}
		}

		derived := 0
		for _, rows := range ev.next {
			derived += len(rows)
		}
		slog.Debug("stratum round complete",
			"run", ev.token,
			"stratum", st.index,
			"round", round,
			"derived", derived,
		)
		if derived == 0 {
			return nil
		}
		ev.delta = ev.next
	}
}

// evalConstraint applies the semi-naive discipline: the body is evaluated
// once per positive literal, with that literal reading the prior round's
// delta and the others reading the full extent. Constraints with no positive
// literal (ground rules, pure assertions over loops and filters) fire in the
// first round only.
func (ev *evaluation) evalConstraint(c *ir.Constraint, round int) error {
	var positives []int
	for i, lit := range c.Body {
		if _, ok := lit.(ir.Atom); ok {
			positives = append(positives, i)
		}
	}

	if len(positives) == 0 {
		if round > 0 {
			return nil
		}
		return ev.evalBody(c, -1, nil, 0, make(map[ir.Var]ir.Value))
	}

	for _, dp := range positives {
		atom := c.Body[dp].(ir.Atom)
		deltaRows := ev.delta[atom.Sym]
		if len(deltaRows) == 0 {
			continue
		}
		if err := ev.evalBody(c, dp, deltaRows, 0, make(map[ir.Var]ir.Value)); err != nil {
			return err
		}
	}
	return nil
}

// evalBody evaluates body literals from position pos onward under env,
// emitting the head for every environment that survives the whole
// conjunction. deltaPos marks the one positive literal reading deltaRows
// instead of the store.
func (ev *evaluation) evalBody(c *ir.Constraint, deltaPos int, deltaRows [][]ir.Value, pos int, env map[ir.Var]ir.Value) error {
	if pos == len(c.Body) {
		return ev.emitHead(c, env)
	}

	switch lit := c.Body[pos].(type) {
	case ir.Atom:
		if pos == deltaPos {
			for _, row := range deltaRows {
				if err := ev.matchAndRecurse(c, deltaPos, deltaRows, pos, env, lit.Terms, row); err != nil {
					return err
				}
			}
			return nil
		}
		bound, err := ev.atomPattern(c, lit.Terms, env)
		if err != nil {
			return err
		}
		seq, err := ev.store.Lookup(lit.Sym, bound)
		if err != nil {
			return err
		}
		var inner error
		seq(func(row []ir.Value) bool {
			inner = ev.matchAndRecurse(c, deltaPos, deltaRows, pos, env, lit.Terms, row)
			return inner == nil
		})
		return inner

	case ir.NegAtom:
		symStratum := ev.program.Stratum(lit.Sym)
		if symStratum >= ev.stratum {
			return NewStratificationError(c.ID, lit.Sym, symStratum, ev.stratum)
		}
		bound := make([]ir.Value, len(lit.Terms))
		for i, t := range lit.Terms {
			v, err := ev.evalTerm(c, t, env)
			if err != nil {
				return err
			}
			bound[i] = v
		}
		found, err := ev.store.Contains(lit.Sym, bound)
		if err != nil {
			return err
		}
		if found {
			return nil
		}
		return ev.evalBody(c, deltaPos, deltaRows, pos+1, env)

	case ir.Filter:
		args := make([]ir.Value, len(lit.Args))
		for i, t := range lit.Args {
			v, err := ev.evalTerm(c, t, env)
			if err != nil {
				return err
			}
			args[i] = v
		}
		result, err := ev.registry.Call(lit.Fn, args)
		if err != nil {
			return NewScalarError(c.ID, lit.Fn, renderEnv(env), err)
		}
		b, ok := result.(ir.Bool)
		if !ok {
			return NewScalarError(c.ID, lit.Fn, renderEnv(env),
				fmt.Errorf("filter returned %T, want bool", result))
		}
		if !b {
			return nil
		}
		return ev.evalBody(c, deltaPos, deltaRows, pos+1, env)

	case ir.Guard:
		left, err := ev.evalTerm(c, lit.Left, env)
		if err != nil {
			return err
		}
		right, err := ev.evalTerm(c, lit.Right, env)
		if err != nil {
			return err
		}
		if ir.Equal(left, right) {
			return nil
		}
		return ev.evalBody(c, deltaPos, deltaRows, pos+1, env)

	case ir.Loop:
		source, err := ev.evalTerm(c, lit.Source, env)
		if err != nil {
			return err
		}
		elems, ok := ir.Elements(source)
		if !ok {
			return fmt.Errorf("constraint %q: loop source %s is not a collection: %s",
				c.ID, lit.Source, source)
		}
		for _, elem := range elems {
			prev, had := env[lit.Var]
			if had && !ir.Equal(prev, elem) {
				continue
			}
			env[lit.Var] = elem
			if err := ev.evalBody(c, deltaPos, deltaRows, pos+1, env); err != nil {
				return err
			}
			if had {
				env[lit.Var] = prev
			} else {
				delete(env, lit.Var)
			}
		}
		return nil

	default:
		return fmt.Errorf("constraint %q: unknown body literal %T", c.ID, lit)
	}
}

// matchAndRecurse unifies an atom's terms against one row, extending env
// with newly bound variables, and continues with the rest of the body.
// Bindings are undone on return so sibling rows see a clean environment.
func (ev *evaluation) matchAndRecurse(c *ir.Constraint, deltaPos int, deltaRows [][]ir.Value, pos int, env map[ir.Var]ir.Value, terms []ir.Term, row []ir.Value) error {
	if len(terms) != len(row) {
		return fmt.Errorf("constraint %q: atom arity %d against row arity %d", c.ID, len(terms), len(row))
	}

	var boundVars []ir.Var
	undo := func() {
		for _, v := range boundVars {
			delete(env, v)
		}
	}

	for i, t := range terms {
		switch tt := t.(type) {
		case ir.Var:
			if have, ok := env[tt]; ok {
				if !ir.Equal(have, row[i]) {
					undo()
					return nil
				}
				continue
			}
			env[tt] = row[i]
			boundVars = append(boundVars, tt)
		default:
			want, err := ev.evalTerm(c, t, env)
			if err != nil {
				undo()
				return err
			}
			if !ir.Equal(want, row[i]) {
				undo()
				return nil
			}
		}
	}

	err := ev.evalBody(c, deltaPos, deltaRows, pos+1, env)
	undo()
	return err
}

// atomPattern computes the bound-column lookup pattern of a positive atom:
// a concrete value for every term evaluable under env, nil for columns bound
// by the match itself.
func (ev *evaluation) atomPattern(c *ir.Constraint, terms []ir.Term, env map[ir.Var]ir.Value) ([]ir.Value, error) {
	bound := make([]ir.Value, len(terms))
	for i, t := range terms {
		switch tt := t.(type) {
		case ir.Var:
			if v, ok := env[tt]; ok {
				bound[i] = v
			}
		case ir.Lit:
			bound[i] = tt.Val
		case ir.App:
			if !ev.appBound(tt, env) {
				continue
			}
			v, err := ev.evalTerm(c, t, env)
			if err != nil {
				return nil, err
			}
			bound[i] = v
		}
	}
	return bound, nil
}

func (ev *evaluation) appBound(a ir.App, env map[ir.Var]ir.Value) bool {
	for _, v := range ir.TermVars(nil, a) {
		if _, ok := env[v]; !ok {
			return false
		}
	}
	return true
}

// evalTerm evaluates a term under env. Unbound variables are an upstream
// range-restriction breach; scalar application failures surface as
// SCALAR_FUNCTION_FAILURE with the constraint and binding context attached.
func (ev *evaluation) evalTerm(c *ir.Constraint, t ir.Term, env map[ir.Var]ir.Value) (ir.Value, error) {
	switch tt := t.(type) {
	case ir.Var:
		v, ok := env[tt]
		if !ok {
			return nil, fmt.Errorf("constraint %q: unbound variable %q", c.ID, tt)
		}
		return v, nil
	case ir.Lit:
		return tt.Val, nil
	case ir.App:
		args := make([]ir.Value, len(tt.Args))
		for i, at := range tt.Args {
			v, err := ev.evalTerm(c, at, env)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		v, err := ev.registry.Call(tt.Fn, args)
		if err != nil {
			return nil, NewScalarError(c.ID, tt.Fn, renderEnv(env), err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("constraint %q: unknown term %T", c.ID, t)
	}
}

// emitHead instantiates the constraint head under a surviving environment.
func (ev *evaluation) emitHead(c *ir.Constraint, env map[ir.Var]ir.Value) error {
	switch h := c.Head.(type) {
	case ir.HeadTrue:
		return nil

	case ir.HeadFalse:
		return NewUnsatisfiableError(c.ID, renderEnv(env))

	case ir.HeadAtom:
		vals := make([]ir.Value, len(h.Terms))
		for i, t := range h.Terms {
			v, err := ev.evalTerm(c, t, env)
			if err != nil {
				return err
			}
			vals[i] = v
		}
		sym, ok := ev.program.Symbol(h.Sym)
		if !ok {
			return fmt.Errorf("constraint %q: head over undeclared symbol %q", c.ID, h.Sym)
		}
		switch sym.Kind {
		case ir.KindRelation:
			changed, err := ev.store.Insert(ir.Fact{Sym: h.Sym, Values: vals})
			if err != nil {
				return err
			}
			if changed {
				ev.next[h.Sym] = append(ev.next[h.Sym], vals)
			}
		case ir.KindLattice:
			n := len(vals)
			changed, merged, err := ev.store.Merge(h.Sym, vals[:n-1], vals[n-1])
			if err != nil {
				return err
			}
			if changed {
				row := make([]ir.Value, n)
				copy(row, vals[:n-1])
				row[n-1] = merged
				ev.next[h.Sym] = append(ev.next[h.Sym], row)
			}
		}
		return nil

	default:
		return fmt.Errorf("constraint %q: unknown head %T", c.ID, c.Head)
	}
}

// extentRows copies the current rows of a symbol. Lattice values mutate in
// place on merge, so delta seeds must not alias stored rows.
func (ev *evaluation) extentRows(sym string) [][]ir.Value {
	t := ev.store.tables[sym]
	if t == nil || len(t.rows) == 0 {
		return nil
	}
	rows := make([][]ir.Value, len(t.rows))
	for i, row := range t.rows {
		cp := make([]ir.Value, len(row))
		copy(cp, row)
		rows[i] = cp
	}
	return rows
}

func renderEnv(env map[ir.Var]ir.Value) map[string]string {
	out := make(map[string]string, len(env))
	for name, val := range env {
		out[string(name)] = val.String()
	}
	return out
}
