package store

import (
	"context"
	"fmt"

	"github.com/roach88/strata/internal/ir"
	"github.com/roach88/strata/internal/solver"
)

// WriteModel archives a finalized model under a run token. The whole write
// is one transaction; facts are keyed by content-addressed ID with
// ON CONFLICT DO NOTHING, so re-archiving the same run is idempotent.
func (s *Store) WriteModel(ctx context.Context, token string, m *solver.Model) error {
	facts := m.AllFacts()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (token, solver_version, ir_version, fact_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(token) DO NOTHING
	`, token, ir.SolverVersion, ir.IRVersion, len(facts))
	if err != nil {
		return fmt.Errorf("write model: run %s: %w", token, err)
	}

	for i, f := range facts {
		canonical, err := f.Canonical()
		if err != nil {
			return fmt.Errorf("write model: fact %s: %w", f, err)
		}
		id, err := ir.FactID(f)
		if err != nil {
			return fmt.Errorf("write model: fact %s: %w", f, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO model_facts (run_token, fact_id, symbol, ord, rendered, canonical)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, token, id, f.Sym, i, f.String(), canonical)
		if err != nil {
			return fmt.Errorf("write model: fact %s: %w", f, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write model: commit: %w", err)
	}
	return nil
}

// WriteMinimizedSet archives a minimized fact set under a run token,
// recording the set's content-addressed identity. Idempotent per token.
func (s *Store) WriteMinimizedSet(ctx context.Context, token string, facts []ir.Fact) error {
	setID, err := ir.FactSetID(facts)
	if err != nil {
		return fmt.Errorf("write minimized set: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write minimized set: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (token, solver_version, ir_version, fact_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(token) DO NOTHING
	`, token, ir.SolverVersion, ir.IRVersion, len(facts))
	if err != nil {
		return fmt.Errorf("write minimized set: run %s: %w", token, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO minimized_sets (run_token, fact_set_id, fact_count)
		VALUES (?, ?, ?)
		ON CONFLICT(run_token) DO NOTHING
	`, token, setID, len(facts))
	if err != nil {
		return fmt.Errorf("write minimized set: %w", err)
	}

	for i, f := range facts {
		canonical, err := f.Canonical()
		if err != nil {
			return fmt.Errorf("write minimized set: fact %s: %w", f, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO minimized_facts (run_token, ord, symbol, rendered, canonical)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, token, i, f.Sym, f.String(), canonical)
		if err != nil {
			return fmt.Errorf("write minimized set: fact %s: %w", f, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write minimized set: commit: %w", err)
	}
	return nil
}

// MinimizeSink adapts the store into a minimizer sink: the minimized fact
// set is archived under a fixed run token.
type MinimizeSink struct {
	Store *Store
	Token string
}

// Write archives the facts. Called at most once per minimization.
func (s *MinimizeSink) Write(facts []ir.Fact) error {
	return s.Store.WriteMinimizedSet(context.Background(), s.Token, facts)
}
