package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// RunRecord is the archive metadata of one solve run.
type RunRecord struct {
	Token         string
	CreatedAt     string
	SolverVersion string
	IRVersion     string
	FactCount     int
}

// FactRecord is one archived fact row.
type FactRecord struct {
	Symbol    string
	Rendered  string
	FactID    string
	Canonical []byte
}

// ErrRunNotFound is returned when no archived run matches the token.
var ErrRunNotFound = errors.New("run not found")

// ReadRun fetches a run's archive metadata.
func (s *Store) ReadRun(ctx context.Context, token string) (*RunRecord, error) {
	var rec RunRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT token, created_at, solver_version, ir_version, fact_count
		FROM runs WHERE token = ?
	`, token).Scan(&rec.Token, &rec.CreatedAt, &rec.SolverVersion, &rec.IRVersion, &rec.FactCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read run %s: %w", token, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read run %s: %w", token, err)
	}
	return &rec, nil
}

// ReadModelFacts fetches a run's archived model facts in archive order.
func (s *Store) ReadModelFacts(ctx context.Context, token string) ([]FactRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, rendered, fact_id, canonical
		FROM model_facts WHERE run_token = ?
		ORDER BY ord
	`, token)
	if err != nil {
		return nil, fmt.Errorf("read model facts %s: %w", token, err)
	}
	defer rows.Close()

	var facts []FactRecord
	for rows.Next() {
		var rec FactRecord
		if err := rows.Scan(&rec.Symbol, &rec.Rendered, &rec.FactID, &rec.Canonical); err != nil {
			return nil, fmt.Errorf("read model facts %s: %w", token, err)
		}
		facts = append(facts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read model facts %s: %w", token, err)
	}
	return facts, nil
}

// ReadMinimizedFacts fetches a run's archived minimized fact set, in the
// order the minimizer produced it, along with the set's content identity.
func (s *Store) ReadMinimizedFacts(ctx context.Context, token string) ([]FactRecord, string, error) {
	var setID string
	err := s.db.QueryRowContext(ctx, `
		SELECT fact_set_id FROM minimized_sets WHERE run_token = ?
	`, token).Scan(&setID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("read minimized facts %s: %w", token, ErrRunNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("read minimized facts %s: %w", token, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, rendered, canonical
		FROM minimized_facts WHERE run_token = ?
		ORDER BY ord
	`, token)
	if err != nil {
		return nil, "", fmt.Errorf("read minimized facts %s: %w", token, err)
	}
	defer rows.Close()

	var facts []FactRecord
	for rows.Next() {
		var rec FactRecord
		if err := rows.Scan(&rec.Symbol, &rec.Rendered, &rec.Canonical); err != nil {
			return nil, "", fmt.Errorf("read minimized facts %s: %w", token, err)
		}
		facts = append(facts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("read minimized facts %s: %w", token, err)
	}
	return facts, setID, nil
}
