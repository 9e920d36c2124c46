package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/ir"
	"github.com/roach88/strata/internal/solver"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "strata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func solveTestModel(t *testing.T) *solver.Model {
	t.Helper()
	p := &ir.Program{
		Symbols: []ir.Symbol{
			{Name: "Edge", Arity: 2, Kind: ir.KindRelation},
			{Name: "Path", Arity: 2, Kind: ir.KindRelation},
		},
		Constraints: []ir.Constraint{
			{
				ID:   "path-base",
				Head: ir.HeadAtom{Sym: "Path", Terms: []ir.Term{ir.Var("x"), ir.Var("y")}},
				Body: []ir.BodyLiteral{ir.Atom{Sym: "Edge", Terms: []ir.Term{ir.Var("x"), ir.Var("y")}}},
			},
		},
		Strata: map[string]int{"Edge": 0, "Path": 0},
	}
	m, err := solver.New(p, solver.DefaultRegistry()).Solve(context.Background(),
		[]ir.Fact{
			ir.NewFact("Edge", ir.Int(1), ir.Int(2)),
			ir.NewFact("Edge", ir.Int(2), ir.Int(3)),
		})
	require.NoError(t, err)
	return m
}

func TestOpenIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strata.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestWriteAndReadModel(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	m := solveTestModel(t)

	require.NoError(t, s.WriteModel(ctx, "run-1", m))

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.Token)
	assert.Equal(t, ir.SolverVersion, run.SolverVersion)
	assert.Equal(t, 4, run.FactCount) // 2 Edge + 2 Path

	facts, err := s.ReadModelFacts(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, facts, 4)
	assert.Equal(t, "Edge(1, 2)", facts[0].Rendered)
	assert.Equal(t, "Edge", facts[0].Symbol)
	assert.NotEmpty(t, facts[0].FactID)
	assert.Equal(t, "Path(2, 3)", facts[3].Rendered)
}

func TestWriteModelIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	m := solveTestModel(t)

	require.NoError(t, s.WriteModel(ctx, "run-1", m))
	require.NoError(t, s.WriteModel(ctx, "run-1", m))

	facts, err := s.ReadModelFacts(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, facts, 4, "double archive must not duplicate facts")
}

func TestReadRunNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.ReadRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestWriteAndReadMinimizedSet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	facts := []ir.Fact{
		ir.NewFact("Item", ir.Str("a")),
		ir.NewFact("Item", ir.Str("c")),
	}

	require.NoError(t, s.WriteMinimizedSet(ctx, "run-2", facts))

	got, setID, err := s.ReadMinimizedFacts(ctx, "run-2")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, `Item("a")`, got[0].Rendered)
	assert.Equal(t, `Item("c")`, got[1].Rendered)

	wantID, err := ir.FactSetID(facts)
	require.NoError(t, err)
	assert.Equal(t, wantID, setID)
}

func TestMinimizeSink(t *testing.T) {
	s := openTestStore(t)
	sink := &MinimizeSink{Store: s, Token: "run-3"}
	require.NoError(t, sink.Write([]ir.Fact{ir.NewFact("Item", ir.Str("a"))}))

	got, _, err := s.ReadMinimizedFacts(context.Background(), "run-3")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, `Item("a")`, got[0].Rendered)
}
