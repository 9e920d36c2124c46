package shrink

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/ir"
	"github.com/roach88/strata/internal/solver"
)

// pairProgram fails only when both Item("a") and Item("c") are present.
func pairProgram() *ir.Program {
	return &ir.Program{
		Symbols: []ir.Symbol{
			{Name: "Item", Arity: 1, Kind: ir.KindRelation},
		},
		Constraints: []ir.Constraint{
			{
				ID:   "a-and-c-conflict",
				Head: ir.HeadFalse{},
				Body: []ir.BodyLiteral{
					ir.Atom{Sym: "Item", Terms: []ir.Term{ir.Lit{Val: ir.Str("a")}}},
					ir.Atom{Sym: "Item", Terms: []ir.Term{ir.Lit{Val: ir.Str("c")}}},
				},
			},
		},
		Strata: map[string]int{"Item": 0},
	}
}

func items(names ...string) []ir.Fact {
	facts := make([]ir.Fact, len(names))
	for i, n := range names {
		facts[i] = ir.NewFact("Item", ir.Str(n))
	}
	return facts
}

// recordingSink counts writes so tests can assert the exactly-once contract.
type recordingSink struct {
	writes int
	facts  []ir.Fact
}

func (s *recordingSink) Write(facts []ir.Fact) error {
	s.writes++
	s.facts = facts
	return nil
}

func TestMinimizePairConflict(t *testing.T) {
	orc := solver.New(pairProgram(), solver.DefaultRegistry())
	sink := &recordingSink{}

	res, err := New(orc).Minimize(context.Background(), items("a", "b", "c"), sink)
	require.NoError(t, err)
	require.True(t, res.Reproduced)

	var got []string
	for _, f := range res.Facts {
		got = append(got, f.String())
	}
	assert.Equal(t, []string{`Item("a")`, `Item("c")`}, got)
	assert.True(t, solver.IsUnsatisfiable(res.Failure))

	assert.Equal(t, 1, sink.writes, "sink written exactly once")
	assert.Equal(t, res.Facts, sink.facts)
	assert.GreaterOrEqual(t, res.Trials, 2)
}

func TestMinimizeResultIsOneMinimal(t *testing.T) {
	orc := solver.New(pairProgram(), solver.DefaultRegistry())

	res, err := New(orc).Minimize(context.Background(), items("a", "b", "c"), nil)
	require.NoError(t, err)
	require.True(t, res.Reproduced)

	// Removing any single remaining fact must stop reproducing.
	for i := range res.Facts {
		reduced := append(append([]ir.Fact{}, res.Facts[:i]...), res.Facts[i+1:]...)
		_, solveErr := orc.Solve(context.Background(), reduced)
		assert.NoError(t, solveErr, "dropping %s must not reproduce", res.Facts[i])
	}
}

func TestMinimizeNotReproducible(t *testing.T) {
	orc := solver.New(pairProgram(), solver.DefaultRegistry())
	sink := &recordingSink{}

	res, err := New(orc).Minimize(context.Background(), items("a", "b"), sink)
	require.NoError(t, err)
	assert.False(t, res.Reproduced)
	assert.Nil(t, res.Facts)
	assert.Equal(t, 1, res.Trials)
	assert.Zero(t, sink.writes, "non-reproduction must not write")
}

func TestMinimizeSingleFact(t *testing.T) {
	p := &ir.Program{
		Symbols: []ir.Symbol{{Name: "Item", Arity: 1, Kind: ir.KindRelation}},
		Constraints: []ir.Constraint{
			{
				ID:   "no-a",
				Head: ir.HeadFalse{},
				Body: []ir.BodyLiteral{ir.Atom{Sym: "Item", Terms: []ir.Term{ir.Lit{Val: ir.Str("a")}}}},
			},
		},
		Strata: map[string]int{"Item": 0},
	}
	orc := solver.New(p, solver.DefaultRegistry())

	res, err := New(orc).Minimize(context.Background(), items("x", "y", "a", "z"), nil)
	require.NoError(t, err)
	require.True(t, res.Reproduced)
	require.Len(t, res.Facts, 1)
	assert.Equal(t, `Item("a")`, res.Facts[0].String())
}

func TestMinimizeScalarFailureTarget(t *testing.T) {
	reg := solver.DefaultRegistry()
	require.NoError(t, reg.Register(solver.Callable{
		Name: "explode",
		Pure: true,
		Fn: func([]ir.Value) (ir.Value, error) {
			return nil, errors.New("boom")
		},
	}))
	p := &ir.Program{
		Symbols: []ir.Symbol{{Name: "Item", Arity: 1, Kind: ir.KindRelation}},
		Constraints: []ir.Constraint{
			{
				ID:   "check",
				Head: ir.HeadTrue{},
				Body: []ir.BodyLiteral{
					ir.Atom{Sym: "Item", Terms: []ir.Term{ir.Var("x")}},
					ir.Filter{Fn: "explode", Args: []ir.Term{ir.Var("x")}},
				},
			},
		},
		Strata: map[string]int{"Item": 0},
	}
	orc := solver.New(p, reg)

	res, err := New(orc).Minimize(context.Background(), items("p", "q", "r"), nil)
	require.NoError(t, err)
	require.True(t, res.Reproduced)
	assert.Len(t, res.Facts, 1, "any single fact reproduces, so the result is a singleton")
	assert.True(t, solver.IsScalarFailure(res.Failure))
}

// Two independent failing constraints: strict matching shrinks toward the
// one the original run hit, loose matching takes the first reproducer found.
func strictnessProgram() *ir.Program {
	return &ir.Program{
		Symbols: []ir.Symbol{{Name: "Item", Arity: 1, Kind: ir.KindRelation}},
		Constraints: []ir.Constraint{
			{
				ID:   "no-a",
				Head: ir.HeadFalse{},
				Body: []ir.BodyLiteral{ir.Atom{Sym: "Item", Terms: []ir.Term{ir.Lit{Val: ir.Str("a")}}}},
			},
			{
				ID:   "no-b",
				Head: ir.HeadFalse{},
				Body: []ir.BodyLiteral{ir.Atom{Sym: "Item", Terms: []ir.Term{ir.Lit{Val: ir.Str("b")}}}},
			},
		},
		Strata: map[string]int{"Item": 0},
	}
}

func TestMinimizeStrictnessIdentity(t *testing.T) {
	orc := solver.New(strictnessProgram(), solver.DefaultRegistry())

	// The original run fails on "no-a" (constraint order is deterministic).
	res, err := New(orc, WithStrictness(MatchIdentity)).
		Minimize(context.Background(), items("a", "b"), nil)
	require.NoError(t, err)
	require.True(t, res.Reproduced)
	require.Len(t, res.Facts, 1)
	assert.Equal(t, `Item("a")`, res.Facts[0].String())

	se, ok := solver.AsSolveError(res.Failure)
	require.True(t, ok)
	assert.Equal(t, "no-a", se.ConstraintID)
}

func TestMinimizeStrictnessAny(t *testing.T) {
	orc := solver.New(strictnessProgram(), solver.DefaultRegistry())

	// Loose matching accepts the first failing subset, which here is the
	// complement of {"a"}.
	res, err := New(orc).Minimize(context.Background(), items("a", "b"), nil)
	require.NoError(t, err)
	require.True(t, res.Reproduced)
	require.Len(t, res.Facts, 1)
	assert.Equal(t, `Item("b")`, res.Facts[0].String())
}

func TestMinimizeNonTargetFailureAborts(t *testing.T) {
	p := &ir.Program{
		Symbols: []ir.Symbol{
			{Name: "Edge", Arity: 2, Kind: ir.KindRelation},
			{Name: "Odd", Arity: 2, Kind: ir.KindRelation},
		},
		Constraints: []ir.Constraint{
			{
				ID:   "bad-negation",
				Head: ir.HeadAtom{Sym: "Odd", Terms: []ir.Term{ir.Var("x"), ir.Var("y")}},
				Body: []ir.BodyLiteral{
					ir.Atom{Sym: "Edge", Terms: []ir.Term{ir.Var("x"), ir.Var("y")}},
					ir.NegAtom{Sym: "Odd", Terms: []ir.Term{ir.Var("y"), ir.Var("x")}},
				},
			},
		},
		Strata: map[string]int{"Edge": 0, "Odd": 0},
	}
	orc := solver.New(p, solver.DefaultRegistry())
	sink := &recordingSink{}

	_, err := New(orc).Minimize(context.Background(),
		[]ir.Fact{ir.NewFact("Edge", ir.Int(1), ir.Int(2))}, sink)
	require.Error(t, err)
	assert.True(t, solver.IsStratificationViolation(err))
	assert.Zero(t, sink.writes)
}

func TestMinimizeContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orc := solver.New(pairProgram(), solver.DefaultRegistry())
	_, err := New(orc).Minimize(ctx, items("a", "b", "c"), nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(&buf)
	require.NoError(t, sink.Write(items("a", "c")))
	assert.Equal(t, "Item(\"a\")\nItem(\"c\")\n", buf.String())
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimized.facts")
	sink := &FileSink{Path: path}
	require.NoError(t, sink.Write(items("a")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Item(\"a\")\n", string(data))
}

func TestPartition(t *testing.T) {
	cases := []struct {
		total, n int
		want     []span
	}{
		{4, 2, []span{{0, 2}, {2, 4}}},
		{5, 2, []span{{0, 3}, {3, 5}}},
		{3, 3, []span{{0, 1}, {1, 2}, {2, 3}}},
		{2, 4, []span{{0, 1}, {1, 2}}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, partition(tc.total, tc.n), "partition(%d, %d)", tc.total, tc.n)
	}
}
