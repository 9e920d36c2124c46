package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/ir"
)

func storeProgram() *ir.Program {
	return &ir.Program{
		Symbols: []ir.Symbol{
			{Name: "Edge", Arity: 2, Kind: ir.KindRelation},
			{Name: "Dist", Arity: 2, Kind: ir.KindLattice, Ops: &ir.LatticeOps{
				Bottom: "intInfinity", Leq: "leqInt", Lub: "minInt", Glb: "maxInt",
			}},
		},
		Strata: map[string]int{"Edge": 0, "Dist": 0},
	}
}

func newStore(t *testing.T) *TableStore {
	t.Helper()
	return NewTableStore(storeProgram(), DefaultRegistry())
}

func TestInsertIdempotent(t *testing.T) {
	ts := newStore(t)

	changed, err := ts.Insert(ir.NewFact("Edge", ir.Int(1), ir.Int(2)))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, uint64(1), ts.Version())

	changed, err = ts.Insert(ir.NewFact("Edge", ir.Int(1), ir.Int(2)))
	require.NoError(t, err)
	assert.False(t, changed, "duplicate insert must be a no-op")
	assert.Equal(t, uint64(1), ts.Version(), "no-op insert must not bump the version")
	assert.Equal(t, 1, ts.Len("Edge"))
}

func TestInsertRejectsBadSymbols(t *testing.T) {
	ts := newStore(t)

	_, err := ts.Insert(ir.NewFact("Nope", ir.Int(1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared symbol")

	_, err = ts.Insert(ir.NewFact("Dist", ir.Int(1), ir.Int(2)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a relation")

	_, err = ts.Insert(ir.NewFact("Edge", ir.Int(1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arity")
}

// The lattice contract example: Dist with bottom = +infinity, leq = <=,
// lub = min. Merging 5 then 3 stores 3; a later merge of 10 leaves 3.
func TestMergeMinLattice(t *testing.T) {
	ts := newStore(t)
	key := []ir.Value{ir.Int(1)}

	changed, merged, err := ts.Merge("Dist", key, ir.Int(5))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, ir.Int(5), merged)

	changed, merged, err = ts.Merge("Dist", key, ir.Int(3))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, ir.Int(3), merged)

	changed, merged, err = ts.Merge("Dist", key, ir.Int(10))
	require.NoError(t, err)
	assert.False(t, changed, "merging a leq-smaller value must not change the store")
	assert.Equal(t, ir.Int(3), merged)

	assert.Equal(t, 1, ts.Len("Dist"), "one row per distinct key")
}

func TestMergeDistinctKeys(t *testing.T) {
	ts := newStore(t)

	_, _, err := ts.Merge("Dist", []ir.Value{ir.Int(1)}, ir.Int(5))
	require.NoError(t, err)
	_, _, err = ts.Merge("Dist", []ir.Value{ir.Int(2)}, ir.Int(7))
	require.NoError(t, err)

	assert.Equal(t, 2, ts.Len("Dist"))
}

func TestMergeRejectsRelation(t *testing.T) {
	ts := newStore(t)
	_, _, err := ts.Merge("Edge", []ir.Value{ir.Int(1)}, ir.Int(2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a lattice")
}

func TestLookupBoundPatterns(t *testing.T) {
	ts := newStore(t)
	for _, f := range []ir.Fact{
		ir.NewFact("Edge", ir.Int(1), ir.Int(2)),
		ir.NewFact("Edge", ir.Int(1), ir.Int(3)),
		ir.NewFact("Edge", ir.Int(2), ir.Int(3)),
	} {
		_, err := ts.Insert(f)
		require.NoError(t, err)
	}

	collect := func(bound []ir.Value) []string {
		seq, err := ts.Lookup("Edge", bound)
		require.NoError(t, err)
		var got []string
		seq(func(row []ir.Value) bool {
			got = append(got, ir.Fact{Sym: "Edge", Values: row}.String())
			return true
		})
		return got
	}

	// First column bound: insertion order within the match set.
	assert.Equal(t, []string{"Edge(1, 2)", "Edge(1, 3)"}, collect([]ir.Value{ir.Int(1), nil}))
	assert.Equal(t, []string{"Edge(2, 3)"}, collect([]ir.Value{ir.Int(2), nil}))
	assert.Empty(t, collect([]ir.Value{ir.Int(9), nil}))

	// Second column bound.
	assert.Equal(t, []string{"Edge(1, 3)", "Edge(2, 3)"}, collect([]ir.Value{nil, ir.Int(3)}))

	// Fully bound and fully free.
	assert.Equal(t, []string{"Edge(1, 2)"}, collect([]ir.Value{ir.Int(1), ir.Int(2)}))
	assert.Len(t, collect([]ir.Value{nil, nil}), 3)
}

func TestLookupSeesPostIndexInserts(t *testing.T) {
	ts := newStore(t)
	_, err := ts.Insert(ir.NewFact("Edge", ir.Int(1), ir.Int(2)))
	require.NoError(t, err)

	// Build the index for this pattern, then grow the store.
	seq, err := ts.Lookup("Edge", []ir.Value{ir.Int(1), nil})
	require.NoError(t, err)
	n := 0
	seq(func([]ir.Value) bool { n++; return true })
	assert.Equal(t, 1, n)

	_, err = ts.Insert(ir.NewFact("Edge", ir.Int(1), ir.Int(9)))
	require.NoError(t, err)

	seq, err = ts.Lookup("Edge", []ir.Value{ir.Int(1), nil})
	require.NoError(t, err)
	n = 0
	seq(func([]ir.Value) bool { n++; return true })
	assert.Equal(t, 2, n, "existing indexes must be extended by inserts")
}

func TestLookupLatticeValueColumn(t *testing.T) {
	ts := newStore(t)
	_, _, err := ts.Merge("Dist", []ir.Value{ir.Int(1)}, ir.Int(5))
	require.NoError(t, err)

	// Build a key-column index, then change the value via merge. A bound
	// value column must observe the current value, not a stale index entry.
	found, err := ts.Contains("Dist", []ir.Value{ir.Int(1), ir.Int(5)})
	require.NoError(t, err)
	assert.True(t, found)

	_, _, err = ts.Merge("Dist", []ir.Value{ir.Int(1)}, ir.Int(3))
	require.NoError(t, err)

	found, err = ts.Contains("Dist", []ir.Value{ir.Int(1), ir.Int(5)})
	require.NoError(t, err)
	assert.False(t, found)

	found, err = ts.Contains("Dist", []ir.Value{ir.Int(1), ir.Int(3)})
	require.NoError(t, err)
	assert.True(t, found)
}

func TestLookupRestartable(t *testing.T) {
	ts := newStore(t)
	_, err := ts.Insert(ir.NewFact("Edge", ir.Int(1), ir.Int(2)))
	require.NoError(t, err)

	seq, err := ts.Lookup("Edge", []ir.Value{ir.Int(1), nil})
	require.NoError(t, err)
	for range 2 {
		n := 0
		seq(func([]ir.Value) bool { n++; return true })
		assert.Equal(t, 1, n)
	}
}

func TestSnapshotOrderedAndImmutable(t *testing.T) {
	ts := newStore(t)
	for _, f := range []ir.Fact{
		ir.NewFact("Edge", ir.Int(2), ir.Int(3)),
		ir.NewFact("Edge", ir.Int(1), ir.Int(2)),
	} {
		_, err := ts.Insert(f)
		require.NoError(t, err)
	}
	_, _, err := ts.Merge("Dist", []ir.Value{ir.Int(1)}, ir.Int(5))
	require.NoError(t, err)

	m := ts.Snapshot()
	facts := m.Facts("Edge")
	require.Len(t, facts, 2)
	assert.Equal(t, "Edge(1, 2)", facts[0].String())
	assert.Equal(t, "Edge(2, 3)", facts[1].String())

	pairs := m.Pairs("Dist")
	require.Len(t, pairs, 1)
	assert.Equal(t, ir.Int(5), pairs[0].Val)

	// Later store mutation must not leak into the snapshot.
	_, _, err = ts.Merge("Dist", []ir.Value{ir.Int(1)}, ir.Int(2))
	require.NoError(t, err)
	assert.Equal(t, ir.Int(5), m.Pairs("Dist")[0].Val)
}
