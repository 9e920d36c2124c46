package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/ir"
)

func TestLoadScenario(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/reachability.yaml")
	require.NoError(t, err)
	assert.Equal(t, "reachability", sc.Name)
	assert.Equal(t, ModeSolve, sc.Mode)
	assert.Equal(t,
		filepath.Join("testdata", "scenarios", "..", "programs", "reachability.cue"),
		sc.ProgramPath())

	facts, err := sc.InitialFacts()
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "Edge(3, 4)", facts[0].String())
}

func TestLoadScenarioErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	_, err := LoadScenario(filepath.Join(dir, "absent.yaml"))
	require.Error(t, err)

	_, err = LoadScenario(write("noname.yaml", "program: p.cue\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")

	_, err = LoadScenario(write("noprog.yaml", "name: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "program or program_source is required")

	_, err = LoadScenario(write("bothprog.yaml",
		"name: x\nprogram: p.cue\nprogram_source: 'program: {}'\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")

	_, err = LoadScenario(write("badmode.yaml", "name: x\nprogram: p.cue\nmode: replay\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "replay"`)
}

func TestConvertValueForms(t *testing.T) {
	cases := []struct {
		in   map[string]any
		want ir.Value
	}{
		{map[string]any{"int": 42}, ir.Int(42)},
		{map[string]any{"str": "a"}, ir.Str("a")},
		{map[string]any{"bool": true}, ir.Bool(true)},
		{map[string]any{"unit": true}, ir.Unit{}},
		{
			map[string]any{"list": []any{map[string]any{"int": 1}, map[string]any{"int": 2}}},
			ir.List{ir.Int(1), ir.Int(2)},
		},
		{
			map[string]any{"tuple": []any{map[string]any{"str": "k"}, map[string]any{"int": 1}}},
			ir.Tuple{ir.Str("k"), ir.Int(1)},
		},
	}
	for _, tc := range cases {
		got, err := convertValue(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := convertValue(map[string]any{"float": 1.5})
	require.Error(t, err)
	_, err = convertValue(map[string]any{"int": 1, "str": "x"})
	require.Error(t, err)
}

// Every scenario under testdata/scenarios runs against its golden file.
func TestScenariosGolden(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		sc, err := LoadScenario(path)
		require.NoError(t, err, path)

		t.Run(sc.Name, func(t *testing.T) {
			require.NoError(t, RunWithGolden(t, sc))
		})
	}
}

func TestRunFailureScenarioDetail(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/conflict-failure.yaml")
	require.NoError(t, err)

	res, err := Run(sc)
	require.NoError(t, err)
	require.Error(t, res.Failure)
	assert.Nil(t, res.Model)
	require.NoError(t, CheckExpect(sc, res))
}

func TestRunMinimizeScenarioDetail(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/conflict-minimize.yaml")
	require.NoError(t, err)

	res, err := Run(sc)
	require.NoError(t, err)
	require.True(t, res.Reproduced)
	require.Len(t, res.Minimized, 2)

	var names []string
	for _, f := range res.Minimized {
		names = append(names, f.String())
	}
	assert.Equal(t, []string{`Item("a")`, `Item("c")`}, names)
}

func TestCheckExpectMismatches(t *testing.T) {
	sc := &Scenario{Name: "x", Expect: &ExpectClause{Outcome: "failure"}}
	err := CheckExpect(sc, &Result{Model: nil})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "expected a failure"))

	sc = &Scenario{Name: "x", Expect: &ExpectClause{Outcome: "not_reproducible"}}
	err = CheckExpect(sc, &Result{Reproduced: true, Minimized: []ir.Fact{{}}})
	require.Error(t, err)
}
