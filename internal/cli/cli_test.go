package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/store"
)

// execute runs the CLI with args and returns stdout, stderr and the error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRootRejectsInvalidFormat(t *testing.T) {
	_, _, err := execute(t, "--format", "xml", "validate", "testdata/reachability.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestValidateCommand(t *testing.T) {
	out, _, err := execute(t, "validate", "testdata/reachability.cue")
	require.NoError(t, err)
	assert.Contains(t, out, "valid (2 symbols, 2 constraints, 2 facts, 1 strata)")
}

func TestValidateCommandJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "validate", "testdata/reachability.cue")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestValidateCommandMissingFile(t *testing.T) {
	out, _, err := execute(t, "validate", "testdata/absent.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]")
}

func TestSolveCommand(t *testing.T) {
	out, _, err := execute(t, "solve", "testdata/reachability.cue")
	require.NoError(t, err)
	assert.Equal(t,
		"Edge(1, 2)\nEdge(2, 3)\nPath(1, 2)\nPath(1, 3)\nPath(2, 3)\n",
		out)
}

func TestSolveCommandWithFactsFile(t *testing.T) {
	out, _, err := execute(t, "solve", "testdata/reachability.cue",
		"--facts", "testdata/extra-facts.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "Edge(3, 4)\n")
	assert.Contains(t, out, "Path(1, 4)\n")
}

func TestSolveCommandJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "solve", "testdata/reachability.cue")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   SolveData `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 5, resp.Data.FactCount)
	assert.Contains(t, resp.Data.Facts, "Path(2, 3)")
}

func TestSolveCommandFailure(t *testing.T) {
	out, _, err := execute(t, "solve", "testdata/conflict.cue")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [UNSATISFIABLE_CONSTRAINT]")
}

func TestSolveCommandArchives(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "strata.db")
	_, _, err := execute(t, "solve", "testdata/reachability.cue",
		"--db", dbPath, "--token", "run-cli")
	require.NoError(t, err)

	db, err := store.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	run, err := db.ReadRun(context.Background(), "run-cli")
	require.NoError(t, err)
	assert.Equal(t, 5, run.FactCount)
}

func TestMinimizeCommand(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "minimized.facts")
	out, _, err := execute(t, "minimize", "testdata/conflict.cue", "--out", outPath)
	require.NoError(t, err)
	assert.Equal(t, "Item(\"a\")\nItem(\"c\")\n", out)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "Item(\"a\")\nItem(\"c\")\n", string(data))
}

func TestMinimizeCommandJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "minimize", "testdata/conflict.cue")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   MinimizeData `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Reproduced)
	assert.Equal(t, []string{`Item("a")`, `Item("c")`}, resp.Data.Facts)
	assert.Contains(t, resp.Data.Failure, "UNSATISFIABLE_CONSTRAINT")
}

func TestMinimizeCommandArchives(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "strata.db")
	_, _, err := execute(t, "minimize", "testdata/conflict.cue",
		"--db", dbPath, "--token", "run-min")
	require.NoError(t, err)

	db, err := store.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	facts, _, err := db.ReadMinimizedFacts(context.Background(), "run-min")
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, `Item("a")`, facts[0].Rendered)
}

func TestMinimizeCommandNotReproducible(t *testing.T) {
	out, _, err := execute(t, "minimize", "testdata/reachability.cue")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "NOT_REPRODUCIBLE")
}

func TestExportCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "strata.db")
	_, _, err := execute(t, "solve", "testdata/reachability.cue",
		"--db", dbPath, "--token", "run-export")
	require.NoError(t, err)

	out, _, err := execute(t, "export", dbPath, "--token", "run-export")
	require.NoError(t, err)
	assert.Equal(t,
		"Edge(1, 2)\nEdge(2, 3)\nPath(1, 2)\nPath(1, 3)\nPath(2, 3)\n",
		out)
}

func TestExportCommandMinimized(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "strata.db")
	_, _, err := execute(t, "minimize", "testdata/conflict.cue",
		"--db", dbPath, "--token", "run-export-min")
	require.NoError(t, err)

	out, _, err := execute(t, "export", dbPath, "--token", "run-export-min", "--minimized")
	require.NoError(t, err)
	assert.Equal(t, "Item(\"a\")\nItem(\"c\")\n", out)
}

func TestExportCommandUnknownToken(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "strata.db")
	_, _, err := execute(t, "solve", "testdata/reachability.cue",
		"--db", dbPath, "--token", "run-present")
	require.NoError(t, err)

	out, _, err := execute(t, "export", dbPath, "--token", "run-absent")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]")
}

func TestExportCommandJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "strata.db")
	_, _, err := execute(t, "solve", "testdata/reachability.cue",
		"--db", dbPath, "--token", "run-export-json")
	require.NoError(t, err)

	out, _, err := execute(t, "--format", "json", "export", dbPath, "--token", "run-export-json")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   ExportData `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 5, resp.Data.FactCount)
	assert.Equal(t, "run-export-json", resp.Data.Token)
	assert.Contains(t, resp.Data.Facts, "Path(1, 3)")
}

func TestTestCommand(t *testing.T) {
	out, _, err := execute(t, "test", "testdata/reachability-scenario.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "ok cli-reachability (model)")
}

func TestTestCommandMissingScenario(t *testing.T) {
	_, _, err := execute(t, "test", "testdata/absent.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestExitErrorHelpers(t *testing.T) {
	err := NewExitError(ExitCommandError, "bad input")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "bad input", err.Error())

	wrapped := WrapExitError(ExitFailure, "solve failed", assert.AnError)
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.ErrorIs(t, wrapped, assert.AnError)

	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
}
