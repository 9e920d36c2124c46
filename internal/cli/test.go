package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/harness"
)

// TestData is the JSON payload of a scenario run.
type TestData struct {
	Scenario string `json:"scenario"`
	Passed   bool   `json:"passed"`
	Outcome  string `json:"outcome"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <scenario.yaml>...",
		Short: "Run conformance scenarios",
		Long: `Run one or more YAML conformance scenarios: each names a CUE program,
adds initial facts, and states the expected outcome (model, failure, or
minimization result). Exits nonzero when any scenario's expectation fails.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runTest(rootOpts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	failed := 0
	for _, path := range paths {
		sc, err := harness.LoadScenario(path)
		if err != nil {
			formatter.Error(ErrCodeNotFound, err.Error(), nil)
			return WrapExitError(ExitCommandError, "loading scenario", err)
		}

		res, err := harness.Run(sc)
		if err != nil {
			formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, fmt.Sprintf("scenario %s", sc.Name), err)
		}

		if err := harness.CheckExpect(sc, res); err != nil {
			failed++
			formatter.Error("EXPECT_FAILED", err.Error(), nil)
			continue
		}

		outcome := "model"
		switch {
		case res.Failure != nil && res.Model == nil && res.Minimized == nil:
			outcome = "failure"
		case res.Reproduced:
			outcome = "minimized"
		}
		text := fmt.Sprintf("ok %s (%s)\n", sc.Name, outcome)
		if err := formatter.SuccessText(text, TestData{Scenario: sc.Name, Passed: true, Outcome: outcome}); err != nil {
			return err
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", failed, len(paths)))
	}
	return nil
}
