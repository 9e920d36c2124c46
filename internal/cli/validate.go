package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationData is the JSON payload of a validate run.
type ValidationData struct {
	Valid       bool   `json:"valid"`
	Symbols     int    `json:"symbols"`
	Constraints int    `json:"constraints"`
	Facts       int    `json:"facts"`
	Strata      int    `json:"strata"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <program.cue>",
		Short: "Compile a program without solving it",
		Long: `Compile and shape-check a CUE constraint program without evaluating it.

Reports symbol, constraint and inline fact counts on success. Range
restriction and stratification validity are the program author's contract
and are not re-derived.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(rootOpts *RootOptions, programPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	program, facts, err := LoadProgram(programPath)
	if err != nil {
		formatter.Error(ErrCodeCompile, err.Error(), nil)
		return err
	}

	data := ValidationData{
		Valid:       true,
		Symbols:     len(program.Symbols),
		Constraints: len(program.Constraints),
		Facts:       len(facts),
		Strata:      program.NumStrata(),
	}
	text := fmt.Sprintf("%s: valid (%d symbols, %d constraints, %d facts, %d strata)\n",
		programPath, data.Symbols, data.Constraints, data.Facts, data.Strata)
	return formatter.SuccessText(text, data)
}
