package cli

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/solver"
	"github.com/roach88/strata/internal/store"
)

// SolveOptions holds flags for the solve command.
type SolveOptions struct {
	FactsFile string
	DBPath    string
	Token     string
}

// SolveData is the JSON payload of a successful solve.
type SolveData struct {
	Token     string   `json:"token,omitempty"`
	FactCount int      `json:"fact_count"`
	Facts     []string `json:"facts"`
}

// NewSolveCommand creates the solve command.
func NewSolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SolveOptions{}

	cmd := &cobra.Command{
		Use:   "solve <program.cue>",
		Short: "Solve a constraint program to its minimal model",
		Long: `Compile a CUE constraint program, evaluate it over its initial facts,
and print the resulting model one fact per line.

Facts from --facts are appended to the program's inline facts. With --db
the model is archived in a SQLite database under the run token.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.FactsFile, "facts", "", "YAML file of additional initial facts")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "archive the model in this SQLite database")
	cmd.Flags().StringVar(&opts.Token, "token", "", "run token for archival (default: new UUIDv7)")

	return cmd
}

func runSolve(rootOpts *RootOptions, opts *SolveOptions, programPath string, cmd *cobra.Command) error {
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
	facts, err = LoadFacts(opts.FactsFile, facts)
	if err != nil {
		formatter.Error(ErrCodeFacts, err.Error(), nil)
		return err
	}

	formatter.VerboseLog("solving %s: %d symbols, %d constraints, %d initial facts",
		programPath, len(program.Symbols), len(program.Constraints), len(facts))

	s := solver.New(program, solver.DefaultRegistry())
	model, err := s.Solve(context.Background(), facts)
	if err != nil {
		return reportSolveFailure(formatter, err)
	}

	token := opts.Token
	if opts.DBPath != "" {
		if token == "" {
			token = uuid.Must(uuid.NewV7()).String()
		}
		if err := archiveModel(opts.DBPath, token, model); err != nil {
			formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "archiving model", err)
		}
		formatter.VerboseLog("archived model under run %s in %s", token, opts.DBPath)
	}

	var buf bytes.Buffer
	if err := model.Render(&buf); err != nil {
		return WrapExitError(ExitCommandError, "rendering model", err)
	}

	rendered := make([]string, 0, model.Len())
	for _, f := range model.AllFacts() {
		rendered = append(rendered, f.String())
	}
	return formatter.SuccessText(buf.String(), SolveData{
		Token:     token,
		FactCount: model.Len(),
		Facts:     rendered,
	})
}

// reportSolveFailure renders a solve error with its structured identity and
// maps it to the failure exit code.
func reportSolveFailure(formatter *OutputFormatter, err error) error {
	if se, ok := solver.AsSolveError(err); ok {
		details := map[string]any{}
		if se.ConstraintID != "" {
			details["constraint"] = se.ConstraintID
		}
		if se.Symbol != "" {
			details["symbol"] = se.Symbol
		}
		if len(se.Bindings) > 0 {
			details["bindings"] = se.Bindings
		}
		formatter.Error(string(se.Code), se.Message, details)
		return WrapExitError(ExitFailure, "solve failed", err)
	}
	formatter.Error(ErrCodeGeneric, err.Error(), nil)
	return WrapExitError(ExitFailure, "solve failed", err)
}

func archiveModel(dbPath, token string, model *solver.Model) error {
	db, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.WriteModel(context.Background(), token, model); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	return nil
}
