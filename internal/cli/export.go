package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/store"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	Token     string
	Minimized bool
}

// ExportData is the JSON payload of an export run.
type ExportData struct {
	Token         string   `json:"token"`
	CreatedAt     string   `json:"created_at,omitempty"`
	SolverVersion string   `json:"solver_version,omitempty"`
	FactSetID     string   `json:"fact_set_id,omitempty"`
	FactCount     int      `json:"fact_count"`
	Facts         []string `json:"facts"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{}

	cmd := &cobra.Command{
		Use:   "export <archive.db>",
		Short: "Print an archived run from a SQLite archive",
		Long: `Read a run archived by solve or minimize back out of a SQLite database
and print its facts one per line, in archive order.

By default the solved model is exported; --minimized selects the
minimized fact set instead.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Token, "token", "", "run token to export (required)")
	cmd.Flags().BoolVar(&opts.Minimized, "minimized", false, "export the minimized fact set instead of the model")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

func runExport(rootOpts *RootOptions, opts *ExportOptions, dbPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	db, err := store.Open(dbPath)
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "opening archive", err)
	}
	defer db.Close()

	ctx := context.Background()
	data := ExportData{Token: opts.Token}

	var records []store.FactRecord
	if opts.Minimized {
		records, data.FactSetID, err = db.ReadMinimizedFacts(ctx, opts.Token)
	} else {
		var run *store.RunRecord
		run, err = db.ReadRun(ctx, opts.Token)
		if err == nil {
			data.CreatedAt = run.CreatedAt
			data.SolverVersion = run.SolverVersion
			records, err = db.ReadModelFacts(ctx, opts.Token)
		}
	}
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			formatter.Error(ErrCodeNotFound, err.Error(), nil)
			return WrapExitError(ExitCommandError, "run not found", err)
		}
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "reading archive", err)
	}

	var text strings.Builder
	for _, rec := range records {
		data.Facts = append(data.Facts, rec.Rendered)
		fmt.Fprintln(&text, rec.Rendered)
	}
	data.FactCount = len(records)
	return formatter.SuccessText(text.String(), data)
}
