package cli

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/ir"
	"github.com/roach88/strata/internal/shrink"
	"github.com/roach88/strata/internal/solver"
	"github.com/roach88/strata/internal/store"
)

// MinimizeOptions holds flags for the minimize command.
type MinimizeOptions struct {
	FactsFile string
	OutPath   string
	DBPath    string
	Token     string
	Strict    bool
}

// MinimizeData is the JSON payload of a successful minimization.
type MinimizeData struct {
	Reproduced bool     `json:"reproduced"`
	Trials     int      `json:"trials"`
	Facts      []string `json:"facts,omitempty"`
	Failure    string   `json:"failure,omitempty"`
	Token      string   `json:"token,omitempty"`
}

// NewMinimizeCommand creates the minimize command.
func NewMinimizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MinimizeOptions{}

	cmd := &cobra.Command{
		Use:   "minimize <program.cue>",
		Short: "Shrink a failing fact set to a 1-minimal reproducer",
		Long: `Compile a CUE constraint program whose solve fails, then delta-debug the
initial facts down to a 1-minimal subset that still reproduces the failure.

With --out the minimized facts are written one per line to a file. With
--db they are archived in a SQLite database under the run token. When the
initial solve does not fail, the command reports non-reproduction and
exits nonzero without writing anything.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMinimize(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.FactsFile, "facts", "", "YAML file of additional initial facts")
	cmd.Flags().StringVar(&opts.OutPath, "out", "", "write the minimized facts to this file")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "archive the minimized facts in this SQLite database")
	cmd.Flags().StringVar(&opts.Token, "token", "", "run token for archival (default: new UUIDv7)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false,
		"only accept failures matching the original's code and constraint")

	return cmd
}

func runMinimize(rootOpts *RootOptions, opts *MinimizeOptions, programPath string, cmd *cobra.Command) error {
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

	var shrinkOpts []shrink.Option
	if opts.Strict {
		shrinkOpts = append(shrinkOpts, shrink.WithStrictness(shrink.MatchIdentity))
	}

	s := solver.New(program, solver.DefaultRegistry())
	m := shrink.New(s, shrinkOpts...)

	sink, token, closeSink, err := buildSink(opts)
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "preparing sink", err)
	}
	defer closeSink()

	res, err := m.Minimize(context.Background(), facts, sink)
	if err != nil {
		formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "minimize failed", err)
	}

	formatter.VerboseLog("minimize: %d trials", res.Trials)

	if !res.Reproduced {
		formatter.Error("NOT_REPRODUCIBLE",
			"the initial fact set does not reproduce a failure", nil)
		return NewExitError(ExitFailure, "not reproducible")
	}

	rendered := make([]string, len(res.Facts))
	var text strings.Builder
	for i, f := range res.Facts {
		rendered[i] = f.String()
		text.WriteString(f.String())
		text.WriteByte('\n')
	}

	data := MinimizeData{
		Reproduced: true,
		Trials:     res.Trials,
		Facts:      rendered,
		Token:      token,
	}
	if res.Failure != nil {
		data.Failure = res.Failure.Error()
	}
	return formatter.SuccessText(text.String(), data)
}

// buildSink assembles the minimizer's persistence sink from the --out and
// --db flags. Both may be active; neither yields a nil sink.
func buildSink(opts *MinimizeOptions) (shrink.Sink, string, func(), error) {
	var sinks multiSink
	closeSink := func() {}

	if opts.OutPath != "" {
		sinks = append(sinks, &shrink.FileSink{Path: opts.OutPath})
	}

	token := opts.Token
	if opts.DBPath != "" {
		if token == "" {
			token = uuid.Must(uuid.NewV7()).String()
		}
		db, err := store.Open(opts.DBPath)
		if err != nil {
			return nil, "", closeSink, err
		}
		closeSink = func() { db.Close() }
		sinks = append(sinks, &store.MinimizeSink{Store: db, Token: token})
	}

	if len(sinks) == 0 {
		return nil, token, closeSink, nil
	}
	return sinks, token, closeSink, nil
}

// multiSink fans a single write out to every configured sink.
type multiSink []shrink.Sink

func (m multiSink) Write(facts []ir.Fact) error {
	for _, s := range m {
		if err := s.Write(facts); err != nil {
			return err
		}
	}
	return nil
}
