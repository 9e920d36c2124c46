package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/strata/internal/compiler"
	"github.com/roach88/strata/internal/ir"
	"github.com/roach88/strata/internal/shrink"
	"github.com/roach88/strata/internal/solver"
)

// Result captures one scenario execution.
type Result struct {
	// Model is the solve result, nil when the solve failed.
	Model *solver.Model

	// Failure is the solve error, nil on success.
	Failure error

	// Minimized is the shrunk fact set, set in minimize mode when the
	// failure reproduced.
	Minimized []ir.Fact

	// Reproduced reports minimize-mode reproduction.
	Reproduced bool
}

// Run executes a scenario: compile the program, merge facts, then solve or
// minimize per the scenario mode. Expectation checking is left to the
// caller; Run only distinguishes scenario infrastructure errors from the
// outcome under test.
func Run(sc *Scenario) (*Result, error) {
	var (
		program *ir.Program
		facts   []ir.Fact
		err     error
	)
	if sc.ProgramSource != "" {
		program, facts, err = compileProgramSource(sc.Name, sc.ProgramSource)
	} else {
		program, facts, err = compileProgramFile(sc.ProgramPath())
	}
	if err != nil {
		return nil, err
	}

	extra, err := sc.InitialFacts()
	if err != nil {
		return nil, err
	}
	facts = append(facts, extra...)

	s := solver.New(program, solver.DefaultRegistry())
	ctx := context.Background()

	switch sc.Mode {
	case ModeMinimize:
		res, err := shrink.New(s).Minimize(ctx, facts, nil)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: minimize: %w", sc.Name, err)
		}
		return &Result{
			Minimized:  res.Facts,
			Reproduced: res.Reproduced,
			Failure:    res.Failure,
		}, nil

	default:
		m, err := s.Solve(ctx, facts)
		if err != nil {
			return &Result{Failure: err}, nil
		}
		return &Result{Model: m}, nil
	}
}

// CheckExpect verifies a result against the scenario's expectation clause.
func CheckExpect(sc *Scenario, res *Result) error {
	expect := sc.Expect
	if expect == nil {
		expect = &ExpectClause{Outcome: "model"}
	}

	switch expect.Outcome {
	case "model":
		if res.Failure != nil {
			return fmt.Errorf("scenario %s: expected a model, got failure: %w", sc.Name, res.Failure)
		}
		if res.Model == nil {
			return fmt.Errorf("scenario %s: expected a model", sc.Name)
		}
		return nil

	case "failure":
		if res.Failure == nil {
			return fmt.Errorf("scenario %s: expected a failure, solve succeeded", sc.Name)
		}
		se, ok := solver.AsSolveError(res.Failure)
		if !ok {
			return fmt.Errorf("scenario %s: unexpected failure kind: %w", sc.Name, res.Failure)
		}
		if expect.Code != "" && string(se.Code) != expect.Code {
			return fmt.Errorf("scenario %s: expected code %s, got %s", sc.Name, expect.Code, se.Code)
		}
		if expect.Constraint != "" && se.ConstraintID != expect.Constraint {
			return fmt.Errorf("scenario %s: expected constraint %s, got %s", sc.Name, expect.Constraint, se.ConstraintID)
		}
		return nil

	case "minimized":
		if !res.Reproduced {
			return fmt.Errorf("scenario %s: expected reproduction, got none", sc.Name)
		}
		return nil

	case "not_reproducible":
		if res.Reproduced {
			return fmt.Errorf("scenario %s: expected non-reproduction, got %d facts", sc.Name, len(res.Minimized))
		}
		return nil

	default:
		return fmt.Errorf("scenario %s: unknown expected outcome %q", sc.Name, expect.Outcome)
	}
}

// Render produces the scenario's golden artifact: the rendered model for
// solve scenarios, the failure line for failing ones, the minimized fact
// lines for minimize scenarios.
func Render(res *Result) ([]byte, error) {
	var buf bytes.Buffer
	switch {
	case res.Failure != nil && res.Model == nil && res.Minimized == nil:
		fmt.Fprintln(&buf, res.Failure.Error())
	case res.Model != nil:
		if err := res.Model.Render(&buf); err != nil {
			return nil, err
		}
	default:
		for _, f := range res.Minimized {
			fmt.Fprintln(&buf, f.String())
		}
	}
	return buf.Bytes(), nil
}

// compileProgramFile loads and compiles a CUE program file. The file's
// top-level "program" struct is the compilation root.
func compileProgramFile(path string) (*ir.Program, []ir.Fact, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load program: %w", err)
	}

	cctx := cuecontext.New()
	v := cctx.CompileBytes(src, cue.Filename(path))
	return compiler.CompileProgram(v.LookupPath(cue.ParsePath("program")))
}

// compileProgramSource compiles inline CUE program source from a scenario.
func compileProgramSource(name, src string) (*ir.Program, []ir.Fact, error) {
	cctx := cuecontext.New()
	v := cctx.CompileString(src, cue.Filename(name+".cue"))
	return compiler.CompileProgram(v.LookupPath(cue.ParsePath("program")))
}
