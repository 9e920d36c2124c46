package cli

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/strata/internal/compiler"
	"github.com/roach88/strata/internal/harness"
	"github.com/roach88/strata/internal/ir"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNotFound    = "E002" // Path not found
	ErrCodeCompile     = "E003" // Program compile error
	ErrCodeFacts       = "E004" // Facts file error
	ErrCodeStore       = "E005" // Archive database error
	ErrCodeWriteFailed = "E006" // File write error
)

// LoadProgram reads and compiles a CUE program file. The file's top-level
// "program" struct is the compilation root.
func LoadProgram(path string) (*ir.Program, []ir.Fact, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, WrapExitError(ExitCommandError,
				fmt.Sprintf("program file not found: %s", path), err)
		}
		return nil, nil, WrapExitError(ExitCommandError, "reading program file", err)
	}

	cctx := cuecontext.New()
	v := cctx.CompileBytes(src, cue.Filename(path))
	program, facts, err := compiler.CompileProgram(v.LookupPath(cue.ParsePath("program")))
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "compiling program", err)
	}
	return program, facts, nil
}

// LoadFacts reads an optional standalone YAML facts file and appends its
// facts to the program's inline ones. An empty path is a no-op.
func LoadFacts(path string, inline []ir.Fact) ([]ir.Fact, error) {
	if path == "" {
		return inline, nil
	}
	extra, err := harness.LoadFactsFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "loading facts file", err)
	}
	return append(inline, extra...), nil
}
