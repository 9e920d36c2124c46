package solver

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// SolveError represents a failure surfaced by constraint evaluation.
//
// The evaluator performs no local recovery: every error propagates to the
// solve caller unchanged, carrying the failing constraint identity and the
// variable bindings at the point of failure so the delta minimizer can match
// failures across trials.
type SolveError struct {
	// Code identifies the error category.
	Code SolveErrorCode

	// Message is a human-readable description.
	Message string

	// ConstraintID identifies the failing constraint, if any.
	ConstraintID string

	// Symbol identifies the involved symbol (for stratification breaches).
	Symbol string

	// Bindings holds the variable environment at the failure point,
	// rendered in program-literal syntax.
	Bindings map[string]string

	// Err is the underlying cause (for scalar function failures).
	Err error
}

// SolveErrorCode categorizes solve errors.
type SolveErrorCode string

const (
	// CodeUnsatisfiable indicates a trivially-false-headed constraint matched.
	CodeUnsatisfiable SolveErrorCode = "UNSATISFIABLE_CONSTRAINT"

	// CodeScalarFailure indicates a filter or term-evaluation callable failed.
	CodeScalarFailure SolveErrorCode = "SCALAR_FUNCTION_FAILURE"

	// CodeStratification indicates a negative literal referenced a symbol
	// outside a strictly earlier, finalized stratum. This is an upstream
	// contract breach, fatal and non-recoverable at this layer.
	CodeStratification SolveErrorCode = "STRATIFICATION_VIOLATION"
)

// Error implements the error interface.
func (e *SolveError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", e.Code, e.Message)
	if e.ConstraintID != "" {
		fmt.Fprintf(&sb, " (constraint=%s", e.ConstraintID)
		if len(e.Bindings) > 0 {
			sb.WriteString(", bindings={")
			sb.WriteString(renderBindings(e.Bindings))
			sb.WriteString("}")
		}
		sb.WriteString(")")
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

// Unwrap exposes the underlying cause.
func (e *SolveError) Unwrap() error {
	return e.Err
}

func renderBindings(bindings map[string]string) string {
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + bindings[name]
	}
	return strings.Join(parts, ", ")
}

// IsUnsatisfiable returns true if the error is an unsatisfiable-constraint
// failure. Uses errors.As to handle wrapped errors.
func IsUnsatisfiable(err error) bool {
	var se *SolveError
	return errors.As(err, &se) && se.Code == CodeUnsatisfiable
}

// IsScalarFailure returns true if the error is a scalar function failure.
func IsScalarFailure(err error) bool {
	var se *SolveError
	return errors.As(err, &se) && se.Code == CodeScalarFailure
}

// IsStratificationViolation returns true if the error is a stratification
// contract breach.
func IsStratificationViolation(err error) bool {
	var se *SolveError
	return errors.As(err, &se) && se.Code == CodeStratification
}

// AsSolveError extracts a SolveError from an error chain.
func AsSolveError(err error) (*SolveError, bool) {
	var se *SolveError
	ok := errors.As(err, &se)
	return se, ok
}

// NewUnsatisfiableError creates a SolveError for a matched trivially-false
// head.
func NewUnsatisfiableError(constraintID string, bindings map[string]string) *SolveError {
	return &SolveError{
		Code:         CodeUnsatisfiable,
		Message:      "trivially-false constraint head matched",
		ConstraintID: constraintID,
		Bindings:     bindings,
	}
}

// NewScalarError creates a SolveError for a failed scalar callable.
func NewScalarError(constraintID, fn string, bindings map[string]string, cause error) *SolveError {
	return &SolveError{
		Code:         CodeScalarFailure,
		Message:      fmt.Sprintf("scalar callable %q failed", fn),
		ConstraintID: constraintID,
		Bindings:     bindings,
		Err:          cause,
	}
}

// NewStratificationError creates a SolveError for a negation against a
// non-finalized stratum.
func NewStratificationError(constraintID, symbol string, symStratum, curStratum int) *SolveError {
	return &SolveError{
		Code:         CodeStratification,
		Message:      fmt.Sprintf("negative literal over %q in stratum %d requires stratum < %d", symbol, symStratum, curStratum),
		ConstraintID: constraintID,
		Symbol:       symbol,
	}
}
