package ir

// Version constants for IR schema and solver.
const (
	// IRVersion is the IR schema version.
	IRVersion = "1"

	// SolverVersion is the Strata solver version.
	SolverVersion = "0.1.0"
)
