// Package solver evaluates a compiled, stratified constraint program over an
// initial fact set to its unique minimal model.
//
// The pipeline per solve: initial facts are loaded into a fresh append-only
// TableStore, the stratum scheduler drives the semi-naive evaluator one
// stratum at a time to quiescence, and the finalized store is snapshotted
// into an immutable Model owned by the caller.
//
// Evaluation is fully deterministic: strata ascending, constraints in
// declaration order within a stratum, facts in insertion order. The delta
// minimizer in package shrink depends on this - identical inputs must always
// produce identical outcomes.
//
// Each solve owns an exclusive TableStore/index pair; independent solves may
// run concurrently across goroutines with no shared mutable state.
//
// Termination rests on a documented precondition, not a runtime check: the
// active domain of values flowing through term evaluation is finite and any
// lattice in use has finite practical height.
package solver
