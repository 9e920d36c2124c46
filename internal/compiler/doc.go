// Package compiler parses CUE program definitions into executable constraint
// programs.
//
// A program definition declares symbols (relations and lattices with their
// operator references), a stratum assignment per symbol, constraints, and
// optionally inline initial facts. The compiler checks shape only: arity
// bounds, declared symbols, operator presence. Range restriction and
// stratification correctness are the program author's contract with the
// solver, not re-derived here.
package compiler
