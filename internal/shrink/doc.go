// Package shrink minimizes failure-inducing fact sets by delta debugging.
//
// Given a solver whose evaluation of an initial fact set fails, Minimize
// searches for a 1-minimal subset: one that still reproduces a failure but
// no longer does after removing any single remaining fact. Every trial is an
// independent, from-scratch solve; nothing is reused between trials, and
// trials run strictly sequentially because each outcome determines the next
// candidate set.
//
// Convergence depends on the solver being deterministic: identical fact sets
// must always either fail or always succeed.
package shrink
