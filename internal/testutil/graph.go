// Package testutil provides deterministic fixture generators shared across
// package tests.
package testutil

import (
	"github.com/roach88/strata/internal/ir"
)

// Chain returns the edge facts of a directed chain 1 -> 2 -> ... -> n+1,
// n edges total, over a binary relation symbol.
func Chain(sym string, n int) []ir.Fact {
	facts := make([]ir.Fact, 0, n)
	for i := 1; i <= n; i++ {
		facts = append(facts, ir.NewFact(sym, ir.Int(int64(i)), ir.Int(int64(i+1))))
	}
	return facts
}

// Cycle returns the edge facts of a directed cycle over nodes 1..n.
func Cycle(sym string, n int) []ir.Fact {
	facts := make([]ir.Fact, 0, n)
	for i := 1; i <= n; i++ {
		next := i%n + 1
		facts = append(facts, ir.NewFact(sym, ir.Int(int64(i)), ir.Int(int64(next))))
	}
	return facts
}

// Complete returns the edge facts of a complete directed graph over nodes
// 1..n, self-loops excluded.
func Complete(sym string, n int) []ir.Fact {
	facts := make([]ir.Fact, 0, n*(n-1))
	for i := 1; i <= n; i++ {
		for j := 1; j <= n; j++ {
			if i == j {
				continue
			}
			facts = append(facts, ir.NewFact(sym, ir.Int(int64(i)), ir.Int(int64(j))))
		}
	}
	return facts
}
