// Package ir provides the canonical intermediate representation for Strata
// programs: values, terms, constraints, symbols, and facts.
//
// This package is the foundational layer. All other internal packages import
// ir; ir imports nothing internal.
//
// Key design constraints:
//   - The value domain is sealed: Int, Str, Bool, Unit, List, Tuple. No
//     floats anywhere; numbers are int64.
//   - Every value has exactly one canonical byte encoding (strings are
//     NFC-normalized), so equality, ordering, and content-addressed IDs
//     agree across runs and platforms.
//   - Fact and fact-set identity is SHA-256 over the canonical encoding with
//     domain separation; see hash.go.
package ir
