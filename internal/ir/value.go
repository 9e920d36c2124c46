package ir

import (
	"strconv"
	"strings"
)

// Value is a sealed interface representing runtime values flowing through
// constraint evaluation. Only Unit, Bool, Int, Str, Tuple and List implement
// it. NO floats - floats break byte-level determinism and are rejected at the
// compiler boundary.
type Value interface {
	value() // Sealed - only these types implement it

	// String renders the value in program-level literal syntax. This is the
	// rendering used for minimized fact files and model dumps, so it must be
	// stable across releases.
	String() string
}

// Unit is the unit value, rendered as "()".
type Unit struct{}

func (Unit) value()         {}
func (Unit) String() string { return "()" }

// Bool is a boolean value.
type Bool bool

func (Bool) value() {}

func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

// Int is an integer value. Always int64, never float64.
type Int int64

func (Int) value()           {}
func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

// Str is a string value, rendered quoted.
type Str string

func (Str) value()           {}
func (s Str) String() string { return strconv.Quote(string(s)) }

// Tuple is a fixed-shape sequence of values, rendered "(a, b)".
type Tuple []Value

func (Tuple) value() {}

func (t Tuple) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, v := range t {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(v.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// List is a variable-length sequence of values, rendered "[a, b]".
// Lists are the collection type destructured by loop literals.
type List []Value

func (List) value() {}

func (l List) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range l {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(v.String())
	}
	sb.WriteByte(']')
	return sb.String()
}

// valueRank assigns each variant a rank for cross-variant ordering. The
// ordering itself is arbitrary but must be total and stable: model output
// and minimized fact files depend on it.
func valueRank(v Value) int {
	switch v.(type) {
	case Unit:
		return 0
	case Bool:
		return 1
	case Int:
		return 2
	case Str:
		return 3
	case Tuple:
		return 4
	case List:
		return 5
	default:
		panic("ir: unknown Value variant")
	}
}

// Compare imposes a total deterministic order on values: by variant rank,
// then by content. Sequences compare lexicographically, shorter first.
func Compare(a, b Value) int {
	ra, rb := valueRank(a), valueRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case Unit:
		return 0
	case Bool:
		bv := b.(Bool)
		if av == bv {
			return 0
		}
		if !av {
			return -1
		}
		return 1
	case Int:
		bv := b.(Int)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case Str:
		return strings.Compare(string(av), string(b.(Str)))
	case Tuple:
		return compareSeq(av, b.(Tuple))
	case List:
		return compareSeq(av, b.(List))
	default:
		panic("ir: unknown Value variant")
	}
}

func compareSeq(a, b []Value) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// Equal reports structural value equality.
func Equal(a, b Value) bool {
	return Compare(a, b) == 0
}

// CompareRow orders two value rows lexicographically.
func CompareRow(a, b []Value) int {
	return compareSeq(a, b)
}

// Elements returns the sequence a loop literal iterates over, or false if
// the value is not a collection. Tuples are fixed-shape and intentionally
// not loopable.
func Elements(v Value) ([]Value, bool) {
	l, ok := v.(List)
	if !ok {
		return nil, false
	}
	return l, true
}
