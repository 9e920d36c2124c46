package ir

import (
	"fmt"
	"strings"
)

// Term is a sealed interface over the term forms appearing in constraint
// heads and bodies. Only Var, Lit and App implement it.
type Term interface {
	term() // Sealed
	String() string
}

// Var is a named constraint variable. Variables unify by name across the
// literals of one constraint.
type Var string

func (Var) term()            {}
func (v Var) String() string { return string(v) }

// Lit is a literal value term.
type Lit struct {
	Val Value `json:"val"`
}

func (Lit) term()            {}
func (l Lit) String() string { return l.Val.String() }

// App applies a registered scalar function to argument terms. Every variable
// appearing in the arguments must already be bound when the term is
// evaluated (range restriction, certified upstream).
type App struct {
	Fn   string `json:"fn"`
	Args []Term `json:"args"`
}

func (App) term() {}

func (a App) String() string {
	var sb strings.Builder
	sb.WriteString(a.Fn)
	sb.WriteByte('(')
	for i, arg := range a.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(arg.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// BodyLiteral is a sealed interface over the literal forms of a constraint
// body conjunction. Only Atom, NegAtom, Filter, Guard and Loop implement it.
type BodyLiteral interface {
	bodyLiteral() // Sealed
	String() string
}

// Atom is a positive atom over a relation or lattice symbol.
type Atom struct {
	Sym   string `json:"sym"`
	Terms []Term `json:"terms"`
}

func (Atom) bodyLiteral()     {}
func (a Atom) String() string { return renderAtom(a.Sym, a.Terms) }

// NegAtom is a negated atom. Negation is evaluated as failure against the
// finalized extent of a strictly earlier stratum, never against a symbol
// still being iterated.
type NegAtom struct {
	Sym   string `json:"sym"`
	Terms []Term `json:"terms"`
}

func (NegAtom) bodyLiteral()     {}
func (n NegAtom) String() string { return "not " + renderAtom(n.Sym, n.Terms) }

// Filter invokes a registered scalar predicate over bound argument values.
// A false result prunes the environment; an error raised by the callable
// propagates out of the solve unchanged.
type Filter struct {
	Fn   string `json:"fn"`
	Args []Term `json:"args"`
}

func (Filter) bodyLiteral()     {}
func (f Filter) String() string { return "if " + App{Fn: f.Fn, Args: f.Args}.String() }

// Guard is an inequality check between two bound terms. The environment
// survives only if the two values differ under structural equality.
type Guard struct {
	Left  Term `json:"left"`
	Right Term `json:"right"`
}

func (Guard) bodyLiteral()     {}
func (g Guard) String() string { return g.Left.String() + " != " + g.Right.String() }

// Loop destructures a bound collection-valued term element by element,
// producing one extended environment per element. It is an existential
// quantifier over a value, not a join against stored tables.
type Loop struct {
	Var    Var  `json:"var"`
	Source Term `json:"source"`
}

func (Loop) bodyLiteral()     {}
func (l Loop) String() string { return string(l.Var) + " <- " + l.Source.String() }

// Head is a sealed interface over constraint head forms. Only HeadAtom,
// HeadTrue and HeadFalse implement it.
type Head interface {
	head() // Sealed
	String() string
}

// HeadAtom derives a fact (relation) or a merge (lattice) for its symbol.
type HeadAtom struct {
	Sym   string `json:"sym"`
	Terms []Term `json:"terms"`
}

func (HeadAtom) head()            {}
func (h HeadAtom) String() string { return renderAtom(h.Sym, h.Terms) }

// HeadTrue is the trivially-true head: deriving it is a no-op. Used for
// constraints whose filters and guards act as runtime assertions.
type HeadTrue struct{}

func (HeadTrue) head()          {}
func (HeadTrue) String() string { return "true" }

// HeadFalse is the trivially-false head: any environment satisfying the
// body is a contradiction and aborts the entire solve.
type HeadFalse struct{}

func (HeadFalse) head()          {}
func (HeadFalse) String() string { return "false" }

func renderAtom(sym string, terms []Term) string {
	var sb strings.Builder
	sb.WriteString(sym)
	sb.WriteByte('(')
	for i, t := range terms {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(t.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// TermVars appends the variables of t to dst in left-to-right order.
func TermVars(dst []Var, t Term) []Var {
	switch tt := t.(type) {
	case Var:
		return append(dst, tt)
	case Lit:
		return dst
	case App:
		for _, a := range tt.Args {
			dst = TermVars(dst, a)
		}
		return dst
	default:
		panic(fmt.Sprintf("ir: unknown Term variant %T", t))
	}
}
