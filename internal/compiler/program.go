package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/strata/internal/ir"
)

// CompileProgram parses a CUE value into a constraint program plus its
// inline initial facts. The CUE value should be the program struct itself,
// e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(src)
//	program, facts, err := CompileProgram(v.LookupPath(cue.ParsePath("program")))
func CompileProgram(v cue.Value) (*ir.Program, []ir.Fact, error) {
	if err := v.Err(); err != nil {
		return nil, nil, formatCUEError(err)
	}

	program := &ir.Program{}

	symbols, err := parseSymbols(v)
	if err != nil {
		return nil, nil, err
	}
	program.Symbols = symbols
	if len(symbols) == 0 {
		return nil, nil, &CompileError{
			Field:   "symbols",
			Message: "at least one symbol is required",
			Pos:     v.Pos(),
		}
	}

	program.Strata, err = parseStrata(v)
	if err != nil {
		return nil, nil, err
	}

	program.Constraints, err = parseConstraints(v)
	if err != nil {
		return nil, nil, err
	}

	if err := program.Validate(); err != nil {
		return nil, nil, &CompileError{
			Field:   "program",
			Message: err.Error(),
			Pos:     v.Pos(),
		}
	}

	facts, err := parseFacts(v, program)
	if err != nil {
		return nil, nil, err
	}

	return program, facts, nil
}

// parseSymbols extracts symbol declarations. Field order in the CUE struct
// becomes declaration order, which the solver preserves in model output.
func parseSymbols(v cue.Value) ([]ir.Symbol, error) {
	symVal := v.LookupPath(cue.ParsePath("symbols"))
	if !symVal.Exists() {
		return nil, nil
	}

	iter, err := symVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var symbols []ir.Symbol
	for iter.Next() {
		name := iter.Label()
		sv := iter.Value()

		kindStr, err := sv.LookupPath(cue.ParsePath("kind")).String()
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("symbols.%s.kind", name),
				Message: "kind is required (relation or lattice)",
				Pos:     sv.Pos(),
			}
		}
		kind := ir.SymbolKind(kindStr)
		if !ir.ValidSymbolKinds[kind] {
			return nil, &CompileError{
				Field:   fmt.Sprintf("symbols.%s.kind", name),
				Message: fmt.Sprintf("unknown kind %q", kindStr),
				Pos:     sv.Pos(),
			}
		}

		arity, err := sv.LookupPath(cue.ParsePath("arity")).Int64()
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("symbols.%s.arity", name),
				Message: "arity is required and must be an int",
				Pos:     sv.Pos(),
			}
		}

		sym := ir.Symbol{Name: name, Arity: int(arity), Kind: kind}

		if kind == ir.KindLattice {
			ops := &ir.LatticeOps{}
			for _, field := range []struct {
				name string
				dst  *string
			}{
				{"bottom", &ops.Bottom},
				{"leq", &ops.Leq},
				{"lub", &ops.Lub},
				{"glb", &ops.Glb},
			} {
				s, err := sv.LookupPath(cue.ParsePath(field.name)).String()
				if err != nil {
					return nil, &CompileError{
						Field:   fmt.Sprintf("symbols.%s.%s", name, field.name),
						Message: "lattice symbols require bottom, leq, lub and glb operator names",
						Pos:     sv.Pos(),
					}
				}
				*field.dst = s
			}
			sym.Ops = ops
		}

		symbols = append(symbols, sym)
	}
	return symbols, nil
}

// parseStrata extracts the symbol-to-stratum assignment. Missing entries
// default to stratum 0 at solve time.
func parseStrata(v cue.Value) (map[string]int, error) {
	strataVal := v.LookupPath(cue.ParsePath("strata"))
	if !strataVal.Exists() {
		return nil, nil
	}

	iter, err := strataVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	strata := make(map[string]int)
	for iter.Next() {
		name := iter.Label()
		k, err := iter.Value().Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if k < 0 {
			return nil, &CompileError{
				Field:   fmt.Sprintf("strata.%s", name),
				Message: "stratum index must be non-negative",
				Pos:     iter.Value().Pos(),
			}
		}
		strata[name] = int(k)
	}
	return strata, nil
}

// parseConstraints extracts the constraint list in declaration order.
func parseConstraints(v cue.Value) ([]ir.Constraint, error) {
	consVal := v.LookupPath(cue.ParsePath("constraints"))
	if !consVal.Exists() {
		return nil, nil
	}

	iter, err := consVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var constraints []ir.Constraint
	for i := 0; iter.Next(); i++ {
		cv := iter.Value()

		id, err := cv.LookupPath(cue.ParsePath("id")).String()
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("constraints[%d].id", i),
				Message: "constraint id is required",
				Pos:     cv.Pos(),
			}
		}

		head, err := parseHead(cv.LookupPath(cue.ParsePath("head")), id)
		if err != nil {
			return nil, err
		}

		body, err := parseBody(cv.LookupPath(cue.ParsePath("body")), id)
		if err != nil {
			return nil, err
		}

		constraints = append(constraints, ir.Constraint{ID: id, Head: head, Body: body})
	}
	return constraints, nil
}

// parseHead parses a head form: the string "true" or "false", or
// {atom: {sym: ..., terms: [...]}}.
func parseHead(v cue.Value, id string) (ir.Head, error) {
	if !v.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("constraints.%s.head", id),
			Message: "head is required",
			Pos:     v.Pos(),
		}
	}

	if s, err := v.String(); err == nil {
		switch s {
		case "true":
			return ir.HeadTrue{}, nil
		case "false":
			return ir.HeadFalse{}, nil
		default:
			return nil, &CompileError{
				Field:   fmt.Sprintf("constraints.%s.head", id),
				Message: fmt.Sprintf("string head must be \"true\" or \"false\", got %q", s),
				Pos:     v.Pos(),
			}
		}
	}

	atomVal := v.LookupPath(cue.ParsePath("atom"))
	if !atomVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("constraints.%s.head", id),
			Message: "head must be \"true\", \"false\" or an atom",
			Pos:     v.Pos(),
		}
	}
	sym, terms, err := parseAtomParts(atomVal, id)
	if err != nil {
		return nil, err
	}
	return ir.HeadAtom{Sym: sym, Terms: terms}, nil
}

// parseBody parses the body literal list.
func parseBody(v cue.Value, id string) ([]ir.BodyLiteral, error) {
	if !v.Exists() {
		return nil, nil
	}

	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var body []ir.BodyLiteral
	for iter.Next() {
		lit, err := parseLiteral(iter.Value(), id)
		if err != nil {
			return nil, err
		}
		body = append(body, lit)
	}
	return body, nil
}

// parseLiteral dispatches on the single field naming the literal form:
// atom, not, filter, guard or loop.
func parseLiteral(v cue.Value, id string) (ir.BodyLiteral, error) {
	if atomVal := v.LookupPath(cue.ParsePath("atom")); atomVal.Exists() {
		sym, terms, err := parseAtomParts(atomVal, id)
		if err != nil {
			return nil, err
		}
		return ir.Atom{Sym: sym, Terms: terms}, nil
	}

	if negVal := v.LookupPath(cue.ParsePath("not")); negVal.Exists() {
		sym, terms, err := parseAtomParts(negVal, id)
		if err != nil {
			return nil, err
		}
		return ir.NegAtom{Sym: sym, Terms: terms}, nil
	}

	if filterVal := v.LookupPath(cue.ParsePath("filter")); filterVal.Exists() {
		fn, err := filterVal.LookupPath(cue.ParsePath("fn")).String()
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("constraints.%s.filter.fn", id),
				Message: "filter fn is required",
				Pos:     filterVal.Pos(),
			}
		}
		args, err := parseTermList(filterVal.LookupPath(cue.ParsePath("args")), id)
		if err != nil {
			return nil, err
		}
		return ir.Filter{Fn: fn, Args: args}, nil
	}

	if guardVal := v.LookupPath(cue.ParsePath("guard")); guardVal.Exists() {
		left, err := parseTerm(guardVal.LookupPath(cue.ParsePath("left")), id)
		if err != nil {
			return nil, err
		}
		right, err := parseTerm(guardVal.LookupPath(cue.ParsePath("right")), id)
		if err != nil {
			return nil, err
		}
		return ir.Guard{Left: left, Right: right}, nil
	}

	if loopVal := v.LookupPath(cue.ParsePath("loop")); loopVal.Exists() {
		name, err := loopVal.LookupPath(cue.ParsePath("var")).String()
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("constraints.%s.loop.var", id),
				Message: "loop var is required",
				Pos:     loopVal.Pos(),
			}
		}
		source, err := parseTerm(loopVal.LookupPath(cue.ParsePath("in")), id)
		if err != nil {
			return nil, err
		}
		return ir.Loop{Var: ir.Var(name), Source: source}, nil
	}

	return nil, &CompileError{
		Field:   fmt.Sprintf("constraints.%s.body", id),
		Message: "literal must be one of atom, not, filter, guard, loop",
		Pos:     v.Pos(),
	}
}

func parseAtomParts(v cue.Value, id string) (string, []ir.Term, error) {
	sym, err := v.LookupPath(cue.ParsePath("sym")).String()
	if err != nil {
		return "", nil, &CompileError{
			Field:   fmt.Sprintf("constraints.%s.atom.sym", id),
			Message: "atom sym is required",
			Pos:     v.Pos(),
		}
	}
	terms, err := parseTermList(v.LookupPath(cue.ParsePath("terms")), id)
	if err != nil {
		return "", nil, err
	}
	return sym, terms, nil
}

func parseTermList(v cue.Value, id string) ([]ir.Term, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var terms []ir.Term
	for iter.Next() {
		t, err := parseTerm(iter.Value(), id)
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return terms, nil
}

// parseTerm parses a term form: {var: name}, {call: {fn, args}}, or a value
// form which becomes a literal term.
func parseTerm(v cue.Value, id string) (ir.Term, error) {
	if !v.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("constraints.%s", id),
			Message: "term is required",
			Pos:     v.Pos(),
		}
	}

	if varVal := v.LookupPath(cue.ParsePath("var")); varVal.Exists() {
		name, err := varVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Var(name), nil
	}

	if callVal := v.LookupPath(cue.ParsePath("call")); callVal.Exists() {
		fn, err := callVal.LookupPath(cue.ParsePath("fn")).String()
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("constraints.%s.call.fn", id),
				Message: "call fn is required",
				Pos:     callVal.Pos(),
			}
		}
		args, err := parseTermList(callVal.LookupPath(cue.ParsePath("args")), id)
		if err != nil {
			return nil, err
		}
		return ir.App{Fn: fn, Args: args}, nil
	}

	val, err := parseValue(v)
	if err != nil {
		return nil, err
	}
	return ir.Lit{Val: val}, nil
}

// parseValue parses a tagged value form: {int:}, {str:}, {bool:}, {unit:},
// {list: [...]} or {tuple: [...]}. Floats are rejected; only int64
// arithmetic is supported.
func parseValue(v cue.Value) (ir.Value, error) {
	if iv := v.LookupPath(cue.ParsePath("int")); iv.Exists() {
		n, err := iv.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Int(n), nil
	}
	if sv := v.LookupPath(cue.ParsePath("str")); sv.Exists() {
		s, err := sv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Str(s), nil
	}
	if bv := v.LookupPath(cue.ParsePath("bool")); bv.Exists() {
		b, err := bv.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil
	}
	if uv := v.LookupPath(cue.ParsePath("unit")); uv.Exists() {
		return ir.Unit{}, nil
	}
	if lv := v.LookupPath(cue.ParsePath("list")); lv.Exists() {
		elems, err := parseValueList(lv)
		if err != nil {
			return nil, err
		}
		return ir.List(elems), nil
	}
	if tv := v.LookupPath(cue.ParsePath("tuple")); tv.Exists() {
		elems, err := parseValueList(tv)
		if err != nil {
			return nil, err
		}
		return ir.Tuple(elems), nil
	}

	return nil, &CompileError{
		Field:   "value",
		Message: "value must be one of int, str, bool, unit, list, tuple",
		Pos:     v.Pos(),
	}
}

func parseValueList(v cue.Value) ([]ir.Value, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var elems []ir.Value
	for iter.Next() {
		e, err := parseValue(iter.Value())
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	return elems, nil
}

// parseFacts extracts inline initial facts. Each fact's symbol must be
// declared and its value count must match the symbol's arity.
func parseFacts(v cue.Value, program *ir.Program) ([]ir.Fact, error) {
	factsVal := v.LookupPath(cue.ParsePath("facts"))
	if !factsVal.Exists() {
		return nil, nil
	}

	iter, err := factsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var facts []ir.Fact
	for i := 0; iter.Next(); i++ {
		fv := iter.Value()

		sym, err := fv.LookupPath(cue.ParsePath("sym")).String()
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("facts[%d].sym", i),
				Message: "fact sym is required",
				Pos:     fv.Pos(),
			}
		}
		decl, ok := program.Symbol(sym)
		if !ok {
			return nil, &CompileError{
				Field:   fmt.Sprintf("facts[%d].sym", i),
				Message: fmt.Sprintf("undeclared symbol %q", sym),
				Pos:     fv.Pos(),
			}
		}

		values, err := parseValueList(fv.LookupPath(cue.ParsePath("values")))
		if err != nil {
			return nil, err
		}
		if len(values) != decl.Arity {
			return nil, &CompileError{
				Field:   fmt.Sprintf("facts[%d].values", i),
				Message: fmt.Sprintf("symbol %q has arity %d, got %d values", sym, decl.Arity, len(values)),
				Pos:     fv.Pos(),
			}
		}

		facts = append(facts, ir.Fact{Sym: sym, Values: values})
	}
	return facts, nil
}
