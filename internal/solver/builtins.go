package solver

import (
	"fmt"
	"math"

	"github.com/roach88/strata/internal/ir"
)

// DefaultRegistry returns a registry preloaded with the pure integer, string
// and lattice-operator callables used by the CLI and the test harness.
// Host embeddings that need their own callables build a registry from
// scratch instead.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	for name, fn := range intBinops {
		r.MustRegister(Callable{Name: name, Pure: true, Fn: fn})
	}
	r.MustRegister(Callable{Name: "negInt", Pure: true, Fn: func(args []ir.Value) (ir.Value, error) {
		a, err := oneInt("negInt", args)
		if err != nil {
			return nil, err
		}
		return ir.Int(-a), nil
	}})
	r.MustRegister(Callable{Name: "intInfinity", Pure: true, Fn: func(args []ir.Value) (ir.Value, error) {
		if len(args) != 0 {
			return nil, fmt.Errorf("intInfinity: want 0 args, got %d", len(args))
		}
		return ir.Int(math.MaxInt64), nil
	}})
	r.MustRegister(Callable{Name: "intNegInfinity", Pure: true, Fn: func(args []ir.Value) (ir.Value, error) {
		if len(args) != 0 {
			return nil, fmt.Errorf("intNegInfinity: want 0 args, got %d", len(args))
		}
		return ir.Int(math.MinInt64), nil
	}})
	r.MustRegister(Callable{Name: "concatStr", Pure: true, Fn: func(args []ir.Value) (ir.Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("concatStr: want 2 args, got %d", len(args))
		}
		a, aok := args[0].(ir.Str)
		b, bok := args[1].(ir.Str)
		if !aok || !bok {
			return nil, fmt.Errorf("concatStr: want string args, got %T, %T", args[0], args[1])
		}
		return a + b, nil
	}})
	r.MustRegister(Callable{Name: "lenList", Pure: true, Fn: func(args []ir.Value) (ir.Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("lenList: want 1 arg, got %d", len(args))
		}
		l, ok := args[0].(ir.List)
		if !ok {
			return nil, fmt.Errorf("lenList: want list arg, got %T", args[0])
		}
		return ir.Int(len(l)), nil
	}})
	r.MustRegister(Callable{Name: "eqValue", Pure: true, Fn: func(args []ir.Value) (ir.Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("eqValue: want 2 args, got %d", len(args))
		}
		return ir.Bool(ir.Equal(args[0], args[1])), nil
	}})

	return r
}

var intBinops = map[string]func(args []ir.Value) (ir.Value, error){
	"addInt": intOp("addInt", func(a, b int64) ir.Value { return ir.Int(a + b) }),
	"subInt": intOp("subInt", func(a, b int64) ir.Value { return ir.Int(a - b) }),
	"mulInt": intOp("mulInt", func(a, b int64) ir.Value { return ir.Int(a * b) }),
	"ltInt":  intOp("ltInt", func(a, b int64) ir.Value { return ir.Bool(a < b) }),
	"leqInt": intOp("leqInt", func(a, b int64) ir.Value { return ir.Bool(a <= b) }),
	"gtInt":  intOp("gtInt", func(a, b int64) ir.Value { return ir.Bool(a > b) }),
	"geqInt": intOp("geqInt", func(a, b int64) ir.Value { return ir.Bool(a >= b) }),
	"minInt": intOp("minInt", func(a, b int64) ir.Value { return ir.Int(min(a, b)) }),
	"maxInt": intOp("maxInt", func(a, b int64) ir.Value { return ir.Int(max(a, b)) }),
}

func intOp(name string, f func(a, b int64) ir.Value) func(args []ir.Value) (ir.Value, error) {
	return func(args []ir.Value) (ir.Value, error) {
		a, b, err := twoInts(name, args)
		if err != nil {
			return nil, err
		}
		return f(a, b), nil
	}
}

func oneInt(name string, args []ir.Value) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%s: want 1 arg, got %d", name, len(args))
	}
	a, ok := args[0].(ir.Int)
	if !ok {
		return 0, fmt.Errorf("%s: want int arg, got %T", name, args[0])
	}
	return int64(a), nil
}

func twoInts(name string, args []ir.Value) (int64, int64, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("%s: want 2 args, got %d", name, len(args))
	}
	a, aok := args[0].(ir.Int)
	b, bok := args[1].(ir.Int)
	if !aok || !bok {
		return 0, 0, fmt.Errorf("%s: want int args, got %T, %T", name, args[0], args[1])
	}
	return int64(a), int64(b), nil
}
