package solver

import (
	"fmt"

	"github.com/roach88/strata/internal/ir"
)

// Callable is an externally supplied scalar function usable from filter
// literals, term applications and lattice operator positions.
//
// Callables must be deterministic for a given argument row; the delta
// minimizer's oracle convergence depends on it. Impure callables (ones
// observing state beyond their arguments) must declare Pure: false and are
// rejected at registration time unless the registry was built with
// WithImpureCallables.
type Callable struct {
	Name string
	Pure bool
	Fn   func(args []ir.Value) (ir.Value, error)
}

// Registry is the explicit, immutable-after-construction configuration of
// scalar callables handed to the solver. There is deliberately no mutable
// global registry: callers build one Registry up front and pass it in.
//
// Registration fails closed: an impure callable on a pure-only registry is
// an error, never a silent allow.
type Registry struct {
	allowImpure bool
	fns         map[string]Callable
}

// RegistryOption configures registry construction.
type RegistryOption func(*Registry)

// WithImpureCallables permits registration of callables declared impure.
// Without it, registering an impure callable fails.
func WithImpureCallables() RegistryOption {
	return func(r *Registry) {
		r.allowImpure = true
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{fns: make(map[string]Callable)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a callable. Duplicate names and purity violations are
// registration-time errors.
func (r *Registry) Register(c Callable) error {
	if c.Name == "" {
		return fmt.Errorf("register callable: empty name")
	}
	if c.Fn == nil {
		return fmt.Errorf("register callable %q: nil function", c.Name)
	}
	if _, exists := r.fns[c.Name]; exists {
		return fmt.Errorf("register callable %q: already registered", c.Name)
	}
	if !c.Pure && !r.allowImpure {
		return fmt.Errorf("register callable %q: impure callables are not permitted by this registry", c.Name)
	}
	r.fns[c.Name] = c
	return nil
}

// MustRegister is like Register but panics on error.
// Use only for built-in callable sets known to be valid.
func (r *Registry) MustRegister(c Callable) {
	if err := r.Register(c); err != nil {
		panic(err)
	}
}

// Has reports whether a callable is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.fns[name]
	return ok
}

// Call invokes a registered callable. An unknown name is an error; an error
// returned by the callable propagates unchanged.
func (r *Registry) Call(name string, args []ir.Value) (ir.Value, error) {
	c, ok := r.fns[name]
	if !ok {
		return nil, fmt.Errorf("unknown scalar callable %q", name)
	}
	return c.Fn(args)
}
