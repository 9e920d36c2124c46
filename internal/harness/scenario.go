package harness

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/strata/internal/ir"
)

// Scenario modes.
const (
	// ModeSolve runs one solve and checks the model or failure.
	ModeSolve = "solve"

	// ModeMinimize runs the delta minimizer and checks the minimized set.
	ModeMinimize = "minimize"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Program is the path to the CUE program file, relative to the
	// scenario file location.
	Program string `yaml:"program,omitempty"`

	// ProgramSource is inline CUE program source, an alternative to
	// Program for self-contained scenarios.
	ProgramSource string `yaml:"program_source,omitempty"`

	// Mode is "solve" (default) or "minimize".
	Mode string `yaml:"mode,omitempty"`

	// Facts adds initial facts on top of the program's inline facts.
	Facts []FactSpec `yaml:"facts,omitempty"`

	// Expect states the expected outcome. Defaults to a successful model.
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// dir is the scenario file's directory, for resolving Program.
	dir string
}

// FactSpec is one initial fact in scenario YAML. Values use the same tagged
// forms as program CUE: {int: 1}, {str: a}, {bool: true}, {unit: true},
// {list: [...]}, {tuple: [...]}.
type FactSpec struct {
	Sym    string           `yaml:"sym"`
	Values []map[string]any `yaml:"values"`
}

// ExpectClause states the expected scenario outcome.
type ExpectClause struct {
	// Outcome is "model" (successful solve), "failure" (solve error),
	// "minimized" (reproduced and shrunk) or "not_reproducible".
	Outcome string `yaml:"outcome"`

	// Code is the expected solve error code for "failure".
	Code string `yaml:"code,omitempty"`

	// Constraint is the expected failing constraint ID for "failure".
	Constraint string `yaml:"constraint,omitempty"`
}

// LoadScenario reads and validates a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("load scenario %s: %w", path, err)
	}
	sc.dir = filepath.Dir(path)

	if sc.Name == "" {
		return nil, fmt.Errorf("load scenario %s: name is required", path)
	}
	if sc.Program == "" && sc.ProgramSource == "" {
		return nil, fmt.Errorf("load scenario %s: program or program_source is required", path)
	}
	if sc.Program != "" && sc.ProgramSource != "" {
		return nil, fmt.Errorf("load scenario %s: program and program_source are mutually exclusive", path)
	}
	if sc.Mode == "" {
		sc.Mode = ModeSolve
	}
	if sc.Mode != ModeSolve && sc.Mode != ModeMinimize {
		return nil, fmt.Errorf("load scenario %s: unknown mode %q", path, sc.Mode)
	}
	return &sc, nil
}

// ProgramPath resolves the scenario's program file path.
func (s *Scenario) ProgramPath() string {
	return filepath.Join(s.dir, s.Program)
}

// InitialFacts converts the scenario's fact specs to IR facts.
func (s *Scenario) InitialFacts() ([]ir.Fact, error) {
	var facts []ir.Fact
	for i, fs := range s.Facts {
		if fs.Sym == "" {
			return nil, fmt.Errorf("scenario %s: facts[%d]: sym is required", s.Name, i)
		}
		values := make([]ir.Value, len(fs.Values))
		for j, vs := range fs.Values {
			v, err := convertValue(vs)
			if err != nil {
				return nil, fmt.Errorf("scenario %s: facts[%d].values[%d]: %w", s.Name, i, j, err)
			}
			values[j] = v
		}
		facts = append(facts, ir.Fact{Sym: fs.Sym, Values: values})
	}
	return facts, nil
}

// LoadFactsFile reads a standalone YAML fact list: a document with a
// top-level "facts" sequence of fact specs in the scenario format.
func LoadFactsFile(path string) ([]ir.Fact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load facts: %w", err)
	}

	var doc struct {
		Facts []FactSpec `yaml:"facts"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("load facts %s: %w", path, err)
	}

	sc := Scenario{Name: filepath.Base(path), Facts: doc.Facts}
	return sc.InitialFacts()
}

// convertValue maps one tagged YAML value form to an IR value.
func convertValue(m map[string]any) (ir.Value, error) {
	if len(m) != 1 {
		return nil, fmt.Errorf("value must have exactly one tag, got %d", len(m))
	}
	for tag, raw := range m {
		switch tag {
		case "int":
			n, ok := raw.(int)
			if !ok {
				return nil, fmt.Errorf("int tag holds %T", raw)
			}
			return ir.Int(int64(n)), nil
		case "str":
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("str tag holds %T", raw)
			}
			return ir.Str(s), nil
		case "bool":
			b, ok := raw.(bool)
			if !ok {
				return nil, fmt.Errorf("bool tag holds %T", raw)
			}
			return ir.Bool(b), nil
		case "unit":
			return ir.Unit{}, nil
		case "list", "tuple":
			items, ok := raw.([]any)
			if !ok {
				return nil, fmt.Errorf("%s tag holds %T", tag, raw)
			}
			elems := make([]ir.Value, len(items))
			for i, item := range items {
				im, ok := item.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("%s element %d is %T, want tagged value", tag, i, item)
				}
				v, err := convertValue(im)
				if err != nil {
					return nil, err
				}
				elems[i] = v
			}
			if tag == "tuple" {
				return ir.Tuple(elems), nil
			}
			return ir.List(elems), nil
		default:
			return nil, fmt.Errorf("unknown value tag %q", tag)
		}
	}
	return nil, fmt.Errorf("empty value")
}
