// Package harness provides the conformance harness: YAML scenarios
// describing a region graph, circuit hyperparameters, and a pipeline of
// structural operations, together with structural expectations and
// golden plan snapshots. Scenarios compile against the reference
// backend, so snapshots capture layer wiring, bookkeeping, and
// parameter sharing without depending on numerics.
package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-logr/logr"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/probcirc/circ/internal/backend"
	"github.com/probcirc/circ/internal/compiler"
	"github.com/probcirc/circ/internal/loader"
	"github.com/probcirc/circ/internal/symbolic"
)

// Scenario is one conformance scenario.
type Scenario struct {
	// Name uniquely identifies the scenario; it doubles as the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what the scenario exercises.
	Description string `yaml:"description,omitempty"`

	// Pipeline is the definition to build and compile.
	Pipeline loader.PipelineSpec `yaml:"pipeline"`

	// Expect lists structural expectations checked after building.
	Expect []CircuitExpect `yaml:"expect,omitempty"`
}

// CircuitExpect pins down the structure of one named circuit. Nil
// counts are not checked.
type CircuitExpect struct {
	Circuit  string `yaml:"circuit"`
	Layers   *int   `yaml:"layers,omitempty"`
	Inputs   *int   `yaml:"inputs,omitempty"`
	Dense    *int   `yaml:"dense,omitempty"`
	Products *int   `yaml:"products,omitempty"`
	Mixing   *int   `yaml:"mixing,omitempty"`
}

// Result is the outcome of running a scenario.
type Result struct {
	Circuits map[string]*symbolic.Circuit
	Roots    []*symbolic.Circuit
	Pipeline *compiler.Pipeline
	Context  *compiler.Context
}

// LoadScenario reads one scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("scenario %s has no name", path)
	}
	return &s, nil
}

// LoadScenarios reads every scenario under dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scenario directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// Run builds and compiles the scenario's pipeline and checks its
// structural expectations. Expectation failures are aggregated, so a
// failed run reports every miss at once.
func Run(s *Scenario) (*Result, error) {
	circuits, roots, err := loader.BuildPipeline(&s.Pipeline, symbolic.DefaultRegistry(), logr.Discard())
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	ctx := compiler.NewContext(compiler.WithFactory(backend.NewFactory()))
	pipe, err := compiler.CompilePipeline(ctx, roots...)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	result := &Result{Circuits: circuits, Roots: roots, Pipeline: pipe, Context: ctx}

	var failures error
	for _, expect := range s.Expect {
		if err := checkExpect(result, expect); err != nil {
			failures = multierr.Append(failures, err)
		}
	}
	if failures != nil {
		return result, failures
	}
	return result, nil
}

// CircuitNames returns the scenario's circuit names with the base
// first and steps in definition order.
func (r *Result) CircuitNames() []string {
	names := make([]string, 0, len(r.Circuits))
	for name := range r.Circuits {
		if name != loader.BaseName {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return append([]string{loader.BaseName}, names...)
}

// nameOf resolves a circuit back to its scenario name.
func (r *Result) nameOf(c *symbolic.Circuit) string {
	for name, circuit := range r.Circuits {
		if circuit == c {
			return name
		}
	}
	return fmt.Sprintf("circuit-%p", c)
}
