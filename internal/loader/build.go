package loader

import (
	"fmt"
	"math/rand"

	"github.com/go-logr/logr"

	"github.com/probcirc/circ/internal/graph"
	"github.com/probcirc/circ/internal/symbolic"
)

// BaseName is the circuit name referring to the circuit built directly
// from the region graph.
const BaseName = "base"

// BuildGraph realizes a graph definition.
func BuildGraph(spec GraphSpec) (*graph.Graph, error) {
	switch spec.Template {
	case "quad":
		return graph.QuadGraph(spec.Rows, spec.Cols)
	case "linear":
		return graph.LinearTree(spec.NumVars)
	case "random":
		reps := spec.Repetitions
		if reps == 0 {
			reps = 1
		}
		return graph.RandomBinaryTree(spec.NumVars, reps, rand.New(rand.NewSource(spec.Seed)))
	case "":
		return buildExplicitGraph(spec)
	default:
		return nil, fmt.Errorf("unknown graph template %q", spec.Template)
	}
}

// buildExplicitGraph wires a graph from named region and partition
// lists.
func buildExplicitGraph(spec GraphSpec) (*graph.Graph, error) {
	b := graph.NewBuilder()
	byName := make(map[string]graph.NodeID, len(spec.Regions))
	for _, r := range spec.Regions {
		if _, dup := byName[r.Name]; dup {
			return nil, fmt.Errorf("duplicate region name %q", r.Name)
		}
		id := b.AddRegion(r.Vars...)
		b.Label(id, r.Name)
		byName[r.Name] = id
	}
	for i, p := range spec.Partitions {
		out, ok := byName[p.Output]
		if !ok {
			return nil, fmt.Errorf("partition %d outputs unknown region %q", i, p.Output)
		}
		var scope graph.Scope
		for _, name := range p.Inputs {
			if _, ok := byName[name]; !ok {
				return nil, fmt.Errorf("partition %d reads unknown region %q", i, name)
			}
			scope = scope.Union(regionScope(spec, name))
		}
		part := b.AddPartitionScope(scope)
		for _, name := range p.Inputs {
			b.Connect(byName[name], part)
		}
		b.Connect(part, out)
	}
	return b.Build()
}

func regionScope(spec GraphSpec, name string) graph.Scope {
	for _, r := range spec.Regions {
		if r.Name == name {
			return graph.NewScope(r.Vars...)
		}
	}
	return nil
}

// BuildCircuit realizes the base circuit of a pipeline definition.
func BuildCircuit(g *graph.Graph, spec CircuitSpec) (*symbolic.Circuit, error) {
	h := symbolic.Hyper{
		NumChannels:   spec.NumChannels,
		NumInputUnits: spec.NumInputUnits,
		NumSumUnits:   spec.NumSumUnits,
		NumClasses:    spec.NumClasses,
	}
	if spec.SumProduct == "cp" {
		h.SumProduct = symbolic.SumProductCP
	}

	var f symbolic.Factories
	switch spec.InputLayer {
	case "gaussian":
		f.Input = func(scope graph.Scope, numUnits, numChannels int) *symbolic.Layer {
			return symbolic.NewGaussianLayer(scope, numUnits, numChannels)
		}
	case "", "categorical":
		categories := spec.NumCategories
		if categories == 0 {
			categories = 2
		}
		f.Input = func(scope graph.Scope, numUnits, numChannels int) *symbolic.Layer {
			return symbolic.NewCategoricalLayer(scope, numUnits, numChannels, categories)
		}
	default:
		return nil, fmt.Errorf("unknown input layer %q", spec.InputLayer)
	}
	return symbolic.FromRegionGraph(g, f, h)
}

// BuildPipeline realizes a full definition: the base circuit plus every
// step applied in order. It returns the named circuits and the root
// circuits selected by the definition's outputs (all step results plus
// the base when no outputs are named).
func BuildPipeline(spec *PipelineSpec, reg *symbolic.OperatorRegistry, log logr.Logger) (map[string]*symbolic.Circuit, []*symbolic.Circuit, error) {
	g, err := BuildGraph(spec.Graph)
	if err != nil {
		return nil, nil, err
	}
	base, err := BuildCircuit(g, spec.Circuit)
	if err != nil {
		return nil, nil, err
	}
	log.V(1).Info("built base circuit", "layers", len(base.Layers()), "scope", base.Scope().String())

	circuits := map[string]*symbolic.Circuit{BaseName: base}
	resolve := func(step StepSpec, name string) (*symbolic.Circuit, error) {
		c, ok := circuits[name]
		if !ok {
			return nil, fmt.Errorf("step %q references unknown circuit %q", step.Name, name)
		}
		return c, nil
	}

	for _, step := range spec.Steps {
		if _, dup := circuits[step.Name]; dup {
			return nil, nil, fmt.Errorf("duplicate circuit name %q", step.Name)
		}
		var out *symbolic.Circuit
		switch step.Op {
		case "integrate":
			operand, err := resolve(step, step.Operand)
			if err != nil {
				return nil, nil, err
			}
			out, err = symbolic.Integrate(operand, graph.NewScope(step.Scope...), reg)
			if err != nil {
				return nil, nil, fmt.Errorf("step %q: %w", step.Name, err)
			}
		case "differentiate":
			operand, err := resolve(step, step.Operand)
			if err != nil {
				return nil, nil, err
			}
			out, err = symbolic.Differentiate(operand, reg)
			if err != nil {
				return nil, nil, fmt.Errorf("step %q: %w", step.Name, err)
			}
		case "multiply":
			lhs, err := resolve(step, step.Lhs)
			if err != nil {
				return nil, nil, err
			}
			rhs, err := resolve(step, step.Rhs)
			if err != nil {
				return nil, nil, err
			}
			out, err = symbolic.Multiply(lhs, rhs, reg)
			if err != nil {
				return nil, nil, fmt.Errorf("step %q: %w", step.Name, err)
			}
		default:
			return nil, nil, fmt.Errorf("step %q has unknown op %q", step.Name, step.Op)
		}
		circuits[step.Name] = out
		log.V(1).Info("applied step", "name", step.Name, "op", step.Op, "layers", len(out.Layers()))
	}

	roots, err := selectRoots(spec, circuits)
	if err != nil {
		return nil, nil, err
	}
	return circuits, roots, nil
}

// selectRoots picks the pipeline roots: the named outputs, or every
// step result (base included when there are no steps).
func selectRoots(spec *PipelineSpec, circuits map[string]*symbolic.Circuit) ([]*symbolic.Circuit, error) {
	if len(spec.Outputs) > 0 {
		roots := make([]*symbolic.Circuit, len(spec.Outputs))
		for i, name := range spec.Outputs {
			c, ok := circuits[name]
			if !ok {
				return nil, fmt.Errorf("outputs reference unknown circuit %q", name)
			}
			roots[i] = c
		}
		return roots, nil
	}
	if len(spec.Steps) == 0 {
		return []*symbolic.Circuit{circuits[BaseName]}, nil
	}
	roots := make([]*symbolic.Circuit, len(spec.Steps))
	for i, step := range spec.Steps {
		roots[i] = circuits[step.Name]
	}
	return roots, nil
}
