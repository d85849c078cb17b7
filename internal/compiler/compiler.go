package compiler

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/probcirc/circ/internal/symbolic"
)

// Entry is one bookkeeping record of a plan: it tells the evaluator
// where a layer's operands come from. Input layers read variable
// columns (Vars); inner layers read the outputs of earlier layers
// (Inputs). The plan's final entry designates the output layers the
// same way an inner entry does.
type Entry struct {
	// Inputs lists producer layer indices within the plan. Empty for
	// input-layer entries.
	Inputs []int

	// Vars lists the variable positions within the circuit scope that
	// an input layer reads. Nil for inner-layer entries.
	Vars []int
}

// Plan is one compiled circuit: executable layers in topological order
// plus the bookkeeping entries routing values between them.
type Plan struct {
	ID      uuid.UUID
	Circuit *symbolic.Circuit
	Layers  []Layer
	Entries []Entry
	Output  Entry
	indexOf map[*symbolic.Layer]int
}

// LayerIndex returns the plan index of a symbolic layer, or -1 when the
// layer is not part of the plan's circuit.
func (p *Plan) LayerIndex(l *symbolic.Layer) int {
	if i, ok := p.indexOf[l]; ok {
		return i
	}
	return -1
}

// Pipeline is the result of compiling a circuit pipeline: one plan per
// circuit, ordered so that every plan follows the plans of the circuits
// it was derived from.
type Pipeline struct {
	Plans []*Plan
}

// Roots returns the plans of the pipeline's root circuits, in root
// order.
func (p *Pipeline) Roots(roots ...*symbolic.Circuit) []*Plan {
	byCircuit := make(map[*symbolic.Circuit]*Plan, len(p.Plans))
	for _, plan := range p.Plans {
		byCircuit[plan.Circuit] = plan
	}
	out := make([]*Plan, len(roots))
	for i, c := range roots {
		out[i] = byCircuit[c]
	}
	return out
}

// CompilePipeline lowers the predecessor closure of the given root
// circuits. Operand circuits compile before the circuits derived from
// them, so every parameter expression is materialized exactly once and
// shared through the context memo.
func CompilePipeline(ctx *Context, roots ...*symbolic.Circuit) (*Pipeline, error) {
	if ctx.factory == nil {
		return nil, &CompileError{Code: ErrMissingFactory, Message: "no backend factory configured"}
	}

	order, err := symbolic.PipelineOrdering(roots)
	if err != nil {
		return nil, err
	}

	pipe := &Pipeline{Plans: make([]*Plan, 0, len(order))}
	for _, circuit := range order {
		if plan, ok := ctx.plans[circuit]; ok {
			pipe.Plans = append(pipe.Plans, plan)
			continue
		}
		plan, err := ctx.compileCircuit(circuit)
		if err != nil {
			return nil, err
		}
		ctx.plans[circuit] = plan
		pipe.Plans = append(pipe.Plans, plan)
	}
	return pipe, nil
}

// compileCircuit lowers one circuit into a plan, walking its layers in
// topological order.
func (c *Context) compileCircuit(circuit *symbolic.Circuit) (*Plan, error) {
	plan := &Plan{
		ID:      uuid.New(),
		Circuit: circuit,
		indexOf: make(map[*symbolic.Layer]int, len(circuit.Layers())),
	}
	varPos := make(map[int]int, circuit.NumVars())
	for i, v := range circuit.Scope() {
		varPos[v] = i
	}

	for _, l := range circuit.Layers() {
		if err := c.checkProvenance(l); err != nil {
			return nil, err
		}

		params := make(map[string]Tensor, len(l.Params))
		for name, p := range l.Params {
			t, err := c.materialize(p)
			if err != nil {
				return nil, err
			}
			params[name] = t
		}

		spec := LayerSpec{
			Kind:           l.Kind,
			Scope:          l.Scope,
			NumInputUnits:  inputUnits(circuit, l),
			NumOutputUnits: l.NumUnits,
			Arity:          len(circuit.LayerInputs(l)),
			Params:         params,
			Extra:          l.Extra,
		}
		built, err := c.factory.Layer(spec)
		if err != nil {
			return nil, &CompileError{Code: ErrBackend, Layer: l.String(), Message: err.Error(), err: err}
		}

		entry := c.bookkeep(circuit, plan, l, varPos)
		plan.indexOf[l] = len(plan.Layers)
		plan.Layers = append(plan.Layers, built)
		plan.Entries = append(plan.Entries, entry)

		c.logger.V(1).Info("compiled layer",
			"plan", plan.ID, "index", plan.indexOf[l], "kind", l.Kind.String(), "scope", l.Scope.String())
	}

	for _, out := range circuit.OutputLayers() {
		plan.Output.Inputs = append(plan.Output.Inputs, plan.indexOf[out])
	}
	c.logger.Info("compiled circuit",
		"plan", plan.ID, "layers", len(plan.Layers), "outputs", len(plan.Output.Inputs))
	return plan, nil
}

// bookkeep builds the routing entry for one layer.
func (c *Context) bookkeep(circuit *symbolic.Circuit, plan *Plan, l *symbolic.Layer, varPos map[int]int) Entry {
	producers := circuit.LayerInputs(l)
	if len(producers) == 0 {
		vars := make([]int, len(l.Scope))
		for i, v := range l.Scope {
			vars[i] = varPos[v]
		}
		return Entry{Vars: vars}
	}
	inputs := make([]int, len(producers))
	for i, in := range producers {
		inputs[i] = plan.indexOf[in]
	}
	return Entry{Inputs: inputs}
}

// checkProvenance rejects layers derived by an operator the compiler
// has no parameter-sharing policy for. Integration and differentiation
// reuse the operand parameters verbatim and multiplication composes
// them; all three arrive here as shared symbolic expressions, so the
// check is a vocabulary guard, not a dispatch.
func (c *Context) checkProvenance(l *symbolic.Layer) error {
	if l.Operation == nil {
		return nil
	}
	switch l.Operation.Operator {
	case symbolic.OpIntegration, symbolic.OpDifferentiation, symbolic.OpMultiplication:
		return nil
	default:
		return &CompileError{
			Code:    ErrUnsupportedProvenance,
			Layer:   l.String(),
			Message: fmt.Sprintf("operator %s", l.Operation.Operator),
		}
	}
}

// inputUnits is the per-producer unit count feeding l, or the channel
// width for input layers.
func inputUnits(circuit *symbolic.Circuit, l *symbolic.Layer) int {
	producers := circuit.LayerInputs(l)
	if len(producers) == 0 {
		return l.NumChannels
	}
	return producers[0].NumUnits
}
