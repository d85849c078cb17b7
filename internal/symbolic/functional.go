package symbolic

import (
	"fmt"

	"github.com/probcirc/circ/internal/graph"
)

// Integrate rewrites a circuit into its integral over the given scope
// (the full circuit scope when scope is empty). Every layer of the
// result carries integration provenance back to its source layer, which
// is what lets the compiler share the materialized parameters instead
// of duplicating them.
func Integrate(c *Circuit, scope graph.Scope, reg *OperatorRegistry) (*Circuit, error) {
	if scope.IsEmpty() {
		scope = c.Scope()
	}
	if !scope.SubsetOf(c.Scope()) {
		return nil, fmt.Errorf("integration scope %s is not within the circuit scope %s", scope, c.Scope())
	}

	var layers []*Layer
	inLayers := make(map[*Layer][]*Layer)
	mapped := make(map[*Layer]*Layer, len(c.Layers()))

	for _, l := range c.Layers() {
		rule, err := reg.RetrieveRule(OpIntegration, l.Kind)
		if err != nil {
			return nil, err
		}
		block, err := rule(l)
		if err != nil {
			return nil, err
		}
		if l.IsInput() && block.Output.Operation != nil {
			if block.Output.Operation.Metadata == nil {
				block.Output.Operation.Metadata = make(map[string]any)
			}
			block.Output.Operation.Metadata["integrated"] = l.Scope.SubsetOf(scope)
		}
		layers = spliceBlock(layers, inLayers, block, mappedInputs(mapped, c.LayerInputs(l)))
		mapped[l] = block.Output
	}

	op := &CircuitOperation{
		Operator: OpIntegration,
		Operands: []*Circuit{c},
		Metadata: map[string]any{"scope": scope},
	}
	return NewCircuit(layers, inLayers, op)
}

// Differentiate rewrites a circuit into one computing its derivative.
// The result contains a provenance-carrying copy of every primal layer
// a tangent needs (the product rule references primal siblings) plus
// the tangent layers themselves; unused primal copies are pruned so the
// derived circuit's outputs are exactly the tangents of the source
// outputs.
func Differentiate(c *Circuit, reg *OperatorRegistry) (*Circuit, error) {
	var layers []*Layer
	inLayers := make(map[*Layer][]*Layer)
	primal := make(map[*Layer]*Layer, len(c.Layers()))
	tangent := make(map[*Layer]*Layer, len(c.Layers()))

	for _, l := range c.Layers() {
		// Primal copy, sharing parameters through provenance.
		p := derived(OpDifferentiation, l, map[string]any{"primal": true})
		layers = append(layers, p)
		inLayers[p] = mappedInputs(primal, c.LayerInputs(l))
		primal[l] = p

		rule, err := reg.RetrieveRule(OpDifferentiation, l.Kind)
		if err != nil {
			return nil, err
		}
		block, err := rule(l)
		if err != nil {
			return nil, err
		}

		if l.IsProduct() && len(c.LayerInputs(l)) > 0 {
			// Product rule: branch i consumes the primal inputs with
			// input i swapped for its tangent.
			layers = spliceProductTangent(layers, inLayers, block, c.LayerInputs(l), primal, tangent)
		} else {
			layers = spliceBlock(layers, inLayers, block, mappedInputs(tangent, c.LayerInputs(l)))
		}
		tangent[l] = block.Output
	}

	op := &CircuitOperation{Operator: OpDifferentiation, Operands: []*Circuit{c}}
	outputs := make([]*Layer, len(c.OutputLayers()))
	for i, out := range c.OutputLayers() {
		outputs[i] = tangent[out]
	}
	layers, inLayers = pruneUnreachable(layers, inLayers, outputs)
	return NewCircuit(layers, inLayers, op)
}

// Multiply rewrites two compatible circuits into their product. The
// circuits must decompose their (identical) scope the same way: layers
// are paired by position walking down from the single output layer of
// each circuit, and every pair is rewritten through the registered
// multiplication rule for its kind pair.
func Multiply(lhs, rhs *Circuit, reg *OperatorRegistry) (*Circuit, error) {
	if !lhs.Scope().Equal(rhs.Scope()) {
		return nil, &IncompatibleCircuitsError{
			Reason: fmt.Sprintf("scopes %s and %s differ", lhs.Scope(), rhs.Scope()),
		}
	}
	if len(lhs.OutputLayers()) != 1 || len(rhs.OutputLayers()) != 1 {
		return nil, &IncompatibleCircuitsError{Reason: "both circuits must have a single output layer"}
	}

	type pair struct{ l, r *Layer }
	var layers []*Layer
	inLayers := make(map[*Layer][]*Layer)
	mapped := make(map[pair]*Layer)

	var rewrite func(lo, ro *Layer) (*Layer, error)
	rewrite = func(lo, ro *Layer) (*Layer, error) {
		if out, ok := mapped[pair{lo, ro}]; ok {
			return out, nil
		}
		if !lo.Scope.Equal(ro.Scope) {
			return nil, &IncompatibleCircuitsError{
				Reason: fmt.Sprintf("layer scopes %s and %s do not align", lo.Scope, ro.Scope),
			}
		}
		if lo.Arity() != ro.Arity() {
			return nil, &IncompatibleCircuitsError{
				Reason: fmt.Sprintf("layer arities %d and %d do not align at scope %s", lo.Arity(), ro.Arity(), lo.Scope),
			}
		}

		inputs := make([]*Layer, lo.Arity())
		for i := range lhs.LayerInputs(lo) {
			in, err := rewrite(lhs.LayerInputs(lo)[i], rhs.LayerInputs(ro)[i])
			if err != nil {
				return nil, err
			}
			inputs[i] = in
		}

		rule, err := reg.RetrieveRule(OpMultiplication, lo.Kind, ro.Kind)
		if err != nil {
			return nil, err
		}
		block, err := rule(lo, ro)
		if err != nil {
			return nil, err
		}
		layers = spliceBlock(layers, inLayers, block, inputs)
		mapped[pair{lo, ro}] = block.Output
		return block.Output, nil
	}

	if _, err := rewrite(lhs.OutputLayers()[0], rhs.OutputLayers()[0]); err != nil {
		return nil, err
	}

	op := &CircuitOperation{Operator: OpMultiplication, Operands: []*Circuit{lhs, rhs}}
	return NewCircuit(layers, inLayers, op)
}

// mappedInputs resolves source layers through a rewrite map.
func mappedInputs(mapped map[*Layer]*Layer, inputs []*Layer) []*Layer {
	out := make([]*Layer, len(inputs))
	for i, in := range inputs {
		out[i] = mapped[in]
	}
	return out
}

// spliceBlock appends a rule's fragment to the result circuit under
// construction: internal edges are copied and every entry layer is
// completed with the rewritten operand inputs.
func spliceBlock(layers []*Layer, inLayers map[*Layer][]*Layer, block *CircuitBlock, inputs []*Layer) []*Layer {
	for _, bl := range block.Layers {
		if internal := block.InternalInputs(bl); len(internal) > 0 {
			inLayers[bl] = append([]*Layer{}, internal...)
		}
	}
	for _, entry := range block.Entries {
		inLayers[entry] = append(inLayers[entry], inputs...)
	}
	return append(layers, block.Layers...)
}

// spliceProductTangent wires the product-rule fragment: entry i gets
// the primal inputs with position i replaced by its tangent.
func spliceProductTangent(layers []*Layer, inLayers map[*Layer][]*Layer, block *CircuitBlock, sources []*Layer, primal, tangent map[*Layer]*Layer) []*Layer {
	for _, bl := range block.Layers {
		if internal := block.InternalInputs(bl); len(internal) > 0 {
			inLayers[bl] = append([]*Layer{}, internal...)
		}
	}
	for i, entry := range block.Entries {
		wired := make([]*Layer, len(sources))
		for j, src := range sources {
			if i == j {
				wired[j] = tangent[src]
			} else {
				wired[j] = primal[src]
			}
		}
		inLayers[entry] = append(inLayers[entry], wired...)
	}
	return append(layers, block.Layers...)
}

// pruneUnreachable drops layers the designated outputs cannot reach
// through the incoming-edge map, preserving the original layer order.
func pruneUnreachable(layers []*Layer, inLayers map[*Layer][]*Layer, outputs []*Layer) ([]*Layer, map[*Layer][]*Layer) {
	keep := make(map[*Layer]bool, len(layers))
	stack := append([]*Layer{}, outputs...)
	for len(stack) > 0 {
		l := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if keep[l] {
			continue
		}
		keep[l] = true
		stack = append(stack, inLayers[l]...)
	}

	kept := make([]*Layer, 0, len(layers))
	keptIn := make(map[*Layer][]*Layer, len(layers))
	for _, l := range layers {
		if keep[l] {
			kept = append(kept, l)
			keptIn[l] = inLayers[l]
		}
	}
	return kept, keptIn
}
