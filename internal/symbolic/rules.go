package symbolic

import "fmt"

// registerDefaultRules seeds a registry with the built-in rewrite
// rules. Integration and differentiation dispatch on the base kinds, so
// concrete refinements (categorical inputs, dense sums, ...) resolve
// through sub-kind matching; multiplication dispatches on concrete
// input kinds where the parameter composition differs.
func registerDefaultRules(r *OperatorRegistry) {
	must := func(err error) {
		if err != nil {
			panic(fmt.Sprintf("registering built-in operator rule: %v", err))
		}
	}

	must(r.Register(OpIntegration, Signature{KindInput}, integrateLayer, false))
	must(r.Register(OpIntegration, Signature{KindSum}, integrateLayer, false))
	must(r.Register(OpIntegration, Signature{KindProduct}, integrateLayer, false))

	must(r.Register(OpDifferentiation, Signature{KindInput}, differentiateLayer, false))
	must(r.Register(OpDifferentiation, Signature{KindSum}, differentiateLayer, false))
	must(r.Register(OpDifferentiation, Signature{KindProduct}, differentiateProductLayer, false))

	must(r.Register(OpMultiplication, Signature{KindCategorical, KindCategorical}, multiplyCategoricalLayers, true))
	must(r.Register(OpMultiplication, Signature{KindGaussian, KindGaussian}, multiplyGaussianLayers, true))
	must(r.Register(OpMultiplication, Signature{KindConstant, KindConstant}, multiplyConstantLayers, true))
	must(r.Register(OpMultiplication, Signature{KindSum, KindSum}, multiplySumLayers, true))
	must(r.Register(OpMultiplication, Signature{KindMixing, KindMixing}, multiplyMixingLayers, true))
	must(r.Register(OpMultiplication, Signature{KindProduct, KindProduct}, multiplyProductLayers, true))
}

// derived builds the structural copy of a layer carrying provenance for
// the given operator. The copy shares the operand's symbolic
// parameterization; whether the materialized parameters are shared is
// decided by the compiler based on the provenance kind.
func derived(op Operator, l *Layer, meta map[string]any) *Layer {
	return &Layer{
		Kind:        l.Kind,
		Scope:       l.Scope,
		NumUnits:    l.NumUnits,
		NumChannels: l.NumChannels,
		Params:      l.Params,
		Extra:       l.Extra,
		Operation:   &LayerOperation{Operator: op, Operands: []*Layer{l}, Metadata: meta},
	}
}

// integrateLayer rewrites any layer into its integrated counterpart:
// integration restructures evaluation but keeps the layer shape, so the
// block is a single provenance-carrying copy.
func integrateLayer(operands ...*Layer) (*CircuitBlock, error) {
	return SingleLayerBlock(derived(OpIntegration, operands[0], nil)), nil
}

// differentiateLayer rewrites an input or sum layer into its tangent
// counterpart. Sum layers differentiate to sums with the same weights;
// input layers differentiate to inputs over the same statistics, so in
// both cases the block is a provenance-carrying copy.
func differentiateLayer(operands ...*Layer) (*CircuitBlock, error) {
	return SingleLayerBlock(derived(OpDifferentiation, operands[0], nil)), nil
}

// differentiateProductLayer expands the product rule: the tangent of a
// k-ary product is the sum of k products, each with exactly one input
// replaced by its tangent. The block carries one entry per branch; the
// splicing code wires branch i to (primal inputs with input i swapped
// for its tangent).
func differentiateProductLayer(operands ...*Layer) (*CircuitBlock, error) {
	l := operands[0]
	arity := l.Arity()
	if arity == 0 {
		return nil, &RuleError{Message: "cannot differentiate a product layer with no inputs"}
	}

	branches := make([]*Layer, arity)
	for i := range branches {
		branches[i] = derived(OpDifferentiation, l, map[string]any{"branch": i})
	}
	mix := NewMixingLayer(l.Scope, l.NumUnits, arity)
	mix.Operation = &LayerOperation{Operator: OpDifferentiation, Operands: []*Layer{l}}
	mix.Params = map[string]Param{"weight": NewConstantParam(1, l.NumUnits, arity)}

	layers := append(append([]*Layer{}, branches...), mix)
	internal := map[*Layer][]*Layer{mix: branches}
	return NewCircuitBlock(layers, internal, branches, mix), nil
}

// multiplied builds the shared shell of a product-of-layers result.
func multiplied(lhs, rhs *Layer, kind LayerKind, params map[string]Param) *Layer {
	return &Layer{
		Kind:        kind,
		Scope:       lhs.Scope.Union(rhs.Scope),
		NumUnits:    lhs.NumUnits * rhs.NumUnits,
		NumChannels: lhs.NumChannels,
		Params:      params,
		Operation:   &LayerOperation{Operator: OpMultiplication, Operands: []*Layer{lhs, rhs}},
	}
}

// multiplyCategoricalLayers crosses two categorical input layers: the
// result units are all pairs, and the probability tables combine as an
// outer product over the unit axis.
func multiplyCategoricalLayers(operands ...*Layer) (*CircuitBlock, error) {
	lhs, rhs := operands[0], operands[1]
	params := make(map[string]Param)
	if lp, rp := lhs.Params["probs"], rhs.Params["probs"]; lp != nil && rp != nil {
		probs, err := NewOuterProductParam(lp, rp, 0)
		if err != nil {
			return nil, err
		}
		params["probs"] = probs
	}
	out := multiplied(lhs, rhs, KindCategorical, params)
	out.Extra = lhs.Extra
	return SingleLayerBlock(out), nil
}

// multiplyGaussianLayers fuses two Gaussian input layers using the
// Gaussian-product closure: fused means, fused standard deviations, and
// a log-partition correction term.
func multiplyGaussianLayers(operands ...*Layer) (*CircuitBlock, error) {
	lhs, rhs := operands[0], operands[1]
	means := []Param{lhs.Params["mean"], rhs.Params["mean"]}
	stddevs := []Param{lhs.Params["stddev"], rhs.Params["stddev"]}

	mean, err := NewMeanGaussianProductParam(means, stddevs)
	if err != nil {
		return nil, err
	}
	stddev, err := NewStddevGaussianProductParam(stddevs)
	if err != nil {
		return nil, err
	}
	logPartition, err := NewLogPartitionGaussianProductParam(means, stddevs)
	if err != nil {
		return nil, err
	}

	out := multiplied(lhs, rhs, KindGaussian, map[string]Param{
		"mean":          mean,
		"stddev":        stddev,
		"log_partition": logPartition,
	})
	return SingleLayerBlock(out), nil
}

// multiplyConstantLayers multiplies two constant input layers into a
// constant with the product value.
func multiplyConstantLayers(operands ...*Layer) (*CircuitBlock, error) {
	lhs, rhs := operands[0], operands[1]
	lv, _ := lhs.Params["value"].(*ConstantParam)
	rv, _ := rhs.Params["value"].(*ConstantParam)
	params := make(map[string]Param)
	if lv != nil && rv != nil {
		params["value"] = NewConstantParam(lv.Value*rv.Value, lhs.NumUnits*rhs.NumUnits)
	}
	return SingleLayerBlock(multiplied(lhs, rhs, KindConstant, params)), nil
}

// multiplySumLayers crosses two sum layers: the result computes all
// pairwise products of the operand units, and the weight tables combine
// as a Kronecker product.
func multiplySumLayers(operands ...*Layer) (*CircuitBlock, error) {
	lhs, rhs := operands[0], operands[1]
	params := make(map[string]Param)
	if lw, rw := lhs.Params["weight"], rhs.Params["weight"]; lw != nil && rw != nil {
		weight, err := NewKroneckerParam(lw, rw)
		if err != nil {
			return nil, err
		}
		params["weight"] = weight
	}
	return SingleLayerBlock(multiplied(lhs, rhs, KindDense, params)), nil
}

// multiplyMixingLayers crosses two mixing layers combining the same
// number of alternative decompositions: the arity is preserved and the
// weights cross over the unit axis only.
func multiplyMixingLayers(operands ...*Layer) (*CircuitBlock, error) {
	lhs, rhs := operands[0], operands[1]
	params := make(map[string]Param)
	if lw, rw := lhs.Params["weight"], rhs.Params["weight"]; lw != nil && rw != nil {
		weight, err := NewOuterProductParam(lw, rw, 0)
		if err != nil {
			return nil, err
		}
		params["weight"] = weight
	}
	out := multiplied(lhs, rhs, KindMixing, params)
	out.Extra = lhs.Extra
	return SingleLayerBlock(out), nil
}

// multiplyProductLayers crosses two product layers of the same
// decomposition; the result stays a product layer.
func multiplyProductLayers(operands ...*Layer) (*CircuitBlock, error) {
	lhs, rhs := operands[0], operands[1]
	return SingleLayerBlock(multiplied(lhs, rhs, lhs.Kind, nil)), nil
}
