package symbolic

// CircuitBlock is the unit of output of an operator rule: a small
// circuit fragment to be spliced into the result circuit. The fragment
// owns its layers and internal edges; the entry layers are the ones
// whose remaining inputs the splicing code completes with the rewritten
// operand inputs.
type CircuitBlock struct {
	// Layers lists the fragment's layers in topological order.
	Layers []*Layer

	// Entries lists the layers that consume the rewritten inputs of
	// the operand layer(s), in operand-input order.
	Entries []*Layer

	// Output designates the fragment's result layer.
	Output *Layer

	internal map[*Layer][]*Layer
}

// SingleLayerBlock wraps one fresh layer as a block: the layer is both
// the entry and the output.
func SingleLayerBlock(l *Layer) *CircuitBlock {
	return &CircuitBlock{
		Layers:  []*Layer{l},
		Entries: []*Layer{l},
		Output:  l,
	}
}

// NewCircuitBlock builds a multi-layer fragment with explicit internal
// edges.
func NewCircuitBlock(layers []*Layer, internal map[*Layer][]*Layer, entries []*Layer, output *Layer) *CircuitBlock {
	return &CircuitBlock{
		Layers:   layers,
		Entries:  entries,
		Output:   output,
		internal: internal,
	}
}

// InternalInputs returns the fragment-internal producers of l.
func (b *CircuitBlock) InternalInputs(l *Layer) []*Layer {
	return b.internal[l]
}
