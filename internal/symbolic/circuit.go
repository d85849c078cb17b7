package symbolic

import (
	"fmt"

	"github.com/probcirc/circ/internal/graph"
)

// Circuit is an immutable symbolic circuit: an ordered list of layers
// plus the two mutually inverse edge maps. Structural transforms never
// mutate a circuit; they build a new one referencing the old, so
// derived circuits (integral, gradient, product) can safely share
// ancestors inside a pipeline DAG.
type Circuit struct {
	layers    []*Layer
	inLayers  map[*Layer][]*Layer
	outLayers map[*Layer][]*Layer
	outputs   []*Layer
	scope     graph.Scope
	operation *CircuitOperation
}

// NewCircuit assembles a circuit from layers and their incoming-edge
// map. The layer list is kept as given when it is already topologically
// valid; circuits synthesized out of order (e.g. by rewrite rules) are
// re-ordered with the general topological sorter. A layer cycle is a
// construction bug and surfaces as CircuitCycleError.
func NewCircuit(layers []*Layer, inLayers map[*Layer][]*Layer, op *CircuitOperation) (*Circuit, error) {
	if inLayers == nil {
		inLayers = make(map[*Layer][]*Layer)
	}
	if !topologicallyValid(layers, inLayers) {
		sorted, err := sortLayers(layers, inLayers)
		if err != nil {
			return nil, err
		}
		layers = sorted
	}

	c := &Circuit{
		layers:    layers,
		inLayers:  inLayers,
		outLayers: make(map[*Layer][]*Layer, len(layers)),
		operation: op,
	}
	for _, l := range layers {
		c.scope = c.scope.Union(l.Scope)
		// Keep Inputs in sync with the edge map: the edge map is the
		// source of truth at circuit level.
		l.Inputs = inLayers[l]
		for _, in := range inLayers[l] {
			c.outLayers[in] = append(c.outLayers[in], l)
		}
	}
	for _, l := range layers {
		if len(c.outLayers[l]) == 0 {
			c.outputs = append(c.outputs, l)
		}
	}
	return c, nil
}

// topologicallyValid reports whether every layer's inputs appear
// strictly before the layer itself.
func topologicallyValid(layers []*Layer, inLayers map[*Layer][]*Layer) bool {
	pos := make(map[*Layer]int, len(layers))
	for i, l := range layers {
		pos[l] = i
	}
	for i, l := range layers {
		for _, in := range inLayers[l] {
			if j, ok := pos[in]; !ok || j >= i {
				return false
			}
		}
	}
	return true
}

// sortLayers re-orders a synthesized layer list topologically,
// preserving the original relative order among simultaneously ready
// layers as far as the Kahn queue allows.
func sortLayers(layers []*Layer, inLayers map[*Layer][]*Layer) ([]*Layer, error) {
	// Roots for the orderer are the layers nothing consumes.
	consumed := make(map[*Layer]bool)
	for _, l := range layers {
		for _, in := range inLayers[l] {
			consumed[in] = true
		}
	}
	var sinks []*Layer
	for _, l := range layers {
		if !consumed[l] {
			sinks = append(sinks, l)
		}
	}
	order, err := LayerOrdering(sinks, func(l *Layer) []*Layer { return inLayers[l] })
	if err != nil {
		return nil, err
	}
	if len(order) != len(layers) {
		return nil, &CircuitCycleError{Remaining: len(layers) - len(order)}
	}
	return order, nil
}

// Layers returns all layers in topological order.
func (c *Circuit) Layers() []*Layer { return c.layers }

// LayerInputs returns the producers of l in order.
func (c *Circuit) LayerInputs(l *Layer) []*Layer { return c.inLayers[l] }

// LayerOutputs returns the consumers of l in order.
func (c *Circuit) LayerOutputs(l *Layer) []*Layer { return c.outLayers[l] }

// OutputLayers returns the layers no other layer consumes.
func (c *Circuit) OutputLayers() []*Layer { return c.outputs }

// InputLayers returns the leaf layers over raw variables.
func (c *Circuit) InputLayers() []*Layer {
	return c.filter((*Layer).IsInput)
}

// SumLayers returns all sum layers, mixing layers included.
func (c *Circuit) SumLayers() []*Layer {
	return c.filter((*Layer).IsSum)
}

// ProductLayers returns all product layers.
func (c *Circuit) ProductLayers() []*Layer {
	return c.filter((*Layer).IsProduct)
}

// MixingLayers returns the sum layers that combine alternative
// decompositions.
func (c *Circuit) MixingLayers() []*Layer {
	return c.filter(func(l *Layer) bool { return l.Kind == KindMixing })
}

// DenseLayers returns the plain (non-mixing) sum layers.
func (c *Circuit) DenseLayers() []*Layer {
	return c.filter(func(l *Layer) bool { return l.IsSum() && l.Kind != KindMixing })
}

// InnerLayers returns the non-input layers.
func (c *Circuit) InnerLayers() []*Layer {
	return c.filter(func(l *Layer) bool { return len(c.inLayers[l]) > 0 })
}

func (c *Circuit) filter(keep func(*Layer) bool) []*Layer {
	var out []*Layer
	for _, l := range c.layers {
		if keep(l) {
			out = append(out, l)
		}
	}
	return out
}

// Operation returns the circuit-level provenance record, or nil for
// circuits built directly from a region graph.
func (c *Circuit) Operation() *CircuitOperation { return c.operation }

// Scope returns the union scope of the circuit.
func (c *Circuit) Scope() graph.Scope { return c.scope }

// NumVars returns the number of variables the circuit covers.
func (c *Circuit) NumVars() int { return len(c.scope) }

// SumProduct selects how partitions are lowered into sum and product
// layers when building a circuit from a region graph.
type SumProduct int

const (
	// SumProductDense emits one sum layer per region: leaf regions get
	// an input layer followed by a sum layer, partitions become
	// product layers over their input regions' sums.
	SumProductDense SumProduct = iota

	// SumProductCP emits one dense layer per partition input followed
	// by an elementwise product, with leaf regions represented by
	// their input layers directly (a CP decomposition).
	SumProductCP
)

// InputFactory builds an input layer for a leaf region.
type InputFactory func(scope graph.Scope, numUnits, numChannels int) *Layer

// SumFactory builds a sum layer of the given width.
type SumFactory func(scope graph.Scope, numUnits int) *Layer

// ProductFactory builds a product layer of the given width.
type ProductFactory func(scope graph.Scope, numUnits int) *Layer

// Factories bundles the three layer factories consumed by
// FromRegionGraph. Nil fields fall back to categorical inputs, dense
// sums, and hadamard products.
type Factories struct {
	Input   InputFactory
	Sum     SumFactory
	Product ProductFactory
}

func (f Factories) withDefaults() Factories {
	if f.Input == nil {
		f.Input = func(scope graph.Scope, numUnits, numChannels int) *Layer {
			return NewCategoricalLayer(scope, numUnits, numChannels, 2)
		}
	}
	if f.Sum == nil {
		f.Sum = NewDenseLayer
	}
	if f.Product == nil {
		f.Product = NewHadamardLayer
	}
	return f
}

// Hyper bundles the global construction hyperparameters.
type Hyper struct {
	NumChannels   int
	NumInputUnits int
	NumSumUnits   int
	NumClasses    int
	SumProduct    SumProduct
}

func (h Hyper) withDefaults() Hyper {
	if h.NumChannels == 0 {
		h.NumChannels = 1
	}
	if h.NumInputUnits == 0 {
		h.NumInputUnits = 1
	}
	if h.NumSumUnits == 0 {
		h.NumSumUnits = 1
	}
	if h.NumClasses == 0 {
		h.NumClasses = 1
	}
	return h
}

// FromRegionGraph builds a symbolic circuit by walking the region graph
// nodes once, in their topological order. Mixing layers are introduced
// exactly where a region has multiple alternative partitions.
func FromRegionGraph(g *graph.Graph, f Factories, h Hyper) (*Circuit, error) {
	f = f.withDefaults()
	h = h.withDefaults()
	switch h.SumProduct {
	case SumProductDense:
		return fromRegionGraphDense(g, f, h)
	case SumProductCP:
		return fromRegionGraphCP(g, f, h)
	default:
		return nil, fmt.Errorf("unknown sum-product kind %d", h.SumProduct)
	}
}

// fromRegionGraphDense emits input+sum for leaf regions, a product per
// partition, and a sum (or mixing) per inner region.
func fromRegionGraphDense(g *graph.Graph, f Factories, h Hyper) (*Circuit, error) {
	var layers []*Layer
	inLayers := make(map[*Layer][]*Layer)
	byNode := make(map[graph.NodeID]*Layer)

	sumUnits := func(id graph.NodeID) int {
		if g.IsOutput(id) {
			return h.NumClasses
		}
		return h.NumSumUnits
	}

	for _, n := range g.Nodes() {
		switch {
		case n.IsRegion() && n.IsLeaf():
			in := f.Input(n.Scope, h.NumInputUnits, h.NumChannels)
			sum := f.Sum(n.Scope, sumUnits(n.ID))
			layers = append(layers, in, sum)
			inLayers[sum] = []*Layer{in}
			byNode[n.ID] = sum

		case n.IsPartition():
			prod := f.Product(n.Scope, h.NumSumUnits)
			layers = append(layers, prod)
			inLayers[prod] = mapNodes(byNode, n.Inputs)
			byNode[n.ID] = prod

		case n.IsRegion():
			inputs := mapNodes(byNode, n.Inputs)
			var sum *Layer
			if len(inputs) == 1 {
				sum = f.Sum(n.Scope, sumUnits(n.ID))
			} else {
				// Region decomposed in multiple ways: mix the
				// alternatives.
				sum = NewMixingLayer(n.Scope, sumUnits(n.ID), len(inputs))
			}
			layers = append(layers, sum)
			inLayers[sum] = inputs
			byNode[n.ID] = sum

		default:
			panic("region graph nodes must be either region or partition nodes")
		}
	}

	attachSumWeights(layers, inLayers)
	return NewCircuit(layers, inLayers, nil)
}

// fromRegionGraphCP lowers every partition into one dense layer per
// input region followed by an elementwise product. Leaf regions are
// their input layers; single-partition regions are the partition's
// product itself.
func fromRegionGraphCP(g *graph.Graph, f Factories, h Hyper) (*Circuit, error) {
	var layers []*Layer
	inLayers := make(map[*Layer][]*Layer)
	byNode := make(map[graph.NodeID]*Layer)

	for _, n := range g.Nodes() {
		switch {
		case n.IsRegion() && n.IsLeaf():
			in := f.Input(n.Scope, h.NumInputUnits, h.NumChannels)
			layers = append(layers, in)
			byNode[n.ID] = in

		case n.IsPartition():
			// The partition projects each input region to the width of
			// its parent region, then multiplies elementwise.
			units := h.NumSumUnits
			if len(n.Outputs) == 1 && g.IsOutput(n.Outputs[0]) {
				units = h.NumClasses
			}
			var denses []*Layer
			for _, rid := range n.Inputs {
				dense := f.Sum(g.Node(rid).Scope, units)
				layers = append(layers, dense)
				inLayers[dense] = []*Layer{byNode[rid]}
				denses = append(denses, dense)
			}
			prod := f.Product(n.Scope, units)
			layers = append(layers, prod)
			inLayers[prod] = denses
			byNode[n.ID] = prod

		case n.IsRegion():
			inputs := mapNodes(byNode, n.Inputs)
			if len(inputs) == 1 {
				byNode[n.ID] = inputs[0]
				continue
			}
			units := h.NumSumUnits
			if g.IsOutput(n.ID) {
				units = h.NumClasses
			}
			mix := NewMixingLayer(n.Scope, units, len(inputs))
			layers = append(layers, mix)
			inLayers[mix] = inputs
			byNode[n.ID] = mix

		default:
			panic("region graph nodes must be either region or partition nodes")
		}
	}

	attachSumWeights(layers, inLayers)
	return NewCircuit(layers, inLayers, nil)
}

// mapNodes resolves region-graph node IDs to their emitted layers.
func mapNodes(byNode map[graph.NodeID]*Layer, ids []graph.NodeID) []*Layer {
	out := make([]*Layer, len(ids))
	for i, id := range ids {
		out[i] = byNode[id]
	}
	return out
}

// attachSumWeights gives every freshly built sum layer its weight
// parameter once the wiring (and therefore the fan-in) is known.
func attachSumWeights(layers []*Layer, inLayers map[*Layer][]*Layer) {
	for _, l := range layers {
		if !l.IsSum() || l.Params != nil {
			continue
		}
		inputs := inLayers[l]
		if len(inputs) == 0 {
			continue
		}
		var weight Param
		if l.Kind == KindMixing {
			weight, _ = NewSoftmaxParam(NewTensorParam(true, l.NumUnits, len(inputs)), -1)
		} else {
			weight, _ = NewSoftmaxParam(NewTensorParam(true, l.NumUnits, len(inputs)*inputs[0].NumUnits), -1)
		}
		l.Params = map[string]Param{"weight": weight}
	}
}
