// Package symbolic implements the circuit intermediate representation:
// typed layers with scopes and unit counts, circuits built from region
// graphs, the operator registry that rewrites circuits under structural
// operations, and symbolic parameter expressions.
package symbolic

import (
	"fmt"

	"github.com/probcirc/circ/internal/graph"
)

// LayerKind tags the layer variants. Concrete kinds (Categorical,
// Dense, Hadamard, ...) refine one of the four base kinds (Input, Sum,
// Product, Mixing is a sum refinement); operator rules registered on a
// base kind match every refinement of it.
type LayerKind int

const (
	// KindInput is the base kind for leaf layers over raw variables.
	KindInput LayerKind = iota
	// KindCategorical is an input layer with categorical likelihoods.
	KindCategorical
	// KindGaussian is an input layer with Gaussian likelihoods.
	KindGaussian
	// KindConstant is an input layer evaluating to a constant.
	KindConstant

	// KindSum is the base kind for weighted-sum layers.
	KindSum
	// KindDense is a fully-parameterized sum layer.
	KindDense
	// KindMixing is the sum layer combining alternative decompositions
	// of the same region scope.
	KindMixing

	// KindProduct is the base kind for product layers.
	KindProduct
	// KindHadamard is an elementwise product layer.
	KindHadamard
	// KindKronecker is a cross-product layer.
	KindKronecker
)

// kindBase maps each concrete kind to its base kind.
var kindBase = map[LayerKind]LayerKind{
	KindCategorical: KindInput,
	KindGaussian:    KindInput,
	KindConstant:    KindInput,
	KindDense:       KindSum,
	KindMixing:      KindSum,
	KindHadamard:    KindProduct,
	KindKronecker:   KindProduct,
}

// Base returns the base kind of k (k itself if it already is one).
func (k LayerKind) Base() LayerKind {
	if b, ok := kindBase[k]; ok {
		return b
	}
	return k
}

// IsA reports whether k is the given kind or a refinement of it.
func (k LayerKind) IsA(base LayerKind) bool {
	return k == base || kindBase[k] == base
}

// String returns the kind name used in diagnostics and plan dumps.
func (k LayerKind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindCategorical:
		return "categorical"
	case KindGaussian:
		return "gaussian"
	case KindConstant:
		return "constant"
	case KindSum:
		return "sum"
	case KindDense:
		return "dense"
	case KindMixing:
		return "mixing"
	case KindProduct:
		return "product"
	case KindHadamard:
		return "hadamard"
	case KindKronecker:
		return "kronecker"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Layer is a node of the circuit IR. Layers are identified by pointer:
// the circuit owning a layer is its arena, and "the same layer" always
// means the same *Layer value.
//
// A layer produced by a structural rewrite carries an Operation record
// pointing back at the operand layer(s) it was derived from; layers
// built directly from a region graph carry none.
type Layer struct {
	Kind     LayerKind
	Scope    graph.Scope
	NumUnits int

	// NumChannels is the per-variable input width. Only meaningful for
	// input layers.
	NumChannels int

	// Inputs lists the producer layers in order. Empty for input
	// layers.
	Inputs []*Layer

	// Operation records provenance when this layer was produced by a
	// structural operator rather than by region-graph construction.
	Operation *LayerOperation

	// Params holds the symbolic parameterization by name, e.g. "probs"
	// for categorical inputs or "weight" for dense layers.
	Params map[string]Param

	// Extra holds non-tensor hyperparameters carried through to the
	// executable layer constructor (e.g. the number of categories).
	Extra map[string]any
}

// IsInput reports whether the layer is a leaf over raw variables.
func (l *Layer) IsInput() bool { return l.Kind.IsA(KindInput) }

// IsSum reports whether the layer is a (possibly mixing) sum layer.
func (l *Layer) IsSum() bool { return l.Kind.IsA(KindSum) }

// IsProduct reports whether the layer is a product layer.
func (l *Layer) IsProduct() bool { return l.Kind.IsA(KindProduct) }

// Arity returns the number of producer layers.
func (l *Layer) Arity() int { return len(l.Inputs) }

// String renders the layer for diagnostics.
func (l *Layer) String() string {
	return fmt.Sprintf("%s%s[%d]", l.Kind, l.Scope, l.NumUnits)
}

// NewCategoricalLayer builds a categorical input layer with a fresh
// softmax-parameterized probability table.
func NewCategoricalLayer(scope graph.Scope, numUnits, numChannels, numCategories int) *Layer {
	probs, _ := NewSoftmaxParam(NewTensorParam(true, numUnits, numChannels, numCategories), -1)
	return &Layer{
		Kind:        KindCategorical,
		Scope:       scope,
		NumUnits:    numUnits,
		NumChannels: numChannels,
		Params:      map[string]Param{"probs": probs},
		Extra:       map[string]any{"num_categories": numCategories},
	}
}

// NewGaussianLayer builds a Gaussian input layer with fresh mean and
// softplus-parameterized standard deviation.
func NewGaussianLayer(scope graph.Scope, numUnits, numChannels int) *Layer {
	stddev := NewSoftplusParam(NewTensorParam(true, numUnits, numChannels, 1))
	return &Layer{
		Kind:        KindGaussian,
		Scope:       scope,
		NumUnits:    numUnits,
		NumChannels: numChannels,
		Params: map[string]Param{
			"mean":   NewTensorParam(true, numUnits, numChannels, 1),
			"stddev": stddev,
		},
	}
}

// NewConstantLayer builds an input layer evaluating to a constant.
func NewConstantLayer(scope graph.Scope, numUnits, numChannels int, value float64) *Layer {
	return &Layer{
		Kind:        KindConstant,
		Scope:       scope,
		NumUnits:    numUnits,
		NumChannels: numChannels,
		Params:      map[string]Param{"value": NewConstantParam(value, numUnits)},
	}
}

// NewDenseLayer builds a dense sum layer. The weight parameter is
// attached once the arity is known (at circuit construction), since the
// weight shape depends on the producer width.
func NewDenseLayer(scope graph.Scope, numUnits int) *Layer {
	return &Layer{Kind: KindDense, Scope: scope, NumUnits: numUnits}
}

// NewMixingLayer builds the sum layer that averages the given number of
// alternative decompositions of one region scope.
func NewMixingLayer(scope graph.Scope, numUnits, arity int) *Layer {
	return &Layer{
		Kind:     KindMixing,
		Scope:    scope,
		NumUnits: numUnits,
		Extra:    map[string]any{"arity": arity},
	}
}

// NewHadamardLayer builds an elementwise product layer.
func NewHadamardLayer(scope graph.Scope, numUnits int) *Layer {
	return &Layer{Kind: KindHadamard, Scope: scope, NumUnits: numUnits}
}

// NewKroneckerLayer builds a cross-product layer.
func NewKroneckerLayer(scope graph.Scope, numUnits int) *Layer {
	return &Layer{Kind: KindKronecker, Scope: scope, NumUnits: numUnits}
}
