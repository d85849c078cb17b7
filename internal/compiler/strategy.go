package compiler

import (
	"github.com/probcirc/circ/internal/graph"
	"github.com/probcirc/circ/internal/symbolic"
)

// Tensor is an opaque handle to a materialized parameter. The compiler
// never inspects tensors beyond their shape; identity matters, though:
// layers whose symbolic parameters coincide receive the same Tensor
// value, which is how derived circuits share parameters with their
// operands.
type Tensor interface {
	Shape() []int
}

// ParameterOp describes one node of a parameter expression to the
// backend: a leaf tensor or a deferred computation over already
// materialized operands.
type ParameterOp struct {
	// Name tags the node variant, e.g. "tensor", "softmax",
	// "kronecker".
	Name string

	// Shape is the node's output shape.
	Shape []int

	// Config carries the node's non-tensor attributes (axis, learnable
	// flag, constant value, ...).
	Config map[string]any

	// Operands are the materialized child tensors in order.
	Operands []Tensor
}

// LayerSpec describes one executable layer to the backend.
type LayerSpec struct {
	Kind           symbolic.LayerKind
	Scope          graph.Scope
	NumInputUnits  int
	NumOutputUnits int
	Arity          int

	// Params holds the materialized parameters by name.
	Params map[string]Tensor

	// Extra carries the layer's non-tensor hyperparameters.
	Extra map[string]any
}

// Layer is an executable layer built by the backend factory.
type Layer interface {
	Spec() LayerSpec
}

// Factory is the backend contract: it materializes parameter nodes and
// constructs executable layers. A factory is used for a whole pipeline
// compilation, so it may pool or deduplicate storage internally.
type Factory interface {
	Parameter(op ParameterOp) (Tensor, error)
	Layer(spec LayerSpec) (Layer, error)
}
