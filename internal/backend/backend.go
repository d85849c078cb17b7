// Package backend provides the reference factory: an inert backend
// that materializes parameter expressions and layers as plain records.
// It is the backend used by the CLI for plan inspection and by tests
// asserting compilation structure; numeric backends implement the same
// factory contract.
package backend

import (
	"fmt"

	"github.com/probcirc/circ/internal/compiler"
)

// Tensor is a materialized parameter node: the operation name, the
// resolved shape, and the operand tensors.
type Tensor struct {
	ID       int
	Op       string
	Dims     []int
	Config   map[string]any
	Operands []*Tensor
}

// Shape implements compiler.Tensor.
func (t *Tensor) Shape() []int { return t.Dims }

// Leaf reports whether the tensor is a parameter leaf rather than a
// deferred computation.
func (t *Tensor) Leaf() bool { return len(t.Operands) == 0 }

// String renders the tensor for diagnostics and plan dumps.
func (t *Tensor) String() string {
	return fmt.Sprintf("t%d:%s%v", t.ID, t.Op, t.Dims)
}

// Layer is an inert executable layer recording its spec.
type Layer struct {
	spec compiler.LayerSpec
}

// Spec implements compiler.Layer.
func (l *Layer) Spec() compiler.LayerSpec { return l.spec }

// String renders the layer for plan dumps.
func (l *Layer) String() string {
	return fmt.Sprintf("%s%s[%d -> %d]", l.spec.Kind, l.spec.Scope, l.spec.NumInputUnits, l.spec.NumOutputUnits)
}

// Factory implements compiler.Factory. Tensors receive sequential IDs,
// so two layers sharing a parameter expression visibly reference the
// same tensor in a plan dump.
type Factory struct {
	next    int
	tensors []*Tensor
}

// NewFactory builds an empty reference factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Parameter implements compiler.Factory.
func (f *Factory) Parameter(op compiler.ParameterOp) (compiler.Tensor, error) {
	operands := make([]*Tensor, len(op.Operands))
	for i, o := range op.Operands {
		t, ok := o.(*Tensor)
		if !ok {
			return nil, fmt.Errorf("foreign tensor %T", o)
		}
		operands[i] = t
	}
	t := &Tensor{
		ID:       f.next,
		Op:       op.Name,
		Dims:     op.Shape,
		Config:   op.Config,
		Operands: operands,
	}
	f.next++
	f.tensors = append(f.tensors, t)
	return t, nil
}

// Layer implements compiler.Factory.
func (f *Factory) Layer(spec compiler.LayerSpec) (compiler.Layer, error) {
	return &Layer{spec: spec}, nil
}

// Tensors returns every tensor materialized so far, in creation order.
func (f *Factory) Tensors() []*Tensor { return f.tensors }
