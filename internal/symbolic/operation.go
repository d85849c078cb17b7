package symbolic

import "fmt"

// Operator names a structural operation on circuits or layers.
type Operator int

const (
	// OpIntegration marginalizes a circuit over (part of) its scope.
	OpIntegration Operator = iota
	// OpDifferentiation differentiates a circuit with respect to its
	// inputs.
	OpDifferentiation
	// OpMultiplication multiplies two compatible circuits.
	OpMultiplication
)

// String returns the operator name.
func (op Operator) String() string {
	switch op {
	case OpIntegration:
		return "integration"
	case OpDifferentiation:
		return "differentiation"
	case OpMultiplication:
		return "multiplication"
	default:
		return fmt.Sprintf("operator(%d)", int(op))
	}
}

// LayerOperation records which operator produced a layer and from which
// operand layers. Operand layers belong to the operand circuits, never
// to the circuit holding this record.
type LayerOperation struct {
	Operator Operator
	Operands []*Layer
	Metadata map[string]any
}

// CircuitOperation records which operator produced a circuit and from
// which operand circuits. This is coarser than per-layer provenance:
// the operands here are whole circuits.
type CircuitOperation struct {
	Operator Operator
	Operands []*Circuit
	Metadata map[string]any
}
