package symbolic

import (
	"errors"
	"fmt"
)

// OperatorNotFoundError indicates the operator itself was never
// registered.
type OperatorNotFoundError struct {
	Op Operator
}

// Error implements the error interface.
func (e *OperatorNotFoundError) Error() string {
	return fmt.Sprintf("symbolic operator %s not found", e.Op)
}

// SignatureNotFoundError indicates the operator is known but no
// registered signature matches the queried layer kinds, neither exactly
// nor by kind refinement.
type SignatureNotFoundError struct {
	Op        Operator
	Signature Signature
}

// Error implements the error interface.
func (e *SignatureNotFoundError) Error() string {
	return fmt.Sprintf("symbolic operator %s has no rule for signature %s", e.Op, e.Signature)
}

// RuleError indicates an invalid rule registration.
type RuleError struct {
	Message string
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	return fmt.Sprintf("invalid operator rule: %s", e.Message)
}

// PipelineCycleError indicates the circuit-level pipeline DAG contains
// a cycle. This is a user pipeline error: the offending operation
// provenance must be fixed upstream.
type PipelineCycleError struct {
	// Remaining counts the circuits still holding unresolved incoming
	// edges when the ordering stalled.
	Remaining int
}

// Error implements the error interface.
func (e *PipelineCycleError) Error() string {
	return fmt.Sprintf("circuit pipeline has at least one cycle (%d circuits unresolved)", e.Remaining)
}

// CircuitCycleError indicates a cycle between layers inside a single
// circuit. Unlike PipelineCycleError this signals a circuit
// construction bug, not a bad user pipeline.
type CircuitCycleError struct {
	Remaining int
}

// Error implements the error interface.
func (e *CircuitCycleError) Error() string {
	return fmt.Sprintf("circuit has a layer cycle (%d layers unresolved)", e.Remaining)
}

// IncompatibleCircuitsError indicates two circuits whose structures do
// not align for a circuit-level product.
type IncompatibleCircuitsError struct {
	Reason string
}

// Error implements the error interface.
func (e *IncompatibleCircuitsError) Error() string {
	return fmt.Sprintf("circuits are not compatible: %s", e.Reason)
}

// IsPipelineCycle reports whether err is (or wraps) a pipeline cycle.
func IsPipelineCycle(err error) bool {
	var ce *PipelineCycleError
	return errors.As(err, &ce)
}

// IsCircuitCycle reports whether err is (or wraps) a layer cycle.
func IsCircuitCycle(err error) bool {
	var ce *CircuitCycleError
	return errors.As(err, &ce)
}
