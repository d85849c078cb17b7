package graph

import (
	"errors"
	"fmt"
)

// ViolationCode categorizes region-graph invariant violations.
type ViolationCode string

const (
	// ErrCodeEmptyScope indicates a node with an empty scope.
	ErrCodeEmptyScope ViolationCode = "EMPTY_SCOPE"

	// ErrCodePartitionArity indicates a partition with fewer than two
	// input regions.
	ErrCodePartitionArity ViolationCode = "PARTITION_ARITY"

	// ErrCodeScopeOverlap indicates two inputs of a partition whose
	// scopes are not disjoint.
	ErrCodeScopeOverlap ViolationCode = "SCOPE_OVERLAP"

	// ErrCodeScopeMismatch indicates inputs whose scopes do not union
	// to the parent's scope, or an edge whose endpoint scopes are
	// inconsistent.
	ErrCodeScopeMismatch ViolationCode = "SCOPE_MISMATCH"

	// ErrCodeMultiParent indicates a partition feeding more than one
	// region.
	ErrCodeMultiParent ViolationCode = "MULTI_PARENT"

	// ErrCodeOrphanPartition indicates a partition with no parent
	// region.
	ErrCodeOrphanPartition ViolationCode = "ORPHAN_PARTITION"

	// ErrCodeBipartite indicates an edge between two nodes of the same
	// kind.
	ErrCodeBipartite ViolationCode = "NOT_BIPARTITE"

	// ErrCodeNoOutputs indicates a graph without any root region.
	ErrCodeNoOutputs ViolationCode = "NO_OUTPUTS"
)

// Violation is a single invariant violation found during Build.
type Violation struct {
	Code    ViolationCode
	Node    NodeID
	Message string
}

// Error implements the error interface.
func (v *Violation) Error() string {
	if v.Node >= 0 {
		return fmt.Sprintf("%s: node %d: %s", v.Code, v.Node, v.Message)
	}
	return fmt.Sprintf("%s: %s", v.Code, v.Message)
}

// MalformedGraphError aggregates every invariant violation detected
// while freezing a builder into a graph. Validation is greedy: all
// violations are collected before failing, so template authors see the
// full picture at once.
type MalformedGraphError struct {
	// Violations holds the individual findings, in detection order.
	Violations []*Violation
}

// Error implements the error interface.
func (e *MalformedGraphError) Error() string {
	if len(e.Violations) == 1 {
		return fmt.Sprintf("malformed region graph: %s", e.Violations[0].Error())
	}
	return fmt.Sprintf("malformed region graph: %d violations (first: %s)",
		len(e.Violations), e.Violations[0].Error())
}

// Unwrap exposes the individual violations to errors.Is/As chains.
func (e *MalformedGraphError) Unwrap() []error {
	out := make([]error, len(e.Violations))
	for i, v := range e.Violations {
		out[i] = v
	}
	return out
}

// IsMalformedGraph reports whether err is (or wraps) a region-graph
// validation failure.
func IsMalformedGraph(err error) bool {
	var mg *MalformedGraphError
	return errors.As(err, &mg)
}
