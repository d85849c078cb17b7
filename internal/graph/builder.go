package graph

import (
	"fmt"
	"slices"
)

// Builder is the mutation surface for constructing a region graph.
// Nodes are arena-allocated: AddRegion and AddPartition hand out stable
// NodeIDs, Connect records edges, and Build freezes the arena into an
// immutable, validated, topologically ordered Graph.
//
// A Builder is single-use: after a successful Build it must not be
// reused.
type Builder struct {
	nodes []*Node
}

// NewBuilder creates an empty region-graph builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddRegion allocates a region node covering the given variables.
func (b *Builder) AddRegion(vars ...int) NodeID {
	return b.add(KindRegion, NewScope(vars...))
}

// AddRegionScope allocates a region node with an already-built scope.
func (b *Builder) AddRegionScope(scope Scope) NodeID {
	return b.add(KindRegion, scope)
}

// AddPartition allocates a partition node covering the given variables.
func (b *Builder) AddPartition(vars ...int) NodeID {
	return b.add(KindPartition, NewScope(vars...))
}

// AddPartitionScope allocates a partition node with an already-built scope.
func (b *Builder) AddPartitionScope(scope Scope) NodeID {
	return b.add(KindPartition, scope)
}

func (b *Builder) add(kind NodeKind, scope Scope) NodeID {
	id := NodeID(len(b.nodes))
	b.nodes = append(b.nodes, &Node{
		ID:      id,
		Kind:    kind,
		Scope:   scope,
		SortKey: -1,
	})
	return id
}

// Label attaches a human-readable label to a node.
func (b *Builder) Label(id NodeID, label string) {
	b.nodes[id].Label = label
}

// SetSortKey sets the explicit ordering tie-breaker for a node.
func (b *Builder) SetSortKey(id NodeID, key int) {
	b.nodes[id].SortKey = key
}

// Connect records a directed edge from one node to another. Duplicate
// edges are ignored; the edge lists keep insertion order.
func (b *Builder) Connect(from, to NodeID) {
	src, dst := b.nodes[from], b.nodes[to]
	if slices.Contains(src.Outputs, to) {
		return
	}
	src.Outputs = append(src.Outputs, to)
	dst.Inputs = append(dst.Inputs, from)
}

// Build validates the constructed nodes and freezes them into a Graph.
// Validation is greedy: every violated invariant is collected into a
// single MalformedGraphError rather than failing on the first one.
//
// The resulting graph's Nodes() are sorted by the node order (scope,
// then kind, then sort key), which is a valid topological order for any
// graph that passes validation.
func (b *Builder) Build() (*Graph, error) {
	var violations []*Violation
	report := func(code ViolationCode, node NodeID, format string, args ...any) {
		violations = append(violations, &Violation{
			Code:    code,
			Node:    node,
			Message: fmt.Sprintf(format, args...),
		})
	}

	for _, n := range b.nodes {
		if n.Scope.IsEmpty() {
			report(ErrCodeEmptyScope, n.ID, "%s has an empty scope", n.Kind)
		}
		for _, out := range n.Outputs {
			if b.nodes[out].Kind == n.Kind {
				report(ErrCodeBipartite, n.ID,
					"edge to node %d connects two %s nodes", out, n.Kind)
			}
		}
		switch n.Kind {
		case KindRegion:
			b.validateRegion(n, report)
		case KindPartition:
			b.validatePartition(n, report)
		}
	}

	outputs := 0
	for _, n := range b.nodes {
		if n.IsRegion() && len(n.Outputs) == 0 {
			outputs++
		}
	}
	if len(b.nodes) > 0 && outputs == 0 {
		report(ErrCodeNoOutputs, InvalidNode, "no root region: every region has an outgoing edge")
	}

	if len(violations) > 0 {
		return nil, &MalformedGraphError{Violations: violations}
	}
	return newGraph(b.nodes), nil
}

// validateRegion checks the region-side invariants: every input
// partition decomposes exactly this region's scope, and the scope of an
// outgoing partition strictly contains the region's scope.
func (b *Builder) validateRegion(n *Node, report func(ViolationCode, NodeID, string, ...any)) {
	for _, in := range n.Inputs {
		p := b.nodes[in]
		if p.IsPartition() && !p.Scope.Equal(n.Scope) {
			report(ErrCodeScopeMismatch, n.ID,
				"input partition %d has scope %s, want %s", p.ID, p.Scope, n.Scope)
		}
	}
	for _, out := range n.Outputs {
		p := b.nodes[out]
		if p.IsPartition() && !(n.Scope.SubsetOf(p.Scope) && !n.Scope.Equal(p.Scope)) {
			report(ErrCodeScopeMismatch, n.ID,
				"scope %s is not a proper subset of output partition %d scope %s",
				n.Scope, p.ID, p.Scope)
		}
	}
}

// validatePartition checks the partition-side invariants: at least two
// inputs, pairwise-disjoint input scopes unioning to the partition's
// scope, and exactly one parent region.
func (b *Builder) validatePartition(n *Node, report func(ViolationCode, NodeID, string, ...any)) {
	if len(n.Inputs) < 2 {
		report(ErrCodePartitionArity, n.ID,
			"partition has %d input region(s), want at least 2", len(n.Inputs))
	}
	union := Scope{}
	for i, in := range n.Inputs {
		r := b.nodes[in]
		for _, other := range n.Inputs[i+1:] {
			if !r.Scope.Disjoint(b.nodes[other].Scope) {
				report(ErrCodeScopeOverlap, n.ID,
					"input regions %d and %d overlap on %s",
					r.ID, other, r.Scope.Intersect(b.nodes[other].Scope))
			}
		}
		union = union.Union(r.Scope)
	}
	if len(n.Inputs) > 0 && !union.Equal(n.Scope) {
		report(ErrCodeScopeMismatch, n.ID,
			"input scopes union to %s, want %s", union, n.Scope)
	}
	switch len(n.Outputs) {
	case 0:
		report(ErrCodeOrphanPartition, n.ID, "partition has no parent region")
	case 1:
		// Well-formed.
	default:
		report(ErrCodeMultiParent, n.ID,
			"partition feeds %d regions, want exactly 1", len(n.Outputs))
	}
}
