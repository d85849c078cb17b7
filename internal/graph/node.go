package graph

import "fmt"

// NodeID addresses a node inside its owning graph (or builder) arena.
// Node identity is the arena index: two nodes are the same node exactly
// when their IDs are equal within the same graph.
type NodeID int

// InvalidNode is the zero-value-adjacent sentinel for "no node".
const InvalidNode NodeID = -1

// NodeKind distinguishes region nodes from partition nodes.
//
// Partitions sort before regions at equal scope: a partition-to-region
// edge preserves scope, so the kind order is what keeps the node order
// topological across those edges.
type NodeKind int

const (
	// KindPartition is a decomposition of a region's scope into
	// disjoint sub-regions.
	KindPartition NodeKind = iota

	// KindRegion is a variable scope treated as a unit in the
	// partition hierarchy.
	KindRegion
)

// String returns the lowercase kind name.
func (k NodeKind) String() string {
	switch k {
	case KindPartition:
		return "partition"
	case KindRegion:
		return "region"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Node is a single region-graph node. Nodes are owned by a Graph (or a
// Builder while under construction) and addressed by NodeID; the edge
// lists are insertion-ordered and duplicate-free.
type Node struct {
	ID    NodeID
	Kind  NodeKind
	Scope Scope

	// Inputs and Outputs hold the incoming and outgoing edges in
	// insertion order. For a region the inputs are partitions of its
	// scope; for a partition the inputs are its sub-regions.
	Inputs  []NodeID
	Outputs []NodeID

	// SortKey optionally breaks ordering ties between nodes of the
	// same kind and scope. Defaults to -1 (no explicit key), in which
	// case insertion order is preserved by the stable sort.
	SortKey int

	// Label is optional human-readable metadata, e.g. the field name
	// the node was loaded under. It does not participate in ordering.
	Label string
}

// IsRegion reports whether the node is a region node.
func (n *Node) IsRegion() bool { return n.Kind == KindRegion }

// IsPartition reports whether the node is a partition node.
func (n *Node) IsPartition() bool { return n.Kind == KindPartition }

// IsLeaf reports whether the node has no inputs.
func (n *Node) IsLeaf() bool { return len(n.Inputs) == 0 }

// String renders the node for diagnostics.
func (n *Node) String() string {
	return fmt.Sprintf("%s#%d%s", n.Kind, n.ID, n.Scope)
}

// compareNodes implements the total node order: scope first (smaller
// scopes sort earlier, see Scope.Compare), then kind (partition before
// region), then the explicit sort key.
func compareNodes(a, b *Node) int {
	if c := a.Scope.Compare(b.Scope); c != 0 {
		return c
	}
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	if a.SortKey != b.SortKey {
		if a.SortKey < b.SortKey {
			return -1
		}
		return 1
	}
	return 0
}
