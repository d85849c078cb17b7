// Package graph implements the region graph: a bipartite DAG of region
// and partition nodes describing a recursive decomposition of a set of
// random variables. Graphs are built once via Builder (or one of the
// templates) and are read-only afterward.
package graph

import "slices"

// Graph is an immutable, validated region graph. Nodes are stored in
// the total node order (scope, then kind, then sort key), which is a
// valid topological order for every well-formed region graph.
type Graph struct {
	nodes   []*Node
	outputs []NodeID
	scope   Scope
}

// newGraph freezes a validated node arena. Nodes are stably sorted by
// the node order and re-indexed so that NodeIDs stay arena indices.
func newGraph(nodes []*Node) *Graph {
	sorted := make([]*Node, len(nodes))
	copy(sorted, nodes)
	slices.SortStableFunc(sorted, compareNodes)

	// Remap IDs to the sorted positions so identity stays "index into
	// the owning arena".
	remap := make([]NodeID, len(nodes))
	for i, n := range sorted {
		remap[n.ID] = NodeID(i)
	}
	g := &Graph{nodes: sorted}
	for i, n := range sorted {
		n.ID = NodeID(i)
		for j, in := range n.Inputs {
			n.Inputs[j] = remap[in]
		}
		for j, out := range n.Outputs {
			n.Outputs[j] = remap[out]
		}
		if n.IsRegion() && len(n.Outputs) == 0 {
			g.outputs = append(g.outputs, NodeID(i))
		}
		g.scope = g.scope.Union(n.Scope)
	}
	return g
}

// Nodes returns all nodes in topological order. The returned slice is
// owned by the graph and must not be modified.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Node resolves a NodeID to its node.
func (g *Graph) Node(id NodeID) *Node { return g.nodes[id] }

// OutputNodes returns the root regions: regions with no outgoing edge.
func (g *Graph) OutputNodes() []NodeID { return g.outputs }

// IsOutput reports whether id is a root region of the graph.
func (g *Graph) IsOutput(id NodeID) bool {
	return slices.Contains(g.outputs, id)
}

// Scope returns the union scope of the whole graph.
func (g *Graph) Scope() Scope { return g.scope }

// NumVars returns the number of variables the graph covers.
func (g *Graph) NumVars() int { return len(g.scope) }

// Regions returns all region nodes in topological order.
func (g *Graph) Regions() []*Node {
	return g.filter(KindRegion)
}

// Partitions returns all partition nodes in topological order.
func (g *Graph) Partitions() []*Node {
	return g.filter(KindPartition)
}

func (g *Graph) filter(kind NodeKind) []*Node {
	var out []*Node
	for _, n := range g.nodes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}
