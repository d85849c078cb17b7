package loader

import (
	"fmt"

	"github.com/probcirc/circ/internal/graph"
)

// GraphToSpec renders a built graph back into an explicit GraphSpec, so
// template-generated graphs can be serialized (YAML or CUE) and rebuilt
// without the template. Region names come from node labels when set,
// else from the node id.
func GraphToSpec(g *graph.Graph) GraphSpec {
	names := make(map[graph.NodeID]string)
	var spec GraphSpec
	for _, n := range g.Nodes() {
		if !n.IsRegion() {
			continue
		}
		name := n.Label
		if name == "" {
			name = fmt.Sprintf("r%d", n.ID)
		}
		names[n.ID] = name
		spec.Regions = append(spec.Regions, RegionSpec{Name: name, Vars: []int(n.Scope)})
	}
	for _, n := range g.Nodes() {
		if !n.IsPartition() {
			continue
		}
		p := PartitionSpec{Output: names[n.Outputs[0]]}
		for _, in := range n.Inputs {
			p.Inputs = append(p.Inputs, names[in])
		}
		spec.Partitions = append(spec.Partitions, p)
	}
	return spec
}
