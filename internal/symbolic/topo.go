package symbolic

// kahn is the topological-ordering primitive shared by the layer-level
// and the pipeline-level orderers. Starting from roots it discovers the
// full predecessor closure (BFS), counts incoming edges, then emits
// zero-in-degree nodes in discovery order.
//
// The returned remaining count is zero for a DAG; a nonzero count means
// the discovered subgraph contains a cycle and the ordering is
// incomplete.
func kahn[T comparable](roots []T, preds func(T) []T) (order []T, remaining int) {
	var discovered []T
	seen := make(map[T]bool, len(roots))
	incoming := make(map[T]int)
	outgoing := make(map[T][]T)

	queue := make([]T, 0, len(roots))
	for _, r := range roots {
		if !seen[r] {
			seen[r] = true
			queue = append(queue, r)
			discovered = append(discovered, r)
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, p := range preds(n) {
			incoming[n]++
			outgoing[p] = append(outgoing[p], n)
			if !seen[p] {
				seen[p] = true
				queue = append(queue, p)
				discovered = append(discovered, p)
			}
		}
	}

	order = make([]T, 0, len(discovered))
	ready := make([]T, 0, len(discovered))
	for _, n := range discovered {
		if incoming[n] == 0 {
			ready = append(ready, n)
		}
	}
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, out := range outgoing[n] {
			incoming[out]--
			if incoming[out] == 0 {
				ready = append(ready, out)
			}
		}
	}
	return order, len(discovered) - len(order)
}

// PipelineOrdering totally orders the predecessor closure of the given
// root circuits so that every circuit appears after all circuits it was
// derived from (its operation operands). Ties are broken by discovery
// order, so recompiling the same pipeline yields the same order.
func PipelineOrdering(roots []*Circuit) ([]*Circuit, error) {
	order, remaining := kahn(roots, func(c *Circuit) []*Circuit {
		if c.operation == nil {
			return nil
		}
		return c.operation.Operands
	})
	if remaining > 0 {
		return nil, &PipelineCycleError{Remaining: remaining}
	}
	return order, nil
}

// LayerOrdering orders the predecessor closure of the given output
// layers using the supplied incoming-edge accessor. A stalled ordering
// reports a CircuitCycleError, which always indicates a circuit
// construction bug.
func LayerOrdering(outputs []*Layer, inputs func(*Layer) []*Layer) ([]*Layer, error) {
	order, remaining := kahn(outputs, inputs)
	if remaining > 0 {
		return nil, &CircuitCycleError{Remaining: remaining}
	}
	return order, nil
}
