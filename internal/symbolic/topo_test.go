package symbolic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probcirc/circ/internal/graph"
)

func singleInputCircuit(t *testing.T, op *CircuitOperation) *Circuit {
	t.Helper()
	in := NewCategoricalLayer(graph.NewScope(0), 1, 1, 2)
	c, err := NewCircuit([]*Layer{in}, nil, op)
	require.NoError(t, err)
	return c
}

func TestPipelineOrderingDiamond(t *testing.T) {
	base := singleInputCircuit(t, nil)
	left := singleInputCircuit(t, &CircuitOperation{
		Operator: OpIntegration, Operands: []*Circuit{base},
	})
	right := singleInputCircuit(t, &CircuitOperation{
		Operator: OpDifferentiation, Operands: []*Circuit{base},
	})
	top := singleInputCircuit(t, &CircuitOperation{
		Operator: OpMultiplication, Operands: []*Circuit{left, right},
	})

	order, err := PipelineOrdering([]*Circuit{top})
	require.NoError(t, err)
	require.Len(t, order, 4)

	pos := make(map[*Circuit]int, len(order))
	for i, c := range order {
		pos[c] = i
	}
	assert.Less(t, pos[base], pos[left])
	assert.Less(t, pos[base], pos[right])
	assert.Less(t, pos[left], pos[top])
	assert.Less(t, pos[right], pos[top])

	// Re-ordering the same pipeline is deterministic.
	again, err := PipelineOrdering([]*Circuit{top})
	require.NoError(t, err)
	assert.Equal(t, order, again)
}

func TestPipelineOrderingSharedOperandOnce(t *testing.T) {
	base := singleInputCircuit(t, nil)
	a := singleInputCircuit(t, &CircuitOperation{Operator: OpIntegration, Operands: []*Circuit{base}})
	b := singleInputCircuit(t, &CircuitOperation{Operator: OpIntegration, Operands: []*Circuit{base}})

	order, err := PipelineOrdering([]*Circuit{a, b})
	require.NoError(t, err)
	assert.Len(t, order, 3)
}

func TestPipelineOrderingCycle(t *testing.T) {
	a := singleInputCircuit(t, &CircuitOperation{Operator: OpIntegration})
	b := singleInputCircuit(t, &CircuitOperation{Operator: OpIntegration, Operands: []*Circuit{a}})
	a.operation.Operands = []*Circuit{b}

	_, err := PipelineOrdering([]*Circuit{a})
	require.Error(t, err)
	assert.True(t, IsPipelineCycle(err))
	assert.False(t, IsCircuitCycle(err))

	var pce *PipelineCycleError
	require.ErrorAs(t, err, &pce)
	assert.Equal(t, 2, pce.Remaining)
}

func TestLayerOrderingCycle(t *testing.T) {
	a := NewDenseLayer(graph.NewScope(0), 1)
	b := NewDenseLayer(graph.NewScope(0), 1)
	in := map[*Layer][]*Layer{a: {b}, b: {a}}

	_, err := LayerOrdering([]*Layer{a}, func(l *Layer) []*Layer { return in[l] })
	require.Error(t, err)
	assert.True(t, IsCircuitCycle(err))
}

func TestNewCircuitReordersSynthesizedLayers(t *testing.T) {
	in := NewCategoricalLayer(graph.NewScope(0), 1, 1, 2)
	sum := NewDenseLayer(graph.NewScope(0), 1)
	inLayers := map[*Layer][]*Layer{sum: {in}}

	// Layers handed over consumer-first.
	c, err := NewCircuit([]*Layer{sum, in}, inLayers, nil)
	require.NoError(t, err)
	assert.Equal(t, []*Layer{in, sum}, c.Layers())
	assert.Equal(t, []*Layer{sum}, c.OutputLayers())
}

func TestNewCircuitRejectsLayerCycle(t *testing.T) {
	a := NewDenseLayer(graph.NewScope(0), 1)
	b := NewDenseLayer(graph.NewScope(0), 1)
	inLayers := map[*Layer][]*Layer{a: {b}, b: {a}}

	_, err := NewCircuit([]*Layer{a, b}, inLayers, nil)
	require.Error(t, err)
	assert.True(t, IsCircuitCycle(err))
}
