package symbolic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probcirc/circ/internal/graph"
)

func TestFromRegionGraphDenseLinearTree(t *testing.T) {
	g, err := graph.LinearTree(3)
	require.NoError(t, err)

	c, err := FromRegionGraph(g, Factories{}, Hyper{
		NumInputUnits: 4,
		NumSumUnits:   3,
		NumClasses:    2,
	})
	require.NoError(t, err)

	// One input plus one sum per leaf region, one product per
	// partition, one sum per inner region.
	assert.Len(t, c.InputLayers(), 3)
	assert.Len(t, c.DenseLayers(), 5)
	assert.Len(t, c.ProductLayers(), 2)
	assert.Empty(t, c.MixingLayers())

	require.Len(t, c.OutputLayers(), 1)
	root := c.OutputLayers()[0]
	assert.True(t, root.IsSum())
	assert.Equal(t, 2, root.NumUnits, "root width is the class count")
	assert.True(t, c.Scope().Equal(graph.Range(3)))

	for _, l := range c.InputLayers() {
		assert.Equal(t, KindCategorical, l.Kind)
		assert.Equal(t, 4, l.NumUnits)
	}
	for _, l := range c.InnerLayers() {
		if l.IsSum() && l != root {
			assert.Equal(t, 3, l.NumUnits)
		}
	}
}

func TestFromRegionGraphDenseWeightShapes(t *testing.T) {
	g, err := graph.LinearTree(2)
	require.NoError(t, err)

	c, err := FromRegionGraph(g, Factories{}, Hyper{
		NumInputUnits: 4,
		NumSumUnits:   3,
		NumClasses:    1,
	})
	require.NoError(t, err)

	for _, l := range c.DenseLayers() {
		w, ok := l.Params["weight"]
		require.True(t, ok, "dense layer %s has no weight", l)
		ins := c.LayerInputs(l)
		require.NotEmpty(t, ins)
		assert.Equal(t, []int{l.NumUnits, len(ins) * ins[0].NumUnits}, w.Shape())
	}
}

func TestFromRegionGraphCPQuadGraph(t *testing.T) {
	g, err := graph.QuadGraph(3, 3)
	require.NoError(t, err)

	c, err := FromRegionGraph(g, Factories{}, Hyper{
		NumInputUnits: 8,
		NumSumUnits:   8,
		SumProduct:    SumProductCP,
	})
	require.NoError(t, err)

	assert.Len(t, c.InputLayers(), 9)
	assert.Len(t, c.ProductLayers(), 14)
	assert.Len(t, c.DenseLayers(), 28)
	assert.Len(t, c.MixingLayers(), 2)
	assert.Len(t, c.Layers(), 53)

	// Exactly the two regions with two alternative decompositions get a
	// mixing layer: the 2x2 patch covering the top-left quadrant and
	// the full image region.
	mixScopes := make([]string, 0, 2)
	for _, l := range c.MixingLayers() {
		mixScopes = append(mixScopes, l.Scope.String())
		require.Len(t, c.LayerInputs(l), 2)
		w, ok := l.Params["weight"]
		require.True(t, ok)
		assert.Equal(t, []int{l.NumUnits, 2}, w.Shape())
	}
	assert.ElementsMatch(t, []string{
		graph.NewScope(0, 1, 3, 4).String(),
		graph.Range(9).String(),
	}, mixScopes)

	// Every dense layer projects exactly one producer.
	for _, l := range c.DenseLayers() {
		assert.Len(t, c.LayerInputs(l), 1)
	}

	require.Len(t, c.OutputLayers(), 1)
	assert.Equal(t, KindMixing, c.OutputLayers()[0].Kind)
}

func TestFromRegionGraphCPClassUnits(t *testing.T) {
	g, err := graph.LinearTree(2)
	require.NoError(t, err)

	c, err := FromRegionGraph(g, Factories{}, Hyper{
		NumSumUnits: 8,
		NumClasses:  10,
		SumProduct:  SumProductCP,
	})
	require.NoError(t, err)

	require.Len(t, c.OutputLayers(), 1)
	assert.Equal(t, 10, c.OutputLayers()[0].NumUnits)
}

func TestFromRegionGraphCustomFactories(t *testing.T) {
	g, err := graph.LinearTree(2)
	require.NoError(t, err)

	c, err := FromRegionGraph(g, Factories{
		Input: func(scope graph.Scope, numUnits, numChannels int) *Layer {
			return NewGaussianLayer(scope, numUnits, numChannels)
		},
		Product: NewKroneckerLayer,
	}, Hyper{})
	require.NoError(t, err)

	for _, l := range c.InputLayers() {
		assert.Equal(t, KindGaussian, l.Kind)
	}
	for _, l := range c.ProductLayers() {
		assert.Equal(t, KindKronecker, l.Kind)
	}
}

func TestFromRegionGraphDeterministic(t *testing.T) {
	build := func() []string {
		g, err := graph.QuadGraph(3, 3)
		require.NoError(t, err)
		c, err := FromRegionGraph(g, Factories{}, Hyper{SumProduct: SumProductCP})
		require.NoError(t, err)
		out := make([]string, len(c.Layers()))
		for i, l := range c.Layers() {
			out[i] = l.String()
		}
		return out
	}
	assert.Equal(t, build(), build())
}

func TestLayerInputsSyncedWithEdgeMap(t *testing.T) {
	g, err := graph.LinearTree(2)
	require.NoError(t, err)
	c, err := FromRegionGraph(g, Factories{}, Hyper{})
	require.NoError(t, err)

	for _, l := range c.Layers() {
		assert.Equal(t, c.LayerInputs(l), l.Inputs)
		for _, out := range c.LayerOutputs(l) {
			assert.Contains(t, c.LayerInputs(out), l)
		}
	}
}
