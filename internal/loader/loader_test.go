package loader

import (
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/probcirc/circ/internal/graph"
	"github.com/probcirc/circ/internal/symbolic"
)

const quadPipeline = `
graph: {
	template: "quad"
	rows:     3
	cols:     3
}
circuit: {
	sumProduct:    "cp"
	numInputUnits: 8
	numSumUnits:   8
}
steps: [
	{name: "marginal", op: "integrate", operand: "base"},
	{name: "score", op: "differentiate", operand: "base"},
	{name: "squared", op: "multiply", lhs: "base", rhs: "base"},
]
outputs: ["marginal", "squared"]
`

func TestLoadStringQuadPipeline(t *testing.T) {
	spec, err := LoadString(quadPipeline, FailFast)
	require.NoError(t, err)

	assert.Equal(t, "quad", spec.Graph.Template)
	assert.Equal(t, 3, spec.Graph.Rows)
	assert.Equal(t, "cp", spec.Circuit.SumProduct)
	assert.Equal(t, 8, spec.Circuit.NumSumUnits)
	require.Len(t, spec.Steps, 3)
	assert.Equal(t, "integrate", spec.Steps[0].Op)
	assert.Equal(t, []string{"marginal", "squared"}, spec.Outputs)
}

func TestLoadStringMissingGraph(t *testing.T) {
	_, err := LoadString(`circuit: {numSumUnits: 2}`, FailFast)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeBadSpec, le.Code)
}

func TestLoadStringCollectAll(t *testing.T) {
	src := `
graph: {template: "linear", numVars: 2}
steps: [
	{name: "a", op: "frobnicate"},
	{name: "", op: "integrate", operand: "base"},
]
`
	_, err := LoadString(src, CollectAll)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)

	// Fail-fast surfaces only the first problem.
	_, err = LoadString(src, FailFast)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)
}

func TestLoadStringValidatesEnums(t *testing.T) {
	_, err := LoadString(`
graph: {template: "hexagonal"}
`, FailFast)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, le.Message, "hexagonal")

	_, err = LoadString(`
graph: {template: "linear", numVars: 2}
circuit: {sumProduct: "tucker"}
`, FailFast)
	require.ErrorAs(t, err, &le)
	assert.Contains(t, le.Message, "tucker")
}

func TestBuildGraphTemplates(t *testing.T) {
	g, err := BuildGraph(GraphSpec{Template: "quad", Rows: 3, Cols: 3})
	require.NoError(t, err)
	assert.Equal(t, 9, g.NumVars())

	g, err = BuildGraph(GraphSpec{Template: "linear", NumVars: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, g.NumVars())

	g, err = BuildGraph(GraphSpec{Template: "random", NumVars: 6, Repetitions: 2, Seed: 11})
	require.NoError(t, err)
	assert.Equal(t, 6, g.NumVars())

	// Same seed, same graph.
	again, err := BuildGraph(GraphSpec{Template: "random", NumVars: 6, Repetitions: 2, Seed: 11})
	require.NoError(t, err)
	assert.Equal(t, graph.CanonicalHash(g), graph.CanonicalHash(again))
}

func TestBuildExplicitGraph(t *testing.T) {
	spec := GraphSpec{
		Regions: []RegionSpec{
			{Name: "x", Vars: []int{0}},
			{Name: "y", Vars: []int{1}},
			{Name: "xy", Vars: []int{0, 1}},
		},
		Partitions: []PartitionSpec{
			{Inputs: []string{"x", "y"}, Output: "xy"},
		},
	}
	g, err := BuildGraph(spec)
	require.NoError(t, err)
	assert.Equal(t, 2, g.NumVars())
	assert.Len(t, g.Partitions(), 1)
	assert.Len(t, g.Regions(), 3)

	spec.Partitions[0].Output = "nope"
	_, err = BuildGraph(spec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestBuildCircuitInputLayers(t *testing.T) {
	g, err := BuildGraph(GraphSpec{Template: "linear", NumVars: 2})
	require.NoError(t, err)

	c, err := BuildCircuit(g, CircuitSpec{InputLayer: "gaussian"})
	require.NoError(t, err)
	for _, l := range c.InputLayers() {
		assert.Equal(t, symbolic.KindGaussian, l.Kind)
	}

	c, err = BuildCircuit(g, CircuitSpec{NumCategories: 5})
	require.NoError(t, err)
	for _, l := range c.InputLayers() {
		assert.Equal(t, symbolic.KindCategorical, l.Kind)
		assert.Equal(t, 5, l.Extra["num_categories"])
	}
}

func TestBuildPipeline(t *testing.T) {
	spec, err := LoadString(quadPipeline, FailFast)
	require.NoError(t, err)

	circuits, roots, err := BuildPipeline(spec, symbolic.DefaultRegistry(), logr.Discard())
	require.NoError(t, err)

	require.Contains(t, circuits, BaseName)
	require.Contains(t, circuits, "marginal")
	require.Contains(t, circuits, "score")
	require.Contains(t, circuits, "squared")

	require.Len(t, roots, 2)
	assert.Same(t, circuits["marginal"], roots[0])
	assert.Same(t, circuits["squared"], roots[1])

	assert.Equal(t, symbolic.OpIntegration, circuits["marginal"].Operation().Operator)
	assert.Equal(t, symbolic.OpMultiplication, circuits["squared"].Operation().Operator)
}

func TestBuildPipelineUnknownReference(t *testing.T) {
	spec := &PipelineSpec{
		Graph: GraphSpec{Template: "linear", NumVars: 2},
		Steps: []StepSpec{{Name: "m", Op: "integrate", Operand: "ghost"}},
	}
	_, _, err := BuildPipeline(spec, symbolic.DefaultRegistry(), logr.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestBuildPipelineDuplicateName(t *testing.T) {
	spec := &PipelineSpec{
		Graph: GraphSpec{Template: "linear", NumVars: 2},
		Steps: []StepSpec{
			{Name: "m", Op: "integrate", Operand: "base"},
			{Name: "m", Op: "differentiate", Operand: "base"},
		},
	}
	_, _, err := BuildPipeline(spec, symbolic.DefaultRegistry(), logr.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestGraphSpecRoundTrip(t *testing.T) {
	g, err := BuildGraph(GraphSpec{Template: "quad", Rows: 3, Cols: 3})
	require.NoError(t, err)

	explicit := GraphToSpec(g)
	require.NotEmpty(t, explicit.Regions)
	require.NotEmpty(t, explicit.Partitions)

	data, err := yaml.Marshal(explicit)
	require.NoError(t, err)
	var decoded GraphSpec
	require.NoError(t, yaml.Unmarshal(data, &decoded))

	rebuilt, err := BuildGraph(decoded)
	require.NoError(t, err)

	// Structure survives the round trip. Hashes differ from the
	// template build because explicit regions carry labels, so compare
	// the node walk and then pin hash stability across a second trip.
	require.Equal(t, len(g.Nodes()), len(rebuilt.Nodes()))
	for i, n := range g.Nodes() {
		assert.Equal(t, n.Kind, rebuilt.Nodes()[i].Kind)
		assert.Equal(t, n.Scope.String(), rebuilt.Nodes()[i].Scope.String())
	}

	again, err := BuildGraph(GraphToSpec(rebuilt))
	require.NoError(t, err)
	assert.Equal(t, graph.CanonicalHash(rebuilt), graph.CanonicalHash(again))
}
