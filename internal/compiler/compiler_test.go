package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probcirc/circ/internal/backend"
	"github.com/probcirc/circ/internal/compiler"
	"github.com/probcirc/circ/internal/graph"
	"github.com/probcirc/circ/internal/symbolic"
)

func linearCircuit(t *testing.T, numVars int) *symbolic.Circuit {
	t.Helper()
	g, err := graph.LinearTree(numVars)
	require.NoError(t, err)
	c, err := symbolic.FromRegionGraph(g, symbolic.Factories{}, symbolic.Hyper{
		NumInputUnits: 2,
		NumSumUnits:   2,
	})
	require.NoError(t, err)
	return c
}

func newContext(opts ...compiler.Option) *compiler.Context {
	return compiler.NewContext(append([]compiler.Option{
		compiler.WithFactory(backend.NewFactory()),
	}, opts...)...)
}

func TestCompileRequiresFactory(t *testing.T) {
	ctx := compiler.NewContext()
	_, err := compiler.CompilePipeline(ctx, linearCircuit(t, 2))
	require.Error(t, err)
	assert.True(t, compiler.IsCompileError(err, compiler.ErrMissingFactory))
}

func TestCompileBookkeeping(t *testing.T) {
	c := linearCircuit(t, 2)
	ctx := newContext()

	pipe, err := compiler.CompilePipeline(ctx, c)
	require.NoError(t, err)
	require.Len(t, pipe.Plans, 1)
	plan := pipe.Plans[0]

	// Layer walk: input+sum per leaf region, then the partition
	// product, then the root sum.
	require.Len(t, plan.Layers, 6)
	assert.Equal(t, []compiler.Entry{
		{Vars: []int{0}},
		{Inputs: []int{0}},
		{Vars: []int{1}},
		{Inputs: []int{2}},
		{Inputs: []int{1, 3}},
		{Inputs: []int{4}},
	}, plan.Entries)
	assert.Equal(t, []int{5}, plan.Output.Inputs)
	assert.Nil(t, plan.Output.Vars)

	for i, l := range c.Layers() {
		assert.Equal(t, i, plan.LayerIndex(l))
		assert.Equal(t, l.Kind, plan.Layers[i].Spec().Kind)
	}
	assert.Equal(t, -1, plan.LayerIndex(symbolic.NewDenseLayer(graph.NewScope(0), 1)))
	assert.Same(t, plan, ctx.Plan(c))
}

func TestCompileVarPositionsFollowCircuitScope(t *testing.T) {
	// A circuit over a sparse scope routes inputs by scope position,
	// not by raw variable id.
	in0 := symbolic.NewCategoricalLayer(graph.NewScope(3), 1, 1, 2)
	in1 := symbolic.NewCategoricalLayer(graph.NewScope(7), 1, 1, 2)
	p := symbolic.NewHadamardLayer(graph.NewScope(3, 7), 1)
	c, err := symbolic.NewCircuit(
		[]*symbolic.Layer{in0, in1, p},
		map[*symbolic.Layer][]*symbolic.Layer{p: {in0, in1}},
		nil,
	)
	require.NoError(t, err)

	pipe, err := compiler.CompilePipeline(newContext(), c)
	require.NoError(t, err)
	plan := pipe.Plans[0]
	assert.Equal(t, []int{0}, plan.Entries[0].Vars)
	assert.Equal(t, []int{1}, plan.Entries[1].Vars)
}

func TestCompileSharesIntegratedParameters(t *testing.T) {
	c := linearCircuit(t, 2)
	ic, err := symbolic.Integrate(c, nil, symbolic.DefaultRegistry())
	require.NoError(t, err)

	ctx := newContext()
	pipe, err := compiler.CompilePipeline(ctx, ic)
	require.NoError(t, err)
	require.Len(t, pipe.Plans, 2)

	base, integrated := ctx.Plan(c), ctx.Plan(ic)
	require.NotNil(t, base)
	require.NotNil(t, integrated)

	// The integrated circuit references the operand's parameter
	// expressions verbatim, so both plans hold the very same tensors.
	for i := range base.Layers {
		bp, ip := base.Layers[i].Spec().Params, integrated.Layers[i].Spec().Params
		require.Equal(t, len(bp), len(ip))
		for name, tensor := range bp {
			assert.Same(t, tensor, ip[name], "layer %d param %s", i, name)
		}
	}
}

func TestCompileSharesDifferentiatedParameters(t *testing.T) {
	c := linearCircuit(t, 2)
	dc, err := symbolic.Differentiate(c, symbolic.DefaultRegistry())
	require.NoError(t, err)

	ctx := newContext()
	_, err = compiler.CompilePipeline(ctx, dc)
	require.NoError(t, err)

	base, deriv := ctx.Plan(c), ctx.Plan(dc)
	for _, l := range dc.Layers() {
		if l.Operation == nil || len(l.Operation.Operands) != 1 {
			continue
		}
		src := l.Operation.Operands[0]
		if base.LayerIndex(src) < 0 {
			continue
		}
		srcParams := base.Layers[base.LayerIndex(src)].Spec().Params
		gotParams := deriv.Layers[deriv.LayerIndex(l)].Spec().Params
		for name, tensor := range srcParams {
			if got, ok := gotParams[name]; ok {
				assert.Same(t, tensor, got)
			}
		}
	}
}

func TestCompileComposesProductParameters(t *testing.T) {
	lhs := linearCircuit(t, 2)
	rhs := linearCircuit(t, 2)
	mc, err := symbolic.Multiply(lhs, rhs, symbolic.DefaultRegistry())
	require.NoError(t, err)

	ctx := newContext()
	_, err = compiler.CompilePipeline(ctx, mc)
	require.NoError(t, err)

	product := ctx.Plan(mc)
	root := mc.OutputLayers()[0]
	weight := product.Layers[product.LayerIndex(root)].Spec().Params["weight"].(*backend.Tensor)
	assert.Equal(t, "kronecker", weight.Op)

	// The composition's operands are the operand circuits' own weight
	// tensors, not copies.
	lroot, rroot := lhs.OutputLayers()[0], rhs.OutputLayers()[0]
	lw := ctx.Plan(lhs).Layers[ctx.Plan(lhs).LayerIndex(lroot)].Spec().Params["weight"]
	rw := ctx.Plan(rhs).Layers[ctx.Plan(rhs).LayerIndex(rroot)].Spec().Params["weight"]
	require.Len(t, weight.Operands, 2)
	assert.Same(t, lw, weight.Operands[0])
	assert.Same(t, rw, weight.Operands[1])
}

func TestCompileSharedOperandCompiledOnce(t *testing.T) {
	c := linearCircuit(t, 2)
	reg := symbolic.DefaultRegistry()
	ic, err := symbolic.Integrate(c, nil, reg)
	require.NoError(t, err)
	dc, err := symbolic.Differentiate(c, reg)
	require.NoError(t, err)

	ctx := newContext()
	pipe, err := compiler.CompilePipeline(ctx, ic, dc)
	require.NoError(t, err)

	// Diamond over the shared base: exactly three plans.
	assert.Len(t, pipe.Plans, 3)
	assert.Same(t, pipe.Plans[0], ctx.Plan(c))

	roots := pipe.Roots(ic, dc)
	assert.Same(t, ctx.Plan(ic), roots[0])
	assert.Same(t, ctx.Plan(dc), roots[1])
}

func TestCompileUnsupportedProvenance(t *testing.T) {
	in := symbolic.NewCategoricalLayer(graph.NewScope(0), 1, 1, 2)
	in.Operation = &symbolic.LayerOperation{Operator: symbolic.Operator(42)}
	c, err := symbolic.NewCircuit([]*symbolic.Layer{in}, nil, nil)
	require.NoError(t, err)

	_, err = compiler.CompilePipeline(newContext(), c)
	require.Error(t, err)
	assert.True(t, compiler.IsCompileError(err, compiler.ErrUnsupportedProvenance))
}

func TestCompilePipelineCycle(t *testing.T) {
	c := linearCircuit(t, 2)
	ic, err := symbolic.Integrate(c, nil, symbolic.DefaultRegistry())
	require.NoError(t, err)
	// Corrupt the provenance into a cycle.
	ic.Operation().Operands = append(ic.Operation().Operands, ic)

	_, err = compiler.CompilePipeline(newContext(), ic)
	require.Error(t, err)
	assert.True(t, symbolic.IsPipelineCycle(err))
}

func TestCompileTwiceReusesPlans(t *testing.T) {
	c := linearCircuit(t, 2)
	ctx := newContext()

	first, err := compiler.CompilePipeline(ctx, c)
	require.NoError(t, err)
	second, err := compiler.CompilePipeline(ctx, c)
	require.NoError(t, err)

	require.Len(t, second.Plans, 1)
	assert.Same(t, first.Plans[0], second.Plans[0])
}
