package symbolic

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probcirc/circ/internal/graph"
)

func copyRule(operands ...*Layer) (*CircuitBlock, error) {
	return SingleLayerBlock(derived(OpIntegration, operands[0], nil)), nil
}

func TestRegisterRejectsNilRule(t *testing.T) {
	r := NewOperatorRegistry()
	err := r.Register(OpIntegration, Signature{KindInput}, nil, false)

	var re *RuleError
	require.ErrorAs(t, err, &re)
	assert.Contains(t, re.Message, "must not be nil")
}

func TestRegisterRejectsEmptySignature(t *testing.T) {
	r := NewOperatorRegistry()
	err := r.Register(OpIntegration, Signature{}, copyRule, false)

	var re *RuleError
	require.ErrorAs(t, err, &re)
}

func TestRegisterRejectsUnknownKind(t *testing.T) {
	r := NewOperatorRegistry()
	err := r.Register(OpIntegration, Signature{LayerKind(99)}, copyRule, false)

	var re *RuleError
	require.ErrorAs(t, err, &re)
}

func TestRetrieveRuleUnknownOperator(t *testing.T) {
	r := NewOperatorRegistry()
	_, err := r.RetrieveRule(Operator(99), KindInput)

	var onf *OperatorNotFoundError
	require.ErrorAs(t, err, &onf)
	assert.Equal(t, Operator(99), onf.Op)
}

func TestRetrieveRuleUnknownSignature(t *testing.T) {
	r := NewOperatorRegistry()
	require.NoError(t, r.Register(OpIntegration, Signature{KindSum}, copyRule, false))

	_, err := r.RetrieveRule(OpIntegration, KindProduct)

	var snf *SignatureNotFoundError
	require.ErrorAs(t, err, &snf)
	assert.Equal(t, Signature{KindProduct}, snf.Signature)
}

func TestRetrieveRuleMatchesRefinedKinds(t *testing.T) {
	// A rule declared on a base kind serves every refinement of it.
	r := NewOperatorRegistry()
	require.NoError(t, r.Register(OpIntegration, Signature{KindInput}, copyRule, false))

	for _, kind := range []LayerKind{KindInput, KindCategorical, KindGaussian, KindConstant} {
		fn, err := r.RetrieveRule(OpIntegration, kind)
		require.NoError(t, err, "kind %s", kind)
		require.NotNil(t, fn)
	}

	_, err := r.RetrieveRule(OpIntegration, KindDense)
	assert.Error(t, err)
}

func TestRetrieveRuleExactBeatsRefinement(t *testing.T) {
	r := NewOperatorRegistry()
	base := func(operands ...*Layer) (*CircuitBlock, error) {
		return nil, errors.New("base rule")
	}
	exact := func(operands ...*Layer) (*CircuitBlock, error) {
		return nil, errors.New("exact rule")
	}
	require.NoError(t, r.Register(OpMultiplication, Signature{KindSum, KindSum}, base, true))
	require.NoError(t, r.Register(OpMultiplication, Signature{KindMixing, KindMixing}, exact, true))

	fn, err := r.RetrieveRule(OpMultiplication, KindMixing, KindMixing)
	require.NoError(t, err)
	_, ruleErr := fn(nil, nil)
	assert.EqualError(t, ruleErr, "exact rule")

	// Other sum refinements still fall through to the base rule.
	fn, err = r.RetrieveRule(OpMultiplication, KindDense, KindDense)
	require.NoError(t, err)
	_, ruleErr = fn(nil, nil)
	assert.EqualError(t, ruleErr, "base rule")
}

func TestRetrieveRuleCachesRefinementHits(t *testing.T) {
	r := NewOperatorRegistry()
	require.NoError(t, r.Register(OpIntegration, Signature{KindInput}, copyRule, false))

	_, err := r.RetrieveRule(OpIntegration, KindCategorical)
	require.NoError(t, err)

	// The resolution is now an exact-map hit for the refined signature.
	_, ok := r.exact[OpIntegration][Signature{KindCategorical}.key()]
	assert.True(t, ok)
}

func TestHasRuleDoesNotMutateCache(t *testing.T) {
	r := NewOperatorRegistry()
	require.NoError(t, r.Register(OpIntegration, Signature{KindInput}, copyRule, false))

	assert.True(t, r.HasRule(OpIntegration, KindGaussian))
	_, ok := r.exact[OpIntegration][Signature{KindGaussian}.key()]
	assert.False(t, ok)

	assert.False(t, r.HasRule(OpIntegration, KindHadamard))
	assert.False(t, r.HasRule(OpDifferentiation, KindInput))
}

func TestRegisterCommutativeMirrorsOperands(t *testing.T) {
	r := NewOperatorRegistry()
	var got []LayerKind
	rule := func(operands ...*Layer) (*CircuitBlock, error) {
		got = got[:0]
		for _, l := range operands {
			got = append(got, l.Kind)
		}
		return SingleLayerBlock(NewHadamardLayer(operands[0].Scope, 1)), nil
	}
	require.NoError(t, r.Register(OpMultiplication, Signature{KindCategorical, KindGaussian}, rule, true))

	scope := graph.NewScope(0)
	cat := NewCategoricalLayer(scope, 1, 1, 2)
	gau := NewGaussianLayer(scope, 1, 1)

	fn, err := r.RetrieveRule(OpMultiplication, KindGaussian, KindCategorical)
	require.NoError(t, err)
	_, err = fn(gau, cat)
	require.NoError(t, err)

	// The mirrored entry swaps the operands back into declared order.
	assert.Equal(t, []LayerKind{KindCategorical, KindGaussian}, got)
}

func TestRegisterCommutativeSkipsMirrorForEqualKinds(t *testing.T) {
	r := NewOperatorRegistry()
	require.NoError(t, r.Register(OpMultiplication, Signature{KindSum, KindSum}, copyRule, true))
	assert.Len(t, r.ordered[OpMultiplication], 1)
}

func TestDefaultRegistryCoversCircuitKinds(t *testing.T) {
	r := DefaultRegistry()

	assert.ElementsMatch(t, []Operator{OpIntegration, OpDifferentiation, OpMultiplication}, r.Operators())

	for _, kind := range []LayerKind{KindCategorical, KindDense, KindMixing, KindHadamard, KindKronecker} {
		assert.True(t, r.HasRule(OpIntegration, kind), "integrate %s", kind)
		assert.True(t, r.HasRule(OpDifferentiation, kind), "differentiate %s", kind)
	}
	for _, pair := range [][2]LayerKind{
		{KindCategorical, KindCategorical},
		{KindGaussian, KindGaussian},
		{KindConstant, KindConstant},
		{KindDense, KindDense},
		{KindMixing, KindMixing},
		{KindHadamard, KindHadamard},
		{KindHadamard, KindKronecker},
	} {
		assert.True(t, r.HasRule(OpMultiplication, pair[0], pair[1]), "multiply %s x %s", pair[0], pair[1])
	}
	assert.False(t, r.HasRule(OpMultiplication, KindCategorical, KindGaussian))
}
