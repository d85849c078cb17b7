package symbolic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduceShapeDropsAxis(t *testing.T) {
	opd := NewTensorParam(true, 2, 3, 4)

	sum, err := NewReduceSumParam(opd, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, sum.Shape())

	lse, err := NewReduceLSEParam(opd, -1)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, lse.Shape())
}

func TestReduceAxisOutOfRange(t *testing.T) {
	opd := NewTensorParam(true, 2, 3)

	_, err := NewReduceProductParam(opd, 2)
	assert.True(t, IsShapeError(err))

	_, err = NewReduceSumParam(opd, -3)
	assert.True(t, IsShapeError(err))
}

func TestSoftmaxNormalizesNegativeAxis(t *testing.T) {
	sm, err := NewSoftmaxParam(NewTensorParam(true, 2, 5), -1)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5}, sm.Shape())
	assert.Equal(t, 1, sm.Config()["axis"])
}

func TestHadamardShapeMismatch(t *testing.T) {
	_, err := NewHadamardParam(NewTensorParam(true, 2, 3), NewTensorParam(true, 2, 4))
	assert.True(t, IsShapeError(err))

	p, err := NewHadamardParam(NewTensorParam(true, 2, 3), NewTensorParam(true, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, p.Shape())
}

func TestKroneckerShape(t *testing.T) {
	p, err := NewKroneckerParam(NewTensorParam(true, 2, 3), NewTensorParam(true, 4, 5))
	require.NoError(t, err)
	assert.Equal(t, []int{8, 15}, p.Shape())

	_, err = NewKroneckerParam(NewTensorParam(true, 2, 3), NewTensorParam(true, 4))
	assert.True(t, IsShapeError(err))
}

func TestOuterProductShape(t *testing.T) {
	p, err := NewOuterProductParam(NewTensorParam(true, 2, 3), NewTensorParam(true, 4, 3), 0)
	require.NoError(t, err)
	assert.Equal(t, []int{8, 3}, p.Shape())

	// Axes other than the combined one must agree.
	_, err = NewOuterProductParam(NewTensorParam(true, 2, 3), NewTensorParam(true, 4, 5), 0)
	assert.True(t, IsShapeError(err))

	_, err = NewOuterSumParam(NewTensorParam(true, 2, 3), NewTensorParam(true, 4, 3), 2)
	assert.True(t, IsShapeError(err))
}

func TestScaledSigmoidInterval(t *testing.T) {
	_, err := NewScaledSigmoidParam(NewTensorParam(true, 2), 1, 1)
	assert.True(t, IsShapeError(err))

	p, err := NewScaledSigmoidParam(NewTensorParam(true, 2), 0.1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0.1, p.Config()["vmin"])
	assert.Equal(t, 10.0, p.Config()["vmax"])
}

func TestGaussianProductShapes(t *testing.T) {
	mean := func() Param { return NewTensorParam(true, 2, 1, 1) }
	stddev := func() Param { return NewSoftplusParam(NewTensorParam(true, 2, 1, 1)) }

	m, err := NewMeanGaussianProductParam([]Param{mean(), mean()}, []Param{stddev(), stddev()})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 1, 1}, m.Shape())

	s, err := NewStddevGaussianProductParam([]Param{stddev(), stddev()})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 1, 1}, s.Shape())

	_, err = NewMeanGaussianProductParam([]Param{mean()}, []Param{stddev()})
	assert.True(t, IsShapeError(err))

	_, err = NewLogPartitionGaussianProductParam(
		[]Param{mean(), NewTensorParam(true, 2, 1)},
		[]Param{stddev(), stddev()},
	)
	assert.True(t, IsShapeError(err))
}

func TestShapeMemoization(t *testing.T) {
	p, err := NewKroneckerParam(NewTensorParam(true, 2, 2), NewTensorParam(true, 3, 3))
	require.NoError(t, err)

	first := p.Shape()
	second := p.Shape()
	assert.Equal(t, first, second)
	assert.Same(t, &first[0], &second[0])
}
