package symbolic

import (
	"errors"
	"fmt"
	"slices"
)

// Param is a symbolic parameter expression. Expressions form a DAG:
// leaves are tensors or constants, inner nodes are elementwise ops,
// reductions, binary compositions, and the fused Gaussian-product ops.
//
// Shape is computed once on first access and cached; it never changes
// afterward. Config exposes the non-tensor hyperparameters of the node,
// used for serialization and equality, not for computation.
type Param interface {
	Shape() []int
	Config() map[string]any
}

// ShapeError reports incompatible operand shapes at expression
// construction time.
type ShapeError struct {
	Op      string
	Message string
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// IsShapeError reports whether err is (or wraps) a parameter shape
// mismatch.
func IsShapeError(err error) bool {
	var se *ShapeError
	return errors.As(err, &se)
}

// shapeOnce memoizes a lazily computed shape.
type shapeOnce struct {
	shape []int
}

func (c *shapeOnce) get(compute func() []int) []int {
	if c.shape == nil {
		c.shape = compute()
	}
	return c.shape
}

// normAxis resolves a possibly negative axis against a rank.
func normAxis(op string, axis, rank int) (int, error) {
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return 0, &ShapeError{Op: op, Message: fmt.Sprintf("axis out of range for rank %d", rank)}
	}
	return axis, nil
}

// TensorParam is a leaf parameter tensor.
type TensorParam struct {
	dims      []int
	Learnable bool
}

// NewTensorParam builds a leaf tensor parameter of the given shape.
func NewTensorParam(learnable bool, dims ...int) *TensorParam {
	return &TensorParam{dims: dims, Learnable: learnable}
}

func (p *TensorParam) Shape() []int { return p.dims }

func (p *TensorParam) Config() map[string]any {
	return map[string]any{"learnable": p.Learnable}
}

// ConstantParam is a leaf evaluating to a constant value.
type ConstantParam struct {
	dims  []int
	Value float64
}

// NewConstantParam builds a constant leaf of the given shape.
func NewConstantParam(value float64, dims ...int) *ConstantParam {
	return &ConstantParam{dims: dims, Value: value}
}

func (p *ConstantParam) Shape() []int { return p.dims }

func (p *ConstantParam) Config() map[string]any {
	return map[string]any{"value": p.Value}
}

// entrywise is the shared body of elementwise unary ops.
type entrywise struct {
	Opd Param
}

func (p *entrywise) Shape() []int           { return p.Opd.Shape() }
func (p *entrywise) Config() map[string]any { return map[string]any{} }

// ExpParam applies exp elementwise.
type ExpParam struct{ entrywise }

// NewExpParam wraps opd in an elementwise exp.
func NewExpParam(opd Param) *ExpParam { return &ExpParam{entrywise{Opd: opd}} }

// LogParam applies log elementwise.
type LogParam struct{ entrywise }

// NewLogParam wraps opd in an elementwise log.
func NewLogParam(opd Param) *LogParam { return &LogParam{entrywise{Opd: opd}} }

// SoftplusParam applies softplus elementwise, constraining the value to
// be positive.
type SoftplusParam struct{ entrywise }

// NewSoftplusParam wraps opd in an elementwise softplus.
func NewSoftplusParam(opd Param) *SoftplusParam {
	return &SoftplusParam{entrywise{Opd: opd}}
}

// ScaledSigmoidParam squashes the operand into (Vmin, Vmax).
type ScaledSigmoidParam struct {
	entrywise
	Vmin, Vmax float64
}

// NewScaledSigmoidParam wraps opd in a sigmoid rescaled to the open
// interval (vmin, vmax).
func NewScaledSigmoidParam(opd Param, vmin, vmax float64) (*ScaledSigmoidParam, error) {
	if vmin >= vmax {
		return nil, &ShapeError{Op: "scaled-sigmoid", Message: fmt.Sprintf("empty interval (%g, %g)", vmin, vmax)}
	}
	return &ScaledSigmoidParam{entrywise: entrywise{Opd: opd}, Vmin: vmin, Vmax: vmax}, nil
}

func (p *ScaledSigmoidParam) Config() map[string]any {
	return map[string]any{"vmin": p.Vmin, "vmax": p.Vmax}
}

// NewSigmoidParam wraps opd in a plain sigmoid, squashing into (0, 1).
func NewSigmoidParam(opd Param) *ScaledSigmoidParam {
	p, _ := NewScaledSigmoidParam(opd, 0, 1)
	return p
}

// axisReduce is the shared body of reductions that drop an axis.
type axisReduce struct {
	Opd  Param
	Axis int
	memo shapeOnce
}

func (p *axisReduce) Shape() []int {
	return p.memo.get(func() []int {
		in := p.Opd.Shape()
		out := make([]int, 0, len(in)-1)
		out = append(out, in[:p.Axis]...)
		out = append(out, in[p.Axis+1:]...)
		return out
	})
}

func (p *axisReduce) Config() map[string]any {
	return map[string]any{"axis": p.Axis}
}

// ReduceSumParam sums over one axis.
type ReduceSumParam struct{ axisReduce }

// NewReduceSumParam reduces opd by summation over axis.
func NewReduceSumParam(opd Param, axis int) (*ReduceSumParam, error) {
	ax, err := normAxis("reduce-sum", axis, len(opd.Shape()))
	if err != nil {
		return nil, err
	}
	return &ReduceSumParam{axisReduce{Opd: opd, Axis: ax}}, nil
}

// ReduceProductParam multiplies over one axis.
type ReduceProductParam struct{ axisReduce }

// NewReduceProductParam reduces opd by product over axis.
func NewReduceProductParam(opd Param, axis int) (*ReduceProductParam, error) {
	ax, err := normAxis("reduce-product", axis, len(opd.Shape()))
	if err != nil {
		return nil, err
	}
	return &ReduceProductParam{axisReduce{Opd: opd, Axis: ax}}, nil
}

// ReduceLSEParam applies log-sum-exp over one axis.
type ReduceLSEParam struct{ axisReduce }

// NewReduceLSEParam reduces opd by log-sum-exp over axis.
func NewReduceLSEParam(opd Param, axis int) (*ReduceLSEParam, error) {
	ax, err := normAxis("reduce-lse", axis, len(opd.Shape()))
	if err != nil {
		return nil, err
	}
	return &ReduceLSEParam{axisReduce{Opd: opd, Axis: ax}}, nil
}

// axisEntrywise is the shared body of shape-preserving ops normalizing
// along an axis.
type axisEntrywise struct {
	Opd  Param
	Axis int
}

func (p *axisEntrywise) Shape() []int { return p.Opd.Shape() }

func (p *axisEntrywise) Config() map[string]any {
	return map[string]any{"axis": p.Axis}
}

// SoftmaxParam normalizes the operand along an axis.
type SoftmaxParam struct{ axisEntrywise }

// NewSoftmaxParam wraps opd in a softmax along axis.
func NewSoftmaxParam(opd Param, axis int) (*SoftmaxParam, error) {
	ax, err := normAxis("softmax", axis, len(opd.Shape()))
	if err != nil {
		return nil, err
	}
	return &SoftmaxParam{axisEntrywise{Opd: opd, Axis: ax}}, nil
}

// LogSoftmaxParam is the log of a softmax along an axis.
type LogSoftmaxParam struct{ axisEntrywise }

// NewLogSoftmaxParam wraps opd in a log-softmax along axis.
func NewLogSoftmaxParam(opd Param, axis int) (*LogSoftmaxParam, error) {
	ax, err := normAxis("log-softmax", axis, len(opd.Shape()))
	if err != nil {
		return nil, err
	}
	return &LogSoftmaxParam{axisEntrywise{Opd: opd, Axis: ax}}, nil
}

// HadamardParam is the elementwise product of two equal-shape operands.
type HadamardParam struct {
	Lhs, Rhs Param
}

// NewHadamardParam multiplies two operands elementwise. The operand
// shapes must be identical.
func NewHadamardParam(lhs, rhs Param) (*HadamardParam, error) {
	if !slices.Equal(lhs.Shape(), rhs.Shape()) {
		return nil, &ShapeError{Op: "hadamard",
			Message: fmt.Sprintf("operand shapes %v and %v differ", lhs.Shape(), rhs.Shape())}
	}
	return &HadamardParam{Lhs: lhs, Rhs: rhs}, nil
}

func (p *HadamardParam) Shape() []int           { return p.Lhs.Shape() }
func (p *HadamardParam) Config() map[string]any { return map[string]any{} }

// KroneckerParam is the Kronecker product of two same-rank operands;
// the result dim on every axis is the product of the operand dims.
type KroneckerParam struct {
	Lhs, Rhs Param
	memo     shapeOnce
}

// NewKroneckerParam crosses two operands. The operands must have equal
// rank.
func NewKroneckerParam(lhs, rhs Param) (*KroneckerParam, error) {
	if len(lhs.Shape()) != len(rhs.Shape()) {
		return nil, &ShapeError{Op: "kronecker",
			Message: fmt.Sprintf("operand ranks %d and %d differ", len(lhs.Shape()), len(rhs.Shape()))}
	}
	return &KroneckerParam{Lhs: lhs, Rhs: rhs}, nil
}

func (p *KroneckerParam) Shape() []int {
	return p.memo.get(func() []int {
		ls, rs := p.Lhs.Shape(), p.Rhs.Shape()
		out := make([]int, len(ls))
		for i := range ls {
			out[i] = ls[i] * rs[i]
		}
		return out
	})
}

func (p *KroneckerParam) Config() map[string]any { return map[string]any{} }

// outerOp is the shared body of the outer product and outer sum: the
// operands must match on every axis except the combined one, which
// becomes the product of the two dims.
type outerOp struct {
	Lhs, Rhs Param
	Axis     int
	memo     shapeOnce
}

func newOuterOp(op string, lhs, rhs Param, axis int) (outerOp, error) {
	ls, rs := lhs.Shape(), rhs.Shape()
	if len(ls) != len(rs) {
		return outerOp{}, &ShapeError{Op: op,
			Message: fmt.Sprintf("operand ranks %d and %d differ", len(ls), len(rs))}
	}
	ax, err := normAxis(op, axis, len(ls))
	if err != nil {
		return outerOp{}, err
	}
	for i := range ls {
		if i != ax && ls[i] != rs[i] {
			return outerOp{}, &ShapeError{Op: op,
				Message: fmt.Sprintf("operand shapes %v and %v differ outside axis %d", ls, rs, ax)}
		}
	}
	return outerOp{Lhs: lhs, Rhs: rhs, Axis: ax}, nil
}

func (p *outerOp) Shape() []int {
	return p.memo.get(func() []int {
		ls, rs := p.Lhs.Shape(), p.Rhs.Shape()
		out := slices.Clone(ls)
		out[p.Axis] = ls[p.Axis] * rs[p.Axis]
		return out
	})
}

func (p *outerOp) Config() map[string]any {
	return map[string]any{"axis": p.Axis}
}

// OuterProductParam combines two operands multiplicatively along one
// axis.
type OuterProductParam struct{ outerOp }

// NewOuterProductParam builds the outer product along axis.
func NewOuterProductParam(lhs, rhs Param, axis int) (*OuterProductParam, error) {
	op, err := newOuterOp("outer-product", lhs, rhs, axis)
	if err != nil {
		return nil, err
	}
	return &OuterProductParam{op}, nil
}

// OuterSumParam combines two operands additively along one axis.
type OuterSumParam struct{ outerOp }

// NewOuterSumParam builds the outer sum along axis.
func NewOuterSumParam(lhs, rhs Param, axis int) (*OuterSumParam, error) {
	op, err := newOuterOp("outer-sum", lhs, rhs, axis)
	if err != nil {
		return nil, err
	}
	return &OuterSumParam{op}, nil
}

// gaussianProduct validates the operand lists shared by the fused
// Gaussian-product ops: at least two means/stddevs with matching
// leading and trailing dims.
func gaussianProduct(op string, means, stddevs []Param) error {
	if len(means) < 2 || len(means) != len(stddevs) {
		return &ShapeError{Op: op,
			Message: fmt.Sprintf("want >= 2 paired operands, got %d means and %d stddevs", len(means), len(stddevs))}
	}
	m0 := means[0].Shape()
	for i := range means {
		ms, ss := means[i].Shape(), stddevs[i].Shape()
		if len(ms) != 3 || len(ss) != 3 {
			return &ShapeError{Op: op, Message: "operands must have rank 3"}
		}
		if ms[1] != m0[1] || ms[2] != m0[2] || ss[1] != m0[1] || ss[2] != m0[2] {
			return &ShapeError{Op: op,
				Message: fmt.Sprintf("operand %d does not match trailing dims %dx%d", i, m0[1], m0[2])}
		}
		if ms[0] != ss[0] {
			return &ShapeError{Op: op,
				Message: fmt.Sprintf("operand %d mean width %d does not match stddev width %d", i, ms[0], ss[0])}
		}
	}
	return nil
}

// gaussianCrossDim is the unit dim of a Gaussian product: all pairs of
// operand units.
func gaussianCrossDim(means []Param) int {
	cross := 1
	for _, m := range means {
		cross *= m.Shape()[0]
	}
	return cross
}

// MeanGaussianProductParam fuses the means of a product of Gaussians.
type MeanGaussianProductParam struct {
	Means, Stddevs []Param
	memo           shapeOnce
}

// NewMeanGaussianProductParam builds the fused mean of a Gaussian
// product.
func NewMeanGaussianProductParam(means, stddevs []Param) (*MeanGaussianProductParam, error) {
	if err := gaussianProduct("mean-gaussian-product", means, stddevs); err != nil {
		return nil, err
	}
	return &MeanGaussianProductParam{Means: means, Stddevs: stddevs}, nil
}

func (p *MeanGaussianProductParam) Shape() []int {
	return p.memo.get(func() []int {
		s := p.Means[0].Shape()
		return []int{gaussianCrossDim(p.Means), s[1], s[2]}
	})
}

func (p *MeanGaussianProductParam) Config() map[string]any { return map[string]any{} }

// StddevGaussianProductParam fuses the standard deviations of a product
// of Gaussians.
type StddevGaussianProductParam struct {
	Stddevs []Param
	memo    shapeOnce
}

// NewStddevGaussianProductParam builds the fused standard deviation of
// a Gaussian product.
func NewStddevGaussianProductParam(stddevs []Param) (*StddevGaussianProductParam, error) {
	if len(stddevs) < 2 {
		return nil, &ShapeError{Op: "stddev-gaussian-product",
			Message: fmt.Sprintf("want >= 2 operands, got %d", len(stddevs))}
	}
	s0 := stddevs[0].Shape()
	for i, s := range stddevs {
		ss := s.Shape()
		if len(ss) != 3 || ss[1] != s0[1] || ss[2] != s0[2] {
			return nil, &ShapeError{Op: "stddev-gaussian-product",
				Message: fmt.Sprintf("operand %d does not match trailing dims", i)}
		}
	}
	return &StddevGaussianProductParam{Stddevs: stddevs}, nil
}

func (p *StddevGaussianProductParam) Shape() []int {
	return p.memo.get(func() []int {
		s := p.Stddevs[0].Shape()
		return []int{gaussianCrossDim(p.Stddevs), s[1], s[2]}
	})
}

func (p *StddevGaussianProductParam) Config() map[string]any { return map[string]any{} }

// LogPartitionGaussianProductParam fuses the log-partition correction
// of a product of Gaussians.
type LogPartitionGaussianProductParam struct {
	Means, Stddevs []Param
	memo           shapeOnce
}

// NewLogPartitionGaussianProductParam builds the fused log-partition
// term of a Gaussian product.
func NewLogPartitionGaussianProductParam(means, stddevs []Param) (*LogPartitionGaussianProductParam, error) {
	if err := gaussianProduct("log-partition-gaussian-product", means, stddevs); err != nil {
		return nil, err
	}
	return &LogPartitionGaussianProductParam{Means: means, Stddevs: stddevs}, nil
}

func (p *LogPartitionGaussianProductParam) Shape() []int {
	return p.memo.get(func() []int {
		return []int{gaussianCrossDim(p.Means)}
	})
}

func (p *LogPartitionGaussianProductParam) Config() map[string]any { return map[string]any{} }
