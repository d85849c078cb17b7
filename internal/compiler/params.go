package compiler

import (
	"fmt"

	"github.com/probcirc/circ/internal/symbolic"
)

// materialize lowers a symbolic parameter expression into a backend
// tensor, memoizing per expression node. The memo is what makes
// parameter sharing hold across a pipeline: an integrated or
// differentiated circuit references the operand circuit's parameter
// nodes verbatim, so both compile to the very same tensor, and a
// product circuit's composed expressions reference the operand leaves,
// so only the composition is fresh.
func (c *Context) materialize(p symbolic.Param) (Tensor, error) {
	if t, ok := c.tensors[p]; ok {
		return t, nil
	}

	name, children, err := decompose(p)
	if err != nil {
		return nil, err
	}
	operands := make([]Tensor, len(children))
	for i, child := range children {
		operands[i], err = c.materialize(child)
		if err != nil {
			return nil, err
		}
	}

	t, err := c.factory.Parameter(ParameterOp{
		Name:     name,
		Shape:    p.Shape(),
		Config:   p.Config(),
		Operands: operands,
	})
	if err != nil {
		return nil, &CompileError{Code: ErrBackend, Message: fmt.Sprintf("materializing %s parameter: %v", name, err), err: err}
	}
	c.tensors[p] = t
	return t, nil
}

// decompose names a parameter node and lists its child expressions.
func decompose(p symbolic.Param) (string, []symbolic.Param, error) {
	switch p := p.(type) {
	case *symbolic.TensorParam:
		return "tensor", nil, nil
	case *symbolic.ConstantParam:
		return "constant", nil, nil
	case *symbolic.ExpParam:
		return "exp", []symbolic.Param{p.Opd}, nil
	case *symbolic.LogParam:
		return "log", []symbolic.Param{p.Opd}, nil
	case *symbolic.SoftplusParam:
		return "softplus", []symbolic.Param{p.Opd}, nil
	case *symbolic.ScaledSigmoidParam:
		return "scaled-sigmoid", []symbolic.Param{p.Opd}, nil
	case *symbolic.ReduceSumParam:
		return "reduce-sum", []symbolic.Param{p.Opd}, nil
	case *symbolic.ReduceProductParam:
		return "reduce-product", []symbolic.Param{p.Opd}, nil
	case *symbolic.ReduceLSEParam:
		return "reduce-lse", []symbolic.Param{p.Opd}, nil
	case *symbolic.SoftmaxParam:
		return "softmax", []symbolic.Param{p.Opd}, nil
	case *symbolic.LogSoftmaxParam:
		return "log-softmax", []symbolic.Param{p.Opd}, nil
	case *symbolic.HadamardParam:
		return "hadamard", []symbolic.Param{p.Lhs, p.Rhs}, nil
	case *symbolic.KroneckerParam:
		return "kronecker", []symbolic.Param{p.Lhs, p.Rhs}, nil
	case *symbolic.OuterProductParam:
		return "outer-product", []symbolic.Param{p.Lhs, p.Rhs}, nil
	case *symbolic.OuterSumParam:
		return "outer-sum", []symbolic.Param{p.Lhs, p.Rhs}, nil
	case *symbolic.MeanGaussianProductParam:
		return "mean-gaussian-product", append(append([]symbolic.Param{}, p.Means...), p.Stddevs...), nil
	case *symbolic.StddevGaussianProductParam:
		return "stddev-gaussian-product", append([]symbolic.Param{}, p.Stddevs...), nil
	case *symbolic.LogPartitionGaussianProductParam:
		return "log-partition-gaussian-product", append(append([]symbolic.Param{}, p.Means...), p.Stddevs...), nil
	default:
		return "", nil, &CompileError{Code: ErrUnknownParameter, Message: fmt.Sprintf("parameter type %T", p)}
	}
}
