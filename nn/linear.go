package nn

import "github.com/llamacore/flint"

// Linear is a fully connected layer with parameters weight[out,in] and,
// unless built with NewLinearNoBias, bias[out] (spec.md §4.5).
type Linear struct {
	ctx     Context
	in, out int
	useBias bool
	weight  *flint.Tensor
	bias    *flint.Tensor
}

func NewLinear(ctx Context, in, out int) *Linear {
	return &Linear{ctx: ctx, in: in, out: out, useBias: true}
}

// NewLinearNoBias builds a Linear with no bias parameter, for modules
// whose projections carry weight only (ChatGLM-2's MLP, SPEC_FULL.md
// §3).
func NewLinearNoBias(ctx Context, in, out int) *Linear {
	return &Linear{ctx: ctx, in: in, out: out}
}

func (l *Linear) InitParameters(params *flint.TensorMap) {
	l.weight = params.MustGet(l.ctx.Name("weight"))
	if l.useBias {
		l.bias = params.MustGet(l.ctx.Name("bias"))
	}
}

// Forward applies the layer: 1-D input -> GEMV, 2-D -> GEMM, >=3-D ->
// BMM, each against the transposed weight, then broadcast-adds bias if
// this Linear carries one.
func (l *Linear) Forward(x *flint.Tensor) *flint.Tensor {
	ops := l.ctx.Ops()

	switch x.Rank() {
	case 1:
		mat := x.Unsqueeze(0)
		y := ops.MatMul(mat, l.weight.Transpose(0, 1))
		if l.useBias {
			y = ops.Add(y, l.bias)
		}
		return y.Squeeze(0)
	default:
		y := ops.MatMul(x, l.weight.Transpose(0, 1))
		if l.useBias {
			y = ops.Add(y, l.bias)
		}
		return y
	}
}
