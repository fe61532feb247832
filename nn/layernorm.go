package nn

import "github.com/llamacore/flint"

// LayerNorm has parameters weight[d], bias[d] (spec.md §4.5).
type LayerNorm struct {
	ctx    Context
	d      int
	eps    float64
	weight *flint.Tensor
	bias   *flint.Tensor
}

func NewLayerNorm(ctx Context, d int, eps float64) *LayerNorm {
	return &LayerNorm{ctx: ctx, d: d, eps: eps}
}

func (l *LayerNorm) InitParameters(params *flint.TensorMap) {
	l.weight = params.MustGet(l.ctx.Name("weight"))
	l.bias = params.MustGet(l.ctx.Name("bias"))
}

func (l *LayerNorm) Forward(x *flint.Tensor) *flint.Tensor {
	if x.Dim(x.Rank()-1) != l.d {
		panic("nn: LayerNorm input trailing dim mismatch")
	}
	return l.ctx.Ops().LayerNorm(x, l.weight, l.bias, l.eps)
}
