package nn

import (
	"math"

	"github.com/llamacore/flint"
)

// RMSNorm is the root-mean-square normalization used by ChatGLM-2 in
// place of LayerNorm (SPEC_FULL.md §3, grounded on
// original_source/src/llmpp/chatglm2_model.h): no mean subtraction, no
// bias, scale only by the trailing dimension's RMS.
type RMSNorm struct {
	ctx    Context
	d      int
	eps    float64
	weight *flint.Tensor
}

func NewRMSNorm(ctx Context, d int, eps float64) *RMSNorm {
	return &RMSNorm{ctx: ctx, d: d, eps: eps}
}

func (r *RMSNorm) InitParameters(params *flint.TensorMap) {
	r.weight = params.MustGet(r.ctx.Name("weight"))
}

func (r *RMSNorm) Forward(x *flint.Tensor) *flint.Tensor {
	if x.Dim(x.Rank()-1) != r.d {
		panic("nn: RMSNorm input trailing dim mismatch")
	}
	src := x.Contiguous()
	n := 1
	for _, s := range src.Shape() {
		n *= s
	}
	out := flint.CreateTensor(flint.F32, src.Shape()...)
	data := out.RawF32()[:n]
	copy(data, src.RawF32()[:n])
	w := r.weight.Contiguous().RawF32()[:r.d]

	for base := 0; base < len(data); base += r.d {
		row := data[base : base+r.d]
		var sumSq float64
		for _, v := range row {
			sumSq += float64(v) * float64(v)
		}
		rms := math.Sqrt(sumSq/float64(r.d) + r.eps)
		for i, v := range row {
			row[i] = float32(float64(v)/rms) * w[i]
		}
	}
	return out
}
