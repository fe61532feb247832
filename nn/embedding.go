package nn

import "github.com/llamacore/flint"

// Embedding has parameter weight[V,D] (spec.md §4.5).
type Embedding struct {
	ctx    Context
	v, d   int
	weight *flint.Tensor
}

func NewEmbedding(ctx Context, v, d int) *Embedding {
	return &Embedding{ctx: ctx, v: v, d: d}
}

func (e *Embedding) InitParameters(params *flint.TensorMap) {
	e.weight = params.MustGet(e.ctx.Name("weight"))
}

func (e *Embedding) Forward(idx *flint.Tensor) *flint.Tensor {
	return e.ctx.Ops().Lookup(e.weight, idx)
}

func (e *Embedding) Weight() *flint.Tensor { return e.weight }
