package nn

import (
	"fmt"
	"math"

	"github.com/llamacore/flint"
)

// MultiheadSelfAttention implements scaled dot-product self-attention
// with an optional past key/value cache (spec.md §4.5). NumKVHeads may
// be smaller than NumHeads to express grouped-query attention (used by
// ChatGLM-2, SPEC_FULL.md §3); GPT-2 and BLOOM set NumKVHeads ==
// NumHeads. ALiBi enables BLOOM's linear positional bias in place of
// relying solely on the causal mask (SPEC_FULL.md §3).
type MultiheadSelfAttention struct {
	ctx        Context
	numHeads   int
	numKVHeads int
	dModel     int
	dK         int
	alibi      bool
	fusedQKV   bool

	qProj, kProj, vProj, outProj *Linear
	qkvProj                      *Linear
}

func NewMultiheadSelfAttention(ctx Context, numHeads, dModel int) *MultiheadSelfAttention {
	return NewGroupedQueryAttention(ctx, numHeads, numHeads, dModel, false)
}

// NewGroupedQueryAttention builds an attention module with numKVHeads
// distinct key/value heads, generalizing MultiheadSelfAttention for
// models such as ChatGLM-2 (SPEC_FULL.md §3).
func NewGroupedQueryAttention(ctx Context, numHeads, numKVHeads, dModel int, alibi bool) *MultiheadSelfAttention {
	if dModel%numHeads != 0 {
		panic("nn: dModel must be divisible by numHeads")
	}
	dK := dModel / numHeads
	kvDim := numKVHeads * dK
	return &MultiheadSelfAttention{
		ctx:        ctx,
		numHeads:   numHeads,
		numKVHeads: numKVHeads,
		dModel:     dModel,
		dK:         dK,
		alibi:      alibi,
		qProj:      NewLinear(ctx.WithName("q_proj"), dModel, dModel),
		kProj:      NewLinear(ctx.WithName("k_proj"), dModel, kvDim),
		vProj:      NewLinear(ctx.WithName("v_proj"), dModel, kvDim),
		outProj:    NewLinear(ctx.WithName("out_proj"), dModel, dModel),
	}
}

// NewFusedQKVAttention builds a grouped-query attention module whose
// Q/K/V projections are a single fused qkv_proj weight matrix, split
// into Q[dModel]/K[kvDim]/V[kvDim] after projection — ChatGLM-2's
// layout (SPEC_FULL.md §3, original_source/src/llmpp/chatglm2_model.h).
// The dense output projection keeps its own bias; the fused projection
// carries the QKV bias.
func NewFusedQKVAttention(ctx Context, numHeads, numKVHeads, dModel int) *MultiheadSelfAttention {
	if dModel%numHeads != 0 {
		panic("nn: dModel must be divisible by numHeads")
	}
	dK := dModel / numHeads
	kvDim := numKVHeads * dK
	return &MultiheadSelfAttention{
		ctx:        ctx,
		numHeads:   numHeads,
		numKVHeads: numKVHeads,
		dModel:     dModel,
		dK:         dK,
		fusedQKV:   true,
		qkvProj:    NewLinear(ctx.WithName("qkv_proj"), dModel, dModel+2*kvDim),
		outProj:    NewLinear(ctx.WithName("out_proj"), dModel, dModel),
	}
}

func (a *MultiheadSelfAttention) InitParameters(params *flint.TensorMap) {
	if a.fusedQKV {
		a.qkvProj.InitParameters(params)
	} else {
		a.qProj.InitParameters(params)
		a.kProj.InitParameters(params)
		a.vProj.InitParameters(params)
	}
	a.outProj.InitParameters(params)
}

// splitHeads reshapes [N,L,heads*dK] to [N,heads,L,dK].
func splitHeads(ops flint.Ops, t *flint.Tensor, heads, dK int) *flint.Tensor {
	n, l := t.Dim(0), t.Dim(1)
	return ops.Contiguous(t).Reshape(n, l, heads, dK).Transpose(1, 2)
}

// repeatKVHeads expands a [N,numKV,L,dK] tensor to [N,numKV*repeat,L,dK]
// by repeating each KV head `repeat` times, the standard grouped-query
// head expansion.
func repeatKVHeads(t *flint.Tensor, repeat int) *flint.Tensor {
	if repeat == 1 {
		return t
	}
	n, numKV, l, dK := t.Dim(0), t.Dim(1), t.Dim(2), t.Dim(3)
	out := flint.CreateTensor(flint.F32, n, numKV*repeat, l, dK)
	for ni := 0; ni < n; ni++ {
		for g := 0; g < numKV; g++ {
			for r := 0; r < repeat; r++ {
				h := g*repeat + r
				for li := 0; li < l; li++ {
					for d := 0; d < dK; d++ {
						out.F32Set(t.F32At(ni, g, li, d), ni, h, li, d)
					}
				}
			}
		}
	}
	return out
}

// alibiBias returns the ALiBi additive bias tensor of shape
// [numHeads,Lq,Lkv] for query positions [qStart,qStart+Lq) against key
// positions [0,Lkv) (SPEC_FULL.md §3, grounded on bloom_model.cc).
func alibiBias(numHeads, qStart, lq, lkv int) *flint.Tensor {
	out := flint.CreateTensor(flint.F32, numHeads, lq, lkv)
	for h := 0; h < numHeads; h++ {
		slope := alibiSlope(h, numHeads)
		for qi := 0; qi < lq; qi++ {
			q := qStart + qi
			for ki := 0; ki < lkv; ki++ {
				out.F32Set(float32(-slope*float64(q-ki)), h, qi, ki)
			}
		}
	}
	return out
}

// alibiSlope computes BLOOM's per-head geometric slope sequence.
func alibiSlope(head, numHeads int) float64 {
	base := math.Pow(2, -8.0/float64(numHeads))
	return math.Pow(base, float64(head+1))
}

// Forward computes self-attention for x[N,L,dModel] against mask[nCtx,
// nCtx] (the relevant [Lq,Lkv] subregion is sliced internally using
// past's recorded length). past may be nil (Fresh
// state); if non-nil, cached K/V are looked up/stored under this
// module's namespace (spec.md §4.5 KV-cache state machine).
func (a *MultiheadSelfAttention) Forward(past *flint.TensorMap, x *flint.Tensor, mask *flint.Tensor) *flint.Tensor {
	ops := a.ctx.Ops()

	var q, k, v *flint.Tensor
	if a.fusedQKV {
		qkv := a.qkvProj.Forward(x)
		last := qkv.Rank() - 1
		kvDim := a.numKVHeads * a.dK
		q = qkv.Slice(last, 0, a.dModel)
		k = qkv.Slice(last, a.dModel, a.dModel+kvDim)
		v = qkv.Slice(last, a.dModel+kvDim, a.dModel+2*kvDim)
	} else {
		q = a.qProj.Forward(x)
		k = a.kProj.Forward(x)
		v = a.vProj.Forward(x)
	}

	lNew := x.Dim(1)
	lStart := 0

	if past != nil {
		kName, vName := a.ctx.Name("past_k"), a.ctx.Name("past_v")
		if prevK, ok := past.Get(kName); ok {
			lStart = prevK.Dim(1)
			k = ops.Cat(prevK, k, 1)
			v = ops.Cat(past.MustGet(vName), v, 1)
		}
		past.Set(kName, k)
		past.Set(vName, v)
	}

	lkv := lStart + lNew

	qh := splitHeads(ops, q, a.numHeads, a.dK)
	kh := splitHeads(ops, k, a.numKVHeads, a.dK)
	vh := splitHeads(ops, v, a.numKVHeads, a.dK)

	if a.numKVHeads != a.numHeads {
		if a.numHeads%a.numKVHeads != 0 {
			panic(fmt.Sprintf("nn: numHeads(%d) must be a multiple of numKVHeads(%d)", a.numHeads, a.numKVHeads))
		}
		repeat := a.numHeads / a.numKVHeads
		kh = repeatKVHeads(kh, repeat)
		vh = repeatKVHeads(vh, repeat)
	}

	scores := ops.MatMul(qh, kh.Transpose(2, 3))
	scores = ops.MulScalar(scores, float32(1.0/math.Sqrt(float64(a.dK))))

	if a.alibi {
		scores = ops.Add(scores, alibiBias(a.numHeads, lStart, lNew, lkv))
	}
	if mask != nil {
		scores = ops.Add(scores, mask.Slice(0, lStart, lStart+lNew).Slice(1, 0, lkv))
	}

	probs := ops.Softmax(scores)
	ctxOut := ops.MatMul(probs, vh)

	n := x.Dim(0)
	merged := ops.Contiguous(ctxOut.Transpose(1, 2)).Reshape(n, lNew, a.dModel)
	return a.outProj.Forward(merged)
}
