// Package chatglm2 implements the ChatGLM-2 decoder (SPEC_FULL.md §3):
// fused-QKV grouped-query attention, RMSNorm in place of LayerNorm, and
// a no-bias SiLU-gated MLP. Grounded on
// original_source/src/llmpp/chatglm2_model.h and the gpt2/bloom
// packages' block structure.
package chatglm2

import (
	"math"
	"strconv"

	"github.com/llamacore/flint"
	"github.com/llamacore/flint/internal/config"
	"github.com/llamacore/flint/kvcache"
	"github.com/llamacore/flint/model"
	"github.com/llamacore/flint/nn"
)

func init() {
	model.Register("chatglm2", New)
}

// Block is one ChatGLM-2 transformer block: pre-RMSNorm grouped-query
// attention with a residual connection, followed by a pre-RMSNorm
// SiLU-gated MLP with a residual connection.
type Block struct {
	lnAttn *nn.RMSNorm
	attn   *nn.MultiheadSelfAttention
	lnMLP  *nn.RMSNorm
	gateUp *nn.Linear
	down   *nn.Linear
	ffnDim int
}

func newBlock(ctx nn.Context, dModel, numHeads, numKVHeads, ffnDim int, eps float64) *Block {
	return &Block{
		lnAttn: nn.NewRMSNorm(ctx.WithName("input_layernorm"), dModel, eps),
		attn:   nn.NewFusedQKVAttention(ctx.WithName("self_attention"), numHeads, numKVHeads, dModel),
		lnMLP:  nn.NewRMSNorm(ctx.WithName("post_attention_layernorm"), dModel, eps),
		gateUp: nn.NewLinearNoBias(ctx.WithName("mlp.gate_up_proj"), dModel, 2*ffnDim),
		down:   nn.NewLinearNoBias(ctx.WithName("mlp.down_proj"), ffnDim, dModel),
		ffnDim: ffnDim,
	}
}

func (b *Block) InitParameters(params *flint.TensorMap) {
	b.lnAttn.InitParameters(params)
	b.attn.InitParameters(params)
	b.lnMLP.InitParameters(params)
	b.gateUp.InitParameters(params)
	b.down.InitParameters(params)
}

// silu computes x * sigmoid(x) elementwise over a contiguous tensor.
func silu(ops flint.Ops, t *flint.Tensor) *flint.Tensor {
	c := ops.Contiguous(t)
	data := c.RawF32()
	n := 1
	for _, s := range c.Shape() {
		n *= s
	}
	for i := 0; i < n; i++ {
		v := data[i]
		sigmoid := float32(1 / (1 + math.Exp(-float64(v))))
		data[i] = v * sigmoid
	}
	return c
}

// mlp applies the gated feed-forward block: split gate_up_proj's output
// in half along the trailing dim, SiLU-gate the first half by the
// second, then project back down.
func (b *Block) mlp(ops flint.Ops, x *flint.Tensor) *flint.Tensor {
	h := b.gateUp.Forward(x)
	last := h.Rank() - 1
	gate := h.Slice(last, 0, b.ffnDim)
	up := h.Slice(last, b.ffnDim, 2*b.ffnDim)
	gated := mulElem(ops, silu(ops, gate), up)
	return b.down.Forward(gated)
}

// mulElem multiplies two equal-shaped contiguous tensors elementwise.
func mulElem(ops flint.Ops, a, b *flint.Tensor) *flint.Tensor {
	ac := ops.Contiguous(a)
	bc := ops.Contiguous(b)
	out := flint.CreateTensor(flint.F32, ac.Shape()...)
	od := out.RawF32()
	ad := ac.RawF32()
	bd := bc.RawF32()
	n := 1
	for _, s := range ac.Shape() {
		n *= s
	}
	for i := 0; i < n; i++ {
		od[i] = ad[i] * bd[i]
	}
	return out
}

func (b *Block) Forward(ops flint.Ops, past *flint.TensorMap, x, mask *flint.Tensor) *flint.Tensor {
	attnOut := b.attn.Forward(past, b.lnAttn.Forward(x), mask)
	x = ops.Add(x, attnOut)
	h := b.mlp(ops, b.lnMLP.Forward(x))
	return ops.Add(x, h)
}

// Model is the ChatGLM-2 decoder: a token embedding, N grouped-query
// attention blocks, a final RMSNorm, and a weight-tied logits
// projection.
type Model struct {
	ctx   nn.Context
	nEmbd int
	nCtx  int

	wte    *nn.Embedding
	blocks []*Block
	lnF    *nn.RMSNorm
}

// New constructs a ChatGLM-2 model from cfg's chatglm2.* keys.
func New(cfg config.Config) (model.Model, error) {
	nEmbd := cfg.Int("chatglm2.n_embd")
	nHead := cfg.Int("chatglm2.n_head")
	nKVHead := cfg.Int("chatglm2.n_kv_head")
	if nKVHead == 0 {
		nKVHead = nHead
	}
	nLayer := cfg.Int("chatglm2.n_layer")
	nVocab := cfg.Int("chatglm2.n_vocab")
	nCtx := cfg.Int("chatglm2.n_ctx")
	ffnDim := cfg.Int("chatglm2.ffn_hidden_size")
	eps := cfg.Float("chatglm2.rms_norm_eps")
	if eps == 0 {
		eps = 1e-5
	}

	ctx := nn.NewContext(flint.CPU)
	m := &Model{
		ctx:   ctx,
		nEmbd: nEmbd,
		nCtx:  nCtx,
		wte:   nn.NewEmbedding(ctx.WithName("embedding.word_embeddings"), nVocab, nEmbd),
		lnF:   nn.NewRMSNorm(ctx.WithName("final_layernorm"), nEmbd, eps),
	}
	blocksCtx := ctx.WithName("encoder.layers")
	for i := 0; i < nLayer; i++ {
		m.blocks = append(m.blocks, newBlock(blocksCtx.WithName(strconv.Itoa(i)), nEmbd, nHead, nKVHead, ffnDim, eps))
	}
	return m, nil
}

func (m *Model) InitParameters(params *flint.TensorMap) {
	m.wte.InitParameters(params)
	for _, b := range m.blocks {
		b.InitParameters(params)
	}
	m.lnF.InitParameters(params)
}

// Forward runs ids[N,L] through the model.
func (m *Model) Forward(past *flint.TensorMap, ids *flint.Tensor) *flint.Tensor {
	ops := m.ctx.Ops()
	start := kvcache.StartIndex(past)
	l := ids.Dim(1)

	x := m.wte.Forward(ids)

	mask := flint.CausalMask(m.nCtx)
	for _, b := range m.blocks {
		x = b.Forward(ops, past, x, mask)
	}
	x = m.lnF.Forward(x)

	if past != nil {
		kvcache.Advance(past, start, l)
	}

	return ops.MatMul(x, m.wte.Weight().Transpose(0, 1))
}
