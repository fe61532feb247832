// Package bloom implements the BLOOM decoder (SPEC_FULL.md §3): ALiBi
// positional bias in place of learned position embeddings, otherwise a
// GPT-2-shaped block stack. Grounded on original_source's bloom_model.cc
// and the gpt2 package's block structure.
package bloom

import (
	"strconv"

	"github.com/llamacore/flint"
	"github.com/llamacore/flint/internal/config"
	"github.com/llamacore/flint/kvcache"
	"github.com/llamacore/flint/model"
	"github.com/llamacore/flint/nn"
)

func init() {
	model.Register("bloom", New)
}

// Block is one BLOOM transformer block: pre-LN ALiBi self-attention
// with a residual connection, followed by a pre-LN GELU MLP with a
// residual connection.
type Block struct {
	lnAttn *nn.LayerNorm
	attn   *nn.MultiheadSelfAttention
	lnMLP  *nn.LayerNorm
	fc1    *nn.Linear
	fc2    *nn.Linear
}

func newBlock(ctx nn.Context, nEmbd, nHead, nInner int, eps float64) *Block {
	return &Block{
		lnAttn: nn.NewLayerNorm(ctx.WithName("input_layernorm"), nEmbd, eps),
		attn:   nn.NewGroupedQueryAttention(ctx.WithName("self_attention"), nHead, nHead, nEmbd, true),
		lnMLP:  nn.NewLayerNorm(ctx.WithName("post_attention_layernorm"), nEmbd, eps),
		fc1:    nn.NewLinear(ctx.WithName("mlp.dense_h_to_4h"), nEmbd, nInner),
		fc2:    nn.NewLinear(ctx.WithName("mlp.dense_4h_to_h"), nInner, nEmbd),
	}
}

func (b *Block) InitParameters(params *flint.TensorMap) {
	b.lnAttn.InitParameters(params)
	b.attn.InitParameters(params)
	b.lnMLP.InitParameters(params)
	b.fc1.InitParameters(params)
	b.fc2.InitParameters(params)
}

func (b *Block) Forward(ops flint.Ops, past *flint.TensorMap, x, mask *flint.Tensor) *flint.Tensor {
	attnOut := b.attn.Forward(past, b.lnAttn.Forward(x), mask)
	x = ops.Add(x, attnOut)

	h := b.fc1.Forward(b.lnMLP.Forward(x))
	h = ops.GELU(h)
	h = b.fc2.Forward(h)
	return ops.Add(x, h)
}

// Model is the BLOOM decoder: a token embedding followed by an
// embedding-layer LayerNorm, N ALiBi blocks, a final LayerNorm, and a
// weight-tied logits projection.
type Model struct {
	ctx   nn.Context
	nEmbd int
	nCtx  int

	wte    *nn.Embedding
	lnEmb  *nn.LayerNorm
	blocks []*Block
	lnF    *nn.LayerNorm
}

// New constructs a BLOOM model from cfg's bloom.* keys.
func New(cfg config.Config) (model.Model, error) {
	nEmbd := cfg.Int("bloom.n_embd")
	nHead := cfg.Int("bloom.n_head")
	nLayer := cfg.Int("bloom.n_layer")
	nVocab := cfg.Int("bloom.n_vocab")
	nCtx := cfg.Int("bloom.n_ctx")
	nInner := cfg.Int("bloom.n_inner")
	if nInner == 0 {
		nInner = 4 * nEmbd
	}
	eps := cfg.Float("bloom.layer_norm_epsilon")
	if eps == 0 {
		eps = 1e-5
	}

	ctx := nn.NewContext(flint.CPU)
	m := &Model{
		ctx:   ctx,
		nEmbd: nEmbd,
		nCtx:  nCtx,
		wte:   nn.NewEmbedding(ctx.WithName("word_embeddings"), nVocab, nEmbd),
		lnEmb: nn.NewLayerNorm(ctx.WithName("word_embeddings_layernorm"), nEmbd, eps),
		lnF:   nn.NewLayerNorm(ctx.WithName("ln_f"), nEmbd, eps),
	}
	blocksCtx := ctx.WithName("h")
	for i := 0; i < nLayer; i++ {
		m.blocks = append(m.blocks, newBlock(blocksCtx.WithName(strconv.Itoa(i)), nEmbd, nHead, nInner, eps))
	}
	return m, nil
}

func (m *Model) InitParameters(params *flint.TensorMap) {
	m.wte.InitParameters(params)
	m.lnEmb.InitParameters(params)
	for _, b := range m.blocks {
		b.InitParameters(params)
	}
	m.lnF.InitParameters(params)
}

// Forward runs ids[N,L] through the model. BLOOM has no learned
// position embedding; position information comes entirely from each
// block's ALiBi bias (SPEC_FULL.md §3).
func (m *Model) Forward(past *flint.TensorMap, ids *flint.Tensor) *flint.Tensor {
	ops := m.ctx.Ops()
	start := kvcache.StartIndex(past)
	l := ids.Dim(1)

	x := m.lnEmb.Forward(m.wte.Forward(ids))

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
