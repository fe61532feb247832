// Package gpt2 implements the GPT-2 decoder (spec.md §4.5), composing
// nn's Linear/LayerNorm/Embedding/MultiheadSelfAttention building
// blocks. Grounded on original_source/src/gpt2_model.cc and
// llmrt/gpt2_model.cc.
package gpt2

import (
	"strconv"

	"github.com/llamacore/flint"
	"github.com/llamacore/flint/internal/config"
	"github.com/llamacore/flint/kvcache"
	"github.com/llamacore/flint/model"
	"github.com/llamacore/flint/nn"
)

func init() {
	model.Register("gpt2", New)
}

// Block is one GPT-2 transformer block: pre-LN self-attention with a
// residual connection, followed by a pre-LN GELU MLP with a residual
// connection (spec.md §4.5).
type Block struct {
	ln1  *nn.LayerNorm
	attn *nn.MultiheadSelfAttention
	ln2  *nn.LayerNorm
	fc1  *nn.Linear
	fc2  *nn.Linear
}

func newBlock(ctx nn.Context, nEmbd, nHead, nInner int, eps float64) *Block {
	return &Block{
		ln1:  nn.NewLayerNorm(ctx.WithName("ln_1"), nEmbd, eps),
		attn: nn.NewMultiheadSelfAttention(ctx.WithName("attn"), nHead, nEmbd),
		ln2:  nn.NewLayerNorm(ctx.WithName("ln_2"), nEmbd, eps),
		fc1:  nn.NewLinear(ctx.WithName("mlp.c_fc"), nEmbd, nInner),
		fc2:  nn.NewLinear(ctx.WithName("mlp.c_proj"), nInner, nEmbd),
	}
}

func (b *Block) InitParameters(params *flint.TensorMap) {
	b.ln1.InitParameters(params)
	b.attn.InitParameters(params)
	b.ln2.InitParameters(params)
	b.fc1.InitParameters(params)
	b.fc2.InitParameters(params)
}

func (b *Block) Forward(ops flint.Ops, past *flint.TensorMap, x, mask *flint.Tensor) *flint.Tensor {
	attnOut := b.attn.Forward(past, b.ln1.Forward(x), mask)
	x = ops.Add(x, attnOut)

	h := b.fc1.Forward(b.ln2.Forward(x))
	h = ops.GELU(h)
	h = b.fc2.Forward(h)
	return ops.Add(x, h)
}

// Model is the GPT-2 decoder: token + learned position embeddings, N
// blocks, a final LayerNorm, and a weight-tied logits projection
// (spec.md §4.5).
type Model struct {
	ctx    nn.Context
	nEmbd  int
	nCtx   int
	nLayer int

	wte    *nn.Embedding
	wpe    *nn.Embedding
	blocks []*Block
	lnF    *nn.LayerNorm
}

// New constructs a GPT-2 model from cfg's gpt2.* keys.
func New(cfg config.Config) (model.Model, error) {
	nEmbd := cfg.Int("gpt2.n_embd")
	nHead := cfg.Int("gpt2.n_head")
	nLayer := cfg.Int("gpt2.n_layer")
	nVocab := cfg.Int("gpt2.n_vocab")
	nCtx := cfg.Int("gpt2.n_ctx")
	nInner := cfg.Int("gpt2.n_inner")
	if nInner == 0 {
		nInner = 4 * nEmbd
	}
	eps := cfg.Float("gpt2.layer_norm_epsilon")
	if eps == 0 {
		eps = 1e-5
	}

	ctx := nn.NewContext(flint.CPU)
	m := &Model{
		ctx:    ctx,
		nEmbd:  nEmbd,
		nCtx:   nCtx,
		nLayer: nLayer,
		wte:    nn.NewEmbedding(ctx.WithName("wte"), nVocab, nEmbd),
		wpe:    nn.NewEmbedding(ctx.WithName("wpe"), nCtx, nEmbd),
		lnF:    nn.NewLayerNorm(ctx.WithName("ln_f"), nEmbd, eps),
	}
	blocksCtx := ctx.WithName("h")
	for i := 0; i < nLayer; i++ {
		m.blocks = append(m.blocks, newBlock(blocksCtx.WithName(strconv.Itoa(i)), nEmbd, nHead, nInner, eps))
	}
	return m, nil
}

func (m *Model) InitParameters(params *flint.TensorMap) {
	m.wte.InitParameters(params)
	m.wpe.InitParameters(params)
	for _, b := range m.blocks {
		b.InitParameters(params)
	}
	m.lnF.InitParameters(params)
}

// Forward runs ids[N,L] through the model, threading past across calls
// for autoregressive decoding (spec.md §4.5 Prefill/Decode states).
func (m *Model) Forward(past *flint.TensorMap, ids *flint.Tensor) *flint.Tensor {
	ops := m.ctx.Ops()
	n, l := ids.Dim(0), ids.Dim(1)

	start := kvcache.StartIndex(past)
	posIDs := flint.CreateTensor(flint.I64, 1, l)
	for i := 0; i < l; i++ {
		posIDs.I64Set(int64(start+i), 0, i)
	}

	tok := m.wte.Forward(ids)
	pos := m.wpe.Forward(posIDs)

	x := flint.CreateTensor(flint.F32, n, l, m.nEmbd)
	for ni := 0; ni < n; ni++ {
		for li := 0; li < l; li++ {
			for d := 0; d < m.nEmbd; d++ {
				x.F32Set(tok.F32At(ni, li, d)+pos.F32At(0, li, d), ni, li, d)
			}
		}
	}

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
