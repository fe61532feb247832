package chatglm2

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/llamacore/flint"
	"github.com/llamacore/flint/internal/config"
	"github.com/llamacore/flint/pmpack"
)

func init() {
	pmpack.Init()
}

func smallConfig() config.MapConfig {
	return config.MapConfig{
		"chatglm2.n_embd":          4,
		"chatglm2.n_head":          2,
		"chatglm2.n_kv_head":       1,
		"chatglm2.n_layer":         2,
		"chatglm2.n_vocab":         16,
		"chatglm2.n_ctx":           8,
		"chatglm2.ffn_hidden_size": 6,
	}
}

func buildParams(t *testing.T) *flint.TensorMap {
	t.Helper()
	const nEmbd, nVocab, nLayer, kvDim, ffn = 4, 16, 2, 2, 6
	params := flint.NewTensorMap()

	params.Set("embedding.word_embeddings.weight", flint.CreateTensor(flint.F32, nVocab, nEmbd))
	params.Set("final_layernorm.weight", onesVec(nEmbd))

	for i := 0; i < nLayer; i++ {
		prefix := "encoder.layers." + itoa(i) + "."
		params.Set(prefix+"input_layernorm.weight", onesVec(nEmbd))
		params.Set(prefix+"post_attention_layernorm.weight", onesVec(nEmbd))

		params.Set(prefix+"self_attention.qkv_proj.weight", flint.CreateTensor(flint.F32, nEmbd+2*kvDim, nEmbd))
		params.Set(prefix+"self_attention.qkv_proj.bias", flint.CreateTensor(flint.F32, nEmbd+2*kvDim))
		params.Set(prefix+"self_attention.out_proj.weight", flint.CreateTensor(flint.F32, nEmbd, nEmbd))
		params.Set(prefix+"self_attention.out_proj.bias", flint.CreateTensor(flint.F32, nEmbd))

		params.Set(prefix+"mlp.gate_up_proj.weight", flint.CreateTensor(flint.F32, 2*ffn, nEmbd))
		params.Set(prefix+"mlp.down_proj.weight", flint.CreateTensor(flint.F32, nEmbd, ffn))
	}
	return params
}

func onesVec(n int) *flint.Tensor {
	v := flint.CreateTensor(flint.F32, n)
	for i := 0; i < n; i++ {
		v.F32Set(1, i)
	}
	return v
}

func itoa(i int) string { return string([]byte{byte('0' + i)}) }

func TestChatGLM2ForwardShape(t *testing.T) {
	m, err := New(smallConfig())
	require.NoError(t, err)
	m.InitParameters(buildParams(t))

	ids := flint.FromInt64([]int64{1, 2, 3}, 1, 3)
	out := m.Forward(nil, ids)
	require.Equal(t, []int{1, 3, 16}, out.Shape())
}
