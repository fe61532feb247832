package gpt2

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
		"gpt2.n_embd":  4,
		"gpt2.n_head":  2,
		"gpt2.n_layer": 2,
		"gpt2.n_vocab": 16,
		"gpt2.n_ctx":   8,
	}
}

func buildParams(t *testing.T) *flint.TensorMap {
	t.Helper()
	const nEmbd, nVocab, nCtx, nLayer, nInner = 4, 16, 8, 2, 16
	params := flint.NewTensorMap()

	params.Set("wte.weight", flint.CreateTensor(flint.F32, nVocab, nEmbd))
	params.Set("wpe.weight", flint.CreateTensor(flint.F32, nCtx, nEmbd))
	params.Set("ln_f.weight", onesVec(nEmbd))
	params.Set("ln_f.bias", flint.CreateTensor(flint.F32, nEmbd))

	for i := 0; i < nLayer; i++ {
		prefix := "h." + itoa(i) + "."
		params.Set(prefix+"ln_1.weight", onesVec(nEmbd))
		params.Set(prefix+"ln_1.bias", flint.CreateTensor(flint.F32, nEmbd))
		params.Set(prefix+"ln_2.weight", onesVec(nEmbd))
		params.Set(prefix+"ln_2.bias", flint.CreateTensor(flint.F32, nEmbd))

		for _, name := range []string{"attn.q_proj", "attn.k_proj", "attn.v_proj", "attn.out_proj"} {
			params.Set(prefix+name+".weight", flint.CreateTensor(flint.F32, nEmbd, nEmbd))
			params.Set(prefix+name+".bias", flint.CreateTensor(flint.F32, nEmbd))
		}
		params.Set(prefix+"mlp.c_fc.weight", flint.CreateTensor(flint.F32, nInner, nEmbd))
		params.Set(prefix+"mlp.c_fc.bias", flint.CreateTensor(flint.F32, nInner))
		params.Set(prefix+"mlp.c_proj.weight", flint.CreateTensor(flint.F32, nEmbd, nInner))
		params.Set(prefix+"mlp.c_proj.bias", flint.CreateTensor(flint.F32, nEmbd))
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

func TestGPT2ForwardShape(t *testing.T) {
	m, err := New(smallConfig())
	require.NoError(t, err)
	m.InitParameters(buildParams(t))

	ids := flint.FromInt64([]int64{1, 2, 3}, 1, 3)
	out := m.Forward(nil, ids)
	require.Equal(t, []int{1, 3, 16}, out.Shape())
}

func TestGPT2DecodeAdvancesCache(t *testing.T) {
	m, err := New(smallConfig())
	require.NoError(t, err)
	m.InitParameters(buildParams(t))

	past := flint.NewTensorMap()
	for i := 0; i < 3; i++ {
		step := flint.FromInt64([]int64{int64(i + 1)}, 1, 1)
		out := m.Forward(past, step)
		require.Equal(t, []int{1, 1, 16}, out.Shape())
	}
}
