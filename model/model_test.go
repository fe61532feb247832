package model_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/llamacore/flint"
	"github.com/llamacore/flint/internal/config"
	"github.com/llamacore/flint/model"
	_ "github.com/llamacore/flint/model/models"
	"github.com/llamacore/flint/pmpack"
)

func init() {
	pmpack.Init()
}

func TestNewUnsupportedArchitecture(t *testing.T) {
	_, err := model.New("no-such-arch", config.MapConfig{})
	require.ErrorIs(t, err, model.ErrUnsupportedModel)
}

func smallGPT2Config() config.MapConfig {
	return config.MapConfig{
		"gpt2.n_embd":  4,
		"gpt2.n_head":  2,
		"gpt2.n_layer": 2,
		"gpt2.n_vocab": 16,
		"gpt2.n_ctx":   8,
	}
}

func TestNewGPT2BuildsAndRuns(t *testing.T) {
	m, err := model.New("gpt2", smallGPT2Config())
	require.NoError(t, err)

	params := buildZeroParams(t, m)
	m.InitParameters(params)

	ids := flint.FromInt64([]int64{1, 2, 3}, 1, 3)
	out := m.Forward(nil, ids)
	require.Equal(t, []int{1, 3, 16}, out.Shape())
}

// buildZeroParams constructs the parameter set for smallGPT2Config's
// fixed dimensions directly by name.
func buildZeroParams(t *testing.T, m model.Model) *flint.TensorMap {
	t.Helper()
	params := flint.NewTensorMap()

	const nEmbd, nVocab, nCtx, nLayer, nInner = 4, 16, 8, 2, 16
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

func TestGPT2DecodeMatchesOneShot(t *testing.T) {
	m, err := model.New("gpt2", smallGPT2Config())
	require.NoError(t, err)
	m.InitParameters(buildDeterministicParams())

	full := flint.FromInt64([]int64{2, 5, 9, 3}, 1, 4)
	oneShot := m.Forward(nil, full)

	past := flint.NewTensorMap()
	var last *flint.Tensor
	for i := 0; i < 4; i++ {
		step := flint.FromInt64([]int64{full.I64At(0, i)}, 1, 1)
		last = m.Forward(past, step)
	}

	const nVocab = 16
	for v := 0; v < nVocab; v++ {
		require.InDelta(t, oneShot.F32At(0, 3, v), last.F32At(0, 0, v), 1e-2)
	}
}

// buildDeterministicParams fills smallGPT2Config's parameter set with
// small non-zero values so attention and the MLP are actually
// exercised, used by the decode-vs-one-shot equivalence check.
func buildDeterministicParams() *flint.TensorMap {
	params := flint.NewTensorMap()
	const nEmbd, nVocab, nCtx, nLayer, nInner = 4, 16, 8, 2, 16

	params.Set("wte.weight", fillMatrix(nVocab, nEmbd))
	params.Set("wpe.weight", fillMatrix(nCtx, nEmbd))
	params.Set("ln_f.weight", onesVec(nEmbd))
	params.Set("ln_f.bias", flint.CreateTensor(flint.F32, nEmbd))

	for i := 0; i < nLayer; i++ {
		prefix := "h." + itoa(i) + "."
		params.Set(prefix+"ln_1.weight", onesVec(nEmbd))
		params.Set(prefix+"ln_1.bias", flint.CreateTensor(flint.F32, nEmbd))
		params.Set(prefix+"ln_2.weight", onesVec(nEmbd))
		params.Set(prefix+"ln_2.bias", flint.CreateTensor(flint.F32, nEmbd))

		for _, name := range []string{"attn.q_proj", "attn.k_proj", "attn.v_proj", "attn.out_proj"} {
			params.Set(prefix+name+".weight", fillMatrix(nEmbd, nEmbd))
			params.Set(prefix+name+".bias", flint.CreateTensor(flint.F32, nEmbd))
		}
		params.Set(prefix+"mlp.c_fc.weight", fillMatrix(nInner, nEmbd))
		params.Set(prefix+"mlp.c_fc.bias", flint.CreateTensor(flint.F32, nInner))
		params.Set(prefix+"mlp.c_proj.weight", fillMatrix(nEmbd, nInner))
		params.Set(prefix+"mlp.c_proj.bias", flint.CreateTensor(flint.F32, nEmbd))
	}
	return params
}

// fillMatrix builds a deterministic small-magnitude [rows,cols] matrix
// so outputs vary with input without risking overflow through several
// stacked blocks.
func fillMatrix(rows, cols int) *flint.Tensor {
	m := flint.CreateTensor(flint.F32, rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.F32Set(float32((i*7+j*3)%11)*0.01-0.05, i, j)
		}
	}
	return m
}

func onesVec(n int) *flint.Tensor {
	t := flint.CreateTensor(flint.F32, n)
	for i := 0; i < n; i++ {
		t.F32Set(1, i)
	}
	return t
}

func itoa(i int) string {
	if i < 10 {
		return string([]byte{byte('0' + i)})
	}
	return string([]byte{byte('0' + i/10), byte('0' + i%10)})
}
