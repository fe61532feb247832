package flint

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/llamacore/flint/pmpack"
)

func init() {
	pmpack.Init()
}

func TestLookupExample(t *testing.T) {
	table := FromFloat32([]float32{0.1, 0.2, 0.3, 0.4, 0.2, 0.3, 0.4, 0.5, 0.7, 0.8}, 5, 2)
	idx := FromInt64([]int64{0, 1, 2, 1, 3, 4}, 2, 3)

	out := Lookup(table, idx)
	require.Equal(t, []int{2, 3, 2}, out.Shape())

	want := [][][]float32{
		{{0.1, 0.2}, {0.3, 0.4}, {0.2, 0.3}},
		{{0.3, 0.4}, {0.4, 0.5}, {0.7, 0.8}},
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 2; k++ {
				require.InDelta(t, want[i][j][k], out.F32At(i, j, k), 1e-6)
			}
		}
	}
}

func TestSoftmaxExamples(t *testing.T) {
	a := FromFloat32([]float32{0.1, 0.2, 0.3}, 3)
	out := Softmax(a)
	want := []float32{0.3006, 0.3322, 0.3672}
	for i, w := range want {
		require.InDelta(t, w, out.F32At(i), 1e-3)
	}

	b := FromFloat32([]float32{0.1, 0.2, float32(math.Inf(-1))}, 3)
	out2 := Softmax(b)
	want2 := []float32{0.4750, 0.5250, 0.0}
	for i, w := range want2 {
		require.InDelta(t, w, out2.F32At(i), 1e-3)
	}
}

func TestSoftmaxSumsToOne(t *testing.T) {
	a := FromFloat32([]float32{1, 2, 3, 4, -1, 0.5}, 2, 3)
	out := Softmax(a)
	for i := 0; i < 2; i++ {
		var sum float32
		for j := 0; j < 3; j++ {
			sum += out.F32At(i, j)
		}
		require.InDelta(t, 1.0, sum, 1e-5)
	}
}

func TestMatMulAgainstReference(t *testing.T) {
	a := FromFloat32([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := FromFloat32([]float32{1, 0, 0, 1, 1, 1}, 3, 2)
	out := MatMul(a, b)
	require.Equal(t, []int{2, 2}, out.Shape())
	want := [][2]float32{{4, 5}, {10, 11}}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			require.InDelta(t, want[i][j], out.F32At(i, j), 1e-3)
		}
	}
}

func TestMatMulBatchBroadcast(t *testing.T) {
	bShared := FromFloat32([]float32{1, 0, 0, 1}, 2, 2)
	batch := CreateTensor(F32, 3, 2, 2)
	for bIdx := 0; bIdx < 3; bIdx++ {
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				batch.F32Set(float32(bIdx*10+i*2+j), bIdx, i, j)
			}
		}
	}
	out := MatMul(batch, bShared)
	for bIdx := 0; bIdx < 3; bIdx++ {
		single := matmul2D(batchMatrix(batch, bIdx, 1), bShared)
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				require.InDelta(t, single.F32At(i, j), out.F32At(bIdx, i, j), 1e-3)
			}
		}
	}
}

func TestLayerNormZeroMeanRows(t *testing.T) {
	a := FromFloat32([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	w := FromFloat32([]float32{1, 1, 1}, 3)
	b := FromFloat32([]float32{0, 0, 0}, 3)
	out := LayerNorm(a, w, b, 1e-5)
	for i := 0; i < 2; i++ {
		var mean float64
		for j := 0; j < 3; j++ {
			mean += float64(out.F32At(i, j))
		}
		require.InDelta(t, 0, mean/3, 1e-4)
	}
}

func TestCausalMaskValues(t *testing.T) {
	m := CausalMask(4)
	require.Equal(t, float32(0), m.F32At(0, 0))
	require.True(t, math.IsInf(float64(m.F32At(0, 1)), -1))
	require.Equal(t, float32(0), m.F32At(3, 0))
}

func TestCatAlongDim(t *testing.T) {
	a := FromFloat32([]float32{1, 2, 3, 4}, 2, 2)
	b := FromFloat32([]float32{5, 6}, 1, 2)
	out := Cat(a, b, 0)
	require.Equal(t, []int{3, 2}, out.Shape())
	require.Equal(t, float32(5), out.F32At(2, 0))
	require.Equal(t, float32(6), out.F32At(2, 1))
}
