package flint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateTensorContiguous(t *testing.T) {
	tn := CreateTensor(F32, 2, 3, 4)
	require.True(t, tn.IsContiguous())
	require.Equal(t, []int{12, 4, 1}, tn.Stride())
}

func TestTransposeIsInvolution(t *testing.T) {
	tn := CreateTensor(F32, 2, 3)
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			tn.F32Set(float32(i*10+j), i, j)
		}
	}
	back := tn.Transpose(0, 1).Transpose(0, 1)
	require.Equal(t, tn.Shape(), back.Shape())
	require.Equal(t, tn.Stride(), back.Stride())
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			require.Equal(t, tn.F32At(i, j), back.F32At(i, j))
		}
	}
}

func TestSlicePreservesElements(t *testing.T) {
	tn := CreateTensor(F32, 5, 2)
	for i := 0; i < 5; i++ {
		for j := 0; j < 2; j++ {
			tn.F32Set(float32(i*10+j), i, j)
		}
	}
	s := tn.Slice(0, 2, 4)
	require.Equal(t, 2, s.Dim(0))
	for k := 0; k < 2; k++ {
		for j := 0; j < 2; j++ {
			require.Equal(t, tn.F32At(2+k, j), s.F32At(k, j))
		}
	}
}

func TestSqueezeUnsqueeze(t *testing.T) {
	tn := CreateTensor(F32, 3, 4)
	u := tn.Unsqueeze(1)
	require.Equal(t, []int{3, 1, 4}, u.Shape())
	s := u.Squeeze(1)
	require.Equal(t, []int{3, 4}, s.Shape())
}

func TestContiguousNoOpWhenAlreadyContiguous(t *testing.T) {
	tn := CreateTensor(F32, 3, 4)
	c := tn.Contiguous()
	require.Equal(t, tn.storage, c.storage)
}

func TestContiguousCopiesTransposedView(t *testing.T) {
	tn := CreateTensor(F32, 2, 3)
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			tn.F32Set(float32(i*10+j), i, j)
		}
	}
	tr := tn.Transpose(0, 1)
	require.False(t, tr.IsContiguous())
	c := tr.Contiguous()
	require.True(t, c.IsContiguous())
	for i := 0; i < 3; i++ {
		for j := 0; j < 2; j++ {
			require.Equal(t, tr.F32At(i, j), c.F32At(i, j))
		}
	}
}

func TestQInt4StorageRoundTrip(t *testing.T) {
	tn := CreateQuantized(4, 8)
	require.Equal(t, 4, tn.GroupSize())
	packed, scales := tn.RawQuantized()
	require.Len(t, packed, 4)
	require.Len(t, scales, 2)
}
