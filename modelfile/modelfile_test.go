package modelfile

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/llamacore/flint"
)

func TestTensorRoundTrip(t *testing.T) {
	orig := flint.FromFloat32([]float32{1, 2, 3, 4, 5, 6}, 2, 3)

	var buf bytes.Buffer
	require.NoError(t, WriteTensor(&buf, orig))

	got, err := ReadTensor(&buf)
	require.NoError(t, err)
	require.Equal(t, orig.Shape(), got.Shape())
	require.Equal(t, orig.DType(), got.DType())
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			require.Equal(t, orig.F32At(i, j), got.F32At(i, j))
		}
	}
}

func TestReadTensorReturnsEOFAtStreamEnd(t *testing.T) {
	var buf bytes.Buffer
	a := flint.FromFloat32([]float32{1, 2}, 2)
	require.NoError(t, WriteTensor(&buf, a))

	_, err := ReadTensor(&buf)
	require.NoError(t, err)

	_, err = ReadTensor(&buf)
	require.ErrorIs(t, err, io.EOF)
}

func TestTensorMapRoundTrip(t *testing.T) {
	m := flint.NewTensorMap()
	m.Set("wte.weight", flint.FromFloat32([]float32{1, 2, 3, 4}, 2, 2))
	m.Set("ids", flint.FromInt64([]int64{1, 2, 3}, 3))

	var buf bytes.Buffer
	require.NoError(t, WriteTensorMap(&buf, m))

	got, err := ReadTensorMap(&buf)
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())

	w := got.MustGet("wte.weight")
	require.Equal(t, []int{2, 2}, w.Shape())
	require.Equal(t, float32(3), w.F32At(1, 0))

	ids := got.MustGet("ids")
	require.Equal(t, int64(2), ids.I64At(1))
}

func TestTensorMapRejectsBadMagic(t *testing.T) {
	_, err := ReadTensorMap(bytes.NewReader([]byte("XXXX")))
	require.Error(t, err)
}
