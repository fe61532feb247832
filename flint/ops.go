package flint

import (
	"fmt"
	"math"

	"github.com/llamacore/flint/pmpack"
)

// Lookup implements the `lookup` operator: table[V,D], idx[N,L] (i64) ->
// out[N,L,D], one row copy per index (spec.md §4.4).
func Lookup(table, idx *Tensor) *Tensor {
	table.requireRank(2)
	idx.requireRank(2)
	idx.requireDType(I64)
	table.requireDType(F32)

	n, l, d := idx.Dim(0), idx.Dim(1), table.Dim(1)
	out := CreateTensor(F32, n, l, d)
	dst := out.RawF32()
	src := table.Contiguous().RawF32()

	pos := 0
	for i := 0; i < n; i++ {
		for j := 0; j < l; j++ {
			id := int(idx.I64At(i, j))
			copy(dst[pos:pos+d], src[id*d:id*d+d])
			pos += d
		}
	}
	return out
}

// batchIndices converts a flattened row-major index over shape into its
// per-dimension indices.
func batchIndices(flat int, shape []int) []int {
	idx := make([]int, len(shape))
	for d := len(shape) - 1; d >= 0; d-- {
		idx[d] = flat % shape[d]
		flat /= shape[d]
	}
	return idx
}

// batchMatrix returns the 2-D trailing-matrix view of t for the given
// flattened batch index over t's leading nBatch dimensions.
func batchMatrix(t *Tensor, flatBatch, nBatch int) *Tensor {
	cur := t
	idx := batchIndices(flatBatch, t.shape[:nBatch])
	for d := 0; d < nBatch; d++ {
		cur = cur.Slice(0, idx[d], idx[d]+1).Squeeze(0)
	}
	return cur
}

// matmul2D multiplies two rank-2 tensors, bridging to pmpack.
func matmul2D(a, b *Tensor) *Tensor {
	if a.Dim(1) != b.Dim(0) {
		panic(fmt.Sprintf("flint: matmul dim mismatch A%v x B%v", a.shape, b.shape))
	}
	m, k, n := a.Dim(0), a.Dim(1), b.Dim(1)
	out := CreateTensor(F32, m, n)

	ac := a.Contiguous()
	switch b.DType() {
	case F32:
		bc := b.Contiguous()
		pmpack.GEMM(m, k, n, false, false, ac.RawF32()[:m*k], k, bc.RawF32()[:k*n], n, out.RawF32()[:m*n], n)
	case QInt4F32:
		if !b.IsContiguous() {
			panic("flint: matmul against a QInt4F32 tensor requires it to be contiguous")
		}
		packed, scales := b.RawQuantized()
		pmpack.MixedGEMM(m, k, n, ac.RawF32()[:m*k], k, packed, scales, b.GroupSize(), out.RawF32()[:m*n], n)
	default:
		panic(fmt.Sprintf("flint: matmul unsupported B dtype %v", b.DType()))
	}
	return out
}

// MatMul implements the `matmul` operator (spec.md §4.4): A.rank>=2,
// B.rank>=2, A.rank>=B.rank, B broadcast over A's leading dims.
func MatMul(a, b *Tensor) *Tensor {
	if a.Rank() < 2 || b.Rank() < 2 || a.Rank() < b.Rank() {
		panic(fmt.Sprintf("flint: matmul requires A.rank>=2, B.rank>=2, A.rank>=B.rank; got %d, %d", a.Rank(), b.Rank()))
	}

	if a.Rank() == 2 && b.Rank() == 2 {
		return matmul2D(a, b)
	}

	nBatchA := a.Rank() - 2
	nBatchB := b.Rank() - 2
	for i := 0; i < nBatchB; i++ {
		if a.shape[nBatchA-nBatchB+i] != b.shape[i] {
			panic(fmt.Sprintf("flint: matmul batch dim mismatch A%v B%v", a.shape, b.shape))
		}
	}

	batchCountA := numel(a.shape[:nBatchA])
	batchCountB := numel(b.shape[:nBatchB])

	outShape := append(append([]int(nil), a.shape[:nBatchA]...), a.Dim(a.Rank()-2), b.Dim(b.Rank()-1))
	out := CreateTensor(F32, outShape...)
	mOut, nOut := a.Dim(a.Rank()-2), b.Dim(b.Rank()-1)

	for i := 0; i < batchCountA; i++ {
		aMat := batchMatrix(a, i, nBatchA)
		var bMat *Tensor
		if nBatchB == 0 {
			bMat = b
		} else {
			bMat = batchMatrix(b, i%batchCountB, nBatchB)
		}
		res := matmul2D(aMat, bMat)
		dst := batchMatrix(out, i, nBatchA)
		for r := 0; r < mOut; r++ {
			for c := 0; c < nOut; c++ {
				dst.F32Set(res.F32At(r, c), r, c)
			}
		}
	}
	return out
}

// Add implements the `add` operator (spec.md §4.4): B broadcasts against
// A's trailing dims by wrap-around index over A's flattened layout.
func Add(a, b *Tensor) *Tensor {
	if b.Rank() > a.Rank() {
		panic("flint: add requires B.rank <= A.rank")
	}
	for i := 1; i <= b.Rank(); i++ {
		if a.shape[a.Rank()-i] != b.shape[b.Rank()-i] {
			panic(fmt.Sprintf("flint: add trailing shape mismatch A%v B%v", a.shape, b.shape))
		}
	}

	out := a.Contiguous()
	bc := b.Contiguous().RawF32()
	dst := out.RawF32()[:numel(a.shape)]
	bn := numel(b.shape)
	for i := range dst {
		dst[i] += bc[i%bn]
	}
	return out
}

// MulScalar implements the `mul` operator against a scalar.
func MulScalar(a *Tensor, s float32) *Tensor {
	out := a.Contiguous()
	dst := out.RawF32()[:numel(a.shape)]
	for i := range dst {
		dst[i] *= s
	}
	return out
}

// Softmax implements the `softmax` operator over the innermost
// dimension, using the exp(x - logsumexp(x)) form, with the reduction
// accumulated in f64 (spec.md §4.4).
func Softmax(a *Tensor) *Tensor {
	out := a.Contiguous()
	d := a.shape[a.Rank()-1]
	data := out.RawF32()[:numel(a.shape)]

	for base := 0; base < len(data); base += d {
		row := data[base : base+d]
		maxV := row[0]
		for _, v := range row[1:] {
			if v > maxV {
				maxV = v
			}
		}
		if math.IsInf(float64(maxV), -1) {
			for i := range row {
				row[i] = 0
			}
			continue
		}
		var sum float64
		for _, v := range row {
			sum += math.Exp(float64(v - maxV))
		}
		logSum := maxV + float32(math.Log(sum))
		for i, v := range row {
			row[i] = float32(math.Exp(float64(v - logSum)))
		}
	}
	return out
}

// GELU implements the `gelu` operator using the tanh approximation
// (spec.md §4.4).
func GELU(a *Tensor) *Tensor {
	out := a.Contiguous()
	dst := out.RawF32()[:numel(a.shape)]
	const c = 0.7978845608028654 // sqrt(2/pi)
	for i, x := range dst {
		inner := c * (float64(x) + 0.044715*float64(x)*float64(x)*float64(x))
		dst[i] = float32(0.5 * float64(x) * (1 + math.Tanh(inner)))
	}
	return out
}

// LayerNorm implements the `layerNorm` operator: unbiased variance over
// the trailing dimension, normalize, then scale+bias (spec.md §4.4).
func LayerNorm(a, weight, bias *Tensor, eps float64) *Tensor {
	d := a.shape[a.Rank()-1]
	if weight.Numel() != d || bias.Numel() != d {
		panic(fmt.Sprintf("flint: layerNorm weight/bias length must equal trailing dim %d", d))
	}

	out := CreateTensor(F32, a.shape...)
	copyStrided(a, out)
	data := out.RawF32()[:numel(a.shape)]
	w := weight.Contiguous().RawF32()[:d]
	b := bias.Contiguous().RawF32()[:d]

	for base := 0; base < len(data); base += d {
		row := data[base : base+d]
		var mean float64
		for _, v := range row {
			mean += float64(v)
		}
		mean /= float64(d)

		var variance float64
		for _, v := range row {
			diff := float64(v) - mean
			variance += diff * diff
		}
		variance /= float64(max(d-1, 1))

		invStd := 1.0 / math.Sqrt(variance+eps)
		for i, v := range row {
			norm := (float64(v) - mean) * invStd
			row[i] = float32(norm)*w[i] + b[i]
		}
	}
	return out
}

// CausalMask builds an [L,L] additive mask: 0 on/below the diagonal,
// -inf above (spec.md §4.4).
func CausalMask(l int) *Tensor {
	out := CreateTensor(F32, l, l)
	data := out.RawF32()
	for i := 0; i < l; i++ {
		row := data[i*l : i*l+l]
		for j := 0; j < l; j++ {
			if j > i {
				row[j] = float32(math.Inf(-1))
			}
		}
	}
	return out
}

// Cat implements the `cat` operator: concatenate A and B along dim,
// requiring equal rank and equal size on every other dim (spec.md §4.4).
func Cat(a, b *Tensor, dim int) *Tensor {
	if a.Rank() != b.Rank() {
		panic("flint: cat requires equal rank")
	}
	for i := range a.shape {
		if i != dim && a.shape[i] != b.shape[i] {
			panic(fmt.Sprintf("flint: cat dim %d mismatch A%v B%v", i, a.shape, b.shape))
		}
	}

	outShape := append([]int(nil), a.shape...)
	outShape[dim] = a.shape[dim] + b.shape[dim]
	out := CreateTensor(a.DType(), outShape...)

	copyInto(out, a, dim, 0)
	copyInto(out, b, dim, a.shape[dim])
	return out
}

func copyInto(dst, src *Tensor, dim, offset int) {
	idx := make([]int, len(src.shape))
	shape := src.shape
	for {
		dstIdx := append([]int(nil), idx...)
		dstIdx[dim] += offset
		switch src.DType() {
		case F32:
			dst.F32Set(src.F32At(idx...), dstIdx...)
		case I64:
			dst.I64Set(src.I64At(idx...), dstIdx...)
		default:
			panic(fmt.Sprintf("flint: cat unsupported dtype %v", src.DType()))
		}
		if !incrementIndex(idx, shape) {
			return
		}
	}
}
