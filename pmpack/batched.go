package pmpack

import "fmt"

// GEMMArgs describes one item of a batched GEMM call, generalizing the
// original engine's util::Span<const GEMMArgs> batch API (spec.md §4.3,
// §3 SUPPLEMENTED FEATURES).
type GEMMArgs struct {
	M, K, N     int
	TransA      bool
	TransB      bool
	A           []float32
	LDA         int
	B           []float32
	LDB         int
	C           []float32
	LDC         int
}

// BatchedGEMM runs GEMM independently over every item; items share no
// state and may be dispatched in any order (spec.md §5: "no
// cross-iteration dependencies").
func BatchedGEMM(args []GEMMArgs) {
	for _, a := range args {
		GEMM(a.M, a.K, a.N, a.TransA, a.TransB, a.A, a.LDA, a.B, a.LDB, a.C, a.LDC)
	}
}

// MixedGEMMArgs describes one item of a batched f32xint4 matmul. B is
// stored transposed (n rows of k packed int4 values, one scale per row
// since groupSizeB==K is required) per spec.md §4.3's mixed-precision
// precondition.
type MixedGEMMArgs struct {
	M, K, N    int
	A          []float32
	LDA        int
	BPacked    []byte
	BScales    []float32
	GroupSizeB int
	C          []float32
	LDC        int
}

// MixedGEMM computes C = A * dequantize(B)^T for a single item, where B
// is logically n x k with groupSizeB == k (one scale per output column,
// per spec.md §4.3). transB=true is implied by this layout and is the
// only supported orientation.
func MixedGEMM(m, k, n int, a []float32, lda int, bPacked []byte, bScales []float32, groupSizeB int, c []float32, ldc int) {
	requireLive()
	if groupSizeB != k {
		panic(fmt.Sprintf("pmpack: MixedGEMM requires groupSizeB(%d) == K(%d)", groupSizeB, k))
	}

	be := CurrentBackend()
	bytesPerRow := (k + 1) / 2

	if m == 1 {
		x := a[:k]
		for j := 0; j < n; j++ {
			rowPacked := bPacked[j*bytesPerRow : j*bytesPerRow+bytesPerRow]
			c[j] = DotF32Int4(be, x, rowPacked, bScales[j], k)
		}
		return
	}

	// M>1: dequantize B into an f32 scratch buffer (physically n x k,
	// i.e. transB=true layout for GEMM) and run the standard sgemm.
	scratch := make([]float32, n*k)
	for j := 0; j < n; j++ {
		rowPacked := bPacked[j*bytesPerRow : j*bytesPerRow+bytesPerRow]
		DequantizeGroup(rowPacked, bScales[j], k, scratch[j*k:j*k+k])
	}
	GEMM(m, k, n, false, true, a, lda, scratch, k, c, ldc)
}

// BatchedMixedGEMM runs MixedGEMM over a batch of A items against either
// one shared quantized B (len(bItems)==1) or one quantized B per A item
// (len(bItems)==len(aItems)); see DESIGN.md Open Question 3 for why this
// rule was chosen over the untested divergence in the original.
func BatchedMixedGEMM(aItems []MixedGEMMArgs, bItems []MixedGEMMArgs) {
	if len(bItems) != 1 && len(bItems) != len(aItems) {
		panic(fmt.Sprintf("pmpack: BatchedMixedGEMM requires len(bItems) in {1,%d}, got %d", len(aItems), len(bItems)))
	}
	for i, item := range aItems {
		b := bItems[0]
		if len(bItems) > 1 {
			b = bItems[i]
		}
		MixedGEMM(item.M, item.K, item.N, item.A, item.LDA, b.BPacked, b.BScales, b.GroupSizeB, item.C, item.LDC)
	}
}
