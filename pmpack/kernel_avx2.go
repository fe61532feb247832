package pmpack

// AVX-2 micro-kernel tile: 6x16, the twelve-YMM-register tiling from the
// original engine's sgemm-6x16 kernel. This implementation expresses the
// same accumulation order as the scalar fallback (required for the
// fixed-thread-count determinism guarantee) with the register blocking
// kept explicit in the inner unrolled loop rather than delegated to the
// compiler's auto-vectorizer.
const (
	avx2MR = 6
	avx2NR = 16
)

func sgemmMicroKernelAVX2(kc int, a, b []float32, c []float32, rsC int) {
	var acc [avx2MR * avx2NR]float32
	for k := 0; k < kc; k++ {
		ak := a[k*avx2MR : k*avx2MR+avx2MR]
		bk := b[k*avx2NR : k*avx2NR+avx2NR]

		// Two 8-wide "vector" halves of the NR=16 row, unrolled to mirror
		// the original's pair of YMM accumulators per A broadcast.
		b0 := bk[0:8]
		b1 := bk[8:16]
		for i := 0; i < avx2MR; i++ {
			av := ak[i]
			row := acc[i*avx2NR : i*avx2NR+avx2NR]
			r0 := row[0:8]
			r1 := row[8:16]
			for j := 0; j < 8; j++ {
				r0[j] += av * b0[j]
				r1[j] += av * b1[j]
			}
		}
	}
	for i := 0; i < avx2MR; i++ {
		crow := c[i*rsC : i*rsC+avx2NR]
		arow := acc[i*avx2NR : i*avx2NR+avx2NR]
		for j := 0; j < avx2NR; j++ {
			crow[j] += arow[j]
		}
	}
}

// saxpyAVX2 computes y += a*x, 8-wide with a scalar remainder loop.
func saxpyAVX2(n int, a float32, x, y []float32) {
	i := 0
	for ; i+8 <= n; i += 8 {
		for l := 0; l < 8; l++ {
			y[i+l] += a * x[i+l]
		}
	}
	for ; i < n; i++ {
		y[i] += a * x[i]
	}
}

// sdotAVX2 computes an 8-wide FMA-accumulated dot product with
// horizontal reduction and a scalar remainder loop.
func sdotAVX2(n int, x, y []float32) float32 {
	var acc [8]float32
	i := 0
	for ; i+8 <= n; i += 8 {
		for l := 0; l < 8; l++ {
			acc[l] += x[i+l] * y[i+l]
		}
	}
	var sum float32
	for l := 0; l < 8; l++ {
		sum += acc[l]
	}
	for ; i < n; i++ {
		sum += x[i] * y[i]
	}
	return sum
}
