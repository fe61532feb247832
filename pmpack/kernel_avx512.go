package pmpack

// AVX-512 micro-kernel tile: 12x32, the 24-ZMM-register tiling from the
// original engine's sgemm-12x32 kernel (two ZMM vectors of 16 lanes per
// row, broadcasting each A element and FMA-ing across both).
const (
	avx512MR = 12
	avx512NR = 32
)

func sgemmMicroKernelAVX512(kc int, a, b []float32, c []float32, rsC int) {
	var acc [avx512MR * avx512NR]float32
	for k := 0; k < kc; k++ {
		ak := a[k*avx512MR : k*avx512MR+avx512MR]
		bk := b[k*avx512NR : k*avx512NR+avx512NR]

		b0 := bk[0:16]
		b1 := bk[16:32]
		for i := 0; i < avx512MR; i++ {
			av := ak[i]
			row := acc[i*avx512NR : i*avx512NR+avx512NR]
			r0 := row[0:16]
			r1 := row[16:32]
			for j := 0; j < 16; j++ {
				r0[j] += av * b0[j]
				r1[j] += av * b1[j]
			}
		}
	}
	for i := 0; i < avx512MR; i++ {
		crow := c[i*rsC : i*rsC+avx512NR]
		arow := acc[i*avx512NR : i*avx512NR+avx512NR]
		for j := 0; j < avx512NR; j++ {
			crow[j] += arow[j]
		}
	}
}
