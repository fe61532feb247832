package pmpack

// Scalar micro-kernel tile: portable fallback, 6x16 register-blocked in
// spirit (a 6x16 accumulator tile held in local variables would be the
// natural lowering on a real register machine; here it is a small local
// array walked by the compiler).
const (
	scalarMR = 6
	scalarNR = 16
)

// sgemmMicroKernelScalar accumulates a scalarMR x scalarNR tile of C.
// a is a packed KC x scalarMR panel (row-major, a[k*scalarMR+i]); b is a
// packed KC x scalarNR panel (row-major, b[k*scalarNR+j]); c is written
// with row stride rsC, c[i*rsC+j] += sum_k a[k,i]*b[k,j].
func sgemmMicroKernelScalar(kc int, a, b []float32, c []float32, rsC int) {
	var acc [scalarMR * scalarNR]float32
	for k := 0; k < kc; k++ {
		ak := a[k*scalarMR : k*scalarMR+scalarMR]
		bk := b[k*scalarNR : k*scalarNR+scalarNR]
		for i := 0; i < scalarMR; i++ {
			av := ak[i]
			row := acc[i*scalarNR : i*scalarNR+scalarNR]
			for j := 0; j < scalarNR; j++ {
				row[j] += av * bk[j]
			}
		}
	}
	for i := 0; i < scalarMR; i++ {
		crow := c[i*rsC : i*rsC+scalarNR]
		arow := acc[i*scalarNR : i*scalarNR+scalarNR]
		for j := 0; j < scalarNR; j++ {
			crow[j] += arow[j]
		}
	}
}

// saxpyScalar computes y += a*x over n elements.
func saxpyScalar(n int, a float32, x, y []float32) {
	for i := 0; i < n; i++ {
		y[i] += a * x[i]
	}
}

// sdotScalar computes the dot product of x and y over n elements.
func sdotScalar(n int, x, y []float32) float32 {
	var sum float32
	for i := 0; i < n; i++ {
		sum += x[i] * y[i]
	}
	return sum
}
