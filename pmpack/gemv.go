package pmpack

// gemvRowVecMat handles the M==1 case: c[1,n] = a[1,k] * B[k,n]. transB
// selects whether B is physically stored as n x k (transposed) with
// leading dimension ldb over k, or k x n row-major with ldb over n.
func gemvRowVecMat(k, n int, transB bool, a []float32, b []float32, ldb int, c []float32) {
	be := CurrentBackend()
	for j := range c[:n] {
		c[j] = 0
	}

	if !transB {
		for p := 0; p < k; p++ {
			av := a[p]
			if av == 0 {
				continue
			}
			saxpy(be, n, av, b[p*ldb:p*ldb+n], c)
		}
		return
	}

	get := transposedGetter(b, ldb)
	for j := 0; j < n; j++ {
		var sum float32
		for p := 0; p < k; p++ {
			sum += a[p] * get(p, j)
		}
		c[j] = sum
	}
}

// gemvMatColVec handles the N==1 case: c[m,1] = A[m,k] * b[k,1]. transA
// selects whether A is physically stored as k x m (transposed) with
// leading dimension lda over m, or m x k row-major with lda over k.
func gemvMatColVec(m, k int, transA bool, a []float32, lda int, b []float32, c []float32) {
	be := CurrentBackend()
	for i := range c[:m] {
		c[i] = 0
	}

	if transA {
		// A physically k x m row-major: column p of logical A is a
		// contiguous row a[p*lda : p*lda+m].
		for p := 0; p < k; p++ {
			bv := b[p]
			if bv == 0 {
				continue
			}
			saxpy(be, m, bv, a[p*lda:p*lda+m], c)
		}
		return
	}

	for i := 0; i < m; i++ {
		c[i] = sdot(be, k, a[i*lda:i*lda+k], b[:k])
	}
}
