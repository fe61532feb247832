package pmpack

// Cache-blocking parameters per backend, per spec.md §4.3: 288/512/4096
// for scalar and AVX-2, 576/512/4096 for AVX-512.
type blockParams struct{ mc, kc, nc int }

func blockParamsFor(b Backend) blockParams {
	if b == BackendAVX512 {
		return blockParams{mc: 576, kc: 512, nc: 4096}
	}
	return blockParams{mc: 288, kc: 512, nc: 4096}
}

// GEMM computes C[m,n] = A[m,k] * B[k,n] using the packed Goto-style
// five-loop algorithm of spec.md §4.3. C is zeroed before accumulation.
//
// A is read as a logical m x k matrix: row-major with leading dimension
// lda if !transA, or physically k x m row-major (so logically
// transposed) with leading dimension lda if transA. B is read
// symmetrically as logical k x n. C is row-major with leading dimension
// ldc.
//
// M==1 and N==1 are dispatched to GEMV per spec.md §4.3; callers that
// already know they have a vector case may call GEMV directly. A strided
// vector operand is first gathered into a contiguous buffer. For N==1, C
// is written with unit stride: ldc is not consulted.
func GEMM(m, k, n int, transA, transB bool, a []float32, lda int, b []float32, ldb int, c []float32, ldc int) {
	requireLive()

	if m == 1 {
		if transA && lda != 1 {
			av := make([]float32, k)
			for p := range av {
				av[p] = a[p*lda]
			}
			a = av
		}
		gemvRowVecMat(k, n, transB, a, b, ldb, c)
		return
	}
	if n == 1 {
		if !transB && ldb != 1 {
			bv := make([]float32, k)
			for p := range bv {
				bv[p] = b[p*ldb]
			}
			b = bv
		}
		gemvMatColVec(m, k, transA, a, lda, b, c)
		return
	}

	zeroC(c, m, n, ldc)

	be := CurrentBackend()
	bp := blockParamsFor(be)
	mr, nr, kernel := tileFor(be)

	getA := matrixGetter(a, lda, transA)
	getB := matrixGetter(b, ldb, transB)

	bTilde := make([]float32, ((bp.nc+nr-1)/nr)*nr*bp.kc)
	aTilde := make([]float32, ((bp.mc+mr-1)/mr)*mr*bp.kc)

	for nc0 := 0; nc0 < n; nc0 += bp.nc {
		nc := min(bp.nc, n-nc0)
		for kc0 := 0; kc0 < k; kc0 += bp.kc {
			kc := min(bp.kc, k-kc0)

			bGet := func(p, j int) float32 { return getB(kc0+p, nc0+j) }
			packB(bTilde, bGet, kc, nc, nr)

			for mc0 := 0; mc0 < m; mc0 += bp.mc {
				mc := min(bp.mc, m-mc0)

				aGet := func(i, p int) float32 { return getA(mc0+i, kc0+p) }
				packA(aTilde, aGet, mc, kc, mr)

				runMacroKernel(kernel, aTilde, bTilde, c, ldc, mc0, nc0, mc, nc, kc, mr, nr, be)
			}
		}
	}
}

// runMacroKernel is loop 4 (split N by NR, the parallelism boundary of
// spec.md §4.3/§9) and loop 5 (split M by MR) of the five-loop driver.
// Loop 4's column panels write disjoint regions of C, so they fan out
// across the process-wide thread count with no shared mutable state
// (spec.md §5).
func runMacroKernel(kernel microKernelFunc, aTilde, bTilde []float32, c []float32, ldc, mc0, nc0, mc, nc, kc, mr, nr int, be Backend) {
	nPanels := (nc + nr - 1) / nr
	mPanels := (mc + mr - 1) / mr

	parallelForPanels(nPanels, GetNumThreads(), func(pj int) {
		bPanel := bTilde[pj*nr*kc : (pj+1)*nr*kc]
		jBase := pj * nr
		jWidth := min(nr, nc-jBase)

		var localTile [512]float32 // large enough for any (mr,nr) tile in use
		edgeTile := localTile[:mr*nr]

		for pi := 0; pi < mPanels; pi++ {
			aPanel := aTilde[pi*mr*kc : (pi+1)*mr*kc]
			iBase := pi * mr
			iWidth := min(mr, mc-iBase)

			if iWidth == mr && jWidth == nr {
				// Direct tile: write straight into C at its offset.
				cOff := (mc0+iBase)*ldc + nc0 + jBase
				kernel(kc, aPanel, bPanel, c[cOff:], ldc)
				continue
			}

			// Edge tile: accumulate into a zero-padded scratch buffer,
			// then copy the valid region back.
			for i := range edgeTile {
				edgeTile[i] = 0
			}
			kernel(kc, aPanel, bPanel, edgeTile, nr)
			for i := 0; i < iWidth; i++ {
				cRow := c[(mc0+iBase+i)*ldc+nc0+jBase : (mc0+iBase+i)*ldc+nc0+jBase+jWidth]
				tRow := edgeTile[i*nr : i*nr+jWidth]
				for j := 0; j < jWidth; j++ {
					cRow[j] += tRow[j]
				}
			}
		}
	})
}

func zeroC(c []float32, m, n, ldc int) {
	for i := 0; i < m; i++ {
		row := c[i*ldc : i*ldc+n]
		for j := range row {
			row[j] = 0
		}
	}
}

// requireLive panics if PMPack has not been initialized.
// GEMM entry points must check liveness without re-deriving the
// package-level mutex dance in pmpack.go.
func requireLive() {
	mu.Lock()
	defer mu.Unlock()
	requireLiveLocked()
}
