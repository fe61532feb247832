package pmpack

// getterFunc reads one logical element of a matrix given its logical
// (row, col) indices, absorbing transpose and leading-dimension handling
// so the packing routines below never need four separate copy paths.
type getterFunc func(row, col int) float32

// rowMajorGetter returns a getter over a row-major buffer with leading
// dimension ld, i.e. elem(i,j) = buf[i*ld+j].
func rowMajorGetter(buf []float32, ld int) getterFunc {
	return func(i, j int) float32 { return buf[i*ld+j] }
}

// transposedGetter returns a getter over a buffer physically stored as
// the transpose of the logical matrix (physical leading dimension ld
// over the logical column count), i.e. elem(i,j) = buf[j*ld+i].
func transposedGetter(buf []float32, ld int) getterFunc {
	return func(i, j int) float32 { return buf[j*ld+i] }
}

// matrixGetter picks the row-major or transposed accessor for a logical
// rows x cols matrix depending on trans.
func matrixGetter(buf []float32, ld int, trans bool) getterFunc {
	if trans {
		return transposedGetter(buf, ld)
	}
	return rowMajorGetter(buf, ld)
}

// packA packs an mc x kc sub-block of A (logical row p of a larger
// matrix reached through get, offset already applied by the caller)
// into Ã, row-blocks of height mr, depth-major: dst[panel][k][ii].
// Incomplete trailing panels are zero-padded.
func packA(dst []float32, get getterFunc, mc, kc, mr int) {
	panels := (mc + mr - 1) / mr
	for p := 0; p < panels; p++ {
		base := p * mr * kc
		rowBase := p * mr
		for k := 0; k < kc; k++ {
			off := base + k*mr
			for ii := 0; ii < mr; ii++ {
				row := rowBase + ii
				if row < mc {
					dst[off+ii] = get(row, k)
				} else {
					dst[off+ii] = 0
				}
			}
		}
	}
}

// packB packs a kc x nc sub-block of B into B̃, column-blocks of width
// nr, depth-major: dst[panel][k][jj]. Incomplete trailing panels are
// zero-padded.
func packB(dst []float32, get getterFunc, kc, nc, nr int) {
	panels := (nc + nr - 1) / nr
	for p := 0; p < panels; p++ {
		base := p * nr * kc
		colBase := p * nr
		for k := 0; k < kc; k++ {
			off := base + k*nr
			for jj := 0; jj < nr; jj++ {
				col := colBase + jj
				if col < nc {
					dst[off+jj] = get(k, col)
				} else {
					dst[off+jj] = 0
				}
			}
		}
	}
}
