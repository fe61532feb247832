package flint

// contiguousStrides computes the row-major strides for shape, in
// elements: the rightmost stride is 1 and each preceding stride equals
// the product of shape and stride to its right (spec.md §3).
func contiguousStrides(shape []int) []int {
	n := len(shape)
	stride := make([]int, n)
	acc := 1
	for i := n - 1; i >= 0; i-- {
		stride[i] = acc
		acc *= shape[i]
	}
	return stride
}

// numel returns the element count of shape (1 for rank 0, the scalar
// case).
func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// isContiguous reports whether stride matches the row-major layout for
// shape on every dimension of size other than 1 (spec.md §3's
// contiguity invariant).
func isContiguous(shape, stride []int) bool {
	want := contiguousStrides(shape)
	if len(want) != len(stride) {
		return false
	}
	for i := range want {
		if shape[i] != 1 && want[i] != stride[i] {
			// A size-1 dimension's stride is unconstrained; any value is
			// consistent with contiguity since it is never indexed past 0.
			return false
		}
	}
	return true
}

// cloneInts copies s into a freshly allocated slice that is never nil,
// even when s is empty — needed so a rank-0 scalar's shape (len 0)
// stays distinguishable from the rank=-1 empty-tensor sentinel (nil
// shape, spec.md §3).
func cloneInts(s []int) []int {
	out := make([]int, len(s))
	copy(out, s)
	return out
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
