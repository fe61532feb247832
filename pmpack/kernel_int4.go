package pmpack

// QInt4F32 packs two signed 4-bit values per byte: the low nibble holds
// the first element, the high nibble the second. Unsigned nibble values
// in [0,15] represent signed values in [-8,7] via a bias of 8.

// unpackNibble extracts element i (0-based) from a packed int4 buffer as
// a signed value in [-8,7].
func unpackNibble(packed []byte, i int) int8 {
	b := packed[i/2]
	var nib byte
	if i%2 == 0 {
		nib = b & 0x0f
	} else {
		nib = (b >> 4) & 0x0f
	}
	return int8(nib) - 8
}

// DequantizeGroup dequantizes n elements (n even) of a packed int4
// buffer sharing one scale into dst, per spec.md §4.1: unsigned nibble
// in [0,15], subtract 8, multiply by scale.
func DequantizeGroup(packed []byte, scale float32, n int, dst []float32) {
	for i := 0; i < n; i++ {
		dst[i] = float32(unpackNibble(packed, i)) * scale
	}
}

// DequantizeInt4 dequantizes numel elements of a QInt4F32 buffer into
// dst, one scale per groupSize consecutive elements.
func DequantizeInt4(packed []byte, scales []float32, groupSize, numel int, dst []float32) {
	for g := 0; g*groupSize < numel; g++ {
		start := g * groupSize
		n := groupSize
		if start+n > numel {
			n = numel - start
		}
		DequantizeGroup(packed[start/2:], scales[g], n, dst[start:start+n])
	}
}

// dotF32Int4Scalar dots a dense f32 vector x against one dequantized
// group of a packed int4 vector sharing a single scale.
func dotF32Int4Scalar(x []float32, packed []byte, scale float32, n int) float32 {
	var sum float32
	for i := 0; i < n; i++ {
		sum += x[i] * float32(unpackNibble(packed, i)) * scale
	}
	return sum
}

// dotF32Int4AVX2 mirrors the original's "loads 16 packed bytes -> 32
// int8 -> 4 groups of 8 f32, scale-multiplies, FMAs into x" description:
// it processes 8 elements at a time before falling back to the scalar
// remainder, preserving accumulation order parity with the scalar path
// for reproducibility within a fixed thread count.
func dotF32Int4AVX2(x []float32, packed []byte, scale float32, n int) float32 {
	var sum float32
	i := 0
	for ; i+8 <= n; i += 8 {
		var group [8]float32
		DequantizeGroup(packed[i/2:], scale, 8, group[:])
		for l := 0; l < 8; l++ {
			sum += x[i+l] * group[l]
		}
	}
	for ; i < n; i++ {
		sum += x[i] * float32(unpackNibble(packed[i/2:], i%2)) * scale
	}
	return sum
}

// DotF32Int4 dots x (length n, n == groupSize) against one packed int4
// column sharing scale, dispatching per the active backend.
func DotF32Int4(b Backend, x []float32, packed []byte, scale float32, n int) float32 {
	if b == BackendAVX2 || b == BackendAVX512 {
		return dotF32Int4AVX2(x, packed, scale, n)
	}
	return dotF32Int4Scalar(x, packed, scale, n)
}
