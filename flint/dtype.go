// Package flint implements the tensor core of the runtime: a rank-n
// shape/stride abstraction over refcounted storage, with element types
// F32, I64, and the packed 4-bit QInt4F32, plus the CPU operator set
// that bridges tensors to the pmpack kernel library.
//
// Grounded on original_source/src/flint/tensor_data.h, dtype.h and
// cpu_operators.h.
package flint

import "fmt"

// DType tags the element type of a tensor's storage.
type DType int

const (
	Unknown DType = iota
	F32
	I64
	QInt4F32
)

func (d DType) String() string {
	switch d {
	case F32:
		return "f32"
	case I64:
		return "i64"
	case QInt4F32:
		return "qint4f32"
	default:
		return "unknown"
	}
}

// ElemSize returns the size in bytes of one element of d for types with
// a fixed per-element width. QInt4F32 packs two elements per byte and
// has no single-element size; callers must use PackedBytes instead.
func (d DType) ElemSize() int {
	switch d {
	case F32:
		return 4
	case I64:
		return 8
	default:
		panic(fmt.Sprintf("flint: ElemSize undefined for dtype %v", d))
	}
}

// IsValid reports whether d is one of the defined, non-Unknown dtypes.
func (d DType) IsValid() bool {
	switch d {
	case F32, I64, QInt4F32:
		return true
	default:
		return false
	}
}

// PackedBytes returns the number of bytes needed to store numel
// QInt4F32 elements (two signed 4-bit values per byte, rounded up).
func PackedBytes(numel int) int {
	return (numel + 1) / 2
}
