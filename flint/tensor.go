package flint

import "fmt"

// kMaxRank is the largest rank of the on-disk tensor-stream format.
// modelfile.ReadTensor checks the same bound through its own constant;
// Tensor itself does not enforce it.
const kMaxRank = 8

// Tensor is a value type: a strong reference to a TensorStorage, an
// element offset into that storage (the "data pointer", which may start
// past the storage's base for a slice view), and a shape/stride vector.
// Multiple Tensors may share one storage while exposing different
// shapes, strides, and offsets (spec.md §3).
//
// A nil Shape denotes the rank=-1 empty-tensor sentinel (spec.md §3);
// a non-nil empty Shape ([]int{}) is a rank-0 scalar.
type Tensor struct {
	storage *TensorStorage
	offset  int
	shape   []int
	stride  []int
}

// Empty returns the rank=-1 empty-tensor sentinel.
func Empty() *Tensor {
	return &Tensor{}
}

// IsEmpty reports whether t is the rank=-1 sentinel.
func (t *Tensor) IsEmpty() bool {
	return t.shape == nil
}

// CreateTensor allocates a new zero-valued, contiguous tensor of dtype
// and shape. For QInt4F32, groupSize must be supplied via
// CreateQuantized instead.
func CreateTensor(dtype DType, shape ...int) *Tensor {
	if dtype == QInt4F32 {
		panic("flint: use CreateQuantized for QInt4F32 tensors")
	}
	n := numel(shape)
	return &Tensor{
		storage: newStorage(dtype, n, 0),
		shape:   cloneInts(shape),
		stride:  contiguousStrides(shape),
	}
}

// CreateQuantized allocates a new zero-valued QInt4F32 tensor of shape
// with the given groupSize (spec.md §4.1: one scale per groupSize
// consecutive elements of the flattened tensor).
func CreateQuantized(groupSize int, shape ...int) *Tensor {
	n := numel(shape)
	return &Tensor{
		storage: newStorage(QInt4F32, n, groupSize),
		shape:   cloneInts(shape),
		stride:  contiguousStrides(shape),
	}
}

// FromFloat32 wraps an existing contiguous row-major slice as a tensor
// without copying.
func FromFloat32(data []float32, shape ...int) *Tensor {
	if numel(shape) != len(data) {
		panic(fmt.Sprintf("flint: shape %v does not match data length %d", shape, len(data)))
	}
	return &Tensor{
		storage: &TensorStorage{dtype: F32, numel: len(data), device: CPU, f32: data, refs: 1},
		shape:   cloneInts(shape),
		stride:  contiguousStrides(shape),
	}
}

// FromInt64 wraps an existing contiguous row-major slice as a tensor
// without copying.
func FromInt64(data []int64, shape ...int) *Tensor {
	if numel(shape) != len(data) {
		panic(fmt.Sprintf("flint: shape %v does not match data length %d", shape, len(data)))
	}
	return &Tensor{
		storage: &TensorStorage{dtype: I64, numel: len(data), device: CPU, i64: data, refs: 1},
		shape:   cloneInts(shape),
		stride:  contiguousStrides(shape),
	}
}

func (t *Tensor) DType() DType    { return t.storage.dtype }
func (t *Tensor) Device() Device  { return t.storage.device }
func (t *Tensor) Rank() int {
	if t.shape == nil {
		return -1
	}
	return len(t.shape)
}
func (t *Tensor) Shape() []int  { return t.shape }
func (t *Tensor) Stride() []int { return t.stride }
func (t *Tensor) Dim(i int) int { return t.shape[i] }
func (t *Tensor) Numel() int    { return numel(t.shape) }

func (t *Tensor) IsContiguous() bool {
	return isContiguous(t.shape, t.stride)
}

// GroupSize returns the QInt4F32 quantization group size, or 0 for
// other dtypes.
func (t *Tensor) GroupSize() int { return t.storage.groupSize }

func (t *Tensor) requireRank(n int) {
	if t.Rank() != n {
		panic(fmt.Sprintf("flint: expected rank %d, got %d (shape %v)", n, t.Rank(), t.shape))
	}
}

func (t *Tensor) requireDType(d DType) {
	if t.DType() != d {
		panic(fmt.Sprintf("flint: expected dtype %v, got %v", d, t.DType()))
	}
}

// linIndex computes the flat storage offset for a full multi-index.
func (t *Tensor) linIndex(idx []int) int {
	off := t.offset
	for i, ix := range idx {
		off += ix * t.stride[i]
	}
	return off
}

// F32At reads one element by multi-index from an F32 tensor.
func (t *Tensor) F32At(idx ...int) float32 {
	t.requireDType(F32)
	return t.storage.f32[t.linIndex(idx)]
}

// F32Set writes one element by multi-index into an F32 tensor.
func (t *Tensor) F32Set(v float32, idx ...int) {
	t.requireDType(F32)
	t.storage.f32[t.linIndex(idx)] = v
}

// I64At reads one element by multi-index from an I64 tensor.
func (t *Tensor) I64At(idx ...int) int64 {
	t.requireDType(I64)
	return t.storage.i64[t.linIndex(idx)]
}

// I64Set writes one element by multi-index into an I64 tensor.
func (t *Tensor) I64Set(v int64, idx ...int) {
	t.requireDType(I64)
	t.storage.i64[t.linIndex(idx)] = v
}

// RawF32 exposes the tensor's F32 backing array from the tensor's
// offset onward, ignoring shape/stride. It is used by operators that need
// direct access to contiguous data (e.g. feeding pmpack) after first
// checking IsContiguous.
func (t *Tensor) RawF32() []float32 {
	t.requireDType(F32)
	return t.storage.f32[t.offset:]
}

// RawI64 exposes the tensor's full backing array for I64 storage.
func (t *Tensor) RawI64() []int64 {
	t.requireDType(I64)
	return t.storage.i64[t.offset:]
}

// RawQuantized exposes the packed int4 bytes and per-group scales for a
// QInt4F32 tensor.
func (t *Tensor) RawQuantized() (packed []byte, scales []float32) {
	t.requireDType(QInt4F32)
	return t.storage.qint, t.storage.scl
}

// view returns a new Tensor sharing this tensor's storage, with the
// given shape/stride/offset. It is the common constructor used by
// Transpose/Slice/Squeeze/Unsqueeze.
func (t *Tensor) view(shape, stride []int, offset int) *Tensor {
	t.storage.retain()
	return &Tensor{storage: t.storage, offset: offset, shape: shape, stride: stride}
}

// Transpose swaps dims i and j; it never touches data (spec.md §3).
func (t *Tensor) Transpose(i, j int) *Tensor {
	shape := cloneInts(t.shape)
	stride := cloneInts(t.stride)
	shape[i], shape[j] = shape[j], shape[i]
	stride[i], stride[j] = stride[j], stride[i]
	return t.view(shape, stride, t.offset)
}

// Slice returns the half-open range [lo,hi) of dim d as a view.
func (t *Tensor) Slice(d, lo, hi int) *Tensor {
	if lo < 0 || hi > t.shape[d] || lo > hi {
		panic(fmt.Sprintf("flint: invalid slice [%d,%d) of dim %d (size %d)", lo, hi, d, t.shape[d]))
	}
	shape := cloneInts(t.shape)
	shape[d] = hi - lo
	return t.view(shape, cloneInts(t.stride), t.offset+lo*t.stride[d])
}

// Unsqueeze inserts a size-1 dimension at d.
func (t *Tensor) Unsqueeze(d int) *Tensor {
	shape := make([]int, 0, len(t.shape)+1)
	stride := make([]int, 0, len(t.stride)+1)
	shape = append(shape, t.shape[:d]...)
	shape = append(shape, 1)
	shape = append(shape, t.shape[d:]...)
	stride = append(stride, t.stride[:d]...)
	stride = append(stride, 1)
	stride = append(stride, t.stride[d:]...)
	return t.view(shape, stride, t.offset)
}

// Squeeze removes the size-1 dimension at d.
func (t *Tensor) Squeeze(d int) *Tensor {
	if t.shape[d] != 1 {
		panic(fmt.Sprintf("flint: cannot squeeze dim %d with size %d", d, t.shape[d]))
	}
	shape := append(cloneInts(t.shape[:d]), t.shape[d+1:]...)
	stride := append(cloneInts(t.stride[:d]), t.stride[d+1:]...)
	return t.view(shape, stride, t.offset)
}

// Reshape reinterprets a contiguous tensor's elements under a new
// shape sharing the same storage. t must already be contiguous
// (callers needing to reshape a non-contiguous view must call
// Contiguous first); this is a fatal programmer error otherwise, since
// a reshape of a strided view has no single well-defined stride vector
// in general.
func (t *Tensor) Reshape(shape ...int) *Tensor {
	if !t.IsContiguous() {
		panic("flint: Reshape requires a contiguous tensor")
	}
	if numel(shape) != t.Numel() {
		panic(fmt.Sprintf("flint: Reshape shape %v does not preserve element count of %v", shape, t.shape))
	}
	return t.view(cloneInts(shape), contiguousStrides(shape), t.offset)
}

// Contiguous returns a tensor with row-major contiguous strides holding
// the same logical values. It is a no-op (returns a shared view) if t
// is already contiguous.
func (t *Tensor) Contiguous() *Tensor {
	if t.IsContiguous() {
		return t.view(cloneInts(t.shape), cloneInts(t.stride), t.offset)
	}
	out := CreateTensor(t.DType(), t.shape...)
	copyStrided(t, out)
	return out
}

func copyStrided(src, dst *Tensor) {
	shape := src.shape
	idx := make([]int, len(shape))
	for {
		switch src.DType() {
		case F32:
			dst.F32Set(src.F32At(idx...), idx...)
		case I64:
			dst.I64Set(src.I64At(idx...), idx...)
		default:
			panic(fmt.Sprintf("flint: copyStrided unsupported dtype %v", src.DType()))
		}
		if !incrementIndex(idx, shape) {
			return
		}
	}
}

// incrementIndex advances idx to the next row-major multi-index within
// shape, returning false once it has wrapped past the last element.
func incrementIndex(idx, shape []int) bool {
	for d := len(shape) - 1; d >= 0; d-- {
		idx[d]++
		if idx[d] < shape[d] {
			return true
		}
		idx[d] = 0
	}
	return false
}
