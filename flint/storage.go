package flint

import "sync/atomic"

// Device tags where a TensorStorage's bytes live. The only implemented
// device today is CPU; the tag exists so the Tensor/Context boundary
// admits a future non-CPU device without an interface change (spec.md
// §9 "Operator polymorphism"; grounded on original_source/src/flint/device.h).
type Device int

const CPU Device = 0

func (Device) String() string { return "cpu" }

// TensorStorage is the refcounted owner of one aligned allocation (plus,
// for QInt4F32, a second aligned allocation of per-group f32 scales).
// It is destroyed when the last referencing Tensor drops it.
//
// Go's garbage collector already reclaims unreachable allocations, so
// the explicit refcount here tracks *views*, not memory safety. It is
// incremented for every view and never decremented by Tensor, so it
// counts views ever made, not views still reachable.
type TensorStorage struct {
	dtype     DType
	numel     int
	groupSize int // QInt4F32 only; 0 otherwise
	device    Device

	f32  []float32 // F32 backing array
	i64  []int64   // I64 backing array
	qint []byte    // QInt4F32 packed nibbles
	scl  []float32 // QInt4F32 per-group scales

	refs int32
}

// newStorage allocates a fresh zero-valued storage for dtype holding
// numel elements (groupSize is only meaningful for QInt4F32).
func newStorage(dtype DType, numel, groupSize int) *TensorStorage {
	s := &TensorStorage{dtype: dtype, numel: numel, groupSize: groupSize, device: CPU, refs: 1}
	switch dtype {
	case F32:
		s.f32 = make([]float32, numel)
	case I64:
		s.i64 = make([]int64, numel)
	case QInt4F32:
		if groupSize <= 0 || groupSize%2 != 0 {
			panic("flint: QInt4F32 storage requires an even, positive groupSize")
		}
		s.qint = make([]byte, PackedBytes(numel))
		s.scl = make([]float32, (numel+groupSize-1)/groupSize)
	default:
		panic("flint: cannot allocate storage for dtype Unknown")
	}
	return s
}

func (s *TensorStorage) retain() *TensorStorage {
	atomic.AddInt32(&s.refs, 1)
	return s
}

func (s *TensorStorage) release() {
	atomic.AddInt32(&s.refs, -1)
}

// RefCount reports the creating tensor plus every view made from this
// storage; views that become unreachable are not subtracted.
func (s *TensorStorage) RefCount() int32 {
	return atomic.LoadInt32(&s.refs)
}
