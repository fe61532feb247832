// Package modelfile implements the on-disk tensor record formats
// (spec.md §6): "TNSR" single-tensor stream records and "TDIC"
// TensorMap/dictionary files built from them.
package modelfile

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/llamacore/flint"
)

const (
	tensorMagic   = "TNSR"
	trailingMagic = int16(0x55aa)
	kMaxRank      = 8
)

// WriteTensor writes t to w as one "TNSR" record (spec.md §6).
func WriteTensor(w io.Writer, t *flint.Tensor) error {
	if t.Rank() < 0 || t.Rank() > kMaxRank {
		return fmt.Errorf("modelfile: tensor rank %d out of range [0,%d]", t.Rank(), kMaxRank)
	}
	if !t.IsContiguous() {
		return fmt.Errorf("modelfile: WriteTensor requires a contiguous tensor")
	}

	if _, err := io.WriteString(w, tensorMagic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int16(t.Rank())); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int16(t.DType())); err != nil {
		return err
	}
	for _, dim := range t.Shape() {
		if err := binary.Write(w, binary.LittleEndian, int32(dim)); err != nil {
			return err
		}
	}

	switch t.DType() {
	case flint.F32:
		if err := binary.Write(w, binary.LittleEndian, t.RawF32()[:t.Numel()]); err != nil {
			return err
		}
	case flint.I64:
		if err := binary.Write(w, binary.LittleEndian, t.RawI64()[:t.Numel()]); err != nil {
			return err
		}
	case flint.QInt4F32:
		packed, scales := t.RawQuantized()
		if _, err := w.Write(packed); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, scales); err != nil {
			return err
		}
	default:
		return fmt.Errorf("modelfile: unsupported dtype %v", t.DType())
	}
	return nil
}

// ReadTensor reads one "TNSR" record from r. It returns io.EOF
// unmodified when r is exhausted before any bytes of a new record are
// read, the canonical stream-termination signal (spec.md §6).
func ReadTensor(r io.Reader) (*flint.Tensor, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("modelfile: reading tensor magic: %w", err)
	}
	if string(magic[:]) != tensorMagic {
		return nil, fmt.Errorf("modelfile: bad tensor magic %q, want %q", magic, tensorMagic)
	}

	var rank, dtypeRaw int16
	if err := binary.Read(r, binary.LittleEndian, &rank); err != nil {
		return nil, fmt.Errorf("modelfile: reading rank: %w", err)
	}
	if rank < 0 || rank > kMaxRank {
		return nil, fmt.Errorf("modelfile: rank %d out of range [0,%d]", rank, kMaxRank)
	}
	if err := binary.Read(r, binary.LittleEndian, &dtypeRaw); err != nil {
		return nil, fmt.Errorf("modelfile: reading dtype: %w", err)
	}
	dtype := flint.DType(dtypeRaw)
	if !dtype.IsValid() {
		return nil, fmt.Errorf("modelfile: invalid dtype value %d", dtypeRaw)
	}

	shape := make([]int, rank)
	for i := range shape {
		var dim int32
		if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
			return nil, fmt.Errorf("modelfile: reading shape[%d]: %w", i, err)
		}
		shape[i] = int(dim)
	}

	switch dtype {
	case flint.F32:
		t := flint.CreateTensor(flint.F32, shape...)
		if err := binary.Read(r, binary.LittleEndian, t.RawF32()[:t.Numel()]); err != nil {
			return nil, fmt.Errorf("modelfile: reading f32 payload: %w", err)
		}
		return t, nil
	case flint.I64:
		t := flint.CreateTensor(flint.I64, shape...)
		if err := binary.Read(r, binary.LittleEndian, t.RawI64()[:t.Numel()]); err != nil {
			return nil, fmt.Errorf("modelfile: reading i64 payload: %w", err)
		}
		return t, nil
	case flint.QInt4F32:
		return nil, fmt.Errorf("modelfile: QInt4F32 groupSize is not carried on the wire; use ReadQuantizedTensor")
	default:
		return nil, fmt.Errorf("modelfile: unsupported dtype %v", dtype)
	}
}

// ReadQuantizedTensor reads a QInt4F32 "TNSR" record whose groupSize is
// known out of band (the wire format records neither groupSize nor the
// length of the scale array that follows the packed bytes).
func ReadQuantizedTensor(r io.Reader, groupSize int) (*flint.Tensor, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("modelfile: reading tensor magic: %w", err)
	}
	if string(magic[:]) != tensorMagic {
		return nil, fmt.Errorf("modelfile: bad tensor magic %q, want %q", magic, tensorMagic)
	}

	var rank, dtypeRaw int16
	if err := binary.Read(r, binary.LittleEndian, &rank); err != nil {
		return nil, fmt.Errorf("modelfile: reading rank: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &dtypeRaw); err != nil {
		return nil, fmt.Errorf("modelfile: reading dtype: %w", err)
	}
	if flint.DType(dtypeRaw) != flint.QInt4F32 {
		return nil, fmt.Errorf("modelfile: expected QInt4F32, got dtype %d", dtypeRaw)
	}

	shape := make([]int, rank)
	for i := range shape {
		var dim int32
		if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
			return nil, fmt.Errorf("modelfile: reading shape[%d]: %w", i, err)
		}
		shape[i] = int(dim)
	}

	t := flint.CreateQuantized(groupSize, shape...)
	packed, scales := t.RawQuantized()
	if _, err := io.ReadFull(r, packed); err != nil {
		return nil, fmt.Errorf("modelfile: reading quantized payload: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, scales); err != nil {
		return nil, fmt.Errorf("modelfile: reading scale array: %w", err)
	}
	return t, nil
}
