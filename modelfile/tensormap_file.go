package modelfile

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/llamacore/flint"
)

const tensorMapMagic = "TDIC"

// WriteTensorMap writes m to w as a "TDIC" record (spec.md §6).
func WriteTensorMap(w io.Writer, m *flint.TensorMap) error {
	if _, err := io.WriteString(w, tensorMapMagic); err != nil {
		return err
	}
	names := m.Names()
	if err := binary.Write(w, binary.LittleEndian, int32(len(names))); err != nil {
		return err
	}
	for _, name := range names {
		if err := binary.Write(w, binary.LittleEndian, int16(len(name))); err != nil {
			return err
		}
		if _, err := io.WriteString(w, name); err != nil {
			return err
		}
		if err := WriteTensor(w, m.MustGet(name)); err != nil {
			return fmt.Errorf("modelfile: writing tensor %q: %w", name, err)
		}
	}
	return binary.Write(w, binary.LittleEndian, trailingMagic)
}

// ReadTensorMap reads a "TDIC" record from r. QInt4F32 entries are
// rejected since the format carries no groupSize; quantized parameter
// files must be loaded one tensor at a time with ReadQuantizedTensor
// and assembled by the caller, which knows each tensor's groupSize from
// configuration.
func ReadTensorMap(r io.Reader) (*flint.TensorMap, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("modelfile: reading TensorMap magic: %w", err)
	}
	if string(magic[:]) != tensorMapMagic {
		return nil, fmt.Errorf("modelfile: bad TensorMap magic %q, want %q", magic, tensorMapMagic)
	}

	var numRecords int32
	if err := binary.Read(r, binary.LittleEndian, &numRecords); err != nil {
		return nil, fmt.Errorf("modelfile: reading numRecords: %w", err)
	}

	m := flint.NewTensorMap()
	for i := int32(0); i < numRecords; i++ {
		var nameLen int16
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, fmt.Errorf("modelfile: record %d: reading nameLen: %w", i, err)
		}
		nameBuf := make([]byte, nameLen)
		if _, err := io.ReadFull(r, nameBuf); err != nil {
			return nil, fmt.Errorf("modelfile: record %d: reading name: %w", i, err)
		}

		t, err := ReadTensor(r)
		if err != nil {
			return nil, fmt.Errorf("modelfile: record %d (%q): %w", i, nameBuf, err)
		}
		m.Set(string(nameBuf), t)
	}

	var trailing int16
	if err := binary.Read(r, binary.LittleEndian, &trailing); err != nil {
		return nil, fmt.Errorf("modelfile: reading trailing magic: %w", err)
	}
	if trailing != trailingMagic {
		return nil, fmt.Errorf("modelfile: bad trailing magic %#x, want %#x", trailing, trailingMagic)
	}
	return m, nil
}
