// Package tokenizer implements the BPE tokenizer (spec.md §4.6): a
// trained merge table loaded from the "LLsp" binary format, encoded
// through a doubly-linked symbol list and a priority-queue merge loop.
// Grounded on original_source/src/bpe_model.cc and bpe_encoder.cc.
package tokenizer

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
)

// Flag is a bitset describing a token's role (spec.md §4.1/§4.6).
type Flag uint8

const (
	FlagUnknown Flag = 1 << 0
	FlagControl Flag = 1 << 1
	FlagByte    Flag = 1 << 2
	FlagUnused  Flag = 1 << 3
)

func (f Flag) Has(bit Flag) bool { return f&bit != 0 }

// InvalidToken marks a merged-away symbol in the encoder's linked list
// (spec.md §9 "BPE symbol allocation"): the canonical sentinel that
// lets a stale bigram popped from the heap be detected without reading
// freed memory.
const InvalidToken int32 = -1

// TokenInfo describes one vocabulary entry (spec.md §4.1).
type TokenInfo struct {
	ID      int32
	Weight  float32
	Piece   string
	Display string
	Flag    Flag
}

// BPEModel holds the indexed vocabulary and the lookup tables the
// encoder needs: piece -> id, a 256-entry byte -> id table, and the
// unk/space special-token ids (spec.md §4.1).
type BPEModel struct {
	Tokens   []TokenInfo
	byPiece  map[string]int32
	byByte   [256]int32
	hasByte  bool
	unkID    int32
	spaceID  int32
}

const (
	modelMagic = "LLsp"
	innerMagic = int16(0x55aa)
)

// Load reads a BPEModel from the "LLsp" binary format (spec.md §4.6),
// validating it per the post-validation rules: at least one Unknown
// token, all 256 byte-ids present if any Byte flag appears, and a
// piece==" " token establishing the space id. Any violation is a fatal
// load-time error.
func Load(r io.Reader) (*BPEModel, error) {
	br := bufio.NewReader(r)

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("tokenizer: reading magic: %w", err)
	}
	if string(magic[:]) != modelMagic {
		return nil, fmt.Errorf("tokenizer: bad magic %q, want %q", magic, modelMagic)
	}

	var numTokens int32
	if err := binary.Read(br, binary.LittleEndian, &numTokens); err != nil {
		return nil, fmt.Errorf("tokenizer: reading numTokens: %w", err)
	}
	if err := expectMagic(br); err != nil {
		return nil, err
	}

	m := &BPEModel{
		Tokens:  make([]TokenInfo, numTokens),
		byPiece: make(map[string]int32, numTokens),
		unkID:   InvalidToken,
		spaceID: InvalidToken,
	}
	for i := range m.byByte {
		m.byByte[i] = InvalidToken
	}

	for i := int32(0); i < numTokens; i++ {
		tok, err := readToken(br, i)
		if err != nil {
			return nil, err
		}
		m.Tokens[i] = tok
		m.byPiece[tok.Piece] = i

		if tok.Flag.Has(FlagUnknown) && m.unkID == InvalidToken {
			m.unkID = i
		}
		if tok.Piece == " " && m.spaceID == InvalidToken {
			m.spaceID = i
		}
		if tok.Flag.Has(FlagByte) {
			m.hasByte = true
			if len(tok.Piece) == 1 {
				m.byByte[tok.Piece[0]] = i
			}
		}
	}

	if err := expectMagic(br); err != nil {
		return nil, err
	}
	if err := m.validate(); err != nil {
		slog.Warn("tokenizer: model failed post-validation", "error", err)
		return nil, err
	}
	slog.Info("tokenizer: model loaded", "tokens", len(m.Tokens), "byteFallback", m.hasByte)
	return m, nil
}

func expectMagic(r io.Reader) error {
	var got int16
	if err := binary.Read(r, binary.LittleEndian, &got); err != nil {
		return fmt.Errorf("tokenizer: reading magic: %w", err)
	}
	if got != innerMagic {
		return fmt.Errorf("tokenizer: bad inner magic %#x, want %#x", got, innerMagic)
	}
	return nil
}

func readToken(r io.Reader, id int32) (TokenInfo, error) {
	var flag int8
	if err := binary.Read(r, binary.LittleEndian, &flag); err != nil {
		return TokenInfo{}, fmt.Errorf("tokenizer: token %d: reading flag: %w", id, err)
	}

	piece, err := readLenPrefixed(r)
	if err != nil {
		return TokenInfo{}, fmt.Errorf("tokenizer: token %d: reading piece: %w", id, err)
	}
	display, err := readLenPrefixed(r)
	if err != nil {
		return TokenInfo{}, fmt.Errorf("tokenizer: token %d: reading display: %w", id, err)
	}

	var weight float32
	if err := binary.Read(r, binary.LittleEndian, &weight); err != nil {
		return TokenInfo{}, fmt.Errorf("tokenizer: token %d: reading weight: %w", id, err)
	}

	return TokenInfo{ID: id, Weight: weight, Piece: piece, Display: display, Flag: Flag(flag)}, nil
}

func readLenPrefixed(r io.Reader) (string, error) {
	var n uint8
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (m *BPEModel) validate() error {
	if m.unkID == InvalidToken {
		return fmt.Errorf("tokenizer: model has no Unknown token")
	}
	if m.spaceID == InvalidToken {
		return fmt.Errorf("tokenizer: model has no piece==\" \" space token")
	}
	if m.hasByte {
		for b := 0; b < 256; b++ {
			if m.byByte[b] == InvalidToken {
				return fmt.Errorf("tokenizer: byte token for 0x%02x missing while byte fallback is enabled", b)
			}
		}
	}
	return nil
}

// Lookup returns the id for piece, or (InvalidToken, false) if unknown.
func (m *BPEModel) Lookup(piece string) (int32, bool) {
	id, ok := m.byPiece[piece]
	if !ok {
		return InvalidToken, false
	}
	return id, true
}

// IDPair returns the id of the token formed by merging left and right's
// pieces, or (InvalidToken, false) if that merged piece is not itself a
// vocabulary entry.
func (m *BPEModel) IDPair(left, right int32) (int32, bool) {
	return m.Lookup(m.Tokens[left].Piece + m.Tokens[right].Piece)
}

// ByteID returns the token id for a single raw byte, used for
// byte-fallback encoding of pieces with no direct vocabulary entry.
func (m *BPEModel) ByteID(b byte) (int32, bool) {
	id := m.byByte[b]
	return id, id != InvalidToken
}

// HasByteFallback reports whether this model carries byte tokens.
func (m *BPEModel) HasByteFallback() bool { return m.hasByte }

// UnknownID returns the designated Unknown token's id.
func (m *BPEModel) UnknownID() int32 { return m.unkID }

// SpaceID returns the designated space token's id.
func (m *BPEModel) SpaceID() int32 { return m.spaceID }

// Weight returns the merge weight for token id.
func (m *BPEModel) Weight(id int32) float32 { return m.Tokens[id].Weight }

// Piece returns the surface-form piece for token id.
func (m *BPEModel) Piece(id int32) string { return m.Tokens[id].Piece }
