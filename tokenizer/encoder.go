package tokenizer

import "container/heap"

// symbol is a doubly-linked-list node holding one current token id
// during merging (spec.md §9 "Symbol (BPE)"). A merge invalidates both
// endpoints by setting id to InvalidToken rather than unlinking them
// immediately, so any bigram still queued against a now-stale symbol
// can be detected on pop without touching freed memory.
type symbol struct {
	id         int32
	prev, next *symbol
}

// Encoder runs the priority-queue symbol-merge BPE algorithm over a
// trained BPEModel (spec.md §4.6).
type Encoder struct {
	model          *BPEModel
	addPrefixSpace bool
	splitByUnicode bool
}

// NewEncoder builds an Encoder over model. addPrefixSpace prepends a
// leading space piece before encoding; splitByUnicode splits initial
// pieces on UTF-8 character boundaries instead of per byte (spec.md
// §4.6 step 1).
func NewEncoder(model *BPEModel, addPrefixSpace, splitByUnicode bool) *Encoder {
	return &Encoder{model: model, addPrefixSpace: addPrefixSpace, splitByUnicode: splitByUnicode}
}

// Encode runs the full merge algorithm over s and returns the final
// sequence of token ids in list order (spec.md §4.6 steps 1-5).
func (e *Encoder) Encode(s string) []int32 {
	pieces := e.splitPieces(s)
	list := e.buildSymbols(pieces)

	var seq int64
	h := e.seedHeap(list.head, &seq)
	e.mergeLoop(h, list, &seq)

	var out []int32
	for sym := list.head; sym != nil; sym = sym.next {
		out = append(out, sym.id)
	}
	return out
}

// symbolList tracks the live head of the linked list, which a merge at
// the very front must update.
type symbolList struct {
	head, tail *symbol
}

// splitPieces tokenizes s into initial pieces (spec.md §4.6 step 1).
func (e *Encoder) splitPieces(s string) []string {
	var pieces []string
	if e.addPrefixSpace {
		pieces = append(pieces, " ")
	}
	if e.splitByUnicode {
		for _, r := range s {
			pieces = append(pieces, string(r))
		}
	} else {
		for i := 0; i < len(s); i++ {
			pieces = append(pieces, string(s[i]))
		}
	}
	return pieces
}

// buildSymbols resolves each piece to a symbol appended to the tail of
// the linked list, falling back to one-byte-per-symbol when a piece is
// unknown and byte tokens are available (spec.md §4.6 step 2).
func (e *Encoder) buildSymbols(pieces []string) *symbolList {
	list := &symbolList{}
	appendSym := func(id int32) {
		sym := &symbol{id: id}
		if list.tail == nil {
			list.head, list.tail = sym, sym
			return
		}
		sym.prev = list.tail
		list.tail.next = sym
		list.tail = sym
	}

	for _, piece := range pieces {
		if id, ok := e.model.Lookup(piece); ok {
			appendSym(id)
			continue
		}
		if e.model.HasByteFallback() {
			for i := 0; i < len(piece); i++ {
				if id, ok := e.model.ByteID(piece[i]); ok {
					appendSym(id)
					continue
				}
				appendSym(e.model.UnknownID())
			}
			continue
		}
		appendSym(e.model.UnknownID())
	}
	return list
}

// seedHeap pushes every adjacent pair that has a vocabulary entry for
// its merged piece (spec.md §4.6 step 3).
func (e *Encoder) seedHeap(head *symbol, seq *int64) *bigramHeap {
	h := &bigramHeap{}
	heap.Init(h)
	for sym := head; sym != nil && sym.next != nil; sym = sym.next {
		e.pushPair(h, sym, sym.next, seq)
	}
	return h
}

// pushPair pushes the bigram for (left,right) if their pieces merge
// into a vocabulary entry. Neither endpoint may be a special token
// (Unknown/Control/Byte/Unused): special tokens are never merge
// candidates, only merge results (spec.md §4.6 step 3).
func (e *Encoder) pushPair(h *bigramHeap, left, right *symbol, seq *int64) {
	if e.model.Tokens[left.id].Flag != 0 || e.model.Tokens[right.id].Flag != 0 {
		return
	}
	mergedID, ok := e.model.IDPair(left.id, right.id)
	if !ok {
		return
	}
	heap.Push(h, &bigram{
		left:     left,
		right:    right,
		mergedID: mergedID,
		cost:     -e.model.Weight(mergedID),
		seq:      *seq,
	})
	*seq++
}

// mergeLoop pops the lowest-cost bigram repeatedly, discarding stale
// entries and splicing a merged symbol in place of live ones (spec.md
// §4.6 step 4).
func (e *Encoder) mergeLoop(h *bigramHeap, list *symbolList, seq *int64) {
	for h.Len() > 0 {
		bg := heap.Pop(h).(*bigram)
		if bg.left.id == InvalidToken || bg.right.id == InvalidToken {
			continue
		}

		merged := &symbol{id: bg.mergedID, prev: bg.left.prev, next: bg.right.next}
		if bg.left.prev != nil {
			bg.left.prev.next = merged
		} else {
			list.head = merged
		}
		if bg.right.next != nil {
			bg.right.next.prev = merged
		} else {
			list.tail = merged
		}

		bg.left.id = InvalidToken
		bg.right.id = InvalidToken

		if merged.prev != nil {
			e.pushPair(h, merged.prev, merged, seq)
		}
		if merged.next != nil {
			e.pushPair(h, merged, merged.next, seq)
		}
	}
}
