// Package kvcache manages the running sequence length threaded through
// an autoregressive decoding loop (spec.md §4.5). Per-attention-layer
// past key/value storage itself lives inside the shared flint.TensorMap
// under each attention module's own namespace (nn.MultiheadSelfAttention
// reads/writes it directly); this package only tracks the single
// "seq_len" counter a decoder model advances once per forward call.
//
// This is a single-sequence, monotonically growing cache with no
// eviction, matching spec.md §4.5's "Prefill"/"Decode" state machine —
// a deliberately narrower scope than a multi-sequence/sliding-window
// cache. There is no constructor or Init; Advance panics on misuse.
package kvcache

import "github.com/llamacore/flint"

const seqLenKey = "seq_len"

// StartIndex returns the running length stored in past["seq_len"],
// or 0 if past is nil or has not been populated yet (spec.md §4.5).
func StartIndex(past *flint.TensorMap) int {
	if past == nil {
		return 0
	}
	t, ok := past.Get(seqLenKey)
	if !ok {
		return 0
	}
	return int(t.I64At())
}

// Advance stores startIdx+length back into past["seq_len"]. It panics
// if past is nil: callers must not call Advance without a cache to
// update.
func Advance(past *flint.TensorMap, startIdx, length int) {
	if past == nil {
		panic("kvcache: Advance called with a nil past map")
	}
	past.Set(seqLenKey, flint.FromInt64([]int64{int64(startIdx + length)}))
}
