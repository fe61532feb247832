package tokenizer

import "container/heap"

// bigram is one candidate adjacent-pair merge, keyed by cost so the
// heap pops the lowest-cost (highest-weight) merge first (spec.md
// §4.6).
type bigram struct {
	left, right *symbol
	mergedID    int32
	cost        float32
	seq         int64 // tie-break: push order across seeding and merging, for determinism
}

// bigramHeap is a container/heap min-heap over bigram.cost, with
// insertion order breaking ties deterministically (spec.md §4.6 "ties
// are broken implementation-defined but must be deterministic").
type bigramHeap []*bigram

func (h bigramHeap) Len() int { return len(h) }
func (h bigramHeap) Less(i, j int) bool {
	if h[i].cost != h[j].cost {
		return h[i].cost < h[j].cost
	}
	return h[i].seq < h[j].seq
}
func (h bigramHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *bigramHeap) Push(x any) {
	*h = append(*h, x.(*bigram))
}

func (h *bigramHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

var _ = heap.Interface(&bigramHeap{})
