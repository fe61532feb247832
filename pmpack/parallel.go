package pmpack

import "golang.org/x/sync/errgroup"

// parallelForPanels runs fn(pj) for pj in [0,nPanels) across up to
// nThreads goroutines, splitting the index range into contiguous
// chunks. This is the fixed data-parallel fan-out over independent
// NR-column slices of C described in spec.md §4.3 loop 4 / §9
// ("Parallel loop inside GEMM"): no cross-iteration dependencies exist,
// so a simple chunked fan-out over a bounded worker count satisfies the
// spec without need for a persistent pool or work-stealing queue.
func parallelForPanels(nPanels, nThreads int, fn func(pj int)) {
	if nThreads <= 1 || nPanels <= 1 {
		for pj := 0; pj < nPanels; pj++ {
			fn(pj)
		}
		return
	}

	workers := min(nThreads, nPanels)
	chunk := (nPanels + workers - 1) / workers

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, nPanels)
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			for pj := lo; pj < hi; pj++ {
				fn(pj)
			}
			return nil
		})
	}
	_ = g.Wait()
}
