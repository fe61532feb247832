// Package pmpack is a hand-optimized dense linear algebra kernel library
// for CPU inference: packed GEMM with AVX-512/AVX-2/scalar backends, GEMV
// specializations, batched GEMM, and a mixed-precision f32×int4 matmul.
//
// The package holds process-wide state (selected backend, thread count)
// initialized once by Init and released by Destroy, mirroring the
// original engine's global PMPack handle.
package pmpack

import (
	"fmt"
	"log/slog"
	"sync"
)

// Backend identifies which micro-kernel implementation is in use.
type Backend int

const (
	BackendScalar Backend = iota
	BackendAVX2
	BackendAVX512
)

func (b Backend) String() string {
	switch b {
	case BackendScalar:
		return "scalar"
	case BackendAVX2:
		return "avx2"
	case BackendAVX512:
		return "avx512"
	default:
		return "unknown"
	}
}

var (
	mu         sync.Mutex
	live       bool
	backend    Backend
	numThreads int
)

// Init detects CPU features, selects a backend, and allocates process-wide
// state. It must be called exactly once before any GEMM/GEMV entry point
// is used, and matched with a later call to Destroy.
func Init() {
	mu.Lock()
	defer mu.Unlock()

	if live {
		panic("pmpack: Init called while already live")
	}

	backend = DetectBackend()
	numThreads = 1
	live = true

	slog.Info("pmpack initialized", "backend", backend, "threads", numThreads)
}

// Destroy releases process-wide PMPack state. Inference APIs assume
// PMPack is live; calling them after Destroy is a programmer error.
func Destroy() {
	mu.Lock()
	defer mu.Unlock()

	if !live {
		panic("pmpack: Destroy called while not live")
	}
	live = false
}

// SetNumThreads sets the worker-thread count used for the GEMM
// macro-kernel's column fan-out (§4.3 loop 4). n must be >= 1.
func SetNumThreads(n int) {
	mu.Lock()
	defer mu.Unlock()

	if n < 1 {
		panic(fmt.Sprintf("pmpack: invalid thread count %d", n))
	}
	requireLiveLocked()
	numThreads = n
}

// GetNumThreads returns the current worker-thread count.
func GetNumThreads() int {
	mu.Lock()
	defer mu.Unlock()
	requireLiveLocked()
	return numThreads
}

// CurrentBackend returns the backend selected at Init.
func CurrentBackend() Backend {
	mu.Lock()
	defer mu.Unlock()
	requireLiveLocked()
	return backend
}

func requireLiveLocked() {
	if !live {
		panic("pmpack: not initialized; call pmpack.Init first")
	}
}
