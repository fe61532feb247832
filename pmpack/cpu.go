package pmpack

import "golang.org/x/sys/cpu"

// DetectBackend inspects the running CPU and returns the most capable
// backend available, preferring AVX-512 over AVX-2 over scalar. This
// replaces the original engine's findBestCpuMathBackend.
func DetectBackend() Backend {
	if cpu.X86.HasAVX512F && cpu.X86.HasAVX512DQ {
		return BackendAVX512
	}
	if cpu.X86.HasAVX2 && cpu.X86.HasFMA {
		return BackendAVX2
	}
	return BackendScalar
}
