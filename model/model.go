// Package model composes the transformer building blocks in nn/flint
// into full decoder models (GPT-2, BLOOM, ChatGLM-2) and threads the
// KV-cache through autoregressive decoding (spec.md §4.5, L7). Models
// register themselves by architecture name through Register, and New
// builds one from already-parsed configuration.
package model

import (
	"fmt"
	"log/slog"

	"github.com/llamacore/flint"
	"github.com/llamacore/flint/internal/config"
)

// Model is the top-level forward-pass interface every decoder
// implements: token ids in, logits out, with past threaded through for
// autoregressive decoding (spec.md §4.5).
type Model interface {
	// Forward runs one step (or a whole prompt) of the model. ids is
	// [N,L] i64. past may be nil for a single, cache-free pass, or a
	// TensorMap shared across calls to thread the KV-cache.
	Forward(past *flint.TensorMap, ids *flint.Tensor) *flint.Tensor

	// InitParameters binds every parameter tensor the model's modules
	// need from params; missing entries are a fatal load-time error
	// (spec.md §4.5 "Missing parameter tensors during initParameters
	// are fatal").
	InitParameters(params *flint.TensorMap)
}

// Constructor builds a Model from already-parsed configuration
// (spec.md §6's INI contract, consumed through config.Config).
type Constructor func(cfg config.Config) (Model, error)

var registry = map[string]Constructor{}

// Register adds a model constructor under arch, the INI "type" key's
// value (spec.md §6).
func Register(arch string, ctor Constructor) {
	if _, exists := registry[arch]; exists {
		panic(fmt.Sprintf("model: architecture %q already registered", arch))
	}
	registry[arch] = ctor
}

// ErrUnsupportedModel is returned by New for an arch with no registered
// constructor.
var ErrUnsupportedModel = fmt.Errorf("model: unsupported architecture")

// New looks up arch in the registry and constructs a Model from cfg.
func New(arch string, cfg config.Config) (Model, error) {
	ctor, ok := registry[arch]
	if !ok {
		slog.Warn("model: unsupported architecture requested", "arch", arch)
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, arch)
	}
	slog.Info("model: constructing", "arch", arch)
	return ctor(cfg)
}
