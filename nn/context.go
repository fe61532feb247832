// Package nn implements the transformer building blocks (Linear,
// LayerNorm, Embedding, MultiheadSelfAttention) as explicit,
// context-namespaced modules, grounded on original_source/src/nn.h and
// transformer.h/.cc.
package nn

import "github.com/llamacore/flint"

// Context carries a dotted namespace path and a reference to the
// operator set; the device tag is reached through Ops().Device(). Modules don't know their own names: the
// Context passed at construction carries the path, and children are
// built through ctx.WithName("child") (spec.md §9 "Module namespacing").
// There is no global registry; parameter lookup is purely by the
// constructed dotted path.
type Context struct {
	name string
	ops  flint.Ops
}

// NewContext creates a root context over device's operator set.
func NewContext(device flint.Device) Context {
	return Context{ops: flint.NewOps(device)}
}

// WithName returns a child context whose namespace extends the parent's
// with ".child" (or just "child" at the root).
func (c Context) WithName(child string) Context {
	name := child
	if c.name != "" {
		name = c.name + "." + child
	}
	return Context{name: name, ops: c.ops}
}

// Name joins leaf onto this context's namespace path, the full dotted
// parameter name passed to a TensorMap.
func (c Context) Name(leaf string) string {
	if c.name == "" {
		return leaf
	}
	return c.name + "." + leaf
}

func (c Context) Ops() flint.Ops { return c.ops }

// Module is the polymorphic module interface (spec.md §4.5).
type Module interface {
	InitParameters(params *flint.TensorMap)
}
