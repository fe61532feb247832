package flint

// TensorMap is a string-keyed mapping from dotted names to tensors. It
// serves two roles in this runtime (spec.md §3): the frozen parameter
// dictionary loaded from a model file, and the mutable past-key/value
// cache threaded through autoregressive decoding.
type TensorMap struct {
	entries map[string]*Tensor
}

func NewTensorMap() *TensorMap {
	return &TensorMap{entries: make(map[string]*Tensor)}
}

func (m *TensorMap) Get(name string) (*Tensor, bool) {
	t, ok := m.entries[name]
	return t, ok
}

// MustGet fetches name, panicking (a fatal programmer error per spec.md
// §7) if it is missing.
func (m *TensorMap) MustGet(name string) *Tensor {
	t, ok := m.entries[name]
	if !ok {
		panic("flint: missing required tensor " + name)
	}
	return t
}

func (m *TensorMap) Set(name string, t *Tensor) {
	m.entries[name] = t
}

func (m *TensorMap) Delete(name string) {
	delete(m.entries, name)
}

func (m *TensorMap) Has(name string) bool {
	_, ok := m.entries[name]
	return ok
}

// Names returns every key currently stored.
func (m *TensorMap) Names() []string {
	out := make([]string, 0, len(m.entries))
	for k := range m.entries {
		out = append(out, k)
	}
	return out
}

func (m *TensorMap) Len() int { return len(m.entries) }
