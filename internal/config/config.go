// Package config defines the accessor interface the core consumes for
// already-parsed INI configuration (spec.md §6). INI parsing itself is
// an external collaborator, out of scope for this core; this package is
// the seam a parser plugs into, modeled on the dotted-key accessor
// pattern used throughout the model-construction code this runtime was
// grounded on (e.g. c.Uint("block_count"), c.String("tokenizer.ggml.pre")).
package config

import "fmt"

// Config exposes already-parsed INI-style key/value configuration to
// model and tokenizer constructors. Keys are dotted, e.g.
// "gpt2.n_embd" or "tokenizer.add_prefix_space".
type Config interface {
	String(key string) string
	Strings(key string) []string
	Int(key string) int
	Ints(key string) []int
	Uint(key string) uint32
	Float(key string) float64
	Bool(key string) bool
}

// MapConfig is a map-backed Config, used by tests and by
// embedding programs that have already parsed their own INI file.
type MapConfig map[string]any

func (c MapConfig) String(key string) string {
	v, ok := c[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		panic(fmt.Sprintf("config: key %q is not a string", key))
	}
	return s
}

func (c MapConfig) Strings(key string) []string {
	v, ok := c[key]
	if !ok {
		return nil
	}
	s, ok := v.([]string)
	if !ok {
		panic(fmt.Sprintf("config: key %q is not a []string", key))
	}
	return s
}

func (c MapConfig) Int(key string) int {
	v, ok := c[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	default:
		panic(fmt.Sprintf("config: key %q is not an int", key))
	}
}

func (c MapConfig) Ints(key string) []int {
	v, ok := c[key]
	if !ok {
		return nil
	}
	n, ok := v.([]int)
	if !ok {
		panic(fmt.Sprintf("config: key %q is not a []int", key))
	}
	return n
}

func (c MapConfig) Uint(key string) uint32 {
	n := c.Int(key)
	if n < 0 {
		panic(fmt.Sprintf("config: key %q is negative, cannot represent as uint32", key))
	}
	return uint32(n)
}

func (c MapConfig) Float(key string) float64 {
	v, ok := c[key]
	if !ok {
		return 0
	}
	f, ok := v.(float64)
	if !ok {
		panic(fmt.Sprintf("config: key %q is not a float64", key))
	}
	return f
}

func (c MapConfig) Bool(key string) bool {
	v, ok := c[key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		panic(fmt.Sprintf("config: key %q is not a bool", key))
	}
	return b
}
