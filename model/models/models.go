// Package models blank-imports every decoder family so that importing
// it alone is enough to populate model.New's registry, the way the
// teacher's model/models package aggregates its architectures.
package models

import (
	_ "github.com/llamacore/flint/model/models/bloom"
	_ "github.com/llamacore/flint/model/models/chatglm2"
	_ "github.com/llamacore/flint/model/models/gpt2"
)
