package loader

import (
	"sort"

	"github.com/cropsight/cropsight/internal/checkpoint"
	"github.com/cropsight/cropsight/internal/nn"
	"github.com/cropsight/cropsight/internal/tensor"
)

// IncompatibleKey records a parameter present in both the checkpoint and the
// instance whose shapes disagree.
type IncompatibleKey struct {
	Key             string
	CheckpointShape tensor.Shape
	TargetShape     tensor.Shape
}

// Diagnostics reports everything a bind observed without failing.
//
// A bind with non-empty IncompatibleKeys still produced a usable model; the
// mismatched parameters simply kept their constructor-initialized values.
// Non-empty IncompatibleKeys signals architecture/checkpoint drift and is
// worth alerting on, since it degrades inference quality silently.
type Diagnostics struct {
	// MissingKeys are parameters the instance owns that the checkpoint
	// lacks. Sorted.
	MissingKeys []string
	// UnexpectedKeys are checkpoint entries the instance has no slot for.
	// Sorted.
	UnexpectedKeys []string
	// IncompatibleKeys are same-key shape mismatches, in sorted key order,
	// with both shapes recorded.
	IncompatibleKeys []IncompatibleKey
	// ClassCountFallback is true when the class-count heuristic fell back
	// to the widest-guess path (no candidate width in [2,100]).
	ClassCountFallback bool
}

// Clean reports whether the bind matched the instance exactly.
func (d Diagnostics) Clean() bool {
	return len(d.MissingKeys) == 0 && len(d.UnexpectedKeys) == 0 && len(d.IncompatibleKeys) == 0
}

// Bind copies checkpoint parameters onto an instantiated architecture.
//
// Every checkpoint entry whose key exists in the instance with an identical
// shape is copied in place. Keys only the instance has become MissingKeys;
// keys only the checkpoint has become UnexpectedKeys; same-key shape
// mismatches become IncompatibleKeys and are skipped, leaving the instance
// parameter at its constructor-initialized value. Bind never fails.
func Bind(instance nn.Module, params checkpoint.TensorMap) Diagnostics {
	target := instance.StateDict()

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var diag Diagnostics
	for _, key := range keys {
		src := params[key]
		dst, ok := target[key]
		if !ok {
			diag.UnexpectedKeys = append(diag.UnexpectedKeys, key)
			continue
		}
		if !dst.Shape().Equal(src.Shape()) {
			diag.IncompatibleKeys = append(diag.IncompatibleKeys, IncompatibleKey{
				Key:             key,
				CheckpointShape: src.Shape().Clone(),
				TargetShape:     dst.Shape().Clone(),
			})
			continue
		}
		copy(dst.Data(), src.Data())
	}

	for key := range target {
		if _, ok := params[key]; !ok {
			diag.MissingKeys = append(diag.MissingKeys, key)
		}
	}
	sort.Strings(diag.MissingKeys)

	return diag
}
