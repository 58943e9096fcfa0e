package loader

import (
	"sort"
	"strings"

	"github.com/cropsight/cropsight/internal/checkpoint"
)

// wrapperKeys are the container keys checkpoint producers conventionally
// wrap a parameter map under, probed in priority order.
var wrapperKeys = []string{"model_state_dict", "state_dict", "model"}

// Normalize unwraps a deserialized artifact into a flat parameter map.
//
// Resolution is total and deterministic:
//  1. A bare TensorMap is returned as is.
//  2. For a container, the wrapper keys are probed in priority order and the
//     first present parameter map wins.
//  3. Failing that, top-level keys are scanned case-insensitively (in sorted
//     order, so the scan is deterministic) for the substrings "state_dict"
//     or "model".
//  4. Failing that, every tensor-map value in the container is merged and
//     the result treated as the parameter map itself.
//
// Normalize never fails; an artifact with no recognizable wrapping resolves
// to whatever tensors it carries at the top level.
func Normalize(obj any) checkpoint.TensorMap {
	switch artifact := obj.(type) {
	case checkpoint.TensorMap:
		return artifact

	case checkpoint.Container:
		for _, key := range wrapperKeys {
			if params, ok := artifact[key].(checkpoint.TensorMap); ok {
				return params
			}
		}

		keys := make([]string, 0, len(artifact))
		for key := range artifact {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			lower := strings.ToLower(key)
			if strings.Contains(lower, "state_dict") || strings.Contains(lower, "model") {
				if params, ok := artifact[key].(checkpoint.TensorMap); ok {
					return params
				}
			}
		}

		// Catch-all: the container itself is the parameter map.
		merged := make(checkpoint.TensorMap)
		for _, key := range keys {
			if params, ok := artifact[key].(checkpoint.TensorMap); ok {
				for name, t := range params {
					merged[name] = t
				}
			}
		}
		return merged

	default:
		return checkpoint.TensorMap{}
	}
}
