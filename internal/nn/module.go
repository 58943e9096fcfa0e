// Package nn implements the neural network modules used by the classifier
// architectures.
//
// Modules run in inference mode only: there is no gradient tracking, dropout
// is an identity and batch normalization uses its running statistics.
//
// Every module exposes its parameters through StateDict, a flat map from
// conventional parameter names (e.g. "weight", "bias", "running_mean") to the
// live tensors backing the module. Containers prefix child names so that a
// full network produces keys like "features.0.weight" or "classifier.4.bias".
// Loading weights means copying checkpoint data into these tensors in place.
package nn

import (
	"fmt"

	"github.com/cropsight/cropsight/internal/tensor"
)

// Module is the base interface for all neural network components.
type Module interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor) *tensor.Tensor

	// StateDict returns the module's parameters keyed by name.
	//
	// The returned tensors are the module's live buffers: writing into them
	// changes the module. Modules without parameters return an empty map.
	StateDict() map[string]*tensor.Tensor
}

// MergeStateDict copies every entry of module's state dict into dst with the
// given prefix prepended ("<prefix>.<name>"). An empty prefix copies names
// unchanged. Used by containers and architectures to build nested keys.
func MergeStateDict(dst map[string]*tensor.Tensor, prefix string, m Module) {
	for name, t := range m.StateDict() {
		key := name
		if prefix != "" {
			key = fmt.Sprintf("%s.%s", prefix, name)
		}
		dst[key] = t
	}
}
