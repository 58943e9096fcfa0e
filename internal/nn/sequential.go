package nn

import (
	"strconv"

	"github.com/cropsight/cropsight/internal/tensor"
)

// Sequential chains modules so that each module's output feeds the next.
//
// State dict keys are prefixed with the module's position ("0.weight",
// "4.bias", ...). Parameterless modules still occupy a position, so indices
// line up with the training-time layout the checkpoints were saved from.
type Sequential struct {
	modules []Module
}

// NewSequential creates a Sequential container.
func NewSequential(modules ...Module) *Sequential {
	return &Sequential{modules: modules}
}

// Forward applies all modules in order.
func (s *Sequential) Forward(input *tensor.Tensor) *tensor.Tensor {
	output := input
	for _, m := range s.modules {
		output = m.Forward(output)
	}
	return output
}

// StateDict returns all child parameters with positional prefixes.
func (s *Sequential) StateDict() map[string]*tensor.Tensor {
	sd := make(map[string]*tensor.Tensor)
	for i, m := range s.modules {
		MergeStateDict(sd, strconv.Itoa(i), m)
	}
	return sd
}

// Len returns the number of modules in the sequence.
func (s *Sequential) Len() int {
	return len(s.modules)
}
