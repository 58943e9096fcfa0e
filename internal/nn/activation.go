package nn

import (
	"github.com/cropsight/cropsight/internal/tensor"
)

// ReLU applies the rectified linear unit element-wise: max(0, x).
type ReLU struct{}

// NewReLU creates a ReLU activation.
func NewReLU() *ReLU {
	return &ReLU{}
}

// Forward clamps negative values to zero.
func (r *ReLU) Forward(input *tensor.Tensor) *tensor.Tensor {
	output := tensor.New(input.Shape())
	in := input.Data()
	out := output.Data()
	for i, v := range in {
		if v > 0 {
			out[i] = v
		}
	}
	return output
}

// StateDict returns an empty map; activations have no parameters.
func (r *ReLU) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{}
}

// Dropout is an identity at inference time. It exists so that containers
// keep the positional indices the training-time architecture had, which is
// what checkpoint keys are named after.
type Dropout struct {
	p float64
}

// NewDropout creates an inference-mode Dropout with the given (unused) rate.
func NewDropout(p float64) *Dropout {
	return &Dropout{p: p}
}

// Forward returns the input unchanged.
func (d *Dropout) Forward(input *tensor.Tensor) *tensor.Tensor {
	return input
}

// StateDict returns an empty map; dropout has no parameters.
func (d *Dropout) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{}
}

// Flatten reshapes [N, C, H, W] (or any higher-rank input) to [N, rest].
type Flatten struct{}

// NewFlatten creates a Flatten layer.
func NewFlatten() *Flatten {
	return &Flatten{}
}

// Forward flattens every dimension after the batch dimension.
func (f *Flatten) Forward(input *tensor.Tensor) *tensor.Tensor {
	shape := input.Shape()
	batch := shape[0]
	rest := input.NumElements() / batch
	return tensor.FromSlice(tensor.Shape{batch, rest}, input.Data())
}

// StateDict returns an empty map; flatten has no parameters.
func (f *Flatten) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{}
}
