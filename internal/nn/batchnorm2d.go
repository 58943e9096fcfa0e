package nn

import (
	"fmt"
	"math"

	"github.com/cropsight/cropsight/internal/tensor"
)

// BatchNorm2d applies per-channel normalization using running statistics.
//
// y = (x - running_mean) / sqrt(running_var + eps) * weight + bias
//
// This is batch normalization in evaluation mode. Freshly constructed layers
// use mean 0, variance 1, weight 1 and bias 0, which makes the layer an
// identity until checkpoint statistics are bound onto it.
type BatchNorm2d struct {
	numFeatures int
	eps         float64

	weight      *tensor.Tensor // [C] scale (gamma)
	bias        *tensor.Tensor // [C] shift (beta)
	runningMean *tensor.Tensor // [C]
	runningVar  *tensor.Tensor // [C]
}

// NewBatchNorm2d creates a BatchNorm2d over numFeatures channels.
func NewBatchNorm2d(numFeatures int) *BatchNorm2d {
	if numFeatures <= 0 {
		panic(fmt.Sprintf("batchnorm2d: invalid feature count %d", numFeatures))
	}
	shape := tensor.Shape{numFeatures}
	return &BatchNorm2d{
		numFeatures: numFeatures,
		eps:         1e-5,
		weight:      Ones(shape),
		bias:        Zeros(shape),
		runningMean: Zeros(shape),
		runningVar:  Ones(shape),
	}
}

// Forward normalizes each channel with the running statistics.
func (b *BatchNorm2d) Forward(input *tensor.Tensor) *tensor.Tensor {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("batchnorm2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if shape[1] != b.numFeatures {
		panic(fmt.Sprintf("batchnorm2d: input channels %d != expected %d", shape[1], b.numFeatures))
	}

	batch, channels := shape[0], shape[1]
	spatial := shape[2] * shape[3]

	output := tensor.New(shape)
	in := input.Data()
	out := output.Data()
	gamma := b.weight.Data()
	beta := b.bias.Data()
	mean := b.runningMean.Data()
	variance := b.runningVar.Data()

	for c := 0; c < channels; c++ {
		invStd := float32(1.0 / math.Sqrt(float64(variance[c])+b.eps))
		scale := gamma[c] * invStd
		shift := beta[c] - mean[c]*scale
		for n := 0; n < batch; n++ {
			base := (n*channels + c) * spatial
			for i := 0; i < spatial; i++ {
				out[base+i] = in[base+i]*scale + shift
			}
		}
	}

	return output
}

// StateDict returns the affine parameters and running statistics.
func (b *BatchNorm2d) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{
		"weight":       b.weight,
		"bias":         b.bias,
		"running_mean": b.runningMean,
		"running_var":  b.runningVar,
	}
}
