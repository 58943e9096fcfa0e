package nn

import (
	"math"
	"math/rand"

	"github.com/cropsight/cropsight/internal/tensor"
)

// Xavier creates a tensor initialized with Xavier/Glorot uniform values:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out))).
//
// Constructors use this for weights so that a freshly built network is
// usable even when a checkpoint only partially binds onto it.
func Xavier(fanIn, fanOut int, shape tensor.Shape) *tensor.Tensor {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

	t := tensor.New(shape)
	data := t.Data()
	for i := range data {
		//nolint:gosec // math/rand is fine for weight initialization
		data[i] = float32((rand.Float64()*2.0 - 1.0) * bound)
	}
	return t
}

// Zeros creates a zero-filled tensor. Commonly used for bias initialization.
func Zeros(shape tensor.Shape) *tensor.Tensor {
	return tensor.New(shape)
}

// Ones creates a tensor filled with ones. Used for batch norm scale defaults.
func Ones(shape tensor.Shape) *tensor.Tensor {
	return tensor.Full(shape, 1.0)
}
