// Package tensor implements the minimal dense tensor used for CPU inference.
//
// Tensors are float32 only and row-major. There is no autodiff, no device
// abstraction and no views: a tensor owns its data slice outright. This is
// all the classifier architectures need at serving time.
package tensor

import (
	"fmt"
	"math"
)

// Tensor is a dense float32 array with a shape.
type Tensor struct {
	shape Shape
	data  []float32
}

// New creates a tensor with the given shape and zero-initialized data.
func New(shape Shape) *Tensor {
	if err := shape.Validate(); err != nil {
		panic(fmt.Sprintf("tensor: %v", err))
	}
	return &Tensor{
		shape: shape.Clone(),
		data:  make([]float32, shape.NumElements()),
	}
}

// FromSlice creates a tensor wrapping the given data.
// The data length must match the shape's element count.
func FromSlice(shape Shape, data []float32) *Tensor {
	if err := shape.Validate(); err != nil {
		panic(fmt.Sprintf("tensor: %v", err))
	}
	if len(data) != shape.NumElements() {
		panic(fmt.Sprintf("tensor: data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.NumElements()))
	}
	return &Tensor{shape: shape.Clone(), data: data}
}

// Full creates a tensor with every element set to value.
func Full(shape Shape, value float32) *Tensor {
	t := New(shape)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// Data returns the underlying data slice.
// Mutations are visible to every holder of the tensor.
func (t *Tensor) Data() []float32 {
	return t.data
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return t.shape.NumElements()
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	data := make([]float32, len(t.data))
	copy(data, t.data)
	return &Tensor{shape: t.shape.Clone(), data: data}
}

// CopyFrom copies data from src into t. Shapes must match exactly.
func (t *Tensor) CopyFrom(src *Tensor) error {
	if !t.shape.Equal(src.shape) {
		return fmt.Errorf("shape mismatch: %v vs %v", t.shape, src.shape)
	}
	copy(t.data, src.data)
	return nil
}

// Softmax computes softmax over the last dimension of a [batch, classes] tensor.
func Softmax(t *Tensor) *Tensor {
	shape := t.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("tensor: softmax expects 2D input, got %v", shape))
	}
	batch, classes := shape[0], shape[1]
	out := New(shape)

	for b := 0; b < batch; b++ {
		row := t.data[b*classes : (b+1)*classes]
		outRow := out.data[b*classes : (b+1)*classes]

		// Subtract max for numerical stability.
		maxVal := row[0]
		for _, v := range row[1:] {
			if v > maxVal {
				maxVal = v
			}
		}

		var sum float64
		for i, v := range row {
			e := math.Exp(float64(v - maxVal))
			outRow[i] = float32(e)
			sum += e
		}
		for i := range outRow {
			outRow[i] = float32(float64(outRow[i]) / sum)
		}
	}
	return out
}

// Argmax returns the index of the largest element in a 1D slice view.
func Argmax(values []float32) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
