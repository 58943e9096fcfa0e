package nn

import (
	"fmt"

	"github.com/cropsight/cropsight/internal/tensor"
)

// Linear implements a fully connected layer: y = x @ W.T + b.
//
// Input shape:  [batch, in_features]
// Weight shape: [out_features, in_features]
// Bias shape:   [out_features]
// Output shape: [batch, out_features]
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *tensor.Tensor
	bias        *tensor.Tensor
}

// NewLinear creates a Linear layer with Xavier-initialized weights and a
// zero bias.
func NewLinear(inFeatures, outFeatures int) *Linear {
	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      Xavier(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}),
		bias:        Zeros(tensor.Shape{outFeatures}),
	}
}

// Forward computes y = x @ W.T + b.
func (l *Linear) Forward(input *tensor.Tensor) *tensor.Tensor {
	shape := input.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("linear: expected 2D input [batch, features], got %v", shape))
	}
	if shape[1] != l.inFeatures {
		panic(fmt.Sprintf("linear: expected input with %d features, got %d", l.inFeatures, shape[1]))
	}

	batch := shape[0]
	output := tensor.New(tensor.Shape{batch, l.outFeatures})

	in := input.Data()
	w := l.weight.Data()
	b := l.bias.Data()
	out := output.Data()

	for n := 0; n < batch; n++ {
		inRow := in[n*l.inFeatures : (n+1)*l.inFeatures]
		for o := 0; o < l.outFeatures; o++ {
			wRow := w[o*l.inFeatures : (o+1)*l.inFeatures]
			sum := b[o]
			for i, v := range inRow {
				sum += v * wRow[i]
			}
			out[n*l.outFeatures+o] = sum
		}
	}

	return output
}

// StateDict returns the weight and bias.
func (l *Linear) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{
		"weight": l.weight,
		"bias":   l.bias,
	}
}

// InFeatures returns the number of input features.
func (l *Linear) InFeatures() int { return l.inFeatures }

// OutFeatures returns the number of output features.
func (l *Linear) OutFeatures() int { return l.outFeatures }
