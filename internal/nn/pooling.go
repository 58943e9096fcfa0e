package nn

import (
	"fmt"
	"math"

	"github.com/cropsight/cropsight/internal/tensor"
)

// MaxPool2d reduces spatial dimensions by taking the maximum value in each
// window. It has no parameters. Padding cells never win the max.
type MaxPool2d struct {
	kernelSize int
	stride     int
	padding    int
}

// NewMaxPool2d creates a MaxPool2d layer. A stride of 0 defaults to the
// kernel size (non-overlapping pooling).
func NewMaxPool2d(kernelSize, stride, padding int) *MaxPool2d {
	if stride == 0 {
		stride = kernelSize
	}
	return &MaxPool2d{kernelSize: kernelSize, stride: stride, padding: padding}
}

// Forward applies max pooling over [N,C,H,W] input.
func (p *MaxPool2d) Forward(input *tensor.Tensor) *tensor.Tensor {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("maxpool2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}

	batch, channels, height, width := shape[0], shape[1], shape[2], shape[3]
	outH := (height+2*p.padding-p.kernelSize)/p.stride + 1
	outW := (width+2*p.padding-p.kernelSize)/p.stride + 1

	output := tensor.New(tensor.Shape{batch, channels, outH, outW})
	in := input.Data()
	out := output.Data()

	for n := 0; n < batch; n++ {
		for c := 0; c < channels; c++ {
			base := (n*channels + c) * height * width
			for oy := 0; oy < outH; oy++ {
				for ox := 0; ox < outW; ox++ {
					best := float32(math.Inf(-1))
					for ky := 0; ky < p.kernelSize; ky++ {
						iy := oy*p.stride + ky - p.padding
						if iy < 0 || iy >= height {
							continue
						}
						for kx := 0; kx < p.kernelSize; kx++ {
							ix := ox*p.stride + kx - p.padding
							if ix < 0 || ix >= width {
								continue
							}
							if v := in[base+iy*width+ix]; v > best {
								best = v
							}
						}
					}
					out[((n*channels+c)*outH+oy)*outW+ox] = best
				}
			}
		}
	}

	return output
}

// StateDict returns an empty map; pooling has no parameters.
func (p *MaxPool2d) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{}
}

// AdaptiveAvgPool2d pools each channel to a single value (global average).
// Only 1x1 output is supported, which is what every classifier head here uses.
type AdaptiveAvgPool2d struct{}

// NewAdaptiveAvgPool2d creates a global average pooling layer.
func NewAdaptiveAvgPool2d() *AdaptiveAvgPool2d {
	return &AdaptiveAvgPool2d{}
}

// Forward averages over the spatial dimensions: [N,C,H,W] -> [N,C,1,1].
func (p *AdaptiveAvgPool2d) Forward(input *tensor.Tensor) *tensor.Tensor {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("adaptiveavgpool2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}

	batch, channels := shape[0], shape[1]
	spatial := shape[2] * shape[3]

	output := tensor.New(tensor.Shape{batch, channels, 1, 1})
	in := input.Data()
	out := output.Data()

	for n := 0; n < batch; n++ {
		for c := 0; c < channels; c++ {
			base := (n*channels + c) * spatial
			var sum float64
			for i := 0; i < spatial; i++ {
				sum += float64(in[base+i])
			}
			out[n*channels+c] = float32(sum / float64(spatial))
		}
	}

	return output
}

// StateDict returns an empty map; pooling has no parameters.
func (p *AdaptiveAvgPool2d) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{}
}
