package nn

import (
	"fmt"

	"github.com/cropsight/cropsight/internal/tensor"
)

// Conv2d is a 2D convolutional layer.
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels/groups, kernel_h, kernel_w]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where:
//
//	out_h = (height + 2*padding - kernel_h) / stride + 1
//	out_w = (width + 2*padding - kernel_w) / stride + 1
//
// groups > 1 splits channels into independent groups; groups == in_channels
// gives a depthwise convolution.
type Conv2d struct {
	inChannels  int
	outChannels int
	kernelSize  [2]int
	stride      int
	padding     int
	groups      int

	weight *tensor.Tensor
	bias   *tensor.Tensor // nil when the layer has no bias
}

// Conv2dConfig holds the optional settings for NewConv2d.
type Conv2dConfig struct {
	Stride  int  // defaults to 1
	Padding int  // defaults to 0
	Groups  int  // defaults to 1
	Bias    bool // include a bias term
}

// NewConv2d creates a Conv2d layer with Xavier-initialized weights and, when
// requested, a zero bias.
func NewConv2d(inChannels, outChannels, kernelSize int, cfg Conv2dConfig) *Conv2d {
	if cfg.Stride == 0 {
		cfg.Stride = 1
	}
	if cfg.Groups == 0 {
		cfg.Groups = 1
	}
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelSize <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel size %d", kernelSize))
	}
	if inChannels%cfg.Groups != 0 || outChannels%cfg.Groups != 0 {
		panic(fmt.Sprintf("conv2d: channels in=%d, out=%d not divisible by groups=%d",
			inChannels, outChannels, cfg.Groups))
	}

	weightShape := tensor.Shape{outChannels, inChannels / cfg.Groups, kernelSize, kernelSize}
	fanIn := (inChannels / cfg.Groups) * kernelSize * kernelSize
	fanOut := (outChannels / cfg.Groups) * kernelSize * kernelSize
	weight := Xavier(fanIn, fanOut, weightShape)

	var bias *tensor.Tensor
	if cfg.Bias {
		bias = Zeros(tensor.Shape{outChannels})
	}

	return &Conv2d{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  [2]int{kernelSize, kernelSize},
		stride:      cfg.Stride,
		padding:     cfg.Padding,
		groups:      cfg.Groups,
		weight:      weight,
		bias:        bias,
	}
}

// Forward performs a direct convolution.
func (c *Conv2d) Forward(input *tensor.Tensor) *tensor.Tensor {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if shape[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", shape[1], c.inChannels))
	}

	batch, height, width := shape[0], shape[2], shape[3]
	kh, kw := c.kernelSize[0], c.kernelSize[1]
	outH := (height+2*c.padding-kh)/c.stride + 1
	outW := (width+2*c.padding-kw)/c.stride + 1

	inPerGroup := c.inChannels / c.groups
	outPerGroup := c.outChannels / c.groups

	output := tensor.New(tensor.Shape{batch, c.outChannels, outH, outW})

	in := input.Data()
	w := c.weight.Data()
	out := output.Data()

	for n := 0; n < batch; n++ {
		for oc := 0; oc < c.outChannels; oc++ {
			group := oc / outPerGroup
			icBase := group * inPerGroup
			for oy := 0; oy < outH; oy++ {
				for ox := 0; ox < outW; ox++ {
					var sum float32
					for ic := 0; ic < inPerGroup; ic++ {
						for ky := 0; ky < kh; ky++ {
							iy := oy*c.stride + ky - c.padding
							if iy < 0 || iy >= height {
								continue
							}
							for kx := 0; kx < kw; kx++ {
								ix := ox*c.stride + kx - c.padding
								if ix < 0 || ix >= width {
									continue
								}
								inIdx := ((n*c.inChannels+(icBase+ic))*height+iy)*width + ix
								wIdx := ((oc*inPerGroup+ic)*kh+ky)*kw + kx
								sum += in[inIdx] * w[wIdx]
							}
						}
					}
					if c.bias != nil {
						sum += c.bias.Data()[oc]
					}
					out[((n*c.outChannels+oc)*outH+oy)*outW+ox] = sum
				}
			}
		}
	}

	return output
}

// StateDict returns the weight and, when present, the bias.
func (c *Conv2d) StateDict() map[string]*tensor.Tensor {
	sd := map[string]*tensor.Tensor{"weight": c.weight}
	if c.bias != nil {
		sd["bias"] = c.bias
	}
	return sd
}

// OutputSize computes output spatial dimensions for the given input size.
func (c *Conv2d) OutputSize(inputH, inputW int) [2]int {
	outH := (inputH+2*c.padding-c.kernelSize[0])/c.stride + 1
	outW := (inputW+2*c.padding-c.kernelSize[1])/c.stride + 1
	return [2]int{outH, outW}
}
