package model

import (
	"github.com/cropsight/cropsight/internal/nn"
	"github.com/cropsight/cropsight/internal/tensor"
)

// BinaryCNNLight is the lightweight binary family: four single-convolution
// blocks, global average pooling and a two-layer classifier head.
type BinaryCNNLight struct {
	features   *nn.Sequential
	avgpool    *nn.AdaptiveAvgPool2d
	classifier *nn.Sequential
}

// NewBinaryCNNLight builds the family for a class count.
func NewBinaryCNNLight(numClasses int) *BinaryCNNLight {
	convBlock := func(in, out int) []nn.Module {
		return []nn.Module{
			nn.NewConv2d(in, out, 3, nn.Conv2dConfig{Padding: 1, Bias: true}),
			nn.NewBatchNorm2d(out),
			nn.NewReLU(),
			nn.NewMaxPool2d(2, 2, 0),
		}
	}

	var features []nn.Module
	widths := [][2]int{{3, 32}, {32, 64}, {64, 128}, {128, 256}}
	for _, w := range widths {
		features = append(features, convBlock(w[0], w[1])...)
	}

	return &BinaryCNNLight{
		features: nn.NewSequential(features...),
		avgpool:  nn.NewAdaptiveAvgPool2d(),
		classifier: nn.NewSequential(
			nn.NewDropout(0.5),
			nn.NewLinear(256, 128),
			nn.NewReLU(),
			nn.NewDropout(0.3),
			nn.NewLinear(128, numClasses),
		),
	}
}

// Forward runs the extractor, pools, flattens and classifies.
func (m *BinaryCNNLight) Forward(input *tensor.Tensor) *tensor.Tensor {
	x := m.features.Forward(input)
	x = m.avgpool.Forward(x)
	return m.classifier.Forward(flatten2D(x))
}

// StateDict returns all parameters under "features" and "classifier".
func (m *BinaryCNNLight) StateDict() map[string]*tensor.Tensor {
	sd := make(map[string]*tensor.Tensor)
	nn.MergeStateDict(sd, "features", m.features)
	nn.MergeStateDict(sd, "classifier", m.classifier)
	return sd
}

// BinaryCNNDeep is the residual binary family. It shares the CustomCNN2
// trunk but ships with two head layouts found in the wild:
//
//	default: 512 -> 256 -> 128 -> numClasses (final key "classifier.7")
//	simple:  512 -> 128 -> numClasses        (final key "classifier.4")
//
// The loader picks the variant by inspecting checkpoint shapes, so older
// artifacts saved with the shallow head still bind cleanly.
type BinaryCNNDeep struct {
	conv1   *nn.Conv2d
	bn1     *nn.BatchNorm2d
	relu    *nn.ReLU
	maxpool *nn.MaxPool2d

	layer1 *nn.Sequential
	layer2 *nn.Sequential
	layer3 *nn.Sequential
	layer4 *nn.Sequential

	avgpool    *nn.AdaptiveAvgPool2d
	classifier *nn.Sequential
}

// VariantSimple is the shallow-head layout of BinaryCNNDeep.
const VariantSimple = "simple"

// NewBinaryCNNDeep builds the family for a class count and head variant.
// Unknown variants get the default head.
func NewBinaryCNNDeep(numClasses int, variant string) *BinaryCNNDeep {
	var classifier *nn.Sequential
	if variant == VariantSimple {
		classifier = nn.NewSequential(
			nn.NewDropout(0.5),
			nn.NewLinear(512, 128),
			nn.NewReLU(),
			nn.NewDropout(0.3),
			nn.NewLinear(128, numClasses),
		)
	} else {
		classifier = nn.NewSequential(
			nn.NewDropout(0.5),
			nn.NewLinear(512, 256),
			nn.NewReLU(),
			nn.NewDropout(0.3),
			nn.NewLinear(256, 128),
			nn.NewReLU(),
			nn.NewDropout(0.2),
			nn.NewLinear(128, numClasses),
		)
	}

	return &BinaryCNNDeep{
		conv1:      nn.NewConv2d(3, 64, 7, nn.Conv2dConfig{Stride: 2, Padding: 3, Bias: true}),
		bn1:        nn.NewBatchNorm2d(64),
		relu:       nn.NewReLU(),
		maxpool:    nn.NewMaxPool2d(3, 2, 1),
		layer1:     makeResidualLayer(64, 64, 2, 1),
		layer2:     makeResidualLayer(64, 128, 2, 2),
		layer3:     makeResidualLayer(128, 256, 2, 2),
		layer4:     makeResidualLayer(256, 512, 2, 2),
		avgpool:    nn.NewAdaptiveAvgPool2d(),
		classifier: classifier,
	}
}

// Forward runs the stem, the four residual stages and the head.
func (m *BinaryCNNDeep) Forward(input *tensor.Tensor) *tensor.Tensor {
	x := m.maxpool.Forward(m.relu.Forward(m.bn1.Forward(m.conv1.Forward(input))))
	x = m.layer1.Forward(x)
	x = m.layer2.Forward(x)
	x = m.layer3.Forward(x)
	x = m.layer4.Forward(x)
	x = m.avgpool.Forward(x)
	return m.classifier.Forward(flatten2D(x))
}

// StateDict returns all parameters under their attribute prefixes.
func (m *BinaryCNNDeep) StateDict() map[string]*tensor.Tensor {
	sd := make(map[string]*tensor.Tensor)
	nn.MergeStateDict(sd, "conv1", m.conv1)
	nn.MergeStateDict(sd, "bn1", m.bn1)
	nn.MergeStateDict(sd, "layer1", m.layer1)
	nn.MergeStateDict(sd, "layer2", m.layer2)
	nn.MergeStateDict(sd, "layer3", m.layer3)
	nn.MergeStateDict(sd, "layer4", m.layer4)
	nn.MergeStateDict(sd, "classifier", m.classifier)
	return sd
}

// BinaryCNNEfficient is the efficiency-oriented binary family. It is the
// CustomCNN3 layout trained for two classes.
type BinaryCNNEfficient struct {
	inner *CustomCNN3
}

// NewBinaryCNNEfficient builds the family for a class count.
func NewBinaryCNNEfficient(numClasses int) *BinaryCNNEfficient {
	return &BinaryCNNEfficient{inner: NewCustomCNN3(numClasses)}
}

// Forward runs stem, blocks and head.
func (m *BinaryCNNEfficient) Forward(input *tensor.Tensor) *tensor.Tensor {
	return m.inner.Forward(input)
}

// StateDict returns all parameters under "stem", "blocks" and "head".
func (m *BinaryCNNEfficient) StateDict() map[string]*tensor.Tensor {
	return m.inner.StateDict()
}
