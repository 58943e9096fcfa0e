// Package model defines the classifier architecture families, their registry
// wiring and the prediction helpers built on top of them.
//
// Each family reproduces the parameter layout its checkpoints were trained
// with, so state dict keys like "features.0.weight" or "classifier.4.bias"
// bind directly without renaming.
package model

import (
	"github.com/cropsight/cropsight/internal/nn"
	"github.com/cropsight/cropsight/internal/tensor"
)

// CustomCNN1 is the lightweight multi-class family: four double-convolution
// blocks, global average pooling and a two-layer classifier head.
//
// Classifier keys: "classifier.1" (256 -> 128) and "classifier.4"
// (128 -> numClasses).
type CustomCNN1 struct {
	features   *nn.Sequential
	avgpool    *nn.AdaptiveAvgPool2d
	classifier *nn.Sequential
}

// NewCustomCNN1 builds the family for a class count.
func NewCustomCNN1(numClasses int) *CustomCNN1 {
	convBlock := func(in, out int) []nn.Module {
		return []nn.Module{
			nn.NewConv2d(in, out, 3, nn.Conv2dConfig{Padding: 1, Bias: true}),
			nn.NewBatchNorm2d(out),
			nn.NewReLU(),
			nn.NewConv2d(out, out, 3, nn.Conv2dConfig{Padding: 1, Bias: true}),
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

	return &CustomCNN1{
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
func (m *CustomCNN1) Forward(input *tensor.Tensor) *tensor.Tensor {
	x := m.features.Forward(input)
	x = m.avgpool.Forward(x)
	return m.classifier.Forward(flatten2D(x))
}

// StateDict returns all parameters under "features" and "classifier".
func (m *CustomCNN1) StateDict() map[string]*tensor.Tensor {
	sd := make(map[string]*tensor.Tensor)
	nn.MergeStateDict(sd, "features", m.features)
	nn.MergeStateDict(sd, "classifier", m.classifier)
	return sd
}

// CustomCNN2 is the residual multi-class family: a 7x7 stem, four stages of
// BasicBlocks (64/128/256/512 channels) and a three-layer classifier head.
//
// Classifier keys: "classifier.1" (512 -> 256), "classifier.4" (256 -> 128)
// and "classifier.7" (128 -> numClasses).
type CustomCNN2 struct {
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

// NewCustomCNN2 builds the family for a class count.
func NewCustomCNN2(numClasses int) *CustomCNN2 {
	return &CustomCNN2{
		conv1:   nn.NewConv2d(3, 64, 7, nn.Conv2dConfig{Stride: 2, Padding: 3, Bias: true}),
		bn1:     nn.NewBatchNorm2d(64),
		relu:    nn.NewReLU(),
		maxpool: nn.NewMaxPool2d(3, 2, 1),
		layer1:  makeResidualLayer(64, 64, 2, 1),
		layer2:  makeResidualLayer(64, 128, 2, 2),
		layer3:  makeResidualLayer(128, 256, 2, 2),
		layer4:  makeResidualLayer(256, 512, 2, 2),
		avgpool: nn.NewAdaptiveAvgPool2d(),
		classifier: nn.NewSequential(
			nn.NewDropout(0.5),
			nn.NewLinear(512, 256),
			nn.NewReLU(),
			nn.NewDropout(0.3),
			nn.NewLinear(256, 128),
			nn.NewReLU(),
			nn.NewDropout(0.2),
			nn.NewLinear(128, numClasses),
		),
	}
}

// Forward runs the stem, the four residual stages and the head.
func (m *CustomCNN2) Forward(input *tensor.Tensor) *tensor.Tensor {
	x := m.maxpool.Forward(m.relu.Forward(m.bn1.Forward(m.conv1.Forward(input))))
	x = m.layer1.Forward(x)
	x = m.layer2.Forward(x)
	x = m.layer3.Forward(x)
	x = m.layer4.Forward(x)
	x = m.avgpool.Forward(x)
	return m.classifier.Forward(flatten2D(x))
}

// StateDict returns all parameters under their attribute prefixes.
func (m *CustomCNN2) StateDict() map[string]*tensor.Tensor {
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

// CustomCNN3 is the efficiency-oriented multi-class family: a strided stem,
// seven MBConv blocks and a wide 1x1 projection head.
//
// The final classifier key is "head.6" (1280 -> numClasses).
type CustomCNN3 struct {
	stem   *nn.Sequential
	blocks *nn.Sequential
	head   *nn.Sequential
}

// NewCustomCNN3 builds the family for a class count.
func NewCustomCNN3(numClasses int) *CustomCNN3 {
	return &CustomCNN3{
		stem: nn.NewSequential(
			nn.NewConv2d(3, 32, 3, nn.Conv2dConfig{Stride: 2, Padding: 1, Bias: true}),
			nn.NewBatchNorm2d(32),
			nn.NewReLU(),
		),
		blocks: nn.NewSequential(
			NewMBConv(32, 16, 1, 1),
			NewMBConv(16, 24, 6, 2),
			NewMBConv(24, 40, 6, 2),
			NewMBConv(40, 80, 6, 2),
			NewMBConv(80, 112, 6, 1),
			NewMBConv(112, 192, 6, 2),
			NewMBConv(192, 320, 6, 1),
		),
		head: nn.NewSequential(
			nn.NewConv2d(320, 1280, 1, nn.Conv2dConfig{Bias: true}),
			nn.NewBatchNorm2d(1280),
			nn.NewReLU(),
			nn.NewAdaptiveAvgPool2d(),
			nn.NewFlatten(),
			nn.NewDropout(0.2),
			nn.NewLinear(1280, numClasses),
		),
	}
}

// Forward runs stem, blocks and head.
func (m *CustomCNN3) Forward(input *tensor.Tensor) *tensor.Tensor {
	return m.head.Forward(m.blocks.Forward(m.stem.Forward(input)))
}

// StateDict returns all parameters under "stem", "blocks" and "head".
func (m *CustomCNN3) StateDict() map[string]*tensor.Tensor {
	sd := make(map[string]*tensor.Tensor)
	nn.MergeStateDict(sd, "stem", m.stem)
	nn.MergeStateDict(sd, "blocks", m.blocks)
	nn.MergeStateDict(sd, "head", m.head)
	return sd
}
