package model

import (
	"github.com/cropsight/cropsight/internal/nn"
	"github.com/cropsight/cropsight/internal/tensor"
)

// BasicBlock is a two-convolution residual block with an optional projection
// shortcut. State dict keys follow the training-time attribute names:
// "conv1.weight", "bn1.running_mean", "shortcut.0.weight", ...
type BasicBlock struct {
	conv1    *nn.Conv2d
	bn1      *nn.BatchNorm2d
	conv2    *nn.Conv2d
	bn2      *nn.BatchNorm2d
	shortcut *nn.Sequential // empty when the block is identity-shaped
	relu     *nn.ReLU
}

// NewBasicBlock creates a residual block from inPlanes to planes channels.
// A stride other than 1 or a channel change adds a 1x1 projection shortcut.
func NewBasicBlock(inPlanes, planes, stride int) *BasicBlock {
	b := &BasicBlock{
		conv1: nn.NewConv2d(inPlanes, planes, 3, nn.Conv2dConfig{Stride: stride, Padding: 1}),
		bn1:   nn.NewBatchNorm2d(planes),
		conv2: nn.NewConv2d(planes, planes, 3, nn.Conv2dConfig{Padding: 1}),
		bn2:   nn.NewBatchNorm2d(planes),
		relu:  nn.NewReLU(),
	}
	if stride != 1 || inPlanes != planes {
		b.shortcut = nn.NewSequential(
			nn.NewConv2d(inPlanes, planes, 1, nn.Conv2dConfig{Stride: stride}),
			nn.NewBatchNorm2d(planes),
		)
	} else {
		b.shortcut = nn.NewSequential()
	}
	return b
}

// Forward computes relu(bn2(conv2(relu(bn1(conv1(x))))) + shortcut(x)).
func (b *BasicBlock) Forward(input *tensor.Tensor) *tensor.Tensor {
	out := b.relu.Forward(b.bn1.Forward(b.conv1.Forward(input)))
	out = b.bn2.Forward(b.conv2.Forward(out))

	residual := input
	if b.shortcut.Len() > 0 {
		residual = b.shortcut.Forward(input)
	}

	data := out.Data()
	res := residual.Data()
	for i := range data {
		data[i] += res[i]
	}
	return b.relu.Forward(out)
}

// StateDict returns the block parameters under their attribute prefixes.
func (b *BasicBlock) StateDict() map[string]*tensor.Tensor {
	sd := make(map[string]*tensor.Tensor)
	nn.MergeStateDict(sd, "conv1", b.conv1)
	nn.MergeStateDict(sd, "bn1", b.bn1)
	nn.MergeStateDict(sd, "conv2", b.conv2)
	nn.MergeStateDict(sd, "bn2", b.bn2)
	nn.MergeStateDict(sd, "shortcut", b.shortcut)
	return sd
}

// makeResidualLayer stacks BasicBlocks the way the residual families do: the
// first block carries the stride and the channel change, the rest are
// same-shape.
func makeResidualLayer(inPlanes, planes, blocks, stride int) *nn.Sequential {
	modules := []nn.Module{NewBasicBlock(inPlanes, planes, stride)}
	for i := 1; i < blocks; i++ {
		modules = append(modules, NewBasicBlock(planes, planes, 1))
	}
	return nn.NewSequential(modules...)
}

// MBConv is a mobile inverted bottleneck block: 1x1 expansion, 3x3 depthwise
// convolution, 1x1 projection, each followed by batch normalization. Blocks
// with stride 1 and matching channel counts add a residual connection.
type MBConv struct {
	useResidual bool

	expand      *nn.Conv2d
	expandBN    *nn.BatchNorm2d
	depthwise   *nn.Conv2d
	depthwiseBN *nn.BatchNorm2d
	project     *nn.Conv2d
	projectBN   *nn.BatchNorm2d
	relu        *nn.ReLU
}

// NewMBConv creates an MBConv block with the given expansion factor.
func NewMBConv(inChannels, outChannels, expansion, stride int) *MBConv {
	expanded := inChannels * expansion
	return &MBConv{
		useResidual: stride == 1 && inChannels == outChannels,
		expand:      nn.NewConv2d(inChannels, expanded, 1, nn.Conv2dConfig{}),
		expandBN:    nn.NewBatchNorm2d(expanded),
		depthwise:   nn.NewConv2d(expanded, expanded, 3, nn.Conv2dConfig{Stride: stride, Padding: 1, Groups: expanded}),
		depthwiseBN: nn.NewBatchNorm2d(expanded),
		project:     nn.NewConv2d(expanded, outChannels, 1, nn.Conv2dConfig{}),
		projectBN:   nn.NewBatchNorm2d(outChannels),
		relu:        nn.NewReLU(),
	}
}

// Forward runs expansion, depthwise and projection stages.
func (m *MBConv) Forward(input *tensor.Tensor) *tensor.Tensor {
	x := m.relu.Forward(m.expandBN.Forward(m.expand.Forward(input)))
	x = m.relu.Forward(m.depthwiseBN.Forward(m.depthwise.Forward(x)))
	x = m.projectBN.Forward(m.project.Forward(x))

	if m.useResidual {
		data := x.Data()
		res := input.Data()
		for i := range data {
			data[i] += res[i]
		}
	}
	return x
}

// StateDict returns the block parameters under their attribute prefixes.
func (m *MBConv) StateDict() map[string]*tensor.Tensor {
	sd := make(map[string]*tensor.Tensor)
	nn.MergeStateDict(sd, "expand", m.expand)
	nn.MergeStateDict(sd, "expand_bn", m.expandBN)
	nn.MergeStateDict(sd, "depthwise", m.depthwise)
	nn.MergeStateDict(sd, "depthwise_bn", m.depthwiseBN)
	nn.MergeStateDict(sd, "project", m.project)
	nn.MergeStateDict(sd, "project_bn", m.projectBN)
	return sd
}

// flatten2D reshapes any tensor to [batch, rest] for the classifier heads.
func flatten2D(t *tensor.Tensor) *tensor.Tensor {
	batch := t.Shape()[0]
	return tensor.FromSlice(tensor.Shape{batch, t.NumElements() / batch}, t.Data())
}
