package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropsight/cropsight/internal/checkpoint"
	"github.com/cropsight/cropsight/internal/nn"
	"github.com/cropsight/cropsight/internal/tensor"
)

// stubNet is a minimal two-parameter module for bind tests.
type stubNet struct {
	fc *nn.Linear
}

func newStubNet(numClasses int) *stubNet {
	return &stubNet{fc: nn.NewLinear(4, numClasses)}
}

func (m *stubNet) Forward(input *tensor.Tensor) *tensor.Tensor {
	return m.fc.Forward(input)
}

func (m *stubNet) StateDict() map[string]*tensor.Tensor {
	sd := make(map[string]*tensor.Tensor)
	nn.MergeStateDict(sd, "classifier.1", m.fc)
	return sd
}

func stubParams(numClasses int) checkpoint.TensorMap {
	w := tensor.Full(tensor.Shape{numClasses, 4}, 0.5)
	b := tensor.Full(tensor.Shape{numClasses}, -1)
	return checkpoint.TensorMap{
		"classifier.1.weight": w,
		"classifier.1.bias":   b,
	}
}

func TestBindCleanCopiesValues(t *testing.T) {
	net := newStubNet(2)
	diag := Bind(net, stubParams(2))

	assert.True(t, diag.Clean())

	sd := net.StateDict()
	for _, v := range sd["classifier.1.weight"].Data() {
		assert.Equal(t, float32(0.5), v)
	}
	for _, v := range sd["classifier.1.bias"].Data() {
		assert.Equal(t, float32(-1), v)
	}
}

func TestBindMissingKeys(t *testing.T) {
	net := newStubNet(2)
	params := stubParams(2)
	delete(params, "classifier.1.bias")

	diag := Bind(net, params)
	assert.Equal(t, []string{"classifier.1.bias"}, diag.MissingKeys)
	assert.Empty(t, diag.UnexpectedKeys)
	assert.Empty(t, diag.IncompatibleKeys)
}

func TestBindUnexpectedKeys(t *testing.T) {
	net := newStubNet(2)
	params := stubParams(2)
	params["rogue.weight"] = tensor.New(tensor.Shape{3, 3})

	diag := Bind(net, params)
	assert.Equal(t, []string{"rogue.weight"}, diag.UnexpectedKeys)
	assert.Empty(t, diag.MissingKeys)
}

func TestBindIncompatibleShapesSkipped(t *testing.T) {
	net := newStubNet(2)
	before := append([]float32(nil), net.StateDict()["classifier.1.weight"].Data()...)

	params := stubParams(2)
	params["classifier.1.weight"] = tensor.Full(tensor.Shape{5, 4}, 9)

	diag := Bind(net, params)
	require.Len(t, diag.IncompatibleKeys, 1)

	ik := diag.IncompatibleKeys[0]
	assert.Equal(t, "classifier.1.weight", ik.Key)
	assert.True(t, ik.CheckpointShape.Equal(tensor.Shape{5, 4}))
	assert.True(t, ik.TargetShape.Equal(tensor.Shape{2, 4}))

	// Mismatched parameter keeps its constructor values; the bias still binds.
	assert.Equal(t, before, net.StateDict()["classifier.1.weight"].Data())
	assert.Equal(t, float32(-1), net.StateDict()["classifier.1.bias"].Data()[0])
}

func TestBindNeverFails(t *testing.T) {
	net := newStubNet(2)
	diag := Bind(net, checkpoint.TensorMap{})
	assert.Len(t, diag.MissingKeys, 2)
	assert.False(t, diag.Clean())
}

func TestBindIsIdempotent(t *testing.T) {
	net := newStubNet(2)
	params := stubParams(2)

	first := Bind(net, params)
	second := Bind(net, params)
	assert.Equal(t, first, second)
}

func TestDiagnosticsSortedKeys(t *testing.T) {
	net := newStubNet(2)
	params := checkpoint.TensorMap{
		"z.weight": tensor.New(tensor.Shape{1}),
		"a.weight": tensor.New(tensor.Shape{1}),
	}

	diag := Bind(net, params)
	assert.Equal(t, []string{"a.weight", "z.weight"}, diag.UnexpectedKeys)
	assert.Equal(t, []string{"classifier.1.bias", "classifier.1.weight"}, diag.MissingKeys)
}
