package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropsight/cropsight/internal/checkpoint"
	"github.com/cropsight/cropsight/internal/tensor"
)

func params(keys ...string) checkpoint.TensorMap {
	m := make(checkpoint.TensorMap, len(keys))
	for _, k := range keys {
		m[k] = tensor.New(tensor.Shape{1})
	}
	return m
}

func TestNormalizeBareMap(t *testing.T) {
	bare := params("conv1.weight")
	got := Normalize(bare)
	assert.Len(t, got, 1)
	assert.Contains(t, got, "conv1.weight")
}

func TestNormalizeWrapperPriority(t *testing.T) {
	// model_state_dict outranks state_dict outranks model.
	container := checkpoint.Container{
		"model":            params("from_model"),
		"state_dict":       params("from_state_dict"),
		"model_state_dict": params("from_model_state_dict"),
	}
	got := Normalize(container)
	require.Len(t, got, 1)
	assert.Contains(t, got, "from_model_state_dict")

	delete(container, "model_state_dict")
	got = Normalize(container)
	require.Len(t, got, 1)
	assert.Contains(t, got, "from_state_dict")

	delete(container, "state_dict")
	got = Normalize(container)
	require.Len(t, got, 1)
	assert.Contains(t, got, "from_model")
}

func TestNormalizeSubstringScan(t *testing.T) {
	container := checkpoint.Container{
		"BestModelWeights": params("w"),
		"optimizer":        params("momentum"),
	}
	got := Normalize(container)
	require.Len(t, got, 1)
	assert.Contains(t, got, "w")
}

func TestNormalizeSubstringScanIsDeterministic(t *testing.T) {
	// Two keys both contain "model"; sorted order makes "aaa_model" win
	// every time.
	container := checkpoint.Container{
		"zzz_model": params("late"),
		"aaa_model": params("early"),
	}
	for i := 0; i < 10; i++ {
		got := Normalize(container)
		require.Len(t, got, 1)
		assert.Contains(t, got, "early")
	}
}

func TestNormalizeCatchAllMergesTensorMaps(t *testing.T) {
	container := checkpoint.Container{
		"encoder": params("enc.weight"),
		"decoder": params("dec.weight"),
	}
	got := Normalize(container)
	assert.Len(t, got, 2)
	assert.Contains(t, got, "enc.weight")
	assert.Contains(t, got, "dec.weight")
}

func TestNormalizeSkipsNonTensorWrapperValues(t *testing.T) {
	container := checkpoint.Container{
		"state_dict": "not a tensor map",
		"model":      params("w"),
	}
	got := Normalize(container)
	require.Len(t, got, 1)
	assert.Contains(t, got, "w")
}

func TestNormalizeUnknownTypeYieldsEmptyMap(t *testing.T) {
	got := Normalize(42)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
