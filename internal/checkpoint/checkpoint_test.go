package checkpoint

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropsight/cropsight/internal/tensor"
)

func testParams() TensorMap {
	return TensorMap{
		"classifier.1.weight": tensor.FromSlice(tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6}),
		"classifier.1.bias":   tensor.FromSlice(tensor.Shape{2}, []float32{-0.5, 0.25}),
	}
}

func TestWriteReadBareStateDict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.ckpt")
	require.NoError(t, WriteStateDict(path, "", testParams()))

	obj, err := Read(path)
	require.NoError(t, err)

	params, ok := obj.(TensorMap)
	require.True(t, ok, "single unnamed section should read as a bare map, got %T", obj)
	require.Len(t, params, 2)

	w := params["classifier.1.weight"]
	require.NotNil(t, w)
	assert.True(t, w.Shape().Equal(tensor.Shape{2, 3}))
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, w.Data())
}

func TestWriteReadWrappedStateDict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.ckpt")
	require.NoError(t, WriteStateDict(path, "model_state_dict", testParams()))

	obj, err := Read(path)
	require.NoError(t, err)

	container, ok := obj.(Container)
	require.True(t, ok, "named section should read as a container, got %T", obj)

	params, ok := container["model_state_dict"].(TensorMap)
	require.True(t, ok)
	assert.Len(t, params, 2)
}

func TestWriteReadMultipleSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.ckpt")
	err := Write(path,
		Section{Name: "model", Params: testParams()},
		Section{Name: "optimizer", Params: TensorMap{
			"lr": tensor.FromSlice(tensor.Shape{1}, []float32{0.001}),
		}},
	)
	require.NoError(t, err)

	obj, err := Read(path)
	require.NoError(t, err)

	container, ok := obj.(Container)
	require.True(t, ok)
	assert.Len(t, container, 2)
	assert.Contains(t, container, "model")
	assert.Contains(t, container, "optimizer")
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.ckpt"))
	require.Error(t, err)

	var readErr *ReadError
	require.True(t, errors.As(err, &readErr))
	assert.Contains(t, readErr.Path, "nope.ckpt")
}

func TestReadBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ckpt")
	require.NoError(t, os.WriteFile(path, []byte("JUNKdatadatadata"), 0o644))

	_, err := Read(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidMagic))

	var readErr *ReadError
	assert.True(t, errors.As(err, &readErr))
}

func TestReadTruncatedData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.ckpt")
	require.NoError(t, WriteStateDict(path, "", testParams()))

	// Chop off the tail of the tensor data.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw[:len(raw)-8], 0o644))

	_, err = Read(path)
	require.Error(t, err)

	var readErr *ReadError
	assert.True(t, errors.As(err, &readErr))
}

func TestReadUnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.ckpt")
	require.NoError(t, WriteStateDict(path, "", testParams()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[4] = 99 // version field follows the 4 magic bytes
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, err = Read(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedVersion))
}

func TestRoundTripPreservesValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.ckpt")
	original := TensorMap{
		"w": tensor.FromSlice(tensor.Shape{4}, []float32{0, -1.5, 3.25e10, 1e-20}),
	}
	require.NoError(t, WriteStateDict(path, "", original))

	obj, err := Read(path)
	require.NoError(t, err)
	params := obj.(TensorMap)
	assert.Equal(t, original["w"].Data(), params["w"].Data())
}
