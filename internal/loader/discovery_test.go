package loader

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testConfigs() *ConfigTable {
	t := NewConfigTable()
	t.Add("EfficientNet", Config{NumClasses: 5})
	t.Add("CustomCNN1", Config{NumClasses: 5})
	t.Add("BinaryCNN_Light", Config{NumClasses: 2})
	t.Add("BinaryCNN_Deep", Config{NumClasses: 2})
	return t
}

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
}

func TestScanMatchesSuffixedArtifacts(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "BinaryCNN_Light_best.pth")
	touch(t, dir, "CustomCNN1_checkpoint.ckpt")

	paths, err := Scan(dir, testConfigs(), discardLogger())
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Contains(t, paths["BinaryCNN_Light"], "BinaryCNN_Light_best.pth")
	assert.Contains(t, paths["CustomCNN1"], "CustomCNN1_checkpoint.ckpt")
}

func TestScanCaseInsensitiveMatch(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "efficientnet_best.pth")

	paths, err := Scan(dir, testConfigs(), discardLogger())
	require.NoError(t, err)
	assert.Contains(t, paths, "EfficientNet")
}

func TestScanNormalizedMatch(t *testing.T) {
	// "binary_light_v2" matches BinaryCNN_Light once separators and the
	// family token are stripped.
	dir := t.TempDir()
	touch(t, dir, "binary_light_v2.pth")

	paths, err := Scan(dir, testConfigs(), discardLogger())
	require.NoError(t, err)
	assert.Contains(t, paths, "BinaryCNN_Light")
}

func TestScanSkipsUnknownAndNonArtifacts(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "unknown_model_v3.pth")
	touch(t, dir, "notes.txt")
	touch(t, dir, "README.md")

	paths, err := Scan(dir, testConfigs(), discardLogger())
	require.NoError(t, err)
	// "unknown_model_v3" matches no known name; non-artifacts are ignored.
	assert.Empty(t, paths)
}

func TestScanFirstMatchWinsNoRebind(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "BinaryCNN_Light_best.pth")
	touch(t, dir, "BinaryCNN_Light_checkpoint.pth")

	paths, err := Scan(dir, testConfigs(), discardLogger())
	require.NoError(t, err)
	require.Len(t, paths, 1)
	// Directory order decides which file bound; the name binds exactly once.
	assert.Contains(t, paths, "BinaryCNN_Light")
}

func TestScanMissingDirectory(t *testing.T) {
	paths, err := Scan(filepath.Join(t.TempDir(), "missing"), testConfigs(), discardLogger())
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestScanIgnoresSubdirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "CustomCNN1_best.pth"), 0o755))

	paths, err := Scan(dir, testConfigs(), discardLogger())
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestScanReturnsAbsolutePaths(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "CustomCNN1.ckpt")

	paths, err := Scan(dir, testConfigs(), discardLogger())
	require.NoError(t, err)
	require.Contains(t, paths, "CustomCNN1")
	assert.True(t, filepath.IsAbs(paths["CustomCNN1"]))
}
