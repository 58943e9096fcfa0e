package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Artifact filename suffix tokens stripped before name matching.
var suffixTokens = []string{"_best", "_checkpoint"}

// artifactExtensions are the file extensions the scanner considers.
var artifactExtensions = map[string]bool{
	".ckpt": true,
	".pth":  true,
}

// Scan enumerates artifact files in dir and matches them against the known
// symbolic names in the config table, returning the name -> path table.
//
// Matching strips the suffix tokens from the filename stem and accepts a
// known name when either string contains the other case-insensitively, or
// when the normalized forms match (separators removed, the "cnn" family
// token dropped from the known name). The first known name to match wins; a
// name already bound to a path is never rebound by a later file. Unmatched
// files are logged and skipped. A missing or empty directory is not an
// error, just an empty table.
func Scan(dir string, configs *ConfigTable, log logrus.FieldLogger) (map[string]string, error) {
	paths := make(map[string]string)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("dir", dir).Warn("models directory not found, no models available")
			return paths, nil
		}
		return nil, fmt.Errorf("scanning models directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		filename := entry.Name()
		if !artifactExtensions[strings.ToLower(filepath.Ext(filename))] {
			continue
		}

		stem := strings.TrimSuffix(filename, filepath.Ext(filename))
		candidate := stem
		for _, token := range suffixTokens {
			candidate = strings.ReplaceAll(candidate, token, "")
		}

		matched := ""
		for _, known := range configs.Names() {
			if _, bound := paths[known]; bound {
				continue
			}
			if namesMatch(known, candidate) {
				matched = known
				break
			}
		}

		if matched == "" {
			log.WithField("file", filename).Warn("artifact does not match any known model, skipping")
			continue
		}

		absPath, err := filepath.Abs(filepath.Join(dir, filename))
		if err != nil {
			absPath = filepath.Join(dir, filename)
		}
		paths[matched] = absPath
		log.WithFields(logrus.Fields{"file": filename, "model": matched}).Info("matched model artifact")
	}

	return paths, nil
}

// namesMatch reports whether a known symbolic name and a candidate filename
// stem refer to the same model.
func namesMatch(known, candidate string) bool {
	knownLower := strings.ToLower(known)
	candLower := strings.ToLower(candidate)

	if strings.Contains(candLower, knownLower) || strings.Contains(knownLower, candLower) {
		return true
	}

	// Normalized form: "BinaryCNN_Light" -> "binarylight" matches
	// "binary_light_v2" -> "binarylightv2".
	knownNorm := strings.ReplaceAll(strings.ReplaceAll(knownLower, "cnn", ""), "_", "")
	candNorm := strings.ReplaceAll(candLower, "_", "")
	return knownNorm != "" && strings.Contains(candNorm, knownNorm)
}
