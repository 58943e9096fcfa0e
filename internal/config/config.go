// Package config reads service configuration from the environment.
package config

import (
	"os"
	"strconv"
)

// Config holds everything the service needs to start.
type Config struct {
	// Host is the listen address, set via CROPSIGHT_HOST.
	Host string
	// ModelsDir holds checkpoint artifacts, set via CROPSIGHT_MODELS.
	ModelsDir string
	// DBPath is the SQLite database file, set via CROPSIGHT_DB.
	DBPath string
	// UploadsDir receives spot photos, set via CROPSIGHT_UPLOADS.
	UploadsDir string
	// Debug enables debug logging and gin debug mode, set via CROPSIGHT_DEBUG.
	Debug bool
}

// Load reads the environment, applying local-run defaults.
func Load() Config {
	return Config{
		Host:       getString("CROPSIGHT_HOST", "127.0.0.1:8080"),
		ModelsDir:  getString("CROPSIGHT_MODELS", "models"),
		DBPath:     getString("CROPSIGHT_DB", "cropsight.db"),
		UploadsDir: getString("CROPSIGHT_UPLOADS", "uploads"),
		Debug:      getBool("CROPSIGHT_DEBUG"),
	}
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string) bool {
	v := os.Getenv(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return true // any non-empty, non-parseable value counts as set
	}
	return b
}
