// Package config reads the harvester's environment/flag configuration:
// which bucket and project back the Object Store Adapter, which port the
// web-trigger collaborator listens on, and the defaults the CLI flags fall
// back to. Grounded in internal/config/defaults.go (named constants, no
// config-file format, no viper) and cmd/worker/main.go's flag-parsing
// style.
package config

import (
	"os"
	"strconv"
	"time"
)

// Default CLI flag values.
const (
	DefaultBaseDelay        = 2 * time.Second
	DefaultMaxPairs         = 0 // 0 means unbounded
	DefaultIncrementalPairs = 10
	DefaultLookbackDays     = 8
	DefaultPort             = "8080"
	DefaultBasePrefix       = "mav-harvest"
	TestModeMaxPairs        = 3
	TestModeBaseDelay       = time.Second
)

// Config is the harvester's environment-derived configuration:
// BUCKET_NAME, PROJECT_ID, and PORT are not consumed directly except
// when constructing the OSA.
type Config struct {
	BucketName string
	ProjectID  string
	Port       string
	BasePrefix string
}

// FromEnv reads BUCKET_NAME, PROJECT_ID, PORT and an optional BASE_PREFIX,
// falling back to Defaults() for anything unset.
func FromEnv() Config {
	cfg := Defaults()
	if v := os.Getenv("BUCKET_NAME"); v != "" {
		cfg.BucketName = v
	}
	if v := os.Getenv("PROJECT_ID"); v != "" {
		cfg.ProjectID = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("BASE_PREFIX"); v != "" {
		cfg.BasePrefix = v
	}
	return cfg
}

// Defaults returns the zero-configuration fallback: no bucket/project
// (the caller must supply one to construct a real GCSStore), the default
// port, and the default base prefix.
func Defaults() Config {
	return Config{Port: DefaultPort, BasePrefix: DefaultBasePrefix}
}

// GCSConfigured reports whether both BucketName and ProjectID are set,
// i.e. whether a GCSStore can be constructed from this Config.
func (c Config) GCSConfigured() bool {
	return c.BucketName != "" && c.ProjectID != ""
}

// ParsePositiveInt parses s as a positive int, returning fallback for an
// empty or invalid string, so a malformed value never fails the caller.
func ParsePositiveInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
