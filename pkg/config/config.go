// Package config loads process configuration from the environment,
// grounded on the teacher's pkg/config/config.go env-var loading pattern.
// There is no package-level global: Load returns a Config value that
// callers thread through explicitly.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TimeSource selects which clock.Provider the façade constructs.
type TimeSource string

const (
	TimeSourceReal    TimeSource = "real"
	TimeSourceVirtual TimeSource = "virtual"
)

// Config is the kernel process's environment-derived configuration.
type Config struct {
	// DBPath is the SQLite database file path, resolved and validated
	// against BaseDir to reject path traversal.
	DBPath string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// TimeSource selects the real or virtual clock.
	TimeSource TimeSource
	// PolicyPath optionally points to a YAML safety-policy override file.
	PolicyPath string
}

// Load reads GOVKERNEL_DB_PATH, GOVKERNEL_LOG_LEVEL, GOVKERNEL_TIME_SOURCE,
// and GOVKERNEL_POLICY_PATH from the environment, applying defaults and
// validating DBPath stays within baseDir.
func Load(baseDir string) (Config, error) {
	cfg := Config{
		DBPath:     envOrDefault("GOVKERNEL_DB_PATH", filepath.Join(baseDir, "govkernel.db")),
		LogLevel:   envOrDefault("GOVKERNEL_LOG_LEVEL", "info"),
		TimeSource: TimeSource(envOrDefault("GOVKERNEL_TIME_SOURCE", string(TimeSourceReal))),
		PolicyPath: os.Getenv("GOVKERNEL_POLICY_PATH"),
	}

	if cfg.TimeSource != TimeSourceReal && cfg.TimeSource != TimeSourceVirtual {
		return Config{}, fmt.Errorf("config: GOVKERNEL_TIME_SOURCE must be %q or %q, got %q", TimeSourceReal, TimeSourceVirtual, cfg.TimeSource)
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return Config{}, fmt.Errorf("config: GOVKERNEL_LOG_LEVEL must be one of debug,info,warn,error, got %q", cfg.LogLevel)
	}

	resolved, err := resolveWithinBase(baseDir, cfg.DBPath)
	if err != nil {
		return Config{}, err
	}
	cfg.DBPath = resolved

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// resolveWithinBase rejects any DB path that escapes baseDir via `..`
// traversal, matching the teacher's config validation for file-backed
// stores.
func resolveWithinBase(baseDir, path string) (string, error) {
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("config: resolve base dir: %w", err)
	}
	var target string
	if filepath.IsAbs(path) {
		target = filepath.Clean(path)
	} else {
		target = filepath.Join(absBase, path)
	}
	rel, err := filepath.Rel(absBase, target)
	if err != nil {
		return "", fmt.Errorf("config: resolve db path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("config: db path %q escapes base directory %q", path, baseDir)
	}
	return target, nil
}
