// Package config handles retrolambda.toml run configuration.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// FileName is the configuration file looked up by default.
const FileName = "retrolambda.toml"

const (
	minTarget = 49 // Java 5
	maxTarget = 52 // Java 8
)

// Config configures one run.
type Config struct {
	InputDir      string `toml:"input-dir"`
	OutputDir     string `toml:"output-dir"`
	TargetVersion int    `toml:"target-version"`
	Workers       int    `toml:"workers"`
	LambdaDumpDir string `toml:"lambda-dump-dir"`
	LambdaPattern string `toml:"lambda-pattern"`
	Verbosity     int    `toml:"verbosity"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		TargetVersion: 51,
		Workers:       4,
	}
}

// Load reads a TOML file. Keys that are absent keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOptional is Load, except that a missing file yields the defaults.
func LoadOptional(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// ApplyEnv loads .env if present and then applies RETROLAMBDA_*
// environment variables on top of cfg.
func (cfg *Config) ApplyEnv() error {
	_ = godotenv.Load()

	strs := map[string]*string{
		"RETROLAMBDA_INPUT_DIR":       &cfg.InputDir,
		"RETROLAMBDA_OUTPUT_DIR":      &cfg.OutputDir,
		"RETROLAMBDA_LAMBDA_DUMP_DIR": &cfg.LambdaDumpDir,
		"RETROLAMBDA_LAMBDA_PATTERN":  &cfg.LambdaPattern,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"RETROLAMBDA_TARGET_VERSION": &cfg.TargetVersion,
		"RETROLAMBDA_WORKERS":        &cfg.Workers,
		"RETROLAMBDA_VERBOSITY":      &cfg.Verbosity,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

// Validate checks that cfg describes a runnable configuration.
func (cfg *Config) Validate() error {
	if cfg.InputDir == "" {
		return fmt.Errorf("input-dir is required")
	}
	if _, err := os.Stat(cfg.InputDir); err != nil {
		return fmt.Errorf("input-dir: %w", err)
	}
	if cfg.OutputDir == "" {
		return fmt.Errorf("output-dir is required")
	}
	if cfg.TargetVersion < minTarget || cfg.TargetVersion > maxTarget {
		return fmt.Errorf("target-version %d out of range %d..%d", cfg.TargetVersion, minTarget, maxTarget)
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", cfg.Workers)
	}
	if cfg.LambdaDumpDir != "" {
		if info, err := os.Stat(cfg.LambdaDumpDir); err != nil {
			return fmt.Errorf("lambda-dump-dir: %w", err)
		} else if !info.IsDir() {
			return fmt.Errorf("lambda-dump-dir %s is not a directory", cfg.LambdaDumpDir)
		}
	}
	if _, err := cfg.Pattern(); err != nil {
		return err
	}
	return nil
}

// Pattern compiles LambdaPattern. An empty pattern returns nil.
func (cfg *Config) Pattern() (*regexp.Regexp, error) {
	if cfg.LambdaPattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(cfg.LambdaPattern)
	if err != nil {
		return nil, fmt.Errorf("lambda-pattern: %w", err)
	}
	return re, nil
}
