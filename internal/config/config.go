// Package config loads the stemma YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/roach88/stemma/internal/uid"
)

// Config is the root of stemma.yaml.
type Config struct {
	// ProjectsDir is where `project create` puts new projects.
	ProjectsDir string `yaml:"projects_dir" validate:"required"`

	// ExportDir overrides the export target of newly created projects.
	// Empty keeps the project default ({root}/exports).
	ExportDir string `yaml:"export_dir"`

	UIDAlgorithm  string `yaml:"uid_algorithm" validate:"required"`
	DefaultEngine string `yaml:"default_engine" validate:"required"`
	LogLevel      string `yaml:"log_level" validate:"oneof=debug info warn error"`

	Projection Projection `yaml:"projection"`
	Audio      Audio      `yaml:"audio"`

	// FeatureCache is the SQLite feature cache, relative to the project
	// root unless absolute. Empty disables caching.
	FeatureCache string `yaml:"feature_cache"`

	// MetricsTextfile receives the Prometheus registry after every command.
	MetricsTextfile string `yaml:"metrics_textfile"`
}

// Projection holds the defaults of `project tsne`.
type Projection struct {
	Components int     `yaml:"components" validate:"gte=1,lte=3"`
	Perplexity float64 `yaml:"perplexity" validate:"gt=0"`
	Iterations int     `yaml:"iterations" validate:"gte=1"`
	Workers    int     `yaml:"workers" validate:"gte=0"`
	Seed       int64   `yaml:"seed"`
}

// Audio configures decoding and feature extraction.
type Audio struct {
	SampleRate    int `yaml:"sample_rate" validate:"gt=0"`
	WindowSamples int `yaml:"window_samples" validate:"gtefield=FFTSize"`
	FFTSize       int `yaml:"fft_size" validate:"gt=0"`
	HopSize       int `yaml:"hop_size" validate:"gt=0"`
}

var validate = validator.New()

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ProjectsDir:   "projects",
		UIDAlgorithm:  uid.TypeXXH3_64,
		DefaultEngine: "safetensors",
		LogLevel:      "info",
		Projection: Projection{
			Components: 2,
			Perplexity: 40,
			Iterations: 300,
			Seed:       42,
		},
		Audio: Audio{
			SampleRate:    44100,
			WindowSamples: 65536,
			FFTSize:       2048,
			HopSize:       1024,
		},
		FeatureCache: filepath.Join("cache", "features.db"),
	}
}

// Load reads path over the defaults. An empty path or a missing file yields
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks field constraints and that the uid algorithm exists.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := uid.New(c.UIDAlgorithm); err != nil {
		return err
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level.
func (c Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// FeatureCachePath resolves FeatureCache against a project root. Empty means
// caching is off.
func (c Config) FeatureCachePath(projectRoot string) string {
	if c.FeatureCache == "" {
		return ""
	}
	if filepath.IsAbs(c.FeatureCache) {
		return c.FeatureCache
	}
	return filepath.Join(projectRoot, c.FeatureCache)
}
