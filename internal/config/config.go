// Package config loads the workspace configuration file. All fields have
// working defaults so a missing config file is not an error.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type OracleConfig struct {
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	EmbedModel     string `yaml:"embed_model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	// CompressPrompts routes prompts through the compression service when
	// its API key is present in the environment.
	CompressPrompts bool `yaml:"compress_prompts"`
}

type Config struct {
	// StorePath is the JSON snapshot the memory persists to. Empty keeps
	// everything in memory only.
	StorePath string `yaml:"store_path"`
	// DataDir anchors relative dataset paths given on the command line.
	DataDir string `yaml:"data_dir"`

	Oracle OracleConfig `yaml:"oracle"`

	// DedupThreshold is the embedding cosine similarity at or above which a
	// new insight counts as a duplicate.
	DedupThreshold float64 `yaml:"dedup_threshold"`
	// MaxNewInsights bounds how many insights one synthesis round may add.
	MaxNewInsights int `yaml:"max_new_insights"`
	// SampleSize caps the rows used for signal computation per dataset.
	SampleSize int `yaml:"sample_size"`
}

func Default() Config {
	return Config{
		StorePath:      "memory_store.json",
		DataDir:        "data",
		DedupThreshold: 0.88,
		MaxNewInsights: 8,
		SampleSize:     200_000,
		Oracle: OracleConfig{
			BaseURL:        "http://localhost:11434",
			Model:          "llama3.1:8b",
			TimeoutSeconds: 120,
		},
	}
}

// Load reads path over the defaults. A missing file returns the defaults;
// an unreadable or malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.DedupThreshold <= 0 || cfg.DedupThreshold > 1 {
		return Config{}, fmt.Errorf("config %s: dedup_threshold must be in (0, 1], got %v", path, cfg.DedupThreshold)
	}
	if cfg.MaxNewInsights <= 0 {
		return Config{}, fmt.Errorf("config %s: max_new_insights must be positive, got %d", path, cfg.MaxNewInsights)
	}
	return cfg, nil
}
