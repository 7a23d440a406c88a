// Package config reads training run configuration from YAML files and
// applies command-line overrides on top.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config captures the runtime knobs for a training or prediction run.
type Config struct {
	DataPath  string  `yaml:"data_path"`
	SaveDir   string  `yaml:"save_dir"`
	Epochs    int     `yaml:"epochs"`
	BatchSize int     `yaml:"batch_size"`
	LR        float64 `yaml:"lr"`
	Seed      int64   `yaml:"seed"`
	ValSplit  float64 `yaml:"val_split"`
	Backend   string  `yaml:"backend"`
	Keep      int     `yaml:"keep_checkpoints"`
	Synthetic int     `yaml:"synthetic_samples"`
}

// Overrides captures CLI supplied values. Zero values mean "not set".
type Overrides struct {
	DataPath  string
	SaveDir   string
	Epochs    int
	BatchSize int
	LR        float64
	Seed      int64
	Backend   string
	Synthetic int
}

// Default returns the configuration used when no YAML file is given.
func Default() *Config {
	return &Config{
		SaveDir:   "./checkpoints",
		Epochs:    20,
		BatchSize: 8,
		LR:        1e-3,
		Seed:      2022,
		ValSplit:  0.9,
		Backend:   "cpu",
		Keep:      5,
	}
}

// Load reads and validates a Config from a YAML file. Keys absent from the
// file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.DataPath != "" {
		c.DataPath = o.DataPath
	}
	if o.SaveDir != "" {
		c.SaveDir = o.SaveDir
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.LR > 0 {
		c.LR = o.LR
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.Backend != "" {
		c.Backend = o.Backend
	}
	if o.Synthetic > 0 {
		c.Synthetic = o.Synthetic
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.DataPath == "" && c.Synthetic <= 0 {
		return errors.New("either data_path or synthetic_samples must be set")
	}
	if c.SaveDir == "" {
		return errors.New("save_dir must be set")
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.LR <= 0 {
		return fmt.Errorf("lr must be > 0 (got %g)", c.LR)
	}
	if c.ValSplit <= 0 || c.ValSplit >= 1 {
		return fmt.Errorf("val_split must be in (0, 1) (got %g)", c.ValSplit)
	}
	switch c.Backend {
	case "cpu", "webgpu":
	default:
		return fmt.Errorf("backend must be cpu or webgpu (got %q)", c.Backend)
	}
	if c.Keep <= 0 {
		c.Keep = 5
	}
	return nil
}
