package utils

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds a training run's configuration.
type Config struct {
	Model ModelConfig `yaml:"model"`
	Train TrainConfig `yaml:"train"`
	Data  DataConfig  `yaml:"data"`
	Seed  int64       `yaml:"seed"`

	Verbose bool `yaml:"verbose"`
}

type ModelConfig struct {
	InputDim      int `yaml:"input_dim"`
	OutputDim     int `yaml:"output_dim"`
	HighwayBlocks int `yaml:"highway_blocks"`
	HighwayWidth  int `yaml:"highway_width"`
}

type TrainConfig struct {
	Epochs    int     `yaml:"epochs"`
	BatchSize int     `yaml:"batch_size"`
	KeepProb  float64 `yaml:"keep_prob"`
	Decay     bool    `yaml:"decay"`
}

// DataConfig describes the synthetic dataset the CLI trains on.
type DataConfig struct {
	Samples    int     `yaml:"samples"`
	Validation float64 `yaml:"validation"`
	Spread     float64 `yaml:"spread"`
}

// Overrides captures CLI supplied values. Zero values (and nil pointers)
// leave the loaded config untouched.
type Overrides struct {
	Epochs    int
	BatchSize int
	Blocks    int
	Width     int
	KeepProb  float64
	NoDecay   bool
	Samples   int
	Seed      int64
	Verbose   *bool
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Model: ModelConfig{InputDim: 16, OutputDim: 4, HighwayBlocks: 10, HighwayWidth: 64},
		Train: TrainConfig{Epochs: 10, BatchSize: 128, KeepProb: 1.0, Decay: true},
		Data:  DataConfig{Samples: 2048, Validation: 0.2, Spread: 1.0},
		Seed:  42,

		Verbose: true,
	}
}

// Load reads a YAML config on top of Default and validates it.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML from r over the defaults. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyOverrides updates c using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Epochs > 0 {
		c.Train.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.Train.BatchSize = o.BatchSize
	}
	if o.Blocks > 0 {
		c.Model.HighwayBlocks = o.Blocks
	}
	if o.Width > 0 {
		c.Model.HighwayWidth = o.Width
	}
	if o.KeepProb > 0 {
		c.Train.KeepProb = o.KeepProb
	}
	if o.NoDecay {
		c.Train.Decay = false
	}
	if o.Samples > 0 {
		c.Data.Samples = o.Samples
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.Verbose != nil {
		c.Verbose = *o.Verbose
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	m := c.Model
	if m.InputDim <= 0 || m.OutputDim <= 0 {
		return fmt.Errorf("model dims must be > 0 (got input %d, output %d)", m.InputDim, m.OutputDim)
	}
	if m.OutputDim < 2 {
		return fmt.Errorf("output_dim must be >= 2 (got %d)", m.OutputDim)
	}
	if m.HighwayBlocks < 0 {
		return fmt.Errorf("highway_blocks must be >= 0 (got %d)", m.HighwayBlocks)
	}
	if m.HighwayWidth <= 0 {
		return fmt.Errorf("highway_width must be > 0 (got %d)", m.HighwayWidth)
	}
	if c.Train.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Train.Epochs)
	}
	if c.Train.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.Train.BatchSize)
	}
	if c.Train.KeepProb <= 0 || c.Train.KeepProb > 1 {
		return fmt.Errorf("keep_prob must be in (0, 1] (got %v)", c.Train.KeepProb)
	}
	if c.Data.Samples <= 0 {
		return fmt.Errorf("samples must be > 0 (got %d)", c.Data.Samples)
	}
	if c.Data.Validation < 0 || c.Data.Validation >= 1 {
		return fmt.Errorf("validation must be in [0, 1) (got %v)", c.Data.Validation)
	}
	return nil
}
