// Package config loads training experiment configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Train holds every knob of a training run. Zero values are filled from
// Default before a file is applied, so partial files are fine.
type Train struct {
	// Data locations.
	Vectors    string `yaml:"vectors"`
	Vocabulary string `yaml:"vocabulary"`
	TrainDir   string `yaml:"train_dir"`
	ValDir     string `yaml:"val_dir"`
	Checkpoint string `yaml:"checkpoint"`

	// Model hyperparameters.
	HiddenDim int     `yaml:"hidden_dim"`
	ScoreDim  int     `yaml:"score_dim"`
	Dropout   float64 `yaml:"dropout"`
	MaxLen    int     `yaml:"max_len"`
	Windows   []int   `yaml:"windows"`
	Pooling   string  `yaml:"pooling"`
	Skim      int     `yaml:"skim"`

	// Optimization.
	BatchSize     int     `yaml:"batch_size"`
	LearningRate  float64 `yaml:"learning_rate"`
	Epochs        int     `yaml:"epochs"`
	Steps         int     `yaml:"steps"`
	ValCheckpoint int     `yaml:"val_checkpoint"`
	Threshold     float64 `yaml:"threshold"`
	Seed          int64   `yaml:"seed"`
}

// Default mirrors the published training setup.
func Default() Train {
	return Train{
		Checkpoint:    "topseg",
		HiddenDim:     256,
		ScoreDim:      256,
		Dropout:       0.20,
		MaxLen:        64,
		Windows:       []int{3, 4, 5},
		Pooling:       "max",
		BatchSize:     8,
		LearningRate:  1e-3,
		Epochs:        100,
		Steps:         25,
		ValCheckpoint: 1,
		Threshold:     0.50,
		Seed:          1,
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Train, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Train{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Train{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
