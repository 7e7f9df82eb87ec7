package main

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/rgf/pkg/errors"
	"github.com/YuminosukeSato/rgf/sklearn/rgf"
)

// DataConfig points at the .npy inputs of one partition.
type DataConfig struct {
	Features string `yaml:"features"`
	Labels   string `yaml:"labels"`
	Weights  string `yaml:"weights"`
}

// OutputConfig lists the artifacts written after training. Empty paths are skipped.
type OutputConfig struct {
	Predictions   string `yaml:"predictions"`
	LearningCurve string `yaml:"learning_curve"`
	Metrics       string `yaml:"metrics"`
}

// Config is the layout of the YAML file passed to `rgf train`.
type Config struct {
	LogLevel string             `yaml:"log_level"`
	Params   rgf.TrainingParams `yaml:"params"`
	Train    DataConfig         `yaml:"train"`
	Valid    []DataConfig       `yaml:"valid"`
	Output   OutputConfig       `yaml:"output"`
}

// LoadConfig reads path on top of the default parameters.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	return parseConfig(raw)
}

func parseConfig(raw []byte) (*Config, error) {
	cfg := &Config{
		LogLevel: "info",
		Params:   rgf.NewTrainingParams(),
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	if cfg.Train.Features == "" || cfg.Train.Labels == "" {
		return nil, errors.NewValidationError("train", "features and labels are required", cfg.Train)
	}
	for i, v := range cfg.Valid {
		if v.Features == "" || v.Labels == "" {
			return nil, errors.NewValidationError("valid", "features and labels are required", i)
		}
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
