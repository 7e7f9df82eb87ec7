package rgf

import (
	"github.com/YuminosukeSato/rgf/pkg/errors"
)

const (
	// kEpsilon is the smallest probability or bias magnitude treated as non-zero.
	kEpsilon = 1e-15

	// DefaultRefitPeriod is the number of rounds between corrective sweeps.
	DefaultRefitPeriod = 100
)

// TrainingParams contains all parameters for training. Zero values are
// replaced by defaults in NewBooster, except for the booleans, which keep
// the value set by NewTrainingParams unless the caller overrides them.
type TrainingParams struct {
	// Basic parameters
	NumIterations int     `json:"num_iterations" yaml:"num_iterations"`
	LearningRate  float64 `json:"learning_rate" yaml:"learning_rate"`
	NumLeaves     int     `json:"num_leaves" yaml:"num_leaves"`
	MaxDepth      int     `json:"max_depth" yaml:"max_depth"`
	MinDataInLeaf int     `json:"min_data_in_leaf" yaml:"min_data_in_leaf"`

	// Regularization
	Lambda              float64 `json:"lambda_l2" yaml:"lambda_l2"`
	MinGainToSplit      float64 `json:"min_gain_to_split" yaml:"min_gain_to_split"`
	MinSumHessianInLeaf float64 `json:"min_sum_hessian_in_leaf" yaml:"min_sum_hessian_in_leaf"`

	// Sampling
	BaggingFraction float64 `json:"bagging_fraction" yaml:"bagging_fraction"`
	BaggingFreq     int     `json:"bagging_freq" yaml:"bagging_freq"`

	// Objective
	Objective     string  `json:"objective" yaml:"objective"`
	NumClass      int     `json:"num_class" yaml:"num_class"`
	QuantileAlpha float64 `json:"quantile_alpha" yaml:"quantile_alpha"`

	// Cold start
	BoostFromAverage bool    `json:"boost_from_average" yaml:"boost_from_average"`
	BiasEpsilon      float64 `json:"bias_epsilon" yaml:"bias_epsilon"`

	// Fully corrective update. A negative RefitPeriod disables the sweep.
	RefitPeriod    int     `json:"refit_period" yaml:"refit_period"`
	RefitDecayRate float64 `json:"refit_decay_rate" yaml:"refit_decay_rate"`

	// Other
	NumThreads    int    `json:"num_threads" yaml:"num_threads"`
	Seed          int64  `json:"seed" yaml:"seed"`
	Verbosity     int    `json:"verbosity" yaml:"verbosity"`
	EarlyStopping int    `json:"early_stopping_rounds" yaml:"early_stopping_rounds"`
	Metric        string `json:"metric" yaml:"metric"`
}

// NewTrainingParams returns parameters with every default filled in.
func NewTrainingParams() TrainingParams {
	p := TrainingParams{BoostFromAverage: true}
	p.applyDefaults()
	return p
}

func (p *TrainingParams) applyDefaults() {
	if p.NumIterations == 0 {
		p.NumIterations = 100
	}
	if p.LearningRate == 0 {
		p.LearningRate = 0.1
	}
	if p.NumLeaves == 0 {
		p.NumLeaves = 31
	}
	if p.MinDataInLeaf == 0 {
		p.MinDataInLeaf = 20
	}
	if p.MinSumHessianInLeaf == 0 {
		p.MinSumHessianInLeaf = 1e-3
	}
	if p.BaggingFraction == 0 {
		p.BaggingFraction = 1.0
	}
	if p.Objective == "" {
		p.Objective = "regression"
	}
	if p.QuantileAlpha == 0 {
		p.QuantileAlpha = 0.9
	}
	if p.BiasEpsilon == 0 {
		p.BiasEpsilon = kEpsilon
	}
	if p.RefitPeriod == 0 {
		p.RefitPeriod = DefaultRefitPeriod
	}
	if p.NumThreads == 0 {
		p.NumThreads = 1
	}
}

// Validate checks parameter ranges.
func (p TrainingParams) Validate() error {
	if p.NumIterations < 0 {
		return errors.NewValidationError("num_iterations", "must be non-negative", p.NumIterations)
	}
	if p.LearningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be positive", p.LearningRate)
	}
	if p.NumLeaves < 2 {
		return errors.NewValidationError("num_leaves", "must be at least 2", p.NumLeaves)
	}
	if p.MinDataInLeaf < 1 {
		return errors.NewValidationError("min_data_in_leaf", "must be at least 1", p.MinDataInLeaf)
	}
	if p.Lambda < 0 {
		return errors.NewValidationError("lambda_l2", "must be non-negative", p.Lambda)
	}
	if p.BaggingFraction <= 0 || p.BaggingFraction > 1 {
		return errors.NewValidationError("bagging_fraction", "must be in (0, 1]", p.BaggingFraction)
	}
	if p.BaggingFreq < 0 {
		return errors.NewValidationError("bagging_freq", "must be non-negative", p.BaggingFreq)
	}
	if p.BiasEpsilon < 0 {
		return errors.NewValidationError("bias_epsilon", "must be non-negative", p.BiasEpsilon)
	}
	if p.RefitDecayRate < 0 || p.RefitDecayRate >= 1 {
		return errors.NewValidationError("refit_decay_rate", "must be in [0, 1)", p.RefitDecayRate)
	}
	if p.NumThreads < 1 {
		return errors.NewValidationError("num_threads", "must be at least 1", p.NumThreads)
	}
	if p.EarlyStopping < 0 {
		return errors.NewValidationError("early_stopping_rounds", "must be non-negative", p.EarlyStopping)
	}
	return nil
}
