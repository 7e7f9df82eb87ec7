package rgf

import (
	"github.com/YuminosukeSato/rgf/pkg/errors"
)

// ClassGate records, per channel, whether trees should be fitted and which
// constant serves the channel when they should not.
type ClassGate struct {
	needsTraining []bool
	defaultOutput []float64
}

// NewClassGate builds a gate from explicit per-channel values.
func NewClassGate(needsTraining []bool, defaultOutput []float64) (*ClassGate, error) {
	if len(needsTraining) == 0 {
		return nil, errors.NewValidationError("num_channels", "must be at least 1", 0)
	}
	if len(needsTraining) != len(defaultOutput) {
		return nil, errors.NewDimensionError("NewClassGate", len(needsTraining), len(defaultOutput), 0)
	}
	g := &ClassGate{
		needsTraining: make([]bool, len(needsTraining)),
		defaultOutput: make([]float64, len(defaultOutput)),
	}
	copy(g.needsTraining, needsTraining)
	copy(g.defaultOutput, defaultOutput)
	return g, nil
}

// ClassGateFromObjective asks an initialized objective for every channel.
func ClassGateFromObjective(objective Objective) *ClassGate {
	k := objective.NumChannels()
	g := &ClassGate{
		needsTraining: make([]bool, k),
		defaultOutput: make([]float64, k),
	}
	for c := 0; c < k; c++ {
		g.needsTraining[c] = objective.ClassNeedTrain(c)
		if !g.needsTraining[c] {
			g.defaultOutput[c] = objective.BoostFromScore(c)
		}
	}
	return g
}

// NumChannels returns the number of channels.
func (g *ClassGate) NumChannels() int { return len(g.needsTraining) }

// NeedsTraining reports whether trees are fitted for the channel.
func (g *ClassGate) NeedsTraining(channel int) bool { return g.needsTraining[channel] }

// DefaultOutput returns the constant used when the channel is not trained.
func (g *ClassGate) DefaultOutput(channel int) float64 { return g.defaultOutput[channel] }
