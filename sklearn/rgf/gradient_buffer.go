package rgf

import (
	"github.com/YuminosukeSato/rgf/pkg/errors"
)

// GradientBuffer owns the channel-major gradient and hessian arrays of the
// training partition. Contents are valid until the next Compute.
type GradientBuffer struct {
	numData     int
	numChannels int
	gradients   []float64
	hessians    []float64
}

// NewGradientBuffer allocates buffers for numData rows on numChannels channels.
func NewGradientBuffer(numData, numChannels int) *GradientBuffer {
	return &GradientBuffer{
		numData:     numData,
		numChannels: numChannels,
		gradients:   make([]float64, numData*numChannels),
		hessians:    make([]float64, numData*numChannels),
	}
}

// Compute refreshes both arrays from scores and rejects non-finite results.
func (b *GradientBuffer) Compute(objective Objective, scores []float64, round int) error {
	if len(scores) != len(b.gradients) {
		return errors.NewDimensionError("GradientBuffer.Compute", len(b.gradients), len(scores), 0)
	}
	if err := objective.ComputeGradients(scores, b.gradients, b.hessians); err != nil {
		return errors.Wrapf(err, "objective %s", objective.Name())
	}
	if err := errors.CheckNumericalStability("gradients", b.gradients, round); err != nil {
		return err
	}
	return errors.CheckNumericalStability("hessians", b.hessians, round)
}

// Gradients returns the live gradient array.
func (b *GradientBuffer) Gradients() []float64 { return b.gradients }

// Hessians returns the live hessian array.
func (b *GradientBuffer) Hessians() []float64 { return b.hessians }

// Channel returns the live gradient and hessian slices of one channel.
func (b *GradientBuffer) Channel(channel int) (gradients, hessians []float64) {
	lo, hi := channel*b.numData, (channel+1)*b.numData
	return b.gradients[lo:hi], b.hessians[lo:hi]
}
