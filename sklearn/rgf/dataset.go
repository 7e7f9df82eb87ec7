package rgf

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rgf/pkg/errors"
)

// Dataset is a read-only view over a feature matrix and its labels.
// Weights and InitScore are optional. InitScore is channel-major:
// InitScore[c*NumData()+i] is the starting raw score of row i on channel c.
type Dataset struct {
	Name      string
	X         *mat.Dense
	Labels    []float64
	Weights   []float64
	InitScore []float64
}

// NewDataset wraps X and labels after checking that their row counts agree.
func NewDataset(X *mat.Dense, labels []float64) (*Dataset, error) {
	d := &Dataset{X: X, Labels: labels}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks shapes. InitScore is validated later against the
// objective's channel count.
func (d *Dataset) Validate() error {
	if d == nil || d.X == nil {
		return errors.ErrEmptyData
	}
	rows, cols := d.X.Dims()
	if rows == 0 || cols == 0 {
		return errors.ErrEmptyData
	}
	if len(d.Labels) != rows {
		return errors.NewDimensionError("Dataset.Validate", rows, len(d.Labels), 0)
	}
	if d.Weights != nil && len(d.Weights) != rows {
		return errors.NewDimensionError("Dataset.Validate", rows, len(d.Weights), 0)
	}
	for i, w := range d.Weights {
		if w < 0 {
			return errors.NewValidationError("weights", "must be non-negative", i)
		}
	}
	return nil
}

// NumData returns the number of rows.
func (d *Dataset) NumData() int {
	rows, _ := d.X.Dims()
	return rows
}

// NumFeatures returns the number of feature columns.
func (d *Dataset) NumFeatures() int {
	_, cols := d.X.Dims()
	return cols
}

// Row returns row i without copying.
func (d *Dataset) Row(i int) []float64 {
	return d.X.RawRowView(i)
}

// Weight returns the weight of row i, 1 when the dataset is unweighted.
func (d *Dataset) Weight(i int) float64 {
	if d.Weights == nil {
		return 1.0
	}
	return d.Weights[i]
}

// HasInitScore reports whether the caller supplied starting scores.
func (d *Dataset) HasInitScore() bool {
	return len(d.InitScore) > 0
}
