package rgf

import (
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rgf/pkg/errors"
)

// ReadNpyMatrix reads a 2-D float64 array from a .npy file.
func ReadNpyMatrix(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading npy header of %s", path)
	}
	var m mat.Dense
	if err := r.Read(&m); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return &m, nil
}

// ReadNpyVector reads a 1-D float64 array from a .npy file.
func ReadNpyVector(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	var v []float64
	if err := npyio.Read(f, &v); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return v, nil
}

// LoadNpyDataset builds a Dataset from a feature matrix file and a label
// vector file. weightsPath may be empty.
func LoadNpyDataset(name, featuresPath, labelsPath, weightsPath string) (*Dataset, error) {
	X, err := ReadNpyMatrix(featuresPath)
	if err != nil {
		return nil, err
	}
	y, err := ReadNpyVector(labelsPath)
	if err != nil {
		return nil, err
	}
	d := &Dataset{Name: name, X: X, Labels: y}
	if weightsPath != "" {
		if d.Weights, err = ReadNpyVector(weightsPath); err != nil {
			return nil, err
		}
	}
	if err := d.Validate(); err != nil {
		return nil, errors.Wrapf(err, "dataset %q", name)
	}
	return d, nil
}

// WriteNpy writes m to path in .npy format.
func WriteNpy(path string, m *mat.Dense) error {
	return writeNpy(path, m)
}

// WriteNpyVector writes v to path as a 1-D .npy array.
func WriteNpyVector(path string, v []float64) error {
	return writeNpy(path, v)
}

func writeNpy(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	if err := npyio.Write(f, v); err != nil {
		f.Close()
		return errors.Wrapf(err, "encoding %s", path)
	}
	return f.Close()
}
