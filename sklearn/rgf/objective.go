package rgf

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/rgf/pkg/errors"
)

// Objective supplies per-point first and second order derivatives of the
// training loss plus the per-channel starting statistics used at cold start.
//
// Score and derivative slices are channel-major: element c*numData+i belongs
// to row i on channel c.
type Objective interface {
	// Name returns the canonical objective name.
	Name() string

	// NumChannels returns how many raw scores each row carries.
	NumChannels() int

	// Init binds the objective to a training set.
	Init(data *Dataset) error

	// ComputeGradients fills gradients and hessians from the current scores.
	ComputeGradients(scores, gradients, hessians []float64) error

	// BoostFromScore returns the loss-minimizing constant for a channel.
	BoostFromScore(channel int) float64

	// ClassNeedTrain reports whether fitting trees on a channel is useful.
	// When false the channel is served by BoostFromScore alone.
	ClassNeedTrain(channel int) bool

	// IsConstantHessian reports whether all hessians are identical.
	IsConstantHessian() bool

	// ConvertOutput maps one row's raw channel scores into predictions.
	ConvertOutput(raw, out []float64)

	// DefaultMetric names the evaluation metric matching the loss.
	DefaultMetric() string
}

// OutputRenewer is implemented by objectives whose optimal leaf value is not
// the Newton step, such as L1 and quantile losses.
type OutputRenewer interface {
	// RenewTreeOutput returns the replacement output of a leaf, given the
	// channel's current scores and the rows routed to the leaf.
	RenewTreeOutput(original float64, scores []float64, indices []int) float64
}

// labelStats holds label and weight slices shared by the objectives.
type labelStats struct {
	numData int
	labels  []float64
	weights []float64
}

func (s *labelStats) bind(data *Dataset) error {
	if err := data.Validate(); err != nil {
		return err
	}
	s.numData = data.NumData()
	s.labels = data.Labels
	s.weights = data.Weights
	return nil
}

func (s *labelStats) weight(i int) float64 {
	if s.weights == nil {
		return 1.0
	}
	return s.weights[i]
}

func (s *labelStats) checkLen(op string, scores, gradients, hessians []float64, channels int) error {
	want := s.numData * channels
	for _, l := range []int{len(scores), len(gradients), len(hessians)} {
		if l != want {
			return errors.NewDimensionError(op, want, l, 0)
		}
	}
	return nil
}

// weightedQuantile returns the p-quantile of values under weights (nil means
// uniform) using the empirical CDF.
func weightedQuantile(p float64, values, weights []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	x := make([]float64, len(values))
	copy(x, values)
	inds := make([]int, len(x))
	floats.Argsort(x, inds)
	var w []float64
	if weights != nil {
		w = make([]float64, len(inds))
		for i, idx := range inds {
			w[i] = weights[idx]
		}
	}
	return stat.Quantile(p, stat.Empirical, x, w)
}

// ---------------------------------------------------------------------------
// Regression
// ---------------------------------------------------------------------------

// L2Objective implements squared error loss.
type L2Objective struct {
	labelStats
}

func NewL2Objective() *L2Objective {
	return &L2Objective{}
}

func (o *L2Objective) Name() string          { return "regression" }
func (o *L2Objective) NumChannels() int      { return 1 }
func (o *L2Objective) DefaultMetric() string { return "l2" }

func (o *L2Objective) Init(data *Dataset) error {
	return o.bind(data)
}

func (o *L2Objective) ComputeGradients(scores, gradients, hessians []float64) error {
	if err := o.checkLen("L2Objective.ComputeGradients", scores, gradients, hessians, 1); err != nil {
		return err
	}
	for i := 0; i < o.numData; i++ {
		w := o.weight(i)
		gradients[i] = (scores[i] - o.labels[i]) * w
		hessians[i] = w
	}
	return nil
}

func (o *L2Objective) BoostFromScore(int) float64 {
	return stat.Mean(o.labels, o.weights)
}

func (o *L2Objective) ClassNeedTrain(int) bool { return true }

func (o *L2Objective) IsConstantHessian() bool { return o.weights == nil }

func (o *L2Objective) ConvertOutput(raw, out []float64) { copy(out, raw) }

// L1Objective implements absolute error loss. Leaf outputs are renewed to
// the weighted median of the residuals.
type L1Objective struct {
	labelStats
}

func NewL1Objective() *L1Objective {
	return &L1Objective{}
}

func (o *L1Objective) Name() string          { return "regression_l1" }
func (o *L1Objective) NumChannels() int      { return 1 }
func (o *L1Objective) DefaultMetric() string { return "l1" }

func (o *L1Objective) Init(data *Dataset) error {
	return o.bind(data)
}

func (o *L1Objective) ComputeGradients(scores, gradients, hessians []float64) error {
	if err := o.checkLen("L1Objective.ComputeGradients", scores, gradients, hessians, 1); err != nil {
		return err
	}
	for i := 0; i < o.numData; i++ {
		w := o.weight(i)
		diff := scores[i] - o.labels[i]
		switch {
		case diff > 0:
			gradients[i] = w
		case diff < 0:
			gradients[i] = -w
		default:
			gradients[i] = 0
		}
		hessians[i] = w
	}
	return nil
}

func (o *L1Objective) BoostFromScore(int) float64 {
	return weightedQuantile(0.5, o.labels, o.weights)
}

func (o *L1Objective) ClassNeedTrain(int) bool { return true }

func (o *L1Objective) IsConstantHessian() bool { return o.weights == nil }

func (o *L1Objective) ConvertOutput(raw, out []float64) { copy(out, raw) }

func (o *L1Objective) RenewTreeOutput(_ float64, scores []float64, indices []int) float64 {
	return renewPercentile(&o.labelStats, 0.5, scores, indices)
}

// QuantileObjective implements pinball loss at level Alpha.
type QuantileObjective struct {
	labelStats
	Alpha float64
}

func NewQuantileObjective(alpha float64) *QuantileObjective {
	return &QuantileObjective{Alpha: alpha}
}

func (o *QuantileObjective) Name() string          { return "quantile" }
func (o *QuantileObjective) NumChannels() int      { return 1 }
func (o *QuantileObjective) DefaultMetric() string { return "l1" }

func (o *QuantileObjective) Init(data *Dataset) error {
	if o.Alpha <= 0 || o.Alpha >= 1 {
		return errors.NewValidationError("quantile_alpha", "must be in (0, 1)", o.Alpha)
	}
	return o.bind(data)
}

func (o *QuantileObjective) ComputeGradients(scores, gradients, hessians []float64) error {
	if err := o.checkLen("QuantileObjective.ComputeGradients", scores, gradients, hessians, 1); err != nil {
		return err
	}
	for i := 0; i < o.numData; i++ {
		w := o.weight(i)
		if scores[i]-o.labels[i] >= 0 {
			gradients[i] = (1 - o.Alpha) * w
		} else {
			gradients[i] = -o.Alpha * w
		}
		hessians[i] = w
	}
	return nil
}

func (o *QuantileObjective) BoostFromScore(int) float64 {
	return weightedQuantile(o.Alpha, o.labels, o.weights)
}

func (o *QuantileObjective) ClassNeedTrain(int) bool { return true }

func (o *QuantileObjective) IsConstantHessian() bool { return o.weights == nil }

func (o *QuantileObjective) ConvertOutput(raw, out []float64) { copy(out, raw) }

func (o *QuantileObjective) RenewTreeOutput(_ float64, scores []float64, indices []int) float64 {
	return renewPercentile(&o.labelStats, o.Alpha, scores, indices)
}

func renewPercentile(s *labelStats, p float64, scores []float64, indices []int) float64 {
	residuals := make([]float64, len(indices))
	var weights []float64
	if s.weights != nil {
		weights = make([]float64, len(indices))
	}
	for k, i := range indices {
		residuals[k] = s.labels[i] - scores[i]
		if weights != nil {
			weights[k] = s.weights[i]
		}
	}
	return weightedQuantile(p, residuals, weights)
}

// ---------------------------------------------------------------------------
// Classification
// ---------------------------------------------------------------------------

// BinaryObjective implements logistic loss on labels in {0, 1}.
type BinaryObjective struct {
	labelStats
	positiveRate float64
	numPos       int
	numNeg       int
}

func NewBinaryObjective() *BinaryObjective {
	return &BinaryObjective{}
}

func (o *BinaryObjective) Name() string          { return "binary" }
func (o *BinaryObjective) NumChannels() int      { return 1 }
func (o *BinaryObjective) DefaultMetric() string { return "binary_logloss" }

func (o *BinaryObjective) Init(data *Dataset) error {
	if err := o.bind(data); err != nil {
		return err
	}
	o.numPos, o.numNeg = 0, 0
	sumPos, sumW := 0.0, 0.0
	for i, y := range o.labels {
		w := o.weight(i)
		switch y {
		case 1:
			o.numPos++
			sumPos += w
		case 0:
			o.numNeg++
		default:
			return errors.NewValidationError("label", "binary labels must be 0 or 1", y)
		}
		sumW += w
	}
	o.positiveRate = errors.SafeDivide(sumPos, sumW)
	return nil
}

func (o *BinaryObjective) ComputeGradients(scores, gradients, hessians []float64) error {
	if err := o.checkLen("BinaryObjective.ComputeGradients", scores, gradients, hessians, 1); err != nil {
		return err
	}
	for i := 0; i < o.numData; i++ {
		w := o.weight(i)
		p := sigmoid(scores[i])
		gradients[i] = (p - o.labels[i]) * w
		hessians[i] = p * (1 - p) * w
	}
	return nil
}

func (o *BinaryObjective) BoostFromScore(int) float64 {
	p := errors.ClipValue(o.positiveRate, kEpsilon, 1-kEpsilon)
	return math.Log(p / (1 - p))
}

func (o *BinaryObjective) ClassNeedTrain(int) bool {
	return o.numPos > 0 && o.numNeg > 0
}

func (o *BinaryObjective) IsConstantHessian() bool { return false }

func (o *BinaryObjective) ConvertOutput(raw, out []float64) {
	out[0] = sigmoid(raw[0])
}

// MulticlassSoftmaxObjective implements softmax cross-entropy with one
// channel per class. Labels are class ids in [0, NumClass).
type MulticlassSoftmaxObjective struct {
	labelStats
	numClass   int
	classPrior []float64
}

func NewMulticlassSoftmaxObjective(numClass int) *MulticlassSoftmaxObjective {
	return &MulticlassSoftmaxObjective{numClass: numClass}
}

func (o *MulticlassSoftmaxObjective) Name() string          { return "multiclass" }
func (o *MulticlassSoftmaxObjective) NumChannels() int      { return o.numClass }
func (o *MulticlassSoftmaxObjective) DefaultMetric() string { return "multi_logloss" }

func (o *MulticlassSoftmaxObjective) Init(data *Dataset) error {
	if err := o.bind(data); err != nil {
		return err
	}
	prior, err := classPriors(&o.labelStats, o.numClass)
	if err != nil {
		return err
	}
	o.classPrior = prior
	return nil
}

func (o *MulticlassSoftmaxObjective) ComputeGradients(scores, gradients, hessians []float64) error {
	if err := o.checkLen("MulticlassSoftmaxObjective.ComputeGradients", scores, gradients, hessians, o.numClass); err != nil {
		return err
	}
	n, k := o.numData, o.numClass
	factor := float64(k) / float64(k-1)
	raw := make([]float64, k)
	prob := make([]float64, k)
	for i := 0; i < n; i++ {
		for c := 0; c < k; c++ {
			raw[c] = scores[c*n+i]
		}
		softmax(raw, prob)
		w := o.weight(i)
		label := int(o.labels[i])
		for c := 0; c < k; c++ {
			p := prob[c]
			if c == label {
				gradients[c*n+i] = (p - 1) * w
			} else {
				gradients[c*n+i] = p * w
			}
			hessians[c*n+i] = factor * p * (1 - p) * w
		}
	}
	return nil
}

func (o *MulticlassSoftmaxObjective) BoostFromScore(channel int) float64 {
	return math.Log(math.Max(kEpsilon, o.classPrior[channel]))
}

func (o *MulticlassSoftmaxObjective) ClassNeedTrain(channel int) bool {
	p := o.classPrior[channel]
	return p > kEpsilon && p < 1-kEpsilon
}

func (o *MulticlassSoftmaxObjective) IsConstantHessian() bool { return false }

func (o *MulticlassSoftmaxObjective) ConvertOutput(raw, out []float64) {
	softmax(raw, out)
}

// MulticlassOVAObjective trains one independent logistic model per class.
type MulticlassOVAObjective struct {
	labelStats
	numClass   int
	classPrior []float64
}

func NewMulticlassOVAObjective(numClass int) *MulticlassOVAObjective {
	return &MulticlassOVAObjective{numClass: numClass}
}

func (o *MulticlassOVAObjective) Name() string          { return "multiclassova" }
func (o *MulticlassOVAObjective) NumChannels() int      { return o.numClass }
func (o *MulticlassOVAObjective) DefaultMetric() string { return "multi_logloss" }

func (o *MulticlassOVAObjective) Init(data *Dataset) error {
	if err := o.bind(data); err != nil {
		return err
	}
	prior, err := classPriors(&o.labelStats, o.numClass)
	if err != nil {
		return err
	}
	o.classPrior = prior
	return nil
}

func (o *MulticlassOVAObjective) ComputeGradients(scores, gradients, hessians []float64) error {
	if err := o.checkLen("MulticlassOVAObjective.ComputeGradients", scores, gradients, hessians, o.numClass); err != nil {
		return err
	}
	n := o.numData
	for c := 0; c < o.numClass; c++ {
		for i := 0; i < n; i++ {
			w := o.weight(i)
			y := 0.0
			if int(o.labels[i]) == c {
				y = 1.0
			}
			p := sigmoid(scores[c*n+i])
			gradients[c*n+i] = (p - y) * w
			hessians[c*n+i] = p * (1 - p) * w
		}
	}
	return nil
}

func (o *MulticlassOVAObjective) BoostFromScore(channel int) float64 {
	p := errors.ClipValue(o.classPrior[channel], kEpsilon, 1-kEpsilon)
	return math.Log(p / (1 - p))
}

func (o *MulticlassOVAObjective) ClassNeedTrain(channel int) bool {
	p := o.classPrior[channel]
	return p > kEpsilon && p < 1-kEpsilon
}

func (o *MulticlassOVAObjective) IsConstantHessian() bool { return false }

func (o *MulticlassOVAObjective) ConvertOutput(raw, out []float64) {
	for c := range raw {
		out[c] = sigmoid(raw[c])
	}
}

func classPriors(s *labelStats, numClass int) ([]float64, error) {
	if numClass < 2 {
		return nil, errors.NewValidationError("num_class", "must be at least 2 for multiclass objectives", numClass)
	}
	prior := make([]float64, numClass)
	total := 0.0
	for i, y := range s.labels {
		label := int(y)
		if float64(label) != y || label < 0 || label >= numClass {
			return nil, errors.NewValidationError("label", "class labels must be integers in [0, num_class)", y)
		}
		w := s.weight(i)
		prior[label] += w
		total += w
	}
	for c := range prior {
		prior[c] = errors.SafeDivide(prior[c], total)
	}
	return prior, nil
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + errors.StabilizeExp(-x))
}

func softmax(raw, out []float64) {
	lse := errors.LogSumExp(raw)
	for c, v := range raw {
		out[c] = math.Exp(v - lse)
	}
}

// CreateObjective creates an objective from its name and parameters.
func CreateObjective(params TrainingParams) (Objective, error) {
	switch strings.ToLower(params.Objective) {
	case "", "regression", "regression_l2", "l2", "mean_squared_error", "mse":
		return NewL2Objective(), nil
	case "regression_l1", "l1", "mean_absolute_error", "mae":
		return NewL1Objective(), nil
	case "quantile":
		return NewQuantileObjective(params.QuantileAlpha), nil
	case "binary", "logistic":
		return NewBinaryObjective(), nil
	case "multiclass", "softmax":
		return NewMulticlassSoftmaxObjective(params.NumClass), nil
	case "multiclassova", "multiclass_ova", "ova", "ovr":
		return NewMulticlassOVAObjective(params.NumClass), nil
	default:
		return nil, errors.NewValidationError("objective", "unknown objective", params.Objective)
	}
}
