package rgf

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rgf/pkg/log"
)

// threeRowData routes row i to leaf i of threeLeafTree.
func threeRowData(t *testing.T) *Dataset {
	t.Helper()
	d, err := NewDataset(mat.NewDense(3, 1, []float64{0, 1, 2}), []float64{0, 0, 0})
	require.NoError(t, err)
	return d
}

// threeLeafTree splits feature 0 at 0.5 and 1.5.
func threeLeafTree(t *testing.T, outputs ...float64) *Tree {
	t.Helper()
	nodes := []Node{
		{NodeType: NumericalNode, LeftChild: 1, RightChild: 2, SplitFeature: 0, Threshold: 0.5},
		{NodeType: LeafNode, LeftChild: -1, RightChild: -1, LeafIndex: 0},
		{NodeType: NumericalNode, LeftChild: 3, RightChild: 4, SplitFeature: 0, Threshold: 1.5},
		{NodeType: LeafNode, LeftChild: -1, RightChild: -1, LeafIndex: 1},
		{NodeType: LeafNode, LeftChild: -1, RightChild: -1, LeafIndex: 2},
	}
	tree, err := NewTree(nodes, outputs)
	require.NoError(t, err)
	return tree
}

// stepData has n rows with x = i and y = 0 below n/2, high above.
func stepData(t *testing.T, n int, high float64) *Dataset {
	t.Helper()
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
		if i >= n/2 {
			y[i] = high
		}
	}
	d, err := NewDataset(mat.NewDense(n, 1, x), y)
	require.NoError(t, err)
	return d
}

func quietLogger() log.Logger {
	l, _ := log.NewTestLogger(log.LevelError)
	return l
}

func testParams() TrainingParams {
	p := NewTrainingParams()
	p.LearningRate = 0.1
	p.BiasEpsilon = 1e-12
	p.MinDataInLeaf = 1
	return p
}

// stubObjective is a squared-error objective with scripted per-channel
// statistics. It records the scores of the last gradient request.
type stubObjective struct {
	channels  int
	bias      []float64
	needTrain []bool

	n          int
	labels     []float64
	gradCalls  int
	lastScores []float64
}

func (o *stubObjective) Name() string          { return "stub" }
func (o *stubObjective) NumChannels() int      { return o.channels }
func (o *stubObjective) DefaultMetric() string { return "l2" }

func (o *stubObjective) Init(data *Dataset) error {
	o.n = data.NumData()
	o.labels = data.Labels
	return nil
}

func (o *stubObjective) ComputeGradients(scores, gradients, hessians []float64) error {
	o.gradCalls++
	o.lastScores = append(o.lastScores[:0], scores...)
	for c := 0; c < o.channels; c++ {
		for i := 0; i < o.n; i++ {
			gradients[c*o.n+i] = scores[c*o.n+i] - o.labels[i]
			hessians[c*o.n+i] = 1
		}
	}
	return nil
}

func (o *stubObjective) BoostFromScore(c int) float64 {
	if o.bias == nil {
		return 0
	}
	return o.bias[c]
}

func (o *stubObjective) ClassNeedTrain(c int) bool {
	if o.needTrain == nil {
		return true
	}
	return o.needTrain[c]
}

func (o *stubObjective) IsConstantHessian() bool { return true }

func (o *stubObjective) ConvertOutput(raw, out []float64) { copy(out, raw) }

// stubLearner returns scripted trees and counts calls. Safe for concurrent use.
type stubLearner struct {
	mu         sync.Mutex
	fit        func(call int) (*Tree, error)
	refit      func(tree *Tree) (*Tree, error)
	fitCalls   int
	refitCalls int
}

func (s *stubLearner) Fit(_, _ []float64, _ bool) (*Tree, error) {
	s.mu.Lock()
	call := s.fitCalls
	s.fitCalls++
	s.mu.Unlock()
	if s.fit == nil {
		return NewConstantTree(0), nil
	}
	return s.fit(call)
}

func (s *stubLearner) RenewOutputs(tree *Tree, _ Objective, _ []float64, _ []int) (*Tree, error) {
	return tree, nil
}

func (s *stubLearner) RefitExisting(tree *Tree, _, _ []float64) (*Tree, error) {
	s.mu.Lock()
	s.refitCalls++
	s.mu.Unlock()
	if s.refit != nil {
		return s.refit(tree)
	}
	out := tree.Clone()
	for i := 0; i < out.NumLeaves(); i++ {
		out.SetLeafOutput(i, out.LeafOutput(i)+0.5)
	}
	return out, nil
}

// recordingObserver keeps every event it receives.
type recordingObserver struct {
	mu     sync.Mutex
	rounds []RoundEvent
	refits []RefitEvent
}

func (r *recordingObserver) OnRound(e RoundEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rounds = append(r.rounds, e)
}

func (r *recordingObserver) OnRefit(e RefitEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refits = append(r.refits, e)
}

// assertScoresMatchEnsemble checks that cached scores equal a fresh sum
// over the ensemble for every row and channel.
func assertScoresMatchEnsemble(t *testing.T, b *Booster, data *Dataset, scores []float64) {
	t.Helper()
	pred, err := b.Predict(data.X, 0)
	require.NoError(t, err)
	n, k := data.NumData(), b.NumChannels()
	for c := 0; c < k; c++ {
		for i := 0; i < n; i++ {
			require.InDeltaf(t, pred.At(i, c), scores[c*n+i], 1e-9, "row %d channel %d", i, c)
		}
	}
}

func mathNaN() float64 { return math.NaN() }
