package rgf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/rgf/pkg/errors"
)

func l2Derivatives(labels []float64, scores []float64) ([]float64, []float64) {
	g := make([]float64, len(labels))
	h := make([]float64, len(labels))
	for i, y := range labels {
		g[i] = scores[i] - y
		h[i] = 1
	}
	return g, h
}

func TestGreedyLearner_FindsStepSplit(t *testing.T) {
	data := stepData(t, 40, 10)
	params := NewTrainingParams()
	params.NumLeaves = 2
	params.MinDataInLeaf = 5
	learner, err := NewGreedyLearner(data, params)
	require.NoError(t, err)

	g, h := l2Derivatives(data.Labels, make([]float64, 40))
	tree, err := learner.Fit(g, h, true)
	require.NoError(t, err)

	require.Equal(t, 2, tree.NumLeaves())
	nodes := tree.Nodes()
	assert.Equal(t, 0, nodes[0].SplitFeature)
	assert.InDelta(t, 19.5, nodes[0].Threshold, 1e-12)
	assert.Greater(t, nodes[0].Gain, 0.0)
	assert.InDelta(t, 0.0, tree.Predict(data.Row(0)), 1e-9)
	assert.InDelta(t, 10.0, tree.Predict(data.Row(39)), 1e-9)
}

func TestGreedyLearner_RespectsNumLeavesAndDepth(t *testing.T) {
	data := stepData(t, 64, 0)
	for i := range data.Labels {
		data.Labels[i] = float64(i)
	}
	g, h := l2Derivatives(data.Labels, make([]float64, 64))

	params := NewTrainingParams()
	params.NumLeaves = 5
	params.MinDataInLeaf = 2
	learner, err := NewGreedyLearner(data, params)
	require.NoError(t, err)
	tree, err := learner.Fit(g, h, true)
	require.NoError(t, err)
	assert.Equal(t, 5, tree.NumLeaves())

	params.MaxDepth = 1
	learner, err = NewGreedyLearner(data, params)
	require.NoError(t, err)
	tree, err = learner.Fit(g, h, true)
	require.NoError(t, err)
	assert.Equal(t, 2, tree.NumLeaves())
}

func TestGreedyLearner_NoSplitGivesSingleLeaf(t *testing.T) {
	data := stepData(t, 10, 1)
	params := NewTrainingParams()
	params.MinDataInLeaf = 6
	learner, err := NewGreedyLearner(data, params)
	require.NoError(t, err)

	g, h := l2Derivatives(data.Labels, make([]float64, 10))
	tree, err := learner.Fit(g, h, true)
	require.NoError(t, err)
	assert.True(t, tree.IsConstant())
	assert.InDelta(t, 0.5, tree.LeafOutput(0), 1e-9)
}

func TestGreedyLearner_BaggingRestrictsRows(t *testing.T) {
	data := stepData(t, 40, 10)
	params := NewTrainingParams()
	params.MinDataInLeaf = 2
	learner, err := NewGreedyLearner(data, params)
	require.NoError(t, err)

	bag := make([]int, 10)
	for i := range bag {
		bag[i] = i
	}
	learner.SetBaggingData(bag)

	g, h := l2Derivatives(data.Labels, make([]float64, 40))
	tree, err := learner.Fit(g, h, true)
	require.NoError(t, err)
	// the bag only sees the flat left half
	assert.True(t, tree.IsConstant())

	learner.SetBaggingData(nil)
	tree, err = learner.Fit(g, h, true)
	require.NoError(t, err)
	assert.False(t, tree.IsConstant())
}

func TestGreedyLearner_RenewOutputsUsesObjective(t *testing.T) {
	data := stepData(t, 40, 10)
	params := NewTrainingParams()
	params.NumLeaves = 2
	params.MinDataInLeaf = 5
	learner, err := NewGreedyLearner(data, params)
	require.NoError(t, err)

	obj := NewL1Objective()
	require.NoError(t, obj.Init(data))
	scores := make([]float64, 40)
	g := make([]float64, 40)
	h := make([]float64, 40)
	require.NoError(t, obj.ComputeGradients(scores, g, h))

	tree, err := learner.Fit(g, h, true)
	require.NoError(t, err)
	require.Equal(t, 2, tree.NumLeaves())
	assert.InDelta(t, 1.0, tree.Predict(data.Row(39)), 1e-9)

	renewed, err := learner.RenewOutputs(tree, obj, scores, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, renewed.Predict(data.Row(0)), 1e-12)
	assert.InDelta(t, 10.0, renewed.Predict(data.Row(39)), 1e-12)

	// objectives without a renewal rule keep the Newton outputs
	plain := threeLeafTree(t, 1, 2, 3)
	same, err := learner.RenewOutputs(plain, NewL2Objective(), scores, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, same.LeafOutputs())

	_, err = learner.RenewOutputs(tree, obj, scores[:3], nil)
	assert.Error(t, err)
}

func TestGreedyLearner_RefitExisting(t *testing.T) {
	data := stepData(t, 40, 10)
	params := NewTrainingParams()
	params.NumLeaves = 2
	params.MinDataInLeaf = 5
	params.RefitDecayRate = 0.5
	learner, err := NewGreedyLearner(data, params)
	require.NoError(t, err)

	g, h := l2Derivatives(data.Labels, make([]float64, 40))
	tree, err := learner.Fit(g, h, true)
	require.NoError(t, err)
	before := tree.LeafOutputs()

	zero := make([]float64, 40)
	ones := make([]float64, 40)
	for i := range ones {
		ones[i] = 1
	}

	same, err := learner.RefitExisting(tree, zero, ones)
	require.NoError(t, err)
	assert.InDeltaSlice(t, before, same.LeafOutputs(), 1e-12)

	moved, err := learner.RefitExisting(tree, ones, ones)
	require.NoError(t, err)
	assert.True(t, moved.SameStructure(tree))
	for i, v := range before {
		assert.InDelta(t, v-0.5, moved.LeafOutput(i), 1e-9)
	}
	// the input tree is untouched
	assert.Equal(t, before, tree.LeafOutputs())

	var dimErr *errors.DimensionError
	_, err = learner.RefitExisting(tree, ones[:2], ones)
	assert.True(t, errors.As(err, &dimErr))
}

func TestGreedyLearner_RefitScalesByShrinkage(t *testing.T) {
	data := threeRowData(t)
	learner, err := NewGreedyLearner(data, NewTrainingParams())
	require.NoError(t, err)

	tree := threeLeafTree(t, 1, 2, 3)
	tree.Shrinkage(0.1)
	g := []float64{-1, -1, -1}
	h := []float64{1, 1, 1}
	refit, err := learner.RefitExisting(tree, g, h)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.2, 0.3, 0.4}, refit.LeafOutputs(), 1e-12)
}
