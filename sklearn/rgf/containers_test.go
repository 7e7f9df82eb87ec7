package rgf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rgf/pkg/errors"
)

func TestEnsemble_RoundIndexing(t *testing.T) {
	e := NewEnsemble(2)
	assert.Equal(t, 0, e.NumRounds())
	assert.Equal(t, 0, e.ChannelLen(0))

	r0 := []*Tree{NewConstantTree(1), NewConstantTree(2)}
	r1 := []*Tree{NewConstantTree(3), NewConstantTree(4)}
	require.NoError(t, e.AppendRound(r0))
	require.NoError(t, e.AppendRound(r1))

	assert.Equal(t, 4, e.Len())
	assert.Equal(t, 2, e.NumRounds())
	assert.Equal(t, 2, e.ChannelLen(1))
	assert.Equal(t, 0, e.ChannelLen(5))
	assert.Equal(t, 4.0, e.At(1, 1).LeafOutput(0))

	e.Set(0, 1, NewConstantTree(9))
	assert.Equal(t, 9.0, e.At(0, 1).LeafOutput(0))

	popped := e.PopRound()
	require.Len(t, popped, 2)
	assert.Equal(t, 3.0, popped[0].LeafOutput(0))
	assert.Equal(t, 2, e.Len())
	assert.Len(t, e.Trees(), 2)
}

func TestEnsemble_AppendRoundRejectsPartialRounds(t *testing.T) {
	e := NewEnsemble(3)
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(e.AppendRound([]*Tree{NewConstantTree(0)}), &dimErr))
	assert.Error(t, e.AppendRound([]*Tree{NewConstantTree(0), nil, NewConstantTree(0)}))
	assert.Equal(t, 0, e.Len())
	assert.Nil(t, e.PopRound())
}

func TestScoreCache_AddTreeAndConstant(t *testing.T) {
	data := threeRowData(t)
	cache, err := NewScoreCache("training", data, 2)
	require.NoError(t, err)
	assert.Equal(t, "training", cache.Name())
	assert.Equal(t, 3, cache.NumData())

	cache.AddTree(threeLeafTree(t, 1, 2, 3), 1)
	cache.AddConstant(0.5, 0)
	cache.AddTree(NewConstantTree(-1), 0)

	assert.Equal(t, []float64{-0.5, -0.5, -0.5}, cache.ChannelScores(0))
	assert.Equal(t, []float64{1, 2, 3}, cache.ChannelScores(1))
	assert.Equal(t, []float64{-0.5, -0.5, -0.5, 1, 2, 3}, cache.Snapshot())
}

func TestScoreCache_AddTreeDelta(t *testing.T) {
	data := threeRowData(t)
	cache, err := NewScoreCache("training", data, 1)
	require.NoError(t, err)

	old := threeLeafTree(t, 1, 2, 3)
	cache.AddTree(old, 0)
	cache.AddConstant(10, 0)

	refit := threeLeafTree(t, 1.5, 1, 3)
	require.NoError(t, cache.AddTreeDelta(old, refit, 0))
	assert.InDeltaSlice(t, []float64{11.5, 11, 13}, cache.Scores(), 1e-12)

	var sie *errors.StructuralInvariantError
	assert.True(t, errors.As(cache.AddTreeDelta(old, NewConstantTree(0), 0), &sie))
}

func TestScoreCache_LargePartitionMatchesSequential(t *testing.T) {
	n := 3 * rowsPerWorker
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i % 3)
	}
	data, err := NewDataset(mat.NewDense(n, 1, x), make([]float64, n))
	require.NoError(t, err)
	cache, err := NewScoreCache("big", data, 1)
	require.NoError(t, err)

	cache.AddTree(threeLeafTree(t, 1, 2, 3), 0)
	for i, s := range cache.Scores() {
		require.Equal(t, float64(i%3+1), s)
	}
}

func TestScoreCache_InitScore(t *testing.T) {
	data := threeRowData(t)
	data.InitScore = []float64{1, 2, 3, 4, 5, 6}
	cache, err := NewScoreCache("training", data, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 5, 6}, cache.ChannelScores(1))

	_, err = NewScoreCache("training", data, 3)
	assert.Error(t, err)
}

func TestClassGate(t *testing.T) {
	g, err := NewClassGate([]bool{true, false}, []float64{0, 0.7})
	require.NoError(t, err)
	assert.Equal(t, 2, g.NumChannels())
	assert.True(t, g.NeedsTraining(0))
	assert.False(t, g.NeedsTraining(1))
	assert.Equal(t, 0.7, g.DefaultOutput(1))

	_, err = NewClassGate([]bool{true}, []float64{0, 1})
	assert.Error(t, err)
	_, err = NewClassGate(nil, nil)
	assert.Error(t, err)
}

func TestClassGateFromObjective(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	data, err := NewDataset(X, []float64{0, 0, 2, 2})
	require.NoError(t, err)
	obj := NewMulticlassSoftmaxObjective(3)
	require.NoError(t, obj.Init(data))

	g := ClassGateFromObjective(obj)
	assert.True(t, g.NeedsTraining(0))
	assert.False(t, g.NeedsTraining(1))
	assert.True(t, g.NeedsTraining(2))
	assert.InDelta(t, obj.BoostFromScore(1), g.DefaultOutput(1), 1e-12)
	assert.Equal(t, 0.0, g.DefaultOutput(0))
}

func TestGradientBuffer_Compute(t *testing.T) {
	data := threeRowData(t)
	data.Labels = []float64{1, 2, 3}
	obj := &stubObjective{channels: 2}
	require.NoError(t, obj.Init(data))

	buf := NewGradientBuffer(3, 2)
	require.NoError(t, buf.Compute(obj, []float64{0, 0, 0, 1, 1, 1}, 0))
	g, h := buf.Channel(1)
	assert.Equal(t, []float64{0, -1, -2}, g)
	assert.Equal(t, []float64{1, 1, 1}, h)
	assert.Len(t, buf.Gradients(), 6)
	assert.Len(t, buf.Hessians(), 6)

	var dimErr *errors.DimensionError
	assert.True(t, errors.As(buf.Compute(obj, []float64{0}, 0), &dimErr))
}

func TestGradientBuffer_RejectsNonFinite(t *testing.T) {
	data := threeRowData(t)
	obj := &stubObjective{channels: 1}
	require.NoError(t, obj.Init(data))

	buf := NewGradientBuffer(3, 1)
	err := buf.Compute(obj, []float64{0, mathNaN(), 0}, 7)
	var numErr *errors.NumericalInstabilityError
	require.True(t, errors.As(err, &numErr))
	assert.Equal(t, 7, numErr.Iteration)
}
