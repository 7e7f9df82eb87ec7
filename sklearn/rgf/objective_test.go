package rgf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rgf/pkg/errors"
)

func labelled(t *testing.T, labels ...float64) *Dataset {
	t.Helper()
	x := make([]float64, len(labels))
	for i := range x {
		x[i] = float64(i)
	}
	d, err := NewDataset(mat.NewDense(len(labels), 1, x), labels)
	require.NoError(t, err)
	return d
}

func TestL2Objective(t *testing.T) {
	data := labelled(t, 1, 2, 3)
	data.Weights = []float64{1, 2, 1}
	obj := NewL2Objective()
	require.NoError(t, obj.Init(data))

	g := make([]float64, 3)
	h := make([]float64, 3)
	require.NoError(t, obj.ComputeGradients([]float64{0, 0, 0}, g, h))
	assert.Equal(t, []float64{-1, -4, -3}, g)
	assert.Equal(t, []float64{1, 2, 1}, h)
	assert.InDelta(t, 2.0, obj.BoostFromScore(0), 1e-12)
	assert.False(t, obj.IsConstantHessian())
	assert.True(t, obj.ClassNeedTrain(0))

	assert.Error(t, obj.ComputeGradients([]float64{0}, g, h))
}

func TestL1Objective(t *testing.T) {
	data := labelled(t, 1, 5, 3)
	obj := NewL1Objective()
	require.NoError(t, obj.Init(data))

	g := make([]float64, 3)
	h := make([]float64, 3)
	require.NoError(t, obj.ComputeGradients([]float64{3, 3, 3}, g, h))
	assert.Equal(t, []float64{1, -1, 0}, g)
	assert.Equal(t, 3.0, obj.BoostFromScore(0))
	assert.True(t, obj.IsConstantHessian())

	renewed := obj.RenewTreeOutput(0, []float64{0, 1, 0}, []int{0, 1, 2})
	assert.Equal(t, 3.0, renewed)
}

func TestQuantileObjective(t *testing.T) {
	data := labelled(t, 1, 2, 3, 4, 5)
	obj := NewQuantileObjective(0.8)
	require.NoError(t, obj.Init(data))

	g := make([]float64, 5)
	h := make([]float64, 5)
	require.NoError(t, obj.ComputeGradients([]float64{3, 3, 3, 3, 3}, g, h))
	assert.InDeltaSlice(t, []float64{0.2, 0.2, 0.2, -0.8, -0.8}, g, 1e-12)
	assert.Equal(t, 4.0, obj.BoostFromScore(0))

	assert.Error(t, NewQuantileObjective(1.5).Init(data))
}

func TestBinaryObjective(t *testing.T) {
	data := labelled(t, 1, 1, 1, 0)
	obj := NewBinaryObjective()
	require.NoError(t, obj.Init(data))

	g := make([]float64, 4)
	h := make([]float64, 4)
	require.NoError(t, obj.ComputeGradients(make([]float64, 4), g, h))
	assert.InDeltaSlice(t, []float64{-0.5, -0.5, -0.5, 0.5}, g, 1e-12)
	assert.InDeltaSlice(t, []float64{0.25, 0.25, 0.25, 0.25}, h, 1e-12)
	assert.InDelta(t, math.Log(3), obj.BoostFromScore(0), 1e-12)
	assert.True(t, obj.ClassNeedTrain(0))

	out := make([]float64, 1)
	obj.ConvertOutput([]float64{0}, out)
	assert.InDelta(t, 0.5, out[0], 1e-12)
}

func TestBinaryObjective_SingleClass(t *testing.T) {
	obj := NewBinaryObjective()
	require.NoError(t, obj.Init(labelled(t, 1, 1, 1)))
	assert.False(t, obj.ClassNeedTrain(0))
	assert.Greater(t, obj.BoostFromScore(0), 30.0)

	var ve *errors.ValidationError
	assert.True(t, errors.As(NewBinaryObjective().Init(labelled(t, 0, 2)), &ve))
}

func TestMulticlassSoftmaxObjective(t *testing.T) {
	data := labelled(t, 0, 1, 2, 2)
	obj := NewMulticlassSoftmaxObjective(3)
	require.NoError(t, obj.Init(data))
	assert.Equal(t, 3, obj.NumChannels())

	n := 4
	scores := []float64{
		0.1, -0.2, 0.3, 0, // channel 0
		0.5, 0.1, -0.4, 0, // channel 1
		-0.3, 0.2, 0.0, 0, // channel 2
	}
	g := make([]float64, 3*n)
	h := make([]float64, 3*n)
	require.NoError(t, obj.ComputeGradients(scores, g, h))

	for i := 0; i < n; i++ {
		assert.InDelta(t, 0.0, g[i]+g[n+i]+g[2*n+i], 1e-12, "row %d", i)
		for c := 0; c < 3; c++ {
			assert.Greater(t, h[c*n+i], 0.0)
		}
	}
	// uniform scores give p = 1/3 and hessian factor 3/2
	assert.InDelta(t, 1.5*(1.0/3)*(2.0/3), h[3], 1e-12)
	assert.InDelta(t, 1.0/3-1, g[2*n+3], 1e-12)

	assert.InDelta(t, math.Log(0.5), obj.BoostFromScore(2), 1e-12)

	out := make([]float64, 3)
	obj.ConvertOutput([]float64{1, 2, 3}, out)
	assert.InDelta(t, 1.0, out[0]+out[1]+out[2], 1e-12)
	assert.Greater(t, out[2], out[1])
}

func TestMulticlassObjectives_LabelChecks(t *testing.T) {
	assert.Error(t, NewMulticlassSoftmaxObjective(3).Init(labelled(t, 0, 3)))
	assert.Error(t, NewMulticlassSoftmaxObjective(3).Init(labelled(t, 0, 1.5)))
	assert.Error(t, NewMulticlassOVAObjective(1).Init(labelled(t, 0, 0)))
}

func TestMulticlassOVAObjective(t *testing.T) {
	data := labelled(t, 0, 1, 1, 1)
	obj := NewMulticlassOVAObjective(3)
	require.NoError(t, obj.Init(data))

	g := make([]float64, 12)
	h := make([]float64, 12)
	require.NoError(t, obj.ComputeGradients(make([]float64, 12), g, h))
	assert.InDeltaSlice(t, []float64{-0.5, 0.5, 0.5, 0.5}, g[:4], 1e-12)
	assert.InDeltaSlice(t, []float64{0.5, -0.5, -0.5, -0.5}, g[4:8], 1e-12)
	assert.InDelta(t, math.Log(0.25/0.75), obj.BoostFromScore(0), 1e-12)
	assert.False(t, obj.ClassNeedTrain(2))

	out := make([]float64, 3)
	obj.ConvertOutput([]float64{0, 0, 0}, out)
	assert.InDeltaSlice(t, []float64{0.5, 0.5, 0.5}, out, 1e-12)
}

func TestCreateObjective(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"", "regression"},
		{"mse", "regression"},
		{"MAE", "regression_l1"},
		{"quantile", "quantile"},
		{"binary", "binary"},
		{"softmax", "multiclass"},
		{"ova", "multiclassova"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewTrainingParams()
			p.Objective = tt.name
			p.NumClass = 3
			obj, err := CreateObjective(p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, obj.Name())
		})
	}

	p := NewTrainingParams()
	p.Objective = "poisson"
	_, err := CreateObjective(p)
	assert.Error(t, err)
}

func TestWeightedQuantile(t *testing.T) {
	assert.Equal(t, 2.0, weightedQuantile(0.5, []float64{3, 1, 2}, nil))
	assert.Equal(t, 3.0, weightedQuantile(0.5, []float64{3, 1, 2}, []float64{5, 1, 1}))
	assert.Equal(t, 0.0, weightedQuantile(0.5, nil, nil))
}
