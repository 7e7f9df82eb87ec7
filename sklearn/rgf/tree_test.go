package rgf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTree_PredictLeaf(t *testing.T) {
	tree := threeLeafTree(t, 1, 2, 3)
	assert.Equal(t, 3, tree.NumLeaves())
	assert.Equal(t, 5, tree.NumNodes())

	tests := []struct {
		x    float64
		leaf int
	}{
		{-1, 0}, {0.5, 0}, {1, 1}, {1.5, 1}, {1.6, 2}, {math.NaN(), 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.leaf, tree.PredictLeaf([]float64{tt.x}), "x=%v", tt.x)
	}
	assert.Equal(t, 2.0, tree.Predict([]float64{1}))
}

func TestTree_DefaultLeftSendsNaNLeft(t *testing.T) {
	nodes := []Node{
		{NodeType: NumericalNode, LeftChild: 1, RightChild: 2, SplitFeature: 0, Threshold: 0, DefaultLeft: true},
		{NodeType: LeafNode, LeafIndex: 0},
		{NodeType: LeafNode, LeafIndex: 1},
	}
	tree, err := NewTree(nodes, []float64{-1, 1})
	require.NoError(t, err)
	assert.Equal(t, -1.0, tree.Predict([]float64{math.NaN()}))
}

func TestNewTree_RejectsMalformedTrees(t *testing.T) {
	leaf := func(i int) Node { return Node{NodeType: LeafNode, LeafIndex: i} }

	_, err := NewTree(nil, nil)
	assert.Error(t, err)

	// duplicated leaf index
	_, err = NewTree([]Node{{NodeType: NumericalNode, LeftChild: 1, RightChild: 2}, leaf(0), leaf(0)}, []float64{0, 0})
	assert.Error(t, err)

	// unreferenced leaf
	_, err = NewTree([]Node{leaf(0)}, []float64{0, 0})
	assert.Error(t, err)

	// backward child pointer
	_, err = NewTree([]Node{leaf(0), {NodeType: NumericalNode, LeftChild: 0, RightChild: 0}}, []float64{0})
	assert.Error(t, err)
}

func TestTree_ShrinkageAndBias(t *testing.T) {
	tree := threeLeafTree(t, 1.0, -0.5, 2.0)
	tree.Shrinkage(0.1)
	tree.AddBias(0.2)
	assert.InDeltaSlice(t, []float64{0.3, -0.05, 0.4}, tree.LeafOutputs(), 1e-12)
	assert.InDelta(t, 0.1, tree.ShrinkageRate(), 1e-15)

	tree.Shrinkage(0.5)
	assert.InDelta(t, 0.05, tree.ShrinkageRate(), 1e-15)
}

func TestTree_AsConstantTree(t *testing.T) {
	tree := threeLeafTree(t, 1, 2, 3)
	tree.Shrinkage(0.1)
	tree.AsConstantTree(0.7)

	assert.True(t, tree.IsConstant())
	assert.Equal(t, 1, tree.NumLeaves())
	assert.Equal(t, 1.0, tree.ShrinkageRate())
	assert.Equal(t, 0.7, tree.Predict([]float64{5}))
}

func TestTree_CloneIsIndependent(t *testing.T) {
	tree := threeLeafTree(t, 1, 2, 3)
	c := tree.Clone()
	c.SetLeafOutput(0, 100)

	assert.Equal(t, 1.0, tree.LeafOutput(0))
	assert.True(t, c.SameStructure(tree))
}

func TestTree_SameStructure(t *testing.T) {
	a := threeLeafTree(t, 1, 2, 3)
	b := threeLeafTree(t, 4, 5, 6)
	assert.True(t, a.SameStructure(b))
	assert.False(t, a.SameStructure(NewConstantTree(1)))
	assert.False(t, a.SameStructure(nil))

	nodes := a.Nodes()
	nodes[2].SplitFeature = 1
	moved, err := NewTree(nodes, a.LeafOutputs())
	require.NoError(t, err)
	assert.False(t, a.SameStructure(moved))
}
