package rgf

import (
	"math"

	"github.com/YuminosukeSato/rgf/pkg/errors"
)

// NodeType represents the type of a tree node
type NodeType int

const (
	// LeafNode represents a terminal node with a value
	LeafNode NodeType = iota
	// NumericalNode represents a node with numerical split
	NumericalNode
)

// Node represents a single node in a decision tree.
// Leaves reference their output through LeafIndex.
type Node struct {
	NodeType   NodeType
	LeftChild  int // node index, -1 for leaves
	RightChild int // node index, -1 for leaves

	// Split information (for non-leaf nodes)
	SplitFeature int
	Threshold    float64
	DefaultLeft  bool // direction for NaN feature values
	Gain         float64

	// Leaf information (for leaf nodes)
	LeafIndex int
	Count     int
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.NodeType == LeafNode
}

// Tree is a binary regression tree whose structure is fixed after
// construction. Only leaf outputs change: through Shrinkage, AddBias,
// SetLeafOutput and AsConstantTree.
type Tree struct {
	nodes       []Node
	leafOutputs []float64
	shrinkage   float64
}

// NewConstantTree returns a one-leaf tree predicting output everywhere.
func NewConstantTree(output float64) *Tree {
	return &Tree{
		nodes:       []Node{{NodeType: LeafNode, LeftChild: -1, RightChild: -1}},
		leafOutputs: []float64{output},
		shrinkage:   1.0,
	}
}

// NewTree builds a tree from its nodes (root at index 0) and leaf outputs.
// Every leaf index in [0, len(leafOutputs)) must be referenced exactly once.
func NewTree(nodes []Node, leafOutputs []float64) (*Tree, error) {
	if len(nodes) == 0 || len(leafOutputs) == 0 {
		return nil, errors.NewValueError("NewTree", "tree needs at least one node and one leaf")
	}
	seen := make([]bool, len(leafOutputs))
	for i, n := range nodes {
		if n.IsLeaf() {
			if n.LeafIndex < 0 || n.LeafIndex >= len(leafOutputs) || seen[n.LeafIndex] {
				return nil, errors.NewValueError("NewTree", "invalid or duplicated leaf index")
			}
			seen[n.LeafIndex] = true
			continue
		}
		if n.LeftChild <= i || n.RightChild <= i || n.LeftChild >= len(nodes) || n.RightChild >= len(nodes) {
			return nil, errors.NewValueError("NewTree", "child index must point forward inside the node array")
		}
	}
	for _, ok := range seen {
		if !ok {
			return nil, errors.NewValueError("NewTree", "leaf index not referenced by any node")
		}
	}
	t := &Tree{
		nodes:       make([]Node, len(nodes)),
		leafOutputs: make([]float64, len(leafOutputs)),
		shrinkage:   1.0,
	}
	copy(t.nodes, nodes)
	copy(t.leafOutputs, leafOutputs)
	return t, nil
}

// NumLeaves returns the number of leaves.
func (t *Tree) NumLeaves() int {
	return len(t.leafOutputs)
}

// NumNodes returns the total number of nodes.
func (t *Tree) NumNodes() int {
	return len(t.nodes)
}

// Nodes returns a copy of the node array.
func (t *Tree) Nodes() []Node {
	out := make([]Node, len(t.nodes))
	copy(out, t.nodes)
	return out
}

// IsConstant reports whether the tree has a single leaf.
func (t *Tree) IsConstant() bool {
	return len(t.leafOutputs) == 1
}

// LeafOutput returns the output of leaf i.
func (t *Tree) LeafOutput(i int) float64 {
	return t.leafOutputs[i]
}

// LeafOutputs returns a copy of all leaf outputs.
func (t *Tree) LeafOutputs() []float64 {
	out := make([]float64, len(t.leafOutputs))
	copy(out, t.leafOutputs)
	return out
}

// SetLeafOutput overwrites the output of leaf i.
func (t *Tree) SetLeafOutput(i int, v float64) {
	t.leafOutputs[i] = v
}

// ShrinkageRate returns the product of all shrinkage factors applied so far.
func (t *Tree) ShrinkageRate() float64 {
	return t.shrinkage
}

// Shrinkage scales every leaf output by rate.
func (t *Tree) Shrinkage(rate float64) {
	for i := range t.leafOutputs {
		t.leafOutputs[i] *= rate
	}
	t.shrinkage *= rate
}

// AddBias adds v to every leaf output.
func (t *Tree) AddBias(v float64) {
	for i := range t.leafOutputs {
		t.leafOutputs[i] += v
	}
}

// AsConstantTree turns the tree into a one-leaf tree predicting v.
func (t *Tree) AsConstantTree(v float64) {
	t.nodes = []Node{{NodeType: LeafNode, LeftChild: -1, RightChild: -1}}
	t.leafOutputs = []float64{v}
	t.shrinkage = 1.0
}

// PredictLeaf returns the leaf index reached by a feature row.
func (t *Tree) PredictLeaf(features []float64) int {
	nodeID := 0
	for {
		node := &t.nodes[nodeID]
		if node.IsLeaf() {
			return node.LeafIndex
		}

		featureValue := features[node.SplitFeature]
		switch {
		case math.IsNaN(featureValue):
			if node.DefaultLeft {
				nodeID = node.LeftChild
			} else {
				nodeID = node.RightChild
			}
		case featureValue <= node.Threshold:
			nodeID = node.LeftChild
		default:
			nodeID = node.RightChild
		}
	}
}

// Predict returns the tree output for a feature row.
func (t *Tree) Predict(features []float64) float64 {
	return t.leafOutputs[t.PredictLeaf(features)]
}

// Clone returns a deep copy.
func (t *Tree) Clone() *Tree {
	c := &Tree{
		nodes:       make([]Node, len(t.nodes)),
		leafOutputs: make([]float64, len(t.leafOutputs)),
		shrinkage:   t.shrinkage,
	}
	copy(c.nodes, t.nodes)
	copy(c.leafOutputs, t.leafOutputs)
	return c
}

// SameStructure reports whether both trees route every input to the same
// leaf index. Leaf outputs, gains and counts are ignored.
func (t *Tree) SameStructure(other *Tree) bool {
	if other == nil || len(t.nodes) != len(other.nodes) || len(t.leafOutputs) != len(other.leafOutputs) {
		return false
	}
	for i := range t.nodes {
		a, b := &t.nodes[i], &other.nodes[i]
		if a.NodeType != b.NodeType {
			return false
		}
		if a.IsLeaf() {
			if a.LeafIndex != b.LeafIndex {
				return false
			}
			continue
		}
		if a.SplitFeature != b.SplitFeature || a.Threshold != b.Threshold ||
			a.DefaultLeft != b.DefaultLeft || a.LeftChild != b.LeftChild || a.RightChild != b.RightChild {
			return false
		}
	}
	return true
}
