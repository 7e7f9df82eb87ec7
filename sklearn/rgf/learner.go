package rgf

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/rgf/core/parallel"
	"github.com/YuminosukeSato/rgf/pkg/errors"
)

// TreeLearner grows regression trees from per-point derivatives.
//
// Fit may return a one-leaf tree when no split satisfies the learner's
// constraints; the booster treats that as "no progress" for the channel.
// RenewOutputs and RefitExisting must preserve the tree structure.
type TreeLearner interface {
	// Fit grows a new tree. Leaf outputs are unshrunk.
	Fit(gradients, hessians []float64, isConstantHessian bool) (*Tree, error)

	// RenewOutputs recomputes leaf outputs with the objective's own rule
	// over the bagged rows (nil means all rows). It may modify tree in place.
	RenewOutputs(tree *Tree, objective Objective, scores []float64, bagIndices []int) (*Tree, error)

	// RefitExisting returns a new tree with the same structure as tree and
	// leaf outputs re-estimated from the given derivatives.
	RefitExisting(tree *Tree, gradients, hessians []float64) (*Tree, error)
}

// BaggingAware is implemented by learners that restrict Fit to a subset of rows.
type BaggingAware interface {
	SetBaggingData(indices []int)
}

// SplitInfo contains information about a potential split
type SplitInfo struct {
	Feature   int
	Threshold float64
	Gain      float64
	LeftCount int
	LeftGrad  float64
	LeftHess  float64
	Valid     bool
}

type leafState struct {
	nodeID  int
	indices []int
	depth   int
	sumGrad float64
	sumHess float64
	split   SplitInfo
}

// GreedyLearner grows trees best-first with exact greedy split search: at
// every step it splits the leaf with the largest gain until NumLeaves is
// reached or no split passes the constraints. Rows with NaN go right.
type GreedyLearner struct {
	data   *Dataset
	params TrainingParams
	bag    []int
}

// NewGreedyLearner creates a learner bound to the training set.
func NewGreedyLearner(data *Dataset, params TrainingParams) (*GreedyLearner, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	params.applyDefaults()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &GreedyLearner{data: data, params: params}, nil
}

// SetBaggingData restricts subsequent Fit calls to the given rows.
func (l *GreedyLearner) SetBaggingData(indices []int) {
	l.bag = indices
}

func (l *GreedyLearner) rows() []int {
	if l.bag != nil {
		return l.bag
	}
	n := l.data.NumData()
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	return all
}

func (l *GreedyLearner) checkDerivatives(op string, gradients, hessians []float64) error {
	n := l.data.NumData()
	if len(gradients) != n {
		return errors.NewDimensionError(op, n, len(gradients), 0)
	}
	if len(hessians) != n {
		return errors.NewDimensionError(op, n, len(hessians), 0)
	}
	return nil
}

// Fit implements TreeLearner.
func (l *GreedyLearner) Fit(gradients, hessians []float64, _ bool) (*Tree, error) {
	if err := l.checkDerivatives("GreedyLearner.Fit", gradients, hessians); err != nil {
		return nil, err
	}

	root := l.rows()
	nodes := []Node{{NodeType: LeafNode, LeftChild: -1, RightChild: -1, LeafIndex: 0, Count: len(root)}}
	// leaves[k] always holds the leaf whose LeafIndex is k
	leaves := []*leafState{l.newLeafState(0, root, 0, gradients, hessians)}

	for len(leaves) < l.params.NumLeaves {
		best := -1
		for k, lf := range leaves {
			if lf.split.Valid && (best < 0 || lf.split.Gain > leaves[best].split.Gain) {
				best = k
			}
		}
		if best < 0 {
			break
		}

		lf := leaves[best]
		left, right := l.splitData(lf.indices, lf.split)
		leftID, rightID := len(nodes), len(nodes)+1
		nodes[lf.nodeID] = Node{
			NodeType:     NumericalNode,
			LeftChild:    leftID,
			RightChild:   rightID,
			SplitFeature: lf.split.Feature,
			Threshold:    lf.split.Threshold,
			Gain:         lf.split.Gain,
			Count:        len(lf.indices),
		}
		newLeaf := len(leaves)
		nodes = append(nodes,
			Node{NodeType: LeafNode, LeftChild: -1, RightChild: -1, LeafIndex: best, Count: len(left)},
			Node{NodeType: LeafNode, LeftChild: -1, RightChild: -1, LeafIndex: newLeaf, Count: len(right)},
		)
		leaves[best] = l.newLeafState(leftID, left, lf.depth+1, gradients, hessians)
		leaves = append(leaves, l.newLeafState(rightID, right, lf.depth+1, gradients, hessians))
	}

	outputs := make([]float64, len(leaves))
	for k, lf := range leaves {
		outputs[k] = l.leafOutput(lf.sumGrad, lf.sumHess)
	}
	return NewTree(nodes, outputs)
}

func (l *GreedyLearner) newLeafState(nodeID int, indices []int, depth int, gradients, hessians []float64) *leafState {
	s := &leafState{nodeID: nodeID, indices: indices, depth: depth}
	for _, idx := range indices {
		s.sumGrad += gradients[idx]
		s.sumHess += hessians[idx]
	}
	if l.params.MaxDepth > 0 && depth >= l.params.MaxDepth {
		return s
	}
	if len(indices) < 2*l.params.MinDataInLeaf {
		return s
	}
	s.split = l.findBestSplit(indices, s.sumGrad, s.sumHess, gradients, hessians)
	return s
}

// findBestSplit searches every feature and keeps the split with the largest gain.
func (l *GreedyLearner) findBestSplit(indices []int, sumGrad, sumHess float64, gradients, hessians []float64) SplitInfo {
	numFeatures := l.data.NumFeatures()
	candidates := make([]SplitInfo, numFeatures)
	parallel.ParallelizeWithThreshold(numFeatures, 4, func(start, end int) {
		for j := start; j < end; j++ {
			candidates[j] = l.findBestSplitForFeature(indices, j, sumGrad, sumHess, gradients, hessians)
		}
	})

	best := SplitInfo{Gain: -math.MaxFloat64}
	for _, c := range candidates {
		if c.Valid && c.Gain > best.Gain {
			best = c
		}
	}
	if !best.Valid || best.Gain <= l.params.MinGainToSplit || best.Gain <= 0 {
		return SplitInfo{}
	}
	return best
}

// findBestSplitForFeature finds the best split for a specific feature
func (l *GreedyLearner) findBestSplitForFeature(indices []int, feature int, totalGrad, totalHess float64, gradients, hessians []float64) SplitInfo {
	type entry struct {
		value float64
		idx   int
	}
	values := make([]entry, 0, len(indices))
	for _, idx := range indices {
		v := l.data.X.At(idx, feature)
		if math.IsNaN(v) {
			continue
		}
		values = append(values, entry{value: v, idx: idx})
	}
	sort.Slice(values, func(i, j int) bool {
		return values[i].value < values[j].value
	})

	minData := l.params.MinDataInLeaf
	minHess := l.params.MinSumHessianInLeaf
	bestSplit := SplitInfo{Feature: feature, Gain: -math.MaxFloat64}

	leftGrad, leftHess := 0.0, 0.0
	leftCount := 0
	for i := 0; i < len(values)-1; i++ {
		idx := values[i].idx
		leftGrad += gradients[idx]
		leftHess += hessians[idx]
		leftCount++

		// Skip if same value
		if values[i].value == values[i+1].value {
			continue
		}

		rightGrad := totalGrad - leftGrad
		rightHess := totalHess - leftHess
		rightCount := len(indices) - leftCount
		if leftCount < minData || rightCount < minData {
			continue
		}
		if leftHess < minHess || rightHess < minHess {
			continue
		}

		gain := l.calculateSplitGain(leftGrad, leftHess, rightGrad, rightHess, totalGrad, totalHess)
		if gain > bestSplit.Gain {
			bestSplit.Gain = gain
			bestSplit.Threshold = (values[i].value + values[i+1].value) / 2
			bestSplit.LeftCount = leftCount
			bestSplit.LeftGrad = leftGrad
			bestSplit.LeftHess = leftHess
			bestSplit.Valid = true
		}
	}
	return bestSplit
}

// calculateSplitGain calculates the gain from a split
func (l *GreedyLearner) calculateSplitGain(leftGrad, leftHess, rightGrad, rightHess, totalGrad, totalHess float64) float64 {
	lambda := l.params.Lambda
	leftScore := (leftGrad * leftGrad) / (leftHess + lambda)
	rightScore := (rightGrad * rightGrad) / (rightHess + lambda)
	totalScore := (totalGrad * totalGrad) / (totalHess + lambda)
	return 0.5 * (leftScore + rightScore - totalScore)
}

// splitData splits indices based on a split decision
func (l *GreedyLearner) splitData(indices []int, split SplitInfo) ([]int, []int) {
	leftIndices := make([]int, 0, split.LeftCount)
	rightIndices := make([]int, 0, len(indices)-split.LeftCount)
	for _, idx := range indices {
		value := l.data.X.At(idx, split.Feature)
		if !math.IsNaN(value) && value <= split.Threshold {
			leftIndices = append(leftIndices, idx)
		} else {
			rightIndices = append(rightIndices, idx)
		}
	}
	return leftIndices, rightIndices
}

// leafOutput is the regularized Newton step -G/(H+lambda).
func (l *GreedyLearner) leafOutput(sumGrad, sumHess float64) float64 {
	denom := sumHess + l.params.Lambda
	if math.Abs(denom) < 1e-10 {
		denom = 1e-10
	}
	return -sumGrad / denom
}

// RenewOutputs implements TreeLearner. Objectives without an OutputRenewer
// keep the Newton outputs.
func (l *GreedyLearner) RenewOutputs(tree *Tree, objective Objective, scores []float64, bagIndices []int) (*Tree, error) {
	renewer, ok := objective.(OutputRenewer)
	if !ok {
		return tree, nil
	}
	n := l.data.NumData()
	if len(scores) != n {
		return nil, errors.NewDimensionError("GreedyLearner.RenewOutputs", n, len(scores), 0)
	}

	members := make([][]int, tree.NumLeaves())
	visit := func(i int) {
		leaf := tree.PredictLeaf(l.data.Row(i))
		members[leaf] = append(members[leaf], i)
	}
	if bagIndices != nil {
		for _, i := range bagIndices {
			visit(i)
		}
	} else {
		for i := 0; i < n; i++ {
			visit(i)
		}
	}

	for leaf, idx := range members {
		if len(idx) == 0 {
			continue
		}
		tree.SetLeafOutput(leaf, renewer.RenewTreeOutput(tree.LeafOutput(leaf), scores, idx))
	}
	return tree, nil
}

// RefitExisting implements TreeLearner. Each leaf moves from its current
// output by the damped, shrunk Newton step computed over all rows routed to
// it; empty leaves keep their output.
func (l *GreedyLearner) RefitExisting(tree *Tree, gradients, hessians []float64) (*Tree, error) {
	if err := l.checkDerivatives("GreedyLearner.RefitExisting", gradients, hessians); err != nil {
		return nil, err
	}

	numLeaves := tree.NumLeaves()
	sumGrad := make([]float64, numLeaves)
	sumHess := make([]float64, numLeaves)
	count := make([]int, numLeaves)
	for i := 0; i < l.data.NumData(); i++ {
		leaf := tree.PredictLeaf(l.data.Row(i))
		sumGrad[leaf] += gradients[i]
		sumHess[leaf] += hessians[i]
		count[leaf]++
	}

	out := tree.Clone()
	scale := (1 - l.params.RefitDecayRate) * tree.ShrinkageRate()
	for leaf := 0; leaf < numLeaves; leaf++ {
		if count[leaf] == 0 {
			continue
		}
		step := l.leafOutput(sumGrad[leaf], sumHess[leaf])
		out.SetLeafOutput(leaf, tree.LeafOutput(leaf)+scale*step)
	}
	return out, nil
}
