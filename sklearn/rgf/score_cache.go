package rgf

import (
	"github.com/YuminosukeSato/rgf/core/parallel"
	"github.com/YuminosukeSato/rgf/pkg/errors"
)

// rowsPerWorker is the row count below which score updates stay sequential.
const rowsPerWorker = 2048

// ScoreCache holds the running raw score of every row of one data partition
// on every channel. Scores are channel-major.
type ScoreCache struct {
	name        string
	data        *Dataset
	numData     int
	numChannels int
	scores      []float64
}

// NewScoreCache creates a cache for data, seeded with data.InitScore when present.
func NewScoreCache(name string, data *Dataset, numChannels int) (*ScoreCache, error) {
	if err := data.Validate(); err != nil {
		return nil, errors.Wrapf(err, "score cache %q", name)
	}
	if numChannels < 1 {
		return nil, errors.NewValidationError("num_channels", "must be at least 1", numChannels)
	}
	n := data.NumData()
	s := &ScoreCache{
		name:        name,
		data:        data,
		numData:     n,
		numChannels: numChannels,
		scores:      make([]float64, n*numChannels),
	}
	if data.HasInitScore() {
		if len(data.InitScore) != len(s.scores) {
			return nil, errors.NewDimensionError("NewScoreCache", len(s.scores), len(data.InitScore), 0)
		}
		copy(s.scores, data.InitScore)
	}
	return s, nil
}

// Name returns the partition name.
func (s *ScoreCache) Name() string { return s.name }

// NumData returns the number of rows.
func (s *ScoreCache) NumData() int { return s.numData }

// NumChannels returns the number of channels.
func (s *ScoreCache) NumChannels() int { return s.numChannels }

// Data returns the underlying partition.
func (s *ScoreCache) Data() *Dataset { return s.data }

// Scores returns the live channel-major score slice. Callers must not modify it.
func (s *ScoreCache) Scores() []float64 { return s.scores }

// ChannelScores returns the live scores of one channel.
func (s *ScoreCache) ChannelScores(channel int) []float64 {
	return s.scores[channel*s.numData : (channel+1)*s.numData]
}

// Snapshot returns a copy of all scores.
func (s *ScoreCache) Snapshot() []float64 {
	out := make([]float64, len(s.scores))
	copy(out, s.scores)
	return out
}

// AddTree adds the tree's prediction for every row to the channel.
func (s *ScoreCache) AddTree(tree *Tree, channel int) {
	if tree.IsConstant() {
		s.AddConstant(tree.LeafOutput(0), channel)
		return
	}
	ch := s.ChannelScores(channel)
	parallel.ParallelizeWithThreshold(s.numData, rowsPerWorker, func(start, end int) {
		for i := start; i < end; i++ {
			ch[i] += tree.Predict(s.data.Row(i))
		}
	})
}

// AddConstant adds v to every row of the channel.
func (s *ScoreCache) AddConstant(v float64, channel int) {
	ch := s.ChannelScores(channel)
	for i := range ch {
		ch[i] += v
	}
}

// AddTreeDelta replaces the contribution of oldTree by that of newTree.
// Both trees must share their structure; rows are routed once through oldTree.
func (s *ScoreCache) AddTreeDelta(oldTree, newTree *Tree, channel int) error {
	if oldTree.NumLeaves() != newTree.NumLeaves() {
		return errors.NewStructuralInvariantError("ScoreCache.AddTreeDelta", -1, channel, oldTree.NumLeaves(), newTree.NumLeaves())
	}
	delta := make([]float64, oldTree.NumLeaves())
	for leaf := range delta {
		delta[leaf] = newTree.LeafOutput(leaf) - oldTree.LeafOutput(leaf)
	}
	ch := s.ChannelScores(channel)
	parallel.ParallelizeWithThreshold(s.numData, rowsPerWorker, func(start, end int) {
		for i := start; i < end; i++ {
			ch[i] += delta[oldTree.PredictLeaf(s.data.Row(i))]
		}
	})
	return nil
}
