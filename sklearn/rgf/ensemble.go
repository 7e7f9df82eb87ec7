package rgf

import (
	"strconv"

	"github.com/YuminosukeSato/rgf/pkg/errors"
)

// Ensemble stores trees by round and channel. Rounds are appended and
// removed whole, so the flat length is always a multiple of the channel count.
type Ensemble struct {
	numChannels int
	trees       []*Tree
}

// NewEnsemble creates an empty ensemble.
func NewEnsemble(numChannels int) *Ensemble {
	return &Ensemble{numChannels: numChannels}
}

// NumChannels returns the number of trees per round.
func (e *Ensemble) NumChannels() int { return e.numChannels }

// Len returns the total number of stored trees.
func (e *Ensemble) Len() int { return len(e.trees) }

// NumRounds returns the number of stored rounds.
func (e *Ensemble) NumRounds() int { return len(e.trees) / e.numChannels }

// ChannelLen returns how many trees the channel holds.
func (e *Ensemble) ChannelLen(channel int) int {
	if channel < 0 || channel >= e.numChannels {
		return 0
	}
	return e.NumRounds()
}

// At returns the tree of the given round and channel.
func (e *Ensemble) At(round, channel int) *Tree {
	return e.trees[round*e.numChannels+channel]
}

// Set replaces the tree of the given round and channel.
func (e *Ensemble) Set(round, channel int, tree *Tree) {
	e.trees[round*e.numChannels+channel] = tree
}

// AppendRound appends one tree per channel.
func (e *Ensemble) AppendRound(trees []*Tree) error {
	if len(trees) != e.numChannels {
		return errors.NewDimensionError("Ensemble.AppendRound", e.numChannels, len(trees), 0)
	}
	for c, t := range trees {
		if t == nil {
			return errors.NewValueError("Ensemble.AppendRound", "nil tree for channel "+strconv.Itoa(c))
		}
	}
	e.trees = append(e.trees, trees...)
	return nil
}

// PopRound removes and returns the last round, or nil when empty.
func (e *Ensemble) PopRound() []*Tree {
	if len(e.trees) < e.numChannels {
		return nil
	}
	cut := len(e.trees) - e.numChannels
	last := make([]*Tree, e.numChannels)
	copy(last, e.trees[cut:])
	for i := cut; i < len(e.trees); i++ {
		e.trees[i] = nil
	}
	e.trees = e.trees[:cut]
	return last
}

// Trees returns a copy of the flat tree list, round-major.
func (e *Ensemble) Trees() []*Tree {
	out := make([]*Tree, len(e.trees))
	copy(out, e.trees)
	return out
}
