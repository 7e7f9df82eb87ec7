package rgf

import (
	"math"

	"github.com/YuminosukeSato/rgf/pkg/errors"
	"github.com/YuminosukeSato/rgf/pkg/log"
)

// FullyCorrectiveUpdate re-estimates the leaf outputs of every accepted tree
// in one forward sweep, round by round and channel by channel. Gradients are
// recomputed before each tree so later trees see earlier corrections. Tree
// structure never changes; score caches are moved by the leaf deltas.
//
// TrainOneIter runs the sweep on its own every RefitPeriod rounds.
func (b *Booster) FullyCorrectiveUpdate() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fullyCorrectiveUpdate()
}

// fullyCorrectiveUpdate runs the sweep and marks the booster unusable when
// it stops partway.
func (b *Booster) fullyCorrectiveUpdate() error {
	if b.failed != nil {
		return errors.NewModelError("FullyCorrectiveUpdate", "booster unusable after failed refit", b.failed)
	}
	if err := b.refitSweep(); err != nil {
		b.failed = err
		return err
	}
	return nil
}

func (b *Booster) refitSweep() error {
	logger := b.logger.With(log.OperationKey, log.OperationRefit)
	refitted := 0
	for r := 0; r < b.ensemble.NumRounds(); r++ {
		for c := 0; c < b.numChannels; c++ {
			old := b.ensemble.At(r, c)
			// constants and placeholders have no structure to refit
			if old.NumLeaves() <= 1 {
				continue
			}
			if err := b.grads.Compute(b.objective, b.trainingView(), b.iter); err != nil {
				return errors.Wrapf(err, "computing gradients for refit of round %d channel %d", r, c)
			}
			g, h := b.grads.Channel(c)

			var refit *Tree
			err := errors.SafeExecute("tree learner refit", func() error {
				t, err := b.learner.RefitExisting(old, g, h)
				refit = t
				return err
			})
			if err != nil {
				return errors.Wrapf(err, "refitting round %d channel %d", r, c)
			}
			if refit == nil || refit.NumLeaves() != old.NumLeaves() || !refit.SameStructure(old) {
				got := 0
				if refit != nil {
					got = refit.NumLeaves()
				}
				err := errors.NewStructuralInvariantError("FullyCorrectiveUpdate", r, c, old.NumLeaves(), got)
				logger.Error("Refit changed tree structure", err, log.RoundKey, r, log.ChannelKey, c)
				return err
			}

			if err := b.applyRefit(old, refit, c); err != nil {
				return err
			}
			b.ensemble.Set(r, c, refit)
			refitted++
			b.emitRefit(r, c, old, refit)
		}
	}
	logger.Debug("Refit sweep done", log.AcceptedTreesKey, refitted)
	return nil
}

func (b *Booster) applyRefit(old, refit *Tree, channel int) error {
	if err := b.trainScore.AddTreeDelta(old, refit, channel); err != nil {
		return err
	}
	for _, v := range b.validScores {
		if err := v.AddTreeDelta(old, refit, channel); err != nil {
			return err
		}
	}
	return nil
}

func (b *Booster) emitRefit(round, channel int, old, refit *Tree) {
	e := RefitEvent{
		Round:     round,
		Channel:   channel,
		OldLeaves: old.LeafOutputs(),
		NewLeaves: refit.LeafOutputs(),
	}
	for i := range e.OldLeaves {
		e.MaxAbsDelta = math.Max(e.MaxAbsDelta, math.Abs(e.NewLeaves[i]-e.OldLeaves[i]))
	}
	notify(b.logger, func() { b.observer.OnRefit(e) })
}
