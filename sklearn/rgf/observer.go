package rgf

import (
	"context"
	"time"

	"github.com/YuminosukeSato/rgf/pkg/errors"
	"github.com/YuminosukeSato/rgf/pkg/log"
)

// RoundEvent describes one TrainOneIter call.
type RoundEvent struct {
	Round        int
	Accepted     []bool
	Leaves       []int
	Finished     bool
	EnsembleSize int
	Duration     time.Duration
}

// RefitEvent describes the replacement of one tree during a corrective sweep.
type RefitEvent struct {
	Round       int
	Channel     int
	OldLeaves   []float64
	NewLeaves   []float64
	MaxAbsDelta float64
}

// Observer receives training diagnostics. Observers must not mutate the
// booster; a panicking observer is logged and ignored.
type Observer interface {
	OnRound(RoundEvent)
	OnRefit(RefitEvent)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) OnRound(RoundEvent) {}
func (NopObserver) OnRefit(RefitEvent) {}

// MultiObserver fans events out to several observers.
type MultiObserver []Observer

func (m MultiObserver) OnRound(e RoundEvent) {
	for _, o := range m {
		o.OnRound(e)
	}
}

func (m MultiObserver) OnRefit(e RefitEvent) {
	for _, o := range m {
		o.OnRefit(e)
	}
}

// LogObserver writes events to a structured logger at debug level.
type LogObserver struct {
	logger log.Logger
}

// NewLogObserver creates an observer writing to logger.
func NewLogObserver(logger log.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) OnRound(e RoundEvent) {
	if !o.logger.Enabled(context.Background(), log.LevelDebug) {
		return
	}
	accepted := 0
	for _, a := range e.Accepted {
		if a {
			accepted++
		}
	}
	o.logger.Debug("Round finished",
		log.RoundKey, e.Round,
		log.AcceptedTreesKey, accepted,
		log.LeavesKey, e.Leaves,
		log.EnsembleSizeKey, e.EnsembleSize,
		log.DurationMsKey, e.Duration.Milliseconds(),
	)
}

func (o *LogObserver) OnRefit(e RefitEvent) {
	if !o.logger.Enabled(context.Background(), log.LevelDebug) {
		return
	}
	o.logger.Debug("Tree refit",
		log.RoundKey, e.Round,
		log.ChannelKey, e.Channel,
		"old_leaves", e.OldLeaves,
		"new_leaves", e.NewLeaves,
		log.LeafDeltaKey, e.MaxAbsDelta,
	)
}

// notify runs fn and turns a panic into a logged warning.
func notify(logger log.Logger, fn func()) {
	if err := errors.SafeExecute("observer", func() error {
		fn()
		return nil
	}); err != nil {
		logger.Warn("Observer panicked", log.ErrorTypeKey, "panic", "detail", err.Error())
	}
}
