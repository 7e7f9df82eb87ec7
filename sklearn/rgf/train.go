package rgf

import (
	"context"

	"github.com/YuminosukeSato/rgf/pkg/errors"
	"github.com/YuminosukeSato/rgf/pkg/log"
)

type trainOptions struct {
	objective   Objective
	learner     TreeLearner
	callbacks   []Callback
	boosterOpts []BoosterOption
	logger      log.Logger
}

// TrainOption configures Train.
type TrainOption func(*trainOptions)

// WithObjective uses a custom objective instead of params.Objective.
func WithObjective(o Objective) TrainOption {
	return func(t *trainOptions) { t.objective = o }
}

// WithLearner uses a custom tree learner.
func WithLearner(l TreeLearner) TrainOption {
	return func(t *trainOptions) { t.learner = l }
}

// WithCallbacks adds callbacks run after every accepted round.
func WithCallbacks(cbs ...Callback) TrainOption {
	return func(t *trainOptions) { t.callbacks = append(t.callbacks, cbs...) }
}

// WithBoosterOptions forwards options to NewBooster.
func WithBoosterOptions(opts ...BoosterOption) TrainOption {
	return func(t *trainOptions) { t.boosterOpts = append(t.boosterOpts, opts...) }
}

// WithTrainLogger sets the logger used by Train and the booster it creates.
func WithTrainLogger(l log.Logger) TrainOption {
	return func(t *trainOptions) {
		t.logger = l
		t.boosterOpts = append(t.boosterOpts, WithLogger(l))
	}
}

// Train runs up to params.NumIterations rounds. It stops early when a round
// makes no progress, when a callback asks to stop, or when ctx is done; in
// the last case the partially trained booster is returned with ctx's error.
func Train(ctx context.Context, params TrainingParams, train *Dataset, valids []*Dataset, opts ...TrainOption) (*Booster, error) {
	o := trainOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.GetLoggerWithName("rgf.train")
	}
	params.applyDefaults()

	b, err := NewBooster(params, train, o.objective, o.learner, o.boosterOpts...)
	if err != nil {
		return nil, err
	}
	for _, v := range valids {
		if err := b.AddValidation(v); err != nil {
			return nil, err
		}
	}

	metric := params.Metric
	if metric == "" {
		metric = b.Objective().DefaultMetric()
	}
	callbacks := o.callbacks
	if params.EarlyStopping > 0 && len(valids) > 0 {
		key := b.ValidationNames()[0] + "-" + metric
		callbacks = append(callbacks, EarlyStoppingCallback(o.logger, params.EarlyStopping, key, !isHigherBetter(metric)))
	}
	cl := NewCallbackList(callbacks...)

	logger := o.logger.With(log.RunIDKey, b.RunID(), log.PhaseKey, log.PhaseTraining)
	for it := 0; it < params.NumIterations; it++ {
		if err := ctx.Err(); err != nil {
			return b, errors.Wrapf(err, "training interrupted at iteration %d", it)
		}
		cl.BeforeIteration(it, b)

		finished, err := b.TrainOneIter(nil, nil)
		if err != nil {
			return nil, err
		}
		if finished {
			logger.Info("Training finished early", log.IterationKey, it)
			break
		}

		if cl.Len() == 0 {
			continue
		}
		results, err := b.Evaluate(metric)
		if err != nil {
			return nil, err
		}
		if err := cl.AfterIteration(it, b, results); err != nil {
			return nil, errors.Wrapf(err, "callback failed at iteration %d", it)
		}
		if cl.ShouldStop() {
			break
		}
	}
	if best := cl.BestIteration(); best > 0 {
		b.setBestIteration(best)
	}
	logger.Info("Training done", log.EnsembleSizeKey, b.NumTrees(), log.IterationKey, b.CurrentIteration())
	return b, nil
}
