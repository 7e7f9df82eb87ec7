package rgf

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rgf/core/model"
	"github.com/YuminosukeSato/rgf/core/parallel"
	"github.com/YuminosukeSato/rgf/pkg/errors"
	"github.com/YuminosukeSato/rgf/pkg/log"
)

const modelName = "rgf.Booster"

// Booster runs regularized greedy forest boosting over one training
// partition and any number of validation partitions.
//
// Every round fits one tree per channel. A channel's tree is accepted only
// when it has more than one leaf; accepted trees are renewed, shrunk and
// added to every score cache in the same step. A round in which no channel
// is accepted leaves the model untouched and ends training. Every
// RefitPeriod rounds the leaf outputs of all accepted trees are re-estimated
// in a single forward sweep with their structure held fixed.
//
// All exported methods are safe for concurrent use; rounds never overlap.
type Booster struct {
	mu sync.Mutex

	params    TrainingParams
	runID     string
	logger    log.Logger
	observer  Observer
	objective Objective
	learner   TreeLearner
	state     *model.StateManager

	train       *Dataset
	numChannels int
	gate        *ClassGate
	grads       *GradientBuffer
	trainScore  *ScoreCache
	validScores []*ScoreCache
	ensemble    *Ensemble
	bagger      *Bagger

	iter          int
	biasPending   []float64
	biasComputed  bool
	bestIteration int

	// failed holds the error of a refit sweep that stopped partway. The
	// ensemble is then inconsistent and no further rounds are run.
	failed error
}

// BoosterOption configures a Booster.
type BoosterOption func(*Booster)

// WithLogger sets the logger. Defaults to the "rgf.booster" global logger.
func WithLogger(logger log.Logger) BoosterOption {
	return func(b *Booster) { b.logger = logger }
}

// WithObserver sets the diagnostics observer.
func WithObserver(o Observer) BoosterOption {
	return func(b *Booster) { b.observer = o }
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) BoosterOption {
	return func(b *Booster) { b.runID = id }
}

// WithClassGate overrides the gate derived from the objective.
func WithClassGate(g *ClassGate) BoosterOption {
	return func(b *Booster) { b.gate = g }
}

// NewBooster creates a booster. A nil objective is built from
// params.Objective and a nil learner defaults to a GreedyLearner.
func NewBooster(params TrainingParams, train *Dataset, objective Objective, learner TreeLearner, opts ...BoosterOption) (*Booster, error) {
	params.applyDefaults()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := train.Validate(); err != nil {
		return nil, errors.Wrap(err, "training data")
	}

	var err error
	if objective == nil {
		if objective, err = CreateObjective(params); err != nil {
			return nil, err
		}
	}
	if err := objective.Init(train); err != nil {
		return nil, errors.Wrapf(err, "initializing objective %s", objective.Name())
	}
	if learner == nil {
		if learner, err = NewGreedyLearner(train, params); err != nil {
			return nil, err
		}
	}

	k, n := objective.NumChannels(), train.NumData()
	b := &Booster{
		params:      params,
		runID:       uuid.NewString(),
		observer:    NopObserver{},
		objective:   objective,
		learner:     learner,
		state:       model.NewStateManager(),
		train:       train,
		numChannels: k,
		grads:       NewGradientBuffer(n, k),
		ensemble:    NewEnsemble(k),
		bagger:      NewBagger(n, params.BaggingFraction, params.BaggingFreq, params.Seed),
		biasPending: make([]float64, k),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = log.GetLoggerWithName("rgf.booster")
	}
	b.logger = b.logger.With(log.RunIDKey, b.runID, log.ObjectiveKey, objective.Name())

	if b.gate == nil {
		b.gate = ClassGateFromObjective(objective)
	} else if b.gate.NumChannels() != k {
		return nil, errors.NewDimensionError("NewBooster", k, b.gate.NumChannels(), 1)
	}
	if b.trainScore, err = NewScoreCache("training", train, k); err != nil {
		return nil, err
	}
	b.state.SetDimensions(train.NumFeatures(), n)

	b.logger.Info("Booster initialized",
		log.SamplesKey, n,
		log.FeaturesKey, train.NumFeatures(),
		log.ChannelsKey, k,
		log.LearningRateKey, params.LearningRate,
		log.RandomSeedKey, params.Seed,
	)
	return b, nil
}

// AddValidation registers a validation partition. Trees already in the
// ensemble are replayed onto it so that it starts in step with training.
func (b *Booster) AddValidation(data *Dataset) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := data.Validate(); err != nil {
		return errors.Wrap(err, "validation data")
	}
	if data.NumFeatures() != b.train.NumFeatures() {
		return errors.NewDimensionError("AddValidation", b.train.NumFeatures(), data.NumFeatures(), 1)
	}
	name := data.Name
	if name == "" {
		name = fmt.Sprintf("valid_%d", len(b.validScores))
	}
	cache, err := NewScoreCache(name, data, b.numChannels)
	if err != nil {
		return err
	}
	for r := 0; r < b.ensemble.NumRounds(); r++ {
		for c := 0; c < b.numChannels; c++ {
			cache.AddTree(b.ensemble.At(r, c), c)
		}
	}
	b.validScores = append(b.validScores, cache)
	return nil
}

// TrainOneIter runs one boosting round and reports whether training is
// finished. When gradients or hessians is nil both are computed from the
// objective; otherwise both must hold NumChannels()*NumData() values in
// channel-major order.
//
// A failing learner or objective leaves the booster as before the call. A
// failing refit sweep does not: the booster is marked unusable and every
// later call returns a ModelError wrapping the original failure.
func (b *Booster) TrainOneIter(gradients, hessians []float64) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failed != nil {
		return false, errors.NewModelError("TrainOneIter", "booster unusable after failed refit", b.failed)
	}

	start := time.Now()
	k, n := b.numChannels, b.train.NumData()
	logger := b.logger.With(log.OperationKey, log.OperationTrainOneIter, log.RoundKey, b.iter)

	bias := make([]float64, k)
	var scores []float64
	if gradients == nil || hessians == nil {
		if err := b.boostFromAverage(); err != nil {
			return false, err
		}
		copy(bias, b.biasPending)
		scores = b.trainingView()
		if err := b.grads.Compute(b.objective, scores, b.iter); err != nil {
			logger.Error("Gradient computation failed", err, log.ErrorCodeKey, log.ErrorUpstream)
			return false, errors.Wrapf(err, "computing gradients at round %d", b.iter)
		}
		gradients, hessians = b.grads.Gradients(), b.grads.Hessians()
	} else {
		if len(gradients) != k*n {
			return false, errors.NewDimensionError("TrainOneIter", k*n, len(gradients), 0)
		}
		if len(hessians) != k*n {
			return false, errors.NewDimensionError("TrainOneIter", k*n, len(hessians), 0)
		}
		if err := errors.CheckNumericalStability("gradients", gradients, b.iter); err != nil {
			return false, err
		}
		if err := errors.CheckNumericalStability("hessians", hessians, b.iter); err != nil {
			return false, err
		}
		scores = b.trainScore.Scores()
	}

	bag := b.bagger.Indices(b.iter)
	if ba, ok := b.learner.(BaggingAware); ok {
		ba.SetBaggingData(bag)
	}

	trees := make([]*Tree, k)
	accepted := make([]bool, k)
	err := parallel.ForEach(context.Background(), k, b.params.NumThreads, func(_ context.Context, c int) error {
		lo, hi := c*n, (c+1)*n
		tree, ok, err := b.fitChannel(c, gradients[lo:hi], hessians[lo:hi], scores[lo:hi], bag, bias[c])
		trees[c], accepted[c] = tree, ok
		return err
	})
	if err != nil {
		logger.Error("Round failed", err, log.ErrorCodeKey, log.ErrorUpstream)
		return false, err
	}

	productive := false
	for _, ok := range accepted {
		productive = productive || ok
	}
	refitDue := b.params.RefitPeriod > 0 && b.iter != 0 && b.iter%b.params.RefitPeriod == 0

	if !productive {
		// the sweep still covers the accepted rounds before the rollback
		if refitDue {
			if err := b.runScheduledRefit(logger); err != nil {
				return false, err
			}
		}
		errors.Warn(errors.NewNoProgressWarning(b.iter, k))
		logger.Warn("No channel produced a split, training finished", log.ChannelsKey, k)
		b.emitRound(start, accepted, trees, true)
		return true, nil
	}

	for c := 0; c < k; c++ {
		switch {
		case accepted[c]:
			b.addToScores(trees[c], c)
			if bias[c] != 0 {
				b.biasPending[c] = 0
			}
		case !b.gate.NeedsTraining(c) && b.ensemble.ChannelLen(c) == 0:
			trees[c].AsConstantTree(b.gate.DefaultOutput(c))
			b.addToScores(trees[c], c)
		}
	}
	if err := b.ensemble.AppendRound(trees); err != nil {
		return false, err
	}
	b.state.SetFitted()

	if refitDue {
		if err := b.runScheduledRefit(logger); err != nil {
			return false, err
		}
	}

	b.iter++
	b.emitRound(start, accepted, trees, false)
	return false, nil
}

func (b *Booster) runScheduledRefit(logger log.Logger) error {
	if err := b.fullyCorrectiveUpdate(); err != nil {
		logger.Error("Fully corrective update failed", err, log.ErrorCodeKey, log.ErrorStructuralInvariant)
		return err
	}
	logger.Info("Fully corrective update finished", log.EnsembleSizeKey, b.ensemble.Len())
	return nil
}

// fitChannel fits, renews, shrinks and biases one channel's tree. A
// channel that is gated off or yields a single leaf returns a zero
// constant placeholder and false.
func (b *Booster) fitChannel(c int, gradients, hessians, scores []float64, bag []int, bias float64) (*Tree, bool, error) {
	var tree *Tree
	if b.gate.NeedsTraining(c) {
		err := errors.SafeExecute("tree learner fit", func() error {
			t, err := b.learner.Fit(gradients, hessians, b.objective.IsConstantHessian())
			tree = t
			return err
		})
		if err != nil {
			return nil, false, errors.Wrapf(err, "fitting channel %d at round %d", c, b.iter)
		}
	}
	if tree == nil || tree.NumLeaves() <= 1 {
		return NewConstantTree(0), false, nil
	}

	numLeaves := tree.NumLeaves()
	var renewed *Tree
	err := errors.SafeExecute("tree learner renew", func() error {
		t, err := b.learner.RenewOutputs(tree, b.objective, scores, bag)
		renewed = t
		return err
	})
	if err != nil {
		return nil, false, errors.Wrapf(err, "renewing outputs of channel %d at round %d", c, b.iter)
	}
	if renewed == nil || renewed.NumLeaves() != numLeaves {
		got := 0
		if renewed != nil {
			got = renewed.NumLeaves()
		}
		return nil, false, errors.NewStructuralInvariantError("RenewOutputs", b.iter, c, numLeaves, got)
	}

	renewed.Shrinkage(b.params.LearningRate)
	if math.Abs(bias) > b.params.BiasEpsilon {
		renewed.AddBias(bias)
	}
	return renewed, true, nil
}

// boostFromAverage computes the cold-start bias of every trained channel
// once per run. The bias stays pending until the channel's first accepted
// tree absorbs it. A non-finite bias is an upstream failure.
func (b *Booster) boostFromAverage() error {
	if b.biasComputed {
		return nil
	}
	if !b.params.BoostFromAverage || b.train.HasInitScore() || b.ensemble.Len() > 0 {
		b.biasComputed = true
		return nil
	}
	pending := make([]float64, b.numChannels)
	for c := 0; c < b.numChannels; c++ {
		if !b.gate.NeedsTraining(c) {
			continue
		}
		v := b.objective.BoostFromScore(c)
		if err := errors.CheckScalar("boost from average", v, b.iter); err != nil {
			return errors.Wrapf(err, "cold-start bias of channel %d", c)
		}
		if math.Abs(v) > b.params.BiasEpsilon {
			pending[c] = v
			b.logger.Info("Start training from score", log.ChannelKey, c, log.BiasKey, v)
		}
	}
	copy(b.biasPending, pending)
	b.biasComputed = true
	return nil
}

// trainingView returns the training scores with pending biases added, so
// that gradients at cold start are taken around the starting constant.
func (b *Booster) trainingView() []float64 {
	scores := b.trainScore.Scores()
	pending := false
	for _, v := range b.biasPending {
		pending = pending || v != 0
	}
	if !pending {
		return scores
	}
	n := b.train.NumData()
	view := make([]float64, len(scores))
	copy(view, scores)
	for c, v := range b.biasPending {
		if v == 0 {
			continue
		}
		for i := c * n; i < (c+1)*n; i++ {
			view[i] += v
		}
	}
	return view
}

// addToScores propagates a tree to the training cache and every validation cache.
func (b *Booster) addToScores(tree *Tree, channel int) {
	b.trainScore.AddTree(tree, channel)
	for _, v := range b.validScores {
		v.AddTree(tree, channel)
	}
}

func (b *Booster) emitRound(start time.Time, accepted []bool, trees []*Tree, finished bool) {
	leaves := make([]int, len(trees))
	for c, t := range trees {
		if t != nil {
			leaves[c] = t.NumLeaves()
		}
	}
	e := RoundEvent{
		Round:        b.iter,
		Accepted:     accepted,
		Leaves:       leaves,
		Finished:     finished,
		EnsembleSize: b.ensemble.Len(),
		Duration:     time.Since(start),
	}
	notify(b.logger, func() { b.observer.OnRound(e) })
}

// NumChannels returns the number of trees per round.
func (b *Booster) NumChannels() int { return b.numChannels }

// RunID returns the identifier attached to every log record of this booster.
func (b *Booster) RunID() string { return b.runID }

// Objective returns the training objective.
func (b *Booster) Objective() Objective { return b.objective }

// CurrentIteration returns the number of accepted rounds.
func (b *Booster) CurrentIteration() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.iter
}

// IsFitted reports whether at least one round has been accepted.
func (b *Booster) IsFitted() bool {
	return b.state.IsFitted()
}

// NumTrees returns the flat ensemble length.
func (b *Booster) NumTrees() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ensemble.Len()
}

// Tree returns a copy of the tree at (round, channel).
func (b *Booster) Tree(round, channel int) (*Tree, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if round < 0 || round >= b.ensemble.NumRounds() || channel < 0 || channel >= b.numChannels {
		return nil, errors.NewValueError("Tree", fmt.Sprintf("no tree at round %d channel %d", round, channel))
	}
	return b.ensemble.At(round, channel).Clone(), nil
}

// TrainingScores returns a copy of the channel-major training scores.
func (b *Booster) TrainingScores() []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trainScore.Snapshot()
}

// ValidationScores returns a copy of the scores of validation partition i.
func (b *Booster) ValidationScores(i int) ([]float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i < 0 || i >= len(b.validScores) {
		return nil, errors.NewValueError("ValidationScores", fmt.Sprintf("no validation partition %d", i))
	}
	return b.validScores[i].Snapshot(), nil
}

// BestIteration returns the round chosen by early stopping, 0 if none.
func (b *Booster) BestIteration() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bestIteration
}

func (b *Booster) setBestIteration(it int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bestIteration = it
}

// Predict returns raw scores as an n x NumChannels matrix using the first
// numRounds rounds, or all rounds when numRounds <= 0.
func (b *Booster) Predict(X mat.Matrix, numRounds int) (*mat.Dense, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.state.RequireFitted(modelName, "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if nFeatures, _ := b.state.GetDimensions(); cols != nFeatures {
		return nil, errors.NewDimensionError("Predict", nFeatures, cols, 1)
	}
	rounds := b.ensemble.NumRounds()
	if numRounds > 0 && numRounds < rounds {
		rounds = numRounds
	}

	out := mat.NewDense(rows, b.numChannels, nil)
	parallel.ParallelizeWithThreshold(rows, rowsPerWorker, func(start, end int) {
		row := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			for c := 0; c < b.numChannels; c++ {
				sum := 0.0
				for r := 0; r < rounds; r++ {
					sum += b.ensemble.At(r, c).Predict(row)
				}
				out.Set(i, c, sum)
			}
		}
	})
	return out, nil
}

// PredictProba maps raw scores through the objective's output transform.
func (b *Booster) PredictProba(X mat.Matrix, numRounds int) (*mat.Dense, error) {
	raw, err := b.Predict(X, numRounds)
	if err != nil {
		return nil, err
	}
	rows, k := raw.Dims()
	out := mat.NewDense(rows, k, nil)
	for i := 0; i < rows; i++ {
		b.objective.ConvertOutput(raw.RawRowView(i), out.RawRowView(i))
	}
	return out, nil
}
