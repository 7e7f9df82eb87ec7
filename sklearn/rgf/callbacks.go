package rgf

import (
	"math"
	"time"

	"github.com/YuminosukeSato/rgf/pkg/log"
)

// CallbackEnv contains the environment for callbacks
type CallbackEnv struct {
	Booster       *Booster
	Iteration     int
	BeginTime     time.Time
	EndTime       time.Time
	EvalResults   map[string]float64
	StopTraining  bool
	BestIteration int // number of rounds to keep, set by early stopping
}

// Callback is a function that can be called during training
type Callback func(env *CallbackEnv) error

// PrintEvaluation logs evaluation results every period iterations.
func PrintEvaluation(logger log.Logger, period int) Callback {
	if period <= 0 {
		period = 1
	}
	return func(env *CallbackEnv) error {
		if env.Iteration%period != 0 || len(env.EvalResults) == 0 {
			return nil
		}
		fields := []any{log.IterationKey, env.Iteration}
		for _, name := range sortedKeys(env.EvalResults) {
			fields = append(fields, name, env.EvalResults[name])
		}
		logger.Info("Evaluation", fields...)
		return nil
	}
}

// RecordEvaluation records evaluation history
func RecordEvaluation(history *map[string][]float64) Callback {
	return func(env *CallbackEnv) error {
		if *history == nil {
			*history = make(map[string][]float64)
		}
		for name, value := range env.EvalResults {
			(*history)[name] = append((*history)[name], value)
		}
		return nil
	}
}

// EarlyStoppingCallback stops training when metric has not improved for
// rounds consecutive iterations.
func EarlyStoppingCallback(logger log.Logger, rounds int, metric string, minimize bool) Callback {
	bestScore := math.Inf(1)
	if !minimize {
		bestScore = math.Inf(-1)
	}
	bestIteration := 0
	roundsNoImprove := 0

	return func(env *CallbackEnv) error {
		value, exists := env.EvalResults[metric]
		if !exists {
			return nil
		}
		improved := value > bestScore
		if minimize {
			improved = value < bestScore
		}
		if improved {
			bestScore = value
			bestIteration = env.Iteration
			roundsNoImprove = 0
		} else {
			roundsNoImprove++
		}
		env.BestIteration = bestIteration + 1

		if roundsNoImprove >= rounds {
			logger.Info("Early stopping",
				log.IterationKey, env.Iteration,
				"best_iteration", bestIteration,
				log.MetricNameKey, metric,
				log.LossKey, bestScore,
			)
			env.StopTraining = true
		}
		return nil
	}
}

// TimeLimit stops training after a specified duration
func TimeLimit(logger log.Logger, maxDuration time.Duration) Callback {
	startTime := time.Now()
	return func(env *CallbackEnv) error {
		if time.Since(startTime) > maxDuration {
			logger.Info("Time limit reached", log.IterationKey, env.Iteration)
			env.StopTraining = true
		}
		return nil
	}
}

// CallbackList manages multiple callbacks
type CallbackList struct {
	callbacks []Callback
	env       *CallbackEnv
}

// NewCallbackList creates a new callback list
func NewCallbackList(callbacks ...Callback) *CallbackList {
	return &CallbackList{
		callbacks: callbacks,
		env: &CallbackEnv{
			EvalResults: make(map[string]float64),
		},
	}
}

// Len returns the number of callbacks.
func (cl *CallbackList) Len() int {
	return len(cl.callbacks)
}

// BeforeIteration records the start of an iteration.
func (cl *CallbackList) BeforeIteration(iteration int, booster *Booster) {
	cl.env.Iteration = iteration
	cl.env.Booster = booster
	cl.env.BeginTime = time.Now()
}

// AfterIteration calls callbacks after each iteration
func (cl *CallbackList) AfterIteration(iteration int, booster *Booster, evalResults map[string]float64) error {
	cl.env.Iteration = iteration
	cl.env.Booster = booster
	cl.env.EndTime = time.Now()
	cl.env.EvalResults = evalResults

	for _, cb := range cl.callbacks {
		if err := cb(cl.env); err != nil {
			return err
		}
	}
	return nil
}

// ShouldStop returns whether training should stop
func (cl *CallbackList) ShouldStop() bool {
	return cl.env.StopTraining
}

// BestIteration returns the best iteration reported by early stopping.
func (cl *CallbackList) BestIteration() int {
	return cl.env.BestIteration
}
