package rgf

import (
	"fmt"
	"sort"

	"github.com/YuminosukeSato/rgf/metrics"
	"github.com/YuminosukeSato/rgf/pkg/errors"
)

// Evaluate scores the training partition and every validation partition
// with metric (the objective's default when empty). Keys have the form
// "<partition>-<metric>".
func (b *Booster) Evaluate(metric string) (map[string]float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if metric == "" {
		metric = b.params.Metric
	}
	if metric == "" {
		metric = b.objective.DefaultMetric()
	}
	results := make(map[string]float64, 1+len(b.validScores))
	for _, cache := range append([]*ScoreCache{b.trainScore}, b.validScores...) {
		v, err := b.evalCache(cache, metric)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluating %s on %s", metric, cache.Name())
		}
		results[cache.Name()+"-"+metric] = v
	}
	return results, nil
}

// ValidationNames returns the validation partition names in registration order.
func (b *Booster) ValidationNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, len(b.validScores))
	for i, v := range b.validScores {
		names[i] = v.Name()
	}
	return names
}

func (b *Booster) evalCache(cache *ScoreCache, metric string) (float64, error) {
	n, k := cache.NumData(), cache.NumChannels()
	scores := cache.Scores()
	raw := make([]float64, k)
	preds := make([]float64, n*k)
	for i := 0; i < n; i++ {
		for c := 0; c < k; c++ {
			raw[c] = scores[c*n+i]
		}
		b.objective.ConvertOutput(raw, preds[i*k:(i+1)*k])
	}
	labels := cache.Data().Labels

	switch metric {
	case "l2", "mse", "mean_squared_error":
		return singleChannel(metric, k, func() (float64, error) { return metrics.MSE(labels, preds) })
	case "rmse":
		return singleChannel(metric, k, func() (float64, error) { return metrics.RMSE(labels, preds) })
	case "l1", "mae", "mean_absolute_error":
		return singleChannel(metric, k, func() (float64, error) { return metrics.MAE(labels, preds) })
	case "r2":
		return singleChannel(metric, k, func() (float64, error) { return metrics.R2Score(labels, preds) })
	case "binary_logloss":
		return singleChannel(metric, k, func() (float64, error) { return metrics.BinaryLogLoss(labels, preds) })
	case "multi_logloss":
		return metrics.MultiLogLoss(labels, preds, k)
	case "accuracy":
		if k < 2 {
			return 0, errors.NewValidationError("metric", "accuracy needs a multiclass objective", metric)
		}
		return metrics.Accuracy(labels, preds, k)
	default:
		return 0, errors.NewValidationError("metric", "unknown metric", metric)
	}
}

func singleChannel(metric string, k int, fn func() (float64, error)) (float64, error) {
	if k != 1 {
		return 0, errors.NewValidationError("metric", fmt.Sprintf("%s needs a single-channel objective", metric), k)
	}
	return fn()
}

// isHigherBetter reports whether larger metric values are better.
func isHigherBetter(metric string) bool {
	switch metric {
	case "r2", "accuracy":
		return true
	}
	return false
}

// sortedKeys returns map keys in lexical order for stable log output.
func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
