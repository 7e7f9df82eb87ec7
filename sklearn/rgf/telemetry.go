package rgf

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PromObserver exports training progress as Prometheus metrics.
type PromObserver struct {
	rounds       prometheus.Counter
	stops        prometheus.Counter
	acceptedTree *prometheus.CounterVec
	ensembleSize prometheus.Gauge
	roundLatency prometheus.Histogram
	refitTrees   prometheus.Counter
	leafDelta    prometheus.Histogram
}

// NewPromObserver registers the metrics on reg.
func NewPromObserver(reg prometheus.Registerer, namespace string) *PromObserver {
	f := promauto.With(reg)
	return &PromObserver{
		rounds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "boosting",
			Name:      "rounds_total",
			Help:      "Total TrainOneIter calls",
		}),
		stops: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "boosting",
			Name:      "no_progress_stops_total",
			Help:      "Rounds rolled back because no channel produced a split",
		}),
		acceptedTree: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "boosting",
			Name:      "accepted_trees_total",
			Help:      "Trees accepted into the ensemble by channel",
		}, []string{"channel"}),
		ensembleSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "boosting",
			Name:      "ensemble_size",
			Help:      "Number of stored trees",
		}),
		roundLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "boosting",
			Name:      "round_duration_seconds",
			Help:      "Wall time of one boosting round",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		refitTrees: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refit",
			Name:      "trees_total",
			Help:      "Trees replaced by corrective sweeps",
		}),
		leafDelta: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refit",
			Name:      "max_leaf_delta",
			Help:      "Largest absolute leaf change per refit tree",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 10, 8),
		}),
	}
}

func (p *PromObserver) OnRound(e RoundEvent) {
	p.rounds.Inc()
	if e.Finished {
		p.stops.Inc()
	}
	for c, ok := range e.Accepted {
		if ok {
			p.acceptedTree.WithLabelValues(strconv.Itoa(c)).Inc()
		}
	}
	p.ensembleSize.Set(float64(e.EnsembleSize))
	p.roundLatency.Observe(e.Duration.Seconds())
}

func (p *PromObserver) OnRefit(e RefitEvent) {
	p.refitTrees.Inc()
	p.leafDelta.Observe(e.MaxAbsDelta)
}
