// Package log defines standard attribute keys for boosting operations.
//
// The keys follow a hierarchical naming convention (e.g. "boost.round",
// "data.samples") so that log lines can be filtered and aggregated.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of model.
	ModelNameKey = "model.name"

	// RunIDKey identifies one training run of a booster.
	RunIDKey = "run.id"

	// OperationKey specifies the operation being performed.
	// Standard values: "train_one_iter", "refit", "predict"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of model lifecycle.
	PhaseKey = "ml.phase"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows) in a partition.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns).
	FeaturesKey = "data.features"

	// PartitionKey names a score partition ("training", "valid_0", ...).
	PartitionKey = "data.partition"

	// BagSizeKey indicates the number of bagged data points in a round.
	BagSizeKey = "data.bag_size"
)

// Boosting Progress
const (
	// RoundKey records the boosting round.
	RoundKey = "boost.round"

	// ChannelKey records the output channel (class) a tree belongs to.
	ChannelKey = "boost.channel"

	// ChannelsKey records the number of output channels.
	ChannelsKey = "boost.channels"

	// LeavesKey records the number of leaves of a tree.
	LeavesKey = "boost.leaves"

	// AcceptedTreesKey records how many non-degenerate trees a round accepted.
	AcceptedTreesKey = "boost.accepted_trees"

	// EnsembleSizeKey records the number of trees in the ensemble.
	EnsembleSizeKey = "boost.ensemble_size"

	// BiasKey records the cold-start bias of a channel.
	BiasKey = "boost.bias"

	// LeafDeltaKey records the largest absolute leaf change of a refit.
	LeafDeltaKey = "boost.leaf_delta"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// LossKey records loss value during training or evaluation.
	LossKey = "metrics.loss"

	// MetricNameKey records which evaluation metric a value belongs to.
	MetricNameKey = "metrics.name"

	// IterationKey records the current iteration number.
	IterationKey = "training.iteration"
)

// Error and Warning Context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"
)

// Hyperparameters and Configuration
const (
	// LearningRateKey records the shrinkage rate.
	LearningRateKey = "hyperparams.learning_rate"

	// ObjectiveKey records the objective name.
	ObjectiveKey = "hyperparams.objective"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Standard attribute values.
const (
	OperationTrainOneIter = "train_one_iter"
	OperationRefit        = "refit"
	OperationPredict      = "predict"

	PhaseTraining   = "training"
	PhaseValidation = "validation"

	ErrorStructuralInvariant = "STRUCTURAL_INVARIANT"
	ErrorUpstream            = "UPSTREAM_FAILURE"
)
