// Package log defines standard attribute keys for experiment runs.
//
// Keys follow a hierarchical naming convention (e.g. "experiment.name",
// "data.samples") so that logs of a whole grid sweep can be filtered by
// experiment, phase or metric.

package log

// Experiment context
const (
	// ExperimentKey is the experiment name, also used for summary and checkpoint directories.
	ExperimentKey = "experiment.name"

	// SigmaKey is the noise-generation parameter of the training data.
	SigmaKey = "experiment.sigma"

	// OrderKey is the pooling order (1, 2 or 4).
	OrderKey = "experiment.order"

	// SigmaNoiseKey is the test-time noise level.
	SigmaNoiseKey = "experiment.sigma_noise"

	// ModelNameKey identifies the model backend.
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the experiment lifecycle.
	PhaseKey = "ml.phase"
)

// Data shape
const (
	SamplesKey   = "data.samples"
	FeaturesKey  = "data.features"
	BatchSizeKey = "data.batch_size"
	PathKey      = "data.path"
)

// Performance and metrics
const (
	DurationMsKey = "perf.duration_ms"
	AccuracyKey   = "metrics.accuracy"
	LossKey       = "metrics.loss"
	ErrorRateKey  = "metrics.error_rate"
	IterationKey  = "training.iteration"
	EpochKey      = "training.epoch"
	NoiseLevelKey = "training.noise_level"
)

// Hyperparameters
const (
	NsidesKey         = "hyperparams.nsides"
	LearningRateKey   = "hyperparams.learning_rate"
	RegularizationKey = "hyperparams.regularization"
	EvalFrequencyKey  = "hyperparams.eval_frequency"
	NumEpochsKey      = "hyperparams.num_epochs"
)

// Errors
const (
	ErrorCodeKey  = "error.code"
	SuggestionKey = "error.suggestion"
)

// Standard attribute values.
const (
	OperationFit      = "fit"
	OperationPredict  = "predict"
	OperationEvaluate = "evaluate"
	OperationLoad     = "load"
	OperationPersist  = "persist"
	OperationCleanup  = "cleanup"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
	PhasePreprocessing = "preprocessing"

	ErrorUnsupportedOrder  = "UNSUPPORTED_ORDER"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
)
