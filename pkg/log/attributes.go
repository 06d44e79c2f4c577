// This file defines the standard attribute keys used across neurogo's log
// records. Keys follow a hierarchical naming convention ("model.name",
// "data.samples", "neuron.id") so records can be filtered and aggregated.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type.
	// Examples: "RandomForestClassifier", "StandardScaler"
	ModelNameKey = "model.name"

	// OperationKey names the ML operation being performed.
	// Standard values: "fit", "predict", "transform", "fit_transform", "score"
	OperationKey = "ml.operation"

	// AlgorithmKey names the algorithm selected for a training run.
	// Examples: "random_forest", "gradient_boosting"
	AlgorithmKey = "ml.algorithm"

	// ComponentKey identifies the package or component emitting the record.
	ComponentKey = "ml.component"

	// PhaseKey indicates the lifecycle phase.
	// Examples: "training", "validation", "inference"
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	// SamplesKey is the number of rows being processed.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of feature columns.
	FeaturesKey = "data.features"

	// ClassesKey is the number of distinct target classes.
	ClassesKey = "data.classes"
)

// Performance and evaluation.
const (
	// DurationMsKey records execution time in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records classification accuracy in [0, 1].
	AccuracyKey = "metrics.accuracy"

	// CVScoreKey records the mean cross-validation score.
	CVScoreKey = "metrics.cv_score"

	// LossKey records a training loss value.
	LossKey = "metrics.loss"

	// IterationKey records the current iteration of an iterative optimizer.
	IterationKey = "training.iteration"
)

// Prediction context.
const (
	// PredsKey is the number of predictions made.
	PredsKey = "preds.count"

	// ConfidenceKey records prediction confidence in [0, 1].
	ConfidenceKey = "preds.confidence"
)

// Model store context.
const (
	// ModelDirKey is the artifact directory of a model store.
	ModelDirKey = "store.dir"

	// ArtifactKey is the path of a persisted artifact.
	ArtifactKey = "store.artifact"
)

// Federation context.
const (
	// NeuronIDKey identifies the neuron instance.
	NeuronIDKey = "neuron.id"

	// NeuronStatusKey is the reported neuron status.
	NeuronStatusKey = "neuron.status"

	// HealthScoreKey is the computed neuron health score in [0, 100].
	HealthScoreKey = "neuron.health_score"

	// FederationURLKey is the federation core base URL.
	FederationURLKey = "federation.url"

	// CommandIDKey identifies a federation command.
	CommandIDKey = "command.id"

	// CommandTypeKey is the command type being executed.
	CommandTypeKey = "command.type"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationScore        = "score"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseInference  = "inference"
)
