// Standard attribute keys used in structured log fields.
//
// Keys are hierarchical ("model.name", "data.samples", "http.status") so that
// log processors can filter by prefix.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the model, e.g. "linear_regression", "knn".
	ModelNameKey = "model.name"

	// EstimatorIDKey identifies one trained instance of a model.
	EstimatorIDKey = "estimator.id"

	// OperationKey is one of the Operation* values below.
	OperationKey = "ml.operation"

	// ComponentKey names the package or subsystem emitting the record.
	ComponentKey = "ml.component"

	// PhaseKey is one of the Phase* values below.
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	ClassesKey  = "data.classes"

	// DatasetPathKey is the file the dataset was read from.
	DatasetPathKey = "data.path"

	// ArtifactPathKey is where a model artifact is persisted.
	ArtifactPathKey = "model.artifact"
)

// Performance and training metrics.
const (
	DurationMsKey = "perf.duration_ms"
	AccuracyKey   = "metrics.accuracy"
	LossKey       = "metrics.loss"
	R2ScoreKey    = "metrics.r2_score"
	MSEKey        = "metrics.mse"
	IterationKey  = "training.iteration"
	EpochKey      = "training.epoch"
)

// Prediction context.
const (
	PredsKey      = "preds.count"
	ConfidenceKey = "preds.confidence"
	LabelKey      = "preds.label"
)

// HTTP request context. Used by the API access log middleware.
const (
	RequestIDKey  = "http.request_id"
	MethodKey     = "http.method"
	PathKey       = "http.path"
	StatusKey     = "http.status"
	ClientIPKey   = "http.client_ip"
	UserAgentKey  = "http.user_agent"
	BytesOutKey   = "http.bytes_out"
	ListenAddrKey = "http.listen_addr"
)

// Error context.
const (
	// ErrorCodeKey is one of the Error* codes below.
	ErrorCodeKey = "error.code"

	// ErrorTypeKey is the Go type of the innermost error.
	ErrorTypeKey = "error.type"

	// SuggestionKey gives a human hint for resolving the problem.
	SuggestionKey = "error.suggestion"
)

// Hyperparameters and configuration.
const (
	HyperParamsKey  = "model.hyperparams"
	RandomSeedKey   = "config.random_seed"
	LearningRateKey = "hyperparams.learning_rate"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"
	OperationSave      = "save"
	OperationLoad      = "load"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorInvalidInput      = "INVALID_INPUT"
	ErrorConvergence       = "CONVERGENCE_FAILURE"
	ErrorSingularMatrix    = "SINGULAR_MATRIX"
	ErrorModelUnavailable  = "MODEL_UNAVAILABLE"
)
