package training

import (
	"fmt"
	"time"

	"github.com/YuminosukeSato/neurogo/core/model"
	"github.com/YuminosukeSato/neurogo/dataset"
	"github.com/YuminosukeSato/neurogo/metrics"
	"github.com/YuminosukeSato/neurogo/pkg/errors"
	"github.com/YuminosukeSato/neurogo/pkg/log"
	"github.com/YuminosukeSato/neurogo/preprocessing"
	"github.com/YuminosukeSato/neurogo/store"
)

// Request describes one training run over in-memory records.
type Request struct {
	// Records are the decoded JSON rows to train on.
	Records []dataset.Record

	// Features names the columns used as model input, in order.
	Features []string

	// Target names the label column.
	Target string

	// Algorithm selects the estimator. An unrecognized name falls back to
	// the default algorithm.
	Algorithm string

	// Hyperparameters are applied to the estimator before fitting. An
	// unknown key rejects the whole request.
	Hyperparameters map[string]interface{}

	// ModelName is the artifact name the trained model is persisted under.
	ModelName string
}

// Result reports the quality of a completed training run.
type Result struct {
	// Algorithm is the estimator that was actually trained, after any
	// fallback.
	Algorithm string

	// Metrics holds the held-out evaluation: accuracy, weighted precision,
	// recall, F1 and the confusion matrix.
	Metrics *metrics.ClassificationReport

	// CrossValidationScore is the mean accuracy over k folds of the
	// training partition.
	CrossValidationScore float64

	// FeatureImportance maps feature names to importances. Empty when the
	// estimator does not expose them.
	FeatureImportance map[string]float64
}

// Trainer runs the training pipeline: build the matrix, fit, evaluate,
// cross-validate and persist.
type Trainer struct {
	store    *store.Store
	logger   log.Logger
	scale    bool
	testSize float64
	seed     int64
	cvFolds  int
}

// TrainerOption configures a Trainer.
type TrainerOption func(*Trainer)

// WithScaler standardizes features before fitting. The scaler is fitted on
// the training split only and persisted beside the model.
func WithScaler() TrainerOption {
	return func(t *Trainer) { t.scale = true }
}

// WithTestSize sets the held-out fraction of the train/test split.
func WithTestSize(fraction float64) TrainerOption {
	return func(t *Trainer) { t.testSize = fraction }
}

// WithSeed sets the seed used for the split and the fold shuffle.
func WithSeed(seed int64) TrainerOption {
	return func(t *Trainer) { t.seed = seed }
}

// WithCVFolds sets the number of cross-validation folds.
func WithCVFolds(k int) TrainerOption {
	return func(t *Trainer) { t.cvFolds = k }
}

// NewTrainer creates a Trainer persisting into st. A nil logger falls back
// to the package default.
func NewTrainer(st *store.Store, logger log.Logger, opts ...TrainerOption) *Trainer {
	if logger == nil {
		logger = log.GetLoggerWithName("training.trainer")
	}
	t := &Trainer{
		store:    st,
		logger:   logger,
		testSize: 0.2,
		seed:     42,
		cvFolds:  5,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Train runs the full pipeline for req. When persistence fails after a
// successful fit, the metrics are returned together with the error so the
// caller still sees what was trained.
func (t *Trainer) Train(req Request) (result *Result, err error) {
	defer errors.Recover(&err, "Trainer.Train")

	if req.ModelName == "" {
		return nil, errors.NewValidationError("model_name", "a model name is required", req.ModelName)
	}
	if req.Target == "" {
		return nil, errors.NewValidationError("target", "a target column is required", req.Target)
	}

	start := time.Now()

	frame, err := dataset.Build(req.Records, req.Features, req.Target)
	if err != nil {
		return nil, err
	}

	alg, factory, fellBack := Resolve(req.Algorithm)
	if fellBack {
		t.logger.Warn("unknown algorithm requested, training the default instead",
			"requested_algorithm", req.Algorithm,
			log.AlgorithmKey, string(alg),
			log.ModelNameKey, req.ModelName,
		)
	}

	clf := factory()
	if len(req.Hyperparameters) > 0 {
		setter, ok := clf.(model.ParameterSetter)
		if !ok {
			return nil, errors.NewValidationError("hyperparameters",
				fmt.Sprintf("estimator %s does not accept hyperparameters", alg), req.Hyperparameters)
		}
		if err := setter.SetParams(req.Hyperparameters); err != nil {
			return nil, err
		}
	}

	XTrain, XTest, yTrain, yTest, err := TrainTestSplit(frame.X, frame.Y, t.testSize, t.seed)
	if err != nil {
		return nil, err
	}

	var scaler *preprocessing.StandardScaler
	if t.scale {
		scaler = preprocessing.NewStandardScalerDefault()
		if err := scaler.Fit(XTrain); err != nil {
			return nil, err
		}
		if XTrain, err = scaler.Transform(XTrain); err != nil {
			return nil, err
		}
		if XTest, err = scaler.Transform(XTest); err != nil {
			return nil, err
		}
	}

	if err := clf.Fit(XTrain, yTrain); err != nil {
		return nil, errors.NewTrainingError("Trainer.Train",
			fmt.Sprintf("fitting %s failed", alg), err)
	}

	preds, err := clf.Predict(XTest)
	if err != nil {
		return nil, err
	}
	report, err := metrics.Report(columnToVec(yTest), columnToVec(preds))
	if err != nil {
		return nil, err
	}

	// Cross-validation sees only the training partition, under the
	// training-time transform, never a scaler refitted per fold.
	cvFactory := func() model.Classifier {
		fresh := factory()
		if len(req.Hyperparameters) > 0 {
			if setter, ok := fresh.(model.ParameterSetter); ok {
				// Validated once above.
				_ = setter.SetParams(req.Hyperparameters)
			}
		}
		return fresh
	}
	cv, err := CrossValScore(cvFactory, XTrain, yTrain, NewKFold(t.cvFolds, true, int(t.seed)))
	if err != nil {
		return nil, err
	}

	importance := make(map[string]float64)
	if imp, ok := clf.(model.FeatureImportancer); ok {
		values := imp.FeatureImportances()
		for i, name := range frame.FeatureNames {
			if i < len(values) {
				importance[name] = values[i]
			}
		}
	}

	result = &Result{
		Algorithm:            string(alg),
		Metrics:              report,
		CrossValidationScore: cv.GetMeanScore(),
		FeatureImportance:    importance,
	}

	if err := t.store.Save(req.ModelName, clf, scaler); err != nil {
		return result, err
	}

	t.logger.Info("training complete",
		log.ModelNameKey, req.ModelName,
		log.AlgorithmKey, string(alg),
		log.SamplesKey, frame.NRows,
		log.FeaturesKey, len(frame.FeatureNames),
		log.AccuracyKey, report.Accuracy,
		log.CVScoreKey, result.CrossValidationScore,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return result, nil
}
