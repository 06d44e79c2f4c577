package model

import (
	"gonum.org/v1/gonum/mat"
)

// Fitter is the interface for trainable models.
type Fitter interface {
	// Fit trains the model on X (samples x features) and y (samples x 1).
	Fit(X, y mat.Matrix) error
}

// Predictor is the interface for models that produce predictions.
type Predictor interface {
	// Predict returns predictions for X as a samples x 1 matrix.
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Scorer is the interface for models that compute a quality score on labeled
// data: accuracy for classifiers, R^2 for regressors.
type Scorer interface {
	Score(X, y mat.Matrix) (float64, error)
}

// Classifier combines the interfaces every classification estimator satisfies.
type Classifier interface {
	Fitter
	Predictor
	Scorer

	// Classes returns the distinct class labels seen during fitting, sorted
	// ascending.
	Classes() []float64
}

// ProbabilityClassifier is implemented by classifiers that expose class
// probability estimates. Prediction confidence is derived from it when
// available.
type ProbabilityClassifier interface {
	// PredictProba returns a samples x classes matrix of probabilities.
	// Columns follow the order of Classes().
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// Regressor combines the interfaces every regression estimator satisfies.
type Regressor interface {
	Fitter
	Predictor
	Scorer
}

// FeatureImportancer is implemented by estimators that expose per-feature
// importance scores, index-aligned with the training columns.
type FeatureImportancer interface {
	FeatureImportances() []float64
}

// Transformer is the interface for feature transformations such as scaling.
type Transformer interface {
	// Fit learns the transformation parameters from X.
	Fit(X mat.Matrix) error

	// Transform applies the learned transformation to X.
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform fits the parameters and transforms X in one call.
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// ParameterGetter is the interface for models that expose their hyperparameters.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that accept hyperparameters
// after construction. Implementations reject unknown keys.
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}
