package inference

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/neurogo/core/model"
	"github.com/YuminosukeSato/neurogo/dataset"
	"github.com/YuminosukeSato/neurogo/pkg/errors"
	"github.com/YuminosukeSato/neurogo/pkg/log"
	"github.com/YuminosukeSato/neurogo/store"
)

// defaultConfidence is reported for models that expose no class
// probabilities.
const defaultConfidence = 0.8

// Prediction is the outcome of classifying one feature row.
type Prediction struct {
	// Prediction is the predicted label.
	Prediction float64

	// Confidence is the highest class probability, or defaultConfidence
	// when the model exposes none.
	Confidence float64

	// FeatureImportance maps feature names to importances. Empty when the
	// model does not expose them.
	FeatureImportance map[string]float64

	// Explanation is a human-readable summary of the prediction.
	Explanation string
}

// Predictor serves single-row predictions from persisted models.
type Predictor struct {
	store  *store.Store
	logger log.Logger
}

// NewPredictor creates a Predictor reading from st. A nil logger falls back
// to the package default.
func NewPredictor(st *store.Store, logger log.Logger) *Predictor {
	if logger == nil {
		logger = log.GetLoggerWithName("inference.predictor")
	}
	return &Predictor{store: st, logger: logger}
}

// Predict classifies one row given as a feature map. order fixes the column
// order and must match the order the model was trained with. A scaler
// persisted with the model is applied automatically.
func (p *Predictor) Predict(name string, features map[string]interface{}, order []string) (pred *Prediction, err error) {
	defer errors.Recover(&err, "Predictor.Predict")

	m, scaler, err := p.store.Load(name)
	if err != nil {
		return nil, err
	}

	row, err := dataset.BuildRow(features, order)
	if err != nil {
		return nil, err
	}

	var X mat.Matrix = row
	if scaler != nil {
		if X, err = scaler.Transform(X); err != nil {
			return nil, err
		}
	}

	preds, err := m.Predict(X)
	if err != nil {
		return nil, err
	}
	label := preds.At(0, 0)

	confidence := defaultConfidence
	if pc, ok := m.(model.ProbabilityClassifier); ok {
		proba, err := pc.PredictProba(X)
		if err != nil {
			return nil, err
		}
		_, nClasses := proba.Dims()
		best := 0.0
		for j := 0; j < nClasses; j++ {
			if v := proba.At(0, j); v > best {
				best = v
			}
		}
		confidence = best
	}

	importance := make(map[string]float64)
	if imp, ok := m.(model.FeatureImportancer); ok {
		values := imp.FeatureImportances()
		for i, fname := range order {
			if i < len(values) {
				importance[fname] = values[i]
			}
		}
	}

	p.logger.Debug("prediction served",
		log.ModelNameKey, name,
		log.ConfidenceKey, confidence,
	)
	return &Prediction{
		Prediction:        label,
		Confidence:        confidence,
		FeatureImportance: importance,
		Explanation:       fmt.Sprintf("Predicted %v with %.1f%% confidence", label, confidence*100),
	}, nil
}
