// Package inference evaluates persisted models and serves single-row
// predictions from the model store.
package inference

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/neurogo/core/model"
	"github.com/YuminosukeSato/neurogo/dataset"
	"github.com/YuminosukeSato/neurogo/metrics"
	"github.com/YuminosukeSato/neurogo/pkg/errors"
	"github.com/YuminosukeSato/neurogo/pkg/log"
	"github.com/YuminosukeSato/neurogo/store"
)

// EvalResult reports how a persisted model performs on a dataset.
type EvalResult struct {
	// Metrics holds accuracy, weighted precision/recall/F1 and the
	// confusion matrix over the full dataset.
	Metrics *metrics.ClassificationReport

	// FeatureImportance maps feature names to importances. Empty when the
	// model does not expose them.
	FeatureImportance map[string]float64
}

// Evaluator scores persisted models against labeled records.
type Evaluator struct {
	store  *store.Store
	logger log.Logger
}

// NewEvaluator creates an Evaluator reading from st. A nil logger falls back
// to the package default.
func NewEvaluator(st *store.Store, logger log.Logger) *Evaluator {
	if logger == nil {
		logger = log.GetLoggerWithName("inference.evaluator")
	}
	return &Evaluator{store: st, logger: logger}
}

// Evaluate loads the model persisted under name and scores it on every
// record. When a scaler was persisted with the model it is applied first, so
// records are given in their original units.
func (e *Evaluator) Evaluate(name string, records []dataset.Record, features []string, target string) (result *EvalResult, err error) {
	defer errors.Recover(&err, "Evaluator.Evaluate")

	m, scaler, err := e.store.Load(name)
	if err != nil {
		return nil, err
	}

	frame, err := dataset.Build(records, features, target)
	if err != nil {
		return nil, err
	}

	var X mat.Matrix = frame.X
	if scaler != nil {
		if X, err = scaler.Transform(X); err != nil {
			return nil, err
		}
	}

	preds, err := m.Predict(X)
	if err != nil {
		return nil, err
	}
	report, err := metrics.Report(frame.Y, columnVec(preds))
	if err != nil {
		return nil, err
	}

	importance := make(map[string]float64)
	if imp, ok := m.(model.FeatureImportancer); ok {
		values := imp.FeatureImportances()
		for i, fname := range frame.FeatureNames {
			if i < len(values) {
				importance[fname] = values[i]
			}
		}
	}

	e.logger.Info("evaluation complete",
		log.ModelNameKey, name,
		log.SamplesKey, frame.NRows,
		log.AccuracyKey, report.Accuracy,
	)
	return &EvalResult{Metrics: report, FeatureImportance: importance}, nil
}

// columnVec copies the first column of a matrix into a vector.
func columnVec(m mat.Matrix) *mat.VecDense {
	rows, _ := m.Dims()
	v := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v
}
