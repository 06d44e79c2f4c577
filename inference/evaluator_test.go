package inference

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/neurogo/dataset"
	"github.com/YuminosukeSato/neurogo/ensemble"
	"github.com/YuminosukeSato/neurogo/linear"
	"github.com/YuminosukeSato/neurogo/pkg/errors"
	"github.com/YuminosukeSato/neurogo/pkg/log"
	"github.com/YuminosukeSato/neurogo/preprocessing"
	"github.com/YuminosukeSato/neurogo/store"
)

func clusterRecords() ([]dataset.Record, []string, string) {
	var records []dataset.Record
	for i := 0; i < 8; i++ {
		base := 1.0
		label := 0.0
		if i >= 4 {
			base = 8.0
			label = 1.0
		}
		records = append(records, dataset.Record{
			"clicks":      base + float64(i%4)*0.1,
			"impressions": base + 0.2 + float64(i%4)*0.05,
			"converted":   label,
		})
	}
	return records, []string{"clicks", "impressions"}, "converted"
}

func newTestStore(t *testing.T) (*store.Store, *log.TestLogger) {
	t.Helper()
	logger, _ := log.NewTestLogger(log.LevelDebug)
	st, err := store.New(t.TempDir(), store.WithLogger(logger))
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	return st, logger
}

// saveFitted trains a forest on the cluster records, optionally behind a
// scaler, and persists it under name.
func saveFitted(t *testing.T, st *store.Store, name string, scaled bool) {
	t.Helper()
	records, features, target := clusterRecords()
	frame, err := dataset.Build(records, features, target)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var scaler *preprocessing.StandardScaler
	var X mat.Matrix = frame.X
	if scaled {
		scaler = preprocessing.NewStandardScalerDefault()
		if X, err = scaler.FitTransform(frame.X); err != nil {
			t.Fatalf("FitTransform failed: %v", err)
		}
	}

	rf := ensemble.NewRandomForestClassifier().WithNEstimators(5).WithRandomState(42)
	if err := rf.Fit(X, frame.Y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if err := st.Save(name, rf, scaler); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
}

func TestEvaluatorEvaluate(t *testing.T) {
	st, logger := newTestStore(t)
	saveFitted(t, st, "conversion", false)

	records, features, target := clusterRecords()
	ev := NewEvaluator(st, logger)

	result, err := ev.Evaluate("conversion", records, features, target)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if result.Metrics.Accuracy != 1.0 {
		t.Errorf("accuracy = %v on the training clusters, want 1.0", result.Metrics.Accuracy)
	}
	if result.Metrics.Precision != 1.0 || result.Metrics.Recall != 1.0 || result.Metrics.F1 != 1.0 {
		t.Errorf("weighted metrics = %v/%v/%v, want all 1.0",
			result.Metrics.Precision, result.Metrics.Recall, result.Metrics.F1)
	}

	total := 0
	for _, row := range result.Metrics.ConfusionMatrix {
		for _, n := range row {
			total += n
		}
	}
	if total != len(records) {
		t.Errorf("confusion matrix covers %d rows, want %d", total, len(records))
	}

	if len(result.FeatureImportance) != 2 {
		t.Errorf("FeatureImportance has %d entries, want 2", len(result.FeatureImportance))
	}
}

func TestEvaluatorAppliesScaler(t *testing.T) {
	st, logger := newTestStore(t)
	saveFitted(t, st, "scaled", true)

	// Records arrive in original units; only the persisted scaler makes
	// them match what the model was fitted on.
	records, features, target := clusterRecords()
	ev := NewEvaluator(st, logger)

	result, err := ev.Evaluate("scaled", records, features, target)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if result.Metrics.Accuracy != 1.0 {
		t.Errorf("accuracy = %v with the persisted scaler applied, want 1.0", result.Metrics.Accuracy)
	}
}

func TestEvaluatorNoImportances(t *testing.T) {
	st, logger := newTestStore(t)

	records, features, target := clusterRecords()
	frame, err := dataset.Build(records, features, target)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	lr := linear.NewLogisticRegression()
	if err := lr.Fit(frame.X, frame.Y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if err := st.Save("logit", lr, nil); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	result, err := NewEvaluator(st, logger).Evaluate("logit", records, features, target)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(result.FeatureImportance) != 0 {
		t.Errorf("expected an empty importance map, got %v", result.FeatureImportance)
	}
}

func TestEvaluatorMissingModel(t *testing.T) {
	st, logger := newTestStore(t)
	records, features, target := clusterRecords()

	_, err := NewEvaluator(st, logger).Evaluate("absent", records, features, target)
	var notFound *errors.ModelNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ModelNotFoundError, got %v", err)
	}
}

func TestEvaluatorBadRecords(t *testing.T) {
	st, logger := newTestStore(t)
	saveFitted(t, st, "conversion", false)

	records, features, target := clusterRecords()
	delete(records[3], "clicks")

	_, err := NewEvaluator(st, logger).Evaluate("conversion", records, features, target)
	var schemaErr *errors.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if schemaErr.Record != 3 {
		t.Errorf("SchemaError names record %d, want 3", schemaErr.Record)
	}
}
