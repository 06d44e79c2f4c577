package linear

import (
	"bytes"
	"encoding/gob"
	"math"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/neurogo/pkg/errors"
)

func TestLogisticRegression_FitPredict_Binary(t *testing.T) {
	// Class 0 around (1, 1), class 1 around (3, 3).
	X := mat.NewDense(6, 2, []float64{
		0.5, 0.5,
		1.0, 1.5,
		1.5, 1.0,
		3.0, 2.5,
		2.5, 3.0,
		3.5, 3.5,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	lr := NewLogisticRegression(
		WithLRMaxIter(1000),
		WithLRTol(1e-4),
	)
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	predictions, err := lr.Predict(X)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	for i := 0; i < 6; i++ {
		if predictions.At(i, 0) != y.At(i, 0) {
			t.Errorf("Sample %d: expected %v, got %v", i, y.At(i, 0), predictions.At(i, 0))
		}
	}

	XTest := mat.NewDense(2, 2, []float64{
		1.0, 1.0,
		3.0, 3.0,
	})
	testPreds, err := lr.Predict(XTest)
	if err != nil {
		t.Fatalf("Predict() on test data error = %v", err)
	}
	if testPreds.At(0, 0) != 0 {
		t.Errorf("Test point (1,1) should be class 0, got %v", testPreds.At(0, 0))
	}
	if testPreds.At(1, 0) != 1 {
		t.Errorf("Test point (3,3) should be class 1, got %v", testPreds.At(1, 0))
	}
}

func TestLogisticRegression_PredictProba(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
	})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	lr := NewLogisticRegression(WithLRMaxIter(500))
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	probas, err := lr.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba() error = %v", err)
	}

	rows, cols := probas.Dims()
	if rows != 4 || cols != 2 {
		t.Errorf("PredictProba() shape = (%d, %d), want (4, 2)", rows, cols)
	}

	for i := 0; i < rows; i++ {
		sum := 0.0
		for j := 0; j < cols; j++ {
			prob := probas.At(i, j)
			if prob < 0 || prob > 1 {
				t.Errorf("Invalid probability at (%d, %d): %v", i, j, prob)
			}
			sum += prob
		}
		if math.Abs(sum-1.0) > 1e-6 {
			t.Errorf("Probabilities for sample %d don't sum to 1: %v", i, sum)
		}
	}

	// The predicted class must carry the larger probability.
	predictions, err := lr.Predict(X)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	for i := 0; i < rows; i++ {
		pred := int(predictions.At(i, 0))
		prob0 := probas.At(i, 0)
		prob1 := probas.At(i, 1)
		if pred == 0 && prob0 <= prob1 {
			t.Errorf("Sample %d: predicted class 0 but P(0)=%v <= P(1)=%v", i, prob0, prob1)
		}
		if pred == 1 && prob1 <= prob0 {
			t.Errorf("Sample %d: predicted class 1 but P(1)=%v <= P(0)=%v", i, prob1, prob0)
		}
	}
}

func TestLogisticRegression_Score(t *testing.T) {
	// Class 1 when the feature sum exceeds 1.5, linearly separable.
	X := mat.NewDense(8, 3, []float64{
		0, 0, 0,
		0, 0, 1,
		0, 1, 0,
		0, 1, 1,
		1, 0, 0,
		1, 0, 1,
		1, 1, 0,
		1, 1, 1,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 1, 0, 1, 1, 1})

	lr := NewLogisticRegression(
		WithLRMaxIter(1000),
		WithLRC(10.0),
	)
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	score, err := lr.Score(X, y)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if score < 0.75 {
		t.Errorf("Score() = %v, want >= 0.75", score)
	}

	XSimple := mat.NewDense(6, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		3, 3,
		3, 4,
		4, 3,
	})
	ySimple := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	lr2 := NewLogisticRegression(
		WithLRMaxIter(1000),
		WithLRC(10.0),
	)
	if err := lr2.Fit(XSimple, ySimple); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	scoreSimple, err := lr2.Score(XSimple, ySimple)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if scoreSimple != 1.0 {
		t.Errorf("Score() = %v, want 1.0 on separable data", scoreSimple)
	}
}

func TestLogisticRegression_Regularization(t *testing.T) {
	X := mat.NewDense(10, 5, []float64{
		1, 0, 0, 0, 0,
		0, 1, 0, 0, 0,
		0, 0, 1, 0, 0,
		0, 0, 0, 1, 0,
		0, 0, 0, 0, 1,
		1, 1, 0, 0, 0,
		0, 1, 1, 0, 0,
		0, 0, 1, 1, 0,
		0, 0, 0, 1, 1,
		1, 0, 0, 0, 1,
	})
	y := mat.NewDense(10, 1, []float64{0, 0, 0, 1, 1, 0, 0, 1, 1, 1})

	lrStrong := NewLogisticRegression(
		WithLRC(0.01),
		WithLRMaxIter(1000),
	)
	if err := lrStrong.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	lrWeak := NewLogisticRegression(
		WithLRC(100.0),
		WithLRMaxIter(1000),
	)
	if err := lrWeak.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	strongNorm := 0.0
	weakNorm := 0.0
	for j := 0; j < 5; j++ {
		strongNorm += lrStrong.Coefs[0][j] * lrStrong.Coefs[0][j]
		weakNorm += lrWeak.Coefs[0][j] * lrWeak.Coefs[0][j]
	}
	strongNorm = math.Sqrt(strongNorm)
	weakNorm = math.Sqrt(weakNorm)

	if strongNorm >= weakNorm {
		t.Errorf("Strong regularization should produce smaller weights: strong=%v, weak=%v",
			strongNorm, weakNorm)
	}
}

func TestLogisticRegression_Multiclass(t *testing.T) {
	X := mat.NewDense(9, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		2, 2,
		2, 3,
		3, 2,
		4, 4,
		4, 5,
		5, 4,
	})
	y := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2})

	lr := NewLogisticRegression(
		WithLRMaxIter(1000),
		WithLRC(10.0),
	)
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	if classes := lr.Classes(); !reflect.DeepEqual(classes, []float64{0, 1, 2}) {
		t.Errorf("Classes() = %v, want [0 1 2]", classes)
	}

	predictions, err := lr.Predict(X)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	correct := 0
	for i := 0; i < 9; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	if accuracy := float64(correct) / 9.0; accuracy < 0.89 {
		t.Errorf("Multiclass accuracy too low: %v", accuracy)
	}

	probas, err := lr.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba() error = %v", err)
	}
	rows, cols := probas.Dims()
	if cols != 3 {
		t.Errorf("PredictProba() columns = %d, want 3", cols)
	}
	for i := 0; i < rows; i++ {
		sum := 0.0
		for j := 0; j < cols; j++ {
			prob := probas.At(i, j)
			if prob < 0 || prob > 1 {
				t.Errorf("Invalid probability at (%d, %d): %v", i, j, prob)
			}
			sum += prob
		}
		if math.Abs(sum-1.0) > 1e-6 {
			t.Errorf("Probabilities for sample %d don't sum to 1: %v", i, sum)
		}
	}
}

func TestLogisticRegression_GetSetParams(t *testing.T) {
	lr := NewLogisticRegression()

	params := lr.GetParams()
	if params["C"].(float64) != 1.0 {
		t.Errorf("Default C should be 1.0, got %v", params["C"])
	}
	if params["max_iter"].(int) != 100 {
		t.Errorf("Default max_iter should be 100, got %v", params["max_iter"])
	}

	err := lr.SetParams(map[string]interface{}{
		"C":        2.0,
		"max_iter": float64(200),
		"penalty":  "none",
		"tol":      1e-5,
	})
	if err != nil {
		t.Fatalf("SetParams() error = %v", err)
	}
	if lr.c != 2.0 {
		t.Errorf("C not updated: expected 2.0, got %v", lr.c)
	}
	if lr.maxIter != 200 {
		t.Errorf("max_iter not updated: expected 200, got %v", lr.maxIter)
	}
	if lr.penalty != "none" {
		t.Errorf("penalty not updated: expected 'none', got %v", lr.penalty)
	}
	if lr.tol != 1e-5 {
		t.Errorf("tol not updated: expected 1e-5, got %v", lr.tol)
	}

	err = lr.SetParams(map[string]interface{}{"solver": "lbfgs"})
	var ve *errors.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("Unknown hyperparameter should return ValidationError, got %v", err)
	}
}

func TestLogisticRegression_UnsupportedPenalty(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	lr := NewLogisticRegression(WithLRPenalty("l1"))
	err := lr.Fit(X, y)
	var ve *errors.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("Fit() with l1 penalty error = %v, want ValidationError", err)
	}
}

func TestLogisticRegression_SingleClassRejected(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	y := mat.NewDense(3, 1, []float64{1, 1, 1})

	lr := NewLogisticRegression()
	err := lr.Fit(X, y)
	var ve *errors.ValueError
	if !errors.As(err, &ve) {
		t.Errorf("Fit() on single-class data error = %v, want ValueError", err)
	}
}

func TestLogisticRegression_NotFitted(t *testing.T) {
	lr := NewLogisticRegression()
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	var nfe *errors.NotFittedError
	if _, err := lr.Predict(X); !errors.As(err, &nfe) {
		t.Errorf("Predict() before Fit error = %v, want NotFittedError", err)
	}
	if _, err := lr.PredictProba(X); !errors.As(err, &nfe) {
		t.Errorf("PredictProba() before Fit error = %v, want NotFittedError", err)
	}
}

func TestLogisticRegression_Deterministic(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		0, 0,
		1, 0,
		0, 1,
		3, 3,
		4, 3,
		3, 4,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	first := NewLogisticRegression(WithLRRandomState(7), WithLRMaxIter(50))
	second := NewLogisticRegression(WithLRRandomState(7), WithLRMaxIter(50))
	if err := first.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if err := second.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	if !reflect.DeepEqual(first.Coefs, second.Coefs) {
		t.Error("Same seed should reproduce identical coefficients")
	}
}

func TestLogisticRegression_ConvergenceWarning(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(func(w error) {})

	X := mat.NewDense(4, 2, []float64{
		0, 0,
		0, 1,
		5, 5,
		5, 6,
	})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	lr := NewLogisticRegression(WithLRMaxIter(2), WithLRTol(1e-12))
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	found := false
	for _, w := range warnings {
		var cw *errors.ConvergenceWarning
		if errors.As(w, &cw) && cw.Algorithm == "logistic_regression" {
			found = true
		}
	}
	if !found {
		t.Error("Fit() with max_iter=2 should emit a ConvergenceWarning")
	}
}

func TestLogisticRegression_GobRoundTrip(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		0, 0,
		1, 0,
		0, 1,
		3, 3,
		4, 3,
		3, 4,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	lr := NewLogisticRegression(WithLRMaxIter(500))
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(lr); err != nil {
		t.Fatalf("gob encode error = %v", err)
	}
	var restored LogisticRegression
	if err := gob.NewDecoder(&buf).Decode(&restored); err != nil {
		t.Fatalf("gob decode error = %v", err)
	}

	if !restored.IsFitted() {
		t.Error("restored model should report fitted")
	}

	want, err := lr.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba() error = %v", err)
	}
	got, err := restored.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba() after decode error = %v", err)
	}
	if !mat.Equal(got, want) {
		t.Error("restored model predicts differently from the original")
	}
}
