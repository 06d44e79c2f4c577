package training

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/neurogo/core/model"
	"github.com/YuminosukeSato/neurogo/ensemble"
	"github.com/YuminosukeSato/neurogo/linear"
	"github.com/YuminosukeSato/neurogo/pkg/errors"
)

func TestKFoldSplit(t *testing.T) {
	X, y := splitData(10)
	kf := NewKFold(5, false, 0)

	folds := kf.Split(X, y)
	if len(folds) != 5 {
		t.Fatalf("got %d folds, want 5", len(folds))
	}

	seen := make(map[int]int)
	for i, fold := range folds {
		if len(fold.TestIndices) != 2 {
			t.Errorf("fold %d test size = %d, want 2", i, len(fold.TestIndices))
		}
		if len(fold.TrainIndices) != 8 {
			t.Errorf("fold %d train size = %d, want 8", i, len(fold.TrainIndices))
		}
		for _, idx := range fold.TestIndices {
			seen[idx]++
		}

		trainSet := make(map[int]bool)
		for _, idx := range fold.TrainIndices {
			trainSet[idx] = true
		}
		for _, idx := range fold.TestIndices {
			if trainSet[idx] {
				t.Errorf("fold %d: index %d is in both train and test", i, idx)
			}
		}
	}

	for idx := 0; idx < 10; idx++ {
		if seen[idx] != 1 {
			t.Errorf("index %d appears in %d test folds, want exactly 1", idx, seen[idx])
		}
	}
}

func TestKFoldUnevenSamples(t *testing.T) {
	X, y := splitData(7)
	folds := NewKFold(3, false, 0).Split(X, y)

	wantSizes := []int{3, 2, 2}
	for i, fold := range folds {
		if len(fold.TestIndices) != wantSizes[i] {
			t.Errorf("fold %d test size = %d, want %d", i, len(fold.TestIndices), wantSizes[i])
		}
	}
}

func TestKFoldShuffleDeterministic(t *testing.T) {
	X, y := splitData(12)

	first := NewKFold(4, true, 42).Split(X, y)
	second := NewKFold(4, true, 42).Split(X, y)

	for i := range first {
		if len(first[i].TestIndices) != len(second[i].TestIndices) {
			t.Fatalf("fold %d sizes differ between runs", i)
		}
		for j := range first[i].TestIndices {
			if first[i].TestIndices[j] != second[i].TestIndices[j] {
				t.Fatalf("fold %d differs between identically seeded runs", i)
			}
		}
	}
}

func TestNewKFoldMinimumSplits(t *testing.T) {
	for _, n := range []int{1, 0, -3} {
		if got := NewKFold(n, false, 0).GetNSplits(); got != 5 {
			t.Errorf("NewKFold(%d) has %d splits, want the fallback 5", n, got)
		}
	}
}

func TestStratifiedKFoldProportions(t *testing.T) {
	// Six samples of each class; every fold of three must hold two per class.
	X := mat.NewDense(12, 1, nil)
	y := mat.NewDense(12, 1, nil)
	for i := 0; i < 12; i++ {
		X.Set(i, 0, float64(i))
		y.Set(i, 0, float64(i%2))
	}

	folds := NewStratifiedKFold(3, false, 0).Split(X, y)
	if len(folds) != 3 {
		t.Fatalf("got %d folds, want 3", len(folds))
	}

	for i, fold := range folds {
		counts := map[float64]int{}
		for _, idx := range fold.TestIndices {
			counts[y.At(idx, 0)]++
		}
		if counts[0] != 2 || counts[1] != 2 {
			t.Errorf("fold %d class counts = %v, want 2 per class", i, counts)
		}
	}
}

func TestCVResultScores(t *testing.T) {
	cv := &CVResult{Scores: []float64{0.8, 0.9, 1.0}}

	if mean := cv.GetMeanScore(); math.Abs(mean-0.9) > 1e-12 {
		t.Errorf("mean = %v, want 0.9", mean)
	}
	if std := cv.GetStdScore(); math.Abs(std-0.1) > 1e-12 {
		t.Errorf("std = %v, want 0.1", std)
	}

	empty := &CVResult{}
	if empty.GetMeanScore() != 0 || empty.GetStdScore() != 0 {
		t.Error("empty result should report zero mean and std")
	}

	single := &CVResult{Scores: []float64{0.5}}
	if single.GetStdScore() != 0 {
		t.Error("a single score has no spread")
	}
}

func crossValData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(10, 2, []float64{
		1.0, 1.1,
		1.2, 0.9,
		0.8, 1.0,
		1.1, 1.2,
		0.9, 0.8,
		8.0, 8.1,
		8.2, 7.9,
		7.8, 8.0,
		8.1, 8.2,
		7.9, 7.8,
	})
	y := mat.NewDense(10, 1, []float64{0, 0, 0, 0, 0, 1, 1, 1, 1, 1})
	return X, y
}

func TestCrossValScore(t *testing.T) {
	X, y := crossValData()
	factory := func() model.Classifier {
		return ensemble.NewRandomForestClassifier().WithNEstimators(5).WithRandomState(42)
	}

	cv, err := CrossValScore(factory, X, y, NewKFold(5, true, 42))
	if err != nil {
		t.Fatalf("CrossValScore failed: %v", err)
	}
	if len(cv.Scores) != 5 {
		t.Fatalf("got %d fold scores, want 5", len(cv.Scores))
	}
	if mean := cv.GetMeanScore(); mean != 1.0 {
		t.Errorf("mean accuracy = %v on cleanly separated clusters, want 1.0", mean)
	}
}

func TestCrossValScoreEmptyFold(t *testing.T) {
	X, y := splitData(3)
	factory := func() model.Classifier { return ensemble.NewRandomForestClassifier() }

	_, err := CrossValScore(factory, X, y, NewKFold(5, false, 0))
	var valueErr *errors.ValueError
	if !errors.As(err, &valueErr) {
		t.Fatalf("expected ValueError for more folds than samples, got %v", err)
	}
}

func TestCrossValScoreFoldFailure(t *testing.T) {
	// Every row shares one label, so each fold's fit must fail.
	X := mat.NewDense(6, 1, []float64{1, 2, 3, 4, 5, 6})
	y := mat.NewDense(6, 1, []float64{1, 1, 1, 1, 1, 1})
	factory := func() model.Classifier { return linear.NewLogisticRegression() }

	_, err := CrossValScore(factory, X, y, NewKFold(3, false, 0))
	if err == nil {
		t.Fatal("expected fold training failures to surface")
	}
	var valueErr *errors.ValueError
	if !errors.As(err, &valueErr) {
		t.Errorf("expected the fold's ValueError to be preserved, got %v", err)
	}
}
