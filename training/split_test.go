package training

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/neurogo/pkg/errors"
)

func splitData(rows int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(rows, 2, nil)
	y := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i)*10)
		y.Set(i, 0, float64(i))
	}
	return X, y
}

func TestTrainTestSplit(t *testing.T) {
	X, y := splitData(10)

	XTrain, XTest, yTrain, yTest, err := TrainTestSplit(X, y, 0.2, 42)
	if err != nil {
		t.Fatalf("TrainTestSplit failed: %v", err)
	}

	trainRows, _ := XTrain.Dims()
	testRows, _ := XTest.Dims()
	if trainRows != 8 || testRows != 2 {
		t.Errorf("split sizes = %d/%d, want 8/2", trainRows, testRows)
	}

	// Row i carries its own index in both X and y, so membership and
	// alignment are checkable from the values.
	seen := make(map[float64]bool)
	for i := 0; i < trainRows; i++ {
		id := XTrain.At(i, 0)
		if yTrain.At(i, 0) != id {
			t.Errorf("train row %d: X and y are misaligned", i)
		}
		seen[id] = true
	}
	for i := 0; i < testRows; i++ {
		id := XTest.At(i, 0)
		if yTest.At(i, 0) != id {
			t.Errorf("test row %d: X and y are misaligned", i)
		}
		if seen[id] {
			t.Errorf("row %v appears in both train and test", id)
		}
		seen[id] = true
	}
	if len(seen) != 10 {
		t.Errorf("split covers %d distinct rows, want 10", len(seen))
	}
}

func TestTrainTestSplitDeterministic(t *testing.T) {
	X, y := splitData(12)

	_, XTest1, _, yTest1, err := TrainTestSplit(X, y, 0.25, 42)
	if err != nil {
		t.Fatalf("first split failed: %v", err)
	}
	_, XTest2, _, yTest2, err := TrainTestSplit(X, y, 0.25, 42)
	if err != nil {
		t.Fatalf("second split failed: %v", err)
	}

	if !mat.Equal(XTest1, XTest2) || !mat.Equal(yTest1, yTest2) {
		t.Error("identical inputs and seed produced different splits")
	}
}

func TestTrainTestSplitRoundsUp(t *testing.T) {
	tests := []struct {
		name      string
		rows      int
		testSize  float64
		wantTest  int
		wantTrain int
	}{
		{name: "exact fifth", rows: 10, testSize: 0.2, wantTest: 2, wantTrain: 8},
		{name: "small dataset", rows: 5, testSize: 0.2, wantTest: 1, wantTrain: 4},
		{name: "rounds up", rows: 3, testSize: 0.5, wantTest: 2, wantTrain: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			X, y := splitData(tt.rows)
			XTrain, XTest, _, _, err := TrainTestSplit(X, y, tt.testSize, 42)
			if err != nil {
				t.Fatalf("TrainTestSplit failed: %v", err)
			}
			trainRows, _ := XTrain.Dims()
			testRows, _ := XTest.Dims()
			if testRows != tt.wantTest || trainRows != tt.wantTrain {
				t.Errorf("split sizes = %d/%d, want %d/%d",
					trainRows, testRows, tt.wantTrain, tt.wantTest)
			}
		})
	}
}

func TestTrainTestSplitErrors(t *testing.T) {
	X, y := splitData(4)

	t.Run("empty data", func(t *testing.T) {
		_, _, _, _, err := TrainTestSplit(&mat.Dense{}, y, 0.2, 42)
		if !errors.Is(err, errors.ErrEmptyData) {
			t.Errorf("expected ErrEmptyData, got %v", err)
		}
	})

	t.Run("row mismatch", func(t *testing.T) {
		short := mat.NewDense(2, 1, []float64{0, 1})
		_, _, _, _, err := TrainTestSplit(X, short, 0.2, 42)
		var dimErr *errors.DimensionError
		if !errors.As(err, &dimErr) {
			t.Errorf("expected DimensionError, got %v", err)
		}
	})

	t.Run("test size out of range", func(t *testing.T) {
		for _, size := range []float64{0, 1, -0.1, 1.5} {
			_, _, _, _, err := TrainTestSplit(X, y, size, 42)
			var valErr *errors.ValidationError
			if !errors.As(err, &valErr) {
				t.Errorf("testSize %v: expected ValidationError, got %v", size, err)
			}
		}
	})

	t.Run("train set would be empty", func(t *testing.T) {
		tiny, tinyY := splitData(2)
		_, _, _, _, err := TrainTestSplit(tiny, tinyY, 0.9, 42)
		var valueErr *errors.ValueError
		if !errors.As(err, &valueErr) {
			t.Errorf("expected ValueError, got %v", err)
		}
	})
}
