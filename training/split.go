// Package training provides train/test splitting, cross-validation and the
// model training pipeline.
package training

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/neurogo/pkg/errors"
)

// TrainTestSplit shuffles row indices with a seeded generator and splits X
// and y into train and test subsets. testSize is the test fraction; the test
// row count is rounded up so it is never zero. Identical inputs and seed
// produce identical splits.
func TrainTestSplit(X, y mat.Matrix, testSize float64, seed int64) (XTrain, XTest, yTrain, yTest mat.Matrix, err error) {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return nil, nil, nil, nil, errors.Wrap(errors.ErrEmptyData, "training.TrainTestSplit")
	}
	yRows, _ := y.Dims()
	if yRows != rows {
		return nil, nil, nil, nil, errors.NewDimensionError("training.TrainTestSplit", rows, yRows, 0)
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, nil, nil, errors.NewValidationError("test_size", "must be between 0 and 1 exclusive", testSize)
	}

	nTest := int(math.Ceil(float64(rows) * testSize))
	if nTest >= rows {
		return nil, nil, nil, nil, errors.NewValueError("training.TrainTestSplit",
			"not enough samples to split: the train set would be empty")
	}

	indices := make([]int, rows)
	for i := range indices {
		indices[i] = i
	}
	r := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	r.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	XTest, yTest = extractSubset(X, y, indices[:nTest])
	XTrain, yTrain = extractSubset(X, y, indices[nTest:])
	return XTrain, XTest, yTrain, yTest, nil
}

// extractSubset copies the given rows of X and y into fresh matrices. Indices
// are sorted first so subset rows keep the original relative order.
func extractSubset(X, y mat.Matrix, indices []int) (mat.Matrix, mat.Matrix) {
	rows := len(indices)
	_, xCols := X.Dims()
	_, yCols := y.Dims()

	sortedIndices := make([]int, len(indices))
	copy(sortedIndices, indices)
	sort.Ints(sortedIndices)

	xSubset := mat.NewDense(rows, xCols, nil)
	ySubset := mat.NewDense(rows, yCols, nil)
	for i, idx := range sortedIndices {
		for j := 0; j < xCols; j++ {
			xSubset.Set(i, j, X.At(idx, j))
		}
		for j := 0; j < yCols; j++ {
			ySubset.Set(i, j, y.At(idx, j))
		}
	}
	return xSubset, ySubset
}

// columnToVec copies the first column of a matrix into a vector.
func columnToVec(m mat.Matrix) *mat.VecDense {
	rows, _ := m.Dims()
	v := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v
}
