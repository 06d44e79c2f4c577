package ensemble

import (
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/neurogo/core/model"
	"github.com/YuminosukeSato/neurogo/metrics"
	"github.com/YuminosukeSato/neurogo/pkg/errors"
	"github.com/YuminosukeSato/neurogo/pkg/log"
)

// RandomForestClassifier is a bagged ensemble of CART trees with feature
// subsampling at every split. Trees are grown concurrently; each tree draws
// from its own seeded source so results do not depend on scheduling.
type RandomForestClassifier struct {
	model.StateManager

	// Hyperparameters
	NEstimators     int    // Number of trees
	Criterion       string // Split criterion, "gini" or "entropy"
	MaxDepth        int    // Maximum tree depth, -1 for unlimited
	MinSamplesSplit int    // Minimum samples to split a node
	MinSamplesLeaf  int    // Minimum samples at a leaf
	MaxFeatures     string // Per-split feature budget: "sqrt", "log2" or "all"
	Bootstrap       bool   // Sample training rows with replacement per tree
	RandomState     int    // Seed for bagging and feature subsampling

	// Fitted state
	Roots       []*TreeNode
	ClassValues []float64
	NFeatures   int
	Importances []float64
}

// NewRandomForestClassifier creates a forest with scikit-learn compatible
// defaults.
func NewRandomForestClassifier() *RandomForestClassifier {
	return &RandomForestClassifier{
		NEstimators:     100,
		Criterion:       "gini",
		MaxDepth:        -1,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     "sqrt",
		Bootstrap:       true,
		RandomState:     42,
	}
}

// WithNEstimators sets the number of trees.
func (rf *RandomForestClassifier) WithNEstimators(n int) *RandomForestClassifier {
	rf.NEstimators = n
	return rf
}

// WithMaxDepth sets the maximum tree depth.
func (rf *RandomForestClassifier) WithMaxDepth(d int) *RandomForestClassifier {
	rf.MaxDepth = d
	return rf
}

// WithMinSamplesSplit sets the minimum samples required to split.
func (rf *RandomForestClassifier) WithMinSamplesSplit(n int) *RandomForestClassifier {
	rf.MinSamplesSplit = n
	return rf
}

// WithMinSamplesLeaf sets the minimum samples required at a leaf.
func (rf *RandomForestClassifier) WithMinSamplesLeaf(n int) *RandomForestClassifier {
	rf.MinSamplesLeaf = n
	return rf
}

// WithMaxFeatures sets the per-split feature budget.
func (rf *RandomForestClassifier) WithMaxFeatures(mode string) *RandomForestClassifier {
	rf.MaxFeatures = mode
	return rf
}

// WithRandomState sets the random seed.
func (rf *RandomForestClassifier) WithRandomState(seed int) *RandomForestClassifier {
	rf.RandomState = seed
	return rf
}

func (rf *RandomForestClassifier) featureBudget(nFeatures int) int {
	switch rf.MaxFeatures {
	case "log2":
		budget := int(math.Log2(float64(nFeatures)))
		if budget < 1 {
			budget = 1
		}
		return budget
	case "all", "":
		return 0
	default: // sqrt
		budget := int(math.Sqrt(float64(nFeatures)))
		if budget < 1 {
			budget = 1
		}
		return budget
	}
}

// Fit grows the forest on X and the labels in the single column of y.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestClassifier.Fit")

	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return errors.Wrap(errors.ErrEmptyData, "RandomForestClassifier.Fit")
	}
	if rows != yRows {
		return errors.NewDimensionError("RandomForestClassifier.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("RandomForestClassifier.Fit", 1, yCols, 1)
	}
	if rf.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be positive", rf.NEstimators)
	}

	classes, encoded := sortedClasses(y)
	rf.ClassValues = classes
	rf.NFeatures = cols
	nClasses := len(classes)
	budget := rf.featureBudget(cols)

	logger := log.GetLoggerWithName("ensemble.forest")
	logger.Debug("growing forest",
		log.AlgorithmKey, "random_forest",
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.ClassesKey, nClasses,
		"estimators", rf.NEstimators)

	roots := make([]*TreeNode, rf.NEstimators)
	importanceParts := make([][]float64, rf.NEstimators)

	var wg sync.WaitGroup
	for t := 0; t < rf.NEstimators; t++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			rng := rand.New(rand.NewPCG(uint64(rf.RandomState), uint64(idx)))

			indices := make([]int, rows)
			if rf.Bootstrap {
				for i := range indices {
					indices[i] = rng.IntN(rows)
				}
			} else {
				for i := range indices {
					indices[i] = i
				}
			}

			builder := newTreeBuilder(rf.Criterion, rf.MaxDepth, rf.MinSamplesSplit,
				rf.MinSamplesLeaf, budget, nClasses, cols, rng)
			roots[idx] = builder.fit(X, encoded, indices)
			importanceParts[idx] = builder.normalizedImportances()
		}(t)
	}
	wg.Wait()

	rf.Roots = roots
	rf.Importances = averageImportances(importanceParts, cols)

	rf.SetDimensions(cols, rows)
	rf.SetFitted()
	return nil
}

// averageImportances averages per-tree importances and rescales the result to
// sum to one. Forests that never split (single-class data) keep all zeros.
func averageImportances(parts [][]float64, nFeatures int) []float64 {
	out := make([]float64, nFeatures)
	for _, part := range parts {
		for j, v := range part {
			out[j] += v
		}
	}
	var total float64
	for _, v := range out {
		total += v
	}
	if total == 0 {
		return out
	}
	for j := range out {
		out[j] /= total
	}
	return out
}

// Predict returns the class with the highest averaged probability for each
// row of X.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}

	rows, nClasses := proba.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		bestK, bestP := 0, proba.At(i, 0)
		for k := 1; k < nClasses; k++ {
			if proba.At(i, k) > bestP {
				bestK, bestP = k, proba.At(i, k)
			}
		}
		out.Set(i, 0, rf.ClassValues[bestK])
	}
	return out, nil
}

// PredictProba averages the leaf class distributions over all trees. Columns
// follow ascending label order.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !rf.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestClassifier", "PredictProba")
	}
	rows, cols := X.Dims()
	if cols != rf.NFeatures {
		return nil, errors.NewDimensionError("RandomForestClassifier.PredictProba", rf.NFeatures, cols, 1)
	}

	nClasses := len(rf.ClassValues)
	out := mat.NewDense(rows, nClasses, nil)
	x := make([]float64, cols)
	for i := 0; i < rows; i++ {
		rowTo(X, i, x)
		for _, root := range rf.Roots {
			leaf := root.apply(x)
			for k := 0; k < nClasses; k++ {
				out.Set(i, k, out.At(i, k)+leaf.Value[k])
			}
		}
		for k := 0; k < nClasses; k++ {
			out.Set(i, k, out.At(i, k)/float64(len(rf.Roots)))
		}
	}
	return out, nil
}

// Score returns the accuracy of the forest on X against the labels in y.
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) (float64, error) {
	if !rf.IsFitted() {
		return 0, errors.NewNotFittedError("RandomForestClassifier", "Score")
	}

	preds, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}

	rows, _ := y.Dims()
	yVec := mat.NewVecDense(rows, nil)
	predVec := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		yVec.SetVec(i, y.At(i, 0))
		predVec.SetVec(i, preds.At(i, 0))
	}
	return metrics.Accuracy(yVec, predVec)
}

// Classes returns the class labels in ascending order.
func (rf *RandomForestClassifier) Classes() []float64 {
	out := make([]float64, len(rf.ClassValues))
	copy(out, rf.ClassValues)
	return out
}

// FeatureImportances returns the normalized impurity decrease per feature.
func (rf *RandomForestClassifier) FeatureImportances() []float64 {
	out := make([]float64, len(rf.Importances))
	copy(out, rf.Importances)
	return out
}

// GetParams returns the forest hyperparameters.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.NEstimators,
		"criterion":         rf.Criterion,
		"max_depth":         rf.MaxDepth,
		"min_samples_split": rf.MinSamplesSplit,
		"min_samples_leaf":  rf.MinSamplesLeaf,
		"max_features":      rf.MaxFeatures,
		"bootstrap":         rf.Bootstrap,
		"random_state":      rf.RandomState,
	}
}

// SetParams updates hyperparameters from a map, typically decoded from JSON.
// Unknown keys are rejected.
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "n_estimators":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			rf.NEstimators = v
		case "criterion":
			v, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			rf.Criterion = v
		case "max_depth":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			rf.MaxDepth = v
		case "min_samples_split":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			rf.MinSamplesSplit = v
		case "min_samples_leaf":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			rf.MinSamplesLeaf = v
		case "max_features":
			v, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			rf.MaxFeatures = v
		case "bootstrap":
			v, ok := value.(bool)
			if !ok {
				return errors.NewValidationError(key, "must be a boolean", value)
			}
			rf.Bootstrap = v
		case "random_state":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			rf.RandomState = v
		default:
			return errors.NewValidationError(key, "unknown hyperparameter", value)
		}
	}
	return nil
}
