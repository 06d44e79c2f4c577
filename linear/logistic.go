// Package linear provides linear classifiers trained with gradient descent.
package linear

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/neurogo/core/model"
	"github.com/YuminosukeSato/neurogo/metrics"
	"github.com/YuminosukeSato/neurogo/pkg/errors"
	"github.com/YuminosukeSato/neurogo/pkg/log"
)

// LogisticRegression is a binary and one-vs-rest multiclass classifier
// trained by full-batch gradient descent on the log loss, with optional L2
// regularization.
//
// Fitted state is exported so the model survives gob encoding.
type LogisticRegression struct {
	model.StateManager

	penalty      string
	c            float64
	fitIntercept bool
	maxIter      int
	tol          float64
	randomState  int64

	// Coefs holds one weight vector per subproblem: a single row for binary
	// problems, one row per class for one-vs-rest.
	Coefs       [][]float64
	Intercepts  []float64
	ClassValues []float64
	NFeatures   int
	NIters      []int
}

// LogisticRegressionOption configures a LogisticRegression.
type LogisticRegressionOption func(*LogisticRegression)

// WithLRPenalty sets the regularization type, "l2" or "none".
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength.
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.c = c
	}
}

// WithLogisticFitIntercept sets whether an intercept term is trained.
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRMaxIter sets the maximum number of gradient descent iterations.
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the gradient norm below which training stops.
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// WithLRRandomState sets the seed for weight initialization.
func WithLRRandomState(seed int64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.randomState = seed
	}
}

// NewLogisticRegression creates a LogisticRegression with the given options.
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		penalty:      "l2",
		c:            1.0,
		fitIntercept: true,
		maxIter:      100,
		tol:          1e-4,
		randomState:  42,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Fit trains the classifier on X (samples x features) and y (samples x 1).
// Two classes train a single subproblem; more classes train one-vs-rest.
func (lr *LogisticRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LogisticRegression.Fit")

	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.Wrap(errors.ErrEmptyData, "LogisticRegression.Fit")
	}
	yRows, yCols := y.Dims()
	if yRows != rows {
		return errors.NewDimensionError("LogisticRegression.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LogisticRegression.Fit", 1, yCols, 1)
	}
	if lr.penalty != "l2" && lr.penalty != "none" {
		return errors.NewValidationError("penalty", "unsupported regularization", lr.penalty)
	}

	classes := distinctLabels(y)
	if len(classes) < 2 {
		return errors.NewValueError("LogisticRegression.Fit", "training data contains a single class")
	}

	lr.ClassValues = classes
	lr.NFeatures = cols

	nProblems := 1
	if len(classes) > 2 {
		nProblems = len(classes)
	}

	rng := rand.New(rand.NewPCG(uint64(lr.randomState), uint64(lr.randomState)))
	lr.Coefs = make([][]float64, nProblems)
	lr.Intercepts = make([]float64, nProblems)
	lr.NIters = make([]int, nProblems)
	for k := range lr.Coefs {
		lr.Coefs[k] = make([]float64, cols)
		for j := range lr.Coefs[k] {
			lr.Coefs[k][j] = rng.NormFloat64() * 0.01
		}
	}

	targets := make([]float64, rows)
	converged := true
	for k := 0; k < nProblems; k++ {
		// For the binary case the positive class is the larger label.
		positive := lr.ClassValues[k]
		if nProblems == 1 {
			positive = lr.ClassValues[1]
		}
		for i := 0; i < rows; i++ {
			if y.At(i, 0) == positive {
				targets[i] = 1
			} else {
				targets[i] = 0
			}
		}

		iters, norm := lr.descend(X, targets, lr.Coefs[k], &lr.Intercepts[k])
		lr.NIters[k] = iters
		if norm >= lr.tol {
			converged = false
		}
	}

	if !converged {
		errors.Warn(errors.NewConvergenceWarning("logistic_regression", lr.maxIter,
			"gradient descent reached max_iter before the gradient norm dropped below tol"))
	}

	lr.SetDimensions(cols, rows)
	lr.SetFitted()

	log.GetLoggerWithName("linear.logistic").Debug("training finished",
		log.AlgorithmKey, "logistic_regression",
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.ClassesKey, len(classes),
		"iterations", lr.NIters)
	return nil
}

// descend runs gradient descent for one binary subproblem, updating weights
// and intercept in place. It returns the iterations used and the final
// gradient infinity norm.
func (lr *LogisticRegression) descend(X mat.Matrix, targets, weights []float64, intercept *float64) (int, float64) {
	rows, cols := X.Dims()
	grad := make([]float64, cols)

	lambda := 0.0
	if lr.penalty == "l2" {
		lambda = 1.0 / lr.c
	}

	iters := 0
	norm := math.Inf(1)
	for iter := 0; iter < lr.maxIter; iter++ {
		for j := range grad {
			grad[j] = 0
		}
		gradIntercept := 0.0

		for i := 0; i < rows; i++ {
			z := *intercept
			for j := 0; j < cols; j++ {
				z += X.At(i, j) * weights[j]
			}
			residual := sigmoid(z) - targets[i]
			gradIntercept += residual
			for j := 0; j < cols; j++ {
				grad[j] += residual * X.At(i, j)
			}
		}

		for j := range grad {
			grad[j] = grad[j]/float64(rows) + lambda*weights[j]
		}
		gradIntercept /= float64(rows)

		// Strong regularization can make the first full-rate steps explode.
		grad = errors.ClipGradient(grad, 5.0)
		gradIntercept = errors.ClipValue(gradIntercept, -5.0, 5.0)

		rate := 1.0 / (1.0 + 0.1*float64(iter))
		for j := range weights {
			weights[j] -= rate * grad[j]
		}
		if lr.fitIntercept {
			*intercept -= rate * gradIntercept
		}

		iters = iter + 1
		norm = math.Abs(gradIntercept)
		for _, g := range grad {
			if math.Abs(g) > norm {
				norm = math.Abs(g)
			}
		}
		if norm < lr.tol {
			break
		}
	}
	return iters, norm
}

// Predict returns the class label with the highest probability for each row.
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}

	rows, nClasses := proba.Dims()
	predictions := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		best := 0
		for k := 1; k < nClasses; k++ {
			if proba.At(i, k) > proba.At(i, best) {
				best = k
			}
		}
		predictions.Set(i, 0, lr.ClassValues[best])
	}
	return predictions, nil
}

// PredictProba returns a samples x classes probability matrix. One-vs-rest
// sigmoid outputs are normalized to sum to one per row.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LogisticRegression", "PredictProba")
	}
	rows, cols := X.Dims()
	if cols != lr.NFeatures {
		return nil, errors.NewDimensionError("LogisticRegression.PredictProba", lr.NFeatures, cols, 1)
	}

	proba := mat.NewDense(rows, len(lr.ClassValues), nil)
	for i := 0; i < rows; i++ {
		if len(lr.Coefs) == 1 {
			p := sigmoid(lr.rawScore(X, i, 0))
			proba.Set(i, 0, 1-p)
			proba.Set(i, 1, p)
			continue
		}

		sum := 0.0
		for k := range lr.Coefs {
			p := sigmoid(lr.rawScore(X, i, k))
			proba.Set(i, k, p)
			sum += p
		}
		for k := range lr.Coefs {
			proba.Set(i, k, proba.At(i, k)/sum)
		}
	}
	return proba, nil
}

func (lr *LogisticRegression) rawScore(X mat.Matrix, row, problem int) float64 {
	z := lr.Intercepts[problem]
	for j := 0; j < lr.NFeatures; j++ {
		z += X.At(row, j) * lr.Coefs[problem][j]
	}
	return z
}

// Score returns the accuracy of predictions on X against y.
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	if !lr.IsFitted() {
		return 0, errors.NewNotFittedError("LogisticRegression", "Score")
	}

	preds, err := lr.Predict(X)
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
func (lr *LogisticRegression) Classes() []float64 {
	out := make([]float64, len(lr.ClassValues))
	copy(out, lr.ClassValues)
	return out
}

// GetParams returns the hyperparameters.
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.c,
		"fit_intercept": lr.fitIntercept,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
		"random_state":  lr.randomState,
	}
}

// SetParams updates hyperparameters from a map, typically decoded from JSON.
// Unknown keys are rejected.
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "penalty":
			s, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			lr.penalty = s
		case "C":
			f, ok := toFloat(value)
			if !ok {
				return errors.NewValidationError(key, "must be a number", value)
			}
			lr.c = f
		case "fit_intercept":
			b, ok := value.(bool)
			if !ok {
				return errors.NewValidationError(key, "must be a boolean", value)
			}
			lr.fitIntercept = b
		case "max_iter":
			n, ok := toInt(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			lr.maxIter = n
		case "tol":
			f, ok := toFloat(value)
			if !ok {
				return errors.NewValidationError(key, "must be a number", value)
			}
			lr.tol = f
		case "random_state":
			n, ok := toInt(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			lr.randomState = int64(n)
		default:
			return errors.NewValidationError(key, "unknown hyperparameter", value)
		}
	}
	return nil
}

// distinctLabels returns the sorted distinct values of the label column.
func distinctLabels(y mat.Matrix) []float64 {
	rows, _ := y.Dims()
	seen := make(map[float64]bool, rows)
	var classes []float64
	for i := 0; i < rows; i++ {
		v := y.At(i, 0)
		if !seen[v] {
			seen[v] = true
			classes = append(classes, v)
		}
	}
	sort.Float64s(classes)
	return classes
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + errors.StabilizeExp(-z))
}

// toInt accepts native ints and JSON-decoded float64s that carry integral
// values.
func toInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == math.Trunc(v) {
			return int(v), true
		}
	}
	return 0, false
}

// toFloat accepts native float64s and ints.
func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
